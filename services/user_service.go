package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"fitQuestAPI/internal/user"
)

type UserService struct {
	db *pgxpool.Pool
}

func NewUserService(db *pgxpool.Pool) *UserService {
	return &UserService{db: db}
}

func (s *UserService) CreateUser(ctx context.Context, req *user.CreateUserRequest) (*user.User, error) {
	u := &user.User{
		ID:        uuid.New().String(),
		ClerkID:   req.ClerkID,
		Email:     req.Email,
		Username:  req.Username,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		ImageURL:  req.ImageURL,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	query := `
	INSERT INTO users (id, clerk_id, email, username, first_name, last_name, image_url, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	ON CONFLICT (clerk_id) DO UPDATE
	SET email = EXCLUDED.email, updated_at = NOW()
	RETURNING id, clerk_id, email, username, first_name, last_name, image_url, email_verified, created_at, updated_at
	`

	err := s.db.QueryRow(ctx, query,
		u.ID, u.ClerkID, u.Email, u.Username, u.FirstName, u.LastName, u.ImageURL, u.CreatedAt, u.UpdatedAt,
	).Scan(
		&u.ID, &u.ClerkID, &u.Email, &u.Username, &u.FirstName, &u.LastName, &u.ImageURL,
		&u.EmailVerified, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	// New users start with an empty reward state row so first reads are cheap.
	if _, err := s.db.Exec(ctx, `
		INSERT INTO user_reward_state (user_id) VALUES ($1)
		ON CONFLICT (user_id) DO NOTHING
	`, u.ID); err != nil {
		return nil, fmt.Errorf("failed to initialize reward state: %w", err)
	}

	return u, nil
}

func (s *UserService) GetUserByID(ctx context.Context, id uuid.UUID) (*user.User, error) {
	return s.getUser(ctx, `WHERE id = $1`, id)
}

func (s *UserService) GetUserByClerkID(ctx context.Context, clerkID string) (*user.User, error) {
	return s.getUser(ctx, `WHERE clerk_id = $1`, clerkID)
}

func (s *UserService) getUser(ctx context.Context, where string, arg any) (*user.User, error) {
	u := &user.User{}
	query := `
	SELECT id, clerk_id, email, username, first_name, last_name, image_url, email_verified, created_at, updated_at
	FROM users ` + where

	err := s.db.QueryRow(ctx, query, arg).Scan(
		&u.ID, &u.ClerkID, &u.Email, &u.Username, &u.FirstName, &u.LastName, &u.ImageURL,
		&u.EmailVerified, &u.CreatedAt, &u.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("user not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

func (s *UserService) UpdateProfile(ctx context.Context, id uuid.UUID, req *user.UpdateProfileRequest) (*user.User, error) {
	setClauses := []string{"updated_at = NOW()"}
	args := []any{id}

	if req.Username != "" {
		args = append(args, req.Username)
		setClauses = append(setClauses, fmt.Sprintf("username = $%d", len(args)))
	}
	if req.FirstName != "" {
		args = append(args, req.FirstName)
		setClauses = append(setClauses, fmt.Sprintf("first_name = $%d", len(args)))
	}
	if req.LastName != "" {
		args = append(args, req.LastName)
		setClauses = append(setClauses, fmt.Sprintf("last_name = $%d", len(args)))
	}
	if req.ImageURL != "" {
		args = append(args, req.ImageURL)
		setClauses = append(setClauses, fmt.Sprintf("image_url = $%d", len(args)))
	}

	query := `
	UPDATE users SET ` + strings.Join(setClauses, ", ") + `
	WHERE id = $1
	RETURNING id, clerk_id, email, username, first_name, last_name, image_url, email_verified, created_at, updated_at
	`

	u := &user.User{}
	err := s.db.QueryRow(ctx, query, args...).Scan(
		&u.ID, &u.ClerkID, &u.Email, &u.Username, &u.FirstName, &u.LastName, &u.ImageURL,
		&u.EmailVerified, &u.CreatedAt, &u.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("user not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}
	return u, nil
}

func (s *UserService) UpdateUserByClerkID(ctx context.Context, clerkID string, email string, verified bool) error {
	_, err := s.db.Exec(ctx, `
		UPDATE users SET email = $2, email_verified = $3, updated_at = NOW()
		WHERE clerk_id = $1
	`, clerkID, email, verified)
	if err != nil {
		return fmt.Errorf("failed to update user by clerk id: %w", err)
	}
	return nil
}

func (s *UserService) DeleteUserByClerkID(ctx context.Context, clerkID string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM users WHERE clerk_id = $1`, clerkID)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("user not found")
	}
	return nil
}
