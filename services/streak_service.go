package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"fitQuestAPI/internal/clock"
	"fitQuestAPI/internal/streak"
)

// StreakService is the persisted streak tracker. One row per
// (user, streak type); Touch is idempotent per calendar day.
type StreakService struct {
	db    *pgxpool.Pool
	clock clock.Clock
}

func NewStreakService(db *pgxpool.Pool, clk clock.Clock) *StreakService {
	return &StreakService{db: db, clock: clk}
}

// Touch records activity of the given type for today and applies the
// consecutive-day rules. Safe to call any number of times per day.
func (s *StreakService) Touch(ctx context.Context, userID uuid.UUID, streakType streak.Type) (*streak.TouchResult, error) {
	if !streakType.Valid() {
		return nil, fmt.Errorf("invalid streak type: %s", streakType)
	}
	today := s.clock.Today()

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var (
		current, longest int
		lastDate         *time.Time
	)
	err = tx.QueryRow(ctx, `
		SELECT current_streak, longest_streak, last_activity_date
		FROM streaks
		WHERE user_id = $1 AND streak_type = $2
		FOR UPDATE
	`, userID, streakType).Scan(&current, &longest, &lastDate)

	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to read streak: %w", err)
	}

	if errors.Is(err, pgx.ErrNoRows) {
		_, err = tx.Exec(ctx, `
			INSERT INTO streaks (user_id, streak_type, current_streak, longest_streak, last_activity_date)
			VALUES ($1, $2, 1, 1, $3)
			ON CONFLICT (user_id, streak_type) DO NOTHING
		`, userID, streakType, today)
		if err != nil {
			return nil, fmt.Errorf("failed to create streak: %w", err)
		}
		if err := tx.Commit(ctx); err != nil {
			return nil, fmt.Errorf("failed to commit streak: %w", err)
		}
		return &streak.TouchResult{CurrentStreak: 1, LongestStreak: 1}, nil
	}

	newCurrent, newLongest, continued, changed := streak.Advance(lastDate, today, current, longest)
	if !changed {
		return &streak.TouchResult{CurrentStreak: current, LongestStreak: longest}, nil
	}

	_, err = tx.Exec(ctx, `
		UPDATE streaks
		SET current_streak = $3, longest_streak = $4, last_activity_date = $5, updated_at = NOW()
		WHERE user_id = $1 AND streak_type = $2
	`, userID, streakType, newCurrent, newLongest, today)
	if err != nil {
		return nil, fmt.Errorf("failed to update streak: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit streak: %w", err)
	}

	return &streak.TouchResult{
		CurrentStreak: newCurrent,
		LongestStreak: newLongest,
		Continued:     continued,
	}, nil
}

// Get returns the current counter for one streak type; a missing row reads
// as zero rather than not-found.
func (s *StreakService) Get(ctx context.Context, userID uuid.UUID, streakType streak.Type) (*streak.Streak, error) {
	st := &streak.Streak{UserID: userID, StreakType: streakType}
	err := s.db.QueryRow(ctx, `
		SELECT id, current_streak, longest_streak, last_activity_date, created_at, updated_at
		FROM streaks
		WHERE user_id = $1 AND streak_type = $2
	`, userID, streakType).Scan(&st.ID, &st.CurrentStreak, &st.LongestStreak, &st.LastActivityDate, &st.CreatedAt, &st.UpdatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return st, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get streak: %w", err)
	}

	// A streak whose last activity is older than yesterday is shown as
	// broken without waiting for the next touch to reset it.
	if st.LastActivityDate != nil {
		today := s.clock.Today()
		last := clock.Midnight(*st.LastActivityDate)
		if !clock.SameDay(last, today) && !clock.SameDay(last.AddDate(0, 0, 1), today) {
			st.CurrentStreak = 0
		}
	}
	return st, nil
}

// GetAll returns every streak row for a user.
func (s *StreakService) GetAll(ctx context.Context, userID uuid.UUID) ([]*streak.Streak, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, streak_type, current_streak, longest_streak, last_activity_date, created_at, updated_at
		FROM streaks
		WHERE user_id = $1
		ORDER BY streak_type
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list streaks: %w", err)
	}
	defer rows.Close()

	streaks := make([]*streak.Streak, 0)
	for rows.Next() {
		st := &streak.Streak{UserID: userID}
		if err := rows.Scan(&st.ID, &st.StreakType, &st.CurrentStreak, &st.LongestStreak, &st.LastActivityDate, &st.CreatedAt, &st.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan streak: %w", err)
		}
		streaks = append(streaks, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating streaks: %w", err)
	}
	return streaks, nil
}
