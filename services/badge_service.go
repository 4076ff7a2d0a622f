package services

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"fitQuestAPI/internal/badge"
	"fitQuestAPI/internal/clock"
	"fitQuestAPI/internal/reward"
	"fitQuestAPI/internal/streak"
)

// BadgeService evaluates the badge catalog against a user's streaks and
// activity logs. Completion is one-way: once earned, a badge stays earned
// even if the metric that earned it later drops below the threshold.
type BadgeService struct {
	db      *pgxpool.Pool
	clock   clock.Clock
	streaks *StreakService
	rewards *RewardService
}

func NewBadgeService(db *pgxpool.Pool, clk clock.Clock, streaks *StreakService, rewards *RewardService) *BadgeService {
	return &BadgeService{db: db, clock: clk, streaks: streaks, rewards: rewards}
}

// Evaluate measures every badge for the user and awards the ones that just
// crossed their threshold. sleepImprovement is the caller's sleep-improvement
// percentage; pass nil to derive it from the sleep logs instead. One badge
// failing to evaluate is logged and skipped so the rest of the catalog still
// runs.
func (s *BadgeService) Evaluate(ctx context.Context, userID uuid.UUID, sleepImprovement *int) ([]*badge.Earned, error) {
	badges, err := s.ListBadges(ctx)
	if err != nil {
		return nil, err
	}

	earned := make([]*badge.Earned, 0)
	for _, b := range badges {
		e, err := s.evaluateOne(ctx, userID, b, sleepImprovement)
		if err != nil {
			log.Printf("BadgeService: failed to evaluate badge %q for %s: %v", b.Title, userID, err)
			continue
		}
		if e != nil {
			earned = append(earned, e)
		}
	}
	return earned, nil
}

// evaluateOne returns a non-nil Earned only when the badge flipped from
// incomplete to complete during this call.
func (s *BadgeService) evaluateOne(ctx context.Context, userID uuid.UUID, b *badge.Badge, sleepImprovement *int) (*badge.Earned, error) {
	value, err := s.measure(ctx, userID, b.CriteriaType, sleepImprovement)
	if err != nil {
		return nil, err
	}

	completed := value >= b.RequiredValue
	if value > b.RequiredValue {
		value = b.RequiredValue
	}

	// The conditional WHERE makes the flip one-way and lets the row count
	// tell us whether this call was the transition. Already-completed rows
	// are left alone entirely.
	tag, err := s.db.Exec(ctx, `
		INSERT INTO badge_progress (user_id, badge_id, current_value, is_completed, completed_at)
		VALUES ($1, $2, $3, $4, CASE WHEN $4 THEN NOW() ELSE NULL END)
		ON CONFLICT (user_id, badge_id) DO UPDATE
		SET current_value = EXCLUDED.current_value,
		    is_completed = EXCLUDED.is_completed,
		    completed_at = CASE WHEN EXCLUDED.is_completed THEN NOW() ELSE NULL END
		WHERE badge_progress.is_completed = FALSE
	`, userID, b.ID, value, completed)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert badge progress: %w", err)
	}

	// RowsAffected()==0 means the stored row was already completed.
	if !completed || tag.RowsAffected() == 0 {
		return nil, nil
	}

	result, err := s.rewards.Award(ctx, userID, reward.AwardBadge, b.PointValue, "badge:"+b.Title)
	if err != nil {
		return nil, fmt.Errorf("failed to award badge points: %w", err)
	}
	return &badge.Earned{Badge: *b, PointsAwarded: result.Amount}, nil
}

// measure derives the current metric value for one criteria type.
func (s *BadgeService) measure(ctx context.Context, userID uuid.UUID, criteria badge.CriteriaType, sleepImprovement *int) (int, error) {
	today := s.clock.Today()

	switch criteria {
	case badge.CriteriaWorkoutStreak:
		st, err := s.streaks.Get(ctx, userID, streak.TypeWorkout)
		if err != nil {
			return 0, err
		}
		return st.CurrentStreak, nil

	case badge.CriteriaHydrationStreak:
		st, err := s.streaks.Get(ctx, userID, streak.TypeWater)
		if err != nil {
			return 0, err
		}
		return st.CurrentStreak, nil

	case badge.CriteriaWeeklySteps:
		var total int
		err := s.db.QueryRow(ctx, `
			SELECT COALESCE(SUM(steps), 0) FROM step_logs
			WHERE user_id = $1 AND date >= $2 AND date <= $3
		`, userID, today.AddDate(0, 0, -6), today).Scan(&total)
		if err != nil {
			return 0, fmt.Errorf("failed to sum weekly steps: %w", err)
		}
		return total, nil

	case badge.CriteriaMonthlyPRs:
		var n int
		err := s.db.QueryRow(ctx, `
			SELECT COUNT(*) FROM personal_records
			WHERE user_id = $1 AND date >= $2
		`, userID, today.AddDate(0, 0, -29)).Scan(&n)
		if err != nil {
			return 0, fmt.Errorf("failed to count monthly personal records: %w", err)
		}
		return n, nil

	case badge.CriteriaSleepImprovement:
		if sleepImprovement != nil {
			return *sleepImprovement, nil
		}
		// Percent change of average sleep, trailing 15 days against the 15
		// before that. Negative change reads as zero progress.
		var recent, prior float64
		err := s.db.QueryRow(ctx, `
			SELECT
				COALESCE((SELECT AVG(hours) FROM sleep_logs WHERE user_id = $1 AND date > $2 AND date <= $3), 0),
				COALESCE((SELECT AVG(hours) FROM sleep_logs WHERE user_id = $1 AND date > $4 AND date <= $2), 0)
		`, userID, today.AddDate(0, 0, -15), today, today.AddDate(0, 0, -30)).Scan(&recent, &prior)
		if err != nil {
			return 0, fmt.Errorf("failed to average sleep windows: %w", err)
		}
		if prior <= 0 || recent <= prior {
			return 0, nil
		}
		return int((recent-prior)/prior*100 + 0.5), nil
	}

	return 0, fmt.Errorf("unknown badge criteria %s", criteria)
}

// ListBadges returns the full badge catalog.
func (s *BadgeService) ListBadges(ctx context.Context) ([]*badge.Badge, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, title, description, criteria_type, required_value, point_value, created_at
		FROM badges
		ORDER BY title
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list badges: %w", err)
	}
	defer rows.Close()

	badges := make([]*badge.Badge, 0)
	for rows.Next() {
		b := &badge.Badge{}
		if err := rows.Scan(&b.ID, &b.Title, &b.Description, &b.CriteriaType, &b.RequiredValue, &b.PointValue, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan badge: %w", err)
		}
		badges = append(badges, b)
	}
	return badges, rows.Err()
}

// GetUserBadges lists every badge joined with the user's progress row, zero
// progress where no row exists yet.
func (s *BadgeService) GetUserBadges(ctx context.Context, userID uuid.UUID) ([]*badge.WithProgress, error) {
	rows, err := s.db.Query(ctx, `
		SELECT b.id, b.title, b.description, b.criteria_type, b.required_value, b.point_value, b.created_at,
		       COALESCE(bp.current_value, 0), COALESCE(bp.is_completed, FALSE), bp.completed_at
		FROM badges b
		LEFT JOIN badge_progress bp ON bp.badge_id = b.id AND bp.user_id = $1
		ORDER BY b.title
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list user badges: %w", err)
	}
	defer rows.Close()

	out := make([]*badge.WithProgress, 0)
	for rows.Next() {
		wp := &badge.WithProgress{}
		if err := rows.Scan(&wp.ID, &wp.Title, &wp.Description, &wp.CriteriaType, &wp.RequiredValue, &wp.PointValue, &wp.CreatedAt,
			&wp.CurrentValue, &wp.IsCompleted, &wp.CompletedAt); err != nil {
			return nil, fmt.Errorf("failed to scan user badge: %w", err)
		}
		out = append(out, wp)
	}
	return out, rows.Err()
}

// GetBadge fetches one badge by id.
func (s *BadgeService) GetBadge(ctx context.Context, badgeID uuid.UUID) (*badge.Badge, error) {
	b := &badge.Badge{}
	err := s.db.QueryRow(ctx, `
		SELECT id, title, description, criteria_type, required_value, point_value, created_at
		FROM badges WHERE id = $1
	`, badgeID).Scan(&b.ID, &b.Title, &b.Description, &b.CriteriaType, &b.RequiredValue, &b.PointValue, &b.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("badge %s not found", badgeID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get badge: %w", err)
	}
	return b, nil
}
