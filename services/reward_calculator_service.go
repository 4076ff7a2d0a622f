package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"fitQuestAPI/internal/activity"
	"fitQuestAPI/internal/clock"
	"fitQuestAPI/internal/reward"
	"fitQuestAPI/internal/streak"
)

// RewardCalculatorService recomputes progress toward the multi-day reward
// catalog from the activity logs themselves. Progress is always derived
// fresh from the logs, never incremented in place, so a backfilled or
// deleted log self-corrects on the next recalculation.
type RewardCalculatorService struct {
	db      *pgxpool.Pool
	clock   clock.Clock
	rewards *RewardService
}

func NewRewardCalculatorService(db *pgxpool.Pool, clk clock.Clock, rewards *RewardService) *RewardCalculatorService {
	return &RewardCalculatorService{db: db, clock: clk, rewards: rewards}
}

// Recalculate refreshes every active catalog entry for the user. A failure
// on one reward is logged and does not block the rest.
func (s *RewardCalculatorService) Recalculate(ctx context.Context, userID uuid.UUID) ([]*reward.Progress, error) {
	defs, err := s.ListDefinitions(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]*reward.Progress, 0, len(defs))
	for _, def := range defs {
		p, err := s.recalculateOne(ctx, userID, def)
		if err != nil {
			log.Printf("RewardCalculator: failed to recalculate %s for %s: %v", def.RewardKey, userID, err)
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (s *RewardCalculatorService) recalculateOne(ctx context.Context, userID uuid.UUID, def *reward.Definition) (*reward.Progress, error) {
	current, err := s.measure(ctx, userID, def)
	if err != nil {
		return nil, err
	}

	completed := current >= def.RequiredCount
	if current > def.RequiredCount {
		current = def.RequiredCount
	}

	// Claimed rows are terminal. The WHERE clause keeps a claimed reward
	// untouched even if the logs that earned it later change.
	p := &reward.Progress{UserID: userID, RewardKey: def.RewardKey}
	err = s.db.QueryRow(ctx, `
		INSERT INTO reward_progress (user_id, reward_key, current_progress, is_completed, completed_at)
		VALUES ($1, $2, $3, $4, CASE WHEN $4 THEN NOW() ELSE NULL END)
		ON CONFLICT (user_id, reward_key) DO UPDATE
		SET current_progress = EXCLUDED.current_progress,
		    is_completed = reward_progress.is_completed OR EXCLUDED.is_completed,
		    completed_at = COALESCE(reward_progress.completed_at, EXCLUDED.completed_at)
		WHERE NOT reward_progress.is_claimed
		RETURNING current_progress, is_completed, is_claimed, completed_at, claimed_at
	`, userID, def.RewardKey, current, completed).Scan(
		&p.CurrentProgress, &p.IsCompleted, &p.IsClaimed, &p.CompletedAt, &p.ClaimedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		// Row exists and is claimed; return it as stored.
		return s.getProgress(ctx, userID, def.RewardKey)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to upsert reward progress: %w", err)
	}
	return p, nil
}

// measure computes the raw progress number for one catalog entry from the
// activity logs.
func (s *RewardCalculatorService) measure(ctx context.Context, userID uuid.UUID, def *reward.Definition) (int, error) {
	today := s.clock.Today()

	switch def.RewardKey {
	case reward.KeyWeeklyWarrior:
		// Workouts on distinct days within the trailing 7 days.
		return s.countDistinctDays(ctx, "workouts", userID, today.AddDate(0, 0, -6), today)

	case reward.KeyStepStreak7:
		// Consecutive days ending today (or yesterday) with the step goal met.
		dates, err := s.stepGoalDays(ctx, userID, today.AddDate(0, 0, -13), today)
		if err != nil {
			return 0, err
		}
		return streak.ConsecutiveFrom(dates, today), nil

	case reward.KeyWeeklyPowerup:
		// A personal record set within the trailing 7 days.
		var n int
		err := s.db.QueryRow(ctx, `
			SELECT COUNT(*) FROM personal_records
			WHERE user_id = $1 AND date >= $2
		`, userID, today.AddDate(0, 0, -6)).Scan(&n)
		if err != nil {
			return 0, fmt.Errorf("failed to count personal records: %w", err)
		}
		return n, nil

	case reward.KeyPerfectMonth:
		// Consecutive days ending today with workout, water and sleep all
		// logged. Same day rules as the persisted streaks.
		dates, err := s.fullActivityDays(ctx, userID, today.AddDate(0, 0, -30), today)
		if err != nil {
			return 0, err
		}
		return streak.ConsecutiveFrom(dates, today), nil

	case reward.KeyChallengeComplete:
		// Consecutive days of water logging ending today.
		dates, err := s.loggedDays(ctx, "water_logs", userID, today.AddDate(0, 0, -13), today)
		if err != nil {
			return 0, err
		}
		return streak.ConsecutiveFrom(dates, today), nil
	}

	return 0, fmt.Errorf("unknown reward key %s", def.RewardKey)
}

func (s *RewardCalculatorService) countDistinctDays(ctx context.Context, table string, userID uuid.UUID, from, to time.Time) (int, error) {
	var n int
	// table comes from a fixed switch above, never from user input.
	q := fmt.Sprintf(`SELECT COUNT(DISTINCT date) FROM %s WHERE user_id = $1 AND date >= $2 AND date <= $3`, table)
	if err := s.db.QueryRow(ctx, q, userID, from, to).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count distinct days in %s: %w", table, err)
	}
	return n, nil
}

func (s *RewardCalculatorService) stepGoalDays(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]time.Time, error) {
	rows, err := s.db.Query(ctx, `
		SELECT date FROM step_logs
		WHERE user_id = $1 AND date >= $2 AND date <= $3 AND steps >= $4
		ORDER BY date DESC
	`, userID, from, to, activity.DailyStepGoal)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch step goal days: %w", err)
	}
	return scanDates(rows)
}

// loggedDays returns the distinct dates with at least one row in the given
// log table, newest first.
func (s *RewardCalculatorService) loggedDays(ctx context.Context, table string, userID uuid.UUID, from, to time.Time) ([]time.Time, error) {
	// table comes from a fixed switch above, never from user input.
	q := fmt.Sprintf(`
		SELECT DISTINCT date FROM %s
		WHERE user_id = $1 AND date >= $2 AND date <= $3
		ORDER BY date DESC
	`, table)
	rows, err := s.db.Query(ctx, q, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch logged days from %s: %w", table, err)
	}
	return scanDates(rows)
}

// fullActivityDays returns the dates with a workout, a water log and a sleep
// log all present, newest first.
func (s *RewardCalculatorService) fullActivityDays(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]time.Time, error) {
	rows, err := s.db.Query(ctx, `
		SELECT w.date FROM (SELECT DISTINCT date FROM workouts WHERE user_id = $1 AND date >= $2 AND date <= $3) w
		JOIN water_logs wl ON wl.user_id = $1 AND wl.date = w.date
		JOIN sleep_logs sl ON sl.user_id = $1 AND sl.date = w.date
		ORDER BY w.date DESC
	`, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch full activity days: %w", err)
	}
	return scanDates(rows)
}

func scanDates(rows pgx.Rows) ([]time.Time, error) {
	defer rows.Close()
	var dates []time.Time
	for rows.Next() {
		var d time.Time
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("failed to scan date: %w", err)
		}
		dates = append(dates, d)
	}
	return dates, rows.Err()
}

// Claim pays out a completed reward. Claiming is one-shot: the conditional
// UPDATE only fires on completed, unclaimed rows, so a double-tap cannot pay
// twice.
func (s *RewardCalculatorService) Claim(ctx context.Context, userID uuid.UUID, key reward.Key) (*reward.AwardResult, error) {
	def, err := s.getDefinition(ctx, key)
	if err != nil {
		return nil, err
	}

	tag, err := s.db.Exec(ctx, `
		UPDATE reward_progress
		SET is_claimed = TRUE, claimed_at = NOW()
		WHERE user_id = $1 AND reward_key = $2 AND is_completed = TRUE AND is_claimed = FALSE
	`, userID, key)
	if err != nil {
		return nil, fmt.Errorf("failed to claim reward: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, fmt.Errorf("reward %s: %w", key, reward.ErrNotClaimable)
	}

	result, err := s.rewards.Award(ctx, userID, reward.AwardRewardClaim, def.PointValue, "reward_claim:"+string(key))
	if err != nil {
		// The claim flag is set but the payout failed; surface it loudly so
		// the row can be reconciled.
		log.Printf("RewardCalculator: claim of %s marked but payout failed for %s: %v", key, userID, err)
		return nil, fmt.Errorf("failed to pay out reward claim: %w", err)
	}
	return result, nil
}

// ListDefinitions returns the active reward catalog.
func (s *RewardCalculatorService) ListDefinitions(ctx context.Context) ([]*reward.Definition, error) {
	rows, err := s.db.Query(ctx, `
		SELECT reward_key, category, title, required_count, point_value, active
		FROM reward_definitions
		WHERE active = TRUE
		ORDER BY reward_key
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list reward definitions: %w", err)
	}
	defer rows.Close()

	defs := make([]*reward.Definition, 0)
	for rows.Next() {
		d := &reward.Definition{}
		if err := rows.Scan(&d.RewardKey, &d.Category, &d.Title, &d.RequiredCount, &d.PointValue, &d.Active); err != nil {
			return nil, fmt.Errorf("failed to scan reward definition: %w", err)
		}
		defs = append(defs, d)
	}
	return defs, rows.Err()
}

func (s *RewardCalculatorService) getDefinition(ctx context.Context, key reward.Key) (*reward.Definition, error) {
	d := &reward.Definition{}
	err := s.db.QueryRow(ctx, `
		SELECT reward_key, category, title, required_count, point_value, active
		FROM reward_definitions
		WHERE reward_key = $1 AND active = TRUE
	`, key).Scan(&d.RewardKey, &d.Category, &d.Title, &d.RequiredCount, &d.PointValue, &d.Active)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("reward %s: %w", key, reward.ErrUnknownReward)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get reward definition: %w", err)
	}
	return d, nil
}

func (s *RewardCalculatorService) getProgress(ctx context.Context, userID uuid.UUID, key reward.Key) (*reward.Progress, error) {
	p := &reward.Progress{UserID: userID, RewardKey: key}
	err := s.db.QueryRow(ctx, `
		SELECT current_progress, is_completed, is_claimed, completed_at, claimed_at
		FROM reward_progress
		WHERE user_id = $1 AND reward_key = $2
	`, userID, key).Scan(&p.CurrentProgress, &p.IsCompleted, &p.IsClaimed, &p.CompletedAt, &p.ClaimedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return p, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get reward progress: %w", err)
	}
	return p, nil
}
