package services

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"fitQuestAPI/internal/clock"
	"fitQuestAPI/internal/level"
	"fitQuestAPI/internal/reward"
	"fitQuestAPI/internal/streak"
)

// RewardService is the XP award ledger. Every point a user ever receives
// flows through here: once-per-day gating, streak bonus, atomic total
// updates, level recomputation and the immutable history trail.
type RewardService struct {
	db      *pgxpool.Pool
	clock   clock.Clock
	streaks *StreakService
}

func NewRewardService(db *pgxpool.Pool, clk clock.Clock, streaks *StreakService) *RewardService {
	return &RewardService{db: db, clock: clk, streaks: streaks}
}

// AwardOncePerDay grants the award type's base amount at most once per
// calendar day. Concurrent duplicate calls are resolved by the daily_awards
// uniqueness constraint: the loser of the race gets Granted=false, not an
// error.
func (s *RewardService) AwardOncePerDay(ctx context.Context, userID uuid.UUID, awardType reward.AwardType) (*reward.AwardResult, error) {
	if !awardType.DailyGated() {
		return nil, fmt.Errorf("award type %s is not gated to once per day", awardType)
	}
	base, ok := reward.BaseAmounts[awardType]
	if !ok {
		return nil, fmt.Errorf("award type %s has no base amount", awardType)
	}

	amount := s.withStreakBonus(ctx, userID, awardType, base)
	today := s.clock.Today()

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// INSERT .. ON CONFLICT DO NOTHING is the race arbiter. RowsAffected()==0
	// means someone already granted this (user, type, day).
	tag, err := tx.Exec(ctx, `
		INSERT INTO daily_awards (user_id, award_type, award_date, points_awarded)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, award_type, award_date) DO NOTHING
	`, userID, awardType, today, amount)
	if err != nil {
		return nil, fmt.Errorf("failed to record daily award: %w", err)
	}

	if tag.RowsAffected() == 0 {
		state, err := s.GetState(ctx, userID)
		if err != nil {
			return nil, err
		}
		return &reward.AwardResult{
			Granted:  false,
			NewTotal: state.TotalPoints,
			NewLevel: state.CurrentLevel,
			NewTier:  state.CurrentTier,
		}, nil
	}

	result, err := s.grantInTx(ctx, tx, userID, amount, string(awardType))
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit award: %w", err)
	}
	return result, nil
}

// Award grants points without a daily gate (workout completions, challenge
// payouts, badge payouts). The streak bonus applies only to activity-derived
// award types.
func (s *RewardService) Award(ctx context.Context, userID uuid.UUID, awardType reward.AwardType, baseAmount int, reason string) (*reward.AwardResult, error) {
	if baseAmount <= 0 {
		return nil, fmt.Errorf("award amount must be positive, got %d", baseAmount)
	}

	amount := s.withStreakBonus(ctx, userID, awardType, baseAmount)

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	result, err := s.grantInTx(ctx, tx, userID, amount, reason)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit award: %w", err)
	}
	return result, nil
}

// withStreakBonus resolves the final integer amount before any transaction
// opens. The rounded value is what gets stored everywhere.
func (s *RewardService) withStreakBonus(ctx context.Context, userID uuid.UUID, awardType reward.AwardType, base int) int {
	if !awardType.StreakBonusEligible() {
		return base
	}
	st, err := s.streaks.Get(ctx, userID, streak.TypeWorkout)
	if err != nil {
		log.Printf("RewardService: streak lookup failed for %s, awarding base amount: %v", userID, err)
		return base
	}
	return reward.ApplyStreakBonus(base, st.CurrentStreak)
}

// grantInTx applies one grant atomically: ensure the state row, bump the
// total with a single UPDATE expression, recompute level/tier, append
// history. Callers own commit/rollback.
func (s *RewardService) grantInTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount int, reason string) (*reward.AwardResult, error) {
	_, err := tx.Exec(ctx, `
		INSERT INTO user_reward_state (user_id) VALUES ($1)
		ON CONFLICT (user_id) DO NOTHING
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure reward state: %w", err)
	}

	var newTotal int
	err = tx.QueryRow(ctx, `
		UPDATE user_reward_state
		SET total_points = total_points + $2, last_updated = NOW()
		WHERE user_id = $1
		RETURNING total_points
	`, userID, amount).Scan(&newTotal)
	if err != nil {
		return nil, fmt.Errorf("failed to update point total: %w", err)
	}

	info := level.DetectLevelUp(newTotal-amount, newTotal)

	if info.LeveledUp {
		_, err = tx.Exec(ctx, `
			UPDATE user_reward_state
			SET current_level = $2, current_tier = $3, last_level_up = NOW()
			WHERE user_id = $1
		`, userID, info.NewLevel, info.NewTier)
	} else {
		_, err = tx.Exec(ctx, `
			UPDATE user_reward_state
			SET current_level = $2, current_tier = $3
			WHERE user_id = $1
		`, userID, info.NewLevel, info.NewTier)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update level: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO points_history (user_id, points_earned, reason)
		VALUES ($1, $2, $3)
	`, userID, amount, reason)
	if err != nil {
		return nil, fmt.Errorf("failed to append points history: %w", err)
	}

	result := &reward.AwardResult{
		Granted:   true,
		Amount:    amount,
		NewTotal:  newTotal,
		NewLevel:  info.NewLevel,
		NewTier:   info.NewTier,
		LeveledUp: info.LeveledUp,
	}
	if info.LeveledUp {
		result.LevelUp = &info
	}
	return result, nil
}

// CheckDailyCombo awards the combo bonus when today's workout, water and
// sleep signals are all present. It re-reads the day's logs each time rather
// than tracking a running flag, so it is safe to call after every
// contributing action; the once-per-day gate handles repeats.
func (s *RewardService) CheckDailyCombo(ctx context.Context, userID uuid.UUID) (*reward.AwardResult, error) {
	today := s.clock.Today()

	var workoutDone, waterLogged, sleepLogged bool
	err := s.db.QueryRow(ctx, `
		SELECT
			EXISTS (SELECT 1 FROM workouts WHERE user_id = $1 AND date = $2),
			EXISTS (SELECT 1 FROM water_logs WHERE user_id = $1 AND date = $2),
			EXISTS (SELECT 1 FROM sleep_logs WHERE user_id = $1 AND date = $2)
	`, userID, today).Scan(&workoutDone, &waterLogged, &sleepLogged)
	if err != nil {
		return nil, fmt.Errorf("failed to check daily combo signals: %w", err)
	}

	if !workoutDone || !waterLogged || !sleepLogged {
		return &reward.AwardResult{Granted: false}, nil
	}

	return s.AwardOncePerDay(ctx, userID, reward.AwardDailyCombo)
}

// GetState returns the user's reward state, deriving level and tier from the
// stored total so a stale stored level can never be served.
func (s *RewardService) GetState(ctx context.Context, userID uuid.UUID) (*reward.State, error) {
	state := &reward.State{UserID: userID}
	err := s.db.QueryRow(ctx, `
		SELECT total_points, last_level_up, last_updated
		FROM user_reward_state
		WHERE user_id = $1
	`, userID).Scan(&state.TotalPoints, &state.LastLevelUp, &state.LastUpdated)

	if errors.Is(err, pgx.ErrNoRows) {
		state.CurrentLevel = 1
		state.CurrentTier = level.TierBronze
		return state, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get reward state: %w", err)
	}

	state.CurrentLevel = level.LevelForPoints(state.TotalPoints)
	state.CurrentTier = level.TierForLevel(state.CurrentLevel)
	return state, nil
}

// GetProgress returns where the user sits inside their current level.
func (s *RewardService) GetProgress(ctx context.Context, userID uuid.UUID) (*level.Progress, error) {
	state, err := s.GetState(ctx, userID)
	if err != nil {
		return nil, err
	}
	p := level.ProgressWithinLevel(state.TotalPoints)
	return &p, nil
}

// GetHistory lists the most recent point grants, newest first.
func (s *RewardService) GetHistory(ctx context.Context, userID uuid.UUID, limit int) ([]*reward.HistoryEntry, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	rows, err := s.db.Query(ctx, `
		SELECT id, points_earned, reason, created_at
		FROM points_history
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch points history: %w", err)
	}
	defer rows.Close()

	entries := make([]*reward.HistoryEntry, 0)
	for rows.Next() {
		e := &reward.HistoryEntry{UserID: userID}
		if err := rows.Scan(&e.ID, &e.PointsEarned, &e.Reason, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan history entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating history: %w", err)
	}
	return entries, nil
}
