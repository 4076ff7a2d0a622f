package database

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Connect builds the shared pgx pool with the same knobs production runs with.
func Connect(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	poolConfig.MaxConns = 25
	poolConfig.MinConns = 5
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return pool, nil
}

// InitializeTables creates all tables if they don't exist, in dependency
// order. The daily_awards unique constraint is what makes once-per-day
// awarding safe under concurrent requests; do not remove it.
func InitializeTables(ctx context.Context, pool *pgxpool.Pool) error {
	statements := []string{
		`CREATE EXTENSION IF NOT EXISTS "pgcrypto"`,

		`CREATE TABLE IF NOT EXISTS users (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			clerk_id TEXT UNIQUE NOT NULL,
			email TEXT NOT NULL,
			username TEXT NOT NULL,
			first_name TEXT DEFAULT '',
			last_name TEXT DEFAULT '',
			image_url TEXT DEFAULT '',
			email_verified BOOLEAN DEFAULT FALSE,
			created_at TIMESTAMPTZ DEFAULT NOW(),
			updated_at TIMESTAMPTZ DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS user_reward_state (
			user_id UUID PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
			total_points INTEGER NOT NULL DEFAULT 0 CHECK (total_points >= 0),
			current_level INTEGER NOT NULL DEFAULT 1,
			current_tier TEXT NOT NULL DEFAULT 'bronze',
			last_level_up TIMESTAMPTZ,
			last_updated TIMESTAMPTZ DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS points_history (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			points_earned INTEGER NOT NULL,
			reason TEXT NOT NULL,
			created_at TIMESTAMPTZ DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS daily_awards (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			award_type TEXT NOT NULL,
			award_date DATE NOT NULL,
			points_awarded INTEGER NOT NULL,
			created_at TIMESTAMPTZ DEFAULT NOW(),
			UNIQUE (user_id, award_type, award_date)
		)`,

		`CREATE TABLE IF NOT EXISTS streaks (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			streak_type TEXT NOT NULL,
			current_streak INTEGER NOT NULL DEFAULT 0,
			longest_streak INTEGER NOT NULL DEFAULT 0,
			last_activity_date DATE,
			created_at TIMESTAMPTZ DEFAULT NOW(),
			updated_at TIMESTAMPTZ DEFAULT NOW(),
			UNIQUE (user_id, streak_type)
		)`,

		`CREATE TABLE IF NOT EXISTS reward_definitions (
			reward_key TEXT PRIMARY KEY,
			category TEXT NOT NULL,
			title TEXT NOT NULL,
			required_count INTEGER NOT NULL,
			required_streak INTEGER DEFAULT 0,
			point_value INTEGER NOT NULL,
			active BOOLEAN DEFAULT TRUE
		)`,

		`CREATE TABLE IF NOT EXISTS reward_progress (
			user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			reward_key TEXT NOT NULL REFERENCES reward_definitions(reward_key),
			current_progress INTEGER NOT NULL DEFAULT 0,
			is_completed BOOLEAN NOT NULL DEFAULT FALSE,
			is_claimed BOOLEAN NOT NULL DEFAULT FALSE,
			completed_at TIMESTAMPTZ,
			claimed_at TIMESTAMPTZ,
			PRIMARY KEY (user_id, reward_key)
		)`,

		`CREATE TABLE IF NOT EXISTS badges (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			title TEXT UNIQUE NOT NULL,
			description TEXT DEFAULT '',
			criteria_type TEXT NOT NULL,
			required_value INTEGER NOT NULL,
			point_value INTEGER NOT NULL,
			created_at TIMESTAMPTZ DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS badge_progress (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			badge_id UUID NOT NULL REFERENCES badges(id) ON DELETE CASCADE,
			current_value INTEGER NOT NULL DEFAULT 0,
			is_completed BOOLEAN NOT NULL DEFAULT FALSE,
			completed_at TIMESTAMPTZ,
			UNIQUE (user_id, badge_id)
		)`,

		`CREATE TABLE IF NOT EXISTS generated_challenges (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			title TEXT NOT NULL,
			description TEXT DEFAULT '',
			difficulty TEXT NOT NULL,
			required_count INTEGER NOT NULL,
			current_progress INTEGER NOT NULL DEFAULT 0,
			point_value INTEGER NOT NULL,
			category TEXT NOT NULL,
			expires_at TIMESTAMPTZ,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			is_completed BOOLEAN NOT NULL DEFAULT FALSE,
			is_deleted BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ DEFAULT NOW(),
			completed_at TIMESTAMPTZ
		)`,

		`CREATE TABLE IF NOT EXISTS challenge_feedback (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			challenge_id UUID REFERENCES generated_challenges(id) ON DELETE SET NULL,
			feedback_type TEXT NOT NULL,
			feedback_text TEXT DEFAULT '',
			difficulty_at_event TEXT NOT NULL,
			tier_at_event TEXT NOT NULL,
			created_at TIMESTAMPTZ DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS generation_events (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			created_at TIMESTAMPTZ DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS workouts (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			workout_type TEXT NOT NULL,
			duration_min INTEGER NOT NULL DEFAULT 0,
			date DATE NOT NULL,
			logged_at TIMESTAMPTZ DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS water_logs (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			glasses INTEGER NOT NULL DEFAULT 0,
			date DATE NOT NULL,
			logged_at TIMESTAMPTZ DEFAULT NOW(),
			UNIQUE (user_id, date)
		)`,

		`CREATE TABLE IF NOT EXISTS sleep_logs (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			hours DOUBLE PRECISION NOT NULL DEFAULT 0,
			quality INTEGER NOT NULL DEFAULT 3,
			date DATE NOT NULL,
			logged_at TIMESTAMPTZ DEFAULT NOW(),
			UNIQUE (user_id, date)
		)`,

		`CREATE TABLE IF NOT EXISTS step_logs (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			steps INTEGER NOT NULL DEFAULT 0,
			date DATE NOT NULL,
			logged_at TIMESTAMPTZ DEFAULT NOW(),
			UNIQUE (user_id, date)
		)`,

		`CREATE TABLE IF NOT EXISTS personal_records (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			exercise TEXT NOT NULL,
			value DOUBLE PRECISION NOT NULL,
			unit TEXT DEFAULT '',
			date DATE NOT NULL,
			logged_at TIMESTAMPTZ DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS notifications (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			type TEXT NOT NULL,
			title TEXT NOT NULL,
			message TEXT DEFAULT '',
			is_read BOOLEAN NOT NULL DEFAULT FALSE,
			data JSONB DEFAULT '{}',
			created_at TIMESTAMPTZ DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS device_tokens (
			token TEXT PRIMARY KEY,
			user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			platform TEXT NOT NULL DEFAULT 'android',
			created_at TIMESTAMPTZ DEFAULT NOW()
		)`,

		`CREATE INDEX IF NOT EXISTS idx_workouts_user_date ON workouts (user_id, date)`,
		`CREATE INDEX IF NOT EXISTS idx_points_history_user ON points_history (user_id, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_challenges_user_active ON generated_challenges (user_id, category) WHERE is_active AND NOT is_deleted AND NOT is_completed`,
		`CREATE INDEX IF NOT EXISTS idx_generation_events_user ON generation_events (user_id, created_at)`,
	}

	for _, stmt := range statements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to run migration: %w", err)
		}
	}

	if err := seedCatalogs(ctx, pool); err != nil {
		return err
	}

	log.Println("Database tables initialized")
	return nil
}

// seedCatalogs inserts the static reward and badge catalogs. Reruns are
// no-ops; existing rows are never overwritten.
func seedCatalogs(ctx context.Context, pool *pgxpool.Pool) error {
	rewardSeed := `
	INSERT INTO reward_definitions (reward_key, category, title, required_count, required_streak, point_value, active) VALUES
		('weekly_warrior', 'weekly', 'Weekly Warrior', 3, 0, 40, TRUE),
		('step_streak_7', 'weekly', 'Step Streak', 7, 7, 60, TRUE),
		('weekly_powerup', 'weekly', 'Weekly Powerup', 1, 0, 30, TRUE),
		('perfect_month', 'monthly', 'Perfect Month', 30, 30, 200, TRUE),
		('challenge_complete', 'weekly', 'Hydration Hero', 7, 7, 50, TRUE)
	ON CONFLICT (reward_key) DO NOTHING
	`
	if _, err := pool.Exec(ctx, rewardSeed); err != nil {
		return fmt.Errorf("failed to seed reward definitions: %w", err)
	}

	badgeSeed := `
	INSERT INTO badges (title, description, criteria_type, required_value, point_value) VALUES
		('Iron Week', 'Keep a 7-day workout streak', 'workout_streak', 7, 75),
		('Marathon Month', 'Keep a 30-day workout streak', 'workout_streak', 30, 300),
		('Hydration Habit', 'Keep a 14-day hydration streak', 'hydration_streak', 14, 100),
		('Step Machine', 'Walk 70,000 steps in a week', 'weekly_steps', 70000, 120),
		('Record Breaker', 'Set 5 personal records in a month', 'monthly_prs', 5, 150),
		('Well Rested', 'Improve average sleep by 15%', 'sleep_improvement', 15, 80)
	ON CONFLICT (title) DO NOTHING
	`
	if _, err := pool.Exec(ctx, badgeSeed); err != nil {
		return fmt.Errorf("failed to seed badges: %w", err)
	}

	return nil
}
