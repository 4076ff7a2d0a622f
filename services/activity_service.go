package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"fitQuestAPI/internal/activity"
	"fitQuestAPI/internal/badge"
	"fitQuestAPI/internal/clock"
	"fitQuestAPI/internal/reward"
	"fitQuestAPI/internal/streak"
	"fitQuestAPI/utils"
)

// ActivityService persists activity logs and drives everything a log entry
// triggers: the matching streak touch, the award, the daily combo check,
// reward recalculation and badge evaluation. Follow-on evaluation is
// best-effort; the log write itself is the only hard failure.
type ActivityService struct {
	db       *pgxpool.Pool
	clock    clock.Clock
	streaks  *StreakService
	rewards  *RewardService
	calc     *RewardCalculatorService
	badges   *BadgeService
	notifier utils.Notifier
}

func NewActivityService(db *pgxpool.Pool, clk clock.Clock, streaks *StreakService, rewards *RewardService, calc *RewardCalculatorService, badges *BadgeService) *ActivityService {
	return &ActivityService{db: db, clock: clk, streaks: streaks, rewards: rewards, calc: calc, badges: badges}
}

// SetNotifier wires in-app notifications for level-ups, badges and streak
// milestones; nil disables them.
func (s *ActivityService) SetNotifier(n utils.Notifier) {
	s.notifier = n
}

// LogResult bundles what one activity log actually triggered.
type LogResult struct {
	Streak     *streak.TouchResult `json:"streak,omitempty"`
	Award      *reward.AwardResult `json:"award,omitempty"`
	ComboAward *reward.AwardResult `json:"combo_award,omitempty"`
	Earned     []*badge.Earned     `json:"badges_earned,omitempty"`
}

// LogWorkout records a session, advances the workout streak and pays the
// completion award. The streak is touched before the award so a streak that
// just reached seven days already boosts this workout's payout.
func (s *ActivityService) LogWorkout(ctx context.Context, userID uuid.UUID, workoutType string, durationMin int) (*activity.Workout, *LogResult, error) {
	if workoutType == "" {
		return nil, nil, fmt.Errorf("workout type is required")
	}
	if durationMin < 0 {
		return nil, nil, fmt.Errorf("duration cannot be negative")
	}

	w := &activity.Workout{UserID: userID, WorkoutType: workoutType, DurationMin: durationMin, Date: s.clock.Today()}
	err := s.db.QueryRow(ctx, `
		INSERT INTO workouts (user_id, workout_type, duration_min, date)
		VALUES ($1, $2, $3, $4)
		RETURNING id, logged_at
	`, userID, w.WorkoutType, w.DurationMin, w.Date).Scan(&w.ID, &w.LoggedAt)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to log workout: %w", err)
	}

	result := &LogResult{}
	result.Streak, err = s.streaks.Touch(ctx, userID, streak.TypeWorkout)
	if err != nil {
		log.Printf("ActivityService: workout streak touch failed for %s: %v", userID, err)
	} else if result.Streak.Continued && s.notifier != nil {
		utils.StreakMilestoneReached(s.notifier, userID, streak.TypeWorkout, result.Streak.CurrentStreak)
	}

	result.Award, err = s.rewards.Award(ctx, userID, reward.AwardWorkoutComplete, reward.BaseAmounts[reward.AwardWorkoutComplete], "workout_complete")
	if err != nil {
		log.Printf("ActivityService: workout award failed for %s: %v", userID, err)
	}

	s.afterLog(ctx, userID, result)
	return w, result, nil
}

// LogWater upserts today's hydration entry. The award and streak fire only
// on the first log of the day; later calls just bump the glass count.
func (s *ActivityService) LogWater(ctx context.Context, userID uuid.UUID, glasses int) (*activity.WaterLog, *LogResult, error) {
	if glasses <= 0 {
		return nil, nil, fmt.Errorf("glasses must be positive")
	}

	wl := &activity.WaterLog{UserID: userID, Date: s.clock.Today()}
	err := s.db.QueryRow(ctx, `
		INSERT INTO water_logs (user_id, glasses, date)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, date) DO UPDATE
		SET glasses = water_logs.glasses + EXCLUDED.glasses, logged_at = NOW()
		RETURNING id, glasses, logged_at
	`, userID, glasses, wl.Date).Scan(&wl.ID, &wl.Glasses, &wl.LoggedAt)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to log water: %w", err)
	}

	result := s.touchAndAward(ctx, userID, streak.TypeWater, reward.AwardWaterLog)
	s.afterLog(ctx, userID, result)
	return wl, result, nil
}

// LogSleep upserts last night's sleep entry; re-logging replaces the values.
func (s *ActivityService) LogSleep(ctx context.Context, userID uuid.UUID, hours float64, quality int) (*activity.SleepLog, *LogResult, error) {
	if hours <= 0 || hours > 24 {
		return nil, nil, fmt.Errorf("hours must be between 0 and 24")
	}
	if quality < 1 || quality > 5 {
		quality = 3
	}

	sl := &activity.SleepLog{UserID: userID, Hours: hours, Quality: quality, Date: s.clock.Today()}
	err := s.db.QueryRow(ctx, `
		INSERT INTO sleep_logs (user_id, hours, quality, date)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, date) DO UPDATE
		SET hours = EXCLUDED.hours, quality = EXCLUDED.quality, logged_at = NOW()
		RETURNING id, logged_at
	`, userID, sl.Hours, sl.Quality, sl.Date).Scan(&sl.ID, &sl.LoggedAt)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to log sleep: %w", err)
	}

	result := s.touchAndAward(ctx, userID, streak.TypeSleep, reward.AwardSleepLog)
	s.afterLog(ctx, userID, result)
	return sl, result, nil
}

// LogSteps upserts today's step count, keeping the highest value reported.
// The streak and award only fire once the daily goal is reached.
func (s *ActivityService) LogSteps(ctx context.Context, userID uuid.UUID, steps int) (*activity.StepLog, *LogResult, error) {
	if steps < 0 {
		return nil, nil, fmt.Errorf("steps cannot be negative")
	}

	sl := &activity.StepLog{UserID: userID, Date: s.clock.Today()}
	err := s.db.QueryRow(ctx, `
		INSERT INTO step_logs (user_id, steps, date)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, date) DO UPDATE
		SET steps = GREATEST(step_logs.steps, EXCLUDED.steps), logged_at = NOW()
		RETURNING id, steps, logged_at
	`, userID, steps, sl.Date).Scan(&sl.ID, &sl.Steps, &sl.LoggedAt)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to log steps: %w", err)
	}

	result := &LogResult{}
	if sl.Steps >= activity.DailyStepGoal {
		result = s.touchAndAward(ctx, userID, streak.TypeSteps, reward.AwardStepGoal)
	}
	s.afterLog(ctx, userID, result)
	return sl, result, nil
}

// LogPersonalRecord records a new best on an exercise.
func (s *ActivityService) LogPersonalRecord(ctx context.Context, userID uuid.UUID, exercise string, value float64, unit string) (*activity.PersonalRecord, error) {
	if exercise == "" {
		return nil, fmt.Errorf("exercise is required")
	}
	if value <= 0 {
		return nil, fmt.Errorf("value must be positive")
	}

	pr := &activity.PersonalRecord{UserID: userID, Exercise: exercise, Value: value, Unit: unit, Date: s.clock.Today()}
	err := s.db.QueryRow(ctx, `
		INSERT INTO personal_records (user_id, exercise, value, unit, date)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, logged_at
	`, userID, pr.Exercise, pr.Value, pr.Unit, pr.Date).Scan(&pr.ID, &pr.LoggedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to log personal record: %w", err)
	}

	if _, err := s.calc.Recalculate(ctx, userID); err != nil {
		log.Printf("ActivityService: reward recalculation failed for %s: %v", userID, err)
	}
	return pr, nil
}

// DailySignin advances the login streak and grants the daily check-in award.
func (s *ActivityService) DailySignin(ctx context.Context, userID uuid.UUID) (*LogResult, error) {
	result := s.touchAndAward(ctx, userID, streak.TypeLogin, reward.AwardDailySignin)
	return result, nil
}

// AwardFormReview grants the once-per-day form review award, called when a
// user submits a workout video for technique analysis.
func (s *ActivityService) AwardFormReview(ctx context.Context, userID uuid.UUID) (*reward.AwardResult, error) {
	return s.rewards.AwardOncePerDay(ctx, userID, reward.AwardFormReview)
}

func (s *ActivityService) touchAndAward(ctx context.Context, userID uuid.UUID, st streak.Type, at reward.AwardType) *LogResult {
	result := &LogResult{}
	var err error

	result.Streak, err = s.streaks.Touch(ctx, userID, st)
	if err != nil {
		log.Printf("ActivityService: %s streak touch failed for %s: %v", st, userID, err)
	} else if result.Streak.Continued && s.notifier != nil {
		utils.StreakMilestoneReached(s.notifier, userID, st, result.Streak.CurrentStreak)
	}
	result.Award, err = s.rewards.AwardOncePerDay(ctx, userID, at)
	if err != nil {
		log.Printf("ActivityService: %s award failed for %s: %v", at, userID, err)
	}
	return result
}

// afterLog runs the evaluation fan-out every log triggers. Failures here
// never fail the log request.
func (s *ActivityService) afterLog(ctx context.Context, userID uuid.UUID, result *LogResult) {
	combo, err := s.rewards.CheckDailyCombo(ctx, userID)
	if err != nil {
		log.Printf("ActivityService: combo check failed for %s: %v", userID, err)
	} else if combo.Granted {
		result.ComboAward = combo
	}

	if _, err := s.calc.Recalculate(ctx, userID); err != nil {
		log.Printf("ActivityService: reward recalculation failed for %s: %v", userID, err)
	}

	earned, err := s.badges.Evaluate(ctx, userID, nil)
	if err != nil {
		log.Printf("ActivityService: badge evaluation failed for %s: %v", userID, err)
	} else if len(earned) > 0 {
		result.Earned = earned
	}

	s.notify(userID, result)
}

func (s *ActivityService) notify(userID uuid.UUID, result *LogResult) {
	if s.notifier == nil {
		return
	}
	for _, award := range []*reward.AwardResult{result.Award, result.ComboAward} {
		if award != nil && award.LevelUp != nil {
			utils.LevelUpReached(s.notifier, userID, *award.LevelUp)
		}
	}
	for _, e := range result.Earned {
		utils.BadgeEarned(s.notifier, userID, e)
	}
}

// GetDaySummary aggregates one calendar day's signals.
func (s *ActivityService) GetDaySummary(ctx context.Context, userID uuid.UUID, date time.Time) (*activity.DaySummary, error) {
	date = clock.Midnight(date)
	summary := &activity.DaySummary{Date: date}

	err := s.db.QueryRow(ctx, `
		SELECT
			EXISTS (SELECT 1 FROM workouts WHERE user_id = $1 AND date = $2),
			EXISTS (SELECT 1 FROM water_logs WHERE user_id = $1 AND date = $2),
			EXISTS (SELECT 1 FROM sleep_logs WHERE user_id = $1 AND date = $2),
			COALESCE((SELECT steps FROM step_logs WHERE user_id = $1 AND date = $2), 0)
	`, userID, date).Scan(&summary.WorkoutDone, &summary.WaterLogged, &summary.SleepLogged, &summary.Steps)
	if err != nil {
		return nil, fmt.Errorf("failed to build day summary: %w", err)
	}
	return summary, nil
}

// GetCalendar returns a summary for every day of the given month.
func (s *ActivityService) GetCalendar(ctx context.Context, userID uuid.UUID, year int, month time.Month) ([]*activity.DaySummary, error) {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1)

	rows, err := s.db.Query(ctx, `
		SELECT d.date,
			EXISTS (SELECT 1 FROM workouts w WHERE w.user_id = $1 AND w.date = d.date),
			EXISTS (SELECT 1 FROM water_logs wl WHERE wl.user_id = $1 AND wl.date = d.date),
			EXISTS (SELECT 1 FROM sleep_logs sl WHERE sl.user_id = $1 AND sl.date = d.date),
			COALESCE((SELECT steps FROM step_logs st WHERE st.user_id = $1 AND st.date = d.date), 0)
		FROM generate_series($2::date, $3::date, '1 day') AS d(date)
		ORDER BY d.date
	`, userID, first, last)
	if err != nil {
		return nil, fmt.Errorf("failed to build calendar: %w", err)
	}
	defer rows.Close()

	out := make([]*activity.DaySummary, 0, 31)
	for rows.Next() {
		ds := &activity.DaySummary{}
		if err := rows.Scan(&ds.Date, &ds.WorkoutDone, &ds.WaterLogged, &ds.SleepLogged, &ds.Steps); err != nil {
			return nil, fmt.Errorf("failed to scan day summary: %w", err)
		}
		out = append(out, ds)
	}
	return out, rows.Err()
}

// GetStats aggregates the trailing window of activity. days is clamped to
// either a weekly or monthly view.
func (s *ActivityService) GetStats(ctx context.Context, userID uuid.UUID, days int) (*activity.Stats, error) {
	if days != 30 {
		days = 7
	}
	today := s.clock.Today()
	from := today.AddDate(0, 0, -(days - 1))

	stats := &activity.Stats{Days: days}
	err := s.db.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM workouts WHERE user_id = $1 AND date >= $2),
			(SELECT COALESCE(SUM(duration_min), 0) FROM workouts WHERE user_id = $1 AND date >= $2),
			(SELECT COUNT(DISTINCT date) FROM workouts WHERE user_id = $1 AND date >= $2),
			(SELECT COALESCE(SUM(steps), 0) FROM step_logs WHERE user_id = $1 AND date >= $2),
			(SELECT COALESCE(AVG(hours), 0) FROM sleep_logs WHERE user_id = $1 AND date >= $2),
			(SELECT COALESCE(SUM(glasses), 0) FROM water_logs WHERE user_id = $1 AND date >= $2),
			(SELECT COUNT(*) FROM personal_records WHERE user_id = $1 AND date >= $2)
	`, userID, from).Scan(
		&stats.Workouts, &stats.WorkoutMinutes, &stats.ActiveDays,
		&stats.TotalSteps, &stats.AvgSleepHours, &stats.WaterGlasses, &stats.PersonalRecords)
	if err != nil {
		return nil, fmt.Errorf("failed to build activity stats: %w", err)
	}
	return stats, nil
}

// GetRecentWorkouts lists the user's latest sessions.
func (s *ActivityService) GetRecentWorkouts(ctx context.Context, userID uuid.UUID, limit int) ([]*activity.Workout, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	rows, err := s.db.Query(ctx, `
		SELECT id, user_id, workout_type, duration_min, date, logged_at
		FROM workouts
		WHERE user_id = $1
		ORDER BY logged_at DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list workouts: %w", err)
	}
	defer rows.Close()

	out := make([]*activity.Workout, 0)
	for rows.Next() {
		w := &activity.Workout{}
		if err := rows.Scan(&w.ID, &w.UserID, &w.WorkoutType, &w.DurationMin, &w.Date, &w.LoggedAt); err != nil {
			return nil, fmt.Errorf("failed to scan workout: %w", err)
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// GetPersonalRecords lists the user's records, newest first.
func (s *ActivityService) GetPersonalRecords(ctx context.Context, userID uuid.UUID) ([]*activity.PersonalRecord, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, user_id, exercise, value, unit, date, logged_at
		FROM personal_records
		WHERE user_id = $1
		ORDER BY logged_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list personal records: %w", err)
	}
	defer rows.Close()

	out := make([]*activity.PersonalRecord, 0)
	for rows.Next() {
		pr := &activity.PersonalRecord{}
		if err := rows.Scan(&pr.ID, &pr.UserID, &pr.Exercise, &pr.Value, &pr.Unit, &pr.Date, &pr.LoggedAt); err != nil {
			return nil, fmt.Errorf("failed to scan personal record: %w", err)
		}
		out = append(out, pr)
	}
	return out, rows.Err()
}
