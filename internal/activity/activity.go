package activity

import (
	"time"

	"github.com/google/uuid"
)

// Workout is one completed session, logged by the mobile app.
type Workout struct {
	ID          uuid.UUID `json:"id"`
	UserID      uuid.UUID `json:"user_id"`
	WorkoutType string    `json:"workout_type"`
	DurationMin int       `json:"duration_min"`
	Date        time.Time `json:"date"`
	LoggedAt    time.Time `json:"logged_at"`
}

// WaterLog is a day's hydration entry, upserted per (user, date).
type WaterLog struct {
	ID       uuid.UUID `json:"id"`
	UserID   uuid.UUID `json:"user_id"`
	Glasses  int       `json:"glasses"`
	Date     time.Time `json:"date"`
	LoggedAt time.Time `json:"logged_at"`
}

// SleepLog is a night's sleep entry, upserted per (user, date).
type SleepLog struct {
	ID       uuid.UUID `json:"id"`
	UserID   uuid.UUID `json:"user_id"`
	Hours    float64   `json:"hours"`
	Quality  int       `json:"quality"` // 1..5, self reported
	Date     time.Time `json:"date"`
	LoggedAt time.Time `json:"logged_at"`
}

// StepLog is a day's step count, upserted per (user, date).
type StepLog struct {
	ID       uuid.UUID `json:"id"`
	UserID   uuid.UUID `json:"user_id"`
	Steps    int       `json:"steps"`
	Date     time.Time `json:"date"`
	LoggedAt time.Time `json:"logged_at"`
}

// PersonalRecord is a new best on an exercise.
type PersonalRecord struct {
	ID       uuid.UUID `json:"id"`
	UserID   uuid.UUID `json:"user_id"`
	Exercise string    `json:"exercise"`
	Value    float64   `json:"value"`
	Unit     string    `json:"unit"`
	Date     time.Time `json:"date"`
	LoggedAt time.Time `json:"logged_at"`
}

// DailyStepGoal is the step threshold used by the step_goal award and the
// 7-day step streak reward.
const DailyStepGoal = 8000

// DaySummary aggregates one calendar day's signals for combo checks and
// calendar views.
type DaySummary struct {
	Date        time.Time `json:"date"`
	WorkoutDone bool      `json:"workout_done"`
	WaterLogged bool      `json:"water_logged"`
	SleepLogged bool      `json:"sleep_logged"`
	Steps       int       `json:"steps"`
}

// Stats aggregates a trailing window of activity for the stats endpoints.
type Stats struct {
	Days            int     `json:"days"`
	Workouts        int     `json:"workouts"`
	WorkoutMinutes  int     `json:"workout_minutes"`
	ActiveDays      int     `json:"active_days"`
	TotalSteps      int     `json:"total_steps"`
	AvgSleepHours   float64 `json:"avg_sleep_hours"`
	WaterGlasses    int     `json:"water_glasses"`
	PersonalRecords int     `json:"personal_records"`
}
