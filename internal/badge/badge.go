package badge

import (
	"time"

	"github.com/google/uuid"
)

// CriteriaType names the derived metric a badge threshold is compared against.
type CriteriaType string

const (
	CriteriaWorkoutStreak    CriteriaType = "workout_streak"
	CriteriaHydrationStreak  CriteriaType = "hydration_streak"
	CriteriaWeeklySteps      CriteriaType = "weekly_steps"
	CriteriaMonthlyPRs       CriteriaType = "monthly_prs"
	CriteriaSleepImprovement CriteriaType = "sleep_improvement"
)

type Badge struct {
	ID            uuid.UUID    `json:"id"`
	Title         string       `json:"title"`
	Description   string       `json:"description"`
	CriteriaType  CriteriaType `json:"criteria_type"`
	RequiredValue int          `json:"required_value"`
	PointValue    int          `json:"point_value"`
	CreatedAt     time.Time    `json:"created_at"`
}

type Progress struct {
	ID           uuid.UUID  `json:"id"`
	UserID       uuid.UUID  `json:"user_id"`
	BadgeID      uuid.UUID  `json:"badge_id"`
	CurrentValue int        `json:"current_value"`
	IsCompleted  bool       `json:"is_completed"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

type WithProgress struct {
	Badge
	CurrentValue int        `json:"current_value"`
	IsCompleted  bool       `json:"is_completed"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

// Earned is one element of an evaluate result: the badge that flipped to
// completed and the points the ledger paid for it.
type Earned struct {
	Badge         Badge `json:"badge"`
	PointsAwarded int   `json:"points_awarded"`
}
