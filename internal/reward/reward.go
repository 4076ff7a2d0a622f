package reward

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"fitQuestAPI/internal/level"
)

// AwardType is a closed enum of reasons the ledger grants points.
type AwardType string

const (
	AwardWaterLog        AwardType = "water_log"
	AwardSleepLog        AwardType = "sleep_log"
	AwardStepGoal        AwardType = "step_goal"
	AwardDailySignin     AwardType = "daily_signin"
	AwardDailyCombo      AwardType = "daily_combo"
	AwardFormReview      AwardType = "form_review"
	AwardWorkoutComplete AwardType = "workout_complete"
	AwardChallenge       AwardType = "challenge"
	AwardBadge           AwardType = "badge"
	AwardRewardClaim     AwardType = "reward_claim"
)

// BaseAmounts holds the fixed base value for each award type. Challenge and
// badge awards carry their own point values and are not listed here.
var BaseAmounts = map[AwardType]int{
	AwardDailySignin:     10,
	AwardWaterLog:        5,
	AwardSleepLog:        5,
	AwardStepGoal:        15,
	AwardDailyCombo:      25,
	AwardFormReview:      15,
	AwardWorkoutComplete: 50,
}

// dailyGated award types may be granted at most once per calendar day.
var dailyGated = map[AwardType]bool{
	AwardWaterLog:    true,
	AwardSleepLog:    true,
	AwardStepGoal:    true,
	AwardDailySignin: true,
	AwardDailyCombo:  true,
	AwardFormReview:  true,
}

func (t AwardType) DailyGated() bool { return dailyGated[t] }

// StreakBonusEligible marks the activity-derived awards that receive the
// workout-streak multiplier. Fixed catalog values (challenge, badge, reward
// claims) are paid exactly as listed.
func (t AwardType) StreakBonusEligible() bool {
	return dailyGated[t] || t == AwardWorkoutComplete
}

const (
	// The +10% engagement bonus kicks in at a 7-day workout streak.
	StreakBonusThreshold  = 7
	StreakBonusMultiplier = 1.10
)

type State struct {
	UserID       uuid.UUID  `json:"user_id"`
	TotalPoints  int        `json:"total_points"`
	CurrentLevel int        `json:"current_level"`
	CurrentTier  level.Tier `json:"current_tier"`
	LastLevelUp  *time.Time `json:"last_level_up,omitempty"`
	LastUpdated  time.Time  `json:"last_updated"`
}

type DailyAward struct {
	ID            uuid.UUID `json:"id"`
	UserID        uuid.UUID `json:"user_id"`
	AwardType     AwardType `json:"award_type"`
	AwardDate     time.Time `json:"award_date"`
	PointsAwarded int       `json:"points_awarded"`
	CreatedAt     time.Time `json:"created_at"`
}

type HistoryEntry struct {
	ID           uuid.UUID `json:"id"`
	UserID       uuid.UUID `json:"user_id"`
	PointsEarned int       `json:"points_earned"`
	Reason       string    `json:"reason"`
	CreatedAt    time.Time `json:"created_at"`
}

// ErrUnknownReward means the key is not in the active catalog.
// ErrNotClaimable means the progress row is not completed yet or was
// already claimed; a benign conflict rather than a failure.
var (
	ErrUnknownReward = errors.New("unknown reward")
	ErrNotClaimable  = errors.New("reward not claimable")
)

// Key identifies a multi-day goal in the static reward catalog.
type Key string

const (
	KeyWeeklyWarrior     Key = "weekly_warrior"
	KeyStepStreak7       Key = "step_streak_7"
	KeyWeeklyPowerup     Key = "weekly_powerup"
	KeyPerfectMonth      Key = "perfect_month"
	KeyChallengeComplete Key = "challenge_complete"
)

type Definition struct {
	RewardKey      Key    `json:"reward_key"`
	Category       string `json:"category"`
	Title          string `json:"title"`
	RequiredCount  int    `json:"required_count"`
	RequiredStreak int    `json:"required_streak,omitempty"`
	PointValue     int    `json:"point_value"`
	Active         bool   `json:"active"`
}

type Progress struct {
	UserID          uuid.UUID  `json:"user_id"`
	RewardKey       Key        `json:"reward_key"`
	CurrentProgress int        `json:"current_progress"`
	IsCompleted     bool       `json:"is_completed"`
	IsClaimed       bool       `json:"is_claimed"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	ClaimedAt       *time.Time `json:"claimed_at,omitempty"`
}

// AwardResult reports what a ledger call actually did. Granted=false with a
// nil error is the benign already-awarded outcome.
type AwardResult struct {
	Granted   bool           `json:"granted"`
	Amount    int            `json:"amount"`
	NewTotal  int            `json:"new_total"`
	NewLevel  int            `json:"new_level"`
	NewTier   level.Tier     `json:"new_tier"`
	LeveledUp bool           `json:"leveled_up"`
	LevelUp   *level.LevelUp `json:"level_up,omitempty"`
}

// ApplyStreakBonus multiplies base by the engagement bonus when the workout
// streak qualifies, rounding to nearest once. The rounded integer is what
// gets persisted; floats never reach storage.
func ApplyStreakBonus(base int, workoutStreak int) int {
	if workoutStreak < StreakBonusThreshold {
		return base
	}
	return int(float64(base)*StreakBonusMultiplier + 0.5)
}
