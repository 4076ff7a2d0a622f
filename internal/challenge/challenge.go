package challenge

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"fitQuestAPI/internal/level"
)

// ErrNotFound means no challenge with that id belongs to the user.
// ErrAlreadySettled means the row exists but is completed, deleted or
// expired; callers treat it as a benign conflict, not a failure.
var (
	ErrNotFound       = errors.New("challenge not found")
	ErrAlreadySettled = errors.New("challenge already settled")
)

type Difficulty string

const (
	DifficultyEasy   Difficulty = "Easy"
	DifficultyMedium Difficulty = "Medium"
	DifficultyHard   Difficulty = "Hard"
)

// PointValues is the fixed payout table. Externally-suggested point values
// (including whatever the model returns) are never trusted.
var PointValues = map[Difficulty]int{
	DifficultyEasy:   15,
	DifficultyMedium: 30,
	DifficultyHard:   50,
}

// Harder steps difficulty up one tier; Hard stays Hard.
func Harder(d Difficulty) Difficulty {
	switch d {
	case DifficultyEasy:
		return DifficultyMedium
	case DifficultyMedium:
		return DifficultyHard
	default:
		return DifficultyHard
	}
}

// Easier steps difficulty down one tier; Easy stays Easy.
func Easier(d Difficulty) Difficulty {
	switch d {
	case DifficultyHard:
		return DifficultyMedium
	case DifficultyMedium:
		return DifficultyEasy
	default:
		return DifficultyEasy
	}
}

type Category string

const (
	CategoryDaily     Category = "daily"
	CategoryWeekly    Category = "weekly"
	CategoryMonthly   Category = "monthly"
	CategoryUniversal Category = "universal"
)

var Categories = []Category{CategoryDaily, CategoryWeekly, CategoryMonthly, CategoryUniversal}

// TTL returns the expiry window for a challenge of this category; ok=false
// means the category never expires.
func (c Category) TTL() (time.Duration, bool) {
	switch c {
	case CategoryDaily:
		return 24 * time.Hour, true
	case CategoryWeekly:
		return 7 * 24 * time.Hour, true
	case CategoryMonthly:
		return 30 * 24 * time.Hour, true
	default:
		return 0, false
	}
}

// Reclassify derives the category from an expiry window instead of trusting a
// draft's stated category.
func Reclassify(expiresAt *time.Time, now time.Time) Category {
	if expiresAt == nil {
		return CategoryUniversal
	}
	window := expiresAt.Sub(now)
	switch {
	case window <= 24*time.Hour:
		return CategoryDaily
	case window <= 7*24*time.Hour:
		return CategoryWeekly
	default:
		return CategoryMonthly
	}
}

type FeedbackType string

const (
	FeedbackTooHard     FeedbackType = "too_hard"
	FeedbackTooEasy     FeedbackType = "too_easy"
	FeedbackNotRelevant FeedbackType = "not_relevant"
	FeedbackBoring      FeedbackType = "boring"
	FeedbackDeclined    FeedbackType = "declined"
)

// Draft is an ephemeral suggestion; it becomes a Challenge only on accept.
type Draft struct {
	Title         string     `json:"title"`
	Description   string     `json:"description"`
	Difficulty    Difficulty `json:"difficulty"`
	RequiredCount int        `json:"required_count"`
	PointValue    int        `json:"point_value"`
	Category      Category   `json:"category"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
}

type Challenge struct {
	ID              uuid.UUID  `json:"id"`
	UserID          uuid.UUID  `json:"user_id"`
	Title           string     `json:"title"`
	Description     string     `json:"description"`
	Difficulty      Difficulty `json:"difficulty"`
	RequiredCount   int        `json:"required_count"`
	CurrentProgress int        `json:"current_progress"`
	PointValue      int        `json:"point_value"`
	Category        Category   `json:"category"`
	ExpiresAt       *time.Time `json:"expires_at,omitempty"`
	IsActive        bool       `json:"is_active"`
	IsCompleted     bool       `json:"is_completed"`
	IsDeleted       bool       `json:"is_deleted"`
	CreatedAt       time.Time  `json:"created_at"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
}

type Feedback struct {
	ID                uuid.UUID    `json:"id"`
	UserID            uuid.UUID    `json:"user_id"`
	ChallengeID       *uuid.UUID   `json:"challenge_id,omitempty"`
	FeedbackType      FeedbackType `json:"feedback_type"`
	FeedbackText      string       `json:"feedback_text,omitempty"`
	DifficultyAtEvent Difficulty   `json:"difficulty_at_event"`
	TierAtEvent       level.Tier   `json:"tier_at_event"`
	CreatedAt         time.Time    `json:"created_at"`
}

// Snapshot is the personalization context handed to the generator: everything
// it needs is gathered before the LLM call so no transaction spans it.
type Snapshot struct {
	Tier             level.Tier
	Level            int
	RecentWorkouts   int
	RecentSteps      int
	CompletedTitles  []string
	ActiveTitles     []string
	FeedbackCounts   map[FeedbackType]int
}
