package streak

import (
	"time"

	"github.com/google/uuid"

	"fitQuestAPI/internal/clock"
)

// Type enumerates the activity streaks we track per user.
type Type string

const (
	TypeWorkout Type = "workout"
	TypeWater   Type = "water"
	TypeSleep   Type = "sleep"
	TypeLogin   Type = "login"
	TypeSteps   Type = "steps"
)

var validTypes = map[Type]bool{
	TypeWorkout: true,
	TypeWater:   true,
	TypeSleep:   true,
	TypeLogin:   true,
	TypeSteps:   true,
}

func (t Type) Valid() bool { return validTypes[t] }

type Streak struct {
	ID               uuid.UUID  `json:"id"`
	UserID           uuid.UUID  `json:"user_id"`
	StreakType       Type       `json:"streak_type"`
	CurrentStreak    int        `json:"current_streak"`
	LongestStreak    int        `json:"longest_streak"`
	LastActivityDate *time.Time `json:"last_activity_date"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// TouchResult is what StreakTracker.Touch reports back to callers.
type TouchResult struct {
	CurrentStreak int  `json:"current_streak"`
	LongestStreak int  `json:"longest_streak"`
	Continued     bool `json:"continued"`
}

// Advance applies the consecutive-calendar-day rule to a streak counter.
// Idempotent per day: a second touch on the same date changes nothing.
// Yesterday continues the streak, any other gap (including future-dated
// records from clock skew) resets to 1. Returns the new values plus whether
// the row needs writing.
func Advance(last *time.Time, today time.Time, current, longest int) (newCurrent, newLongest int, continued, changed bool) {
	today = clock.Midnight(today)

	switch {
	case last == nil:
		newCurrent = 1
	case clock.SameDay(*last, today):
		return current, longest, false, false
	case clock.SameDay(last.AddDate(0, 0, 1), today):
		newCurrent = current + 1
		continued = true
	default:
		newCurrent = 1
	}

	newLongest = longest
	if newCurrent > newLongest {
		newLongest = newCurrent
	}
	return newCurrent, newLongest, continued, true
}

// ConsecutiveFrom counts the run of consecutive calendar days in dates ending
// at anchor (anchor itself, or yesterday relative to it, starts the run).
// Used by the reward calculator for windowed aggregates so weekly/monthly
// goals share the exact day rules of the persisted streaks. dates may be in
// any order and may contain duplicates.
func ConsecutiveFrom(dates []time.Time, anchor time.Time) int {
	seen := make(map[time.Time]bool, len(dates))
	for _, d := range dates {
		seen[clock.Midnight(d)] = true
	}

	day := clock.Midnight(anchor)
	if !seen[day] {
		// A run that ended yesterday still counts as alive.
		day = day.AddDate(0, 0, -1)
		if !seen[day] {
			return 0
		}
	}

	n := 0
	for seen[day] {
		n++
		day = day.AddDate(0, 0, -1)
	}
	return n
}
