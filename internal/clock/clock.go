package clock

import "time"

// Clock is the single source of truth for "now" and "today" in the rewards
// core. All day-boundary logic (streaks, daily awards, combo checks) uses
// Today() so the policy lives in one place. Dates are UTC calendar days.
type Clock interface {
	Now() time.Time
	Today() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

func (systemClock) Today() time.Time {
	return Midnight(time.Now().UTC())
}

// System returns the wall clock, normalized to UTC.
func System() Clock { return systemClock{} }

// Fixed is a test clock pinned to a specific instant.
type Fixed struct {
	Instant time.Time
}

func (f *Fixed) Now() time.Time   { return f.Instant }
func (f *Fixed) Today() time.Time { return Midnight(f.Instant) }

// Advance moves the fixed clock forward.
func (f *Fixed) Advance(d time.Duration) { f.Instant = f.Instant.Add(d) }

// Midnight truncates t to its UTC calendar date.
func Midnight(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// SameDay reports whether a and b fall on the same UTC calendar date.
func SameDay(a, b time.Time) bool {
	return Midnight(a).Equal(Midnight(b))
}
