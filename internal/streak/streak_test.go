package streak

import (
	"testing"
	"time"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestAdvanceFirstTouch(t *testing.T) {
	cur, longest, continued, changed := Advance(nil, day(2025, 3, 10), 0, 0)
	if cur != 1 || longest != 1 || continued || !changed {
		t.Fatalf("first touch: got cur=%d longest=%d continued=%v changed=%v", cur, longest, continued, changed)
	}
}

func TestAdvanceSameDayIdempotent(t *testing.T) {
	last := day(2025, 3, 10)
	cur, longest, continued, changed := Advance(&last, day(2025, 3, 10), 4, 9)
	if changed {
		t.Fatal("same-day touch should not change anything")
	}
	if cur != 4 || longest != 9 || continued {
		t.Fatalf("same-day touch: got cur=%d longest=%d continued=%v", cur, longest, continued)
	}

	// Timestamps within the same calendar day count as the same day.
	last = day(2025, 3, 10).Add(7 * time.Hour)
	_, _, _, changed = Advance(&last, day(2025, 3, 10).Add(22*time.Hour), 4, 9)
	if changed {
		t.Fatal("intra-day timestamps should still be a no-op")
	}
}

func TestAdvanceConsecutiveDays(t *testing.T) {
	var last *time.Time
	cur, longest := 0, 0

	for i, want := range []int{1, 2, 3} {
		d := day(2025, 3, 10).AddDate(0, 0, i)
		var changed bool
		cur, longest, _, changed = Advance(last, d, cur, longest)
		if !changed || cur != want {
			t.Fatalf("day %d: cur=%d want=%d", i, cur, want)
		}
		ld := d
		last = &ld
	}
	if longest != 3 {
		t.Errorf("longest = %d, want 3", longest)
	}
}

func TestAdvanceGapResets(t *testing.T) {
	last := day(2025, 3, 10)
	cur, longest, continued, changed := Advance(&last, day(2025, 3, 15), 6, 6)
	if !changed || continued {
		t.Fatal("gap should reset, not continue")
	}
	if cur != 1 {
		t.Errorf("cur = %d, want 1 after gap", cur)
	}
	if longest != 6 {
		t.Errorf("longest = %d, should survive the reset", longest)
	}
}

func TestAdvanceFutureLastDateResets(t *testing.T) {
	// Clock skew: a recorded activity date after "today" is treated as a break.
	last := day(2025, 3, 12)
	cur, _, continued, changed := Advance(&last, day(2025, 3, 10), 3, 3)
	if !changed || continued || cur != 1 {
		t.Fatalf("future last date: cur=%d continued=%v changed=%v", cur, continued, changed)
	}
}

func TestAdvanceLongestInvariant(t *testing.T) {
	last := day(2025, 3, 10)
	cur, longest, _, _ := Advance(&last, day(2025, 3, 11), 9, 9)
	if cur != 10 || longest != 10 {
		t.Fatalf("longest must track current: cur=%d longest=%d", cur, longest)
	}
}

func TestConsecutiveFrom(t *testing.T) {
	anchor := day(2025, 5, 20)

	dates := []time.Time{
		day(2025, 5, 20),
		day(2025, 5, 19),
		day(2025, 5, 18),
		day(2025, 5, 15), // gap before this
	}
	if n := ConsecutiveFrom(dates, anchor); n != 3 {
		t.Errorf("run ending today = %d, want 3", n)
	}

	// Run that ended yesterday is still alive.
	dates = []time.Time{day(2025, 5, 19), day(2025, 5, 18)}
	if n := ConsecutiveFrom(dates, anchor); n != 2 {
		t.Errorf("run ending yesterday = %d, want 2", n)
	}

	// Run that ended two days ago is dead.
	dates = []time.Time{day(2025, 5, 18), day(2025, 5, 17)}
	if n := ConsecutiveFrom(dates, anchor); n != 0 {
		t.Errorf("stale run = %d, want 0", n)
	}

	if n := ConsecutiveFrom(nil, anchor); n != 0 {
		t.Errorf("empty dates = %d, want 0", n)
	}

	// Duplicates and timestamps collapse to calendar days.
	dates = []time.Time{
		day(2025, 5, 20).Add(8 * time.Hour),
		day(2025, 5, 20).Add(21 * time.Hour),
		day(2025, 5, 19).Add(3 * time.Hour),
	}
	if n := ConsecutiveFrom(dates, anchor); n != 2 {
		t.Errorf("dedup run = %d, want 2", n)
	}
}
