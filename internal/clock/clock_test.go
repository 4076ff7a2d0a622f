package clock

import (
	"testing"
	"time"
)

func TestMidnight(t *testing.T) {
	in := time.Date(2025, 3, 14, 23, 59, 59, 0, time.UTC)
	want := time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC)
	if got := Midnight(in); !got.Equal(want) {
		t.Errorf("Midnight(%v) = %v, want %v", in, got, want)
	}
}

func TestMidnightNormalizesZone(t *testing.T) {
	// 23:30 in UTC+5 is 18:30 UTC; the UTC date decides the day.
	zone := time.FixedZone("east", 5*3600)
	in := time.Date(2025, 3, 15, 1, 30, 0, 0, zone)
	want := time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC)
	if got := Midnight(in); !got.Equal(want) {
		t.Errorf("Midnight(%v) = %v, want %v", in, got, want)
	}
}

func TestSameDay(t *testing.T) {
	a := time.Date(2025, 3, 14, 0, 0, 1, 0, time.UTC)
	b := time.Date(2025, 3, 14, 23, 59, 59, 0, time.UTC)
	if !SameDay(a, b) {
		t.Error("expected same day")
	}
	if SameDay(a, b.Add(time.Second)) {
		t.Error("expected different days across midnight")
	}
}

func TestFixedAdvance(t *testing.T) {
	f := &Fixed{Instant: time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)}

	today := f.Today()
	f.Advance(11 * time.Hour)
	if !f.Today().Equal(today) {
		t.Error("advancing 11h from noon should not cross midnight")
	}
	f.Advance(2 * time.Hour)
	if !f.Today().Equal(today.AddDate(0, 0, 1)) {
		t.Error("expected next day after crossing midnight")
	}
}

func TestSystemIsUTC(t *testing.T) {
	now := System().Now()
	if now.Location() != time.UTC {
		t.Errorf("System().Now() location = %v, want UTC", now.Location())
	}
}
