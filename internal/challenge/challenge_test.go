package challenge

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"
)

func TestNormalizeCoercesDifficulty(t *testing.T) {
	cases := []struct {
		in   Difficulty
		want Difficulty
	}{
		{DifficultyEasy, DifficultyEasy},
		{"easy", DifficultyEasy},
		{"HARD", DifficultyHard},
		{"extreme", DifficultyMedium},
		{"", DifficultyMedium},
	}
	for _, c := range cases {
		d := Normalize(Draft{Title: "x", Difficulty: c.in})
		if d.Difficulty != c.want {
			t.Errorf("Normalize difficulty %q = %s, want %s", c.in, d.Difficulty, c.want)
		}
	}
}

func TestNormalizeForcesPointTable(t *testing.T) {
	d := Normalize(Draft{Title: "x", Difficulty: DifficultyHard, PointValue: 9999})
	if d.PointValue != 50 {
		t.Errorf("hard point value = %d, want 50", d.PointValue)
	}
	d = Normalize(Draft{Title: "x", Difficulty: DifficultyEasy, PointValue: -3})
	if d.PointValue != 15 {
		t.Errorf("easy point value = %d, want 15", d.PointValue)
	}
}

func TestNormalizeClampsAndTruncates(t *testing.T) {
	long := strings.Repeat("a", 500)
	d := Normalize(Draft{Title: long, Description: long, RequiredCount: 0})
	if len(d.Title) != 80 || len(d.Description) != 280 {
		t.Errorf("lengths = %d/%d, want 80/280", len(d.Title), len(d.Description))
	}
	if d.RequiredCount != 1 {
		t.Errorf("required count = %d, want 1", d.RequiredCount)
	}
	d = Normalize(Draft{Title: "x", RequiredCount: 5000})
	if d.RequiredCount != 100 {
		t.Errorf("required count = %d, want 100", d.RequiredCount)
	}
}

func TestNormalizeTruncatesOnRuneBoundary(t *testing.T) {
	long := strings.Repeat("ü", 500)
	d := Normalize(Draft{Title: long, Description: long})
	if !utf8.ValidString(d.Title) || !utf8.ValidString(d.Description) {
		t.Fatal("truncation split a multi-byte rune")
	}
	if got := utf8.RuneCountInString(d.Title); got != 80 {
		t.Errorf("title rune count = %d, want 80", got)
	}
	if got := utf8.RuneCountInString(d.Description); got != 280 {
		t.Errorf("description rune count = %d, want 280", got)
	}
}

func TestDifficultySteps(t *testing.T) {
	if Harder(DifficultyEasy) != DifficultyMedium || Harder(DifficultyMedium) != DifficultyHard || Harder(DifficultyHard) != DifficultyHard {
		t.Error("Harder ladder wrong")
	}
	if Easier(DifficultyHard) != DifficultyMedium || Easier(DifficultyMedium) != DifficultyEasy || Easier(DifficultyEasy) != DifficultyEasy {
		t.Error("Easier ladder wrong")
	}
}

func TestReclassify(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	if got := Reclassify(nil, now); got != CategoryUniversal {
		t.Errorf("nil expiry = %s, want universal", got)
	}

	h := func(d time.Duration) *time.Time { t := now.Add(d); return &t }

	if got := Reclassify(h(6*time.Hour), now); got != CategoryDaily {
		t.Errorf("6h = %s, want daily", got)
	}
	if got := Reclassify(h(3*24*time.Hour), now); got != CategoryWeekly {
		t.Errorf("3d = %s, want weekly", got)
	}
	if got := Reclassify(h(20*24*time.Hour), now); got != CategoryMonthly {
		t.Errorf("20d = %s, want monthly", got)
	}
}

func TestFallbackDeterministicAndDeduped(t *testing.T) {
	a := Fallback(CategoryWeekly, DifficultyMedium, 3, nil)
	b := Fallback(CategoryWeekly, DifficultyMedium, 3, nil)
	if len(a) != 3 || len(b) != 3 {
		t.Fatalf("expected 3 drafts, got %d and %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Errorf("fallback not deterministic at %d: %+v vs %+v", i, a[i], b[i])
		}
	}

	// Duplicate suppression removes matching titles, case-insensitively.
	withActive := Fallback(CategoryWeekly, DifficultyMedium, 3, []string{"consistency builder"})
	if len(withActive) != 2 {
		t.Fatalf("expected 2 drafts after dedupe, got %d", len(withActive))
	}
	for _, d := range withActive {
		if strings.EqualFold(d.Title, "Consistency Builder") {
			t.Error("deduped title still present")
		}
	}
}

func TestFallbackScalesWithDifficulty(t *testing.T) {
	easy := Fallback(CategoryWeekly, DifficultyEasy, 1, nil)
	hard := Fallback(CategoryWeekly, DifficultyHard, 1, nil)
	if len(easy) != 1 || len(hard) != 1 {
		t.Fatal("expected one draft each")
	}
	if easy[0].RequiredCount >= hard[0].RequiredCount {
		t.Errorf("hard count %d should exceed easy count %d", hard[0].RequiredCount, easy[0].RequiredCount)
	}
	if easy[0].PointValue != 15 || hard[0].PointValue != 50 {
		t.Errorf("point values %d/%d, want 15/50", easy[0].PointValue, hard[0].PointValue)
	}
}

func TestAttemptParseValid(t *testing.T) {
	raw := "```json\n" + `[
		{"title": "Run Club", "description": "Run 5 times", "difficulty": "Hard", "required_count": 5, "point_value": 9000},
		{"title": "Stretch", "description": "Stretch daily", "difficulty": "easy", "required_count": 300}
	]` + "\n```"

	drafts, err := AttemptParse(raw, CategoryWeekly)
	if err != nil {
		t.Fatalf("AttemptParse failed: %v", err)
	}
	if len(drafts) != 2 {
		t.Fatalf("got %d drafts, want 2", len(drafts))
	}
	if drafts[0].PointValue != 50 {
		t.Errorf("model-supplied point value not overridden: %d", drafts[0].PointValue)
	}
	if drafts[1].Difficulty != DifficultyEasy || drafts[1].RequiredCount != 100 {
		t.Errorf("normalization not applied: %+v", drafts[1])
	}
	if drafts[0].Category != CategoryWeekly {
		t.Errorf("category = %s, want weekly", drafts[0].Category)
	}
}

func TestAttemptParseFailures(t *testing.T) {
	for _, raw := range []string{
		"",
		"Sorry, I can't help with that.",
		"[]",
		`[{"description": "no title"}]`,
		`[{"title": }]`,
	} {
		if _, err := AttemptParse(raw, CategoryDaily); err == nil {
			t.Errorf("AttemptParse(%q) should fail", raw)
		}
	}
}

func TestBuildPromptMentionsContext(t *testing.T) {
	snap := Snapshot{
		Tier:           "silver",
		Level:          8,
		RecentWorkouts: 4,
		ActiveTitles:   []string{"Run Club"},
		FeedbackCounts: map[FeedbackType]int{FeedbackTooHard: 3},
	}
	p := BuildPrompt(snap, CategoryWeekly, 2, DifficultyMedium)

	for _, want := range []string{"silver", "level 8", "Run Club", "too_hard", "10-20%", "Medium"} {
		if !strings.Contains(p, want) {
			t.Errorf("prompt missing %q:\n%s", want, p)
		}
	}
}
