package level

import "testing"

func TestLevelForPointsBreakpoints(t *testing.T) {
	cases := []struct {
		points int
		want   int
	}{
		{-50, 1},
		{0, 1},
		{99, 1},
		{100, 2}, // exact breakpoint belongs to the new level
		{249, 2},
		{250, 3},
		{999, 5},
		{1000, 6},
		{13149, 20},
		{13150, 21},
		{13649, 21},
		{13650, 22},
		{13150 + 500*10, 31},
	}

	for _, c := range cases {
		if got := LevelForPoints(c.points); got != c.want {
			t.Errorf("LevelForPoints(%d) = %d, want %d", c.points, got, c.want)
		}
	}
}

func TestLevelForPointsMonotonic(t *testing.T) {
	prev := 0
	prevTier := 0
	for p := 0; p <= 20000; p += 7 {
		lvl := LevelForPoints(p)
		if lvl < prev {
			t.Fatalf("level decreased at %d points: %d -> %d", p, prev, lvl)
		}
		ord := tierOrder[TierForLevel(lvl)]
		if ord < prevTier {
			t.Fatalf("tier decreased at %d points", p)
		}
		prev = lvl
		prevTier = ord
	}
}

func TestPointsForLevelRoundTrip(t *testing.T) {
	for lvl := 1; lvl <= 30; lvl++ {
		min := PointsForLevel(lvl)
		if got := LevelForPoints(min); got != lvl {
			t.Errorf("LevelForPoints(PointsForLevel(%d)) = %d", lvl, got)
		}
		if lvl > 1 {
			if got := LevelForPoints(min - 1); got != lvl-1 {
				t.Errorf("one point below level %d floor gave level %d", lvl, got)
			}
		}
	}
}

func TestTierForLevel(t *testing.T) {
	cases := []struct {
		lvl  int
		want Tier
	}{
		{1, TierBronze},
		{5, TierBronze},
		{6, TierSilver},
		{10, TierSilver},
		{11, TierGold},
		{16, TierPlatinum},
		{21, TierChampion},
		{40, TierChampion},
	}
	for _, c := range cases {
		if got := TierForLevel(c.lvl); got != c.want {
			t.Errorf("TierForLevel(%d) = %s, want %s", c.lvl, got, c.want)
		}
	}
}

func TestDetectLevelUpSamePoints(t *testing.T) {
	for _, p := range []int{0, 50, 100, 13150, 99999} {
		if info := DetectLevelUp(p, p); info.LeveledUp {
			t.Errorf("DetectLevelUp(%d, %d) claimed a level-up", p, p)
		}
	}
}

func TestDetectLevelUpMultiLevelJump(t *testing.T) {
	newPoints := PointsForLevel(21) + 500
	info := DetectLevelUp(0, newPoints)

	if !info.LeveledUp {
		t.Fatal("expected a level-up")
	}
	if info.NewLevel != 22 {
		t.Errorf("NewLevel = %d, want 22", info.NewLevel)
	}
	if info.LevelsGained != 21 {
		t.Errorf("LevelsGained = %d, want 21", info.LevelsGained)
	}
	if !info.TierChanged || info.OldTier != TierBronze || info.NewTier != TierChampion {
		t.Errorf("tier transition wrong: %+v", info)
	}
}

func TestDetectLevelUpWithinLevel(t *testing.T) {
	info := DetectLevelUp(0, 60)
	if info.LeveledUp {
		t.Errorf("0 -> 60 points should stay level 1, got %+v", info)
	}
	if info.NewLevel != 1 {
		t.Errorf("NewLevel = %d, want 1", info.NewLevel)
	}
}

func TestProgressWithinLevel(t *testing.T) {
	p := ProgressWithinLevel(150)
	if p.Level != 2 || p.Tier != TierBronze {
		t.Fatalf("unexpected level/tier: %+v", p)
	}
	if p.PointsIntoLevel != 50 || p.PointsToNext != 100 {
		t.Errorf("progress math wrong: %+v", p)
	}

	// Open-ended region keeps a finite next-level target.
	p = ProgressWithinLevel(13150 + 250)
	if p.Level != 21 || p.PointsToNext != 250 {
		t.Errorf("open-ended progress wrong: %+v", p)
	}
}
