package level

// Tier is one of the five ordered progression bands.
type Tier string

const (
	TierBronze   Tier = "bronze"
	TierSilver   Tier = "silver"
	TierGold     Tier = "gold"
	TierPlatinum Tier = "platinum"
	TierChampion Tier = "champion"
)

// tierOrder is used for "did the tier change upward" comparisons.
var tierOrder = map[Tier]int{
	TierBronze:   1,
	TierSilver:   2,
	TierGold:     3,
	TierPlatinum: 4,
	TierChampion: 5,
}

type breakpoint struct {
	level     int
	minPoints int
	tier      Tier
}

// Point gaps widen as the tier increases. Levels past maxTableLevel cost
// openEndedStep points each, forever.
var breakpoints = []breakpoint{
	{1, 0, TierBronze},
	{2, 100, TierBronze},
	{3, 250, TierBronze},
	{4, 450, TierBronze},
	{5, 700, TierBronze},
	{6, 1000, TierSilver},
	{7, 1400, TierSilver},
	{8, 1850, TierSilver},
	{9, 2350, TierSilver},
	{10, 2900, TierSilver},
	{11, 3550, TierGold},
	{12, 4250, TierGold},
	{13, 5000, TierGold},
	{14, 5800, TierGold},
	{15, 6650, TierGold},
	{16, 7600, TierPlatinum},
	{17, 8600, TierPlatinum},
	{18, 9650, TierPlatinum},
	{19, 10750, TierPlatinum},
	{20, 11900, TierPlatinum},
	{21, 13150, TierChampion},
}

const (
	maxTableLevel = 21
	openEndedStep = 500
)

// LevelForPoints maps a cumulative point total to a level. Total, monotonic,
// closed lower bound: points exactly at a breakpoint belong to the new level.
func LevelForPoints(totalPoints int) int {
	if totalPoints < 0 {
		totalPoints = 0
	}

	last := breakpoints[maxTableLevel-1]
	if totalPoints >= last.minPoints {
		return maxTableLevel + (totalPoints-last.minPoints)/openEndedStep
	}

	lvl := 1
	for _, bp := range breakpoints {
		if totalPoints < bp.minPoints {
			break
		}
		lvl = bp.level
	}
	return lvl
}

// TierForLevel maps a level to its tier. Everything past the table is Champion.
func TierForLevel(lvl int) Tier {
	if lvl < 1 {
		lvl = 1
	}
	if lvl > maxTableLevel {
		return TierChampion
	}
	return breakpoints[lvl-1].tier
}

// PointsForLevel returns the minimum cumulative points required for a level.
func PointsForLevel(lvl int) int {
	if lvl < 1 {
		lvl = 1
	}
	if lvl > maxTableLevel {
		return breakpoints[maxTableLevel-1].minPoints + (lvl-maxTableLevel)*openEndedStep
	}
	return breakpoints[lvl-1].minPoints
}

// TierAbove reports whether a ranks strictly above b.
func TierAbove(a, b Tier) bool {
	return tierOrder[a] > tierOrder[b]
}

type Progress struct {
	Level           int     `json:"level"`
	Tier            Tier    `json:"tier"`
	PointsIntoLevel int     `json:"points_into_level"`
	PointsToNext    int     `json:"points_to_next"`
	Percent         float64 `json:"percent"`
}

// ProgressWithinLevel describes where totalPoints sits inside its level.
func ProgressWithinLevel(totalPoints int) Progress {
	if totalPoints < 0 {
		totalPoints = 0
	}
	lvl := LevelForPoints(totalPoints)
	floor := PointsForLevel(lvl)
	ceil := PointsForLevel(lvl + 1)

	p := Progress{
		Level:           lvl,
		Tier:            TierForLevel(lvl),
		PointsIntoLevel: totalPoints - floor,
		PointsToNext:    ceil - totalPoints,
	}
	if span := ceil - floor; span > 0 {
		p.Percent = float64(p.PointsIntoLevel) / float64(span) * 100
	}
	return p
}

type LevelUp struct {
	LeveledUp    bool `json:"leveled_up"`
	OldLevel     int  `json:"old_level"`
	NewLevel     int  `json:"new_level"`
	LevelsGained int  `json:"levels_gained"`
	TierChanged  bool `json:"tier_changed"`
	OldTier      Tier `json:"old_tier"`
	NewTier      Tier `json:"new_tier"`
}

// DetectLevelUp compares two point totals. Pure: equal levels never claim a
// level-up, multi-level jumps report the exact delta.
func DetectLevelUp(oldPoints, newPoints int) LevelUp {
	oldLvl := LevelForPoints(oldPoints)
	newLvl := LevelForPoints(newPoints)

	info := LevelUp{
		OldLevel: oldLvl,
		NewLevel: newLvl,
		OldTier:  TierForLevel(oldLvl),
		NewTier:  TierForLevel(newLvl),
	}
	if newLvl > oldLvl {
		info.LeveledUp = true
		info.LevelsGained = newLvl - oldLvl
		info.TierChanged = info.NewTier != info.OldTier
	}
	return info
}
