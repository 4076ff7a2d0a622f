package reward

import "testing"

func TestApplyStreakBonus(t *testing.T) {
	cases := []struct {
		base   int
		streak int
		want   int
	}{
		{50, 0, 50},
		{50, 6, 50},
		{50, 7, 55},
		{50, 30, 55},
		{10, 7, 11},
		{5, 7, 6},  // 5.5 rounds up
		{15, 7, 17}, // 16.5 rounds up
		{25, 7, 28}, // 27.5 rounds up
	}
	for _, c := range cases {
		if got := ApplyStreakBonus(c.base, c.streak); got != c.want {
			t.Errorf("ApplyStreakBonus(%d, %d) = %d, want %d", c.base, c.streak, got, c.want)
		}
	}
}

func TestDailyGatedTypes(t *testing.T) {
	gated := []AwardType{AwardWaterLog, AwardSleepLog, AwardStepGoal, AwardDailySignin, AwardDailyCombo, AwardFormReview}
	for _, at := range gated {
		if !at.DailyGated() {
			t.Errorf("%s should be gated to once per day", at)
		}
		if _, ok := BaseAmounts[at]; !ok {
			t.Errorf("%s has no base amount", at)
		}
	}
	for _, at := range []AwardType{AwardWorkoutComplete, AwardChallenge, AwardBadge, AwardRewardClaim} {
		if at.DailyGated() {
			t.Errorf("%s should not be daily gated", at)
		}
	}
}

func TestStreakBonusEligibility(t *testing.T) {
	if !AwardWorkoutComplete.StreakBonusEligible() {
		t.Error("workout completion should receive the streak bonus")
	}
	for _, at := range []AwardType{AwardChallenge, AwardBadge, AwardRewardClaim} {
		if at.StreakBonusEligible() {
			t.Errorf("%s pays a fixed catalog value, no bonus", at)
		}
	}
}
