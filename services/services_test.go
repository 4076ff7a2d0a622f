package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"fitQuestAPI/database"
	"fitQuestAPI/internal/challenge"
	"fitQuestAPI/internal/clock"
	"fitQuestAPI/internal/reward"
	"fitQuestAPI/internal/streak"
)

// These tests run against a real database, like the rest of the service
// layer does in production. They skip when DATABASE_URL is not set.
func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()

	_ = godotenv.Load("../.env")
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("DATABASE_URL not set, skipping database tests")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := database.Connect(ctx, dbURL)
	if err != nil {
		t.Fatalf("failed to connect to database: %v", err)
	}
	t.Cleanup(db.Close)

	if err := database.InitializeTables(ctx, db); err != nil {
		t.Fatalf("failed to initialize tables: %v", err)
	}
	return db
}

func createTestUser(t *testing.T, db *pgxpool.Pool) uuid.UUID {
	t.Helper()

	id := uuid.New()
	ctx := context.Background()
	_, err := db.Exec(ctx, `
		INSERT INTO users (id, clerk_id, email, username)
		VALUES ($1, $2, $3, $4)
	`, id, "test_"+id.String(), fmt.Sprintf("%s@example.com", id), "tester")
	if err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}

	t.Cleanup(func() {
		db.Exec(context.Background(), `DELETE FROM users WHERE id = $1`, id)
	})
	return id
}

func TestStreakTouchIdempotentPerDay(t *testing.T) {
	db := setupTestDB(t)
	userID := createTestUser(t, db)
	clk := &clock.Fixed{Instant: time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)}
	svc := NewStreakService(db, clk)
	ctx := context.Background()

	first, err := svc.Touch(ctx, userID, streak.TypeWorkout)
	if err != nil {
		t.Fatalf("first touch failed: %v", err)
	}
	if first.CurrentStreak != 1 {
		t.Errorf("got streak %d after first touch, want 1", first.CurrentStreak)
	}

	second, err := svc.Touch(ctx, userID, streak.TypeWorkout)
	if err != nil {
		t.Fatalf("second touch failed: %v", err)
	}
	if second.CurrentStreak != 1 {
		t.Errorf("got streak %d after same-day touch, want 1", second.CurrentStreak)
	}

	clk.Advance(24 * time.Hour)
	third, err := svc.Touch(ctx, userID, streak.TypeWorkout)
	if err != nil {
		t.Fatalf("next-day touch failed: %v", err)
	}
	if third.CurrentStreak != 2 || !third.Continued {
		t.Errorf("got streak %d continued=%v after next-day touch, want 2 true", third.CurrentStreak, third.Continued)
	}

	// A two-day gap resets to 1 but longest is preserved.
	clk.Advance(3 * 24 * time.Hour)
	fourth, err := svc.Touch(ctx, userID, streak.TypeWorkout)
	if err != nil {
		t.Fatalf("post-gap touch failed: %v", err)
	}
	if fourth.CurrentStreak != 1 || fourth.LongestStreak != 2 {
		t.Errorf("got streak %d longest %d after gap, want 1 and 2", fourth.CurrentStreak, fourth.LongestStreak)
	}
}

func TestAwardOncePerDayDedupe(t *testing.T) {
	db := setupTestDB(t)
	userID := createTestUser(t, db)
	clk := &clock.Fixed{Instant: time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)}
	streaks := NewStreakService(db, clk)
	rewards := NewRewardService(db, clk, streaks)
	ctx := context.Background()

	first, err := rewards.AwardOncePerDay(ctx, userID, reward.AwardWaterLog)
	if err != nil {
		t.Fatalf("first award failed: %v", err)
	}
	if !first.Granted || first.Amount != reward.BaseAmounts[reward.AwardWaterLog] {
		t.Errorf("got granted=%v amount=%d, want granted with base amount", first.Granted, first.Amount)
	}

	second, err := rewards.AwardOncePerDay(ctx, userID, reward.AwardWaterLog)
	if err != nil {
		t.Fatalf("duplicate award errored: %v", err)
	}
	if second.Granted {
		t.Error("duplicate same-day award must not grant")
	}
	if second.NewTotal != first.NewTotal {
		t.Errorf("duplicate changed total: %d -> %d", first.NewTotal, second.NewTotal)
	}

	// Next day the gate opens again.
	clk.Advance(24 * time.Hour)
	third, err := rewards.AwardOncePerDay(ctx, userID, reward.AwardWaterLog)
	if err != nil {
		t.Fatalf("next-day award failed: %v", err)
	}
	if !third.Granted {
		t.Error("next-day award must grant")
	}
}

func TestAwardLevelUp(t *testing.T) {
	db := setupTestDB(t)
	userID := createTestUser(t, db)
	clk := &clock.Fixed{Instant: time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)}
	streaks := NewStreakService(db, clk)
	rewards := NewRewardService(db, clk, streaks)
	ctx := context.Background()

	// 120 points crosses the level 2 breakpoint at 100.
	result, err := rewards.Award(ctx, userID, reward.AwardChallenge, 120, "test")
	if err != nil {
		t.Fatalf("award failed: %v", err)
	}
	if !result.LeveledUp || result.NewLevel != 2 {
		t.Errorf("got leveledUp=%v level=%d, want level 2", result.LeveledUp, result.NewLevel)
	}

	state, err := rewards.GetState(ctx, userID)
	if err != nil {
		t.Fatalf("get state failed: %v", err)
	}
	if state.TotalPoints != 120 || state.CurrentLevel != 2 {
		t.Errorf("got total=%d level=%d, want 120 and 2", state.TotalPoints, state.CurrentLevel)
	}
	if state.LastLevelUp == nil {
		t.Error("last_level_up not stamped on level-up")
	}
}

func TestStreakBonusAppliesAtThreshold(t *testing.T) {
	db := setupTestDB(t)
	userID := createTestUser(t, db)
	clk := &clock.Fixed{Instant: time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)}
	streaks := NewStreakService(db, clk)
	rewards := NewRewardService(db, clk, streaks)
	ctx := context.Background()

	// Build a 7-day workout streak.
	for i := 0; i < 7; i++ {
		if _, err := streaks.Touch(ctx, userID, streak.TypeWorkout); err != nil {
			t.Fatalf("touch %d failed: %v", i, err)
		}
		clk.Advance(24 * time.Hour)
	}
	clk.Advance(-24 * time.Hour)

	result, err := rewards.Award(ctx, userID, reward.AwardWorkoutComplete, 50, "workout_complete")
	if err != nil {
		t.Fatalf("award failed: %v", err)
	}
	if result.Amount != 55 {
		t.Errorf("got amount %d with 7-day streak, want 55", result.Amount)
	}
}

// stubLLM returns a fixed response or error, standing in for the model.
type stubLLM struct {
	response string
	err      error
}

func (s *stubLLM) Generate(ctx context.Context, prompt, systemInstruction string) (string, error) {
	return s.response, s.err
}

func TestChallengeGenerateFallsBackOnModelError(t *testing.T) {
	db := setupTestDB(t)
	userID := createTestUser(t, db)
	clk := &clock.Fixed{Instant: time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)}
	streaks := NewStreakService(db, clk)
	rewards := NewRewardService(db, clk, streaks)
	svc := NewChallengeService(db, clk, &stubLLM{err: fmt.Errorf("model down")}, rewards)
	ctx := context.Background()

	drafts, err := svc.Generate(ctx, userID, challenge.CategoryDaily, 3)
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	if len(drafts) == 0 {
		t.Fatal("expected fallback drafts when the model fails")
	}
	for _, d := range drafts {
		if d.PointValue != challenge.PointValues[d.Difficulty] {
			t.Errorf("draft %q point value %d does not match table", d.Title, d.PointValue)
		}
		if d.Category != challenge.CategoryDaily {
			t.Errorf("draft %q category %s, want daily", d.Title, d.Category)
		}
		if d.ExpiresAt == nil {
			t.Errorf("draft %q has no expiry for daily category", d.Title)
		}
	}
}

func TestChallengeAcceptCompletePays(t *testing.T) {
	db := setupTestDB(t)
	userID := createTestUser(t, db)
	clk := &clock.Fixed{Instant: time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)}
	streaks := NewStreakService(db, clk)
	rewards := NewRewardService(db, clk, streaks)
	svc := NewChallengeService(db, clk, nil, rewards)
	ctx := context.Background()

	exp := clk.Now().Add(24 * time.Hour)
	draft := challenge.Draft{
		Title:         "Test Pushup Ladder",
		Description:   "Do the thing",
		Difficulty:    challenge.DifficultyEasy,
		RequiredCount: 1,
		ExpiresAt:     &exp,
	}

	c, err := svc.Accept(ctx, userID, draft)
	if err != nil {
		t.Fatalf("accept failed: %v", err)
	}
	if c.PointValue != challenge.PointValues[challenge.DifficultyEasy] {
		t.Errorf("got point value %d, want %d", c.PointValue, challenge.PointValues[challenge.DifficultyEasy])
	}

	// Accepting the same title again returns the existing row.
	again, err := svc.Accept(ctx, userID, draft)
	if err != nil {
		t.Fatalf("re-accept failed: %v", err)
	}
	if again.ID != c.ID {
		t.Error("re-accepting an active title created a duplicate")
	}

	result, _, err := svc.Complete(ctx, userID, c.ID)
	if err != nil {
		t.Fatalf("complete failed: %v", err)
	}
	if !result.Granted || result.Amount != c.PointValue {
		t.Errorf("got granted=%v amount=%d, want point value payout", result.Granted, result.Amount)
	}

	// Double completion is a benign conflict, not a payout.
	if _, _, err := svc.Complete(ctx, userID, c.ID); !errors.Is(err, challenge.ErrAlreadySettled) {
		t.Errorf("got %v, want ErrAlreadySettled on double completion", err)
	}
}

func TestIncrementProgressSettlesAtRequiredCount(t *testing.T) {
	db := setupTestDB(t)
	userID := createTestUser(t, db)
	clk := &clock.Fixed{Instant: time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)}
	streaks := NewStreakService(db, clk)
	rewards := NewRewardService(db, clk, streaks)
	svc := NewChallengeService(db, clk, nil, rewards)
	ctx := context.Background()

	exp := clk.Now().Add(24 * time.Hour)
	c, err := svc.Accept(ctx, userID, challenge.Draft{
		Title:         "Test Step Count Builder",
		Description:   "Walk it off",
		Difficulty:    challenge.DifficultyMedium,
		RequiredCount: 5,
		ExpiresAt:     &exp,
	})
	if err != nil {
		t.Fatalf("accept failed: %v", err)
	}

	updated, result, _, err := svc.IncrementProgress(ctx, userID, c.ID, 4)
	if err != nil {
		t.Fatalf("increment failed: %v", err)
	}
	if updated.CurrentProgress != 4 || updated.IsCompleted || result != nil {
		t.Errorf("got progress=%d completed=%v, want 4 and still active", updated.CurrentProgress, updated.IsCompleted)
	}

	updated, result, replacement, err := svc.IncrementProgress(ctx, userID, c.ID, 1)
	if err != nil {
		t.Fatalf("final increment failed: %v", err)
	}
	if !updated.IsCompleted {
		t.Error("challenge did not settle at required count")
	}
	if result == nil || result.Amount != challenge.PointValues[challenge.DifficultyMedium] {
		t.Errorf("got result %+v, want Medium payout", result)
	}
	if replacement == nil || replacement.Difficulty != challenge.DifficultyHard {
		t.Errorf("got replacement %+v, want a Hard draft", replacement)
	}
}

func TestDeclinePersistsOnlyFeedback(t *testing.T) {
	db := setupTestDB(t)
	userID := createTestUser(t, db)
	clk := &clock.Fixed{Instant: time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)}
	streaks := NewStreakService(db, clk)
	rewards := NewRewardService(db, clk, streaks)
	svc := NewChallengeService(db, clk, nil, rewards)
	ctx := context.Background()

	draft := challenge.Draft{
		Title:         "Test Burpee Blitz",
		Description:   "No thanks",
		Difficulty:    challenge.DifficultyHard,
		RequiredCount: 10,
	}
	if err := svc.Decline(ctx, userID, draft, challenge.FeedbackTooHard, "way too much"); err != nil {
		t.Fatalf("decline failed: %v", err)
	}

	var challenges int
	if err := db.QueryRow(ctx, `SELECT COUNT(*) FROM generated_challenges WHERE user_id = $1`, userID).Scan(&challenges); err != nil {
		t.Fatalf("failed to count challenges: %v", err)
	}
	if challenges != 0 {
		t.Errorf("decline created %d challenge rows, want none", challenges)
	}

	history, err := svc.GetFeedbackHistory(ctx, userID, 10)
	if err != nil {
		t.Fatalf("failed to read feedback: %v", err)
	}
	if len(history) != 1 || history[0].FeedbackType != challenge.FeedbackTooHard {
		t.Errorf("got feedback history %+v, want one too_hard entry", history)
	}
	// The declined title rides along as generation context.
	if !strings.Contains(history[0].FeedbackText, draft.Title) {
		t.Errorf("feedback text %q does not mention the declined title", history[0].FeedbackText)
	}
}

func TestReplacementKeepsCategory(t *testing.T) {
	db := setupTestDB(t)
	userID := createTestUser(t, db)
	clk := &clock.Fixed{Instant: time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)}
	streaks := NewStreakService(db, clk)
	rewards := NewRewardService(db, clk, streaks)
	svc := NewChallengeService(db, clk, nil, rewards)
	ctx := context.Background()

	// A 7-day expiry classifies the challenge as weekly on accept.
	exp := clk.Now().Add(7 * 24 * time.Hour)
	c, err := svc.Accept(ctx, userID, challenge.Draft{
		Title:         "Test Weekly Distance Goal",
		Description:   "Cover the distance",
		Difficulty:    challenge.DifficultyMedium,
		RequiredCount: 1,
		ExpiresAt:     &exp,
	})
	if err != nil {
		t.Fatalf("accept failed: %v", err)
	}
	if c.Category != challenge.CategoryWeekly {
		t.Fatalf("got category %s, want weekly", c.Category)
	}

	_, replacement, err := svc.Complete(ctx, userID, c.ID)
	if err != nil {
		t.Fatalf("complete failed: %v", err)
	}
	if replacement == nil {
		t.Fatal("expected a replacement draft")
	}
	if replacement.Category != challenge.CategoryWeekly {
		t.Errorf("got replacement category %s, want weekly", replacement.Category)
	}
	if replacement.Difficulty != challenge.DifficultyHard {
		t.Errorf("got replacement difficulty %s, want Hard", replacement.Difficulty)
	}
	if replacement.ExpiresAt == nil {
		t.Fatal("weekly replacement has no expiry")
	}
	if got := replacement.ExpiresAt.Sub(clk.Now()); got != 7*24*time.Hour {
		t.Errorf("got replacement TTL %v, want 7 days", got)
	}
}

func TestEnsureQuotaCoversAllCategories(t *testing.T) {
	db := setupTestDB(t)
	userID := createTestUser(t, db)
	clk := &clock.Fixed{Instant: time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)}
	streaks := NewStreakService(db, clk)
	rewards := NewRewardService(db, clk, streaks)
	svc := NewChallengeService(db, clk, nil, rewards)
	ctx := context.Background()

	if _, err := svc.EnsureQuota(ctx, userID); err != nil {
		t.Fatalf("ensure quota failed: %v", err)
	}

	active, err := svc.ListActive(ctx, userID)
	if err != nil {
		t.Fatalf("failed to list active challenges: %v", err)
	}
	counts := make(map[challenge.Category]int)
	for _, c := range active {
		counts[c.Category]++
	}
	for _, category := range challenge.Categories {
		if counts[category] == 0 {
			t.Errorf("category %s has no active challenges after top-up", category)
		}
	}
}

func TestClaimIsOneShot(t *testing.T) {
	db := setupTestDB(t)
	userID := createTestUser(t, db)
	clk := &clock.Fixed{Instant: time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)}
	streaks := NewStreakService(db, clk)
	rewards := NewRewardService(db, clk, streaks)
	calc := NewRewardCalculatorService(db, clk, rewards)
	ctx := context.Background()

	// A personal record this week completes weekly_powerup.
	_, err := db.Exec(ctx, `
		INSERT INTO personal_records (user_id, exercise, value, unit, date)
		VALUES ($1, 'bench', 100, 'kg', $2)
	`, userID, clk.Today())
	if err != nil {
		t.Fatalf("failed to insert personal record: %v", err)
	}

	if _, err := calc.Recalculate(ctx, userID); err != nil {
		t.Fatalf("recalculate failed: %v", err)
	}

	result, err := calc.Claim(ctx, userID, reward.KeyWeeklyPowerup)
	if err != nil {
		t.Fatalf("claim failed: %v", err)
	}
	if !result.Granted {
		t.Error("claim did not pay out")
	}

	if _, err := calc.Claim(ctx, userID, reward.KeyWeeklyPowerup); !errors.Is(err, reward.ErrNotClaimable) {
		t.Errorf("got %v, want ErrNotClaimable on double claim", err)
	}

	// Recalculation after claiming must not reopen the reward.
	if _, err := calc.Recalculate(ctx, userID); err != nil {
		t.Fatalf("post-claim recalculate failed: %v", err)
	}
	p, err := calc.getProgress(ctx, userID, reward.KeyWeeklyPowerup)
	if err != nil {
		t.Fatalf("get progress failed: %v", err)
	}
	if !p.IsClaimed {
		t.Error("claimed flag lost after recalculation")
	}
}

func TestDailyComboRequiresAllThree(t *testing.T) {
	db := setupTestDB(t)
	userID := createTestUser(t, db)
	clk := &clock.Fixed{Instant: time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)}
	streaks := NewStreakService(db, clk)
	rewards := NewRewardService(db, clk, streaks)
	calc := NewRewardCalculatorService(db, clk, rewards)
	badges := NewBadgeService(db, clk, streaks, rewards)
	activity := NewActivityService(db, clk, streaks, rewards, calc, badges)
	ctx := context.Background()

	if _, _, err := activity.LogWater(ctx, userID, 2); err != nil {
		t.Fatalf("log water failed: %v", err)
	}
	combo, err := rewards.CheckDailyCombo(ctx, userID)
	if err != nil {
		t.Fatalf("combo check failed: %v", err)
	}
	if combo.Granted {
		t.Error("combo granted with only water logged")
	}

	if _, _, err := activity.LogSleep(ctx, userID, 8, 4); err != nil {
		t.Fatalf("log sleep failed: %v", err)
	}
	_, result, err := activity.LogWorkout(ctx, userID, "strength", 45)
	if err != nil {
		t.Fatalf("log workout failed: %v", err)
	}
	if result.ComboAward == nil || !result.ComboAward.Granted {
		t.Error("combo not granted after workout, water and sleep all logged")
	}

	// The combo gate is daily; logging more does not grant twice.
	combo, err = rewards.CheckDailyCombo(ctx, userID)
	if err != nil {
		t.Fatalf("second combo check failed: %v", err)
	}
	if combo.Granted {
		t.Error("combo granted twice in one day")
	}
}
