package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"fitQuestAPI/internal/challenge"
	"fitQuestAPI/internal/clock"
	"fitQuestAPI/internal/level"
	"fitQuestAPI/internal/llm"
	"fitQuestAPI/internal/reward"
)

const (
	activeQuotaPerCategory = 3
	generationCapHourly    = 5
	generationCapDaily     = 20
)

// ChallengeService generates, accepts and settles personalized challenges.
// The model is a suggestion source only: every draft passes through
// normalization, the payout table and category reclassification before a row
// is written, and the deterministic fallback keeps the feature working when
// the model is down or returns garbage.
type ChallengeService struct {
	db      *pgxpool.Pool
	clock   clock.Clock
	llm     llm.Client
	rewards *RewardService
}

// NewChallengeService accepts a nil llm client; generation then always uses
// the deterministic fallback pool.
func NewChallengeService(db *pgxpool.Pool, clk clock.Clock, client llm.Client, rewards *RewardService) *ChallengeService {
	return &ChallengeService{db: db, clock: clk, llm: client, rewards: rewards}
}

// Generate produces up to count drafts for the category. Drafts are not
// persisted; they become challenges only through Accept.
func (s *ChallengeService) Generate(ctx context.Context, userID uuid.UUID, category challenge.Category, count int) ([]challenge.Draft, error) {
	if count <= 0 {
		count = 3
	}
	if count > 10 {
		count = 10
	}

	snap, err := s.buildSnapshot(ctx, userID)
	if err != nil {
		return nil, err
	}

	target := s.targetDifficulty(snap)
	drafts := s.generateDrafts(ctx, userID, snap, category, count, target)

	for i := range drafts {
		drafts[i] = challenge.Normalize(drafts[i])
		drafts[i].Category = category
		if ttl, ok := category.TTL(); ok {
			exp := s.clock.Now().Add(ttl)
			drafts[i].ExpiresAt = &exp
		} else {
			drafts[i].ExpiresAt = nil
		}
	}
	return drafts, nil
}

// generateDrafts tries the model first and falls back to the template pool
// on any failure: cap hit, no client, transport error, unparseable output.
func (s *ChallengeService) generateDrafts(ctx context.Context, userID uuid.UUID, snap challenge.Snapshot, category challenge.Category, count int, target challenge.Difficulty) []challenge.Draft {
	if s.llm == nil {
		return challenge.Fallback(category, target, count, snap.ActiveTitles)
	}

	if !s.allowGeneration(ctx, userID) {
		log.Printf("ChallengeService: generation cap reached for %s, using fallback pool", userID)
		return challenge.Fallback(category, target, count, snap.ActiveTitles)
	}

	prompt := challenge.BuildPrompt(snap, category, count, target)
	raw, err := s.llm.Generate(ctx, prompt, challenge.SystemInstruction)
	if err != nil {
		log.Printf("ChallengeService: model call failed for %s, using fallback pool: %v", userID, err)
		return challenge.Fallback(category, target, count, snap.ActiveTitles)
	}

	drafts, err := challenge.AttemptParse(raw, category)
	if err != nil {
		log.Printf("ChallengeService: model output unusable for %s, using fallback pool: %v", userID, err)
		return challenge.Fallback(category, target, count, snap.ActiveTitles)
	}
	if len(drafts) > count {
		drafts = drafts[:count]
	}
	return drafts
}

// allowGeneration enforces the hourly and daily model-call caps. Counting
// failures fail open: a cap is a cost guard, not a correctness guard.
func (s *ChallengeService) allowGeneration(ctx context.Context, userID uuid.UUID) bool {
	now := s.clock.Now()

	var hourly, daily int
	err := s.db.QueryRow(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE created_at >= $2),
			COUNT(*) FILTER (WHERE created_at >= $3)
		FROM generation_events
		WHERE user_id = $1
	`, userID, now.Add(-time.Hour), now.Add(-24*time.Hour)).Scan(&hourly, &daily)
	if err != nil {
		log.Printf("ChallengeService: cap check failed for %s, allowing: %v", userID, err)
		return true
	}
	if hourly >= generationCapHourly || daily >= generationCapDaily {
		return false
	}

	if _, err := s.db.Exec(ctx, `INSERT INTO generation_events (user_id) VALUES ($1)`, userID); err != nil {
		log.Printf("ChallengeService: failed to record generation event for %s: %v", userID, err)
	}
	return true
}

// buildSnapshot gathers everything the generator needs up front so nothing
// holds a transaction across the model call.
func (s *ChallengeService) buildSnapshot(ctx context.Context, userID uuid.UUID) (challenge.Snapshot, error) {
	snap := challenge.Snapshot{FeedbackCounts: make(map[challenge.FeedbackType]int)}
	today := s.clock.Today()

	state, err := s.rewards.GetState(ctx, userID)
	if err != nil {
		return snap, err
	}
	snap.Tier = state.CurrentTier
	snap.Level = state.CurrentLevel

	err = s.db.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(DISTINCT date) FROM workouts WHERE user_id = $1 AND date >= $2),
			(SELECT COALESCE(SUM(steps), 0) FROM step_logs WHERE user_id = $1 AND date >= $2)
	`, userID, today.AddDate(0, 0, -6)).Scan(&snap.RecentWorkouts, &snap.RecentSteps)
	if err != nil {
		return snap, fmt.Errorf("failed to gather activity snapshot: %w", err)
	}

	snap.CompletedTitles, err = s.titles(ctx, userID, `is_completed = TRUE ORDER BY completed_at DESC LIMIT 10`)
	if err != nil {
		return snap, err
	}
	snap.ActiveTitles, err = s.titles(ctx, userID, `is_active = TRUE AND is_completed = FALSE AND is_deleted = FALSE`)
	if err != nil {
		return snap, err
	}

	rows, err := s.db.Query(ctx, `
		SELECT feedback_type, COUNT(*)
		FROM challenge_feedback
		WHERE user_id = $1 AND created_at >= $2
		GROUP BY feedback_type
	`, userID, today.AddDate(0, 0, -29))
	if err != nil {
		return snap, fmt.Errorf("failed to gather feedback counts: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var ft challenge.FeedbackType
		var n int
		if err := rows.Scan(&ft, &n); err != nil {
			return snap, fmt.Errorf("failed to scan feedback count: %w", err)
		}
		snap.FeedbackCounts[ft] = n
	}
	return snap, rows.Err()
}

func (s *ChallengeService) titles(ctx context.Context, userID uuid.UUID, cond string) ([]string, error) {
	// cond comes from fixed call sites above, never from user input.
	rows, err := s.db.Query(ctx,
		`SELECT title FROM generated_challenges WHERE user_id = $1 AND `+cond, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch challenge titles: %w", err)
	}
	defer rows.Close()

	var titles []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("failed to scan challenge title: %w", err)
		}
		titles = append(titles, t)
	}
	return titles, rows.Err()
}

// targetDifficulty picks the base difficulty from tier, nudged down when the
// recent feedback says challenges run too hard, up when too easy.
func (s *ChallengeService) targetDifficulty(snap challenge.Snapshot) challenge.Difficulty {
	var target challenge.Difficulty
	switch snap.Tier {
	case level.TierBronze:
		target = challenge.DifficultyEasy
	case level.TierSilver, level.TierGold:
		target = challenge.DifficultyMedium
	default:
		target = challenge.DifficultyHard
	}

	if snap.FeedbackCounts[challenge.FeedbackTooHard] >= 2 {
		target = challenge.Easier(target)
	} else if snap.FeedbackCounts[challenge.FeedbackTooEasy] >= 2 {
		target = challenge.Harder(target)
	}
	return target
}

// Accept persists a draft as an active challenge. Accepting a title the user
// already has active is idempotent: the existing row comes back instead of a
// duplicate. The per-category quota is enforced after lazy expiry.
func (s *ChallengeService) Accept(ctx context.Context, userID uuid.UUID, draft challenge.Draft) (*challenge.Challenge, error) {
	draft = challenge.Normalize(draft)
	now := s.clock.Now()
	category := challenge.Reclassify(draft.ExpiresAt, now)

	existing, err := s.findActiveByTitle(ctx, userID, draft.Title)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	active, err := s.countActive(ctx, userID, category, now)
	if err != nil {
		return nil, err
	}
	if active >= activeQuotaPerCategory {
		return nil, fmt.Errorf("active challenge quota reached for category %s", category)
	}

	c := &challenge.Challenge{
		UserID:        userID,
		Title:         draft.Title,
		Description:   draft.Description,
		Difficulty:    draft.Difficulty,
		RequiredCount: draft.RequiredCount,
		PointValue:    draft.PointValue,
		Category:      category,
		ExpiresAt:     draft.ExpiresAt,
		IsActive:      true,
	}
	err = s.db.QueryRow(ctx, `
		INSERT INTO generated_challenges
			(user_id, title, description, difficulty, required_count, point_value, category, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at
	`, userID, c.Title, c.Description, c.Difficulty, c.RequiredCount, c.PointValue, c.Category, c.ExpiresAt).
		Scan(&c.ID, &c.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to accept challenge: %w", err)
	}
	return c, nil
}

// Decline records feedback for a draft the user rejected. Nothing is
// persisted for the draft itself; its title rides along in the feedback
// text so future generation can steer away from the pattern.
func (s *ChallengeService) Decline(ctx context.Context, userID uuid.UUID, draft challenge.Draft, feedbackType challenge.FeedbackType, text string) error {
	if feedbackType == "" {
		feedbackType = challenge.FeedbackDeclined
	}
	d := challenge.Normalize(draft)
	note := "declined: " + d.Title
	if text != "" {
		note += " (" + text + ")"
	}
	return s.recordFeedback(ctx, userID, nil, feedbackType, note, d.Difficulty)
}

// Complete settles a challenge: the conditional UPDATE guards against double
// completion, expiry and deleted rows, then the payout flows through the
// ledger. A harder replacement draft is offered best-effort.
func (s *ChallengeService) Complete(ctx context.Context, userID uuid.UUID, challengeID uuid.UUID) (*reward.AwardResult, *challenge.Draft, error) {
	now := s.clock.Now()

	var difficulty challenge.Difficulty
	var category challenge.Category
	var pointValue int
	var title string
	err := s.db.QueryRow(ctx, `
		UPDATE generated_challenges
		SET is_completed = TRUE, is_active = FALSE, completed_at = NOW(),
		    current_progress = required_count
		WHERE id = $1 AND user_id = $2
		  AND is_active = TRUE AND is_completed = FALSE AND is_deleted = FALSE
		  AND (expires_at IS NULL OR expires_at > $3)
		RETURNING title, difficulty, category, point_value
	`, challengeID, userID, now).Scan(&title, &difficulty, &category, &pointValue)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil, s.classifyMiss(ctx, userID, challengeID)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to complete challenge: %w", err)
	}

	result, err := s.rewards.Award(ctx, userID, reward.AwardChallenge, pointValue, "challenge:"+title)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to award challenge points: %w", err)
	}

	// Replacement is a bonus, never a blocker.
	replacement := s.offerReplacement(ctx, userID, category, challenge.Harder(difficulty))
	return result, replacement, nil
}

// Delete soft-deletes an active challenge, records the feedback and offers
// an easier (or per-feedback nudged) replacement.
func (s *ChallengeService) Delete(ctx context.Context, userID uuid.UUID, challengeID uuid.UUID, feedbackType challenge.FeedbackType, text string) (*challenge.Draft, error) {
	var difficulty challenge.Difficulty
	var category challenge.Category
	err := s.db.QueryRow(ctx, `
		UPDATE generated_challenges
		SET is_deleted = TRUE, is_active = FALSE
		WHERE id = $1 AND user_id = $2 AND is_deleted = FALSE AND is_completed = FALSE
		RETURNING difficulty, category
	`, challengeID, userID).Scan(&difficulty, &category)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, s.classifyMiss(ctx, userID, challengeID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to delete challenge: %w", err)
	}

	if feedbackType == "" {
		feedbackType = challenge.FeedbackNotRelevant
	}
	if err := s.recordFeedback(ctx, userID, &challengeID, feedbackType, text, difficulty); err != nil {
		log.Printf("ChallengeService: failed to record delete feedback for %s: %v", userID, err)
	}

	next := difficulty
	switch feedbackType {
	case challenge.FeedbackTooHard:
		next = challenge.Easier(difficulty)
	case challenge.FeedbackTooEasy:
		next = challenge.Harder(difficulty)
	}
	return s.offerReplacement(ctx, userID, category, next), nil
}

// classifyMiss turns a zero-row conditional update into the right sentinel:
// not-found when the row does not belong to the user, already-settled when
// it does but is completed, deleted or expired.
func (s *ChallengeService) classifyMiss(ctx context.Context, userID, challengeID uuid.UUID) error {
	var exists bool
	err := s.db.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM generated_challenges WHERE id = $1 AND user_id = $2)
	`, challengeID, userID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to look up challenge %s: %w", challengeID, err)
	}
	if !exists {
		return fmt.Errorf("challenge %s: %w", challengeID, challenge.ErrNotFound)
	}
	return fmt.Errorf("challenge %s: %w", challengeID, challenge.ErrAlreadySettled)
}

// offerReplacement generates a single draft in the settled challenge's
// category at the given difficulty. Failures are swallowed; the caller
// treats nil as no offer.
func (s *ChallengeService) offerReplacement(ctx context.Context, userID uuid.UUID, category challenge.Category, difficulty challenge.Difficulty) *challenge.Draft {
	snap, err := s.buildSnapshot(ctx, userID)
	if err != nil {
		log.Printf("ChallengeService: replacement snapshot failed for %s: %v", userID, err)
		return nil
	}
	drafts := s.generateDrafts(ctx, userID, snap, category, 1, difficulty)
	if len(drafts) == 0 {
		return nil
	}
	d := challenge.Normalize(drafts[0])
	d.Difficulty = difficulty
	d.PointValue = challenge.PointValues[difficulty]
	if ttl, ok := category.TTL(); ok {
		exp := s.clock.Now().Add(ttl)
		d.ExpiresAt = &exp
	}
	d.Category = category
	return &d
}

// IncrementProgress advances an active challenge and settles it when the
// increment reaches the required count, passing through the completion
// payout and replacement offer.
func (s *ChallengeService) IncrementProgress(ctx context.Context, userID uuid.UUID, challengeID uuid.UUID, delta int) (*challenge.Challenge, *reward.AwardResult, *challenge.Draft, error) {
	if delta <= 0 {
		delta = 1
	}
	now := s.clock.Now()

	c := &challenge.Challenge{}
	err := s.db.QueryRow(ctx, `
		UPDATE generated_challenges
		SET current_progress = LEAST(current_progress + $3, required_count)
		WHERE id = $1 AND user_id = $2
		  AND is_active = TRUE AND is_completed = FALSE AND is_deleted = FALSE
		  AND (expires_at IS NULL OR expires_at > $4)
		RETURNING id, user_id, title, description, difficulty, required_count, current_progress,
		          point_value, category, expires_at, is_active, is_completed, is_deleted, created_at, completed_at
	`, challengeID, userID, delta, now).Scan(
		&c.ID, &c.UserID, &c.Title, &c.Description, &c.Difficulty, &c.RequiredCount, &c.CurrentProgress,
		&c.PointValue, &c.Category, &c.ExpiresAt, &c.IsActive, &c.IsCompleted, &c.IsDeleted, &c.CreatedAt, &c.CompletedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil, nil, s.classifyMiss(ctx, userID, challengeID)
	}
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to increment challenge progress: %w", err)
	}

	if c.CurrentProgress < c.RequiredCount {
		return c, nil, nil, nil
	}

	result, replacement, err := s.Complete(ctx, userID, challengeID)
	if err != nil {
		return nil, nil, nil, err
	}
	c.IsCompleted = true
	c.IsActive = false
	return c, result, replacement, nil
}

// EnsureQuota tops up every category to the active quota with accepted
// fallback or model drafts. Meant for the daily refresh path; universal
// challenges never expire, so their top-up settles once filled.
func (s *ChallengeService) EnsureQuota(ctx context.Context, userID uuid.UUID) ([]*challenge.Challenge, error) {
	now := s.clock.Now()
	created := make([]*challenge.Challenge, 0)

	for _, category := range challenge.Categories {
		active, err := s.countActive(ctx, userID, category, now)
		if err != nil {
			return created, err
		}
		missing := activeQuotaPerCategory - active
		if missing <= 0 {
			continue
		}

		drafts, err := s.Generate(ctx, userID, category, missing)
		if err != nil {
			return created, err
		}
		for _, d := range drafts {
			c, err := s.Accept(ctx, userID, d)
			if err != nil {
				log.Printf("ChallengeService: quota top-up accept failed for %s: %v", userID, err)
				continue
			}
			created = append(created, c)
		}
	}
	return created, nil
}

// ListActive returns the user's live challenges. Expiry is lazy: rows past
// their expires_at are simply filtered out, never mutated here.
func (s *ChallengeService) ListActive(ctx context.Context, userID uuid.UUID) ([]*challenge.Challenge, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, user_id, title, description, difficulty, required_count, current_progress,
		       point_value, category, expires_at, is_active, is_completed, is_deleted, created_at, completed_at
		FROM generated_challenges
		WHERE user_id = $1 AND is_active = TRUE AND is_completed = FALSE AND is_deleted = FALSE
		  AND (expires_at IS NULL OR expires_at > $2)
		ORDER BY created_at DESC
	`, userID, s.clock.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to list active challenges: %w", err)
	}
	defer rows.Close()
	return scanChallenges(rows)
}

// ListCompleted returns recently completed challenges, newest first.
func (s *ChallengeService) ListCompleted(ctx context.Context, userID uuid.UUID, limit int) ([]*challenge.Challenge, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	rows, err := s.db.Query(ctx, `
		SELECT id, user_id, title, description, difficulty, required_count, current_progress,
		       point_value, category, expires_at, is_active, is_completed, is_deleted, created_at, completed_at
		FROM generated_challenges
		WHERE user_id = $1 AND is_completed = TRUE
		ORDER BY completed_at DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list completed challenges: %w", err)
	}
	defer rows.Close()
	return scanChallenges(rows)
}

func scanChallenges(rows pgx.Rows) ([]*challenge.Challenge, error) {
	out := make([]*challenge.Challenge, 0)
	for rows.Next() {
		c := &challenge.Challenge{}
		if err := rows.Scan(
			&c.ID, &c.UserID, &c.Title, &c.Description, &c.Difficulty, &c.RequiredCount, &c.CurrentProgress,
			&c.PointValue, &c.Category, &c.ExpiresAt, &c.IsActive, &c.IsCompleted, &c.IsDeleted, &c.CreatedAt, &c.CompletedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan challenge: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *ChallengeService) countActive(ctx context.Context, userID uuid.UUID, category challenge.Category, now time.Time) (int, error) {
	var n int
	err := s.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM generated_challenges
		WHERE user_id = $1 AND category = $2
		  AND is_active = TRUE AND is_completed = FALSE AND is_deleted = FALSE
		  AND (expires_at IS NULL OR expires_at > $3)
	`, userID, category, now).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count active challenges: %w", err)
	}
	return n, nil
}

func (s *ChallengeService) findActiveByTitle(ctx context.Context, userID uuid.UUID, title string) (*challenge.Challenge, error) {
	c := &challenge.Challenge{}
	err := s.db.QueryRow(ctx, `
		SELECT id, user_id, title, description, difficulty, required_count, current_progress,
		       point_value, category, expires_at, is_active, is_completed, is_deleted, created_at, completed_at
		FROM generated_challenges
		WHERE user_id = $1 AND LOWER(title) = LOWER($2)
		  AND is_active = TRUE AND is_completed = FALSE AND is_deleted = FALSE
		  AND (expires_at IS NULL OR expires_at > $3)
		LIMIT 1
	`, userID, title, s.clock.Now()).Scan(
		&c.ID, &c.UserID, &c.Title, &c.Description, &c.Difficulty, &c.RequiredCount, &c.CurrentProgress,
		&c.PointValue, &c.Category, &c.ExpiresAt, &c.IsActive, &c.IsCompleted, &c.IsDeleted, &c.CreatedAt, &c.CompletedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up active challenge: %w", err)
	}
	return c, nil
}

func (s *ChallengeService) recordFeedback(ctx context.Context, userID uuid.UUID, challengeID *uuid.UUID, feedbackType challenge.FeedbackType, text string, difficulty challenge.Difficulty) error {
	state, err := s.rewards.GetState(ctx, userID)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(ctx, `
		INSERT INTO challenge_feedback (user_id, challenge_id, feedback_type, feedback_text, difficulty_at_event, tier_at_event)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, userID, challengeID, feedbackType, text, difficulty, state.CurrentTier)
	if err != nil {
		return fmt.Errorf("failed to record challenge feedback: %w", err)
	}
	return nil
}

// GetFeedbackHistory lists the user's recent challenge feedback.
func (s *ChallengeService) GetFeedbackHistory(ctx context.Context, userID uuid.UUID, limit int) ([]*challenge.Feedback, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	rows, err := s.db.Query(ctx, `
		SELECT id, user_id, challenge_id, feedback_type, feedback_text, difficulty_at_event, tier_at_event, created_at
		FROM challenge_feedback
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list challenge feedback: %w", err)
	}
	defer rows.Close()

	out := make([]*challenge.Feedback, 0)
	for rows.Next() {
		f := &challenge.Feedback{}
		if err := rows.Scan(&f.ID, &f.UserID, &f.ChallengeID, &f.FeedbackType, &f.FeedbackText, &f.DifficultyAtEvent, &f.TierAtEvent, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan challenge feedback: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}
