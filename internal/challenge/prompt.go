package challenge

import (
	"encoding/json"
	"fmt"
	"strings"
)

// SystemInstruction frames every generation request.
const SystemInstruction = "You are a fitness coach generating personalized workout challenges. " +
	"Respond with a JSON array only, no prose, no markdown fences."

// BuildPrompt renders the compact generation prompt from a context snapshot.
// The model is asked to push 10-20% past recent performance, avoid titles the
// user already has, and avoid patterns the user keeps rejecting.
func BuildPrompt(snap Snapshot, category Category, count int, target Difficulty) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Generate %d %s fitness challenges for a %s-tier user at level %d.\n",
		count, category, snap.Tier, snap.Level)
	fmt.Fprintf(&b, "Recent activity: %d workouts in the last 7 days, %d steps yesterday.\n",
		snap.RecentWorkouts, snap.RecentSteps)
	b.WriteString("Set targets 10-20% beyond this recent performance.\n")

	if target != "" {
		fmt.Fprintf(&b, "Target difficulty: %s.\n", target)
	}
	if len(snap.ActiveTitles) > 0 {
		fmt.Fprintf(&b, "Do NOT repeat these active items: %s.\n", strings.Join(snap.ActiveTitles, "; "))
	}
	if len(snap.CompletedTitles) > 0 {
		fmt.Fprintf(&b, "Recently completed: %s.\n", strings.Join(snap.CompletedTitles, "; "))
	}

	var avoids []string
	for ft, n := range snap.FeedbackCounts {
		if n >= 2 && (ft == FeedbackTooHard || ft == FeedbackNotRelevant || ft == FeedbackBoring || ft == FeedbackDeclined) {
			avoids = append(avoids, fmt.Sprintf("%s (x%d)", ft, n))
		}
	}
	if len(avoids) > 0 {
		fmt.Fprintf(&b, "The user has repeatedly rejected suggestions as: %s. Avoid those patterns.\n", strings.Join(avoids, ", "))
	}

	b.WriteString(`Return a JSON array of objects with exactly these fields: ` +
		`{"title": string, "description": string, "difficulty": "Easy"|"Medium"|"Hard", ` +
		`"required_count": integer, "point_value": integer}`)
	return b.String()
}

// rawDraft mirrors the shape we instruct the model to return.
type rawDraft struct {
	Title         string `json:"title"`
	Description   string `json:"description"`
	Difficulty    string `json:"difficulty"`
	RequiredCount int    `json:"required_count"`
	PointValue    int    `json:"point_value"`
}

// AttemptParse parses model output into normalized drafts. Any failure is a
// parse error the caller resolves via the fallback generator; this function
// never panics on malformed input. Markdown fences and surrounding prose are
// tolerated as long as a JSON array is present.
func AttemptParse(raw string, category Category) ([]Draft, error) {
	start := strings.Index(raw, "[")
	end := strings.LastIndex(raw, "]")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON array in model output")
	}

	var rows []rawDraft
	if err := json.Unmarshal([]byte(raw[start:end+1]), &rows); err != nil {
		return nil, fmt.Errorf("failed to parse model output: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("model returned an empty array")
	}

	drafts := make([]Draft, 0, len(rows))
	for _, r := range rows {
		if strings.TrimSpace(r.Title) == "" {
			continue
		}
		drafts = append(drafts, Normalize(Draft{
			Title:         r.Title,
			Description:   r.Description,
			Difficulty:    Difficulty(r.Difficulty),
			RequiredCount: r.RequiredCount,
			PointValue:    r.PointValue, // overwritten by Normalize
			Category:      category,
		}))
	}
	if len(drafts) == 0 {
		return nil, fmt.Errorf("model returned no usable drafts")
	}
	return drafts, nil
}
