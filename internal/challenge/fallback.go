package challenge

import "strings"

// template is one deterministic challenge blueprint. Counts are per
// difficulty so the same template scales across tiers.
type template struct {
	title       string
	description string
	counts      map[Difficulty]int
}

var fallbackTemplates = map[Category][]template{
	CategoryDaily: {
		{
			title:       "Hydration Check",
			description: "Log your water intake today and hit your glass target.",
			counts:      map[Difficulty]int{DifficultyEasy: 4, DifficultyMedium: 6, DifficultyHard: 8},
		},
		{
			title:       "Step It Up",
			description: "Get your steps in before the day ends.",
			counts:      map[Difficulty]int{DifficultyEasy: 5000, DifficultyMedium: 8000, DifficultyHard: 12000},
		},
		{
			title:       "Lights Out On Time",
			description: "Log a full night of sleep tonight.",
			counts:      map[Difficulty]int{DifficultyEasy: 1, DifficultyMedium: 1, DifficultyHard: 1},
		},
	},
	CategoryWeekly: {
		{
			title:       "Consistency Builder",
			description: "Complete workouts this week.",
			counts:      map[Difficulty]int{DifficultyEasy: 2, DifficultyMedium: 3, DifficultyHard: 5},
		},
		{
			title:       "Hydration Week",
			description: "Log your water intake every day this week.",
			counts:      map[Difficulty]int{DifficultyEasy: 4, DifficultyMedium: 5, DifficultyHard: 7},
		},
		{
			title:       "Weekend Warrior",
			description: "Finish workout sessions over the weekend.",
			counts:      map[Difficulty]int{DifficultyEasy: 1, DifficultyMedium: 2, DifficultyHard: 3},
		},
	},
	CategoryMonthly: {
		{
			title:       "Monthly Mileage",
			description: "Complete workout sessions this month.",
			counts:      map[Difficulty]int{DifficultyEasy: 8, DifficultyMedium: 12, DifficultyHard: 20},
		},
		{
			title:       "Personal Record Hunt",
			description: "Set new personal records this month.",
			counts:      map[Difficulty]int{DifficultyEasy: 1, DifficultyMedium: 2, DifficultyHard: 4},
		},
		{
			title:       "Sleep Routine Reset",
			description: "Log your sleep on different nights this month.",
			counts:      map[Difficulty]int{DifficultyEasy: 10, DifficultyMedium: 18, DifficultyHard: 25},
		},
	},
	CategoryUniversal: {
		{
			title:       "Form First",
			description: "Submit workout sessions for a form review.",
			counts:      map[Difficulty]int{DifficultyEasy: 1, DifficultyMedium: 3, DifficultyHard: 5},
		},
		{
			title:       "Try Something New",
			description: "Log workouts of a type you have not done before.",
			counts:      map[Difficulty]int{DifficultyEasy: 1, DifficultyMedium: 2, DifficultyHard: 3},
		},
		{
			title:       "Early Bird Sessions",
			description: "Complete workouts before 9am.",
			counts:      map[Difficulty]int{DifficultyEasy: 2, DifficultyMedium: 4, DifficultyHard: 6},
		},
	},
}

// Fallback deterministically produces up to count drafts for a category,
// skipping titles already present in activeTitles (case-insensitive). It never
// fails; it may return fewer than count when dedupe removes candidates.
func Fallback(category Category, difficulty Difficulty, count int, activeTitles []string) []Draft {
	switch difficulty {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
	default:
		difficulty = DifficultyMedium
	}

	active := make(map[string]bool, len(activeTitles))
	for _, t := range activeTitles {
		active[strings.ToLower(strings.TrimSpace(t))] = true
	}

	var drafts []Draft
	for _, tpl := range fallbackTemplates[category] {
		if len(drafts) >= count {
			break
		}
		if active[strings.ToLower(tpl.title)] {
			continue
		}
		drafts = append(drafts, Normalize(Draft{
			Title:         tpl.title,
			Description:   tpl.description,
			Difficulty:    difficulty,
			RequiredCount: tpl.counts[difficulty],
			Category:      category,
		}))
	}
	return drafts
}
