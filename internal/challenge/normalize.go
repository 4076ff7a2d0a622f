package challenge

import (
	"strings"
	"unicode/utf8"
)

const (
	maxTitleLen       = 80
	maxDescriptionLen = 280
	minRequiredCount  = 1
	maxRequiredCount  = 100
)

// Normalize sanitizes a draft regardless of where it came from (model output
// or fallback templates) before anything is persisted or shown. Difficulty is
// coerced into the closed set, counts are clamped, and the point value is
// forced to the fixed table.
func Normalize(d Draft) Draft {
	d.Title = truncate(strings.TrimSpace(d.Title), maxTitleLen)
	d.Description = truncate(strings.TrimSpace(d.Description), maxDescriptionLen)

	switch d.Difficulty {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
	default:
		// Tolerate case-mangled model output before defaulting.
		switch strings.ToLower(string(d.Difficulty)) {
		case "easy":
			d.Difficulty = DifficultyEasy
		case "hard":
			d.Difficulty = DifficultyHard
		default:
			d.Difficulty = DifficultyMedium
		}
	}

	if d.RequiredCount < minRequiredCount {
		d.RequiredCount = minRequiredCount
	}
	if d.RequiredCount > maxRequiredCount {
		d.RequiredCount = maxRequiredCount
	}

	d.PointValue = PointValues[d.Difficulty]

	switch d.Category {
	case CategoryDaily, CategoryWeekly, CategoryMonthly, CategoryUniversal:
	default:
		d.Category = CategoryUniversal
	}

	return d
}

// truncate cuts to at most n runes without splitting a multi-byte rune.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}
