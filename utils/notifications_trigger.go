package utils

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"

	"fitQuestAPI/internal/badge"
	"fitQuestAPI/internal/level"
	"fitQuestAPI/internal/notification"
	"fitQuestAPI/internal/streak"
)

// Notifier is the slice of the notification service the triggers need.
type Notifier interface {
	Notify(ctx context.Context, userID uuid.UUID, nType notification.Type, title, message string, data map[string]any) (*notification.Notification, error)
}

// streak lengths worth celebrating
var streakMilestones = map[int]bool{7: true, 14: true, 30: true, 60: true, 100: true, 365: true}

func LevelUpReached(notifier Notifier, userID uuid.UUID, info level.LevelUp) {
	bgCtx := context.Background()

	title := fmt.Sprintf("Level %d reached!", info.NewLevel)
	message := fmt.Sprintf("You climbed from level %d to level %d. Keep it up!", info.OldLevel, info.NewLevel)
	if info.TierChanged {
		title = fmt.Sprintf("Welcome to %s!", info.NewTier)
		message = fmt.Sprintf("You reached level %d and entered the %s tier.", info.NewLevel, info.NewTier)
	}

	_, err := notifier.Notify(bgCtx, userID, notification.TypeLevelUp, title, message, map[string]any{
		"old_level":    info.OldLevel,
		"new_level":    info.NewLevel,
		"tier_changed": info.TierChanged,
		"new_tier":     info.NewTier,
	})
	if err != nil {
		log.Printf("Failed to send level-up notification: %v", err)
	}
}

func BadgeEarned(notifier Notifier, userID uuid.UUID, earned *badge.Earned) {
	bgCtx := context.Background()

	_, err := notifier.Notify(bgCtx, userID, notification.TypeBadgeEarned,
		fmt.Sprintf("Badge earned: %s", earned.Badge.Title),
		fmt.Sprintf("%s (+%d points)", earned.Badge.Description, earned.PointsAwarded),
		map[string]any{
			"badge_id":       earned.Badge.ID,
			"points_awarded": earned.PointsAwarded,
		})
	if err != nil {
		log.Printf("Failed to send badge notification: %v", err)
	}
}

func StreakMilestoneReached(notifier Notifier, userID uuid.UUID, streakType streak.Type, length int) {
	if !streakMilestones[length] {
		return
	}
	bgCtx := context.Background()

	_, err := notifier.Notify(bgCtx, userID, notification.TypeStreakMilestone,
		fmt.Sprintf("%d day %s streak!", length, streakType),
		fmt.Sprintf("Your %s streak hit %d days in a row.", streakType, length),
		map[string]any{
			"streak_type": streakType,
			"length":      length,
		})
	if err != nil {
		log.Printf("Failed to send streak notification: %v", err)
	}
}
