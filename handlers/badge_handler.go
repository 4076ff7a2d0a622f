package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"fitQuestAPI/services"
)

type BadgeHandler struct {
	badgeService *services.BadgeService
	userService  *services.UserService
}

func NewBadgeHandler(badgeService *services.BadgeService, userService *services.UserService) *BadgeHandler {
	return &BadgeHandler{
		badgeService: badgeService,
		userService:  userService,
	}
}

func (h *BadgeHandler) ListBadges(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	badges, err := h.badgeService.ListBadges(ctx)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to list badges")
		return
	}

	respondWithJSON(w, http.StatusOK, badges)
}

func (h *BadgeHandler) GetUserBadges(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, ok := resolveUserID(ctx, h.userService, w)
	if !ok {
		return
	}

	badges, err := h.badgeService.GetUserBadges(ctx, userID)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to list user badges")
		return
	}

	respondWithJSON(w, http.StatusOK, badges)
}

func (h *BadgeHandler) Evaluate(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	userID, ok := resolveUserID(ctx, h.userService, w)
	if !ok {
		return
	}

	var req struct {
		SleepImprovementPct *int `json:"sleep_improvement_pct"`
	}
	// Body is optional; an empty request evaluates from the logs alone.
	_ = json.NewDecoder(r.Body).Decode(&req)

	earned, err := h.badgeService.Evaluate(ctx, userID, req.SleepImprovementPct)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to evaluate badges")
		return
	}

	respondWithJSON(w, http.StatusOK, earned)
}
