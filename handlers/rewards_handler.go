package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"fitQuestAPI/internal/reward"
	"fitQuestAPI/internal/streak"
	"fitQuestAPI/services"
)

type RewardsHandler struct {
	rewardService *services.RewardService
	calcService   *services.RewardCalculatorService
	streakService *services.StreakService
	userService   *services.UserService
}

func NewRewardsHandler(rewardService *services.RewardService, calcService *services.RewardCalculatorService, streakService *services.StreakService, userService *services.UserService) *RewardsHandler {
	return &RewardsHandler{
		rewardService: rewardService,
		calcService:   calcService,
		streakService: streakService,
		userService:   userService,
	}
}

func (h *RewardsHandler) GetState(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, ok := resolveUserID(ctx, h.userService, w)
	if !ok {
		return
	}

	state, err := h.rewardService.GetState(ctx, userID)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to get reward state")
		return
	}

	respondWithJSON(w, http.StatusOK, state)
}

func (h *RewardsHandler) GetProgress(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, ok := resolveUserID(ctx, h.userService, w)
	if !ok {
		return
	}

	progress, err := h.rewardService.GetProgress(ctx, userID)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to get level progress")
		return
	}

	respondWithJSON(w, http.StatusOK, progress)
}

func (h *RewardsHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, ok := resolveUserID(ctx, h.userService, w)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	history, err := h.rewardService.GetHistory(ctx, userID, limit)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to get points history")
		return
	}

	respondWithJSON(w, http.StatusOK, history)
}

func (h *RewardsHandler) GetCatalog(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	defs, err := h.calcService.ListDefinitions(ctx)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to list rewards")
		return
	}

	respondWithJSON(w, http.StatusOK, defs)
}

func (h *RewardsHandler) Recalculate(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	userID, ok := resolveUserID(ctx, h.userService, w)
	if !ok {
		return
	}

	progress, err := h.calcService.Recalculate(ctx, userID)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to recalculate rewards")
		return
	}

	respondWithJSON(w, http.StatusOK, progress)
}

func (h *RewardsHandler) Claim(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	userID, ok := resolveUserID(ctx, h.userService, w)
	if !ok {
		return
	}

	key := reward.Key(mux.Vars(r)["key"])
	result, err := h.calcService.Claim(ctx, userID, key)
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, reward.ErrUnknownReward):
			status = http.StatusNotFound
		case errors.Is(err, reward.ErrNotClaimable):
			status = http.StatusConflict
		}
		respondWithError(w, status, err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, result)
}

func (h *RewardsHandler) GetStreaks(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, ok := resolveUserID(ctx, h.userService, w)
	if !ok {
		return
	}

	streaks, err := h.streakService.GetAll(ctx, userID)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to get streaks")
		return
	}

	respondWithJSON(w, http.StatusOK, streaks)
}

func (h *RewardsHandler) GetStreak(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, ok := resolveUserID(ctx, h.userService, w)
	if !ok {
		return
	}

	streakType := streak.Type(mux.Vars(r)["type"])
	if !streakType.Valid() {
		respondWithError(w, http.StatusBadRequest, "Unknown streak type")
		return
	}

	st, err := h.streakService.Get(ctx, userID, streakType)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to get streak")
		return
	}

	respondWithJSON(w, http.StatusOK, st)
}
