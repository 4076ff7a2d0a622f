package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"fitQuestAPI/internal/challenge"
	"fitQuestAPI/services"
)

// challengeStatus maps lifecycle errors onto HTTP statuses: missing rows are
// 404, benign already-settled conflicts are 409, everything else is a 500.
func challengeStatus(err error) int {
	switch {
	case errors.Is(err, challenge.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, challenge.ErrAlreadySettled):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

type ChallengeHandler struct {
	challengeService *services.ChallengeService
	userService      *services.UserService
}

func NewChallengeHandler(challengeService *services.ChallengeService, userService *services.UserService) *ChallengeHandler {
	return &ChallengeHandler{
		challengeService: challengeService,
		userService:      userService,
	}
}

func (h *ChallengeHandler) Generate(w http.ResponseWriter, r *http.Request) {
	// LLM calls are slow; the generation timeout is generous.
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	userID, ok := resolveUserID(ctx, h.userService, w)
	if !ok {
		return
	}

	var req struct {
		Category string `json:"category"`
		Count    int    `json:"count"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	category := challenge.Category(req.Category)
	if category == "" {
		category = challenge.CategoryDaily
	}

	drafts, err := h.challengeService.Generate(ctx, userID, category, req.Count)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to generate challenges")
		return
	}

	respondWithJSON(w, http.StatusOK, drafts)
}

func (h *ChallengeHandler) Accept(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	userID, ok := resolveUserID(ctx, h.userService, w)
	if !ok {
		return
	}

	var draft challenge.Draft
	if err := json.NewDecoder(r.Body).Decode(&draft); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if draft.Title == "" {
		respondWithError(w, http.StatusBadRequest, "Challenge title is required")
		return
	}

	c, err := h.challengeService.Accept(ctx, userID, draft)
	if err != nil {
		respondWithError(w, http.StatusConflict, err.Error())
		return
	}

	respondWithJSON(w, http.StatusCreated, c)
}

func (h *ChallengeHandler) Decline(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	userID, ok := resolveUserID(ctx, h.userService, w)
	if !ok {
		return
	}

	var req struct {
		Draft        challenge.Draft        `json:"draft"`
		FeedbackType challenge.FeedbackType `json:"feedback_type"`
		FeedbackText string                 `json:"feedback_text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.challengeService.Decline(ctx, userID, req.Draft, req.FeedbackType, req.FeedbackText); err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to record feedback")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{"message": "Feedback recorded"})
}

func (h *ChallengeHandler) ListActive(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, ok := resolveUserID(ctx, h.userService, w)
	if !ok {
		return
	}

	challenges, err := h.challengeService.ListActive(ctx, userID)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to list challenges")
		return
	}

	respondWithJSON(w, http.StatusOK, challenges)
}

func (h *ChallengeHandler) ListCompleted(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, ok := resolveUserID(ctx, h.userService, w)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	challenges, err := h.challengeService.ListCompleted(ctx, userID, limit)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to list completed challenges")
		return
	}

	respondWithJSON(w, http.StatusOK, challenges)
}

func (h *ChallengeHandler) Complete(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	userID, ok := resolveUserID(ctx, h.userService, w)
	if !ok {
		return
	}

	challengeID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid challenge id")
		return
	}

	result, replacement, err := h.challengeService.Complete(ctx, userID, challengeID)
	if err != nil {
		respondWithError(w, challengeStatus(err), err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]any{
		"result":      result,
		"replacement": replacement,
	})
}

func (h *ChallengeHandler) IncrementProgress(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	userID, ok := resolveUserID(ctx, h.userService, w)
	if !ok {
		return
	}

	challengeID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid challenge id")
		return
	}

	var req struct {
		Delta int `json:"delta"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	c, result, replacement, err := h.challengeService.IncrementProgress(ctx, userID, challengeID, req.Delta)
	if err != nil {
		respondWithError(w, challengeStatus(err), err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]any{
		"challenge":   c,
		"result":      result,
		"replacement": replacement,
	})
}

func (h *ChallengeHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	userID, ok := resolveUserID(ctx, h.userService, w)
	if !ok {
		return
	}

	challengeID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid challenge id")
		return
	}

	var req struct {
		FeedbackType challenge.FeedbackType `json:"feedback_type"`
		FeedbackText string                 `json:"feedback_text"`
	}
	// An empty body is fine; the feedback defaults apply.
	_ = json.NewDecoder(r.Body).Decode(&req)

	replacement, err := h.challengeService.Delete(ctx, userID, challengeID, req.FeedbackType, req.FeedbackText)
	if err != nil {
		respondWithError(w, challengeStatus(err), err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]any{
		"message":     "Challenge removed",
		"replacement": replacement,
	})
}

func (h *ChallengeHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 60*time.Second)
	defer cancel()

	userID, ok := resolveUserID(ctx, h.userService, w)
	if !ok {
		return
	}

	created, err := h.challengeService.EnsureQuota(ctx, userID)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to refresh challenges")
		return
	}

	respondWithJSON(w, http.StatusOK, created)
}

func (h *ChallengeHandler) GetFeedbackHistory(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, ok := resolveUserID(ctx, h.userService, w)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	feedback, err := h.challengeService.GetFeedbackHistory(ctx, userID, limit)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to list feedback")
		return
	}

	respondWithJSON(w, http.StatusOK, feedback)
}
