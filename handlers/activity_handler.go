package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"fitQuestAPI/services"
)

type ActivityHandler struct {
	activityService *services.ActivityService
	userService     *services.UserService
}

func NewActivityHandler(activityService *services.ActivityService, userService *services.UserService) *ActivityHandler {
	return &ActivityHandler{
		activityService: activityService,
		userService:     userService,
	}
}

func (h *ActivityHandler) LogWorkout(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	userID, ok := resolveUserID(ctx, h.userService, w)
	if !ok {
		return
	}

	var req struct {
		WorkoutType string `json:"workout_type"`
		DurationMin int    `json:"duration_min"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	workout, result, err := h.activityService.LogWorkout(ctx, userID, req.WorkoutType, req.DurationMin)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	respondWithJSON(w, http.StatusCreated, map[string]any{
		"workout": workout,
		"result":  result,
	})
}

func (h *ActivityHandler) LogWater(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	userID, ok := resolveUserID(ctx, h.userService, w)
	if !ok {
		return
	}

	var req struct {
		Glasses int `json:"glasses"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	entry, result, err := h.activityService.LogWater(ctx, userID, req.Glasses)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	respondWithJSON(w, http.StatusCreated, map[string]any{
		"water_log": entry,
		"result":    result,
	})
}

func (h *ActivityHandler) LogSleep(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	userID, ok := resolveUserID(ctx, h.userService, w)
	if !ok {
		return
	}

	var req struct {
		Hours   float64 `json:"hours"`
		Quality int     `json:"quality"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	entry, result, err := h.activityService.LogSleep(ctx, userID, req.Hours, req.Quality)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	respondWithJSON(w, http.StatusCreated, map[string]any{
		"sleep_log": entry,
		"result":    result,
	})
}

func (h *ActivityHandler) LogSteps(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	userID, ok := resolveUserID(ctx, h.userService, w)
	if !ok {
		return
	}

	var req struct {
		Steps int `json:"steps"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	entry, result, err := h.activityService.LogSteps(ctx, userID, req.Steps)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	respondWithJSON(w, http.StatusCreated, map[string]any{
		"step_log": entry,
		"result":   result,
	})
}

func (h *ActivityHandler) LogPersonalRecord(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	userID, ok := resolveUserID(ctx, h.userService, w)
	if !ok {
		return
	}

	var req struct {
		Exercise string  `json:"exercise"`
		Value    float64 `json:"value"`
		Unit     string  `json:"unit"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	pr, err := h.activityService.LogPersonalRecord(ctx, userID, req.Exercise, req.Value, req.Unit)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	respondWithJSON(w, http.StatusCreated, pr)
}

func (h *ActivityHandler) DailySignin(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	userID, ok := resolveUserID(ctx, h.userService, w)
	if !ok {
		return
	}

	result, err := h.activityService.DailySignin(ctx, userID)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to process sign-in")
		return
	}

	respondWithJSON(w, http.StatusOK, result)
}

func (h *ActivityHandler) FormReview(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	userID, ok := resolveUserID(ctx, h.userService, w)
	if !ok {
		return
	}

	result, err := h.activityService.AwardFormReview(ctx, userID)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to award form review")
		return
	}

	respondWithJSON(w, http.StatusOK, result)
}

func (h *ActivityHandler) GetCalendar(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	userID, ok := resolveUserID(ctx, h.userService, w)
	if !ok {
		return
	}

	vars := mux.Vars(r)
	year, err := strconv.Atoi(vars["year"])
	if err != nil || year < 2000 || year > 2100 {
		respondWithError(w, http.StatusBadRequest, "Invalid year")
		return
	}
	month, err := strconv.Atoi(vars["month"])
	if err != nil || month < 1 || month > 12 {
		respondWithError(w, http.StatusBadRequest, "Invalid month")
		return
	}

	calendar, err := h.activityService.GetCalendar(ctx, userID, year, time.Month(month))
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to build calendar")
		return
	}

	respondWithJSON(w, http.StatusOK, calendar)
}

func (h *ActivityHandler) GetToday(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	userID, ok := resolveUserID(ctx, h.userService, w)
	if !ok {
		return
	}

	summary, err := h.activityService.GetDaySummary(ctx, userID, time.Now().UTC())
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to build day summary")
		return
	}

	respondWithJSON(w, http.StatusOK, summary)
}

// GetStats serves the weekly (default) or monthly activity summary.
func (h *ActivityHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	userID, ok := resolveUserID(ctx, h.userService, w)
	if !ok {
		return
	}

	days := 7
	if r.URL.Query().Get("period") == "month" {
		days = 30
	}

	stats, err := h.activityService.GetStats(ctx, userID, days)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to build activity stats")
		return
	}

	respondWithJSON(w, http.StatusOK, stats)
}

func (h *ActivityHandler) GetWorkouts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	userID, ok := resolveUserID(ctx, h.userService, w)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	workouts, err := h.activityService.GetRecentWorkouts(ctx, userID, limit)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to list workouts")
		return
	}

	respondWithJSON(w, http.StatusOK, workouts)
}

func (h *ActivityHandler) GetPersonalRecords(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	userID, ok := resolveUserID(ctx, h.userService, w)
	if !ok {
		return
	}

	records, err := h.activityService.GetPersonalRecords(ctx, userID)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to list personal records")
		return
	}

	respondWithJSON(w, http.StatusOK, records)
}
