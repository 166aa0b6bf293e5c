package api

import (
	"net/http"

	"github.com/goodtune/screentime/internal/timer"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

// TimerHandler handles the user-facing timer endpoints.
type TimerHandler struct {
	service *timer.Service
	logger  zerolog.Logger
}

// NewTimerHandler creates a new timer handler.
func NewTimerHandler(service *timer.Service, logger zerolog.Logger) *TimerHandler {
	return &TimerHandler{
		service: service,
		logger:  logger.With().Str("handler", "timer").Logger(),
	}
}

// requestUser extracts the acting user from the X-User-ID header.
func requestUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := r.Header.Get("X-User-ID")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "Missing X-User-ID header")
		return "", false
	}
	return userID, true
}

// List returns the caller's timers with live remaining time.
func (h *TimerHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := requestUser(w, r)
	if !ok {
		return
	}

	views, err := h.service.GetUserTimers(r.Context(), userID)
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to list timers")
		writeError(w, http.StatusInternalServerError, "Failed to retrieve timers")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"timers": views,
		"count":  len(views),
	})
}

// Start starts the clock on a timer.
func (h *TimerHandler) Start(w http.ResponseWriter, r *http.Request) {
	userID, ok := requestUser(w, r)
	if !ok {
		return
	}
	id := mux.Vars(r)["id"]

	res, err := h.service.Start(r.Context(), id, userID)
	if err != nil {
		h.logger.Error().Err(err).Str("timer_id", id).Msg("Failed to start timer")
		writeError(w, http.StatusInternalServerError, "Failed to start timer")
		return
	}

	status := http.StatusOK
	if !res.OK {
		status = http.StatusConflict
		if res.Reason == timer.ReasonNotFound {
			status = http.StatusNotFound
		} else if res.Reason == timer.ReasonNotOwner {
			status = http.StatusForbidden
		}
	}
	writeJSON(w, status, res)
}

// Stop stops the clock on a timer.
func (h *TimerHandler) Stop(w http.ResponseWriter, r *http.Request) {
	userID, ok := requestUser(w, r)
	if !ok {
		return
	}
	id := mux.Vars(r)["id"]

	res, err := h.service.Stop(r.Context(), id, userID)
	if err != nil {
		h.logger.Error().Err(err).Str("timer_id", id).Msg("Failed to stop timer")
		writeError(w, http.StatusInternalServerError, "Failed to stop timer")
		return
	}

	status := http.StatusOK
	if !res.OK {
		status = http.StatusConflict
		if res.Reason == timer.ReasonNotFound {
			status = http.StatusNotFound
		} else if res.Reason == timer.ReasonNotOwner {
			status = http.StatusForbidden
		}
	}
	writeJSON(w, status, res)
}

// Pause toggles the paused state of a timer.
func (h *TimerHandler) Pause(w http.ResponseWriter, r *http.Request) {
	userID, ok := requestUser(w, r)
	if !ok {
		return
	}
	id := mux.Vars(r)["id"]

	res, err := h.service.TogglePause(r.Context(), id, userID)
	if err != nil {
		h.logger.Error().Err(err).Str("timer_id", id).Msg("Failed to toggle pause")
		writeError(w, http.StatusInternalServerError, "Failed to toggle pause")
		return
	}

	writeJSON(w, http.StatusOK, res)
}

// SweepHandler exposes the maintenance sweep over HTTP for external
// schedulers.
type SweepHandler struct {
	sweeper *timer.Sweeper
	logger  zerolog.Logger
}

// NewSweepHandler creates a new sweep handler.
func NewSweepHandler(sweeper *timer.Sweeper, logger zerolog.Logger) *SweepHandler {
	return &SweepHandler{
		sweeper: sweeper,
		logger:  logger.With().Str("handler", "sweep").Logger(),
	}
}

// Run triggers one maintenance sweep.
func (h *SweepHandler) Run(w http.ResponseWriter, r *http.Request) {
	result, err := h.sweeper.Run(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("Sweep failed")
		writeError(w, http.StatusInternalServerError, "Sweep failed")
		return
	}

	writeJSON(w, http.StatusOK, result)
}
