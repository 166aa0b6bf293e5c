package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/goodtune/screentime/internal/storage"
	"github.com/goodtune/screentime/internal/timer"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

// AdminHandler handles timer administration requests.
type AdminHandler struct {
	admin  *timer.Admin
	store  storage.Store
	logger zerolog.Logger
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(admin *timer.Admin, store storage.Store, logger zerolog.Logger) *AdminHandler {
	return &AdminHandler{
		admin:  admin,
		store:  store,
		logger: logger.With().Str("handler", "admin").Logger(),
	}
}

// requestAdmin extracts the acting administrator from the X-Admin-ID
// header, falling back to "admin" when absent. Authentication itself is
// enforced by TokenMiddleware; the header only names the actor for audit.
func requestAdmin(r *http.Request) string {
	if id := r.Header.Get("X-Admin-ID"); id != "" {
		return id
	}
	return "admin"
}

// ListTimers returns all timers, optionally filtered by user.
func (h *AdminHandler) ListTimers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var (
		timers []storage.Timer
		err    error
	)
	if userID := r.URL.Query().Get("user"); userID != "" {
		timers, err = h.store.Timers().ListByUser(ctx, userID)
	} else {
		timers, err = h.store.Timers().List(ctx)
	}
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list timers")
		writeError(w, http.StatusInternalServerError, "Failed to retrieve timers")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"timers": timers,
		"count":  len(timers),
	})
}

// GetTimer returns a single timer by ID.
func (h *AdminHandler) GetTimer(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	t, err := h.store.Timers().Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Timer not found")
			return
		}
		h.logger.Error().Err(err).Str("id", id).Msg("Failed to get timer")
		writeError(w, http.StatusInternalServerError, "Failed to retrieve timer")
		return
	}

	writeJSON(w, http.StatusOK, t)
}

// CreateTimer creates a new timer.
func (h *AdminHandler) CreateTimer(w http.ResponseWriter, r *http.Request) {
	var params timer.TimerParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	t, err := h.admin.CreateTimer(r.Context(), params, requestAdmin(r))
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to create timer")
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, t)
}

// UpdateTimer updates an existing timer.
func (h *AdminHandler) UpdateTimer(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var params timer.TimerParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	t, err := h.admin.UpdateTimer(r.Context(), id, params, requestAdmin(r))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Timer not found")
			return
		}
		h.logger.Error().Err(err).Str("id", id).Msg("Failed to update timer")
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, t)
}

// DeleteTimer soft-deletes a timer.
func (h *AdminHandler) DeleteTimer(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if err := h.admin.DeleteTimer(r.Context(), id, requestAdmin(r)); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Timer not found")
			return
		}
		h.logger.Error().Err(err).Str("id", id).Msg("Failed to delete timer")
		writeError(w, http.StatusInternalServerError, "Failed to delete timer")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"deleted": id})
}

// GrantBonus adds bonus minutes to today's session for a timer.
func (h *AdminHandler) GrantBonus(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req struct {
		Minutes int `json:"minutes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.admin.GrantBonus(r.Context(), id, req.Minutes, requestAdmin(r)); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Timer not found")
			return
		}
		h.logger.Error().Err(err).Str("id", id).Msg("Failed to grant bonus")
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"timer_id": id,
		"minutes":  req.Minutes,
	})
}

// GetAudit returns the audit trail for a timer, newest first.
func (h *AdminHandler) GetAudit(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = n
	}

	entries, err := h.admin.AuditTrail(r.Context(), id, limit)
	if err != nil {
		h.logger.Error().Err(err).Str("id", id).Msg("Failed to list audit entries")
		writeError(w, http.StatusInternalServerError, "Failed to retrieve audit entries")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"entries": entries,
		"count":   len(entries),
	})
}
