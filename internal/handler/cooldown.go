package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// GetCooldown returns the caller's cooldown status
func (h *Handler) GetCooldown(w http.ResponseWriter, r *http.Request) {
	status, err := h.cooldowns.Status(r.Context(), caller(r))
	if err != nil {
		h.handleError(w, r, err, "get_cooldown")
		return
	}

	h.writeSuccess(w, status)
}

// SetCooldown starts the caller's cooldown after they abandon an attempt
func (h *Handler) SetCooldown(w http.ResponseWriter, r *http.Request) {
	rec, err := h.cooldowns.Set(r.Context(), caller(r))
	if err != nil {
		h.handleError(w, r, err, "set_cooldown")
		return
	}

	h.writeSuccess(w, rec)
}

// ClearCooldown lifts a user's cooldown
func (h *Handler) ClearCooldown(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if err := h.cooldowns.Clear(r.Context(), userID); err != nil {
		h.handleError(w, r, err, "clear_cooldown")
		return
	}

	h.logger.Info("cooldown cleared by admin", "user_id", userID, "admin_id", caller(r))
	h.writeSuccess(w, map[string]string{"status": "cleared"})
}
