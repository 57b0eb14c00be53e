package handler

import (
	"net/http"

	"github.com/skatehubba/skate-core/internal/domain"
)

// RegisterPlayer claims a handle for the caller so opponents can invite them
func (h *Handler) RegisterPlayer(w http.ResponseWriter, r *http.Request) {
	var req domain.RegisterPlayerRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}

	player, err := h.players.Register(r.Context(), caller(r), req)
	if err != nil {
		h.handleError(w, r, err, "register_player")
		return
	}

	h.writeSuccess(w, player)
}
