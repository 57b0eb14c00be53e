package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// GetLeaderboard returns the top players by wins
func (h *Handler) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	entries, err := h.leaderboard.Top(r.Context(), queryInt(r, "limit"))
	if err != nil {
		h.handleError(w, r, err, "get_leaderboard")
		return
	}

	h.writeSuccess(w, entries)
}

// GetPlayerStats returns one player's win/loss record
func (h *Handler) GetPlayerStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.leaderboard.PlayerStats(r.Context(), chi.URLParam(r, "playerID"))
	if err != nil {
		h.handleError(w, r, err, "get_player_stats")
		return
	}

	h.writeSuccess(w, stats)
}
