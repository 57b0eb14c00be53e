package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/skatehubba/skate-core/internal/domain"
)

// CreateGame opens a new game for the caller
func (h *Handler) CreateGame(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateGameRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}

	g, err := h.games.CreateGame(r.Context(), caller(r), req)
	if err != nil {
		h.handleError(w, r, err, "create_game")
		return
	}

	h.writeCreated(w, g)
}

// GetGame returns a game by ID
func (h *Handler) GetGame(w http.ResponseWriter, r *http.Request) {
	g, err := h.games.GetGame(r.Context(), chi.URLParam(r, "gameID"))
	if err != nil {
		h.handleError(w, r, err, "get_game")
		return
	}

	h.writeSuccess(w, g)
}

// JoinGame joins the caller to a pending game
func (h *Handler) JoinGame(w http.ResponseWriter, r *http.Request) {
	g, err := h.games.JoinGame(r.Context(), chi.URLParam(r, "gameID"), caller(r))
	if err != nil {
		h.handleError(w, r, err, "join_game")
		return
	}

	h.writeSuccess(w, g)
}

// SubmitTurn applies one turn action by the caller
func (h *Handler) SubmitTurn(w http.ResponseWriter, r *http.Request) {
	var req domain.TurnRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}
	action, err := req.ToAction()
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}

	g, err := h.games.SubmitTurn(r.Context(), chi.URLParam(r, "gameID"), caller(r), action)
	if err != nil {
		h.handleError(w, r, err, "submit_turn")
		return
	}

	h.writeSuccess(w, g)
}

// Forfeit concedes the game for the caller
func (h *Handler) Forfeit(w http.ResponseWriter, r *http.Request) {
	g, err := h.games.Forfeit(r.Context(), chi.URLParam(r, "gameID"), caller(r))
	if err != nil {
		h.handleError(w, r, err, "forfeit")
		return
	}

	h.writeSuccess(w, g)
}
