package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/skatehubba/skate-core/internal/config"
	"github.com/skatehubba/skate-core/internal/domain"
	"github.com/skatehubba/skate-core/internal/metrics"
	"github.com/skatehubba/skate-core/internal/service"
)

// Checker reports whether a dependency is reachable
type Checker func(ctx context.Context) error

// Services bundles the business services the API exposes
type Services struct {
	Games       *service.GameService
	Voting      *service.VotingService
	Queue       *service.QueueService
	Cooldowns   *service.CooldownService
	Leaderboard *service.LeaderboardService
	Players     *service.PlayerService
	// Checks are run by /ready, keyed by dependency name.
	Checks map[string]Checker
}

// Handler provides HTTP handlers for the game API
type Handler struct {
	games        *service.GameService
	voting       *service.VotingService
	queue        *service.QueueService
	cooldowns    *service.CooldownService
	leaderboard  *service.LeaderboardService
	players      *service.PlayerService
	checks       map[string]Checker
	gatewayToken string
	metrics      *metrics.Manager
	logger       *slog.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(svc Services, cfg *config.ServerConfig, m *metrics.Manager, logger *slog.Logger) *Handler {
	return &Handler{
		games:        svc.Games,
		voting:       svc.Voting,
		queue:        svc.Queue,
		cooldowns:    svc.Cooldowns,
		leaderboard:  svc.Leaderboard,
		players:      svc.Players,
		checks:       svc.Checks,
		gatewayToken: cfg.GatewayToken,
		metrics:      m,
		logger:       logger,
	}
}

// APIResponse represents a standard API response
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// Router creates and configures the HTTP router
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	r.Use(corsMiddleware)
	r.Use(h.metricsMiddleware)

	// Health check
	r.Get("/health", h.HealthCheck)
	r.Get("/ready", h.ReadyCheck)
	if h.metrics != nil {
		r.Handle("/metrics", h.metrics.Handler())
	}

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(h.gatewayAuth)
		r.Use(h.identityMiddleware)

		r.Route("/games", func(r chi.Router) {
			r.Post("/", h.CreateGame)
			r.Route("/{gameID}", func(r chi.Router) {
				r.Get("/", h.GetGame)
				r.Post("/join", h.JoinGame)
				r.Post("/turn", h.SubmitTurn)
				r.Post("/forfeit", h.Forfeit)
			})
		})

		r.Route("/submissions", func(r chi.Router) {
			r.Post("/", h.CreateSubmission)
			r.With(h.requireRole(RoleJudge)).Get("/queue", h.GetQueue)
			r.With(h.requireRole(RoleJudge)).Get("/queue/next", h.GetJudgeQueue)
			r.Route("/{submissionID}", func(r chi.Router) {
				r.Get("/", h.GetSubmission)
				r.With(h.requireRole(RoleJudge)).Post("/votes", h.SubmitVote)
			})
		})

		r.Route("/cooldown", func(r chi.Router) {
			r.Get("/", h.GetCooldown)
			r.Post("/", h.SetCooldown)
			r.With(h.requireRole(RoleAdmin)).Delete("/{userID}", h.ClearCooldown)
		})

		r.Get("/leaderboard", h.GetLeaderboard)
		r.Put("/players/me", h.RegisterPlayer)
		r.Get("/players/{playerID}/stats", h.GetPlayerStats)
	})

	return r
}

// corsMiddleware adds CORS headers
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type, X-Request-ID, X-User-ID, X-User-Roles")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeSuccess writes a successful JSON response
func (h *Handler) writeSuccess(w http.ResponseWriter, data interface{}) {
	h.writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    data,
	})
}

// writeCreated writes a 201 JSON response
func (h *Handler) writeCreated(w http.ResponseWriter, data interface{}) {
	h.writeJSON(w, http.StatusCreated, APIResponse{
		Success: true,
		Data:    data,
	})
}

// writeError writes an error JSON response
func (h *Handler) writeError(w http.ResponseWriter, status int, err error) {
	h.writeJSON(w, status, APIResponse{
		Success: false,
		Error:   err.Error(),
	})
}

// statusFor maps an error kind to its HTTP status
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrMissingIdentity):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrTransient):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// handleError writes the response for a service error. Only the five domain
// kinds reach the client verbatim.
func (h *Handler) handleError(w http.ResponseWriter, r *http.Request, err error, op string) {
	status := statusFor(err)
	switch status {
	case http.StatusInternalServerError:
		h.logger.Error("request failed",
			"op", op,
			"request_id", middleware.GetReqID(r.Context()),
			"error", err,
		)
		h.writeError(w, status, domain.ErrInternalError)
	case http.StatusServiceUnavailable:
		h.logger.Warn("request gave up under contention",
			"op", op,
			"request_id", middleware.GetReqID(r.Context()),
			"error", err,
		)
		h.writeError(w, status, domain.ErrTransient)
	default:
		h.writeError(w, status, err)
	}
}

// decode reads a JSON body into v
func decode(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return domain.ErrInvalidRequest
	}
	return nil
}

// queryInt parses an optional positive integer query parameter
func queryInt(r *http.Request, name string) int {
	if s := r.URL.Query().Get(name); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return 0
}

// HealthCheck returns service health status
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, map[string]string{"status": "healthy"})
}

// ReadyCheck returns service readiness status
func (h *Handler) ReadyCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	failed := make(map[string]string)
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			failed[name] = err.Error()
		}
	}
	if len(failed) > 0 {
		h.logger.Warn("readiness check failed", "failed", failed)
		h.writeJSON(w, http.StatusServiceUnavailable, APIResponse{
			Success: false,
			Data:    failed,
			Error:   "not ready",
		})
		return
	}

	h.writeSuccess(w, map[string]string{"status": "ready"})
}
