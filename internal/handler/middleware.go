package handler

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/skatehubba/skate-core/internal/domain"
)

// Roles granted by the gateway in X-User-Roles
const (
	RoleJudge = domain.RoleJudge
	RoleAdmin = domain.RoleAdmin
)

// Identity is the caller as verified by the gateway
type Identity = domain.Caller

type identityKey struct{}

// IdentityFromContext returns the caller attached by identityMiddleware
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}

// gatewayAuth validates the bearer token presented by the gateway. An empty
// configured token disables the check.
func (h *Handler) gatewayAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.gatewayToken == "" {
			next.ServeHTTP(w, r)
			return
		}

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			h.writeError(w, http.StatusUnauthorized, domain.ErrMissingIdentity)
			return
		}
		token := strings.TrimPrefix(authHeader, "Bearer ")
		if subtle.ConstantTimeCompare([]byte(token), []byte(h.gatewayToken)) != 1 {
			h.logger.Warn("invalid gateway token", "path", r.URL.Path)
			h.writeError(w, http.StatusUnauthorized, domain.ErrMissingIdentity)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// identityMiddleware extracts the caller id and roles set by the gateway
func (h *Handler) identityMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := strings.TrimSpace(r.Header.Get("X-User-ID"))
		if userID == "" {
			h.writeError(w, http.StatusUnauthorized, domain.ErrMissingIdentity)
			return
		}

		var roles []string
		for _, role := range strings.Split(r.Header.Get("X-User-Roles"), ",") {
			role = strings.ToLower(strings.TrimSpace(role))
			if role != "" {
				roles = append(roles, role)
			}
		}

		ctx := context.WithValue(r.Context(), identityKey{}, Identity{ID: userID, Roles: roles})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireRole rejects callers without role
func (h *Handler) requireRole(role string) func(http.Handler) http.Handler {
	denied := domain.ErrUnauthorized
	switch role {
	case RoleJudge:
		denied = domain.ErrNotAJudge
	case RoleAdmin:
		denied = domain.ErrNotAdmin
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := IdentityFromContext(r.Context())
			if !ok || !id.HasRole(role) {
				h.writeError(w, http.StatusForbidden, denied)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// metricsMiddleware records request counts and latency by route pattern
func (h *Handler) metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		h.metrics.RecordHTTPRequest(route, r.Method, status, time.Since(start))
	})
}

// caller returns the verified caller id
func caller(r *http.Request) string {
	id, _ := IdentityFromContext(r.Context())
	return id.ID
}
