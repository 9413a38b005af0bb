package auth

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
)

// Middleware guards handlers with AuthService. A nil *Middleware lets every
// request through, which is how auth is switched off.
type Middleware struct {
	authService AuthService
	logger      *zap.Logger
}

// NewMiddleware creates a new auth middleware with the given AuthService.
func NewMiddleware(authService AuthService, logger *zap.Logger) *Middleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Middleware{
		authService: authService,
		logger:      logger,
	}
}

// RequireAuth validates the request's JWT and stores the claims and token in
// the request context.
func (m *Middleware) RequireAuth(next http.HandlerFunc) http.HandlerFunc {
	if m == nil {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request) {
		claims, token, err := m.authService.ValidateRequest(r)
		if err != nil {
			m.unauthorized(w, "Authentication required")
			return
		}
		next(w, r.WithContext(WithClaims(r.Context(), claims, token)))
	}
}

func (m *Middleware) unauthorized(w http.ResponseWriter, message string) {
	m.writeError(w, http.StatusUnauthorized, "unauthorized", message)
}

func (m *Middleware) writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(map[string]string{
		"error":   code,
		"message": message,
	}); err != nil {
		m.logger.Error("Failed to write error response", zap.Error(err))
	}
}
