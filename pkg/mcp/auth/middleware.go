// Package mcpauth authenticates MCP requests with RFC 6750 Bearer token
// error responses instead of the JSON bodies used by the REST API.
package mcpauth

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-canvas/pkg/auth"
)

// Middleware validates tokens on the MCP endpoint.
type Middleware struct {
	authService auth.AuthService
	logger      *zap.Logger
}

// NewMiddleware creates a new MCP auth middleware.
func NewMiddleware(authService auth.AuthService, logger *zap.Logger) *Middleware {
	return &Middleware{
		authService: authService,
		logger:      logger,
	}
}

// RequireAuth rejects requests without a valid token and stores the claims
// in the request context. A nil Middleware passes every request through.
func (m *Middleware) RequireAuth(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, token, err := m.authService.ValidateRequest(r)
		if err != nil {
			m.logger.Debug("MCP auth failed: invalid or missing token",
				zap.String("path", r.URL.Path),
				zap.Error(err))
			writeWWWAuthenticate(w, http.StatusUnauthorized, "invalid_token", "The access token is invalid or expired")
			return
		}

		next.ServeHTTP(w, r.WithContext(auth.WithClaims(r.Context(), claims, token)))
	})
}

// writeWWWAuthenticate writes an RFC 6750 Bearer token error response.
// See: https://datatracker.ietf.org/doc/html/rfc6750#section-3
func writeWWWAuthenticate(w http.ResponseWriter, status int, errorCode, description string) {
	w.Header().Set("WWW-Authenticate", `Bearer error="`+errorCode+`", error_description="`+description+`"`)
	w.WriteHeader(status)
}
