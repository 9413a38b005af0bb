// Package auth provides optional JWT authentication for the canvas API and
// MCP endpoint, plus the cookie session that remembers a browser's active
// connection.
package auth

import (
	"context"

	"github.com/golang-jwt/jwt/v5"
)

// Audience is the aud value a token must carry to be accepted.
const Audience = "canvas"

type contextKey string

const (
	// ClaimsKey is the context key for storing JWT claims.
	ClaimsKey contextKey = "claims"
	// TokenKey is the context key for storing the raw JWT token string.
	TokenKey contextKey = "token"
)

// Claims is the token payload. Only the registered claims are required;
// email and roles are carried through for logging.
type Claims struct {
	jwt.RegisteredClaims
	Email string   `json:"email,omitempty"`
	Roles []string `json:"roles,omitempty"`
}

// GetClaims retrieves JWT claims from the request context.
func GetClaims(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(ClaimsKey).(*Claims)
	return claims, ok
}

// GetToken retrieves the raw JWT token string from the request context.
func GetToken(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(TokenKey).(string)
	return token, ok
}

// SubjectFromContext returns the authenticated subject, or "" when the
// request was not authenticated.
func SubjectFromContext(ctx context.Context) string {
	claims, ok := GetClaims(ctx)
	if !ok || claims == nil {
		return ""
	}
	return claims.Subject
}

// WithClaims returns a context carrying claims and the raw token.
func WithClaims(ctx context.Context, claims *Claims, token string) context.Context {
	ctx = context.WithValue(ctx, ClaimsKey, claims)
	return context.WithValue(ctx, TokenKey, token)
}
