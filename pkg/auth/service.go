package auth

import (
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// TokenCookieName is the cookie browser clients carry their token in.
const TokenCookieName = "ekaya_canvas_jwt"

var (
	ErrMissingAuthorization = errors.New("missing authorization")
	ErrInvalidAuthFormat    = errors.New("invalid authorization header format")
)

// AuthService authenticates HTTP requests.
type AuthService interface {
	// ValidateRequest extracts and validates a JWT from the request. The
	// token cookie is checked first, then an Authorization Bearer header.
	ValidateRequest(r *http.Request) (*Claims, string, error)
}

type authService struct {
	validator TokenValidator
	logger    *zap.Logger
}

// NewAuthService creates an AuthService backed by validator.
func NewAuthService(validator TokenValidator, logger *zap.Logger) AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &authService{
		validator: validator,
		logger:    logger,
	}
}

func (s *authService) ValidateRequest(r *http.Request) (*Claims, string, error) {
	tokenString, source, err := extractToken(r)
	if err != nil {
		s.logger.Debug("No usable token in request",
			zap.String("path", r.URL.Path),
			zap.String("method", r.Method),
			zap.Error(err))
		return nil, "", err
	}

	claims, err := s.validator.ValidateToken(tokenString)
	if err != nil {
		s.logger.Debug("JWT validation failed",
			zap.Error(err),
			zap.String("path", r.URL.Path),
			zap.String("token_source", source))
		return nil, "", err
	}

	return claims, tokenString, nil
}

func extractToken(r *http.Request) (token, source string, err error) {
	if cookie, err := r.Cookie(TokenCookieName); err == nil && cookie.Value != "" {
		return cookie.Value, "cookie", nil
	}

	header := r.Header.Get("Authorization")
	if header == "" {
		return "", "", ErrMissingAuthorization
	}

	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" || strings.Contains(token, " ") {
		return "", "", ErrInvalidAuthFormat
	}
	return token, "header", nil
}

var _ AuthService = (*authService)(nil)
