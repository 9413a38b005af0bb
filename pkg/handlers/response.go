package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-canvas/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-canvas/pkg/auth"
	"github.com/ekaya-inc/ekaya-canvas/pkg/logging"
	"github.com/ekaya-inc/ekaya-canvas/pkg/querybuilder"
	"github.com/ekaya-inc/ekaya-canvas/pkg/services"
	sqlguard "github.com/ekaya-inc/ekaya-canvas/pkg/sql"
)

// DefaultMaxBodyBytes bounds request bodies when no limit is configured.
const DefaultMaxBodyBytes int64 = 10 << 20

// ApiResponse is the standard envelope for successful responses.
type ApiResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

// ErrorResponse writes a JSON error response and returns any encoding error.
func ErrorResponse(w http.ResponseWriter, statusCode int, errorCode, message string) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(map[string]string{
		"error":   errorCode,
		"message": message,
	})
}

// WriteJSON writes a JSON response and returns any encoding error.
func WriteJSON(w http.ResponseWriter, statusCode int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	if statusCode != http.StatusOK {
		w.WriteHeader(statusCode)
	}
	return json.NewEncoder(w).Encode(data)
}

// writeSuccess wraps data in the ApiResponse envelope.
func writeSuccess(w http.ResponseWriter, statusCode int, data any, logger *zap.Logger) {
	if err := WriteJSON(w, statusCode, ApiResponse{Success: true, Data: data}); err != nil {
		logger.Error("Failed to write response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, statusCode int, errorCode, message string, logger *zap.Logger) {
	if err := ErrorResponse(w, statusCode, errorCode, message); err != nil {
		logger.Error("Failed to write error response", zap.Error(err))
	}
}

// decodeJSON reads a size-limited JSON body into dst. An empty body leaves
// dst untouched. On failure it writes a 400 or 413 response and returns false.
func decodeJSON(w http.ResponseWriter, r *http.Request, maxBytes int64, dst any, logger *zap.Logger) bool {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBodyBytes
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

	err := json.NewDecoder(r.Body).Decode(dst)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}

	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeError(w, http.StatusRequestEntityTooLarge, "request_too_large", "Request body too large", logger)
		return false
	}
	writeError(w, http.StatusBadRequest, "invalid_request", "Invalid request body", logger)
	return false
}

// classifyError maps service errors to a status and error code. Anything
// unrecognised is reported as a datasource failure.
func classifyError(err error) (int, string) {
	var suspicious *services.SuspiciousValueError
	if errors.As(err, &suspicious) {
		return http.StatusBadRequest, "suspicious_value"
	}

	switch {
	case errors.Is(err, sqlguard.ErrRejectedStatement):
		return http.StatusForbidden, "rejected_statement"
	case errors.Is(err, sqlguard.ErrMultipleStatements), errors.Is(err, sqlguard.ErrEmptyStatement):
		return http.StatusBadRequest, "invalid_query"
	case errors.Is(err, querybuilder.ErrEmptyGraph), errors.Is(err, apperrors.ErrInvalidRequest):
		return http.StatusBadRequest, "invalid_graph"
	case errors.Is(err, apperrors.ErrUnsupportedDatasource):
		return http.StatusBadRequest, "unsupported_datasource"
	case errors.Is(err, apperrors.ErrInvalidConnectionParam):
		return http.StatusBadRequest, "invalid_connection_config"
	case errors.Is(err, auth.ErrNoActiveConnection):
		return http.StatusBadRequest, "no_active_connection"
	case errors.Is(err, apperrors.ErrConnectionNotFound):
		return http.StatusNotFound, "connection_not_found"
	case errors.Is(err, apperrors.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, apperrors.ErrTooManyConnections):
		return http.StatusServiceUnavailable, "too_many_connections"
	default:
		return http.StatusBadGateway, "datasource_error"
	}
}

// writeServiceError writes the response for an error returned by a service.
// Datasource failures are logged and their messages sanitized.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error, logger *zap.Logger) {
	status, code := classifyError(err)
	message := err.Error()
	if status == http.StatusBadGateway {
		message = logging.SanitizeError(err)
		logger.Error("Datasource request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("error", message))
	}
	writeError(w, status, code, message, logger)
}
