package tools

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ekaya-inc/ekaya-canvas/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-canvas/pkg/logging"
	"github.com/ekaya-inc/ekaya-canvas/pkg/querybuilder"
	"github.com/ekaya-inc/ekaya-canvas/pkg/services"
	sqlguard "github.com/ekaya-inc/ekaya-canvas/pkg/sql"
)

// ErrorResponse is the body of a tool result with isError set.
type ErrorResponse struct {
	Error   bool   `json:"error"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// NewErrorResult creates a tool result containing a structured error.
func NewErrorResult(code, message string) *mcp.CallToolResult {
	return NewErrorResultWithDetails(code, message, nil)
}

// NewErrorResultWithDetails creates an error result with additional context.
func NewErrorResultWithDetails(code, message string, details any) *mcp.CallToolResult {
	jsonBytes, _ := json.Marshal(ErrorResponse{
		Error:   true,
		Code:    code,
		Message: message,
		Details: details,
	})
	result := mcp.NewToolResultText(string(jsonBytes))
	result.IsError = true
	return result
}

// jsonResult marshals v as the text content of a successful result.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	jsonBytes, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

// errorResult converts a service error into an error result the caller can
// act on. Messages from the database are sanitized.
func errorResult(err error) *mcp.CallToolResult {
	var suspicious *services.SuspiciousValueError
	if errors.As(err, &suspicious) {
		fields := make([]string, len(suspicious.Findings))
		for i, f := range suspicious.Findings {
			fields[i] = f.Field
		}
		return NewErrorResultWithDetails("suspicious_value", err.Error(), map[string]any{"fields": fields})
	}

	switch {
	case errors.Is(err, sqlguard.ErrRejectedStatement):
		return NewErrorResult("rejected_statement", err.Error())
	case errors.Is(err, sqlguard.ErrMultipleStatements), errors.Is(err, sqlguard.ErrEmptyStatement):
		return NewErrorResult("invalid_query", err.Error())
	case errors.Is(err, querybuilder.ErrEmptyGraph), errors.Is(err, apperrors.ErrInvalidRequest):
		return NewErrorResult("invalid_graph", err.Error())
	case errors.Is(err, apperrors.ErrConnectionNotFound):
		return NewErrorResult("connection_not_found", err.Error())
	}

	if code := SQLUserErrorCode(err); code != "" {
		return NewErrorResult(code, logging.SanitizeError(err))
	}
	return NewErrorResult("datasource_error", logging.SanitizeError(err))
}

// sqlStateRegex matches PostgreSQL SQLSTATE codes in error messages like "(SQLSTATE 42601)"
var sqlStateRegex = regexp.MustCompile(`\(SQLSTATE ([0-9A-Z]{5})\)`)

// SQLUserErrorCode names the mistake behind a PostgreSQL error in the
// statement itself (syntax, unknown column, bad input). It returns "" for
// connection and server failures.
func SQLUserErrorCode(err error) string {
	if err == nil {
		return ""
	}

	var sqlState string
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		sqlState = pgErr.Code
	} else if matches := sqlStateRegex.FindStringSubmatch(err.Error()); len(matches) >= 2 {
		sqlState = matches[1]
	}
	if len(sqlState) < 2 {
		return ""
	}

	switch sqlState {
	case "42601":
		return "syntax_error"
	case "42703":
		return "undefined_column"
	case "42P01":
		return "undefined_table"
	case "42883":
		return "undefined_function"
	case "22012":
		return "division_by_zero"
	case "22P02":
		return "invalid_input"
	case "57014":
		return "statement_timeout"
	}

	switch sqlState[:2] {
	case "22":
		return "data_exception"
	case "42":
		return "sql_error"
	}
	return ""
}
