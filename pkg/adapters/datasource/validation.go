package datasource

import (
	"errors"
	"fmt"
	"maps"
	"strings"

	"github.com/ekaya-inc/ekaya-canvas/pkg/apperrors"
)

// ValidationError lists every problem found in a connection config.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return strings.Join(e.Problems, ", ")
}

// Unwrap lets errors.Is match apperrors.ErrInvalidConnectionParam.
func (e *ValidationError) Unwrap() error {
	return apperrors.ErrInvalidConnectionParam
}

// ValidateOptions relaxes checks for flows that do not target a single database.
type ValidateOptions struct {
	// DatabaseOptional is set when listing databases: the server default is used.
	DatabaseOptional bool
}

// NormalizeConnectionConfig validates a connection config and returns a copy
// with "type" set to the canonical adapter type and "port" defaulted.
// The type is read from "type" or the legacy "client" field and defaults to postgres.
func NormalizeConnectionConfig(config map[string]any, opts ValidateOptions) (map[string]any, error) {
	requested := StringParam(config, "type", "client")
	if requested == "" {
		requested = "postgres"
	}
	dsType, ok := CanonicalType(requested)
	if !ok {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrUnsupportedDatasource, requested)
	}
	info, _ := GetInfo(dsType)

	var problems []string
	if info.FileBased {
		if StringParam(config, "database") == "" {
			problems = append(problems, "Database path is required")
		}
	} else {
		if StringParam(config, "host") == "" {
			problems = append(problems, "Host is required")
		}
		if StringParam(config, "user", "username") == "" {
			problems = append(problems, "User is required")
		}
		if StringParam(config, "password", "client_secret") == "" {
			problems = append(problems, "Password is required")
		}
		if !opts.DatabaseOptional && StringParam(config, "database", "name") == "" {
			problems = append(problems, "Database name is required")
		}
	}

	port, hasPort := IntParam(config, "port")
	if raw := config["port"]; raw != nil && raw != "" && !hasPort {
		problems = append(problems, "Port must be a number")
	} else if hasPort && (port < 1 || port > 65535) {
		problems = append(problems, "Port must be between 1 and 65535")
	}

	if len(problems) > 0 {
		return nil, &ValidationError{Problems: problems}
	}

	normalized := maps.Clone(config)
	normalized["type"] = dsType
	delete(normalized, "client")
	if !hasPort && info.DefaultPort > 0 {
		normalized["port"] = info.DefaultPort
	}
	return normalized, nil
}

// IsValidationError reports whether err came from NormalizeConnectionConfig.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
