package apperrors

import "errors"

var (
	ErrNotFound               = errors.New("not found")
	ErrInvalidRequest         = errors.New("invalid request")
	ErrConnectionNotFound     = errors.New("connection not found")
	ErrUnsupportedDatasource  = errors.New("unsupported datasource type")
	ErrTooManyConnections     = errors.New("connection limit reached")
	ErrInvalidConnectionParam = errors.New("invalid connection parameters")
)
