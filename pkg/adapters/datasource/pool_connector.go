package datasource

import "context"

// PoolConnector abstracts a connection pool (pgxpool or database/sql) so the
// ConnectionManager can health-check and expire pools of any dialect.
type PoolConnector interface {
	Ping(ctx context.Context) error
	Close() error
	// GetType returns the adapter type for logging and stats.
	GetType() string
}
