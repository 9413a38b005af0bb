package datasource

import (
	"context"

	"github.com/ekaya-inc/ekaya-canvas/pkg/models"
)

// ConnectionTester tests database connectivity.
// Each implementation owns its connection and must be closed when done.
type ConnectionTester interface {
	// TestConnection verifies the database is reachable with valid credentials.
	// Returns nil if connection is healthy, error otherwise.
	TestConnection(ctx context.Context) error

	// Close releases the database connection.
	Close() error
}

// SchemaDiscoverer introspects the tables, columns and foreign keys the canvas offers.
type SchemaDiscoverer interface {
	// DiscoverSchema returns every user table with its columns, plus declared
	// foreign keys. Tables are ordered by name and columns by ordinal position.
	DiscoverSchema(ctx context.Context) (*models.Schema, error)

	Close() error
}

// DatabaseLister enumerates the databases visible to the connected user.
type DatabaseLister interface {
	// ListDatabases excludes system and template databases.
	ListDatabases(ctx context.Context) ([]string, error)

	Close() error
}

// MaxQueryLimit is the hard cap on rows returned by Query.
const MaxQueryLimit = 1000

// QueryExecutor runs read-only statements against a datasource.
type QueryExecutor interface {
	// Query runs a statement and returns at most maxRows rows. Rows past the
	// cap are not scanned. maxRows <= 0 or > MaxQueryLimit uses MaxQueryLimit.
	Query(ctx context.Context, sqlQuery string, maxRows int) (*QueryExecutionResult, error)

	// ApplyRowLimit rewrites a statement with the dialect's row cap
	// (LIMIT, or TOP for SQL Server). Statements that already carry one are returned unchanged.
	ApplyRowLimit(sqlQuery string, limit int) string

	Close() error
}

// Adapter is the full capability set every registered datasource provides.
type Adapter interface {
	ConnectionTester
	SchemaDiscoverer
	DatabaseLister
	QueryExecutor
}

// ColumnInfo describes a result column with database-agnostic type information.
type ColumnInfo struct {
	Name string `json:"name"`
	Type string `json:"type"` // Database type name (e.g., "TEXT", "INT4", "VARCHAR")
}

// QueryExecutionResult holds the results from executing a query.
type QueryExecutionResult struct {
	Columns  []ColumnInfo     `json:"columns"`
	Rows     []map[string]any `json:"rows"`
	RowCount int              `json:"rowCount"`
	// Truncated is set when the statement produced more than the requested rows.
	Truncated bool `json:"truncated,omitempty"`
}

// EffectiveLimit clamps a requested row cap into (0, MaxQueryLimit].
func EffectiveLimit(limit int) int {
	if limit <= 0 || limit > MaxQueryLimit {
		return MaxQueryLimit
	}
	return limit
}
