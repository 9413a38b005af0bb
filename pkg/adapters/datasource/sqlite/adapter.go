package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"

	_ "modernc.org/sqlite" // SQLite driver for database/sql

	"github.com/ekaya-inc/ekaya-canvas/pkg/adapters/datasource"
)

// Adapter provides SQLite connectivity, schema discovery and query execution.
type Adapter struct {
	config  *Config
	db      *sql.DB
	ownedDB bool
}

// buildDSN opens the file with query_only set on every connection.
func buildDSN(cfg *Config) string {
	return cfg.Path + "?_pragma=query_only(1)&_pragma=busy_timeout(5000)"
}

// NewAdapter creates a SQLite adapter. The file must already exist; the
// driver would otherwise create an empty database.
func NewAdapter(ctx context.Context, cfg *Config, connMgr *datasource.ConnectionManager, connectionID string) (*Adapter, error) {
	if cfg.Path != MemoryPath {
		if _, err := os.Stat(cfg.Path); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("database file %q does not exist", cfg.Path)
			}
			return nil, fmt.Errorf("stat database file: %w", err)
		}
	}
	dsn := buildDSN(cfg)

	if connMgr == nil || connectionID == "" {
		connector, err := datasource.OpenSQLPool(ctx, "sqlite", dsn, "sqlite", datasource.ConnectionManagerConfig{})
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		db, err := datasource.GetSQLDB(connector)
		if err != nil {
			connector.Close()
			return nil, fmt.Errorf("failed to extract sqlite db: %w", err)
		}
		return &Adapter{config: cfg, db: db, ownedDB: true}, nil
	}

	connector, err := connMgr.GetOrCreateConnection(ctx, connectionID, func(ctx context.Context) (datasource.PoolConnector, error) {
		return datasource.OpenSQLPool(ctx, "sqlite", dsn, "sqlite", connMgr.PoolSettings())
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get pooled connection: %w", err)
	}

	db, err := datasource.GetSQLDB(connector)
	if err != nil {
		return nil, fmt.Errorf("failed to extract sqlite db: %w", err)
	}

	return &Adapter{config: cfg, db: db}, nil
}

// TestConnection runs a trivial query against the file.
func (a *Adapter) TestConnection(ctx context.Context) error {
	var n int
	if err := a.db.QueryRowContext(ctx, "SELECT count(*) FROM sqlite_master").Scan(&n); err != nil {
		return fmt.Errorf("test query failed: %w", err)
	}
	return nil
}

// Close releases the adapter (but NOT the DB if managed).
func (a *Adapter) Close() error {
	if a.ownedDB && a.db != nil {
		return a.db.Close()
	}
	return nil
}

var _ datasource.Adapter = (*Adapter)(nil)
