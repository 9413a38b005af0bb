package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	mysqldriver "github.com/go-sql-driver/mysql"

	"github.com/ekaya-inc/ekaya-canvas/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-canvas/pkg/config"
)

const dialTimeout = 10 * time.Second

// Adapter provides MySQL connectivity, schema discovery and query execution.
type Adapter struct {
	config  *Config
	db      *sql.DB
	ownedDB bool
}

// buildDSN formats a go-sql-driver DSN. The driver handles escaping.
func buildDSN(cfg *Config) string {
	mc := mysqldriver.NewConfig()
	mc.User = cfg.User
	mc.Passwd = cfg.Password
	mc.Net = "tcp"
	mc.Addr = net.JoinHostPort(config.ResolveHostForDocker(cfg.Host), strconv.Itoa(cfg.Port))
	mc.DBName = cfg.Database
	mc.Timeout = dialTimeout
	mc.TLSConfig = cfg.TLS
	return mc.FormatDSN()
}

// NewAdapter creates a MySQL adapter. With a connection manager and id the
// *sql.DB is shared and survives Close; otherwise the adapter owns it.
func NewAdapter(ctx context.Context, cfg *Config, connMgr *datasource.ConnectionManager, connectionID string) (*Adapter, error) {
	dsn := buildDSN(cfg)

	if connMgr == nil || connectionID == "" {
		connector, err := datasource.OpenSQLPool(ctx, "mysql", dsn, "mysql", datasource.ConnectionManagerConfig{})
		if err != nil {
			return nil, fmt.Errorf("connect to mysql: %w", err)
		}
		db, err := datasource.GetSQLDB(connector)
		if err != nil {
			connector.Close()
			return nil, fmt.Errorf("failed to extract mysql db: %w", err)
		}
		return &Adapter{config: cfg, db: db, ownedDB: true}, nil
	}

	connector, err := connMgr.GetOrCreateConnection(ctx, connectionID, func(ctx context.Context) (datasource.PoolConnector, error) {
		return datasource.OpenSQLPool(ctx, "mysql", dsn, "mysql", connMgr.PoolSettings())
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get pooled connection: %w", err)
	}

	db, err := datasource.GetSQLDB(connector)
	if err != nil {
		return nil, fmt.Errorf("failed to extract mysql db: %w", err)
	}

	return &Adapter{config: cfg, db: db}, nil
}

// TestConnection verifies the database is reachable and selected.
func (a *Adapter) TestConnection(ctx context.Context) error {
	if err := a.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}

	var currentDB sql.NullString
	if err := a.db.QueryRowContext(ctx, "SELECT DATABASE()").Scan(&currentDB); err != nil {
		return fmt.Errorf("test query failed: %w", err)
	}

	if !strings.EqualFold(currentDB.String, a.config.Database) {
		return fmt.Errorf("connected to wrong database: expected %q but connected to %q", a.config.Database, currentDB.String)
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
