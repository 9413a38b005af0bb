package postgres

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ekaya-inc/ekaya-canvas/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-canvas/pkg/config"
)

// Adapter provides PostgreSQL connectivity, schema discovery and query execution.
type Adapter struct {
	config    *Config
	pool      *pgxpool.Pool
	ownedPool bool // true if we created the pool (TestConnection, ListDatabases)
}

// buildConnectionString builds a PostgreSQL URL with proper escaping.
// All user-provided fields are URL-escaped so passwords containing @, /, # or ?
// do not break parsing. Loopback hosts are rewritten when running in Docker.
func buildConnectionString(cfg *Config) string {
	u := &url.URL{
		Scheme:   "postgresql",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     config.ResolveHostForDocker(cfg.Host) + ":" + strconv.Itoa(cfg.Port),
		Path:     "/" + cfg.Database,
		RawQuery: url.Values{"sslmode": []string{cfg.SSLMode}}.Encode(),
	}
	return u.String()
}

// NewAdapter creates a PostgreSQL adapter. With a connection manager and id the
// pool is shared and survives Close; otherwise the adapter owns its pool.
func NewAdapter(ctx context.Context, cfg *Config, connMgr *datasource.ConnectionManager, connectionID string) (*Adapter, error) {
	connStr := buildConnectionString(cfg)

	if connMgr == nil || connectionID == "" {
		pool, err := pgxpool.New(ctx, connStr)
		if err != nil {
			return nil, fmt.Errorf("connect to postgres: %w", err)
		}
		return &Adapter{config: cfg, pool: pool, ownedPool: true}, nil
	}

	connector, err := connMgr.GetOrCreateConnection(ctx, connectionID, func(ctx context.Context) (datasource.PoolConnector, error) {
		return datasource.CreatePostgresPool(ctx, connStr, connMgr.PoolSettings())
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get pooled connection: %w", err)
	}

	pool, err := datasource.GetPostgresPool(connector)
	if err != nil {
		return nil, fmt.Errorf("failed to extract postgres pool: %w", err)
	}

	return &Adapter{config: cfg, pool: pool}, nil
}

// TestConnection verifies the database is reachable with valid credentials
// and that the server put us in the database that was asked for.
func (a *Adapter) TestConnection(ctx context.Context) error {
	if err := a.pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}

	var currentDB string
	if err := a.pool.QueryRow(ctx, "SELECT current_database()").Scan(&currentDB); err != nil {
		return fmt.Errorf("test query failed: %w", err)
	}

	if !strings.EqualFold(currentDB, a.config.Database) {
		return fmt.Errorf("connected to wrong database: expected %q but connected to %q", a.config.Database, currentDB)
	}

	return nil
}

// Close releases the adapter (but NOT the pool if managed).
func (a *Adapter) Close() error {
	if a.ownedPool && a.pool != nil {
		a.pool.Close()
	}
	return nil
}

// Ensure Adapter implements datasource.Adapter at compile time.
var _ datasource.Adapter = (*Adapter)(nil)
