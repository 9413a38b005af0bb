package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	_ "github.com/microsoft/go-mssqldb"         // SQL Server driver
	_ "github.com/microsoft/go-mssqldb/azuread" // Azure AD support

	"github.com/ekaya-inc/ekaya-canvas/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-canvas/pkg/config"
)

// Adapter provides SQL Server connectivity, schema discovery and query execution.
type Adapter struct {
	config  *Config
	db      *sql.DB
	ownedDB bool
}

// driverAndDSN returns the database/sql driver name and DSN for the config.
// Service principals go through the azuresql driver, which handles fedauth.
func driverAndDSN(cfg *Config) (string, string) {
	query := url.Values{}
	query.Add("database", cfg.Database)
	query.Add("encrypt", strconv.FormatBool(cfg.Encrypt))
	if cfg.TrustServerCertificate {
		query.Add("TrustServerCertificate", "true")
	}
	if cfg.ConnectionTimeout > 0 {
		query.Add("connection timeout", strconv.Itoa(cfg.ConnectionTimeout))
	}

	u := &url.URL{
		Scheme: "sqlserver",
		Host:   config.ResolveHostForDocker(cfg.Host) + ":" + strconv.Itoa(cfg.Port),
	}

	driver := "sqlserver"
	switch cfg.AuthMethod {
	case AuthMethodServicePrincipal:
		driver = "azuresql"
		query.Add("fedauth", "ActiveDirectoryServicePrincipal")
		query.Add("user id", cfg.ClientID+"@"+cfg.TenantID)
		query.Add("password", cfg.ClientSecret)
	default:
		u.User = url.UserPassword(cfg.Username, cfg.Password)
	}
	u.RawQuery = query.Encode()

	return driver, u.String()
}

// NewAdapter creates a SQL Server adapter. With a connection manager and id the
// *sql.DB is shared and survives Close; otherwise the adapter owns it.
func NewAdapter(ctx context.Context, cfg *Config, connMgr *datasource.ConnectionManager, connectionID string) (*Adapter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	driver, dsn := driverAndDSN(cfg)

	if connMgr == nil || connectionID == "" {
		connector, err := datasource.OpenSQLPool(ctx, driver, dsn, "mssql", datasource.ConnectionManagerConfig{})
		if err != nil {
			return nil, fmt.Errorf("connect to sql server: %w", err)
		}
		db, err := datasource.GetSQLDB(connector)
		if err != nil {
			connector.Close()
			return nil, fmt.Errorf("failed to extract sql server db: %w", err)
		}
		return &Adapter{config: cfg, db: db, ownedDB: true}, nil
	}

	connector, err := connMgr.GetOrCreateConnection(ctx, connectionID, func(ctx context.Context) (datasource.PoolConnector, error) {
		return datasource.OpenSQLPool(ctx, driver, dsn, "mssql", connMgr.PoolSettings())
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get pooled connection: %w", err)
	}

	db, err := datasource.GetSQLDB(connector)
	if err != nil {
		return nil, fmt.Errorf("failed to extract sql server db: %w", err)
	}

	return &Adapter{config: cfg, db: db}, nil
}

// TestConnection verifies the database is reachable and that the login
// landed in the requested database.
func (a *Adapter) TestConnection(ctx context.Context) error {
	if err := a.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}

	var currentDB string
	if err := a.db.QueryRowContext(ctx, "SELECT DB_NAME()").Scan(&currentDB); err != nil {
		return fmt.Errorf("test query failed: %w", err)
	}

	if !strings.EqualFold(currentDB, a.config.Database) {
		return fmt.Errorf("connected to wrong database: expected %q but connected to %q", a.config.Database, currentDB)
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
