package datasource

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// CreatePostgresPool creates a PostgreSQL connection pool
func CreatePostgresPool(ctx context.Context, connString string, config ConnectionManagerConfig) (PoolConnector, error) {
	poolConfig, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, err
	}

	if config.PoolMaxConns > 0 {
		poolConfig.MaxConns = config.PoolMaxConns
	}
	poolConfig.MinConns = config.PoolMinConns
	if config.TTLMinutes > 0 {
		poolConfig.MaxConnIdleTime = time.Duration(config.TTLMinutes) * time.Minute
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, err
	}

	return NewPostgresPoolWrapper(pool), nil
}

// GetPostgresPool extracts the underlying *pgxpool.Pool from a PoolConnector.
// Returns an error if the connector is not a PostgreSQL pool.
func GetPostgresPool(connector PoolConnector) (*pgxpool.Pool, error) {
	wrapper, ok := connector.(*PostgresPoolWrapper)
	if !ok {
		return nil, fmt.Errorf("connector is not a PostgreSQL pool wrapper")
	}
	return wrapper.GetPool(), nil
}

// OpenSQLPool opens a database/sql pool with the manager's sizing and pings it.
func OpenSQLPool(ctx context.Context, driverName, dsn, dbType string, config ConnectionManagerConfig) (PoolConnector, error) {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s connection: %w", dbType, err)
	}

	if config.PoolMaxConns > 0 {
		db.SetMaxOpenConns(int(config.PoolMaxConns))
	}
	db.SetMaxIdleConns(max(int(config.PoolMinConns), 1))
	if config.TTLMinutes > 0 {
		db.SetConnMaxIdleTime(time.Duration(config.TTLMinutes) * time.Minute)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", dbType, err)
	}

	return NewSQLDBWrapper(db, dbType), nil
}

// GetSQLDB extracts the underlying *sql.DB from a PoolConnector.
// Returns an error if the connector is not a database/sql pool.
func GetSQLDB(connector PoolConnector) (*sql.DB, error) {
	wrapper, ok := connector.(*SQLDBWrapper)
	if !ok {
		return nil, fmt.Errorf("connector is not a database/sql pool wrapper")
	}
	return wrapper.GetDB(), nil
}
