package datasource

import (
	"context"
	"database/sql"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresPoolWrapper wraps *pgxpool.Pool to implement PoolConnector
type PostgresPoolWrapper struct {
	pool *pgxpool.Pool
}

// NewPostgresPoolWrapper creates a new PostgreSQL pool wrapper
func NewPostgresPoolWrapper(pool *pgxpool.Pool) *PostgresPoolWrapper {
	return &PostgresPoolWrapper{pool: pool}
}

// Ping verifies the PostgreSQL connection is alive
func (w *PostgresPoolWrapper) Ping(ctx context.Context) error {
	return w.pool.Ping(ctx)
}

// Close closes all connections in the PostgreSQL pool
func (w *PostgresPoolWrapper) Close() error {
	w.pool.Close()
	return nil
}

// GetType returns the database type
func (w *PostgresPoolWrapper) GetType() string {
	return "postgres"
}

// GetPool returns the underlying *pgxpool.Pool
func (w *PostgresPoolWrapper) GetPool() *pgxpool.Pool {
	return w.pool
}

// SQLDBWrapper wraps a database/sql pool (mssql, mysql, sqlite) to implement PoolConnector.
type SQLDBWrapper struct {
	db     *sql.DB
	dbType string
}

// NewSQLDBWrapper wraps db, reporting dbType in stats and logs.
func NewSQLDBWrapper(db *sql.DB, dbType string) *SQLDBWrapper {
	return &SQLDBWrapper{db: db, dbType: dbType}
}

func (w *SQLDBWrapper) Ping(ctx context.Context) error {
	return w.db.PingContext(ctx)
}

func (w *SQLDBWrapper) Close() error {
	return w.db.Close()
}

func (w *SQLDBWrapper) GetType() string {
	return w.dbType
}

// GetDB returns the underlying *sql.DB
func (w *SQLDBWrapper) GetDB() *sql.DB {
	return w.db
}
