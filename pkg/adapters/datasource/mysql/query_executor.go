package mysql

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ekaya-inc/ekaya-canvas/pkg/adapters/datasource"
	sqlguard "github.com/ekaya-inc/ekaya-canvas/pkg/sql"
)

// ApplyRowLimit appends LIMIT unless the statement already has one.
func (a *Adapter) ApplyRowLimit(sqlQuery string, limit int) string {
	return sqlguard.EnsureRowLimit(sqlQuery, limit)
}

// Query runs a statement in a read-only transaction and returns at most maxRows rows.
func (a *Adapter) Query(ctx context.Context, sqlQuery string, maxRows int) (*datasource.QueryExecutionResult, error) {
	tx, err := a.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("failed to begin read-only transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx, sqlQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	return datasource.ScanSQLRows(rows, maxRows, nil)
}
