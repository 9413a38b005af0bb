package sqlite

import (
	"context"
	"fmt"

	"github.com/ekaya-inc/ekaya-canvas/pkg/adapters/datasource"
	sqlguard "github.com/ekaya-inc/ekaya-canvas/pkg/sql"
)

// ApplyRowLimit appends LIMIT unless the statement already has one.
func (a *Adapter) ApplyRowLimit(sqlQuery string, limit int) string {
	return sqlguard.EnsureRowLimit(sqlQuery, limit)
}

// Query runs a statement and returns at most maxRows rows. Connections are
// opened with query_only, so writes fail inside the driver.
func (a *Adapter) Query(ctx context.Context, sqlQuery string, maxRows int) (*datasource.QueryExecutionResult, error) {
	rows, err := a.db.QueryContext(ctx, sqlQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	return datasource.ScanSQLRows(rows, maxRows, nil)
}
