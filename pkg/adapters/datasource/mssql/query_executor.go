package mssql

import (
	"context"
	"fmt"
	"regexp"

	"github.com/ekaya-inc/ekaya-canvas/pkg/adapters/datasource"
	sqlguard "github.com/ekaya-inc/ekaya-canvas/pkg/sql"
)

var (
	selectHeadPattern = regexp.MustCompile(`(?i)^\s*SELECT(\s+(DISTINCT|ALL))?\s+`)
	topPattern        = regexp.MustCompile(`(?i)\bTOP\s*\(?\s*\d+`)
)

// ApplyRowLimit injects TOP (n) after SELECT or SELECT DISTINCT. SQL Server
// has no LIMIT, so statements that already carry TOP are left alone.
func (a *Adapter) ApplyRowLimit(sqlQuery string, limit int) string {
	if limit <= 0 {
		limit = sqlguard.DefaultRowLimit
	}
	if topPattern.MatchString(sqlQuery) {
		return sqlQuery
	}
	loc := selectHeadPattern.FindStringIndex(sqlQuery)
	if loc == nil {
		return sqlQuery
	}
	return sqlQuery[:loc[1]] + fmt.Sprintf("TOP (%d) ", limit) + sqlQuery[loc[1]:]
}

// Query runs a statement and returns at most maxRows rows.
func (a *Adapter) Query(ctx context.Context, sqlQuery string, maxRows int) (*datasource.QueryExecutionResult, error) {
	rows, err := a.db.QueryContext(ctx, sqlQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	return datasource.ScanSQLRows(rows, maxRows, columnTypeName)
}
