package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/ekaya-inc/ekaya-canvas/pkg/adapters/datasource"
	sqlguard "github.com/ekaya-inc/ekaya-canvas/pkg/sql"
)

// ApplyRowLimit appends LIMIT unless the statement already has one.
func (a *Adapter) ApplyRowLimit(sqlQuery string, limit int) string {
	return sqlguard.EnsureRowLimit(sqlQuery, limit)
}

// Query runs a statement and returns at most maxRows rows.
// The statement runs in a read-only transaction so a guard bypass cannot write.
func (a *Adapter) Query(ctx context.Context, sqlQuery string, maxRows int) (*datasource.QueryExecutionResult, error) {
	maxRows = datasource.EffectiveLimit(maxRows)

	tx, err := a.pool.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, fmt.Errorf("failed to begin read-only transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rows, err := tx.Query(ctx, sqlQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	fieldDescs := rows.FieldDescriptions()
	columns := make([]datasource.ColumnInfo, len(fieldDescs))
	for i, fd := range fieldDescs {
		columns[i] = datasource.ColumnInfo{
			Name: fd.Name,
			Type: pgTypeNameFromOID(fd.DataTypeOID),
		}
	}

	result := &datasource.QueryExecutionResult{
		Columns: columns,
		Rows:    make([]map[string]any, 0),
	}
	for rows.Next() {
		if len(result.Rows) >= maxRows {
			result.Truncated = true
			break
		}

		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("failed to read row values: %w", err)
		}

		rowMap := make(map[string]any, len(columns))
		for i, col := range columns {
			rowMap[col.Name] = values[i]
		}
		result.Rows = append(result.Rows, rowMap)
	}
	rows.Close()

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	result.RowCount = len(result.Rows)
	return result, nil
}

// pgTypeNameFromOID maps PostgreSQL type OIDs to human-readable type names.
// This covers the most common types; unknown types return "UNKNOWN".
func pgTypeNameFromOID(oid uint32) string {
	if name, ok := pgTypeNames[oid]; ok {
		return name
	}
	return "UNKNOWN"
}

var pgTypeNames = map[uint32]string{
	16:   "BOOL",
	17:   "BYTEA",
	18:   "CHAR",
	20:   "INT8",
	21:   "INT2",
	23:   "INT4",
	25:   "TEXT",
	26:   "OID",
	114:  "JSON",
	142:  "XML",
	700:  "FLOAT4",
	701:  "FLOAT8",
	790:  "MONEY",
	1042: "BPCHAR",
	1043: "VARCHAR",
	1082: "DATE",
	1083: "TIME",
	1114: "TIMESTAMP",
	1184: "TIMESTAMPTZ",
	1186: "INTERVAL",
	1266: "TIMETZ",
	1700: "NUMERIC",
	2950: "UUID",
	3802: "JSONB",
	// Array types
	1000: "BOOL[]",
	1005: "INT2[]",
	1007: "INT4[]",
	1016: "INT8[]",
	1009: "TEXT[]",
	1015: "VARCHAR[]",
	1021: "FLOAT4[]",
	1022: "FLOAT8[]",
	2951: "UUID[]",
	3807: "JSONB[]",
}
