package datasource

import (
	"database/sql"
	"fmt"
	"strings"
)

// TypeNameFunc maps a driver column type to the name reported in results.
type TypeNameFunc func(ct *sql.ColumnType) string

// ScanSQLRows collects at most maxRows rows from a database/sql result set.
// Text columns returned as []byte are converted to string. Truncated is set
// when another row was available past the cap.
func ScanSQLRows(rows *sql.Rows, maxRows int, typeName TypeNameFunc) (*QueryExecutionResult, error) {
	maxRows = EffectiveLimit(maxRows)

	columnTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("failed to get column types: %w", err)
	}

	columns := make([]ColumnInfo, len(columnTypes))
	textual := make([]bool, len(columnTypes))
	for i, ct := range columnTypes {
		name := strings.ToUpper(ct.DatabaseTypeName())
		if typeName != nil {
			name = typeName(ct)
		}
		columns[i] = ColumnInfo{Name: ct.Name(), Type: name}
		textual[i] = isTextualType(ct.DatabaseTypeName())
	}

	result := &QueryExecutionResult{
		Columns: columns,
		Rows:    make([]map[string]any, 0),
	}

	for rows.Next() {
		if len(result.Rows) >= maxRows {
			result.Truncated = true
			break
		}

		values := make([]any, len(columns))
		valuePtrs := make([]any, len(columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}
		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		row := make(map[string]any, len(columns))
		for i, col := range columns {
			val := values[i]
			if b, ok := val.([]byte); ok && textual[i] {
				val = string(b)
			}
			row[col.Name] = val
		}
		result.Rows = append(result.Rows, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	result.RowCount = len(result.Rows)
	return result, nil
}

func isTextualType(dbType string) bool {
	t := strings.ToUpper(dbType)
	switch {
	case strings.Contains(t, "CHAR"), strings.Contains(t, "TEXT"), strings.Contains(t, "CLOB"):
		return true
	case t == "DECIMAL", t == "NUMERIC", t == "JSON", t == "ENUM", t == "SET":
		return true
	case strings.Contains(t, "DATE"), strings.Contains(t, "TIME"):
		return true
	case t == "XML", t == "":
		return true
	}
	return false
}
