package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ekaya-inc/ekaya-canvas/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-canvas/pkg/models"
)

// MainDatabase is the only database name a SQLite connection reports.
const MainDatabase = "main"

// DiscoverSchema returns user tables with their columns and foreign keys.
func (a *Adapter) DiscoverSchema(ctx context.Context) (*models.Schema, error) {
	tables, err := a.discoverTables(ctx)
	if err != nil {
		return nil, err
	}

	var relationships []models.SchemaRelationship
	for _, table := range tables {
		rels, err := a.discoverForeignKeys(ctx, table)
		if err != nil {
			return nil, err
		}
		relationships = append(relationships, rels...)
	}

	return datasource.AssembleSchema(ctx, tables, a.discoverColumns, relationships)
}

func (a *Adapter) discoverTables(ctx context.Context) ([]string, error) {
	const query = `
		SELECT name
		FROM sqlite_master
		WHERE type = 'table' AND name NOT LIKE 'sqlite_%'
		ORDER BY name
	`

	rows, err := a.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query tables: %w", err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan table: %w", err)
		}
		tables = append(tables, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tables: %w", err)
	}
	return tables, nil
}

func (a *Adapter) discoverColumns(ctx context.Context, tableName string) ([]models.SchemaColumn, error) {
	const query = `SELECT name, type, "notnull", dflt_value FROM pragma_table_info(?) ORDER BY cid`

	rows, err := a.db.QueryContext(ctx, query, tableName)
	if err != nil {
		return nil, fmt.Errorf("query columns: %w", err)
	}
	defer rows.Close()

	var columns []models.SchemaColumn
	for rows.Next() {
		var c models.SchemaColumn
		var notNull int
		if err := rows.Scan(&c.Name, &c.Type, &notNull, &c.DefaultValue); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		c.Nullable = notNull == 0
		columns = append(columns, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate columns: %w", err)
	}
	return columns, nil
}

// discoverForeignKeys reads the table's foreign keys. A reference without an
// explicit column points at the target's primary key.
func (a *Adapter) discoverForeignKeys(ctx context.Context, tableName string) ([]models.SchemaRelationship, error) {
	const query = `SELECT "from", "table", "to" FROM pragma_foreign_key_list(?) ORDER BY id, seq`

	rows, err := a.db.QueryContext(ctx, query, tableName)
	if err != nil {
		return nil, fmt.Errorf("query foreign keys: %w", err)
	}

	var rels []models.SchemaRelationship
	for rows.Next() {
		var from, target string
		var to sql.NullString
		if err := rows.Scan(&from, &target, &to); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan foreign key: %w", err)
		}
		rels = append(rels, models.SchemaRelationship{TableFrom: tableName, ColumnFrom: from, TableTo: target, ColumnTo: to.String})
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, fmt.Errorf("iterate foreign keys: %w", err)
	}

	for i := range rels {
		if rels[i].ColumnTo != "" {
			continue
		}
		pk, err := a.primaryKeyColumn(ctx, rels[i].TableTo)
		if err != nil {
			return nil, err
		}
		rels[i].ColumnTo = pk
	}
	return rels, nil
}

func (a *Adapter) primaryKeyColumn(ctx context.Context, tableName string) (string, error) {
	var name string
	err := a.db.QueryRowContext(ctx, `SELECT name FROM pragma_table_info(?) WHERE pk = 1`, tableName).Scan(&name)
	if err != nil && err != sql.ErrNoRows {
		return "", fmt.Errorf("query primary key of %s: %w", tableName, err)
	}
	return name, nil
}

// ListDatabases returns the single attached database.
func (a *Adapter) ListDatabases(ctx context.Context) ([]string, error) {
	return []string{MainDatabase}, nil
}
