package mysql

import (
	"context"
	"fmt"

	"github.com/ekaya-inc/ekaya-canvas/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-canvas/pkg/models"
)

// systemDatabases are hidden from ListDatabases.
var systemDatabases = map[string]bool{
	"information_schema": true,
	"mysql":              true,
	"performance_schema": true,
	"sys":                true,
}

// DiscoverSchema returns base tables of the connected database with their
// columns and foreign keys.
func (a *Adapter) DiscoverSchema(ctx context.Context) (*models.Schema, error) {
	tables, err := a.discoverTables(ctx)
	if err != nil {
		return nil, err
	}

	relationships, err := a.discoverForeignKeys(ctx)
	if err != nil {
		return nil, err
	}

	return datasource.AssembleSchema(ctx, tables, a.discoverColumns, relationships)
}

func (a *Adapter) discoverTables(ctx context.Context) ([]string, error) {
	const query = `
		SELECT TABLE_NAME
		FROM information_schema.TABLES
		WHERE TABLE_SCHEMA = DATABASE()
		  AND TABLE_TYPE = 'BASE TABLE'
		ORDER BY TABLE_NAME
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
	const query = `
		SELECT COLUMN_NAME, DATA_TYPE, IS_NULLABLE, COLUMN_DEFAULT
		FROM information_schema.COLUMNS
		WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = ?
		ORDER BY ORDINAL_POSITION
	`

	rows, err := a.db.QueryContext(ctx, query, tableName)
	if err != nil {
		return nil, fmt.Errorf("query columns: %w", err)
	}
	defer rows.Close()

	var columns []models.SchemaColumn
	for rows.Next() {
		var c models.SchemaColumn
		var nullable string
		if err := rows.Scan(&c.Name, &c.Type, &nullable, &c.DefaultValue); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		c.Nullable = nullable == "YES"
		columns = append(columns, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate columns: %w", err)
	}
	return columns, nil
}

func (a *Adapter) discoverForeignKeys(ctx context.Context) ([]models.SchemaRelationship, error) {
	const query = `
		SELECT TABLE_NAME, COLUMN_NAME, REFERENCED_TABLE_NAME, REFERENCED_COLUMN_NAME
		FROM information_schema.KEY_COLUMN_USAGE
		WHERE TABLE_SCHEMA = DATABASE()
		  AND REFERENCED_TABLE_NAME IS NOT NULL
		ORDER BY TABLE_NAME, COLUMN_NAME
	`

	rows, err := a.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query foreign keys: %w", err)
	}
	defer rows.Close()

	var rels []models.SchemaRelationship
	for rows.Next() {
		var r models.SchemaRelationship
		if err := rows.Scan(&r.TableFrom, &r.ColumnFrom, &r.TableTo, &r.ColumnTo); err != nil {
			return nil, fmt.Errorf("scan foreign key: %w", err)
		}
		rels = append(rels, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate foreign keys: %w", err)
	}
	return rels, nil
}

// ListDatabases returns databases visible to the user, minus system schemas.
func (a *Adapter) ListDatabases(ctx context.Context) ([]string, error) {
	rows, err := a.db.QueryContext(ctx, "SHOW DATABASES")
	if err != nil {
		return nil, fmt.Errorf("failed to list databases: %w", err)
	}
	defer rows.Close()

	databases := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan database: %w", err)
		}
		if !systemDatabases[name] {
			databases = append(databases, name)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate databases: %w", err)
	}
	return databases, nil
}
