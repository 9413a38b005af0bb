package mssql

import (
	"context"
	"fmt"

	"github.com/ekaya-inc/ekaya-canvas/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-canvas/pkg/models"
)

// SchemaName is the only schema the canvas exposes.
const SchemaName = "dbo"

// DiscoverSchema returns base tables in dbo with their columns and foreign keys.
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
	FROM INFORMATION_SCHEMA.TABLES
	WHERE TABLE_SCHEMA = @p1
	  AND TABLE_TYPE = 'BASE TABLE'
	ORDER BY TABLE_NAME
	`

	rows, err := a.db.QueryContext(ctx, query, SchemaName)
	if err != nil {
		return nil, fmt.Errorf("query tables: %w", err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan table row: %w", err)
		}
		tables = append(tables, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate table rows: %w", err)
	}
	return tables, nil
}

func (a *Adapter) discoverColumns(ctx context.Context, tableName string) ([]models.SchemaColumn, error) {
	const query = `
	SELECT
	    COLUMN_NAME,
	    DATA_TYPE,
	    CASE WHEN IS_NULLABLE = 'YES' THEN 1 ELSE 0 END AS is_nullable,
	    COLUMN_DEFAULT
	FROM INFORMATION_SCHEMA.COLUMNS
	WHERE TABLE_SCHEMA = @p1 AND TABLE_NAME = @p2
	ORDER BY ORDINAL_POSITION
	`

	rows, err := a.db.QueryContext(ctx, query, SchemaName, tableName)
	if err != nil {
		return nil, fmt.Errorf("query columns: %w", err)
	}
	defer rows.Close()

	var columns []models.SchemaColumn
	for rows.Next() {
		var col models.SchemaColumn
		var isNullable int
		if err := rows.Scan(&col.Name, &col.Type, &isNullable, &col.DefaultValue); err != nil {
			return nil, fmt.Errorf("scan column row: %w", err)
		}
		col.Nullable = isNullable == 1
		columns = append(columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate column rows: %w", err)
	}
	return columns, nil
}

func (a *Adapter) discoverForeignKeys(ctx context.Context) ([]models.SchemaRelationship, error) {
	const query = `
	SELECT
	    tp.name AS table_from,
	    cp.name AS column_from,
	    tr.name AS table_to,
	    cr.name AS column_to
	FROM sys.foreign_keys fk
	INNER JOIN sys.foreign_key_columns fkc ON fk.object_id = fkc.constraint_object_id
	INNER JOIN sys.tables tp ON fkc.parent_object_id = tp.object_id
	INNER JOIN sys.columns cp ON fkc.parent_object_id = cp.object_id AND fkc.parent_column_id = cp.column_id
	INNER JOIN sys.tables tr ON fkc.referenced_object_id = tr.object_id
	INNER JOIN sys.columns cr ON fkc.referenced_object_id = cr.object_id AND fkc.referenced_column_id = cr.column_id
	WHERE SCHEMA_NAME(tp.schema_id) = @p1
	ORDER BY tp.name, cp.name
	`

	rows, err := a.db.QueryContext(ctx, query, SchemaName)
	if err != nil {
		return nil, fmt.Errorf("query foreign keys: %w", err)
	}
	defer rows.Close()

	var rels []models.SchemaRelationship
	for rows.Next() {
		var r models.SchemaRelationship
		if err := rows.Scan(&r.TableFrom, &r.ColumnFrom, &r.TableTo, &r.ColumnTo); err != nil {
			return nil, fmt.Errorf("scan foreign key row: %w", err)
		}
		rels = append(rels, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate foreign key rows: %w", err)
	}
	return rels, nil
}

// ListDatabases returns user databases. Ids 1 through 4 are the system
// databases (master, tempdb, model, msdb).
func (a *Adapter) ListDatabases(ctx context.Context) ([]string, error) {
	const query = `SELECT name FROM sys.databases WHERE database_id > 4 ORDER BY name`

	rows, err := a.db.QueryContext(ctx, query)
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
		databases = append(databases, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate databases: %w", err)
	}
	return databases, nil
}
