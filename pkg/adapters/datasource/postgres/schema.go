package postgres

import (
	"context"
	"fmt"

	"github.com/ekaya-inc/ekaya-canvas/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-canvas/pkg/models"
)

// SchemaName is the only schema the canvas exposes.
const SchemaName = "public"

// DiscoverSchema returns base tables in the public schema with their columns
// and foreign keys.
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
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = $1
		  AND table_type = 'BASE TABLE'
		ORDER BY table_name
	`

	rows, err := a.pool.Query(ctx, query, SchemaName)
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
		SELECT
			column_name,
			data_type,
			is_nullable = 'YES' AS nullable,
			column_default
		FROM information_schema.columns
		WHERE table_schema = $1 AND table_name = $2
		ORDER BY ordinal_position
	`

	rows, err := a.pool.Query(ctx, query, SchemaName, tableName)
	if err != nil {
		return nil, fmt.Errorf("query columns: %w", err)
	}
	defer rows.Close()

	var columns []models.SchemaColumn
	for rows.Next() {
		var c models.SchemaColumn
		if err := rows.Scan(&c.Name, &c.Type, &c.Nullable, &c.DefaultValue); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		columns = append(columns, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate columns: %w", err)
	}
	return columns, nil
}

func (a *Adapter) discoverForeignKeys(ctx context.Context) ([]models.SchemaRelationship, error) {
	const query = `
		SELECT
			kcu.table_name AS table_from,
			kcu.column_name AS column_from,
			ccu.table_name AS table_to,
			ccu.column_name AS column_to
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
			ON tc.constraint_name = kcu.constraint_name
			AND tc.table_schema = kcu.table_schema
		JOIN information_schema.constraint_column_usage ccu
			ON tc.constraint_name = ccu.constraint_name
			AND tc.table_schema = ccu.table_schema
		WHERE tc.constraint_type = 'FOREIGN KEY'
		  AND tc.table_schema = $1
		ORDER BY kcu.table_name, kcu.column_name
	`

	rows, err := a.pool.Query(ctx, query, SchemaName)
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

// ListDatabases returns non-template databases other than the maintenance database.
func (a *Adapter) ListDatabases(ctx context.Context) ([]string, error) {
	const query = `
		SELECT datname
		FROM pg_database
		WHERE datistemplate = false
		  AND datname != $1
		ORDER BY datname
	`

	rows, err := a.pool.Query(ctx, query, MaintenanceDatabase)
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
