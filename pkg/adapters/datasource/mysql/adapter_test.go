package mysql

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-canvas/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-canvas/pkg/models"
)

func newMockAdapter(t *testing.T) (*Adapter, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return &Adapter{config: &Config{Host: "localhost", Port: 3306, User: "root", Database: "shop"}, db: db}, mock
}

func TestFromMap(t *testing.T) {
	cfg, err := FromMap(map[string]any{
		"host":     "db",
		"port":     "3307",
		"username": "app",
		"password": "secret",
	})
	require.NoError(t, err)

	assert.Equal(t, 3307, cfg.Port)
	assert.Equal(t, "app", cfg.User)
	assert.Equal(t, SystemDatabase, cfg.Database)

	_, err = FromMap(map[string]any{"user": "app"})
	assert.EqualError(t, err, "host is required")
}

func TestBuildDSN_RoundTrips(t *testing.T) {
	dsn := buildDSN(&Config{Host: "db.internal", Port: 3306, User: "app", Password: "p@ss/w:rd", Database: "shop"})

	parsed, err := mysqldriver.ParseDSN(dsn)
	require.NoError(t, err)
	assert.Equal(t, "app", parsed.User)
	assert.Equal(t, "p@ss/w:rd", parsed.Passwd)
	assert.Equal(t, "tcp", parsed.Net)
	assert.Equal(t, "db.internal:3306", parsed.Addr)
	assert.Equal(t, "shop", parsed.DBName)
	assert.Equal(t, dialTimeout, parsed.Timeout)
}

func TestApplyRowLimit(t *testing.T) {
	a := &Adapter{}
	assert.Equal(t, "SELECT * FROM orders\nLIMIT 10", a.ApplyRowLimit("SELECT * FROM orders", 10))
	assert.Equal(t, "SELECT * FROM orders LIMIT 3", a.ApplyRowLimit("SELECT * FROM orders LIMIT 3", 10))
}

func TestDiscoverSchema(t *testing.T) {
	adapter, mock := newMockAdapter(t)
	mock.MatchExpectationsInOrder(false)

	mock.ExpectQuery(`FROM information_schema.TABLES`).
		WillReturnRows(sqlmock.NewRows([]string{"TABLE_NAME"}).AddRow("orders").AddRow("customers"))
	mock.ExpectQuery(`FROM information_schema.KEY_COLUMN_USAGE`).
		WillReturnRows(sqlmock.NewRows([]string{"TABLE_NAME", "COLUMN_NAME", "REFERENCED_TABLE_NAME", "REFERENCED_COLUMN_NAME"}).
			AddRow("orders", "customer_id", "customers", "id"))
	mock.ExpectQuery(`FROM information_schema.COLUMNS`).
		WithArgs("customers").
		WillReturnRows(sqlmock.NewRows([]string{"COLUMN_NAME", "DATA_TYPE", "IS_NULLABLE", "COLUMN_DEFAULT"}).
			AddRow("id", "int", "NO", nil).
			AddRow("city", "varchar", "YES", nil))
	mock.ExpectQuery(`FROM information_schema.COLUMNS`).
		WithArgs("orders").
		WillReturnRows(sqlmock.NewRows([]string{"COLUMN_NAME", "DATA_TYPE", "IS_NULLABLE", "COLUMN_DEFAULT"}).
			AddRow("id", "int", "NO", nil).
			AddRow("customer_id", "int", "NO", nil).
			AddRow("status", "varchar", "YES", "new"))

	schema, err := adapter.DiscoverSchema(context.Background())
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())

	require.Len(t, schema.Tables, 2)
	customers := schema.Table("customers")
	require.NotNil(t, customers)
	assert.False(t, customers.Columns[0].Nullable)
	assert.True(t, customers.Columns[1].Nullable)

	orders := schema.Table("orders")
	require.NotNil(t, orders)
	require.NotNil(t, orders.Columns[2].DefaultValue)
	assert.Equal(t, "new", *orders.Columns[2].DefaultValue)
	assert.Nil(t, orders.Columns[0].DefaultValue)

	assert.Equal(t, []models.SchemaRelationship{
		{TableFrom: "orders", ColumnFrom: "customer_id", TableTo: "customers", ColumnTo: "id"},
	}, schema.Relationships)
}

func TestDiscoverSchema_ColumnError(t *testing.T) {
	adapter, mock := newMockAdapter(t)
	mock.MatchExpectationsInOrder(false)

	mock.ExpectQuery(`FROM information_schema.TABLES`).
		WillReturnRows(sqlmock.NewRows([]string{"TABLE_NAME"}).AddRow("orders"))
	mock.ExpectQuery(`FROM information_schema.KEY_COLUMN_USAGE`).
		WillReturnRows(sqlmock.NewRows([]string{"TABLE_NAME", "COLUMN_NAME", "REFERENCED_TABLE_NAME", "REFERENCED_COLUMN_NAME"}))
	mock.ExpectQuery(`FROM information_schema.COLUMNS`).
		WithArgs("orders").
		WillReturnError(assert.AnError)

	_, err := adapter.DiscoverSchema(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, assert.AnError)
	assert.Contains(t, err.Error(), "columns for orders")
}

func TestListDatabases_HidesSystemSchemas(t *testing.T) {
	adapter, mock := newMockAdapter(t)

	mock.ExpectQuery(`SHOW DATABASES`).
		WillReturnRows(sqlmock.NewRows([]string{"Database"}).
			AddRow("information_schema").
			AddRow("mysql").
			AddRow("performance_schema").
			AddRow("shop").
			AddRow("sys"))

	dbs, err := adapter.ListDatabases(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"shop"}, dbs)
}

func TestQuery_ReadOnlyTransaction(t *testing.T) {
	adapter, mock := newMockAdapter(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id, name FROM customers`).
		WillReturnRows(sqlmock.NewRowsWithColumnDefinition(
			sqlmock.NewColumn("id").OfType("BIGINT", int64(0)),
			sqlmock.NewColumn("name").OfType("VARCHAR", ""),
		).AddRow(int64(1), []byte("Ada")))
	mock.ExpectRollback()

	result, err := adapter.Query(context.Background(), "SELECT id, name FROM customers", 10)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())

	assert.Equal(t, []datasource.ColumnInfo{{Name: "id", Type: "BIGINT"}, {Name: "name", Type: "VARCHAR"}}, result.Columns)
	assert.Equal(t, 1, result.RowCount)
	assert.False(t, result.Truncated)
	assert.Equal(t, "Ada", result.Rows[0]["name"])
}
