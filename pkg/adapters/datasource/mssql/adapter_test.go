package mssql

import (
	"context"
	"net/url"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
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

	cfg := &Config{Host: "localhost", Port: 1433, Database: "shop", AuthMethod: AuthMethodSQL, Username: "sa"}
	return &Adapter{config: cfg, db: db}, mock
}

func TestFromMap_SQLAuth(t *testing.T) {
	cfg, err := FromMap(map[string]any{
		"host":     "db",
		"port":     float64(14330),
		"user":     "sa",
		"password": "secret",
		"database": "shop",
		"encrypt":  "false",
	})
	require.NoError(t, err)

	assert.Equal(t, AuthMethodSQL, cfg.AuthMethod)
	assert.Equal(t, 14330, cfg.Port)
	assert.Equal(t, "sa", cfg.Username)
	assert.False(t, cfg.Encrypt)
	assert.Equal(t, DefaultConnectionTimeout(), cfg.ConnectionTimeout)
}

func TestFromMap_DetectsServicePrincipal(t *testing.T) {
	cfg, err := FromMap(map[string]any{
		"host":          "srv.database.windows.net",
		"database":      "shop",
		"tenant_id":     "tenant",
		"client_id":     "client",
		"client_secret": "secret",
	})
	require.NoError(t, err)

	assert.Equal(t, AuthMethodServicePrincipal, cfg.AuthMethod)
	assert.True(t, cfg.Encrypt)
}

func TestFromMap_Errors(t *testing.T) {
	tests := []struct {
		name    string
		config  map[string]any
		wantErr string
	}{
		{"missing host", map[string]any{"user": "sa"}, "host is required"},
		{"missing user", map[string]any{"host": "db"}, "username is required for SQL authentication"},
		{"missing secret", map[string]any{"host": "db", "tenant_id": "t", "client_id": "c"}, "client_secret is required for service principal"},
		{"bad method", map[string]any{"host": "db", "auth_method": "kerberos"}, "invalid auth method: kerberos (must be sql or service_principal)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromMap(tt.config)
			assert.EqualError(t, err, tt.wantErr)
		})
	}
}

func TestFromMap_DefaultsToMaster(t *testing.T) {
	cfg, err := FromMap(map[string]any{"host": "db", "user": "sa"})
	require.NoError(t, err)
	assert.Equal(t, MasterDatabase, cfg.Database)
}

func TestDriverAndDSN(t *testing.T) {
	t.Run("sql auth escapes credentials", func(t *testing.T) {
		driver, dsn := driverAndDSN(&Config{
			Host: "db", Port: 1433, Database: "shop", AuthMethod: AuthMethodSQL,
			Username: "sa", Password: "p@ss;word", Encrypt: true, ConnectionTimeout: 15,
		})
		assert.Equal(t, "sqlserver", driver)

		u, err := url.Parse(dsn)
		require.NoError(t, err)
		pw, _ := u.User.Password()
		assert.Equal(t, "p@ss;word", pw)
		assert.Equal(t, "shop", u.Query().Get("database"))
		assert.Equal(t, "true", u.Query().Get("encrypt"))
		assert.Equal(t, "15", u.Query().Get("connection timeout"))
	})

	t.Run("service principal uses azuresql", func(t *testing.T) {
		driver, dsn := driverAndDSN(&Config{
			Host: "srv", Port: 1433, Database: "shop", AuthMethod: AuthMethodServicePrincipal,
			TenantID: "tenant", ClientID: "client", ClientSecret: "secret",
		})
		assert.Equal(t, "azuresql", driver)

		u, err := url.Parse(dsn)
		require.NoError(t, err)
		assert.Nil(t, u.User)
		assert.Equal(t, "ActiveDirectoryServicePrincipal", u.Query().Get("fedauth"))
		assert.Equal(t, "client@tenant", u.Query().Get("user id"))
	})
}

func TestApplyRowLimit(t *testing.T) {
	a := &Adapter{}

	tests := []struct {
		name  string
		query string
		limit int
		want  string
	}{
		{"plain select", "SELECT id FROM orders", 50, "SELECT TOP (50) id FROM orders"},
		{"distinct", "select distinct city from customers", 10, "select distinct TOP (10) city from customers"},
		{"existing top", "SELECT TOP 5 id FROM orders", 50, "SELECT TOP 5 id FROM orders"},
		{"default limit", "SELECT *\nFROM orders", 0, "SELECT TOP (100) *\nFROM orders"},
		{"not a select", "WITH x AS (SELECT 1 AS n) SELECT n FROM x", 10, "WITH x AS (SELECT 1 AS n) SELECT n FROM x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, a.ApplyRowLimit(tt.query, tt.limit))
		})
	}
}

func TestDiscoverSchema(t *testing.T) {
	adapter, mock := newMockAdapter(t)
	mock.MatchExpectationsInOrder(false)

	mock.ExpectQuery(`FROM INFORMATION_SCHEMA.TABLES`).
		WithArgs(SchemaName).
		WillReturnRows(sqlmock.NewRows([]string{"TABLE_NAME"}).AddRow("orders").AddRow("customers"))
	mock.ExpectQuery(`FROM sys.foreign_keys`).
		WithArgs(SchemaName).
		WillReturnRows(sqlmock.NewRows([]string{"table_from", "column_from", "table_to", "column_to"}).
			AddRow("orders", "customer_id", "customers", "id"))
	mock.ExpectQuery(`FROM INFORMATION_SCHEMA.COLUMNS`).
		WithArgs(SchemaName, "customers").
		WillReturnRows(sqlmock.NewRows([]string{"COLUMN_NAME", "DATA_TYPE", "is_nullable", "COLUMN_DEFAULT"}).
			AddRow("id", "int", 0, nil).
			AddRow("name", "nvarchar", 1, nil))
	mock.ExpectQuery(`FROM INFORMATION_SCHEMA.COLUMNS`).
		WithArgs(SchemaName, "orders").
		WillReturnRows(sqlmock.NewRows([]string{"COLUMN_NAME", "DATA_TYPE", "is_nullable", "COLUMN_DEFAULT"}).
			AddRow("id", "int", 0, nil).
			AddRow("status", "varchar", 1, "('new')"))

	schema, err := adapter.DiscoverSchema(context.Background())
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())

	require.Len(t, schema.Tables, 2)
	assert.Equal(t, "customers", schema.Tables[0].Name)
	assert.Equal(t, "orders", schema.Tables[1].Name)
	assert.True(t, schema.Tables[0].Columns[1].Nullable)

	status := schema.Tables[1].Columns[1]
	require.NotNil(t, status.DefaultValue)
	assert.Equal(t, "('new')", *status.DefaultValue)

	assert.Equal(t, []models.SchemaRelationship{
		{TableFrom: "orders", ColumnFrom: "customer_id", TableTo: "customers", ColumnTo: "id"},
	}, schema.Relationships)
}

func TestListDatabases(t *testing.T) {
	adapter, mock := newMockAdapter(t)

	mock.ExpectQuery(`FROM sys.databases WHERE database_id > 4`).
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("inventory").AddRow("shop"))

	dbs, err := adapter.ListDatabases(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"inventory", "shop"}, dbs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQuery_TruncatesAtMaxRows(t *testing.T) {
	adapter, mock := newMockAdapter(t)

	rows := sqlmock.NewRowsWithColumnDefinition(
		sqlmock.NewColumn("id").OfType("INT", int64(0)),
		sqlmock.NewColumn("name").OfType("NVARCHAR", ""),
	).
		AddRow(int64(1), []byte("Ada")).
		AddRow(int64(2), []byte("Grace")).
		AddRow(int64(3), []byte("Linus"))
	mock.ExpectQuery(`SELECT TOP \(2\) id, name FROM customers`).WillReturnRows(rows)

	result, err := adapter.Query(context.Background(), "SELECT TOP (2) id, name FROM customers", 2)
	require.NoError(t, err)

	assert.Equal(t, []datasource.ColumnInfo{{Name: "id", Type: "INTEGER"}, {Name: "name", Type: "VARCHAR"}}, result.Columns)
	assert.Equal(t, 2, result.RowCount)
	assert.True(t, result.Truncated)
	assert.Equal(t, "Grace", result.Rows[1]["name"])
}

func TestTestConnection_WrongDatabase(t *testing.T) {
	adapter, mock := newMockAdapter(t)
	mock.ExpectQuery(`SELECT DB_NAME\(\)`).WillReturnRows(sqlmock.NewRows([]string{""}).AddRow("master"))

	err := adapter.TestConnection(context.Background())
	assert.EqualError(t, err, `connected to wrong database: expected "shop" but connected to "master"`)
}
