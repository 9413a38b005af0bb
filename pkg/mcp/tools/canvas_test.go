package tools

import (
	"encoding/json"
	"testing"

	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-canvas/pkg/models"
	"github.com/ekaya-inc/ekaya-canvas/pkg/services"
)

const storefrontSQL = `SELECT c.name AS c_name, o.status AS o_status
FROM customers c
INNER JOIN orders o ON c.id = o.customer_id
WHERE o.status = 'paid'
ORDER BY c.name ASC`

func storefrontGraph() map[string]any {
	return map[string]any{
		"nodes": []any{
			map[string]any{"id": "customers", "alias": "c", "columns": []any{"name"}},
			map[string]any{"id": "orders", "alias": "o", "columns": []any{"status"}},
		},
		"edges": []any{
			map[string]any{
				"id": "e1", "source": "customers", "target": "orders",
				"data": map[string]any{"condition": "customers.id = orders.customer_id"},
			},
		},
		"clauses": map[string]any{
			"filters": []any{map[string]any{"table": "orders", "column": "status", "operator": "=", "value": "paid"}},
			"orderBy": []any{map[string]any{"table": "customers", "column": "name"}},
		},
	}
}

func TestRegisterCanvasTools_ListsReadOnlyTools(t *testing.T) {
	f := newToolFixture(t)

	resultBytes, err := json.Marshal(f.mcp.HandleMessage(t.Context(), []byte(`{"jsonrpc":"2.0","method":"tools/list","id":1}`)))
	require.NoError(t, err)

	var response struct {
		Result struct {
			Tools []struct {
				Name        string `json:"name"`
				Annotations struct {
					ReadOnlyHint    *bool `json:"readOnlyHint"`
					DestructiveHint *bool `json:"destructiveHint"`
				} `json:"annotations"`
			} `json:"tools"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal(resultBytes, &response))

	names := map[string]bool{}
	for _, tool := range response.Result.Tools {
		names[tool.Name] = true
		require.NotNil(t, tool.Annotations.ReadOnlyHint, tool.Name)
		assert.True(t, *tool.Annotations.ReadOnlyHint, tool.Name)
		require.NotNil(t, tool.Annotations.DestructiveHint, tool.Name)
		assert.False(t, *tool.Annotations.DestructiveHint, tool.Name)
	}
	for _, want := range []string{"generate_sql", "validate_sql", "list_connections", "get_schema", "suggest_joins", "execute_sql"} {
		assert.True(t, names[want], "missing tool %s", want)
	}
}

func TestGenerateSQLTool(t *testing.T) {
	f := newToolFixture(t)

	text, isError := callTool(t, f.mcp, "generate_sql", map[string]any{"graph": storefrontGraph()})
	require.False(t, isError, text)

	var result services.GenerateResult
	require.NoError(t, json.Unmarshal([]byte(text), &result))
	assert.Equal(t, storefrontSQL, result.Query)
	assert.Equal(t, "c", result.Aliases["customers"])
}

func TestGenerateSQLTool_Errors(t *testing.T) {
	f := newToolFixture(t)

	tests := []struct {
		name     string
		args     map[string]any
		wantCode string
	}{
		{"missing graph", map[string]any{}, "invalid_graph"},
		{"no nodes", map[string]any{"graph": map[string]any{"nodes": []any{}}}, "invalid_graph"},
		{"wrong shape", map[string]any{"graph": map[string]any{"nodes": "orders"}}, "invalid_graph"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text, isError := callTool(t, f.mcp, "generate_sql", tt.args)
			require.True(t, isError, text)
			assert.Equal(t, tt.wantCode, decodeErrorResult(t, text).Code)
		})
	}
}

func TestValidateSQLTool(t *testing.T) {
	f := newToolFixture(t)

	tests := []struct {
		name        string
		sql         string
		wantValid   bool
		wantQuery   string
		wantMessage string
	}{
		{"select", "  SELECT * FROM orders;  ", true, "SELECT * FROM orders", ""},
		{"drop", "DROP TABLE orders", false, "", "only SELECT queries are allowed"},
		{"keyword inside select", "SELECT * FROM orders WHERE note = 'delete me'", false, "", "query contains forbidden keyword: DELETE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text, isError := callTool(t, f.mcp, "validate_sql", map[string]any{"sql": tt.sql})
			require.False(t, isError, text)

			var result validateSQLResult
			require.NoError(t, json.Unmarshal([]byte(text), &result))
			assert.Equal(t, tt.wantValid, result.Valid)
			assert.Equal(t, tt.wantQuery, result.Query)
			assert.Equal(t, tt.wantMessage, result.Message)
		})
	}
}

func TestListConnectionsAndSchemaTools(t *testing.T) {
	f := newToolFixture(t)

	text, isError := callTool(t, f.mcp, "list_connections", nil)
	require.False(t, isError, text)

	var list listConnectionsResult
	require.NoError(t, json.Unmarshal([]byte(text), &list))
	require.Len(t, list.Connections, 1)
	assert.Equal(t, f.connectionID, list.Connections[0].ID)

	text, isError = callTool(t, f.mcp, "get_schema", map[string]any{"connection_id": f.connectionID})
	require.False(t, isError, text)

	var schema models.Schema
	require.NoError(t, json.Unmarshal([]byte(text), &schema))
	require.NotNil(t, schema.Table("orders"))
	assert.True(t, schema.Table("orders").HasColumn("customer_id"))
	assert.Contains(t, schema.Relationships, models.SchemaRelationship{
		TableFrom: "orders", ColumnFrom: "customer_id", TableTo: "customers", ColumnTo: "id",
	})

	text, isError = callTool(t, f.mcp, "get_schema", map[string]any{"connection_id": "missing"})
	require.True(t, isError)
	assert.Equal(t, "connection_not_found", decodeErrorResult(t, text).Code)
}

func TestSuggestJoinsTool(t *testing.T) {
	f := newToolFixture(t)

	text, isError := callTool(t, f.mcp, "suggest_joins", map[string]any{
		"connection_id": f.connectionID,
		"tables":        []any{"customers", "orders"},
	})
	require.False(t, isError, text)

	var result suggestJoinsResult
	require.NoError(t, json.Unmarshal([]byte(text), &result))
	assert.Contains(t, result.Suggestions, models.JoinSuggestion{
		SourceTable: "orders", SourceColumn: "customer_id",
		TargetTable: "customers", TargetColumn: "id",
		Origin: "foreign_key",
	})
}

func TestExecuteSQLTool(t *testing.T) {
	f := newToolFixture(t)

	text, isError := callTool(t, f.mcp, "execute_sql", map[string]any{
		"connection_id": f.connectionID,
		"sql":           storefrontSQL,
	})
	require.False(t, isError, text)

	var result services.ExecuteResult
	require.NoError(t, json.Unmarshal([]byte(text), &result))
	assert.Equal(t, 2, result.RowCount)
	assert.Equal(t, storefrontSQL+"\nLIMIT 100", result.Query)

	text, isError = callTool(t, f.mcp, "execute_sql", map[string]any{
		"connection_id": f.connectionID,
		"sql":           "SELECT name FROM customers ORDER BY id",
		"limit":         1,
	})
	require.False(t, isError, text)
	result = services.ExecuteResult{}
	require.NoError(t, json.Unmarshal([]byte(text), &result))
	assert.Equal(t, 1, result.RowCount)
	assert.Equal(t, "Ada", result.Rows[0]["name"])
}

func TestExecuteSQLTool_Errors(t *testing.T) {
	f := newToolFixture(t)

	tests := []struct {
		name     string
		args     map[string]any
		wantCode string
	}{
		{"missing sql", map[string]any{"connection_id": f.connectionID}, "invalid_parameters"},
		{"missing connection", map[string]any{"sql": "SELECT 1"}, "invalid_parameters"},
		{"write statement", map[string]any{"connection_id": f.connectionID, "sql": "UPDATE orders SET status = 'x'"}, "rejected_statement"},
		{"two statements", map[string]any{"connection_id": f.connectionID, "sql": "SELECT 1; SELECT 2"}, "invalid_query"},
		{"unknown connection", map[string]any{"connection_id": "missing", "sql": "SELECT 1"}, "connection_not_found"},
		{"unknown table", map[string]any{"connection_id": f.connectionID, "sql": "SELECT * FROM missing_table"}, "datasource_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text, isError := callTool(t, f.mcp, "execute_sql", tt.args)
			require.True(t, isError, text)

			resp := decodeErrorResult(t, text)
			assert.True(t, resp.Error)
			assert.Equal(t, tt.wantCode, resp.Code)
		})
	}
}

func TestRegisterCanvasTools_NilLogger(t *testing.T) {
	mcpServer := server.NewMCPServer("test", "1.0.0", server.WithToolCapabilities(true))
	deps := &CanvasToolDeps{}

	RegisterCanvasTools(mcpServer, deps)

	assert.NotNil(t, deps.Logger)
}
