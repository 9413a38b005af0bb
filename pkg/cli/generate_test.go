package cli

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const storefrontSQL = `SELECT c.name AS c_name, o.status AS o_status
FROM customers c
INNER JOIN orders o ON c.id = o.customer_id
WHERE o.status = 'paid'
ORDER BY c.name ASC`

func TestGenerate_GraphFiles(t *testing.T) {
	for _, file := range []string{"storefront.json", "storefront.yaml"} {
		t.Run(file, func(t *testing.T) {
			out, stderr, err := execute(t, "", "generate", "-f", filepath.Join("testdata", file))
			require.NoError(t, err, stderr)
			assert.Equal(t, storefrontSQL+"\n", out)
			assert.Empty(t, stderr)
		})
	}
}

func TestGenerate_Limit(t *testing.T) {
	out, _, err := execute(t, "", "generate", "-f", filepath.Join("testdata", "storefront.json"), "--limit", "25")
	require.NoError(t, err)
	assert.Equal(t, storefrontSQL+"\nLIMIT 25\n", out)
}

func TestGenerate_VerboseAliasesAreSorted(t *testing.T) {
	graph := `{
		"nodes": [{"id": "users", "position": {"x": 0}}, {"id": "orders", "position": {"x": 10}}, {"id": "accounts", "position": {"x": 20}}],
		"edges": [{"source": "users", "target": "orders"}, {"source": "users", "target": "accounts"}]
	}`

	for i := 0; i < 5; i++ {
		_, stderr, err := execute(t, graph, "--verbose", "generate", "-f", "-")
		require.NoError(t, err)
		assert.Contains(t, stderr, "alias accounts -> accounts\nalias orders -> orders\nalias users -> users\n")
	}
}

func TestGenerate_StdinJSON(t *testing.T) {
	graph := `{"nodes":[{"id":"orders","columns":["id"]}]}`

	out, _, err := execute(t, graph, "--format", "json", "generate", "-f", "-")
	require.NoError(t, err)

	resp := decodeResponse(t, out)
	assert.Equal(t, "ok", resp.Status)
	data := resp.Data.(map[string]any)
	assert.Equal(t, "SELECT orders.id AS orders_id\nFROM orders", data["query"])
}

func TestGenerate_SuspiciousValue(t *testing.T) {
	graph := `{
		"nodes": [{"id": "orders", "columns": ["status"]}],
		"clauses": {"filters": [{"table": "orders", "column": "status", "operator": "=", "value": "' OR '1'='1"}]}
	}`

	out, stderr, err := execute(t, graph, "generate", "-f", "-")
	require.NoError(t, err)
	assert.Contains(t, out, "WHERE orders.status = '' OR '1'='1'")
	assert.Contains(t, stderr, "warning: value in filters[0].value looks like SQL injection")

	_, stderr, err = execute(t, graph, "generate", "-f", "-", "--reject-unsafe")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, stderr, "Error [suspicious_value]")
}

func TestGenerate_Errors(t *testing.T) {
	tests := []struct {
		name     string
		stdin    string
		args     []string
		wantCode int
		wantErr  string
	}{
		{"missing file flag", "", []string{"generate"}, ExitFailure, `required flag(s) "file" not set`},
		{"unreadable file", "", []string{"generate", "-f", "testdata/missing.json"}, ExitCommandError, ErrCodeInput},
		{"malformed json", "{", []string{"generate", "-f", "-"}, ExitCommandError, ErrCodeInput},
		{"empty graph", `{"nodes":[]}`, []string{"generate", "-f", "-"}, ExitFailure, "At least one table node is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := execute(t, tt.stdin, tt.args...)
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, GetExitCode(err))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
