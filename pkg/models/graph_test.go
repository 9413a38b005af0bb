package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestClauseValue_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  ClauseValue
	}{
		{"string", `"paid"`, "paid"},
		{"escaped string", `"O'Brien"`, "O'Brien"},
		{"integer", `42`, "42"},
		{"decimal keeps text", `10.50`, "10.50"},
		{"boolean", `true`, "true"},
		{"null", `null`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var f FilterClause
			require.NoError(t, json.Unmarshal([]byte(`{"value": `+tt.input+`}`), &f))
			assert.Equal(t, tt.want, f.Value)
		})
	}
}

func TestClauseValue_RejectsCompositeValues(t *testing.T) {
	var f FilterClause
	assert.Error(t, json.Unmarshal([]byte(`{"value": ["a", "b"]}`), &f))
	assert.Error(t, json.Unmarshal([]byte(`{"value": {"a": 1}}`), &f))
}

func TestClauseValue_IsBlank(t *testing.T) {
	assert.True(t, ClauseValue("  ").IsBlank())
	assert.False(t, ClauseValue("0").IsBlank())
}

func TestTableNode_Accessors(t *testing.T) {
	nested := TableNode{
		ID:   "n1",
		Data: &TableNodeData{Table: "orders", Alias: "o", Columns: []string{"id"}},
	}
	assert.Equal(t, "orders", nested.Table())
	assert.Equal(t, "o", nested.RequestedAlias())
	assert.Equal(t, []string{"id"}, nested.SelectedColumns())
	assert.False(t, nested.HasPosition())

	flat := TableNode{ID: "n2", TableName: "customers", Alias: "c", Columns: []string{"name"}, Data: nested.Data}
	assert.Equal(t, "customers", flat.Table())
	assert.Equal(t, "c", flat.RequestedAlias())
	assert.Equal(t, []string{"name"}, flat.SelectedColumns())

	bare := TableNode{ID: "products", Position: &Position{X: 10}}
	assert.Equal(t, "products", bare.Table())
	assert.Empty(t, bare.RequestedAlias())
	assert.Nil(t, bare.SelectedColumns())
	assert.True(t, bare.HasPosition())
}

func TestJoinEdge_Type(t *testing.T) {
	assert.Equal(t, "LEFT", JoinEdge{JoinType: "INNER", Data: &JoinEdgeData{JoinType: "LEFT"}}.Type())
	assert.Equal(t, "INNER", JoinEdge{JoinType: "INNER"}.Type())
	assert.Empty(t, JoinEdge{}.Type())
}

func TestQueryGraph_YAMLMatchesJSON(t *testing.T) {
	jsonGraph := `{
		"nodes": [{"id": "orders", "alias": "o", "columns": ["status"]}],
		"edges": [{"source": "orders", "target": "customers", "data": {"joinType": "LEFT"}}],
		"clauses": {"orderBy": [{"table": "orders", "column": "status", "direction": "DESC"}]}
	}`
	yamlGraph := `
nodes:
  - id: orders
    alias: o
    columns: [status]
edges:
  - source: orders
    target: customers
    data:
      joinType: LEFT
clauses:
  orderBy:
    - table: orders
      column: status
      direction: DESC
`

	var fromJSON, fromYAML QueryGraph
	require.NoError(t, json.Unmarshal([]byte(jsonGraph), &fromJSON))
	require.NoError(t, yaml.Unmarshal([]byte(yamlGraph), &fromYAML))
	assert.Equal(t, fromJSON, fromYAML)
}
