package querybuilder

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-canvas/pkg/models"
)

func loadGraph(t *testing.T, name string) models.QueryGraph {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", "graphs", name+".json"))
	require.NoError(t, err)

	var graph models.QueryGraph
	require.NoError(t, json.Unmarshal(data, &graph))
	return graph
}

// To regenerate golden files run: go test ./pkg/querybuilder -update
func TestSynthesize_Golden(t *testing.T) {
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)

	for _, name := range []string{"storefront", "self_join", "select_star"} {
		t.Run(name, func(t *testing.T) {
			result, err := Synthesize(loadGraph(t, name))
			require.NoError(t, err)
			g.Assert(t, name, []byte(result.SQL))
		})
	}
}

func TestSynthesize_ConventionJoinWithSelectedColumns(t *testing.T) {
	graph := models.QueryGraph{
		Nodes: []models.TableNode{
			{ID: "users", Columns: []string{"id", "name"}},
			{ID: "orders", Columns: []string{"total"}},
		},
		Edges: []models.JoinEdge{{Source: "users", Target: "orders"}},
	}

	result, err := Synthesize(graph)
	require.NoError(t, err)

	assert.Equal(t,
		"SELECT users.id AS users_id, users.name AS users_name, orders.total AS orders_total\n"+
			"FROM users\n"+
			"INNER JOIN orders ON users.orders_id = orders.id",
		result.SQL)
	assert.Empty(t, result.Warnings)
}

func TestSynthesize_SingleNodeSelectsAll(t *testing.T) {
	result, err := Synthesize(models.QueryGraph{
		Nodes: []models.TableNode{{ID: "products"}},
	})
	require.NoError(t, err)

	assert.Equal(t, "SELECT products.*\nFROM products", result.SQL)
	assert.Equal(t, AliasMap{"products": "products"}, result.Aliases)
}

func TestSynthesize_FromUsesAliasWhenDifferent(t *testing.T) {
	result, err := Synthesize(models.QueryGraph{
		Nodes: []models.TableNode{{ID: "n1", TableName: "products", Alias: "p", Columns: []string{"*"}}},
	})
	require.NoError(t, err)

	assert.Equal(t, "SELECT p.*\nFROM products p", result.SQL)
}

func TestSynthesize_ClauseOrderIsFixed(t *testing.T) {
	graph := models.QueryGraph{
		Nodes: []models.TableNode{{ID: "orders", Columns: []string{"status"}}},
		Clauses: models.ClauseSet{
			OrderBy: []models.OrderByClause{{Table: "orders", Column: "status"}},
			Having:  []models.HavingClause{{Aggregate: "COUNT", Table: "orders", Column: "id", Operator: ">", Value: "1"}},
			GroupBy: []models.GroupByClause{{Table: "orders", Column: "status"}},
			Filters: []models.FilterClause{{Table: "orders", Column: "status", Operator: "=", Value: "paid"}},
		},
	}

	result, err := Synthesize(graph)
	require.NoError(t, err)

	assert.Equal(t,
		"SELECT orders.status AS orders_status\n"+
			"FROM orders\n"+
			"WHERE orders.status = 'paid'\n"+
			"GROUP BY orders.status\n"+
			"HAVING COUNT(orders.id) > 1\n"+
			"ORDER BY orders.status ASC",
		result.SQL)
}

func TestSynthesize_EmptyGraph(t *testing.T) {
	_, err := Synthesize(models.QueryGraph{})
	assert.ErrorIs(t, err, ErrEmptyGraph)
}

func TestSynthesize_WarnsAboutUnreachableAndDuplicateNodes(t *testing.T) {
	result, err := Synthesize(loadGraph(t, "select_star"))
	require.NoError(t, err)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "audit_log")

	dup, err := Synthesize(models.QueryGraph{
		Nodes: []models.TableNode{{ID: "users"}, {ID: "users"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "SELECT users.*\nFROM users", dup.SQL)
	assert.Contains(t, dup.Warnings, "1 node(s) with a duplicate id were ignored")
}

func TestSynthesize_Deterministic(t *testing.T) {
	graph := loadGraph(t, "storefront")

	first, err := Synthesize(graph)
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		again, err := Synthesize(graph)
		require.NoError(t, err)
		assert.Equal(t, first.SQL, again.SQL)
		assert.Equal(t, first.Aliases, again.Aliases)
	}
}

func TestSynthesize_ConcurrentCallsDoNotInterfere(t *testing.T) {
	graph := loadGraph(t, "storefront")
	want, err := Synthesize(graph)
	require.NoError(t, err)

	results := make(chan string, 16)
	for i := 0; i < cap(results); i++ {
		go func() {
			r, err := Synthesize(graph)
			if err != nil {
				results <- err.Error()
				return
			}
			results <- r.SQL
		}()
	}
	for i := 0; i < cap(results); i++ {
		assert.Equal(t, want.SQL, <-results)
	}
}

func TestSynthesize_RootFollowsCanvasOrder(t *testing.T) {
	tests := []struct {
		name  string
		nodes []models.TableNode
		edges []models.JoinEdge
		want  string
	}{
		{
			name: "positioned node is root over an unpositioned one",
			nodes: []models.TableNode{
				{ID: "orders"},
				{ID: "users", Position: at(300)},
			},
			edges: []models.JoinEdge{{Source: "users", Target: "orders"}},
			want: "SELECT users.*, orders.*\n" +
				"FROM users\n" +
				"INNER JOIN orders ON users.orders_id = orders.id",
		},
		{
			name: "equal x falls back to input order",
			nodes: []models.TableNode{
				{ID: "floating"},
				{ID: "b", Position: at(5)},
				{ID: "a", Position: at(5)},
			},
			edges: []models.JoinEdge{
				{Source: "a", Target: "floating"},
				{Source: "b", Target: "a"},
			},
			want: "SELECT b.*, a.*, floating.*\n" +
				"FROM b\n" +
				"INNER JOIN a ON b.a_id = a.id\n" +
				"INNER JOIN floating ON a.floating_id = floating.id",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := Synthesize(models.QueryGraph{Nodes: tt.nodes, Edges: tt.edges})
			require.NoError(t, err)
			assert.Equal(t, tt.want, result.SQL)
		})
	}
}
