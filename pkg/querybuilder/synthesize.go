package querybuilder

import (
	"fmt"
	"strings"

	"github.com/ekaya-inc/ekaya-canvas/pkg/models"
)

// Result is the output of one synthesis call.
type Result struct {
	SQL      string   `json:"query"`
	Aliases  AliasMap `json:"aliases"`
	Warnings []string `json:"warnings,omitempty"`
}

// Synthesize composes the SELECT statement for a query graph. It fails only when
// the graph has no nodes; malformed edges and clause entries are skipped.
func Synthesize(graph models.QueryGraph) (*Result, error) {
	if len(graph.Nodes) == 0 {
		return nil, ErrEmptyGraph
	}

	aliases, err := resolveAliases(graph.Nodes, foreignKeyHints(graph.Edges))
	if err != nil {
		return nil, err
	}
	idx := newGraphIndex(graph.Nodes, aliases)

	var warnings []string
	if dup := len(graph.Nodes) - len(idx.ordered); dup > 0 {
		warnings = append(warnings, fmt.Sprintf("%d node(s) with a duplicate id were ignored", dup))
	}

	root := idx.root()
	lines := []string{
		"SELECT " + strings.Join(idx.selectList(), ", "),
		"FROM " + idx.tableRef(root),
	}

	joins, joinWarnings := idx.planJoins(graph.Edges)
	lines = append(lines, joins...)
	warnings = append(warnings, joinWarnings...)

	if where := idx.renderWhere(graph.Clauses.Filters); len(where) > 0 {
		lines = append(lines, "WHERE "+strings.Join(where, " "))
	}
	if groupBy := idx.renderGroupBy(graph.Clauses.GroupBy); len(groupBy) > 0 {
		lines = append(lines, "GROUP BY "+strings.Join(groupBy, ", "))
	}
	if having := idx.renderHaving(graph.Clauses.Having); len(having) > 0 {
		lines = append(lines, "HAVING "+strings.Join(having, " "))
	}
	if orderBy := idx.renderOrderBy(graph.Clauses.OrderBy); len(orderBy) > 0 {
		lines = append(lines, "ORDER BY "+strings.Join(orderBy, ", "))
	}

	return &Result{
		SQL:      strings.Join(lines, "\n"),
		Aliases:  aliases,
		Warnings: warnings,
	}, nil
}

// selectList emits alias.col AS alias_col for every selected column, or alias.*
// for every node when nothing is selected.
func (g *graphIndex) selectList() []string {
	var parts []string
	for _, n := range g.ordered {
		alias := g.alias(n.ID)
		for _, col := range n.SelectedColumns() {
			if col == "*" {
				parts = append(parts, alias+".*")
				continue
			}
			parts = append(parts, fmt.Sprintf("%s.%s AS %s_%s", alias, col, alias, col))
		}
	}
	if len(parts) > 0 {
		return parts
	}

	for _, n := range g.ordered {
		parts = append(parts, g.alias(n.ID)+".*")
	}
	return parts
}

// foreignKeyHints names a repeated table after the column that references it,
// so employees joined through manager_id gets an alias like e_manager.
func foreignKeyHints(edges []models.JoinEdge) map[string]string {
	hints := make(map[string]string)
	for _, e := range edges {
		if e.Data == nil {
			continue
		}
		if h := aliasHint(e.Data.SourceColumn); h != "" {
			if _, ok := hints[e.Target]; !ok {
				hints[e.Target] = h
			}
			continue
		}
		if h := aliasHint(e.Data.TargetColumn); h != "" {
			if _, ok := hints[e.Source]; !ok {
				hints[e.Source] = h
			}
		}
	}
	return hints
}
