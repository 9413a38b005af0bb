package querybuilder

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/ekaya-inc/ekaya-canvas/pkg/models"
)

const defaultJoinType = "INNER"

// graphIndex is the per-call view of the nodes: position order, id lookup and
// the resolved aliases.
type graphIndex struct {
	ordered []models.TableNode
	byID    map[string]models.TableNode
	rank    map[string]int
	aliases AliasMap
}

func newGraphIndex(nodes []models.TableNode, aliases AliasMap) *graphIndex {
	ordered := sortByPosition(nodes)
	idx := &graphIndex{
		ordered: make([]models.TableNode, 0, len(ordered)),
		byID:    make(map[string]models.TableNode, len(ordered)),
		rank:    make(map[string]int, len(ordered)),
		aliases: aliases,
	}
	for _, n := range ordered {
		if _, dup := idx.byID[n.ID]; dup {
			continue
		}
		idx.rank[n.ID] = len(idx.ordered)
		idx.byID[n.ID] = n
		idx.ordered = append(idx.ordered, n)
	}
	return idx
}

// root is the leftmost node on the canvas.
func (g *graphIndex) root() models.TableNode {
	return g.ordered[0]
}

// alias returns the alias of a node id, falling back to the id itself.
func (g *graphIndex) alias(nodeID string) string {
	if a, ok := g.aliases[nodeID]; ok {
		return a
	}
	return nodeID
}

// resolveTable maps a clause table reference to an alias. Node ids win over
// physical table names; unknown references pass through unchanged.
func (g *graphIndex) resolveTable(ref string) string {
	if _, ok := g.byID[ref]; ok {
		return g.alias(ref)
	}
	for _, n := range g.ordered {
		if n.Table() == ref {
			return g.alias(n.ID)
		}
	}
	return ref
}

// tableRef renders "table" or "table alias" when the two differ.
func (g *graphIndex) tableRef(n models.TableNode) string {
	alias := g.alias(n.ID)
	if alias == n.Table() {
		return n.Table()
	}
	return n.Table() + " " + alias
}

// PlanJoins orders the edges into JOIN lines rooted at the leftmost node.
// Edges with unknown endpoints are dropped. Edges that never touch the joined
// set are omitted and reported as warnings.
func PlanJoins(nodes []models.TableNode, edges []models.JoinEdge, aliases AliasMap) ([]string, []string, error) {
	if len(nodes) == 0 {
		return nil, nil, ErrEmptyGraph
	}
	joins, warnings := newGraphIndex(nodes, aliases).planJoins(edges)
	return joins, warnings, nil
}

func (g *graphIndex) planJoins(edges []models.JoinEdge) ([]string, []string) {
	pending := make([]models.JoinEdge, 0, len(edges))
	for _, e := range edges {
		_, srcOK := g.byID[e.Source]
		_, tgtOK := g.byID[e.Target]
		if srcOK && tgtOK {
			pending = append(pending, e)
		}
	}
	sort.SliceStable(pending, func(i, j int) bool {
		return g.rank[pending[i].Target] < g.rank[pending[j].Target]
	})

	joined := map[string]bool{g.root().ID: true}
	var lines []string

	maxIterations := 2 * len(pending)
	for iter := 0; iter < maxIterations && len(pending) > 0; iter++ {
		remaining := pending[:0:0]
		for _, e := range pending {
			srcIn, tgtIn := joined[e.Source], joined[e.Target]
			switch {
			case srcIn && tgtIn:
				// Redundant: both sides already reachable.
			case srcIn || tgtIn:
				base, next := e.Source, e.Target
				if tgtIn {
					base, next = e.Target, e.Source
				}
				lines = append(lines, g.joinLine(e, base, next))
				joined[next] = true
			default:
				remaining = append(remaining, e)
			}
		}
		if len(remaining) == len(pending) {
			break
		}
		pending = remaining
	}

	var warnings []string
	for _, n := range g.ordered {
		if !joined[n.ID] {
			warnings = append(warnings, fmt.Sprintf(
				"table %q is not connected to %q and was left out of the FROM clause",
				n.ID, g.root().ID))
		}
	}
	return lines, warnings
}

// joinLine renders one JOIN bringing node next into the query, with base being
// the endpoint already joined.
func (g *graphIndex) joinLine(e models.JoinEdge, base, next string) string {
	joinedNode := g.byID[next]
	return fmt.Sprintf("%s JOIN %s ON %s",
		normalizeJoinType(e.Type()), g.tableRef(joinedNode), g.joinCondition(e, base, next))
}

// joinCondition picks the ON expression in priority order: editor condition,
// column pair, edge condition, then the {table}_id naming convention.
func (g *graphIndex) joinCondition(e models.JoinEdge, base, next string) string {
	src, tgt := g.byID[e.Source], g.byID[e.Target]

	if e.Data != nil && strings.TrimSpace(e.Data.Condition) != "" {
		return g.substituteAliases(e.Data.Condition, src, tgt)
	}
	if e.Data != nil && e.Data.SourceColumn != "" && e.Data.TargetColumn != "" {
		return fmt.Sprintf("%s.%s = %s.%s",
			g.alias(src.ID), e.Data.SourceColumn, g.alias(tgt.ID), e.Data.TargetColumn)
	}
	if strings.TrimSpace(e.Condition) != "" {
		return g.substituteAliases(e.Condition, src, tgt)
	}

	joinedNode := g.byID[next]
	return fmt.Sprintf("%s.%s_id = %s.id", g.alias(base), joinedNode.Table(), g.alias(next))
}

// substituteAliases rewrites whole-word table and node-id tokens in a free-text
// condition to the final aliases in a single pass. Node ids take precedence over
// table names; a table name shared by both endpoints is left alone.
func (g *graphIndex) substituteAliases(condition string, src, tgt models.TableNode) string {
	replacements := make(map[string]string)
	if src.Table() != tgt.Table() {
		replacements[src.Table()] = g.alias(src.ID)
		replacements[tgt.Table()] = g.alias(tgt.ID)
	}
	replacements[src.ID] = g.alias(src.ID)
	replacements[tgt.ID] = g.alias(tgt.ID)

	tokens := make([]string, 0, len(replacements))
	for token, alias := range replacements {
		if token != "" && token != alias {
			tokens = append(tokens, token)
		}
	}
	if len(tokens) == 0 {
		return strings.TrimSpace(condition)
	}
	// Longest first so that alternation prefers "order_items" over "order".
	sort.Slice(tokens, func(i, j int) bool {
		if len(tokens[i]) != len(tokens[j]) {
			return len(tokens[i]) > len(tokens[j])
		}
		return tokens[i] < tokens[j]
	})
	quoted := make([]string, len(tokens))
	for i, t := range tokens {
		quoted[i] = regexp.QuoteMeta(t)
	}

	re := regexp.MustCompile(`\b(?:` + strings.Join(quoted, "|") + `)\b`)
	return strings.TrimSpace(re.ReplaceAllStringFunc(condition, func(match string) string {
		return replacements[match]
	}))
}

// normalizeJoinType uppercases a join type and drops a trailing "JOIN" keyword.
func normalizeJoinType(joinType string) string {
	t := strings.ToUpper(strings.TrimSpace(joinType))
	t = strings.TrimSpace(strings.TrimSuffix(t, "JOIN"))
	if t == "" {
		return defaultJoinType
	}
	return t
}
