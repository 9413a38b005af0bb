package querybuilder

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/ekaya-inc/ekaya-canvas/pkg/models"
)

// Clause values are interpolated as text. Nothing here escapes or parameterizes
// them, so generated SQL must only run behind the read-only execution guard.

const (
	logicAnd        = "AND"
	logicOr         = "OR"
	directionAsc    = "ASC"
	directionDesc   = "DESC"
	defaultOperator = "="
)

// RenderWhere renders WHERE terms. Entries without table or column, or without a
// value for operators that need one, are skipped.
func RenderWhere(filters []models.FilterClause, nodes []models.TableNode, aliases AliasMap) []string {
	return newGraphIndex(nodes, aliases).renderWhere(filters)
}

// RenderGroupBy renders GROUP BY terms as alias.column.
func RenderGroupBy(groups []models.GroupByClause, nodes []models.TableNode, aliases AliasMap) []string {
	return newGraphIndex(nodes, aliases).renderGroupBy(groups)
}

// RenderHaving renders HAVING terms as AGG(alias.column) OP value.
func RenderHaving(having []models.HavingClause, nodes []models.TableNode, aliases AliasMap) []string {
	return newGraphIndex(nodes, aliases).renderHaving(having)
}

// RenderOrderBy renders ORDER BY terms as alias.column DIRECTION.
func RenderOrderBy(orders []models.OrderByClause, nodes []models.TableNode, aliases AliasMap) []string {
	return newGraphIndex(nodes, aliases).renderOrderBy(orders)
}

func (g *graphIndex) renderWhere(filters []models.FilterClause) []string {
	var terms []string
	for _, f := range filters {
		op := normalizeOperator(f.Operator)
		if f.Table == "" || f.Column == "" {
			continue
		}
		if !isNullOperator(op) && f.Value == "" {
			continue
		}

		term := fmt.Sprintf("%s.%s %s", g.resolveTable(f.Table), f.Column, op)
		if !isNullOperator(op) {
			term += " " + formatFilterValue(op, f.Value.String())
		}
		if len(terms) > 0 {
			term = normalizeLogic(f.Logic) + " " + term
		}
		terms = append(terms, term)
	}
	return terms
}

func (g *graphIndex) renderGroupBy(groups []models.GroupByClause) []string {
	var terms []string
	for _, gb := range groups {
		if gb.Table == "" || gb.Column == "" {
			continue
		}
		terms = append(terms, g.resolveTable(gb.Table)+"."+gb.Column)
	}
	return terms
}

func (g *graphIndex) renderHaving(having []models.HavingClause) []string {
	var terms []string
	for _, h := range having {
		aggregate := strings.ToUpper(strings.TrimSpace(h.Aggregate))
		if aggregate == "" || h.Table == "" || h.Column == "" || h.Value == "" {
			continue
		}

		term := fmt.Sprintf("%s(%s.%s) %s %s",
			aggregate, g.resolveTable(h.Table), h.Column,
			normalizeOperator(h.Operator), formatScalar(h.Value.String()))
		if len(terms) > 0 {
			term = normalizeLogic(h.Logic) + " " + term
		}
		terms = append(terms, term)
	}
	return terms
}

func (g *graphIndex) renderOrderBy(orders []models.OrderByClause) []string {
	var terms []string
	for _, o := range orders {
		if o.Table == "" || o.Column == "" {
			continue
		}
		direction := directionAsc
		if strings.EqualFold(strings.TrimSpace(o.Direction), directionDesc) {
			direction = directionDesc
		}
		terms = append(terms, fmt.Sprintf("%s.%s %s", g.resolveTable(o.Table), o.Column, direction))
	}
	return terms
}

// formatFilterValue applies the operator-specific literal rules.
func formatFilterValue(op, value string) string {
	switch op {
	case "IN", "NOT IN":
		return "(" + value + ")"
	case "LIKE", "NOT LIKE":
		return quote(value)
	default:
		return formatScalar(value)
	}
}

// formatScalar leaves numbers bare and quotes everything else.
func formatScalar(value string) string {
	if IsNumeric(value) {
		return strings.TrimSpace(value)
	}
	return quote(value)
}

// decimalLiteral is a plain decimal number with an optional exponent. Go
// literal forms such as 1_000 or 0x1p4 are not SQL numbers and stay quoted.
var decimalLiteral = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?$`)

// IsNumeric reports whether a clause value is a finite decimal number once trimmed.
func IsNumeric(value string) bool {
	trimmed := strings.TrimSpace(value)
	if !decimalLiteral.MatchString(trimmed) {
		return false
	}
	f, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return false
	}
	return !math.IsInf(f, 0) && !math.IsNaN(f)
}

func quote(value string) string {
	return "'" + value + "'"
}

func isNullOperator(op string) bool {
	return op == "IS NULL" || op == "IS NOT NULL"
}

// normalizeOperator uppercases and collapses whitespace; empty becomes "=".
func normalizeOperator(op string) string {
	normalized := strings.Join(strings.Fields(strings.ToUpper(op)), " ")
	if normalized == "" {
		return defaultOperator
	}
	return normalized
}

func normalizeLogic(logic string) string {
	if strings.EqualFold(strings.TrimSpace(logic), logicOr) {
		return logicOr
	}
	return logicAnd
}
