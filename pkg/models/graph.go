package models

import (
	"bytes"
	"encoding/json"
	"reflect"
	"strings"
)

// Position is the canvas coordinate of a node. Only X is used for ordering.
type Position struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y,omitempty" yaml:"y,omitempty"`
}

// TableNodeData carries the node fields as the canvas library nests them.
type TableNodeData struct {
	Table   string   `json:"table,omitempty" yaml:"table,omitempty"`
	Alias   string   `json:"alias,omitempty" yaml:"alias,omitempty"`
	Columns []string `json:"columns,omitempty" yaml:"columns,omitempty"`
}

// TableNode is one table instance placed on the canvas.
// Two nodes may reference the same physical table (self-join).
type TableNode struct {
	ID        string         `json:"id" yaml:"id"`
	TableName string         `json:"tableName,omitempty" yaml:"tableName,omitempty"`
	Alias     string         `json:"alias,omitempty" yaml:"alias,omitempty"`
	Columns   []string       `json:"columns,omitempty" yaml:"columns,omitempty"`
	Position  *Position      `json:"position,omitempty" yaml:"position,omitempty"`
	Data      *TableNodeData `json:"data,omitempty" yaml:"data,omitempty"`
}

// Table returns the physical table name, defaulting to the node id.
func (n TableNode) Table() string {
	if n.TableName != "" {
		return n.TableName
	}
	if n.Data != nil && n.Data.Table != "" {
		return n.Data.Table
	}
	return n.ID
}

// RequestedAlias returns the user-supplied alias, if any.
func (n TableNode) RequestedAlias() string {
	if n.Alias != "" {
		return n.Alias
	}
	if n.Data != nil {
		return n.Data.Alias
	}
	return ""
}

// SelectedColumns returns the columns picked for the SELECT list.
func (n TableNode) SelectedColumns() []string {
	if len(n.Columns) > 0 {
		return n.Columns
	}
	if n.Data != nil {
		return n.Data.Columns
	}
	return nil
}

// HasPosition reports whether the node was placed on the canvas.
func (n TableNode) HasPosition() bool {
	return n.Position != nil
}

// JoinEdgeData carries the edge fields set through the join editor.
type JoinEdgeData struct {
	JoinType     string `json:"joinType,omitempty" yaml:"joinType,omitempty"`
	Condition    string `json:"condition,omitempty" yaml:"condition,omitempty"`
	SourceColumn string `json:"sourceColumn,omitempty" yaml:"sourceColumn,omitempty"`
	TargetColumn string `json:"targetColumn,omitempty" yaml:"targetColumn,omitempty"`
}

// JoinEdge is a user-declared join between two nodes.
type JoinEdge struct {
	ID        string        `json:"id,omitempty" yaml:"id,omitempty"`
	Source    string        `json:"source" yaml:"source"`
	Target    string        `json:"target" yaml:"target"`
	JoinType  string        `json:"joinType,omitempty" yaml:"joinType,omitempty"`
	Condition string        `json:"condition,omitempty" yaml:"condition,omitempty"`
	Data      *JoinEdgeData `json:"data,omitempty" yaml:"data,omitempty"`
}

// Type returns the raw join type, preferring the editor value.
func (e JoinEdge) Type() string {
	if e.Data != nil && e.Data.JoinType != "" {
		return e.Data.JoinType
	}
	return e.JoinType
}

// ClauseValue is a filter or having operand. JSON numbers and booleans are
// accepted and kept in their textual form.
type ClauseValue string

// UnmarshalJSON implements json.Unmarshaler. Numbers keep their literal
// text, so 10.50 stays "10.50". null decodes to the empty value.
func (v *ClauseValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		*v = ""
	case data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = ClauseValue(s)
	case data[0] == '{' || data[0] == '[':
		return &json.UnmarshalTypeError{Value: "object or array", Type: clauseValueType}
	default:
		*v = ClauseValue(data)
	}
	return nil
}

var clauseValueType = reflect.TypeOf(ClauseValue(""))

// String returns the value text.
func (v ClauseValue) String() string {
	return string(v)
}

// IsBlank reports whether the value is empty after trimming.
func (v ClauseValue) IsBlank() bool {
	return strings.TrimSpace(string(v)) == ""
}

// FilterClause is one WHERE term.
type FilterClause struct {
	Table    string      `json:"table" yaml:"table"`
	Column   string      `json:"column" yaml:"column"`
	Operator string      `json:"operator" yaml:"operator"`
	Value    ClauseValue `json:"value,omitempty" yaml:"value,omitempty"`
	Logic    string      `json:"logic,omitempty" yaml:"logic,omitempty"`
}

// GroupByClause is one GROUP BY term.
type GroupByClause struct {
	Table  string `json:"table" yaml:"table"`
	Column string `json:"column" yaml:"column"`
}

// HavingClause is one HAVING term.
type HavingClause struct {
	Aggregate string      `json:"aggregate" yaml:"aggregate"`
	Table     string      `json:"table" yaml:"table"`
	Column    string      `json:"column" yaml:"column"`
	Operator  string      `json:"operator,omitempty" yaml:"operator,omitempty"`
	Value     ClauseValue `json:"value" yaml:"value"`
	Logic     string      `json:"logic,omitempty" yaml:"logic,omitempty"`
}

// OrderByClause is one ORDER BY term.
type OrderByClause struct {
	Table     string `json:"table" yaml:"table"`
	Column    string `json:"column" yaml:"column"`
	Direction string `json:"direction,omitempty" yaml:"direction,omitempty"`
}

// ClauseSet holds the non-join predicates of a query.
type ClauseSet struct {
	Filters []FilterClause  `json:"filters,omitempty" yaml:"filters,omitempty"`
	GroupBy []GroupByClause `json:"groupBy,omitempty" yaml:"groupBy,omitempty"`
	Having  []HavingClause  `json:"having,omitempty" yaml:"having,omitempty"`
	OrderBy []OrderByClause `json:"orderBy,omitempty" yaml:"orderBy,omitempty"`
}

// QueryGraph is the full canvas payload sent for synthesis.
type QueryGraph struct {
	Nodes   []TableNode `json:"nodes" yaml:"nodes"`
	Edges   []JoinEdge  `json:"edges,omitempty" yaml:"edges,omitempty"`
	Clauses ClauseSet   `json:"clauses,omitempty" yaml:"clauses,omitempty"`
}
