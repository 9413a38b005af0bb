package models

import "strings"

// Schema is the introspected shape of a user database, as consumed by the canvas.
type Schema struct {
	Tables        []SchemaTable        `json:"tables"`
	Relationships []SchemaRelationship `json:"relationships"`
}

// SchemaTable is one discovered table.
type SchemaTable struct {
	Name    string         `json:"name"`
	Columns []SchemaColumn `json:"columns"`
}

// SchemaColumn is one discovered column.
type SchemaColumn struct {
	Name         string  `json:"name"`
	Type         string  `json:"type"`
	Nullable     bool    `json:"nullable"`
	DefaultValue *string `json:"default_value"`
}

// SchemaRelationship is a foreign key from table_from.column_from to table_to.column_to.
type SchemaRelationship struct {
	TableFrom  string `json:"table_from"`
	ColumnFrom string `json:"column_from"`
	TableTo    string `json:"table_to"`
	ColumnTo   string `json:"column_to"`
}

// Table returns the table with the given name, or nil.
func (s *Schema) Table(name string) *SchemaTable {
	for i := range s.Tables {
		if s.Tables[i].Name == name {
			return &s.Tables[i]
		}
	}
	return nil
}

// HasColumn reports whether the table has a column with the given name, ignoring case.
func (t *SchemaTable) HasColumn(name string) bool {
	for _, c := range t.Columns {
		if strings.EqualFold(c.Name, name) {
			return true
		}
	}
	return false
}

// JoinSuggestion is a candidate join edge between two tables.
type JoinSuggestion struct {
	SourceTable  string `json:"sourceTable"`
	SourceColumn string `json:"sourceColumn"`
	TargetTable  string `json:"targetTable"`
	TargetColumn string `json:"targetColumn"`
	// Origin is "foreign_key" for declared constraints or "naming" for heuristic matches.
	Origin string `json:"origin"`
}

// Connection is a registered datasource connection. Secrets are never included.
type Connection struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Host     string `json:"host,omitempty"`
	Port     int    `json:"port,omitempty"`
	Database string `json:"database"`
	User     string `json:"user,omitempty"`
}
