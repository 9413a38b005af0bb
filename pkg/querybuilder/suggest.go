package querybuilder

import (
	"sort"
	"strings"

	"github.com/jinzhu/inflection"

	"github.com/ekaya-inc/ekaya-canvas/pkg/models"
)

const (
	OriginForeignKey = "foreign_key"
	OriginNaming     = "naming"
)

// SuggestJoins proposes join edges between the given tables. Declared foreign
// keys come first, then naming matches where one table has a column called
// {singular(other)}_id (or {other}_id) and the other table has an id column.
// When tables is empty every table in the schema is considered.
func SuggestJoins(schema *models.Schema, tables []string) []models.JoinSuggestion {
	if schema == nil {
		return nil
	}

	onCanvas := make(map[string]bool)
	for _, t := range tables {
		onCanvas[t] = true
	}
	include := func(table string) bool {
		return len(onCanvas) == 0 || onCanvas[table]
	}

	seen := make(map[string]bool)
	var suggestions []models.JoinSuggestion
	add := func(s models.JoinSuggestion) {
		key := strings.ToLower(s.SourceTable + "." + s.SourceColumn + "=" + s.TargetTable + "." + s.TargetColumn)
		if seen[key] {
			return
		}
		seen[key] = true
		suggestions = append(suggestions, s)
	}

	for _, rel := range schema.Relationships {
		if !include(rel.TableFrom) || !include(rel.TableTo) {
			continue
		}
		add(models.JoinSuggestion{
			SourceTable:  rel.TableFrom,
			SourceColumn: rel.ColumnFrom,
			TargetTable:  rel.TableTo,
			TargetColumn: rel.ColumnTo,
			Origin:       OriginForeignKey,
		})
	}

	var naming []models.JoinSuggestion
	for _, src := range schema.Tables {
		if !include(src.Name) {
			continue
		}
		for _, tgt := range schema.Tables {
			if !include(tgt.Name) || !tgt.HasColumn("id") {
				continue
			}
			for _, col := range foreignKeyCandidates(tgt.Name) {
				if src.Name == tgt.Name && col == "id" {
					continue
				}
				if src.HasColumn(col) {
					naming = append(naming, models.JoinSuggestion{
						SourceTable:  src.Name,
						SourceColumn: col,
						TargetTable:  tgt.Name,
						TargetColumn: "id",
						Origin:       OriginNaming,
					})
					break
				}
			}
		}
	}
	sort.SliceStable(naming, func(i, j int) bool {
		if naming[i].SourceTable != naming[j].SourceTable {
			return naming[i].SourceTable < naming[j].SourceTable
		}
		return naming[i].TargetTable < naming[j].TargetTable
	})
	for _, s := range naming {
		add(s)
	}

	return suggestions
}

// foreignKeyCandidates lists the column names that would reference table.id.
func foreignKeyCandidates(table string) []string {
	lower := strings.ToLower(table)
	singular := inflection.Singular(lower)
	if singular == lower {
		return []string{lower + "_id"}
	}
	return []string{singular + "_id", lower + "_id"}
}
