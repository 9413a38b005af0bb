// Package querybuilder turns a visual query graph into a single SQL SELECT statement.
//
// The package is pure: every call builds its own working state from the graph it
// is given and returns text. Nothing is cached between calls, so the functions are
// safe to use concurrently.
package querybuilder

import (
	"errors"
	"sort"
	"strconv"
	"strings"

	"github.com/ekaya-inc/ekaya-canvas/pkg/models"
)

// ErrEmptyGraph is returned when a graph has no table nodes.
var ErrEmptyGraph = errors.New("no tables selected")

// AliasMap maps node id to its final SQL alias.
type AliasMap map[string]string

// foreignKeySuffixes are stripped from a referencing column to build an alias hint.
var foreignKeySuffixes = []string{"_id", "_fk"}

// ResolveAliases assigns every node a unique, deterministic alias.
func ResolveAliases(nodes []models.TableNode) (AliasMap, error) {
	return resolveAliases(nodes, nil)
}

// resolveAliases is ResolveAliases with optional per-node hints taken from the
// foreign-key column that pulls a repeated table into the query.
func resolveAliases(nodes []models.TableNode, hints map[string]string) (AliasMap, error) {
	if len(nodes) == 0 {
		return nil, ErrEmptyGraph
	}

	ordered := sortByPosition(nodes)

	tableCount := make(map[string]int)
	for _, n := range ordered {
		tableCount[n.Table()]++
	}

	aliases := make(AliasMap, len(ordered))
	used := make(map[string]bool, len(ordered))
	occurrence := make(map[string]int)

	reserve := func(nodeID, alias string) {
		used[strings.ToLower(alias)] = true
		aliases[nodeID] = alias
	}
	taken := func(alias string) bool {
		return used[strings.ToLower(alias)]
	}

	for _, n := range ordered {
		if _, done := aliases[n.ID]; done {
			continue
		}
		table := n.Table()
		occurrence[table]++

		requested := n.RequestedAlias()
		if requested == "" {
			requested = table
		}
		if !taken(requested) {
			reserve(n.ID, requested)
			continue
		}

		suffix := ""
		if tableCount[table] > 1 && occurrence[table] > 1 {
			if hint := hints[n.ID]; hint != "" {
				suffix = "_" + hint
			} else {
				suffix = strconv.Itoa(occurrence[table])
			}
		}

		reserve(n.ID, fallbackAlias(table, suffix, len(used), taken))
	}

	return aliases, nil
}

// fallbackAlias lengthens a lowercase prefix of the table name until it finds a
// free alias, then falls back to a numbered variant of the one-letter prefix.
func fallbackAlias(table, suffix string, usedCount int, taken func(string) bool) string {
	letters := []rune(strings.ToLower(table))
	if len(letters) == 0 {
		letters = []rune("t")
	}

	for n := 1; n <= len(letters); n++ {
		candidate := string(letters[:n]) + suffix
		if !taken(candidate) {
			return candidate
		}
	}

	base := string(letters[:1]) + suffix
	for count := usedCount + 1; ; count++ {
		candidate := base + "_" + strconv.Itoa(count)
		if !taken(candidate) {
			return candidate
		}
	}
}

// aliasHint derives a readable alias fragment from a foreign-key column name,
// e.g. "manager_id" becomes "manager".
func aliasHint(column string) string {
	hint := strings.ToLower(strings.TrimSpace(column))
	for _, suffix := range foreignKeySuffixes {
		if strings.HasSuffix(hint, suffix) && len(hint) > len(suffix) {
			return strings.TrimSuffix(hint, suffix)
		}
	}
	return ""
}

// sortByPosition returns a copy of nodes in ascending position.x order.
// Nodes without a position keep their input order after all positioned nodes.
func sortByPosition(nodes []models.TableNode) []models.TableNode {
	ordered := make([]models.TableNode, len(nodes))
	copy(ordered, nodes)
	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if a.HasPosition() != b.HasPosition() {
			return a.HasPosition()
		}
		if !a.HasPosition() {
			return false
		}
		return a.Position.X < b.Position.X
	})
	return ordered
}
