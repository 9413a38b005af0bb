package datasource

import (
	"context"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/ekaya-inc/ekaya-canvas/pkg/models"
)

// DiscoveryConcurrency bounds per-table column queries during schema discovery.
const DiscoveryConcurrency = 8

// ColumnsFunc loads the columns of one table in ordinal order.
type ColumnsFunc func(ctx context.Context, table string) ([]models.SchemaColumn, error)

// AssembleSchema loads columns for every table concurrently and returns the
// schema with tables sorted by name. The first column error cancels the rest.
func AssembleSchema(ctx context.Context, tables []string, columns ColumnsFunc, relationships []models.SchemaRelationship) (*models.Schema, error) {
	names := append([]string(nil), tables...)
	sort.Strings(names)

	result := make([]models.SchemaTable, len(names))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(DiscoveryConcurrency)

	for i, name := range names {
		g.Go(func() error {
			cols, err := columns(gctx, name)
			if err != nil {
				return fmt.Errorf("columns for %s: %w", name, err)
			}
			if cols == nil {
				cols = []models.SchemaColumn{}
			}
			result[i] = models.SchemaTable{Name: name, Columns: cols}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if relationships == nil {
		relationships = []models.SchemaRelationship{}
	}
	sort.SliceStable(relationships, func(i, j int) bool {
		a, b := relationships[i], relationships[j]
		if a.TableFrom != b.TableFrom {
			return a.TableFrom < b.TableFrom
		}
		return a.ColumnFrom < b.ColumnFrom
	})

	return &models.Schema{Tables: result, Relationships: relationships}, nil
}
