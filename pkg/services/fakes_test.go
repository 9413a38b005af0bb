package services

import (
	"context"
	"errors"
	"sync"

	"github.com/ekaya-inc/ekaya-canvas/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-canvas/pkg/crypto"
	"github.com/ekaya-inc/ekaya-canvas/pkg/models"
	sqlguard "github.com/ekaya-inc/ekaya-canvas/pkg/sql"
)

// fakeAdapter records what the services ask of it.
type fakeAdapter struct {
	testErr   error
	queryErr  error
	schema    *models.Schema
	databases []string
	result    *datasource.QueryExecutionResult

	mu          sync.Mutex
	queries     []string
	maxRows     []int
	closed      int
	hasDeadline bool
}

func (a *fakeAdapter) TestConnection(ctx context.Context) error { return a.testErr }

func (a *fakeAdapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closed++
	return nil
}

func (a *fakeAdapter) DiscoverSchema(ctx context.Context) (*models.Schema, error) {
	if a.schema == nil {
		return &models.Schema{}, nil
	}
	return a.schema, nil
}

func (a *fakeAdapter) ListDatabases(ctx context.Context) ([]string, error) {
	return a.databases, nil
}

func (a *fakeAdapter) Query(ctx context.Context, sqlQuery string, maxRows int) (*datasource.QueryExecutionResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.queries = append(a.queries, sqlQuery)
	a.maxRows = append(a.maxRows, maxRows)
	_, a.hasDeadline = ctx.Deadline()
	if a.queryErr != nil {
		return nil, a.queryErr
	}
	if a.result != nil {
		return a.result, nil
	}
	return &datasource.QueryExecutionResult{Rows: []map[string]any{}}, nil
}

func (a *fakeAdapter) ApplyRowLimit(sqlQuery string, limit int) string {
	return sqlguard.EnsureRowLimit(sqlQuery, limit)
}

// fakeFactory hands out one shared fakeAdapter and records the configs it saw.
type fakeFactory struct {
	adapter    *fakeAdapter
	factoryErr error

	mu            sync.Mutex
	configs       []map[string]any
	connectionIDs []string
}

func (f *fakeFactory) NewAdapter(ctx context.Context, config map[string]any, connectionID string) (datasource.Adapter, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.configs = append(f.configs, config)
	f.connectionIDs = append(f.connectionIDs, connectionID)
	if f.factoryErr != nil {
		return nil, f.factoryErr
	}
	return f.adapter, nil
}

func (f *fakeFactory) ListTypes() []datasource.DatasourceAdapterInfo {
	return datasource.RegisteredAdapters()
}

func (f *fakeFactory) lastConfig() map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.configs[len(f.configs)-1]
}

var errBoom = errors.New("boom")

func newTestSealer() *crypto.Sealer {
	s, err := crypto.NewRandomSealer()
	if err != nil {
		panic(err)
	}
	return s
}

var _ datasource.DatasourceAdapterFactory = (*fakeFactory)(nil)
