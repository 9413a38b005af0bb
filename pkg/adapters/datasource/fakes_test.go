package datasource

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/ekaya-inc/ekaya-canvas/pkg/models"
)

type fakeConnector struct {
	dbType  string
	pingErr error
	closed  atomic.Bool
}

func (c *fakeConnector) Ping(ctx context.Context) error {
	if c.closed.Load() {
		return errors.New("pool closed")
	}
	return c.pingErr
}

func (c *fakeConnector) Close() error {
	c.closed.Store(true)
	return nil
}

func (c *fakeConnector) GetType() string { return c.dbType }

type fakeAdapter struct {
	config       map[string]any
	connMgr      *ConnectionManager
	connectionID string
}

func (a *fakeAdapter) TestConnection(ctx context.Context) error { return nil }
func (a *fakeAdapter) Close() error                             { return nil }

func (a *fakeAdapter) DiscoverSchema(ctx context.Context) (*models.Schema, error) {
	return &models.Schema{}, nil
}

func (a *fakeAdapter) ListDatabases(ctx context.Context) ([]string, error) {
	return []string{"main"}, nil
}

func (a *fakeAdapter) Query(ctx context.Context, sqlQuery string, maxRows int) (*QueryExecutionResult, error) {
	return &QueryExecutionResult{}, nil
}

func (a *fakeAdapter) ApplyRowLimit(sqlQuery string, limit int) string { return sqlQuery }

var registerFakesOnce sync.Once

// registerFakes installs two adapter types: a server type "testdb" (alias "tdb",
// default port 1234) and a file type "testfile".
func registerFakes() {
	registerFakesOnce.Do(func() {
		factory := func(ctx context.Context, config map[string]any, connMgr *ConnectionManager, connectionID string) (Adapter, error) {
			return &fakeAdapter{config: config, connMgr: connMgr, connectionID: connectionID}, nil
		}
		Register(DatasourceAdapterRegistration{
			Info: DatasourceAdapterInfo{
				Type:        "testdb",
				DisplayName: "Test DB",
				DefaultPort: 1234,
				Aliases:     []string{"tdb"},
			},
			Factory: factory,
		})
		Register(DatasourceAdapterRegistration{
			Info: DatasourceAdapterInfo{
				Type:        "testfile",
				DisplayName: "Test File DB",
				FileBased:   true,
			},
			Factory: factory,
		})
	})
}

var _ Adapter = (*fakeAdapter)(nil)
