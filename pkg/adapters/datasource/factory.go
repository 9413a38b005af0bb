package datasource

import (
	"context"
	"fmt"

	"github.com/ekaya-inc/ekaya-canvas/pkg/apperrors"
)

// DatasourceAdapterFactory creates adapters from the registry.
type DatasourceAdapterFactory interface {
	// NewAdapter opens an adapter for a normalized connection config. When
	// connectionID is non-empty the pool is shared through the connection manager.
	NewAdapter(ctx context.Context, config map[string]any, connectionID string) (Adapter, error)

	// ListTypes returns info for all registered adapter types.
	ListTypes() []DatasourceAdapterInfo
}

type registryFactory struct {
	connMgr *ConnectionManager
}

// NewDatasourceAdapterFactory returns a factory that uses the global registry.
func NewDatasourceAdapterFactory(connMgr *ConnectionManager) DatasourceAdapterFactory {
	return &registryFactory{
		connMgr: connMgr,
	}
}

func (f *registryFactory) NewAdapter(ctx context.Context, config map[string]any, connectionID string) (Adapter, error) {
	dsType := StringParam(config, "type", "client")
	factory := GetFactory(dsType)
	if factory == nil {
		return nil, fmt.Errorf("%w: %q (not compiled in)", apperrors.ErrUnsupportedDatasource, dsType)
	}

	connMgr := f.connMgr
	if connectionID == "" {
		connMgr = nil
	}
	return factory(ctx, config, connMgr, connectionID)
}

func (f *registryFactory) ListTypes() []DatasourceAdapterInfo {
	return RegisteredAdapters()
}

// Ensure registryFactory implements DatasourceAdapterFactory at compile time.
var _ DatasourceAdapterFactory = (*registryFactory)(nil)
