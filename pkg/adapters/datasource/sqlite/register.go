package sqlite

import (
	"context"

	"github.com/ekaya-inc/ekaya-canvas/pkg/adapters/datasource"
)

func init() {
	datasource.Register(datasource.DatasourceAdapterRegistration{
		Info: datasource.DatasourceAdapterInfo{
			Type:        "sqlite",
			DisplayName: "SQLite",
			Description: "Open a local SQLite database file read-only",
			Icon:        "sqlite",
			Aliases:     []string{"sqlite3", "better-sqlite3"},
			FileBased:   true,
		},
		Factory: func(ctx context.Context, config map[string]any, connMgr *datasource.ConnectionManager, connectionID string) (datasource.Adapter, error) {
			cfg, err := FromMap(config)
			if err != nil {
				return nil, err
			}
			return NewAdapter(ctx, cfg, connMgr, connectionID)
		},
	})
}
