package postgres

import (
	"context"

	"github.com/ekaya-inc/ekaya-canvas/pkg/adapters/datasource"
)

func init() {
	datasource.Register(datasource.DatasourceAdapterRegistration{
		Info: datasource.DatasourceAdapterInfo{
			Type:        "postgres",
			DisplayName: "PostgreSQL",
			Description: "Connect to PostgreSQL 12+, Aurora PostgreSQL, Supabase",
			Icon:        "postgres",
			DefaultPort: DefaultPort(),
			Aliases:     []string{"pg", "postgresql"},
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
