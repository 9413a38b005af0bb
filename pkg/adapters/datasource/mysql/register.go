package mysql

import (
	"context"

	"github.com/ekaya-inc/ekaya-canvas/pkg/adapters/datasource"
)

func init() {
	datasource.Register(datasource.DatasourceAdapterRegistration{
		Info: datasource.DatasourceAdapterInfo{
			Type:        "mysql",
			DisplayName: "MySQL",
			Description: "Connect to MySQL 8+, MariaDB, Aurora MySQL",
			Icon:        "mysql",
			DefaultPort: DefaultPort(),
			Aliases:     []string{"mysql2", "mariadb"},
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
