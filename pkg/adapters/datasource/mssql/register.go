package mssql

import (
	"context"

	"github.com/ekaya-inc/ekaya-canvas/pkg/adapters/datasource"
)

func init() {
	datasource.Register(datasource.DatasourceAdapterRegistration{
		Info: datasource.DatasourceAdapterInfo{
			Type:        "mssql",
			DisplayName: "Microsoft SQL Server",
			Description: "Connect to SQL Server 2019+, Azure SQL Database",
			Icon:        "mssql",
			DefaultPort: DefaultPort(),
			Aliases:     []string{"sqlserver"},
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
