package tools

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ekaya-inc/ekaya-canvas/pkg/adapters/datasource"
	_ "github.com/ekaya-inc/ekaya-canvas/pkg/adapters/datasource/sqlite"
	"github.com/ekaya-inc/ekaya-canvas/pkg/config"
	"github.com/ekaya-inc/ekaya-canvas/pkg/crypto"
	"github.com/ekaya-inc/ekaya-canvas/pkg/services"
	"github.com/ekaya-inc/ekaya-canvas/pkg/testhelpers"
)

type toolFixture struct {
	mcp          *server.MCPServer
	connections  services.ConnectionService
	connectionID string
}

// newToolFixture registers the canvas tools against real services with the
// storefront SQLite database connected.
func newToolFixture(t *testing.T) *toolFixture {
	t.Helper()
	logger := zaptest.NewLogger(t)

	connMgr := datasource.NewConnectionManager(datasource.ConnectionManagerConfig{MaxConnections: 5, TTLMinutes: 5}, logger)
	t.Cleanup(func() { _ = connMgr.Close() })

	sealer, err := crypto.NewRandomSealer()
	require.NoError(t, err)

	connections := services.NewConnectionService(datasource.NewDatasourceAdapterFactory(connMgr), connMgr, sealer, 5*time.Second, logger)
	queries := services.NewQueryService(connections, config.QueryConfig{
		DefaultRowLimit:  100,
		MaxRows:          500,
		StatementTimeout: 5 * time.Second,
	}, logger)

	conn, err := connections.Connect(context.Background(), map[string]any{
		"type":     "sqlite",
		"database": testhelpers.NewStorefrontSQLite(t),
	})
	require.NoError(t, err)

	mcpServer := server.NewMCPServer("test", "1.0.0", server.WithToolCapabilities(true))
	RegisterCanvasTools(mcpServer, &CanvasToolDeps{
		Queries:     queries,
		Connections: connections,
		Logger:      logger,
	})

	return &toolFixture{mcp: mcpServer, connections: connections, connectionID: conn.ID}
}

type toolCallResponse struct {
	Result struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
		IsError bool `json:"isError"`
	} `json:"result"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// callTool invokes a tool through the JSON-RPC entry point and returns the
// text content and whether the result was flagged as an error.
func callTool(t *testing.T, s *server.MCPServer, name string, args map[string]any) (string, bool) {
	t.Helper()

	request, err := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "tools/call",
		"params":  map[string]any{"name": name, "arguments": args},
	})
	require.NoError(t, err)

	resultBytes, err := json.Marshal(s.HandleMessage(context.Background(), request))
	require.NoError(t, err)

	var response toolCallResponse
	require.NoError(t, json.Unmarshal(resultBytes, &response))
	require.Nil(t, response.Error, string(resultBytes))
	require.NotEmpty(t, response.Result.Content, string(resultBytes))
	return response.Result.Content[0].Text, response.Result.IsError
}

func decodeErrorResult(t *testing.T, text string) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal([]byte(text), &resp))
	return resp
}
