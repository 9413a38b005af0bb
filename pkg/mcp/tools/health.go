package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/ekaya-inc/ekaya-canvas/pkg/services"
)

type healthResult struct {
	Status      string `json:"status"`
	Version     string `json:"version"`
	Connections int    `json:"connections"`
}

// RegisterHealthTool adds a health check tool reporting the server version
// and how many connections are registered. connections may be nil.
func RegisterHealthTool(s *server.MCPServer, version string, connections services.ConnectionService) {
	tool := newReadOnlyTool(
		"health",
		mcp.WithDescription("Returns server health status and version"),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		result := healthResult{Status: "ok", Version: version}
		if connections != nil {
			result.Connections = len(connections.List())
		}
		return jsonResult(result)
	})
}
