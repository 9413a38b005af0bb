// Package mcp exposes the query builder operations as MCP tools over the
// streamable HTTP transport.
package mcp

import (
	"net/http"

	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-canvas/pkg/mcp/tools"
	"github.com/ekaya-inc/ekaya-canvas/pkg/services"
)

// Deps holds the services the MCP tools call into.
type Deps struct {
	Version     string
	Queries     services.QueryService
	Connections services.ConnectionService
}

// Server owns the mcp-go server and its registered tools.
type Server struct {
	mcp    *server.MCPServer
	logger *zap.Logger
}

// NewServer creates an MCP server with the health and canvas tools registered.
func NewServer(name string, deps Deps, logger *zap.Logger) *Server {
	mcpServer := server.NewMCPServer(
		name,
		deps.Version,
		server.WithToolCapabilities(true),
	)

	tools.RegisterHealthTool(mcpServer, deps.Version, deps.Connections)
	tools.RegisterCanvasTools(mcpServer, &tools.CanvasToolDeps{
		Queries:     deps.Queries,
		Connections: deps.Connections,
		Logger:      logger.Named("mcp"),
	})

	return &Server{
		mcp:    mcpServer,
		logger: logger,
	}
}

// MCP returns the underlying MCPServer.
func (s *Server) MCP() *server.MCPServer {
	return s.mcp
}

// Handler returns a stateless streamable HTTP handler. The caller's mux
// decides the mount path.
func (s *Server) Handler() http.Handler {
	return server.NewStreamableHTTPServer(
		s.mcp,
		server.WithStateLess(true),
	)
}
