package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-canvas/pkg/auth"
	"github.com/ekaya-inc/ekaya-canvas/pkg/models"
	"github.com/ekaya-inc/ekaya-canvas/pkg/services"
)

// CanvasToolDeps contains dependencies for the query builder tools.
type CanvasToolDeps struct {
	Queries     services.QueryService
	Connections services.ConnectionService
	Logger      *zap.Logger
}

// RegisterCanvasTools registers SQL generation, validation, schema and
// execution tools. Every tool is read-only.
func RegisterCanvasTools(s *server.MCPServer, deps *CanvasToolDeps) {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	registerGenerateSQLTool(s, deps)
	registerValidateSQLTool(s, deps)
	registerListConnectionsTool(s, deps)
	registerGetSchemaTool(s, deps)
	registerSuggestJoinsTool(s, deps)
	registerExecuteSQLTool(s, deps)
}

func readOnly() []mcp.ToolOption {
	return []mcp.ToolOption{
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
	}
}

func newReadOnlyTool(name string, opts ...mcp.ToolOption) mcp.Tool {
	return mcp.NewTool(name, append(opts, readOnly()...)...)
}

// decodeGraph converts the loosely typed graph argument into a QueryGraph.
func decodeGraph(arg any) (models.QueryGraph, error) {
	var graph models.QueryGraph
	if arg == nil {
		return graph, fmt.Errorf("graph is required")
	}
	raw, err := json.Marshal(arg)
	if err != nil {
		return graph, fmt.Errorf("graph is not valid JSON: %w", err)
	}
	if err := json.Unmarshal(raw, &graph); err != nil {
		return graph, fmt.Errorf("graph does not match the canvas format: %w", err)
	}
	return graph, nil
}

func registerGenerateSQLTool(s *server.MCPServer, deps *CanvasToolDeps) {
	tool := newReadOnlyTool(
		"generate_sql",
		mcp.WithDescription(
			"Generate a SELECT statement from a query builder graph. "+
				"The graph has nodes (tables with optional alias and columns), edges (joins between node ids) "+
				"and clauses (filters, groupBy, having, orderBy). Clause values are interpolated without escaping. "+
				"Returns the SQL, the alias chosen for each table and any warnings.",
		),
		mcp.WithObject(
			"graph",
			mcp.Required(),
			mcp.Description(`Query graph, e.g. {"nodes":[{"id":"orders","columns":["id"]}],"edges":[],"clauses":{}}`),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		graph, err := decodeGraph(req.GetArguments()["graph"])
		if err != nil {
			return NewErrorResult("invalid_graph", err.Error()), nil
		}

		result, err := deps.Queries.Generate(ctx, graph)
		if err != nil {
			return errorResult(err), nil
		}
		return jsonResult(result)
	})
}

type validateSQLResult struct {
	Valid   bool   `json:"valid"`
	Query   string `json:"query,omitempty"`
	Message string `json:"message,omitempty"`
}

func registerValidateSQLTool(s *server.MCPServer, deps *CanvasToolDeps) {
	tool := newReadOnlyTool(
		"validate_sql",
		mcp.WithDescription(
			"Check whether a statement would be allowed by execute_sql: a single SELECT with no "+
				"DROP, DELETE, INSERT, UPDATE, ALTER, CREATE or TRUNCATE anywhere in the text. "+
				"Returns the normalized statement when valid.",
		),
		mcp.WithString("sql", mcp.Required(), mcp.Description("SQL statement to check")),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sqlQuery, err := req.RequireString("sql")
		if err != nil {
			return NewErrorResult("invalid_parameters", err.Error()), nil
		}

		normalized, err := deps.Queries.Validate(ctx, sqlQuery)
		if err != nil {
			return jsonResult(validateSQLResult{Valid: false, Message: err.Error()})
		}
		return jsonResult(validateSQLResult{Valid: true, Query: normalized})
	})
}

type listConnectionsResult struct {
	Connections []*models.Connection `json:"connections"`
}

func registerListConnectionsTool(s *server.MCPServer, deps *CanvasToolDeps) {
	tool := newReadOnlyTool(
		"list_connections",
		mcp.WithDescription("List the registered database connections. Use a connection id with get_schema and execute_sql."),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return jsonResult(listConnectionsResult{Connections: deps.Connections.List()})
	})
}

func registerGetSchemaTool(s *server.MCPServer, deps *CanvasToolDeps) {
	tool := newReadOnlyTool(
		"get_schema",
		mcp.WithDescription("Return the tables, columns and foreign key relationships of a connected database."),
		mcp.WithString("connection_id", mcp.Required(), mcp.Description("Connection id from list_connections")),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("connection_id")
		if err != nil {
			return NewErrorResult("invalid_parameters", err.Error()), nil
		}

		schema, err := deps.Connections.GetSchema(ctx, id)
		if err != nil {
			return errorResult(err), nil
		}
		return jsonResult(schema)
	})
}

type suggestJoinsResult struct {
	Suggestions []models.JoinSuggestion `json:"suggestions"`
}

func registerSuggestJoinsTool(s *server.MCPServer, deps *CanvasToolDeps) {
	tool := newReadOnlyTool(
		"suggest_joins",
		mcp.WithDescription(
			"Propose join edges between tables, from declared foreign keys first and then "+
				"columns named after another table (customer_id -> customers.id).",
		),
		mcp.WithString("connection_id", mcp.Required(), mcp.Description("Connection id from list_connections")),
		mcp.WithArray("tables", mcp.WithStringItems(), mcp.Description("Tables on the canvas; all tables when omitted")),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("connection_id")
		if err != nil {
			return NewErrorResult("invalid_parameters", err.Error()), nil
		}

		suggestions, err := deps.Connections.SuggestJoins(ctx, id, req.GetStringSlice("tables", nil))
		if err != nil {
			return errorResult(err), nil
		}
		if suggestions == nil {
			suggestions = []models.JoinSuggestion{}
		}
		return jsonResult(suggestJoinsResult{Suggestions: suggestions})
	})
}

func registerExecuteSQLTool(s *server.MCPServer, deps *CanvasToolDeps) {
	tool := newReadOnlyTool(
		"execute_sql",
		mcp.WithDescription(
			"Run a read-only SELECT against a connection and return columns and rows. "+
				"A LIMIT is added when the statement has none; limit is capped by the server's max_rows.",
		),
		mcp.WithString("connection_id", mcp.Required(), mcp.Description("Connection id from list_connections")),
		mcp.WithString("sql", mcp.Required(), mcp.Description("SELECT statement to run")),
		mcp.WithNumber("limit", mcp.Description("Maximum rows to return (default: server default_row_limit)")),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("connection_id")
		if err != nil {
			return NewErrorResult("invalid_parameters", err.Error()), nil
		}
		sqlQuery, err := req.RequireString("sql")
		if err != nil {
			return NewErrorResult("invalid_parameters", err.Error()), nil
		}
		limit := req.GetInt("limit", 0)

		result, err := deps.Queries.Execute(ctx, id, sqlQuery, limit)
		if err != nil {
			deps.Logger.Debug("execute_sql failed",
				zap.String("connection_id", id),
				zap.String("subject", auth.SubjectFromContext(ctx)),
				zap.Error(err))
			return errorResult(err), nil
		}
		return jsonResult(result)
	})
}
