package handlers

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-canvas/pkg/auth"
	"github.com/ekaya-inc/ekaya-canvas/pkg/models"
	"github.com/ekaya-inc/ekaya-canvas/pkg/services"
)

// GenerateRequest is a canvas graph. Clauses may be sent either nested under
// "clauses" or as top-level arrays; the nested form wins when both are set.
type GenerateRequest struct {
	Nodes   []models.TableNode     `json:"nodes"`
	Edges   []models.JoinEdge      `json:"edges"`
	Clauses *models.ClauseSet      `json:"clauses,omitempty"`
	Filters []models.FilterClause  `json:"filters,omitempty"`
	GroupBy []models.GroupByClause `json:"groupBy,omitempty"`
	Having  []models.HavingClause  `json:"having,omitempty"`
	OrderBy []models.OrderByClause `json:"orderBy,omitempty"`
}

// Graph assembles the request into a QueryGraph.
func (req GenerateRequest) Graph() models.QueryGraph {
	graph := models.QueryGraph{Nodes: req.Nodes, Edges: req.Edges}
	if req.Clauses != nil {
		graph.Clauses = *req.Clauses
		return graph
	}
	graph.Clauses = models.ClauseSet{
		Filters: req.Filters,
		GroupBy: req.GroupBy,
		Having:  req.Having,
		OrderBy: req.OrderBy,
	}
	return graph
}

// ValidateRequest carries a statement to check.
type ValidateRequest struct {
	Query string `json:"query"`
}

// ValidateResponse reports the outcome of the read-only guard.
type ValidateResponse struct {
	Valid   bool   `json:"valid"`
	Query   string `json:"query,omitempty"`
	Message string `json:"message,omitempty"`
}

// ExecuteRequest carries a statement and an optional row limit.
type ExecuteRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit,omitempty"`
}

// QueriesHandler serves SQL generation, validation and execution.
type QueriesHandler struct {
	queries      services.QueryService
	sessions     *auth.SessionStore
	maxBodyBytes int64
	logger       *zap.Logger
}

// NewQueriesHandler creates a new queries handler.
func NewQueriesHandler(queries services.QueryService, sessions *auth.SessionStore, maxBodyBytes int64, logger *zap.Logger) *QueriesHandler {
	return &QueriesHandler{
		queries:      queries,
		sessions:     sessions,
		maxBodyBytes: maxBodyBytes,
		logger:       logger,
	}
}

// RegisterRoutes registers the query routes on the given mux.
func (h *QueriesHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware) {
	mux.HandleFunc("POST /api/generate", authMiddleware.RequireAuth(h.Generate))
	mux.HandleFunc("POST /api/validate", authMiddleware.RequireAuth(h.Validate))
	mux.HandleFunc("POST /api/connections/{cid}/execute", authMiddleware.RequireAuth(h.Execute))
	mux.HandleFunc("POST /api/execute", authMiddleware.RequireAuth(h.ExecuteSession))
}

// Generate handles POST /api/generate
func (h *QueriesHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var req GenerateRequest
	if !decodeJSON(w, r, h.maxBodyBytes, &req, h.logger) {
		return
	}

	result, err := h.queries.Generate(r.Context(), req.Graph())
	if err != nil {
		status, code := classifyError(err)
		if status == http.StatusBadGateway {
			h.logger.Error("Failed to generate query", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "generate_failed", "Failed to generate query", h.logger)
			return
		}
		writeError(w, status, code, err.Error(), h.logger)
		return
	}

	writeSuccess(w, http.StatusOK, result, h.logger)
}

// Validate handles POST /api/validate
// A rejected statement is a successful validation with Valid false.
func (h *QueriesHandler) Validate(w http.ResponseWriter, r *http.Request) {
	var req ValidateRequest
	if !decodeJSON(w, r, h.maxBodyBytes, &req, h.logger) {
		return
	}

	normalized, err := h.queries.Validate(r.Context(), req.Query)
	if err != nil {
		writeSuccess(w, http.StatusOK, ValidateResponse{Valid: false, Message: err.Error()}, h.logger)
		return
	}

	writeSuccess(w, http.StatusOK, ValidateResponse{Valid: true, Query: normalized}, h.logger)
}

// Execute handles POST /api/connections/{cid}/execute
func (h *QueriesHandler) Execute(w http.ResponseWriter, r *http.Request) {
	h.execute(w, r, r.PathValue("cid"))
}

// ExecuteSession handles POST /api/execute
// Runs against the session's active connection.
func (h *QueriesHandler) ExecuteSession(w http.ResponseWriter, r *http.Request) {
	id, err := sessionConnectionID(h.sessions, r)
	if err != nil {
		writeServiceError(w, r, err, h.logger)
		return
	}
	h.execute(w, r, id)
}

func (h *QueriesHandler) execute(w http.ResponseWriter, r *http.Request, connectionID string) {
	var req ExecuteRequest
	if !decodeJSON(w, r, h.maxBodyBytes, &req, h.logger) {
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "Query is required", h.logger)
		return
	}

	result, err := h.queries.Execute(r.Context(), connectionID, req.Query, req.Limit)
	if err != nil {
		writeServiceError(w, r, err, h.logger)
		return
	}

	writeSuccess(w, http.StatusOK, result, h.logger)
}
