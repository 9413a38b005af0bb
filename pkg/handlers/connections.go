package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-canvas/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-canvas/pkg/auth"
	"github.com/ekaya-inc/ekaya-canvas/pkg/models"
	"github.com/ekaya-inc/ekaya-canvas/pkg/services"
)

// ListAdaptersResponse lists the datasource types a connection may use.
type ListAdaptersResponse struct {
	Adapters []datasource.DatasourceAdapterInfo `json:"adapters"`
}

// ListDatabasesResponse lists the databases visible to a connection config.
type ListDatabasesResponse struct {
	Databases []string `json:"databases"`
}

// ListConnectionsResponse wraps the registered connections.
type ListConnectionsResponse struct {
	Connections []*models.Connection `json:"connections"`
}

// SuggestJoinsRequest names the tables on the canvas.
type SuggestJoinsRequest struct {
	Tables []string `json:"tables"`
}

// SuggestJoinsResponse wraps the proposed join edges.
type SuggestJoinsResponse struct {
	Suggestions []models.JoinSuggestion `json:"suggestions"`
}

// ConnectionsHandler serves connection management and schema endpoints.
type ConnectionsHandler struct {
	connections  services.ConnectionService
	sessions     *auth.SessionStore
	maxBodyBytes int64
	logger       *zap.Logger
}

// NewConnectionsHandler creates a connections handler. sessions may be nil,
// in which case the legacy session routes always report no active connection.
func NewConnectionsHandler(connections services.ConnectionService, sessions *auth.SessionStore, maxBodyBytes int64, logger *zap.Logger) *ConnectionsHandler {
	return &ConnectionsHandler{
		connections:  connections,
		sessions:     sessions,
		maxBodyBytes: maxBodyBytes,
		logger:       logger,
	}
}

// RegisterRoutes registers the connection routes on the given mux.
func (h *ConnectionsHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware) {
	mux.HandleFunc("GET /api/adapters", authMiddleware.RequireAuth(h.ListAdapters))
	mux.HandleFunc("POST /api/databases", authMiddleware.RequireAuth(h.ListDatabases))
	mux.HandleFunc("POST /api/connect", authMiddleware.RequireAuth(h.Connect))
	mux.HandleFunc("GET /api/connections", authMiddleware.RequireAuth(h.List))
	mux.HandleFunc("DELETE /api/connections/{cid}", authMiddleware.RequireAuth(h.Disconnect))
	mux.HandleFunc("GET /api/connections/{cid}/schema", authMiddleware.RequireAuth(h.GetSchema))
	mux.HandleFunc("POST /api/connections/{cid}/suggest-joins", authMiddleware.RequireAuth(h.SuggestJoins))
	mux.HandleFunc("GET /api/schema", authMiddleware.RequireAuth(h.GetSessionSchema))
}

// ListAdapters handles GET /api/adapters
func (h *ConnectionsHandler) ListAdapters(w http.ResponseWriter, r *http.Request) {
	writeSuccess(w, http.StatusOK, ListAdaptersResponse{Adapters: h.connections.ListTypes()}, h.logger)
}

// ListDatabases handles POST /api/databases
// The body is a connection config; the database field may be omitted.
func (h *ConnectionsHandler) ListDatabases(w http.ResponseWriter, r *http.Request) {
	var config map[string]any
	if !decodeJSON(w, r, h.maxBodyBytes, &config, h.logger) {
		return
	}

	databases, err := h.connections.ListDatabases(r.Context(), config)
	if err != nil {
		writeServiceError(w, r, err, h.logger)
		return
	}

	writeSuccess(w, http.StatusOK, ListDatabasesResponse{Databases: databases}, h.logger)
}

// Connect handles POST /api/connect
// Registers the connection and makes it the session's active connection.
func (h *ConnectionsHandler) Connect(w http.ResponseWriter, r *http.Request) {
	var config map[string]any
	if !decodeJSON(w, r, h.maxBodyBytes, &config, h.logger) {
		return
	}

	conn, err := h.connections.Connect(r.Context(), config)
	if err != nil {
		writeServiceError(w, r, err, h.logger)
		return
	}

	if h.sessions != nil {
		if err := h.sessions.SetConnectionID(w, r, conn.ID); err != nil {
			h.logger.Warn("Failed to save session", zap.String("connection_id", conn.ID), zap.Error(err))
		}
	}

	writeSuccess(w, http.StatusCreated, conn, h.logger)
}

// List handles GET /api/connections
func (h *ConnectionsHandler) List(w http.ResponseWriter, r *http.Request) {
	writeSuccess(w, http.StatusOK, ListConnectionsResponse{Connections: h.connections.List()}, h.logger)
}

// Disconnect handles DELETE /api/connections/{cid}
func (h *ConnectionsHandler) Disconnect(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("cid")
	if err := h.connections.Disconnect(r.Context(), id); err != nil {
		writeServiceError(w, r, err, h.logger)
		return
	}

	if h.sessions != nil {
		if err := h.sessions.ClearConnectionID(w, r, id); err != nil {
			h.logger.Warn("Failed to clear session", zap.String("connection_id", id), zap.Error(err))
		}
	}

	writeSuccess(w, http.StatusOK, nil, h.logger)
}

// GetSchema handles GET /api/connections/{cid}/schema
func (h *ConnectionsHandler) GetSchema(w http.ResponseWriter, r *http.Request) {
	h.writeSchema(w, r, r.PathValue("cid"))
}

// GetSessionSchema handles GET /api/schema
// Uses the connection most recently registered through this session.
func (h *ConnectionsHandler) GetSessionSchema(w http.ResponseWriter, r *http.Request) {
	id, err := sessionConnectionID(h.sessions, r)
	if err != nil {
		writeServiceError(w, r, err, h.logger)
		return
	}
	h.writeSchema(w, r, id)
}

func (h *ConnectionsHandler) writeSchema(w http.ResponseWriter, r *http.Request, id string) {
	schema, err := h.connections.GetSchema(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err, h.logger)
		return
	}
	writeSuccess(w, http.StatusOK, schema, h.logger)
}

// SuggestJoins handles POST /api/connections/{cid}/suggest-joins
func (h *ConnectionsHandler) SuggestJoins(w http.ResponseWriter, r *http.Request) {
	var req SuggestJoinsRequest
	if !decodeJSON(w, r, h.maxBodyBytes, &req, h.logger) {
		return
	}
	if len(req.Tables) < 2 {
		writeError(w, http.StatusBadRequest, "invalid_request", "At least two tables are required", h.logger)
		return
	}

	suggestions, err := h.connections.SuggestJoins(r.Context(), r.PathValue("cid"), req.Tables)
	if err != nil {
		writeServiceError(w, r, err, h.logger)
		return
	}
	if suggestions == nil {
		suggestions = []models.JoinSuggestion{}
	}

	writeSuccess(w, http.StatusOK, SuggestJoinsResponse{Suggestions: suggestions}, h.logger)
}

func sessionConnectionID(sessions *auth.SessionStore, r *http.Request) (string, error) {
	if sessions == nil {
		return "", auth.ErrNoActiveConnection
	}
	return sessions.ConnectionID(r)
}
