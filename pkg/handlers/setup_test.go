package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ekaya-inc/ekaya-canvas/pkg/adapters/datasource"
	_ "github.com/ekaya-inc/ekaya-canvas/pkg/adapters/datasource/postgres"
	_ "github.com/ekaya-inc/ekaya-canvas/pkg/adapters/datasource/sqlite"
	"github.com/ekaya-inc/ekaya-canvas/pkg/auth"
	"github.com/ekaya-inc/ekaya-canvas/pkg/config"
	"github.com/ekaya-inc/ekaya-canvas/pkg/crypto"
	"github.com/ekaya-inc/ekaya-canvas/pkg/services"
	"github.com/ekaya-inc/ekaya-canvas/pkg/testhelpers"
)

// testServer wires the real services over SQLite behind a mux.
type testServer struct {
	mux         *http.ServeMux
	connMgr     *datasource.ConnectionManager
	connections services.ConnectionService
	dbPath      string
}

func newTestServer(t *testing.T) *testServer {
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
	sessions := auth.NewSessionStore("test-secret", "http://localhost:3000")

	mux := http.NewServeMux()
	NewConnectionsHandler(connections, sessions, 1<<16, logger).RegisterRoutes(mux, nil)
	NewQueriesHandler(queries, sessions, 1<<16, logger).RegisterRoutes(mux, nil)

	return &testServer{
		mux:         mux,
		connMgr:     connMgr,
		connections: connections,
		dbPath:      testhelpers.NewStorefrontSQLite(t),
	}
}

// do sends body as JSON and returns the recorder.
func (s *testServer) do(t *testing.T, method, path string, body any, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) doRaw(t *testing.T, method, path string, body io.Reader) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)
	return rec
}

// connect registers the storefront database and returns its id and the
// session cookies set by the response.
func (s *testServer) connect(t *testing.T) (string, []*http.Cookie) {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/connect", map[string]any{"type": "sqlite", "database": s.dbPath})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Data.ID, rec.Result().Cookies()
}

// decodeData unmarshals the ApiResponse data field into dst.
func decodeData(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	var envelope struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	require.True(t, envelope.Success, rec.Body.String())
	require.NoError(t, json.Unmarshal(envelope.Data, dst))
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}
