package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-canvas/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-canvas/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-canvas/pkg/crypto"
	"github.com/ekaya-inc/ekaya-canvas/pkg/logging"
	"github.com/ekaya-inc/ekaya-canvas/pkg/models"
	"github.com/ekaya-inc/ekaya-canvas/pkg/querybuilder"
)

// ConnectionService manages the datasource connections a canvas works against.
type ConnectionService interface {
	// ListTypes returns the registered adapter types.
	ListTypes() []datasource.DatasourceAdapterInfo

	// ListDatabases opens a temporary connection and lists the server's databases.
	ListDatabases(ctx context.Context, config map[string]any) ([]string, error)

	// Connect validates and tests a config, then registers it under a new id.
	Connect(ctx context.Context, config map[string]any) (*models.Connection, error)

	// Disconnect forgets a connection and closes its pool.
	Disconnect(ctx context.Context, id string) error

	Get(id string) (*models.Connection, error)
	List() []*models.Connection

	// GetSchema introspects the connected database.
	GetSchema(ctx context.Context, id string) (*models.Schema, error)

	// SuggestJoins proposes join edges between tables on the canvas.
	SuggestJoins(ctx context.Context, id string, tables []string) ([]models.JoinSuggestion, error)

	// Open returns an adapter backed by the connection's shared pool.
	// Callers must Close it.
	Open(ctx context.Context, id string) (datasource.Adapter, error)
}

type registeredConnection struct {
	info      models.Connection
	config    map[string]any // secrets sealed
	createdAt time.Time
}

type connectionService struct {
	factory        datasource.DatasourceAdapterFactory
	connMgr        *datasource.ConnectionManager
	sealer         *crypto.Sealer
	connectTimeout time.Duration
	logger         *zap.Logger

	mu          sync.RWMutex
	connections map[string]*registeredConnection
}

// NewConnectionService creates a connection service. connMgr may be nil in
// tests that never call Disconnect on a live pool.
func NewConnectionService(
	factory datasource.DatasourceAdapterFactory,
	connMgr *datasource.ConnectionManager,
	sealer *crypto.Sealer,
	connectTimeout time.Duration,
	logger *zap.Logger,
) ConnectionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &connectionService{
		factory:        factory,
		connMgr:        connMgr,
		sealer:         sealer,
		connectTimeout: connectTimeout,
		logger:         logger.Named("connections"),
		connections:    make(map[string]*registeredConnection),
	}
}

func (s *connectionService) ListTypes() []datasource.DatasourceAdapterInfo {
	return s.factory.ListTypes()
}

func (s *connectionService) withConnectTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.connectTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.connectTimeout)
}

// ListDatabases connects without a database; each adapter falls back to its
// server's default database for the listing.
func (s *connectionService) ListDatabases(ctx context.Context, config map[string]any) ([]string, error) {
	normalized, err := datasource.NormalizeConnectionConfig(config, datasource.ValidateOptions{DatabaseOptional: true})
	if err != nil {
		return nil, err
	}

	ctx, cancel := s.withConnectTimeout(ctx)
	defer cancel()

	adapter, err := s.factory.NewAdapter(ctx, normalized, "")
	if err != nil {
		s.logger.Warn("Failed to open temporary connection",
			zap.String("type", datasource.StringParam(normalized, "type")),
			zap.String("error", logging.SanitizeError(err)))
		return nil, fmt.Errorf("failed to connect: %w", err)
	}
	defer adapter.Close()

	databases, err := adapter.ListDatabases(ctx)
	if err != nil {
		return nil, err
	}
	return databases, nil
}

func (s *connectionService) Connect(ctx context.Context, config map[string]any) (*models.Connection, error) {
	normalized, err := datasource.NormalizeConnectionConfig(config, datasource.ValidateOptions{})
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()

	ctx, cancel := s.withConnectTimeout(ctx)
	defer cancel()

	adapter, err := s.factory.NewAdapter(ctx, normalized, id)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}
	defer adapter.Close()

	if err := adapter.TestConnection(ctx); err != nil {
		s.dropPool(id)
		return nil, fmt.Errorf("connection test failed: %w", err)
	}

	sealed, err := s.sealer.SealConfig(normalized)
	if err != nil {
		s.dropPool(id)
		return nil, fmt.Errorf("failed to seal connection config: %w", err)
	}

	conn := connectionInfo(id, normalized)
	s.mu.Lock()
	s.connections[id] = &registeredConnection{info: conn, config: sealed, createdAt: time.Now()}
	s.mu.Unlock()

	s.logger.Info("Registered connection",
		zap.String("connection_id", id),
		zap.String("type", conn.Type),
		zap.String("host", conn.Host),
		zap.String("database", conn.Database))

	return &conn, nil
}

func (s *connectionService) Disconnect(ctx context.Context, id string) error {
	s.mu.Lock()
	_, ok := s.connections[id]
	delete(s.connections, id)
	s.mu.Unlock()

	if !ok {
		return apperrors.ErrConnectionNotFound
	}
	s.dropPool(id)

	s.logger.Info("Removed connection", zap.String("connection_id", id))
	return nil
}

func (s *connectionService) dropPool(id string) {
	if s.connMgr != nil {
		s.connMgr.RemoveConnection(id)
	}
}

func (s *connectionService) Get(id string) (*models.Connection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rc, ok := s.connections[id]
	if !ok {
		return nil, apperrors.ErrConnectionNotFound
	}
	conn := rc.info
	return &conn, nil
}

// List returns connections oldest first.
func (s *connectionService) List() []*models.Connection {
	s.mu.RLock()
	registered := make([]*registeredConnection, 0, len(s.connections))
	for _, rc := range s.connections {
		registered = append(registered, rc)
	}
	s.mu.RUnlock()

	sort.Slice(registered, func(i, j int) bool {
		if registered[i].createdAt.Equal(registered[j].createdAt) {
			return registered[i].info.ID < registered[j].info.ID
		}
		return registered[i].createdAt.Before(registered[j].createdAt)
	})

	out := make([]*models.Connection, len(registered))
	for i, rc := range registered {
		conn := rc.info
		out[i] = &conn
	}
	return out
}

func (s *connectionService) Open(ctx context.Context, id string) (datasource.Adapter, error) {
	s.mu.RLock()
	rc, ok := s.connections[id]
	s.mu.RUnlock()
	if !ok {
		return nil, apperrors.ErrConnectionNotFound
	}

	config, err := s.sealer.OpenConfig(rc.config)
	if err != nil {
		return nil, fmt.Errorf("failed to open connection config: %w", err)
	}

	adapter, err := s.factory.NewAdapter(ctx, config, id)
	if err != nil {
		return nil, fmt.Errorf("failed to open connection: %w", err)
	}
	return adapter, nil
}

func (s *connectionService) GetSchema(ctx context.Context, id string) (*models.Schema, error) {
	adapter, err := s.Open(ctx, id)
	if err != nil {
		return nil, err
	}
	defer adapter.Close()

	start := time.Now()
	schema, err := adapter.DiscoverSchema(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to discover schema: %w", err)
	}

	s.logger.Debug("Discovered schema",
		zap.String("connection_id", id),
		zap.Int("tables", len(schema.Tables)),
		zap.Int("relationships", len(schema.Relationships)),
		zap.Duration("elapsed", time.Since(start)))
	return schema, nil
}

func (s *connectionService) SuggestJoins(ctx context.Context, id string, tables []string) ([]models.JoinSuggestion, error) {
	schema, err := s.GetSchema(ctx, id)
	if err != nil {
		return nil, err
	}
	return querybuilder.SuggestJoins(schema, tables), nil
}

// connectionInfo builds the public view of a normalized config. Secrets are dropped.
func connectionInfo(id string, config map[string]any) models.Connection {
	port, _ := datasource.IntParam(config, "port")
	return models.Connection{
		ID:       id,
		Type:     datasource.StringParam(config, "type"),
		Host:     datasource.StringParam(config, "host"),
		Port:     port,
		Database: datasource.StringParam(config, "database", "name"),
		User:     datasource.StringParam(config, "user", "username"),
	}
}

var _ ConnectionService = (*connectionService)(nil)
