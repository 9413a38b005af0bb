package datasource

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-canvas/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-canvas/pkg/logging"
	"github.com/ekaya-inc/ekaya-canvas/pkg/retry"
)

const (
	DefaultConnectionTTLMinutes = 30
	DefaultCleanupInterval      = 1 * time.Minute
	DefaultMaxConnections       = 50
	DefaultPoolMaxConns         = 10
	DefaultHealthCheckTimeout   = 5 * time.Second
)

// ConnectionManagerConfig holds configuration for the connection manager
type ConnectionManagerConfig struct {
	TTLMinutes     int
	MaxConnections int
	PoolMaxConns   int32
	PoolMinConns   int32
}

// OpenFunc opens a fresh pool for a connection. It is kept with the managed
// connection so an unhealthy or expired pool can be reopened transparently.
type OpenFunc func(ctx context.Context) (PoolConnector, error)

// ConnectionManager owns one pool per canvas connection id, with TTL-based
// expiry and a health check before every reuse.
type ConnectionManager struct {
	mu             sync.RWMutex
	connections    map[string]*ManagedConnection // key: connection id
	ttl            time.Duration
	maxConnections int
	poolMaxConns   int32
	poolMinConns   int32
	stopped        bool
	stopChan       chan struct{}
	retryConfig    *retry.Config
	logger         *zap.Logger
}

// ManagedConnection represents a pooled connection and when it was last used.
type ManagedConnection struct {
	connector PoolConnector
	lastUsed  time.Time
	mu        sync.Mutex // Per-connection mutex to serialize health checks
}

// NewConnectionManager creates a connection manager with the given configuration.
// Starts a background cleanup goroutine that runs until Close() is called.
func NewConnectionManager(cfg ConnectionManagerConfig, logger *zap.Logger) *ConnectionManager {
	if cfg.TTLMinutes <= 0 {
		cfg.TTLMinutes = DefaultConnectionTTLMinutes
	}
	if cfg.MaxConnections <= 0 {
		cfg.MaxConnections = DefaultMaxConnections
	}
	if cfg.PoolMaxConns <= 0 {
		cfg.PoolMaxConns = DefaultPoolMaxConns
	}
	if cfg.PoolMinConns < 0 {
		cfg.PoolMinConns = 0
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	manager := &ConnectionManager{
		connections:    make(map[string]*ManagedConnection),
		ttl:            time.Duration(cfg.TTLMinutes) * time.Minute,
		maxConnections: cfg.MaxConnections,
		poolMaxConns:   cfg.PoolMaxConns,
		poolMinConns:   cfg.PoolMinConns,
		stopChan:       make(chan struct{}),
		retryConfig:    retry.DefaultConfig(),
		logger:         logger.Named("connections"),
	}

	go manager.cleanupExpiredConnections()
	return manager
}

// PoolSettings returns the per-pool sizing adapters apply when opening a pool.
func (m *ConnectionManager) PoolSettings() ConnectionManagerConfig {
	return ConnectionManagerConfig{
		TTLMinutes:     int(m.ttl.Minutes()),
		MaxConnections: m.maxConnections,
		PoolMaxConns:   m.poolMaxConns,
		PoolMinConns:   m.poolMinConns,
	}
}

// GetOrCreateConnection returns the pool registered under connectionID, opening
// it with open when absent or unhealthy.
// Returns apperrors.ErrTooManyConnections when the manager is full.
func (m *ConnectionManager) GetOrCreateConnection(ctx context.Context, connectionID string, open OpenFunc) (PoolConnector, error) {
	// Try existing connection with read lock (fast path)
	m.mu.RLock()
	managed, exists := m.connections[connectionID]
	m.mu.RUnlock()

	if exists {
		managed.mu.Lock()

		healthCtx, cancel := context.WithTimeout(ctx, DefaultHealthCheckTimeout)
		err := retry.Do(healthCtx, m.retryConfig, func() error {
			return managed.connector.Ping(healthCtx)
		})
		cancel()

		if err != nil {
			m.logger.Warn("connection unhealthy, recreating",
				zap.String("connection_id", connectionID),
				zap.String("error", logging.SanitizeError(err)),
			)
			managed.mu.Unlock() // Unlock before calling RemoveConnection
			m.RemoveConnection(connectionID)
			return m.createConnection(ctx, connectionID, open)
		}

		managed.lastUsed = time.Now()
		managed.mu.Unlock()
		return managed.connector, nil
	}

	return m.createConnection(ctx, connectionID, open)
}

// createConnection opens a pool with retry logic.
// Caller must NOT hold any locks (this method acquires write lock).
func (m *ConnectionManager) createConnection(ctx context.Context, connectionID string, open OpenFunc) (PoolConnector, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopped {
		return nil, fmt.Errorf("connection manager is closed")
	}

	// Double-check after acquiring write lock (another goroutine may have created it)
	if managed, exists := m.connections[connectionID]; exists && managed != nil {
		managed.mu.Lock()
		defer managed.mu.Unlock()
		managed.lastUsed = time.Now()
		return managed.connector, nil
	}

	if len(m.connections) >= m.maxConnections {
		m.logger.Warn("reached max connections limit",
			zap.Int("current", len(m.connections)),
			zap.Int("max", m.maxConnections),
		)
		return nil, fmt.Errorf("%w (%d)", apperrors.ErrTooManyConnections, m.maxConnections)
	}

	connector, err := retry.DoWithResult(ctx, m.retryConfig, func() (PoolConnector, error) {
		return open(ctx)
	})
	if err != nil {
		m.logger.Error("failed to open connection after retries",
			zap.String("connection_id", connectionID),
			zap.String("error", logging.SanitizeError(err)),
		)
		return nil, err
	}

	m.connections[connectionID] = &ManagedConnection{
		connector: connector,
		lastUsed:  time.Now(),
	}

	m.logger.Info("opened connection pool",
		zap.String("connection_id", connectionID),
		zap.String("type", connector.GetType()),
		zap.Int("total_connections", len(m.connections)),
	)

	return connector, nil
}

// HasConnection reports whether a pool is currently open for connectionID.
func (m *ConnectionManager) HasConnection(connectionID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.connections[connectionID]
	return ok
}

// RemoveConnection closes and forgets the pool for connectionID.
// Caller must NOT hold m.mu lock (this method acquires write lock).
func (m *ConnectionManager) RemoveConnection(connectionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if managed, exists := m.connections[connectionID]; exists && managed != nil {
		m.closeConnector(connectionID, managed.connector)
		delete(m.connections, connectionID)
		m.logger.Debug("removed connection", zap.String("connection_id", connectionID))
	}
}

func (m *ConnectionManager) closeConnector(connectionID string, connector PoolConnector) {
	if connector == nil {
		return
	}
	if err := connector.Close(); err != nil {
		m.logger.Warn("failed to close connection pool",
			zap.String("connection_id", connectionID),
			zap.String("error", logging.SanitizeError(err)),
		)
	}
}

// cleanupExpiredConnections runs periodically to remove expired connections.
// Runs in a background goroutine until stopChan is closed.
func (m *ConnectionManager) cleanupExpiredConnections() {
	ticker := time.NewTicker(DefaultCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.performCleanup()
		case <-m.stopChan:
			return
		}
	}
}

// performCleanup removes connections that haven't been used within TTL.
// Uses lock ordering: manager lock then connection lock.
func (m *ConnectionManager) performCleanup() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopped {
		return
	}

	now := time.Now()
	var expired []string

	for id, managed := range m.connections {
		if managed == nil {
			continue
		}
		managed.mu.Lock()
		idleTime := now.Sub(managed.lastUsed)
		managed.mu.Unlock()

		if idleTime > m.ttl {
			expired = append(expired, id)
			m.logger.Debug("marking connection for cleanup",
				zap.String("connection_id", id),
				zap.Duration("idle_time", idleTime),
				zap.Duration("ttl", m.ttl),
			)
		}
	}

	for _, id := range expired {
		m.closeConnector(id, m.connections[id].connector)
		delete(m.connections, id)
	}

	if len(expired) > 0 {
		m.logger.Info("cleaned up expired connections",
			zap.Int("count", len(expired)),
			zap.Int("remaining", len(m.connections)),
		)
	}
}

// Close closes all connections in the manager and stops the cleanup goroutine.
// This method is idempotent and safe to call multiple times.
func (m *ConnectionManager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopped {
		return nil
	}

	m.stopped = true
	close(m.stopChan)

	for id, managed := range m.connections {
		if managed != nil {
			m.closeConnector(id, managed.connector)
		}
	}

	m.connections = make(map[string]*ManagedConnection)
	m.logger.Info("connection manager closed")
	return nil
}

// GetStats returns statistics about the connection manager.
// Safe to call concurrently.
func (m *ConnectionManager) GetStats() ConnectionStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	now := time.Now()
	stats := ConnectionStats{
		TotalConnections:  len(m.connections),
		MaxConnections:    m.maxConnections,
		TTLMinutes:        int(m.ttl.Minutes()),
		ConnectionsByType: make(map[string]int),
	}

	for _, managed := range m.connections {
		if managed == nil {
			continue
		}
		stats.ConnectionsByType[managed.connector.GetType()]++

		managed.mu.Lock()
		idleSeconds := int(now.Sub(managed.lastUsed).Seconds())
		managed.mu.Unlock()
		if idleSeconds > stats.OldestIdleSeconds {
			stats.OldestIdleSeconds = idleSeconds
		}
	}

	return stats
}

// ConnectionStats contains statistics about the connection manager state.
type ConnectionStats struct {
	TotalConnections  int            `json:"total_connections"`
	MaxConnections    int            `json:"max_connections"`
	TTLMinutes        int            `json:"ttl_minutes"`
	ConnectionsByType map[string]int `json:"connections_by_type"`
	OldestIdleSeconds int            `json:"oldest_idle_seconds"`
}
