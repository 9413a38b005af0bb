package datasource

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// DatasourceAdapterInfo describes a registered adapter for UI discovery.
type DatasourceAdapterInfo struct {
	Type        string   `json:"type"`         // "postgres", "mysql", "mssql", "sqlite"
	DisplayName string   `json:"display_name"` // "PostgreSQL", "Microsoft SQL Server"
	Description string   `json:"description"`  // "Connect to PostgreSQL 12+"
	Icon        string   `json:"icon"`         // Icon identifier for UI
	DefaultPort int      `json:"default_port,omitempty"`
	Aliases     []string `json:"aliases,omitempty"` // Alternative client names, e.g. "pg"
	// FileBased adapters take a path in "database" and need no host or credentials.
	FileBased bool `json:"file_based,omitempty"`
}

// AdapterFactory builds an adapter from a connection config map. When connMgr
// and connectionID are set the adapter borrows a managed pool and Close leaves it open.
type AdapterFactory func(ctx context.Context, config map[string]any, connMgr *ConnectionManager, connectionID string) (Adapter, error)

// DatasourceAdapterRegistration contains info + factory for creating adapters.
type DatasourceAdapterRegistration struct {
	Info    DatasourceAdapterInfo
	Factory AdapterFactory
}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]DatasourceAdapterRegistration)
	aliases    = make(map[string]string)
)

// Register is called by each adapter's init() function.
// Thread-safe for concurrent init() calls.
func Register(reg DatasourceAdapterRegistration) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[reg.Info.Type] = reg
	for _, alias := range reg.Info.Aliases {
		aliases[strings.ToLower(alias)] = reg.Info.Type
	}
}

// RegisteredAdapters returns info for all registered adapters, ordered by type.
func RegisteredAdapters() []DatasourceAdapterInfo {
	registryMu.RLock()
	defer registryMu.RUnlock()

	result := make([]DatasourceAdapterInfo, 0, len(registry))
	for _, reg := range registry {
		result = append(result, reg.Info)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Type < result[j].Type })
	return result
}

// CanonicalType resolves aliases ("pg", "mysql2") and case to a registered type.
// The second result is false when nothing matches.
func CanonicalType(dsType string) (string, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return canonicalTypeLocked(dsType)
}

func canonicalTypeLocked(dsType string) (string, bool) {
	t := strings.ToLower(strings.TrimSpace(dsType))
	if _, ok := registry[t]; ok {
		return t, true
	}
	if target, ok := aliases[t]; ok {
		return target, true
	}
	return "", false
}

// GetFactory returns the factory for a datasource type or alias.
// Returns nil if type is not registered.
func GetFactory(dsType string) AdapterFactory {
	registryMu.RLock()
	defer registryMu.RUnlock()

	if t, ok := canonicalTypeLocked(dsType); ok {
		return registry[t].Factory
	}
	return nil
}

// GetInfo returns the registration info for a datasource type or alias.
func GetInfo(dsType string) (DatasourceAdapterInfo, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	if t, ok := canonicalTypeLocked(dsType); ok {
		return registry[t].Info, true
	}
	return DatasourceAdapterInfo{}, false
}

// IsRegistered checks if an adapter type is available.
func IsRegistered(dsType string) bool {
	_, ok := CanonicalType(dsType)
	return ok
}
