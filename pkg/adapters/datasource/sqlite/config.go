package sqlite

import (
	"fmt"

	"github.com/ekaya-inc/ekaya-canvas/pkg/adapters/datasource"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// Config contains SQLite connection options.
type Config struct {
	// Path is the database file, or ":memory:".
	Path string
}

// FromMap creates a Config from a generic config map. The path may be given
// as "database", "filename" or "path".
func FromMap(config map[string]any) (*Config, error) {
	cfg := &Config{
		Path: datasource.StringParam(config, "database", "filename", "path"),
	}
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}
	return cfg, nil
}
