package mysql

import (
	"fmt"

	"github.com/ekaya-inc/ekaya-canvas/pkg/adapters/datasource"
)

// Config contains MySQL-specific connection options.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	TLS      string // "", "true", "false", "skip-verify", "preferred"
}

// DefaultPort returns the default MySQL port.
func DefaultPort() int {
	return 3306
}

// SystemDatabase is used when no database is named, e.g. while listing databases.
const SystemDatabase = "mysql"

// FromMap creates a Config from a generic config map.
func FromMap(config map[string]any) (*Config, error) {
	cfg := &Config{
		Host:     datasource.StringParam(config, "host"),
		Port:     DefaultPort(),
		User:     datasource.StringParam(config, "user", "username"),
		Password: datasource.StringParam(config, "password"),
		Database: datasource.StringParam(config, "database", "name"),
		TLS:      datasource.StringParam(config, "tls"),
	}

	if cfg.Host == "" {
		return nil, fmt.Errorf("host is required")
	}
	if cfg.User == "" {
		return nil, fmt.Errorf("user is required")
	}
	if port, ok := datasource.IntParam(config, "port"); ok {
		cfg.Port = port
	}
	if cfg.Database == "" {
		cfg.Database = SystemDatabase
	}

	return cfg, nil
}
