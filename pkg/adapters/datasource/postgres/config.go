package postgres

import (
	"fmt"

	"github.com/ekaya-inc/ekaya-canvas/pkg/adapters/datasource"
)

// Config contains PostgreSQL-specific connection options.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string // "disable", "prefer", "require", "verify-ca", "verify-full"
}

// DefaultPort returns the default PostgreSQL port.
func DefaultPort() int {
	return 5432
}

// DefaultSSLMode returns the default SSL mode.
func DefaultSSLMode() string {
	return "prefer"
}

// MaintenanceDatabase is used when no database is named, e.g. while listing databases.
const MaintenanceDatabase = "postgres"

// FromMap creates a Config from a generic config map.
func FromMap(config map[string]any) (*Config, error) {
	cfg := &Config{
		Host:     datasource.StringParam(config, "host"),
		Port:     DefaultPort(),
		User:     datasource.StringParam(config, "user", "username"),
		Password: datasource.StringParam(config, "password"),
		Database: datasource.StringParam(config, "database", "name"),
		SSLMode:  datasource.StringParam(config, "ssl_mode", "sslmode"),
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
		cfg.Database = MaintenanceDatabase
	}
	if cfg.SSLMode == "" {
		cfg.SSLMode = DefaultSSLMode()
	}

	return cfg, nil
}
