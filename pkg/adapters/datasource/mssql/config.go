package mssql

import (
	"fmt"

	"github.com/ekaya-inc/ekaya-canvas/pkg/adapters/datasource"
)

// Auth methods supported by the SQL Server adapter.
const (
	AuthMethodSQL              = "sql"
	AuthMethodServicePrincipal = "service_principal"
)

// MasterDatabase is used when no database is named, e.g. while listing databases.
const MasterDatabase = "master"

// Config contains SQL Server-specific connection options.
type Config struct {
	Host     string
	Port     int
	Database string

	// AuthMethod is "sql" or "service_principal".
	AuthMethod string

	Username string
	Password string

	// Service principal (Azure AD) fields
	TenantID     string
	ClientID     string
	ClientSecret string

	Encrypt                bool
	TrustServerCertificate bool
	ConnectionTimeout      int
}

// DefaultPort returns the default SQL Server port.
func DefaultPort() int {
	return 1433
}

// DefaultConnectionTimeout returns the default connection timeout in seconds.
func DefaultConnectionTimeout() int {
	return 30
}

// FromMap creates a Config from a generic config map. The auth method is
// service_principal when client_id is present and sql otherwise.
func FromMap(config map[string]any) (*Config, error) {
	cfg := &Config{
		Host:                   datasource.StringParam(config, "host"),
		Port:                   DefaultPort(),
		Database:               datasource.StringParam(config, "database", "name"),
		AuthMethod:             datasource.StringParam(config, "auth_method"),
		Encrypt:                true,
		TrustServerCertificate: datasource.BoolParam(config, "trust_server_certificate", false),
		ConnectionTimeout:      DefaultConnectionTimeout(),
	}

	if port, ok := datasource.IntParam(config, "port"); ok {
		cfg.Port = port
	}
	if timeout, ok := datasource.IntParam(config, "connection_timeout"); ok {
		cfg.ConnectionTimeout = timeout
	}
	// "strict" is the driver's strongest encryption mode
	if s := datasource.StringParam(config, "encrypt"); s != "" {
		cfg.Encrypt = s == "true" || s == "strict"
	} else {
		cfg.Encrypt = datasource.BoolParam(config, "encrypt", true)
	}
	if cfg.Database == "" {
		cfg.Database = MasterDatabase
	}

	if cfg.AuthMethod == "" {
		if datasource.StringParam(config, "client_id") != "" {
			cfg.AuthMethod = AuthMethodServicePrincipal
		} else {
			cfg.AuthMethod = AuthMethodSQL
		}
	}

	switch cfg.AuthMethod {
	case AuthMethodSQL:
		cfg.Username = datasource.StringParam(config, "user", "username")
		cfg.Password = datasource.StringParam(config, "password")
	case AuthMethodServicePrincipal:
		cfg.TenantID = datasource.StringParam(config, "tenant_id")
		cfg.ClientID = datasource.StringParam(config, "client_id")
		cfg.ClientSecret = datasource.StringParam(config, "client_secret")
	default:
		return nil, fmt.Errorf("invalid auth method: %s (must be sql or service_principal)", cfg.AuthMethod)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the config has the fields its auth method needs.
func (c *Config) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("host is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}

	switch c.AuthMethod {
	case AuthMethodSQL:
		if c.Username == "" {
			return fmt.Errorf("username is required for SQL authentication")
		}
	case AuthMethodServicePrincipal:
		if c.TenantID == "" {
			return fmt.Errorf("tenant_id is required for service principal")
		}
		if c.ClientID == "" {
			return fmt.Errorf("client_id is required for service principal")
		}
		if c.ClientSecret == "" {
			return fmt.Errorf("client_secret is required for service principal")
		}
	default:
		return fmt.Errorf("invalid auth method: %s", c.AuthMethod)
	}
	return nil
}
