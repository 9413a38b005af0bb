package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// DefaultConfigPath is read by Load when present.
const DefaultConfigPath = "config.yaml"

// Config holds all configuration for ekaya-canvas.
// Configuration can come from a YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (session keys) must only come from environment variables.
type Config struct {
	// Server configuration
	BindAddr        string        `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port            string        `yaml:"port" env:"PORT" env-default:"3000"`
	Env             string        `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	BaseURL         string        `yaml:"base_url" env:"BASE_URL" env-default:""` // Auto-derived from Port if empty
	LogLevel        string        `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`
	MaxBodyBytes    int64         `yaml:"max_body_bytes" env:"MAX_BODY_BYTES" env-default:"10485760"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT" env-default:"15s"`
	Version         string        `yaml:"-"` // Set at load time, not from config

	Query      QueryConfig      `yaml:"query"`
	Datasource DatasourceConfig `yaml:"datasource"`
	Auth       AuthConfig       `yaml:"auth"`
	MCP        MCPConfig        `yaml:"mcp"`
}

// QueryConfig controls how synthesized SQL is executed.
type QueryConfig struct {
	// DefaultRowLimit is appended as LIMIT when an executed statement has none.
	DefaultRowLimit int `yaml:"default_row_limit" env:"QUERY_DEFAULT_ROW_LIMIT" env-default:"100"`
	// MaxRows caps any caller-supplied limit.
	MaxRows          int           `yaml:"max_rows" env:"QUERY_MAX_ROWS" env-default:"1000"`
	StatementTimeout time.Duration `yaml:"statement_timeout" env:"QUERY_STATEMENT_TIMEOUT" env-default:"30s"`
	// RejectSuspiciousValues turns libinjection findings on clause values into errors.
	RejectSuspiciousValues bool `yaml:"reject_suspicious_values" env:"QUERY_REJECT_SUSPICIOUS_VALUES" env-default:"false"`
}

// DatasourceConfig holds datasource connection management settings.
type DatasourceConfig struct {
	// ConnectionTTLMinutes is how long idle datasource connections are kept alive.
	ConnectionTTLMinutes int `yaml:"connection_ttl_minutes" env:"DATASOURCE_CONNECTION_TTL_MINUTES" env-default:"30"`
	// MaxConnections limits how many datasource connections may be open at once.
	MaxConnections int `yaml:"max_connections" env:"DATASOURCE_MAX_CONNECTIONS" env-default:"50"`
	// PoolMaxConns is the maximum number of connections per datasource pool.
	PoolMaxConns int32 `yaml:"pool_max_conns" env:"DATASOURCE_POOL_MAX_CONNS" env-default:"10"`
	// PoolMinConns is the minimum number of connections per datasource pool.
	PoolMinConns   int32         `yaml:"pool_min_conns" env:"DATASOURCE_POOL_MIN_CONNS" env-default:"0"`
	ConnectTimeout time.Duration `yaml:"connect_timeout" env:"DATASOURCE_CONNECT_TIMEOUT" env-default:"10s"`
}

// AuthConfig holds authentication-related configuration.
type AuthConfig struct {
	// EnableVerification controls whether JWT signatures are validated.
	// Set to false for local development without an auth server.
	EnableVerification bool `yaml:"enable_verification" env:"AUTH_ENABLE_VERIFICATION" env-default:"false"`

	// RequireAuth puts /api and /mcp behind the auth middleware.
	RequireAuth bool `yaml:"require_auth" env:"AUTH_REQUIRE_AUTH" env-default:"false"`

	// JWKSEndpointsStr is a comma-separated list of issuer=jwks_url pairs.
	// Format: "issuer1=url1,issuer2=url2"
	JWKSEndpointsStr string `yaml:"jwks_endpoints" env:"JWKS_ENDPOINTS" env-default:""`

	// JWKSEndpoints is the parsed map from JWKSEndpointsStr (not from config file).
	JWKSEndpoints map[string]string `yaml:"-"`

	// SessionSecret signs the session cookie. Secret - not in YAML.
	SessionSecret string `yaml:"-" env:"SESSION_SECRET"`
}

// MCPConfig controls the MCP endpoint.
type MCPConfig struct {
	Enabled bool `yaml:"enabled" env:"MCP_ENABLED" env-default:"true"`
}

// Load reads configuration from config.yaml with environment variable overrides.
// The version parameter is injected at build time and set on the returned Config.
func Load(version string) (*Config, error) {
	return LoadFrom(DefaultConfigPath, version)
}

// LoadFrom reads configuration from path. A missing file is not an error:
// configuration then comes from the environment and defaults only.
func LoadFrom(path, version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	if _, err := os.Stat(path); err == nil {
		if err := cleanenv.ReadConfig(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
	} else if errors.Is(err, fs.ErrNotExist) {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment: %w", err)
		}
	} else {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	cfg.Auth.JWKSEndpoints = parseJWKSEndpoints(cfg.Auth.JWKSEndpointsStr)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	// Auto-derive BaseURL from Port if not explicitly set
	if cfg.BaseURL == "" {
		cfg.BaseURL = (&url.URL{
			Scheme: "http",
			Host:   "localhost:" + cfg.Port,
		}).String()
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Query.DefaultRowLimit <= 0 {
		return fmt.Errorf("query.default_row_limit must be positive, got %d", c.Query.DefaultRowLimit)
	}
	if c.Query.MaxRows < c.Query.DefaultRowLimit {
		return fmt.Errorf("query.max_rows (%d) must be at least query.default_row_limit (%d)",
			c.Query.MaxRows, c.Query.DefaultRowLimit)
	}
	if c.Datasource.MaxConnections <= 0 {
		return fmt.Errorf("datasource.max_connections must be positive, got %d", c.Datasource.MaxConnections)
	}
	if c.Auth.EnableVerification && len(c.Auth.JWKSEndpoints) == 0 {
		return fmt.Errorf("auth.jwks_endpoints is required when auth.enable_verification is set")
	}
	return nil
}

// ConnectionTTL returns the idle TTL for datasource connections.
func (c *DatasourceConfig) ConnectionTTL() time.Duration {
	return time.Duration(c.ConnectionTTLMinutes) * time.Minute
}

// parseJWKSEndpoints parses the JWKS endpoints string into a map.
// Format: "issuer1=url1,issuer2=url2"
func parseJWKSEndpoints(value string) map[string]string {
	endpoints := make(map[string]string)
	if value == "" {
		return endpoints
	}

	for _, pair := range strings.Split(value, ",") {
		issuer, jwksURL, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		issuer, jwksURL = strings.TrimSpace(issuer), strings.TrimSpace(jwksURL)
		if issuer != "" && jwksURL != "" {
			endpoints[issuer] = jwksURL
		}
	}
	return endpoints
}
