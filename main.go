package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ekaya-inc/ekaya-canvas/pkg/adapters/datasource"
	_ "github.com/ekaya-inc/ekaya-canvas/pkg/adapters/datasource/mssql"
	_ "github.com/ekaya-inc/ekaya-canvas/pkg/adapters/datasource/mysql"
	_ "github.com/ekaya-inc/ekaya-canvas/pkg/adapters/datasource/postgres"
	_ "github.com/ekaya-inc/ekaya-canvas/pkg/adapters/datasource/sqlite"
	"github.com/ekaya-inc/ekaya-canvas/pkg/auth"
	"github.com/ekaya-inc/ekaya-canvas/pkg/config"
	"github.com/ekaya-inc/ekaya-canvas/pkg/crypto"
	"github.com/ekaya-inc/ekaya-canvas/pkg/handlers"
	"github.com/ekaya-inc/ekaya-canvas/pkg/mcp"
	mcpauth "github.com/ekaya-inc/ekaya-canvas/pkg/mcp/auth"
	"github.com/ekaya-inc/ekaya-canvas/pkg/middleware"
	"github.com/ekaya-inc/ekaya-canvas/pkg/services"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Configuration loaded",
		zap.String("env", cfg.Env),
		zap.String("base_url", cfg.BaseURL),
		zap.Bool("auth_required", cfg.Auth.RequireAuth),
		zap.Bool("auth_verification", cfg.Auth.EnableVerification),
		zap.Bool("mcp_enabled", cfg.MCP.Enabled),
		zap.Int("max_connections", cfg.Datasource.MaxConnections))

	connMgr := datasource.NewConnectionManager(datasource.ConnectionManagerConfig{
		TTLMinutes:     cfg.Datasource.ConnectionTTLMinutes,
		MaxConnections: cfg.Datasource.MaxConnections,
		PoolMaxConns:   cfg.Datasource.PoolMaxConns,
		PoolMinConns:   cfg.Datasource.PoolMinConns,
	}, logger)
	defer func() {
		if err := connMgr.Close(); err != nil {
			logger.Error("Failed to close datasource connections", zap.Error(err))
		}
	}()

	secret := cfg.Auth.SessionSecret
	if secret == "" {
		logger.Warn("SESSION_SECRET not set; sessions and sealed credentials will not survive a restart")
		if secret, err = crypto.GenerateKey(); err != nil {
			logger.Fatal("Failed to generate session secret", zap.Error(err))
		}
	}
	sealer, err := crypto.NewSealer(secret)
	if err != nil {
		logger.Fatal("Failed to create credential sealer", zap.Error(err))
	}

	connectionService := services.NewConnectionService(
		datasource.NewDatasourceAdapterFactory(connMgr),
		connMgr,
		sealer,
		cfg.Datasource.ConnectTimeout,
		logger,
	)
	queryService := services.NewQueryService(connectionService, cfg.Query, logger)
	sessions := auth.NewSessionStore(secret, cfg.BaseURL)

	var (
		authMiddleware *auth.Middleware
		mcpAuth        *mcpauth.Middleware
	)
	if cfg.Auth.RequireAuth {
		jwksClient, err := auth.NewJWKSClient(&auth.JWKSConfig{
			EnableVerification: cfg.Auth.EnableVerification,
			JWKSEndpoints:      cfg.Auth.JWKSEndpoints,
		})
		if err != nil {
			logger.Fatal("Failed to initialize JWKS client", zap.Error(err))
		}
		defer jwksClient.Close()

		authService := auth.NewAuthService(jwksClient, logger)
		authMiddleware = auth.NewMiddleware(authService, logger)
		mcpAuth = mcpauth.NewMiddleware(authService, logger)
	}

	mux := http.NewServeMux()

	handlers.NewHealthHandler(cfg, connMgr, logger).RegisterRoutes(mux)
	handlers.NewConnectionsHandler(connectionService, sessions, cfg.MaxBodyBytes, logger).RegisterRoutes(mux, authMiddleware)
	handlers.NewQueriesHandler(queryService, sessions, cfg.MaxBodyBytes, logger).RegisterRoutes(mux, authMiddleware)

	if cfg.MCP.Enabled {
		mcpServer := mcp.NewServer(handlers.ServiceName, mcp.Deps{
			Version:     cfg.Version,
			Queries:     queryService,
			Connections: connectionService,
		}, logger)
		mux.Handle("/mcp", middleware.Chain(mcpServer.Handler(),
			middleware.MCPRequestLogger(logger),
			middleware.MaxBodyBytes(cfg.MaxBodyBytes),
			mcpAuth.RequireAuth,
		))
	}

	srv := &http.Server{
		Addr:              cfg.BindAddr + ":" + cfg.Port,
		Handler:           middleware.Chain(mux, middleware.Recoverer(logger), middleware.RequestLogger(logger)),
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		logger.Info("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown failed", zap.Error(err))
		}
	}()

	logger.Info("Starting ekaya-canvas",
		zap.String("addr", srv.Addr),
		zap.String("version", cfg.Version))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("Server failed", zap.Error(err))
	}
}

// newLogger builds a development logger for local environments and a JSON
// production logger otherwise, at the configured level.
func newLogger(cfg *config.Config) (*zap.Logger, error) {
	var zapCfg zap.Config
	if cfg.Env == "local" || cfg.Env == "dev" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	return zapCfg.Build()
}
