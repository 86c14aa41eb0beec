// Attribution Measurement Backend
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package main is the entry point for the attribution measurement
// backend: a browser-resident conversion measurement core (impressions,
// epochs, fair-credit matching, and a differential-privacy budget
// ledger) exposed over HTTP.
//
// # Application Architecture
//
// The server initializes components in the following order:
//
//  1. Configuration: load settings from environment variables and an
//     optional config file (Koanf v2)
//  2. Logging: zerolog, configured from Logging settings
//  3. Audit store: DuckDB-backed audit trail
//  4. Authorization: Casbin RBAC enforcer
//  5. Attribution engine: internal/attribution.Engine, constructed with
//     its production collaborators (clock, RNG, site canonicalizer, and
//     an aggregation-service encryptor guarded by a circuit breaker)
//  6. Authentication: JWT, Basic Auth, or no-auth mode
//  7. WebSocket hub: broadcasts engine state changes to connected clients
//  8. HTTP server: the REST surface mounted by internal/api
//
// # Configuration
//
// Configuration is loaded via Koanf v2 with layered sources (highest
// priority wins): environment variables, an optional config file, and
// built-in defaults.
//
// For JWT authentication (default):
//   - JWT_SECRET: 32+ character secret for token signing
//   - ADMIN_USERNAME, ADMIN_PASSWORD: bootstrap admin credentials
//
// # Signal Handling
//
// The server handles graceful shutdown on SIGINT and SIGTERM: it stops
// accepting new connections, waits for in-flight requests to complete,
// and closes the audit store's database connection.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/attributiond/backend/internal/aggregation"
	"github.com/attributiond/backend/internal/api"
	"github.com/attributiond/backend/internal/attribution"
	"github.com/attributiond/backend/internal/audit"
	"github.com/attributiond/backend/internal/auth"
	"github.com/attributiond/backend/internal/authz"
	"github.com/attributiond/backend/internal/config"
	"github.com/attributiond/backend/internal/logging"
	"github.com/attributiond/backend/internal/supervisor"
	"github.com/attributiond/backend/internal/supervisor/services"
	ws "github.com/attributiond/backend/internal/websocket"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("auth_mode", cfg.Security.AuthMode).
		Str("db_path", cfg.Database.Path).
		Msg("Starting attribution backend")

	db, auditStore, auditLogger, err := setupAudit(cfg)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize audit store")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing audit database")
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	enforcer, err := authz.NewEnforcer(ctx, enforcerConfig(cfg))
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize authorization enforcer")
	}

	engine, err := buildEngine(cfg)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to construct attribution engine")
	}
	logging.Info().
		Int("aggregation_services", len(engine.AggregationServices())).
		Msg("Attribution engine constructed")

	authMW, err := buildAuthMiddleware(cfg)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize authentication middleware")
	}

	wsHub := ws.NewHub()

	eventPub, err := initNATSPublisher(cfg)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize NATS event publisher")
	}

	handler := api.NewHandler(engine, cfg).
		WithAudit(auditLogger).
		WithEnforcer(enforcer).
		WithHub(wsHub)
	if eventPub != nil {
		handler = handler.WithEvents(eventPub)
	}

	router := api.NewRouter(handler, authMW, cfg.Security)
	router.ConfigureAudit(api.NewAuditHandlers(auditLogger, auditStore))

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router.Mount(),
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
		IdleTimeout:  60 * time.Second,
	}

	slogLogger := logging.NewSlogLogger()
	tree, err := supervisor.NewSupervisorTree(slogLogger, supervisor.TreeConfig{
		FailureThreshold: 5,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  10 * time.Second,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}

	tree.AddMessagingService(services.NewWebSocketHubService(wsHub))
	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))
	logging.Info().Str("addr", server.Addr).Msg("WebSocket hub and HTTP server added to supervisor tree")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree...")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish...")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	if unstopped, _ := tree.UnstoppedServiceReport(); len(unstopped) > 0 {
		logging.Warn().Int("count", len(unstopped)).Msg("Services failed to stop within timeout")
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service failed to stop")
		}
	}

	logging.Info().Msg("Application stopped gracefully")
}

// setupAudit opens the DuckDB-backed audit store and starts the audit
// logger's async writer and retention cleanup routine.
func setupAudit(cfg *config.Config) (*sql.DB, *audit.DuckDBStore, *audit.Logger, error) {
	db, err := sql.Open("duckdb", cfg.Database.Path)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open duckdb: %w", err)
	}

	store := audit.NewDuckDBStore(db)
	if err := store.CreateTable(context.Background()); err != nil {
		db.Close()
		return nil, nil, nil, fmt.Errorf("create audit_events table: %w", err)
	}

	logger := audit.NewLogger(store, audit.DefaultConfig())
	logger.StartCleanupRoutine(context.Background())

	return db, store, logger, nil
}

func enforcerConfig(cfg *config.Config) *authz.EnforcerConfig {
	c := authz.DefaultEnforcerConfig()
	c.ModelPath = cfg.Security.Casbin.ModelPath
	c.PolicyPath = cfg.Security.Casbin.PolicyPath
	if cfg.Security.Casbin.DefaultRole != "" {
		c.DefaultRole = cfg.Security.Casbin.DefaultRole
	}
	c.AutoReload = cfg.Security.Casbin.AutoReload
	if cfg.Security.Casbin.ReloadInterval > 0 {
		c.ReloadInterval = cfg.Security.Casbin.ReloadInterval
	}
	c.CacheEnabled = cfg.Security.Casbin.CacheEnabled
	if cfg.Security.Casbin.CacheTTL > 0 {
		c.CacheTTL = cfg.Security.Casbin.CacheTTL
	}
	return c
}

// buildEngine constructs the attribution engine with its production
// collaborators: a system clock, a math/rand-backed RNG, a stub site
// canonicalizer (site canonicalization is a non-goal), and an
// aggregation-service encryptor guarded by a circuit breaker.
func buildEngine(cfg *config.Config) (*attribution.Engine, error) {
	engineCfg := attribution.EngineConfig{
		MaxConversionSitesPerImpression:   cfg.Engine.MaxConversionSitesPerImpression,
		MaxConversionCallersPerImpression: cfg.Engine.MaxConversionCallersPerImpression,
		MaxCreditSize:                     cfg.Engine.MaxCreditSize,
		MaxLookbackDays:                   cfg.Engine.MaxLookbackDays,
		MaxHistogramSize:                  cfg.Engine.MaxHistogramSize,
		PrivacyBudgetMicroEpsilons:        cfg.Engine.PrivacyBudgetMicroEpsilons,
		PrivacyBudgetEpoch:                cfg.Engine.PrivacyBudgetEpoch,
		MaxConversionEpsilon:              cfg.Engine.MaxConversionEpsilon,
		DefaultMatchValue:                 cfg.Engine.DefaultMatchValue,
		DefaultLifetimeDays:               cfg.Engine.DefaultLifetimeDays,
		DefaultPriority:                   cfg.Engine.DefaultPriority,
		DefaultEpsilon:                    cfg.Engine.DefaultEpsilon,
		DefaultValue:                      cfg.Engine.DefaultValue,
		DefaultMaxValue:                   cfg.Engine.DefaultMaxValue,
		IncludeUnencryptedHistogram:       cfg.Engine.IncludeUnencryptedHistogram,
	}

	aggs := make(map[string]attribution.AggregationService, len(cfg.Aggregators))
	var defaultEndpoint string
	for _, a := range cfg.Aggregators {
		aggs[a.Key] = attribution.AggregationService{Name: a.Name}
		if defaultEndpoint == "" {
			defaultEndpoint = a.Key
		}
	}

	collab := attribution.Collaborators{
		Clock:               attribution.SystemClock{},
		Rng:                 attribution.NewMathRng(),
		Encryptor:           aggregation.NewEncryptor(aggregation.Config{Endpoint: defaultEndpoint}),
		SiteCanonicalizer:   attribution.StubSiteCanonicalizer{},
		AggregationServices: aggs,
	}

	return attribution.New(engineCfg, collab)
}

// buildAuthMiddleware constructs the authentication middleware
// described by cfg.Security.AuthMode ("jwt", "basic", or "none"). A nil
// return (with a nil error) is valid for AuthMode "none" and means every
// request is treated as unauthenticated.
func buildAuthMiddleware(cfg *config.Config) (*auth.Middleware, error) {
	var jwtManager *auth.JWTManager
	var basicAuthManager *auth.BasicAuthManager
	var err error

	switch cfg.Security.AuthMode {
	case "jwt":
		jwtManager, err = auth.NewJWTManager(&cfg.Security)
		if err != nil {
			return nil, fmt.Errorf("jwt manager: %w", err)
		}
	case "basic":
		basicAuthManager, err = auth.NewBasicAuthManager(cfg.Security.AdminUsername, cfg.Security.AdminPassword)
		if err != nil {
			return nil, fmt.Errorf("basic auth manager: %w", err)
		}
	case "none":
		logging.Warn().Msg("AUTH_MODE=none: every request is treated as unauthenticated")
	default:
		return nil, fmt.Errorf("unknown AUTH_MODE %q (must be jwt, basic, or none)", cfg.Security.AuthMode)
	}

	return auth.NewMiddleware(
		jwtManager,
		basicAuthManager,
		cfg.Security.AuthMode,
		cfg.Security.RateLimitReqs,
		cfg.Security.RateLimitWindow,
		cfg.Security.RateLimitDisabled,
		cfg.Security.CORSOrigins,
		cfg.Security.TrustedProxies,
		api.RoleViewer,
		cfg.Security.AdminUsername,
	), nil
}
