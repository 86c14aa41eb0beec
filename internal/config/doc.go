// Attribution Measurement Backend
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package config provides centralized configuration management for the
attribution measurement backend.

This package handles loading, validation, and parsing of environment
variables for all application components, and provides sensible
defaults for optional settings.

# Configuration Sources

The package reads configuration in increasing order of priority:

  - Built-in defaults (defaultConfig)
  - An optional YAML config file (config.yaml, or the path named by
    CONFIG_PATH)
  - Environment variables

# Configuration Structure

The package organizes configuration into logical groups:

  - ServerConfig: HTTP server settings (host, port, timeouts)
  - EngineConfig: construction-time limits for the attribution engine
    (site/caller fan-out caps, credit vector size, lookback window,
    privacy budget and epoch length)
  - DatabaseConfig: DuckDB audit trail settings
  - NATSConfig: optional JetStream publishing of state-mutation events
  - WALConfig: optional Badger-backed durable store
  - APIConfig: list endpoint pagination
  - SecurityConfig: authentication, rate limiting, CORS, and Casbin RBAC
  - LoggingConfig: zerolog settings
  - Aggregators: the allow-list of normalized aggregation service URLs
    the engine accepts in MeasureConversion requests

# Environment Variables

HTTP Server (ServerConfig):
  - HTTP_PORT: Listen port (default: 3857)
  - HTTP_HOST: Bind address (default: 0.0.0.0)
  - HTTP_TIMEOUT: Request timeout (default: 30s)
  - ENVIRONMENT: development, staging, or production

Engine (EngineConfig):
  - MAX_CONVERSION_SITES_PER_IMPRESSION
  - MAX_CONVERSION_CALLERS_PER_IMPRESSION
  - MAX_CREDIT_SIZE
  - MAX_LOOKBACK_DAYS
  - MAX_HISTOGRAM_SIZE
  - PRIVACY_BUDGET_MICRO_EPSILONS
  - PRIVACY_BUDGET_EPOCH
  - MAX_CONVERSION_EPSILON
  - DEFAULT_MATCH_VALUE, DEFAULT_LIFETIME_DAYS, DEFAULT_PRIORITY,
    DEFAULT_EPSILON, DEFAULT_VALUE, DEFAULT_MAX_VALUE
  - INCLUDE_UNENCRYPTED_HISTOGRAM

Database (DatabaseConfig):
  - DUCKDB_PATH: Database file path (default: /data/attributiond.duckdb)
  - DUCKDB_MAX_MEMORY: Memory limit (default: 2GB)
  - DUCKDB_THREADS: Thread count (default: runtime.NumCPU())

NATS (NATSConfig), gated by the "nats" build tag:
  - NATS_ENABLED, NATS_URL, NATS_EMBEDDED, NATS_STORE_DIR,
    NATS_MAX_MEMORY, NATS_MAX_STORE, NATS_RETENTION_DAYS,
    NATS_SUBSCRIBERS, NATS_DURABLE_NAME, NATS_QUEUE_GROUP,
    NATS_CLOSE_TIMEOUT

WAL (WALConfig), gated by the "wal" build tag:
  - WAL_ENABLED, WAL_PATH, WAL_SYNC_WRITES, WAL_GC_INTERVAL

API (APIConfig):
  - API_DEFAULT_PAGE_SIZE, API_MAX_PAGE_SIZE

Security (SecurityConfig):
  - AUTH_MODE: jwt, basic, or none
  - JWT_SECRET: JWT signing secret (min 32 chars, required for jwt mode)
  - SESSION_TIMEOUT
  - ADMIN_USERNAME, ADMIN_PASSWORD (required for basic mode; password
    is checked against the NIST SP 800-63B policy in password_policy.go)
  - RATE_LIMIT_REQUESTS, RATE_LIMIT_WINDOW, DISABLE_RATE_LIMIT
  - CORS_ORIGINS: comma-separated list, or a YAML sequence
  - TRUSTED_PROXIES: comma-separated list, or a YAML sequence
  - CASBIN_MODEL_PATH, CASBIN_POLICY_PATH, CASBIN_DEFAULT_ROLE,
    CASBIN_AUTO_RELOAD, CASBIN_RELOAD_INTERVAL, CASBIN_CACHE_ENABLED,
    CASBIN_CACHE_TTL

Logging (LoggingConfig):
  - LOG_LEVEL: trace, debug, info, warn, error
  - LOG_FORMAT: json or console
  - LOG_CALLER: include caller file:line in log entries

# Usage Example

Basic configuration loading:

	import "github.com/attributiond/backend/internal/config"

	cfg, err := config.Load()
	if err != nil {
	    log.Fatalf("failed to load config: %v", err)
	}

	fmt.Printf("starting server on %s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Printf("privacy budget epoch: %s\n", cfg.Engine.PrivacyBudgetEpoch)
	fmt.Printf("database: %s\n", cfg.Database.Path)

Testing with custom configuration:

	t.Setenv("HTTP_PORT", "8080")
	t.Setenv("JWT_SECRET", "test-secret-at-least-32-characters-long")

	cfg, err := config.Load()
	// use cfg for testing

# Validation

Config.Validate() checks, among other things:

  - JWT_SECRET is at least 32 characters when AUTH_MODE=jwt
  - ADMIN_PASSWORD meets the configured password policy when
    AUTH_MODE=basic
  - HTTP_PORT is in 1-65535
  - Aggregator keys are well-formed, normalized HTTP(S) URLs
  - NATS_URL/WAL_PATH are present and well-formed when their
    respective subsystems are enabled
  - ENGINE fields are internally consistent (nonzero privacy budget,
    positive epoch length, nonnegative lookback window)

# Credential Encryption

Sensitive values persisted outside of process environment (e.g. in a
database-backed settings table) are encrypted at rest with AES-256-GCM
via CredentialEncryptor, whose key is derived from JWT_SECRET using
HKDF-SHA256 (encryption.go).

# Thread Safety

The Config struct is immutable after Load() returns, making it safe
for concurrent access from multiple goroutines without synchronization.

# Docker Deployment

	services:
	  attributiond:
	    image: ghcr.io/attributiond/backend:latest
	    environment:
	      JWT_SECRET: ${JWT_SECRET}
	      DUCKDB_PATH: /data/attributiond.duckdb
	    ports:
	      - "3857:3857"
*/
package config
