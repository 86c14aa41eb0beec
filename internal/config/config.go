// Attribution Measurement Backend
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import "time"

// Config holds all application configuration loaded from environment
// variables and an optional config file.
//
// Configuration Loading Order (Koanf v2):
//  1. Defaults: built-in sensible defaults for all optional settings
//  2. Config File: optional YAML config file (config.yaml)
//  3. Environment Variables: override any setting
//
// Config is immutable after Load() returns and is safe for concurrent
// read access from multiple goroutines.
type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Engine     EngineConfig     `koanf:"engine"`
	Database   DatabaseConfig   `koanf:"database"`
	NATS       NATSConfig       `koanf:"nats"`
	WAL        WALConfig        `koanf:"wal"`
	API        APIConfig        `koanf:"api"`
	Security   SecurityConfig   `koanf:"security"`
	Logging    LoggingConfig    `koanf:"logging"`
	Aggregators []AggregatorConfig `koanf:"aggregators"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port        int           `koanf:"port"`
	Host        string        `koanf:"host"`
	Timeout     time.Duration `koanf:"timeout"`
	Environment string        `koanf:"environment"` // development, staging, production
}

// EngineConfig mirrors internal/attribution.EngineConfig and seeds the
// construction-time limits described in the engine's design notes. It
// is kept as a distinct, koanf-tagged struct (rather than embedding the
// engine's own type) so the attribution package never has to import
// koanf or carry environment-variable documentation.
type EngineConfig struct {
	MaxConversionSitesPerImpression   int           `koanf:"max_conversion_sites_per_impression"`
	MaxConversionCallersPerImpression int           `koanf:"max_conversion_callers_per_impression"`
	MaxCreditSize                     int           `koanf:"max_credit_size"`
	MaxLookbackDays                   int           `koanf:"max_lookback_days"`
	MaxHistogramSize                  int           `koanf:"max_histogram_size"`
	PrivacyBudgetMicroEpsilons        uint64        `koanf:"privacy_budget_micro_epsilons"`
	PrivacyBudgetEpoch                time.Duration `koanf:"privacy_budget_epoch"`
	MaxConversionEpsilon              float64       `koanf:"max_conversion_epsilon"`

	DefaultMatchValue   uint64  `koanf:"default_match_value"`
	DefaultLifetimeDays int     `koanf:"default_lifetime_days"`
	DefaultPriority     int32   `koanf:"default_priority"`
	DefaultEpsilon      float64 `koanf:"default_epsilon"`
	DefaultValue        int64   `koanf:"default_value"`
	DefaultMaxValue     int64   `koanf:"default_max_value"`

	IncludeUnencryptedHistogram bool `koanf:"include_unencrypted_histogram"`
}

// AggregatorConfig names one permitted aggregation service. Key must
// already be a normalized URL (url.Parse then re-stringify, unchanged);
// the engine rejects anything else at construction time.
type AggregatorConfig struct {
	Key  string `koanf:"key"`
	Name string `koanf:"name"`
}

// DatabaseConfig holds DuckDB settings for the audit trail.
type DatabaseConfig struct {
	Path                   string `koanf:"path"`
	MaxMemory              string `koanf:"max_memory"`
	Threads                int    `koanf:"threads"` // 0 = runtime.NumCPU()
	PreserveInsertionOrder bool   `koanf:"preserve_insertion_order"`
}

// NATSConfig holds NATS JetStream settings for publishing
// state-mutation events (save_impression, measure_conversion,
// clear_state, ...) to downstream consumers. Optional: disabled by
// default, compiled in only under the "nats" build tag.
type NATSConfig struct {
	Enabled          bool          `koanf:"enabled"`
	URL              string        `koanf:"url"`
	EmbeddedServer   bool          `koanf:"embedded_server"`
	StoreDir         string        `koanf:"store_dir"`
	MaxMemory        int64         `koanf:"max_memory"`
	MaxStore         int64         `koanf:"max_store"`
	StreamRetention  int           `koanf:"stream_retention_days"`
	SubscribersCount int           `koanf:"subscribers_count"`
	DurableName      string        `koanf:"durable_name"`
	QueueGroup       string        `koanf:"queue_group"`
	CloseTimeout     time.Duration `koanf:"close_timeout"`
}

// WALConfig holds BadgerDB write-ahead-log settings for durable
// impression/ledger persistence. Optional: disabled by default,
// compiled in only under the "wal" build tag.
type WALConfig struct {
	Enabled    bool          `koanf:"enabled"`
	Path       string        `koanf:"path"`
	SyncWrites bool          `koanf:"sync_writes"`
	GCInterval time.Duration `koanf:"gc_interval"`
}

// APIConfig holds pagination settings for list endpoints (e.g. the
// audit trail query surface).
type APIConfig struct {
	DefaultPageSize int `koanf:"default_page_size"`
	MaxPageSize     int `koanf:"max_page_size"`
}

// SecurityConfig holds authentication, authorization, and transport
// security settings.
type SecurityConfig struct {
	AuthMode          string        `koanf:"auth_mode"` // jwt, basic, none
	JWTSecret         string        `koanf:"jwt_secret"`
	SessionTimeout    time.Duration `koanf:"session_timeout"`
	AdminUsername     string        `koanf:"admin_username"`
	AdminPassword     string        `koanf:"admin_password"`
	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
	CORSOrigins       []string      `koanf:"cors_origins"`
	TrustedProxies    []string      `koanf:"trusted_proxies"`

	Casbin CasbinConfig `koanf:"casbin"`
}

// CasbinConfig holds Casbin RBAC authorization settings.
type CasbinConfig struct {
	ModelPath      string        `koanf:"model_path"`
	PolicyPath     string        `koanf:"policy_path"`
	DefaultRole    string        `koanf:"default_role"`
	AutoReload     bool          `koanf:"auto_reload"`
	ReloadInterval time.Duration `koanf:"reload_interval"`
	CacheEnabled   bool          `koanf:"cache_enabled"`
	CacheTTL       time.Duration `koanf:"cache_ttl"`
}

// LoggingConfig holds logging settings for zerolog.
type LoggingConfig struct {
	Level  string `koanf:"level"` // trace, debug, info, warn, error
	Format string `koanf:"format"` // json, console
	Caller bool   `koanf:"caller"`
}
