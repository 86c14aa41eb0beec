// Attribution Measurement Backend
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in
// order of priority. The first file found is used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/attributiond/config.yaml",
	"/etc/attributiond/config.yml",
}

// ConfigPathEnvVar is the environment variable that overrides the
// config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        3857,
			Host:        "0.0.0.0",
			Timeout:     30 * time.Second,
			Environment: "development",
		},
		Engine: EngineConfig{
			MaxConversionSitesPerImpression:   10,
			MaxConversionCallersPerImpression: 10,
			MaxCreditSize:                     20,
			MaxLookbackDays:                   30,
			MaxHistogramSize:                  256,
			PrivacyBudgetMicroEpsilons:        65_536_000,
			PrivacyBudgetEpoch:                24 * time.Hour,
			MaxConversionEpsilon:              1.0,
			DefaultMatchValue:                 0,
			DefaultLifetimeDays:               30,
			DefaultPriority:                   0,
			DefaultEpsilon:                    0.1,
			DefaultValue:                      0,
			DefaultMaxValue:                   1,
			IncludeUnencryptedHistogram:       false,
		},
		Database: DatabaseConfig{
			Path:                   "/data/attributiond.duckdb",
			MaxMemory:              "2GB",
			Threads:                0,
			PreserveInsertionOrder: true,
		},
		NATS: NATSConfig{
			Enabled:          false,
			URL:              "nats://127.0.0.1:4222",
			EmbeddedServer:   true,
			StoreDir:         "/data/nats/jetstream",
			MaxMemory:        1 << 30,
			MaxStore:         10 << 30,
			StreamRetention:  7,
			SubscribersCount: 4,
			DurableName:      "attribution-events",
			QueueGroup:       "attribution-processors",
			CloseTimeout:     30 * time.Second,
		},
		WAL: WALConfig{
			Enabled:    false,
			Path:       "/data/attributiond/wal",
			SyncWrites: true,
			GCInterval: 10 * time.Minute,
		},
		API: APIConfig{
			DefaultPageSize: 50,
			MaxPageSize:     500,
		},
		Security: SecurityConfig{
			AuthMode:          "jwt",
			JWTSecret:         "",
			SessionTimeout:    24 * time.Hour,
			AdminUsername:     "",
			AdminPassword:     "",
			RateLimitReqs:     100,
			RateLimitWindow:   1 * time.Minute,
			RateLimitDisabled: false,
			CORSOrigins:       []string{"*"},
			TrustedProxies:    []string{},
			Casbin: CasbinConfig{
				ModelPath:      "",
				PolicyPath:     "",
				DefaultRole:    "viewer",
				AutoReload:     true,
				ReloadInterval: 30 * time.Second,
				CacheEnabled:   true,
				CacheTTL:       5 * time.Minute,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// Load reads configuration from built-in defaults, an optional config
// file, and environment variables, in that order of increasing
// priority, using Koanf v2.
func Load() (*Config, error) {
	k := koanf.New(".")

	defaults := defaultConfig()
	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	envProvider := env.Provider("", ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

var sliceConfigPaths = []string{
	"security.cors_origins",
	"security.trusted_proxies",
}

// processSliceFields converts comma-separated string values (as
// produced by environment variables) into slices for the known slice
// fields. YAML-sourced slices are left untouched.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}
		if _, ok := val.([]interface{}); ok {
			continue
		}
		if _, ok := val.([]string); ok {
			continue
		}
		strVal, ok := val.(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("failed to set %s: %w", path, err)
			}
		}
	}
	return nil
}

// envTransformFunc maps environment variable names onto koanf config
// paths. Unmapped variables are skipped so random environment noise
// cannot pollute configuration.
func envTransformFunc(key string) string {
	key = strings.ToLower(key)

	mappings := map[string]string{
		"http_port":   "server.port",
		"http_host":   "server.host",
		"http_timeout": "server.timeout",
		"environment": "server.environment",

		"max_conversion_sites_per_impression":   "engine.max_conversion_sites_per_impression",
		"max_conversion_callers_per_impression": "engine.max_conversion_callers_per_impression",
		"max_credit_size":                       "engine.max_credit_size",
		"max_lookback_days":                      "engine.max_lookback_days",
		"max_histogram_size":                     "engine.max_histogram_size",
		"privacy_budget_micro_epsilons":          "engine.privacy_budget_micro_epsilons",
		"privacy_budget_epoch":                   "engine.privacy_budget_epoch",
		"max_conversion_epsilon":                 "engine.max_conversion_epsilon",
		"default_match_value":                    "engine.default_match_value",
		"default_lifetime_days":                  "engine.default_lifetime_days",
		"default_priority":                       "engine.default_priority",
		"default_epsilon":                        "engine.default_epsilon",
		"default_value":                          "engine.default_value",
		"default_max_value":                      "engine.default_max_value",
		"include_unencrypted_histogram":          "engine.include_unencrypted_histogram",

		"duckdb_path":       "database.path",
		"duckdb_max_memory": "database.max_memory",
		"duckdb_threads":    "database.threads",

		"nats_enabled":        "nats.enabled",
		"nats_url":            "nats.url",
		"nats_embedded":       "nats.embedded_server",
		"nats_store_dir":      "nats.store_dir",
		"nats_max_memory":     "nats.max_memory",
		"nats_max_store":      "nats.max_store",
		"nats_retention_days": "nats.stream_retention_days",
		"nats_subscribers":    "nats.subscribers_count",
		"nats_durable_name":   "nats.durable_name",
		"nats_queue_group":    "nats.queue_group",
		"nats_close_timeout":  "nats.close_timeout",

		"wal_enabled":     "wal.enabled",
		"wal_path":        "wal.path",
		"wal_sync_writes": "wal.sync_writes",
		"wal_gc_interval": "wal.gc_interval",

		"api_default_page_size": "api.default_page_size",
		"api_max_page_size":     "api.max_page_size",

		"auth_mode":           "security.auth_mode",
		"jwt_secret":          "security.jwt_secret",
		"session_timeout":     "security.session_timeout",
		"admin_username":      "security.admin_username",
		"admin_password":      "security.admin_password",
		"rate_limit_requests": "security.rate_limit_reqs",
		"rate_limit_window":   "security.rate_limit_window",
		"disable_rate_limit":  "security.rate_limit_disabled",
		"cors_origins":        "security.cors_origins",
		"trusted_proxies":     "security.trusted_proxies",

		"casbin_model_path":      "security.casbin.model_path",
		"casbin_policy_path":     "security.casbin.policy_path",
		"casbin_default_role":    "security.casbin.default_role",
		"casbin_auto_reload":     "security.casbin.auto_reload",
		"casbin_reload_interval": "security.casbin.reload_interval",
		"casbin_cache_enabled":   "security.casbin.cache_enabled",
		"casbin_cache_ttl":       "security.casbin.cache_ttl",

		"log_level":  "logging.level",
		"log_format": "logging.format",
		"log_caller": "logging.caller",
	}

	if mapped, ok := mappings[key]; ok {
		return mapped
	}
	return ""
}

// GetKoanfInstance returns a new Koanf instance for advanced usage such
// as hot-reload or testing with mock configuration sources.
func GetKoanfInstance() *koanf.Koanf {
	return koanf.New(".")
}

// WatchConfigFile sets up a file watcher for hot-reload. The caller is
// responsible for synchronizing access to configuration during reload.
func WatchConfigFile(path string, callback func()) error {
	provider := file.Provider(path)
	return provider.Watch(func(event interface{}, err error) {
		if err != nil {
			return
		}
		callback()
	})
}
