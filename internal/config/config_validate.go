// Attribution Measurement Backend
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"fmt"
)

// Validate checks that the loaded configuration is internally
// consistent and safe to run with. It is called automatically by
// Load() but is exported so callers constructing a Config by hand
// (tests, embedders) can validate it too.
func (c *Config) Validate() error {
	if err := c.Server.validate(); err != nil {
		return err
	}
	if err := c.Engine.validate(); err != nil {
		return err
	}
	if err := c.Database.validate(); err != nil {
		return err
	}
	if err := c.NATS.validate(); err != nil {
		return err
	}
	if err := c.WAL.validate(); err != nil {
		return err
	}
	if err := c.API.validate(); err != nil {
		return err
	}
	if err := c.Security.validate(); err != nil {
		return err
	}
	if err := c.Logging.validate(); err != nil {
		return err
	}
	for i, agg := range c.Aggregators {
		if agg.Key == "" {
			return fmt.Errorf("aggregators[%d]: key must not be empty", i)
		}
		if err := validateHTTPURL(fmt.Sprintf("aggregators[%d].key", i), agg.Key); err != nil {
			return err
		}
	}
	return nil
}

func (s ServerConfig) validate() error {
	if s.Port <= 0 || s.Port > 65535 {
		return fmt.Errorf("server.port: must be between 1 and 65535, got %d", s.Port)
	}
	if s.Host == "" {
		return fmt.Errorf("server.host: must not be empty")
	}
	if s.Timeout <= 0 {
		return fmt.Errorf("server.timeout: must be positive")
	}
	switch s.Environment {
	case "development", "staging", "production":
	default:
		return fmt.Errorf("server.environment: must be one of development, staging, production, got %q", s.Environment)
	}
	return nil
}

func (e EngineConfig) validate() error {
	if e.MaxConversionSitesPerImpression <= 0 {
		return fmt.Errorf("engine.max_conversion_sites_per_impression: must be positive")
	}
	if e.MaxConversionCallersPerImpression <= 0 {
		return fmt.Errorf("engine.max_conversion_callers_per_impression: must be positive")
	}
	if e.MaxCreditSize <= 0 {
		return fmt.Errorf("engine.max_credit_size: must be positive")
	}
	if e.MaxLookbackDays < 0 {
		return fmt.Errorf("engine.max_lookback_days: must not be negative")
	}
	if e.MaxHistogramSize <= 0 {
		return fmt.Errorf("engine.max_histogram_size: must be positive")
	}
	if e.PrivacyBudgetMicroEpsilons == 0 {
		return fmt.Errorf("engine.privacy_budget_micro_epsilons: must be positive")
	}
	if e.PrivacyBudgetEpoch <= 0 {
		return fmt.Errorf("engine.privacy_budget_epoch: must be positive")
	}
	if e.MaxConversionEpsilon <= 0 {
		return fmt.Errorf("engine.max_conversion_epsilon: must be positive")
	}
	if e.DefaultLifetimeDays < 0 {
		return fmt.Errorf("engine.default_lifetime_days: must not be negative")
	}
	if e.DefaultEpsilon <= 0 {
		return fmt.Errorf("engine.default_epsilon: must be positive")
	}
	if e.DefaultMaxValue < 0 {
		return fmt.Errorf("engine.default_max_value: must not be negative")
	}
	return nil
}

func (d DatabaseConfig) validate() error {
	if d.Path == "" {
		return fmt.Errorf("database.path: must not be empty")
	}
	if d.Threads < 0 {
		return fmt.Errorf("database.threads: must not be negative")
	}
	return nil
}

func (n NATSConfig) validate() error {
	if !n.Enabled {
		return nil
	}
	if !n.EmbeddedServer {
		if err := validateNATSURL("nats.url", n.URL); err != nil {
			return err
		}
	}
	if n.SubscribersCount <= 0 {
		return fmt.Errorf("nats.subscribers_count: must be positive")
	}
	if n.DurableName == "" {
		return fmt.Errorf("nats.durable_name: must not be empty when nats.enabled is true")
	}
	if n.CloseTimeout <= 0 {
		return fmt.Errorf("nats.close_timeout: must be positive")
	}
	return nil
}

func (w WALConfig) validate() error {
	if !w.Enabled {
		return nil
	}
	if w.Path == "" {
		return fmt.Errorf("wal.path: must not be empty when wal.enabled is true")
	}
	if w.GCInterval <= 0 {
		return fmt.Errorf("wal.gc_interval: must be positive")
	}
	return nil
}

func (a APIConfig) validate() error {
	if a.DefaultPageSize <= 0 {
		return fmt.Errorf("api.default_page_size: must be positive")
	}
	if a.MaxPageSize < a.DefaultPageSize {
		return fmt.Errorf("api.max_page_size: must be >= api.default_page_size")
	}
	return nil
}

func (s SecurityConfig) validate() error {
	switch s.AuthMode {
	case "jwt":
		if len(s.JWTSecret) < 32 {
			return fmt.Errorf("security.jwt_secret: must be at least 32 characters when security.auth_mode is jwt")
		}
	case "basic":
		if s.AdminUsername == "" {
			return fmt.Errorf("security.admin_username: must not be empty when security.auth_mode is basic")
		}
		policy := DefaultPasswordPolicy()
		if err := policy.ValidateWithError(s.AdminPassword, s.AdminUsername); err != nil {
			return fmt.Errorf("security.admin_password: %w", err)
		}
	case "none":
	default:
		return fmt.Errorf("security.auth_mode: must be one of jwt, basic, none, got %q", s.AuthMode)
	}

	if s.SessionTimeout <= 0 {
		return fmt.Errorf("security.session_timeout: must be positive")
	}
	if !s.RateLimitDisabled {
		if s.RateLimitReqs <= 0 {
			return fmt.Errorf("security.rate_limit_reqs: must be positive unless security.rate_limit_disabled is true")
		}
		if s.RateLimitWindow <= 0 {
			return fmt.Errorf("security.rate_limit_window: must be positive unless security.rate_limit_disabled is true")
		}
	}
	if len(s.CORSOrigins) == 0 {
		return fmt.Errorf("security.cors_origins: must name at least one origin (use \"*\" to allow all)")
	}
	return s.Casbin.validate()
}

func (c CasbinConfig) validate() error {
	if c.DefaultRole == "" {
		return fmt.Errorf("security.casbin.default_role: must not be empty")
	}
	if c.AutoReload && c.ReloadInterval <= 0 {
		return fmt.Errorf("security.casbin.reload_interval: must be positive when security.casbin.auto_reload is true")
	}
	if c.CacheEnabled && c.CacheTTL <= 0 {
		return fmt.Errorf("security.casbin.cache_ttl: must be positive when security.casbin.cache_enabled is true")
	}
	return nil
}

func (l LoggingConfig) validate() error {
	switch l.Level {
	case "trace", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: must be one of trace, debug, info, warn, error, got %q", l.Level)
	}
	switch l.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logging.format: must be one of json, console, got %q", l.Format)
	}
	return nil
}
