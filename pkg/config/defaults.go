package config

import "time"

// Default returns a fully-defaulted configuration, the one used when the
// gateway context is constructed lazily without an explicit Initialize.
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills zero-valued fields with their documented defaults.
// Explicitly configured values are never overwritten.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Bind == "" {
		cfg.Server.Bind = "0.0.0.0:7999"
	}
	if cfg.Server.Workers <= 0 {
		cfg.Server.Workers = 1
	}
	if cfg.Server.ConcurrentLimit <= 0 {
		cfg.Server.ConcurrentLimit = 65535
	}

	if cfg.Upstream.TCPKeepalive <= 0 {
		cfg.Upstream.TCPKeepalive = 75 * time.Second
	}
	if cfg.Upstream.PoolIdleTimeout <= 0 {
		cfg.Upstream.PoolIdleTimeout = 90 * time.Second
	}
	if cfg.Upstream.Timeout <= 0 {
		cfg.Upstream.Timeout = 600 * time.Second
	}
	if cfg.Upstream.ConnectTimeout <= 0 {
		cfg.Upstream.ConnectTimeout = 60 * time.Second
	}

	if cfg.Captcha.Solver.Limit <= 0 {
		cfg.Captcha.Solver.Limit = 3
	}

	if cfg.RateLimit.Strategy == "" {
		cfg.RateLimit.Strategy = "memory"
	}
	if cfg.RateLimit.SQLitePath == "" {
		cfg.RateLimit.SQLitePath = "veil-ratelimit.db"
	}
	if cfg.RateLimit.Capacity == 0 {
		cfg.RateLimit.Capacity = 60
	}
	if cfg.RateLimit.FillRate == 0 {
		cfg.RateLimit.FillRate = 1
	}
	if cfg.RateLimit.Expire <= 0 {
		cfg.RateLimit.Expire = 24 * time.Hour
	}
	if cfg.RateLimit.CleanupSchedule == "" {
		cfg.RateLimit.CleanupSchedule = "0 */6 * * *"
	}

	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = "info"
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = "json"
	}
	if cfg.Telemetry.Metrics.Path == "" {
		cfg.Telemetry.Metrics.Path = "/metrics"
	}
	if cfg.Telemetry.Metrics.Namespace == "" {
		cfg.Telemetry.Metrics.Namespace = "veil"
	}
}
