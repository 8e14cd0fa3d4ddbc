package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Load reads configuration from a YAML file, applies defaults and
// validates the result. Environment variables are not consulted; use
// LoadWithEnvOverrides for that.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// LoadWithEnvOverrides loads configuration from a YAML file and applies
// VEIL_SECTION_FIELD environment variable overrides on top. Environment
// variables always win over file values.
func LoadWithEnvOverrides(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides maps VEIL_SECTION_FIELD variables onto cfg, one per
// scalar field of the documented configuration surface. Unparseable
// numeric and boolean values are ignored; validation of the merged
// result happens in the caller.
func applyEnvOverrides(cfg *Config) {
	if val := os.Getenv("VEIL_SERVER_BIND"); val != "" {
		cfg.Server.Bind = val
	}
	if val := os.Getenv("VEIL_SERVER_WORKERS"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Server.Workers = i
		}
	}
	if val := os.Getenv("VEIL_SERVER_CONCURRENT_LIMIT"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Server.ConcurrentLimit = i
		}
	}
	if val := os.Getenv("VEIL_SERVER_API_PREFIX"); val != "" {
		cfg.Server.APIPrefix = val
	}
	if val := os.Getenv("VEIL_SERVER_AUTH_KEY"); val != "" {
		cfg.Server.AuthKey = val
	}
	if val := os.Getenv("VEIL_SERVER_TLS_CERT"); val != "" {
		cfg.Server.TLSCert = val
	}
	if val := os.Getenv("VEIL_SERVER_TLS_KEY"); val != "" {
		cfg.Server.TLSKey = val
	}

	if val := os.Getenv("VEIL_UPSTREAM_PROXIES"); val != "" {
		cfg.Upstream.Proxies = strings.Split(val, ",")
	}
	if val := os.Getenv("VEIL_UPSTREAM_INTERFACE"); val != "" {
		cfg.Upstream.Interface = val
	}
	if val := os.Getenv("VEIL_UPSTREAM_IPV6_SUBNET"); val != "" {
		cfg.Upstream.IPv6Subnet = val
	}
	if val := os.Getenv("VEIL_UPSTREAM_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Upstream.Timeout = d
		}
	}
	if val := os.Getenv("VEIL_UPSTREAM_CONNECT_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Upstream.ConnectTimeout = d
		}
	}

	if val := os.Getenv("VEIL_CAPTCHA_ENDPOINT"); val != "" {
		cfg.Captcha.Endpoint = val
	}
	if val := os.Getenv("VEIL_CAPTCHA_UPLOAD_KEY"); val != "" {
		cfg.Captcha.UploadKey = val
	}
	if val := os.Getenv("VEIL_CAPTCHA_TURNSTILE_SITE_KEY"); val != "" {
		cfg.Captcha.Turnstile.SiteKey = val
	}
	if val := os.Getenv("VEIL_CAPTCHA_TURNSTILE_SECRET_KEY"); val != "" {
		cfg.Captcha.Turnstile.SecretKey = val
	}
	if val := os.Getenv("VEIL_CAPTCHA_SOLVER_PROVIDER"); val != "" {
		cfg.Captcha.Solver.Provider = val
	}
	if val := os.Getenv("VEIL_CAPTCHA_SOLVER_CLIENT_KEY"); val != "" {
		cfg.Captcha.Solver.ClientKey = val
	}
	if val := os.Getenv("VEIL_CAPTCHA_HAR_CHAT3"); val != "" {
		cfg.Captcha.HarFiles.Chat3 = val
	}
	if val := os.Getenv("VEIL_CAPTCHA_HAR_CHAT4"); val != "" {
		cfg.Captcha.HarFiles.Chat4 = val
	}
	if val := os.Getenv("VEIL_CAPTCHA_HAR_AUTH"); val != "" {
		cfg.Captcha.HarFiles.Auth = val
	}
	if val := os.Getenv("VEIL_CAPTCHA_HAR_PLATFORM"); val != "" {
		cfg.Captcha.HarFiles.Platform = val
	}

	if val := os.Getenv("VEIL_RATELIMIT_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.RateLimit.Enabled = b
		}
	}
	if val := os.Getenv("VEIL_RATELIMIT_STRATEGY"); val != "" {
		cfg.RateLimit.Strategy = val
	}
	if val := os.Getenv("VEIL_RATELIMIT_SQLITE_PATH"); val != "" {
		cfg.RateLimit.SQLitePath = val
	}

	if val := os.Getenv("VEIL_PREAUTH_BIND"); val != "" {
		cfg.Preauth.Bind = val
	}
	if val := os.Getenv("VEIL_PREAUTH_UPSTREAM_PROXY"); val != "" {
		cfg.Preauth.UpstreamProxy = val
	}

	if val := os.Getenv("VEIL_TELEMETRY_LOGGING_LEVEL"); val != "" {
		cfg.Telemetry.Logging.Level = val
	}
	if val := os.Getenv("VEIL_TELEMETRY_LOGGING_FORMAT"); val != "" {
		cfg.Telemetry.Logging.Format = val
	}
	if val := os.Getenv("VEIL_TELEMETRY_METRICS_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Telemetry.Metrics.Enabled = b
		}
	}
}
