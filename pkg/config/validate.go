package config

import (
	"fmt"
	"net"
	"net/url"
)

// Validate checks a configuration for errors that would prevent the
// gateway from starting correctly.
func Validate(cfg *Config) error {
	if _, _, err := net.SplitHostPort(cfg.Server.Bind); err != nil {
		return fmt.Errorf("invalid server bind address %q: %w", cfg.Server.Bind, err)
	}

	if (cfg.Server.TLSCert == "") != (cfg.Server.TLSKey == "") {
		return fmt.Errorf("tls_cert and tls_key must be set together")
	}

	for _, p := range cfg.Upstream.Proxies {
		if _, err := url.Parse(p); err != nil {
			return fmt.Errorf("invalid upstream proxy %q: %w", p, err)
		}
	}
	if cfg.Upstream.Interface != "" && net.ParseIP(cfg.Upstream.Interface) == nil {
		return fmt.Errorf("invalid upstream interface address %q", cfg.Upstream.Interface)
	}
	if cfg.Upstream.IPv6Subnet != "" {
		if _, _, err := net.ParseCIDR(cfg.Upstream.IPv6Subnet); err != nil {
			return fmt.Errorf("invalid ipv6 subnet %q: %w", cfg.Upstream.IPv6Subnet, err)
		}
	}

	if cfg.Captcha.Solver.Provider != "" && cfg.Captcha.Solver.ClientKey == "" {
		return fmt.Errorf("captcha solver %q configured without a client key", cfg.Captcha.Solver.Provider)
	}

	if cfg.RateLimit.Enabled {
		switch cfg.RateLimit.Strategy {
		case "memory", "sqlite":
		default:
			return fmt.Errorf("unknown ratelimit strategy %q (expected memory or sqlite)", cfg.RateLimit.Strategy)
		}
	}

	if cfg.Preauth.Bind != "" {
		if _, _, err := net.SplitHostPort(cfg.Preauth.Bind); err != nil {
			return fmt.Errorf("invalid preauth bind address %q: %w", cfg.Preauth.Bind, err)
		}
	}

	switch cfg.Telemetry.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown logging level %q", cfg.Telemetry.Logging.Level)
	}
	switch cfg.Telemetry.Logging.Format {
	case "json", "text":
	default:
		return fmt.Errorf("unknown logging format %q", cfg.Telemetry.Logging.Format)
	}

	return nil
}
