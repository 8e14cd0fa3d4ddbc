package config

import "time"

// Config is the root configuration for the veil gateway.
type Config struct {
	// Server contains the inbound listener configuration.
	Server ServerConfig `yaml:"server"`

	// Upstream contains outbound client construction settings shared by
	// the request and auth client pools.
	Upstream UpstreamConfig `yaml:"upstream"`

	// Captcha contains challenge evidence, turnstile, and solver settings.
	Captcha CaptchaConfig `yaml:"captcha"`

	// RateLimit contains the optional token-bucket rate limiter settings.
	RateLimit RateLimitConfig `yaml:"ratelimit"`

	// Preauth contains the optional MITM preauth front-end settings. The
	// preauth credential cache exists only when Bind is set.
	Preauth PreauthConfig `yaml:"preauth"`

	// Telemetry contains logging and metrics settings.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig contains the inbound listener configuration.
type ServerConfig struct {
	// Bind is the listen address.
	// Default: "0.0.0.0:7999"
	Bind string `yaml:"bind"`

	// Workers is the worker pool size.
	// Default: 1
	Workers int `yaml:"workers"`

	// ConcurrentLimit caps the number of concurrent inbound requests.
	// Default: 65535
	ConcurrentLimit int `yaml:"concurrent_limit"`

	// APIPrefix is the web UI API path prefix. Empty means no prefix.
	APIPrefix string `yaml:"api_prefix"`

	// TLSCert and TLSKey are the listener certificate paths. Both empty
	// means plain HTTP.
	TLSCert string `yaml:"tls_cert"`
	TLSKey  string `yaml:"tls_key"`

	// AuthKey protects the login endpoints. Empty means open access.
	AuthKey string `yaml:"auth_key"`
}

// UpstreamConfig contains outbound client construction settings.
type UpstreamConfig struct {
	// Proxies lists upstream proxy URLs for outbound traffic.
	Proxies []string `yaml:"proxies"`

	// DisableDirect omits the direct (non-proxied) outbound client.
	// Default: false
	DisableDirect bool `yaml:"disable_direct"`

	// CookieStore attaches an in-memory cookie jar to outbound clients.
	// Default: false
	CookieStore bool `yaml:"cookie_store"`

	// Interface is the local IP to bind outgoing connections to.
	Interface string `yaml:"interface"`

	// IPv6Subnet is a CIDR prefix to draw random outbound source
	// addresses from.
	IPv6Subnet string `yaml:"ipv6_subnet"`

	// TCPKeepalive is the dialer keepalive interval.
	// Default: 75s
	TCPKeepalive time.Duration `yaml:"tcp_keepalive"`

	// PoolIdleTimeout is how long idle connections are kept alive.
	// Default: 90s
	PoolIdleTimeout time.Duration `yaml:"pool_idle_timeout"`

	// Timeout is the whole-request client timeout.
	// Default: 600s
	Timeout time.Duration `yaml:"timeout"`

	// ConnectTimeout bounds dial time.
	// Default: 60s
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
}

// CaptchaConfig contains challenge evidence and solver settings.
type CaptchaConfig struct {
	// Endpoint overrides the challenge provider endpoint URL.
	Endpoint string `yaml:"endpoint"`

	// Turnstile holds the interactive captcha key pair. The gateway
	// exposes a turnstile configuration only when both keys are set.
	Turnstile TurnstileConfig `yaml:"turnstile"`

	// HarFiles contains explicit evidence file path overrides per
	// challenge kind. Unset paths fall back to fixed filenames under the
	// home directory.
	HarFiles HarFilesConfig `yaml:"har_files"`

	// UploadKey authenticates evidence file uploads. Empty disables
	// authenticated uploads.
	UploadKey string `yaml:"upload_key"`

	// Solver describes the external captcha solving service.
	Solver SolverConfig `yaml:"solver"`
}

// TurnstileConfig is the interactive captcha key pair.
type TurnstileConfig struct {
	SiteKey   string `yaml:"site_key"`
	SecretKey string `yaml:"secret_key"`
}

// HarFilesConfig contains per-kind evidence file path overrides.
type HarFilesConfig struct {
	Chat3    string `yaml:"chat3"`
	Chat4    string `yaml:"chat4"`
	Auth     string `yaml:"auth"`
	Platform string `yaml:"platform"`
}

// SolverConfig describes the external captcha solving service. The
// gateway passes it through opaquely.
type SolverConfig struct {
	// Provider names the solving service. Empty disables solving.
	Provider string `yaml:"provider"`

	// ClientKey authenticates against the solving service.
	ClientKey string `yaml:"client_key"`

	// Endpoint overrides the service's default submit URL.
	Endpoint string `yaml:"endpoint"`

	// Limit caps image answers submitted per task.
	// Default: 3
	Limit int `yaml:"limit"`
}

// RateLimitConfig contains the optional token-bucket rate limiter
// settings.
type RateLimitConfig struct {
	// Enabled turns the rate limiter on.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Strategy selects the bucket store: "memory" or "sqlite".
	// Default: "memory"
	Strategy string `yaml:"strategy"`

	// SQLitePath is the bucket database path when Strategy is "sqlite".
	// Default: "veil-ratelimit.db"
	SQLitePath string `yaml:"sqlite_path"`

	// Capacity is the bucket size in tokens.
	// Default: 60
	Capacity uint32 `yaml:"capacity"`

	// FillRate is tokens added per second.
	// Default: 1
	FillRate uint32 `yaml:"fill_rate"`

	// Expire is how long an idle bucket is retained.
	// Default: 24h
	Expire time.Duration `yaml:"expire"`

	// CleanupSchedule is the cron expression for pruning idle buckets.
	// Default: "0 */6 * * *"
	CleanupSchedule string `yaml:"cleanup_schedule"`
}

// PreauthConfig contains the MITM preauth front-end settings. Only Bind
// matters to this module: a non-empty bind address enables the preauth
// credential cache. The remaining fields are consumed by the front-end
// itself.
type PreauthConfig struct {
	// Bind is the MITM listener address. Empty disables preauth.
	Bind string `yaml:"bind"`

	// UpstreamProxy forwards intercepted traffic through a proxy.
	UpstreamProxy string `yaml:"upstream_proxy"`

	// CACert and CAKey are the interception CA material paths.
	CACert string `yaml:"ca_cert"`
	CAKey  string `yaml:"ca_key"`
}

// TelemetryConfig contains logging and metrics settings.
type TelemetryConfig struct {
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// LoggingConfig contains structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	// Default: "info"
	Level string `yaml:"level"`

	// Format is "json" or "text".
	// Default: "json"
	Format string `yaml:"format"`

	// AddSource includes file:line in log records.
	// Default: false
	AddSource bool `yaml:"add_source"`
}

// MetricsConfig contains prometheus exposition settings.
type MetricsConfig struct {
	// Enabled turns the metrics endpoint on.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Path is the exposition path.
	// Default: "/metrics"
	Path string `yaml:"path"`

	// Namespace prefixes every metric name.
	// Default: "veil"
	Namespace string `yaml:"namespace"`
}
