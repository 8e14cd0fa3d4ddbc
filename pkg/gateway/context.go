package gateway

import (
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"veil-hq/veil/pkg/balancer"
	"veil-hq/veil/pkg/challenge"
	"veil-hq/veil/pkg/config"
	"veil-hq/veil/pkg/harstore"
	"veil-hq/veil/pkg/limits/tokenbucket"
	"veil-hq/veil/pkg/preauth"
	"veil-hq/veil/pkg/telemetry/metrics"
)

var (
	// instanceMu protects instance; initOnce guarantees exactly-once
	// construction under concurrent first access.
	instanceMu sync.RWMutex
	instance   *Context
	initOnce   sync.Once

	// defaultConfigFn supplies the configuration used when the context is
	// constructed lazily. Overridden in tests.
	defaultConfigFn = config.Default
)

// Turnstile is the interactive captcha key pair. It exists only when both
// keys were configured; there is no partially-configured state.
type Turnstile struct {
	SiteKey   string
	SecretKey string
}

// Context is the shared runtime core of the gateway. It is constructed
// exactly once per process and never mutated afterwards except through
// the evidence registry and preauth cache, which are built for concurrent
// mutation.
type Context struct {
	clients     *balancer.Pool
	authClients *balancer.Pool

	solver          *challenge.Solver
	uploadKey       string
	authKey         string
	turnstile       *Turnstile
	apiPrefix       string
	captchaEndpoint string

	hars     *harstore.Registry
	harCache *challenge.Cache
	preauth  *preauth.Cache
	limiter  *tokenbucket.Limiter

	metrics  *metrics.Metrics
	registry *prometheus.Registry
	logger   *slog.Logger
}

// Init constructs and publishes the singleton context from cfg. It must
// be called at most once: a second call reports an error and leaves the
// first-published instance untouched. Construction failures are fatal to
// startup and are returned, not retried.
func Init(cfg *config.Config, logger *slog.Logger) error {
	var initErr error
	ran := false

	initOnce.Do(func() {
		ran = true
		ctx, err := newContext(cfg, logger)
		if err != nil {
			initErr = err
			return
		}
		instanceMu.Lock()
		instance = ctx
		instanceMu.Unlock()
	})

	if !ran {
		return fmt.Errorf("gateway context already initialized")
	}
	return initErr
}

// Instance returns the published context, constructing it from default
// configuration if Init was never called. Concurrent first access runs
// the constructor exactly once; construction side effects (evidence file
// bootstrap, watch registration) happen at most once per process.
// It panics if construction fails, since a process without its context
// cannot run.
func Instance() *Context {
	initOnce.Do(func() {
		ctx, err := newContext(defaultConfigFn(), nil)
		if err != nil {
			panic(fmt.Sprintf("failed to construct gateway context: %v", err))
		}
		instanceMu.Lock()
		instance = ctx
		instanceMu.Unlock()
	})

	instanceMu.RLock()
	defer instanceMu.RUnlock()
	if instance == nil {
		panic("gateway context initialization failed")
	}
	return instance
}

func newContext(cfg *config.Config, logger *slog.Logger) (*Context, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "gateway")

	ctx := &Context{
		solver:          solverFromConfig(cfg.Captcha.Solver),
		uploadKey:       cfg.Captcha.UploadKey,
		authKey:         cfg.Server.AuthKey,
		apiPrefix:       cfg.Server.APIPrefix,
		captchaEndpoint: cfg.Captcha.Endpoint,
		logger:          logger,
	}

	if cfg.Captcha.Turnstile.SiteKey != "" && cfg.Captcha.Turnstile.SecretKey != "" {
		ctx.turnstile = &Turnstile{
			SiteKey:   cfg.Captcha.Turnstile.SiteKey,
			SecretKey: cfg.Captcha.Turnstile.SecretKey,
		}
	}

	if cfg.Telemetry.Metrics.Enabled {
		ctx.registry = prometheus.NewRegistry()
		ctx.metrics = metrics.New(cfg.Telemetry.Metrics.Namespace, ctx.registry)
	}

	ctx.harCache = challenge.NewCache(logger)

	hars, err := harstore.NewRegistry(harstore.Options{
		Paths: map[challenge.Kind]string{
			challenge.KindChat3:    cfg.Captcha.HarFiles.Chat3,
			challenge.KindChat4:    cfg.Captcha.HarFiles.Chat4,
			challenge.KindAuth:     cfg.Captcha.HarFiles.Auth,
			challenge.KindPlatform: cfg.Captcha.HarFiles.Platform,
		},
		Invalidate: ctx.harCache.Clear,
		OnReload:   ctx.observeReload,
		Logger:     logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize evidence registry: %w", err)
	}
	ctx.hars = hars

	if ctx.metrics != nil {
		for _, kind := range challenge.Kinds() {
			fresh, _ := hars.Status(kind)
			ctx.metrics.HarFresh.WithLabelValues(kind.String()).Set(boolGauge(fresh))
		}
	}

	poolOpts := balancer.Options{
		Proxies:         cfg.Upstream.Proxies,
		DisableDirect:   cfg.Upstream.DisableDirect,
		CookieStore:     cfg.Upstream.CookieStore,
		Interface:       cfg.Upstream.Interface,
		IPv6Subnet:      cfg.Upstream.IPv6Subnet,
		Timeout:         cfg.Upstream.Timeout,
		ConnectTimeout:  cfg.Upstream.ConnectTimeout,
		TCPKeepalive:    cfg.Upstream.TCPKeepalive,
		PoolIdleTimeout: cfg.Upstream.PoolIdleTimeout,
		Logger:          logger,
	}

	ctx.clients, err = balancer.New(poolOpts)
	if err != nil {
		hars.Close()
		return nil, fmt.Errorf("failed to initialize the request client pool: %w", err)
	}

	// The auth pool never shares cookie state with request traffic.
	authOpts := poolOpts
	authOpts.CookieStore = false
	ctx.authClients, err = balancer.New(authOpts)
	if err != nil {
		hars.Close()
		return nil, fmt.Errorf("failed to initialize the auth client pool: %w", err)
	}

	if cfg.Preauth.Bind != "" {
		logger.Info("preauth MITM front-end enabled", "bind", cfg.Preauth.Bind)
		ctx.preauth = preauth.New(preauth.DefaultCapacity, preauth.DefaultTTL, logger)
	}

	if cfg.RateLimit.Enabled {
		ctx.limiter, err = tokenbucket.New(cfg.RateLimit, logger)
		if err != nil {
			hars.Close()
			return nil, fmt.Errorf("failed to initialize rate limiter: %w", err)
		}
	}

	return ctx, nil
}

func solverFromConfig(cfg config.SolverConfig) *challenge.Solver {
	if cfg.Provider == "" {
		return nil
	}
	return &challenge.Solver{
		Provider:  cfg.Provider,
		ClientKey: cfg.ClientKey,
		Endpoint:  cfg.Endpoint,
		Limit:     cfg.Limit,
	}
}

// observeReload records an evidence reload in the metrics, when enabled.
func (c *Context) observeReload(kind challenge.Kind) {
	if c.metrics == nil {
		return
	}
	c.metrics.HarReloads.WithLabelValues(kind.String()).Inc()
	c.metrics.HarFresh.WithLabelValues(kind.String()).Set(1)
}

// Client returns the next request client from the load-balanced pool.
// Calling it before the context is constructed is a wiring error and
// panics.
func (c *Context) Client() *http.Client {
	if c.clients == nil {
		panic("gateway: request client pool is not initialized")
	}
	return c.clients.Next()
}

// AuthClient returns the next auth client from the load-balanced pool.
// Calling it before the context is constructed is a wiring error and
// panics.
func (c *Context) AuthClient() *http.Client {
	if c.authClients == nil {
		panic("gateway: auth client pool is not initialized")
	}
	return c.authClients.Next()
}

// HarStatus returns a copy of the freshness flag and path of kind's
// evidence file.
func (c *Context) HarStatus(kind challenge.Kind) (fresh bool, path string) {
	return c.hars.Status(kind)
}

// HarTemplate returns the cached challenge request template parsed from
// kind's evidence file, parsing it on first use.
func (c *Context) HarTemplate(kind challenge.Kind) (*challenge.Template, error) {
	_, path := c.hars.Status(kind)
	return c.harCache.Template(path)
}

// UploadKey returns the evidence upload authentication key; empty means
// uploads are unauthenticated.
func (c *Context) UploadKey() string { return c.uploadKey }

// AuthKey returns the login authentication key; empty means open access.
func (c *Context) AuthKey() string { return c.authKey }

// APIPrefix returns the web UI API path prefix.
func (c *Context) APIPrefix() string { return c.apiPrefix }

// CaptchaEndpoint returns the challenge provider endpoint override.
func (c *Context) CaptchaEndpoint() string { return c.captchaEndpoint }

// Solver returns the captcha solver handle, or nil when solving is not
// configured.
func (c *Context) Solver() *challenge.Solver { return c.solver }

// Turnstile returns the interactive captcha key pair, or nil when not
// configured.
func (c *Context) Turnstile() *Turnstile { return c.turnstile }

// RateLimiter returns the token bucket limiter, or nil when rate
// limiting is disabled.
func (c *Context) RateLimiter() *tokenbucket.Limiter { return c.limiter }

// AllowRequest consumes one rate limit token for key and reports whether
// the request is within the limit, recording the decision in the
// metrics. Always true when rate limiting is disabled.
func (c *Context) AllowRequest(key string) (bool, error) {
	if c.limiter == nil {
		return true, nil
	}
	allowed, err := c.limiter.Allow(key)
	if err != nil {
		return false, err
	}
	if c.metrics != nil {
		outcome := "allow"
		if !allowed {
			outcome = "deny"
		}
		c.metrics.RateLimitRequests.WithLabelValues(outcome).Inc()
	}
	return allowed, nil
}

// MetricsRegistry returns the prometheus registry, or nil when metrics
// are disabled.
func (c *Context) MetricsRegistry() *prometheus.Registry { return c.registry }

// PushPreauthCookie pools a credential captured by the MITM front-end.
// A no-op when preauth is disabled or a live entry for key exists.
func (c *Context) PushPreauthCookie(key, value string) {
	if c.preauth == nil {
		return
	}
	if _, inserted := c.preauth.Push(key, value); inserted && c.metrics != nil {
		c.metrics.PreauthPushes.Inc()
	}
	c.syncPreauthGauge()
}

// PopPreauthCookie returns one pooled credential chosen uniformly at
// random among the live entries, without removing it. It reports false
// when preauth is disabled or the pool is empty.
func (c *Context) PopPreauthCookie() (string, bool) {
	if c.preauth == nil {
		return "", false
	}
	v, ok := c.preauth.Pop()
	if ok && c.metrics != nil {
		c.metrics.PreauthPops.Inc()
	}
	c.syncPreauthGauge()
	return v, ok
}

// HasPreauthCookie reports whether at least one live credential is
// pooled. Always false when preauth is disabled.
func (c *Context) HasPreauthCookie() bool {
	if c.preauth == nil {
		return false
	}
	ok := c.preauth.Has()
	c.syncPreauthGauge()
	return ok
}

// syncPreauthGauge re-reads the live entry count so the gauge tracks
// lazy expiry, not just successful pushes.
func (c *Context) syncPreauthGauge() {
	if c.metrics == nil {
		return
	}
	c.metrics.PreauthEntries.Set(float64(c.preauth.Len()))
}

// Close releases the evidence watches and stops the rate limiter. It is
// called at process teardown; failures inside are logged by the
// subsystems, not returned.
func (c *Context) Close() {
	if c.hars != nil {
		c.hars.Close()
	}
	if c.limiter != nil {
		if err := c.limiter.Close(); err != nil {
			c.logger.Warn("failed to close rate limiter", "error", err)
		}
	}
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
