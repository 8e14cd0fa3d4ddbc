package tokenbucket

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"veil-hq/veil/pkg/config"
)

// Store persists token buckets keyed by client identity.
type Store interface {
	// Take refills the bucket for key up to now and consumes one token.
	// It reports whether a token was available.
	Take(key string, now time.Time) (bool, error)

	// Cleanup removes buckets not touched since cutoff and returns how
	// many were removed.
	Cleanup(cutoff time.Time) (int64, error)

	// Close releases store resources.
	Close() error
}

// Limiter is a per-key token bucket rate limiter with scheduled pruning
// of idle buckets.
type Limiter struct {
	store  Store
	expire time.Duration
	cron   *cron.Cron
	logger *slog.Logger
}

// New builds a limiter from configuration. The strategy selects the
// store; the cleanup schedule is validated up front so a bad cron
// expression fails at startup rather than silently never pruning.
func New(cfg config.RateLimitConfig, logger *slog.Logger) (*Limiter, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "tokenbucket")

	var store Store
	var err error
	switch cfg.Strategy {
	case "memory":
		store = NewMemoryStore(cfg.Capacity, cfg.FillRate)
	case "sqlite":
		store, err = NewSQLiteStore(cfg.SQLitePath, cfg.Capacity, cfg.FillRate)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown ratelimit strategy %q", cfg.Strategy)
	}

	if _, err := cron.ParseStandard(cfg.CleanupSchedule); err != nil {
		store.Close()
		return nil, fmt.Errorf("invalid cleanup schedule %q: %w", cfg.CleanupSchedule, err)
	}

	l := &Limiter{
		store:  store,
		expire: cfg.Expire,
		cron:   cron.New(),
		logger: logger,
	}

	if _, err := l.cron.AddFunc(cfg.CleanupSchedule, l.runCleanup); err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to schedule bucket cleanup: %w", err)
	}
	l.cron.Start()

	logger.Info("rate limiter started",
		"strategy", cfg.Strategy,
		"capacity", cfg.Capacity,
		"fill_rate", cfg.FillRate,
		"cleanup_schedule", cfg.CleanupSchedule,
	)

	return l, nil
}

// Allow consumes one token from key's bucket and reports whether the
// request is within the limit.
func (l *Limiter) Allow(key string) (bool, error) {
	return l.store.Take(key, time.Now())
}

// runCleanup prunes buckets idle longer than the configured expiry.
func (l *Limiter) runCleanup() {
	removed, err := l.store.Cleanup(time.Now().Add(-l.expire))
	if err != nil {
		l.logger.Error("bucket cleanup failed", "error", err)
		return
	}
	if removed > 0 {
		l.logger.Info("pruned idle buckets", "removed", removed)
	}
}

// Close stops the cleanup scheduler and the store.
func (l *Limiter) Close() error {
	ctx := l.cron.Stop()
	<-ctx.Done()
	return l.store.Close()
}
