package preauth

import (
	"log/slog"
	"math/rand"
	"sync"
	"time"
)

const (
	// DefaultCapacity bounds the number of pooled credentials so
	// MITM-captured cookies cannot accumulate without limit.
	DefaultCapacity = 1000

	// DefaultTTL bounds credential age to its practical validity window.
	DefaultTTL = 24 * time.Hour
)

type entry struct {
	value      string
	insertedAt time.Time
}

// Cache is a capacity- and TTL-bounded credential pool. It is safe for
// concurrent use; callers need no external locking.
type Cache struct {
	mu       sync.RWMutex
	entries  map[string]entry
	capacity int
	ttl      time.Duration
	logger   *slog.Logger

	// now is swapped in tests to control expiry.
	now func() time.Time
}

// New creates a credential cache with the given bounds. Non-positive
// capacity or TTL fall back to the defaults.
func New(capacity int, ttl time.Duration, logger *slog.Logger) *Cache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{
		entries:  make(map[string]entry),
		capacity: capacity,
		ttl:      ttl,
		logger:   logger.With("component", "preauth.cache"),
		now:      time.Now,
	}
}

// Push inserts a credential if no live entry for key exists. It returns
// the value now pooled under key and whether an insert happened.
// Re-pushing a key with a live entry is a no-op that hands back the
// existing value: overlapping capture events from the front-end must not
// overwrite or re-log an existing credential.
func (c *Cache) Push(key, value string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok && !c.expired(e) {
		return e.value, false
	}

	c.prune()
	if len(c.entries) >= c.capacity {
		c.evictOldest()
	}

	c.entries[key] = entry{value: value, insertedAt: c.now()}
	c.logger.Info("preauth credential pooled", "key", key)
	return value, true
}

// Pop returns one live credential selected uniformly at random, without
// removing it. It returns false if no live entry exists.
func (c *Cache) Pop() (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	live := make([]string, 0, len(c.entries))
	for _, e := range c.entries {
		if !c.expired(e) {
			live = append(live, e.value)
		}
	}
	if len(live) == 0 {
		return "", false
	}
	return live[rand.Intn(len(live))], true
}

// Has reports whether at least one live credential is pooled. Used as a
// readiness gate before attempting preauth-based flows.
func (c *Cache) Has() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, e := range c.entries {
		if !c.expired(e) {
			return true
		}
	}
	return false
}

// Len returns the number of live entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	n := 0
	for _, e := range c.entries {
		if !c.expired(e) {
			n++
		}
	}
	return n
}

func (c *Cache) expired(e entry) bool {
	return c.now().Sub(e.insertedAt) > c.ttl
}

// prune removes expired entries. Caller holds the write lock.
func (c *Cache) prune() {
	for k, e := range c.entries {
		if c.expired(e) {
			delete(c.entries, k)
		}
	}
}

// evictOldest removes the entry with the earliest insertion time to make
// room at capacity. Caller holds the write lock.
func (c *Cache) evictOldest() {
	var oldestKey string
	var oldestAt time.Time
	first := true
	for k, e := range c.entries {
		if first || e.insertedAt.Before(oldestAt) {
			oldestKey, oldestAt = k, e.insertedAt
			first = false
		}
	}
	if !first {
		delete(c.entries, oldestKey)
	}
}
