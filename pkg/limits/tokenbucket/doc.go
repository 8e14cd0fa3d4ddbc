// Package tokenbucket implements the gateway's optional per-key token
// bucket rate limiter.
//
// Buckets live in a pluggable store: an in-memory map for single-run
// deployments, or SQLite when limits must survive restarts. Idle buckets
// are pruned on a cron schedule so neither store grows unbounded.
package tokenbucket
