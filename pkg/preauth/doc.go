// Package preauth pools short-lived pre-authentication credentials
// harvested by the TLS-interception front-end.
//
// The cache is bounded by entry count and by age since insertion; both
// bounds are enforced lazily at access time rather than by a background
// sweep. Pop draws one live entry uniformly at random and does not remove
// it: the pool is shared across concurrent sessions, and random selection
// spreads reuse of a limited credential set instead of exhausting one
// entry repeatedly.
package preauth
