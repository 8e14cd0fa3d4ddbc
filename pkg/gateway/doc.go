// Package gateway owns the process-wide coordination context of the
// proxy: the evidence file registry, the preauth credential pool, the
// outbound client pools, and the captcha/solver configuration surface.
//
// The context is constructed exactly once per process, either explicitly
// through Init at startup or lazily on first Instance call, and lives for
// the process lifetime. After construction only the evidence registry and
// the preauth cache mutate; every other field is read-only and exposed
// through borrowing accessors.
package gateway
