package challenge

import (
	"fmt"
	"strings"
)

// Solver is an opaque handle to an external captcha solving service.
// The gateway core passes it through unchanged; the solving protocol is
// implemented by the proxy's handler layer.
type Solver struct {
	// Provider names the solving service (e.g. "yescaptcha", "capsolver").
	Provider string

	// ClientKey authenticates against the solving service.
	ClientKey string

	// Endpoint overrides the service's default submit URL. Empty means the
	// handler layer uses the provider default.
	Endpoint string

	// Limit caps the number of image answers submitted per task.
	Limit int
}

// ParseSolver parses the "provider:client_key" form used on the command
// line and in configuration. Endpoint and limit are carried separately.
func ParseSolver(s string) (*Solver, error) {
	provider, key, ok := strings.Cut(s, ":")
	if !ok || provider == "" || key == "" {
		return nil, fmt.Errorf("invalid solver %q: expected provider:client_key", s)
	}
	return &Solver{Provider: provider, ClientKey: key}, nil
}

// String implements fmt.Stringer without exposing the client key.
func (s *Solver) String() string {
	return s.Provider
}
