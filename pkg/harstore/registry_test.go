package harstore

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"veil-hq/veil/pkg/challenge"
)

func newTestRegistry(t *testing.T, opts Options) *Registry {
	t.Helper()
	if opts.HomeDir == "" {
		opts.HomeDir = t.TempDir()
	}
	if opts.DebounceInterval == 0 {
		opts.DebounceInterval = 10 * time.Millisecond
	}
	r, err := NewRegistry(opts)
	if err != nil {
		t.Fatalf("failed to create registry: %v", err)
	}
	t.Cleanup(r.Close)
	return r
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return cond()
}

func TestBootstrap_CreatesDefaultFiles(t *testing.T) {
	home := t.TempDir()
	r := newTestRegistry(t, Options{HomeDir: home})

	for _, kind := range challenge.Kinds() {
		fresh, path := r.Status(kind)
		if path == "" {
			t.Fatalf("no path for kind %s", kind)
		}
		if _, err := os.Stat(path); err != nil {
			t.Errorf("evidence file for %s should exist after bootstrap: %v", kind, err)
		}
		if fresh {
			t.Errorf("newly created empty file for %s must not be fresh", kind)
		}
		if filepath.Dir(path) != home {
			t.Errorf("default path for %s should live under the home dir, got %q", kind, path)
		}
	}
}

func TestBootstrap_PreexistingContent(t *testing.T) {
	home := t.TempDir()

	nonEmpty := filepath.Join(home, challenge.KindChat3.DefaultHarFilename())
	if err := os.WriteFile(nonEmpty, []byte(`{"log":{}}`), 0644); err != nil {
		t.Fatal(err)
	}
	empty := filepath.Join(home, challenge.KindChat4.DefaultHarFilename())
	if err := os.WriteFile(empty, nil, 0644); err != nil {
		t.Fatal(err)
	}

	r := newTestRegistry(t, Options{HomeDir: home})

	if fresh, _ := r.Status(challenge.KindChat3); !fresh {
		t.Error("pre-existing non-empty file should be fresh")
	}
	if fresh, _ := r.Status(challenge.KindChat4); fresh {
		t.Error("pre-existing empty file must not be fresh")
	}
}

func TestBootstrap_ExplicitPathTrustedFresh(t *testing.T) {
	dir := t.TempDir()
	explicit := filepath.Join(dir, "override.har")
	// Empty on purpose: explicit paths are trusted without inspection.
	if err := os.WriteFile(explicit, nil, 0644); err != nil {
		t.Fatal(err)
	}

	r := newTestRegistry(t, Options{
		Paths: map[challenge.Kind]string{challenge.KindAuth: explicit},
	})

	fresh, path := r.Status(challenge.KindAuth)
	if !fresh {
		t.Error("explicitly configured path must be reported fresh regardless of content")
	}
	if path != explicit {
		t.Errorf("expected explicit path %q, got %q", explicit, path)
	}
}

func TestWatch_ModifyFlipsFreshnessAndInvalidates(t *testing.T) {
	home := t.TempDir()

	var mu sync.Mutex
	var invalidated []string

	r := newTestRegistry(t, Options{
		HomeDir: home,
		Invalidate: func(path string) {
			mu.Lock()
			invalidated = append(invalidated, path)
			mu.Unlock()
		},
	})

	fresh, path := r.Status(challenge.KindPlatform)
	if fresh {
		t.Fatal("file should start stale")
	}

	if err := os.WriteFile(path, []byte(`{"log":{"entries":[]}}`), 0644); err != nil {
		t.Fatal(err)
	}

	ok := waitFor(t, 3*time.Second, func() bool {
		fresh, _ := r.Status(challenge.KindPlatform)
		return fresh
	})
	if !ok {
		t.Fatal("freshness flag was not flipped after file modification")
	}

	ok = waitFor(t, 3*time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(invalidated) >= 1
	})
	if !ok {
		t.Fatal("invalidation callback was not invoked")
	}

	// Let any trailing debounced events settle, then check the count.
	time.Sleep(200 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if len(invalidated) != 1 {
		t.Errorf("expected exactly one invalidation, got %d", len(invalidated))
	}
	if invalidated[0] != path {
		t.Errorf("invalidation called with %q, expected %q", invalidated[0], path)
	}
}

func TestStatus_UnknownKind(t *testing.T) {
	r := newTestRegistry(t, Options{})

	fresh, path := r.Status(challenge.Kind(99))
	if fresh || path != "" {
		t.Errorf("unknown kind should report (false, \"\"), got (%v, %q)", fresh, path)
	}
}

func TestClose_Idempotent(t *testing.T) {
	r := newTestRegistry(t, Options{})
	r.Close()
	r.Close()
}
