package harstore

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"veil-hq/veil/pkg/challenge"
)

// InvalidateFunc is told that the evidence file at path changed so it can
// purge any cached artifacts derived from its previous content. It is
// called synchronously from the watch dispatcher and must be fast.
type InvalidateFunc func(path string)

// DefaultDebounceInterval coalesces the burst of filesystem events a
// single logical write produces into one invalidation.
const DefaultDebounceInterval = 100 * time.Millisecond

// record tracks one challenge kind's evidence file.
type record struct {
	path  string
	fresh bool
}

// Options configures a Registry.
type Options struct {
	// Paths contains explicit evidence file overrides per kind. An
	// explicitly configured path is trusted as fresh without inspection.
	Paths map[challenge.Kind]string

	// HomeDir overrides the directory default evidence files live under.
	// Empty means the current user's home directory.
	HomeDir string

	// Invalidate is called with the changed file's path after a
	// modification flips that kind's freshness flag.
	Invalidate InvalidateFunc

	// OnReload is an optional hook invoked with the kind whose file
	// changed, after invalidation. Used for metrics.
	OnReload func(kind challenge.Kind)

	// DebounceInterval overrides DefaultDebounceInterval.
	DebounceInterval time.Duration

	Logger *slog.Logger
}

// Registry holds one evidence record per challenge kind behind a single
// reader/writer lock, plus the shared filesystem watcher. Records and
// watches live for the registry's lifetime; Close releases the watches.
type Registry struct {
	mu      sync.RWMutex
	records map[challenge.Kind]*record
	byPath  map[string]challenge.Kind

	watcher    *fsnotify.Watcher
	invalidate InvalidateFunc
	onReload   func(challenge.Kind)
	logger     *slog.Logger

	debounceInterval time.Duration
	timersMu         sync.Mutex
	timers           map[string]*time.Timer

	closeOnce sync.Once
	done      chan struct{}
}

// NewRegistry bootstraps the evidence file for every challenge kind and
// starts watching them. Any file or watch setup failure is returned as an
// error: the evidence mechanism cannot silently degrade at startup.
func NewRegistry(opts Options) (*Registry, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "harstore")

	invalidate := opts.Invalidate
	if invalidate == nil {
		invalidate = func(string) {}
	}

	interval := opts.DebounceInterval
	if interval <= 0 {
		interval = DefaultDebounceInterval
	}

	home := opts.HomeDir
	if home == "" {
		var err error
		home, err = os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve home directory: %w", err)
		}
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	r := &Registry{
		records:          make(map[challenge.Kind]*record, len(challenge.Kinds())),
		byPath:           make(map[string]challenge.Kind, len(challenge.Kinds())),
		watcher:          watcher,
		invalidate:       invalidate,
		onReload:         opts.OnReload,
		logger:           logger,
		debounceInterval: interval,
		timers:           make(map[string]*time.Timer),
		done:             make(chan struct{}),
	}

	for _, kind := range challenge.Kinds() {
		rec, err := bootstrap(kind, opts.Paths[kind], home, logger)
		if err != nil {
			watcher.Close()
			return nil, err
		}
		if err := watcher.Add(rec.path); err != nil {
			watcher.Close()
			return nil, fmt.Errorf("failed to watch evidence file %q: %w", rec.path, err)
		}
		r.records[kind] = rec
		r.byPath[rec.path] = kind
		logger.Info("evidence file registered",
			"kind", kind.String(),
			"path", rec.path,
			"fresh", rec.fresh,
		)
	}

	go r.run()

	return r, nil
}

// bootstrap resolves and prepares one kind's evidence file.
//
// An explicit path is trusted as fresh without inspecting its content.
// The default path is read if it exists (fresh iff non-empty) and created
// empty otherwise (not fresh until the first external write).
func bootstrap(kind challenge.Kind, explicit, home string, logger *slog.Logger) (*record, error) {
	if explicit != "" {
		return &record{path: filepath.Clean(explicit), fresh: true}, nil
	}

	path := filepath.Join(home, kind.DefaultHarFilename())
	info, err := os.Stat(path)
	switch {
	case err == nil && !info.IsDir():
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read evidence file %q: %w", path, err)
		}
		return &record{path: path, fresh: len(data) > 0}, nil
	case os.IsNotExist(err):
		logger.Info("creating empty evidence file", "kind", kind.String(), "path", path)
		f, err := os.Create(path)
		if err != nil {
			return nil, fmt.Errorf("failed to create evidence file %q: %w", path, err)
		}
		if err := f.Close(); err != nil {
			return nil, fmt.Errorf("failed to close evidence file %q: %w", path, err)
		}
		return &record{path: path, fresh: false}, nil
	case err != nil:
		return nil, fmt.Errorf("failed to stat evidence file %q: %w", path, err)
	default:
		return nil, fmt.Errorf("evidence path %q is a directory", path)
	}
}

// Status returns a copy of the freshness flag and path for kind. It
// blocks only on the lock, never on file I/O.
func (r *Registry) Status(kind challenge.Kind) (fresh bool, path string) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.records[kind]
	if !ok {
		return false, ""
	}
	return rec.fresh, rec.path
}

// run is the watch dispatcher loop. It executes outside the request path
// and must not block: freshness flips are in-memory, and invalidation is
// a local purge.
func (r *Registry) run() {
	for {
		select {
		case <-r.done:
			return

		case event, ok := <-r.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			r.schedule(filepath.Clean(event.Name))

		case err, ok := <-r.watcher.Errors:
			if !ok {
				return
			}
			r.logger.Error("evidence watcher error", "error", err)
		}
	}
}

// schedule arms (or re-arms) the per-path debounce timer so a burst of
// events for one write yields a single handleChange call.
func (r *Registry) schedule(path string) {
	r.timersMu.Lock()
	defer r.timersMu.Unlock()

	if t, ok := r.timers[path]; ok {
		t.Reset(r.debounceInterval)
		return
	}
	r.timers[path] = time.AfterFunc(r.debounceInterval, func() {
		select {
		case <-r.done:
			return
		default:
		}
		r.timersMu.Lock()
		delete(r.timers, path)
		r.timersMu.Unlock()
		r.handleChange(path)
	})
}

// handleChange flips the owning kind's freshness flag under the write
// lock, then invalidates derived artifacts outside it.
func (r *Registry) handleChange(path string) {
	r.mu.Lock()
	kind, ok := r.byPath[path]
	if ok {
		r.records[kind].fresh = true
	}
	r.mu.Unlock()

	if !ok {
		r.logger.Warn("change event for unregistered path", "path", path)
		return
	}

	r.logger.Info("evidence file changed", "kind", kind.String(), "path", path)
	r.invalidate(path)
	if r.onReload != nil {
		r.onReload(kind)
	}
}

// Close stops the dispatcher and releases every file watch. Unwatch
// failures are logged, not returned: cleanup is best-effort and does not
// affect correctness of anything that ran before it.
func (r *Registry) Close() {
	r.closeOnce.Do(func() {
		close(r.done)

		r.timersMu.Lock()
		for path, t := range r.timers {
			t.Stop()
			delete(r.timers, path)
		}
		r.timersMu.Unlock()

		r.mu.RLock()
		for _, rec := range r.records {
			if err := r.watcher.Remove(rec.path); err != nil {
				r.logger.Warn("failed to unwatch evidence file", "path", rec.path, "error", err)
			}
		}
		r.mu.RUnlock()

		if err := r.watcher.Close(); err != nil {
			r.logger.Warn("failed to close evidence watcher", "error", err)
		}
	})
}
