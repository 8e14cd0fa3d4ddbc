package challenge

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// Template is a request blueprint extracted from a captured HAR file:
// the challenge submit request the browser originally made, replayed by
// the proxy to satisfy the bot-detection flow.
type Template struct {
	URL     string
	Method  string
	Headers map[string]string
	Body    string
}

// Cache holds parsed HAR templates keyed by evidence file path. Parsing a
// HAR file is comparatively expensive, so templates are computed once and
// reused until the underlying file changes, at which point the watch
// dispatcher calls Clear with the changed path.
type Cache struct {
	mu        sync.RWMutex
	templates map[string]*Template
	logger    *slog.Logger
}

// NewCache creates an empty template cache.
func NewCache(logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{
		templates: make(map[string]*Template),
		logger:    logger.With("component", "challenge.cache"),
	}
}

// Template returns the parsed template for the HAR file at path, parsing
// and caching it on first use. Concurrent callers for the same path may
// both parse; the result is identical and last-write-wins is harmless.
func (c *Cache) Template(path string) (*Template, error) {
	c.mu.RLock()
	tpl, ok := c.templates[path]
	c.mu.RUnlock()
	if ok {
		return tpl, nil
	}

	tpl, err := parseHar(path)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.templates[path] = tpl
	c.mu.Unlock()

	c.logger.Debug("HAR template parsed", "path", path)
	return tpl, nil
}

// Clear discards the cached template for path. Called by the evidence
// watch dispatcher when the file changes on disk. Clearing an unknown
// path is a no-op.
func (c *Cache) Clear(path string) {
	c.mu.Lock()
	_, ok := c.templates[path]
	delete(c.templates, path)
	c.mu.Unlock()

	if ok {
		c.logger.Info("HAR template invalidated", "path", path)
	}
}

// Len returns the number of cached templates.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.templates)
}

// harFile mirrors the subset of the HAR 1.2 format this package reads.
// Everything else in the capture is treated as opaque.
type harFile struct {
	Log struct {
		Entries []struct {
			Request struct {
				Method  string `json:"method"`
				URL     string `json:"url"`
				Headers []struct {
					Name  string `json:"name"`
					Value string `json:"value"`
				} `json:"headers"`
				PostData struct {
					Text string `json:"text"`
				} `json:"postData"`
			} `json:"request"`
		} `json:"entries"`
	} `json:"log"`
}

// parseHar extracts the challenge submit request from a HAR capture:
// the first POST entry whose URL contains the public key submit path.
func parseHar(path string) (*Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read HAR file %q: %w", path, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("HAR file %q is empty", path)
	}

	var har harFile
	if err := json.Unmarshal(data, &har); err != nil {
		return nil, fmt.Errorf("failed to parse HAR file %q: %w", path, err)
	}

	for _, entry := range har.Log.Entries {
		req := entry.Request
		if req.Method != "POST" || !strings.Contains(req.URL, "fc/gt2/public_key") {
			continue
		}

		headers := make(map[string]string, len(req.Headers))
		for _, h := range req.Headers {
			// HTTP/2 pseudo-headers are not replayable.
			if strings.HasPrefix(h.Name, ":") {
				continue
			}
			headers[h.Name] = h.Value
		}

		return &Template{
			URL:     req.URL,
			Method:  req.Method,
			Headers: headers,
			Body:    req.PostData.Text,
		}, nil
	}

	return nil, fmt.Errorf("no challenge submit request found in HAR file %q", path)
}
