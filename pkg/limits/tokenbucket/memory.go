package tokenbucket

import (
	"sync"
	"time"
)

type bucket struct {
	tokens  float64
	touched time.Time
}

// MemoryStore keeps buckets in a mutex-guarded map. Suitable for a
// single process; state is lost on restart.
type MemoryStore struct {
	mu       sync.Mutex
	buckets  map[string]*bucket
	capacity float64
	fillRate float64
}

// NewMemoryStore creates an in-memory bucket store.
func NewMemoryStore(capacity, fillRate uint32) *MemoryStore {
	return &MemoryStore{
		buckets:  make(map[string]*bucket),
		capacity: float64(capacity),
		fillRate: float64(fillRate),
	}
}

// Take refills key's bucket and consumes one token if available.
func (s *MemoryStore) Take(key string, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.buckets[key]
	if !ok {
		b = &bucket{tokens: s.capacity, touched: now}
		s.buckets[key] = b
	} else {
		elapsed := now.Sub(b.touched).Seconds()
		if elapsed > 0 {
			b.tokens = min(s.capacity, b.tokens+elapsed*s.fillRate)
		}
		b.touched = now
	}

	if b.tokens < 1 {
		return false, nil
	}
	b.tokens--
	return true, nil
}

// Cleanup removes buckets not touched since cutoff.
func (s *MemoryStore) Cleanup(cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed int64
	for key, b := range s.buckets {
		if b.touched.Before(cutoff) {
			delete(s.buckets, key)
			removed++
		}
	}
	return removed, nil
}

// Close clears the map.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.buckets = make(map[string]*bucket)
	return nil
}
