package tokenbucket

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

const bucketSchema = `
CREATE TABLE IF NOT EXISTS ratelimit_buckets (
	key        TEXT PRIMARY KEY,
	tokens     REAL NOT NULL,
	touched_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_ratelimit_buckets_touched
	ON ratelimit_buckets (touched_at);
`

// SQLiteStore persists buckets in a SQLite database so limits survive
// restarts. WAL mode keeps concurrent takes cheap; a single writer at a
// time is enforced by the mutex since Take is read-modify-write.
type SQLiteStore struct {
	db       *sql.DB
	mu       sync.Mutex
	capacity float64
	fillRate float64

	selectStmt  *sql.Stmt
	upsertStmt  *sql.Stmt
	cleanupStmt *sql.Stmt

	closeOnce sync.Once
}

// NewSQLiteStore opens (creating if needed) the bucket database at path.
func NewSQLiteStore(path string, capacity, fillRate uint32) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open bucket database %q: %w", path, err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.Exec(bucketSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create bucket schema: %w", err)
	}

	s := &SQLiteStore{
		db:       db,
		capacity: float64(capacity),
		fillRate: float64(fillRate),
	}

	if s.selectStmt, err = db.Prepare(
		"SELECT tokens, touched_at FROM ratelimit_buckets WHERE key = ?"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to prepare select: %w", err)
	}
	if s.upsertStmt, err = db.Prepare(
		`INSERT INTO ratelimit_buckets (key, tokens, touched_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET tokens = excluded.tokens, touched_at = excluded.touched_at`); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to prepare upsert: %w", err)
	}
	if s.cleanupStmt, err = db.Prepare(
		"DELETE FROM ratelimit_buckets WHERE touched_at < ?"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to prepare cleanup: %w", err)
	}

	return s, nil
}

// Take refills key's bucket and consumes one token if available.
func (s *SQLiteStore) Take(key string, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tokens := s.capacity
	var touchedAt int64
	err := s.selectStmt.QueryRow(key).Scan(&tokens, &touchedAt)
	switch {
	case err == sql.ErrNoRows:
		// New bucket starts full.
	case err != nil:
		return false, fmt.Errorf("failed to load bucket %q: %w", key, err)
	default:
		elapsed := now.Sub(time.Unix(touchedAt, 0)).Seconds()
		if elapsed > 0 {
			tokens = min(s.capacity, tokens+elapsed*s.fillRate)
		}
	}

	allowed := tokens >= 1
	if allowed {
		tokens--
	}

	if _, err := s.upsertStmt.Exec(key, tokens, now.Unix()); err != nil {
		return false, fmt.Errorf("failed to save bucket %q: %w", key, err)
	}
	return allowed, nil
}

// Cleanup removes buckets not touched since cutoff.
func (s *SQLiteStore) Cleanup(cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.cleanupStmt.Exec(cutoff.Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to prune buckets: %w", err)
	}
	return res.RowsAffected()
}

// Close releases the prepared statements and the database handle.
func (s *SQLiteStore) Close() error {
	var err error
	s.closeOnce.Do(func() {
		for _, stmt := range []*sql.Stmt{s.selectStmt, s.upsertStmt, s.cleanupStmt} {
			if stmt != nil {
				stmt.Close()
			}
		}
		err = s.db.Close()
	})
	return err
}
