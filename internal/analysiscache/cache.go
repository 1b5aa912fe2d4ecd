// Package analysiscache memoizes the outcome of the expensive external calls
// (ffprobe inspection, tempo estimation, ensemble classification) against a
// track's content hash, so re-analyzing an unchanged file skips them.
package analysiscache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"audiolib/internal/logging"
)

// Entry is the cached snapshot of one track's expensive phase outputs, keyed
// by track key and content hash.
type Entry struct {
	TrackKey    string    `json:"track_key"`
	ContentHash string    `json:"content_hash"`
	Technical   []byte    `json:"technical"`
	Ensemble    []byte    `json:"ensemble"`
	CachedAt    time.Time `json:"cached_at"`
}

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// Cache provides thread-safe, content-hash-keyed memoization backed by
// SQLite in WAL mode.
type Cache struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

// Open creates or connects to the cache database at dbPath, applying the
// journal/foreign-key/busy-timeout pragmas, and ensures the schema exists.
func Open(dbPath string, logger *slog.Logger) (*Cache, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logging.NewComponentLogger(logger, "analysiscache")

	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create cache directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	c := &Cache{db: db, path: dbPath, logger: logger}
	if err := c.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return c, nil
}

// Close closes the underlying database connection.
func (c *Cache) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

func (c *Cache) initSchema(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS analysis_cache (
	track_key    TEXT NOT NULL,
	content_hash TEXT NOT NULL,
	technical    BLOB,
	ensemble     BLOB,
	cached_at    TEXT NOT NULL,
	PRIMARY KEY (track_key, content_hash)
);
`
	_, err := c.db.ExecContext(ctx, schema)
	if err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

// Lookup returns the cached entry for (trackKey, contentHash), if present.
func (c *Cache) Lookup(ctx context.Context, trackKey, contentHash string) (Entry, bool, error) {
	if c == nil || c.db == nil {
		return Entry{}, false, nil
	}

	row := c.db.QueryRowContext(ctx,
		`SELECT technical, ensemble, cached_at FROM analysis_cache WHERE track_key = ? AND content_hash = ?`,
		trackKey, contentHash)

	var technical, ensemble []byte
	var cachedAt string
	if err := row.Scan(&technical, &ensemble, &cachedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Entry{}, false, nil
		}
		return Entry{}, false, fmt.Errorf("lookup cache entry: %w", err)
	}

	parsed, err := time.Parse(time.RFC3339Nano, cachedAt)
	if err != nil {
		parsed = time.Time{}
	}

	return Entry{
		TrackKey:    trackKey,
		ContentHash: contentHash,
		Technical:   technical,
		Ensemble:    ensemble,
		CachedAt:    parsed,
	}, true, nil
}

// Store upserts the cached technical/ensemble payloads for (trackKey,
// contentHash), replacing any prior entry under the same key. Stale entries
// under other content hashes for the same track key are pruned: a changed
// file should not accumulate cache rows it will never hit again.
func (c *Cache) Store(ctx context.Context, entry Entry) error {
	if c == nil || c.db == nil {
		return nil
	}
	if strings.TrimSpace(entry.TrackKey) == "" || strings.TrimSpace(entry.ContentHash) == "" {
		return errors.New("track key and content hash are required")
	}

	now := entry.CachedAt
	if now.IsZero() {
		now = time.Now().UTC()
	}

	err := retryOnBusy(ctx, func() error {
		tx, err := c.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()

		if _, err := tx.ExecContext(ctx,
			`DELETE FROM analysis_cache WHERE track_key = ? AND content_hash != ?`,
			entry.TrackKey, entry.ContentHash); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO analysis_cache (track_key, content_hash, technical, ensemble, cached_at)
			 VALUES (?, ?, ?, ?, ?)
			 ON CONFLICT(track_key, content_hash) DO UPDATE SET
				technical = excluded.technical,
				ensemble = excluded.ensemble,
				cached_at = excluded.cached_at`,
			entry.TrackKey, entry.ContentHash, entry.Technical, entry.Ensemble, now.Format(time.RFC3339Nano)); err != nil {
			return err
		}

		return tx.Commit()
	})
	if err != nil {
		return fmt.Errorf("store cache entry: %w", err)
	}

	c.logger.Debug("cached analysis phase output",
		logging.String("track_key", entry.TrackKey),
		logging.String("content_hash", entry.ContentHash))
	return nil
}

// Invalidate removes every cached entry for trackKey, regardless of content
// hash. Used when a track is deliberately re-analyzed from scratch.
func (c *Cache) Invalidate(ctx context.Context, trackKey string) error {
	if c == nil || c.db == nil {
		return nil
	}
	_, err := c.db.ExecContext(ctx, `DELETE FROM analysis_cache WHERE track_key = ?`, trackKey)
	if err != nil {
		return fmt.Errorf("invalidate cache entry: %w", err)
	}
	return nil
}

// Stats summarizes the cache for CLI reporting.
type Stats struct {
	EntryCount int       `json:"entry_count"`
	OldestEntry time.Time `json:"oldest_entry,omitempty"`
	NewestEntry time.Time `json:"newest_entry,omitempty"`
}

// Stat computes aggregate cache statistics.
func (c *Cache) Stat(ctx context.Context) (Stats, error) {
	if c == nil || c.db == nil {
		return Stats{}, nil
	}

	row := c.db.QueryRowContext(ctx,
		`SELECT COUNT(*), MIN(cached_at), MAX(cached_at) FROM analysis_cache`)

	var count int
	var oldest, newest sql.NullString
	if err := row.Scan(&count, &oldest, &newest); err != nil {
		return Stats{}, fmt.Errorf("stat cache: %w", err)
	}

	stats := Stats{EntryCount: count}
	if oldest.Valid {
		if t, err := time.Parse(time.RFC3339Nano, oldest.String); err == nil {
			stats.OldestEntry = t
		}
	}
	if newest.Valid {
		if t, err := time.Parse(time.RFC3339Nano, newest.String); err == nil {
			stats.NewestEntry = t
		}
	}
	return stats, nil
}

// MarshalTechnical is a convenience helper for callers that want to store a
// typed value rather than a pre-encoded payload.
func MarshalTechnical(v any) ([]byte, error) {
	return json.Marshal(v)
}

// UnmarshalInto decodes a cached payload into dst.
func UnmarshalInto(payload []byte, dst any) error {
	if len(payload) == 0 {
		return nil
	}
	return json.Unmarshal(payload, dst)
}
