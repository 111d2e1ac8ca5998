package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `CREATE TABLE IF NOT EXISTS cache_entries (
  key        TEXT PRIMARY KEY,
  value      BLOB,
  written_at INTEGER NOT NULL,
  expires_at INTEGER NOT NULL DEFAULT 0
)`

// SQLiteCache is a Backend persisted in a SQLite database file, so cached
// responses survive restarts and can be shared by processes on one host.
type SQLiteCache struct {
	db     *sql.DB
	policy Policy
	now    func() time.Time
}

// OpenSQLite opens (creating if needed) the cache database at path.
func OpenSQLite(path string, policy Policy) (*SQLiteCache, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("cache: sqlite path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("cache: open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("cache: create schema: %w", err)
	}
	return &SQLiteCache{db: db, policy: policy, now: time.Now}, nil
}

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UTC().UnixMilli()
}

// Get returns the stored value unless it has expired.
func (c *SQLiteCache) Get(ctx context.Context, key string) ([]byte, bool) {
	var value []byte
	err := c.db.QueryRowContext(ctx,
		`SELECT value FROM cache_entries WHERE key = ? AND (expires_at = 0 OR expires_at > ?)`,
		key, toMillis(c.now()),
	).Scan(&value)
	if err != nil {
		return nil, false
	}
	return value, true
}

// Set upserts value and enforces MaxEntries.
func (c *SQLiteCache) Set(ctx context.Context, key string, value []byte) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	if value == nil {
		value = []byte{}
	}
	now := c.now()

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("cache: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO cache_entries (key, value, written_at, expires_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, written_at = excluded.written_at, expires_at = excluded.expires_at`,
		key, value, toMillis(now), toMillis(c.policy.Expiry(now)),
	); err != nil {
		return fmt.Errorf("cache: write %q: %w", key, err)
	}

	if c.policy.MaxEntries > 0 {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM cache_entries WHERE key NOT IN (
			   SELECT key FROM cache_entries ORDER BY written_at DESC, key LIMIT ?
			 )`, c.policy.MaxEntries,
		); err != nil {
			return fmt.Errorf("cache: evict: %w", err)
		}
	}
	return tx.Commit()
}

// Has reports whether a live entry exists for key.
func (c *SQLiteCache) Has(ctx context.Context, key string) bool {
	var one int
	err := c.db.QueryRowContext(ctx,
		`SELECT 1 FROM cache_entries WHERE key = ? AND (expires_at = 0 OR expires_at > ?)`,
		key, toMillis(c.now()),
	).Scan(&one)
	return err == nil
}

// Delete removes key. Idempotent.
func (c *SQLiteCache) Delete(ctx context.Context, key string) error {
	if _, err := c.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE key = ?`, key); err != nil {
		return fmt.Errorf("cache: delete %q: %w", key, err)
	}
	return nil
}

// Clear removes every entry.
func (c *SQLiteCache) Clear(ctx context.Context) error {
	if _, err := c.db.ExecContext(ctx, `DELETE FROM cache_entries`); err != nil {
		return fmt.Errorf("cache: clear: %w", err)
	}
	return nil
}

// Purge removes expired entries and returns how many were dropped.
func (c *SQLiteCache) Purge(ctx context.Context) (int64, error) {
	res, err := c.db.ExecContext(ctx,
		`DELETE FROM cache_entries WHERE expires_at != 0 AND expires_at <= ?`, toMillis(c.now()))
	if err != nil {
		return 0, fmt.Errorf("cache: purge: %w", err)
	}
	return res.RowsAffected()
}

// Ping checks the database connection.
func (c *SQLiteCache) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

// Close closes the database.
func (c *SQLiteCache) Close() error {
	return c.db.Close()
}

var (
	_ Backend = (*SQLiteCache)(nil)
	_ Pinger  = (*SQLiteCache)(nil)
)
