// Package store persists Census responses in a local SQLite file so repeated
// lookups across runs skip the network.
package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// Cache is a TTL key/value store backed by modernc.org/sqlite.
type Cache struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*Cache, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &Cache{db: db, now: time.Now}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS response_cache (
	key        TEXT PRIMARY KEY,
	body       BLOB NOT NULL,
	fetched_at INTEGER NOT NULL,
	expires_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_response_cache_expires_at ON response_cache(expires_at);
`

// Migrate creates the cache table.
func (c *Cache) Migrate(ctx context.Context) error {
	_, err := c.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

// Close closes the database.
func (c *Cache) Close() error {
	return c.db.Close()
}

// Get returns the cached body for key. A missing or expired entry returns
// nil with no error.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, error) {
	var body []byte
	err := c.db.QueryRowContext(ctx,
		`SELECT body FROM response_cache WHERE key = ? AND expires_at > ?`,
		key, c.now().Unix(),
	).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get %s", key)
	}
	if body == nil {
		body = []byte{}
	}
	return body, nil
}

// Set stores body under key for ttl, replacing any existing entry.
func (c *Cache) Set(ctx context.Context, key string, body []byte, ttl time.Duration) error {
	now := c.now()
	if body == nil {
		body = []byte{}
	}
	_, err := c.db.ExecContext(ctx,
		`INSERT INTO response_cache (key, body, fetched_at, expires_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET body = excluded.body, fetched_at = excluded.fetched_at, expires_at = excluded.expires_at`,
		key, body, now.Unix(), now.Add(ttl).Unix(),
	)
	return eris.Wrapf(err, "sqlite: set %s", key)
}

// DeleteExpired removes expired entries and returns how many were removed.
func (c *Cache) DeleteExpired(ctx context.Context) (int64, error) {
	res, err := c.db.ExecContext(ctx, `DELETE FROM response_cache WHERE expires_at <= ?`, c.now().Unix())
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: delete expired")
	}
	n, err := res.RowsAffected()
	return n, eris.Wrap(err, "sqlite: rows affected")
}

// Clear removes every entry.
func (c *Cache) Clear(ctx context.Context) (int64, error) {
	res, err := c.db.ExecContext(ctx, `DELETE FROM response_cache`)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: clear")
	}
	n, err := res.RowsAffected()
	return n, eris.Wrap(err, "sqlite: rows affected")
}

// Stats summarizes the cache contents.
type Stats struct {
	Entries int64
	Expired int64
	Bytes   int64
}

// Stats counts live and expired entries and their total size.
func (c *Cache) Stats(ctx context.Context) (Stats, error) {
	var s Stats
	err := c.db.QueryRowContext(ctx,
		`SELECT COUNT(*),
		        COALESCE(SUM(CASE WHEN expires_at <= ? THEN 1 ELSE 0 END), 0),
		        COALESCE(SUM(LENGTH(body)), 0)
		 FROM response_cache`,
		c.now().Unix(),
	).Scan(&s.Entries, &s.Expired, &s.Bytes)
	return s, eris.Wrap(err, "sqlite: stats")
}
