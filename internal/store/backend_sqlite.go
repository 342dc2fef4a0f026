package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"context"
)

const (
	// MirrorMaxValueBytes bounds each mirrored value, matching the
	// per-key capacity of a browser cookie.
	MirrorMaxValueBytes = 4096

	// mirrorExpiry is how long mirrored entries stay readable.
	mirrorExpiry = 10 * 365 * 24 * time.Hour
)

// ErrValueTooLarge is returned by the mirror when a value exceeds
// MirrorMaxValueBytes. The Store treats it as "skip the mirror", not as
// a failure of the write itself.
var ErrValueTooLarge = errors.New("value exceeds mirror capacity")

// SQLiteBackend is the small-capacity cookie-like backend: a local file
// with bounded values and multi-year expiry. It mirrors the primary so
// data survives when the shared backend is unreachable, and it becomes
// the primary itself when the construction-time probe fails.
type SQLiteBackend struct {
	db   *sql.DB
	path string
}

// NewSQLiteBackend opens (and if needed creates) the mirror database.
func NewSQLiteBackend(path string) (*SQLiteBackend, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create mirror directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open mirror database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma: %w", err)
		}
	}

	schema := `
		CREATE TABLE IF NOT EXISTS kv (
			key        TEXT PRIMARY KEY NOT NULL,
			value      TEXT NOT NULL,
			expires_at INTEGER NOT NULL
		);`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create mirror schema: %w", err)
	}

	b := &SQLiteBackend{db: db, path: path}
	// Expired rows are dead weight; sweep once at open, lazily after.
	if _, err := db.Exec(`DELETE FROM kv WHERE expires_at <= ?`, time.Now().UnixMilli()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sweep expired mirror rows: %w", err)
	}
	return b, nil
}

// Path returns the database file path.
func (b *SQLiteBackend) Path() string { return b.path }

func (b *SQLiteBackend) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := b.db.QueryRowContext(ctx,
		`SELECT value FROM kv WHERE key = ? AND expires_at > ?`,
		key, time.Now().UnixMilli(),
	).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("mirror get %q: %w", key, err)
	}
	return value, true, nil
}

func (b *SQLiteBackend) Set(ctx context.Context, key, value string) error {
	if len(value) > MirrorMaxValueBytes {
		return fmt.Errorf("mirror set %q (%d bytes): %w", key, len(value), ErrValueTooLarge)
	}
	expires := time.Now().Add(mirrorExpiry).UnixMilli()
	_, err := b.db.ExecContext(ctx,
		`INSERT INTO kv (key, value, expires_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at`,
		key, value, expires,
	)
	if err != nil {
		return fmt.Errorf("mirror set %q: %w", key, err)
	}
	return nil
}

func (b *SQLiteBackend) Remove(ctx context.Context, key string) error {
	if _, err := b.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key); err != nil {
		return fmt.Errorf("mirror remove %q: %w", key, err)
	}
	return nil
}

func (b *SQLiteBackend) Close() error { return b.db.Close() }
