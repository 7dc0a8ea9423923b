package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// DefaultSQLitePath is used when no database path is configured.
const DefaultSQLitePath = "./clawcam.db"

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS entries (
	store      TEXT    NOT NULL,
	key        TEXT    NOT NULL,
	value      BLOB    NOT NULL,
	updated_at INTEGER NOT NULL,
	PRIMARY KEY (store, key)
)`

// SQLiteBackend keeps every store in a single SQLite table on local disk.
type SQLiteBackend struct {
	db *sql.DB
}

var _ Backend = (*SQLiteBackend)(nil)

// OpenSQLite opens (creating if needed) the database at path. ":memory:" gives
// a private in-memory database, which tests use.
func OpenSQLite(path string) (*SQLiteBackend, error) {
	if path == "" {
		path = DefaultSQLitePath
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection: SQLite has a single writer, and an in-memory database
	// exists per connection.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA cache_size=-64000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return &SQLiteBackend{db: db}, nil
}

func (s *SQLiteBackend) Get(ctx context.Context, store, key string) ([]byte, bool, error) {
	if err := checkStore(store); err != nil {
		return nil, false, err
	}
	var value []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM entries WHERE store = ? AND key = ?`, store, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("select %s/%s: %w", store, key, err)
	}
	return value, true, nil
}

func (s *SQLiteBackend) Set(ctx context.Context, store, key string, value []byte) error {
	if err := checkStore(store); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO entries (store, key, value, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(store, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		store, key, value, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("upsert %s/%s: %w", store, key, err)
	}
	return nil
}

func (s *SQLiteBackend) Delete(ctx context.Context, store, key string) error {
	if err := checkStore(store); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM entries WHERE store = ? AND key = ?`, store, key); err != nil {
		return fmt.Errorf("delete %s/%s: %w", store, key, err)
	}
	return nil
}

func (s *SQLiteBackend) Clear(ctx context.Context, store string) error {
	if err := checkStore(store); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM entries WHERE store = ?`, store); err != nil {
		return fmt.Errorf("clear %s: %w", store, err)
	}
	return nil
}

func (s *SQLiteBackend) GetAll(ctx context.Context, store string) (map[string][]byte, error) {
	if err := checkStore(store); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM entries WHERE store = ?`, store)
	if err != nil {
		return nil, fmt.Errorf("select all %s: %w", store, err)
	}
	defer rows.Close()

	out := make(map[string][]byte)
	for rows.Next() {
		var key string
		var value []byte
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("scan %s: %w", store, err)
		}
		out[key] = value
	}
	return out, rows.Err()
}

// Close closes the database.
func (s *SQLiteBackend) Close() error {
	return s.db.Close()
}
