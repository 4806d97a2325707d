// Package cache persists per-collection JSON snapshots in SQLite. It is
// the service's offline fallback: readers get the last known copy of a
// collection when the remote store is unreachable. Snapshots are
// overwritten wholesale; there is no TTL or versioning.
package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // sqlite3 driver
	"github.com/rs/zerolog"
)

// ErrNoSnapshot is returned when a collection has never been cached.
var ErrNoSnapshot = errors.New("no cached snapshot")

// Store owns the snapshot database.
type Store struct {
	db     *sql.DB
	path   string
	logger *zerolog.Logger
}

// Open initializes the snapshot database, creating it if needed.
func Open(path string, logger *zerolog.Logger) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	dsn := path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to cache database: %w", err)
	}

	s := &Store{db: db, path: path, logger: logger}
	if err := s.createTables(); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	logger.Info().Str("path", path).Msg("snapshot cache initialized")
	return s, nil
}

func (s *Store) createTables() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS snapshots (
		collection TEXT PRIMARY KEY,
		payload TEXT NOT NULL,
		saved_at DATETIME NOT NULL
	)`)
	return err
}

// Get returns the last snapshot for a collection and when it was saved.
func (s *Store) Get(ctx context.Context, collection string) ([]byte, time.Time, error) {
	var payload string
	var savedAt time.Time
	err := s.db.QueryRowContext(ctx,
		`SELECT payload, saved_at FROM snapshots WHERE collection = ?`, collection,
	).Scan(&payload, &savedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, time.Time{}, ErrNoSnapshot
	}
	if err != nil {
		return nil, time.Time{}, err
	}
	return []byte(payload), savedAt, nil
}

// Put overwrites the snapshot for a collection.
func (s *Store) Put(ctx context.Context, collection string, payload []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO snapshots (collection, payload, saved_at) VALUES (?, ?, ?)
		 ON CONFLICT(collection) DO UPDATE SET payload = excluded.payload, saved_at = excluded.saved_at`,
		collection, string(payload), time.Now().UTC())
	return err
}

// Delete drops the snapshot for a collection.
func (s *Store) Delete(ctx context.Context, collection string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM snapshots WHERE collection = ?`, collection)
	return err
}

// PingContext checks the database connection; used by the readiness probe.
func (s *Store) PingContext(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
