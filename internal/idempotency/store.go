// Package idempotency implements the single-writer idempotency store
// (C9): insert-if-absent records keyed by an event's stable identity,
// guarding any externally-visible effect against duplicate delivery.
package idempotency

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"decisioncore/internal/canon"
	"decisioncore/internal/coreerr"

	"github.com/gowebpki/jcs"
	_ "modernc.org/sqlite"
)

// SchemaVersion is the PRAGMA user_version this store expects to find
// (or set, on a freshly created database). A mismatch is a hard
// failure — there is no auto-migration path.
const SchemaVersion = 1

const envDBPathOverride = "BUFF_IDEMPOTENCY_DB_PATH"

// DefaultDBPath returns BUFF_IDEMPOTENCY_DB_PATH when set, or
// workspaces/idempotency.sqlite otherwise.
func DefaultDBPath() string {
	if override := os.Getenv(envDBPathOverride); override != "" {
		return override
	}
	return filepath.Join("workspaces", "idempotency.sqlite")
}

// Store is a single-writer, insert-if-absent key/record store backed
// by SQLite.
type Store struct {
	db *sql.DB
}

// OpenDB opens (creating if absent) the SQLite database at path and
// ensures its schema, returning a seam callers can also point at a
// mock driver in tests.
func OpenDB(path string) (*sql.DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("idempotency: creating database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("idempotency: opening database: %w", err)
	}
	db.SetMaxOpenConns(1)
	return db, nil
}

// Open opens a Store over db, ensuring its schema.
func Open(ctx context.Context, db *sql.DB) (*Store, error) {
	s := &Store{db: db}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS idempotency_records (
			key TEXT PRIMARY KEY,
			record_canonical TEXT NOT NULL,
			record_jcs TEXT NOT NULL
		)
	`); err != nil {
		return fmt.Errorf("idempotency: creating schema: %w", err)
	}

	row := s.db.QueryRowContext(ctx, "PRAGMA user_version")
	var current int
	if err := row.Scan(&current); err != nil {
		return fmt.Errorf("idempotency: reading schema version: %w", err)
	}
	if current == 0 {
		if _, err := s.db.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", SchemaVersion)); err != nil {
			return fmt.Errorf("idempotency: stamping schema version: %w", err)
		}
		return nil
	}
	if current != SchemaVersion {
		return fmt.Errorf("%w: idempotency store schema version %d, expected %d", coreerr.ErrSchemaMismatch, current, SchemaVersion)
	}
	return nil
}

// Has reports whether key is already present.
func (s *Store) Has(ctx context.Context, key string) (bool, error) {
	row := s.db.QueryRowContext(ctx, "SELECT 1 FROM idempotency_records WHERE key = ? LIMIT 1", key)
	var one int
	err := row.Scan(&one)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, sql.ErrNoRows):
		return false, nil
	default:
		return false, fmt.Errorf("idempotency: checking key: %w", err)
	}
}

// Get retrieves the canonical-encoded record bytes stored under key.
// ok is false when key is absent.
func (s *Store) Get(ctx context.Context, key string) (record []byte, ok bool, err error) {
	row := s.db.QueryRowContext(ctx, "SELECT record_canonical FROM idempotency_records WHERE key = ?", key)
	var text string
	if scanErr := row.Scan(&text); scanErr != nil {
		if errors.Is(scanErr, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("idempotency: reading record: %w", scanErr)
	}
	return []byte(text), true, nil
}

// Put inserts record under key only if key is absent; subsequent
// writers are no-ops, so the first writer wins. record must already be
// canonical-encoded bytes (see canon.Encode); Put additionally stores
// an RFC 8785 (JCS) transcoding for collaborators that expect that
// canonicalization instead.
func (s *Store) Put(ctx context.Context, key string, record []byte) error {
	jcsBytes, err := toJCS(record)
	if err != nil {
		return fmt.Errorf("idempotency: transcoding to JCS: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO idempotency_records (key, record_canonical, record_jcs) VALUES (?, ?, ?)",
		key, string(record), string(jcsBytes),
	)
	if err != nil {
		return fmt.Errorf("idempotency: inserting record: %w", err)
	}
	return nil
}

// PutValue canonicalizes v (a map[string]any / []any / scalar tree)
// before delegating to Put.
func (s *Store) PutValue(ctx context.Context, key string, v any) error {
	cv, err := canon.FromGo(v)
	if err != nil {
		return fmt.Errorf("idempotency: canonicalizing record: %w", err)
	}
	encoded, err := canon.Encode(cv)
	if err != nil {
		return fmt.Errorf("idempotency: encoding record: %w", err)
	}
	return s.Put(ctx, key, encoded)
}

func toJCS(canonicalJSON []byte) ([]byte, error) {
	return jcs.Transform(canonicalJSON)
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
