package patchset

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS patch_documents (
    release    TEXT PRIMARY KEY,
    body       TEXT NOT NULL,
    updated_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))
);
`

// SQLiteStore keeps one patch document per release in a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

var _ Source = (*SQLiteStore)(nil)

// OpenSQLite opens (creating if needed) the database at path and applies the
// schema. Use ":memory:" for a private in-memory database.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("patchset: sqlite path is required")
	}
	dsn := path
	if path != ":memory:" {
		dsn = path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("patchset: open sqlite db: %w", err)
	}
	// Every connection to ":memory:" would see its own database.
	db.SetMaxOpenConns(1)

	s := NewSQLiteStore(db)
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// NewSQLiteStore wraps an open database. The caller is responsible for
// calling [SQLiteStore.Migrate].
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// Name implements [Source].
func (s *SQLiteStore) Name() string { return "sqlite" }

// Migrate creates the patch_documents table if it does not exist.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, sqliteSchema); err != nil {
		return fmt.Errorf("patchset: migrate sqlite: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Fetch implements [Source].
func (s *SQLiteStore) Fetch(ctx context.Context, tag string) ([]byte, error) {
	var body string
	err := s.db.QueryRowContext(ctx, `SELECT body FROM patch_documents WHERE release = ?`, tag).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: release %q", ErrNotFound, tag)
	}
	if err != nil {
		return nil, fmt.Errorf("patchset: fetch %q: %w", tag, err)
	}
	return []byte(body), nil
}

// Put stores data as the document for tag after checking that it parses.
func (s *SQLiteStore) Put(ctx context.Context, tag string, data []byte) error {
	if _, err := Parse(data); err != nil {
		return err
	}
	const query = `
		INSERT INTO patch_documents (release, body) VALUES (?, ?)
		ON CONFLICT (release) DO UPDATE SET
			body = excluded.body,
			updated_at = strftime('%Y-%m-%dT%H:%M:%fZ', 'now')`
	if _, err := s.db.ExecContext(ctx, query, tag, string(data)); err != nil {
		return fmt.Errorf("patchset: put %q: %w", tag, err)
	}
	return nil
}

// Delete removes the document for tag.
func (s *SQLiteStore) Delete(ctx context.Context, tag string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM patch_documents WHERE release = ?`, tag); err != nil {
		return fmt.Errorf("patchset: delete %q: %w", tag, err)
	}
	return nil
}

// Releases returns the tags that have a document, sorted.
func (s *SQLiteStore) Releases(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT release FROM patch_documents ORDER BY release`)
	if err != nil {
		return nil, fmt.Errorf("patchset: list releases: %w", err)
	}
	defer rows.Close()

	var tags []string
	for rows.Next() {
		var tag string
		if err := rows.Scan(&tag); err != nil {
			return nil, fmt.Errorf("patchset: list releases scan: %w", err)
		}
		tags = append(tags, tag)
	}
	return tags, rows.Err()
}
