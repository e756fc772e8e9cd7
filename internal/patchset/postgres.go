package patchset

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Schema is the SQL DDL for the patch_documents table. Execute it via
// [PostgresStore.Migrate] or apply it manually during deployment.
const Schema = `
CREATE TABLE IF NOT EXISTS patch_documents (
    release    TEXT PRIMARY KEY,
    body       TEXT NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// DB is the database interface used by [PostgresStore]. Both *pgxpool.Pool
// and *pgx.Conn satisfy this interface.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresStore keeps one patch document per release in PostgreSQL.
type PostgresStore struct {
	db DB
}

var _ Source = (*PostgresStore)(nil)

// NewPostgresStore creates a store using the given connection or pool. The
// caller is responsible for calling [PostgresStore.Migrate] to ensure the
// schema exists before issuing queries.
func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Name implements [Source].
func (s *PostgresStore) Name() string { return "postgres" }

// Migrate executes the [Schema] DDL.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("patchset: migrate: %w", err)
	}
	return nil
}

// Fetch implements [Source].
func (s *PostgresStore) Fetch(ctx context.Context, tag string) ([]byte, error) {
	const query = `SELECT body FROM patch_documents WHERE release = $1`

	var body string
	if err := s.db.QueryRow(ctx, query, tag).Scan(&body); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: release %q", ErrNotFound, tag)
		}
		return nil, fmt.Errorf("patchset: fetch %q: %w", tag, err)
	}
	return []byte(body), nil
}

// Put stores data as the document for tag, replacing any previous one. The
// document is parsed first and rejected if invalid.
func (s *PostgresStore) Put(ctx context.Context, tag string, data []byte) error {
	if _, err := Parse(data); err != nil {
		return err
	}

	const query = `
		INSERT INTO patch_documents (release, body) VALUES ($1, $2)
		ON CONFLICT (release) DO UPDATE SET
			body = EXCLUDED.body,
			updated_at = now()`

	if _, err := s.db.Exec(ctx, query, tag, string(data)); err != nil {
		return fmt.Errorf("patchset: put %q: %w", tag, err)
	}
	return nil
}

// Delete removes the document for tag. Deleting a missing document is not an
// error.
func (s *PostgresStore) Delete(ctx context.Context, tag string) error {
	const query = `DELETE FROM patch_documents WHERE release = $1`
	if _, err := s.db.Exec(ctx, query, tag); err != nil {
		return fmt.Errorf("patchset: delete %q: %w", tag, err)
	}
	return nil
}

// Releases returns the tags that have a document, sorted.
func (s *PostgresStore) Releases(ctx context.Context) ([]string, error) {
	const query = `SELECT release FROM patch_documents ORDER BY release`

	rows, err := s.db.Query(ctx, query)
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
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("patchset: list releases: %w", err)
	}
	return tags, nil
}
