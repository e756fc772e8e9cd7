package config

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MrWong99/rebalance/internal/patchset"
)

// ErrSourceNotRegistered is returned by [Registry.CreateSource] when no
// factory has been registered for the requested kind.
var ErrSourceNotRegistered = errors.New("config: patch source not registered")

// SourceFactory builds a patch source from its configuration. The returned
// closer releases the source's connections; it may be nil.
type SourceFactory func(ctx context.Context, entry SourceEntry) (patchset.Source, io.Closer, error)

// Registry maps source kinds to their factories. It is safe for concurrent
// use.
type Registry struct {
	mu      sync.RWMutex
	sources map[SourceKind]SourceFactory
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{sources: make(map[SourceKind]SourceFactory)}
}

// DefaultRegistry returns a [Registry] with every built-in source kind
// registered.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.RegisterSource(SourceEmbedded, newEmbeddedSource)
	r.RegisterSource(SourceFile, newFileSource)
	r.RegisterSource(SourcePostgres, newPostgresSource)
	r.RegisterSource(SourceSQLite, newSQLiteSource)
	r.RegisterSource(SourceS3, newS3Source)
	return r
}

// RegisterSource registers a factory under kind. Subsequent calls with the
// same kind overwrite the previous registration.
func (r *Registry) RegisterSource(kind SourceKind, factory SourceFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources[kind] = factory
}

// Kinds returns the registered kinds, sorted.
func (r *Registry) Kinds() []SourceKind {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]SourceKind, 0, len(r.sources))
	for k := range r.sources {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}

// CreateSource instantiates the source registered under entry.Kind.
// Returns [ErrSourceNotRegistered] if no factory has been registered for it.
func (r *Registry) CreateSource(ctx context.Context, entry SourceEntry) (patchset.Source, io.Closer, error) {
	r.mu.RLock()
	factory, ok := r.sources[entry.Kind]
	r.mu.RUnlock()
	if !ok {
		return nil, nil, fmt.Errorf("%w: %q", ErrSourceNotRegistered, entry.Kind)
	}
	return factory(ctx, entry)
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func newEmbeddedSource(context.Context, SourceEntry) (patchset.Source, io.Closer, error) {
	return patchset.EmbeddedSource{}, nil, nil
}

func newFileSource(_ context.Context, e SourceEntry) (patchset.Source, io.Closer, error) {
	return patchset.FileSource{Dir: e.Dir}, nil, nil
}

func newPostgresSource(ctx context.Context, e SourceEntry) (patchset.Source, io.Closer, error) {
	pool, err := pgxpool.New(ctx, e.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("config: postgres pool: %w", err)
	}
	store := patchset.NewPostgresStore(pool)
	if e.Migrate {
		if err := store.Migrate(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
	}
	return store, closerFunc(func() error { pool.Close(); return nil }), nil
}

func newSQLiteSource(ctx context.Context, e SourceEntry) (patchset.Source, io.Closer, error) {
	store, err := patchset.OpenSQLite(ctx, e.Path)
	if err != nil {
		return nil, nil, err
	}
	return store, store, nil
}

func newS3Source(ctx context.Context, e SourceEntry) (patchset.Source, io.Closer, error) {
	src, err := patchset.NewS3Source(ctx, patchset.S3Config{
		Bucket:          e.S3.Bucket,
		Prefix:          e.S3.Prefix,
		Region:          e.S3.Region,
		Endpoint:        e.S3.Endpoint,
		PathStyle:       e.S3.PathStyle,
		AccessKeyID:     e.S3.AccessKeyID,
		SecretAccessKey: e.S3.SecretAccessKey,
	})
	if err != nil {
		return nil, nil, err
	}
	return src, nil, nil
}
