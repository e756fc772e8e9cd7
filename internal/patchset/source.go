package patchset

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/MrWong99/rebalance/internal/observe"
	"github.com/MrWong99/rebalance/pkg/item"
	"github.com/MrWong99/rebalance/pkg/transform"
)

// ErrNotFound is returned by a [Source] that holds no document for the
// requested release.
var ErrNotFound = errors.New("patchset: document not found")

// ErrReleaseMismatch is returned by [Load] when a document names a release
// other than the one requested.
var ErrReleaseMismatch = errors.New("patchset: document release mismatch")

// Source fetches raw patch documents by release tag.
type Source interface {
	// Name identifies the source in logs and metrics.
	Name() string

	// Fetch returns the document for tag, or an error wrapping
	// [ErrNotFound].
	Fetch(ctx context.Context, tag string) ([]byte, error)
}

// Option configures [Parse] and [Load].
type Option func(*options)

type options struct {
	known          map[item.ID]struct{}
	knownNames     []string
	attributeNames []string
	threshold      float64
	logger         *slog.Logger
	metrics        *observe.Metrics
}

// WithKnownItems restricts documents to the given items. Unknown items are
// rejected with a suggestion of the closest known one.
func WithKnownItems(ids ...item.ID) Option {
	return func(o *options) {
		o.known = make(map[item.ID]struct{}, len(ids))
		o.knownNames = make([]string, 0, len(ids))
		for _, id := range ids {
			o.known[id] = struct{}{}
			o.knownNames = append(o.knownNames, id.String())
		}
	}
}

// WithSuggestThreshold sets the minimum Jaro-Winkler similarity for "did you
// mean" hints. Default: 0.85.
func WithSuggestThreshold(t float64) Option {
	return func(o *options) { o.threshold = t }
}

// WithLogger sets the logger used by [Load]. Defaults to [slog.Default].
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithMetrics sets the metrics sink used by [Load]. Defaults to
// [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

func buildOptions(opts []Option) options {
	o := options{threshold: defaultSuggestThreshold}
	for _, a := range transform.KnownAttributes() {
		o.attributeNames = append(o.attributeNames, string(a))
	}
	for _, fn := range opts {
		fn(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	return o
}

// Load fetches the document for tag from src and parses it.
func Load(ctx context.Context, src Source, tag string, opts ...Option) (doc *Document, err error) {
	o := buildOptions(opts)
	metrics := o.metrics
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}

	ctx, span := observe.StartSpan(ctx, "patchset.load")
	defer span.End()

	start := time.Now()
	defer func() {
		metrics.RecordPatchSetLoad(ctx, src.Name(), observe.StatusOf(err), time.Since(start))
		observe.FailSpan(span, err)
	}()

	data, err := src.Fetch(ctx, tag)
	if err != nil {
		return nil, fmt.Errorf("patchset: fetch %s from %s: %w", tag, src.Name(), err)
	}
	doc, err = Parse(data, opts...)
	if err != nil {
		return nil, fmt.Errorf("patchset: %s from %s: %w", tag, src.Name(), err)
	}
	if doc.Release != "" && doc.Release != tag {
		return nil, fmt.Errorf("%w: %s holds %s, want %s", ErrReleaseMismatch, src.Name(), doc.Release, tag)
	}

	o.logger.Info("loaded patch set",
		"source", src.Name(),
		"release", tag,
		"transformers", doc.Patches.Len(),
		"items", len(doc.Patches.Items()),
		"duration", time.Since(start),
	)
	return doc, nil
}
