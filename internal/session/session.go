// Package session applies a batch of transformers to a live item registry and
// remembers what it replaced so the batch can be undone.
//
// A [Session] moves through two states. [Session.Modify] claims the
// unmodified→modified transition and injects every transformer of its patch
// set, capturing the previous value of each item in the session image.
// [Session.Restore] claims the opposite transition and re-injects the image.
// Both operations commit whatever image they have built when an injector
// fails, so a failed Modify can still be restored and a failed Restore can be
// retried without touching items that were already restored.
//
// A Session is meant to be driven by one caller. The state flag rejects
// out-of-sequence calls; it does not serialise concurrent callers working on
// overlapping items, and two sessions must not patch the same items at once.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/MrWong99/rebalance/internal/inject"
	"github.com/MrWong99/rebalance/internal/observe"
	"github.com/MrWong99/rebalance/pkg/transform"
)

// Operation names used in errors, logs and metrics.
const (
	opModify  = "modify"
	opRestore = "restore"
)

// ErrEmptyPatchSet is returned by [New] for a patch set without transformers.
var ErrEmptyPatchSet = errors.New("session: patch set is empty")

// Option configures a [Session].
type Option func(*Session)

// WithLogger sets the session logger. Defaults to [slog.Default].
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// WithMetrics sets the metrics sink. Defaults to [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Session) { s.metrics = m }
}

// WithID overrides the generated session ID.
func WithID(id string) Option {
	return func(s *Session) { s.id = id }
}

// Session is one reversible application of a patch set.
type Session struct {
	id       string
	injector inject.Injector[transform.Transformer]
	patches  transform.PatchSet
	logger   *slog.Logger
	metrics  *observe.Metrics
	created  time.Time

	state atomic.Int32

	mu    sync.Mutex
	image []transform.Entry // capture order
}

// New creates an unmodified session that will apply patches through
// injector. The injector is shared, not owned.
func New(injector inject.Injector[transform.Transformer], patches transform.PatchSet, opts ...Option) (*Session, error) {
	if injector == nil {
		return nil, errors.New("session: injector is required")
	}
	// A non-empty PatchSet only comes out of transform.NewPatchSet, which
	// validated every entry.
	if patches.IsEmpty() {
		return nil, ErrEmptyPatchSet
	}

	s := &Session{
		id:       uuid.NewString(),
		injector: injector,
		patches:  patches,
		logger:   slog.Default(),
		created:  time.Now(),
	}
	for _, o := range opts {
		o(s)
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	s.logger = s.logger.With("session_id", s.id)
	return s, nil
}

// ID returns the session identifier used in logs.
func (s *Session) ID() string { return s.id }

// CreatedAt returns when the session was created.
func (s *Session) CreatedAt() time.Time { return s.created }

// State returns the current state.
func (s *Session) State() State { return State(s.state.Load()) }

// Patches returns the patch set the session applies.
func (s *Session) Patches() transform.PatchSet { return s.patches }

// Image returns a copy of the captured previous values in capture order.
func (s *Session) Image() []transform.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]transform.Entry, len(s.image))
	copy(cp, s.image)
	return cp
}

// ImageLen returns the number of captured previous values.
func (s *Session) ImageLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.image)
}

// Modify injects every transformer of the patch set in order and captures
// the value each one replaced.
//
// The session is marked modified before the first injection. If an injector
// fails, Modify stops, commits the values captured so far and returns the
// error; the session stays modified and must be restored. Calling Modify on a
// modified session returns an [*IllegalStateError] and changes nothing.
//
// ctx is used for tracing only; injection is in-memory and not cancellable.
func (s *Session) Modify(ctx context.Context) (err error) {
	if !s.state.CompareAndSwap(int32(StateUnmodified), int32(StateModified)) {
		s.metrics.RecordSessionOp(ctx, opModify, observe.StatusRejected, 0)
		return &IllegalStateError{Op: opModify, State: s.State()}
	}

	ctx, span := observe.StartSpan(observe.WithSessionID(ctx, s.id), "session.modify",
		trace.WithAttributes(attribute.Int("session.patches", s.patches.Len())),
	)
	defer span.End()

	start := time.Now()
	s.metrics.ActiveSessions.Add(ctx, 1)

	var captured []transform.Entry
	defer func() {
		s.mu.Lock()
		s.image = captured
		s.mu.Unlock()
		s.metrics.ImageEntries.Add(ctx, int64(len(captured)))

		elapsed := time.Since(start)
		s.metrics.RecordSessionOp(ctx, opModify, observe.StatusOf(err), elapsed)
		span.SetAttributes(attribute.Int("session.captured", len(captured)))
		if err != nil {
			observe.FailSpan(span, err)
			s.logger.Error("modify failed", "captured", len(captured), "duration", elapsed, "err", err)
			return
		}
		s.logger.Info("modified", "patches", s.patches.Len(), "captured", len(captured), "duration", elapsed)
	}()

	for _, e := range s.patches.Entries() {
		kind := e.Patch.Kind().String()
		prev, applied, ierr := s.injector.Inject(e.Item, e.Patch)
		if ierr != nil {
			s.metrics.RecordInjection(ctx, opModify, kind, observe.StatusError)
			return fmt.Errorf("session: %s %s: %w", opModify, e.Item, ierr)
		}
		if !applied {
			s.metrics.RecordInjection(ctx, opModify, kind, observe.StatusNotApplicable)
			s.logger.Debug("transformer not applicable", "item", e.Item.String(), "kind", kind)
			continue
		}
		s.metrics.RecordInjection(ctx, opModify, kind, observe.StatusOK)
		captured = append(captured, transform.Entry{Item: e.Item, Patch: prev})
	}
	return nil
}

// Restore re-injects the captured previous values, newest first, so that
// several transformers of the same kind on one item unwind to the original
// value. Each value is dropped from the image only after its injection
// succeeded.
//
// If an injector fails, Restore commits the values that are still pending,
// returns the error and leaves the session modified so Restore can be called
// again; already restored values are not injected twice. Calling Restore on
// an unmodified session returns an [*IllegalStateError] and changes nothing.
func (s *Session) Restore(ctx context.Context) (err error) {
	if !s.state.CompareAndSwap(int32(StateModified), int32(StateUnmodified)) {
		s.metrics.RecordSessionOp(ctx, opRestore, observe.StatusRejected, 0)
		return &IllegalStateError{Op: opRestore, State: s.State()}
	}

	s.mu.Lock()
	remaining := make([]transform.Entry, len(s.image))
	copy(remaining, s.image)
	s.mu.Unlock()

	ctx, span := observe.StartSpan(observe.WithSessionID(ctx, s.id), "session.restore",
		trace.WithAttributes(attribute.Int("session.image", len(remaining))),
	)
	defer span.End()

	start := time.Now()
	restored := 0
	defer func() {
		s.mu.Lock()
		s.image = remaining
		s.mu.Unlock()
		s.metrics.ImageEntries.Add(ctx, -int64(restored))

		elapsed := time.Since(start)
		s.metrics.RecordSessionOp(ctx, opRestore, observe.StatusOf(err), elapsed)
		if err != nil {
			// Re-arm so the caller can retry the remaining entries.
			s.state.Store(int32(StateModified))
			observe.FailSpan(span, err)
			s.logger.Error("restore failed", "restored", restored, "remaining", len(remaining), "duration", elapsed, "err", err)
			return
		}
		s.metrics.ActiveSessions.Add(ctx, -1)
		s.logger.Info("restored", "restored", restored, "duration", elapsed)
	}()

	for len(remaining) > 0 {
		e := remaining[len(remaining)-1]
		kind := e.Patch.Kind().String()
		_, applied, ierr := s.injector.Inject(e.Item, e.Patch)
		if ierr != nil {
			s.metrics.RecordInjection(ctx, opRestore, kind, observe.StatusError)
			return fmt.Errorf("session: %s %s: %w", opRestore, e.Item, ierr)
		}
		if !applied {
			// The item lost the property since it was captured; there is
			// nothing left to put back.
			s.metrics.RecordInjection(ctx, opRestore, kind, observe.StatusNotApplicable)
			s.logger.Warn("captured value no longer applicable", "item", e.Item.String(), "kind", kind)
		} else {
			s.metrics.RecordInjection(ctx, opRestore, kind, observe.StatusOK)
		}
		remaining = remaining[:len(remaining)-1]
		restored++
	}
	return nil
}
