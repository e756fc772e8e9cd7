package resilience

import (
	"errors"
	"fmt"
	"log/slog"
)

// ErrAllFailed is returned when every entry in a [FallbackGroup] fails or has
// an open circuit breaker. The error of the last entry tried is wrapped with
// it, so callers can still match on its sentinel.
var ErrAllFailed = errors.New("all sources failed")

// FallbackConfig configures the per-entry circuit breakers of a
// [FallbackGroup].
type FallbackConfig struct {
	CircuitBreaker CircuitBreakerConfig
}

type fallbackEntry[T any] struct {
	name    string
	value   T
	breaker *CircuitBreaker
}

// EntryStatus reports the breaker state of one [FallbackGroup] entry.
type EntryStatus struct {
	Name  string `json:"name"`
	State string `json:"state"`
}

// FallbackGroup holds a primary and zero or more fallback values. When the
// primary fails or its breaker is open, the next entry is tried in
// registration order.
type FallbackGroup[T any] struct {
	entries []fallbackEntry[T]
	cfg     FallbackConfig
	log     *slog.Logger
}

// NewFallbackGroup creates a [FallbackGroup] with primary as the first entry.
func NewFallbackGroup[T any](primary T, primaryName string, cfg FallbackConfig) *FallbackGroup[T] {
	log := cfg.CircuitBreaker.Logger
	if log == nil {
		log = slog.Default()
	}
	fg := &FallbackGroup[T]{cfg: cfg, log: log}
	fg.AddFallback(primaryName, primary)
	return fg
}

// AddFallback appends an entry. Entries are tried in the order they are
// added. It must not be called concurrently with Execute.
func (fg *FallbackGroup[T]) AddFallback(name string, fallback T) {
	cbCfg := fg.cfg.CircuitBreaker
	cbCfg.Name = name
	fg.entries = append(fg.entries, fallbackEntry[T]{
		name:    name,
		value:   fallback,
		breaker: NewCircuitBreaker(cbCfg),
	})
}

// Len returns the number of entries.
func (fg *FallbackGroup[T]) Len() int { return len(fg.entries) }

// Names returns the entry names in try order.
func (fg *FallbackGroup[T]) Names() []string {
	out := make([]string, len(fg.entries))
	for i, e := range fg.entries {
		out[i] = e.name
	}
	return out
}

// Status returns the breaker state of every entry in try order.
func (fg *FallbackGroup[T]) Status() []EntryStatus {
	out := make([]EntryStatus, len(fg.entries))
	for i, e := range fg.entries {
		out[i] = EntryStatus{Name: e.name, State: e.breaker.State().String()}
	}
	return out
}

// Available reports whether at least one entry's breaker would let a call
// through.
func (fg *FallbackGroup[T]) Available() bool {
	for _, e := range fg.entries {
		if e.breaker.State() != StateOpen {
			return true
		}
	}
	return false
}

// Execute tries fn against each entry in order until one succeeds.
func (fg *FallbackGroup[T]) Execute(fn func(T) error) error {
	_, err := ExecuteWithResult(fg, func(v T) (struct{}, error) {
		return struct{}{}, fn(v)
	})
	return err
}

// ExecuteWithResult tries fn against each entry in the group until one
// succeeds and returns its result. It is a function rather than a method
// because methods cannot declare type parameters.
func ExecuteWithResult[T any, R any](fg *FallbackGroup[T], fn func(T) (R, error)) (R, error) {
	var (
		lastErr error
		zero    R
	)
	for i := range fg.entries {
		entry := &fg.entries[i]
		var result R
		err := entry.breaker.Execute(func() error {
			var innerErr error
			result, innerErr = fn(entry.value)
			return innerErr
		})
		if err == nil {
			return result, nil
		}
		lastErr = err
		if errors.Is(err, ErrCircuitOpen) {
			fg.log.Debug("skipping source (circuit open)", "source", entry.name)
		} else {
			fg.log.Warn("source failed, trying next", "source", entry.name, "error", err)
		}
	}
	if lastErr == nil {
		return zero, fmt.Errorf("%w: group is empty", ErrAllFailed)
	}
	return zero, fmt.Errorf("%w: %w", ErrAllFailed, lastErr)
}
