package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Default retry parameters.
const (
	defaultMaxAttempts = 5
	defaultBackoff     = 200 * time.Millisecond
	defaultMaxBackoff  = 5 * time.Second
)

// Restorable is the part of [Session] a [Restorer] drives.
type Restorable interface {
	Restore(ctx context.Context) error
	ImageLen() int
}

var _ Restorable = (*Session)(nil)

// Restorer retries [Session.Restore] with exponential backoff until the
// session image is drained.
//
// A failed restore leaves the remaining captured values in the image, so each
// retry only re-injects what has not been restored yet.
type Restorer struct {
	maxAttempts int
	backoff     time.Duration
	maxBackoff  time.Duration
	logger      *slog.Logger
}

// RestorerConfig configures a [Restorer].
type RestorerConfig struct {
	// MaxAttempts is the maximum number of Restore calls. Defaults to 5 if zero.
	MaxAttempts int

	// Backoff is the initial wait between attempts. Doubles each attempt up
	// to MaxBackoff. Defaults to 200ms if zero.
	Backoff time.Duration

	// MaxBackoff is the upper limit on the wait. Defaults to 5s if zero.
	MaxBackoff time.Duration

	// Logger receives attempt logs. Defaults to [slog.Default].
	Logger *slog.Logger
}

// NewRestorer creates a new [Restorer] with the given configuration.
func NewRestorer(cfg RestorerConfig) *Restorer {
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	backoff := cfg.Backoff
	if backoff <= 0 {
		backoff = defaultBackoff
	}
	maxBackoff := cfg.MaxBackoff
	if maxBackoff <= 0 {
		maxBackoff = defaultMaxBackoff
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Restorer{
		maxAttempts: maxAttempts,
		backoff:     backoff,
		maxBackoff:  maxBackoff,
		logger:      logger,
	}
}

// Restore calls s.Restore until it succeeds, the attempts are exhausted or
// ctx is done. An [*IllegalStateError] is returned immediately since retrying
// cannot fix it.
func (r *Restorer) Restore(ctx context.Context, s Restorable) error {
	currentBackoff := r.backoff
	var lastErr error

	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		err := s.Restore(ctx)
		if err == nil {
			if attempt > 1 {
				r.logger.Info("restore succeeded after retry", "attempt", attempt)
			}
			return nil
		}
		if errors.Is(err, ErrIllegalState) {
			return err
		}
		lastErr = err

		r.logger.Warn("restore attempt failed",
			"attempt", attempt,
			"max_attempts", r.maxAttempts,
			"remaining", s.ImageLen(),
			"backoff", currentBackoff,
			"err", err,
		)

		if attempt == r.maxAttempts {
			break
		}

		// Wait before retrying.
		select {
		case <-ctx.Done():
			return fmt.Errorf("session: restore interrupted with %d value(s) pending: %w", s.ImageLen(), errors.Join(ctx.Err(), lastErr))
		case <-time.After(currentBackoff):
		}

		// Exponential backoff.
		currentBackoff *= 2
		if currentBackoff > r.maxBackoff {
			currentBackoff = r.maxBackoff
		}
	}

	return fmt.Errorf("session: restore failed after %d attempt(s) with %d value(s) pending: %w", r.maxAttempts, s.ImageLen(), lastErr)
}
