// Package resilience guards patch-set sources with circuit breakers and
// ordered failover.
//
// [CircuitBreaker] is a three-state breaker (closed, open, half-open).
// [FallbackGroup] tries a list of values of any type in order, each behind
// its own breaker, and [SourceGroup] applies it to [patchset.Source] values
// so that a database outage falls back to the next configured source.
//
// All types are safe for concurrent use.
package resilience

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrCircuitOpen is returned by [CircuitBreaker.Execute] when the breaker is
// open and the reset timeout has not yet elapsed.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// State is the operating mode of a [CircuitBreaker].
type State int

const (
	// StateClosed forwards every call.
	StateClosed State = iota

	// StateOpen rejects calls with [ErrCircuitOpen] until the reset timeout
	// elapses.
	StateOpen

	// StateHalfOpen lets a limited number of probe calls through. They close
	// the breaker on success and re-open it on failure.
	StateHalfOpen
)

// String returns the human-readable name of the state.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreakerConfig holds tuning knobs for a [CircuitBreaker].
type CircuitBreakerConfig struct {
	// Name labels the breaker in logs and transition callbacks.
	Name string

	// MaxFailures is the number of consecutive failures in the closed state
	// before the breaker opens. Default: 5.
	MaxFailures int

	// ResetTimeout is how long the breaker stays open before moving to
	// half-open. Default: 30s.
	ResetTimeout time.Duration

	// HalfOpenMax is the number of successful probes needed to close the
	// breaker again. Default: 3.
	HalfOpenMax int

	// IsFailure decides whether an error returned by the guarded call counts
	// against the breaker. Errors it rejects are still returned to the caller.
	// Default: every non-nil error counts.
	IsFailure func(error) bool

	// OnStateChange is called after every transition. It runs with the
	// breaker locked and must not call back into it.
	OnStateChange func(name string, from, to State)

	// Now replaces [time.Now]. Tests use it to step past ResetTimeout.
	Now func() time.Time

	// Logger defaults to [slog.Default].
	Logger *slog.Logger
}

// CircuitBreaker implements the three-state circuit breaker pattern.
type CircuitBreaker struct {
	cfg CircuitBreakerConfig
	log *slog.Logger

	mu       sync.Mutex
	state    State
	failures int // consecutive, closed state only
	openedAt time.Time
	probes   int // admitted while half-open
	passed   int // succeeded while half-open
}

// NewCircuitBreaker creates a [CircuitBreaker]. Zero-value config fields get
// their defaults.
func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 5
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 30 * time.Second
	}
	if cfg.HalfOpenMax <= 0 {
		cfg.HalfOpenMax = 3
	}
	if cfg.IsFailure == nil {
		cfg.IsFailure = func(err error) bool { return err != nil }
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &CircuitBreaker{
		cfg:   cfg,
		log:   cfg.Logger.With("breaker", cfg.Name),
		state: StateClosed,
	}
}

// Execute runs fn if the breaker allows it. In the open state, and in the
// half-open state once HalfOpenMax probes are in flight, it returns
// [ErrCircuitOpen] without calling fn.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	probe, err := cb.admit()
	if err != nil {
		return err
	}

	err = fn()

	cb.mu.Lock()
	defer cb.mu.Unlock()
	if err != nil && cb.cfg.IsFailure(err) {
		cb.onFailure(probe)
	} else {
		cb.onSuccess(probe)
	}
	return err
}

// admit decides whether a call may run and whether it is a half-open probe.
func (cb *CircuitBreaker) admit() (probe bool, err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateOpen {
		if cb.cfg.Now().Sub(cb.openedAt) < cb.cfg.ResetTimeout {
			return false, ErrCircuitOpen
		}
		cb.probes, cb.passed = 0, 0
		cb.transition(StateHalfOpen)
	}
	if cb.state != StateHalfOpen {
		return false, nil
	}
	if cb.probes >= cb.cfg.HalfOpenMax {
		return false, ErrCircuitOpen
	}
	cb.probes++
	return true, nil
}

// onFailure must be called with cb.mu held.
func (cb *CircuitBreaker) onFailure(probe bool) {
	if probe {
		// A late probe may report after another probe already re-opened.
		if cb.state == StateHalfOpen {
			cb.trip()
		}
		return
	}
	cb.failures++
	if cb.state == StateClosed && cb.failures >= cb.cfg.MaxFailures {
		cb.trip()
	}
}

// onSuccess must be called with cb.mu held.
func (cb *CircuitBreaker) onSuccess(probe bool) {
	if !probe {
		cb.failures = 0
		return
	}
	if cb.state != StateHalfOpen {
		return
	}
	cb.passed++
	if cb.passed >= cb.cfg.HalfOpenMax {
		cb.failures, cb.probes, cb.passed = 0, 0, 0
		cb.transition(StateClosed)
	}
}

// trip opens the breaker. Must be called with cb.mu held.
func (cb *CircuitBreaker) trip() {
	cb.openedAt = cb.cfg.Now()
	cb.transition(StateOpen)
}

// transition must be called with cb.mu held.
func (cb *CircuitBreaker) transition(to State) {
	from := cb.state
	if from == to {
		return
	}
	cb.state = to
	switch to {
	case StateOpen:
		cb.log.Warn("circuit breaker opened", "from", from.String(), "consecutive_failures", cb.failures)
	default:
		cb.log.Info("circuit breaker "+to.String(), "from", from.String())
	}
	if cb.cfg.OnStateChange != nil {
		cb.cfg.OnStateChange(cb.cfg.Name, from, to)
	}
}

// State returns the current [State]. An open breaker whose reset timeout has
// elapsed reports [StateHalfOpen]; the transition itself happens on the next
// [CircuitBreaker.Execute].
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateOpen && cb.cfg.Now().Sub(cb.openedAt) >= cb.cfg.ResetTimeout {
		return StateHalfOpen
	}
	return cb.state
}

// Reset forces the breaker back to [StateClosed].
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures, cb.probes, cb.passed = 0, 0, 0
	cb.transition(StateClosed)
}
