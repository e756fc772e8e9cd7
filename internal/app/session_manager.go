package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/MrWong99/rebalance/internal/inject"
	"github.com/MrWong99/rebalance/internal/observe"
	"github.com/MrWong99/rebalance/internal/session"
	"github.com/MrWong99/rebalance/pkg/item"
	"github.com/MrWong99/rebalance/pkg/transform"
)

var (
	// ErrSessionActive is returned by [SessionManager.Apply] while a
	// previous patch set has not been restored.
	ErrSessionActive = errors.New("app: a session is already active")

	// ErrNoSession is returned by [SessionManager.Restore] when nothing is
	// applied.
	ErrNoSession = errors.New("app: no session is active")
)

// SessionInfo holds metadata about the active session.
type SessionInfo struct {
	// SessionID is the unique identifier for this session.
	SessionID string `json:"session_id"`

	// Release is the version tag the patch set was applied to.
	Release string `json:"release"`

	// Source names the patch source(s) the patch set was loaded through.
	Source string `json:"source"`

	// StartedAt is when the session was created.
	StartedAt time.Time `json:"started_at"`

	// State is "unmodified" or "modified".
	State string `json:"state"`

	// Items and Transformers size the applied patch set.
	Items        int `json:"items"`
	Transformers int `json:"transformers"`

	// Kinds counts transformers by kind.
	Kinds map[string]int `json:"kinds"`

	// Pending is the number of captured values still waiting to be restored.
	Pending int `json:"pending"`
}

// SessionManager holds at most one [session.Session] at a time and drives
// it through modify and restore. All exported methods are safe for
// concurrent use.
type SessionManager struct {
	// restoring serialises Restore calls. mu guards the fields below and is
	// never held across a restore backoff.
	restoring sync.Mutex

	mu       sync.Mutex
	current  *session.Session
	source   string
	restorer *session.Restorer

	injector inject.Injector[transform.Transformer]
	release  string
	log      *slog.Logger
	metrics  *observe.Metrics
}

// SessionManagerConfig holds all dependencies for a [SessionManager].
type SessionManagerConfig struct {
	Injector inject.Injector[transform.Transformer]
	Release  string
	Restorer *session.Restorer
	Logger   *slog.Logger
	Metrics  *observe.Metrics
}

// NewSessionManager creates a SessionManager with the given dependencies.
func NewSessionManager(cfg SessionManagerConfig) *SessionManager {
	sm := &SessionManager{
		injector: cfg.Injector,
		release:  cfg.Release,
		restorer: cfg.Restorer,
		log:      cfg.Logger,
		metrics:  cfg.Metrics,
	}
	if sm.log == nil {
		sm.log = slog.Default()
	}
	if sm.restorer == nil {
		sm.restorer = session.NewRestorer(session.RestorerConfig{Logger: sm.log})
	}
	if sm.metrics == nil {
		sm.metrics = observe.DefaultMetrics()
	}
	return sm
}

// Apply creates a session for patches and modifies the registry with it.
//
// When Modify fails the session is kept, since some items may already be
// patched; the returned info describes it and [SessionManager.Restore] undoes
// the partial application. Returns [ErrSessionActive] if a session is
// already held.
func (sm *SessionManager) Apply(ctx context.Context, patches transform.PatchSet, source string) (SessionInfo, error) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.current != nil {
		return sm.infoLocked(), fmt.Errorf("%w (id=%s)", ErrSessionActive, sm.current.ID())
	}

	s, err := session.New(sm.injector, patches,
		session.WithLogger(sm.log.With("release", sm.release)),
		session.WithMetrics(sm.metrics),
	)
	if err != nil {
		return SessionInfo{}, fmt.Errorf("app: new session: %w", err)
	}
	sm.current = s
	sm.source = source

	if err := s.Modify(ctx); err != nil {
		sm.log.Warn("patch set partially applied; restore to undo",
			"session_id", s.ID(),
			"pending", s.ImageLen(),
		)
		return sm.infoLocked(), fmt.Errorf("app: apply: %w", err)
	}
	return sm.infoLocked(), nil
}

// Restore undoes the active session, retrying until every captured value is
// back. The session is dropped only once its image is drained; on error it
// stays active so Restore can be called again. Info, IsActive and Pending
// keep answering while the retries wait.
func (sm *SessionManager) Restore(ctx context.Context) (SessionInfo, error) {
	sm.restoring.Lock()
	defer sm.restoring.Unlock()

	sm.mu.Lock()
	s, restorer := sm.current, sm.restorer
	sm.mu.Unlock()
	if s == nil {
		return SessionInfo{}, ErrNoSession
	}

	err := restorer.Restore(ctx, s)

	sm.mu.Lock()
	defer sm.mu.Unlock()
	info := sm.infoLocked()
	if err != nil {
		return info, fmt.Errorf("app: restore: %w", err)
	}
	sm.current = nil
	sm.source = ""
	return info, nil
}

// SetRestorer replaces the retry policy used by later restores.
func (sm *SessionManager) SetRestorer(r *session.Restorer) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.restorer = r
}

// Info returns metadata about the active session. ok is false when no
// session is active.
func (sm *SessionManager) Info() (info SessionInfo, ok bool) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if sm.current == nil {
		return SessionInfo{}, false
	}
	return sm.infoLocked(), true
}

// IsActive reports whether a session is held.
func (sm *SessionManager) IsActive() bool {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.current != nil
}

// Pending returns the transformers the active session applies to id.
func (sm *SessionManager) Pending(id item.ID) []transform.Transformer {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if sm.current == nil {
		return nil
	}
	return sm.current.Patches().Get(id)
}

func (sm *SessionManager) infoLocked() SessionInfo {
	s := sm.current
	if s == nil {
		return SessionInfo{}
	}
	patches := s.Patches()
	kinds := make(map[string]int)
	for k, n := range patches.CountByKind() {
		kinds[k.String()] = n
	}
	return SessionInfo{
		SessionID:    s.ID(),
		Release:      sm.release,
		Source:       sm.source,
		StartedAt:    s.CreatedAt(),
		State:        s.State().String(),
		Items:        len(patches.Items()),
		Transformers: patches.Len(),
		Kinds:        kinds,
		Pending:      s.ImageLen(),
	}
}
