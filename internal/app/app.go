// Package app wires the rebalance subsystems into a running daemon.
//
// The App struct owns the full lifecycle: New boots the host release, builds
// the injector and the patch sources, Run serves the admin API and follows
// config changes, and Shutdown restores the registry and tears everything
// down in reverse order.
//
// For testing, inject doubles via functional options (WithReleases,
// WithSources, etc.). When an option is not provided, New creates real
// implementations from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/rebalance/internal/config"
	"github.com/MrWong99/rebalance/internal/health"
	"github.com/MrWong99/rebalance/internal/host"
	"github.com/MrWong99/rebalance/internal/inject"
	"github.com/MrWong99/rebalance/internal/observe"
	"github.com/MrWong99/rebalance/internal/patchset"
	"github.com/MrWong99/rebalance/internal/release"
	"github.com/MrWong99/rebalance/internal/resilience"
	"github.com/MrWong99/rebalance/internal/session"
	"github.com/MrWong99/rebalance/pkg/transform"
)

// shutdownGrace bounds how long Run waits for in-flight admin requests.
const shutdownGrace = 10 * time.Second

// App owns all subsystem lifetimes.
type App struct {
	cfg     *config.Config
	cfgPath string

	releases *release.Registry
	registry *config.Registry
	catalog  *host.Catalog
	server   release.Server
	injector inject.Injector[transform.Transformer]
	sessions *SessionManager

	// mu guards the fields a config reload swaps.
	mu         sync.RWMutex
	sources    *resilience.SourceGroup
	srcClosers []io.Closer
	fixed      []patchset.Source

	log      *slog.Logger
	level    *slog.LevelVar
	metrics  *observe.Metrics
	health   *health.Handler
	metricsH http.Handler

	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithReleases replaces the registry of supported releases.
func WithReleases(r *release.Registry) Option {
	return func(a *App) { a.releases = r }
}

// WithSourceRegistry replaces the registry used to build patch sources from
// config entries.
func WithSourceRegistry(r *config.Registry) Option {
	return func(a *App) { a.registry = r }
}

// WithSources bypasses the configured source entries and loads patch sets
// from srcs, in order.
func WithSources(srcs ...patchset.Source) Option {
	return func(a *App) { a.fixed = srcs }
}

// WithCatalog injects a catalog instead of reading runtime.catalog.
func WithCatalog(c *host.Catalog) Option {
	return func(a *App) { a.catalog = c }
}

// WithConfigPath enables config watching in Run for the file at path.
func WithConfigPath(path string) Option {
	return func(a *App) { a.cfgPath = path }
}

// WithLogger sets the application logger. Defaults to [slog.Default].
func WithLogger(l *slog.Logger) Option {
	return func(a *App) { a.log = l }
}

// WithLevelVar lets config reloads change the log level of the handler
// built in main.
func WithLevelVar(v *slog.LevelVar) Option {
	return func(a *App) { a.level = v }
}

// WithMetrics sets the metrics sink. Defaults to [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithMetricsHandler sets the handler served on /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(a *App) { a.metricsH = h }
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New creates an App by booting the configured release and connecting the
// patch sources. Sources are created concurrently.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	a := &App{cfg: cfg}
	for _, o := range opts {
		o(a)
	}
	if a.log == nil {
		a.log = slog.Default()
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}
	if a.releases == nil {
		a.releases = release.Default()
	}
	if a.registry == nil {
		a.registry = config.DefaultRegistry()
	}

	// ── 1. Host release ──────────────────────────────────────────────────
	if err := a.initHost(); err != nil {
		return nil, fmt.Errorf("app: init host: %w", err)
	}

	// ── 2. Patch sources ─────────────────────────────────────────────────
	group, closers, err := a.buildSources(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("app: init sources: %w", err)
	}
	a.sources = group
	a.srcClosers = closers

	// ── 3. Sessions ──────────────────────────────────────────────────────
	a.sessions = NewSessionManager(SessionManagerConfig{
		Injector: a.injector,
		Release:  a.server.VersionTag(),
		Restorer: a.newRestorer(cfg.Restore),
		Logger:   a.log,
		Metrics:  a.metrics,
	})

	// ── 4. Health ────────────────────────────────────────────────────────
	a.health = health.New(a.checkers()...)

	return a, nil
}

// ─── Init helpers ────────────────────────────────────────────────────────────

// initHost loads the catalog, boots the release and builds its injector.
func (a *App) initHost() error {
	if a.catalog == nil {
		var err error
		if path := a.cfg.Runtime.Catalog; path != "" {
			a.catalog, err = host.LoadCatalogFile(path)
		} else {
			a.catalog, err = host.DefaultCatalog()
		}
		if err != nil {
			return err
		}
	}

	server, err := a.releases.Boot(a.cfg.Runtime.Release, a.catalog)
	if err != nil {
		return err
	}
	injector, err := a.releases.Injector(server, inject.WithLogger(a.log))
	if err != nil {
		return err
	}
	a.server = server
	a.injector = injector
	a.log.Info("host release booted",
		"release", server.VersionTag(),
		"catalog", a.catalog.Name,
		"items", len(server.Items()),
	)
	return nil
}

// buildSources creates one source per config entry and groups them behind
// circuit breakers in config order.
func (a *App) buildSources(ctx context.Context, cfg *config.Config) (*resilience.SourceGroup, []io.Closer, error) {
	fcfg := resilience.FallbackConfig{
		CircuitBreaker: resilience.CircuitBreakerConfig{
			MaxFailures:  cfg.Patches.CircuitBreaker.MaxFailures,
			ResetTimeout: cfg.Patches.CircuitBreaker.ResetTimeout,
			OnStateChange: func(name string, from, to resilience.State) {
				a.metrics.RecordBreakerTransition(context.Background(), name, from.String(), to.String())
			},
			Logger: a.log,
		},
	}

	if len(a.fixed) > 0 {
		return resilience.NewSourceGroup(fcfg, a.fixed[0], a.fixed[1:]...), nil, nil
	}

	entries := cfg.Patches.Sources
	if len(entries) == 0 {
		entries = []config.SourceEntry{{Kind: config.SourceEmbedded}}
	}

	srcs := make([]patchset.Source, len(entries))
	closers := make([]io.Closer, len(entries))
	g, gctx := errgroup.WithContext(ctx)
	for i, e := range entries {
		g.Go(func() error {
			src, closer, err := a.registry.CreateSource(gctx, e)
			if err != nil {
				return fmt.Errorf("patches.sources[%d] (%s): %w", i, e.Kind, err)
			}
			srcs[i], closers[i] = src, closer
			return nil
		})
	}
	err := g.Wait()

	var kept []io.Closer
	for _, c := range closers {
		if c != nil {
			kept = append(kept, c)
		}
	}
	if err != nil {
		closeAll(a.log, kept)
		return nil, nil, err
	}
	return resilience.NewSourceGroup(fcfg, srcs[0], srcs[1:]...), kept, nil
}

func (a *App) newRestorer(rc config.RestoreConfig) *session.Restorer {
	return session.NewRestorer(session.RestorerConfig{
		MaxAttempts: rc.MaxAttempts,
		Backoff:     rc.Backoff,
		MaxBackoff:  rc.MaxBackoff,
		Logger:      a.log,
	})
}

// checkers returns the readiness checks: at least one patch source must be
// accepting requests; individual open breakers only degrade readiness.
func (a *App) checkers() []health.Checker {
	return []health.Checker{
		{
			Name: "patches",
			Check: func(context.Context) error {
				if !a.sourceGroup().Available() {
					return errors.New("every patch source is circuit-open")
				}
				return nil
			},
		},
		{
			Name:     "sources",
			Optional: true,
			Check: func(context.Context) error {
				var open []string
				for _, st := range a.sourceGroup().Status() {
					if st.State == resilience.StateOpen.String() {
						open = append(open, st.Name)
					}
				}
				if len(open) > 0 {
					return fmt.Errorf("circuit open: %s", strings.Join(open, ", "))
				}
				return nil
			},
		},
	}
}

func (a *App) sourceGroup() *resilience.SourceGroup {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.sources
}

func (a *App) currentConfig() *config.Config {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.cfg
}

// ─── Operations ──────────────────────────────────────────────────────────────

// Release returns the version tag of the booted host.
func (a *App) Release() string { return a.server.VersionTag() }

// Sessions exposes the session manager.
func (a *App) Sessions() *SessionManager { return a.sessions }

// Injector exposes the composite injector of the booted release.
func (a *App) Injector() inject.Injector[transform.Transformer] { return a.injector }

// LoadPatches fetches and validates the patch set for the booted release
// without applying it.
func (a *App) LoadPatches(ctx context.Context) (*patchset.Document, string, error) {
	src := a.sourceGroup()
	doc, err := patchset.Load(ctx, src, a.server.VersionTag(),
		patchset.WithKnownItems(a.server.Items()...),
		patchset.WithSuggestThreshold(a.currentConfig().Patches.SuggestThreshold),
		patchset.WithLogger(a.log),
		patchset.WithMetrics(a.metrics),
	)
	if err != nil {
		return nil, src.Name(), err
	}
	return doc, src.Name(), nil
}

// Apply loads the patch set and modifies the registry with it. See
// [SessionManager.Apply] for the failure semantics.
func (a *App) Apply(ctx context.Context) (SessionInfo, error) {
	if a.sessions.IsActive() {
		info, _ := a.sessions.Info()
		return info, fmt.Errorf("%w (id=%s)", ErrSessionActive, info.SessionID)
	}
	doc, source, err := a.LoadPatches(ctx)
	if err != nil {
		return SessionInfo{}, fmt.Errorf("app: load patches: %w", err)
	}
	return a.sessions.Apply(ctx, doc.Patches, source)
}

// Restore undoes the active session. See [SessionManager.Restore].
func (a *App) Restore(ctx context.Context) (SessionInfo, error) {
	return a.sessions.Restore(ctx)
}

// Reload adopts a changed config. Patch source changes rebuild the source
// group and, when a session is active, restore and reapply it. Release and
// catalog changes need a restart because the host is booted once.
func (a *App) Reload(ctx context.Context, next *config.Config) error {
	cur := a.currentConfig()
	d := config.Diff(cur, next)
	if d.Empty() {
		return nil
	}

	if d.LogLevelChanged && a.level != nil {
		a.level.Set(ParseLevel(d.NewLogLevel))
		a.log.Info("log level changed", "level", d.NewLogLevel)
	}
	if d.ListenAddrChanged {
		a.log.Warn("listen address change needs a restart", "listen_addr", next.Server.ListenAddr)
	}
	if d.ReleaseChanged || d.CatalogChanged {
		a.log.Warn("release or catalog change needs a restart",
			"release", next.Runtime.Release,
			"catalog", next.Runtime.Catalog,
		)
	}
	if d.RestorePolicyChanged {
		a.sessions.SetRestorer(a.newRestorer(next.Restore))
	}

	var errs []error
	if d.SourcesChanged && len(a.fixed) == 0 {
		group, closers, err := a.buildSources(ctx, next)
		if err != nil {
			// Keep serving from the previous sources.
			return fmt.Errorf("app: reload sources: %w", err)
		}
		a.mu.Lock()
		old := a.srcClosers
		a.sources, a.srcClosers = group, closers
		a.mu.Unlock()
		closeAll(a.log, old)
		a.log.Info("patch sources reloaded", "sources", group.Name())

		if a.sessions.IsActive() {
			errs = append(errs, a.reapply(ctx))
		}
	}

	// The booted release stays in effect until restart.
	adopted := *next
	adopted.Runtime.Release = cur.Runtime.Release
	adopted.Runtime.Catalog = cur.Runtime.Catalog
	a.mu.Lock()
	a.cfg = &adopted
	a.mu.Unlock()
	return errors.Join(errs...)
}

// reapply restores the active session and applies the freshly loaded patch
// set.
func (a *App) reapply(ctx context.Context) error {
	if _, err := a.Restore(ctx); err != nil {
		return err
	}
	info, err := a.Apply(ctx)
	if err != nil {
		return err
	}
	a.log.Info("patch set reapplied", "session_id", info.SessionID, "source", info.Source)
	return nil
}

// ─── Run ─────────────────────────────────────────────────────────────────────

// Run applies the patch set when configured to, serves the admin API and
// watches the config file until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	cfg := a.currentConfig()
	if cfg.Runtime.ApplyOnStart {
		info, err := a.Apply(ctx)
		if err != nil {
			a.log.Error("apply on start failed", "err", err)
		} else {
			a.log.Info("patch set applied on start",
				"session_id", info.SessionID,
				"transformers", info.Transformers,
			)
		}
	}

	srv := &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           a.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.log.Info("admin server listening", "addr", srv.Addr)
		var err error
		if tls := cfg.Server.TLS; tls != nil {
			err = srv.ListenAndServeTLS(tls.CertFile, tls.KeyFile)
		} else {
			err = srv.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("app: admin server: %w", err)
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownGrace)
		defer cancel()
		return srv.Shutdown(sctx)
	})
	if a.cfgPath != "" && cfg.Observability.WatchInterval > 0 {
		g.Go(func() error { return a.watch(gctx, cfg.Observability.WatchInterval) })
	}
	return g.Wait()
}

// watch reloads the config file on change until ctx is done.
func (a *App) watch(ctx context.Context, every time.Duration) error {
	w, err := config.NewWatcher(a.cfgPath, func(_, next *config.Config) {
		if err := a.Reload(ctx, next); err != nil {
			a.log.Error("config reload failed", "err", err)
		}
	},
		config.WithInterval(every),
		config.WithWatchLogger(a.log),
	)
	if err != nil {
		return fmt.Errorf("app: %w", err)
	}
	<-ctx.Done()
	w.Stop()
	return nil
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown restores any active session and closes the patch sources in
// reverse order. It respects the context deadline: if ctx expires before all
// closers finish, remaining closers are skipped and the context error is
// returned.
func (a *App) Shutdown(ctx context.Context) error {
	var errs []error
	a.stopOnce.Do(func() {
		a.log.Info("shutting down")

		if a.sessions.IsActive() {
			if _, err := a.sessions.Restore(ctx); err != nil {
				a.log.Error("restore on shutdown failed", "err", err)
				errs = append(errs, err)
			}
		}

		a.mu.Lock()
		closers := a.srcClosers
		a.srcClosers = nil
		a.mu.Unlock()

		for i := len(closers) - 1; i >= 0; i-- {
			select {
			case <-ctx.Done():
				a.log.Warn("shutdown deadline exceeded", "remaining", i+1)
				errs = append(errs, ctx.Err())
				return
			default:
			}
			if err := closers[i].Close(); err != nil {
				a.log.Warn("closer error", "index", i, "err", err)
			}
		}

		a.log.Info("shutdown complete")
	})
	return errors.Join(errs...)
}

func closeAll(log *slog.Logger, closers []io.Closer) {
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i].Close(); err != nil {
			log.Warn("closer error", "index", i, "err", err)
		}
	}
}

// ParseLevel maps a config log level to a [slog.Level]. Unknown values map
// to info.
func ParseLevel(l config.LogLevel) slog.Level {
	switch l {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	}
	return slog.LevelInfo
}
