package config

import (
	"crypto/sha256"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/caarlos0/env/v11"
)

// Watcher polls a config file and calls a callback when its content changes
// and still loads. Invalid edits are logged and ignored; the last valid
// config stays current.
type Watcher struct {
	path     string
	interval time.Duration
	onChange func(old, new *Config)
	environ  map[string]string
	log      *slog.Logger

	mu       sync.Mutex
	current  *Config
	done     chan struct{}
	stopOnce sync.Once

	lastMtime time.Time
	lastHash  [sha256.Size]byte
}

// WatcherOption configures a [Watcher].
type WatcherOption func(*Watcher)

// WithInterval sets the polling interval. The default is 5 seconds.
func WithInterval(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.interval = d
		}
	}
}

// WithEnvironment replaces the process environment used for overrides.
func WithEnvironment(environ map[string]string) WatcherOption {
	return func(w *Watcher) { w.environ = environ }
}

// WithWatchLogger sets the watcher logger. Defaults to [slog.Default].
func WithWatchLogger(l *slog.Logger) WatcherOption {
	return func(w *Watcher) { w.log = l }
}

// NewWatcher loads the config at path and starts polling it in a background
// goroutine. Call [Watcher.Stop] to end polling.
func NewWatcher(path string, onChange func(old, new *Config), opts ...WatcherOption) (*Watcher, error) {
	w := &Watcher{
		path:     path,
		interval: DefaultWatchInterval,
		onChange: onChange,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.environ == nil {
		w.environ = env.ToMap(os.Environ())
	}
	if w.log == nil {
		w.log = slog.Default()
	}

	cfg, hash, mtime, err := w.loadAndHash()
	if err != nil {
		return nil, fmt.Errorf("config: watcher initial load: %w", err)
	}
	w.current = cfg
	w.lastHash = hash
	w.lastMtime = mtime

	go w.poll()
	return w, nil
}

// Current returns the most recently loaded valid config.
func (w *Watcher) Current() *Config {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

// Stop stops polling. It is safe to call more than once.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
	})
}

func (w *Watcher) poll() {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
			w.check()
		}
	}
}

// check reloads the file when its mtime moved and its hash differs.
func (w *Watcher) check() {
	info, err := os.Stat(w.path)
	if err != nil {
		w.log.Warn("config watcher: cannot stat file", "path", w.path, "err", err)
		return
	}

	w.mu.Lock()
	mtime := w.lastMtime
	w.mu.Unlock()

	if info.ModTime().Equal(mtime) {
		return
	}

	cfg, hash, newMtime, err := w.loadAndHash()
	if err != nil {
		w.log.Warn("config watcher: keeping previous config", "path", w.path, "err", err)
		return
	}

	w.mu.Lock()
	if hash == w.lastHash {
		// Touched, not edited.
		w.lastMtime = newMtime
		w.mu.Unlock()
		return
	}
	old := w.current
	w.current = cfg
	w.lastHash = hash
	w.lastMtime = newMtime
	w.mu.Unlock()

	w.log.Info("config watcher: configuration reloaded", "path", w.path)

	// Outside the lock so the callback may call Current.
	if w.onChange != nil {
		w.onChange(old, cfg)
	}
}

func (w *Watcher) loadAndHash() (*Config, [sha256.Size]byte, time.Time, error) {
	var zeroHash [sha256.Size]byte

	info, err := os.Stat(w.path)
	if err != nil {
		return nil, zeroHash, time.Time{}, err
	}
	data, err := os.ReadFile(w.path)
	if err != nil {
		return nil, zeroHash, time.Time{}, err
	}
	cfg, err := parseBytes(data, w.environ)
	if err != nil {
		return nil, zeroHash, time.Time{}, err
	}
	return cfg, sha256.Sum256(data), info.ModTime(), nil
}
