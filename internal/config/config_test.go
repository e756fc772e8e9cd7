package config_test

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/MrWong99/rebalance/internal/config"
	"github.com/MrWong99/rebalance/internal/patchset"
)

const validYAML = `
server:
  listen_addr: ":9090"
  log_level: debug
runtime:
  release: v1_17_R1
  apply_on_start: true
patches:
  suggest_threshold: 0.9
  circuit_breaker:
    max_failures: 3
    reset_timeout: 10s
  sources:
    - kind: postgres
      dsn: "postgres://localhost/rebalance"
      migrate: true
    - kind: file
      dir: /etc/rebalance/patches
    - kind: embedded
restore:
  max_attempts: 3
  backoff: 100ms
  max_backoff: 2s
observability:
  metrics: true
  watch_interval: 1s
`

func TestLoadFromReader_Valid(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadFromReader(strings.NewReader(validYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := &config.Config{
		Server: config.ServerConfig{ListenAddr: ":9090", LogLevel: config.LogDebug},
		Runtime: config.RuntimeConfig{
			Release:      "v1_17_R1",
			ApplyOnStart: true,
		},
		Patches: config.PatchesConfig{
			Sources: []config.SourceEntry{
				{Kind: config.SourcePostgres, DSN: "postgres://localhost/rebalance", Migrate: true},
				{Kind: config.SourceFile, Dir: "/etc/rebalance/patches"},
				{Kind: config.SourceEmbedded},
			},
			SuggestThreshold: 0.9,
			CircuitBreaker:   config.BreakerConfig{MaxFailures: 3, ResetTimeout: 10 * time.Second},
		},
		Restore: config.RestoreConfig{
			MaxAttempts: 3,
			Backoff:     100 * time.Millisecond,
			MaxBackoff:  2 * time.Second,
		},
		Observability: config.ObservabilityConfig{Metrics: true, WatchInterval: time.Second},
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadFromReader_EmptyIsValid(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadFromReader(strings.NewReader(""))
	if err != nil {
		t.Fatalf("unexpected error for empty config: %v", err)
	}
	want := config.Default()
	want.Observability.Metrics = false
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("defaults mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadFromReader_UnknownField(t *testing.T) {
	t.Parallel()

	_, err := config.LoadFromReader(strings.NewReader("runtime:\n  relase: v1_16_R1\n"))
	if err == nil {
		t.Fatal("expected error for unknown field, got nil")
	}
	if !strings.Contains(err.Error(), "relase") {
		t.Errorf("error should name the unknown field, got: %v", err)
	}
}

func TestDefault(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	if cfg.Server.ListenAddr != config.DefaultListenAddr {
		t.Errorf("listen_addr: got %q, want %q", cfg.Server.ListenAddr, config.DefaultListenAddr)
	}
	if cfg.Runtime.Release != config.DefaultRelease {
		t.Errorf("release: got %q, want %q", cfg.Runtime.Release, config.DefaultRelease)
	}
	if len(cfg.Patches.Sources) != 1 || cfg.Patches.Sources[0].Kind != config.SourceEmbedded {
		t.Errorf("sources: got %+v, want embedded only", cfg.Patches.Sources)
	}
	if !cfg.Observability.Metrics {
		t.Error("metrics should default to enabled")
	}
	if err := config.Validate(cfg); err != nil {
		t.Errorf("default config should validate, got: %v", err)
	}
}

func TestRegistry_Kinds(t *testing.T) {
	t.Parallel()

	got := config.DefaultRegistry().Kinds()
	want := []config.SourceKind{
		config.SourceEmbedded,
		config.SourceFile,
		config.SourcePostgres,
		config.SourceS3,
		config.SourceSQLite,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("kinds mismatch (-want +got):\n%s", diff)
	}
}

func TestRegistry_Unknown(t *testing.T) {
	t.Parallel()

	_, _, err := config.NewRegistry().CreateSource(context.Background(), config.SourceEntry{Kind: "consul"})
	if !errors.Is(err, config.ErrSourceNotRegistered) {
		t.Errorf("expected ErrSourceNotRegistered, got %v", err)
	}
}

func TestRegistry_BuiltinSources(t *testing.T) {
	t.Parallel()

	reg := config.DefaultRegistry()
	ctx := context.Background()

	tests := []struct {
		entry    config.SourceEntry
		wantName string
	}{
		{entry: config.SourceEntry{Kind: config.SourceEmbedded}, wantName: "embedded"},
		{entry: config.SourceEntry{Kind: config.SourceFile, Dir: "/srv/patches"}, wantName: "file:/srv/patches"},
		{entry: config.SourceEntry{Kind: config.SourceSQLite, Path: ":memory:"}, wantName: "sqlite"},
	}
	for _, tt := range tests {
		t.Run(string(tt.entry.Kind), func(t *testing.T) {
			t.Parallel()
			src, closer, err := reg.CreateSource(ctx, tt.entry)
			if err != nil {
				t.Fatalf("CreateSource: %v", err)
			}
			if closer != nil {
				t.Cleanup(func() { _ = closer.Close() })
			}
			if got := src.Name(); got != tt.wantName {
				t.Errorf("Name: got %q, want %q", got, tt.wantName)
			}
		})
	}
}

type stubSource struct{ name string }

func (s stubSource) Name() string { return s.name }
func (s stubSource) Fetch(context.Context, string) ([]byte, error) {
	return nil, patchset.ErrNotFound
}

func TestRegistry_CustomSource(t *testing.T) {
	t.Parallel()

	reg := config.NewRegistry()
	reg.RegisterSource("consul", func(_ context.Context, e config.SourceEntry) (patchset.Source, io.Closer, error) {
		return stubSource{name: "consul:" + e.Dir}, nil, nil
	})

	src, _, err := reg.CreateSource(context.Background(), config.SourceEntry{Kind: "consul", Dir: "kv"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if src.Name() != "consul:kv" {
		t.Errorf("Name: got %q, want %q", src.Name(), "consul:kv")
	}
}

func TestRegistry_FactoryError(t *testing.T) {
	t.Parallel()

	reg := config.NewRegistry()
	wantErr := errors.New("factory boom")
	reg.RegisterSource("broken", func(context.Context, config.SourceEntry) (patchset.Source, io.Closer, error) {
		return nil, nil, wantErr
	})
	_, _, err := reg.CreateSource(context.Background(), config.SourceEntry{Kind: "broken"})
	if !errors.Is(err, wantErr) {
		t.Errorf("expected factory error %v, got %v", wantErr, err)
	}
}
