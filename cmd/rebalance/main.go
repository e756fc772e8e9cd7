// Command rebalance applies per-release item patch sets to a running host
// registry and restores the vanilla values on shutdown.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/spf13/cobra"

	"github.com/MrWong99/rebalance/internal/app"
	"github.com/MrWong99/rebalance/internal/config"
	"github.com/MrWong99/rebalance/internal/observe"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// rootFlags are shared by every subcommand.
type rootFlags struct {
	configPath string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	f := &rootFlags{}
	root := &cobra.Command{
		Use:           "rebalance",
		Short:         "Apply item patch sets to a host registry",
		Version:       version,
		SilenceUsage:  true,
	}
	root.PersistentFlags().StringVarP(&f.configPath, "config", "c", "", "path to the YAML configuration file (defaults apply when empty)")
	root.PersistentFlags().StringVar(&f.logLevel, "log-level", "", "override the configured log level (debug|info|warn|error)")

	root.AddCommand(
		newServeCmd(f),
		newValidateCmd(f),
		newInspectCmd(f),
		newReleasesCmd(),
	)
	return root
}

// loadConfig reads the config file, or returns the defaults with
// environment overrides when no path is given.
func (f *rootFlags) loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if f.configPath == "" {
		cfg, err = config.LoadWithEnv(strings.NewReader(""), env.ToMap(os.Environ()))
	} else {
		cfg, err = config.Load(f.configPath)
	}
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config file %q not found, see configs/example.yaml", f.configPath)
		}
		return nil, err
	}
	if f.logLevel != "" {
		cfg.Server.LogLevel = config.LogLevel(f.logLevel)
		if err := config.Validate(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// newLogger builds the process logger. The returned LevelVar lets config
// reloads change verbosity.
func newLogger(w io.Writer, level config.LogLevel) (*slog.Logger, *slog.LevelVar) {
	lv := new(slog.LevelVar)
	lv.Set(app.ParseLevel(level))
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lv})), lv
}

// ── serve ────────────────────────────────────────────────────────────────────

func newServeCmd(f *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the daemon and its admin API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := f.loadConfig()
			if err != nil {
				return err
			}
			return serve(cmd.Context(), f.configPath, cfg)
		},
	}
}

func serve(parent context.Context, configPath string, cfg *config.Config) error {
	logger, level := newLogger(os.Stderr, cfg.Server.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceVersion: version,
		SampleRatio:    cfg.Observability.TraceSampleRatio,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}

	slog.Info("rebalance starting",
		"version", version,
		"config", configPath,
		"release", cfg.Runtime.Release,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	opts := []app.Option{app.WithLogger(logger), app.WithLevelVar(level)}
	if configPath != "" {
		opts = append(opts, app.WithConfigPath(configPath))
	}
	application, err := app.New(ctx, cfg, opts...)
	if err != nil {
		return fmt.Errorf("initialise: %w", err)
	}

	runErr := application.Run(ctx)
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		slog.Error("run error", "err", runErr)
	} else {
		runErr = nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
	defer cancel()

	slog.Info("stopping, restoring registry")
	err = errors.Join(runErr, application.Shutdown(shutdownCtx), shutdownOTel(shutdownCtx))
	if err != nil {
		return err
	}
	slog.Info("goodbye")
	return nil
}
