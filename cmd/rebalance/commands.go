package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/MrWong99/rebalance/internal/app"
	"github.com/MrWong99/rebalance/internal/config"
	"github.com/MrWong99/rebalance/internal/patchset"
	"github.com/MrWong99/rebalance/internal/release"
	"github.com/MrWong99/rebalance/pkg/item"
	"github.com/MrWong99/rebalance/pkg/transform"
)

// ── validate ─────────────────────────────────────────────────────────────────

func newValidateCmd(f *rootFlags) *cobra.Command {
	var tag string
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Load and check the patch set without touching the registry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := f.loadConfig()
			if err != nil {
				return err
			}
			if tag != "" {
				cfg.Runtime.Release = tag
			}
			return validate(cmd.Context(), cmd.OutOrStdout(), cfg)
		},
	}
	cmd.Flags().StringVar(&tag, "release", "", "version tag to validate against (default: the configured release)")
	return cmd
}

func validate(ctx context.Context, out io.Writer, cfg *config.Config) error {
	a, err := app.New(ctx, cfg, app.WithLogger(cliLogger(cfg)))
	if err != nil {
		return err
	}
	defer a.Shutdown(context.WithoutCancel(ctx))

	doc, source, err := a.LoadPatches(ctx)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "release\t%s\n", a.Release())
	fmt.Fprintf(tw, "sources\t%s\n", source)
	fmt.Fprintf(tw, "items\t%d\n", len(doc.Patches.Items()))
	fmt.Fprintf(tw, "transformers\t%d\n", doc.Patches.Len())
	kinds := doc.Patches.CountByKind()
	for _, k := range []transform.Kind{transform.KindAttribute, transform.KindFood} {
		fmt.Fprintf(tw, "  %s\t%d\n", k, kinds[k])
	}
	return tw.Flush()
}

// ── inspect ──────────────────────────────────────────────────────────────────

func newInspectCmd(f *rootFlags) *cobra.Command {
	var withPatches bool
	cmd := &cobra.Command{
		Use:   "inspect <item-id>...",
		Short: "Print the current registry values of items",
		Example: "  rebalance inspect minecraft:diamond_sword apple\n" +
			"  rebalance inspect --patches -c config.yaml minecraft:golden_apple",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]item.ID, 0, len(args))
			for _, s := range args {
				id, err := parseItemArg(s)
				if err != nil {
					return err
				}
				ids = append(ids, id)
			}
			cfg, err := f.loadConfig()
			if err != nil {
				return err
			}
			return inspect(cmd.Context(), cmd.OutOrStdout(), cfg, ids, withPatches)
		},
	}
	cmd.Flags().BoolVar(&withPatches, "patches", false, "also print what the configured patch set would apply")
	return cmd
}

func inspect(ctx context.Context, out io.Writer, cfg *config.Config, ids []item.ID, withPatches bool) error {
	opts := []app.Option{app.WithLogger(cliLogger(cfg))}
	if !withPatches {
		// Reading the registry needs no patch source.
		opts = append(opts, app.WithSources(patchset.EmbeddedSource{}))
	}
	a, err := app.New(ctx, cfg, opts...)
	if err != nil {
		return err
	}
	defer a.Shutdown(context.WithoutCancel(ctx))

	var patches transform.PatchSet
	if withPatches {
		doc, _, err := a.LoadPatches(ctx)
		if err != nil {
			return err
		}
		patches = doc.Patches
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for _, id := range ids {
		current, err := a.Injector().Eject(id)
		if err != nil {
			return err
		}
		fmt.Fprintf(tw, "%s\n", id)
		if len(current) == 0 {
			fmt.Fprintf(tw, "  current\t-\n")
		}
		for _, t := range current {
			fmt.Fprintf(tw, "  current %s\t%s\n", t.Kind(), t)
		}
		for _, t := range patches.Get(id) {
			fmt.Fprintf(tw, "  patch %s\t%s\n", t.Kind(), t)
		}
	}
	return tw.Flush()
}

// parseItemArg accepts "namespace:name" or a bare vanilla name.
func parseItemArg(s string) (item.ID, error) {
	if !strings.Contains(s, ":") {
		id := item.Vanilla(s)
		return id, id.Validate()
	}
	return item.Parse(s)
}

// ── releases ─────────────────────────────────────────────────────────────────

func newReleasesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "releases",
		Short: "List the supported host version tags",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return listReleases(cmd.OutOrStdout(), release.Default())
		},
	}
}

func listReleases(out io.Writer, r *release.Registry) error {
	tags := r.Tags()
	def := config.DefaultRelease
	for _, t := range tags {
		marker := ""
		if t == def {
			marker = " (default)"
		}
		if _, err := fmt.Fprintf(out, "%s%s\n", t, marker); err != nil {
			return err
		}
	}
	if !slices.Contains(tags, def) {
		return fmt.Errorf("default release %s is not registered", def)
	}
	return nil
}

// cliLogger logs to stderr so command output stays parseable. Only warnings
// and errors are shown unless debug logging is configured.
func cliLogger(cfg *config.Config) *slog.Logger {
	level := cfg.Server.LogLevel
	if level != config.LogDebug {
		level = config.LogWarn
	}
	l, _ := newLogger(os.Stderr, level)
	return l
}
