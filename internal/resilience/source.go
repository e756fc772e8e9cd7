package resilience

import (
	"context"
	"errors"
	"strings"

	"github.com/MrWong99/rebalance/internal/patchset"
)

// SourceGroup is a [patchset.Source] that fetches from the first healthy
// member. A member without a document for the requested release falls
// through to the next one without tripping its breaker.
type SourceGroup struct {
	group *FallbackGroup[patchset.Source]
}

var _ patchset.Source = (*SourceGroup)(nil)

// NewSourceGroup builds a group from sources in try order. cfg.IsFailure is
// replaced when unset so that missing documents and cancelled requests do
// not count as source failures.
func NewSourceGroup(cfg FallbackConfig, primary patchset.Source, fallbacks ...patchset.Source) *SourceGroup {
	if cfg.CircuitBreaker.IsFailure == nil {
		cfg.CircuitBreaker.IsFailure = isSourceFailure
	}
	g := NewFallbackGroup(primary, primary.Name(), cfg)
	for _, s := range fallbacks {
		g.AddFallback(s.Name(), s)
	}
	return &SourceGroup{group: g}
}

func isSourceFailure(err error) bool {
	return err != nil &&
		!errors.Is(err, patchset.ErrNotFound) &&
		!errors.Is(err, context.Canceled)
}

// Name implements [patchset.Source]. It joins the member names in try order.
func (g *SourceGroup) Name() string {
	return strings.Join(g.group.Names(), ",")
}

// Fetch implements [patchset.Source].
func (g *SourceGroup) Fetch(ctx context.Context, tag string) ([]byte, error) {
	return ExecuteWithResult(g.group, func(s patchset.Source) ([]byte, error) {
		return s.Fetch(ctx, tag)
	})
}

// Status reports the breaker state of every member.
func (g *SourceGroup) Status() []EntryStatus { return g.group.Status() }

// Available reports whether any member would accept a fetch.
func (g *SourceGroup) Available() bool { return g.group.Available() }
