// Package release binds host version tags to the adapters that know the
// tag's item registry layout.
//
// Each supported release lives in its own subpackage and provides a [Server]:
// a booted item registry that also implements the per-release accessors of
// [inject.Release]. [Default] returns a registry with every release this
// binary supports.
package release

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/MrWong99/rebalance/internal/host"
	"github.com/MrWong99/rebalance/internal/inject"
	"github.com/MrWong99/rebalance/internal/release/v1_16r1"
	"github.com/MrWong99/rebalance/internal/release/v1_17r1"
)

// ErrReleaseNotRegistered is returned when no release has been registered
// under a version tag.
var ErrReleaseNotRegistered = errors.New("release: version not supported")

// Server is a live item registry of one release.
type Server interface {
	host.Server
	inject.Release
}

// Release describes one supported host release.
type Release struct {
	// Tag is the version tag the host reports, e.g. "v1_16_R1".
	Tag string

	// Boot builds a live registry from a catalog.
	Boot func(c *host.Catalog) (Server, error)

	// Injector builds the composite injector for a server booted by Boot.
	// Defaults to [inject.ForRelease].
	Injector func(s Server, opts ...inject.Option) *inject.Composite
}

// Registry maps version tags to releases. It is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	releases map[string]Release
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{releases: make(map[string]Release)}
}

// Default returns a registry holding every release supported by this binary.
func Default() *Registry {
	r := NewRegistry()
	r.Register(Release{
		Tag:  v1_16r1.VersionTag,
		Boot: func(c *host.Catalog) (Server, error) { return v1_16r1.Boot(c) },
	})
	r.Register(Release{
		Tag:  v1_17r1.VersionTag,
		Boot: func(c *host.Catalog) (Server, error) { return v1_17r1.Boot(c) },
	})
	return r
}

// Register adds rel. Subsequent calls with the same tag overwrite the
// previous registration.
func (r *Registry) Register(rel Release) {
	if rel.Injector == nil {
		rel.Injector = func(s Server, opts ...inject.Option) *inject.Composite {
			return inject.ForRelease(s, opts...)
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.releases[rel.Tag] = rel
}

// Lookup returns the release registered under tag.
func (r *Registry) Lookup(tag string) (Release, error) {
	r.mu.RLock()
	rel, ok := r.releases[tag]
	r.mu.RUnlock()
	if !ok {
		return Release{}, fmt.Errorf("%w: %q", ErrReleaseNotRegistered, tag)
	}
	return rel, nil
}

// Tags returns the registered version tags sorted.
func (r *Registry) Tags() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tags := make([]string, 0, len(r.releases))
	for t := range r.releases {
		tags = append(tags, t)
	}
	slices.Sort(tags)
	return tags
}

// Boot boots the release registered under tag from c.
func (r *Registry) Boot(tag string, c *host.Catalog) (Server, error) {
	rel, err := r.Lookup(tag)
	if err != nil {
		return nil, err
	}
	s, err := rel.Boot(c)
	if err != nil {
		return nil, fmt.Errorf("release: boot %s: %w", tag, err)
	}
	return s, nil
}

// Injector returns the composite injector for s, chosen by the version tag s
// reports.
func (r *Registry) Injector(s Server, opts ...inject.Option) (*inject.Composite, error) {
	rel, err := r.Lookup(s.VersionTag())
	if err != nil {
		return nil, err
	}
	return rel.Injector(s, opts...), nil
}
