package inject

import (
	"log/slog"

	"github.com/MrWong99/rebalance/pkg/item"
	"github.com/MrWong99/rebalance/pkg/transform"
)

// Option configures the injectors of this package.
type Option func(*options)

type options struct {
	logger *slog.Logger
}

// WithLogger sets the logger used for debug output. Defaults to
// [slog.Default].
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

func buildOptions(opts []Option) options {
	o := options{logger: slog.Default()}
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

// AttributeInjector replaces whole attribute modifier collections.
type AttributeInjector struct {
	acc    AttributeAccessor
	logger *slog.Logger
}

var _ Injector[transform.AttributePatch] = (*AttributeInjector)(nil)

// NewAttributeInjector returns an injector writing through acc.
func NewAttributeInjector(acc AttributeAccessor, opts ...Option) *AttributeInjector {
	o := buildOptions(opts)
	return &AttributeInjector{acc: acc, logger: o.logger}
}

// Inject implements [Injector]. The previous collection is read before the
// write so the returned value restores the item exactly.
func (a *AttributeInjector) Inject(id item.ID, patch transform.AttributePatch) (transform.AttributePatch, bool, error) {
	prev, ok, err := a.acc.ReadAttributes(id)
	if err != nil {
		return transform.AttributePatch{}, false, wrap(OpInject, id, err)
	}
	if !ok {
		return transform.AttributePatch{}, false, nil
	}

	a.logger.Debug("injecting attributes", "item", id.String(), "patch", patch.String())

	if err := a.acc.WriteAttributes(id, patch); err != nil {
		return transform.AttributePatch{}, false, wrap(OpInject, id, err)
	}
	return prev, true, nil
}

// Eject implements [Injector].
func (a *AttributeInjector) Eject(id item.ID) ([]transform.AttributePatch, error) {
	cur, ok, err := a.acc.ReadAttributes(id)
	if err != nil {
		return nil, wrap(OpEject, id, err)
	}
	if !ok {
		return nil, nil
	}
	return []transform.AttributePatch{cur}, nil
}
