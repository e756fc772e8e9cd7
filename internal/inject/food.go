package inject

import (
	"log/slog"

	"github.com/MrWong99/rebalance/pkg/item"
	"github.com/MrWong99/rebalance/pkg/transform"
)

// FoodInjector changes food properties field by field.
type FoodInjector struct {
	acc    FoodAccessor
	logger *slog.Logger
}

var _ Injector[transform.FoodPatch] = (*FoodInjector)(nil)

// NewFoodInjector returns an injector writing through acc.
func NewFoodInjector(acc FoodAccessor, opts ...Option) *FoodInjector {
	o := buildOptions(opts)
	return &FoodInjector{acc: acc, logger: o.logger}
}

// Inject implements [Injector]. The returned previous value has every field
// set, so re-injecting it restores fields the patch left untouched as well.
func (f *FoodInjector) Inject(id item.ID, patch transform.FoodPatch) (transform.FoodPatch, bool, error) {
	prev, ok, err := f.acc.ReadFood(id)
	if err != nil {
		return transform.FoodPatch{}, false, wrap(OpInject, id, err)
	}
	if !ok {
		return transform.FoodPatch{}, false, nil
	}

	f.logger.Debug("injecting food properties", "item", id.String(), "patch", patch.String())

	if err := f.acc.WriteFood(id, patch); err != nil {
		return transform.FoodPatch{}, false, wrap(OpInject, id, err)
	}
	return prev, true, nil
}

// Eject implements [Injector].
func (f *FoodInjector) Eject(id item.ID) ([]transform.FoodPatch, error) {
	cur, ok, err := f.acc.ReadFood(id)
	if err != nil {
		return nil, wrap(OpEject, id, err)
	}
	if !ok {
		return nil, nil
	}
	return []transform.FoodPatch{cur}, nil
}
