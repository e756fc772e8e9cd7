package inject

import (
	"errors"
	"fmt"

	"github.com/MrWong99/rebalance/pkg/item"
	"github.com/MrWong99/rebalance/pkg/transform"
)

// Composite routes generic transformers to the typed injector for their
// variant.
type Composite struct {
	attributes Injector[transform.AttributePatch]
	food       Injector[transform.FoodPatch]
}

var _ Injector[transform.Transformer] = (*Composite)(nil)

// NewComposite combines the two typed injectors. Both are required.
func NewComposite(attributes Injector[transform.AttributePatch], food Injector[transform.FoodPatch]) (*Composite, error) {
	if attributes == nil || food == nil {
		return nil, errors.New("inject: composite requires both an attribute and a food injector")
	}
	return &Composite{attributes: attributes, food: food}, nil
}

// ForRelease builds the standard composite over the accessors of one release.
func ForRelease(r Release, opts ...Option) *Composite {
	return &Composite{
		attributes: NewAttributeInjector(r, opts...),
		food:       NewFoodInjector(r, opts...),
	}
}

// Inject implements [Injector]. A transformer outside the closed set of
// variants yields an [*InjectError] wrapping [ErrUnsupportedTransformer].
func (c *Composite) Inject(id item.ID, patch transform.Transformer) (transform.Transformer, bool, error) {
	type result struct {
		prev    transform.Transformer
		applied bool
	}
	r, err := transform.Match(patch,
		func(p transform.AttributePatch) (result, error) {
			prev, applied, err := c.attributes.Inject(id, p)
			return result{prev, applied}, err
		},
		func(p transform.FoodPatch) (result, error) {
			prev, applied, err := c.food.Inject(id, p)
			return result{prev, applied}, err
		},
	)
	if errors.Is(err, transform.ErrUnsupported) {
		return nil, false, &InjectError{Op: OpInject, Item: id, Err: fmt.Errorf("%w: %T", ErrUnsupportedTransformer, patch)}
	}
	if err != nil {
		return nil, false, wrap(OpInject, id, err)
	}
	if !r.applied {
		return nil, false, nil
	}
	return r.prev, true, nil
}

// Eject implements [Injector]. The result holds at most one value per
// variant, attribute first.
func (c *Composite) Eject(id item.ID) ([]transform.Transformer, error) {
	attrs, err := c.attributes.Eject(id)
	if err != nil {
		return nil, wrap(OpEject, id, err)
	}
	food, err := c.food.Eject(id)
	if err != nil {
		return nil, wrap(OpEject, id, err)
	}

	out := make([]transform.Transformer, 0, len(attrs)+len(food))
	for _, a := range attrs {
		out = append(out, a)
	}
	for _, f := range food {
		out = append(out, f)
	}
	return out, nil
}
