// Package transform defines the patches that can be injected into a host's
// item registry.
//
// A [Transformer] is a closed sum type with exactly two variants:
// [AttributePatch] replaces an item's attribute modifier collection and
// [FoodPatch] changes an item's food properties. Code that needs to act on the
// concrete variant dispatches through [Match], which takes one handler per
// variant; adding a variant changes Match's signature and therefore every
// dispatch site.
//
// Transformers are immutable once constructed.
package transform

import (
	"errors"
	"fmt"
)

// ErrUnsupported is returned when a value outside the closed set of
// transformer variants reaches a dispatch site.
var ErrUnsupported = errors.New("transform: unsupported transformer")

// Kind identifies a transformer variant.
type Kind int

const (
	KindAttribute Kind = iota + 1
	KindFood
)

// String implements [fmt.Stringer].
func (k Kind) String() string {
	switch k {
	case KindAttribute:
		return "attribute"
	case KindFood:
		return "food"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Transformer is an immutable description of one property change to an item.
// It is implemented only by [AttributePatch] and [FoodPatch].
type Transformer interface {
	// Kind reports the variant.
	Kind() Kind

	// String returns a human-readable description for logs.
	String() string

	sealed()
}

// Compile-time checks.
var (
	_ Transformer = AttributePatch{}
	_ Transformer = FoodPatch{}
)

// Match calls onAttribute or onFood depending on the variant of t and returns
// the handler's result. A nil t yields [ErrUnsupported].
func Match[R any](t Transformer, onAttribute func(AttributePatch) (R, error), onFood func(FoodPatch) (R, error)) (R, error) {
	switch v := t.(type) {
	case AttributePatch:
		return onAttribute(v)
	case FoodPatch:
		return onFood(v)
	}
	var zero R
	return zero, fmt.Errorf("%w: %T", ErrUnsupported, t)
}

// Validate checks the variant-specific invariants of t.
func Validate(t Transformer) error {
	_, err := Match(t,
		func(p AttributePatch) (struct{}, error) { return struct{}{}, p.Validate() },
		func(p FoodPatch) (struct{}, error) { return struct{}{}, p.Validate() },
	)
	return err
}

// Equal reports whether a and b are the same variant with equal contents.
func Equal(a, b Transformer) bool {
	eq, err := Match(a,
		func(pa AttributePatch) (bool, error) {
			pb, ok := b.(AttributePatch)
			return ok && pa.Equal(pb), nil
		},
		func(pa FoodPatch) (bool, error) {
			pb, ok := b.(FoodPatch)
			return ok && pa.Equal(pb), nil
		},
	)
	return err == nil && eq
}
