package inject

import (
	"github.com/MrWong99/rebalance/pkg/item"
	"github.com/MrWong99/rebalance/pkg/transform"
)

// AttributeAccessor is implemented by every supported release to read and
// write an item's attribute modifier collection in its own layout.
//
// Both methods return an error wrapping [ErrItemNotFound] when id does not
// resolve, before any applicability check.
type AttributeAccessor interface {
	// ReadAttributes returns the item's whole modifier collection. ok is
	// false when items of this kind carry no collection.
	ReadAttributes(id item.ID) (patch transform.AttributePatch, ok bool, err error)

	// WriteAttributes replaces the item's modifier collection with patch and
	// re-derives the scalar fields the layout stores next to it (see
	// [Derive]). It is only called for items ReadAttributes reported ok.
	WriteAttributes(id item.ID, patch transform.AttributePatch) error
}

// FoodAccessor is implemented by every supported release to read and write an
// item's food properties in its own layout.
type FoodAccessor interface {
	// ReadFood returns a patch with every field set to the item's current
	// value. ok is false when the item is not edible.
	ReadFood(id item.ID) (patch transform.FoodPatch, ok bool, err error)

	// WriteFood writes the fields set in patch and leaves unset fields
	// untouched. It is only called for items ReadFood reported ok.
	WriteFood(id item.ID, patch transform.FoodPatch) error
}

// Release bundles the accessors of one host release.
type Release interface {
	AttributeAccessor
	FoodAccessor
}

// Derived holds the scalar fields a host stores redundantly next to the
// attribute modifier collection.
type Derived struct {
	Armor               int
	ArmorToughness      float32
	KnockbackResistance float32
	AttackDamage        float32
}

// Derive computes the derived scalars for an item of category c from patch.
// Armor items get armor, toughness and knockback resistance; swords and tools
// get attack damage. Other categories yield the zero value, and the second
// result reports whether the category has derived fields at all.
//
// The sums ignore the modifier operation, matching how hosts fill these
// fields for vanilla items.
func Derive(c item.Category, patch transform.AttributePatch) (Derived, bool) {
	switch {
	case c.IsArmor():
		return Derived{
			Armor:               int(patch.Sum(transform.Armor)),
			ArmorToughness:      float32(patch.Sum(transform.ArmorToughness)),
			KnockbackResistance: float32(patch.Sum(transform.KnockbackResistance)),
		}, true
	case c.IsWeaponOrTool():
		return Derived{AttackDamage: float32(patch.Sum(transform.AttackDamage))}, true
	}
	return Derived{}, false
}
