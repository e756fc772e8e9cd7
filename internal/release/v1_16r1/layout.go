// Package v1_16r1 adapts the v1_16_R1 item registry.
//
// This release models items as a small class hierarchy: armor, swords, digging
// tools and tridents are distinct types embedding [ItemBase], each holding its
// attribute modifiers as a list of (attribute handle, modifier) pairs. Armor,
// swords and tools also keep the totals of some attributes in scalar fields
// that must stay in sync with the list.
package v1_16r1

import (
	"slices"

	"github.com/google/uuid"

	"github.com/MrWong99/rebalance/pkg/item"
	"github.com/MrWong99/rebalance/pkg/transform"
)

// VersionTag is the tag this package adapts.
const VersionTag = "v1_16_R1"

// AttributeBase is a registered attribute handle.
type AttributeBase struct {
	Key          string
	DefaultValue float64
}

// AttributeModifier is the registry's modifier record.
type AttributeModifier struct {
	ID        uuid.UUID
	Name      string
	Amount    float64
	Operation transform.Operation
	Slot      transform.Slot
}

// ModifierPair binds a modifier to its attribute handle.
type ModifierPair struct {
	Attribute *AttributeBase
	Modifier  AttributeModifier
}

// Item is implemented by every item type of the hierarchy.
type Item interface {
	base() *ItemBase
}

// ItemBase holds the fields every item has.
type ItemBase struct {
	Key item.ID

	// Food is nil for items that cannot be eaten.
	Food *FoodInfo
}

func (b *ItemBase) base() *ItemBase { return b }

// ItemArmor is a wearable item.
type ItemArmor struct {
	ItemBase
	Armor               int
	ArmorToughness      float32
	KnockbackResistance float32
	Modifiers           []ModifierPair
}

// ItemSword is a sword.
type ItemSword struct {
	ItemBase
	AttackDamage float32
	Modifiers    []ModifierPair
}

// ItemTool is an axe, hoe, pickaxe or shovel.
type ItemTool struct {
	ItemBase
	AttackDamage float32
	Modifiers    []ModifierPair
}

// ItemTrident is a trident. It has no derived scalars.
type ItemTrident struct {
	ItemBase
	Modifiers []ModifierPair
}

// FoodInfo holds the food properties of an edible item.
type FoodInfo struct {
	Nutrition          int
	SaturationModifier float32
	Meat               bool
	Effects            []EffectChance
}

// MobEffect is the registry's potion effect record.
type MobEffect struct {
	Effect        string
	Duration      int
	Amplifier     int
	Ambient       bool
	ShowParticles bool
	ShowIcon      bool
}

// EffectChance pairs an effect with its probability.
type EffectChance struct {
	Effect MobEffect
	Chance float32
}

// cloneItem returns a deep copy of it. Attribute handles are shared.
func cloneItem(it Item) Item {
	switch v := it.(type) {
	case *ItemArmor:
		cp := *v
		cp.ItemBase = v.ItemBase.clone()
		cp.Modifiers = slices.Clone(v.Modifiers)
		return &cp
	case *ItemSword:
		cp := *v
		cp.ItemBase = v.ItemBase.clone()
		cp.Modifiers = slices.Clone(v.Modifiers)
		return &cp
	case *ItemTool:
		cp := *v
		cp.ItemBase = v.ItemBase.clone()
		cp.Modifiers = slices.Clone(v.Modifiers)
		return &cp
	case *ItemTrident:
		cp := *v
		cp.ItemBase = v.ItemBase.clone()
		cp.Modifiers = slices.Clone(v.Modifiers)
		return &cp
	case *ItemBase:
		cp := v.clone()
		return &cp
	}
	return it
}

func (b ItemBase) clone() ItemBase {
	if b.Food != nil {
		f := *b.Food
		f.Effects = slices.Clone(b.Food.Effects)
		b.Food = &f
	}
	return b
}
