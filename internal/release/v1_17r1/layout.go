// Package v1_17r1 adapts the v1_17_R1 item registry.
//
// This release stores every item as the same [Item] type carrying a
// [Properties] bag. Equipment stats and food properties are optional
// components. Attribute modifiers live in an [AttributeTable] keyed by
// attribute name, with operations and slots stored as ordinals.
package v1_17r1

import (
	"slices"

	"github.com/google/uuid"

	"github.com/MrWong99/rebalance/pkg/item"
)

// VersionTag is the tag this package adapts.
const VersionTag = "v1_17_R1"

// Item is one registry entry.
type Item struct {
	ID         item.ID
	Properties Properties
}

// Properties holds the optional components of an [Item].
type Properties struct {
	// Equipment is nil for items without attribute modifiers.
	Equipment *Equipment

	// Food is nil for items that cannot be eaten.
	Food *FoodProperties
}

// EquipmentKind classifies equipment.
type EquipmentKind uint8

const (
	KindArmor EquipmentKind = iota + 1
	KindWeapon
	KindDigger
	KindThrowable
)

// Equipment holds the modifier table of an equippable item together with
// the scalar stats derived from it.
type Equipment struct {
	Kind                EquipmentKind
	Defense             int
	Toughness           float32
	KnockbackResistance float32
	AttackDamage        float32

	// Modifiers is nil when the table was never populated.
	Modifiers *AttributeTable
}

// ModifierRow is one stored modifier. Op and Slot are ordinals, see
// [opOrdinal] and [slotOrdinal].
type ModifierRow struct {
	ID     uuid.UUID
	Name   string
	Amount float64
	Op     int8
	Slot   int8
}

// AttributeTable maps attribute names to modifier rows. Names are kept in
// insertion order, so modifiers of one attribute are always grouped together.
type AttributeTable struct {
	index []string
	rows  map[string][]ModifierRow
}

// NewAttributeTable returns an empty table.
func NewAttributeTable() *AttributeTable {
	return &AttributeTable{rows: make(map[string][]ModifierRow)}
}

// Put appends row to the rows of name.
func (t *AttributeTable) Put(name string, row ModifierRow) {
	if _, ok := t.rows[name]; !ok {
		t.index = append(t.index, name)
	}
	t.rows[name] = append(t.rows[name], row)
}

// Names returns the attribute names in insertion order.
func (t *AttributeTable) Names() []string { return slices.Clone(t.index) }

// Rows returns the rows stored for name.
func (t *AttributeTable) Rows(name string) []ModifierRow { return slices.Clone(t.rows[name]) }

// Len returns the total number of rows.
func (t *AttributeTable) Len() int {
	n := 0
	for _, rs := range t.rows {
		n += len(rs)
	}
	return n
}

// Equal reports whether t and other hold the same rows in the same order.
func (t *AttributeTable) Equal(other *AttributeTable) bool {
	if t == nil || other == nil {
		return t == other
	}
	if !slices.Equal(t.index, other.index) {
		return false
	}
	for _, name := range t.index {
		if !slices.Equal(t.rows[name], other.rows[name]) {
			return false
		}
	}
	return true
}

func (t *AttributeTable) clone() *AttributeTable {
	if t == nil {
		return nil
	}
	cp := &AttributeTable{index: slices.Clone(t.index), rows: make(map[string][]ModifierRow, len(t.rows))}
	for k, v := range t.rows {
		cp.rows[k] = slices.Clone(v)
	}
	return cp
}

// FoodProperties holds the food component.
type FoodProperties struct {
	Nutrition  int
	Saturation float32
	Meat       bool
	Effects    []EffectEntry
}

// Effect flags.
const (
	FlagAmbient uint8 = 1 << iota
	FlagParticles
	FlagIcon
)

// EffectEntry is a potion effect with its probability. Visibility options
// are packed into Flags.
type EffectEntry struct {
	Effect      string
	Duration    int
	Amplifier   int
	Flags       uint8
	Probability float32
}

func (it *Item) clone() *Item {
	cp := *it
	if e := it.Properties.Equipment; e != nil {
		ec := *e
		ec.Modifiers = e.Modifiers.clone()
		cp.Properties.Equipment = &ec
	}
	if f := it.Properties.Food; f != nil {
		fc := *f
		fc.Effects = slices.Clone(f.Effects)
		cp.Properties.Food = &fc
	}
	return &cp
}
