package transform

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// Attribute is a namespaced combat attribute key such as
// "minecraft:generic.attack_damage".
type Attribute string

// Attributes understood by the host registry.
const (
	MaxHealth                 Attribute = "minecraft:generic.max_health"
	FollowRange               Attribute = "minecraft:generic.follow_range"
	KnockbackResistance       Attribute = "minecraft:generic.knockback_resistance"
	MovementSpeed             Attribute = "minecraft:generic.movement_speed"
	FlyingSpeed               Attribute = "minecraft:generic.flying_speed"
	AttackDamage              Attribute = "minecraft:generic.attack_damage"
	AttackKnockback           Attribute = "minecraft:generic.attack_knockback"
	AttackSpeed               Attribute = "minecraft:generic.attack_speed"
	Armor                     Attribute = "minecraft:generic.armor"
	ArmorToughness            Attribute = "minecraft:generic.armor_toughness"
	Luck                      Attribute = "minecraft:generic.luck"
	HorseJumpStrength         Attribute = "minecraft:horse.jump_strength"
	ZombieSpawnReinforcements Attribute = "minecraft:zombie.spawn_reinforcements"
)

var knownAttributes = []Attribute{
	MaxHealth, FollowRange, KnockbackResistance, MovementSpeed, FlyingSpeed,
	AttackDamage, AttackKnockback, AttackSpeed, Armor, ArmorToughness, Luck,
	HorseJumpStrength, ZombieSpawnReinforcements,
}

// KnownAttributes returns every attribute key the registry understands.
func KnownAttributes() []Attribute {
	out := make([]Attribute, len(knownAttributes))
	copy(out, knownAttributes)
	return out
}

// LookupAttribute resolves key to a known [Attribute]. Keys without a
// namespace are not accepted.
func LookupAttribute(key string) (Attribute, bool) {
	for _, a := range knownAttributes {
		if string(a) == key {
			return a, true
		}
	}
	return "", false
}

// Operation is the arithmetic applied by a [Modifier].
type Operation int

const (
	OpAddNumber Operation = iota
	OpAddScalar
	OpMultiplyScalar1
)

var operationNames = [...]string{"add_number", "add_scalar", "multiply_scalar_1"}

// String returns the configuration name of the operation.
func (o Operation) String() string {
	if o < 0 || int(o) >= len(operationNames) {
		return fmt.Sprintf("Operation(%d)", int(o))
	}
	return operationNames[o]
}

// ParseOperation converts a configuration name into an [Operation]. Both
// lower and upper case names are accepted.
func ParseOperation(s string) (Operation, error) {
	for i, name := range operationNames {
		if strings.EqualFold(name, s) {
			return Operation(i), nil
		}
	}
	return 0, fmt.Errorf("transform: unknown operation %q", s)
}

// Valid reports whether o is one of the defined operations.
func (o Operation) Valid() bool { return o >= 0 && int(o) < len(operationNames) }

// Slot is the equipment slot a modifier is active in. The zero value means
// the modifier applies in any slot.
type Slot string

const (
	SlotAny     Slot = ""
	SlotHand    Slot = "hand"
	SlotOffHand Slot = "off_hand"
	SlotHead    Slot = "head"
	SlotChest   Slot = "chest"
	SlotLegs    Slot = "legs"
	SlotFeet    Slot = "feet"
)

// ParseSlot converts a configuration name into a [Slot].
func ParseSlot(s string) (Slot, error) {
	switch slot := Slot(strings.ToLower(s)); slot {
	case SlotAny, SlotHand, SlotOffHand, SlotHead, SlotChest, SlotLegs, SlotFeet:
		return slot, nil
	}
	return SlotAny, fmt.Errorf("transform: unknown slot %q", s)
}

// Modifier is a single attribute modifier record.
type Modifier struct {
	UUID      uuid.UUID
	Name      string
	Amount    float64
	Operation Operation
	Slot      Slot
}

// String implements [fmt.Stringer].
func (m Modifier) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %g", m.Operation, m.Amount)
	if m.Name != "" {
		fmt.Fprintf(&b, " %q", m.Name)
	}
	if m.Slot != SlotAny {
		fmt.Fprintf(&b, " @%s", m.Slot)
	}
	return b.String()
}

// AttributeEntry pairs an attribute with one of its modifiers.
type AttributeEntry struct {
	Attribute Attribute
	Modifier  Modifier
}

// AttributePatch replaces an item's whole attribute modifier collection.
// Several modifiers may target the same attribute. The zero value is an
// empty patch. AttributePatch is immutable: constructors copy their input
// and accessors return copies.
type AttributePatch struct {
	entries []AttributeEntry
}

// NewAttributePatch returns a patch holding entries in the given order.
func NewAttributePatch(entries ...AttributeEntry) AttributePatch {
	if len(entries) == 0 {
		return AttributePatch{}
	}
	cp := make([]AttributeEntry, len(entries))
	copy(cp, entries)
	return AttributePatch{entries: cp}
}

// Kind implements [Transformer].
func (AttributePatch) Kind() Kind { return KindAttribute }

func (AttributePatch) sealed() {}

// Len returns the number of modifiers in the patch.
func (p AttributePatch) Len() int { return len(p.entries) }

// Entries returns a copy of all (attribute, modifier) pairs in order.
func (p AttributePatch) Entries() []AttributeEntry {
	cp := make([]AttributeEntry, len(p.entries))
	copy(cp, p.entries)
	return cp
}

// Attributes returns the distinct attributes in order of first appearance.
func (p AttributePatch) Attributes() []Attribute {
	seen := make(map[Attribute]struct{}, len(p.entries))
	var out []Attribute
	for _, e := range p.entries {
		if _, ok := seen[e.Attribute]; ok {
			continue
		}
		seen[e.Attribute] = struct{}{}
		out = append(out, e.Attribute)
	}
	return out
}

// Modifiers returns the modifiers for attr in order.
func (p AttributePatch) Modifiers(attr Attribute) []Modifier {
	var out []Modifier
	for _, e := range p.entries {
		if e.Attribute == attr {
			out = append(out, e.Modifier)
		}
	}
	return out
}

// Sum totals the amounts of every modifier for attr regardless of its
// operation. Hosts store this total in their derived scalar fields.
func (p AttributePatch) Sum(attr Attribute) float64 {
	var total float64
	for _, e := range p.entries {
		if e.Attribute == attr {
			total += e.Modifier.Amount
		}
	}
	return total
}

// Equal reports whether p and other hold the same entries in the same order.
func (p AttributePatch) Equal(other AttributePatch) bool {
	if len(p.entries) != len(other.entries) {
		return false
	}
	for i := range p.entries {
		if p.entries[i] != other.entries[i] {
			return false
		}
	}
	return true
}

// Validate checks that every entry names a known attribute, a defined
// operation and a known slot.
func (p AttributePatch) Validate() error {
	for i, e := range p.entries {
		if _, ok := LookupAttribute(string(e.Attribute)); !ok {
			return fmt.Errorf("transform: attribute entry %d: unknown attribute %q", i, e.Attribute)
		}
		if !e.Modifier.Operation.Valid() {
			return fmt.Errorf("transform: attribute entry %d: invalid operation %d", i, int(e.Modifier.Operation))
		}
		if slot, err := ParseSlot(string(e.Modifier.Slot)); err != nil || slot != e.Modifier.Slot {
			return fmt.Errorf("transform: attribute entry %d: unknown slot %q", i, e.Modifier.Slot)
		}
	}
	return nil
}

// String implements [fmt.Stringer]. Attributes are listed sorted so the
// output is stable.
func (p AttributePatch) String() string {
	attrs := p.Attributes()
	sort.Slice(attrs, func(i, j int) bool { return attrs[i] < attrs[j] })
	parts := make([]string, 0, len(attrs))
	for _, a := range attrs {
		mods := p.Modifiers(a)
		ms := make([]string, len(mods))
		for i, m := range mods {
			ms[i] = m.String()
		}
		parts = append(parts, fmt.Sprintf("%s=[%s]", a, strings.Join(ms, ", ")))
	}
	return "AttributePatch{" + strings.Join(parts, " ") + "}"
}
