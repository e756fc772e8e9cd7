package item

import (
	"fmt"
	"slices"
)

// Category classifies an item by the kind of equipment it is. The category
// decides which derived scalars a host stores next to the item's attribute
// modifiers.
type Category int

const (
	// CategoryNone is an item that carries no attribute collection.
	CategoryNone Category = iota
	CategoryArmor
	CategorySword
	CategoryAxe
	CategoryHoe
	CategoryPickaxe
	CategoryShovel
	CategoryTrident
)

var categoryNames = map[Category]string{
	CategoryNone:    "none",
	CategoryArmor:   "armor",
	CategorySword:   "sword",
	CategoryAxe:     "axe",
	CategoryHoe:     "hoe",
	CategoryPickaxe: "pickaxe",
	CategoryShovel:  "shovel",
	CategoryTrident: "trident",
}

// String returns the lower-case category name.
func (c Category) String() string {
	if s, ok := categoryNames[c]; ok {
		return s
	}
	return fmt.Sprintf("Category(%d)", int(c))
}

// ParseCategory converts a category name back into a [Category].
func ParseCategory(s string) (Category, error) {
	for c, name := range categoryNames {
		if name == s {
			return c, nil
		}
	}
	return CategoryNone, fmt.Errorf("item: unknown category %q", s)
}

// MarshalText implements [encoding.TextMarshaler].
func (c Category) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

// UnmarshalText implements [encoding.TextUnmarshaler].
func (c *Category) UnmarshalText(text []byte) error {
	parsed, err := ParseCategory(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// CarriesAttributes reports whether items of this category own an attribute
// modifier collection.
func (c Category) CarriesAttributes() bool {
	return c != CategoryNone
}

// IsArmor reports whether c is [CategoryArmor].
func (c Category) IsArmor() bool { return c == CategoryArmor }

// IsTool reports whether c is a digging tool (axe, hoe, pickaxe or shovel).
func (c Category) IsTool() bool {
	switch c {
	case CategoryAxe, CategoryHoe, CategoryPickaxe, CategoryShovel:
		return true
	}
	return false
}

// IsWeaponOrTool reports whether items of this category store a separate
// attack damage scalar.
func (c Category) IsWeaponOrTool() bool {
	return c == CategorySword || c.IsTool()
}

// Tag is a named, immutable set of item IDs.
type Tag struct {
	Key      ID
	Category Category
	values   map[ID]struct{}
}

// NewTag creates a tag named key that classifies its values as category.
func NewTag(key ID, category Category, values ...ID) Tag {
	set := make(map[ID]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return Tag{Key: key, Category: category, values: set}
}

// Contains reports whether id is tagged.
func (t Tag) Contains(id ID) bool {
	_, ok := t.values[id]
	return ok
}

// Values returns the tagged IDs sorted by their string form.
func (t Tag) Values() []ID {
	out := make([]ID, 0, len(t.values))
	for id := range t.values {
		out = append(out, id)
	}
	slices.SortFunc(out, Compare)
	return out
}

// Tags is an ordered collection of [Tag]s. The first tag containing an item
// decides its category.
type Tags []Tag

// CategoryOf returns the category of id, or [CategoryNone] when no tag
// contains it.
func (ts Tags) CategoryOf(id ID) Category {
	for _, t := range ts {
		if t.Contains(id) {
			return t.Category
		}
	}
	return CategoryNone
}

// DefaultTags returns the equipment tags of the vanilla item registry.
func DefaultTags() Tags {
	return Tags{
		NewTag(Vanilla("armor"), CategoryArmor, vanillaSet(
			"leather_helmet", "leather_chestplate", "leather_leggings", "leather_boots",
			"golden_helmet", "golden_chestplate", "golden_leggings", "golden_boots",
			"chainmail_helmet", "chainmail_chestplate", "chainmail_leggings", "chainmail_boots",
			"iron_helmet", "iron_chestplate", "iron_leggings", "iron_boots",
			"diamond_helmet", "diamond_chestplate", "diamond_leggings", "diamond_boots",
			"netherite_helmet", "netherite_chestplate", "netherite_leggings", "netherite_boots",
			"turtle_helmet",
		)...),
		NewTag(Vanilla("axes"), CategoryAxe, tiered("axe")...),
		NewTag(Vanilla("hoes"), CategoryHoe, tiered("hoe")...),
		NewTag(Vanilla("pickaxes"), CategoryPickaxe, tiered("pickaxe")...),
		NewTag(Vanilla("shovels"), CategoryShovel, tiered("shovel")...),
		NewTag(Vanilla("swords"), CategorySword, tiered("sword")...),
		NewTag(Vanilla("tridents"), CategoryTrident, Vanilla("trident")),
	}
}

var toolTiers = []string{"wooden", "golden", "stone", "iron", "diamond", "netherite"}

func tiered(suffix string) []ID {
	ids := make([]ID, 0, len(toolTiers))
	for _, tier := range toolTiers {
		ids = append(ids, Vanilla(tier+"_"+suffix))
	}
	return ids
}

func vanillaSet(names ...string) []ID {
	ids := make([]ID, 0, len(names))
	for _, n := range names {
		ids = append(ids, Vanilla(n))
	}
	return ids
}
