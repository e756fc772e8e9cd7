// Package host describes the live item registry a release adapter works
// against and the catalog used to boot one.
//
// A catalog is a declarative list of item definitions (attribute modifiers,
// food properties) that a release turns into its own in-memory layout. The
// binary ships with a vanilla catalog ([DefaultCatalog]); operators can point
// to their own file with [LoadCatalogFile].
package host

import (
	"github.com/MrWong99/rebalance/pkg/item"
	"github.com/MrWong99/rebalance/pkg/transform"
)

// Server is the host adapter surface shared by every release.
type Server interface {
	// VersionTag returns the release tag the server reports, e.g. "v1_16_R1".
	VersionTag() string

	// Items returns the IDs of every registered item, sorted.
	Items() []item.ID
}

// Catalog is the declarative content of an item registry.
type Catalog struct {
	// Name is a free-form label shown in logs.
	Name string `yaml:"name"`

	// Items lists every item of the registry. IDs must be unique.
	Items []ItemDef `yaml:"items"`
}

// ItemDef defines one registry item.
type ItemDef struct {
	// ID is the registry key, e.g. "minecraft:diamond_sword".
	ID item.ID `yaml:"id"`

	// Category overrides the category resolved from the vanilla item tags.
	Category *item.Category `yaml:"category,omitempty"`

	// Attributes is the default modifier collection in order.
	Attributes []ModifierDef `yaml:"attributes,omitempty"`

	// Food is nil for items that are not edible.
	Food *FoodDef `yaml:"food,omitempty"`
}

// ModifierDef is one attribute modifier of an [ItemDef].
type ModifierDef struct {
	Attribute string  `yaml:"attribute"`
	UUID      string  `yaml:"uuid,omitempty"`
	Name      string  `yaml:"name,omitempty"`
	Amount    float64 `yaml:"amount"`
	Operation string  `yaml:"operation,omitempty"`
	Slot      string  `yaml:"slot,omitempty"`
}

// FoodDef holds the food properties of an edible [ItemDef].
type FoodDef struct {
	Nutrition   int         `yaml:"nutrition"`
	Saturation  float32     `yaml:"saturation"`
	WolfEatable bool        `yaml:"wolf_eatable,omitempty"`
	Effects     []EffectDef `yaml:"effects,omitempty"`
}

// EffectDef is a potion effect granted by a [FoodDef]. Particles and the
// HUD icon are shown unless turned off, as in patch documents.
type EffectDef struct {
	Type      string  `yaml:"type"`
	Duration  int     `yaml:"duration"`
	Amplifier int     `yaml:"amplifier,omitempty"`
	Ambient   bool    `yaml:"ambient,omitempty"`
	Particles *bool   `yaml:"has-particles,omitempty"`
	Icon      *bool   `yaml:"has-icon,omitempty"`
	Chance    float32 `yaml:"chance"`
}

// CategoryIn returns the item's category: the explicit override if set,
// otherwise the category tags assign.
func (d ItemDef) CategoryIn(tags item.Tags) item.Category {
	if d.Category != nil {
		return *d.Category
	}
	return tags.CategoryOf(d.ID)
}

// AttributePatch converts the modifier definitions. The definitions must have
// passed [Catalog.Validate].
func (d ItemDef) AttributePatch() (transform.AttributePatch, error) {
	entries := make([]transform.AttributeEntry, 0, len(d.Attributes))
	for _, m := range d.Attributes {
		e, err := m.entry()
		if err != nil {
			return transform.AttributePatch{}, err
		}
		entries = append(entries, e)
	}
	return transform.NewAttributePatch(entries...), nil
}

// FoodPatch converts the food definition into a patch with every field set.
// ok is false for items that are not edible.
func (d ItemDef) FoodPatch() (patch transform.FoodPatch, ok bool) {
	if d.Food == nil {
		return transform.FoodPatch{}, false
	}
	effects := make([]transform.FoodEffect, 0, len(d.Food.Effects))
	for _, e := range d.Food.Effects {
		effects = append(effects, e.FoodEffect())
	}
	return transform.NewFoodPatch(
		transform.WithNutrition(d.Food.Nutrition),
		transform.WithSaturation(d.Food.Saturation),
		transform.WithWolfEatable(d.Food.WolfEatable),
		transform.WithEffects(effects...),
	), true
}

// FoodEffect converts the definition.
func (e EffectDef) FoodEffect() transform.FoodEffect {
	return transform.FoodEffect{
		Effect: transform.PotionEffect{
			Type:      e.Type,
			Duration:  e.Duration,
			Amplifier: e.Amplifier,
			Ambient:   e.Ambient,
			Particles: e.Particles == nil || *e.Particles,
			Icon:      e.Icon == nil || *e.Icon,
		},
		Chance: e.Chance,
	}
}
