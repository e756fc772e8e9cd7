package v1_16r1

import (
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/MrWong99/rebalance/internal/host"
	"github.com/MrWong99/rebalance/internal/inject"
	"github.com/MrWong99/rebalance/pkg/item"
	"github.com/MrWong99/rebalance/pkg/transform"
)

var _ host.Server = (*Server)(nil)
var _ inject.Release = (*Server)(nil)

// attributeDefaults are the base values of the registered attributes.
var attributeDefaults = map[transform.Attribute]float64{
	transform.MaxHealth:                 20,
	transform.FollowRange:               32,
	transform.KnockbackResistance:       0,
	transform.MovementSpeed:             0.7,
	transform.FlyingSpeed:               0.4,
	transform.AttackDamage:              2,
	transform.AttackKnockback:           0,
	transform.AttackSpeed:               4,
	transform.Armor:                     0,
	transform.ArmorToughness:            0,
	transform.Luck:                      0,
	transform.HorseJumpStrength:         0.7,
	transform.ZombieSpawnReinforcements: 0,
}

// Server is a booted v1_16_R1 item registry. It is safe for concurrent use.
type Server struct {
	tags item.Tags

	// attributes and categories are immutable after Boot.
	attributes map[string]*AttributeBase
	categories map[item.ID]item.Category

	mu    sync.RWMutex
	items map[item.ID]Item
}

// Boot builds a registry holding every item of c. Items are typed after the
// category the vanilla tags (or the definition's override) assign them.
func Boot(c *host.Catalog) (*Server, error) {
	s := &Server{
		tags:       item.DefaultTags(),
		attributes: make(map[string]*AttributeBase, len(attributeDefaults)),
		categories: make(map[item.ID]item.Category, len(c.Items)),
		items:      make(map[item.ID]Item, len(c.Items)),
	}
	for _, a := range transform.KnownAttributes() {
		s.attributes[string(a)] = &AttributeBase{Key: string(a), DefaultValue: attributeDefaults[a]}
	}

	for _, d := range c.Items {
		cat := d.CategoryIn(s.tags)
		it, err := s.build(d, cat)
		if err != nil {
			return nil, fmt.Errorf("v1_16r1: item %s: %w", d.ID, err)
		}
		s.categories[d.ID] = cat
		s.items[d.ID] = it
	}
	return s, nil
}

func (s *Server) build(d host.ItemDef, cat item.Category) (Item, error) {
	base := ItemBase{Key: d.ID}
	if d.Food != nil {
		fp, _ := d.FoodPatch()
		base.Food = &FoodInfo{}
		writeFood(base.Food, fp)
	}

	var it Item
	switch {
	case cat.IsArmor():
		it = &ItemArmor{ItemBase: base}
	case cat == item.CategorySword:
		it = &ItemSword{ItemBase: base}
	case cat.IsTool():
		it = &ItemTool{ItemBase: base}
	case cat == item.CategoryTrident:
		it = &ItemTrident{ItemBase: base}
	default:
		return &base, nil
	}

	patch, err := d.AttributePatch()
	if err != nil {
		return nil, err
	}
	if err := s.setModifiers(it, cat, patch); err != nil {
		return nil, err
	}
	return it, nil
}

// VersionTag implements [host.Server].
func (s *Server) VersionTag() string { return VersionTag }

// Items implements [host.Server].
func (s *Server) Items() []item.ID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.SortedFunc(maps.Keys(s.items), item.Compare)
}

// Resolve returns a copy of the item registered under id.
func (s *Server) Resolve(id item.ID) (Item, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	it, ok := s.items[id]
	if !ok {
		return nil, false
	}
	return cloneItem(it), true
}

// Attribute returns the registered handle for key.
func (s *Server) Attribute(key transform.Attribute) (*AttributeBase, bool) {
	a, ok := s.attributes[string(key)]
	return a, ok
}

// Snapshot returns a copy of every item.
func (s *Server) Snapshot() map[item.ID]Item {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[item.ID]Item, len(s.items))
	for id, it := range s.items {
		out[id] = cloneItem(it)
	}
	return out
}

// ReadAttributes implements [inject.AttributeAccessor].
func (s *Server) ReadAttributes(id item.ID) (transform.AttributePatch, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	it, ok := s.items[id]
	if !ok {
		return transform.AttributePatch{}, false, inject.NotFound(inject.OpRead, id)
	}
	cat := s.categories[id]
	if !cat.CarriesAttributes() {
		return transform.AttributePatch{}, false, nil
	}
	field, err := modifierField(it, cat)
	if err != nil {
		return transform.AttributePatch{}, false, inject.Unavailable(inject.OpRead, id, err.Error())
	}
	if *field == nil {
		return transform.AttributePatch{}, false, inject.Missing(inject.OpRead, id, "attribute modifier list is undefined")
	}

	entries := make([]transform.AttributeEntry, 0, len(*field))
	for _, p := range *field {
		if p.Attribute == nil {
			return transform.AttributePatch{}, false, inject.Missing(inject.OpRead, id, "modifier without attribute")
		}
		attr, ok := transform.LookupAttribute(p.Attribute.Key)
		if !ok {
			return transform.AttributePatch{}, false, inject.Missing(inject.OpRead, id, fmt.Sprintf("unregistered attribute %q", p.Attribute.Key))
		}
		m := p.Modifier
		entries = append(entries, transform.AttributeEntry{
			Attribute: attr,
			Modifier: transform.Modifier{
				UUID:      m.ID,
				Name:      m.Name,
				Amount:    m.Amount,
				Operation: m.Operation,
				Slot:      m.Slot,
			},
		})
	}
	return transform.NewAttributePatch(entries...), true, nil
}

// WriteAttributes implements [inject.AttributeAccessor].
func (s *Server) WriteAttributes(id item.ID, patch transform.AttributePatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	it, ok := s.items[id]
	if !ok {
		return inject.NotFound(inject.OpWrite, id)
	}
	cat := s.categories[id]
	if !cat.CarriesAttributes() {
		return inject.Unavailable(inject.OpWrite, id, "item carries no attribute modifiers")
	}
	if err := s.setModifiers(it, cat, patch); err != nil {
		return inject.Unavailable(inject.OpWrite, id, err.Error())
	}
	return nil
}

// setModifiers replaces the modifier list of it and re-derives its scalar
// fields.
func (s *Server) setModifiers(it Item, cat item.Category, patch transform.AttributePatch) error {
	field, err := modifierField(it, cat)
	if err != nil {
		return err
	}

	pairs := make([]ModifierPair, 0, patch.Len())
	for _, e := range patch.Entries() {
		a, ok := s.attributes[string(e.Attribute)]
		if !ok {
			return fmt.Errorf("attribute %q is not registered", e.Attribute)
		}
		pairs = append(pairs, ModifierPair{
			Attribute: a,
			Modifier: AttributeModifier{
				ID:        e.Modifier.UUID,
				Name:      e.Modifier.Name,
				Amount:    e.Modifier.Amount,
				Operation: e.Modifier.Operation,
				Slot:      e.Modifier.Slot,
			},
		})
	}
	*field = pairs

	d, _ := inject.Derive(cat, patch)
	switch v := it.(type) {
	case *ItemArmor:
		v.Armor = d.Armor
		v.ArmorToughness = d.ArmorToughness
		v.KnockbackResistance = d.KnockbackResistance
	case *ItemSword:
		v.AttackDamage = d.AttackDamage
	case *ItemTool:
		v.AttackDamage = d.AttackDamage
	}
	return nil
}

// modifierField returns the modifier list the category's item type declares.
// An item whose type does not match its category has no such field.
func modifierField(it Item, cat item.Category) (*[]ModifierPair, error) {
	switch v := it.(type) {
	case *ItemArmor:
		if cat.IsArmor() {
			return &v.Modifiers, nil
		}
	case *ItemSword:
		if cat == item.CategorySword {
			return &v.Modifiers, nil
		}
	case *ItemTool:
		if cat.IsTool() {
			return &v.Modifiers, nil
		}
	case *ItemTrident:
		if cat == item.CategoryTrident {
			return &v.Modifiers, nil
		}
	}
	return nil, fmt.Errorf("%T has no modifier list for category %s", it, cat)
}

// ReadFood implements [inject.FoodAccessor].
func (s *Server) ReadFood(id item.ID) (transform.FoodPatch, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	it, ok := s.items[id]
	if !ok {
		return transform.FoodPatch{}, false, inject.NotFound(inject.OpRead, id)
	}
	f := it.base().Food
	if f == nil {
		return transform.FoodPatch{}, false, nil
	}

	effects := make([]transform.FoodEffect, len(f.Effects))
	for i, e := range f.Effects {
		effects[i] = transform.FoodEffect{
			Effect: transform.PotionEffect{
				Type:      e.Effect.Effect,
				Duration:  e.Effect.Duration,
				Amplifier: e.Effect.Amplifier,
				Ambient:   e.Effect.Ambient,
				Particles: e.Effect.ShowParticles,
				Icon:      e.Effect.ShowIcon,
			},
			Chance: e.Chance,
		}
	}
	return transform.NewFoodPatch(
		transform.WithNutrition(f.Nutrition),
		transform.WithSaturation(f.SaturationModifier),
		transform.WithWolfEatable(f.Meat),
		transform.WithEffects(effects...),
	), true, nil
}

// WriteFood implements [inject.FoodAccessor].
func (s *Server) WriteFood(id item.ID, patch transform.FoodPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	it, ok := s.items[id]
	if !ok {
		return inject.NotFound(inject.OpWrite, id)
	}
	f := it.base().Food
	if f == nil {
		return inject.Missing(inject.OpWrite, id, "food info")
	}
	writeFood(f, patch)
	return nil
}

// writeFood copies the fields set in patch into f.
func writeFood(f *FoodInfo, patch transform.FoodPatch) {
	if n, ok := patch.Nutrition(); ok {
		f.Nutrition = n
	}
	if sat, ok := patch.Saturation(); ok {
		f.SaturationModifier = sat
	}
	if w, ok := patch.WolfEatable(); ok {
		f.Meat = w
	}
	if effects, ok := patch.Effects(); ok {
		f.Effects = make([]EffectChance, len(effects))
		for i, e := range effects {
			f.Effects[i] = EffectChance{
				Effect: MobEffect{
					Effect:        e.Effect.Type,
					Duration:      e.Effect.Duration,
					Amplifier:     e.Effect.Amplifier,
					Ambient:       e.Effect.Ambient,
					ShowParticles: e.Effect.Particles,
					ShowIcon:      e.Effect.Icon,
				},
				Chance: e.Chance,
			}
		}
	}
}
