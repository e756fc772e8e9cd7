package v1_17r1

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

// slotOrdinals lists the equipment slots in registry order. The "any slot"
// value is stored as -1.
var slotOrdinals = []transform.Slot{
	transform.SlotHand,
	transform.SlotOffHand,
	transform.SlotFeet,
	transform.SlotLegs,
	transform.SlotChest,
	transform.SlotHead,
}

func slotOrdinal(s transform.Slot) int8 {
	if s == transform.SlotAny {
		return -1
	}
	return int8(slices.Index(slotOrdinals, s))
}

func slotFromOrdinal(o int8) (transform.Slot, bool) {
	if o == -1 {
		return transform.SlotAny, true
	}
	if o < 0 || int(o) >= len(slotOrdinals) {
		return transform.SlotAny, false
	}
	return slotOrdinals[o], true
}

func opOrdinal(op transform.Operation) int8 { return int8(op) }

// categoryOf maps an equipment kind onto the category whose derived scalars
// it keeps.
func categoryOf(k EquipmentKind) item.Category {
	switch k {
	case KindArmor:
		return item.CategoryArmor
	case KindWeapon:
		return item.CategorySword
	case KindDigger:
		return item.CategoryPickaxe
	case KindThrowable:
		return item.CategoryTrident
	}
	return item.CategoryNone
}

func kindOf(c item.Category) EquipmentKind {
	switch {
	case c.IsArmor():
		return KindArmor
	case c == item.CategorySword:
		return KindWeapon
	case c.IsTool():
		return KindDigger
	case c == item.CategoryTrident:
		return KindThrowable
	}
	return 0
}

// Server is a booted v1_17_R1 item registry. It is safe for concurrent use.
type Server struct {
	mu    sync.RWMutex
	items map[item.ID]*Item
}

// Boot builds a registry holding every item of c. Items whose category
// carries attributes get an equipment component.
func Boot(c *host.Catalog) (*Server, error) {
	tags := item.DefaultTags()
	s := &Server{items: make(map[item.ID]*Item, len(c.Items))}

	for _, d := range c.Items {
		it := &Item{ID: d.ID}
		if fp, ok := d.FoodPatch(); ok {
			it.Properties.Food = &FoodProperties{}
			writeFood(it.Properties.Food, fp)
		}
		if kind := kindOf(d.CategoryIn(tags)); kind != 0 {
			patch, err := d.AttributePatch()
			if err != nil {
				return nil, fmt.Errorf("v1_17r1: item %s: %w", d.ID, err)
			}
			it.Properties.Equipment = &Equipment{Kind: kind}
			setModifiers(it.Properties.Equipment, patch)
		}
		s.items[d.ID] = it
	}
	return s, nil
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
func (s *Server) Resolve(id item.ID) (*Item, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	it, ok := s.items[id]
	if !ok {
		return nil, false
	}
	return it.clone(), true
}

// Snapshot returns a copy of every item.
func (s *Server) Snapshot() map[item.ID]*Item {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[item.ID]*Item, len(s.items))
	for id, it := range s.items {
		out[id] = it.clone()
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
	eq := it.Properties.Equipment
	if eq == nil {
		return transform.AttributePatch{}, false, nil
	}
	if eq.Modifiers == nil {
		return transform.AttributePatch{}, false, inject.Missing(inject.OpRead, id, "attribute table is undefined")
	}

	entries := make([]transform.AttributeEntry, 0, eq.Modifiers.Len())
	for _, name := range eq.Modifiers.index {
		attr, ok := transform.LookupAttribute(name)
		if !ok {
			return transform.AttributePatch{}, false, inject.Missing(inject.OpRead, id, fmt.Sprintf("unregistered attribute %q", name))
		}
		for _, row := range eq.Modifiers.rows[name] {
			op := transform.Operation(row.Op)
			slot, ok := slotFromOrdinal(row.Slot)
			if !op.Valid() || !ok {
				return transform.AttributePatch{}, false, inject.Missing(inject.OpRead, id, fmt.Sprintf("malformed modifier row for %s", name))
			}
			entries = append(entries, transform.AttributeEntry{
				Attribute: attr,
				Modifier: transform.Modifier{
					UUID:      row.ID,
					Name:      row.Name,
					Amount:    row.Amount,
					Operation: op,
					Slot:      slot,
				},
			})
		}
	}
	return transform.NewAttributePatch(entries...), true, nil
}

// WriteAttributes implements [inject.AttributeAccessor]. Modifiers of one
// attribute end up grouped in the order their attribute first appears in
// patch.
func (s *Server) WriteAttributes(id item.ID, patch transform.AttributePatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	it, ok := s.items[id]
	if !ok {
		return inject.NotFound(inject.OpWrite, id)
	}
	eq := it.Properties.Equipment
	if eq == nil {
		return inject.Unavailable(inject.OpWrite, id, "item has no equipment component")
	}
	setModifiers(eq, patch)
	return nil
}

// setModifiers replaces the table of eq and re-derives its stats.
func setModifiers(eq *Equipment, patch transform.AttributePatch) {
	table := NewAttributeTable()
	for _, e := range patch.Entries() {
		table.Put(string(e.Attribute), ModifierRow{
			ID:     e.Modifier.UUID,
			Name:   e.Modifier.Name,
			Amount: e.Modifier.Amount,
			Op:     opOrdinal(e.Modifier.Operation),
			Slot:   slotOrdinal(e.Modifier.Slot),
		})
	}
	eq.Modifiers = table

	d, _ := inject.Derive(categoryOf(eq.Kind), patch)
	eq.Defense = d.Armor
	eq.Toughness = d.ArmorToughness
	eq.KnockbackResistance = d.KnockbackResistance
	eq.AttackDamage = d.AttackDamage
}

// ReadFood implements [inject.FoodAccessor].
func (s *Server) ReadFood(id item.ID) (transform.FoodPatch, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	it, ok := s.items[id]
	if !ok {
		return transform.FoodPatch{}, false, inject.NotFound(inject.OpRead, id)
	}
	f := it.Properties.Food
	if f == nil {
		return transform.FoodPatch{}, false, nil
	}

	effects := make([]transform.FoodEffect, len(f.Effects))
	for i, e := range f.Effects {
		effects[i] = transform.FoodEffect{
			Effect: transform.PotionEffect{
				Type:      e.Effect,
				Duration:  e.Duration,
				Amplifier: e.Amplifier,
				Ambient:   e.Flags&FlagAmbient != 0,
				Particles: e.Flags&FlagParticles != 0,
				Icon:      e.Flags&FlagIcon != 0,
			},
			Chance: e.Probability,
		}
	}
	return transform.NewFoodPatch(
		transform.WithNutrition(f.Nutrition),
		transform.WithSaturation(f.Saturation),
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
	if it.Properties.Food == nil {
		return inject.Missing(inject.OpWrite, id, "food component")
	}
	writeFood(it.Properties.Food, patch)
	return nil
}

func writeFood(f *FoodProperties, patch transform.FoodPatch) {
	if n, ok := patch.Nutrition(); ok {
		f.Nutrition = n
	}
	if sat, ok := patch.Saturation(); ok {
		f.Saturation = sat
	}
	if w, ok := patch.WolfEatable(); ok {
		f.Meat = w
	}
	if effects, ok := patch.Effects(); ok {
		f.Effects = make([]EffectEntry, len(effects))
		for i, e := range effects {
			var flags uint8
			if e.Effect.Ambient {
				flags |= FlagAmbient
			}
			if e.Effect.Particles {
				flags |= FlagParticles
			}
			if e.Effect.Icon {
				flags |= FlagIcon
			}
			f.Effects[i] = EffectEntry{
				Effect:      e.Effect.Type,
				Duration:    e.Effect.Duration,
				Amplifier:   e.Effect.Amplifier,
				Flags:       flags,
				Probability: e.Chance,
			}
		}
	}
}
