package v1_17r1

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"

	"github.com/MrWong99/rebalance/internal/host"
	"github.com/MrWong99/rebalance/internal/inject"
	"github.com/MrWong99/rebalance/pkg/item"
	"github.com/MrWong99/rebalance/pkg/transform"
)

func boot(t *testing.T) *Server {
	t.Helper()
	c, err := host.DefaultCatalog()
	if err != nil {
		t.Fatalf("DefaultCatalog: %v", err)
	}
	s, err := Boot(c)
	if err != nil {
		t.Fatalf("Boot: %v", err)
	}
	return s
}

func entry(attr transform.Attribute, amount float64, slot transform.Slot) transform.AttributeEntry {
	return transform.AttributeEntry{
		Attribute: attr,
		Modifier:  transform.Modifier{UUID: uuid.New(), Amount: amount, Slot: slot},
	}
}

func TestBoot_Components(t *testing.T) {
	t.Parallel()
	s := boot(t)

	tests := []struct {
		id        string
		kind      EquipmentKind
		food      bool
		wantStats Equipment
	}{
		{id: "minecraft:diamond_sword", kind: KindWeapon, wantStats: Equipment{AttackDamage: 6}},
		{id: "minecraft:netherite_pickaxe", kind: KindDigger, wantStats: Equipment{AttackDamage: 5}},
		{id: "minecraft:netherite_chestplate", kind: KindArmor, wantStats: Equipment{Defense: 8, Toughness: 3, KnockbackResistance: 0.1}},
		{id: "minecraft:trident", kind: KindThrowable},
		{id: "minecraft:apple", food: true},
		{id: "minecraft:stick"},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			t.Parallel()
			it, ok := s.Resolve(item.MustParse(tt.id))
			if !ok {
				t.Fatalf("%s not registered", tt.id)
			}
			if got := it.Properties.Food != nil; got != tt.food {
				t.Errorf("food component = %v, want %v", got, tt.food)
			}
			eq := it.Properties.Equipment
			if tt.kind == 0 {
				if eq != nil {
					t.Errorf("unexpected equipment %+v", eq)
				}
				return
			}
			if eq == nil {
				t.Fatal("missing equipment component")
			}
			if eq.Kind != tt.kind {
				t.Errorf("kind = %d, want %d", eq.Kind, tt.kind)
			}
			got := Equipment{
				Defense:             eq.Defense,
				Toughness:           eq.Toughness,
				KnockbackResistance: eq.KnockbackResistance,
				AttackDamage:        eq.AttackDamage,
			}
			if diff := cmp.Diff(tt.wantStats, got); diff != "" {
				t.Errorf("stats (-want +got):\n%s", diff)
			}
		})
	}
}

func TestServer_RoundTrip(t *testing.T) {
	t.Parallel()
	s := boot(t)
	inj := inject.ForRelease(s)
	before := s.Snapshot()

	chest := item.Vanilla("diamond_chestplate")
	beef := item.Vanilla("cooked_beef")

	prevArmor, applied, err := inj.Inject(chest, transform.NewAttributePatch(
		entry(transform.Armor, 10, transform.SlotChest),
		entry(transform.KnockbackResistance, 0.2, transform.SlotChest),
	))
	if err != nil || !applied {
		t.Fatalf("inject armor = %v, %v", applied, err)
	}
	prevFood, applied, err := inj.Inject(beef, transform.NewFoodPatch(
		transform.WithNutrition(3),
		transform.WithEffects(transform.FoodEffect{
			Effect: transform.PotionEffect{Type: "minecraft:hunger", Duration: 200, Particles: true},
			Chance: 0.5,
		}),
	))
	if err != nil || !applied {
		t.Fatalf("inject food = %v, %v", applied, err)
	}

	it, _ := s.Resolve(chest)
	if eq := it.Properties.Equipment; eq.Defense != 10 || eq.Toughness != 0 || eq.KnockbackResistance != 0.2 {
		t.Errorf("derived stats = %+v", eq)
	}
	it, _ = s.Resolve(beef)
	if f := it.Properties.Food; f.Nutrition != 3 || f.Saturation != 0.8 || f.Effects[0].Flags != FlagParticles {
		t.Errorf("food = %+v", f)
	}

	if _, _, err := inj.Inject(beef, prevFood); err != nil {
		t.Fatalf("restore food: %v", err)
	}
	if _, _, err := inj.Inject(chest, prevArmor); err != nil {
		t.Fatalf("restore armor: %v", err)
	}
	if diff := cmp.Diff(before, s.Snapshot()); diff != "" {
		t.Errorf("registry changed after round trip (-before +after):\n%s", diff)
	}
}

func TestServer_GroupsModifiersByAttribute(t *testing.T) {
	t.Parallel()
	s := boot(t)
	sword := item.Vanilla("iron_sword")

	a1 := entry(transform.AttackDamage, 3, transform.SlotHand)
	sp := entry(transform.AttackSpeed, -2, transform.SlotHand)
	a2 := entry(transform.AttackDamage, 1.5, transform.SlotAny)
	if err := s.WriteAttributes(sword, transform.NewAttributePatch(a1, sp, a2)); err != nil {
		t.Fatalf("WriteAttributes: %v", err)
	}

	got, _, err := s.ReadAttributes(sword)
	if err != nil {
		t.Fatalf("ReadAttributes: %v", err)
	}
	want := transform.NewAttributePatch(a1, a2, sp)
	if !got.Equal(want) {
		t.Errorf("ReadAttributes = %s, want %s", got, want)
	}
	it, _ := s.Resolve(sword)
	if it.Properties.Equipment.AttackDamage != 4.5 {
		t.Errorf("AttackDamage = %v, want 4.5", it.Properties.Equipment.AttackDamage)
	}
}

func TestServer_Errors(t *testing.T) {
	t.Parallel()
	s := boot(t)

	if _, _, err := s.ReadFood(item.New("custom", "thing")); !errors.Is(err, inject.ErrItemNotFound) {
		t.Errorf("unknown item: %v, want ErrItemNotFound", err)
	}
	stick := item.Vanilla("stick")
	if err := s.WriteAttributes(stick, transform.AttributePatch{}); !errors.Is(err, inject.ErrAccessorUnavailable) {
		t.Errorf("attributes on stick: %v, want ErrAccessorUnavailable", err)
	}
	if _, ok, err := s.ReadAttributes(stick); ok || err != nil {
		t.Errorf("ReadAttributes(stick) = %v, %v; want not applicable", ok, err)
	}

	sword := item.Vanilla("iron_sword")
	s.mu.Lock()
	s.items[sword].Properties.Equipment.Modifiers.rows["minecraft:generic.attack_damage"][0].Slot = 42
	s.mu.Unlock()
	if _, _, err := s.ReadAttributes(sword); !errors.Is(err, inject.ErrComponentMissing) {
		t.Errorf("malformed row: %v, want ErrComponentMissing", err)
	}

	s.mu.Lock()
	s.items[sword].Properties.Equipment.Modifiers = nil
	s.mu.Unlock()
	if _, _, err := s.ReadAttributes(sword); !errors.Is(err, inject.ErrComponentMissing) {
		t.Errorf("undefined table: %v, want ErrComponentMissing", err)
	}
}
