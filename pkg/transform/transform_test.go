package transform_test

import (
	"errors"
	"math"
	"testing"

	"github.com/MrWong99/rebalance/pkg/item"
	"github.com/MrWong99/rebalance/pkg/transform"
	"github.com/google/uuid"
)

// rogue embeds a real variant so it satisfies the interface without being
// one of the closed-set types.
type rogue struct {
	transform.AttributePatch
}

func damage(amount float64) transform.AttributeEntry {
	return transform.AttributeEntry{
		Attribute: transform.AttackDamage,
		Modifier: transform.Modifier{
			UUID:      uuid.New(),
			Name:      "Weapon modifier",
			Amount:    amount,
			Operation: transform.OpAddNumber,
			Slot:      transform.SlotHand,
		},
	}
}

func withSlot(e transform.AttributeEntry, slot transform.Slot) transform.AttributeEntry {
	e.Modifier.Slot = slot
	return e
}

func TestAttributePatch_ValidateSlots(t *testing.T) {
	t.Parallel()
	for _, slot := range []transform.Slot{
		transform.SlotAny, transform.SlotHand, transform.SlotOffHand,
		transform.SlotHead, transform.SlotChest, transform.SlotLegs, transform.SlotFeet,
	} {
		if err := transform.NewAttributePatch(withSlot(damage(1), slot)).Validate(); err != nil {
			t.Errorf("slot %q: %v", slot, err)
		}
	}
	if err := transform.NewAttributePatch(withSlot(damage(1), "tail")).Validate(); err == nil {
		t.Error("unknown slot accepted")
	}
}

func TestAttributePatch_Immutable(t *testing.T) {
	t.Parallel()

	in := []transform.AttributeEntry{damage(3), damage(1.5)}
	p := transform.NewAttributePatch(in...)

	in[0].Modifier.Amount = 100
	if got := p.Sum(transform.AttackDamage); got != 4.5 {
		t.Fatalf("Sum after mutating input = %v, want 4.5", got)
	}

	out := p.Entries()
	out[1].Modifier.Amount = 100
	if got := p.Sum(transform.AttackDamage); got != 4.5 {
		t.Fatalf("Sum after mutating Entries() = %v, want 4.5", got)
	}
}

func TestAttributePatch_Accessors(t *testing.T) {
	t.Parallel()

	speed := transform.AttributeEntry{
		Attribute: transform.AttackSpeed,
		Modifier:  transform.Modifier{Amount: -2.4, Operation: transform.OpAddNumber},
	}
	p := transform.NewAttributePatch(damage(3), speed, damage(1.5))

	if p.Len() != 3 {
		t.Errorf("Len = %d, want 3", p.Len())
	}
	attrs := p.Attributes()
	if len(attrs) != 2 || attrs[0] != transform.AttackDamage || attrs[1] != transform.AttackSpeed {
		t.Errorf("Attributes = %v", attrs)
	}
	if mods := p.Modifiers(transform.AttackDamage); len(mods) != 2 || mods[0].Amount != 3 || mods[1].Amount != 1.5 {
		t.Errorf("Modifiers(AttackDamage) = %v", mods)
	}
	if got := p.Sum(transform.Armor); got != 0 {
		t.Errorf("Sum(Armor) = %v, want 0", got)
	}
	if err := p.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}

	bad := transform.NewAttributePatch(transform.AttributeEntry{Attribute: "minecraft:generic.mana"})
	if err := bad.Validate(); err == nil {
		t.Error("expected error for unknown attribute")
	}
}

func TestParseOperationAndSlot(t *testing.T) {
	t.Parallel()

	for _, name := range []string{"add_number", "ADD_SCALAR", "multiply_scalar_1"} {
		if _, err := transform.ParseOperation(name); err != nil {
			t.Errorf("ParseOperation(%q): %v", name, err)
		}
	}
	if _, err := transform.ParseOperation("divide"); err == nil {
		t.Error("expected error for unknown operation")
	}
	if s, err := transform.ParseSlot("OFF_HAND"); err != nil || s != transform.SlotOffHand {
		t.Errorf("ParseSlot(OFF_HAND) = %q, %v", s, err)
	}
	if _, err := transform.ParseSlot("tail"); err == nil {
		t.Error("expected error for unknown slot")
	}
}

func TestFoodPatch_Optionality(t *testing.T) {
	t.Parallel()

	empty := transform.NewFoodPatch()
	if !empty.IsEmpty() {
		t.Error("patch without options should be empty")
	}
	if _, ok := empty.Effects(); ok {
		t.Error("effects should be unset")
	}

	zero := transform.NewFoodPatch(transform.WithNutrition(0), transform.WithWolfEatable(false), transform.WithEffects())
	if n, ok := zero.Nutrition(); !ok || n != 0 {
		t.Errorf("Nutrition = %d, %t; want 0, true", n, ok)
	}
	if w, ok := zero.WolfEatable(); !ok || w {
		t.Errorf("WolfEatable = %t, %t; want false, true", w, ok)
	}
	if effects, ok := zero.Effects(); !ok || len(effects) != 0 {
		t.Errorf("Effects = %v, %t; want [], true", effects, ok)
	}
	if _, ok := zero.Saturation(); ok {
		t.Error("saturation should stay unset")
	}
	if zero.Equal(empty) {
		t.Error("a patch setting zero values must differ from an empty patch")
	}
}

func TestFoodPatch_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		patch   transform.FoodPatch
		wantErr bool
	}{
		{name: "empty", patch: transform.NewFoodPatch()},
		{name: "negative nutrition", patch: transform.NewFoodPatch(transform.WithNutrition(-1)), wantErr: true},
		{
			name: "chance out of range",
			patch: transform.NewFoodPatch(transform.WithEffects(transform.FoodEffect{
				Effect: transform.PotionEffect{Type: "minecraft:hunger", Duration: 600},
				Chance: 1.5,
			})),
			wantErr: true,
		},
		{
			name:    "missing effect type",
			patch:   transform.NewFoodPatch(transform.WithEffects(transform.FoodEffect{Chance: 0.5})),
			wantErr: true,
		},
		{
			name:    "infinite saturation",
			patch:   transform.NewFoodPatch(transform.WithSaturation(float32(math.Inf(1)))),
			wantErr: true,
		},
		{
			name:    "NaN saturation",
			patch:   transform.NewFoodPatch(transform.WithSaturation(float32(math.NaN()))),
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.patch.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %t", err, tt.wantErr)
			}
		})
	}
}

func TestMatch(t *testing.T) {
	t.Parallel()

	onAttr := func(transform.AttributePatch) (string, error) { return "attribute", nil }
	onFood := func(transform.FoodPatch) (string, error) { return "food", nil }

	if got, err := transform.Match(transform.NewAttributePatch(damage(1)), onAttr, onFood); err != nil || got != "attribute" {
		t.Errorf("Match(attribute) = %q, %v", got, err)
	}
	if got, err := transform.Match(transform.NewFoodPatch(), onAttr, onFood); err != nil || got != "food" {
		t.Errorf("Match(food) = %q, %v", got, err)
	}
	if _, err := transform.Match(nil, onAttr, onFood); !errors.Is(err, transform.ErrUnsupported) {
		t.Errorf("Match(nil) error = %v, want ErrUnsupported", err)
	}
	if _, err := transform.Match(rogue{}, onAttr, onFood); !errors.Is(err, transform.ErrUnsupported) {
		t.Errorf("Match(rogue) error = %v, want ErrUnsupported", err)
	}
}

func TestEqual(t *testing.T) {
	t.Parallel()

	a := transform.NewFoodPatch(transform.WithNutrition(4))
	b := transform.NewFoodPatch(transform.WithNutrition(4))
	if !transform.Equal(a, b) {
		t.Error("equal food patches reported unequal")
	}
	if transform.Equal(a, transform.NewAttributePatch()) {
		t.Error("different variants reported equal")
	}
	if transform.Equal(nil, a) {
		t.Error("nil reported equal")
	}
}

func TestNewPatchSet(t *testing.T) {
	t.Parallel()

	sword := item.Vanilla("diamond_sword")
	apple := item.Vanilla("apple")

	ps, err := transform.NewPatchSet(
		transform.Entry{Item: sword, Patch: transform.NewAttributePatch(damage(6))},
		transform.Entry{Item: apple, Patch: transform.NewFoodPatch(transform.WithNutrition(5))},
		transform.Entry{Item: sword, Patch: transform.NewFoodPatch(transform.WithWolfEatable(true))},
	)
	if err != nil {
		t.Fatalf("NewPatchSet: %v", err)
	}
	if ps.Len() != 3 {
		t.Errorf("Len = %d, want 3", ps.Len())
	}
	items := ps.Items()
	if len(items) != 2 || items[0] != sword || items[1] != apple {
		t.Errorf("Items = %v, want [sword apple]", items)
	}
	if got := ps.Get(sword); len(got) != 2 || got[0].Kind() != transform.KindAttribute || got[1].Kind() != transform.KindFood {
		t.Errorf("Get(sword) = %v", got)
	}
	entries := ps.Entries()
	if entries[1].Item != sword || entries[2].Item != apple {
		t.Errorf("Entries not grouped by item: %v", entries)
	}
	counts := ps.CountByKind()
	if counts[transform.KindAttribute] != 1 || counts[transform.KindFood] != 2 {
		t.Errorf("CountByKind = %v", counts)
	}
}

func TestNewPatchSet_Rejects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		entry transform.Entry
	}{
		{name: "invalid item", entry: transform.Entry{Item: item.New("", "x"), Patch: transform.NewFoodPatch()}},
		{name: "nil transformer", entry: transform.Entry{Item: item.Vanilla("apple")}},
		{name: "foreign transformer", entry: transform.Entry{Item: item.Vanilla("apple"), Patch: rogue{}}},
		{
			name: "invalid food",
			entry: transform.Entry{
				Item:  item.Vanilla("apple"),
				Patch: transform.NewFoodPatch(transform.WithNutrition(-3)),
			},
		},
		{
			name: "unknown slot",
			entry: transform.Entry{
				Item:  item.Vanilla("diamond_sword"),
				Patch: transform.NewAttributePatch(withSlot(damage(7), "bogus")),
			},
		},
		{
			name: "slot not in canonical case",
			entry: transform.Entry{
				Item:  item.Vanilla("diamond_sword"),
				Patch: transform.NewAttributePatch(withSlot(damage(7), "HAND")),
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := transform.NewPatchSet(tt.entry); !errors.Is(err, transform.ErrInvalidPatchSet) {
				t.Fatalf("error = %v, want ErrInvalidPatchSet", err)
			}
		})
	}
}

func TestFromMap(t *testing.T) {
	t.Parallel()

	ps, err := transform.FromMap(map[item.ID][]transform.Transformer{
		item.Vanilla("bread"): {transform.NewFoodPatch(transform.WithNutrition(6))},
		item.Vanilla("apple"): {transform.NewFoodPatch(transform.WithNutrition(5))},
	})
	if err != nil {
		t.Fatalf("FromMap: %v", err)
	}
	if items := ps.Items(); items[0] != item.Vanilla("apple") {
		t.Errorf("Items = %v, want apple first", items)
	}

	_, err = transform.FromMap(map[item.ID][]transform.Transformer{item.Vanilla("apple"): {}})
	if !errors.Is(err, transform.ErrInvalidPatchSet) {
		t.Errorf("empty list error = %v, want ErrInvalidPatchSet", err)
	}
}
