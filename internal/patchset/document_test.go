package patchset

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"

	"github.com/MrWong99/rebalance/pkg/item"
	"github.com/MrWong99/rebalance/pkg/transform"
)

const validDoc = `
format: 1
release: v1_16_R1
items:
  minecraft:diamond_sword:
    - attribute-modifiers:
        minecraft:generic.attack_damage:
          - {uuid: cb3f55d3-645c-4f38-a497-9c13a33db5cf, name: Weapon modifier, amount: 6, operation: add_number, slot: hand}
          - {amount: 0.5, operation: 2}
  minecraft:golden_apple:
    - food-level: 4
      saturation: 1.2
      wolf-eatable: false
      effects:
        - effect: {type: "minecraft:regeneration", duration: 100, amplifier: 1, has-icon: false}
          chance: 1.0
  minecraft:rotten_flesh:
    - effects: []
`

func TestParse_Valid(t *testing.T) {
	t.Parallel()

	doc, err := Parse([]byte(validDoc))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if doc.Release != "v1_16_R1" {
		t.Errorf("Release = %q, want v1_16_R1", doc.Release)
	}

	wantItems := []item.ID{
		item.Vanilla("diamond_sword"),
		item.Vanilla("golden_apple"),
		item.Vanilla("rotten_flesh"),
	}
	if diff := cmp.Diff(wantItems, doc.Patches.Items()); diff != "" {
		t.Errorf("Items mismatch (-want +got):\n%s", diff)
	}

	sword := doc.Patches.Get(item.Vanilla("diamond_sword"))
	if len(sword) != 1 {
		t.Fatalf("sword transformers = %d, want 1", len(sword))
	}
	ap, ok := sword[0].(transform.AttributePatch)
	if !ok {
		t.Fatalf("sword transformer is %T, want AttributePatch", sword[0])
	}
	mods := ap.Modifiers(transform.AttackDamage)
	if len(mods) != 2 {
		t.Fatalf("attack damage modifiers = %d, want 2", len(mods))
	}
	want0 := transform.Modifier{
		UUID:      uuid.MustParse("cb3f55d3-645c-4f38-a497-9c13a33db5cf"),
		Name:      "Weapon modifier",
		Amount:    6,
		Operation: transform.OpAddNumber,
		Slot:      transform.SlotHand,
	}
	if mods[0] != want0 {
		t.Errorf("modifier 0 = %+v, want %+v", mods[0], want0)
	}
	if mods[1].Operation != transform.OpMultiplyScalar1 || mods[1].Slot != transform.SlotAny {
		t.Errorf("modifier 1 = %+v, want multiply_scalar_1 in any slot", mods[1])
	}
	if mods[1].UUID == uuid.Nil {
		t.Error("modifier without uuid got the nil uuid")
	}

	apple := doc.Patches.Get(item.Vanilla("golden_apple"))[0].(transform.FoodPatch)
	if n, ok := apple.Nutrition(); !ok || n != 4 {
		t.Errorf("Nutrition = %d, %v; want 4, true", n, ok)
	}
	if s, ok := apple.Saturation(); !ok || s != 1.2 {
		t.Errorf("Saturation = %g, %v; want 1.2, true", s, ok)
	}
	if w, ok := apple.WolfEatable(); !ok || w {
		t.Errorf("WolfEatable = %v, %v; want false, true", w, ok)
	}
	effects, _ := apple.Effects()
	wantEffects := []transform.FoodEffect{{
		Effect: transform.PotionEffect{Type: "minecraft:regeneration", Duration: 100, Amplifier: 1, Particles: true},
		Chance: 1,
	}}
	if diff := cmp.Diff(wantEffects, effects); diff != "" {
		t.Errorf("effects mismatch (-want +got):\n%s", diff)
	}

	flesh := doc.Patches.Get(item.Vanilla("rotten_flesh"))[0].(transform.FoodPatch)
	if e, ok := flesh.Effects(); !ok || len(e) != 0 {
		t.Errorf("rotten_flesh Effects = %v, %v; want explicitly empty", e, ok)
	}
	if _, ok := flesh.Nutrition(); ok {
		t.Error("rotten_flesh nutrition should be unset")
	}
}

func TestParse_DerivedUUIDIsStable(t *testing.T) {
	t.Parallel()

	const doc = `
format: 1
items:
  minecraft:iron_axe:
    - attribute-modifiers:
        minecraft:generic.attack_damage:
          - {amount: 4}
`
	first, err := Parse([]byte(doc))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	second, err := Parse([]byte(doc))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	a := first.Patches.Get(item.Vanilla("iron_axe"))[0].(transform.AttributePatch)
	b := second.Patches.Get(item.Vanilla("iron_axe"))[0].(transform.AttributePatch)
	if !a.Equal(b) {
		t.Errorf("reparsed patch differs: %v vs %v", a, b)
	}
}

func TestParse_CombinedTransformer(t *testing.T) {
	t.Parallel()

	const doc = `
format: 1
items:
  minecraft:cooked_beef:
    - food-level: 10
      attribute-modifiers:
        minecraft:generic.luck:
          - {amount: 1}
`
	d, err := Parse([]byte(doc))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	got := d.Patches.Get(item.Vanilla("cooked_beef"))
	if len(got) != 2 {
		t.Fatalf("transformers = %d, want 2", len(got))
	}
	if got[0].Kind() != transform.KindAttribute || got[1].Kind() != transform.KindFood {
		t.Errorf("kinds = %v, %v; want attribute then food", got[0].Kind(), got[1].Kind())
	}
}

func TestParse_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		doc     string
		opts    []Option
		wantErr string
	}{
		{
			name:    "empty",
			doc:     "",
			wantErr: "empty document",
		},
		{
			name:    "missing format",
			doc:     "items: {}",
			wantErr: "missing format header",
		},
		{
			name:    "wrong format",
			doc:     "format: 2",
			wantErr: "unsupported format version: 2",
		},
		{
			name:    "unknown top level key",
			doc:     "format: 1\nbogus: true",
			wantErr: "field bogus not found",
		},
		{
			name:    "items not a map",
			doc:     "format: 1\nitems: [a]",
			wantErr: "items must be a map",
		},
		{
			name:    "missing separator",
			doc:     "format: 1\nitems:\n  diamond_sword: []",
			wantErr: "missing namespace and key separator",
		},
		{
			name:    "saturation overflows float32",
			doc:     "format: 1\nitems:\n  minecraft:apple:\n    - saturation: 1.0e300",
			wantErr: "saturation 1.0e300 overflows float32",
		},
		{
			name:    "transformers not a list",
			doc:     "format: 1\nitems:\n  minecraft:stick: {food-level: 1}",
			wantErr: "transformers must be a list",
		},
		{
			name:    "empty transformer list",
			doc:     "format: 1\nitems:\n  minecraft:stick: []",
			wantErr: "transformer list is empty",
		},
		{
			name:    "transformer not a map",
			doc:     "format: 1\nitems:\n  minecraft:stick: [3]",
			wantErr: "transformer must be a map",
		},
		{
			name:    "unknown transformer key",
			doc:     "format: 1\nitems:\n  minecraft:stick: [{durability: 3}]",
			wantErr: `unknown key "durability"`,
		},
		{
			name:    "attribute modifiers not a map",
			doc:     "format: 1\nitems:\n  minecraft:stick: [{attribute-modifiers: [1]}]",
			wantErr: "attribute-modifiers must be a map",
		},
		{
			name:    "attribute without separator",
			doc:     "format: 1\nitems:\n  minecraft:stick:\n    - attribute-modifiers: {armor: []}",
			wantErr: "missing namespace and key separator in: armor",
		},
		{
			name:    "unknown attribute with suggestion",
			doc:     "format: 1\nitems:\n  minecraft:stick:\n    - attribute-modifiers: {\"minecraft:generic.attack_damge\": []}",
			wantErr: "unknown attribute: minecraft:generic.attack_damge (did you mean minecraft:generic.attack_damage?)",
		},
		{
			name:    "modifiers not a list",
			doc:     "format: 1\nitems:\n  minecraft:stick:\n    - attribute-modifiers: {\"minecraft:generic.luck\": {amount: 1}}",
			wantErr: "attribute modifiers must be a list",
		},
		{
			name:    "modifier not a map",
			doc:     "format: 1\nitems:\n  minecraft:stick:\n    - attribute-modifiers: {\"minecraft:generic.luck\": [1]}",
			wantErr: "attribute modifier must be a map",
		},
		{
			name:    "modifier missing amount",
			doc:     "format: 1\nitems:\n  minecraft:stick:\n    - attribute-modifiers: {\"minecraft:generic.luck\": [{name: x}]}",
			wantErr: "missing amount element",
		},
		{
			name:    "amount not a number",
			doc:     "format: 1\nitems:\n  minecraft:stick:\n    - attribute-modifiers: {\"minecraft:generic.luck\": [{amount: lots}]}",
			wantErr: "amount must be a number",
		},
		{
			name:    "bad uuid",
			doc:     "format: 1\nitems:\n  minecraft:stick:\n    - attribute-modifiers: {\"minecraft:generic.luck\": [{amount: 1, uuid: nope}]}",
			wantErr: "uuid",
		},
		{
			name:    "operation ordinal out of range",
			doc:     "format: 1\nitems:\n  minecraft:stick:\n    - attribute-modifiers: {\"minecraft:generic.luck\": [{amount: 1, operation: 7}]}",
			wantErr: "operation ordinal 7 out of range",
		},
		{
			name:    "unknown slot",
			doc:     "format: 1\nitems:\n  minecraft:stick:\n    - attribute-modifiers: {\"minecraft:generic.luck\": [{amount: 1, slot: tail}]}",
			wantErr: `unknown slot "tail"`,
		},
		{
			name:    "food level not an int",
			doc:     "format: 1\nitems:\n  minecraft:apple: [{food-level: 2.5}]",
			wantErr: "food-level must be int",
		},
		{
			name:    "wolf eatable not a bool",
			doc:     "format: 1\nitems:\n  minecraft:apple: [{wolf-eatable: \"yes\"}]",
			wantErr: "wolf-eatable must be bool",
		},
		{
			name:    "negative nutrition",
			doc:     "format: 1\nitems:\n  minecraft:apple: [{food-level: -1}]",
			wantErr: "nutrition must be non-negative",
		},
		{
			name:    "effects not a list",
			doc:     "format: 1\nitems:\n  minecraft:apple: [{effects: {}}]",
			wantErr: "effects must be a list",
		},
		{
			name:    "invalid effect",
			doc:     "format: 1\nitems:\n  minecraft:apple: [{effects: [poison]}]",
			wantErr: "invalid effect: poison",
		},
		{
			name:    "missing effect element",
			doc:     "format: 1\nitems:\n  minecraft:apple: [{effects: [{chance: 1}]}]",
			wantErr: "missing effect element",
		},
		{
			name:    "missing chance element",
			doc:     "format: 1\nitems:\n  minecraft:apple: [{effects: [{effect: {type: \"minecraft:poison\"}}]}]",
			wantErr: "missing chance element",
		},
		{
			name:    "chance out of range",
			doc:     "format: 1\nitems:\n  minecraft:apple: [{effects: [{effect: {type: \"minecraft:poison\"}, chance: 2}]}]",
			wantErr: "out of range",
		},
		{
			name:    "duplicate key",
			doc:     "format: 1\nitems:\n  minecraft:apple: [{effects: [{effect: {type: \"minecraft:poison\", duration: 1, duration: 2}, chance: 1}]}]",
			wantErr: `"duration"`,
		},
		{
			name:    "invalid material with suggestion",
			doc:     "format: 1\nitems:\n  minecraft:diamond_swrod: [{food-level: 1}]",
			opts:    []Option{WithKnownItems(item.Vanilla("diamond_sword"), item.Vanilla("stick"))},
			wantErr: "invalid material: minecraft:diamond_swrod (did you mean minecraft:diamond_sword?)",
		},
		{
			name:    "invalid material without suggestion",
			doc:     "format: 1\nitems:\n  minecraft:elytra: [{food-level: 1}]",
			opts:    []Option{WithKnownItems(item.Vanilla("stick"))},
			wantErr: "invalid material: minecraft:elytra",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := Parse([]byte(tt.doc), tt.opts...)
			if err == nil {
				t.Fatalf("Parse: expected error containing %q, got nil", tt.wantErr)
			}
			if !errors.Is(err, ErrInvalidDocument) {
				t.Errorf("error %v does not wrap ErrInvalidDocument", err)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %q, want substring %q", err, tt.wantErr)
			}
		})
	}
}

func TestParse_NoItems(t *testing.T) {
	t.Parallel()

	doc, err := Parse([]byte("format: 1\nrelease: v1_17_R1\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !doc.Patches.IsEmpty() {
		t.Errorf("expected an empty patch set, got %d transformers", doc.Patches.Len())
	}
}

func TestSuggest(t *testing.T) {
	t.Parallel()

	candidates := []string{"minecraft:generic.attack_damage", "minecraft:generic.armor", "minecraft:generic.luck"}
	tests := []struct {
		input  string
		want   string
		wantOK bool
	}{
		{input: "minecraft:generic.attack_damge", want: "minecraft:generic.attack_damage", wantOK: true},
		{input: "attack_damage", want: "minecraft:generic.attack_damage", wantOK: true},
		{input: "MINECRAFT:GENERIC.ARMOUR", want: "minecraft:generic.armor", wantOK: true},
		{input: "zzz", wantOK: false},
		{input: "  ", wantOK: false},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()
			got, ok := suggest(tt.input, candidates, defaultSuggestThreshold)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("suggest(%q) = %q, %v; want %q, %v", tt.input, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}
