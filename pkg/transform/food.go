package transform

import (
	"fmt"
	"math"
	"strings"
)

// PotionEffect describes a status effect granted when food is eaten.
type PotionEffect struct {
	// Type is the namespaced effect key, e.g. "minecraft:hunger".
	Type      string
	Duration  int // ticks
	Amplifier int
	Ambient   bool
	Particles bool
	Icon      bool
}

// FoodEffect is a potion effect together with the probability of it being
// applied.
type FoodEffect struct {
	Effect PotionEffect
	Chance float32
}

// String implements [fmt.Stringer].
func (e FoodEffect) String() string {
	return fmt.Sprintf("%s(%d ticks, amp %d)@%g", e.Effect.Type, e.Effect.Duration, e.Effect.Amplifier, e.Chance)
}

// FoodPatch changes an item's food properties. Every field is optional: an
// unset field leaves the corresponding host property untouched, which is
// different from setting it to zero or false.
//
// FoodPatch is immutable. Build one with [NewFoodPatch].
type FoodPatch struct {
	nutrition   *int
	saturation  *float32
	wolfEatable *bool
	effects     []FoodEffect
	hasEffects  bool
}

// FoodOption sets one field of a [FoodPatch].
type FoodOption func(*FoodPatch)

// WithNutrition sets the number of hunger points restored.
func WithNutrition(n int) FoodOption {
	return func(p *FoodPatch) { p.nutrition = &n }
}

// WithSaturation sets the saturation multiplier.
func WithSaturation(s float32) FoodOption {
	return func(p *FoodPatch) { p.saturation = &s }
}

// WithWolfEatable sets whether wolves can eat the item.
func WithWolfEatable(b bool) FoodOption {
	return func(p *FoodPatch) { p.wolfEatable = &b }
}

// WithEffects replaces the effect list. Calling it with no arguments sets an
// explicitly empty list, clearing all effects on injection.
func WithEffects(effects ...FoodEffect) FoodOption {
	return func(p *FoodPatch) {
		p.effects = make([]FoodEffect, len(effects))
		copy(p.effects, effects)
		p.hasEffects = true
	}
}

// NewFoodPatch builds a patch from opts. With no options every field is unset.
func NewFoodPatch(opts ...FoodOption) FoodPatch {
	var p FoodPatch
	for _, o := range opts {
		o(&p)
	}
	return p
}

// Kind implements [Transformer].
func (FoodPatch) Kind() Kind { return KindFood }

func (FoodPatch) sealed() {}

// Nutrition returns the nutrition value and whether it is set.
func (p FoodPatch) Nutrition() (int, bool) {
	if p.nutrition == nil {
		return 0, false
	}
	return *p.nutrition, true
}

// Saturation returns the saturation multiplier and whether it is set.
func (p FoodPatch) Saturation() (float32, bool) {
	if p.saturation == nil {
		return 0, false
	}
	return *p.saturation, true
}

// WolfEatable returns the wolf-eatable flag and whether it is set.
func (p FoodPatch) WolfEatable() (bool, bool) {
	if p.wolfEatable == nil {
		return false, false
	}
	return *p.wolfEatable, true
}

// Effects returns a copy of the effect list and whether it is set. An
// explicitly empty list is returned as nil with ok true.
func (p FoodPatch) Effects() ([]FoodEffect, bool) {
	if !p.hasEffects {
		return nil, false
	}
	if len(p.effects) == 0 {
		return nil, true
	}
	cp := make([]FoodEffect, len(p.effects))
	copy(cp, p.effects)
	return cp, true
}

// IsEmpty reports whether no field is set.
func (p FoodPatch) IsEmpty() bool {
	return p.nutrition == nil && p.saturation == nil && p.wolfEatable == nil && !p.hasEffects
}

// Equal reports whether p and other set the same fields to the same values.
func (p FoodPatch) Equal(other FoodPatch) bool {
	if !eqPtr(p.nutrition, other.nutrition) || !eqPtr(p.saturation, other.saturation) || !eqPtr(p.wolfEatable, other.wolfEatable) {
		return false
	}
	if p.hasEffects != other.hasEffects || len(p.effects) != len(other.effects) {
		return false
	}
	for i := range p.effects {
		if p.effects[i] != other.effects[i] {
			return false
		}
	}
	return true
}

// Validate checks that saturation is finite, effect chances lie within
// [0, 1] and every effect names a type.
func (p FoodPatch) Validate() error {
	if p.nutrition != nil && *p.nutrition < 0 {
		return fmt.Errorf("transform: nutrition must be non-negative, got %d", *p.nutrition)
	}
	if p.saturation != nil {
		if s := float64(*p.saturation); math.IsNaN(s) || math.IsInf(s, 0) {
			return fmt.Errorf("transform: saturation must be finite, got %g", s)
		}
	}
	for i, e := range p.effects {
		if e.Effect.Type == "" {
			return fmt.Errorf("transform: food effect %d: missing effect type", i)
		}
		if e.Chance < 0 || e.Chance > 1 {
			return fmt.Errorf("transform: food effect %d: chance %g out of range [0, 1]", i, e.Chance)
		}
	}
	return nil
}

// String implements [fmt.Stringer]. Unset fields are omitted.
func (p FoodPatch) String() string {
	var parts []string
	if n, ok := p.Nutrition(); ok {
		parts = append(parts, fmt.Sprintf("nutrition=%d", n))
	}
	if s, ok := p.Saturation(); ok {
		parts = append(parts, fmt.Sprintf("saturation=%g", s))
	}
	if w, ok := p.WolfEatable(); ok {
		parts = append(parts, fmt.Sprintf("wolfEatable=%t", w))
	}
	if p.hasEffects {
		es := make([]string, len(p.effects))
		for i, e := range p.effects {
			es[i] = e.String()
		}
		parts = append(parts, "effects=["+strings.Join(es, ", ")+"]")
	}
	return "FoodPatch{" + strings.Join(parts, " ") + "}"
}

func eqPtr[T comparable](a, b *T) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
