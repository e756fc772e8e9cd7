// Package patchset reads patch documents: the per-release files that list,
// for each item, the transformers to apply to it.
//
// A document is YAML (JSON works too):
//
//	format: 1
//	release: v1_16_R1
//	items:
//	  minecraft:diamond_sword:
//	    - attribute-modifiers:
//	        minecraft:generic.attack_damage:
//	          - {uuid: cb3f55d3-645c-4f38-a497-9c13a33db5cf, amount: 6, operation: add_number, slot: hand}
//	  minecraft:golden_apple:
//	    - food-level: 4
//	      saturation: 1.2
//	      effects:
//	        - effect: {type: "minecraft:regeneration", duration: 100, amplifier: 1}
//	          chance: 1.0
//
// One transformer map may yield an attribute patch, a food patch or both.
// Documents are fetched from a [Source] and parsed by [Parse] or [Load].
package patchset

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/MrWong99/rebalance/pkg/item"
	"github.com/MrWong99/rebalance/pkg/transform"
)

// FormatVersion is the only document format this package reads.
const FormatVersion = 1

// Transformer map keys.
const (
	keyAttributeModifiers = "attribute-modifiers"
	keyFoodLevel          = "food-level"
	keySaturation         = "saturation"
	keyWolfEatable        = "wolf-eatable"
	keyEffects            = "effects"
)

// ErrInvalidDocument is wrapped by every parse error.
var ErrInvalidDocument = errors.New("patchset: invalid document")

// Document is a parsed patch document.
type Document struct {
	// Release is the version tag the document was written for. Empty means
	// any release.
	Release string

	// Patches holds every transformer in document order.
	Patches transform.PatchSet
}

type rawDocument struct {
	Format  *int64    `yaml:"format"`
	Release string    `yaml:"release"`
	Items   yaml.Node `yaml:"items"`
}

// Parse decodes and validates a patch document.
func Parse(data []byte, opts ...Option) (*Document, error) {
	o := buildOptions(opts)

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var raw rawDocument
	if err := dec.Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty document", ErrInvalidDocument)
		}
		return nil, fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}
	if raw.Format == nil {
		return nil, fmt.Errorf("%w: missing format header", ErrInvalidDocument)
	}
	if *raw.Format != FormatVersion {
		return nil, fmt.Errorf("%w: unsupported format version: %d", ErrInvalidDocument, *raw.Format)
	}

	p := parser{opts: o}
	entries, err := p.items(&raw.Items)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}
	ps, err := transform.NewPatchSet(entries...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}
	return &Document{Release: raw.Release, Patches: ps}, nil
}

type parser struct {
	opts options
}

func (p *parser) items(n *yaml.Node) ([]transform.Entry, error) {
	if n.Kind == 0 || isNull(n) {
		return nil, nil
	}
	if n.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("line %d: items must be a map", n.Line)
	}

	var entries []transform.Entry
	for i := 0; i+1 < len(n.Content); i += 2 {
		k, v := n.Content[i], n.Content[i+1]
		id, err := p.material(k)
		if err != nil {
			return nil, err
		}
		if v.Kind != yaml.SequenceNode {
			return nil, fmt.Errorf("line %d: %s: transformers must be a list", v.Line, id)
		}
		if len(v.Content) == 0 {
			return nil, fmt.Errorf("line %d: %s: transformer list is empty", v.Line, id)
		}
		for _, tn := range v.Content {
			ts, err := p.transformer(id, tn)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", id, err)
			}
			for _, t := range ts {
				entries = append(entries, transform.Entry{Item: id, Patch: t})
			}
		}
	}
	return entries, nil
}

func (p *parser) material(k *yaml.Node) (item.ID, error) {
	id, err := item.Parse(k.Value)
	if err != nil {
		return item.ID{}, fmt.Errorf("line %d: %w", k.Line, err)
	}
	if p.opts.known != nil {
		if _, ok := p.opts.known[id]; !ok {
			return item.ID{}, fmt.Errorf("line %d: invalid material: %s%s", k.Line, id, hint(id.String(), p.opts.knownNames, p.opts.threshold))
		}
	}
	return id, nil
}

// transformer converts one transformer map. A map with neither attribute
// nor food keys yields nothing.
func (p *parser) transformer(id item.ID, n *yaml.Node) ([]transform.Transformer, error) {
	if n.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("line %d: transformer must be a map", n.Line)
	}
	fields, err := mapFields(n, keyAttributeModifiers, keyFoodLevel, keySaturation, keyWolfEatable, keyEffects)
	if err != nil {
		return nil, err
	}

	var out []transform.Transformer
	if am, ok := fields[keyAttributeModifiers]; ok {
		ap, err := p.attributes(id, am)
		if err != nil {
			return nil, err
		}
		out = append(out, ap)
	}

	var food []transform.FoodOption
	if v, ok := fields[keyFoodLevel]; ok {
		var n int
		if err := scalar(v, "!!int", keyFoodLevel, &n); err != nil {
			return nil, err
		}
		food = append(food, transform.WithNutrition(n))
	}
	if v, ok := fields[keySaturation]; ok {
		f, err := number(v, keySaturation)
		if err != nil {
			return nil, err
		}
		if math.IsInf(float64(float32(f)), 0) {
			return nil, fmt.Errorf("line %d: %s %s overflows float32", v.Line, keySaturation, v.Value)
		}
		food = append(food, transform.WithSaturation(float32(f)))
	}
	if v, ok := fields[keyWolfEatable]; ok {
		var b bool
		if err := scalar(v, "!!bool", keyWolfEatable, &b); err != nil {
			return nil, err
		}
		food = append(food, transform.WithWolfEatable(b))
	}
	if v, ok := fields[keyEffects]; ok {
		effects, err := p.effects(v)
		if err != nil {
			return nil, err
		}
		food = append(food, transform.WithEffects(effects...))
	}
	if len(food) > 0 {
		out = append(out, transform.NewFoodPatch(food...))
	}
	return out, nil
}

func (p *parser) attributes(id item.ID, n *yaml.Node) (transform.AttributePatch, error) {
	if n.Kind != yaml.MappingNode {
		return transform.AttributePatch{}, fmt.Errorf("line %d: attribute-modifiers must be a map", n.Line)
	}

	var entries []transform.AttributeEntry
	for i := 0; i+1 < len(n.Content); i += 2 {
		k, v := n.Content[i], n.Content[i+1]
		if !strings.Contains(k.Value, ":") {
			return transform.AttributePatch{}, fmt.Errorf("line %d: missing namespace and key separator in: %s", k.Line, k.Value)
		}
		attr, ok := transform.LookupAttribute(k.Value)
		if !ok {
			return transform.AttributePatch{}, fmt.Errorf("line %d: unknown attribute: %s%s", k.Line, k.Value, hint(k.Value, p.opts.attributeNames, p.opts.threshold))
		}
		if v.Kind != yaml.SequenceNode {
			return transform.AttributePatch{}, fmt.Errorf("line %d: attribute modifiers must be a list", v.Line)
		}
		for _, mn := range v.Content {
			m, err := modifier(mn, fmt.Sprintf("%s/%s/%d", id, attr, len(entries)))
			if err != nil {
				return transform.AttributePatch{}, fmt.Errorf("%s: %w", attr, err)
			}
			entries = append(entries, transform.AttributeEntry{Attribute: attr, Modifier: m})
		}
	}
	return transform.NewAttributePatch(entries...), nil
}

// modifier converts one modifier map. A modifier without a uuid gets one
// derived from seed so that reloading a document yields the same identity.
func modifier(n *yaml.Node, seed string) (transform.Modifier, error) {
	if n.Kind != yaml.MappingNode {
		return transform.Modifier{}, fmt.Errorf("line %d: attribute modifier must be a map", n.Line)
	}
	fields, err := mapFields(n, "uuid", "name", "amount", "operation", "slot")
	if err != nil {
		return transform.Modifier{}, err
	}

	var m transform.Modifier
	v, ok := fields["amount"]
	if !ok {
		return m, fmt.Errorf("line %d: missing amount element", n.Line)
	}
	if m.Amount, err = number(v, "amount"); err != nil {
		return m, err
	}

	if v, ok := fields["uuid"]; ok {
		if m.UUID, err = uuid.Parse(v.Value); err != nil {
			return m, fmt.Errorf("line %d: uuid: %w", v.Line, err)
		}
	} else {
		m.UUID = uuid.NewSHA1(uuid.NameSpaceOID, []byte(seed))
	}
	if v, ok := fields["name"]; ok {
		if err := scalar(v, "!!str", "name", &m.Name); err != nil {
			return m, err
		}
	}
	if v, ok := fields["operation"]; ok {
		if m.Operation, err = operation(v); err != nil {
			return m, err
		}
	}
	if v, ok := fields["slot"]; ok {
		if m.Slot, err = transform.ParseSlot(v.Value); err != nil {
			return m, fmt.Errorf("line %d: %w", v.Line, err)
		}
	}
	return m, nil
}

// operation accepts a name or an ordinal.
func operation(n *yaml.Node) (transform.Operation, error) {
	if n.ShortTag() == "!!int" {
		var i int
		if err := n.Decode(&i); err != nil {
			return 0, fmt.Errorf("line %d: operation: %w", n.Line, err)
		}
		op := transform.Operation(i)
		if !op.Valid() {
			return 0, fmt.Errorf("line %d: operation ordinal %d out of range", n.Line, i)
		}
		return op, nil
	}
	op, err := transform.ParseOperation(n.Value)
	if err != nil {
		return 0, fmt.Errorf("line %d: %w", n.Line, err)
	}
	return op, nil
}

func (p *parser) effects(n *yaml.Node) ([]transform.FoodEffect, error) {
	if n.Kind != yaml.SequenceNode {
		return nil, fmt.Errorf("line %d: effects must be a list", n.Line)
	}
	out := make([]transform.FoodEffect, 0, len(n.Content))
	for _, en := range n.Content {
		if en.Kind != yaml.MappingNode {
			return nil, fmt.Errorf("line %d: invalid effect: %s", en.Line, en.Value)
		}
		fields, err := mapFields(en, "effect", "chance")
		if err != nil {
			return nil, err
		}
		eff, ok := fields["effect"]
		if !ok || eff.Kind != yaml.MappingNode {
			return nil, fmt.Errorf("line %d: missing effect element", en.Line)
		}
		cn, ok := fields["chance"]
		if !ok {
			return nil, fmt.Errorf("line %d: missing chance element", en.Line)
		}
		chance, err := number(cn, "chance")
		if err != nil {
			return nil, err
		}
		pe, err := potion(eff)
		if err != nil {
			return nil, err
		}
		out = append(out, transform.FoodEffect{Effect: pe, Chance: float32(chance)})
	}
	return out, nil
}

func potion(n *yaml.Node) (transform.PotionEffect, error) {
	fields, err := mapFields(n, "type", "duration", "amplifier", "ambient", "has-particles", "has-icon")
	if err != nil {
		return transform.PotionEffect{}, err
	}
	pe := transform.PotionEffect{Particles: true, Icon: true}
	t, ok := fields["type"]
	if !ok {
		return pe, fmt.Errorf("line %d: missing effect type", n.Line)
	}
	if err := scalar(t, "!!str", "type", &pe.Type); err != nil {
		return pe, err
	}
	if v, ok := fields["duration"]; ok {
		if err := scalar(v, "!!int", "duration", &pe.Duration); err != nil {
			return pe, err
		}
	}
	if v, ok := fields["amplifier"]; ok {
		if err := scalar(v, "!!int", "amplifier", &pe.Amplifier); err != nil {
			return pe, err
		}
	}
	for key, dst := range map[string]*bool{"ambient": &pe.Ambient, "has-particles": &pe.Particles, "has-icon": &pe.Icon} {
		if v, ok := fields[key]; ok {
			if err := scalar(v, "!!bool", key, dst); err != nil {
				return pe, err
			}
		}
	}
	return pe, nil
}

// mapFields indexes the values of mapping node n by key and rejects keys
// outside allowed.
func mapFields(n *yaml.Node, allowed ...string) (map[string]*yaml.Node, error) {
	out := make(map[string]*yaml.Node, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		k := n.Content[i]
		known := false
		for _, a := range allowed {
			if k.Value == a {
				known = true
				break
			}
		}
		if !known {
			return nil, fmt.Errorf("line %d: unknown key %q", k.Line, k.Value)
		}
		if _, dup := out[k.Value]; dup {
			return nil, fmt.Errorf("line %d: duplicate key %q", k.Line, k.Value)
		}
		out[k.Value] = n.Content[i+1]
	}
	return out, nil
}

// scalar decodes n into dst after checking it carries the resolved tag.
func scalar(n *yaml.Node, tag, name string, dst any) error {
	if n.Kind != yaml.ScalarNode || n.ShortTag() != tag {
		return fmt.Errorf("line %d: %s must be %s, got %q", n.Line, name, strings.TrimPrefix(tag, "!!"), n.Value)
	}
	if err := n.Decode(dst); err != nil {
		return fmt.Errorf("line %d: %s: %w", n.Line, name, err)
	}
	return nil
}

// number decodes an int or float scalar.
func number(n *yaml.Node, name string) (float64, error) {
	if n.Kind != yaml.ScalarNode || (n.ShortTag() != "!!int" && n.ShortTag() != "!!float") {
		return 0, fmt.Errorf("line %d: %s must be a number, got %q", n.Line, name, n.Value)
	}
	var f float64
	if err := n.Decode(&f); err != nil {
		return 0, fmt.Errorf("line %d: %s: %w", n.Line, name, err)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("line %d: %s must be finite", n.Line, name)
	}
	return f, nil
}

func isNull(n *yaml.Node) bool {
	return n.Kind == yaml.ScalarNode && n.ShortTag() == "!!null"
}
