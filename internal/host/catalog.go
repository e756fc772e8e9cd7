package host

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/MrWong99/rebalance/pkg/item"
	"github.com/MrWong99/rebalance/pkg/transform"
)

//go:embed vanilla.yaml
var vanillaCatalog []byte

// DefaultCatalog returns the vanilla catalog compiled into the binary.
func DefaultCatalog() (*Catalog, error) {
	c, err := LoadCatalogFromReader(bytes.NewReader(vanillaCatalog))
	if err != nil {
		return nil, fmt.Errorf("host: embedded catalog: %w", err)
	}
	return c, nil
}

// LoadCatalogFile reads and validates the catalog at path.
func LoadCatalogFile(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("host: open catalog %q: %w", path, err)
	}
	defer f.Close()

	c, err := LoadCatalogFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("host: load catalog %q: %w", path, err)
	}
	return c, nil
}

// LoadCatalogFromReader decodes a YAML catalog from r and validates it.
// Unknown keys are rejected.
func LoadCatalogFromReader(r io.Reader) (*Catalog, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var c Catalog
	if err := dec.Decode(&c); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("host: catalog is empty")
		}
		return nil, fmt.Errorf("host: decode catalog: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Lookup returns the definition of id.
func (c *Catalog) Lookup(id item.ID) (ItemDef, bool) {
	for _, d := range c.Items {
		if d.ID == id {
			return d, true
		}
	}
	return ItemDef{}, false
}

// IDs returns the item IDs in catalog order.
func (c *Catalog) IDs() []item.ID {
	ids := make([]item.ID, len(c.Items))
	for i, d := range c.Items {
		ids[i] = d.ID
	}
	return ids
}

// Validate checks every item definition and reports all problems at once.
//
// Rules:
//   - IDs are valid and unique.
//   - Attribute keys, operations and slots are known.
//   - Modifier UUIDs, when present, parse.
//   - Items whose category carries no attributes define none.
//   - Food values and effects are in range.
func (c *Catalog) Validate() error {
	var errs []error
	seen := make(map[item.ID]struct{}, len(c.Items))
	tags := item.DefaultTags()

	for i, d := range c.Items {
		if err := d.ID.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("items[%d]: %w", i, err))
			continue
		}
		if _, dup := seen[d.ID]; dup {
			errs = append(errs, fmt.Errorf("items[%d]: duplicate id %s", i, d.ID))
		}
		seen[d.ID] = struct{}{}

		if len(d.Attributes) > 0 && !d.CategoryIn(tags).CarriesAttributes() {
			errs = append(errs, fmt.Errorf("items[%d] %s: category %s carries no attributes", i, d.ID, d.CategoryIn(tags)))
		}
		for j, m := range d.Attributes {
			if _, err := m.entry(); err != nil {
				errs = append(errs, fmt.Errorf("items[%d] %s: attributes[%d]: %w", i, d.ID, j, err))
			}
		}
		if fp, ok := d.FoodPatch(); ok {
			if err := fp.Validate(); err != nil {
				errs = append(errs, fmt.Errorf("items[%d] %s: food: %w", i, d.ID, err))
			}
		}
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("host: invalid catalog: %w", errors.Join(errs...))
}

// entry converts the definition. Without an explicit UUID the modifier gets a
// name-based one so that every boot yields the same identity.
func (m ModifierDef) entry() (transform.AttributeEntry, error) {
	attr, ok := transform.LookupAttribute(m.Attribute)
	if !ok {
		return transform.AttributeEntry{}, fmt.Errorf("unknown attribute %q", m.Attribute)
	}
	op := transform.OpAddNumber
	if m.Operation != "" {
		var err error
		if op, err = transform.ParseOperation(m.Operation); err != nil {
			return transform.AttributeEntry{}, err
		}
	}
	slot, err := transform.ParseSlot(m.Slot)
	if err != nil {
		return transform.AttributeEntry{}, err
	}
	var id uuid.UUID
	if m.UUID != "" {
		if id, err = uuid.Parse(m.UUID); err != nil {
			return transform.AttributeEntry{}, fmt.Errorf("modifier uuid %q: %w", m.UUID, err)
		}
	} else {
		id = uuid.NewSHA1(uuid.NameSpaceOID, []byte(string(attr)+"/"+m.Name+"/"+string(slot)))
	}
	return transform.AttributeEntry{
		Attribute: attr,
		Modifier: transform.Modifier{
			UUID:      id,
			Name:      m.Name,
			Amount:    m.Amount,
			Operation: op,
			Slot:      slot,
		},
	}, nil
}
