// Package mock provides an in-memory item registry implementing
// [inject.Release] for use in unit tests.
//
// The registry stores items in a release-neutral layout, keeps the derived
// attribute scalars in sync the way real releases do, records every write and
// can be told to fail reads or writes for specific items. It is safe for
// concurrent use.
//
// Example:
//
//	reg := mock.NewRegistry()
//	reg.Put(item.Vanilla("apple"), mock.Item{Food: &mock.Food{Nutrition: 4}})
//	inj := inject.ForRelease(reg)
//	prev, applied, err := inj.Inject(item.Vanilla("apple"), patch)
package mock

import (
	"maps"
	"slices"
	"sync"

	"github.com/MrWong99/rebalance/internal/inject"
	"github.com/MrWong99/rebalance/pkg/item"
	"github.com/MrWong99/rebalance/pkg/transform"
)

// Compile-time interface assertion.
var _ inject.Release = (*Registry)(nil)

// Food is the mutable food state of an item.
type Food struct {
	Nutrition   int
	Saturation  float32
	WolfEatable bool
	Effects     []transform.FoodEffect
}

// Item is one registry entry.
type Item struct {
	// Category decides whether the item carries attributes and which derived
	// scalars it keeps.
	Category item.Category

	// Attributes is the modifier collection. Ignored when Category carries no
	// attributes.
	Attributes transform.AttributePatch

	// Derived is maintained by the registry; values passed to Put are
	// overwritten.
	Derived inject.Derived

	// Food is nil for items that are not edible.
	Food *Food
}

// Registry is a mock implementation of [inject.Release].
type Registry struct {
	mu    sync.Mutex
	items map[item.ID]*Item

	// ReadErrors maps items to errors returned by every read.
	ReadErrors map[item.ID]error

	// WriteErrors maps items to errors returned by every write.
	WriteErrors map[item.ID]error

	// Writes records the item of every successful write in order.
	Writes []item.ID
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		items:       make(map[item.ID]*Item),
		ReadErrors:  make(map[item.ID]error),
		WriteErrors: make(map[item.ID]error),
	}
}

// Put stores it under id, computing its derived scalars.
func (r *Registry) Put(id item.ID, it Item) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := cloneItem(it)
	cp.Derived, _ = inject.Derive(cp.Category, cp.Attributes)
	r.items[id] = &cp
}

// Get returns a copy of the item stored under id.
func (r *Registry) Get(id item.ID) (Item, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	it, ok := r.items[id]
	if !ok {
		return Item{}, false
	}
	return cloneItem(*it), true
}

// Snapshot returns a deep copy of every item.
func (r *Registry) Snapshot() map[item.ID]Item {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[item.ID]Item, len(r.items))
	for id, it := range r.items {
		out[id] = cloneItem(*it)
	}
	return out
}

// SetWriteError makes every write to id fail with err. A nil err clears it.
func (r *Registry) SetWriteError(id item.ID, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err == nil {
		delete(r.WriteErrors, id)
		return
	}
	r.WriteErrors[id] = err
}

// WriteCount returns how many successful writes id received.
func (r *Registry) WriteCount(id item.ID) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, w := range r.Writes {
		if w == id {
			n++
		}
	}
	return n
}

// ReadAttributes implements [inject.AttributeAccessor].
func (r *Registry) ReadAttributes(id item.ID) (transform.AttributePatch, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	it, err := r.lookup(inject.OpRead, id, r.ReadErrors)
	if err != nil {
		return transform.AttributePatch{}, false, err
	}
	if !it.Category.CarriesAttributes() {
		return transform.AttributePatch{}, false, nil
	}
	return it.Attributes, true, nil
}

// WriteAttributes implements [inject.AttributeAccessor].
func (r *Registry) WriteAttributes(id item.ID, patch transform.AttributePatch) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	it, err := r.lookup(inject.OpWrite, id, r.WriteErrors)
	if err != nil {
		return err
	}
	if !it.Category.CarriesAttributes() {
		return inject.Unavailable(inject.OpWrite, id, "item carries no attribute collection")
	}
	it.Attributes = patch
	it.Derived, _ = inject.Derive(it.Category, patch)
	r.Writes = append(r.Writes, id)
	return nil
}

// ReadFood implements [inject.FoodAccessor].
func (r *Registry) ReadFood(id item.ID) (transform.FoodPatch, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	it, err := r.lookup(inject.OpRead, id, r.ReadErrors)
	if err != nil {
		return transform.FoodPatch{}, false, err
	}
	if it.Food == nil {
		return transform.FoodPatch{}, false, nil
	}
	f := it.Food
	return transform.NewFoodPatch(
		transform.WithNutrition(f.Nutrition),
		transform.WithSaturation(f.Saturation),
		transform.WithWolfEatable(f.WolfEatable),
		transform.WithEffects(f.Effects...),
	), true, nil
}

// WriteFood implements [inject.FoodAccessor].
func (r *Registry) WriteFood(id item.ID, patch transform.FoodPatch) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	it, err := r.lookup(inject.OpWrite, id, r.WriteErrors)
	if err != nil {
		return err
	}
	if it.Food == nil {
		return inject.Missing(inject.OpWrite, id, "food info")
	}
	if n, ok := patch.Nutrition(); ok {
		it.Food.Nutrition = n
	}
	if s, ok := patch.Saturation(); ok {
		it.Food.Saturation = s
	}
	if w, ok := patch.WolfEatable(); ok {
		it.Food.WolfEatable = w
	}
	if e, ok := patch.Effects(); ok {
		it.Food.Effects = e
	}
	r.Writes = append(r.Writes, id)
	return nil
}

// Items returns the registered IDs sorted.
func (r *Registry) Items() []item.ID {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.SortedFunc(maps.Keys(r.items), item.Compare)
}

func (r *Registry) lookup(op string, id item.ID, errs map[item.ID]error) (*Item, error) {
	if err := errs[id]; err != nil {
		return nil, err
	}
	it, ok := r.items[id]
	if !ok {
		return nil, inject.NotFound(op, id)
	}
	return it, nil
}

func cloneItem(it Item) Item {
	cp := it
	if it.Food != nil {
		f := *it.Food
		f.Effects = slices.Clone(it.Food.Effects)
		cp.Food = &f
	}
	return cp
}
