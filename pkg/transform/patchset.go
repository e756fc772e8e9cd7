package transform

import (
	"errors"
	"fmt"
	"slices"

	"github.com/MrWong99/rebalance/pkg/item"
)

// ErrInvalidPatchSet is returned (wrapped) by [NewPatchSet] when the input is
// not a mapping from valid item IDs to non-empty lists of well-typed
// transformers.
var ErrInvalidPatchSet = errors.New("transform: invalid patch set")

// Entry is one (item, transformer) pair of a [PatchSet].
type Entry struct {
	Item  item.ID
	Patch Transformer
}

// PatchSet maps item IDs to ordered lists of transformers. Within an item the
// list keeps insertion order; items keep the order in which they first
// appeared. A PatchSet is immutable and safe for concurrent reads.
type PatchSet struct {
	order   []item.ID
	patches map[item.ID][]Transformer
}

// NewPatchSet builds a PatchSet from entries. Entries for the same item are
// grouped together in the order given. It returns an error wrapping
// [ErrInvalidPatchSet] when an item ID is invalid or a transformer is nil,
// foreign to this package or fails its own validation.
func NewPatchSet(entries ...Entry) (PatchSet, error) {
	ps := PatchSet{patches: make(map[item.ID][]Transformer)}
	for i, e := range entries {
		if err := e.Item.Validate(); err != nil {
			return PatchSet{}, fmt.Errorf("%w: entry %d: %w", ErrInvalidPatchSet, i, err)
		}
		if err := Validate(e.Patch); err != nil {
			return PatchSet{}, fmt.Errorf("%w: entry %d (%s): %w", ErrInvalidPatchSet, i, e.Item, err)
		}
		if _, ok := ps.patches[e.Item]; !ok {
			ps.order = append(ps.order, e.Item)
		}
		ps.patches[e.Item] = append(ps.patches[e.Item], e.Patch)
	}
	return ps, nil
}

// FromMap builds a PatchSet from a map of item ID to transformer list. Items
// are ordered by [item.Compare] since map order is unspecified. Unlike
// [NewPatchSet], an item mapped to an empty list is rejected.
func FromMap(m map[item.ID][]Transformer) (PatchSet, error) {
	ids := make([]item.ID, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, item.Compare)

	var entries []Entry
	for _, id := range ids {
		if len(m[id]) == 0 {
			return PatchSet{}, fmt.Errorf("%w: %s: empty transformer list", ErrInvalidPatchSet, id)
		}
		for _, t := range m[id] {
			entries = append(entries, Entry{Item: id, Patch: t})
		}
	}
	return NewPatchSet(entries...)
}

// Len returns the total number of transformers.
func (ps PatchSet) Len() int {
	n := 0
	for _, ts := range ps.patches {
		n += len(ts)
	}
	return n
}

// IsEmpty reports whether the set holds no transformers.
func (ps PatchSet) IsEmpty() bool { return len(ps.order) == 0 }

// Items returns the addressed items in order.
func (ps PatchSet) Items() []item.ID {
	cp := make([]item.ID, len(ps.order))
	copy(cp, ps.order)
	return cp
}

// Get returns a copy of the transformers for id.
func (ps PatchSet) Get(id item.ID) []Transformer {
	ts := ps.patches[id]
	if len(ts) == 0 {
		return nil
	}
	cp := make([]Transformer, len(ts))
	copy(cp, ts)
	return cp
}

// Entries flattens the set into (item, transformer) pairs in iteration order.
func (ps PatchSet) Entries() []Entry {
	out := make([]Entry, 0, ps.Len())
	for _, id := range ps.order {
		for _, t := range ps.patches[id] {
			out = append(out, Entry{Item: id, Patch: t})
		}
	}
	return out
}

// CountByKind returns how many transformers of each variant the set holds.
func (ps PatchSet) CountByKind() map[Kind]int {
	out := make(map[Kind]int, 2)
	for _, ts := range ps.patches {
		for _, t := range ts {
			out[t.Kind()]++
		}
	}
	return out
}
