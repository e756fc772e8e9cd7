// Package item defines the identifiers and categories used to address
// item-type definitions in a host's item registry.
//
// An [ID] is a stable namespaced key such as "minecraft:diamond_sword". IDs
// are comparable and can be used directly as map keys.
package item

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// DefaultNamespace is the namespace of all vanilla item definitions.
const DefaultNamespace = "minecraft"

// ErrInvalidID is returned (wrapped) by [Parse] when the input is not a valid
// namespaced key.
var ErrInvalidID = errors.New("item: invalid identifier")

// ID is a namespaced item identifier.
type ID struct {
	Namespace string
	Name      string
}

// New returns the ID for namespace and name without validation.
func New(namespace, name string) ID {
	return ID{Namespace: namespace, Name: name}
}

// Vanilla returns the ID for name in [DefaultNamespace].
func Vanilla(name string) ID {
	return ID{Namespace: DefaultNamespace, Name: name}
}

// Parse parses a "namespace:name" key. The separator is mandatory.
func Parse(s string) (ID, error) {
	ns, name, ok := strings.Cut(s, ":")
	if !ok {
		return ID{}, fmt.Errorf("%w: %q: missing namespace and key separator", ErrInvalidID, s)
	}
	id := ID{Namespace: ns, Name: name}
	if err := id.Validate(); err != nil {
		return ID{}, err
	}
	return id, nil
}

// MustParse is like [Parse] but panics on error. Intended for tables of
// known-good identifiers.
func MustParse(s string) ID {
	id, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return id
}

// Validate reports whether both halves of the ID are non-empty and contain
// only characters permitted in registry keys.
func (id ID) Validate() error {
	if id.Namespace == "" || id.Name == "" {
		return fmt.Errorf("%w: %q: namespace and name must be non-empty", ErrInvalidID, id.String())
	}
	if i := strings.IndexFunc(id.Namespace, func(r rune) bool { return !validKeyRune(r, false) }); i >= 0 {
		r, _ := utf8.DecodeRuneInString(id.Namespace[i:])
		return fmt.Errorf("%w: %q: illegal character %q in namespace", ErrInvalidID, id.String(), r)
	}
	if i := strings.IndexFunc(id.Name, func(r rune) bool { return !validKeyRune(r, true) }); i >= 0 {
		r, _ := utf8.DecodeRuneInString(id.Name[i:])
		return fmt.Errorf("%w: %q: illegal character %q in name", ErrInvalidID, id.String(), r)
	}
	return nil
}

// IsZero reports whether id is the zero ID.
func (id ID) IsZero() bool { return id == ID{} }

// String returns the "namespace:name" form.
func (id ID) String() string {
	return id.Namespace + ":" + id.Name
}

// Compare orders IDs by namespace, then name. It is suitable for
// [slices.SortFunc].
func Compare(a, b ID) int {
	if c := strings.Compare(a.Namespace, b.Namespace); c != 0 {
		return c
	}
	return strings.Compare(a.Name, b.Name)
}

// MarshalText implements [encoding.TextMarshaler].
func (id ID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText implements [encoding.TextUnmarshaler].
func (id *ID) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func validKeyRune(r rune, allowSlash bool) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
		return true
	case r == '_', r == '-', r == '.':
		return true
	case r == '/':
		return allowSlash
	}
	return false
}
