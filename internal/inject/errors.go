package inject

import (
	"errors"
	"fmt"

	"github.com/MrWong99/rebalance/pkg/item"
)

// Operations reported in [InjectError.Op].
const (
	OpInject = "inject"
	OpEject  = "eject"
	OpRead   = "read"
	OpWrite  = "write"
)

// Causes wrapped by [InjectError].
var (
	// ErrItemNotFound means the identifier does not resolve in the host registry.
	ErrItemNotFound = errors.New("not an item")

	// ErrAccessorUnavailable means the release has no way to reach the
	// requested structure for this item.
	ErrAccessorUnavailable = errors.New("structural accessor unavailable")

	// ErrComponentMissing means a structure required by the item's layout is
	// unexpectedly absent or holds a malformed value.
	ErrComponentMissing = errors.New("structural component missing")

	// ErrUnsupportedTransformer means a transformer outside the closed set of
	// variants reached the composite injector.
	ErrUnsupportedTransformer = errors.New("unsupported transformer")
)

// InjectError reports a failure to read or write the live registry. It is
// always fatal to the surrounding session operation.
type InjectError struct {
	// Op is the failing operation, one of the Op constants.
	Op string

	// Item is the addressed item. It may be zero for errors that are not
	// tied to an item.
	Item item.ID

	// Err is the underlying cause, typically one of the sentinel errors of
	// this package, possibly wrapped with more detail.
	Err error
}

// Error implements error.
func (e *InjectError) Error() string {
	if e.Item.IsZero() {
		return fmt.Sprintf("inject: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("inject: %s %s: %v", e.Op, e.Item, e.Err)
}

// Unwrap returns the underlying cause.
func (e *InjectError) Unwrap() error { return e.Err }

// NotFound returns an [*InjectError] wrapping [ErrItemNotFound].
func NotFound(op string, id item.ID) error {
	return &InjectError{Op: op, Item: id, Err: ErrItemNotFound}
}

// Unavailable returns an [*InjectError] wrapping [ErrAccessorUnavailable].
func Unavailable(op string, id item.ID, detail string) error {
	return &InjectError{Op: op, Item: id, Err: fmt.Errorf("%s: %w", detail, ErrAccessorUnavailable)}
}

// Missing returns an [*InjectError] wrapping [ErrComponentMissing].
func Missing(op string, id item.ID, detail string) error {
	return &InjectError{Op: op, Item: id, Err: fmt.Errorf("%s: %w", detail, ErrComponentMissing)}
}

// wrap makes sure any accessor error surfaces as an *InjectError.
func wrap(op string, id item.ID, err error) error {
	if err == nil {
		return nil
	}
	var ie *InjectError
	if errors.As(err, &ie) {
		return err
	}
	return &InjectError{Op: op, Item: id, Err: err}
}
