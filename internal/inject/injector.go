// Package inject applies transformers to a live item registry and reads the
// current values back out so they can be restored later.
//
// Each supported host release exposes its item layout through the narrow
// [AttributeAccessor] and [FoodAccessor] interfaces. [AttributeInjector] and
// [FoodInjector] implement the release-independent part of the protocol on
// top of them: capture the previous value, write the new one, report
// "not applicable" when the item lacks the property. [Composite] dispatches a
// generic [transform.Transformer] to the matching typed injector.
package inject

import (
	"github.com/MrWong99/rebalance/pkg/item"
	"github.com/MrWong99/rebalance/pkg/transform"
)

// Injector applies transformers of variant T to live items.
//
// Implementations mutate host-global state without transactional rollback;
// undoing an Inject means injecting the returned previous value again.
type Injector[T transform.Transformer] interface {
	// Inject applies patch to the item addressed by id and returns the value
	// it replaced, encoded as the same variant. applied is false when the
	// item does not carry the property at all; that case is not an error and
	// nothing is mutated.
	//
	// Errors are always *InjectError.
	Inject(id item.ID, patch T) (prev T, applied bool, err error)

	// Eject reads the current value of the property without mutating it. The
	// result is empty when the item does not carry the property.
	Eject(id item.ID) ([]T, error)
}
