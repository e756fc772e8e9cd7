package session

import (
	"errors"
	"fmt"
)

// State is the modification state of a [Session].
type State int32

const (
	// StateUnmodified is the initial state and the state after a complete
	// restore.
	StateUnmodified State = iota
	// StateModified is entered as soon as Modify starts, even if it later
	// fails part way.
	StateModified
)

// String implements [fmt.Stringer].
func (s State) String() string {
	switch s {
	case StateUnmodified:
		return "unmodified"
	case StateModified:
		return "modified"
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

// ErrIllegalState is wrapped by [*IllegalStateError].
var ErrIllegalState = errors.New("illegal session state")

// IllegalStateError is returned when Modify or Restore is called out of
// sequence. The session is left exactly as it was.
type IllegalStateError struct {
	// Op is the rejected operation, "modify" or "restore".
	Op string
	// State is the state the session was in.
	State State
}

// Error implements error.
func (e *IllegalStateError) Error() string {
	return fmt.Sprintf("session: cannot %s: session is %s", e.Op, e.State)
}

// Unwrap returns [ErrIllegalState].
func (e *IllegalStateError) Unwrap() error { return ErrIllegalState }
