package candidate

import (
	"errors"
	"fmt"
)

// ErrUnknown is returned when a generator id is not registered.
var ErrUnknown = errors.New("unknown generator")

// Error reports a generator that failed, panicked, or returned malformed
// data. The dispatcher logs it and drops the cycle.
type Error struct {
	ID  string
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("candidate %s: %s: %v", e.ID, e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
