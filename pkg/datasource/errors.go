package datasource

import (
	"errors"
	"fmt"
)

// ErrExhausted reports a read that ran past the end of the input. It is a
// data-shaped failure: optional scopes may recover from it.
var ErrExhausted = errors.New("data exhausted")

// AddressError reports a violation of the addressing rules: a cursor that
// cannot reach a pinned target, or a bit-mode region exiting off a byte
// boundary. It is never recoverable.
type AddressError struct {
	Op      string
	Current int64
	Want    int64
	Reason  string
}

func (e *AddressError) Error() string {
	return fmt.Sprintf("address error during %s: cursor at 0x%x, target 0x%x: %s",
		e.Op, e.Current, e.Want, e.Reason)
}
