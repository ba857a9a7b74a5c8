package binding

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidArgument = errors.New("binding: invalid argument")
	ErrNoDispatcher    = errors.New("binding: no dispatcher for asynchronous calls")
)

// ArgumentError describes a call whose shape is wrong. Position is the
// 1-based index of the offending argument.
type ArgumentError struct {
	Position int
	Reason   string
}

func (ae *ArgumentError) Error() string {
	return fmt.Sprintf("binding: invalid argument %d: %s", ae.Position, ae.Reason)
}

func (ae *ArgumentError) Unwrap() error {
	return ErrInvalidArgument
}

func invalid(position int, reason string) error {
	return &ArgumentError{Position: position, Reason: reason}
}
