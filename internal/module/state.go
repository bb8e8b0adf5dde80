package module

import (
	"errors"
	"fmt"
)

// State is the lifecycle state of a module.
type State int

const (
	Unpublished State = iota
	Published
	Stopped
)

func (s State) String() string {
	switch s {
	case Unpublished:
		return "unpublished"
	case Published:
		return "published"
	case Stopped:
		return "stopped"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// ErrInvalidState matches every *InvalidStateError with errors.Is.
var ErrInvalidState = errors.New("invalid module state")

// InvalidStateError is returned when an operation is called in a state that
// does not allow it.
type InvalidStateError struct {
	Op    string
	State State
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("%s is not allowed while the module is %s", e.Op, e.State)
}

func (e *InvalidStateError) Is(target error) bool {
	return target == ErrInvalidState
}
