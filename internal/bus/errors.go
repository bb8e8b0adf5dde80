package bus

import (
	"errors"
	"fmt"

	"github.com/godbus/dbus/v5"
)

var (
	// ErrNotPublished is returned when unpublishing a path that has no object.
	ErrNotPublished = errors.New("no object published at path")

	// ErrClosed is returned by every operation on a closed bus connection.
	ErrClosed = errors.New("bus connection is closed")
)

// NameAlreadyRegisteredError is returned when a well-known service name is
// already owned by another connection, or by this one.
type NameAlreadyRegisteredError struct {
	Name string
}

func (e *NameAlreadyRegisteredError) Error() string {
	return fmt.Sprintf("service name %q is already registered on the bus", e.Name)
}

// NewError builds a bus error named ErrorNamespace.<kind> carrying the
// message of err.
func NewError(kind string, err error) *dbus.Error {
	return dbus.NewError(ErrorNamespace+"."+kind, []interface{}{err.Error()})
}
