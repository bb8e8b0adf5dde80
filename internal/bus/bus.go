package bus

import "github.com/godbus/dbus/v5"

// Bus is a connection to a message bus that objects are published on.
type Bus interface {
	// PublishObject exports obj at path. Publishing at a path that already
	// carries an object replaces it.
	PublishObject(path dbus.ObjectPath, obj Object) error

	// UnpublishObject removes whatever object is exported at path.
	UnpublishObject(path dbus.ObjectPath) error

	// RegisterService claims the well-known name. It returns a
	// *NameAlreadyRegisteredError when the name has an owner.
	RegisterService(name string) error

	// UnregisterService releases a name claimed with RegisterService.
	UnregisterService(name string) error

	// Emit sends the signal iface.name from path.
	Emit(path dbus.ObjectPath, iface, name string, values ...interface{}) error

	Close() error
}

var (
	_ Bus = (*Conn)(nil)
	_ Bus = (*MemoryConn)(nil)
)
