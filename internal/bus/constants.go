package bus

import (
	"strings"

	"github.com/godbus/dbus/v5"
)

const (
	// Namespace is the root of every name owned by the installer.
	Namespace = "org.fedoraproject.Anaconda"

	// ModuleInterface is the interface implemented by every kickstart module.
	ModuleInterface = Namespace + ".Modules"

	// TaskInterface is the interface implemented by published tasks.
	TaskInterface = Namespace + ".Task"

	// ErrorNamespace prefixes the names of errors returned over the bus.
	ErrorNamespace = Namespace + ".Error"

	PropertiesInterface     = "org.freedesktop.DBus.Properties"
	IntrospectableInterface = "org.freedesktop.DBus.Introspectable"
)

// ModuleName returns the well-known service name of the named module,
// e.g. "org.fedoraproject.Anaconda.Modules.Bar".
func ModuleName(name string) string {
	return ModuleInterface + "." + name
}

// ModulePath returns the object path the named module is published at,
// e.g. "/org/fedoraproject/Anaconda/Modules/Bar".
func ModulePath(name string) dbus.ObjectPath {
	return dbus.ObjectPath("/" + strings.ReplaceAll(ModuleName(name), ".", "/"))
}
