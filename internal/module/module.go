package module

import (
	"github.com/godbus/dbus/v5"
)

// Module is the capability set the Interface adapter forwards to.
type Module interface {
	Ping(message string) (string, error)
	ReadKickstart(text string) error
	GenerateKickstart() (string, error)
	Stop() error

	PublishedTasks() []TaskInfo
	KickstartCommands() []string
	KickstartSections() []string
	KickstartAddons() []string
}

// Service is a module as run by a process: it can be published and reports
// when it has stopped.
type Service interface {
	Module

	// Publish exports the module and claims its well-known name.
	Publish() error

	// Done is closed once the module has stopped.
	Done() <-chan struct{}
}

// TaskInfo identifies a published task.
type TaskInfo struct {
	Name string
	Path dbus.ObjectPath
}
