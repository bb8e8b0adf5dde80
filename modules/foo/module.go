// Package foo implements the Foo kickstart module. It has no tasks.
package foo

import (
	"log/slog"

	"github.com/specialistvlad/kickbus/internal/bus"
	"github.com/specialistvlad/kickbus/internal/kickstart"
	"github.com/specialistvlad/kickbus/internal/module"
	"github.com/specialistvlad/kickbus/internal/registry"
)

// Name is the short bus name of the module.
const Name = "Foo"

// Specification lists the kickstart content Foo understands.
var Specification = &kickstart.Specification{
	Commands: []string{"firewall", "selinux"},
}

// Foo stores the kickstart it was given. It publishes no tasks.
type Foo struct {
	*module.Base
}

// New creates an unpublished Foo module.
func New(b bus.Bus, logger *slog.Logger) *Foo {
	return &Foo{Base: module.NewBase(module.Config{
		Name:          Name,
		Bus:           b,
		Logger:        logger,
		Specification: Specification,
	})}
}

// Publish exports the module and claims the Foo name.
func (m *Foo) Publish() error {
	return m.Base.Publish(module.NewInterface(m))
}

// Ping logs the message and replies with a constant greeting.
func (m *Foo) Ping(message string) (string, error) {
	if err := m.Require("Ping"); err != nil {
		return "", err
	}
	m.Logger().Debug("Ping received.", "message", message)
	return "Foo says hi!", nil
}

// Module implements the registry.Module interface for this package.
type Module struct{}

// Register adds the Foo constructor to the registry.
func (Module) Register(r *registry.Registry) {
	r.RegisterModule(Name, func(b bus.Bus, logger *slog.Logger) module.Service {
		return New(b, logger)
	})
}
