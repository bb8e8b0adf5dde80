// Package bar implements the Bar kickstart module.
package bar

import (
	"log/slog"
	"time"

	"github.com/specialistvlad/kickbus/internal/bus"
	"github.com/specialistvlad/kickbus/internal/kickstart"
	"github.com/specialistvlad/kickbus/internal/module"
	"github.com/specialistvlad/kickbus/internal/registry"
)

// Name is the short bus name of the module.
const Name = "Bar"

// Greeting is the constant reply to Ping.
const Greeting = "Bar says hi!"

// Specification lists the kickstart content Bar understands.
var Specification = &kickstart.Specification{
	Commands: []string{"lang", "keyboard", "timezone"},
	Sections: []string{"packages"},
	Addons:   []string{"org_fedora_hello_world"},
}

// Bar stores the kickstart it was given and publishes a single task.
type Bar struct {
	*module.Base

	task *BarTask
}

// New creates an unpublished Bar module.
func New(b bus.Bus, logger *slog.Logger) *Bar {
	m := &Bar{task: &BarTask{Steps: 5, Interval: time.Second}}
	m.Base = module.NewBase(module.Config{
		Name:          Name,
		Bus:           b,
		Logger:        logger,
		Specification: Specification,
		OnKickstart:   m.processKickstart,
	})
	return m
}

// Publish exports the module and its task and claims the Bar name.
func (m *Bar) Publish() error {
	return m.Base.Publish(module.NewInterface(m), m.task)
}

// Ping logs the message and replies with Greeting.
func (m *Bar) Ping(message string) (string, error) {
	if err := m.Require("Ping"); err != nil {
		return "", err
	}
	m.Logger().Debug("Ping received.", "message", message)
	return Greeting, nil
}

func (m *Bar) processKickstart(data *kickstart.Data) {
	var lang string
	found, err := data.DecodeCommand("lang", &lang)
	switch {
	case err != nil:
		m.Logger().Warn("Cannot decode the language.", "error", err)
	case found:
		m.Logger().Debug("Language configured.", "lang", lang)
	}
}

// Module implements the registry.Module interface for this package.
type Module struct{}

// Register adds the Bar constructor to the registry.
func (Module) Register(r *registry.Registry) {
	r.RegisterModule(Name, func(b bus.Bus, logger *slog.Logger) module.Service {
		return New(b, logger)
	})
}
