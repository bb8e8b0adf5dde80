package app

import (
	"github.com/specialistvlad/kickbus/internal/registry"
	"github.com/specialistvlad/kickbus/modules/bar"
	"github.com/specialistvlad/kickbus/modules/foo"
)

// coreModules is the definitive list of all modules that are compiled into
// the kickbus binary.
var coreModules = []registry.Module{
	bar.Module{},
	foo.Module{},
}

// AvailableModules lists the names of the compiled-in modules.
func AvailableModules() []string {
	return newRegistry(coreModules).Names()
}

func newRegistry(modules []registry.Module) *registry.Registry {
	reg := registry.New()
	for _, mod := range modules {
		mod.Register(reg)
	}
	return reg
}
