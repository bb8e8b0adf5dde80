package registry

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/specialistvlad/kickbus/internal/bus"
	"github.com/specialistvlad/kickbus/internal/module"
)

// Module is the interface that all kickstart module packages implement to be
// registered.
type Module interface {
	Register(r *Registry)
}

// Constructor builds an unpublished module on the given connection.
type Constructor func(b bus.Bus, logger *slog.Logger) module.Service

// Registry holds the constructors of every registered module, keyed by their
// lower-case name.
type Registry struct {
	constructors map[string]Constructor
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{constructors: make(map[string]Constructor)}
}

// RegisterModule adds the constructor for the named module. Names are case
// insensitive.
func (r *Registry) RegisterModule(name string, ctor Constructor) {
	key := strings.ToLower(name)
	if _, exists := r.constructors[key]; exists {
		panic(fmt.Sprintf("module with name '%s' already registered", name))
	}
	slog.Debug("Registering module.", "name", name)
	r.constructors[key] = ctor
}

// Lookup returns the constructor for the named module.
func (r *Registry) Lookup(name string) (Constructor, error) {
	ctor, ok := r.constructors[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("unknown module %q (available: %s)", name, strings.Join(r.Names(), ", "))
	}
	return ctor, nil
}

// Names lists the registered module names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.constructors))
	for name := range r.constructors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
