package registry

import (
	"log/slog"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/specialistvlad/kickbus/internal/bus"
	"github.com/specialistvlad/kickbus/internal/module"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeModule struct {
	name string
}

func (m fakeModule) Register(r *Registry) {
	r.RegisterModule(m.name, func(bus.Bus, *slog.Logger) module.Service { return nil })
}

func TestRegistry_Lookup(t *testing.T) {
	// --- Arrange ---
	r := New()
	for _, m := range []Module{fakeModule{"Foo"}, fakeModule{"Bar"}} {
		m.Register(r)
	}

	// --- Act ---
	names := r.Names()
	ctor, err := r.Lookup("BAR")

	// --- Assert ---
	if diff := cmp.Diff([]string{"bar", "foo"}, names); diff != "" {
		t.Errorf("Names() mismatch (-want +got):\n%s", diff)
	}
	require.NoError(t, err)
	assert.NotNil(t, ctor)
}

func TestRegistry_LookupUnknown(t *testing.T) {
	r := New()
	fakeModule{"Bar"}.Register(r)

	_, err := r.Lookup("Baz")

	require.Error(t, err)
	assert.Equal(t, `unknown module "Baz" (available: bar)`, err.Error())
}

func TestRegistry_DuplicatePanics(t *testing.T) {
	r := New()
	fakeModule{"Bar"}.Register(r)

	assert.PanicsWithValue(t, "module with name 'bar' already registered", func() {
		fakeModule{"bar"}.Register(r)
	})
}
