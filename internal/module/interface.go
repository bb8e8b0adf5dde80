package module

import (
	"errors"

	"github.com/godbus/dbus/v5"
	"github.com/specialistvlad/kickbus/internal/bus"
	"github.com/specialistvlad/kickbus/internal/kickstart"
)

// ReadResult is the outcome of ReadKickstart. ErrorMessage and LineNumber are
// only meaningful when Success is false.
//
// LineNumber is the line of the first parse error when the parser knows it
// and kickstart.DefaultLine (1) otherwise. Earlier installers always
// reported 1, so callers must not rely on it being exact.
type ReadResult struct {
	Success      bool
	ErrorMessage string
	LineNumber   int
}

// Variants converts the result into the dictionary returned over the bus.
func (r ReadResult) Variants() map[string]dbus.Variant {
	if r.Success {
		return map[string]dbus.Variant{"success": dbus.MakeVariant(true)}
	}
	return map[string]dbus.Variant{
		"success":       dbus.MakeVariant(false),
		"error_message": dbus.MakeVariant(r.ErrorMessage),
		"line_number":   dbus.MakeVariant(int32(r.LineNumber)),
	}
}

// TaskEntry is a (name, path) pair of the AvailableTasks property.
type TaskEntry struct {
	Name string
	Path string
}

// Interface exposes a Module on the bus under bus.ModuleInterface. It keeps
// no state of its own.
type Interface struct {
	impl Module
}

// NewInterface returns the adapter for impl.
func NewInterface(impl Module) *Interface {
	return &Interface{impl: impl}
}

// AvailableTasks lists the module's published tasks in publication order.
func (i *Interface) AvailableTasks() []TaskEntry {
	tasks := i.impl.PublishedTasks()
	entries := make([]TaskEntry, 0, len(tasks))
	for _, t := range tasks {
		entries = append(entries, TaskEntry{Name: t.Name, Path: string(t.Path)})
	}
	return entries
}

func (i *Interface) KickstartCommands() []string {
	return nonNil(i.impl.KickstartCommands())
}

func (i *Interface) KickstartSections() []string {
	return nonNil(i.impl.KickstartSections())
}

func (i *Interface) KickstartAddons() []string {
	return nonNil(i.impl.KickstartAddons())
}

// ReadKickstart reads the kickstart text. A parse failure is reported in the
// result; the error is only set when the module cannot read at all.
func (i *Interface) ReadKickstart(text string) (ReadResult, error) {
	err := i.impl.ReadKickstart(text)
	if err == nil {
		return ReadResult{Success: true}, nil
	}

	var parseErr *kickstart.ParseError
	if errors.As(err, &parseErr) {
		// TODO: hcl attaches no position to some diagnostics; those keep the
		// placeholder line until every kickstart error carries a range.
		line := parseErr.Line
		if line <= 0 {
			line = kickstart.DefaultLine
		}
		return ReadResult{Success: false, ErrorMessage: parseErr.Message, LineNumber: line}, nil
	}
	return ReadResult{}, err
}

func (i *Interface) GenerateKickstart() (string, error) {
	return i.impl.GenerateKickstart()
}

func (i *Interface) Ping(message string) (string, error) {
	return i.impl.Ping(message)
}

// Quit stops the module. The reply still reaches the caller: connections
// close only after every received call has been answered.
func (i *Interface) Quit() error {
	return i.impl.Stop()
}

func (i *Interface) Interface() string {
	return bus.ModuleInterface
}

func (i *Interface) Methods() map[string]interface{} {
	return map[string]interface{}{
		"ReadKickstart": func(text string) (map[string]dbus.Variant, *dbus.Error) {
			result, err := i.ReadKickstart(text)
			if err != nil {
				return nil, toBusError(err)
			}
			return result.Variants(), nil
		},
		"GenerateKickstart": func() (string, *dbus.Error) {
			text, err := i.GenerateKickstart()
			if err != nil {
				return "", toBusError(err)
			}
			return text, nil
		},
		"Ping": func(message string) (string, *dbus.Error) {
			reply, err := i.Ping(message)
			if err != nil {
				return "", toBusError(err)
			}
			return reply, nil
		},
		"Quit": func() *dbus.Error {
			if err := i.Quit(); err != nil {
				return toBusError(err)
			}
			return nil
		},
	}
}

func (i *Interface) Properties() map[string]interface{} {
	return map[string]interface{}{
		"AvailableTasks":    i.AvailableTasks,
		"KickstartCommands": i.KickstartCommands,
		"KickstartSections": i.KickstartSections,
		"KickstartAddons":   i.KickstartAddons,
	}
}

// toBusError names err after its kind so callers can tell failures apart.
func toBusError(err error) *dbus.Error {
	var nameErr *bus.NameAlreadyRegisteredError
	switch {
	case errors.Is(err, ErrInvalidState):
		return bus.NewError("InvalidState", err)
	case errors.As(err, &nameErr):
		return bus.NewError("NameAlreadyRegistered", err)
	default:
		return bus.NewError("Failed", err)
	}
}

// nonNil keeps empty lists from being sent as nil slices.
func nonNil(names []string) []string {
	if names == nil {
		return []string{}
	}
	return names
}

var _ bus.Object = (*Interface)(nil)
