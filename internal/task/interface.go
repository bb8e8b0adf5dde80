package task

import (
	"context"
	"errors"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"
	"github.com/specialistvlad/kickbus/internal/bus"
)

// Progress is the value of the Progress property: the last step and its
// message.
type Progress struct {
	Step    int32
	Message string
}

// Interface exposes a Task on the bus.
type Interface struct {
	ctx  context.Context
	task *Task
}

// NewInterface returns the bus object of t. Runs started over the bus are
// cancelled when ctx is done, and Start fails once it is.
func NewInterface(ctx context.Context, t *Task) *Interface {
	return &Interface{ctx: ctx, task: t}
}

func (i *Interface) Interface() string {
	return bus.TaskInterface
}

func (i *Interface) Methods() map[string]interface{} {
	return map[string]interface{}{
		"Start": func() *dbus.Error {
			err := i.task.Start(i.ctx)
			switch {
			case err == nil:
				return nil
			case errors.Is(err, ErrAlreadyRunning):
				return bus.NewError("AlreadyRunning", err)
			default:
				return bus.NewError("Stopped", err)
			}
		},
		"Cancel": func() *dbus.Error {
			i.task.Cancel()
			return nil
		},
	}
}

func (i *Interface) Properties() map[string]interface{} {
	return map[string]interface{}{
		"Name":      i.task.Name,
		"IsRunning": i.task.IsRunning,
		"Progress": func() Progress {
			step, message := i.task.Progress()
			return Progress{Step: int32(step), Message: message}
		},
	}
}

func (i *Interface) Signals() []introspect.Signal {
	return []introspect.Signal{
		{Name: SignalStarted},
		{Name: SignalProgressChanged, Args: []introspect.Arg{
			{Name: "step", Type: "i"},
			{Name: "message", Type: "s"},
		}},
		{Name: SignalStopped},
		{Name: SignalFailed, Args: []introspect.Arg{
			{Name: "error", Type: "s"},
		}},
	}
}
