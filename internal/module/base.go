package module

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/godbus/dbus/v5"
	"github.com/specialistvlad/kickbus/internal/bus"
	"github.com/specialistvlad/kickbus/internal/kickstart"
	"github.com/specialistvlad/kickbus/internal/task"
)

// Config describes a module to NewBase.
type Config struct {
	// Name is the short module name, e.g. "Bar". It determines the
	// well-known service name and the object path.
	Name string

	Bus           bus.Bus
	Logger        *slog.Logger
	Specification *kickstart.Specification

	// OnKickstart is called with every successfully read configuration,
	// while the module lock is held.
	OnKickstart func(data *kickstart.Data)
}

type publishedTask struct {
	task *task.Task
	path dbus.ObjectPath
}

// Base implements everything in Service except Ping. Concrete modules embed
// it and publish themselves through Base.Publish.
type Base struct {
	name        string
	serviceName string
	path        dbus.ObjectPath
	bus         bus.Bus
	logger      *slog.Logger
	spec        *kickstart.Specification
	onKickstart func(*kickstart.Data)

	// ctx outlives every task run and is cancelled by Stop.
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu        sync.Mutex
	state     State
	data      *kickstart.Data
	tasks     []publishedTask
	published []dbus.ObjectPath
}

// NewBase creates an unpublished module.
func NewBase(cfg Config) *Base {
	ctx, cancel := context.WithCancel(context.Background())
	onKickstart := cfg.OnKickstart
	if onKickstart == nil {
		onKickstart = func(*kickstart.Data) {}
	}

	return &Base{
		name:        cfg.Name,
		serviceName: bus.ModuleName(cfg.Name),
		path:        bus.ModulePath(cfg.Name),
		bus:         cfg.Bus,
		logger:      cfg.Logger.With("module", cfg.Name),
		spec:        cfg.Specification,
		onKickstart: onKickstart,
		ctx:         ctx,
		cancel:      cancel,
		done:        make(chan struct{}),
	}
}

// Name returns the short module name.
func (b *Base) Name() string {
	return b.name
}

// ServiceName returns the well-known name claimed by Publish.
func (b *Base) ServiceName() string {
	return b.serviceName
}

// Path returns the object path of the module interface.
func (b *Base) Path() dbus.ObjectPath {
	return b.path
}

func (b *Base) Logger() *slog.Logger {
	return b.logger
}

func (b *Base) Done() <-chan struct{} {
	return b.done
}

func (b *Base) KickstartCommands() []string {
	return b.spec.CommandNames()
}

func (b *Base) KickstartSections() []string {
	return b.spec.SectionNames()
}

func (b *Base) KickstartAddons() []string {
	return b.spec.AddonNames()
}

func (b *Base) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Require returns an *InvalidStateError unless the module is published.
func (b *Base) Require(op string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.require(op)
}

func (b *Base) require(op string) error {
	if b.state != Published {
		return &InvalidStateError{Op: op, State: b.state}
	}
	return nil
}

// Publish exports iface at the module path and every runnable as a task
// under it, then claims the module's well-known name. Nothing stays
// exported when it fails.
func (b *Base) Publish(iface bus.Object, runnables ...task.Runnable) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Published:
		return &bus.NameAlreadyRegisteredError{Name: b.serviceName}
	case Stopped:
		return &InvalidStateError{Op: "Publish", State: b.state}
	}

	if err := b.publishObject(b.path, iface); err != nil {
		return err
	}
	for _, r := range runnables {
		if err := b.publishTask(r); err != nil {
			b.rollback()
			return err
		}
	}

	if err := b.bus.RegisterService(b.serviceName); err != nil {
		b.rollback()
		return err
	}

	b.state = Published
	b.logger.Info("Module published.", "name", b.serviceName, "path", b.path, "tasks", len(b.tasks))
	return nil
}

func (b *Base) publishObject(path dbus.ObjectPath, obj bus.Object) error {
	if err := b.bus.PublishObject(path, obj); err != nil {
		return fmt.Errorf("failed to publish %s at %s: %w", obj.Interface(), path, err)
	}
	b.published = append(b.published, path)
	return nil
}

func (b *Base) publishTask(r task.Runnable) error {
	path := dbus.ObjectPath(fmt.Sprintf("%s/Tasks/%d", b.path, len(b.tasks)+1))
	t := task.New(r, b.logger, func(signal string, values ...interface{}) {
		if err := b.bus.Emit(path, bus.TaskInterface, signal, values...); err != nil {
			b.logger.Warn("Failed to emit task signal.", "path", path, "signal", signal, "error", err)
		}
	})

	if err := b.publishObject(path, task.NewInterface(b.ctx, t)); err != nil {
		return err
	}
	b.tasks = append(b.tasks, publishedTask{task: t, path: path})
	b.logger.Debug("Task published.", "task", t.Name(), "path", path)
	return nil
}

// rollback unexports everything published so far.
func (b *Base) rollback() {
	if err := b.unpublishAll(); err != nil {
		b.logger.Warn("Failed to roll back a partial publish.", "error", err)
	}
	b.tasks = nil
}

func (b *Base) unpublishAll() error {
	var errs []error
	for i := len(b.published) - 1; i >= 0; i-- {
		if err := b.bus.UnpublishObject(b.published[i]); err != nil {
			errs = append(errs, err)
		}
	}
	b.published = nil
	return errors.Join(errs...)
}

// PublishedTasks lists the published tasks in publication order.
func (b *Base) PublishedTasks() []TaskInfo {
	b.mu.Lock()
	defer b.mu.Unlock()

	infos := make([]TaskInfo, 0, len(b.tasks))
	for _, pt := range b.tasks {
		infos = append(infos, TaskInfo{Name: pt.task.Name(), Path: pt.path})
	}
	return infos
}

// Task returns the published task at path.
func (b *Base) Task(path dbus.ObjectPath) (*task.Task, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, pt := range b.tasks {
		if pt.path == path {
			return pt.task, true
		}
	}
	return nil, false
}

// ReadKickstart replaces the stored configuration with the parsed text. On
// failure the stored configuration is left as it was and the error is a
// *kickstart.ParseError.
func (b *Base) ReadKickstart(text string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.require("ReadKickstart"); err != nil {
		return err
	}

	data, err := b.spec.Parse(b.name+".ks", []byte(text))
	if err != nil {
		b.logger.Debug("Kickstart rejected.", "error", err)
		return err
	}

	b.data = data
	b.logger.Debug("Kickstart read.", "data", data)
	b.onKickstart(data)
	return nil
}

// GenerateKickstart returns the stored configuration as text, or an empty
// string when nothing was read yet.
func (b *Base) GenerateKickstart() (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.require("GenerateKickstart"); err != nil {
		return "", err
	}
	if b.data == nil {
		return "", nil
	}
	return b.data.Generate(), nil
}

// Stop cancels running tasks, unexports every object and releases the
// well-known name. The module cannot be used afterwards.
func (b *Base) Stop() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.require("Stop"); err != nil {
		return err
	}

	b.cancel()
	for _, pt := range b.tasks {
		pt.task.Cancel()
		pt.task.Wait()
	}

	errs := []error{b.unpublishAll()}
	if err := b.bus.UnregisterService(b.serviceName); err != nil {
		errs = append(errs, err)
	}

	b.tasks = nil
	b.state = Stopped
	close(b.done)

	if err := errors.Join(errs...); err != nil {
		b.logger.Warn("Module stopped with errors.", "error", err)
		return err
	}
	b.logger.Info("Module stopped.")
	return nil
}
