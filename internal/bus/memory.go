package bus

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/godbus/dbus/v5"
)

// MemoryBus is an in-process message bus. Well-known names are shared by all
// of its connections, objects are private to the connection exporting them.
type MemoryBus struct {
	mu     sync.RWMutex
	owners map[string]*MemoryConn
	nextID int
}

// NewMemoryBus creates an empty in-process bus.
func NewMemoryBus() *MemoryBus {
	return &MemoryBus{owners: make(map[string]*MemoryConn)}
}

// Connect opens a new connection to the bus.
func (b *MemoryBus) Connect() *MemoryConn {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++

	return &MemoryConn{
		bus:     b,
		name:    fmt.Sprintf(":1.%d", b.nextID),
		objects: make(map[dbus.ObjectPath]map[string]map[string]interface{}),
	}
}

// Owner returns the connection owning the well-known name, if any.
func (b *MemoryBus) Owner(name string) (*MemoryConn, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	c, ok := b.owners[name]
	return c, ok
}

// Signal is a signal recorded by a MemoryConn.
type Signal struct {
	Path dbus.ObjectPath
	Name string
	Body []interface{}
}

// MemoryConn is a connection to a MemoryBus. It implements Bus and lets tests
// call exported methods the way a remote peer would.
type MemoryConn struct {
	bus  *MemoryBus
	name string

	mu      sync.RWMutex
	closing bool
	closed  bool
	objects map[dbus.ObjectPath]map[string]map[string]interface{}
	signals []Signal

	// calls counts method calls whose reply has not been delivered yet.
	calls sync.WaitGroup
}

// UniqueName returns the connection's unique bus name.
func (c *MemoryConn) UniqueName() string {
	return c.name
}

func (c *MemoryConn) PublishObject(path dbus.ObjectPath, obj Object) error {
	if !path.IsValid() {
		return fmt.Errorf("invalid object path %q", path)
	}

	tables, err := methodTables(path, obj)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	c.objects[path] = tables
	return nil
}

func (c *MemoryConn) UnpublishObject(path dbus.ObjectPath) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if _, ok := c.objects[path]; !ok {
		return fmt.Errorf("%w: %s", ErrNotPublished, path)
	}
	delete(c.objects, path)
	return nil
}

func (c *MemoryConn) RegisterService(name string) error {
	c.mu.RLock()
	closed := c.closed
	c.mu.RUnlock()
	if closed {
		return ErrClosed
	}

	c.bus.mu.Lock()
	defer c.bus.mu.Unlock()
	if _, taken := c.bus.owners[name]; taken {
		return &NameAlreadyRegisteredError{Name: name}
	}
	c.bus.owners[name] = c
	return nil
}

func (c *MemoryConn) UnregisterService(name string) error {
	c.bus.mu.Lock()
	defer c.bus.mu.Unlock()
	if owner, ok := c.bus.owners[name]; !ok || owner != c {
		return fmt.Errorf("failed to release name %s: not the owner", name)
	}
	delete(c.bus.owners, name)
	return nil
}

func (c *MemoryConn) Emit(path dbus.ObjectPath, iface, name string, values ...interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	c.signals = append(c.signals, Signal{Path: path, Name: iface + "." + name, Body: values})
	return nil
}

// Close waits until every call in progress has been answered, then drops
// every exported object and releases every owned name. Calls arriving while
// it waits fail as if the peer had disconnected.
func (c *MemoryConn) Close() error {
	c.mu.Lock()
	c.closing = true
	c.mu.Unlock()
	c.calls.Wait()

	c.mu.Lock()
	c.closed = true
	c.objects = make(map[dbus.ObjectPath]map[string]map[string]interface{})
	c.mu.Unlock()

	c.bus.mu.Lock()
	defer c.bus.mu.Unlock()
	for name, owner := range c.bus.owners {
		if owner == c {
			delete(c.bus.owners, name)
		}
	}
	return nil
}

// Published reports whether an object is exported at path.
func (c *MemoryConn) Published(path dbus.ObjectPath) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.objects[path]
	return ok
}

// Signals returns a copy of every signal emitted so far.
func (c *MemoryConn) Signals() []Signal {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]Signal(nil), c.signals...)
}

// Call invokes iface.method on the object at path. Errors returned by the
// method are *dbus.Error values, as a remote caller would see them.
func (c *MemoryConn) Call(path dbus.ObjectPath, iface, method string, args ...interface{}) ([]interface{}, error) {
	c.mu.Lock()
	if c.closing {
		c.mu.Unlock()
		return nil, errNoReply()
	}
	tables, ok := c.objects[path]
	c.calls.Add(1)
	c.mu.Unlock()
	defer c.calls.Done()

	if !ok {
		return nil, dbus.NewError("org.freedesktop.DBus.Error.UnknownObject", []interface{}{string(path)})
	}

	fn, ok := tables[iface][method]
	if !ok {
		return nil, dbus.NewError("org.freedesktop.DBus.Error.UnknownMethod", []interface{}{iface + "." + method})
	}

	fv := reflect.ValueOf(fn)
	ft := fv.Type()
	if len(args) != ft.NumIn() {
		return nil, dbus.NewError("org.freedesktop.DBus.Error.InvalidArgs",
			[]interface{}{fmt.Sprintf("%s expects %d arguments, got %d", method, ft.NumIn(), len(args))})
	}

	in := make([]reflect.Value, len(args))
	for i, arg := range args {
		v := reflect.ValueOf(arg)
		if !v.IsValid() || !v.Type().AssignableTo(ft.In(i)) {
			return nil, dbus.NewError("org.freedesktop.DBus.Error.InvalidArgs",
				[]interface{}{fmt.Sprintf("argument %d of %s must be %s", i, method, ft.In(i))})
		}
		in[i] = v
	}

	out := fv.Call(in)

	// A reply is delivered over the connection, so it is lost if the
	// connection closed while the method ran.
	c.mu.RLock()
	closed := c.closed
	c.mu.RUnlock()
	if closed {
		return nil, errNoReply()
	}

	if dbusErr, _ := out[len(out)-1].Interface().(*dbus.Error); dbusErr != nil {
		return nil, dbusErr
	}

	results := make([]interface{}, 0, len(out)-1)
	for _, v := range out[:len(out)-1] {
		results = append(results, v.Interface())
	}
	return results, nil
}

func errNoReply() *dbus.Error {
	return dbus.NewError("org.freedesktop.DBus.Error.NoReply",
		[]interface{}{"Message recipient disconnected from message bus without replying"})
}
