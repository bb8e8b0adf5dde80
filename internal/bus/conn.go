package bus

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"
)

// Well-known bus addresses accepted by Connect in addition to literal D-Bus
// addresses such as "unix:path=/run/user/1000/bus".
const (
	SessionBus = "session"
	SystemBus  = "system"
)

// closeTimeout bounds how long Close waits for replies that are still being
// sent.
const closeTimeout = 5 * time.Second

// Conn is a Bus backed by a godbus connection.
type Conn struct {
	conn    *dbus.Conn
	logger  *slog.Logger
	replies *replyTracker

	mu       sync.Mutex
	exported map[dbus.ObjectPath][]string
}

// Connect opens a private connection to the bus at address and authenticates.
func Connect(ctx context.Context, address string, logger *slog.Logger) (*Conn, error) {
	var (
		conn *dbus.Conn
		err  error
	)

	replies := newReplyTracker()
	opts := []dbus.ConnOption{
		dbus.WithContext(ctx),
		dbus.WithSerialGenerator(replies),
		dbus.WithIncomingInterceptor(replies.incoming),
		dbus.WithOutgoingInterceptor(replies.outgoing),
	}

	switch address {
	case SessionBus:
		conn, err = dbus.ConnectSessionBus(opts...)
	case SystemBus:
		conn, err = dbus.ConnectSystemBus(opts...)
	default:
		conn, err = dbus.Connect(address, opts...)
	}
	if err != nil {
		return nil, err
	}

	logger.Debug("Connected to the bus.", "address", address, "names", conn.Names())
	return &Conn{
		conn:     conn,
		logger:   logger,
		replies:  replies,
		exported: make(map[dbus.ObjectPath][]string),
	}, nil
}

func (c *Conn) PublishObject(path dbus.ObjectPath, obj Object) error {
	if !path.IsValid() {
		return fmt.Errorf("invalid object path %q", path)
	}

	tables, err := methodTables(path, obj)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	var ifaces []string
	for iface, table := range tables {
		if err := c.conn.ExportMethodTable(table, path, iface); err != nil {
			c.unexport(path, ifaces)
			return fmt.Errorf("failed to export %s at %s: %w", iface, path, err)
		}
		ifaces = append(ifaces, iface)
	}
	c.exported[path] = ifaces

	c.logger.Debug("Published object.", "path", path, "interface", obj.Interface())
	return nil
}

func (c *Conn) UnpublishObject(path dbus.ObjectPath) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	ifaces, ok := c.exported[path]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotPublished, path)
	}
	c.unexport(path, ifaces)
	delete(c.exported, path)

	c.logger.Debug("Unpublished object.", "path", path)
	return nil
}

func (c *Conn) unexport(path dbus.ObjectPath, ifaces []string) {
	for _, iface := range ifaces {
		if err := c.conn.Export(nil, path, iface); err != nil {
			c.logger.Warn("Failed to unexport interface.", "path", path, "interface", iface, "error", err)
		}
	}
}

func (c *Conn) RegisterService(name string) error {
	reply, err := c.conn.RequestName(name, dbus.NameFlagDoNotQueue)
	if err != nil {
		return fmt.Errorf("failed to request name %s: %w", name, err)
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		return &NameAlreadyRegisteredError{Name: name}
	}

	c.logger.Info("Registered service.", "name", name)
	return nil
}

func (c *Conn) UnregisterService(name string) error {
	reply, err := c.conn.ReleaseName(name)
	if err != nil {
		return fmt.Errorf("failed to release name %s: %w", name, err)
	}
	if reply != dbus.ReleaseNameReplyReleased {
		return fmt.Errorf("failed to release name %s: not the owner", name)
	}

	c.logger.Debug("Unregistered service.", "name", name)
	return nil
}

func (c *Conn) Emit(path dbus.ObjectPath, iface, name string, values ...interface{}) error {
	return c.conn.Emit(path, iface+"."+name, values...)
}

// Close closes the connection once every method call received so far has
// been answered, so a handler that ends the process (Quit) still gets its
// reply out. It gives up waiting after closeTimeout.
func (c *Conn) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()

	if err := c.replies.wait(ctx); err != nil {
		c.logger.Warn("Closing the bus connection with unanswered calls.", "error", err)
	}
	return c.conn.Close()
}
