package bus

import (
	"errors"
	"testing"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPath = dbus.ObjectPath("/org/example/Echo")

// echoObject is a minimal Object used to exercise the method tables.
type echoObject struct {
	greeting string
}

func (o *echoObject) Interface() string { return "org.example.Echo" }

func (o *echoObject) Methods() map[string]interface{} {
	return map[string]interface{}{
		"Echo": func(s string) (string, *dbus.Error) { return s, nil },
		"Fail": func() *dbus.Error { return NewError("Failed", errors.New("boom")) },
	}
}

func (o *echoObject) Properties() map[string]interface{} {
	return map[string]interface{}{
		"Greeting": func() string { return o.greeting },
		"Numbers":  func() []int32 { return []int32{1, 2} },
	}
}

func (o *echoObject) Signals() []introspect.Signal {
	return []introspect.Signal{{Name: "Echoed"}}
}

func TestModuleNameAndPath(t *testing.T) {
	assert.Equal(t, "org.fedoraproject.Anaconda.Modules.Bar", ModuleName("Bar"))
	assert.Equal(t, dbus.ObjectPath("/org/fedoraproject/Anaconda/Modules/Bar"), ModulePath("Bar"))
	assert.True(t, ModulePath("Bar").IsValid())
}

func TestMemoryConn_CallMethods(t *testing.T) {
	conn := NewMemoryBus().Connect()
	require.NoError(t, conn.PublishObject(testPath, &echoObject{greeting: "hi"}))

	out, err := conn.Call(testPath, "org.example.Echo", "Echo", "hello")
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"hello"}, out)

	_, err = conn.Call(testPath, "org.example.Echo", "Fail")
	var dbusErr *dbus.Error
	require.ErrorAs(t, err, &dbusErr)
	assert.Equal(t, ErrorNamespace+".Failed", dbusErr.Name)
	assert.Equal(t, []interface{}{"boom"}, dbusErr.Body)

	_, err = conn.Call(testPath, "org.example.Echo", "Missing")
	require.ErrorAs(t, err, &dbusErr)
	assert.Equal(t, "org.freedesktop.DBus.Error.UnknownMethod", dbusErr.Name)

	_, err = conn.Call(testPath, "org.example.Echo", "Echo", 42)
	require.ErrorAs(t, err, &dbusErr)
	assert.Equal(t, "org.freedesktop.DBus.Error.InvalidArgs", dbusErr.Name)
}

func TestMemoryConn_Properties(t *testing.T) {
	obj := &echoObject{greeting: "hi"}
	conn := NewMemoryBus().Connect()
	require.NoError(t, conn.PublishObject(testPath, obj))

	out, err := conn.Call(testPath, PropertiesInterface, "Get", "org.example.Echo", "Greeting")
	require.NoError(t, err)
	assert.Equal(t, dbus.MakeVariant("hi"), out[0])

	// Getters are evaluated on every call.
	obj.greeting = "hello"
	out, err = conn.Call(testPath, PropertiesInterface, "GetAll", "org.example.Echo")
	require.NoError(t, err)
	all := out[0].(map[string]dbus.Variant)
	assert.Equal(t, "hello", all["Greeting"].Value())
	assert.Equal(t, []int32{1, 2}, all["Numbers"].Value())

	_, err = conn.Call(testPath, PropertiesInterface, "Get", "org.example.Other", "Greeting")
	assert.Equal(t, "org.freedesktop.DBus.Properties.Error.InterfaceNotFound", err.(*dbus.Error).Name)

	_, err = conn.Call(testPath, PropertiesInterface, "Set", "org.example.Echo", "Greeting", dbus.MakeVariant("x"))
	require.Error(t, err)
	assert.Equal(t, "hello", obj.greeting)
}

func TestMemoryConn_Introspect(t *testing.T) {
	conn := NewMemoryBus().Connect()
	require.NoError(t, conn.PublishObject(testPath, &echoObject{}))

	out, err := conn.Call(testPath, IntrospectableInterface, "Introspect")
	require.NoError(t, err)
	xml := out[0].(string)

	assert.Contains(t, xml, `<interface name="org.example.Echo">`)
	assert.Contains(t, xml, `<method name="Echo">`)
	assert.Contains(t, xml, `<property name="Numbers" type="ai" access="read">`)
	assert.Contains(t, xml, `<signal name="Echoed">`)
	assert.Contains(t, xml, PropertiesInterface)
}

type badObject struct{ echoObject }

func (o *badObject) Methods() map[string]interface{} {
	return map[string]interface{}{"Bad": func() string { return "" }}
}

func TestMemoryConn_RejectsInvalidObjects(t *testing.T) {
	conn := NewMemoryBus().Connect()

	err := conn.PublishObject(testPath, &badObject{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "org.example.Echo.Bad")
	assert.False(t, conn.Published(testPath))

	require.Error(t, conn.PublishObject("not a path", &echoObject{}))
}

func TestMemoryConn_Unpublish(t *testing.T) {
	conn := NewMemoryBus().Connect()
	require.NoError(t, conn.PublishObject(testPath, &echoObject{}))
	require.True(t, conn.Published(testPath))

	require.NoError(t, conn.UnpublishObject(testPath))
	assert.False(t, conn.Published(testPath))
	assert.ErrorIs(t, conn.UnpublishObject(testPath), ErrNotPublished)
}

func TestMemoryBus_NamesAreShared(t *testing.T) {
	bus := NewMemoryBus()
	first, second := bus.Connect(), bus.Connect()
	assert.NotEqual(t, first.UniqueName(), second.UniqueName())

	require.NoError(t, first.RegisterService("org.example.Echo"))

	var nameErr *NameAlreadyRegisteredError
	require.ErrorAs(t, second.RegisterService("org.example.Echo"), &nameErr)
	assert.Equal(t, "org.example.Echo", nameErr.Name)
	require.ErrorAs(t, first.RegisterService("org.example.Echo"), &nameErr)

	require.Error(t, second.UnregisterService("org.example.Echo"))
	require.NoError(t, first.UnregisterService("org.example.Echo"))
	require.NoError(t, second.RegisterService("org.example.Echo"))

	owner, ok := bus.Owner("org.example.Echo")
	require.True(t, ok)
	assert.Same(t, second, owner)
}

func TestMemoryConn_CloseReleasesEverything(t *testing.T) {
	bus := NewMemoryBus()
	conn := bus.Connect()
	require.NoError(t, conn.PublishObject(testPath, &echoObject{}))
	require.NoError(t, conn.RegisterService("org.example.Echo"))
	require.NoError(t, conn.Emit(testPath, "org.example.Echo", "Echoed", "x"))

	require.NoError(t, conn.Close())

	_, owned := bus.Owner("org.example.Echo")
	assert.False(t, owned)
	assert.False(t, conn.Published(testPath))
	assert.ErrorIs(t, conn.Emit(testPath, "org.example.Echo", "Echoed"), ErrClosed)
	assert.Equal(t, []Signal{{Path: testPath, Name: "org.example.Echo.Echoed", Body: []interface{}{"x"}}}, conn.Signals())
}

// blockingObject answers Wait only once release is closed.
type blockingObject struct {
	entered chan struct{}
	release chan struct{}
}

func (o *blockingObject) Interface() string { return "org.example.Blocking" }

func (o *blockingObject) Methods() map[string]interface{} {
	return map[string]interface{}{
		"Wait": func() (string, *dbus.Error) {
			close(o.entered)
			<-o.release
			return "done", nil
		},
	}
}

func (o *blockingObject) Properties() map[string]interface{} { return nil }

func TestMemoryConn_CloseWaitsForReplies(t *testing.T) {
	// --- Arrange ---
	conn := NewMemoryBus().Connect()
	obj := &blockingObject{entered: make(chan struct{}), release: make(chan struct{})}
	require.NoError(t, conn.PublishObject(testPath, obj))

	type reply struct {
		out []interface{}
		err error
	}
	replyCh := make(chan reply, 1)
	go func() {
		out, err := conn.Call(testPath, "org.example.Blocking", "Wait")
		replyCh <- reply{out, err}
	}()
	<-obj.entered

	// --- Act ---
	closed := make(chan struct{})
	go func() {
		_ = conn.Close()
		close(closed)
	}()

	// --- Assert ---
	require.Eventually(t, func() bool {
		_, err := conn.Call(testPath, "org.example.Blocking", "Wait")
		var dbusErr *dbus.Error
		return errors.As(err, &dbusErr) && dbusErr.Name == "org.freedesktop.DBus.Error.NoReply"
	}, 5*time.Second, time.Millisecond, "calls arriving during Close must be refused")

	select {
	case <-closed:
		t.Fatal("Close returned before the call in progress was answered")
	default:
	}

	close(obj.release)
	r := <-replyCh
	require.NoError(t, r.err)
	assert.Equal(t, []interface{}{"done"}, r.out)
	<-closed
	assert.False(t, conn.Published(testPath))
}
