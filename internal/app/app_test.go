package app

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/google/go-cmp/cmp"
	"github.com/specialistvlad/kickbus/internal/bus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const barName = "org.fedoraproject.Anaconda.Modules.Bar"

// startApp runs the app in the background and waits until its module owns
// name on the bus.
func startApp(t *testing.T, ctx context.Context, a *App, memBus *bus.MemoryBus, name string) <-chan error {
	t.Helper()
	errCh := make(chan error, 1)
	go func() { errCh <- a.Run(ctx) }()

	require.Eventually(t, func() bool {
		_, ok := memBus.Owner(name)
		return ok
	}, 5*time.Second, 5*time.Millisecond, "module was never published")
	return errCh
}

func waitRun(t *testing.T, errCh <-chan error) error {
	t.Helper()
	select {
	case err := <-errCh:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return")
		return nil
	}
}

func TestRun_QuitOverTheBus(t *testing.T) {
	// --- Arrange ---
	a, memBus, logs := SetupAppTest(t, &Config{Module: "bar", Bus: "session"})
	errCh := startApp(t, context.Background(), a, memBus, barName)
	owner, _ := memBus.Owner(barName)

	// --- Act ---
	out, err := owner.Call(bus.ModulePath("Bar"), bus.ModuleInterface, "Ping", "hello")
	require.NoError(t, err)
	_, err = owner.Call(bus.ModulePath("Bar"), bus.ModuleInterface, "Quit")
	require.NoError(t, err)

	// --- Assert ---
	require.NoError(t, waitRun(t, errCh))
	assert.Equal(t, []interface{}{"Bar says hi!"}, out)
	_, stillOwned := memBus.Owner(barName)
	assert.False(t, stillOwned)
	assert.Contains(t, logs.String(), "Module quit.")
}

func TestRun_QuitAlwaysGetsAReply(t *testing.T) {
	// Run closes the connection as soon as the module is done, which happens
	// inside the Quit handler. The reply must still reach the caller.
	for i := 0; i < 50; i++ {
		// --- Arrange ---
		a, memBus, _ := SetupAppTest(t, &Config{Module: "foo", Bus: "session"})
		errCh := startApp(t, context.Background(), a, memBus, "org.fedoraproject.Anaconda.Modules.Foo")
		owner, _ := memBus.Owner("org.fedoraproject.Anaconda.Modules.Foo")

		// --- Act ---
		_, err := owner.Call(bus.ModulePath("Foo"), bus.ModuleInterface, "Quit")

		// --- Assert ---
		require.NoError(t, err, "round %d", i)
		require.NoError(t, waitRun(t, errCh))
	}
}

func TestRun_ContextCancelStopsModule(t *testing.T) {
	// --- Arrange ---
	a, memBus, logs := SetupAppTest(t, &Config{Module: "Foo", Bus: "session"})
	ctx, cancel := context.WithCancel(context.Background())
	errCh := startApp(t, ctx, a, memBus, "org.fedoraproject.Anaconda.Modules.Foo")

	// --- Act ---
	cancel()

	// --- Assert ---
	require.NoError(t, waitRun(t, errCh))
	_, stillOwned := memBus.Owner("org.fedoraproject.Anaconda.Modules.Foo")
	assert.False(t, stillOwned)
	assert.Contains(t, logs.String(), "Module stopped.")
}

func TestRun_KickstartFile(t *testing.T) {
	// --- Arrange ---
	path := filepath.Join(t.TempDir(), "bar.ks")
	require.NoError(t, os.WriteFile(path, []byte("timezone = \"UTC\"\n"), 0600))

	a, memBus, _ := SetupAppTest(t, &Config{Module: "bar", Bus: "session", KickstartPath: path})
	errCh := startApp(t, context.Background(), a, memBus, barName)
	owner, _ := memBus.Owner(barName)

	// --- Act ---
	out, err := owner.Call(bus.ModulePath("Bar"), bus.ModuleInterface, "GenerateKickstart")
	require.NoError(t, err)
	_, err = owner.Call(bus.ModulePath("Bar"), bus.ModuleInterface, "Quit")
	require.NoError(t, err)

	// --- Assert ---
	require.NoError(t, waitRun(t, errCh))
	assert.Equal(t, "timezone = \"UTC\"\n", out[0])
}

func TestRun_InvalidKickstartFile(t *testing.T) {
	// --- Arrange ---
	path := filepath.Join(t.TempDir(), "bar.ks")
	require.NoError(t, os.WriteFile(path, []byte("lang = \"C\"\nfirewall = true\n"), 0600))
	a, memBus, _ := SetupAppTest(t, &Config{Module: "bar", Bus: "session", KickstartPath: path})

	// --- Act ---
	err := a.Run(context.Background())

	// --- Assert ---
	require.Error(t, err)
	assert.Contains(t, err.Error(), path+":2:")
	_, stillOwned := memBus.Owner(barName)
	assert.False(t, stillOwned, "a failed startup must release the name")
}

func TestRun_Errors(t *testing.T) {
	testCases := []struct {
		name    string
		config  Config
		message string
	}{
		{
			name:    "unknown module",
			config:  Config{Module: "baz", Bus: "session"},
			message: `unknown module "baz" (available: bar, foo)`,
		},
		{
			name:    "missing kickstart file",
			config:  Config{Module: "bar", Bus: "session", KickstartPath: "/does/not/exist.ks"},
			message: "failed to read kickstart file",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := tc.config
			a, _, _ := SetupAppTest(t, &cfg)

			err := a.Run(context.Background())

			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.message)
		})
	}
}

func TestRun_DialError(t *testing.T) {
	cfg := &Config{Module: "bar", Bus: "unix:path=/nowhere", LogLevel: "info", LogFormat: "json"}
	a := NewApp(&SafeBuffer{}, cfg, func(context.Context, string, *slog.Logger) (bus.Bus, error) {
		return nil, errors.New("connection refused")
	})

	err := a.Run(context.Background())

	require.Error(t, err)
	assert.Equal(t, "failed to connect to the unix:path=/nowhere bus: connection refused", err.Error())
}

func TestRun_NameAlreadyTaken(t *testing.T) {
	a, memBus, _ := SetupAppTest(t, &Config{Module: "bar", Bus: "session"})
	require.NoError(t, memBus.Connect().RegisterService(barName))

	err := a.Run(context.Background())

	var nameErr *bus.NameAlreadyRegisteredError
	require.ErrorAs(t, err, &nameErr)
	assert.Equal(t, barName, nameErr.Name)
}

func TestAvailableModules(t *testing.T) {
	if diff := cmp.Diff([]string{"bar", "foo"}, AvailableModules()); diff != "" {
		t.Errorf("AvailableModules() mismatch (-want +got):\n%s", diff)
	}
}

func TestNewConfig(t *testing.T) {
	cfg, err := NewConfig(Config{Module: "bar", Bus: "system", LogFormat: "JSON", LogLevel: "Debug"})
	require.NoError(t, err)
	assert.Equal(t, &Config{Module: "bar", Bus: "system", LogFormat: "json", LogLevel: "debug"}, cfg)

	for _, bad := range []Config{
		{Bus: "session", LogFormat: "text", LogLevel: "info"},
		{Module: "bar", LogFormat: "text", LogLevel: "info"},
		{Module: "bar", Bus: "session", LogFormat: "xml", LogLevel: "info"},
		{Module: "bar", Bus: "session", LogFormat: "text", LogLevel: "trace"},
	} {
		_, err := NewConfig(bad)
		assert.Error(t, err, "config %+v should be rejected", bad)
	}
}

func TestNewLogger_JSON(t *testing.T) {
	buf := &SafeBuffer{}
	logger := newLogger("warn", "json", buf)

	logger.Info("hidden")
	logger.Warn("shown", "path", dbus.ObjectPath("/a"))

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown","path":"/a"`)
}
