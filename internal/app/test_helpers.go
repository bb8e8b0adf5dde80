package app

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"sync"
	"testing"

	"github.com/specialistvlad/kickbus/internal/bus"
	"github.com/specialistvlad/kickbus/internal/registry"
)

// SafeBuffer is a thread-safe buffer for capturing log output in tests.
type SafeBuffer struct {
	b  bytes.Buffer
	mu sync.Mutex
}

func (b *SafeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.Write(p)
}

func (b *SafeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.String()
}

// MemoryDialer returns a Dialer connecting to memBus.
func MemoryDialer(memBus *bus.MemoryBus) Dialer {
	return func(context.Context, string, *slog.Logger) (bus.Bus, error) {
		return memBus.Connect(), nil
	}
}

// SetupAppTest creates a new app instance on an in-memory bus for system
// testing.
func SetupAppTest(t *testing.T, cfg *Config, modules ...registry.Module) (*App, *bus.MemoryBus, *SafeBuffer) {
	t.Helper()

	logBuffer := &SafeBuffer{}
	memBus := bus.NewMemoryBus()
	cfg.LogLevel = "debug"
	if cfg.LogFormat == "" {
		cfg.LogFormat = "text"
	}
	testApp := NewApp(logBuffer, cfg, MemoryDialer(memBus), modules...)

	t.Cleanup(func() {
		if os.Getenv("KICKBUS_TEST_LOGS") == "true" {
			t.Logf("--- Full Log Output for %s ---\n%s", t.Name(), logBuffer.String())
		}
	})

	return testApp, memBus, logBuffer
}
