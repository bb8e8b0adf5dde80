package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/specialistvlad/kickbus/internal/bus"
	"github.com/specialistvlad/kickbus/internal/ctxlog"
	"github.com/specialistvlad/kickbus/internal/kickstart"
	"github.com/specialistvlad/kickbus/internal/module"
	"github.com/specialistvlad/kickbus/internal/registry"
)

// Dialer opens the bus connection the module is published on.
type Dialer func(ctx context.Context, address string, logger *slog.Logger) (bus.Bus, error)

// DialBus connects to a real message bus.
func DialBus(ctx context.Context, address string, logger *slog.Logger) (bus.Bus, error) {
	conn, err := bus.Connect(ctx, address, logger)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW     io.Writer
	logger   *slog.Logger
	registry *registry.Registry
	config   *Config
	dial     Dialer
}

// NewApp is the constructor for the main application. It returns a fully
// initialized App instance with its own isolated logger and registry. When
// no modules are given, the compiled-in modules are registered.
func NewApp(outW io.Writer, cfg *Config, dial Dialer, modules ...registry.Module) *App {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, outW)
	logger.Debug("Logger configured successfully.")

	if len(modules) == 0 {
		modules = coreModules
	}
	reg := newRegistry(modules)
	logger.Debug("All modules registered.", "count", len(modules), "names", reg.Names())

	return &App{
		outW:     outW,
		logger:   logger,
		registry: reg,
		config:   cfg,
		dial:     dial,
	}
}

// Registry returns the application's registry. This is primarily for testing.
func (a *App) Registry() *registry.Registry {
	return a.registry
}

// Run publishes the configured module and serves it until the module quits
// or ctx is cancelled, whichever comes first.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.With(ctxlog.WithLogger(ctx, a.logger), "module", a.config.Module)
	logger := ctxlog.FromContext(ctx)
	logger.Debug("App.Run method started.")

	newModule, err := a.registry.Lookup(a.config.Module)
	if err != nil {
		return err
	}

	conn, err := a.dial(ctx, a.config.Bus, a.logger)
	if err != nil {
		return fmt.Errorf("failed to connect to the %s bus: %w", a.config.Bus, err)
	}
	defer func() {
		if err := conn.Close(); err != nil {
			logger.Warn("Failed to close the bus connection.", "error", err)
		}
	}()

	svc := newModule(conn, a.logger)
	if err := svc.Publish(); err != nil {
		return fmt.Errorf("failed to publish module %s: %w", a.config.Module, err)
	}

	if a.config.KickstartPath != "" {
		if err := readKickstartFile(svc, a.config.KickstartPath); err != nil {
			return errors.Join(err, stop(ctx, svc))
		}
		logger.Info("Kickstart file read.", "path", a.config.KickstartPath)
	}

	logger.Info("Module is running.")
	select {
	case <-svc.Done():
		logger.Info("Module quit.")
		return nil
	case <-ctx.Done():
		logger.Info("Shutdown requested.", "reason", context.Cause(ctx))
	}
	return stop(ctx, svc)
}

func readKickstartFile(svc module.Service, path string) error {
	text, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read kickstart file: %w", err)
	}

	if err := svc.ReadKickstart(string(text)); err != nil {
		var parseErr *kickstart.ParseError
		if errors.As(err, &parseErr) {
			return fmt.Errorf("%s:%d: %w", path, parseErr.Line, err)
		}
		return fmt.Errorf("failed to read kickstart file %s: %w", path, err)
	}
	return nil
}

// stop stops svc unless it has already quit on its own.
func stop(ctx context.Context, svc module.Service) error {
	err := svc.Stop()
	if errors.Is(err, module.ErrInvalidState) {
		ctxlog.FromContext(ctx).Debug("Module already stopped.")
		return nil
	}
	return err
}
