package cli

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/specialistvlad/kickbus/internal/app"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// Parse processes the environment and command-line arguments, in that order.
// It returns a populated Config, a boolean indicating if the program should
// exit cleanly, or an ExitError. available lists the modules printed by
// -list.
func Parse(args []string, output io.Writer, available []string) (*app.Config, bool, error) {
	slog.Debug("CLI parser started.")

	var cfg app.Config
	if err := env.Parse(&cfg); err != nil {
		return nil, false, &ExitError{Code: 2, Message: fmt.Sprintf("parse env: %v", err)}
	}

	flagSet := flag.NewFlagSet("kickbus", flag.ContinueOnError)
	flagSet.SetOutput(output)
	flagSet.Usage = func() {
		fmt.Fprint(output, `
kickbus - Serves an installer kickstart module on a message bus.

Usage:
  kickbus [options]

Every option can also be set through the environment variable shown in
brackets. Flags take precedence.

Options:
`)
		flagSet.PrintDefaults()
	}

	flagSet.StringVar(&cfg.Module, "module", cfg.Module, "Name of the module to run. [KICKBUS_MODULE]")
	flagSet.StringVar(&cfg.Bus, "bus", cfg.Bus, "Bus to publish on: 'session', 'system' or a bus address. [KICKBUS_BUS]")
	flagSet.StringVar(&cfg.KickstartPath, "kickstart", cfg.KickstartPath, "Kickstart file read after the module is published. [KICKBUS_KICKSTART]")
	flagSet.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "Log output format. Options: 'text' or 'json'. [KICKBUS_LOG_FORMAT]")
	flagSet.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Set the logging level. Options: 'debug', 'info', 'warn', 'error'. [KICKBUS_LOG_LEVEL]")
	list := flagSet.Bool("list", false, "Print the available modules and exit.")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	if flagSet.NArg() > 0 {
		return nil, false, &ExitError{Code: 2, Message: fmt.Sprintf("unexpected arguments: %s", strings.Join(flagSet.Args(), " "))}
	}
	slog.Debug("Arguments parsed successfully.")

	if *list {
		for _, name := range available {
			fmt.Fprintln(output, name)
		}
		return nil, true, nil
	}

	config, err := app.NewConfig(cfg)
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	slog.Debug("CLI parser finished successfully.", "config", config)
	return config, false, nil
}
