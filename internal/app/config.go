package app

import (
	"errors"
	"strings"
)

// Config holds all the necessary configuration for an App instance to run.
// Fields are read from the environment first and may be overridden by flags.
type Config struct {
	Module        string `env:"KICKBUS_MODULE"     envDefault:"bar"`
	Bus           string `env:"KICKBUS_BUS"        envDefault:"session"`
	KickstartPath string `env:"KICKBUS_KICKSTART"`

	LogFormat string `env:"KICKBUS_LOG_FORMAT" envDefault:"text"`
	LogLevel  string `env:"KICKBUS_LOG_LEVEL"  envDefault:"info"`
}

func NewConfig(cfg Config) (*Config, error) {
	if cfg.Module == "" {
		return nil, errors.New("Module is a required configuration field and cannot be empty")
	}
	if cfg.Bus == "" {
		return nil, errors.New("Bus is a required configuration field and cannot be empty")
	}

	cfg.LogFormat = strings.ToLower(cfg.LogFormat)
	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		return nil, errors.New("invalid log-format: must be 'text' or 'json'")
	}

	cfg.LogLevel = strings.ToLower(cfg.LogLevel)
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return nil, errors.New("invalid log-level: must be 'debug', 'info', 'warn', or 'error'")
	}

	return &cfg, nil
}
