// Package config loads the TOML configuration for the reva demo and
// devtools commands.
package config

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config controls the demo runtime and its observability surfaces.
type Config struct {
	// DevtoolsAddr is the listen address for the inspection server.
	DevtoolsAddr string `toml:"devtools_addr"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `toml:"log_level"`

	// MetricsEnabled attaches the Prometheus collector.
	MetricsEnabled bool `toml:"metrics_enabled"`

	// MetricsNamespace overrides the default metrics namespace.
	MetricsNamespace string `toml:"metrics_namespace"`

	// TracingEnabled attaches the OpenTelemetry hooks.
	TracingEnabled bool `toml:"tracing_enabled"`

	// TracerName overrides the default tracer name.
	TracerName string `toml:"tracer_name"`
}

// Default returns the configuration used when no file is supplied.
func Default() Config {
	return Config{
		DevtoolsAddr:     ":6061",
		LogLevel:         "info",
		MetricsEnabled:   true,
		MetricsNamespace: "reva",
		TracingEnabled:   false,
		TracerName:       "reva",
	}
}

// Load reads a TOML file on top of the defaults. Keys absent from the file
// keep their default values; unknown keys are rejected.
func Load(path string) (Config, error) {
	cfg := Default()

	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("unknown config key %q", undecoded[0].String())
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects configurations the commands cannot run with.
func (c Config) Validate() error {
	if strings.TrimSpace(c.DevtoolsAddr) == "" {
		return fmt.Errorf("config missing devtools_addr")
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log_level %q", c.LogLevel)
	}
	if c.MetricsEnabled && strings.TrimSpace(c.MetricsNamespace) == "" {
		return fmt.Errorf("config missing metrics_namespace")
	}
	return nil
}

// SlogLevel maps LogLevel onto the slog levels. Validate guarantees the
// mapping is total.
func (c Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
