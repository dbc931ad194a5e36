package config

import (
	"fmt"
	"time"

	"github.com/dshills/pdfdesk/internal/event"
	"github.com/dshills/pdfdesk/internal/logging"
)

// Config is the complete pdfdesk configuration.
type Config struct {
	Log      LogConfig     `toml:"log" yaml:"log"`
	Bus      BusConfig     `toml:"bus" yaml:"bus"`
	Features FeatureConfig `toml:"features" yaml:"features"`

	// Path is the file the configuration was loaded from, if any.
	Path string `toml:"-" yaml:"-"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level      string `toml:"level" yaml:"level"`
	Console    bool   `toml:"console" yaml:"console"`
	JSON       bool   `toml:"json" yaml:"json"`
	File       string `toml:"file" yaml:"file"`
	MaxSizeMB  int    `toml:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups" yaml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days" yaml:"max_age_days"`
	Compress   bool   `toml:"compress" yaml:"compress"`
}

// BusConfig configures the event bus.
type BusConfig struct {
	// Validation is "strict", "warn" or "off".
	Validation string `toml:"validation" yaml:"validation"`

	// EventTables are extra TOML or YAML files whose string values are
	// added to the global allowlist. Relative paths are resolved against
	// the configuration file's directory.
	EventTables []string `toml:"event_tables" yaml:"event_tables"`
}

// FeatureConfig configures the feature runner.
type FeatureConfig struct {
	ContinueOnError bool     `toml:"continue_on_error" yaml:"continue_on_error"`
	InstallTimeout  Duration `toml:"install_timeout" yaml:"install_timeout"`
	Parallel        bool     `toml:"parallel" yaml:"parallel"`

	// ScriptDir holds Lua features, one directory each. Empty disables them.
	ScriptDir string `toml:"script_dir" yaml:"script_dir"`

	// Disabled lists feature names that are not registered.
	Disabled []string `toml:"disabled" yaml:"disabled"`
}

// Duration is a time.Duration written as a string such as "5s".
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*d = 0
		return nil
	}
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Log: LogConfig{
			Level:      "info",
			Console:    true,
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
			Compress:   true,
		},
		Bus: BusConfig{
			Validation: "strict",
		},
		Features: FeatureConfig{
			InstallTimeout: Duration(10 * time.Second),
		},
	}
}

// Validate checks cross-field rules the schema cannot express.
func (c *Config) Validate() error {
	var problems []string
	if _, err := event.ParseValidationMode(c.Bus.Validation); err != nil {
		problems = append(problems, "bus.validation: "+err.Error())
	}
	if c.Features.InstallTimeout < 0 {
		problems = append(problems, "features.install_timeout: must not be negative")
	}
	if c.Log.MaxSizeMB < 0 || c.Log.MaxBackups < 0 || c.Log.MaxAgeDays < 0 {
		problems = append(problems, "log: rotation limits must not be negative")
	}
	seen := make(map[string]bool)
	for _, n := range c.Features.Disabled {
		if seen[n] {
			problems = append(problems, fmt.Sprintf("features.disabled: %q listed twice", n))
		}
		seen[n] = true
	}
	if len(problems) > 0 {
		return &ValidationError{Source: c.source(), Problems: problems}
	}
	return nil
}

// ValidationMode returns the parsed bus validation mode.
func (c *Config) ValidationMode() event.ValidationMode {
	mode, _ := event.ParseValidationMode(c.Bus.Validation)
	return mode
}

// Logging converts the log section to a logging.Config.
func (c *Config) Logging() logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Level = logging.ParseLevel(c.Log.Level)
	cfg.Console = c.Log.Console
	cfg.JSON = c.Log.JSON
	cfg.File = c.Log.File
	if c.Log.MaxSizeMB > 0 {
		cfg.MaxSizeMB = c.Log.MaxSizeMB
	}
	cfg.MaxBackups = c.Log.MaxBackups
	cfg.MaxAgeDays = c.Log.MaxAgeDays
	cfg.Compress = c.Log.Compress
	return cfg
}

// IsDisabled reports whether the named feature is disabled.
func (c *Config) IsDisabled(feature string) bool {
	for _, n := range c.Features.Disabled {
		if n == feature {
			return true
		}
	}
	return false
}

func (c *Config) source() string {
	if c.Path == "" {
		return "<defaults>"
	}
	return c.Path
}
