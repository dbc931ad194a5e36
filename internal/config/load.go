package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

//go:embed schema.json
var schemaJSON []byte

// Format is a configuration file format.
type Format string

// Supported formats.
const (
	FormatTOML Format = "toml"
	FormatYAML Format = "yaml"
)

// FormatOf returns the format implied by path's extension.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return FormatTOML, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
}

// Load reads the configuration at path, overlays the environment and
// validates the result. An empty path yields the defaults plus the
// environment. A path that does not exist is an error.
func Load(path string) (*Config, error) {
	return load(path, os.LookupEnv)
}

func load(path string, lookup func(string) (string, bool)) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		format, err := FormatOf(path)
		if err != nil {
			return nil, err
		}
		if err := decodeInto(cfg, path, format, data); err != nil {
			return nil, err
		}
		cfg.Path = path
	}

	if err := applyEnv(cfg, lookup); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes data in the given format on top of the defaults and
// validates it. source names the data in errors.
func Parse(data []byte, format Format, source string) (*Config, error) {
	cfg := Default()
	if err := decodeInto(cfg, source, format, data); err != nil {
		return nil, err
	}
	cfg.Path = source
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// decodeInto checks data against the schema and decodes it over cfg.
func decodeInto(cfg *Config, source string, format Format, data []byte) error {
	raw, err := decodeMap(source, format, data)
	if err != nil {
		return err
	}
	if err := validateSchema(source, raw); err != nil {
		return err
	}

	switch format {
	case FormatTOML:
		err = toml.Unmarshal(data, cfg)
	case FormatYAML:
		err = yaml.Unmarshal(data, cfg)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
	if err != nil {
		return &ParseError{Path: source, Message: err.Error(), Err: err}
	}
	return nil
}

// decodeMap decodes data into a generic map.
func decodeMap(source string, format Format, data []byte) (map[string]any, error) {
	var raw map[string]any
	var err error
	switch format {
	case FormatTOML:
		err = toml.Unmarshal(data, &raw)
	case FormatYAML:
		err = yaml.Unmarshal(data, &raw)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
	if err != nil {
		return nil, &ParseError{Path: source, Message: err.Error(), Err: err}
	}
	if raw == nil {
		raw = map[string]any{}
	}
	return raw, nil
}

// validateSchema checks raw against the embedded JSON schema.
func validateSchema(source string, raw map[string]any) error {
	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(schemaJSON),
		gojsonschema.NewGoLoader(raw),
	)
	if err != nil {
		return &ParseError{Path: source, Message: err.Error(), Err: err}
	}
	if result.Valid() {
		return nil
	}
	problems := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		problems = append(problems, e.String())
	}
	return &ValidationError{Source: source, Problems: problems}
}

// Environment variables read by Load.
const (
	EnvLogLevel        = "PDFDESK_LOG_LEVEL"
	EnvLogFile         = "PDFDESK_LOG_FILE"
	EnvBusValidation   = "PDFDESK_BUS_VALIDATION"
	EnvScriptDir       = "PDFDESK_SCRIPT_DIR"
	EnvContinueOnError = "PDFDESK_CONTINUE_ON_ERROR"
)

// applyEnv overlays PDFDESK_* variables on cfg.
func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvLogLevel); ok {
		cfg.Log.Level = v
	}
	if v, ok := lookup(EnvLogFile); ok {
		cfg.Log.File = v
	}
	if v, ok := lookup(EnvBusValidation); ok {
		cfg.Bus.Validation = v
	}
	if v, ok := lookup(EnvScriptDir); ok {
		cfg.Features.ScriptDir = v
	}
	if v, ok := lookup(EnvContinueOnError); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return &ValidationError{Source: "environment", Problems: []string{EnvContinueOnError + ": " + err.Error()}}
		}
		cfg.Features.ContinueOnError = b
	}
	return nil
}

// Resolve returns p relative to the configuration file's directory.
// Absolute paths and configurations without a file are returned unchanged.
func (c *Config) Resolve(p string) string {
	if p == "" || filepath.IsAbs(p) || c.Path == "" {
		return p
	}
	return filepath.Join(filepath.Dir(c.Path), p)
}
