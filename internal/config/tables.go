package config

import (
	"fmt"
	"os"
)

// LoadEventTables reads extra event-name tables. Each file is a TOML or
// YAML document of arbitrarily nested maps and lists; its string values
// become allowlist entries when passed to event.BuildAllowlist.
func LoadEventTables(paths ...string) ([]any, error) {
	tables := make([]any, 0, len(paths))
	for _, path := range paths {
		format, err := FormatOf(path)
		if err != nil {
			return nil, err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading event table %s: %w", path, err)
		}
		table, err := decodeMap(path, format, data)
		if err != nil {
			return nil, err
		}
		tables = append(tables, table)
	}
	return tables, nil
}

// EventTablePaths returns the configured table paths resolved against the
// configuration file's directory.
func (c *Config) EventTablePaths() []string {
	paths := make([]string, 0, len(c.Bus.EventTables))
	for _, p := range c.Bus.EventTables {
		paths = append(paths, c.Resolve(p))
	}
	return paths
}
