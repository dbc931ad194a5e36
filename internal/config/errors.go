package config

import (
	"errors"
	"fmt"
	"strings"
)

// Configuration errors.
var (
	// ErrUnsupportedFormat is returned for files that are neither TOML nor YAML.
	ErrUnsupportedFormat = errors.New("unsupported configuration format")

	// ErrInvalidConfig matches every ValidationError.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrWatcherClosed is returned when using a closed watcher.
	ErrWatcherClosed = errors.New("watcher is closed")
)

// ParseError reports a file that could not be decoded.
type ParseError struct {
	Path    string
	Message string
	Err     error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %s", e.Path, e.Message)
}

// Unwrap returns the underlying error.
func (e *ParseError) Unwrap() error {
	return e.Err
}

// ValidationError lists every problem found in a configuration.
type ValidationError struct {
	Source   string
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid configuration %s: %s", e.Source, strings.Join(e.Problems, "; "))
}

// Is allows errors.Is to match ErrInvalidConfig.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidConfig
}
