package script

import (
	"errors"
	"fmt"
	"strings"
)

// Script feature errors.
var (
	// ErrInvalidManifest matches every ManifestError.
	ErrInvalidManifest = errors.New("invalid feature manifest")

	// ErrStateClosed is returned when using a closed Lua state.
	ErrStateClosed = errors.New("lua state is closed")

	// ErrNoInstall is returned when a script does not define install().
	ErrNoInstall = errors.New("script does not define install()")

	// ErrNotInstalled is returned by operations that need an installed feature.
	ErrNotInstalled = errors.New("script feature is not installed")
)

// ManifestError lists the problems found in a feature.yaml.
type ManifestError struct {
	Path     string
	Problems []string
	Err      error
}

func (e *ManifestError) Error() string {
	if len(e.Problems) > 0 {
		return fmt.Sprintf("manifest %s: %s", e.Path, strings.Join(e.Problems, "; "))
	}
	return fmt.Sprintf("manifest %s: %v", e.Path, e.Err)
}

// Unwrap returns the underlying error.
func (e *ManifestError) Unwrap() error {
	return e.Err
}

// Is allows errors.Is to match ErrInvalidManifest.
func (e *ManifestError) Is(target error) bool {
	return target == ErrInvalidManifest
}

// ScriptError wraps an error raised while running Lua code.
type ScriptError struct {
	Feature string
	Func    string
	Err     error
}

func (e *ScriptError) Error() string {
	return fmt.Sprintf("script %s: %s: %v", e.Feature, e.Func, e.Err)
}

// Unwrap returns the underlying error.
func (e *ScriptError) Unwrap() error {
	return e.Err
}
