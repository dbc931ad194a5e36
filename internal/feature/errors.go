package feature

import (
	"errors"
	"fmt"
	"strings"
)

// Feature runner errors.
var (
	// ErrNilFeature is returned when registering a nil feature.
	ErrNilFeature = errors.New("feature is nil")

	// ErrInvalidFeatureName is returned for names that cannot be used as a bus namespace.
	ErrInvalidFeatureName = errors.New("invalid feature name")

	// ErrDuplicateFeature is returned when two features share a name.
	ErrDuplicateFeature = errors.New("feature already registered")

	// ErrDependencyNotFound is returned when a dependency is not registered.
	ErrDependencyNotFound = errors.New("feature dependency not found")

	// ErrCyclicDependency is returned when features have circular dependencies.
	ErrCyclicDependency = errors.New("cyclic feature dependency detected")

	// ErrDependencyFailed is recorded for features whose dependency did not install.
	ErrDependencyFailed = errors.New("feature dependency failed to install")

	// ErrInstallTimeout is recorded when Install runs past the configured timeout.
	ErrInstallTimeout = errors.New("feature install timed out")

	// ErrInstallPanic is recorded when Install or Uninstall panics.
	ErrInstallPanic = errors.New("feature panicked")
)

// DependencyError reports a missing or cyclic dependency found while
// resolving the install order. No feature has been installed when it is
// returned.
type DependencyError struct {
	// Feature is the feature whose dependency could not be satisfied.
	Feature string

	// Dependency is the missing dependency, if any.
	Dependency string

	// Cycle is the dependency path that closes a cycle, if any.
	Cycle []string

	// Err is ErrDependencyNotFound or ErrCyclicDependency.
	Err error
}

func (e *DependencyError) Error() string {
	if len(e.Cycle) > 0 {
		return fmt.Sprintf("feature %q: %v: %s", e.Feature, e.Err, strings.Join(e.Cycle, " -> "))
	}
	return fmt.Sprintf("feature %q depends on %q: %v", e.Feature, e.Dependency, e.Err)
}

// Unwrap returns the underlying error.
func (e *DependencyError) Unwrap() error {
	return e.Err
}

// InstallError wraps the failure of one feature's Install.
type InstallError struct {
	Feature string
	Err     error
}

func (e *InstallError) Error() string {
	return fmt.Sprintf("install feature %q: %v", e.Feature, e.Err)
}

// Unwrap returns the underlying error.
func (e *InstallError) Unwrap() error {
	return e.Err
}

// UninstallError wraps the failure of one feature's teardown.
type UninstallError struct {
	Feature string
	Err     error
}

func (e *UninstallError) Error() string {
	return fmt.Sprintf("uninstall feature %q: %v", e.Feature, e.Err)
}

// Unwrap returns the underlying error.
func (e *UninstallError) Unwrap() error {
	return e.Err
}

// panicError carries a value recovered from a feature.
type panicError struct {
	value any
}

func (e *panicError) Error() string {
	return fmt.Sprintf("%v: %v", ErrInstallPanic, e.value)
}

func (e *panicError) Is(target error) bool {
	return target == ErrInstallPanic
}
