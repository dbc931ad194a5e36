package container

import (
	"errors"
	"fmt"
)

// Sentinel errors for the container.
var (
	// ErrDuplicateService matches every DuplicateServiceError.
	ErrDuplicateService = errors.New("service already registered")

	// ErrServiceNotRegistered matches every ServiceNotRegisteredError.
	ErrServiceNotRegistered = errors.New("service not registered")

	// ErrServiceConstruction matches every ServiceConstructionError.
	ErrServiceConstruction = errors.New("failed to create service instance")

	// ErrCircularDependency is wrapped when a key is needed while it is being built.
	ErrCircularDependency = errors.New("circular dependency")

	// ErrServiceType is returned by Resolve when the instance has another type.
	ErrServiceType = errors.New("unexpected service type")

	// ErrEmptyKey is returned when registering under an empty key.
	ErrEmptyKey = errors.New("service key cannot be empty")

	// ErrNilProvider is returned when registering a nil constructor or factory.
	ErrNilProvider = errors.New("service provider cannot be nil")
)

// DuplicateServiceError reports a second registration of Key on one container.
type DuplicateServiceError struct {
	Key       string
	Container string
}

func (e *DuplicateServiceError) Error() string {
	return fmt.Sprintf("service %q is already registered in container %q", e.Key, e.Container)
}

// Is allows errors.Is to match ErrDuplicateService.
func (e *DuplicateServiceError) Is(target error) bool {
	return target == ErrDuplicateService
}

// ServiceNotRegisteredError reports a lookup miss across the whole ancestor chain.
type ServiceNotRegisteredError struct {
	Key       string
	Container string
}

func (e *ServiceNotRegisteredError) Error() string {
	return fmt.Sprintf("service %q is not registered in container %q or its parents", e.Key, e.Container)
}

// Is allows errors.Is to match ErrServiceNotRegistered.
func (e *ServiceNotRegisteredError) Is(target error) bool {
	return target == ErrServiceNotRegistered
}

// ServiceConstructionError wraps a failure raised while building Key.
type ServiceConstructionError struct {
	Key       string
	Container string
	Err       error
}

func (e *ServiceConstructionError) Error() string {
	return fmt.Sprintf("failed to create instance of %q in container %q: %v", e.Key, e.Container, e.Err)
}

// Unwrap returns the underlying error.
func (e *ServiceConstructionError) Unwrap() error {
	return e.Err
}

// Is allows errors.Is to match ErrServiceConstruction.
func (e *ServiceConstructionError) Is(target error) bool {
	return target == ErrServiceConstruction
}

// panicError carries a value recovered from a provider.
type panicError struct {
	value any
}

func (e *panicError) Error() string {
	return fmt.Sprintf("provider panicked: %v", e.value)
}
