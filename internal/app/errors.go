package app

import (
	"errors"
	"fmt"
)

// Application errors.
var (
	// ErrAlreadyRunning indicates Start was called twice.
	ErrAlreadyRunning = errors.New("application already running")

	// ErrNotRunning indicates Shutdown was called before Start.
	ErrNotRunning = errors.New("application not running")

	// ErrShutDown indicates the application was already shut down.
	ErrShutDown = errors.New("application has been shut down")
)

// InitError represents a bootstrap failure in one component.
type InitError struct {
	Component string
	Err       error
}

func (e *InitError) Error() string {
	return fmt.Sprintf("init %s: %v", e.Component, e.Err)
}

// Unwrap returns the underlying error.
func (e *InitError) Unwrap() error {
	return e.Err
}
