package event

import (
	"errors"
	"fmt"
)

// Sentinel errors for the event bus.
var (
	// ErrBusDestroyed is returned when a destroyed bus is used.
	ErrBusDestroyed = errors.New("event bus has been destroyed")

	// ErrScopeDestroyed is returned when a destroyed scoped bus is used.
	ErrScopeDestroyed = errors.New("scoped event bus has been destroyed")

	// ErrNilHandler is returned when a nil handler is provided.
	ErrNilHandler = errors.New("handler cannot be nil")

	// ErrNilBus is returned when a scoped bus is created without a global bus.
	ErrNilBus = errors.New("global event bus is required")

	// ErrInvalidNamespace is returned for an empty namespace or one containing "/".
	ErrInvalidNamespace = errors.New("invalid namespace")

	// ErrInvalidEventName matches every InvalidEventNameError.
	ErrInvalidEventName = errors.New("invalid event name")

	// ErrUnregisteredEvent matches every UnregisteredEventError.
	ErrUnregisteredEvent = errors.New("unregistered global event")

	// ErrHandlerPanic matches every PanicError.
	ErrHandlerPanic = errors.New("handler panicked")

	// ErrCleanupPanic wraps a panic raised by a Disposer cleanup func.
	ErrCleanupPanic = errors.New("cleanup panicked")

	// ErrPayloadType is returned by typed handlers receiving an unexpected payload.
	ErrPayloadType = errors.New("unexpected payload type")
)

// InvalidEventNameError reports a name that fails the three-segment grammar.
type InvalidEventNameError struct {
	Name string
}

func (e *InvalidEventNameError) Error() string {
	return fmt.Sprintf("invalid event name %q: expected module:action:status or @namespace/module:action:status", e.Name)
}

// Is allows errors.Is to match ErrInvalidEventName.
func (e *InvalidEventNameError) Is(target error) bool {
	return target == ErrInvalidEventName
}

// UnregisteredEventError reports a global name missing from the allowlist.
type UnregisteredEventError struct {
	Name string
}

func (e *UnregisteredEventError) Error() string {
	return fmt.Sprintf("global event %q is not registered in the allowlist", e.Name)
}

// Is allows errors.Is to match ErrUnregisteredEvent.
func (e *UnregisteredEventError) Is(target error) bool {
	return target == ErrUnregisteredEvent
}

// HandlerError wraps an error returned by a handler.
type HandlerError struct {
	// SubscriberID is the ID of the subscription whose handler failed.
	SubscriberID string

	// Event is the event name being delivered.
	Event string

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *HandlerError) Error() string {
	return "handler error for subscriber " + e.SubscriberID + " on event " + e.Event + ": " + e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *HandlerError) Unwrap() error {
	return e.Err
}

// PanicError wraps a panic value recovered from a handler.
type PanicError struct {
	// SubscriberID is the ID of the subscription whose handler panicked.
	SubscriberID string

	// Event is the event name being delivered.
	Event string

	// Value is the value passed to panic().
	Value any

	// Stack is the stack trace at the time of the panic.
	Stack string
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("handler panic for subscriber %s on event %s: %v", e.SubscriberID, e.Event, e.Value)
}

// Is allows errors.Is to match PanicError with ErrHandlerPanic.
func (e *PanicError) Is(target error) bool {
	return target == ErrHandlerPanic
}

// PayloadTypeError is returned by typed handlers when the payload has another type.
type PayloadTypeError struct {
	Event    string
	Expected string
	Actual   string
}

func (e *PayloadTypeError) Error() string {
	return fmt.Sprintf("event %s: expected payload of type %s, got %s", e.Event, e.Expected, e.Actual)
}

// Is allows errors.Is to match ErrPayloadType.
func (e *PayloadTypeError) Is(target error) bool {
	return target == ErrPayloadType
}
