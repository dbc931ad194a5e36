package event

import (
	"fmt"
	"time"
)

// Metadata accompanies every delivered event.
type Metadata struct {
	// ID is a unique identifier for this emission.
	ID string

	// Timestamp is when the event was emitted.
	Timestamp time.Time

	// Event is the full event name as it was emitted on the global bus.
	Event string

	// Namespace is set by a scoped bus for local events.
	Namespace string

	// Source is set by a scoped bus for global events it emits.
	Source string

	// SubscriberID identifies the subscription receiving this delivery.
	SubscriberID string

	// Fields carries caller-supplied values.
	Fields map[string]any
}

// Field returns a caller-supplied field.
func (m Metadata) Field(key string) (any, bool) {
	v, ok := m.Fields[key]
	return v, ok
}

// WithField returns a copy of m with key set. The receiver is not modified.
func (m Metadata) WithField(key string, value any) Metadata {
	fields := make(map[string]any, len(m.Fields)+1)
	for k, v := range m.Fields {
		fields[k] = v
	}
	fields[key] = value
	m.Fields = fields
	return m
}

// Handler is the interface for event subscribers.
// A returned error is logged by the bus and never reaches the emitter.
type Handler interface {
	Handle(data any, meta Metadata) error
}

// HandlerFunc is a function adapter for Handler.
type HandlerFunc func(data any, meta Metadata) error

// Handle implements the Handler interface.
func (f HandlerFunc) Handle(data any, meta Metadata) error {
	return f(data, meta)
}

// Unsubscribe removes exactly one subscription. Calling it more than once is a no-op.
type Unsubscribe func()

// Subscriber is implemented by both Bus and ScopedBus.
type Subscriber interface {
	On(eventName string, h Handler, opts ...SubscribeOption) (Unsubscribe, error)
	Once(eventName string, h Handler, opts ...SubscribeOption) (Unsubscribe, error)
}

// Emitter is implemented by both Bus and ScopedBus.
type Emitter interface {
	Emit(eventName string, data any) (bool, error)
	EmitWithMetadata(eventName string, data any, meta Metadata) (bool, error)
}

// ValidationMode selects how the bus treats global names missing from the allowlist.
// Malformed names are rejected in every mode.
type ValidationMode int

const (
	// ValidationStrict rejects unregistered global names with UnregisteredEventError.
	ValidationStrict ValidationMode = iota

	// ValidationWarn logs unregistered global names and lets the call proceed.
	ValidationWarn

	// ValidationOff skips the allowlist check.
	ValidationOff
)

// String returns a human-readable mode name.
func (m ValidationMode) String() string {
	switch m {
	case ValidationStrict:
		return "strict"
	case ValidationWarn:
		return "warn"
	case ValidationOff:
		return "off"
	default:
		return "unknown"
	}
}

// ParseValidationMode parses "strict", "warn" or "off". Empty means strict.
func ParseValidationMode(s string) (ValidationMode, error) {
	switch s {
	case "", "strict":
		return ValidationStrict, nil
	case "warn":
		return ValidationWarn, nil
	case "off":
		return ValidationOff, nil
	default:
		return ValidationStrict, fmt.Errorf("unknown validation mode %q", s)
	}
}

// Stats contains event bus statistics.
type Stats struct {
	// Events is the number of distinct event names with subscribers.
	Events int

	// Subscriptions is the total number of live subscriptions.
	Subscriptions int

	// PerEvent maps event names to their subscription counts.
	PerEvent map[string]int

	// Emitted is the number of accepted Emit calls.
	Emitted uint64

	// Delivered is the number of handler invocations that succeeded.
	Delivered uint64

	// HandlerErrors is the number of handlers that returned errors.
	HandlerErrors uint64

	// HandlerPanics is the number of handlers that panicked.
	HandlerPanics uint64

	// Rejected is the number of On/Emit calls refused by validation.
	Rejected uint64
}
