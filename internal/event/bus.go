package event

import (
	"fmt"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/dshills/pdfdesk/internal/event/name"
	"github.com/dshills/pdfdesk/internal/logging"
)

// Bus is the process-wide publish/subscribe hub.
//
// Emission is synchronous: Emit calls every handler for the name in
// subscription order on the caller's goroutine and returns once they have
// all run. A handler that emits re-enters dispatch depth-first. The
// subscriber list is snapshotted when Emit starts, so handlers added during
// dispatch are not called for the in-flight emission and handlers removed
// during dispatch are skipped if they have not run yet.
//
// Bus is safe for concurrent use; handlers are always called outside locks.
type Bus struct {
	// Subscription management
	subs *registry

	// Validation
	allowlist  *Allowlist
	validation ValidationMode

	logger  logging.Logger
	metrics *Metrics

	destroyed atomic.Bool

	// Stats
	emitted       atomic.Uint64
	delivered     atomic.Uint64
	handlerErrors atomic.Uint64
	handlerPanics atomic.Uint64
	rejected      atomic.Uint64
}

// NewBus creates a new event bus with the given options.
func NewBus(opts ...BusOption) *Bus {
	config := defaultBusConfig()
	for _, opt := range opts {
		opt(&config)
	}

	return &Bus{
		subs:       newRegistry(),
		allowlist:  config.allowlist,
		validation: config.validation,
		logger:     config.logger.WithComponent("event-bus"),
		metrics:    config.metrics,
	}
}

// On registers h to run whenever eventName is emitted.
func (b *Bus) On(eventName string, h Handler, opts ...SubscribeOption) (Unsubscribe, error) {
	sub, err := b.subscribe(eventName, h, opts...)
	if err != nil {
		return nil, err
	}
	return b.unsubscriber(sub), nil
}

// OnFunc is a convenience wrapper around On for function handlers.
func (b *Bus) OnFunc(eventName string, fn HandlerFunc, opts ...SubscribeOption) (Unsubscribe, error) {
	return b.On(eventName, fn, opts...)
}

// Once registers h for a single delivery. The returned Unsubscribe stays
// valid, as a no-op, after the delivery.
func (b *Bus) Once(eventName string, h Handler, opts ...SubscribeOption) (Unsubscribe, error) {
	return b.On(eventName, h, append(opts, WithOnce())...)
}

// Off removes every subscription on eventName registered with h.
// Only comparable, non-func handlers can be matched; func handlers are
// removed with their Unsubscribe or with OffID. Removing an unknown handler
// is a no-op. Returns the number removed.
func (b *Bus) Off(eventName string, h Handler) int {
	n := b.subs.removeHandler(eventName, h)
	if n > 0 {
		b.metrics.subscriptionsChanged(-n)
	}
	return n
}

// OffID removes the subscriptions on eventName made with subscriberID.
// Returns the number removed.
func (b *Bus) OffID(eventName, subscriberID string) int {
	n := b.subs.removeID(eventName, subscriberID)
	if n > 0 {
		b.metrics.subscriptionsChanged(-n)
	}
	return n
}

// Emit delivers data to every subscriber of eventName.
// It reports whether at least one subscriber existed.
func (b *Bus) Emit(eventName string, data any) (bool, error) {
	return b.EmitWithMetadata(eventName, data, Metadata{})
}

// EmitWithMetadata is Emit with caller-supplied metadata. ID, Timestamp and
// Event are filled in by the bus when empty.
func (b *Bus) EmitWithMetadata(eventName string, data any, meta Metadata) (bool, error) {
	if b.destroyed.Load() {
		return false, ErrBusDestroyed
	}
	if err := b.validate(eventName); err != nil {
		return false, err
	}

	b.emitted.Add(1)
	b.metrics.emitted(eventName)

	subs := b.subs.snapshot(eventName)
	if len(subs) == 0 {
		return false, nil
	}

	if meta.ID == "" {
		meta.ID = uuid.NewString()
	}
	if meta.Timestamp.IsZero() {
		meta.Timestamp = time.Now()
	}
	meta.Event = eventName

	for _, sub := range subs {
		if !sub.IsActive() {
			continue
		}
		if sub.config.filter != nil && !sub.config.filter(data, meta) {
			continue
		}
		if !sub.claimOnce() {
			continue
		}
		if sub.config.once {
			b.release(sub)
		}

		m := meta
		m.SubscriberID = sub.id
		b.invoke(sub, data, m)
	}

	return true, nil
}

// Destroy clears every subscription. Later calls return ErrBusDestroyed.
func (b *Bus) Destroy() {
	if b.destroyed.Swap(true) {
		return
	}
	n := b.subs.count()
	b.subs.clear()
	b.metrics.subscriptionsChanged(-n)
}

// IsDestroyed returns true after Destroy.
func (b *Bus) IsDestroyed() bool {
	return b.destroyed.Load()
}

// ListenerCount returns the number of subscriptions on eventName.
func (b *Bus) ListenerCount(eventName string) int {
	return b.subs.countByEvent(eventName)
}

// Events returns the event names that currently have subscribers, sorted.
func (b *Bus) Events() []string {
	return b.subs.events()
}

// Allowlist returns the allowlist the bus validates against.
func (b *Bus) Allowlist() *Allowlist {
	return b.allowlist
}

// Validation returns the configured validation mode.
func (b *Bus) Validation() ValidationMode {
	return b.validation
}

// Stats returns current bus statistics.
func (b *Bus) Stats() Stats {
	perEvent := b.subs.perEvent()
	total := 0
	for _, n := range perEvent {
		total += n
	}
	return Stats{
		Events:        len(perEvent),
		Subscriptions: total,
		PerEvent:      perEvent,
		Emitted:       b.emitted.Load(),
		Delivered:     b.delivered.Load(),
		HandlerErrors: b.handlerErrors.Load(),
		HandlerPanics: b.handlerPanics.Load(),
		Rejected:      b.rejected.Load(),
	}
}

// subscribe validates and registers a subscription.
func (b *Bus) subscribe(eventName string, h Handler, opts ...SubscribeOption) (*subscription, error) {
	if b.destroyed.Load() {
		return nil, ErrBusDestroyed
	}
	if h == nil {
		return nil, ErrNilHandler
	}
	if err := b.validate(eventName); err != nil {
		return nil, err
	}

	sub := newSubscription(eventName, h, opts...)
	b.subs.add(sub)
	b.metrics.subscriptionsChanged(1)
	return sub, nil
}

// unsubscriber returns the Unsubscribe func for sub.
func (b *Bus) unsubscriber(sub *subscription) Unsubscribe {
	return func() {
		b.release(sub)
	}
}

// release cancels sub and removes it. Safe to call repeatedly.
func (b *Bus) release(sub *subscription) {
	sub.cancel()
	if b.subs.remove(sub) {
		b.metrics.subscriptionsChanged(-1)
	}
}

// validate applies the grammar check and, for global names, the allowlist.
func (b *Bus) validate(eventName string) error {
	if !name.IsValid(eventName) {
		b.rejected.Add(1)
		b.metrics.rejectedName("invalid_name")
		return &InvalidEventNameError{Name: eventName}
	}
	if name.IsNamespaced(eventName) || b.validation == ValidationOff {
		return nil
	}
	if b.allowlist.IsGlobalEventAllowed(eventName) {
		return nil
	}

	if b.validation == ValidationWarn {
		b.logger.Warn("unregistered global event", "event", eventName)
		return nil
	}
	b.rejected.Add(1)
	b.metrics.rejectedName("unregistered")
	return &UnregisteredEventError{Name: eventName}
}

// invoke runs one handler with panic recovery. Failures are logged and
// counted, never returned.
func (b *Bus) invoke(sub *subscription, data any, meta Metadata) {
	defer func() {
		if r := recover(); r != nil {
			b.handlerPanics.Add(1)
			b.metrics.handlerFailed("panic")
			perr := &PanicError{
				SubscriberID: sub.id,
				Event:        sub.event,
				Value:        r,
				Stack:        string(debug.Stack()),
			}
			b.logger.Error("event handler panicked",
				"event", sub.event,
				"subscriber", sub.id,
				"panic", fmt.Sprint(r),
				"stack", perr.Stack,
			)
		}
	}()

	if err := sub.handler.Handle(data, meta); err != nil {
		b.handlerErrors.Add(1)
		b.metrics.handlerFailed("error")
		herr := &HandlerError{SubscriberID: sub.id, Event: sub.event, Err: err}
		b.logger.Error("event handler failed", "event", sub.event, "subscriber", sub.id, "error", herr)
		return
	}
	b.delivered.Add(1)
}
