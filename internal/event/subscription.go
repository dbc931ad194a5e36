package event

import (
	"reflect"
	"sync/atomic"

	"github.com/google/uuid"
)

// subscription is a single (event name, handler, options) registration.
type subscription struct {
	id       string
	event    string
	handler  Handler
	identity any
	config   subscriptionConfig

	cancelled atomic.Bool
	fired     atomic.Bool
}

// newSubscription creates a new subscription.
func newSubscription(eventName string, h Handler, opts ...SubscribeOption) *subscription {
	var config subscriptionConfig
	for _, opt := range opts {
		opt(&config)
	}
	if config.subscriberID == "" {
		config.subscriberID = uuid.NewString()
	}

	return &subscription{
		id:       config.subscriberID,
		event:    eventName,
		handler:  h,
		identity: handlerIdentity(h),
		config:   config,
	}
}

// ID returns the subscriber ID.
func (s *subscription) ID() string {
	return s.id
}

// Event returns the subscribed event name.
func (s *subscription) Event() string {
	return s.event
}

// IsActive returns true while the subscription can still receive events.
func (s *subscription) IsActive() bool {
	return !s.cancelled.Load()
}

// cancel marks the subscription cancelled. It returns false if it already was.
func (s *subscription) cancel() bool {
	return s.cancelled.CompareAndSwap(false, true)
}

// claimOnce reports whether this delivery is the single delivery of a once
// subscription. Always true for regular subscriptions.
func (s *subscription) claimOnce() bool {
	if !s.config.once {
		return true
	}
	return s.fired.CompareAndSwap(false, true)
}

// matches reports whether h is the handler this subscription was created with.
func (s *subscription) matches(h Handler) bool {
	id := handlerIdentity(h)
	return id != nil && s.identity == id
}

// handlerIdentity returns a comparable key for h, or nil when h has no
// stable identity. Funcs have none: method values on different receivers
// share one code pointer. Subscriptions made with funcs are removed with
// their Unsubscribe or by subscriber ID.
func handlerIdentity(h Handler) any {
	if h == nil {
		return nil
	}
	t := reflect.TypeOf(h)
	if t.Kind() == reflect.Func || !t.Comparable() {
		return nil
	}
	return h
}
