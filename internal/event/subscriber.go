package event

import "fmt"

// Subscribe registers a typed handler. Payloads of another type are reported
// as a PayloadTypeError through the bus's handler error path; a nil payload
// is delivered as the zero value of T.
func Subscribe[T any](s Subscriber, eventName string, fn func(payload T, meta Metadata) error, opts ...SubscribeOption) (Unsubscribe, error) {
	return s.On(eventName, Typed(fn), opts...)
}

// SubscribeOnce is Subscribe for a single delivery.
func SubscribeOnce[T any](s Subscriber, eventName string, fn func(payload T, meta Metadata) error, opts ...SubscribeOption) (Unsubscribe, error) {
	return s.Once(eventName, Typed(fn), opts...)
}

// Typed adapts a payload-typed func to a Handler. It is what Subscribe
// uses and suits subscriptions made through OnGlobal.
func Typed[T any](fn func(payload T, meta Metadata) error) HandlerFunc {
	return func(data any, meta Metadata) error {
		if data == nil {
			var zero T
			return fn(zero, meta)
		}
		payload, ok := data.(T)
		if !ok {
			var zero T
			return &PayloadTypeError{
				Event:    meta.Event,
				Expected: fmt.Sprintf("%T", zero),
				Actual:   fmt.Sprintf("%T", data),
			}
		}
		return fn(payload, meta)
	}
}
