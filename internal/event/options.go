package event

import "github.com/dshills/pdfdesk/internal/logging"

// BusOption configures an event Bus.
type BusOption func(*busConfig)

// busConfig contains configuration for the event bus.
type busConfig struct {
	// allowlist holds the permitted global event names.
	allowlist *Allowlist

	// validation selects how unregistered global names are treated.
	validation ValidationMode

	// logger receives handler failures and validation warnings.
	logger logging.Logger

	// metrics is an optional prometheus collector set.
	metrics *Metrics
}

// defaultBusConfig returns the default configuration: strict validation
// against an empty allowlist.
func defaultBusConfig() busConfig {
	return busConfig{
		allowlist:  BuildAllowlist(),
		validation: ValidationStrict,
		logger:     logging.Nop(),
	}
}

// WithAllowlist sets the allowlist consulted for global event names.
func WithAllowlist(a *Allowlist) BusOption {
	return func(c *busConfig) {
		if a != nil {
			c.allowlist = a
		}
	}
}

// WithValidation sets the validation mode.
func WithValidation(mode ValidationMode) BusOption {
	return func(c *busConfig) {
		c.validation = mode
	}
}

// WithLogger sets the logger.
func WithLogger(l logging.Logger) BusOption {
	return func(c *busConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMetrics attaches prometheus metrics to the bus.
func WithMetrics(m *Metrics) BusOption {
	return func(c *busConfig) {
		c.metrics = m
	}
}

// SubscribeOption configures a subscription.
type SubscribeOption func(*subscriptionConfig)

// subscriptionConfig contains configuration for a subscription.
type subscriptionConfig struct {
	// subscriberID is a diagnostic label. Generated when empty.
	subscriberID string

	// once removes the subscription after its first delivery.
	once bool

	// filter is an optional predicate evaluated before delivery.
	filter FilterFunc
}

// WithSubscriberID sets the diagnostic subscriber label.
func WithSubscriberID(id string) SubscribeOption {
	return func(c *subscriptionConfig) {
		c.subscriberID = id
	}
}

// WithOnce sets the subscription to auto-cancel after the first event.
func WithOnce() SubscribeOption {
	return func(c *subscriptionConfig) {
		c.once = true
	}
}

// WithFilter sets a filter predicate. Filtered-out deliveries do not consume
// a once subscription.
func WithFilter(f FilterFunc) SubscribeOption {
	return func(c *subscriptionConfig) {
		c.filter = f
	}
}
