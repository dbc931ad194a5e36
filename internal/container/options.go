package container

import "github.com/dshills/pdfdesk/internal/logging"

// Lifetime selects how often a service is built.
type Lifetime int

const (
	// Singleton services are built on first Get and cached by the
	// container that owns the registration.
	Singleton Lifetime = iota

	// Transient services are built on every Get.
	Transient
)

// String returns the lifetime name.
func (l Lifetime) String() string {
	switch l {
	case Singleton:
		return "singleton"
	case Transient:
		return "transient"
	default:
		return "unknown"
	}
}

// Constructor builds a service from its declared dependencies, in the order
// given to WithDependencies. Unregistered dependencies arrive as nil.
type Constructor func(deps []any) (any, error)

// Factory builds a service with access to the container.
type Factory func(c *Container) (any, error)

// RegisterOption configures a registration.
type RegisterOption func(*registerConfig)

type registerConfig struct {
	lifetime     Lifetime
	dependencies []string
}

// WithScope sets the service lifetime. The default is Singleton.
func WithScope(l Lifetime) RegisterOption {
	return func(c *registerConfig) {
		c.lifetime = l
	}
}

// WithDependencies declares the keys resolved and passed to a Constructor.
func WithDependencies(keys ...string) RegisterOption {
	return func(c *registerConfig) {
		c.dependencies = append(c.dependencies, keys...)
	}
}

// Option configures a Container.
type Option func(*Container)

// WithLogger sets the logger used for resolution diagnostics.
// Child scopes inherit it.
func WithLogger(l logging.Logger) Option {
	return func(c *Container) {
		c.core.logger = logging.OrNop(l)
	}
}
