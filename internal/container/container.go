package container

import (
	"fmt"
	"io"
	"slices"
	"sort"
	"sync"

	"go.uber.org/multierr"

	"github.com/dshills/pdfdesk/internal/logging"
)

// Container is a named, hierarchical service registry.
//
// The value handed to a Factory carries the chain of keys currently being
// resolved, so cycles through factories are detected as well. Container is
// safe for concurrent use.
type Container struct {
	core *core

	// resolving holds the keys being built by the caller, outermost first.
	resolving []string
}

// core is the state shared by every handle to one container.
type core struct {
	name   string
	parent *Container
	logger logging.Logger

	mu       sync.RWMutex
	services map[string]*service
	scopes   map[string]*Container
	built    []*service // singleton instances in build order

	handle *Container
}

// service is one registration.
type service struct {
	key          string
	lifetime     Lifetime
	dependencies []string
	constructor  Constructor
	factory      Factory

	// buildMu serializes singleton construction.
	buildMu  sync.Mutex
	instance any
	ready    bool
}

// New creates a root container.
func New(name string, opts ...Option) *Container {
	c := newContainer(name, nil, logging.Nop())
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func newContainer(name string, parent *Container, logger logging.Logger) *Container {
	c := &Container{core: &core{
		name:     name,
		parent:   parent,
		logger:   logger,
		services: make(map[string]*service),
		scopes:   make(map[string]*Container),
	}}
	c.core.handle = c
	return c
}

// Name returns the display name, "<parent>.<scope>" for child scopes.
func (c *Container) Name() string {
	return c.core.name
}

// Parent returns the parent container, or nil for a root.
func (c *Container) Parent() *Container {
	return c.core.parent
}

// Register adds a constructor-built service under key.
func (c *Container) Register(key string, ctor Constructor, opts ...RegisterOption) error {
	if ctor == nil {
		return ErrNilProvider
	}
	return c.add(key, &service{constructor: ctor}, opts)
}

// RegisterFactory adds a factory-built service under key.
func (c *Container) RegisterFactory(key string, factory Factory, opts ...RegisterOption) error {
	if factory == nil {
		return ErrNilProvider
	}
	return c.add(key, &service{factory: factory}, opts)
}

// RegisterInstance adds a pre-built singleton. Dispose does not close it.
func (c *Container) RegisterInstance(key string, instance any) error {
	return c.add(key, &service{instance: instance, ready: true}, nil)
}

func (c *Container) add(key string, svc *service, opts []RegisterOption) error {
	if key == "" {
		return ErrEmptyKey
	}
	var cfg registerConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	svc.key = key
	svc.lifetime = cfg.lifetime
	svc.dependencies = cfg.dependencies

	c.core.mu.Lock()
	defer c.core.mu.Unlock()

	if _, exists := c.core.services[key]; exists {
		return &DuplicateServiceError{Key: key, Container: c.core.name}
	}
	c.core.services[key] = svc
	return nil
}

// Get returns the instance registered under key, looking in this container
// first and then in each ancestor.
func (c *Container) Get(key string) (any, error) {
	owner, svc := c.lookup(key)
	if svc == nil {
		return nil, &ServiceNotRegisteredError{Key: key, Container: c.core.name}
	}
	return owner.build(svc, c.resolving)
}

// MustGet is Get that panics on error. Intended for bootstrap code.
func (c *Container) MustGet(key string) any {
	v, err := c.Get(key)
	if err != nil {
		panic(err)
	}
	return v
}

// Has reports whether key is registered here or, with includeAncestors, in
// any ancestor.
func (c *Container) Has(key string, includeAncestors bool) bool {
	if !includeAncestors {
		c.core.mu.RLock()
		defer c.core.mu.RUnlock()
		_, ok := c.core.services[key]
		return ok
	}
	_, svc := c.lookup(key)
	return svc != nil
}

// lookup finds the registration for key and the core that owns it.
func (c *Container) lookup(key string) (*core, *service) {
	for cur := c.core; cur != nil; {
		cur.mu.RLock()
		svc, ok := cur.services[key]
		cur.mu.RUnlock()
		if ok {
			return cur, svc
		}
		if cur.parent == nil {
			break
		}
		cur = cur.parent.core
	}
	return nil, nil
}

// build returns an instance of svc, owned by cr.
func (cr *core) build(svc *service, resolving []string) (any, error) {
	if slices.Contains(resolving, svc.key) {
		chain := append(slices.Clone(resolving), svc.key)
		return nil, &ServiceConstructionError{
			Key:       svc.key,
			Container: cr.name,
			Err:       fmt.Errorf("%w: %v", ErrCircularDependency, chain),
		}
	}
	if svc.lifetime == Transient {
		return cr.construct(svc, resolving)
	}

	svc.buildMu.Lock()
	defer svc.buildMu.Unlock()

	cr.mu.RLock()
	ready, instance := svc.ready, svc.instance
	cr.mu.RUnlock()
	if ready {
		return instance, nil
	}

	instance, err := cr.construct(svc, resolving)
	if err != nil {
		return nil, err
	}

	cr.mu.Lock()
	// Clear may have dropped the registration while we were building.
	if cr.services[svc.key] == svc {
		svc.instance = instance
		svc.ready = true
		cr.built = append(cr.built, svc)
	}
	cr.mu.Unlock()
	return instance, nil
}

// construct runs the provider of svc, converting errors and panics.
func (cr *core) construct(svc *service, resolving []string) (instance any, err error) {
	path := append(slices.Clone(resolving), svc.key)

	defer func() {
		if r := recover(); r != nil {
			instance = nil
			err = &ServiceConstructionError{Key: svc.key, Container: cr.name, Err: &panicError{value: r}}
		}
	}()

	if svc.factory != nil {
		instance, err = svc.factory(&Container{core: cr, resolving: path})
	} else {
		var deps []any
		deps, err = cr.resolveDependencies(svc, path)
		if err == nil {
			instance, err = svc.constructor(deps)
		}
	}
	if err != nil {
		return nil, &ServiceConstructionError{Key: svc.key, Container: cr.name, Err: err}
	}
	return instance, nil
}

// resolveDependencies resolves the declared dependencies of svc positionally.
// Unregistered keys resolve to nil.
func (cr *core) resolveDependencies(svc *service, path []string) ([]any, error) {
	if len(svc.dependencies) == 0 {
		return nil, nil
	}
	from := &Container{core: cr, resolving: path}
	deps := make([]any, len(svc.dependencies))
	for i, key := range svc.dependencies {
		owner, dep := from.lookup(key)
		if dep == nil {
			cr.logger.Debug("dependency not registered, injecting nil",
				"container", cr.name, "service", svc.key, "dependency", key)
			continue
		}
		v, err := owner.build(dep, path)
		if err != nil {
			return nil, err
		}
		deps[i] = v
	}
	return deps, nil
}

// CreateScope returns the child container called name, creating it on first
// use. The child's display name is "<parent>.<name>".
func (c *Container) CreateScope(name string) *Container {
	c.core.mu.Lock()
	defer c.core.mu.Unlock()

	if child, ok := c.core.scopes[name]; ok {
		return child
	}
	child := newContainer(c.core.name+"."+name, c.core.handle, c.core.logger)
	c.core.scopes[name] = child
	return child
}

// Scope returns the child created with CreateScope(name), or nil.
func (c *Container) Scope(name string) *Container {
	c.core.mu.RLock()
	defer c.core.mu.RUnlock()
	return c.core.scopes[name]
}

// ServiceNames returns the registered keys, sorted. With includeAncestors the
// keys of every ancestor are merged in.
func (c *Container) ServiceNames(includeAncestors bool) []string {
	seen := make(map[string]bool)
	var names []string
	for cur := c.core; cur != nil; {
		cur.mu.RLock()
		for key := range cur.services {
			if !seen[key] {
				seen[key] = true
				names = append(names, key)
			}
		}
		cur.mu.RUnlock()
		if !includeAncestors || cur.parent == nil {
			break
		}
		cur = cur.parent.core
	}
	sort.Strings(names)
	return names
}

// Clear drops this container's registrations and cached instances. Parent
// and child scopes are untouched.
func (c *Container) Clear() {
	c.core.mu.Lock()
	defer c.core.mu.Unlock()

	c.core.services = make(map[string]*service)
	c.core.built = nil
}

// Dispose closes the singleton instances this container built, newest
// first, then clears it. Instances implementing io.Closer or
// interface{ Dispose() error } are closed; errors are combined.
func (c *Container) Dispose() error {
	c.core.mu.Lock()
	built := c.core.built
	c.core.services = make(map[string]*service)
	c.core.built = nil
	c.core.mu.Unlock()

	var err error
	for i := len(built) - 1; i >= 0; i-- {
		svc := built[i]
		if cerr := closeInstance(svc.instance); cerr != nil {
			err = multierr.Append(err, fmt.Errorf("dispose %q: %w", svc.key, cerr))
		}
	}
	return err
}

type disposable interface {
	Dispose() error
}

func closeInstance(v any) error {
	switch inst := v.(type) {
	case disposable:
		return inst.Dispose()
	case io.Closer:
		return inst.Close()
	}
	return nil
}
