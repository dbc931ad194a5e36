package feature

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/pdfdesk/internal/container"
	"github.com/dshills/pdfdesk/internal/event"
	"github.com/dshills/pdfdesk/internal/event/events"
	"github.com/dshills/pdfdesk/internal/event/name"
	"github.com/dshills/pdfdesk/internal/logging"
)

// InstallOptions configures InstallAll.
type InstallOptions struct {
	// ContinueOnError records a failure and keeps installing features that
	// do not depend on the failed one. By default the first failure stops
	// the run.
	ContinueOnError bool

	// Timeout bounds each feature's Install. Zero means no limit. A feature
	// that runs past it is marked failed; its goroutine is abandoned, and
	// its scoped bus is destroyed so late calls fail with ErrScopeDestroyed.
	Timeout time.Duration

	// Parallel installs each dependency level concurrently. Features in one
	// level must not rely on each other's side effects.
	Parallel bool
}

// Failure is one feature that did not install.
type Failure struct {
	Name string
	Err  error
}

// InstallResult summarizes an InstallAll run.
type InstallResult struct {
	Success  []string
	Failed   []Failure
	Duration time.Duration
}

// OK returns true when no feature failed.
func (r *InstallResult) OK() bool {
	return len(r.Failed) == 0
}

// Err combines the recorded failures, or returns nil.
func (r *InstallResult) Err() error {
	var err error
	for _, f := range r.Failed {
		err = multierr.Append(err, f.Err)
	}
	return err
}

// Status is a read-only snapshot of one feature.
type Status struct {
	Name         string
	Version      string
	Dependencies []string
	State        State
	Err          error
	Duration     time.Duration
}

// RunnerSource is the Metadata.Source of lifecycle events published by a Runner.
const RunnerSource = "feature-runner"

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithLifecycleEvents enables or disables the feature:* and app:* events
// published on the global bus. Enabled by default.
func WithLifecycleEvents(enabled bool) RunnerOption {
	return func(r *Runner) {
		r.lifecycleEvents = enabled
	}
}

// Runner installs and uninstalls features in dependency order.
type Runner struct {
	bus       *event.Bus
	container *container.Container
	base      logging.Logger
	logger    logging.Logger

	lifecycleEvents bool

	mu      sync.RWMutex
	entries map[string]*entry

	// registration order, for deterministic resolution
	names []string

	// install order resolved by the last InstallAll
	order []string
}

// entry is the runner's record of one feature.
type entry struct {
	feature  Feature
	state    State
	err      error
	fc       *Context
	duration time.Duration
}

// NewRunner creates a runner that installs features against bus and c.
func NewRunner(bus *event.Bus, c *container.Container, logger logging.Logger, opts ...RunnerOption) *Runner {
	base := logging.OrNop(logger)
	r := &Runner{
		bus:             bus,
		container:       c,
		base:            base,
		logger:          base.WithComponent(RunnerSource),
		lifecycleEvents: true,
		entries:         make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds features. Nothing is registered if any of them is invalid.
func (r *Runner) Register(features ...Feature) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	pending := make(map[string]bool, len(features))
	for _, f := range features {
		if f == nil {
			return ErrNilFeature
		}
		n := f.Name()
		if !name.ValidNamespace(n) {
			return fmt.Errorf("%w: %q", ErrInvalidFeatureName, n)
		}
		if _, exists := r.entries[n]; exists || pending[n] {
			return fmt.Errorf("feature %q: %w", n, ErrDuplicateFeature)
		}
		pending[n] = true
	}

	for _, f := range features {
		r.entries[f.Name()] = &entry{feature: f, state: StateRegistered}
		r.names = append(r.names, f.Name())
	}
	return nil
}

// ResolveOrder returns the install order, or a *DependencyError for a
// missing or cyclic dependency.
func (r *Runner) ResolveOrder() ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return resolveOrder(r.names, r.dependenciesLocked)
}

func (r *Runner) dependenciesLocked(n string) ([]string, bool) {
	e, ok := r.entries[n]
	if !ok {
		return nil, false
	}
	return e.feature.Dependencies(), true
}

// InstallAll installs every registered feature that is not installed yet.
//
// Dependency errors are returned before any Install runs. Install failures
// are reported in the result, never as the returned error.
func (r *Runner) InstallAll(ctx context.Context, opts InstallOptions) (*InstallResult, error) {
	start := time.Now()

	r.mu.Lock()
	order, err := resolveOrder(r.names, r.dependenciesLocked)
	if err != nil {
		r.mu.Unlock()
		r.logger.Error("cannot resolve feature install order", "error", err)
		return nil, err
	}
	r.order = order
	r.mu.Unlock()

	r.logger.Info("installing features", "order", order, "parallel", opts.Parallel)

	run := &installRun{runner: r, opts: opts, result: &InstallResult{}}
	if opts.Parallel {
		r.mu.RLock()
		batches := levels(order, r.dependenciesLocked)
		r.mu.RUnlock()
		for _, batch := range batches {
			if !run.installBatch(ctx, batch) {
				break
			}
		}
	} else {
		for _, n := range order {
			if !run.install(ctx, n) {
				break
			}
		}
	}

	result := run.result
	result.Duration = time.Since(start)

	r.logger.Info("features installed",
		"installed", len(result.Success),
		"failed", len(result.Failed),
		"duration", result.Duration,
	)
	ready := events.FeaturesReady{Installed: slices.Clone(result.Success)}
	for _, f := range result.Failed {
		ready.Failed = append(ready.Failed, f.Name)
	}
	r.publish(events.AppFeaturesReady, ready)

	return result, nil
}

// installRun carries the state of one InstallAll call.
type installRun struct {
	runner *Runner
	opts   InstallOptions

	mu     sync.Mutex
	result *InstallResult
}

// install installs one feature and reports whether the run should go on.
func (run *installRun) install(ctx context.Context, n string) bool {
	r := run.runner
	if err := ctx.Err(); err != nil {
		run.fail(n, &InstallError{Feature: n, Err: err})
		return false
	}

	r.mu.RLock()
	e := r.entries[n]
	state := e.state
	r.mu.RUnlock()
	if !state.CanInstall() {
		return true
	}

	if dep := r.failedDependency(e.feature); dep != "" {
		err := &InstallError{Feature: n, Err: fmt.Errorf("%w: %s", ErrDependencyFailed, dep)}
		r.setState(n, StateFailed, err, 0)
		run.fail(n, err)
		return run.opts.ContinueOnError
	}

	if err := r.installOne(ctx, e, run.opts.Timeout); err != nil {
		run.fail(n, err)
		return run.opts.ContinueOnError
	}

	run.mu.Lock()
	run.result.Success = append(run.result.Success, n)
	run.mu.Unlock()
	return true
}

// installBatch installs one dependency level concurrently.
func (run *installRun) installBatch(ctx context.Context, batch []string) bool {
	var g errgroup.Group
	proceed := make([]bool, len(batch))
	for i, n := range batch {
		i, n := i, n
		g.Go(func() error {
			proceed[i] = run.install(ctx, n)
			return nil
		})
	}
	_ = g.Wait()
	return !slices.Contains(proceed, false)
}

func (run *installRun) fail(n string, err error) {
	run.mu.Lock()
	run.result.Failed = append(run.result.Failed, Failure{Name: n, Err: err})
	run.mu.Unlock()
}

// failedDependency returns the first dependency of f that is not installed.
func (r *Runner) failedDependency(f Feature) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, dep := range f.Dependencies() {
		if e, ok := r.entries[dep]; !ok || e.state != StateInstalled {
			return dep
		}
	}
	return ""
}

// installOne runs Install for e and records the outcome.
func (r *Runner) installOne(ctx context.Context, e *entry, timeout time.Duration) error {
	f := e.feature
	n := f.Name()
	logger := r.logger.With("feature", n)

	scoped, err := event.NewScopedBus(n, r.bus)
	if err != nil {
		ierr := &InstallError{Feature: n, Err: err}
		r.setState(n, StateFailed, ierr, 0)
		return ierr
	}
	fc := &Context{
		Scoped:    scoped,
		Global:    r.bus,
		Logger:    r.base.With("feature", n),
		Container: r.container,
		Disposer:  event.NewDisposer(),
	}

	r.mu.Lock()
	e.state = StateInstalling
	e.err = nil
	e.fc = fc
	r.mu.Unlock()

	r.publish(events.FeatureInstallStarted, r.lifecyclePayload(f, 0, nil))
	logger.Debug("installing feature", "version", f.Version())

	start := time.Now()
	err = r.runInstall(ctx, f, fc, timeout)
	elapsed := time.Since(start)

	if err != nil {
		ierr := &InstallError{Feature: n, Err: err}
		if derr := teardown(fc); derr != nil {
			logger.Warn("cleanup after failed install", "error", derr)
		}
		r.setState(n, StateFailed, ierr, elapsed)
		logger.Error("feature install failed", "error", err, "duration", elapsed)
		r.publish(events.FeatureInstallFailed, r.lifecyclePayload(f, elapsed, err))
		return ierr
	}

	r.setState(n, StateInstalled, nil, elapsed)
	logger.Info("feature installed", "version", f.Version(), "duration", elapsed)
	r.publish(events.FeatureInstallCompleted, r.lifecyclePayload(f, elapsed, nil))
	return nil
}

// runInstall calls Install, enforcing timeout when it is positive.
func (r *Runner) runInstall(ctx context.Context, f Feature, fc *Context, timeout time.Duration) error {
	if timeout <= 0 {
		return safeCall(func() error { return f.Install(ctx, fc) })
	}

	ictx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- safeCall(func() error { return f.Install(ictx, fc) })
	}()

	select {
	case err := <-done:
		if err != nil && ctx.Err() == nil && errors.Is(ictx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%w after %s: %v", ErrInstallTimeout, timeout, err)
		}
		return err
	case <-ictx.Done():
		if ctx.Err() != nil {
			return ctx.Err()
		}
		fc.Logger.Warn("install abandoned after timeout; late callbacks must tolerate a torn-down feature",
			"timeout", timeout)
		return fmt.Errorf("%w after %s", ErrInstallTimeout, timeout)
	}
}

// UninstallAll uninstalls installed features in reverse install order.
// After each Uninstall the feature's scoped bus is destroyed and its
// disposer run. Errors are combined; every feature is attempted.
func (r *Runner) UninstallAll(ctx context.Context) error {
	r.mu.RLock()
	order := slices.Clone(r.order)
	r.mu.RUnlock()
	slices.Reverse(order)

	var errs error
	for _, n := range order {
		r.mu.Lock()
		e := r.entries[n]
		if e.state != StateInstalled {
			r.mu.Unlock()
			continue
		}
		e.state = StateUninstalling
		fc := e.fc
		r.mu.Unlock()

		err := safeCall(func() error { return e.feature.Uninstall(ctx) })
		if fc != nil {
			err = multierr.Append(err, teardown(fc))
		}

		var uerr error
		if err != nil {
			uerr = &UninstallError{Feature: n, Err: err}
			errs = multierr.Append(errs, uerr)
			r.logger.Error("feature uninstall failed", "feature", n, "error", err)
		} else {
			r.logger.Info("feature uninstalled", "feature", n)
		}

		r.mu.Lock()
		e.state = StateUninstalled
		e.err = uerr
		e.fc = nil
		r.mu.Unlock()

		r.publish(events.FeatureUninstallCompleted, r.lifecyclePayload(e.feature, 0, err))
	}
	return errs
}

// State returns the state of the named feature.
func (r *Runner) State(n string) State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.entries[n]; ok {
		return e.state
	}
	return StateUnregistered
}

// Status returns a snapshot of every feature in registration order.
func (r *Runner) Status() []Status {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Status, 0, len(r.names))
	for _, n := range r.names {
		e := r.entries[n]
		out = append(out, Status{
			Name:         n,
			Version:      e.feature.Version(),
			Dependencies: slices.Clone(e.feature.Dependencies()),
			State:        e.state,
			Err:          e.err,
			Duration:     e.duration,
		})
	}
	return out
}

// Feature returns the named feature.
func (r *Runner) Feature(n string) (Feature, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[n]
	if !ok {
		return nil, false
	}
	return e.feature, true
}

func (r *Runner) setState(n string, s State, err error, d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e := r.entries[n]
	e.state = s
	e.err = err
	e.duration = d
	if s != StateInstalled {
		e.fc = nil
	}
}

func (r *Runner) lifecyclePayload(f Feature, d time.Duration, err error) events.FeatureLifecycle {
	p := events.FeatureLifecycle{Name: f.Name(), Version: f.Version(), Duration: int64(d)}
	if err != nil {
		p.Error = err.Error()
	}
	return p
}

// publish emits a lifecycle event. Failures are logged; lifecycle reporting
// never fails an install.
func (r *Runner) publish(eventName string, payload any) {
	if !r.lifecycleEvents || r.bus == nil {
		return
	}
	if _, err := r.bus.EmitWithMetadata(eventName, payload, event.Metadata{Source: RunnerSource}); err != nil {
		if !errors.Is(err, event.ErrBusDestroyed) {
			r.logger.Warn("lifecycle event not published", "event", eventName, "error", err)
		}
	}
}

// teardown destroys the feature's scoped bus and runs its disposer. Panics
// are returned as errors so the caller can always record a final state.
func teardown(fc *Context) error {
	return multierr.Append(
		safeCall(func() error {
			fc.Scoped.Destroy()
			return nil
		}),
		safeCall(fc.Disposer.Dispose),
	)
}

// safeCall runs fn, converting a panic into an error.
func safeCall(fn func() error) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = &panicError{value: rec}
		}
	}()
	return fn()
}
