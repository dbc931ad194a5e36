// Package app wires the pdfdesk kernel together: configuration, logging,
// the global event bus, the service container and the feature runner.
package app

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"

	"github.com/dshills/pdfdesk/internal/config"
	"github.com/dshills/pdfdesk/internal/container"
	"github.com/dshills/pdfdesk/internal/event"
	"github.com/dshills/pdfdesk/internal/event/events"
	"github.com/dshills/pdfdesk/internal/feature"
	"github.com/dshills/pdfdesk/internal/logging"
)

// Container keys registered by the application.
const (
	LoggerKey = "logger"
	BusKey    = "bus"
	ConfigKey = "config"
)

// Application owns the kernel components and their lifecycle.
type Application struct {
	mu sync.Mutex

	config    *config.Config
	logger    logging.Logger
	zap       *logging.ZapLogger
	registry  *prometheus.Registry
	allowlist *event.Allowlist
	bus       *event.Bus
	container *container.Container
	runner    *feature.Runner

	// skipped lists features left out because the configuration disables them.
	skipped []string

	running  atomic.Bool
	shutdown atomic.Bool
	done     chan struct{}

	opts Options
}

// Options configures the application.
type Options struct {
	// ConfigPath is the configuration file. Empty uses defaults and the
	// environment.
	ConfigPath string

	// ScriptDir overrides features.script_dir.
	ScriptDir string

	// LogLevel overrides log.level.
	LogLevel string

	// Logger replaces the configured logger. Used by tests and embedders.
	Logger logging.Logger

	// Features are registered after the built-in and scripted features.
	Features []feature.Feature

	// NoBuiltins skips the built-in features.
	NoBuiltins bool
}

// New loads configuration and builds every component. Features are
// registered but not installed until Start.
func New(opts Options) (*Application, error) {
	app := &Application{
		opts: opts,
		done: make(chan struct{}),
	}

	if err := newBootstrapper(app, opts).bootstrap(); err != nil {
		return nil, err
	}
	return app, nil
}

// Start installs every registered feature in dependency order and then
// publishes app:features:ready. A non-nil error means the install run
// could not start (for example a dependency cycle); per-feature failures
// are reported in the result.
func (app *Application) Start(ctx context.Context) (*feature.InstallResult, error) {
	if app.shutdown.Load() {
		return nil, ErrShutDown
	}
	if !app.running.CompareAndSwap(false, true) {
		return nil, ErrAlreadyRunning
	}

	fc := app.config.Features
	opts := feature.InstallOptions{
		ContinueOnError: fc.ContinueOnError,
		Timeout:         fc.InstallTimeout.Std(),
		Parallel:        fc.Parallel,
	}

	result, err := app.runner.InstallAll(ctx, opts)
	if err != nil {
		app.running.Store(false)
		return nil, err
	}
	if result.OK() {
		app.logger.Info("features ready", "installed", len(result.Success), "duration", result.Duration)
	} else {
		app.logger.Warn("features ready with failures",
			"installed", len(result.Success),
			"failed", len(result.Failed),
			"error", result.Err(),
		)
	}
	return result, nil
}

// Run starts the application and blocks until ctx is done or Stop is
// called, then shuts down. Install failures are logged, not returned, so a
// broken optional feature does not keep the application from running;
// with ContinueOnError disabled a failure aborts Run.
func (app *Application) Run(ctx context.Context) error {
	result, err := app.Start(ctx)
	if err != nil {
		return multierr.Append(err, app.Shutdown(context.WithoutCancel(ctx)))
	}
	if !result.OK() && !app.config.Features.ContinueOnError {
		return multierr.Append(result.Err(), app.Shutdown(context.WithoutCancel(ctx)))
	}

	select {
	case <-ctx.Done():
	case <-app.done:
	}
	return app.Shutdown(context.WithoutCancel(ctx))
}

// Stop asks Run to return. It is safe to call more than once.
func (app *Application) Stop() {
	app.mu.Lock()
	defer app.mu.Unlock()
	select {
	case <-app.done:
	default:
		close(app.done)
	}
}

// Shutdown publishes app:shutdown:started, uninstalls features in reverse
// install order, disposes the container and destroys the bus. Later calls
// return ErrShutDown.
func (app *Application) Shutdown(ctx context.Context) error {
	if !app.shutdown.CompareAndSwap(false, true) {
		return ErrShutDown
	}
	app.Stop()

	if _, err := app.bus.Emit(events.AppShutdownStarted, nil); err != nil {
		app.logger.Warn("publishing shutdown failed", "error", err)
	}

	var errs error
	if app.running.Swap(false) {
		errs = multierr.Append(errs, app.runner.UninstallAll(ctx))
	}
	errs = multierr.Append(errs, app.container.Dispose())
	app.bus.Destroy()

	if errs != nil {
		app.logger.Error("shutdown completed with errors", "error", errs)
	} else {
		app.logger.Info("shutdown complete")
	}
	if app.zap != nil {
		if err := app.zap.Sync(); err != nil && !isSyncNoise(err) {
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}

// IsRunning returns true between Start and Shutdown.
func (app *Application) IsRunning() bool {
	return app.running.Load()
}

// Config returns the loaded configuration.
func (app *Application) Config() *config.Config {
	return app.config
}

// Logger returns the application logger.
func (app *Application) Logger() logging.Logger {
	return app.logger
}

// Bus returns the global event bus.
func (app *Application) Bus() *event.Bus {
	return app.bus
}

// Allowlist returns the global event allowlist.
func (app *Application) Allowlist() *event.Allowlist {
	return app.allowlist
}

// Container returns the root service container.
func (app *Application) Container() *container.Container {
	return app.container
}

// Runner returns the feature runner.
func (app *Application) Runner() *feature.Runner {
	return app.runner
}

// Registry returns the prometheus registry holding the bus and feature metrics.
func (app *Application) Registry() *prometheus.Registry {
	return app.registry
}

// InstallOrder returns the order Start installs features in.
func (app *Application) InstallOrder() ([]string, error) {
	return app.runner.ResolveOrder()
}

// Skipped returns the features the configuration disabled.
func (app *Application) Skipped() []string {
	return append([]string(nil), app.skipped...)
}

// isSyncNoise reports errors zap returns when syncing a terminal.
func isSyncNoise(err error) bool {
	return errors.Is(err, syscall.EINVAL) || errors.Is(err, syscall.ENOTTY)
}
