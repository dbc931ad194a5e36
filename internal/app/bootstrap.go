package app

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/dshills/pdfdesk/internal/config"
	"github.com/dshills/pdfdesk/internal/container"
	"github.com/dshills/pdfdesk/internal/event"
	"github.com/dshills/pdfdesk/internal/event/events"
	"github.com/dshills/pdfdesk/internal/feature"
	"github.com/dshills/pdfdesk/internal/feature/builtin"
	"github.com/dshills/pdfdesk/internal/feature/script"
	"github.com/dshills/pdfdesk/internal/logging"
)

// bootstrapper builds components in dependency order and tears down what it
// built when a later step fails.
type bootstrapper struct {
	app       *Application
	opts      Options
	initOrder []string
}

func newBootstrapper(app *Application, opts Options) *bootstrapper {
	return &bootstrapper{
		app:       app,
		opts:      opts,
		initOrder: make([]string, 0, 6),
	}
}

// bootstrap runs every init step. On failure it cleans up the steps that
// already completed.
func (b *bootstrapper) bootstrap() error {
	steps := []func() error{
		b.initConfig,
		b.initLogger,
		b.initMetrics,
		b.initEventBus,
		b.initContainer,
		b.initFeatures,
	}
	for _, step := range steps {
		if err := step(); err != nil {
			b.cleanup()
			return err
		}
	}
	b.app.logger.Info("bootstrap complete", "components", len(b.initOrder))
	return nil
}

// initConfig loads the configuration file and applies option overrides.
func (b *bootstrapper) initConfig() error {
	cfg, err := config.Load(b.opts.ConfigPath)
	if err != nil {
		return &InitError{Component: "config", Err: err}
	}
	if b.opts.ScriptDir != "" {
		cfg.Features.ScriptDir = b.opts.ScriptDir
	}
	if b.opts.LogLevel != "" {
		cfg.Log.Level = b.opts.LogLevel
	}
	b.app.config = cfg
	b.initOrder = append(b.initOrder, "config")
	return nil
}

// initLogger builds the zap logger unless one was supplied.
func (b *bootstrapper) initLogger() error {
	if b.opts.Logger != nil {
		b.app.logger = b.opts.Logger
	} else {
		zl := logging.New(b.app.config.Logging())
		b.app.zap = zl
		b.app.logger = zl
	}
	b.app.logger.Debug("configuration loaded", "path", b.app.config.Path, "validation", b.app.config.Bus.Validation)
	b.initOrder = append(b.initOrder, "logger")
	return nil
}

// initMetrics creates the registry shared by the bus and the metrics feature.
func (b *bootstrapper) initMetrics() error {
	reg := prometheus.NewRegistry()
	if err := reg.Register(collectors.NewGoCollector()); err != nil {
		return &InitError{Component: "metrics", Err: err}
	}
	b.app.registry = reg
	b.initOrder = append(b.initOrder, "metrics")
	return nil
}

// initEventBus builds the allowlist from the built-in tables plus any
// configured table files, then the bus.
func (b *bootstrapper) initEventBus() error {
	cfg := b.app.config

	tables := events.Tables()
	extra, err := config.LoadEventTables(cfg.EventTablePaths()...)
	if err != nil {
		return &InitError{Component: "event bus", Err: err}
	}
	tables = append(tables, extra...)

	allowlist := event.BuildAllowlist(tables...)
	if invalid := allowlist.Invalid(); len(invalid) > 0 {
		b.app.logger.Warn("event tables contain malformed names", "names", invalid)
	}

	metrics, err := event.NewMetrics(b.app.registry)
	if err != nil {
		return &InitError{Component: "event bus", Err: err}
	}

	b.app.allowlist = allowlist
	b.app.bus = event.NewBus(
		event.WithAllowlist(allowlist),
		event.WithValidation(cfg.ValidationMode()),
		event.WithLogger(b.app.logger),
		event.WithMetrics(metrics),
	)
	b.app.logger.Info("event bus ready", "global_events", allowlist.Len(), "validation", cfg.ValidationMode())
	b.initOrder = append(b.initOrder, "eventBus")
	return nil
}

// initContainer creates the root container and registers the kernel services.
func (b *bootstrapper) initContainer() error {
	c := container.New("app", container.WithLogger(b.app.logger))
	instances := []struct {
		key   string
		value any
	}{
		{LoggerKey, b.app.logger},
		{BusKey, b.app.bus},
		{ConfigKey, b.app.config},
		{builtin.RegistryKey, b.app.registry},
	}
	for _, inst := range instances {
		if err := c.RegisterInstance(inst.key, inst.value); err != nil {
			return &InitError{Component: "container", Err: err}
		}
	}
	b.app.container = c
	b.initOrder = append(b.initOrder, "container")
	return nil
}

// initFeatures registers the built-in, scripted and caller-supplied
// features, skipping the ones the configuration disables.
func (b *bootstrapper) initFeatures() error {
	cfg := b.app.config
	runner := feature.NewRunner(b.app.bus, b.app.container, b.app.logger)

	var all []feature.Feature
	if !b.opts.NoBuiltins {
		all = append(all,
			builtin.NewMetrics(),
			builtin.NewConfigWatch(0, b.watchedFiles()...),
		)
	}

	scriptDir := cfg.Resolve(cfg.Features.ScriptDir)
	scripted, err := script.Discover(scriptDir)
	if err != nil {
		if !cfg.Features.ContinueOnError {
			return &InitError{Component: "features", Err: err}
		}
		b.app.logger.Warn("skipping scripted features that could not be loaded", "dir", scriptDir, "error", err)
	}
	for _, f := range scripted {
		all = append(all, f)
	}
	all = append(all, b.opts.Features...)

	var enabled []feature.Feature
	for _, f := range all {
		if cfg.IsDisabled(f.Name()) {
			b.app.skipped = append(b.app.skipped, f.Name())
			b.app.logger.Info("feature disabled by configuration", "feature", f.Name())
			continue
		}
		enabled = append(enabled, f)
	}

	if err := runner.Register(enabled...); err != nil {
		return &InitError{Component: "features", Err: err}
	}

	b.app.runner = runner
	b.app.logger.Info("features registered", "count", len(enabled), "scripted", len(scripted), "disabled", len(b.app.skipped))
	b.initOrder = append(b.initOrder, "features")
	return nil
}

// watchedFiles returns the files config-watch should follow.
func (b *bootstrapper) watchedFiles() []string {
	cfg := b.app.config
	if cfg.Path == "" {
		return nil
	}
	return append([]string{cfg.Path}, cfg.EventTablePaths()...)
}

// cleanup releases initialized components in reverse order.
func (b *bootstrapper) cleanup() {
	for i := len(b.initOrder) - 1; i >= 0; i-- {
		b.cleanupComponent(b.initOrder[i])
	}
	b.initOrder = b.initOrder[:0]
}

// cleanupComponent releases a single component.
func (b *bootstrapper) cleanupComponent(name string) {
	switch name {
	case "features":
		b.app.runner = nil
		b.app.skipped = nil
	case "container":
		if b.app.container != nil {
			_ = b.app.container.Dispose()
			b.app.container = nil
		}
	case "eventBus":
		if b.app.bus != nil {
			b.app.bus.Destroy()
			b.app.bus = nil
		}
		b.app.allowlist = nil
	case "metrics":
		b.app.registry = nil
	case "logger":
		if b.app.zap != nil {
			_ = b.app.zap.Sync()
			b.app.zap = nil
		}
	case "config":
		b.app.config = nil
	}
}
