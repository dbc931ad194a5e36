package builtin

import (
	"context"
	"sync"
	"time"

	"github.com/dshills/pdfdesk/internal/config"
	"github.com/dshills/pdfdesk/internal/event"
	"github.com/dshills/pdfdesk/internal/event/events"
	"github.com/dshills/pdfdesk/internal/feature"
)

// ConfigWatchName is the name of the config-watch feature.
const ConfigWatchName = "config-watch"

// ConfigWatch publishes config:file:changed whenever one of its files
// changes on disk. With no files it installs as a no-op.
type ConfigWatch struct {
	paths    []string
	debounce time.Duration

	mu      sync.Mutex
	watcher *config.Watcher
}

var _ feature.Feature = (*ConfigWatch)(nil)

// NewConfigWatch returns a config-watch feature for paths. Empty paths are
// skipped. A zero debounce keeps the watcher default.
func NewConfigWatch(debounce time.Duration, paths ...string) *ConfigWatch {
	var kept []string
	for _, p := range paths {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return &ConfigWatch{paths: kept, debounce: debounce}
}

// Name implements feature.Feature.
func (w *ConfigWatch) Name() string { return ConfigWatchName }

// Version implements feature.Feature.
func (w *ConfigWatch) Version() string { return "1.0.0" }

// Dependencies implements feature.Feature.
func (w *ConfigWatch) Dependencies() []string { return nil }

// Paths returns the watched files.
func (w *ConfigWatch) Paths() []string { return w.paths }

// Install implements feature.Feature.
func (w *ConfigWatch) Install(_ context.Context, fc *feature.Context) error {
	if len(w.paths) == 0 {
		fc.Logger.Debug("no configuration files to watch")
		return nil
	}

	opts := []config.WatcherOption{config.WithWatcherLogger(fc.Logger)}
	if w.debounce > 0 {
		opts = append(opts, config.WithDebounce(w.debounce))
	}
	watcher, err := config.NewWatcher(opts...)
	if err != nil {
		return err
	}
	for _, p := range w.paths {
		if err := watcher.Watch(p); err != nil {
			_ = watcher.Close()
			return err
		}
	}

	scoped := fc.Scoped
	logger := fc.Logger
	watcher.OnChange(func(ev config.FileEvent) {
		payload := events.FileChanged{Path: ev.Path, Op: ev.Op.String()}
		meta := event.Metadata{Timestamp: ev.Time}
		if _, err := scoped.EmitGlobalWithMetadata(events.ConfigFileChanged, payload, meta); err != nil {
			logger.Warn("dropping config change", "path", ev.Path, "error", err)
		}
	})
	fc.Disposer.AddError(watcher.Close)

	w.mu.Lock()
	w.watcher = watcher
	w.mu.Unlock()

	logger.Info("watching configuration", "files", len(w.paths))
	return nil
}

// Uninstall implements feature.Feature.
func (w *ConfigWatch) Uninstall(context.Context) error {
	w.mu.Lock()
	watcher := w.watcher
	w.watcher = nil
	w.mu.Unlock()

	if watcher == nil {
		return nil
	}
	return watcher.Close()
}

// Watching returns the number of files currently watched.
func (w *ConfigWatch) Watching() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.watcher == nil {
		return 0
	}
	return w.watcher.WatchedFiles()
}
