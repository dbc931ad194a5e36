package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/dshills/pdfdesk/internal/config"
	"github.com/dshills/pdfdesk/internal/container"
	"github.com/dshills/pdfdesk/internal/event"
	"github.com/dshills/pdfdesk/internal/event/events"
	"github.com/dshills/pdfdesk/internal/feature"
	"github.com/dshills/pdfdesk/internal/feature/builtin"
	"github.com/dshills/pdfdesk/internal/logging"
)

func observedLogger() (logging.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return logging.FromZap(zap.New(core)), logs
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func newTestApp(t *testing.T, opts Options) *Application {
	t.Helper()
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}
	app, err := New(opts)
	require.NoError(t, err)
	t.Cleanup(func() {
		err := app.Shutdown(context.Background())
		if err != nil && !errors.Is(err, ErrShutDown) {
			t.Errorf("shutdown: %v", err)
		}
	})
	return app
}

func TestNew_Defaults(t *testing.T) {
	app := newTestApp(t, Options{})

	require.NotNil(t, app.Bus())
	require.NotNil(t, app.Container())
	require.NotNil(t, app.Runner())
	assert.Equal(t, "app", app.Container().Name())
	assert.Equal(t, event.ValidationStrict, app.Bus().Validation())
	assert.True(t, app.Allowlist().Contains(events.PDFListUpdated))
	assert.False(t, app.IsRunning())

	for _, key := range []string{LoggerKey, BusKey, ConfigKey, builtin.RegistryKey} {
		assert.True(t, app.Container().Has(key, false), key)
	}
	bus, err := container.Resolve[*event.Bus](app.Container(), BusKey)
	require.NoError(t, err)
	assert.Same(t, app.Bus(), bus)
	cfg, err := container.Resolve[*config.Config](app.Container(), ConfigKey)
	require.NoError(t, err)
	assert.Same(t, app.Config(), cfg)

	order, err := app.InstallOrder()
	require.NoError(t, err)
	assert.Equal(t, []string{builtin.MetricsName, builtin.ConfigWatchName}, order)
}

func TestApplication_StartAndShutdown(t *testing.T) {
	logger, logs := observedLogger()
	app := newTestApp(t, Options{Logger: logger})

	var ready events.FeaturesReady
	_, err := event.Subscribe(app.Bus(), events.AppFeaturesReady, func(p events.FeaturesReady, _ event.Metadata) error {
		ready = p
		return nil
	})
	require.NoError(t, err)
	shutdownSeen := 0
	_, err = app.Bus().OnFunc(events.AppShutdownStarted, func(any, event.Metadata) error {
		shutdownSeen++
		return nil
	})
	require.NoError(t, err)

	result, err := app.Start(context.Background())
	require.NoError(t, err)
	require.True(t, result.OK(), "install failed: %v", result.Err())
	assert.True(t, app.IsRunning())
	assert.ElementsMatch(t, []string{builtin.MetricsName, builtin.ConfigWatchName}, ready.Installed)
	assert.Equal(t, feature.StateInstalled, app.Runner().State(builtin.MetricsName))

	_, err = app.Start(context.Background())
	assert.ErrorIs(t, err, ErrAlreadyRunning)

	families, err := app.Registry().Gather()
	require.NoError(t, err)
	assert.True(t, hasFamily(families, "pdfdesk_event_bus_emitted_total"))
	assert.True(t, hasFamily(families, "pdfdesk_features_installs_total"))

	require.NoError(t, app.Shutdown(context.Background()))
	assert.Equal(t, 1, shutdownSeen)
	assert.False(t, app.IsRunning())
	assert.True(t, app.Bus().IsDestroyed())
	assert.Equal(t, feature.StateUninstalled, app.Runner().State(builtin.MetricsName))
	assert.Equal(t, 1, logs.FilterMessage("shutdown complete").Len())

	assert.ErrorIs(t, app.Shutdown(context.Background()), ErrShutDown)
	_, err = app.Start(context.Background())
	assert.ErrorIs(t, err, ErrShutDown)
}

func hasFamily(families []*dto.MetricFamily, name string) bool {
	for _, f := range families {
		if f.GetName() == name {
			return true
		}
	}
	return false
}

func TestApplication_ScriptedAndCustomFeatures(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "scripts/recent/feature.yaml", "name: recent\nversion: 1.0.0\n")
	writeFile(t, dir, "scripts/recent/init.lua", `
function install()
  bus.on_global("pdf:list:updated", function(items)
    bus.emit_global("report:export:completed", {count = #items})
  end)
end
`)
	writeFile(t, dir, "tables/reports.yaml", "reports:\n  export: report:export:completed\n")
	cfgPath := writeFile(t, dir, "pdfdesk.toml", `
[bus]
validation = "strict"
event_tables = ["tables/reports.yaml"]

[features]
script_dir = "scripts"
disabled = ["config-watch"]
install_timeout = "5s"
`)

	var installedBy string
	custom := &feature.Basic{
		FeatureName:    "report-view",
		FeatureVersion: "1.0.0",
		Requires:       []string{"recent"},
		OnInstall: func(_ context.Context, fc *feature.Context) error {
			installedBy = fc.Scoped.Namespace()
			return nil
		},
	}

	app := newTestApp(t, Options{ConfigPath: cfgPath, Features: []feature.Feature{custom}})
	assert.Equal(t, []string{builtin.ConfigWatchName}, app.Skipped())
	assert.True(t, app.Allowlist().Contains("report:export:completed"))

	order, err := app.InstallOrder()
	require.NoError(t, err)
	assert.Equal(t, []string{builtin.MetricsName, "recent", "report-view"}, order)

	result, err := app.Start(context.Background())
	require.NoError(t, err)
	require.True(t, result.OK(), "install failed: %v", result.Err())
	assert.Equal(t, "report-view", installedBy)

	var count any
	_, err = app.Bus().OnFunc("report:export:completed", func(data any, _ event.Metadata) error {
		count = data.(map[string]any)["count"]
		return nil
	})
	require.NoError(t, err)

	_, err = app.Bus().Emit(events.PDFListUpdated, []events.PDFListItem{{ID: "1"}, {ID: "2"}})
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestApplication_OptionOverrides(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "lua/notes/feature.yaml", "name: notes\n")
	writeFile(t, dir, "lua/notes/init.lua", "function install() end\n")

	app := newTestApp(t, Options{ScriptDir: filepath.Join(dir, "lua"), LogLevel: "debug", NoBuiltins: true})
	assert.Equal(t, "debug", app.Config().Log.Level)

	order, err := app.InstallOrder()
	require.NoError(t, err)
	assert.Equal(t, []string{"notes"}, order)
}

func TestNew_BootstrapErrors(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name      string
		config    string
		component string
	}{
		{"invalid config", "[bus]\nvalidation = \"loud\"\n", "config"},
		{"missing event table", "[bus]\nevent_tables = [\"absent.toml\"]\n", "event bus"},
		{"bad script manifest", "[features]\nscript_dir = \"bad-scripts\"\n", "features"},
	}
	writeFile(t, dir, "bad-scripts/broken/feature.yaml", "name: broken\nversion: x\n")

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, dir, "pdfdesk.toml", tt.config)
			_, err := New(Options{ConfigPath: path, Logger: logging.Nop()})
			require.Error(t, err)

			var ie *InitError
			require.ErrorAs(t, err, &ie)
			assert.Equal(t, tt.component, ie.Component)
		})
	}
}

func TestNew_DuplicateFeature(t *testing.T) {
	_, err := New(Options{
		Logger:   logging.Nop(),
		Features: []feature.Feature{&feature.Basic{FeatureName: builtin.MetricsName}},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, feature.ErrDuplicateFeature)
}

func TestApplication_StartRejectsCycle(t *testing.T) {
	app := newTestApp(t, Options{
		NoBuiltins: true,
		Features: []feature.Feature{
			&feature.Basic{FeatureName: "a", Requires: []string{"b"}},
			&feature.Basic{FeatureName: "b", Requires: []string{"a"}},
		},
	})

	_, err := app.Start(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, feature.ErrCyclicDependency)
	assert.False(t, app.IsRunning())
}

func TestApplication_RunUntilCancelled(t *testing.T) {
	app, err := New(Options{Logger: logging.Nop(), NoBuiltins: true})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	require.Eventually(t, app.IsRunning, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.True(t, app.Bus().IsDestroyed())
}

func TestApplication_RunStop(t *testing.T) {
	app, err := New(Options{Logger: logging.Nop(), NoBuiltins: true})
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- app.Run(context.Background()) }()
	require.Eventually(t, app.IsRunning, time.Second, 5*time.Millisecond)

	app.Stop()
	app.Stop()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after Stop")
	}
}

func TestApplication_RunAbortsOnInstallFailure(t *testing.T) {
	app, err := New(Options{
		Logger:     logging.Nop(),
		NoBuiltins: true,
		Features: []feature.Feature{
			&feature.Basic{FeatureName: "good"},
			&feature.Basic{
				FeatureName: "bad",
				OnInstall: func(context.Context, *feature.Context) error {
					return errors.New("no disk")
				},
			},
		},
	})
	require.NoError(t, err)

	err = app.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no disk")
	assert.Equal(t, feature.StateUninstalled, app.Runner().State("good"))
	assert.True(t, app.Bus().IsDestroyed())
}
