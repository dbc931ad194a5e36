package builtin

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/pdfdesk/internal/container"
	"github.com/dshills/pdfdesk/internal/event"
	"github.com/dshills/pdfdesk/internal/event/events"
	"github.com/dshills/pdfdesk/internal/feature"
	"github.com/dshills/pdfdesk/internal/logging"
)

func newTestBus() *event.Bus {
	return event.NewBus(event.WithAllowlist(event.BuildAllowlist(events.Tables()...)))
}

func TestMetrics_RecordsLifecycle(t *testing.T) {
	c := container.New("app")
	runner := feature.NewRunner(newTestBus(), c, logging.Nop())
	m := NewMetrics()

	require.NoError(t, runner.Register(
		m,
		&feature.Basic{FeatureName: "pdf-list", FeatureVersion: "1.0.0"},
		&feature.Basic{
			FeatureName:    "broken",
			FeatureVersion: "1.0.0",
			OnInstall: func(context.Context, *feature.Context) error {
				return errors.New("no database")
			},
		},
	))

	result, err := runner.InstallAll(context.Background(), feature.InstallOptions{ContinueOnError: true})
	require.NoError(t, err)
	require.Len(t, result.Failed, 1)

	reg, err := container.Resolve[*prometheus.Registry](c, RegistryKey)
	require.NoError(t, err)
	assert.Same(t, reg, m.Registry())

	assert.Equal(t, 1.0, testutil.ToFloat64(m.installs.WithLabelValues(MetricsName, "completed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.installs.WithLabelValues("pdf-list", "completed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.installs.WithLabelValues("broken", "failed")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.features.WithLabelValues("installed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.features.WithLabelValues("failed")))

	n, err := testutil.GatherAndCount(reg, "pdfdesk_features_installs_total")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	require.NoError(t, runner.UninstallAll(context.Background()))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.uninstalls))
	assert.Nil(t, m.Registry())

	n, err = testutil.GatherAndCount(reg, "pdfdesk_features_installs_total")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestMetrics_IgnoresLifecycleEventsFromFeatures(t *testing.T) {
	c := container.New("app")
	runner := feature.NewRunner(newTestBus(), c, logging.Nop())
	m := NewMetrics()

	require.NoError(t, runner.Register(
		m,
		&feature.Basic{
			FeatureName:    "impostor",
			FeatureVersion: "1.0.0",
			Requires:       []string{MetricsName},
			OnInstall: func(_ context.Context, fc *feature.Context) error {
				_, err := fc.Scoped.EmitGlobal(events.FeatureInstallCompleted, events.FeatureLifecycle{Name: "pdf-list"})
				return err
			},
		},
	))

	result, err := runner.InstallAll(context.Background(), feature.InstallOptions{})
	require.NoError(t, err)
	require.True(t, result.OK())

	assert.Zero(t, testutil.ToFloat64(m.installs.WithLabelValues("pdf-list", "completed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.installs.WithLabelValues("impostor", "completed")))
}

func TestMetrics_UsesExistingRegistry(t *testing.T) {
	c := container.New("app")
	reg := prometheus.NewRegistry()
	require.NoError(t, c.RegisterInstance(RegistryKey, reg))

	runner := feature.NewRunner(newTestBus(), c, logging.Nop())
	m := NewMetrics()
	require.NoError(t, runner.Register(m))

	result, err := runner.InstallAll(context.Background(), feature.InstallOptions{})
	require.NoError(t, err)
	require.True(t, result.OK())
	assert.Same(t, reg, m.Registry())
}

func TestMetrics_WrongRegistryType(t *testing.T) {
	c := container.New("app")
	require.NoError(t, c.RegisterInstance(RegistryKey, "not a registry"))

	runner := feature.NewRunner(newTestBus(), c, logging.Nop())
	require.NoError(t, runner.Register(NewMetrics()))

	result, err := runner.InstallAll(context.Background(), feature.InstallOptions{ContinueOnError: true})
	require.NoError(t, err)
	require.Len(t, result.Failed, 1)
	assert.ErrorIs(t, result.Failed[0].Err, container.ErrServiceType)
}
