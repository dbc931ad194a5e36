package builtin

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dshills/pdfdesk/internal/container"
	"github.com/dshills/pdfdesk/internal/event"
	"github.com/dshills/pdfdesk/internal/event/events"
	"github.com/dshills/pdfdesk/internal/feature"
)

// MetricsName is the name of the metrics feature.
const MetricsName = "metrics"

// RegistryKey is the container key of the shared *prometheus.Registry.
const RegistryKey = "metrics.registry"

// Metrics records feature lifecycle metrics. It uses the registry found in
// the container under RegistryKey, registering a new one when absent.
type Metrics struct {
	registry *prometheus.Registry

	installs        *prometheus.CounterVec
	installDuration *prometheus.HistogramVec
	uninstalls      prometheus.Counter
	features        *prometheus.GaugeVec
}

var _ feature.Feature = (*Metrics)(nil)

// NewMetrics returns the metrics feature.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// Name implements feature.Feature.
func (m *Metrics) Name() string { return MetricsName }

// Version implements feature.Feature.
func (m *Metrics) Version() string { return "1.0.0" }

// Dependencies implements feature.Feature.
func (m *Metrics) Dependencies() []string { return nil }

// Registry returns the registry the collectors were registered with, or nil
// before Install.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Install implements feature.Feature.
func (m *Metrics) Install(_ context.Context, fc *feature.Context) error {
	reg, err := sharedRegistry(fc.Container)
	if err != nil {
		return err
	}

	m.installs = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pdfdesk",
		Subsystem: "features",
		Name:      "installs_total",
		Help:      "Feature installs by result (completed or failed)",
	}, []string{"feature", "result"})
	m.installDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "pdfdesk",
		Subsystem: "features",
		Name:      "install_duration_seconds",
		Help:      "Time spent in feature Install",
		Buckets:   []float64{.001, .005, .01, .05, .1, .5, 1, 5, 30},
	}, []string{"feature"})
	m.uninstalls = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "pdfdesk",
		Subsystem: "features",
		Name:      "uninstalls_total",
		Help:      "Completed feature uninstalls",
	})
	m.features = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "pdfdesk",
		Subsystem: "features",
		Name:      "state",
		Help:      "Number of features per state after the last install run",
	}, []string{"state"})

	collectors := []prometheus.Collector{m.installs, m.installDuration, m.uninstalls, m.features}
	for i, c := range collectors {
		if err := reg.Register(c); err != nil {
			for _, done := range collectors[:i] {
				reg.Unregister(done)
			}
			return err
		}
	}
	fc.Disposer.Add(func() {
		for _, c := range collectors {
			reg.Unregister(c)
		}
	})
	m.registry = reg

	subs := []struct {
		name string
		h    event.Handler
	}{
		{events.FeatureInstallCompleted, event.Typed(m.onInstalled)},
		{events.FeatureInstallFailed, event.Typed(m.onInstallFailed)},
		{events.FeatureUninstallCompleted, event.Typed(m.onUninstalled)},
		{events.AppFeaturesReady, event.Typed(m.onReady)},
	}
	fromRunner := event.WithFilter(event.FilterBySource(feature.RunnerSource))
	for _, s := range subs {
		unsub, err := fc.Scoped.OnGlobal(s.name, s.h, fromRunner)
		if err != nil {
			return err
		}
		fc.Disposer.AddUnsubscribe(unsub)
	}

	fc.Logger.Debug("feature metrics registered", "collectors", len(collectors))
	return nil
}

// Uninstall implements feature.Feature. Collectors are unregistered by the
// install-time disposer.
func (m *Metrics) Uninstall(context.Context) error {
	m.registry = nil
	return nil
}

func (m *Metrics) onInstalled(p events.FeatureLifecycle, _ event.Metadata) error {
	m.installs.WithLabelValues(p.Name, "completed").Inc()
	m.installDuration.WithLabelValues(p.Name).Observe(time.Duration(p.Duration).Seconds())
	return nil
}

func (m *Metrics) onInstallFailed(p events.FeatureLifecycle, _ event.Metadata) error {
	m.installs.WithLabelValues(p.Name, "failed").Inc()
	return nil
}

func (m *Metrics) onUninstalled(events.FeatureLifecycle, event.Metadata) error {
	m.uninstalls.Inc()
	return nil
}

func (m *Metrics) onReady(p events.FeaturesReady, _ event.Metadata) error {
	m.features.WithLabelValues("installed").Set(float64(len(p.Installed)))
	m.features.WithLabelValues("failed").Set(float64(len(p.Failed)))
	return nil
}

// sharedRegistry resolves the registry under RegistryKey, registering a new
// one when the container has none.
func sharedRegistry(c *container.Container) (*prometheus.Registry, error) {
	if c == nil {
		return nil, errors.New("metrics feature requires a container")
	}
	if c.Has(RegistryKey, true) {
		return container.Resolve[*prometheus.Registry](c, RegistryKey)
	}
	reg := prometheus.NewRegistry()
	if err := c.RegisterInstance(RegistryKey, reg); err != nil {
		return nil, err
	}
	return reg, nil
}
