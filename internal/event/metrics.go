package event

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dshills/pdfdesk/internal/event/name"
)

// Metrics holds the prometheus collectors updated by a Bus.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	EventsEmitted   *prometheus.CounterVec
	HandlerFailures *prometheus.CounterVec
	Rejected        *prometheus.CounterVec
	Subscriptions   prometheus.Gauge
}

// NewMetrics creates the bus collectors and registers them with reg.
// Collectors already registered with reg are reused.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		EventsEmitted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "pdfdesk",
				Subsystem: "event_bus",
				Name:      "emitted_total",
				Help:      "Total number of accepted emissions by channel (global or local)",
			},
			[]string{"channel", "module"},
		),
		HandlerFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "pdfdesk",
				Subsystem: "event_bus",
				Name:      "handler_failures_total",
				Help:      "Total number of handler failures by kind (error or panic)",
			},
			[]string{"kind"},
		),
		Rejected: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "pdfdesk",
				Subsystem: "event_bus",
				Name:      "rejected_total",
				Help:      "Total number of On/Emit calls rejected by validation",
			},
			[]string{"reason"},
		),
		Subscriptions: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "pdfdesk",
				Subsystem: "event_bus",
				Name:      "subscriptions",
				Help:      "Current number of live subscriptions",
			},
		),
	}

	if reg == nil {
		return m, nil
	}

	var err error
	m.EventsEmitted, err = register(reg, m.EventsEmitted)
	if err != nil {
		return nil, err
	}
	m.HandlerFailures, err = register(reg, m.HandlerFailures)
	if err != nil {
		return nil, err
	}
	m.Rejected, err = register(reg, m.Rejected)
	if err != nil {
		return nil, err
	}
	m.Subscriptions, err = register(reg, m.Subscriptions)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// register registers c, returning the existing collector on conflict.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

func (m *Metrics) emitted(eventName string) {
	if m == nil {
		return
	}
	channel := "global"
	if name.IsNamespaced(eventName) {
		channel = "local"
		_, eventName, _ = name.SplitNamespaced(eventName)
	}
	module, _, _, _ := name.Segments(eventName)
	m.EventsEmitted.WithLabelValues(channel, module).Inc()
}

func (m *Metrics) handlerFailed(kind string) {
	if m == nil {
		return
	}
	m.HandlerFailures.WithLabelValues(kind).Inc()
}

func (m *Metrics) rejectedName(reason string) {
	if m == nil {
		return
	}
	m.Rejected.WithLabelValues(reason).Inc()
}

func (m *Metrics) subscriptionsChanged(delta int) {
	if m == nil {
		return
	}
	m.Subscriptions.Add(float64(delta))
}
