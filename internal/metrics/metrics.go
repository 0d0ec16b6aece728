// Package metrics exposes Prometheus instrumentation for source probes,
// switch operations and weight bookkeeping.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "sourceswitch"

// Probe outcomes
const (
	ProbeOK        = "ok"
	ProbeError     = "error"
	ProbeTimeout   = "timeout"
	ProbeAbandoned = "abandoned"
)

// Metrics holds the collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	probes        *prometheus.CounterVec
	probeDuration prometheus.Histogram
	candidates    prometheus.Counter
	switches      *prometheus.CounterVec
	weightDeltas  *prometheus.CounterVec
}

// New creates a Metrics with its own registry
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		probes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_probes_total",
			Help:      "Source search probes by outcome.",
		}, []string{"outcome"}),
		probeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "source_probe_duration_seconds",
			Help:      "Duration of source search probes.",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
		}),
		candidates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_candidates_total",
			Help:      "Candidates produced by search probes.",
		}),
		switches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "switch_operations_total",
			Help:      "Switch operations by kind and terminal state.",
		}, []string{"kind", "state"}),
		weightDeltas: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "weight_adjustments_total",
			Help:      "Weight adjustments by reason.",
		}, []string{"reason"}),
	}
	m.registry.MustRegister(m.probes, m.probeDuration, m.candidates, m.switches, m.weightDeltas)
	return m
}

// Registry returns the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the metrics in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveProbe records one finished probe
func (m *Metrics) ObserveProbe(outcome string, took time.Duration, candidates int) {
	if m == nil {
		return
	}
	m.probes.WithLabelValues(outcome).Inc()
	m.probeDuration.Observe(took.Seconds())
	if candidates > 0 {
		m.candidates.Add(float64(candidates))
	}
}

// ObserveSwitch records one terminal switch outcome
func (m *Metrics) ObserveSwitch(kind, state string) {
	if m == nil {
		return
	}
	m.switches.WithLabelValues(kind, state).Inc()
}

// ObserveWeight records one weight adjustment
func (m *Metrics) ObserveWeight(reason string) {
	if m == nil {
		return
	}
	m.weightDeltas.WithLabelValues(reason).Inc()
}
