// Package metrics holds the Prometheus metrics of the playground server.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels
const (
	OutcomeOK      = "ok"
	OutcomeError   = "error"
	OutcomeInvalid = "invalid"
)

// Share operations
const (
	ShareEncode = "encode"
	ShareDecode = "decode"
)

// Metrics holds all playground metrics. A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry

	Evaluations *prometheus.CounterVec
	EvalLatency *prometheus.HistogramVec
	ShareLinks  *prometheus.CounterVec
}

// New creates the metrics on a registry of their own, together with the Go
// and process collectors.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,

		Evaluations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "celplay_evaluations_total",
				Help: "Total number of evaluations by mode and outcome",
			},
			[]string{"mode", "outcome"},
		),

		EvalLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "celplay_evaluation_duration_seconds",
				Help:    "Evaluation latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"mode"},
		),

		ShareLinks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "celplay_share_links_total",
				Help: "Total number of share links encoded or decoded by outcome",
			},
			[]string{"operation", "outcome"},
		),
	}
}

// ObserveEvaluation records one evaluation.
func (m *Metrics) ObserveEvaluation(mode string, isError bool, took time.Duration) {
	if m == nil {
		return
	}
	outcome := OutcomeOK
	if isError {
		outcome = OutcomeError
	}
	m.Evaluations.WithLabelValues(mode, outcome).Inc()
	m.EvalLatency.WithLabelValues(mode).Observe(took.Seconds())
}

// ObserveShare records one share link operation.
func (m *Metrics) ObserveShare(operation, outcome string) {
	if m == nil {
		return
	}
	m.ShareLinks.WithLabelValues(operation, outcome).Inc()
}

// Handler serves the metrics in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
