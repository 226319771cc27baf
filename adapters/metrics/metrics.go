// Package metrics provides Prometheus metrics collection for the engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector holds all Prometheus metrics the engine emits.
type Collector struct {
	// Request metrics
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge

	// Validation and auth metrics
	InputErrorsTotal *prometheus.CounterVec
	AuthFailures     *prometheus.CounterVec

	// Backend metrics
	BackendErrors *prometheus.CounterVec

	// Config metrics
	ConfigReloads      prometheus.Counter
	ConfigReloadErrors prometheus.Counter
}

// New creates a collector with all metrics registered on reg. Pass a
// fresh prometheus.NewRegistry() in tests to avoid duplicate registration.
func New(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)
	return &Collector{
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "declarest",
				Name:      "requests_total",
				Help:      "Total number of requests processed",
			},
			[]string{"resource", "method", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "declarest",
				Name:      "request_duration_seconds",
				Help:      "Request duration in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"resource", "method"},
		),
		RequestsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "declarest",
				Name:      "requests_in_flight",
				Help:      "Number of requests currently being processed",
			},
		),

		InputErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "declarest",
				Name:      "input_errors_total",
				Help:      "Total number of requests rejected by validation",
			},
			[]string{"resource"},
		),
		AuthFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "declarest",
				Name:      "auth_failures_total",
				Help:      "Total number of authentication failures",
			},
			[]string{"resource"},
		),

		BackendErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "declarest",
				Name:      "backend_errors_total",
				Help:      "Total number of backend failures surfaced to clients",
			},
			[]string{"resource"},
		),

		ConfigReloads: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "declarest",
				Name:      "config_reloads_total",
				Help:      "Total number of successful configuration reloads",
			},
		),
		ConfigReloadErrors: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "declarest",
				Name:      "config_reload_errors_total",
				Help:      "Total number of failed configuration reloads",
			},
		),
	}
}
