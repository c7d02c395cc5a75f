// Package metrics exposes the orchestrator and lifecycle metrics on a private
// Prometheus registry.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "storaged"

// Registry holds the process metrics. A nil *Registry is valid and records nothing.
type Registry struct {
	reg *prometheus.Registry

	state           *prometheus.GaugeVec
	startupDuration *prometheus.HistogramVec
	resources       prometheus.Gauge
	stopFailures    *prometheus.CounterVec

	mu      sync.Mutex
	current string
}

// NewRegistry creates a registry with Go runtime and process collectors attached.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &Registry{
		reg: reg,
		state: promauto.With(reg).NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "orchestrator_state",
				Help:      "Current orchestrator state (1 for the active state)",
			},
			[]string{"state"},
		),
		startupDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "startup_duration_seconds",
				Help:      "Time spent in the startup sequence by outcome",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"outcome"},
		),
		resources: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "lifecycle_resources",
				Help:      "Number of resources registered with the lifecycle container",
			},
		),
		stopFailures: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "lifecycle_stop_failures_total",
				Help:      "Total number of resources that failed to stop, by resource name",
			},
			[]string{"resource"},
		),
	}
}

// SetState marks state as the only active orchestrator state.
func (r *Registry) SetState(state string) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.current != "" {
		r.state.WithLabelValues(r.current).Set(0)
	}
	r.state.WithLabelValues(state).Set(1)
	r.current = state
}

// ObserveStartup records how long startup took; outcome is "ok" or an exit code name.
func (r *Registry) ObserveStartup(outcome string, d time.Duration) {
	if r == nil {
		return
	}
	r.startupDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

// ResourceStarted implements lifecycle.Observer.
func (r *Registry) ResourceStarted(name string) {
	if r == nil {
		return
	}
	r.resources.Inc()
}

// ResourceStopped implements lifecycle.Observer.
func (r *Registry) ResourceStopped(name string, err error) {
	if r == nil {
		return
	}
	r.resources.Dec()
	if err != nil {
		r.stopFailures.WithLabelValues(name).Inc()
	}
}

// Gatherer returns the underlying registry for tests and custom exporters.
func (r *Registry) Gatherer() prometheus.Gatherer {
	if r == nil {
		return prometheus.NewRegistry()
	}
	return r.reg
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}
