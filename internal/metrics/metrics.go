// Package metrics exposes Prometheus instrumentation for pipeline runs.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "marketadvisor"

// Metrics groups the pipeline collectors. A nil *Metrics records nothing.
type Metrics struct {
	registry       *prometheus.Registry
	stageDuration  *prometheus.HistogramVec
	attempts       *prometheus.CounterVec
	outcomes       *prometheus.CounterVec
	workerFailures *prometheus.CounterVec
	stageItems     *prometheus.GaugeVec
}

// New registers the collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Wall time of a pipeline stage.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		}, []string{"stage", "status"}),
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reasoning_attempts_total",
			Help:      "Reasoning service attempts, retries included.",
		}, []string{"stage"}),
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reasoning_outcomes_total",
			Help:      "Terminal results of reasoning calls.",
		}, []string{"stage", "result"}),
		workerFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "worker_failures_total",
			Help:      "Fan-out workers that returned an error or panicked.",
		}, []string{"stage"}),
		stageItems: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stage_items",
			Help:      "Items in the artifact written by the last stage run.",
		}, []string{"stage"}),
	}
	m.registry.MustRegister(m.stageDuration, m.attempts, m.outcomes, m.workerFailures, m.stageItems)
	return m
}

// Registry exposes the underlying registry for scraping and tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveStage(stage string, d time.Duration, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.stageDuration.WithLabelValues(stage, status).Observe(d.Seconds())
}

func (m *Metrics) Attempt(stage string) {
	if m == nil {
		return
	}
	m.attempts.WithLabelValues(stage).Inc()
}

// Outcome records "success" or a failure reason.
func (m *Metrics) Outcome(stage, result string) {
	if m == nil {
		return
	}
	m.outcomes.WithLabelValues(stage, result).Inc()
}

func (m *Metrics) WorkerFailures(stage string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.workerFailures.WithLabelValues(stage).Add(float64(n))
}

func (m *Metrics) StageItems(stage string, n int) {
	if m == nil {
		return
	}
	m.stageItems.WithLabelValues(stage).Set(float64(n))
}
