// Package metrics exposes reaper run outcomes as Prometheus metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ericfisherdev/prreaper/internal/domain/model"
	"github.com/ericfisherdev/prreaper/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.RunMetrics = (*Recorder)(nil)

const namespace = "prreaper"

// Recorder implements driven.RunMetrics on its own registry.
type Recorder struct {
	registry    *prometheus.Registry
	runs        *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	transitions *prometheus.CounterVec
	lastRun     *prometheus.GaugeVec
	now         func() time.Time
}

// NewRecorder creates a Recorder with Go runtime and process collectors registered.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Completed operation runs by result.",
		}, []string{"operation", "result"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall-clock duration of operation runs.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		}, []string{"operation"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transitions_total",
			Help:      "Lifecycle transitions applied to pull requests.",
		}, []string{"transition"}),
		lastRun: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the operation last finished, by result.",
		}, []string{"operation", "result"}),
		now: time.Now,
	}

	r.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.runs, r.duration, r.transitions, r.lastRun,
	)
	return r
}

// ObserveRun records one finished run.
func (r *Recorder) ObserveRun(op model.Operation, duration time.Duration, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}

	r.runs.WithLabelValues(string(op), result).Inc()
	r.duration.WithLabelValues(string(op)).Observe(duration.Seconds())
	r.lastRun.WithLabelValues(string(op), result).Set(float64(r.now().Unix()))
}

// AddTransitions adds a run's transition counts. Partial counts from failed
// runs are included since their side effects already happened.
func (r *Recorder) AddTransitions(_ model.Operation, summary model.RunSummary) {
	add := func(transition string, n int) {
		if n > 0 {
			r.transitions.WithLabelValues(transition).Add(float64(n))
		}
	}
	add("warned", summary.Warned)
	add("executed", summary.Executed)
	add("reactivated", summary.Reactivated)
	add("immunized", summary.Immunized)
}

// Registry returns the registry the recorder's collectors live on.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}
