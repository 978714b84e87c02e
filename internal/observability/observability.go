// Package observability exposes Prometheus instrumentation for the
// extraction pipeline and the HTTP metrics endpoint.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Run outcomes recorded by the pipeline counter.
const (
	OutcomeComplete = "complete"
	OutcomeDegraded = "degraded"
	OutcomeError    = "error"
)

// Pipeline tracks extraction run counts, durations, and concurrency.
type Pipeline struct {
	runs     *prometheus.CounterVec
	duration prometheus.Histogram
	inFlight prometheus.Gauge
}

// NewPipeline creates pipeline metrics registered against reg.
func NewPipeline(reg prometheus.Registerer) *Pipeline {
	factory := promauto.With(reg)

	return &Pipeline{
		runs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tally",
			Subsystem: "extraction",
			Name:      "runs_total",
			Help:      "Completed extraction runs by outcome.",
		}, []string{"outcome"}),
		duration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "tally",
			Subsystem: "extraction",
			Name:      "run_duration_seconds",
			Help:      "End-to-end extraction run duration.",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
		}),
		inFlight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "tally",
			Subsystem: "extraction",
			Name:      "runs_in_flight",
			Help:      "Extraction runs currently executing.",
		}),
	}
}

// Track marks a run as in flight and returns a completion callback that
// records the outcome and duration.
func (p *Pipeline) Track() func(outcome string) {
	start := time.Now()
	p.inFlight.Inc()

	return func(outcome string) {
		p.inFlight.Dec()
		p.runs.WithLabelValues(outcome).Inc()
		p.duration.Observe(time.Since(start).Seconds())
	}
}

// NewRegistry creates a registry preloaded with Go runtime and process
// collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler returns the HTTP handler serving the registry's metrics.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
