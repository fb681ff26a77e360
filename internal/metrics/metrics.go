// Package metrics collects Prometheus metrics for the runner and the auth flow.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is the metrics surface used by services and the sandbox runner.
type Recorder interface {
	RecordRunStarted()
	RecordRunSuperseded()
	RecordRunFinished(duration time.Duration)
	RecordLine(kind string)
	RecordAuthFailure(reason string)
}

// Nop discards every measurement.
type Nop struct{}

func (Nop) RecordRunStarted() {}
func (Nop) RecordRunSuperseded() {}
func (Nop) RecordRunFinished(time.Duration) {}
func (Nop) RecordLine(string) {}
func (Nop) RecordAuthFailure(string) {}

// Collector records into Prometheus metrics registered on a registry.
type Collector struct {
	runsStarted    prometheus.Counter
	runsSuperseded prometheus.Counter
	runDuration    prometheus.Histogram
	lines          *prometheus.CounterVec
	authFailures   *prometheus.CounterVec
}

// NewCollector builds a Collector and registers it with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		runsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hyperlearn_runs_started_total",
			Help: "Sandbox runs started.",
		}),
		runsSuperseded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hyperlearn_runs_superseded_total",
			Help: "Sandbox runs torn down by a newer run.",
		}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "hyperlearn_run_duration_seconds",
			Help:    "Wall time of sandbox runs that finished on their own.",
			Buckets: prometheus.DefBuckets,
		}),
		lines: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hyperlearn_run_lines_total",
			Help: "Captured console lines by kind.",
		}, []string{"kind"}),
		authFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hyperlearn_auth_failures_total",
			Help: "Rejected sign-in attempts by reason.",
		}, []string{"reason"}),
	}

	reg.MustRegister(
		c.runsStarted,
		c.runsSuperseded,
		c.runDuration,
		c.lines,
		c.authFailures,
	)
	return c
}

func (c *Collector) RecordRunStarted() {
	c.runsStarted.Inc()
}

func (c *Collector) RecordRunSuperseded() {
	c.runsSuperseded.Inc()
}

func (c *Collector) RecordRunFinished(duration time.Duration) {
	c.runDuration.Observe(duration.Seconds())
}

func (c *Collector) RecordLine(kind string) {
	c.lines.WithLabelValues(kind).Inc()
}

func (c *Collector) RecordAuthFailure(reason string) {
	c.authFailures.WithLabelValues(reason).Inc()
}

// Handler returns the scrape handler for gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

var (
	_ Recorder = (*Collector)(nil)
	_ Recorder = Nop{}
)
