// Package metrics records deployment outcomes as Prometheus collectors.
//
// A one-shot run has nothing to scrape it, so the registry is written in the
// text exposition format to a file for node_exporter's textfile collector.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome is the result of a single plan step.
type Outcome string

const (
	OutcomeDeployed   Outcome = "deployed"   // unit deployed for the first time
	OutcomeRedeployed Outcome = "redeployed" // cached unit was dead and deployed again
	OutcomeSkipped    Outcome = "skipped"    // unit live or flag already set
	OutcomeInvoked    Outcome = "invoked"    // configuration action performed
	OutcomeRecovered  Outcome = "recovered"  // action failed with an already-done signature
	OutcomeFailed     Outcome = "failed"
)

var stepBuckets = []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300}

// Recorder holds the collectors of one run on a private registry.
// A nil *Recorder records nothing.
type Recorder struct {
	registry     *prometheus.Registry
	steps        *prometheus.CounterVec
	stepDuration *prometheus.HistogramVec
	runs         *prometheus.CounterVec
	lastSuccess  prometheus.Gauge
}

// New creates a Recorder labelled with the network it deploys to.
func New(network string) *Recorder {
	constLabels := prometheus.Labels{"network": network}

	r := &Recorder{
		registry: prometheus.NewRegistry(),
		steps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "chaindeploy",
			Name:        "steps_total",
			Help:        "Number of plan steps by kind and outcome",
			ConstLabels: constLabels,
		}, []string{"kind", "outcome"}),
		stepDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   "chaindeploy",
			Name:        "step_duration_seconds",
			Help:        "Wall time spent executing plan steps",
			ConstLabels: constLabels,
			Buckets:     stepBuckets,
		}, []string{"kind"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "chaindeploy",
			Name:        "runs_total",
			Help:        "Number of orchestrator runs by starting state and result",
			ConstLabels: constLabels,
		}, []string{"state", "result"}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "chaindeploy",
			Name:        "last_success_timestamp_seconds",
			Help:        "Unix time of the last run that finished successfully",
			ConstLabels: constLabels,
		}),
	}

	r.registry.MustRegister(r.steps, r.stepDuration, r.runs, r.lastSuccess)
	return r
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// Step records a finished step.
func (r *Recorder) Step(kind string, outcome Outcome, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.steps.WithLabelValues(kind, string(outcome)).Inc()
	r.stepDuration.WithLabelValues(kind).Observe(elapsed.Seconds())
}

// Run records a finished run.
func (r *Recorder) Run(state string, err error, now time.Time) {
	if r == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "aborted"
	} else {
		r.lastSuccess.Set(float64(now.Unix()))
	}
	r.runs.WithLabelValues(state, result).Inc()
}

// WriteTextfile writes all collectors to path in the text exposition format.
// The file is replaced atomically.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil || path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, r.registry)
}
