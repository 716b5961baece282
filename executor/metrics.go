package executor

import (
	"time"

	"github.com/go-kit/kit/metrics"
	"github.com/go-kit/kit/metrics/discard"
	"github.com/go-kit/kit/metrics/prometheus"
	stdprometheus "github.com/prometheus/client_golang/prometheus"
)

const (
	// MetricsSubsystem is a subsystem shared by all metrics exposed by this
	// package.
	MetricsSubsystem = "executor"
)

// Metrics contains metrics exposed by this package.
type Metrics struct {
	// Number of transactions launched for speculative execution.
	LaunchedTxs metrics.Counter

	// Number of batches executed to completion.
	ExecutedBatches metrics.Counter

	// Histogram of transaction execution times, labeled by backend.
	ExecTimeSeconds metrics.Histogram
}

// PrometheusMetrics returns Metrics build using Prometheus client library.
// Optionally, labels can be provided along with their values ("foo",
// "fooValue").
func PrometheusMetrics(namespace string, labelsAndValues ...string) *Metrics {
	labels := []string{}
	for i := 0; i < len(labelsAndValues); i += 2 {
		labels = append(labels, labelsAndValues[i])
	}
	return &Metrics{
		LaunchedTxs: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "launched_txs",
			Help:      "Number of transactions launched for speculative execution.",
		}, labels).With(labelsAndValues...),

		ExecutedBatches: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "executed_batches",
			Help:      "Number of batches executed to completion.",
		}, labels).With(labelsAndValues...),

		ExecTimeSeconds: prometheus.NewHistogramFrom(stdprometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "exec_time_seconds",
			Help:      "Transaction execution time, by backend.",
			Buckets:   []float64{.0001, .0004, .002, .009, .02, .1, .65, 2, 6, 25},
		}, append(labels, "backend")).With(labelsAndValues...),
	}
}

// NopMetrics returns no-op Metrics.
func NopMetrics() *Metrics {
	return &Metrics{
		LaunchedTxs:     discard.NewCounter(),
		ExecutedBatches: discard.NewCounter(),
		ExecTimeSeconds: discard.NewHistogram(),
	}
}

// addTimeSample returns a function that, when called, adds an observation to m.
// The observation added to m is the number of seconds elapsed since addTimeSample
// was initially called. addTimeSample is meant to be called before some time-
// consuming operation is begun so that when the operation is finished, an
// elapsed time sample is recorded.
func addTimeSample(m metrics.Histogram) func() {
	start := time.Now()
	return func() { m.Observe(time.Since(start).Seconds()) }
}
