package mempool

import (
	"github.com/go-kit/kit/metrics"
	"github.com/go-kit/kit/metrics/discard"
	"github.com/go-kit/kit/metrics/prometheus"
	stdprometheus "github.com/prometheus/client_golang/prometheus"
)

const (
	// MetricsSubsystem is a subsystem shared by all metrics exposed by this
	// package.
	MetricsSubsystem = "mempool"
)

// Metrics contains metrics exposed by this package.
type Metrics struct {
	// Size of the mempool (number of admitted, not yet finalized
	// transactions).
	Size metrics.Gauge

	// Round the coordinator will commit the next batch under.
	Round metrics.Gauge

	// Number of submitted transactions.
	SubmittedTxs metrics.Counter

	// Number of transactions finalized as part of a committed batch.
	FinalizedTxs metrics.Counter

	// Histogram of finalized order lengths, in transactions.
	BatchSizeTxs metrics.Histogram

	// Histogram of transaction code sizes, in bytes.
	TxSizeBytes metrics.Histogram
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
		Size: prometheus.NewGaugeFrom(stdprometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "size",
			Help:      "Size of the mempool (number of uncommitted transactions).",
		}, labels).With(labelsAndValues...),

		Round: prometheus.NewGaugeFrom(stdprometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "round",
			Help:      "Round the next committed batch will be recorded under.",
		}, labels).With(labelsAndValues...),

		SubmittedTxs: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "submitted_txs",
			Help:      "Number of submitted transactions.",
		}, labels).With(labelsAndValues...),

		FinalizedTxs: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "finalized_txs",
			Help:      "Number of transactions finalized in committed batches.",
		}, labels).With(labelsAndValues...),

		BatchSizeTxs: prometheus.NewHistogramFrom(stdprometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "batch_size_txs",
			Help:      "Finalized order lengths, in transactions.",
			Buckets:   stdprometheus.ExponentialBuckets(1, 2, 12),
		}, labels).With(labelsAndValues...),

		TxSizeBytes: prometheus.NewHistogramFrom(stdprometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "tx_size_bytes",
			Help:      "Transaction code sizes in bytes.",
			Buckets:   stdprometheus.ExponentialBuckets(1, 3, 17),
		}, labels).With(labelsAndValues...),
	}
}

// NopMetrics returns no-op Metrics.
func NopMetrics() *Metrics {
	return &Metrics{
		Size:         discard.NewGauge(),
		Round:        discard.NewGauge(),
		SubmittedTxs: discard.NewCounter(),
		FinalizedTxs: discard.NewCounter(),
		BatchSizeTxs: discard.NewHistogram(),
		TxSizeBytes:  discard.NewHistogram(),
	}
}
