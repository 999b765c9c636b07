// Package prompush implements a Prometheus Pushgateway backend for the
// metrics package.
//
// This package adapts the generic metrics.Backend interface to Prometheus by:
//
//   - Using client_golang counter and summary collectors for the loader's
//     table, batch, and row metrics.
//   - Treating the pipeline job as the Pushgateway grouping key, so per-table
//     labels stay low-cardinality.
//   - Pushing collected metrics to a Pushgateway instead of exposing a scrape
//     endpoint; a batch loader is gone before a scraper would find it.
//
// The package intentionally contains all Prometheus-specific dependencies so
// the engine depends only on the metrics abstraction and alternative backends
// (e.g. Datadog) stay swappable.
package prompush

import (
	"fmt"

	"ouladload/internal/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Backend is a Prometheus Pushgateway metrics backend.
type Backend struct {
	gatewayURL string // e.g. http://pushgateway:9091
	jobName    string // Pushgateway "job" group
	reg        *prometheus.Registry

	tableCounter  *prometheus.CounterVec // "load_tables_total"
	tableDuration *prometheus.SummaryVec // "load_table_duration_seconds"
	batchCounter  *prometheus.CounterVec // "load_batches_total"
	rowCounter    *prometheus.CounterVec // "load_rows_total"
}

// NewBackend constructs a Pushgateway backend. jobName becomes the
// Pushgateway grouping key; gatewayURL is the base URL of the gateway.
func NewBackend(jobName, gatewayURL string) (*Backend, error) {
	if gatewayURL == "" {
		return nil, fmt.Errorf("prompush: gateway URL is required")
	}
	if jobName == "" {
		jobName = "oulad"
	}

	reg := prometheus.NewRegistry()

	tableCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "load_tables_total",
			Help: "Table loads finished, partitioned by table and status (completed/failed).",
		},
		[]string{"table", "status"},
	)
	tableDuration := prometheus.NewSummaryVec(
		prometheus.SummaryOpts{
			Name:       "load_table_duration_seconds",
			Help:       "Duration of one table load in seconds, partitioned by table and status.",
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		},
		[]string{"table", "status"},
	)
	batchCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "load_batches_total",
			Help: "Batch commit attempts, partitioned by table and result (committed/failed).",
		},
		[]string{"table", "result"},
	)
	rowCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "load_rows_total",
			Help: "Rows appended to destination tables.",
		},
		[]string{"table"},
	)

	for _, c := range []prometheus.Collector{tableCounter, tableDuration, batchCounter, rowCounter} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("prompush: register collector: %w", err)
		}
	}

	return &Backend{
		gatewayURL:    gatewayURL,
		jobName:       jobName,
		reg:           reg,
		tableCounter:  tableCounter,
		tableDuration: tableDuration,
		batchCounter:  batchCounter,
		rowCounter:    rowCounter,
	}, nil
}

func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	switch name {
	case "load_tables_total":
		if b.tableCounter == nil {
			return
		}
		b.tableCounter.WithLabelValues(labels["table"], labels["status"]).Add(delta)

	case "load_batches_total":
		if b.batchCounter == nil {
			return
		}
		b.batchCounter.WithLabelValues(labels["table"], labels["result"]).Add(delta)

	case "load_rows_total":
		if b.rowCounter == nil {
			return
		}
		b.rowCounter.WithLabelValues(labels["table"]).Add(delta)

	default:
		// unknown metric name: ignore
	}
}

func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	if name != "load_table_duration_seconds" || b.tableDuration == nil {
		return
	}
	b.tableDuration.WithLabelValues(labels["table"], labels["status"]).Observe(value)
}

// Flush pushes the current registry to the Pushgateway.
func (b *Backend) Flush() error {
	return push.New(b.gatewayURL, b.jobName).
		Gatherer(b.reg).
		Push()
}
