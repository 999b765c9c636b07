// Package metrics provides a small, backend-agnostic abstraction for recording
// operational metrics from the load engine.
//
// The package is intentionally minimal and opinionated:
//
//   - It exposes a narrow interface (Backend) focused on counters and timing
//     data (histograms).
//   - It provides a global, pluggable backend that defaults to a no-op
//     implementation, so metrics are always safe to call even when no real
//     backend is configured.
//   - It mirrors the storage abstraction pattern used elsewhere in the project
//     (storage.Repository): the engine depends only on this interface while
//     concrete metric systems stay isolated in subpackages.
package metrics

import "time"

// Labels are string key/value pairs attached to a metric.
type Labels map[string]string

// Backend is the minimal interface for metrics backends.
// It is intentionally generic so we can plug in Prometheus, Datadog, etc.
type Backend interface {
	// IncCounter increments a counter by delta.
	IncCounter(name string, delta float64, labels Labels)
	// ObserveHistogram records a value in a latency/duration style metric.
	ObserveHistogram(name string, value float64, labels Labels)
	// Flush pushes or flushes metrics, if the backend needs it (e.g. Pushgateway).
	Flush() error
}

// nopBackend is used by default so metrics are optional.
type nopBackend struct{}

func (nopBackend) IncCounter(name string, delta float64, labels Labels)       {}
func (nopBackend) ObserveHistogram(name string, value float64, labels Labels) {}
func (nopBackend) Flush() error                                               { return nil }

var backend Backend = nopBackend{}

// SetBackend installs a concrete backend. Passing nil keeps the existing backend.
func SetBackend(b Backend) {
	if b == nil {
		return
	}
	backend = b
}

// Flush delegates to the current backend.
func Flush() error {
	return backend.Flush()
}

// RecordTable measures one table load: outcome counter plus duration.
func RecordTable(job, table string, err error, d time.Duration) {
	status := "completed"
	if err != nil {
		status = "failed"
	}

	lbls := Labels{
		"job":    job,
		"table":  table,
		"status": status,
	}

	backend.IncCounter("load_tables_total", 1, lbls)
	backend.ObserveHistogram("load_table_duration_seconds", d.Seconds(), lbls)
}

// RecordBatch counts one batch commit attempt for a table.
func RecordBatch(job, table string, err error) {
	result := "committed"
	if err != nil {
		result = "failed"
	}
	backend.IncCounter("load_batches_total", 1, Labels{
		"job":    job,
		"table":  table,
		"result": result,
	})
}

// RecordRows adds appended rows for a table.
func RecordRows(job, table string, delta int64) {
	if delta <= 0 {
		return
	}
	backend.IncCounter("load_rows_total", float64(delta), Labels{
		"job":   job,
		"table": table,
	})
}
