// Package datadog implements a DogStatsD backend for the metrics package.
//
// It adapts the generic metrics.Backend interface to Datadog's DogStatsD
// protocol with the official statsd client: metric labels become Datadog tags
// and counter/histogram observations are forwarded to a local or remote
// agent. Unlike the Pushgateway backend there is nothing to aggregate on this
// side; the agent owns aggregation, so names and labels pass through as-is.
//
// Datadog-specific dependencies and configuration stay inside this package;
// the loader depends only on the metrics.Backend abstraction.
package datadog

import (
	"fmt"

	"github.com/DataDog/datadog-go/v5/statsd"

	"ouladload/internal/metrics"
)

// Config holds Datadog backend configuration.
type Config struct {
	// Addr is the DogStatsD address, e.g. "127.0.0.1:8125" or
	// "unix:///var/run/datadog/dsd.socket".
	Addr string

	// Namespace is an optional prefix added to all metric names,
	// e.g. "oulad.".
	Namespace string

	// GlobalTags are tags applied to every metric emitted by this backend,
	// e.g. []string{"env:prod", "service:ouladload"}.
	GlobalTags []string
}

// Backend is a Datadog implementation of metrics.Backend. The same instance
// is intended to be installed globally via metrics.SetBackend.
type Backend struct {
	client *statsd.Client
}

// NewBackend constructs a Datadog metrics backend. Addr is required.
func NewBackend(cfg Config) (*Backend, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("datadog: Addr is required")
	}

	var opts []statsd.Option
	if cfg.Namespace != "" {
		opts = append(opts, statsd.WithNamespace(cfg.Namespace))
	}
	if len(cfg.GlobalTags) > 0 {
		opts = append(opts, statsd.WithTags(cfg.GlobalTags))
	}

	c, err := statsd.New(cfg.Addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("datadog: create client: %w", err)
	}
	return &Backend{client: c}, nil
}

// IncCounter forwards a Count metric. DogStatsD counts are int64; fractional
// deltas are truncated, which the loader never produces (batch and row deltas
// are whole numbers).
func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	if b.client == nil {
		return
	}
	b.client.Count(name, int64(delta), labelsToTags(labels), 1)
}

// ObserveHistogram forwards a Histogram metric.
func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	if b.client == nil {
		return
	}
	b.client.Histogram(name, value, labelsToTags(labels), 1)
}

// Flush closes the client, which flushes any buffered data. The statsd client
// has no flush-without-close, and the loader only flushes at process exit.
func (b *Backend) Flush() error {
	if b.client == nil {
		return nil
	}
	return b.client.Close()
}

// labelsToTags converts labels into Datadog "key:value" tag strings.
func labelsToTags(lbls metrics.Labels) []string {
	if len(lbls) == 0 {
		return nil
	}
	out := make([]string, 0, len(lbls))
	for k, v := range lbls {
		out = append(out, fmt.Sprintf("%s:%s", k, v))
	}
	return out
}
