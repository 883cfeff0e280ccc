// Package metrics provides grid.MetricsRecorder implementations backed by
// expvar and Prometheus.
package metrics
