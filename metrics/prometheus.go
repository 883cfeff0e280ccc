package metrics

import (
	"context"
	"time"

	grid "github.com/goliatone/go-grid"
	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder records operation latency in a histogram and outcomes
// in a counter, both labelled by operation.
type PrometheusRecorder struct {
	durations *prometheus.HistogramVec
	results   *prometheus.CounterVec
}

var _ grid.MetricsRecorder = (*PrometheusRecorder)(nil)

// PrometheusOption configures a PrometheusRecorder.
type PrometheusOption func(*prometheusConfig)

type prometheusConfig struct {
	namespace string
	buckets   []float64
	labels    prometheus.Labels
}

// WithNamespace sets the metric namespace. Defaults to "grid".
func WithNamespace(namespace string) PrometheusOption {
	return func(cfg *prometheusConfig) {
		if namespace != "" {
			cfg.namespace = namespace
		}
	}
}

// WithBuckets overrides the latency histogram buckets, in seconds.
func WithBuckets(buckets []float64) PrometheusOption {
	return func(cfg *prometheusConfig) {
		if len(buckets) > 0 {
			cfg.buckets = append([]float64(nil), buckets...)
		}
	}
}

// WithConstLabels attaches constant labels, e.g. the table name.
func WithConstLabels(labels map[string]string) PrometheusOption {
	return func(cfg *prometheusConfig) {
		cfg.labels = prometheus.Labels(labels)
	}
}

// NewPrometheusRecorder builds the collectors and registers them with
// registerer. A nil registerer skips registration.
func NewPrometheusRecorder(registerer prometheus.Registerer, opts ...PrometheusOption) (*PrometheusRecorder, error) {
	cfg := prometheusConfig{namespace: "grid", buckets: prometheus.DefBuckets}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	rec := &PrometheusRecorder{
		durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   cfg.namespace,
			Name:        "operation_duration_seconds",
			Help:        "Duration of grid operations such as queries, preference reads and child loads.",
			Buckets:     cfg.buckets,
			ConstLabels: cfg.labels,
		}, []string{"operation"}),
		results: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   cfg.namespace,
			Name:        "operations_total",
			Help:        "Grid operations by outcome.",
			ConstLabels: cfg.labels,
		}, []string{"operation", "status"}),
	}
	if registerer != nil {
		for _, collector := range []prometheus.Collector{rec.durations, rec.results} {
			if err := registerer.Register(collector); err != nil {
				return nil, err
			}
		}
	}
	return rec, nil
}

// Collectors returns the underlying collectors.
func (r *PrometheusRecorder) Collectors() []prometheus.Collector {
	return []prometheus.Collector{r.durations, r.results}
}

// Observe implements grid.MetricsRecorder.
func (r *PrometheusRecorder) Observe(_ context.Context, operation string, success bool, duration time.Duration) {
	if operation == "" {
		return
	}
	r.durations.WithLabelValues(operation).Observe(duration.Seconds())
	r.results.WithLabelValues(operation, status(success)).Inc()
}
