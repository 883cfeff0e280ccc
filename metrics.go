package grid

import (
	"context"
	"time"
)

// MetricsRecorder receives timing and outcome data for grid operations such
// as "grid.query" or "prefs.load".
type MetricsRecorder interface {
	Observe(ctx context.Context, operation string, success bool, duration time.Duration)
}

// MetricsRecorderFunc adapts a function to MetricsRecorder.
type MetricsRecorderFunc func(ctx context.Context, operation string, success bool, duration time.Duration)

// Observe implements MetricsRecorder.
func (f MetricsRecorderFunc) Observe(ctx context.Context, operation string, success bool, duration time.Duration) {
	if f != nil {
		f(ctx, operation, success, duration)
	}
}

type noopMetrics struct{}

func (noopMetrics) Observe(context.Context, string, bool, time.Duration) {}

// NopMetrics returns a recorder that discards observations.
func NopMetrics() MetricsRecorder {
	return noopMetrics{}
}

// MetricsOrNop returns recorder, or the noop recorder when recorder is nil.
func MetricsOrNop(recorder MetricsRecorder) MetricsRecorder {
	if recorder == nil {
		return noopMetrics{}
	}
	return recorder
}
