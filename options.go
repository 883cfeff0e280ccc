package grid

import "time"

// Option configures an Engine.
type Option func(*engineConfig)

type engineConfig struct {
	logger   Logger
	metrics  MetricsRecorder
	now      func() time.Time
	onNotice func(Notice)
}

func applyOptions(opts []Option) engineConfig {
	cfg := engineConfig{
		logger:  noopLogger{},
		metrics: noopMetrics{},
		now:     time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

// WithLogger attaches a logger to the engine. Features receive it through
// their Host.
func WithLogger(logger Logger) Option {
	return func(cfg *engineConfig) {
		cfg.logger = LoggerOrNop(logger)
	}
}

// WithMetrics attaches a metrics recorder observing queries and feature work.
func WithMetrics(recorder MetricsRecorder) Option {
	return func(cfg *engineConfig) {
		cfg.metrics = MetricsOrNop(recorder)
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(cfg *engineConfig) {
		if now != nil {
			cfg.now = now
		}
	}
}

// WithNoticeHook is called for every reported notice.
func WithNoticeHook(hook func(Notice)) Option {
	return func(cfg *engineConfig) {
		cfg.onNotice = hook
	}
}
