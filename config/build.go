package config

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	grid "github.com/goliatone/go-grid"
	"github.com/goliatone/go-grid/features/selection"
	"github.com/goliatone/go-grid/features/virtualization"
	"github.com/goliatone/go-grid/metrics"
	"github.com/goliatone/go-grid/pkg/prefs"
	"github.com/goliatone/go-grid/pkg/prefs/s3"
	"github.com/goliatone/go-grid/predicate"
	"github.com/goliatone/go-grid/urlstate"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics backends.
const (
	MetricsNone       = "none"
	MetricsExpvar     = "expvar"
	MetricsPrometheus = "prometheus"
)

// ErrInvalidSettings wraps every validation failure.
var ErrInvalidSettings = errors.New("config: invalid settings")

// Validate checks enumerated values and bounds.
func (s Settings) Validate() error {
	var errs []error
	if s.PageSize <= 0 {
		errs = append(errs, fmt.Errorf("page_size must be positive, got %d", s.PageSize))
	}
	switch grid.SelectionMode(s.Selection.Mode) {
	case grid.SelectionDisabled, grid.SelectionPage, grid.SelectionCrossPage:
	default:
		errs = append(errs, fmt.Errorf("selection.mode %q", s.Selection.Mode))
	}
	switch selection.Strategy(s.Selection.Strategy) {
	case selection.StrategyClient, selection.StrategyServer:
	default:
		errs = append(errs, fmt.Errorf("selection.strategy %q", s.Selection.Strategy))
	}
	if s.Selection.MaxSelection < 0 {
		errs = append(errs, errors.New("selection.max_selection must not be negative"))
	}
	if !grid.Density(s.Density).Valid() {
		errs = append(errs, fmt.Errorf("density %q", s.Density))
	}
	switch strings.ToLower(s.Metrics.Backend) {
	case "", MetricsNone, MetricsExpvar, MetricsPrometheus:
	default:
		errs = append(errs, fmt.Errorf("metrics.backend %q", s.Metrics.Backend))
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidSettings, errors.Join(errs...))
}

// Initial returns the default snapshot for the configured page size.
func (s Settings) Initial() grid.Snapshot {
	return grid.NewSnapshot(s.PageSize)
}

// PagePolicy returns the page reset policy.
func (s Settings) PagePolicy() grid.PagePolicy {
	return grid.PagePolicy{
		ResetOnFilterChange: s.URL.ResetPageOnFilterChange,
		ResetOnSearchChange: s.URL.SearchKey != "",
		SearchKey:           s.URL.SearchKey,
	}
}

// URLOptions returns the query string adapter options.
func (s Settings) URLOptions() []urlstate.Option {
	opts := []urlstate.Option{urlstate.WithResetPageOnFilterChange(s.URL.ResetPageOnFilterChange)}
	if s.URL.SearchKey != "" {
		opts = append(opts, urlstate.WithResetPageOnSearchChange(s.URL.SearchKey))
	}
	return opts
}

// SearchDebounce returns the search input debounce delay.
func (s Settings) SearchDebounce() time.Duration {
	return time.Duration(s.URL.SearchDebounce)
}

// SelectionOptions returns the selection feature options. The id fetcher and
// hierarchy are wired by the caller.
func (s Settings) SelectionOptions() selection.Options {
	return selection.Options{
		Mode:               grid.SelectionMode(s.Selection.Mode),
		Strategy:           selection.Strategy(s.Selection.Strategy),
		MaxSelection:       s.Selection.MaxSelection,
		KeepOnFilterChange: s.Selection.KeepOnFilterChange,
	}
}

// VirtualizationOptions returns the row window options.
func VirtualizationOptions[T any](s Settings) virtualization.Options[T] {
	return virtualization.Options[T]{
		Disabled:  !s.Virtualization.Enabled,
		RowHeight: s.Virtualization.RowHeight,
		Overscan:  s.Virtualization.Overscan,
	}
}

// PrefsSettings converts the prefs section for prefs.OpenSettings.
func (s Settings) PrefsSettings() prefs.Settings {
	return prefs.Settings{
		Driver:      prefs.Driver(s.Prefs.Driver),
		FSRoot:      s.Prefs.FSRoot,
		SQLitePath:  s.Prefs.SQLitePath,
		PostgresDSN: s.Prefs.PostgresDSN,
		S3: s3.Config{
			Bucket:    s.Prefs.S3.Bucket,
			Region:    s.Prefs.S3.Region,
			Prefix:    s.Prefs.S3.Prefix,
			Endpoint:  s.Prefs.S3.Endpoint,
			PathStyle: s.Prefs.S3.PathStyle,
		},
	}
}

// OpenPrefs opens the configured preference backend.
func (s Settings) OpenPrefs(ctx context.Context) (prefs.Backend, error) {
	return prefs.OpenSettings(ctx, s.PrefsSettings())
}

// Evaluator builds the configured expression evaluator with an LRU program
// cache. logger may be nil.
func (s Settings) Evaluator(logger predicate.Logger) (predicate.Evaluator, error) {
	cfg := predicate.Config{Engine: s.Predicate.Engine, Logger: logger}
	if s.Predicate.CacheSize > 0 {
		cfg.Cache = predicate.NewLRUCache(s.Predicate.CacheSize)
	}
	return predicate.New(cfg)
}

// MetricsRecorder builds the configured recorder. registerer is used by the
// prometheus backend and defaults to prometheus.DefaultRegisterer. The expvar
// backend publishes "<namespace>_metrics", which may only happen once per
// process.
func (s Settings) MetricsRecorder(registerer prometheus.Registerer) (grid.MetricsRecorder, error) {
	switch strings.ToLower(s.Metrics.Backend) {
	case "", MetricsNone:
		return grid.NopMetrics(), nil
	case MetricsExpvar:
		name := s.Metrics.Namespace
		if name != "" {
			name += "_metrics"
		}
		return metrics.NewExpvarRecorder(name), nil
	case MetricsPrometheus:
		if registerer == nil {
			registerer = prometheus.DefaultRegisterer
		}
		rec, err := metrics.NewPrometheusRecorder(registerer, metrics.WithNamespace(s.Metrics.Namespace))
		if err != nil {
			return nil, err
		}
		return rec, nil
	default:
		return nil, fmt.Errorf("%w: metrics.backend %q", ErrInvalidSettings, s.Metrics.Backend)
	}
}
