package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/goliatone/go-grid/layering"
	"github.com/pelletier/go-toml/v2"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "GRID_"

// EnvLoader overlays environment variables onto Settings.
type EnvLoader struct {
	prefix  string
	mapping map[string]string // env var -> settings path
}

// NewEnvLoader creates a loader with the default mapping. The prefix includes
// the trailing underscore.
func NewEnvLoader(prefix string) *EnvLoader {
	return &EnvLoader{prefix: prefix, mapping: defaultEnvMapping(prefix)}
}

// AddMapping maps an extra environment variable to a settings path such as
// "selection.max_selection".
func (l *EnvLoader) AddMapping(envVar, path string) {
	if l.mapping == nil {
		l.mapping = make(map[string]string)
	}
	l.mapping[envVar] = path
}

// defaultEnvMapping keeps the prefs variables aligned with prefs.SettingsFromEnv.
func defaultEnvMapping(prefix string) map[string]string {
	paths := map[string]string{
		"TABLE":                     "table",
		"PAGE_SIZE":                 "page_size",
		"URL_KEY":                   "url.key",
		"URL_RESET_PAGE":            "url.reset_page_on_filter_change",
		"URL_SEARCH_KEY":            "url.search_key",
		"URL_SEARCH_DEBOUNCE":       "url.search_debounce",
		"SELECTION_MODE":            "selection.mode",
		"SELECTION_STRATEGY":        "selection.strategy",
		"SELECTION_MAX":             "selection.max_selection",
		"SELECTION_KEEP_ON_FILTER":  "selection.keep_on_filter_change",
		"DENSITY":                   "density",
		"VIRTUALIZATION_ENABLED":    "virtualization.enabled",
		"VIRTUALIZATION_ROW_HEIGHT": "virtualization.row_height",
		"VIRTUALIZATION_OVERSCAN":   "virtualization.overscan",
		"PREFS_DRIVER":              "prefs.driver",
		"PREFS_FS_ROOT":             "prefs.fs_root",
		"PREFS_SQLITE_PATH":         "prefs.sqlite_path",
		"PREFS_POSTGRES_DSN":        "prefs.postgres_dsn",
		"PREFS_S3_BUCKET":           "prefs.s3.bucket",
		"PREFS_S3_REGION":           "prefs.s3.region",
		"PREFS_S3_PREFIX":           "prefs.s3.prefix",
		"PREFS_S3_ENDPOINT":         "prefs.s3.endpoint",
		"PREFS_S3_PATH_STYLE":       "prefs.s3.path_style",
		"PREDICATE_ENGINE":          "predicate.engine",
		"PREDICATE_CACHE_SIZE":      "predicate.cache_size",
		"METRICS_BACKEND":           "metrics.backend",
		"METRICS_NAMESPACE":         "metrics.namespace",
	}
	mapping := make(map[string]string, len(paths))
	for name, path := range paths {
		mapping[prefix+name] = path
	}
	return mapping
}

// Load returns the mapped variables that are set, as a nested map.
func (l *EnvLoader) Load() map[string]any {
	config := make(map[string]any)
	for env, path := range l.mapping {
		if val, ok := os.LookupEnv(env); ok {
			setByPath(config, path, parseValue(val))
		}
	}
	return config
}

// Apply overlays the set variables onto settings.
func (l *EnvLoader) Apply(settings *Settings) error {
	return Overlay(settings, l.Load())
}

// Overlay merges nested override maps, strongest first, and decodes the
// result onto settings. Keys use the file names, e.g. "selection" ->
// "max_selection".
func Overlay(settings *Settings, layers ...map[string]any) error {
	merged := layering.MergeLayers(layers...)
	if len(merged) == 0 {
		return nil
	}
	data, err := toml.Marshal(merged)
	if err != nil {
		return fmt.Errorf("config: encode overrides: %w", err)
	}
	if err := toml.Unmarshal(data, settings); err != nil {
		return &ParseError{Path: "overrides", Format: FormatTOML, Err: err}
	}
	return nil
}

// parseValue keeps anything that is not a bool or an integer as a string.
func parseValue(s string) any {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "yes", "on":
		return true
	case "false", "no", "off":
		return false
	}
	if i, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64); err == nil {
		return i
	}
	return s
}

func setByPath(data map[string]any, path string, value any) {
	parts := strings.Split(path, ".")
	current := data
	for _, part := range parts[:len(parts)-1] {
		next, ok := current[part].(map[string]any)
		if !ok {
			next = make(map[string]any)
			current[part] = next
		}
		current = next
	}
	current[parts[len(parts)-1]] = value
}
