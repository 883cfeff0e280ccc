// Package config loads grid settings from a TOML or YAML file with GRID_*
// environment overrides, and turns them into engine, feature and backend
// options.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	grid "github.com/goliatone/go-grid"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Format identifies a settings file encoding.
type Format string

const (
	FormatTOML Format = "toml"
	FormatYAML Format = "yaml"
)

// ErrUnknownFormat is returned for files that are neither TOML nor YAML.
var ErrUnknownFormat = errors.New("config: unknown settings format")

// ParseError reports a settings file that failed to decode.
type ParseError struct {
	Path   string
	Format Format
	Err    error
}

func (e *ParseError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("config: parse %s: %v", e.Format, e.Err)
	}
	return fmt.Sprintf("config: parse %s %s: %v", e.Format, e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Duration decodes from strings such as "300ms" in both formats.
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	return d.UnmarshalText([]byte(node.Value))
}

// Settings is the file representation of a grid.
type Settings struct {
	Table          string                 `toml:"table" yaml:"table"`
	PageSize       int                    `toml:"page_size" yaml:"page_size"`
	URL            URLSettings            `toml:"url" yaml:"url"`
	Selection      SelectionSettings      `toml:"selection" yaml:"selection"`
	Density        string                 `toml:"density" yaml:"density"`
	Virtualization VirtualizationSettings `toml:"virtualization" yaml:"virtualization"`
	Prefs          PrefsSettings          `toml:"prefs" yaml:"prefs"`
	Predicate      PredicateSettings      `toml:"predicate" yaml:"predicate"`
	Metrics        MetricsSettings        `toml:"metrics" yaml:"metrics"`
	Columns        []grid.Column          `toml:"columns" yaml:"columns"`
}

// URLSettings configures the query string adapter.
type URLSettings struct {
	Key                     string   `toml:"key" yaml:"key"`
	ResetPageOnFilterChange bool     `toml:"reset_page_on_filter_change" yaml:"reset_page_on_filter_change"`
	SearchKey               string   `toml:"search_key" yaml:"search_key"`
	SearchDebounce          Duration `toml:"search_debounce" yaml:"search_debounce"`
}

// SelectionSettings configures the selection feature.
type SelectionSettings struct {
	Mode               string `toml:"mode" yaml:"mode"`
	Strategy           string `toml:"strategy" yaml:"strategy"`
	MaxSelection       int    `toml:"max_selection" yaml:"max_selection"`
	KeepOnFilterChange bool   `toml:"keep_on_filter_change" yaml:"keep_on_filter_change"`
}

// VirtualizationSettings configures the row window.
type VirtualizationSettings struct {
	Enabled   bool `toml:"enabled" yaml:"enabled"`
	RowHeight int  `toml:"row_height" yaml:"row_height"`
	Overscan  int  `toml:"overscan" yaml:"overscan"`
}

// PrefsSettings selects the preference backend.
type PrefsSettings struct {
	Driver      string     `toml:"driver" yaml:"driver"`
	FSRoot      string     `toml:"fs_root" yaml:"fs_root"`
	SQLitePath  string     `toml:"sqlite_path" yaml:"sqlite_path"`
	PostgresDSN string     `toml:"postgres_dsn" yaml:"postgres_dsn"`
	S3          S3Settings `toml:"s3" yaml:"s3"`
}

// S3Settings configures the S3 preference backend.
type S3Settings struct {
	Bucket    string `toml:"bucket" yaml:"bucket"`
	Region    string `toml:"region" yaml:"region"`
	Prefix    string `toml:"prefix" yaml:"prefix"`
	Endpoint  string `toml:"endpoint" yaml:"endpoint"`
	PathStyle bool   `toml:"path_style" yaml:"path_style"`
}

// PredicateSettings selects the expression engine.
type PredicateSettings struct {
	Engine    string `toml:"engine" yaml:"engine"`
	CacheSize int    `toml:"cache_size" yaml:"cache_size"`
}

// MetricsSettings selects the metrics recorder.
type MetricsSettings struct {
	// Backend is expvar, prometheus or none.
	Backend   string `toml:"backend" yaml:"backend"`
	Namespace string `toml:"namespace" yaml:"namespace"`
}

// Defaults returns the settings used for anything a file leaves out.
func Defaults() Settings {
	return Settings{
		PageSize: 25,
		URL: URLSettings{
			ResetPageOnFilterChange: true,
			SearchKey:               "q",
			SearchDebounce:          Duration(300 * time.Millisecond),
		},
		Selection: SelectionSettings{
			Mode:     "page",
			Strategy: "client",
		},
		Density: "standard",
		Prefs: PrefsSettings{
			Driver: "memory",
		},
		Predicate: PredicateSettings{
			Engine:    "expr",
			CacheSize: 128,
		},
		Metrics: MetricsSettings{
			Backend:   "none",
			Namespace: "grid",
		},
	}
}

// DetectFormat maps a file extension to a Format.
func DetectFormat(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return FormatTOML, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, filepath.Ext(path))
	}
}

// Load reads path over Defaults, then applies overrides and the environment,
// overrides winning. A missing file is not an error. An empty path skips the
// file layer.
func Load(path string, overrides ...map[string]any) (Settings, error) {
	settings := Defaults()
	if path != "" {
		format, err := DetectFormat(path)
		if err != nil {
			return Settings{}, err
		}
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return Settings{}, fmt.Errorf("config: read %s: %w", path, err)
		default:
			if err := decode(data, format, &settings); err != nil {
				return Settings{}, &ParseError{Path: path, Format: format, Err: err}
			}
		}
	}
	layers := append(append([]map[string]any(nil), overrides...), NewEnvLoader(EnvPrefix).Load())
	if err := Overlay(&settings, layers...); err != nil {
		return Settings{}, err
	}
	return settings, nil
}

// Parse decodes data over Defaults without environment overrides.
func Parse(data []byte, format Format) (Settings, error) {
	settings := Defaults()
	if err := decode(data, format, &settings); err != nil {
		return Settings{}, &ParseError{Format: format, Err: err}
	}
	return settings, nil
}

func decode(data []byte, format Format, out *Settings) error {
	switch format {
	case FormatTOML:
		return toml.Unmarshal(data, out)
	case FormatYAML:
		return yaml.Unmarshal(data, out)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}
