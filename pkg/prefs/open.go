package prefs

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/goliatone/go-grid/pkg/prefs/fs"
	"github.com/goliatone/go-grid/pkg/prefs/postgres"
	"github.com/goliatone/go-grid/pkg/prefs/s3"
	"github.com/goliatone/go-grid/pkg/prefs/sqlite"
)

// Driver names a backend implementation.
type Driver string

const (
	DriverMemory     Driver = "memory"
	DriverFilesystem Driver = "fs"
	DriverSQLite     Driver = "sqlite"
	DriverPostgres   Driver = "postgres"
	DriverS3         Driver = "s3"
)

var (
	_ Backend = (*fs.Backend)(nil)
	_ Backend = (*sqlite.Backend)(nil)
	_ Backend = (*postgres.Backend)(nil)
	_ Backend = (*s3.Backend)(nil)

	_ Deleter    = (*sqlite.Backend)(nil)
	_ SyncLoader = (*sqlite.Backend)(nil)
	_ SyncLoader = (*fs.Backend)(nil)
)

// Settings selects and configures a backend explicitly.
type Settings struct {
	Driver      Driver
	FSRoot      string
	SQLitePath  string
	PostgresDSN string
	S3          s3.Config
}

// SettingsFromEnv reads backend settings from the environment.
//
//	GRID_PREFS_DRIVER: memory|fs|sqlite|postgres|s3 (default memory)
//	GRID_PREFS_FS_ROOT: directory root when driver=fs (default ./gridprefs)
//	GRID_PREFS_SQLITE_PATH: database file when driver=sqlite (default grid-prefs.db)
//	GRID_PREFS_POSTGRES_DSN: connection string when driver=postgres
//	(S3 specific variables documented in pkg/prefs/s3)
func SettingsFromEnv() Settings {
	return Settings{
		Driver:      Driver(os.Getenv("GRID_PREFS_DRIVER")),
		FSRoot:      os.Getenv("GRID_PREFS_FS_ROOT"),
		SQLitePath:  os.Getenv("GRID_PREFS_SQLITE_PATH"),
		PostgresDSN: os.Getenv("GRID_PREFS_POSTGRES_DSN"),
		S3:          s3.ConfigFromEnv(),
	}
}

// Open selects a Backend using environment variables; see SettingsFromEnv.
func Open(ctx context.Context) (Backend, error) {
	return OpenSettings(ctx, SettingsFromEnv())
}

// OpenDriver opens the named driver, reading its settings from the
// environment.
func OpenDriver(ctx context.Context, driver Driver) (Backend, error) {
	settings := SettingsFromEnv()
	settings.Driver = driver
	return OpenSettings(ctx, settings)
}

// OpenSettings opens the backend described by settings.
func OpenSettings(ctx context.Context, settings Settings) (Backend, error) {
	driver := settings.Driver
	if driver == "" {
		driver = DriverMemory
	}
	switch Driver(strings.ToLower(string(driver))) {
	case DriverMemory:
		return NewMemoryBackend(), nil
	case DriverFilesystem:
		return fs.New(settings.FSRoot)
	case DriverSQLite:
		return sqlite.Open(ctx, settings.SQLitePath)
	case DriverPostgres:
		return postgres.Open(ctx, settings.PostgresDSN)
	case DriverS3:
		if settings.S3.Bucket == "" {
			return nil, fmt.Errorf("GRID_PREFS_S3_BUCKET required for s3 driver")
		}
		return s3.New(ctx, settings.S3)
	default:
		return nil, fmt.Errorf("unknown prefs driver %s", driver)
	}
}
