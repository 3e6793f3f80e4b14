// Package config provides application settings loaded from environment variables.
//
// Settings are created via New() which handles:
// - Environment variable parsing with validation
// - Default value application
// - Derived per-store directory layout

package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// DefaultDataDir is used when ARGUS_DATA_DIR is not set.
const DefaultDataDir = "data/monitoring"

// Settings holds all application configuration.
type Settings struct {
	// DataDir is the base directory for all monitoring data.
	DataDir string
	// LogLevel controls slog diagnostic verbosity.
	LogLevel slog.Level
}

// New creates settings from environment variables.
// Returns an error if an environment variable contains an invalid value.
func New() (Settings, error) {
	dataDir := os.Getenv("ARGUS_DATA_DIR")
	if dataDir == "" {
		dataDir = DefaultDataDir
	}

	level, err := getEnvLogLevel("ARGUS_LOG_LEVEL", slog.LevelInfo)
	if err != nil {
		return Settings{}, err
	}

	return Settings{
		DataDir:  dataDir,
		LogLevel: level,
	}, nil
}

// MustNew creates settings from environment variables.
// Panics on invalid values. Use this only when configuration errors should
// be fatal.
func MustNew() Settings {
	settings, err := New()
	if err != nil {
		panic(fmt.Sprintf("config: %v", err))
	}
	return settings
}

// SnapshotsDir returns the snapshot store directory.
func (s Settings) SnapshotsDir() string {
	return filepath.Join(s.DataDir, "snapshots")
}

// DecisionsDir returns the decision recorder directory.
func (s Settings) DecisionsDir() string {
	return filepath.Join(s.DataDir, "decisions")
}

// AuditLogsDir returns the audit log directory.
func (s Settings) AuditLogsDir() string {
	return filepath.Join(s.DataDir, "audit_logs")
}

// ReportsDir returns the directory for exported reports.
func (s Settings) ReportsDir() string {
	return filepath.Join(s.DataDir, "reports")
}

func getEnvLogLevel(key string, defaultVal slog.Level) (slog.Level, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	switch strings.ToLower(val) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("invalid value for %s: %q", key, val)
}
