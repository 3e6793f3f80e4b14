package config

import (
	"log/slog"
	"path/filepath"
	"testing"
)

func TestNewDefaults(t *testing.T) {
	t.Setenv("ARGUS_DATA_DIR", "")
	t.Setenv("ARGUS_LOG_LEVEL", "")

	settings, err := New()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if settings.DataDir != DefaultDataDir {
		t.Errorf("expected default data dir %q, got %q", DefaultDataDir, settings.DataDir)
	}
	if settings.LogLevel != slog.LevelInfo {
		t.Errorf("expected default level info, got %v", settings.LogLevel)
	}
}

func TestNewFromEnvironment(t *testing.T) {
	t.Setenv("ARGUS_DATA_DIR", "/tmp/argus-test")
	t.Setenv("ARGUS_LOG_LEVEL", "debug")

	settings, err := New()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if settings.DataDir != "/tmp/argus-test" {
		t.Errorf("expected data dir from env, got %q", settings.DataDir)
	}
	if settings.LogLevel != slog.LevelDebug {
		t.Errorf("expected debug level, got %v", settings.LogLevel)
	}
}

func TestNewInvalidLogLevel(t *testing.T) {
	t.Setenv("ARGUS_LOG_LEVEL", "loudest")

	if _, err := New(); err == nil {
		t.Error("expected error for invalid log level")
	}
}

func TestLogLevelAliases(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"ERROR":   slog.LevelError,
	}

	for val, want := range cases {
		t.Setenv("ARGUS_LOG_LEVEL", val)
		settings, err := New()
		if err != nil {
			t.Fatalf("unexpected error for %q: %v", val, err)
		}
		if settings.LogLevel != want {
			t.Errorf("level for %q = %v, want %v", val, settings.LogLevel, want)
		}
	}
}

func TestDerivedDirectories(t *testing.T) {
	s := Settings{DataDir: "base"}

	if got := s.SnapshotsDir(); got != filepath.Join("base", "snapshots") {
		t.Errorf("unexpected snapshots dir: %q", got)
	}
	if got := s.DecisionsDir(); got != filepath.Join("base", "decisions") {
		t.Errorf("unexpected decisions dir: %q", got)
	}
	if got := s.AuditLogsDir(); got != filepath.Join("base", "audit_logs") {
		t.Errorf("unexpected audit logs dir: %q", got)
	}
	if got := s.ReportsDir(); got != filepath.Join("base", "reports") {
		t.Errorf("unexpected reports dir: %q", got)
	}
}
