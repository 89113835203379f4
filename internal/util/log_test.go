package util

import (
	"os"
	"path/filepath"
	"testing"
)

func TestInitLogger(t *testing.T) {
	tests := []struct {
		name   string
		level  string
		format string
	}{
		{"debug console", "debug", "console"},
		{"info json", "info", "json"},
		{"warn console", "warn", "console"},
		{"error json", "error", "json"},
		{"unknown level falls back", "verbose", "console"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := InitLogger(tt.level, tt.format, ""); err != nil {
				t.Errorf("InitLogger(%s, %s) error: %v", tt.level, tt.format, err)
			}
		})
	}
}

func TestInitLoggerWithFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "node.log")

	if err := InitLogger("info", "json", path); err != nil {
		t.Fatalf("InitLogger with file error: %v", err)
	}

	Info("test entry")

	if _, err := os.Stat(path); err != nil {
		t.Errorf("log file not created: %v", err)
	}
}

func TestLogDefaultLogger(t *testing.T) {
	logger = nil
	if Log() == nil {
		t.Error("Log() should return a fallback logger when uninitialized")
	}
}
