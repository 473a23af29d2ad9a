package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewLoggerWritesFileAndStdout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "etl_monitor.log")
	var out bytes.Buffer

	logger := newLogger(Config{Level: "info", Format: "json", File: path, MaxSizeMB: 1}, &out)
	logger.Info().Str("component", "test").Msg("hello")
	logger.Debug().Msg("below level")

	if !strings.Contains(out.String(), `"message":"hello"`) {
		t.Fatalf("stdout should receive json entry, got %q", out.String())
	}
	if strings.Contains(out.String(), "below level") {
		t.Fatalf("debug entry should be filtered at info level")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("log file should exist: %v", err)
	}
	if !strings.Contains(string(data), `"component":"test"`) {
		t.Fatalf("log file should receive entry, got %q", string(data))
	}
}

func TestNewLoggerInvalidLevelFallsBackToInfo(t *testing.T) {
	var out bytes.Buffer
	logger := newLogger(Config{Level: "loud", Format: "json"}, &out)
	logger.Info().Msg("kept")
	logger.Debug().Msg("dropped")

	if !strings.Contains(out.String(), "kept") || strings.Contains(out.String(), "dropped") {
		t.Fatalf("unexpected output %q", out.String())
	}
}
