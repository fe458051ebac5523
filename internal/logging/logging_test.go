package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"INFO", zapcore.InfoLevel},
		{"warn", zapcore.WarnLevel},
		{"warning", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
		{"", zapcore.InfoLevel},
		{"bogus", zapcore.InfoLevel},
	}
	for _, tt := range tests {
		if got := parseLevel(tt.input); got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestNewWritesJSONToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.log")
	logger, closeFn, err := New(&Config{Level: "info", Format: "json", Output: path})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	logger.Debug("hidden")
	logger.Info("worker message", zap.Int("worker_id", 2))
	if err := closeFn(); err != nil {
		t.Fatalf("close error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected 1 line (debug filtered), got %d: %q", len(lines), data)
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	if entry["msg"] != "worker message" || entry["level"] != "info" || entry["worker_id"] != float64(2) {
		t.Fatalf("unexpected entry: %v", entry)
	}
}

func TestNewConsoleFormatToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.log")
	logger, closeFn, err := New(&Config{Level: "debug", Format: "console", Output: path})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	logger.Debug("debug line")
	_ = closeFn()

	data, _ := os.ReadFile(path)
	if !strings.Contains(string(data), "DEBUG") || !strings.Contains(string(data), "debug line") {
		t.Fatalf("unexpected console output: %q", data)
	}
	if strings.Contains(string(data), "\x1b[") {
		t.Fatal("file output must not contain color codes")
	}
}

func TestNewDiscard(t *testing.T) {
	logger, closeFn, err := New(&Config{Output: OutputDiscard})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if logger.Core().Enabled(zapcore.ErrorLevel) {
		t.Fatal("discard logger should be disabled")
	}
	if err := closeFn(); err != nil {
		t.Fatalf("close error = %v", err)
	}
}

func TestNewBadFile(t *testing.T) {
	_, _, err := New(&Config{Output: filepath.Join(t.TempDir(), "missing", "dir", "run.log")})
	if err == nil {
		t.Fatal("expected error for unwritable log path")
	}
}

func TestNewNilConfig(t *testing.T) {
	logger, closeFn, err := New(nil)
	if err != nil || logger == nil {
		t.Fatalf("New(nil) = %v, %v", logger, err)
	}
	_ = closeFn
}
