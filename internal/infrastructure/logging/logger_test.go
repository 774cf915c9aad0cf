package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nerrad567/klf200-bridge/internal/infrastructure/config"
)

func bufferLogger(buf *bytes.Buffer, level, format string) *Logger {
	cfg := config.LoggingConfig{Level: level, Format: format}
	return &Logger{Logger: slog.New(newHandler(buf, cfg, "test"))}
}

func TestNew(t *testing.T) {
	tests := []struct {
		name   string
		output string
		format string
	}{
		{"json stdout", "stdout", "json"},
		{"text stderr", "stderr", "text"},
		{"unknown output", "syslog", "json"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := New(config.LoggingConfig{Level: "info", Format: tt.format, Output: tt.output}, "1.0.0")
			if logger == nil {
				t.Fatal("New() returned nil")
			}
			if logger.file != nil {
				t.Error("console logger should not own a file")
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"DEBUG", slog.LevelDebug},
		{"Error", slog.LevelError},
		{"trace", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		if got := parseLevel(tt.input); got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestHandler_DefaultAttributes(t *testing.T) {
	var buf bytes.Buffer
	bufferLogger(&buf, "info", "json").Info("session ready", "generation", "g1")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, buf.String())
	}

	want := map[string]string{
		"service":    ServiceName,
		"version":    "test",
		"msg":        "session ready",
		"generation": "g1",
	}
	for k, v := range want {
		if entry[k] != v {
			t.Errorf("%s = %v, want %q", k, entry[k], v)
		}
	}
}

func TestHandler_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	logger := bufferLogger(&buf, "warn", "text")
	logger.Info("hidden")
	logger.Warn("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("info entry passed a warn filter")
	}
	if !strings.Contains(out, "msg=shown") {
		t.Errorf("warn entry missing from text output: %s", out)
	}
}

func TestWith(t *testing.T) {
	var buf bytes.Buffer
	parent := bufferLogger(&buf, "info", "json")
	child := parent.With("component", "watchdog")

	if child == parent {
		t.Fatal("With() returned the parent")
	}
	if err := child.Close(); err != nil {
		t.Errorf("child Close() error = %v", err)
	}

	child.Info("connected")
	if !strings.Contains(buf.String(), `"component":"watchdog"`) {
		t.Errorf("child attribute missing: %s", buf.String())
	}
}

func TestNew_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bridge.log")
	logger := New(config.LoggingConfig{
		Level:  "info",
		Format: "json",
		Output: "file",
		File:   config.FileLoggingConfig{Path: path, MaxSize: 1, MaxBackups: 1},
	}, "1.0.0")

	logger.Info("written to file")
	if err := logger.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	if !strings.Contains(string(data), "written to file") {
		t.Errorf("log file is missing the entry: %s", data)
	}
}

func TestDefault(t *testing.T) {
	logger := Default()
	if logger == nil {
		t.Fatal("Default() returned nil")
	}
	if err := logger.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}
