package telemetry

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"DEBUG", slog.LevelDebug},
		{"debug", slog.LevelDebug},
		{"warn", slog.LevelWarn},
		{"ERROR", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}

	for _, tt := range tests {
		if got := LogLevel(tt.in); got != tt.want {
			t.Errorf("LogLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestSetupLogger_ConsoleAndFile(t *testing.T) {
	dir := t.TempDir()
	var stdout bytes.Buffer

	logger, closer, err := SetupLogger(LogOptions{
		Level:  "info",
		Sinks:  []Sink{SinkConsole, SinkFile},
		Dir:    filepath.Join(dir, "logs"),
		Stdout: &stdout,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	logger.Debug("hidden")
	logger.Info("order created", "order_id", "o-1")

	if err := closer.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	// console
	if strings.Contains(stdout.String(), "hidden") {
		t.Error("debug record should be filtered")
	}
	var rec map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(stdout.Bytes()), &rec); err != nil {
		t.Fatalf("console output is not json: %v (%q)", err, stdout.String())
	}
	if rec["order_id"] != "o-1" {
		t.Errorf("expected order_id in console record, got %v", rec)
	}

	// file
	data, err := os.ReadFile(filepath.Join(dir, "logs", LogFileName))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), `"msg":"order created"`) {
		t.Errorf("expected record in log file, got %q", data)
	}
}

func TestSetupLogger_TextFormat(t *testing.T) {
	var stdout bytes.Buffer

	logger, _, err := SetupLogger(LogOptions{
		Format: "text",
		Sinks:  []Sink{SinkConsole},
		Stdout: &stdout,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	logger.Warn("slow page", "page_type", "products")
	if !strings.Contains(stdout.String(), "page_type=products") {
		t.Errorf("expected text output, got %q", stdout.String())
	}
}

func TestSetupLogger_UnknownSink(t *testing.T) {
	_, _, err := SetupLogger(LogOptions{Sinks: []Sink{"kafka"}})
	if !errors.Is(err, ErrUnknownSink) {
		t.Errorf("expected ErrUnknownSink, got %v", err)
	}
}

func TestSetupLogger_RemoteWithoutProviderIsSkipped(t *testing.T) {
	logger, closer, err := SetupLogger(LogOptions{Sinks: []Sink{SinkRemote}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer closer.Close()

	// Без sink'ов логгер ничего не пишет, но и не падает
	logger.Info("dropped")
}
