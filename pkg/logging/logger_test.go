package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" Warn ":  slog.LevelWarn,
		"WARNING": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestNewFiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter("warn", &buf)
	logger.Info("sweep finished")
	if buf.Len() != 0 {
		t.Fatalf("info line should be dropped at warn level, got %q", buf.String())
	}
	logger.Warn("reminder delivery failed")
	if buf.Len() == 0 {
		t.Fatal("warn line should be written at warn level")
	}
}

func TestDefaultLogger(t *testing.T) {
	logger := Default()
	ctx := context.Background()
	if !logger.Enabled(ctx, slog.LevelInfo) {
		t.Error("Default() should enable info level")
	}
	if logger.Enabled(ctx, slog.LevelDebug) {
		t.Error("Default() should not enable debug level")
	}
	if logger == Default() {
		t.Error("Default() returned the same instance twice")
	}
}

func TestWithCarriesAttributes(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter("info", &buf).With("component", "sweep")
	logger.Info("reminder sent", "reminder_id", "REM_1")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected json log line, got %q: %v", buf.String(), err)
	}
	if entry["component"] != "sweep" {
		t.Fatalf("expected component attribute, got %v", entry["component"])
	}
	if entry["reminder_id"] != "REM_1" {
		t.Fatalf("expected reminder_id attribute, got %v", entry["reminder_id"])
	}
}
