package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]zapcore.Level{
		"debug":  zapcore.DebugLevel,
		" WARN ": zapcore.WarnLevel,
		"error":  zapcore.ErrorLevel,
		"bogus":  zapcore.InfoLevel,
		"":       zapcore.InfoLevel,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNew_WritesJSONToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "app.log")
	l, cleanup, err := New(Options{File: path, Level: "info"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	Module(l, "dashboard").Info("backend offline", zap.String("base", "http://x"))
	Module(l, "dashboard").Debug("filtered out")
	cleanup()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 1 {
		t.Fatalf("got %d log lines, want 1: %s", len(lines), data)
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	if entry["level"] != "INFO" || entry["module"] != "dashboard" || entry["message"] != "backend offline" {
		t.Fatalf("unexpected entry: %v", entry)
	}
	if _, ok := entry["timestamp"]; !ok {
		t.Fatal("missing timestamp key")
	}
}

func TestNew_ConsoleLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	l, cleanup, err := New(Options{Console: &buf, ConsoleLevel: zapcore.WarnLevel})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	l.Info("quiet")
	l.Warn("loud")
	cleanup()

	out := buf.String()
	if strings.Contains(out, "quiet") || !strings.Contains(out, "loud") {
		t.Fatalf("console output = %q", out)
	}
}

func TestNew_NoOutputsIsNop(t *testing.T) {
	l, cleanup, err := New(Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer cleanup()
	l.Error("dropped")
	if Module(nil, "x") == nil {
		t.Fatal("Module(nil) returned nil")
	}
}
