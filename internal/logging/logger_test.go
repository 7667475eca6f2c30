package logging

import (
	"bufio"
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  slog.Level
	}{
		{"info", "info", slog.LevelInfo},
		{"debug", "debug", slog.LevelDebug},
		{"trace", "trace", LevelTrace},
		{"uppercase DEBUG", "DEBUG", slog.LevelDebug},
		{"mixed case Trace", "Trace", LevelTrace},
		{"unknown defaults to info", "unknown", slog.LevelInfo},
		{"empty defaults to info", "", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseLevel(tt.input)
			if got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestNewLogger_LevelFiltering(t *testing.T) {
	tests := []struct {
		name       string
		level      string
		logAtDebug bool
		logAtInfo  bool
	}{
		{"info filters debug", "info", false, true},
		{"debug passes debug", "debug", true, true},
		{"trace passes debug", "trace", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewLogger(tt.level, &buf)

			logger.Debug("debug message")
			hasDebug := strings.Contains(buf.String(), "debug message")
			if hasDebug != tt.logAtDebug {
				t.Errorf("debug message visible = %v, want %v (buf: %q)", hasDebug, tt.logAtDebug, buf.String())
			}

			buf.Reset()
			logger.Info("info message")
			hasInfo := strings.Contains(buf.String(), "info message")
			if hasInfo != tt.logAtInfo {
				t.Errorf("info message visible = %v, want %v (buf: %q)", hasInfo, tt.logAtInfo, buf.String())
			}
		})
	}
}

func TestNewLogger_TraceLabel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger("trace", &buf)
	logger.Log(t.Context(), LevelTrace, "step detail")

	if !strings.Contains(buf.String(), "level=TRACE") {
		t.Errorf("expected TRACE label, got %q", buf.String())
	}
}

func TestDiscard(t *testing.T) {
	logger := Discard()
	if logger.Enabled(t.Context(), slog.LevelError) {
		t.Error("Discard logger should not be enabled at error level")
	}
}

func readEvents(t *testing.T, dir string) []map[string]any {
	t.Helper()
	f, err := os.Open(filepath.Join(dir, EventsFile))
	if err != nil {
		t.Fatalf("failed to open %s: %v", EventsFile, err)
	}
	defer f.Close()

	var events []map[string]any
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var entry map[string]any
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			t.Fatalf("failed to parse JSONL entry: %v", err)
		}
		events = append(events, entry)
	}
	return events
}

func TestNewEventLogger_InfoLevel(t *testing.T) {
	dir := t.TempDir()
	el := NewEventLogger(dir, "info")

	if el != nil {
		t.Error("expected nil EventLogger at info level")
	}

	// Nil logger should still be safe to use
	el.Log(map[string]any{"event": "test"})
	el.Progress(0, 10)
	el.WithRun("abc")
	el.Close()

	if _, err := os.Stat(filepath.Join(dir, EventsFile)); err == nil {
		t.Errorf("%s should not exist at info level", EventsFile)
	}
}

func TestEventLogger_DebugLevel(t *testing.T) {
	dir := t.TempDir()
	el := NewEventLogger(dir, "debug")
	if el == nil {
		t.Fatal("expected EventLogger at debug level")
	}

	el.Log(map[string]any{"event": EventRunStarted, "neurons": 100})
	el.Progress(100, 10000)
	el.Close()

	events := readEvents(t, dir)
	if len(events) != 1 {
		t.Fatalf("expected 1 event (progress skipped at debug), got %d", len(events))
	}
	if events[0]["event"] != EventRunStarted {
		t.Errorf("event = %v, want %s", events[0]["event"], EventRunStarted)
	}
	if events[0]["neurons"] != float64(100) {
		t.Errorf("neurons = %v, want 100", events[0]["neurons"])
	}
	if _, ok := events[0]["time"]; !ok {
		t.Error("expected 'time' field in event")
	}
}

func TestEventLogger_TraceLevelRecordsProgress(t *testing.T) {
	dir := t.TempDir()
	el := NewEventLogger(dir, "trace")
	el.WithRun("run-1")
	el.Progress(200, 1000)
	el.Close()

	events := readEvents(t, dir)
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0]["event"] != EventProgress || events[0]["step"] != float64(200) {
		t.Errorf("unexpected progress event: %v", events[0])
	}
	if events[0]["run_id"] != "run-1" {
		t.Errorf("run_id = %v, want run-1", events[0]["run_id"])
	}
}

func TestEventLogger_DoesNotMutateCallerMap(t *testing.T) {
	dir := t.TempDir()
	el := NewEventLogger(dir, "debug")
	defer el.Close()

	event := map[string]any{"event": "test"}
	el.WithRun("abc")
	el.Log(event)

	if len(event) != 1 {
		t.Errorf("Log() should not mutate caller's map, got %v", event)
	}
}

func TestEventLogger_LogAfterClose(t *testing.T) {
	dir := t.TempDir()
	el := NewEventLogger(dir, "debug")

	el.Log(map[string]any{"event": "before_close"})
	el.Close()
	el.Log(map[string]any{"event": "after_close"})

	if n := len(readEvents(t, dir)); n != 1 {
		t.Errorf("expected 1 event, got %d", n)
	}
}

func TestNewEventLogger_CreatesDir(t *testing.T) {
	nestedDir := filepath.Join(t.TempDir(), "sub", "dir")

	el := NewEventLogger(nestedDir, "debug")
	if el == nil {
		t.Fatal("expected non-nil EventLogger when dir needs creation")
	}
	defer el.Close()

	el.Log(map[string]any{"event": "dir_create_test"})

	info, err := os.Stat(filepath.Join(nestedDir, EventsFile))
	if err != nil {
		t.Fatalf("%s should exist after dir creation: %v", EventsFile, err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("file permissions = %o, want 0600", perm)
	}
}
