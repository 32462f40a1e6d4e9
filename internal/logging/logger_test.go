package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevelDefaultsToInfo(t *testing.T) {
	cases := []struct {
		input    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"bogus", slog.LevelInfo},
	}
	for _, tc := range cases {
		if got := parseLevel(tc.input); got != tc.expected {
			t.Fatalf("parseLevel(%q) = %v, want %v", tc.input, got, tc.expected)
		}
	}
}

func TestConsoleHandlerPullsComponentIntoPrefix(t *testing.T) {
	var buf bytes.Buffer
	levelVar := new(slog.LevelVar)
	logger := slog.New(newConsoleHandler(&buf, levelVar))

	WithComponent(logger, "orchestrator").Info("round complete",
		Int(FieldRound, 3),
		String(FieldTaskID, "task-1"),
	)

	line := buf.String()
	if !strings.Contains(line, "orchestrator: round complete") {
		t.Fatalf("expected component prefix, got %q", line)
	}
	if !strings.Contains(line, "round=3") || !strings.Contains(line, "task_id=task-1") {
		t.Fatalf("expected attrs rendered, got %q", line)
	}
	if strings.Contains(line, "component=") {
		t.Fatalf("component should not render as key=value, got %q", line)
	}
}

func TestConsoleHandlerQuotesValuesWithSpaces(t *testing.T) {
	var buf bytes.Buffer
	levelVar := new(slog.LevelVar)
	logger := slog.New(newConsoleHandler(&buf, levelVar))

	logger.Info("status", String("message", "two words"))
	if !strings.Contains(buf.String(), `message="two words"`) {
		t.Fatalf("expected quoted value, got %q", buf.String())
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := New(Options{Format: "yaml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestNopLoggerDiscards(t *testing.T) {
	logger := NewNop()
	if logger.Enabled(context.Background(), slog.LevelError) {
		t.Fatal("nop logger should disable all levels")
	}
}
