package logging_test

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"clipforge/internal/logging"
)

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "yaml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestConsoleHandlerRendersComponentAndAttrs(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Format: "console", Level: "debug", OutputPaths: []string{"stdout"}})
	if err != nil {
		t.Fatalf("logging.New: %v", err)
	}
	_ = logger

	// Drive the handler directly against a buffer.
	handler := logging.NewTestHandler(&buf)
	scoped := slog.New(handler).With(logging.String(logging.FieldComponent, "orchestrator"))
	scoped.Info("job claimed", logging.String(logging.FieldJobID, "abc"), logging.Int("attempt", 2))

	line := buf.String()
	if !strings.Contains(line, "INFO orchestrator: job claimed") {
		t.Fatalf("unexpected line: %q", line)
	}
	if !strings.Contains(line, "job_id=abc") || !strings.Contains(line, "attempt=2") {
		t.Fatalf("missing attrs in line: %q", line)
	}
}

func TestNopLoggerDiscards(t *testing.T) {
	logger := logging.NewNop()
	logger.Error("should not panic", logging.Error(nil))
}
