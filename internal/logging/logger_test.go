package logging

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoggerWritesFileAndConsole(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "calcforge.log")
	var console bytes.Buffer
	clock := func() time.Time { return time.Date(2026, 10, 19, 8, 30, 0, 0, time.UTC) }
	logger, err := New(path, WithConsole(&console), WithClock(clock))
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	defer logger.Close()

	logger.Info("item %q stage=%s", "BMI Calculator", "generate")
	logger.Warn("retrying")
	logger.Error("verify failed")

	lines := logger.Tail(10)
	if len(lines) != 3 {
		t.Fatalf("len(lines) = %d, want 3", len(lines))
	}
	if !strings.HasPrefix(lines[0], "2026-10-19T08:30:00Z INFO  item \"BMI Calculator\" stage=generate") {
		t.Fatalf("unexpected first line %q", lines[0])
	}
	if !strings.Contains(lines[2], "ERROR verify failed") {
		t.Fatalf("unexpected error line %q", lines[2])
	}
	if !strings.Contains(console.String(), "retrying") {
		t.Fatalf("console mirror missing entries: %q", console.String())
	}
}

func TestTailReturnsRecentLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.log")
	logger, err := New(path, WithConsole(nil))
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	defer logger.Close()
	for i := 0; i < 5; i++ {
		logger.Info("entry-%d", i)
	}
	lines := logger.Tail(3)
	if len(lines) != 3 {
		t.Fatalf("len(lines) = %d, want 3", len(lines))
	}
	for idx, want := range []string{"entry-2", "entry-3", "entry-4"} {
		if !strings.Contains(lines[idx], want) {
			t.Fatalf("line %d = %q, missing %s", idx, lines[idx], want)
		}
	}
}

func TestNilLoggerIsSafe(t *testing.T) {
	var logger *Logger
	logger.Info("ignored")
	logger.SetConsole(nil)
	if logger.Tail(5) != nil || logger.Path() != "" || logger.Close() != nil {
		t.Fatalf("nil logger must be inert")
	}
	Discard().Warn("also ignored")
}
