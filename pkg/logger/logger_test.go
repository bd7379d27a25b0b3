package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestInit_WritesToFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "logs", "run.log")

	if err := Init(path); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	Info("scenario %s started", "add_single_item")
	Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	out := string(data)
	if !strings.Contains(out, "scenario add_single_item started") {
		t.Errorf("expected message in log, got %q", out)
	}
	if !strings.Contains(out, "level=info") {
		t.Errorf("expected level field in log, got %q", out)
	}
}

func TestDebug_RespectsVerbose(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer Close()

	SetVerbose(false)
	Debug("hidden")
	if buf.Len() != 0 {
		t.Errorf("expected no debug output, got %q", buf.String())
	}

	SetVerbose(true)
	defer SetVerbose(false)
	Debug("visible")
	if !strings.Contains(buf.String(), "visible") {
		t.Errorf("expected debug output, got %q", buf.String())
	}
}

func TestWithFields(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer Close()

	WithFields(map[string]interface{}{"item": "Milk", "index": 2}).Info("delete")
	out := buf.String()
	if !strings.Contains(out, "item=Milk") || !strings.Contains(out, "index=2") {
		t.Errorf("expected structured fields, got %q", out)
	}
}

func TestRunLogPath(t *testing.T) {
	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	got := RunLogPath("reports", ts)
	want := filepath.Join("reports", "logs", "test_run_20260102_030405.log")
	if got != want {
		t.Errorf("RunLogPath = %q, want %q", got, want)
	}
}

func TestGetWriter_NoFile(t *testing.T) {
	Close()
	if w := GetWriter(); w == nil {
		t.Error("expected non-nil writer")
	}
}
