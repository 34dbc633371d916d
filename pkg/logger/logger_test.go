package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"strings"
	"testing"
	"time"
)

// captureOutput redirects the global handler output into a buffer for the test.
func captureOutput(t *testing.T, format string) *bytes.Buffer {
	t.Helper()
	buf := &bytes.Buffer{}
	out = buf
	t.Cleanup(func() {
		out = os.Stdout
		_ = Init()
		SetLevel(0)
	})
	if err := SetFormat(format); err != nil {
		t.Fatalf("SetFormat(%q) error = %v", format, err)
	}
	return buf
}

func TestLoggerInit(t *testing.T) {
	if err := Init(); err != nil {
		t.Fatalf("failed to initialize logger: %v", err)
	}
	defer func() {
		if err := Sync(); err != nil {
			t.Errorf("failed to sync logger: %v", err)
		}
	}()

	if Get() == nil {
		t.Fatal("logger is nil after initialization")
	}
}

func TestLoggerJSONFields(t *testing.T) {
	buf := captureOutput(t, "json")

	Get().Info(context.Background(), "cycle finished",
		String("cycle", "abc"),
		Int("scored", 2),
		Int64("member", 7),
		Bool("cancelled", false),
		Duration("took", time.Second),
		Error(errors.New("boom")),
	)

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("output is not JSON: %v (%q)", err, buf.String())
	}
	if rec["msg"] != "cycle finished" {
		t.Errorf("msg = %v", rec["msg"])
	}
	if rec["cycle"] != "abc" {
		t.Errorf("cycle = %v", rec["cycle"])
	}
	if rec["scored"] != float64(2) {
		t.Errorf("scored = %v", rec["scored"])
	}
	src, _ := rec["source"].(string)
	if !strings.Contains(src, "logger_test.go") {
		t.Errorf("source = %q, want caller file", src)
	}
}

func TestLoggerNamed(t *testing.T) {
	buf := captureOutput(t, "text")

	Named("reconciler").Info(context.Background(), "hello")

	if !strings.Contains(buf.String(), "component=reconciler") {
		t.Errorf("named logger output %q lacks component", buf.String())
	}
}

func TestLoggerLevel(t *testing.T) {
	buf := captureOutput(t, "text")

	if err := SetLevelString("warn"); err != nil {
		t.Fatalf("SetLevelString error = %v", err)
	}
	Get().Info(context.Background(), "hidden")
	Get().Warn(context.Background(), "shown")

	if strings.Contains(buf.String(), "hidden") {
		t.Error("info record written at warn level")
	}
	if !strings.Contains(buf.String(), "shown") {
		t.Error("warn record missing")
	}
}

func TestSetLevelStringInvalid(t *testing.T) {
	if err := SetLevelString("verbose"); err == nil {
		t.Fatal("expected error for unknown level")
	}
}

func TestSetFormatInvalid(t *testing.T) {
	if err := SetFormat("xml"); err == nil {
		t.Fatal("expected error for unknown format")
	}
}
