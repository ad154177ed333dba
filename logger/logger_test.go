package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"
)

func jsonLogger(buf *bytes.Buffer, level string) *Logger {
	return NewWithWriter(&Config{Level: level, Format: "json"}, "assetflow", buf)
}

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	line := strings.TrimSpace(buf.String())
	if idx := strings.LastIndex(line, "\n"); idx >= 0 {
		line = line[idx+1:]
	}
	var m map[string]interface{}
	if err := json.Unmarshal([]byte(line), &m); err != nil {
		t.Fatalf("unexpected error decoding %q: %v", line, err)
	}
	return m
}

func TestNewDefault(t *testing.T) {
	l := NewDefault("test-svc")
	if l == nil {
		t.Fatal("expected non-nil logger")
	}
	if l.service != "test-svc" {
		t.Errorf("expected service 'test-svc', got %q", l.service)
	}
}

func TestNewInvalidLevel(t *testing.T) {
	var buf bytes.Buffer
	l := jsonLogger(&buf, "invalid-level")
	l.Info("still logs")
	if buf.Len() == 0 {
		t.Fatal("expected logger to fall back to info level")
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := jsonLogger(&buf, "warn")
	l.Info("dropped")
	if buf.Len() != 0 {
		t.Fatalf("expected info to be filtered at warn level, got %q", buf.String())
	}
	l.Warn("kept")
	if decodeLine(t, &buf)["message"] != "kept" {
		t.Error("expected warn message to be written")
	}
}

func TestWithComponent(t *testing.T) {
	var buf bytes.Buffer
	l := jsonLogger(&buf, "info").WithComponent("scheduler")
	l.Info("hello")
	m := decodeLine(t, &buf)
	if m[FieldComponent] != "scheduler" {
		t.Errorf("expected component field, got %v", m[FieldComponent])
	}
	if m["service"] != "assetflow" {
		t.Errorf("expected service field, got %v", m["service"])
	}
}

func TestWithContext(t *testing.T) {
	var buf bytes.Buffer
	ctx := ContextWithRunID(context.Background(), "run-1")
	ctx = ContextWithTask(ctx, "styles")
	jsonLogger(&buf, "info").WithContext(ctx).Info("task started")

	m := decodeLine(t, &buf)
	if m[FieldRunID] != "run-1" {
		t.Errorf("expected run_id run-1, got %v", m[FieldRunID])
	}
	if m[FieldTask] != "styles" {
		t.Errorf("expected task styles, got %v", m[FieldTask])
	}
	if RunIDFromContext(ctx) != "run-1" {
		t.Errorf("expected RunIDFromContext to return run-1")
	}
}

func TestWithFieldsAndError(t *testing.T) {
	var buf bytes.Buffer
	l := jsonLogger(&buf, "info").
		WithFields(map[string]interface{}{"key": "value"}).
		WithError(fmt.Errorf("boom"))
	l.Error("failed", Fields(FieldRecords, 3))

	m := decodeLine(t, &buf)
	if m["key"] != "value" {
		t.Errorf("expected key=value, got %v", m["key"])
	}
	if m["error"] != "boom" {
		t.Errorf("expected error=boom, got %v", m["error"])
	}
	if m[FieldRecords] != float64(3) {
		t.Errorf("expected records=3, got %v", m[FieldRecords])
	}
}

func TestNop(t *testing.T) {
	// must not panic
	Nop().Info("ignored", Fields("a", 1))
}

func TestConsoleWriterNoColor(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&Config{Level: "info", Format: "console", NoColor: true}, "assetflow", &buf)
	l.Warn("careful")
	out := buf.String()
	if !strings.Contains(out, "[ASS][WRN]") {
		t.Errorf("expected service and level tags in %q", out)
	}
	if !strings.Contains(out, "careful") {
		t.Errorf("expected message in %q", out)
	}
}

func TestInitAndGlobal(t *testing.T) {
	l := Init(Config{Level: "debug", Format: "json", Output: "stderr"}, "assetflow")
	if GetGlobalLogger() != l {
		t.Fatal("expected Init to set the global logger")
	}
	// These should not panic
	Debug("debug msg")
	Info("info msg")
	Warn("warn msg")
	Error("error msg")

	globalLogger = nil
	if GetGlobalLogger() == nil {
		t.Fatal("expected default global logger to be created")
	}
}

func TestConfigApplyDefaults(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()

	if cfg.Level != "info" {
		t.Errorf("expected level 'info', got %q", cfg.Level)
	}
	if cfg.Format != "console" {
		t.Errorf("expected format 'console', got %q", cfg.Format)
	}
	if cfg.Output != "stderr" {
		t.Errorf("expected output 'stderr', got %q", cfg.Output)
	}
	if !cfg.Timestamp {
		t.Error("expected Timestamp to be true")
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"valid", Config{Level: "info", Format: "json", Output: "stderr"}, false},
		{"valid console", Config{Level: "debug", Format: "console", Output: "stdout"}, false},
		{"invalid level", Config{Level: "bad", Format: "json", Output: "stderr"}, true},
		{"invalid format", Config{Level: "info", Format: "xml", Output: "stderr"}, true},
		{"invalid output", Config{Level: "info", Format: "json", Output: "file"}, true},
		{"component level", Config{Level: "info", Format: "json", Output: "stderr", Components: map[string]string{"scheduler": "debug"}}, false},
		{"invalid component level", Config{Level: "info", Format: "json", Output: "stderr", Components: map[string]string{"watch": "loud"}}, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if (err != nil) != tc.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

func TestRegisterAndGet(t *testing.T) {
	l := NewDefault("custom-component")
	Register("my-component", l)

	if Get("my-component") != l {
		t.Error("expected Get to return the registered logger")
	}
	if got := Get("unregistered-component"); got.Component() != "unregistered-component" {
		t.Errorf("expected fallback tagged with the component, got %q", got.Component())
	}
}

func TestRegisterComponents(t *testing.T) {
	var buf bytes.Buffer
	base := jsonLogger(&buf, "info")
	levels := map[string]string{"scheduler": "debug", "lint": "error"}
	if err := RegisterComponents(base, levels, "scheduler", "process"); err != nil {
		t.Fatal(err)
	}

	Get("scheduler").Debug("dispatch")
	if m := decodeLine(t, &buf); m["message"] != "dispatch" || m[FieldComponent] != "scheduler" {
		t.Errorf("expected scheduler debug line, got %v", m)
	}

	buf.Reset()
	Get("process").Debug("dropped")
	Get("lint").Warn("dropped")
	if buf.Len() != 0 {
		t.Errorf("expected base and override levels to filter, got %q", buf.String())
	}

	// Already tagged loggers are not tagged twice.
	if Get("process").WithComponent("process") != Get("process") {
		t.Error("expected WithComponent to keep an already tagged logger")
	}

	if err := RegisterComponents(base, map[string]string{"watch": "loud"}); err == nil {
		t.Error("expected an error for an unknown level")
	}
}

func TestFields(t *testing.T) {
	tests := []struct {
		name     string
		input    []interface{}
		expected map[string]interface{}
	}{
		{"key-value pairs", []interface{}{"task", "styles", "records", 42}, map[string]interface{}{"task": "styles", "records": 42}},
		{"odd number of args", []interface{}{"task", "styles", "trailing"}, map[string]interface{}{"task": "styles"}},
		{"non-string key skipped", []interface{}{123, "value", "key", "val"}, map[string]interface{}{"key": "val"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			result := Fields(tc.input...)
			if len(result) != len(tc.expected) {
				t.Fatalf("expected %d fields, got %d", len(tc.expected), len(result))
			}
			for k, v := range tc.expected {
				if result[k] != v {
					t.Errorf("Fields[%q] = %v, expected %v", k, result[k], v)
				}
			}
		})
	}
}

func TestErrorAndDurationFields(t *testing.T) {
	fields := ErrorFields("styles", fmt.Errorf("something broke"))
	if fields[FieldTask] != "styles" || fields[FieldError] != "something broke" {
		t.Errorf("unexpected error fields %v", fields)
	}

	fields = DurationFields("images", 150*time.Millisecond)
	if fields[FieldDuration] != int64(150) {
		t.Errorf("expected duration 150, got %v", fields[FieldDuration])
	}

	merged := MergeWithError(nil, fmt.Errorf("test error"))
	if merged[FieldError] != "test error" {
		t.Errorf("expected error field from nil map, got %v", merged[FieldError])
	}
}
