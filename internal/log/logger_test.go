package log

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"INFO", slog.LevelInfo, false},
		{"", slog.LevelInfo, false},
		{"warn", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"loud", slog.LevelInfo, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Fatalf("ParseLevel(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestLoggerComponentTag(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: slog.LevelDebug, Component: ComponentStorage, Output: &buf})

	logger.Info("saved", FieldRecords, 3)
	logger.WithComponent(ComponentService).Debug("restored")

	out := buf.String()
	if !strings.Contains(out, "component=storage") || !strings.Contains(out, "records=3") {
		t.Errorf("missing storage fields in %q", out)
	}
	if !strings.Contains(out, "component=service") {
		t.Errorf("missing service component in %q", out)
	}
	if strings.Count(out, "component=") != 2 {
		t.Errorf("component should be logged once per entry: %q", out)
	}
}

func TestContextRoundTrip(t *testing.T) {
	logger := Discard().WithComponent(ComponentCLI)
	ctx := WithContext(context.Background(), logger)

	if got := FromContext(ctx); got != logger {
		t.Errorf("FromContext returned a different logger")
	}
	if got := FromContext(context.Background()).Component(); got != "unknown" {
		t.Errorf("fallback component = %q", got)
	}
}

func TestStructuredLogger(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStructuredLogger(New(Config{Output: &buf}))

	sl.LogImportCompleted(context.Background(), "abc", "data.csv", 10, 2)
	sl.LogError(context.Background(), "save failed", errors.New("storage quota exceeded"), ComponentStorage, OpSave, nil)
	r := httptest.NewRequest(http.MethodGet, "/api/records", nil)
	sl.LogHTTPEnd(context.Background(), r, 503, 4, "10.0.0.1")

	out := buf.String()
	for _, want := range []string{"import_id=abc", "records=10", "errors=2", `error="storage quota exceeded"`, "level=ERROR", "status_code=503"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q: %s", want, out)
		}
	}
}
