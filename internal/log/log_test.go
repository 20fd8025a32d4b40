package log

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestNewJSONFormatAndComponent(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: slog.LevelInfo, Format: "json", Component: ComponentWorker, Output: &buf})
	l.WithComponent(ComponentNotifier).With("k", "v").Info("hello")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("expected one json record, got %q: %v", buf.String(), err)
	}
	if rec["component"] != ComponentNotifier || rec["k"] != "v" || rec["msg"] != "hello" {
		t.Fatalf("unexpected record %v", rec)
	}
	if strings.Count(buf.String(), `"component"`) != 1 {
		t.Fatalf("component logged more than once: %s", buf.String())
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: ParseLevel("warn"), Output: &buf})
	l.Info("dropped")
	l.Warn("kept")
	if strings.Contains(buf.String(), "dropped") || !strings.Contains(buf.String(), "kept") {
		t.Fatalf("unexpected output %q", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug": slog.LevelDebug, "INFO": slog.LevelInfo, "warning": slog.LevelWarn,
		"error": slog.LevelError, "": slog.LevelInfo, "verbose": slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestContextCarrier(t *testing.T) {
	l := Discard().WithComponent(ComponentCLI)
	ctx := WithContext(context.Background(), l)
	if FromContext(ctx) != l {
		t.Fatalf("expected the stored logger back")
	}
	if FromContext(context.Background()) == nil {
		t.Fatalf("expected a default logger")
	}
}

func TestStructuredLoggerEvents(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStructuredLogger(New(Config{Format: "json", Output: &buf}))
	id := uuid.New()

	sl.LogNotificationFailed(context.Background(), id, 4, 75, "p", errors.New("boom"))

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rec[FieldBudgetID] != id.String() || rec[FieldThreshold] != float64(75) || rec[FieldError] != "boom" {
		t.Fatalf("unexpected record %v", rec)
	}
	if rec["level"] != "ERROR" {
		t.Fatalf("expected error level, got %v", rec["level"])
	}
}

func TestLogFieldsWithErrorNil(t *testing.T) {
	f := NewFields().WithError(nil)
	if _, ok := f[FieldError]; ok {
		t.Fatalf("nil error should not add a field")
	}
}

func TestTraceIDFromContext(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Format: "json", Output: &buf}).With("k", "v")

	ctx := WithTraceID(context.Background(), "sweep-abc")
	l.InfoContext(ctx, "traced")
	l.Info("untraced")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected two records, got %q", buf.String())
	}
	var traced, untraced map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &traced); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if err := json.Unmarshal([]byte(lines[1]), &untraced); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if traced[FieldTraceID] != "sweep-abc" || traced["k"] != "v" {
		t.Fatalf("unexpected traced record %v", traced)
	}
	if _, ok := untraced[FieldTraceID]; ok {
		t.Fatalf("record without trace context got a trace id: %v", untraced)
	}
}

func TestNewTraceID(t *testing.T) {
	a, b := NewTraceID("sweep"), NewTraceID("sweep")
	if !strings.HasPrefix(a, "sweep-") || len(a) != len("sweep-")+16 {
		t.Fatalf("unexpected id %q", a)
	}
	if a == b {
		t.Fatalf("expected distinct ids, got %q twice", a)
	}
	if TraceID(context.Background()) != "" {
		t.Fatalf("expected empty trace id")
	}
}
