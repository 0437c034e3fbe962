package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestLogMergesContextAttrs(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	ctx := WithLogger(context.Background(), logger)
	ctx = WithAttrs(ctx, slog.String("component", "orphan.resolve"))
	ctx = WithRequest(ctx, "req-1", "")
	Info(ctx, "resolved", slog.String("component", "orphan.reingest"))

	line := buf.String()
	for _, want := range []string{"msg=resolved", "component=orphan.reingest", "request_id=req-1"} {
		if !strings.Contains(line, want) {
			t.Fatalf("log line %q missing %q", line, want)
		}
	}
	if strings.Contains(line, "orphan.resolve") || strings.Contains(line, "user_id") {
		t.Fatalf("log line %q kept overridden or empty attrs", line)
	}
}

func TestChildAttrsDoNotLeakIntoParent(t *testing.T) {
	var buf bytes.Buffer
	parent := WithAttrs(WithLogger(context.Background(), slog.New(slog.NewTextHandler(&buf, nil))), slog.String("component", "orphan.intake"))
	child := WithAttrs(parent, slog.String("composite_id", "C1"))
	_ = WithLogger(child, nil)

	Info(parent, "parent")
	if line := buf.String(); strings.Contains(line, "composite_id") || !strings.Contains(line, "component=orphan.intake") {
		t.Fatalf("parent log line %q", line)
	}

	buf.Reset()
	Warn(child, "child")
	if line := buf.String(); !strings.Contains(line, "composite_id=C1") || !strings.Contains(line, "level=WARN") {
		t.Fatalf("child log line %q", line)
	}
}

func TestLoggerFallsBackToDefault(t *testing.T) {
	if Logger(context.Background()) != slog.Default() {
		t.Fatalf("Logger() without installed logger should be slog.Default")
	}

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}))
	ctx := WithLogger(context.Background(), logger)
	Info(ctx, "dropped")
	if buf.Len() != 0 {
		t.Fatalf("info below handler level was written: %q", buf.String())
	}
	Error(ctx, "kept")
	if !strings.Contains(buf.String(), "msg=kept") {
		t.Fatalf("error line missing: %q", buf.String())
	}
}
