package appctx

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
)

func TestWithLogger_And_LoggerFromContext(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := slog.New(slog.NewTextHandler(buf, nil))

	ctx := WithLogger(context.Background(), logger)

	got, ok := LoggerFromContext(ctx)
	if !ok {
		t.Fatal("expected LoggerFromContext to report a logger")
	}
	if got != logger {
		t.Error("expected same logger instance")
	}
}

func TestLoggerFromContext_NilLogger(t *testing.T) {
	ctx := context.WithValue(context.Background(), loggerKey{}, (*slog.Logger)(nil))

	got, ok := LoggerFromContext(ctx)
	if ok || got != nil {
		t.Error("a stored nil logger must not be reported")
	}
}

func TestGetLogger_FallsBackToDefault(t *testing.T) {
	if GetLogger(context.Background()) != slog.Default() {
		t.Error("expected slog.Default() when no logger is attached")
	}
}

func TestGetLogger_ActuallyLogs(t *testing.T) {
	buf := &bytes.Buffer{}
	ctx := WithLogger(context.Background(), slog.New(slog.NewTextHandler(buf, nil)))

	GetLogger(ctx).Info("share served", "share_id", "abc")

	if !bytes.Contains(buf.Bytes(), []byte("share served")) {
		t.Errorf("expected message in output, got: %s", buf.String())
	}
	if !bytes.Contains(buf.Bytes(), []byte("share_id=abc")) {
		t.Errorf("expected attribute in output, got: %s", buf.String())
	}
}

func TestClientIP(t *testing.T) {
	if got := ClientIP(context.Background()); got != "unknown" {
		t.Errorf("expected unknown, got %q", got)
	}

	ctx := WithClientIP(context.Background(), "203.0.113.7")
	if got := ClientIP(ctx); got != "203.0.113.7" {
		t.Errorf("expected 203.0.113.7, got %q", got)
	}

	ctx = WithClientIP(context.Background(), "")
	if got := ClientIP(ctx); got != "unknown" {
		t.Errorf("empty address should read as unknown, got %q", got)
	}
}
