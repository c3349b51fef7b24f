package logutil_test

import (
	"log/slog"
	"testing"

	"github.com/MahdiBaghbani/fileshare-go/internal/platform/logutil"
)

func TestNoopIfNil(t *testing.T) {
	if logutil.NoopIfNil(nil) == nil {
		t.Fatal("expected discard logger for nil input")
	}

	l := slog.Default()
	if logutil.NoopIfNil(l) != l {
		t.Error("expected the same logger back")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"trace", logutil.LevelTrace},
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{" WARN ", slog.LevelWarn},
		{"error", slog.LevelError},
		{"bogus", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		if got := logutil.ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestRedactToken(t *testing.T) {
	token := "abcdefghijklmnopqrstuvwxyz"

	if got := logutil.RedactToken(token, false); got != "abcdef..." {
		t.Errorf("unexpected redaction: %q", got)
	}
	if got := logutil.RedactToken(token, true); got != token {
		t.Errorf("allow_sensitive should keep the token, got %q", got)
	}
	if got := logutil.RedactToken("abc", false); got != "[REDACTED]" {
		t.Errorf("short tokens must be fully redacted, got %q", got)
	}
}
