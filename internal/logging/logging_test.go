package logging

import (
	"context"
	"io"
	"log/slog"
	"testing"
)

func Test_ParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}

	for _, tt := range tests {
		if got := parseLevel(tt.in); got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func Test_New_FormatSelection(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")

	t.Setenv("LOG_FORMAT", "text")
	if _, ok := New().Handler().(*slog.TextHandler); !ok {
		t.Errorf("LOG_FORMAT=text: handler is %T, want *slog.TextHandler", New().Handler())
	}

	t.Setenv("LOG_FORMAT", "json")
	if _, ok := New().Handler().(*slog.JSONHandler); !ok {
		t.Errorf("LOG_FORMAT=json: handler is %T, want *slog.JSONHandler", New().Handler())
	}

	t.Setenv("LOG_FORMAT", "")
	if _, ok := New().Handler().(*slog.JSONHandler); !ok {
		t.Errorf("default: handler is %T, want *slog.JSONHandler", New().Handler())
	}
}

func Test_New_LevelFromEnv(t *testing.T) {
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("LOG_LEVEL", "error")

	log := New()
	if log.Enabled(context.Background(), slog.LevelWarn) {
		t.Error("LOG_LEVEL=error: warn should be disabled")
	}
	if !log.Enabled(context.Background(), slog.LevelError) {
		t.Error("LOG_LEVEL=error: error should be enabled")
	}
}

func Test_FromContext_Roundtrip(t *testing.T) {
	t.Parallel()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx := WithLogger(context.Background(), logger)

	if got := FromContext(ctx); got != logger {
		t.Error("FromContext should return the logger stored by WithLogger")
	}
}

func Test_FromContext_FallsBackToDefault(t *testing.T) {
	t.Parallel()

	if got := FromContext(context.Background()); got != slog.Default() {
		t.Error("FromContext on a bare context should return slog.Default()")
	}
}
