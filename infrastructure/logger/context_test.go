package logger_test

import (
	"context"
	"testing"

	"github.com/jonesrussell/setlist/infrastructure/logger"
)

func TestWithContext_RoundTrip(t *testing.T) {
	t.Parallel()

	want := mustTestLogger(t)
	ctx := logger.WithContext(context.Background(), want)

	if got := logger.FromContext(ctx); got != want {
		t.Error("FromContext did not return the logger stored by WithContext")
	}
}

func TestFromContext_FallbackIsShared(t *testing.T) {
	t.Parallel()

	a := logger.FromContext(context.Background())
	b := logger.FromContext(t.Context())

	if a == nil || b == nil {
		t.Fatal("expected non-nil fallback logger")
	}
	if a != b {
		t.Error("fallback logger should be a single shared instance")
	}

	a.Warn("fallback logger is usable")
}

func TestNew_AttachesServiceField(t *testing.T) {
	t.Parallel()

	l, err := logger.New(logger.Config{
		Level:       "debug",
		OutputPaths: []string{"stderr"},
		Service:     "setlist",
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	enriched := l.With(logger.String("request_id", "abc"))
	if enriched == l {
		t.Error("With() should return a new logger instance")
	}
}

func TestNewNop_WithReturnsSelf(t *testing.T) {
	t.Parallel()

	nop := logger.NewNop()
	if nop.With(logger.Int("n", 1)) != nop {
		t.Error("NoOpLogger.With() should return the receiver")
	}
	if err := nop.Sync(); err != nil {
		t.Errorf("Sync() error = %v", err)
	}
}

func mustTestLogger(t *testing.T) logger.Logger {
	t.Helper()

	l, err := logger.New(logger.Config{
		Level:       "warn",
		OutputPaths: []string{"stderr"},
	})
	if err != nil {
		t.Fatalf("failed to create test logger: %v", err)
	}

	return l
}
