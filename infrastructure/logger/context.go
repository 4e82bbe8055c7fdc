package logger

import (
	"context"
	"fmt"
	"os"
	"sync"
)

type ctxKey struct{}

// WithContext stores l on ctx. Request middleware uses it to hand the
// request-scoped logger to handlers and services.
func WithContext(ctx context.Context, l Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext returns the request-scoped logger. Without one, entries go to
// a shared stderr logger at warn level.
func FromContext(ctx context.Context) Logger {
	if ctx != nil {
		if l, ok := ctx.Value(ctxKey{}).(Logger); ok && l != nil {
			return l
		}
	}
	return stderrLogger()
}

var stderr struct {
	once sync.Once
	log  Logger
}

func stderrLogger() Logger {
	stderr.once.Do(func() {
		l, err := New(Config{
			Level:       "warn",
			OutputPaths: []string{"stderr"},
			Service:     "setlist",
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "logger: stderr fallback unavailable: %v\n", err)
			l = NewNop()
		}
		stderr.log = l
	})
	return stderr.log
}
