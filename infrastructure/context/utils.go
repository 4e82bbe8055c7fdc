// Package context holds timeout helpers shared by setlist startup and health code.
package context

import (
	"context"
	"time"
)

const (
	// DefaultShutdownTimeout bounds graceful HTTP shutdown.
	DefaultShutdownTimeout = 10 * time.Second

	// DefaultPingTimeout bounds database and Redis pings.
	DefaultPingTimeout = 5 * time.Second
)

// WithShutdownTimeout returns a background context bounded by DefaultShutdownTimeout.
func WithShutdownTimeout() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), DefaultShutdownTimeout)
}

// WithPingTimeout derives a context bounded by DefaultPingTimeout from parent.
func WithPingTimeout(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, DefaultPingTimeout)
}
