// Package ratelimit admits at most one song request per submitter within a
// fixed window.
package ratelimit

import (
	"context"
	"fmt"
	"math"
	"time"

	infralogger "github.com/jonesrussell/setlist/infrastructure/logger"
	"github.com/jonesrussell/setlist/internal/domain"
)

const (
	// DefaultWindow is the minimum spacing between admitted submissions.
	DefaultWindow = 10 * time.Minute

	// UnknownIdentity keys submitters whose address could not be resolved.
	UnknownIdentity = "unknown"

	maxIdentityLen = 80
)

// RefusedMessage is shown to refused submitters.
const RefusedMessage = "You can request one song every 10 minutes from this device/network."

// Store persists the last admitted time per identity.
type Store interface {
	// TryConsume records now for key if the stored time is older than
	// now-window, atomically. When it refuses, it returns the stored time.
	TryConsume(ctx context.Context, key string, now time.Time, window time.Duration) (admitted bool, last time.Time, err error)
}

// Decision is the outcome of a rate limit check.
type Decision struct {
	Allowed           bool
	RetryAfterSeconds int
	NextAllowedAt     time.Time
}

// Limited converts a refusal into the domain value.
func (d Decision) Limited() domain.RateLimited {
	return domain.RateLimited{RetryAfterSeconds: d.RetryAfterSeconds, NextAllowedAt: d.NextAllowedAt}
}

// Limiter gates submissions per identity.
type Limiter struct {
	store  Store
	window time.Duration
	now    func() time.Time
	logger infralogger.Logger
}

// New creates a Limiter. A non-positive window uses DefaultWindow.
func New(store Store, window time.Duration, log infralogger.Logger) *Limiter {
	if window <= 0 {
		window = DefaultWindow
	}
	if log == nil {
		log = infralogger.NewNop()
	}
	return &Limiter{store: store, window: window, now: time.Now, logger: log}
}

// Window returns the admission window.
func (l *Limiter) Window() time.Duration {
	return l.window
}

// CheckAndConsume admits identity and records the admission, or refuses
// without touching the stored time.
func (l *Limiter) CheckAndConsume(ctx context.Context, identity string) (Decision, error) {
	key := NormalizeIdentity(identity)
	now := l.now().UTC()

	admitted, last, err := l.store.TryConsume(ctx, key, now, l.window)
	if err != nil {
		return Decision{}, fmt.Errorf("rate limit %q: %w", key, err)
	}

	if admitted {
		return Decision{
			Allowed:           true,
			RetryAfterSeconds: int(l.window / time.Second),
			NextAllowedAt:     now.Add(l.window),
		}, nil
	}

	wait := l.window - now.Sub(last)
	retryAfter := max(1, int(math.Ceil(float64(wait.Milliseconds())/1000)))

	l.logger.Debug("Submission rate limited",
		infralogger.String("identity", key),
		infralogger.Int("retry_after_sec", retryAfter),
	)

	return Decision{
		Allowed:           false,
		RetryAfterSeconds: retryAfter,
		NextAllowedAt:     last.Add(l.window).UTC(),
	}, nil
}

// NormalizeIdentity trims and truncates identity, defaulting to "unknown".
func NormalizeIdentity(identity string) string {
	if key := domain.Sanitize(identity, maxIdentityLen); key != "" {
		return key
	}
	return UnknownIdentity
}
