// Package lock serializes work on a key across requests and, with Redis,
// across processes.
package lock

import (
	"context"
	"errors"
)

// ErrNotAcquired is returned when a lock could not be taken in time.
var ErrNotAcquired = errors.New("lock not acquired")

// Release gives up a held lock.
type Release func()

// Locker hands out exclusive locks by key.
type Locker interface {
	Lock(ctx context.Context, key string) (Release, error)
}
