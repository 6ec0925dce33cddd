// Package lock provides mutual exclusion scoped to a single entity key.
package lock

import (
	"context"
	"errors"
)

// ErrLockUnavailable is returned when a lock could not be acquired in time.
// Callers should treat it as retryable.
var ErrLockUnavailable = errors.New("lock unavailable")

// Locker acquires a lock for key. The returned release func is safe to call
// once on every exit path.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}
