package lock

import (
	"context"
	"errors"
)

// ErrLockTimeout is returned when the lock could not be acquired before the
// context expired.
var ErrLockTimeout = errors.New("lock: timed out waiting for lock")

// Locker serializes work on a key across goroutines (and, for the redis
// implementation, across processes). The returned release func must be called
// exactly once.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}
