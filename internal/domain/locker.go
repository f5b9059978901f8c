// internal/domain/locker.go
package domain

import (
	"context"
	"errors"
)

// ErrLockNotAcquired is returned when another node already holds the lock.
var ErrLockNotAcquired = errors.New("lock not acquired")

// Lock represents an acquired distributed lock.
type Lock interface {
	// Unlock releases the lock.
	Unlock(ctx context.Context) error
}

// Locker serializes batches that share a working directory across nodes.
type Locker interface {
	// Lock attempts to acquire a lock for the given name without waiting.
	// If the lock is already held, it must return ErrLockNotAcquired.
	Lock(ctx context.Context, name string) (Lock, error)
}
