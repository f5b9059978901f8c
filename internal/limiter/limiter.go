// internal/limiter/limiter.go
package limiter

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// Limiter is a counting gate bounding the number of jobs in flight.
type Limiter struct {
	capacity int64
	sem      *semaphore.Weighted
	inFlight atomic.Int64
	peak     atomic.Int64
}

// New creates a limiter admitting at most capacity holders at once.
func New(capacity int) (*Limiter, error) {
	if capacity < 1 {
		return nil, fmt.Errorf("limiter capacity must be at least 1, got %d", capacity)
	}
	return &Limiter{
		capacity: int64(capacity),
		sem:      semaphore.NewWeighted(int64(capacity)),
	}, nil
}

// Slot is one admission through the gate. Release may be called any number
// of times; only the first call frees the slot.
type Slot struct {
	once sync.Once
	l    *Limiter
}

// Acquire blocks until a slot is free or ctx is done.
func (l *Limiter) Acquire(ctx context.Context) (*Slot, error) {
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("failed to acquire job slot: %w", err)
	}
	n := l.inFlight.Add(1)
	for {
		p := l.peak.Load()
		if n <= p || l.peak.CompareAndSwap(p, n) {
			break
		}
	}
	return &Slot{l: l}, nil
}

// Release returns the slot to the gate.
func (s *Slot) Release() {
	s.once.Do(func() {
		s.l.inFlight.Add(-1)
		s.l.sem.Release(1)
	})
}

// Capacity returns the configured bound.
func (l *Limiter) Capacity() int { return int(l.capacity) }

// InFlight returns the number of slots currently held.
func (l *Limiter) InFlight() int { return int(l.inFlight.Load()) }

// Peak returns the highest number of slots ever held at once.
func (l *Limiter) Peak() int { return int(l.peak.Load()) }
