package limiter

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RejectsZeroCapacity(t *testing.T) {
	_, err := New(0)
	assert.Error(t, err)
}

func TestLimiter_NeverExceedsCapacity(t *testing.T) {
	const (
		capacity = 3
		jobs     = 12
	)
	l, err := New(capacity)
	require.NoError(t, err)

	var (
		wg      sync.WaitGroup
		running atomic.Int64
		maxSeen atomic.Int64
	)
	for i := 0; i < jobs; i++ {
		slot, err := l.Acquire(context.Background())
		require.NoError(t, err)
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer slot.Release()
			n := running.Add(1)
			for {
				m := maxSeen.Load()
				if n <= m || maxSeen.CompareAndSwap(m, n) {
					break
				}
			}
			time.Sleep(20 * time.Millisecond)
			running.Add(-1)
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, maxSeen.Load(), int64(capacity))
	assert.Equal(t, capacity, l.Peak())
	assert.Equal(t, 0, l.InFlight())
}

func TestSlot_ReleaseIsIdempotent(t *testing.T) {
	l, err := New(1)
	require.NoError(t, err)

	slot, err := l.Acquire(context.Background())
	require.NoError(t, err)
	slot.Release()
	slot.Release()
	assert.Equal(t, 0, l.InFlight())

	// A double release must not have produced a second free slot.
	first, err := l.Acquire(context.Background())
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = l.Acquire(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	first.Release()
}

func TestLimiter_AcquireHonoursContext(t *testing.T) {
	l, err := New(1)
	require.NoError(t, err)
	held, err := l.Acquire(context.Background())
	require.NoError(t, err)
	defer held.Release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = l.Acquire(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, l.InFlight())
}
