package lock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalLockerSerializesSameKey(t *testing.T) {
	l := NewLocalLocker()
	var inside, maxInside int32
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := l.Acquire(context.Background(), "agreement:1")
			if !assert.NoError(t, err) {
				return
			}
			defer release()

			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInside)
	assert.Empty(t, l.slots, "idle keys are released")
}

func TestLocalLockerIndependentKeys(t *testing.T) {
	l := NewLocalLocker()
	releaseA, err := l.Acquire(context.Background(), "a")
	require.NoError(t, err)
	defer releaseA()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	releaseB, err := l.Acquire(ctx, "b")
	require.NoError(t, err)
	releaseB()
}

func TestLocalLockerTimeout(t *testing.T) {
	l := NewLocalLocker()
	release, err := l.Acquire(context.Background(), "a")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = l.Acquire(ctx, "a")
	assert.ErrorIs(t, err, ErrLockTimeout)

	release()
	release() // second call is a no-op

	again, err := l.Acquire(context.Background(), "a")
	require.NoError(t, err)
	again()
}
