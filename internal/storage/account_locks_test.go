package storage_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"postgate/internal/storage"
)

func TestLockSerializesSameKey(t *testing.T) {
	t.Parallel()

	locks := storage.NewAccountLocks()
	ctx := context.Background()

	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := locks.Lock(ctx, "acc")
			if !assert.NoError(t, err) {
				return
			}
			defer unlock()

			n := atomic.AddInt32(&inside, 1)
			for {
				cur := atomic.LoadInt32(&maxInside)
				if n <= cur || atomic.CompareAndSwapInt32(&maxInside, cur, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInside)
	assert.Zero(t, locks.Len())
}

func TestLockDistinctKeysDoNotBlock(t *testing.T) {
	t.Parallel()

	locks := storage.NewAccountLocks()
	ctx := context.Background()

	unlockA, err := locks.Lock(ctx, "a")
	require.NoError(t, err)
	defer unlockA()

	done := make(chan struct{})
	go func() {
		unlockB, err := locks.Lock(ctx, "b")
		if err == nil {
			unlockB()
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on a different key blocked")
	}
}

func TestLockHonoursContext(t *testing.T) {
	t.Parallel()

	locks := storage.NewAccountLocks()

	unlock, err := locks.Lock(context.Background(), "acc")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = locks.Lock(ctx, "acc")
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, locks.Len())

	unlock()
	unlock() // second call is a no-op
	assert.Zero(t, locks.Len())
}
