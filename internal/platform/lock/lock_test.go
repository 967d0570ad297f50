package lock

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newRedisLocker(t *testing.T, wait time.Duration) (*RedisLocker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedis(client, time.Second, wait), mr
}

func TestRedisLockerReleasesKey(t *testing.T) {
	locker, mr := newRedisLocker(t, time.Second)

	err := locker.WithLock(context.Background(), "lock:sales_order:1", func(ctx context.Context) error {
		require.True(t, mr.Exists("lock:sales_order:1"))
		return nil
	})
	require.NoError(t, err)
	require.False(t, mr.Exists("lock:sales_order:1"))
}

func TestRedisLockerPropagatesError(t *testing.T) {
	locker, mr := newRedisLocker(t, time.Second)
	boom := errors.New("boom")

	err := locker.WithLock(context.Background(), "k", func(ctx context.Context) error { return boom })
	require.ErrorIs(t, err, boom)
	require.False(t, mr.Exists("k"))
}

func TestRedisLockerTimesOutOnBusyKey(t *testing.T) {
	locker, mr := newRedisLocker(t, 60*time.Millisecond)
	require.NoError(t, mr.Set("busy", "someone-else"))

	err := locker.WithLock(context.Background(), "busy", func(ctx context.Context) error { return nil })
	require.ErrorIs(t, err, ErrNotAcquired)

	got, _ := mr.Get("busy")
	require.Equal(t, "someone-else", got)
}

func TestLocalLockerSerializesSameKey(t *testing.T) {
	locker := NewLocal()
	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = locker.WithLock(context.Background(), "order", func(ctx context.Context) error {
				n := atomic.AddInt32(&inside, 1)
				for {
					cur := atomic.LoadInt32(&maxInside)
					if n <= cur || atomic.CompareAndSwapInt32(&maxInside, cur, n) {
						break
					}
				}
				time.Sleep(time.Millisecond)
				atomic.AddInt32(&inside, -1)
				return nil
			})
		}()
	}
	wg.Wait()
	require.Equal(t, int32(1), maxInside)
	require.Empty(t, locker.locks)
}
