package redisclient

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := NewRedisClient(context.Background(), Options{Addr: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client, mr
}

func TestRedisLockerRejectsConcurrentHolder(t *testing.T) {
	client, mr := newTestClient(t)
	locker := NewRedisSlotLocker(client, 5*time.Second)
	ctx := context.Background()

	err := locker.WithSlotLock(ctx, "Dr. Weiß/2025-06-16", func(ctx context.Context) error {
		assert.True(t, mr.Exists("lock:slot:Dr. Weiß/2025-06-16"))

		inner := locker.WithSlotLock(ctx, "Dr. Weiß/2025-06-16", func(context.Context) error {
			t.Fatal("second holder must not enter")
			return nil
		})
		assert.True(t, errors.Is(inner, ErrLockNotAcquired))
		return nil
	})
	require.NoError(t, err)

	assert.False(t, mr.Exists("lock:slot:Dr. Weiß/2025-06-16"))
}

func TestRedisLockerKeepsForeignToken(t *testing.T) {
	client, mr := newTestClient(t)
	locker := NewRedisSlotLocker(client, 5*time.Second)

	err := locker.WithSlotLock(context.Background(), "k", func(ctx context.Context) error {
		// Simulate expiry and takeover by another process.
		require.NoError(t, mr.Set("lock:slot:k", "other-token"))
		return nil
	})
	require.NoError(t, err)

	got, err := mr.Get("lock:slot:k")
	require.NoError(t, err)
	assert.Equal(t, "other-token", got)
}

func TestRedisLockerPropagatesError(t *testing.T) {
	client, _ := newTestClient(t)
	locker := NewRedisSlotLocker(client, time.Second)
	boom := errors.New("boom")

	err := locker.WithSlotLock(context.Background(), "k", func(context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)
}

func TestLocalLockerSerializes(t *testing.T) {
	locker := NewLocalLocker()
	var inside, maxInside int32
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = locker.WithSlotLock(context.Background(), "same", func(context.Context) error {
				n := atomic.AddInt32(&inside, 1)
				for {
					m := atomic.LoadInt32(&maxInside)
					if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
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

	assert.Equal(t, int32(1), maxInside)
	assert.Empty(t, locker.locks)
}

func TestLocalLockerHonoursContext(t *testing.T) {
	locker := NewLocalLocker()
	held := make(chan struct{})
	release := make(chan struct{})

	go func() {
		_ = locker.WithSlotLock(context.Background(), "k", func(context.Context) error {
			close(held)
			<-release
			return nil
		})
	}()
	<-held

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := locker.WithSlotLock(ctx, "k", func(context.Context) error { return nil })
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	close(release)
}

func TestEventBusPublishSubscribe(t *testing.T) {
	client, _ := newTestClient(t)
	bus := NewEventBus(client, "bookings", zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := bus.Subscribe(ctx)
	require.NoError(t, err)

	require.NoError(t, bus.Publish(ctx, "BOOKING_CREATED", map[string]any{"dentist": "Dr. Weiß"}))

	select {
	case ev := <-events:
		assert.Equal(t, "BOOKING_CREATED", ev.Type)
		assert.Equal(t, "Dr. Weiß", ev.Payload["dentist"])
		assert.NotEmpty(t, ev.ID)
	case <-time.After(2 * time.Second):
		t.Fatal("no event received")
	}
}
