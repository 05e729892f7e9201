package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func alertKey() string {
	return "alert-notifier:" + uuid.NewString()
}

func TestInMemoryIdempotencyStore_Marks(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name      string
		ttl       time.Duration
		wait      time.Duration
		wantAgain bool
	}{
		{name: "redelivery within ttl is a duplicate", ttl: time.Hour, wantAgain: false},
		{name: "redelivery after ttl is new", ttl: 10 * time.Millisecond, wait: 25 * time.Millisecond, wantAgain: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewInMemoryIdempotencyStore()
			defer store.Close()
			key := alertKey()

			first, err := store.MarkProcessed(ctx, key, tt.ttl)
			require.NoError(t, err)
			require.True(t, first)

			processed, err := store.IsProcessed(ctx, key)
			require.NoError(t, err)
			assert.True(t, processed)

			time.Sleep(tt.wait)

			again, err := store.MarkProcessed(ctx, key, tt.ttl)
			require.NoError(t, err)
			assert.Equal(t, tt.wantAgain, again)
		})
	}
}

func TestInMemoryIdempotencyStore_KeysAreIndependent(t *testing.T) {
	store := NewInMemoryIdempotencyStore()
	defer store.Close()
	ctx := context.Background()

	eventID := uuid.NewString()
	for _, handler := range []string{"alert-notifier", "kafka-forwarder"} {
		isNew, err := store.MarkProcessed(ctx, handler+":"+eventID, time.Hour)
		require.NoError(t, err)
		assert.True(t, isNew, handler)
	}
	assert.Equal(t, 2, store.Size())

	processed, err := store.IsProcessed(ctx, "reporting:"+eventID)
	require.NoError(t, err)
	assert.False(t, processed)
}

func TestInMemoryIdempotencyStore_Release(t *testing.T) {
	store := NewInMemoryIdempotencyStore()
	defer store.Close()
	ctx := context.Background()
	key := alertKey()

	_, err := store.MarkProcessed(ctx, key, time.Hour)
	require.NoError(t, err)

	released, err := store.Release(ctx, key)
	require.NoError(t, err)
	assert.True(t, released)

	// the outbox retry after a failed handler must be able to claim it again
	isNew, err := store.MarkProcessed(ctx, key, time.Hour)
	require.NoError(t, err)
	assert.True(t, isNew)

	released, err = store.Release(ctx, alertKey())
	require.NoError(t, err)
	assert.False(t, released)

	t.Run("expired entry is not reported as released", func(t *testing.T) {
		stale := alertKey()
		_, err := store.MarkProcessed(ctx, stale, 5*time.Millisecond)
		require.NoError(t, err)
		time.Sleep(15 * time.Millisecond)

		released, err := store.Release(ctx, stale)
		require.NoError(t, err)
		assert.False(t, released)
	})
}

func TestInMemoryIdempotencyStore_CleanupDropsExpired(t *testing.T) {
	store := NewInMemoryIdempotencyStore()
	defer store.Close()
	ctx := context.Background()

	live := alertKey()
	_, _ = store.MarkProcessed(ctx, alertKey(), 5*time.Millisecond)
	_, _ = store.MarkProcessed(ctx, alertKey(), 5*time.Millisecond)
	_, _ = store.MarkProcessed(ctx, live, time.Hour)
	require.Equal(t, 3, store.Size())

	time.Sleep(15 * time.Millisecond)
	store.cleanup()

	assert.Equal(t, 1, store.Size())
	processed, err := store.IsProcessed(ctx, live)
	require.NoError(t, err)
	assert.True(t, processed)
}

func TestInMemoryIdempotencyStore_ConcurrentRedelivery(t *testing.T) {
	store := NewInMemoryIdempotencyStore()
	defer store.Close()
	ctx := context.Background()
	key := alertKey()

	const deliveries = 64
	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		fresh int
	)
	for range deliveries {
		wg.Add(1)
		go func() {
			defer wg.Done()
			isNew, err := store.MarkProcessed(ctx, key, time.Hour)
			assert.NoError(t, err)
			if isNew {
				mu.Lock()
				fresh++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, fresh)
}

func TestInMemoryIdempotencyStore_CloseTwice(t *testing.T) {
	store := NewInMemoryIdempotencyStore()
	require.NoError(t, store.Close())
	assert.NoError(t, store.Close())
}
