package cache

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupRedis(t *testing.T) *redis.Client {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping Redis integration test in short mode")
	}

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = container.Terminate(context.Background())
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	client, err := NewRedisClient(ctx, RedisConfig{Host: host, Port: port.Int()})
	require.NoError(t, err)
	return client
}

func TestRedisIdempotencyStore(t *testing.T) {
	client := setupRedis(t)
	store := NewRedisIdempotencyStore(client, "test:idem:")
	defer store.Close()

	ctx := context.Background()

	isNew, err := store.MarkProcessed(ctx, "h:event-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, isNew)

	isNew, err = store.MarkProcessed(ctx, "h:event-1", time.Minute)
	require.NoError(t, err)
	assert.False(t, isNew)

	processed, err := store.IsProcessed(ctx, "h:event-1")
	require.NoError(t, err)
	assert.True(t, processed)

	released, err := store.Release(ctx, "h:event-1")
	require.NoError(t, err)
	assert.True(t, released)

	processed, err = store.IsProcessed(ctx, "h:event-1")
	require.NoError(t, err)
	assert.False(t, processed)
}

func TestRedisLocker(t *testing.T) {
	client := setupRedis(t)
	defer client.Close()
	locker := NewRedisLocker(client, "test:lock:")

	ctx := context.Background()

	lock, err := locker.TryLock(ctx, "sweep", time.Minute)
	require.NoError(t, err)

	_, err = locker.TryLock(ctx, "sweep", time.Minute)
	assert.ErrorIs(t, err, ErrLockHeld)

	require.NoError(t, lock.Unlock(ctx))

	next, err := locker.TryLock(ctx, "sweep", time.Minute)
	require.NoError(t, err)

	// a released handle must not drop someone else's lease
	require.NoError(t, lock.Unlock(ctx))
	_, err = locker.TryLock(ctx, "sweep", time.Minute)
	assert.ErrorIs(t, err, ErrLockHeld)

	require.NoError(t, next.Unlock(ctx))
}
