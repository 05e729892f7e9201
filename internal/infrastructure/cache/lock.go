package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLockHeld is returned when another holder owns the lock
var ErrLockHeld = errors.New("lock is held by another owner")

// Lock is a held lease. Unlock is a no-op once the lease has expired or was taken over.
type Lock interface {
	Unlock(ctx context.Context) error
}

// Locker hands out short leases so only one instance runs a job at a time
type Locker interface {
	// TryLock acquires key for ttl without waiting. It returns ErrLockHeld when the key is taken.
	TryLock(ctx context.Context, key string, ttl time.Duration) (Lock, error)
}

// unlockScript deletes the key only when it still carries our token
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker implements Locker with SET NX PX and a token-checked delete
type RedisLocker struct {
	client    redis.UniversalClient
	keyPrefix string
}

// NewRedisLocker creates a Redis-backed locker
func NewRedisLocker(client redis.UniversalClient, keyPrefix string) *RedisLocker {
	if keyPrefix == "" {
		keyPrefix = "inventory:lock:"
	}
	return &RedisLocker{client: client, keyPrefix: keyPrefix}
}

// TryLock implements Locker
func (l *RedisLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (Lock, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.keyPrefix+key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, ErrLockHeld
	}
	return &redisLock{client: l.client, key: l.keyPrefix + key, token: token}, nil
}

type redisLock struct {
	client redis.UniversalClient
	key    string
	token  string
}

func (l *redisLock) Unlock(ctx context.Context) error {
	if err := unlockScript.Run(ctx, l.client, []string{l.key}, l.token).Err(); err != nil {
		return fmt.Errorf("failed to release lock %s: %w", l.key, err)
	}
	return nil
}

// InMemoryLocker implements Locker within one process
type InMemoryLocker struct {
	mu     sync.Mutex
	leases map[string]lease
}

type lease struct {
	token     string
	expiresAt time.Time
}

// NewInMemoryLocker creates an in-process locker
func NewInMemoryLocker() *InMemoryLocker {
	return &InMemoryLocker{leases: make(map[string]lease)}
}

// TryLock implements Locker
func (l *InMemoryLocker) TryLock(_ context.Context, key string, ttl time.Duration) (Lock, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if current, ok := l.leases[key]; ok && now.Before(current.expiresAt) {
		return nil, ErrLockHeld
	}
	token := uuid.NewString()
	l.leases[key] = lease{token: token, expiresAt: now.Add(ttl)}
	return &memoryLock{locker: l, key: key, token: token}, nil
}

type memoryLock struct {
	locker *InMemoryLocker
	key    string
	token  string
}

func (m *memoryLock) Unlock(_ context.Context) error {
	m.locker.mu.Lock()
	defer m.locker.mu.Unlock()

	if current, ok := m.locker.leases[m.key]; ok && current.token == m.token {
		delete(m.locker.leases, m.key)
	}
	return nil
}

var (
	_ Locker = (*RedisLocker)(nil)
	_ Locker = (*InMemoryLocker)(nil)
)
