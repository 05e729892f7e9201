package cache

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/storefront/inventory/internal/domain/shared"
	"go.uber.org/zap"
)

// Stores bundles the idempotency store and the job locker. Both are Redis
// backed when Redis is reachable and in-memory otherwise.
type Stores struct {
	Idempotency shared.IdempotencyStore
	Locker      Locker

	client redis.UniversalClient
}

// Redis reports whether the stores are backed by Redis
func (s *Stores) Redis() bool {
	return s.client != nil
}

// Ping checks the Redis connection. In-memory stores are always reachable.
func (s *Stores) Ping(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	return s.client.Ping(ctx).Err()
}

// Close releases the stores. The Redis store owns the shared client.
func (s *Stores) Close() error {
	return s.Idempotency.Close()
}

// StoreFactory creates stores based on configuration
type StoreFactory struct {
	redisConfig           RedisConfig
	enabled               bool
	keyPrefix             string
	logger                *zap.Logger
	allowInMemoryFallback bool
}

// StoreFactoryOption is a functional option for configuring the factory
type StoreFactoryOption func(*StoreFactory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) StoreFactoryOption {
	return func(f *StoreFactory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether to fall back to in-memory stores when Redis is unavailable.
// Default is true
func WithInMemoryFallback(allow bool) StoreFactoryOption {
	return func(f *StoreFactory) {
		f.allowInMemoryFallback = allow
	}
}

// WithKeyPrefix sets the prefix shared by all keys the stores write
func WithKeyPrefix(prefix string) StoreFactoryOption {
	return func(f *StoreFactory) {
		f.keyPrefix = prefix
	}
}

// NewStoreFactory creates a new factory. With enabled false no Redis connection is attempted.
func NewStoreFactory(cfg RedisConfig, enabled bool, opts ...StoreFactoryOption) *StoreFactory {
	f := &StoreFactory{
		redisConfig:           cfg,
		enabled:               enabled,
		keyPrefix:             "inventory:",
		logger:                zap.NewNop(),
		allowInMemoryFallback: true,
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// InMemory returns process-local stores
func (f *StoreFactory) InMemory() *Stores {
	return &Stores{
		Idempotency: NewInMemoryIdempotencyStore(),
		Locker:      NewInMemoryLocker(),
	}
}

// Create tries Redis first and falls back to in-memory stores when allowed
func (f *StoreFactory) Create(ctx context.Context) (*Stores, error) {
	if !f.enabled {
		f.logger.Info("redis disabled, using in-memory idempotency store and locker")
		return f.InMemory(), nil
	}

	client, err := NewRedisClient(ctx, f.redisConfig)
	if err == nil {
		f.logger.Info("using Redis idempotency store and locker", zap.String("addr", f.redisConfig.Addr()))
		return &Stores{
			Idempotency: NewRedisIdempotencyStore(client, f.keyPrefix+"idempotency:"),
			Locker:      NewRedisLocker(client, f.keyPrefix+"lock:"),
			client:      client,
		}, nil
	}

	if !f.allowInMemoryFallback {
		return nil, fmt.Errorf("redis required but unavailable: %w", err)
	}

	f.logger.Warn("Redis unavailable, falling back to in-memory stores. "+
		"Duplicate suppression and sweep locking then only hold within one instance.",
		zap.Error(err),
	)
	return f.InMemory(), nil
}
