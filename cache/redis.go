package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// L2 is a Redis-backed cache layer. Reads and writes fail soft: when Redis is
// unavailable Get reports a miss and Set drops the write, so a cache outage
// never fails a pipeline run.
type L2 struct {
	rdb    *redis.Client
	prefix string
	flight flight
}

// NewL2 creates a new Redis-backed L2 cache.
func NewL2(addr, password string, db int) *L2 {
	return NewL2Client(redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	}), "")
}

// NewL2Client wraps an existing client. Every key is stored under prefix.
func NewL2Client(rdb *redis.Client, prefix string) *L2 {
	return &L2{rdb: rdb, prefix: prefix}
}

// Get retrieves a value by key. Returns (nil, false, nil) on a miss or when
// Redis is unreachable.
func (l *L2) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := l.rdb.Get(ctx, l.prefix+key).Bytes()
	if err != nil {
		// redis.Nil and connection errors alike are a miss.
		return nil, false, nil
	}
	return val, true, nil
}

// Set stores a value under key with the given TTL. A zero TTL means the entry
// has no automatic expiration.
func (l *L2) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	_ = l.rdb.Set(ctx, l.prefix+key, val, ttl).Err()
	return nil
}

// GetOrSet returns the cached value for key, calling loader at most once per
// key at a time on a miss.
func (l *L2) GetOrSet(ctx context.Context, key string, ttl time.Duration, loader func(context.Context) ([]byte, error)) ([]byte, error) {
	if v, ok, _ := l.Get(ctx, key); ok {
		return v, nil
	}
	return l.flight.do(ctx, key, func(ctx context.Context) ([]byte, error) {
		v, err := loader(ctx)
		if err == nil {
			_ = l.Set(ctx, key, v, ttl)
		}
		return v, err
	})
}

// Ping checks the Redis connection.
func (l *L2) Ping(ctx context.Context) error {
	return l.rdb.Ping(ctx).Err()
}

// Close closes the underlying Redis client.
func (l *L2) Close() error {
	return l.rdb.Close()
}
