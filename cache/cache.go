// Package cache provides the storage behind the response-caching pipeline
// layer: an in-process L1 backed by ristretto, a Redis L2, and a Tiered
// combination of both.
package cache

import (
	"bytes"
	"context"
	"time"

	"golang.org/x/sync/singleflight"
)

// Cache is the contract the caching layer stores results through.
type Cache interface {
	// Get retrieves a value by key. The boolean indicates a cache hit.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores a value under key with the given TTL. A zero TTL means the
	// entry has no automatic expiration.
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error

	// GetOrSet returns the cached value for key. On a cache miss it calls
	// loader exactly once, stores the result, and returns it.
	GetOrSet(ctx context.Context, key string, ttl time.Duration, loader func(context.Context) ([]byte, error)) ([]byte, error)
}

// flight deduplicates concurrent loads for the same key. A load that panics
// re-panics in every caller waiting on it.
type flight struct {
	g singleflight.Group
}

// do runs load once per key at a time. Callers arriving while a load is in
// progress wait for it and share its result.
func (f *flight) do(ctx context.Context, key string, load func(context.Context) ([]byte, error)) ([]byte, error) {
	v, err, _ := f.g.Do(key, func() (any, error) {
		return load(ctx)
	})
	if err != nil {
		return nil, err
	}
	return bytes.Clone(v.([]byte)), nil
}
