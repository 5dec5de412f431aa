package cache

import (
	"context"
	"time"

	"github.com/Keksclan/onion"
)

// Codec moves the result of a pipeline run in and out of the cache.
type Codec[T any] struct {
	// Key derives the cache key for c. Returning false bypasses the cache.
	Key func(c T) (string, bool)

	// Encode serializes the result the downstream layers left in c.
	Encode func(c T) ([]byte, error)

	// Decode restores a cached result into c.
	Decode func(c T, val []byte) error
}

// Middleware returns a layer that serves results from store. On a hit the
// cached value is decoded into c and nothing downstream runs. On a miss the
// rest of the pipeline runs and its result is stored for ttl; concurrent
// misses for the same key wait for a single downstream run.
//
// A failed downstream run is never cached. Callers that waited on a failed
// run fall back to running the pipeline themselves.
func Middleware[T any](store Cache, ttl time.Duration, codec Codec[T]) onion.Middleware[T] {
	return func(ctx context.Context, c T, next onion.Next) error {
		key, ok := codec.Key(c)
		if !ok {
			return next(ctx)
		}

		var ran bool
		var runErr error
		val, err := store.GetOrSet(ctx, key, ttl, func(ctx context.Context) ([]byte, error) {
			ran = true
			if runErr = next(ctx); runErr != nil {
				return nil, runErr
			}
			return codec.Encode(c)
		})
		if ran {
			// The result is already in c; an encoding failure only means it
			// was not cached.
			return runErr
		}
		if err != nil {
			return next(ctx)
		}
		return codec.Decode(c, val)
	}
}
