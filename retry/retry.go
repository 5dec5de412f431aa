// Package retry re-runs failed operations with exponential backoff and
// jitter. [Dispatcher] applies it to whole onion pipeline runs, each of which
// starts with a fresh set of continuations.
package retry

import (
	"context"
	"slices"
	"time"

	"github.com/Keksclan/onion"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Config controls the retry behaviour of [Do] and [Dispatcher].
type Config struct {
	// MaxAttempts is the maximum number of attempts, the first one included.
	// Values ≤ 1 mean no retries.
	MaxAttempts int

	// BaseDelay is the delay before the first retry. Subsequent retries use
	// exponential back-off: BaseDelay * 2^attempt.
	BaseDelay time.Duration

	// MaxDelay caps the computed back-off delay.
	MaxDelay time.Duration

	// Jitter adds randomness to the delay. A value of 0.2 means ±20 % of
	// the computed delay. Zero disables jitter.
	Jitter float64

	// RetryCodes lists the gRPC status codes that are considered retryable.
	RetryCodes []codes.Code

	// Retryable, when set, decides for errors that RetryCodes does not
	// match. With neither set no error is retried.
	Retryable func(error) bool
}

func (cfg Config) retryable(err error) bool {
	if st, ok := status.FromError(err); ok && slices.Contains(cfg.RetryCodes, st.Code()) {
		return true
	}
	return cfg.Retryable != nil && cfg.Retryable(err)
}

// Do calls fn up to cfg.MaxAttempts times while it fails with a retryable
// error, sleeping with back-off between attempts. The last error is returned
// once attempts run out; ctx.Err() is returned if ctx ends while waiting.
func Do[T any](ctx context.Context, cfg Config, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	attempts := max(cfg.MaxAttempts, 1)

	for i := 0; ; i++ {
		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		if i == attempts-1 || !cfg.retryable(err) {
			return zero, err
		}
		if err := sleep(ctx, backoff(cfg, i)); err != nil {
			return zero, err
		}
	}
}

// Dispatcher wraps d so that a failed run is repeated according to cfg. Every
// attempt is a complete new run of the pipeline, terminal included, so layers
// must tolerate seeing the same value more than once.
//
// Retrying from inside a layer by calling next again is not possible: the
// second call fails with onion.ErrReentrantNext.
func Dispatcher[T any](d onion.Dispatcher[T], cfg Config) onion.Dispatcher[T] {
	return func(ctx context.Context, c T, terminal onion.Middleware[T]) error {
		_, err := Do(ctx, cfg, func(ctx context.Context) (struct{}, error) {
			return struct{}{}, d(ctx, c, terminal)
		})
		return err
	}
}
