package interceptors

import (
	"context"
	"errors"

	"github.com/Keksclan/onion"
	"github.com/Keksclan/onion/breaker"
	"github.com/Keksclan/onion/ratelimit"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Allocated once to avoid per-request allocations on the hot path.
var (
	errRateLimited = status.Error(codes.ResourceExhausted, "rate limit exceeded")
	errCircuitOpen = status.Error(codes.Unavailable, "circuit breaker open")
)

// RateLimit returns a layer that rejects calls with codes.ResourceExhausted
// once l is exhausted.
func RateLimit[T any](l *ratelimit.Limiter) onion.Middleware[T] {
	return translate(ratelimit.Middleware[T](l), ratelimit.ErrLimited, errRateLimited)
}

// Breaker returns a layer guarded by b that rejects calls with
// codes.Unavailable while b is open.
func Breaker[T any](b *breaker.Breaker) onion.Middleware[T] {
	return translate(breaker.Middleware[T](b), breaker.ErrOpen, errCircuitOpen)
}

// translate replaces sentinel with st when mw itself rejects the call.
// Errors coming from further downstream pass through unchanged.
func translate[T any](mw onion.Middleware[T], sentinel, st error) onion.Middleware[T] {
	return func(ctx context.Context, c T, next onion.Next) error {
		var downstream bool
		err := mw(ctx, c, func(ctx context.Context) error {
			downstream = true
			return next(ctx)
		})
		if !downstream && errors.Is(err, sentinel) {
			return st
		}
		return err
	}
}
