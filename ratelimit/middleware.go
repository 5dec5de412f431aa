package ratelimit

import (
	"context"
	"errors"

	"github.com/Keksclan/onion"
)

// ErrLimited is returned by Middleware when the limiter has no tokens left.
var ErrLimited = errors.New("rate limit exceeded")

// Middleware returns a layer that rejects the run with ErrLimited instead of
// calling next when l is exhausted.
func Middleware[T any](l *Limiter) onion.Middleware[T] {
	return func(ctx context.Context, c T, next onion.Next) error {
		if !l.Allow() {
			return ErrLimited
		}
		return next(ctx)
	}
}

// WaitMiddleware returns a layer that blocks until l grants a token. It fails
// with the error of l.Wait when ctx ends first.
func WaitMiddleware[T any](l *Limiter) onion.Middleware[T] {
	return func(ctx context.Context, c T, next onion.Next) error {
		if err := l.Wait(ctx); err != nil {
			return err
		}
		return next(ctx)
	}
}
