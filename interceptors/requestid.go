package interceptors

import (
	"context"

	"github.com/Keksclan/onion"
	"github.com/Keksclan/onion/contextx"
	"github.com/google/uuid"
)

// ensureRequestID returns the context enriched with a request ID if one is not
// already present.
func ensureRequestID(ctx context.Context) context.Context {
	if contextx.RequestIDFromContext(ctx) == "" {
		ctx = contextx.WithRequestID(ctx, uuid.NewString())
	}
	return ctx
}

// RequestID returns a layer that ensures a request ID is present in the
// context seen by every layer below it. It works for unary and stream
// pipelines alike.
func RequestID[T any]() onion.Middleware[T] {
	return func(ctx context.Context, c T, next onion.Next) error {
		return next(ensureRequestID(ctx))
	}
}
