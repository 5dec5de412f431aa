package interceptors

import (
	"context"

	"github.com/Keksclan/onion"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// AuthFunc is a user-supplied callback that authenticates a gRPC request.
// It receives the request context, the full method name, and the incoming
// metadata. On success it returns a (possibly enriched) context; on failure
// it returns an error.
//
// Token parsing is the responsibility of the AuthFunc implementation.
type AuthFunc func(ctx context.Context, fullMethod string, md metadata.MD) (context.Context, error)

// errUnauthenticated is allocated once to avoid per-request allocations on the hot path.
var errUnauthenticated = status.Error(codes.Unauthenticated, "unauthenticated")

// authError returns the original error if it is already a gRPC status error,
// otherwise wraps it as codes.Unauthenticated.
func authError(err error) error {
	if _, ok := status.FromError(err); ok {
		return err
	}
	return errUnauthenticated
}

// Auth returns a layer that calls fn before the rest of the pipeline. A
// failed authentication stops the call; on success the context returned by
// fn is handed downstream, for unary and stream calls alike.
func Auth[T Call](fn AuthFunc) onion.Middleware[T] {
	return func(ctx context.Context, c T, next onion.Next) error {
		md, _ := metadata.FromIncomingContext(ctx)
		newCtx, err := fn(ctx, c.FullMethod(), md)
		if err != nil {
			return authError(err)
		}
		return next(newCtx)
	}
}
