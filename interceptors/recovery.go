package interceptors

import (
	"context"
	"errors"

	"github.com/Keksclan/onion"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// errInternal is allocated once to avoid per-request allocations on the hot path.
var errInternal = status.Error(codes.Internal, "internal server error")

// Recovery returns a layer that turns panics recovered anywhere downstream
// into an Internal gRPC error, so panic details never reach the client.
// Place it first so it sees every layer below it.
func Recovery[T any]() onion.Middleware[T] {
	return func(ctx context.Context, c T, next onion.Next) error {
		err := next(ctx)
		if isPanic(err) {
			return errInternal
		}
		return err
	}
}

// isPanic reports whether err came out of a recovered panic, whatever the
// panic value was.
func isPanic(err error) bool {
	var pe *onion.PanicError
	return errors.As(err, &pe)
}
