package interceptors

import (
	"context"

	"github.com/Keksclan/onion"
	"github.com/Keksclan/onion/security"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// errBlocked is allocated once to avoid per-request allocations on the hot path.
var errBlocked = status.Error(codes.PermissionDenied, "blocked")

// IPBlock returns a layer that stops calls whose client address b does not
// allow with codes.PermissionDenied. Nothing downstream runs for them.
func IPBlock[T Call](b *security.IPBlocker) onion.Middleware[T] {
	return func(ctx context.Context, _ T, next onion.Next) error {
		md, _ := metadata.FromIncomingContext(ctx)
		if !b.Allow(ctx, md) {
			return errBlocked
		}
		return next(ctx)
	}
}
