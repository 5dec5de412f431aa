package breaker

import (
	"context"
	"errors"

	"github.com/Keksclan/onion"
)

// ErrOpen is returned by Middleware while the breaker refuses requests.
var ErrOpen = errors.New("circuit breaker is open")

// Middleware returns a layer guarded by b. While b is open the run fails with
// ErrOpen and nothing downstream is called; otherwise the outcome of next is
// recorded as a success or a failure.
func Middleware[T any](b *Breaker) onion.Middleware[T] {
	return func(ctx context.Context, c T, next onion.Next) error {
		if !b.Allow() {
			return ErrOpen
		}
		err := next(ctx)
		b.Record(err)
		return err
	}
}
