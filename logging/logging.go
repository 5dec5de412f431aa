// Package logging logs onion pipeline runs through a logr.Logger.
package logging

import (
	"context"
	"time"

	"github.com/Keksclan/onion"
	"github.com/Keksclan/onion/contextx"
	"github.com/go-logr/logr"
)

// Middleware returns a layer that logs every run of the pipeline named name.
// Start and completion are logged at V(1); a failed run is logged with
// Error. The request ID and RPC method are added when the context has them.
//
// The logger is also stored in the context handed to next, so layers below
// can fetch it with logr.FromContextOrDiscard.
func Middleware[T any](log logr.Logger, name string) onion.Middleware[T] {
	log = log.WithValues("pipeline", name)

	return func(ctx context.Context, _ T, next onion.Next) error {
		l := log
		if id := contextx.RequestIDFromContext(ctx); id != "" {
			l = l.WithValues("requestID", id)
		}
		if m := contextx.MethodFromContext(ctx); m != "" {
			l = l.WithValues("method", m)
		}

		l.V(1).Info("pipeline started")
		start := time.Now()
		err := next(logr.NewContext(ctx, l))
		elapsed := time.Since(start)

		if err != nil {
			l.Error(err, "pipeline failed", "duration", elapsed)
			return err
		}
		l.V(1).Info("pipeline finished", "duration", elapsed)
		return nil
	}
}
