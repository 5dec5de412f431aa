package interceptors

import (
	"context"
	"errors"
	"sync"

	"github.com/Keksclan/onion"
	"github.com/Keksclan/onion/policy"
	"github.com/Keksclan/onion/ratelimit"
	"google.golang.org/grpc/status"
)

// groupLimiters hands out one limiter per method group, created on first use
// from the group's rule.
type groupLimiters struct {
	global   *ratelimit.Limiter
	resolver *policy.Resolver

	mu     sync.Mutex
	groups map[string]*ratelimit.Limiter
}

// limiterFor returns the group limiter for fullMethod, or the global one
// when the method's group has no rate limit. It may return nil.
func (g *groupLimiters) limiterFor(fullMethod string) *ratelimit.Limiter {
	m, ok := g.resolver.Resolve(fullMethod)
	if !ok || m.Policy.RateLimit == nil {
		return g.global
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if l, ok := g.groups[m.Group]; ok {
		return l
	}
	rl := m.Policy.RateLimit
	l := ratelimit.NewWindowLimiter(rl.Rate, rl.Window)
	g.groups[m.Group] = l
	return l
}

// RateLimitByGroup returns a layer that picks a limiter per method group:
// groups whose policy has a RateLimit share one limiter per group, all
// other calls use global. A nil global leaves those calls unlimited.
// Exhausted calls fail with codes.ResourceExhausted.
func RateLimitByGroup[T Call](global *ratelimit.Limiter, r *policy.Resolver) onion.Middleware[T] {
	g := &groupLimiters{global: global, resolver: r, groups: make(map[string]*ratelimit.Limiter)}
	return func(ctx context.Context, c T, next onion.Next) error {
		if l := g.limiterFor(c.FullMethod()); l != nil && !l.Allow() {
			return errRateLimited
		}
		return next(ctx)
	}
}

// Timeout returns a layer that bounds calls of groups whose policy sets a
// Timeout. A call that runs out of time fails with codes.DeadlineExceeded.
func Timeout[T Call](r *policy.Resolver) onion.Middleware[T] {
	return func(ctx context.Context, c T, next onion.Next) error {
		m, ok := r.Resolve(c.FullMethod())
		if !ok || m.Policy.Timeout <= 0 {
			return next(ctx)
		}

		ctx, cancel := context.WithTimeout(ctx, m.Policy.Timeout)
		defer cancel()

		err := next(ctx)
		if errors.Is(err, context.DeadlineExceeded) {
			return status.FromContextError(err).Err()
		}
		return err
	}
}
