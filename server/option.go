package server

import (
	"errors"

	"github.com/Keksclan/onion"
	"github.com/Keksclan/onion/breaker"
	"github.com/Keksclan/onion/interceptors"
	"github.com/Keksclan/onion/logging"
	"github.com/Keksclan/onion/metrics"
	"github.com/Keksclan/onion/policy"
	"github.com/Keksclan/onion/ratelimit"
	"github.com/Keksclan/onion/security"
	"github.com/Keksclan/onion/tracing"
	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/grpc"
)

// config holds the internal configuration assembled via functional options.
type config struct {
	unary      []onion.Middleware[*interceptors.UnaryCall]
	stream     []onion.Middleware[*interceptors.StreamCall]
	serverOpts []grpc.ServerOption
	registry   *prometheus.Registry
	err        error
}

// Option configures a Server. Layers are installed in the order their options
// are passed; the first one is the outermost.
type Option func(*config)

// WithUnary appends layers to the unary pipeline.
func WithUnary(mw ...onion.Middleware[*interceptors.UnaryCall]) Option {
	return func(c *config) {
		c.unary = append(c.unary, mw...)
	}
}

// WithStream appends layers to the stream pipeline.
func WithStream(mw ...onion.Middleware[*interceptors.StreamCall]) Option {
	return func(c *config) {
		c.stream = append(c.stream, mw...)
	}
}

// both appends one layer to each pipeline.
func both(u onion.Middleware[*interceptors.UnaryCall], s onion.Middleware[*interceptors.StreamCall]) Option {
	return func(c *config) {
		c.unary = append(c.unary, u)
		c.stream = append(c.stream, s)
	}
}

// WithRecovery prepends panic recovery to both pipelines so that a panic
// anywhere in a call is reported as codes.Internal. Unlike other options it
// always becomes the outermost layer.
func WithRecovery() Option {
	return func(c *config) {
		c.unary = append([]onion.Middleware[*interceptors.UnaryCall]{interceptors.Recovery[*interceptors.UnaryCall]()}, c.unary...)
		c.stream = append([]onion.Middleware[*interceptors.StreamCall]{interceptors.Recovery[*interceptors.StreamCall]()}, c.stream...)
	}
}

// WithRequestID makes sure every call below this layer has a request ID.
func WithRequestID() Option {
	return both(interceptors.RequestID[*interceptors.UnaryCall](), interceptors.RequestID[*interceptors.StreamCall]())
}

// WithTracing opens a server span for every call. A nil cfg installs
// nothing.
func WithTracing(cfg *tracing.TracingConfig) Option {
	if cfg == nil {
		return func(*config) {}
	}
	return both(tracing.RPC[*interceptors.UnaryCall](cfg), tracing.RPC[*interceptors.StreamCall](cfg))
}

// WithLogger logs every call through log.
func WithLogger(log logr.Logger) Option {
	return both(logging.Middleware[*interceptors.UnaryCall](log, "unary"), logging.Middleware[*interceptors.StreamCall](log, "stream"))
}

// WithAuth authenticates every call with fn.
func WithAuth(fn interceptors.AuthFunc) Option {
	return both(interceptors.Auth[*interceptors.UnaryCall](fn), interceptors.Auth[*interceptors.StreamCall](fn))
}

// WithRateLimit applies a single limiter shared by all calls.
func WithRateLimit(l *ratelimit.Limiter) Option {
	return both(interceptors.RateLimit[*interceptors.UnaryCall](l), interceptors.RateLimit[*interceptors.StreamCall](l))
}

// WithRateLimitByGroup limits calls per method group as resolved by r;
// calls without a group rate limit use global, which may be nil.
func WithRateLimitByGroup(global *ratelimit.Limiter, r *policy.Resolver) Option {
	return both(interceptors.RateLimitByGroup[*interceptors.UnaryCall](global, r), interceptors.RateLimitByGroup[*interceptors.StreamCall](global, r))
}

// WithTimeout applies the per-group timeouts resolved by r.
func WithTimeout(r *policy.Resolver) Option {
	return both(interceptors.Timeout[*interceptors.UnaryCall](r), interceptors.Timeout[*interceptors.StreamCall](r))
}

// WithIPBlock rejects calls from client addresses b does not allow.
func WithIPBlock(b *security.IPBlocker) Option {
	return both(interceptors.IPBlock[*interceptors.UnaryCall](b), interceptors.IPBlock[*interceptors.StreamCall](b))
}

// WithBreaker guards all calls below this layer with b.
func WithBreaker(b *breaker.Breaker) Option {
	return both(interceptors.Breaker[*interceptors.UnaryCall](b), interceptors.Breaker[*interceptors.StreamCall](b))
}

// WithMetrics records pipeline metrics for every call. The collectors are
// registered with reg, which MetricsHandler then serves; a nil reg means the
// Prometheus default registry.
func WithMetrics(reg *prometheus.Registry, namespace string) Option {
	return func(c *config) {
		var r prometheus.Registerer
		if reg != nil {
			r = reg
		}
		m, err := metrics.New(r, namespace)
		if err != nil {
			c.err = errors.Join(c.err, err)
			return
		}
		c.registry = reg
		c.unary = append(c.unary, metrics.Middleware[*interceptors.UnaryCall](m, "unary"))
		c.stream = append(c.stream, metrics.Middleware[*interceptors.StreamCall](m, "stream"))
	}
}

// WithServerOptions passes opts through to grpc.NewServer.
func WithServerOptions(opts ...grpc.ServerOption) Option {
	return func(c *config) {
		c.serverOpts = append(c.serverOpts, opts...)
	}
}
