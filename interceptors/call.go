// Package interceptors embeds onion pipelines into a gRPC server. A pipeline
// of onion.Middleware[*UnaryCall] (or *StreamCall) becomes a single gRPC
// interceptor whose terminal invokes the registered handler.
package interceptors

import (
	"context"

	"github.com/Keksclan/onion"
	"github.com/Keksclan/onion/contextx"
	"google.golang.org/grpc"
)

// Call is implemented by the values threaded through gRPC pipelines.
type Call interface {
	FullMethod() string
}

// UnaryCall is the shared value of a unary pipeline. Layers may replace Req
// before calling next and inspect or replace Resp afterwards.
type UnaryCall struct {
	Req  any
	Resp any
	Info *grpc.UnaryServerInfo
}

// FullMethod returns the full RPC method name, e.g. "/pkg.Service/Method".
func (c *UnaryCall) FullMethod() string {
	if c.Info == nil {
		return ""
	}
	return c.Info.FullMethod
}

// StreamCall is the shared value of a streaming pipeline.
type StreamCall struct {
	Srv    any
	Stream grpc.ServerStream
	Info   *grpc.StreamServerInfo
}

// FullMethod returns the full RPC method name, e.g. "/pkg.Service/Method".
func (c *StreamCall) FullMethod() string {
	if c.Info == nil {
		return ""
	}
	return c.Info.FullMethod
}

// Unary composes mw into a gRPC unary server interceptor. The layers run in
// the order given; the gRPC handler runs as the terminal.
func Unary(mw ...onion.Middleware[*UnaryCall]) (grpc.UnaryServerInterceptor, error) {
	run, err := onion.Compose(mw...)
	if err != nil {
		return nil, err
	}

	return func(
		ctx context.Context,
		req any,
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (any, error) {
		call := &UnaryCall{Req: req, Info: info}
		ctx = contextx.WithMethod(ctx, call.FullMethod())
		err := run(ctx, call, func(ctx context.Context, c *UnaryCall, _ onion.Next) error {
			resp, err := handler(ctx, c.Req)
			c.Resp = resp
			return err
		})
		if err != nil {
			return nil, err
		}
		return call.Resp, nil
	}, nil
}

// Stream composes mw into a gRPC stream server interceptor. When a layer
// hands a different context to next, the handler sees it through
// ServerStream.Context.
func Stream(mw ...onion.Middleware[*StreamCall]) (grpc.StreamServerInterceptor, error) {
	run, err := onion.Compose(mw...)
	if err != nil {
		return nil, err
	}

	return func(
		srv any,
		ss grpc.ServerStream,
		info *grpc.StreamServerInfo,
		handler grpc.StreamHandler,
	) error {
		call := &StreamCall{Srv: srv, Stream: ss, Info: info}
		ctx := context.Background()
		if ss != nil {
			ctx = ss.Context()
		}
		ctx = contextx.WithMethod(ctx, call.FullMethod())
		return run(ctx, call, func(ctx context.Context, c *StreamCall, _ onion.Next) error {
			return handler(c.Srv, withContext(c.Stream, ctx))
		})
	}, nil
}

// FromUnary adapts an existing gRPC unary interceptor into a pipeline layer.
// The interceptor's handler continues the pipeline.
func FromUnary(ic grpc.UnaryServerInterceptor) onion.Middleware[*UnaryCall] {
	return func(ctx context.Context, c *UnaryCall, next onion.Next) error {
		resp, err := ic(ctx, c.Req, c.Info, func(ctx context.Context, req any) (any, error) {
			c.Req = req
			if err := next(ctx); err != nil {
				return nil, err
			}
			return c.Resp, nil
		})
		if err != nil {
			return err
		}
		c.Resp = resp
		return nil
	}
}

// wrappedStream overrides Context() to carry the pipeline's context.
type wrappedStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (w *wrappedStream) Context() context.Context { return w.ctx }

func withContext(ss grpc.ServerStream, ctx context.Context) grpc.ServerStream {
	if ss == nil || ss.Context() == ctx {
		return ss
	}
	return &wrappedStream{ServerStream: ss, ctx: ctx}
}
