// Package tracing provides OpenTelemetry spans for onion pipelines. It is
// entirely optional: a nil [TracingConfig] turns every layer into a
// passthrough.
package tracing

import (
	"context"
	"strings"

	"github.com/Keksclan/onion"
	"github.com/Keksclan/onion/interceptors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc/metadata"
	grpcStatus "google.golang.org/grpc/status"
)

const instrumentationName = "github.com/Keksclan/onion/tracing"

// TracingConfig holds the OpenTelemetry configuration used by the tracing
// layers.
type TracingConfig struct {
	// TracerProvider supplies the Tracer used to create spans. When nil the
	// global otel.GetTracerProvider() is used.
	TracerProvider trace.TracerProvider

	// Propagators extracts trace context from incoming gRPC metadata.
	// When nil the global otel.GetTextMapPropagator() is used.
	Propagators propagation.TextMapPropagator
}

func (c *TracingConfig) tracer() trace.Tracer {
	tp := c.TracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return tp.Tracer(instrumentationName)
}

func (c *TracingConfig) propagators() propagation.TextMapPropagator {
	if c.Propagators != nil {
		return c.Propagators
	}
	return otel.GetTextMapPropagator()
}

func passthrough[T any](ctx context.Context, _ T, next onion.Next) error {
	return next(ctx)
}

// Middleware returns a layer that wraps everything downstream of it in an
// internal span called name. The span carries the error of the run, if any.
func Middleware[T any](cfg *TracingConfig, name string) onion.Middleware[T] {
	if cfg == nil {
		return passthrough[T]
	}
	return func(ctx context.Context, _ T, next onion.Next) error {
		ctx, span := cfg.tracer().Start(ctx, name, trace.WithSpanKind(trace.SpanKindInternal))
		defer span.End()

		span.SetAttributes(attribute.String("onion.pipeline", name))

		err := next(ctx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
		return err
	}
}

// RPC returns a layer for gRPC pipelines that continues the caller's trace
// from incoming metadata and opens a server span named after the full
// method. It serves unary and stream pipelines alike.
func RPC[T interceptors.Call](cfg *TracingConfig) onion.Middleware[T] {
	if cfg == nil {
		return passthrough[T]
	}
	return func(ctx context.Context, c T, next onion.Next) error {
		fullMethod := c.FullMethod()
		ctx = extract(ctx, cfg)
		ctx, span := cfg.tracer().Start(ctx, fullMethod, trace.WithSpanKind(trace.SpanKindServer))
		defer span.End()

		service, method := splitFullMethod(fullMethod)
		span.SetAttributes(
			attribute.String("rpc.system", "grpc"),
			attribute.String("rpc.service", service),
			attribute.String("rpc.method", method),
		)

		err := next(ctx)
		recordStatus(span, err)
		return err
	}
}

// metadataCarrier adapts gRPC [metadata.MD] to the OTel
// [propagation.TextMapCarrier] interface.
type metadataCarrier metadata.MD

func (mc metadataCarrier) Get(key string) string {
	vals := metadata.MD(mc).Get(key)
	if len(vals) == 0 {
		return ""
	}
	return vals[0]
}

func (mc metadataCarrier) Set(key, value string) {
	metadata.MD(mc).Set(key, value)
}

func (mc metadataCarrier) Keys() []string {
	md := metadata.MD(mc)
	keys := make([]string, 0, len(md))
	for k := range md {
		keys = append(keys, k)
	}
	return keys
}

// extract pulls trace context from incoming gRPC metadata into ctx.
func extract(ctx context.Context, cfg *TracingConfig) context.Context {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		md = metadata.MD{}
	}
	return cfg.propagators().Extract(ctx, metadataCarrier(md))
}

// splitFullMethod splits "/service/method" into ("service", "method").
func splitFullMethod(fullMethod string) (string, string) {
	fullMethod = strings.TrimPrefix(fullMethod, "/")
	service, method, ok := strings.Cut(fullMethod, "/")
	if !ok {
		return fullMethod, ""
	}
	return service, method
}

// recordStatus sets the span status and records the gRPC status code.
func recordStatus(span trace.Span, err error) {
	st, _ := grpcStatus.FromError(err)
	span.SetAttributes(attribute.String("rpc.grpc.status_code", st.Code().String()))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, st.Message())
	} else {
		span.SetStatus(codes.Ok, "")
	}
}
