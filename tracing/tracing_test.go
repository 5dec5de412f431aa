package tracing

import (
	"context"
	"errors"
	"testing"

	"github.com/Keksclan/onion"
	"github.com/Keksclan/onion/interceptors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	grpcCodes "google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	grpcStatus "google.golang.org/grpc/status"
)

// newTestConfig returns a TracingConfig backed by an in-memory span recorder.
func newTestConfig(t *testing.T) (*TracingConfig, *tracetest.SpanRecorder) {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	t.Cleanup(func() { _ = tp.Shutdown(t.Context()) })
	return &TracingConfig{
		TracerProvider: tp,
		Propagators:    propagation.TraceContext{},
	}, rec
}

func unary(t *testing.T, mw ...onion.Middleware[*interceptors.UnaryCall]) grpc.UnaryServerInterceptor {
	t.Helper()
	ic, err := interceptors.Unary(mw...)
	if err != nil {
		t.Fatalf("Unary: %v", err)
	}
	return ic
}

// ---------- Unary -----------------------------------------------------------

func TestRPC_Unary_CreatesSpan(t *testing.T) {
	cfg, rec := newTestConfig(t)
	ic := unary(t, RPC[*interceptors.UnaryCall](cfg))

	handler := func(_ context.Context, req any) (any, error) { return "ok", nil }
	info := &grpc.UnaryServerInfo{FullMethod: "/onion.Greeter/Greet"}

	resp, err := ic(t.Context(), "req", info, handler)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp != "ok" {
		t.Fatalf("expected %q, got %v", "ok", resp)
	}

	spans := rec.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	span := spans[0]
	if span.Name() != "/onion.Greeter/Greet" {
		t.Fatalf("expected span name %q, got %q", "/onion.Greeter/Greet", span.Name())
	}
	if span.SpanKind() != trace.SpanKindServer {
		t.Fatalf("expected SpanKindServer, got %v", span.SpanKind())
	}

	assertAttr(t, span.Attributes(), "rpc.system", "grpc")
	assertAttr(t, span.Attributes(), "rpc.service", "onion.Greeter")
	assertAttr(t, span.Attributes(), "rpc.method", "Greet")
	assertAttr(t, span.Attributes(), "rpc.grpc.status_code", "OK")
}

func TestRPC_Unary_RecordsError(t *testing.T) {
	cfg, rec := newTestConfig(t)
	ic := unary(t, RPC[*interceptors.UnaryCall](cfg))

	handler := func(_ context.Context, _ any) (any, error) {
		return nil, grpcStatus.Error(grpcCodes.NotFound, "not found")
	}
	info := &grpc.UnaryServerInfo{FullMethod: "/svc/Method"}

	if _, err := ic(t.Context(), "req", info, handler); err == nil {
		t.Fatal("expected error")
	}

	spans := rec.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	span := spans[0]
	if span.Status().Code != codes.Error {
		t.Fatalf("expected Error status, got %v", span.Status().Code)
	}
	assertAttr(t, span.Attributes(), "rpc.grpc.status_code", "NotFound")
}

func TestRPC_NilConfig_Passthrough(t *testing.T) {
	ic := unary(t, RPC[*interceptors.UnaryCall](nil))
	handler := func(_ context.Context, req any) (any, error) { return req, nil }
	info := &grpc.UnaryServerInfo{FullMethod: "/svc/Method"}

	resp, err := ic(t.Context(), "hello", info, handler)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp != "hello" {
		t.Fatalf("expected %q, got %v", "hello", resp)
	}
}

func TestRPC_ExtractsTraceContext(t *testing.T) {
	cfg, rec := newTestConfig(t)
	ic := unary(t, RPC[*interceptors.UnaryCall](cfg))

	// Inject a traceparent header into incoming metadata.
	md := metadata.Pairs("traceparent", "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01")
	ctx := metadata.NewIncomingContext(t.Context(), md)

	handler := func(_ context.Context, req any) (any, error) { return req, nil }
	info := &grpc.UnaryServerInfo{FullMethod: "/svc/Method"}

	if _, err := ic(ctx, "req", info, handler); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	spans := rec.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	sc := spans[0].SpanContext()
	if sc.TraceID().String() != "4bf92f3577b34da6a3ce929d0e0e4736" {
		t.Fatalf("trace context not extracted; traceID = %s", sc.TraceID())
	}
}

func TestRPC_RecordsPanicBelow(t *testing.T) {
	cfg, rec := newTestConfig(t)
	ic := unary(t,
		RPC[*interceptors.UnaryCall](cfg),
		func(context.Context, *interceptors.UnaryCall, onion.Next) error { panic("boom") },
	)

	if _, err := ic(t.Context(), nil, &grpc.UnaryServerInfo{FullMethod: "/svc/Method"}, nil); err == nil {
		t.Fatal("expected error")
	}

	spans := rec.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if spans[0].Status().Code != codes.Error {
		t.Fatalf("expected Error status, got %v", spans[0].Status().Code)
	}
}

// ---------- Stream ----------------------------------------------------------

type fakeServerStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (f *fakeServerStream) Context() context.Context { return f.ctx }

func TestRPC_Stream_SpanContextReachesHandler(t *testing.T) {
	cfg, rec := newTestConfig(t)
	ic, err := interceptors.Stream(RPC[*interceptors.StreamCall](cfg))
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}

	var inHandler trace.SpanContext
	handler := func(_ any, ss grpc.ServerStream) error {
		inHandler = trace.SpanContextFromContext(ss.Context())
		return errors.New("stream failed")
	}
	ss := &fakeServerStream{ctx: t.Context()}
	info := &grpc.StreamServerInfo{FullMethod: "/onion.Greeter/Watch"}

	if err := ic(nil, ss, info, handler); err == nil {
		t.Fatal("expected error")
	}

	spans := rec.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	span := spans[0]
	if span.Name() != "/onion.Greeter/Watch" {
		t.Fatalf("expected span name %q, got %q", "/onion.Greeter/Watch", span.Name())
	}
	if span.Status().Code != codes.Error {
		t.Fatalf("expected Error status, got %v", span.Status().Code)
	}
	if inHandler.SpanID() != span.SpanContext().SpanID() {
		t.Fatalf("handler saw span %s, want %s", inHandler.SpanID(), span.SpanContext().SpanID())
	}
	assertAttr(t, span.Attributes(), "rpc.method", "Watch")
}

// ---------- Middleware ------------------------------------------------------

func TestMiddleware_NestsUnderRPC(t *testing.T) {
	cfg, rec := newTestConfig(t)
	ic := unary(t,
		RPC[*interceptors.UnaryCall](cfg),
		Middleware[*interceptors.UnaryCall](cfg, "handler"),
	)

	if _, err := ic(t.Context(), nil, &grpc.UnaryServerInfo{FullMethod: "/svc/Method"}, func(context.Context, any) (any, error) {
		return nil, nil
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	spans := rec.Ended()
	if len(spans) != 2 {
		t.Fatalf("expected 2 spans, got %d", len(spans))
	}
	inner, outer := spans[0], spans[1]
	if inner.Name() != "handler" || outer.Name() != "/svc/Method" {
		t.Fatalf("unexpected span order: %q, %q", inner.Name(), outer.Name())
	}
	if inner.Parent().SpanID() != outer.SpanContext().SpanID() {
		t.Fatal("inner span is not a child of the server span")
	}
	if inner.SpanKind() != trace.SpanKindInternal {
		t.Fatalf("expected SpanKindInternal, got %v", inner.SpanKind())
	}
	assertAttr(t, inner.Attributes(), "onion.pipeline", "handler")
}

func TestMiddleware_RecordsError(t *testing.T) {
	cfg, rec := newTestConfig(t)
	run := onion.MustCompose(Middleware[string](cfg, "jobs"))

	want := errors.New("failed")
	err := run(t.Context(), "job-1", func(context.Context, string, onion.Next) error { return want })
	if !errors.Is(err, want) {
		t.Fatalf("expected %v, got %v", want, err)
	}

	spans := rec.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if spans[0].Status().Code != codes.Error || spans[0].Status().Description != "failed" {
		t.Fatalf("unexpected status %+v", spans[0].Status())
	}
}

func TestMiddleware_NilConfig(t *testing.T) {
	run := onion.MustCompose(Middleware[string](nil, "jobs"))
	called := false
	err := run(t.Context(), "job-1", func(context.Context, string, onion.Next) error {
		called = true
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Fatal("terminal was not called")
	}
}

// ---------- helpers ---------------------------------------------------------

func TestSplitFullMethod(t *testing.T) {
	tests := []struct {
		input   string
		service string
		method  string
	}{
		{"/onion.Greeter/Greet", "onion.Greeter", "Greet"},
		{"/service/method", "service", "method"},
		{"noSlash", "noSlash", ""},
	}
	for _, tt := range tests {
		svc, meth := splitFullMethod(tt.input)
		if svc != tt.service || meth != tt.method {
			t.Errorf("splitFullMethod(%q) = (%q, %q), want (%q, %q)", tt.input, svc, meth, tt.service, tt.method)
		}
	}
}

func assertAttr(t *testing.T, attrs []attribute.KeyValue, key, want string) {
	t.Helper()
	for _, a := range attrs {
		if string(a.Key) == key {
			if a.Value.AsString() != want {
				t.Errorf("attribute %q = %q, want %q", key, a.Value.AsString(), want)
			}
			return
		}
	}
	t.Errorf("attribute %q not found", key)
}
