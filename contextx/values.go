package contextx

import "context"

// WithRequestID returns a copy of ctx carrying id as the request ID.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext returns the request ID carried by ctx, or "" if none
// was set.
func RequestIDFromContext(ctx context.Context) string {
	return stringValue(ctx, requestIDKey)
}

// WithMethod returns a copy of ctx carrying the full RPC method name of the
// call being handled.
func WithMethod(ctx context.Context, fullMethod string) context.Context {
	return context.WithValue(ctx, methodKey, fullMethod)
}

// MethodFromContext returns the full method name carried by ctx, or "" if
// none was set.
func MethodFromContext(ctx context.Context) string {
	return stringValue(ctx, methodKey)
}

func stringValue(ctx context.Context, key contextKey) string {
	v, _ := ctx.Value(key).(string)
	return v
}
