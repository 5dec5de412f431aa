// Package contextx holds the request-scoped values that pipeline layers put
// into a context.Context for the layers below them.
package contextx

// contextKey is an unexported type used as context key to avoid collisions
// with keys defined in other packages.
type contextKey int

const (
	requestIDKey contextKey = iota
	methodKey
)
