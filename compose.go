// Package onion composes middleware into a single pipeline that follows the
// onion model: entry code runs front to back, exit code runs back to front.
//
//	d, err := onion.Compose(logging, auth, handler)
//	if err != nil {
//		return err
//	}
//	err = d(ctx, req, nil)
//
// Every layer receives the shared value and a [Next] continuation. Calling
// next hands control to the following layer and returns once everything
// downstream has finished; not calling it short-circuits the rest of the
// chain. A continuation may be called at most once per run.
package onion

import (
	"context"
	"fmt"
	"reflect"
	"runtime/debug"
	"slices"
	"sync/atomic"
)

// Next hands control to the remainder of the pipeline and returns its
// outcome.
type Next func(ctx context.Context) error

// Middleware is a single layer of the onion. Code before next runs on the way
// in, code after next runs on the way out.
type Middleware[T any] func(ctx context.Context, c T, next Next) error

// Dispatcher runs a composed pipeline for one value. terminal runs after the
// last middleware defers to it; a nil terminal completes immediately.
type Dispatcher[T any] func(ctx context.Context, c T, terminal Middleware[T]) error

// Compose validates chain and returns a Dispatcher that runs it in order.
// Compose(A, B) runs A's entry code, then B's, then the terminal, then B's exit
// code and finally A's.
//
// Each call of the returned Dispatcher is independent, so it is safe to use
// from multiple goroutines as long as the values passed to it are.
func Compose[T any](chain ...Middleware[T]) (Dispatcher[T], error) {
	for i, mw := range chain {
		if mw == nil {
			return nil, fmt.Errorf("%w: index %d is nil", ErrNotCallable, i)
		}
	}
	stack := slices.Clone(chain)

	return func(ctx context.Context, c T, terminal Middleware[T]) error {
		d := &dispatch[T]{chain: stack, terminal: terminal, value: c}
		d.cursor.Store(-1)
		return d.advance(ctx, 0)
	}, nil
}

// MustCompose is like Compose but panics when the chain is invalid. It is
// meant for package-level pipelines built from known middleware.
func MustCompose[T any](chain ...Middleware[T]) Dispatcher[T] {
	d, err := Compose(chain...)
	if err != nil {
		panic(err)
	}
	return d
}

// ComposeAny composes a chain whose shape is only known at runtime, such as a
// []any assembled from configuration. chain must be a slice or array and each
// element a Middleware[T] or a func(context.Context, T, Next) error.
func ComposeAny[T any](chain any) (Dispatcher[T], error) {
	switch v := chain.(type) {
	case nil:
		return nil, fmt.Errorf("%w: got nil", ErrNotSequence)
	case []Middleware[T]:
		return Compose(v...)
	}

	rv := reflect.ValueOf(chain)
	if k := rv.Kind(); k != reflect.Slice && k != reflect.Array {
		return nil, fmt.Errorf("%w: got %T", ErrNotSequence, chain)
	}

	stack := make([]Middleware[T], rv.Len())
	for i := range stack {
		el := rv.Index(i).Interface()
		mw, ok := asMiddleware[T](el)
		if !ok {
			return nil, fmt.Errorf("%w: index %d is %T", ErrNotCallable, i, el)
		}
		stack[i] = mw
	}
	return Compose(stack...)
}

func asMiddleware[T any](v any) (Middleware[T], bool) {
	switch fn := v.(type) {
	case Middleware[T]:
		return fn, fn != nil
	case func(context.Context, T, Next) error:
		return fn, fn != nil
	}
	return nil, false
}

// dispatch is the state of a single pipeline run. cursor holds the highest
// index started so far.
type dispatch[T any] struct {
	chain    []Middleware[T]
	terminal Middleware[T]
	value    T
	cursor   atomic.Int64
}

func (d *dispatch[T]) advance(ctx context.Context, i int) (err error) {
	if !d.claim(i) {
		return ErrReentrantNext
	}

	var fn Middleware[T]
	switch {
	case i < len(d.chain):
		fn = d.chain[i]
	case i == len(d.chain):
		fn = d.terminal
		if fn == nil {
			fn = noop[T]
		}
	}
	// Past the terminal: only reached when the terminal calls its own next.
	if fn == nil {
		return nil
	}

	defer func() {
		if r := recover(); r != nil {
			err = recovered(r)
		}
	}()
	return fn(ctx, d.value, func(ctx context.Context) error {
		return d.advance(ctx, i+1)
	})
}

// claim moves the cursor to i. It fails when i was already started, which
// means some continuation was called twice.
func (d *dispatch[T]) claim(i int) bool {
	for {
		last := d.cursor.Load()
		if int64(i) <= last {
			return false
		}
		if d.cursor.CompareAndSwap(last, int64(i)) {
			return true
		}
	}
}

func noop[T any](context.Context, T, Next) error { return nil }

// recovered turns a recovered panic value into the outcome of the step.
func recovered(r any) error {
	return &PanicError{Value: r, Stack: debug.Stack()}
}
