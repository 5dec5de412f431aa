package onion

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidArgument is the parent of every composition error.
	ErrInvalidArgument = errors.New("onion: invalid argument")

	// ErrNotSequence is returned by ComposeAny when the chain is not a slice
	// or array.
	ErrNotSequence = fmt.Errorf("%w: middleware stack must be a sequence", ErrInvalidArgument)

	// ErrNotCallable is returned when an element of the chain is nil or not a
	// middleware function.
	ErrNotCallable = fmt.Errorf("%w: middleware must be composed of functions", ErrInvalidArgument)

	// ErrReentrantNext is returned when a continuation is called more than
	// once during the same run.
	ErrReentrantNext = errors.New("next() called multiple times")
)

// PanicError carries the value recovered from a panicking middleware. When
// the value is itself an error, PanicError reports its message and unwraps
// to it, so errors.Is and errors.As still find it.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	if err, ok := e.Value.(error); ok {
		return err.Error()
	}
	return fmt.Sprint(e.Value)
}

func (e *PanicError) Unwrap() error {
	err, _ := e.Value.(error)
	return err
}
