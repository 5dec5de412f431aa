package breaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Keksclan/onion"
)

func TestMiddleware_TripsAndRecovers(t *testing.T) {
	b, now := newTestBreaker(Config{
		FailureThreshold:   2,
		OpenTimeout:        5 * time.Second,
		HalfOpenMaxSuccess: 1,
	})
	run := onion.MustCompose(Middleware[*int](b))

	errDown := errors.New("downstream failed")
	fail := func(context.Context, *int, onion.Next) error { return errDown }

	calls := 0
	ok := func(context.Context, *int, onion.Next) error {
		calls++
		return nil
	}

	for range 2 {
		if err := run(t.Context(), new(int), fail); !errors.Is(err, errDown) {
			t.Fatalf("expected downstream error, got %v", err)
		}
	}
	if s := b.State(); s != Open {
		t.Fatalf("expected Open, got %d", s)
	}

	if err := run(t.Context(), new(int), ok); !errors.Is(err, ErrOpen) {
		t.Fatalf("expected ErrOpen, got %v", err)
	}
	if calls != 0 {
		t.Fatalf("terminal must not run while open, ran %d times", calls)
	}

	*now = now.Add(6 * time.Second)

	if err := run(t.Context(), new(int), ok); err != nil {
		t.Fatalf("trial call: unexpected error: %v", err)
	}
	if s := b.State(); s != Closed {
		t.Fatalf("expected Closed after successful trial call, got %d", s)
	}
	if calls != 1 {
		t.Fatalf("terminal ran %d times, want 1", calls)
	}
}

func TestMiddleware_IsFailureIgnoresClientErrors(t *testing.T) {
	errClient := errors.New("bad request")
	b, _ := newTestBreaker(Config{
		FailureThreshold:   1,
		OpenTimeout:        time.Minute,
		HalfOpenMaxSuccess: 1,
		IsFailure:          func(err error) bool { return !errors.Is(err, errClient) },
	})
	run := onion.MustCompose(Middleware[*int](b))

	for range 3 {
		err := run(t.Context(), new(int), func(context.Context, *int, onion.Next) error { return errClient })
		if !errors.Is(err, errClient) {
			t.Fatalf("expected client error, got %v", err)
		}
	}
	if s := b.State(); s != Closed {
		t.Fatalf("client errors must not trip the breaker, state %v", s)
	}

	errBackend := errors.New("backend down")
	_ = run(t.Context(), new(int), func(context.Context, *int, onion.Next) error { return errBackend })
	if s := b.State(); s != Open {
		t.Fatalf("expected Open after a counted failure, got %v", s)
	}
}
