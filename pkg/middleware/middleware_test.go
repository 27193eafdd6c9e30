package middleware

import (
	"context"
	"errors"
	"testing"

	"github.com/weavebot/weavebot/pkg/message"
	"github.com/weavebot/weavebot/pkg/state"
)

func newState() *state.State {
	return state.New(message.NewText(message.User{ID: "u1"}, message.NewDirectRoom(), "hi"), nil)
}

func TestAllPiecesCallingNextInvokesComplete(t *testing.T) {
	m := New("listen")
	var order []string
	m.Use(func(ctx context.Context, st *state.State, next NextFunc, done DoneFunc) {
		order = append(order, "piece1")
		next(nil)
	})
	m.Use(func(ctx context.Context, st *state.State, next NextFunc, done DoneFunc) {
		order = append(order, "piece2")
		next(nil)
	})

	completeCalled := false
	err := m.Run(context.Background(), newState(), func(ctx context.Context, st *state.State) error {
		completeCalled = true
		order = append(order, "complete")
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !completeCalled {
		t.Fatal("expected complete to be invoked")
	}
	if len(order) != 3 || order[2] != "complete" {
		t.Fatalf("unexpected order: %v", order)
	}
}

func TestDoneInterruptsStackAndSkipsComplete(t *testing.T) {
	m := New("listen")
	m.Use(func(ctx context.Context, st *state.State, next NextFunc, done DoneFunc) {
		done()
	})
	m.Use(func(ctx context.Context, st *state.State, next NextFunc, done DoneFunc) {
		t.Fatal("second piece should not run after done()")
	})

	completeCalls := 0
	err := m.Run(context.Background(), newState(), func(ctx context.Context, st *state.State) error {
		completeCalls++
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if completeCalls != 0 {
		t.Fatalf("expected complete not to be called, got %d calls", completeCalls)
	}
}

func TestNextOverrideRunsAfterCompleteInLIFOOrder(t *testing.T) {
	m := New("listen")
	var order []string
	m.Use(func(ctx context.Context, st *state.State, next NextFunc, done DoneFunc) {
		next(func(ctx context.Context, st *state.State) { order = append(order, "cleanup1") })
	})
	m.Use(func(ctx context.Context, st *state.State, next NextFunc, done DoneFunc) {
		next(func(ctx context.Context, st *state.State) { order = append(order, "cleanup2") })
	})

	err := m.Run(context.Background(), newState(), func(ctx context.Context, st *state.State) error {
		order = append(order, "complete")
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"complete", "cleanup2", "cleanup1"}
	if len(order) != len(want) {
		t.Fatalf("expected %v, got %v", want, order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, order)
		}
	}
}

func TestPieceErrorIsWrappedAndStopsTheStack(t *testing.T) {
	m := New("act")
	ranSecond := false
	m.Use(func(ctx context.Context, st *state.State, next NextFunc, done DoneFunc) {
		panic(errors.New("boom"))
	})
	m.Use(func(ctx context.Context, st *state.State, next NextFunc, done DoneFunc) {
		ranSecond = true
		next(nil)
	})

	err := m.Run(context.Background(), newState(), nil)
	if err == nil {
		t.Fatal("expected an error")
	}
	var mwErr *Error
	if !errors.As(err, &mwErr) {
		t.Fatalf("expected *Error, got %T", err)
	}
	if ranSecond {
		t.Fatal("expected the stack to stop after the panicking piece")
	}
}
