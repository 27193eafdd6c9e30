// Package middleware implements the generic async piece-stack (C4)
// used at every thought-process stage. It is grounded on the
// teacher's pkg/agent/loop.go AgentLoop.Run sequential single-
// goroutine processing loop and pkg/gateway/gateway.go's forward-or-
// handle dispatch, generalized into an explicit piece-stack with
// next/done and a LIFO of deferred-done thunks, per the "mutating done
// closure becomes an explicit LIFO of thunks" design note.
package middleware

import (
	"context"
	"fmt"

	"github.com/weavebot/weavebot/pkg/state"
)

// Thunk is a cleanup continuation a piece can schedule to run after
// Complete, by passing it to NextFunc.
type Thunk func(ctx context.Context, st *state.State)

// NextFunc continues to the next piece. Passing a non-nil override
// pushes it onto the LIFO of thunks run after Complete.
type NextFunc func(override Thunk)

// DoneFunc interrupts the stack: no further piece runs and Complete is
// not invoked.
type DoneFunc func()

// Piece is one step in a Middleware's stack.
type Piece func(ctx context.Context, st *state.State, next NextFunc, done DoneFunc)

// Complete runs once every piece has called next(), before the
// deferred thunks drain.
type Complete func(ctx context.Context, st *state.State) error

// Error wraps a piece- or Complete-raised error with the state and
// middleware type it happened in, per §7's MiddlewareError.
type Error struct {
	Type  string
	State *state.State
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("middleware %q: %v", e.Type, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Middleware is a named, ordered list of pieces.
type Middleware struct {
	Type   string
	pieces []Piece
}

// New creates an empty Middleware of the given type (used for tracing
// and error annotation).
func New(middlewareType string) *Middleware {
	return &Middleware{Type: middlewareType}
}

// Use appends a piece to the stack.
func (m *Middleware) Use(p Piece) *Middleware {
	m.pieces = append(m.pieces, p)
	return m
}

// Len reports how many pieces are registered.
func (m *Middleware) Len() int { return len(m.pieces) }

// Run drives every piece in insertion order, then complete, then the
// LIFO of deferred thunks, unless a piece calls done() to interrupt.
func (m *Middleware) Run(ctx context.Context, st *state.State, complete Complete) error {
	var dones []Thunk
	var interrupted bool
	var stepErr error

	var run func(i int)
	run = func(i int) {
		if interrupted || stepErr != nil {
			return
		}
		if i >= len(m.pieces) {
			if complete != nil {
				func() {
					defer func() {
						if r := recover(); r != nil {
							stepErr = &Error{Type: m.Type, State: st, Err: fmt.Errorf("panic: %v", r)}
						}
					}()
					if err := complete(ctx, st); err != nil {
						stepErr = &Error{Type: m.Type, State: st, Err: err}
					}
				}()
			}
			if stepErr == nil {
				drain(ctx, st, dones)
			}
			return
		}

		piece := m.pieces[i]
		next := func(override Thunk) {
			if override != nil {
				dones = append(dones, override)
			}
			run(i + 1)
		}
		done := func() { interrupted = true }

		func() {
			defer func() {
				if r := recover(); r != nil {
					stepErr = &Error{Type: m.Type, State: st, Err: fmt.Errorf("panic: %v", r)}
				}
			}()
			piece(ctx, st, next, done)
		}()
	}

	run(0)
	return stepErr
}

// drain runs the deferred thunks in LIFO order: the most recently
// pushed override runs first, matching "in LIFO order for multiple
// wrappers" in §8.
func drain(ctx context.Context, st *state.State, dones []Thunk) {
	for i := len(dones) - 1; i >= 0; i-- {
		dones[i](ctx, st)
	}
}
