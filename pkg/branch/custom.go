package branch

import (
	"context"

	"github.com/weavebot/weavebot/pkg/message"
	"github.com/weavebot/weavebot/pkg/state"
)

// Predicate is a CustomBranch's matcher: it inspects msg/state and
// returns whether it matched plus optional match/captured data.
type Predicate func(ctx context.Context, msg message.Message, st *state.State) MatchOutcome

// CustomBranch wraps an arbitrary user predicate.
type CustomBranch struct {
	base
	predicate Predicate
}

// NewCustom builds a CustomBranch.
func NewCustom(predicate Predicate, cb Callback, opts ...Option) *CustomBranch {
	b := newBase("", false, false, cb, "", nil)
	applyOptions(&b, opts)
	return &CustomBranch{base: b, predicate: predicate}
}

func (c *CustomBranch) Matches(ctx context.Context, msg message.Message, st *state.State) MatchOutcome {
	outcome := c.predicate(ctx, msg, st)
	if outcome.Matched {
		record(st, c.id, st.Stage, outcome)
	}
	return outcome
}

func (c *CustomBranch) Execute(ctx context.Context, st *state.State) error {
	return c.base.Execute(ctx, st)
}
