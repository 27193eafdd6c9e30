package branch

import (
	"context"

	"github.com/weavebot/weavebot/pkg/message"
	"github.com/weavebot/weavebot/pkg/state"
)

// CatchAllBranch matches iff the State has no prior matched branches
// from listen, understand or serve, per §4.2. It is registered in the act stage
// and evaluated only once the orchestrator has wrapped the original
// message as a CatchAllMessage.
type CatchAllBranch struct {
	base
}

// NewCatchAll builds a CatchAllBranch.
func NewCatchAll(cb Callback, opts ...Option) *CatchAllBranch {
	b := newBase("", false, false, cb, "", nil)
	applyOptions(&b, opts)
	return &CatchAllBranch{base: b}
}

func (c *CatchAllBranch) Matches(ctx context.Context, msg message.Message, st *state.State) MatchOutcome {
	if st.HasMatch() {
		return MatchOutcome{}
	}
	outcome := MatchOutcome{Matched: true, Match: msg}
	record(st, c.id, st.Stage, outcome)
	return outcome
}

func (c *CatchAllBranch) Execute(ctx context.Context, st *state.State) error {
	return c.base.Execute(ctx, st)
}
