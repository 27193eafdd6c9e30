// Package branch implements the matcher+callback+metadata record (C2)
// that the thought process evaluates against an inbound message. It
// follows the teacher's pkg/tools/base.go shape: one small base
// interface (Branch) plus concrete struct types per subtype, rather
// than a single struct with a discriminator field.
package branch

import (
	"context"

	"github.com/google/uuid"
	"github.com/weavebot/weavebot/pkg/message"
	"github.com/weavebot/weavebot/pkg/state"
)

// MatchOutcome is what Matches returns: whether the branch matched,
// the raw match value, and the trimmed captured string.
type MatchOutcome struct {
	Matched  bool
	Match    interface{}
	Captured string
}

// Callback is a Branch's user-supplied action.
type Callback func(ctx context.Context, st *state.State) error

// Branch is the contract every subtype satisfies.
type Branch interface {
	ID() string
	Force() bool
	Once() bool
	Matches(ctx context.Context, msg message.Message, st *state.State) MatchOutcome
	Execute(ctx context.Context, st *state.State) error
}

// base carries the fields every subtype shares: id, flags, the action
// (either a callback or a bit id string), and a metadata bag.
type base struct {
	id       string
	force    bool
	once     bool
	callback Callback
	bitID    string
	metadata map[string]interface{}
}

func newBase(id string, force, once bool, cb Callback, bitID string, meta map[string]interface{}) base {
	if id == "" {
		id = uuid.NewString()
	}
	return base{id: id, force: force, once: once, callback: cb, bitID: bitID, metadata: meta}
}

func (b base) ID() string    { return b.id }
func (b base) Force() bool   { return b.force }
func (b base) Once() bool    { return b.once }

// Execute invokes the callback if present, or treats a non-empty bit
// id as a reference into the bit registry, per §4.2: "if action is a
// string, treats it as a bit id and runs doBit."
func (b base) Execute(ctx context.Context, st *state.State) error {
	if b.callback != nil {
		return b.callback(ctx, st)
	}
	if b.bitID != "" {
		return st.Bot.RunBit(ctx, b.bitID, st)
	}
	return nil
}

// Option configures the shared base fields of any branch constructor.
type Option func(*base)

func WithID(id string) Option                     { return func(b *base) { b.id = id } }
func WithForce(force bool) Option                  { return func(b *base) { b.force = force } }
func WithOnce(once bool) Option                    { return func(b *base) { b.once = once } }
func WithBitID(bitID string) Option                { return func(b *base) { b.bitID = bitID } }
func WithMetadata(m map[string]interface{}) Option { return func(b *base) { b.metadata = m } }

func applyOptions(b *base, opts []Option) {
	for _, opt := range opts {
		opt(b)
	}
}

func record(st *state.State, id string, stage state.Stage, outcome MatchOutcome) {
	st.RecordMatch(state.Matched{
		BranchID: id,
		Stage:    stage,
		Match:    outcome.Match,
		Captured: outcome.Captured,
	})
}
