// Package bit implements reusable micro-dialogue units (C10): an id,
// optional send strings, an optional callback, optional entry
// criteria, and an optional next-bit chain. Grounded on the teacher's
// pkg/tools/registry.go map+mutex registry, generalized to validate-
// on-register and to send before invoking a callback, per the
// documented-intent correction over the source's TODO'd send branch.
package bit

import (
	"context"
	"fmt"

	"github.com/weavebot/weavebot/pkg/logger"
	"github.com/weavebot/weavebot/pkg/state"
)

// Callback runs a Bit's custom logic against st.
type Callback func(ctx context.Context, st *state.State) error

// Bit is a reusable micro-dialogue unit referenced by id.
type Bit struct {
	ID       string
	Send     []string
	Callback Callback

	// Condition, Intent, and Listen are free-form entry criteria a
	// caller may inspect before triggering this Bit; bit itself does
	// not interpret them, the orchestrator's scene machinery does.
	Condition interface{}
	Intent    interface{}
	Listen    interface{}

	// Next chains follow-up bit ids, forming an implicit scene when
	// this Bit executes.
	Next []string

	// Scope narrows which participant(s) a scene built from Next is
	// keyed to: ScopeUser (default), ScopeRoom, or ScopeBoth.
	Scope string

	// Cron optionally schedules this Bit to run on a fixed schedule
	// independent of any message, per the scheduled-Bit trigger of D13
	// in §4.14.
	Cron string
}

// Scene scope values for Bit.Scope.
const (
	ScopeUser = "user"
	ScopeRoom = "room"
	ScopeBoth = "both"
)

// Do queues Send (if any) on st, then invokes Callback (if any). A Bit
// with neither is valid but inert; warn about that at registration
// time instead, since Do itself has no logger to warn through.
func (b *Bit) Do(ctx context.Context, st *state.State) error {
	if len(b.Send) > 0 {
		st.Write(b.Send...)
	}
	if b.Callback != nil {
		return b.Callback(ctx, st)
	}
	return nil
}

// Registry is the process-wide, id-keyed collection of Bits.
type Registry struct {
	log   *logger.Logger
	byID  map[string]*Bit
	order []string
}

// New creates an empty Registry. log may be nil; Register then skips
// the neither-send-nor-callback warning.
func New(log *logger.Logger) *Registry {
	return &Registry{log: log, byID: map[string]*Bit{}}
}

// Register adds b to the registry, replacing any prior Bit with the
// same id while keeping its original position, matching Path's
// duplicate-id-replace convention. Registering a Bit with an empty id
// is a registration-time error, per §7's "registration errors are
// fatal" rule.
func (r *Registry) Register(b *Bit) error {
	if b.ID == "" {
		return fmt.Errorf("bit: register: id is required")
	}
	if b.Send == nil && b.Callback == nil && r.log != nil {
		r.log.WarnCF("bit", "registered without send or callback", map[string]interface{}{"id": b.ID})
	}
	if r.byID == nil {
		r.byID = map[string]*Bit{}
	}
	if _, exists := r.byID[b.ID]; !exists {
		r.order = append(r.order, b.ID)
	}
	r.byID[b.ID] = b
	return nil
}

// Get looks up a Bit by id.
func (r *Registry) Get(id string) (*Bit, bool) {
	b, ok := r.byID[id]
	return b, ok
}

// All returns every registered Bit in registration order.
func (r *Registry) All() []*Bit {
	out := make([]*Bit, 0, len(r.order))
	for _, id := range r.order {
		if b, ok := r.byID[id]; ok {
			out = append(out, b)
		}
	}
	return out
}

// Do runs the named Bit's Do against st. A missing id is logged and
// returns nil, never an error, matching "doBit missing-id-logs-and-
// returns" in §4.9.
func (r *Registry) Do(ctx context.Context, id string, st *state.State) error {
	b, ok := r.byID[id]
	if !ok {
		if r.log != nil {
			r.log.WarnCF("bit", "doBit: unknown id", map[string]interface{}{"id": id})
		}
		return nil
	}
	return b.Do(ctx, st)
}

// Reset empties the registry, used by the lifecycle controller's reset.
func (r *Registry) Reset() {
	r.byID = map[string]*Bit{}
	r.order = nil
}
