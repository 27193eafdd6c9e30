// Package scene implements the ephemeral, scope-keyed Path (the
// "scoped dialogue" machinery referenced by C3 and C10): when a Bit
// with a Next chain executes, the follow-up bits become a short-lived
// Path scoped to the user and/or room that triggered it, consulted by
// the orchestrator ahead of the global Path until it either resolves
// chainlessly or times out. Grounded on the teacher's
// pkg/session/manager.go Session map (id-keyed, mutex-guarded,
// generalized here with a per-entry expiry instead of an explicit
// close).
package scene

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/weavebot/weavebot/pkg/bit"
	"github.com/weavebot/weavebot/pkg/branch"
	"github.com/weavebot/weavebot/pkg/logger"
	"github.com/weavebot/weavebot/pkg/message"
	"github.com/weavebot/weavebot/pkg/path"
	"github.com/weavebot/weavebot/pkg/state"
)

// DefaultTTL is used by New when ttl <= 0.
const DefaultTTL = 5 * time.Minute

type entry struct {
	path    *path.Path
	expires time.Time
}

// Scenes holds every live scoped Path, keyed by scope kind plus
// user/room id.
type Scenes struct {
	mu      sync.Mutex
	ttl     time.Duration
	log     *logger.Logger
	entries map[string]*entry
}

// New creates an empty Scenes manager. A zero or negative ttl falls
// back to DefaultTTL.
func New(log *logger.Logger, ttl time.Duration) *Scenes {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Scenes{ttl: ttl, log: log, entries: map[string]*entry{}}
}

func sceneKey(scope string, user message.User, room message.Room) string {
	switch scope {
	case bit.ScopeRoom:
		return "room:" + room.ID
	case bit.ScopeBoth:
		return "both:" + user.ID + ":" + room.ID
	default:
		return "user:" + user.ID
	}
}

// Lookup returns the scoped Path most relevant to user/room, checking
// the "both", "user", then "room" keys in that priority order so a
// caller doesn't need to know which scope the active scene (if any)
// was registered under. Expired entries are purged as they're found.
func (s *Scenes) Lookup(user message.User, room message.Room) *path.Path {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range []string{
		sceneKey(bit.ScopeBoth, user, room),
		sceneKey(bit.ScopeUser, user, room),
		sceneKey(bit.ScopeRoom, user, room),
	} {
		e, ok := s.entries[k]
		if !ok {
			continue
		}
		if time.Now().After(e.expires) {
			delete(s.entries, k)
			continue
		}
		return e.path
	}
	return nil
}

// Discard removes the scoped Path registered under scope/user/room, if
// any, used when a chained Bit has no further Next.
func (s *Scenes) Discard(scope string, user message.User, room message.Room) {
	s.mu.Lock()
	delete(s.entries, sceneKey(scope, user, room))
	s.mu.Unlock()
}

// Chain builds a fresh scoped Path from ids (a Bit's Next list) and
// registers it under scope/user/room, replacing whatever scene was
// there before. Each chained bit's matcher is compiled from its own
// Listen/Condition/Intent field; a bit with none of those always
// matches the next turn, since an entry with no stated criteria is
// read as "continue the scene unconditionally."
func (s *Scenes) Chain(reg *bit.Registry, ids []string, scope string, user message.User, room message.Room) error {
	k := sceneKey(scope, user, room)
	p := path.New(k)

	for _, id := range ids {
		b, ok := reg.Get(id)
		if !ok {
			if s.log != nil {
				s.log.WarnCF("scene", "chain: unknown bit id", map[string]interface{}{"id": id})
			}
			continue
		}
		br, stage, err := s.branchFor(reg, b)
		if err != nil {
			return fmt.Errorf("scene: chain %q: %w", id, err)
		}
		p.Add(br, stage)
	}

	s.mu.Lock()
	s.entries[k] = &entry{path: p, expires: time.Now().Add(s.ttl)}
	s.mu.Unlock()
	return nil
}

func (s *Scenes) branchFor(reg *bit.Registry, b *bit.Bit) (branch.Branch, state.Stage, error) {
	callback := func(ctx context.Context, st *state.State) error {
		return s.RunAndChain(ctx, reg, b.ID, st)
	}

	switch {
	case b.Listen != nil:
		br, err := branch.NewText(b.Listen, callback)
		return br, state.StageListen, err
	case b.Condition != nil:
		br, err := branch.NewText(b.Condition, callback)
		return br, state.StageListen, err
	case b.Intent != nil:
		criteria, err := intentCriteria(b.Intent)
		if err != nil {
			return nil, "", err
		}
		return branch.NewNaturalLanguage(criteria, callback), state.StageUnderstand, nil
	default:
		always := func(ctx context.Context, msg message.Message, st *state.State) branch.MatchOutcome {
			return branch.MatchOutcome{Matched: true, Match: msg.TextContent()}
		}
		return branch.NewCustom(always, callback), state.StageListen, nil
	}
}

func intentCriteria(raw interface{}) (branch.Criteria, error) {
	switch v := raw.(type) {
	case string:
		return branch.Criteria{Intent: v, Operator: branch.OpIs}, nil
	case branch.Criteria:
		return v, nil
	default:
		return branch.Criteria{}, fmt.Errorf("scene: unsupported intent criteria type %T", raw)
	}
}

// RunAndChain executes the named Bit and then either registers its
// Next as a follow-up scene or discards the current one. It is the
// single implementation shared by direct RunBit calls and the
// callbacks Chain builds, so a Bit executed either way chains
// identically.
func (s *Scenes) RunAndChain(ctx context.Context, reg *bit.Registry, id string, st *state.State) error {
	b, ok := reg.Get(id)
	if !ok {
		if s.log != nil {
			s.log.WarnCF("bit", "doBit: unknown id", map[string]interface{}{"id": id})
		}
		return nil
	}
	if err := b.Do(ctx, st); err != nil {
		return err
	}
	if len(b.Next) > 0 {
		return s.Chain(reg, b.Next, b.Scope, st.Message.User, st.Message.Room)
	}
	s.Discard(b.Scope, st.Message.User, st.Message.Room)
	return nil
}
