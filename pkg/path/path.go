// Package path implements the named collection of branches grouped by
// stage (C3), grounded on the teacher's pkg/tools/registry.go
// ToolRegistry (map + sync.RWMutex + Register/Get/List/Count),
// generalized to four stage-keyed maps with add/reset/forced.
package path

import (
	"sync"

	"github.com/weavebot/weavebot/pkg/branch"
	"github.com/weavebot/weavebot/pkg/state"
)

// GlobalScope is the reserved scope name for the process-wide Path;
// every other scope name identifies an ephemeral scene Path.
const GlobalScope = "global"

// stageSet holds a stage's branches both by id (for replace-on-
// duplicate-id lookups) and in registration order (for the tie-break
// rule in §4.6: "within a stage, first registered branch wins").
type stageSet struct {
	byID  map[string]branch.Branch
	order []string
}

func newStageSet() *stageSet {
	return &stageSet{byID: map[string]branch.Branch{}}
}

func (s *stageSet) add(b branch.Branch) {
	id := b.ID()
	if _, exists := s.byID[id]; !exists {
		s.order = append(s.order, id)
	}
	s.byID[id] = b
}

func (s *stageSet) ordered() []branch.Branch {
	out := make([]branch.Branch, 0, len(s.order))
	for _, id := range s.order {
		if b, ok := s.byID[id]; ok {
			out = append(out, b)
		}
	}
	return out
}

func (s *stageSet) remove(id string) {
	delete(s.byID, id)
	for i, existing := range s.order {
		if existing == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

func (s *stageSet) keepForcedOnly() int {
	kept := s.order[:0]
	for _, id := range s.order {
		b := s.byID[id]
		if b.Force() {
			kept = append(kept, id)
		} else {
			delete(s.byID, id)
		}
	}
	s.order = kept
	return len(s.order)
}

// Path is a named collection of branches grouped by stage. A branch
// appears in exactly one stage map of one Path.
type Path struct {
	mu    sync.RWMutex
	Scope string

	listen     *stageSet
	understand *stageSet
	serve      *stageSet
	act        *stageSet
}

// New creates an empty Path scoped to name (use GlobalScope for the
// process-wide instance).
func New(scope string) *Path {
	if scope == "" {
		scope = GlobalScope
	}
	return &Path{
		Scope:      scope,
		listen:     newStageSet(),
		understand: newStageSet(),
		serve:      newStageSet(),
		act:        newStageSet(),
	}
}

func (p *Path) stageSet(stage state.Stage) *stageSet {
	switch stage {
	case state.StageListen:
		return p.listen
	case state.StageUnderstand:
		return p.understand
	case state.StageServe:
		return p.serve
	case state.StageAct:
		return p.act
	default:
		return nil
	}
}

// Add inserts b into stage, returning its id. Duplicate-id
// registration replaces the prior branch, per §4.2.
func (p *Path) Add(b branch.Branch, stage state.Stage) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := p.stageSet(stage)
	if s == nil {
		return ""
	}
	s.add(b)
	return b.ID()
}

// Get returns the branches registered for stage in registration order.
func (p *Path) Get(stage state.Stage) []branch.Branch {
	p.mu.RLock()
	defer p.mu.RUnlock()
	s := p.stageSet(stage)
	if s == nil {
		return nil
	}
	return s.ordered()
}

// Count returns how many branches are registered for stage.
func (p *Path) Count(stage state.Stage) int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	s := p.stageSet(stage)
	if s == nil {
		return 0
	}
	return len(s.order)
}

// Reset empties the listen/understand/act sets; serve is preserved,
// per §4.3 ("serve preserved" — server events are not part of the
// conversational scene machinery Reset clears).
func (p *Path) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listen = newStageSet()
	p.understand = newStageSet()
	p.act = newStageSet()
}

// Remove deletes the branch with id from stage, used by the
// orchestrator to drop a Once-flagged branch after its first match.
func (p *Path) Remove(stage state.Stage, id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := p.stageSet(stage)
	if s == nil {
		return
	}
	s.remove(id)
}

// Forced removes every branch without Force() from stage, returning
// the remaining count. Used by the orchestrator when a scoped scene
// narrows attention to forced branches only.
func (p *Path) Forced(stage state.Stage) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := p.stageSet(stage)
	if s == nil {
		return 0
	}
	return s.keepForcedOnly()
}
