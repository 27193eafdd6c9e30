// Package state holds the per-event envelope (C5) threaded through a
// single thought-process run. It is grounded on the teacher's
// pkg/session/manager.go Session (message history plus a mutex-guarded
// struct), generalized with a matched-branch ledger and an outgoing
// Envelope queue.
//
// State deliberately does not embed *botctx.Context: doing so would
// make this package depend on every package botctx bundles
// (path, bit, adapter, memory — several of which need to call back
// into State itself). Instead Bot is a small interface, satisfied
// implicitly by *botctx.Context, whose methods mention only stdlib
// types, State itself, and the logger, eventbus, memory and message
// packages, none of which import state. This is the "explicit dependency
// injection instead of module-level singletons" Design Note applied at
// the package-boundary level, not just the constructor level.
package state

import (
	"context"
	"time"

	"github.com/weavebot/weavebot/pkg/eventbus"
	"github.com/weavebot/weavebot/pkg/logger"
	"github.com/weavebot/weavebot/pkg/memory"
	"github.com/weavebot/weavebot/pkg/message"
)

// Bot is the subset of the bot process's shared context a Branch
// callback or middleware piece is allowed to reach through State.
type Bot interface {
	Logger() *logger.Logger
	EventBus() *eventbus.Bus
	Memory() *memory.Memory
	Name() string
	Alias() string

	// Dispatch hands env to the configured message adapter.
	Dispatch(ctx context.Context, env *message.Envelope) error

	// RunBit executes the named Bit's send/callback against st. A
	// missing id is logged and returns nil, never an error, per §4.9.
	RunBit(ctx context.Context, id string, st *State) error
}

// Stage names the thought-process stage a State is currently in.
type Stage string

const (
	StageHear       Stage = "hear"
	StageListen     Stage = "listen"
	StageUnderstand Stage = "understand"
	StageServe      Stage = "serve"
	StageAct        Stage = "act"
	StageRespond    Stage = "respond"
	StageRemember   Stage = "remember"
)

// Matched is one record of a Branch having matched during this State's
// lifetime: branch id, the raw match value, the captured string, the
// callback's returned error (if any), and when it happened.
type Matched struct {
	BranchID  string
	Stage     Stage
	Match     interface{}
	Captured  string
	CallErr   error
	Timestamp time.Time
}

// NLUResult caches the understand stage's NLU adapter output on State
// so branches in the same stage don't re-invoke it.
type NLUResult struct {
	Intents    []Intent
	Entities   map[string]interface{}
	Sentiment  string
	Language   string
	Confidence float64
}

// Intent is one NLU-recognized intent with its confidence score.
type Intent struct {
	Name  string
	Score float64
}

// State is the mutable envelope threaded through one thought-process
// run. It is confined to the orchestrator invocation that created it;
// concurrent orchestrations never share a State.
type State struct {
	Message message.Message
	Bot     Bot
	Stage   Stage

	matched   []Matched
	envelopes []*message.Envelope
	done      bool
	scratch   map[string]interface{}

	NLU *NLUResult
}

// New creates a State for msg, owned by bot.
func New(msg message.Message, bot Bot) *State {
	return &State{
		Message: msg,
		Bot:     bot,
		Stage:   StageHear,
		scratch: map[string]interface{}{},
	}
}

// Matched returns the read-only sequence of records recorded so far.
func (s *State) Matched() []Matched {
	out := make([]Matched, len(s.matched))
	copy(out, s.matched)
	return out
}

// RecordMatch appends a match record, the side effect §4.2 requires
// whenever a Branch matches.
func (s *State) RecordMatch(m Matched) {
	m.Timestamp = time.Now()
	s.matched = append(s.matched, m)
}

// HasMatch reports whether any branch has matched yet in this State's
// lifetime (used by CatchAllBranch and the act-stage trigger).
func (s *State) HasMatch() bool {
	return len(s.matched) > 0
}

// Done reports whether a middleware piece has set the exit flag.
func (s *State) Done() bool { return s.done }

// SetDone sets the exit flag; the orchestrator checks it between
// stages and stops driving the state machine further.
func (s *State) SetDone() { s.done = true }

// Scratch returns the arbitrary per-event key/value bag.
func (s *State) Scratch() map[string]interface{} {
	if s.scratch == nil {
		s.scratch = map[string]interface{}{}
	}
	return s.scratch
}

// Write queues an Envelope addressed at the message's own user/room
// without dispatching it yet.
func (s *State) Write(text ...string) *message.Envelope {
	env := message.NewEnvelope(s.Message.User, s.Message.Room)
	env.Write(text...)
	s.envelopes = append(s.envelopes, env)
	return env
}

// Respond is an alias for Write that also tags the envelope as a
// reply, matching the common "respond to whoever sent this" case.
func (s *State) Respond(text ...string) *message.Envelope {
	env := s.Write(text...)
	_ = env.SetMethod(message.MethodReply)
	return env
}

// Envelopes returns the queued, not-yet-dispatched envelopes.
func (s *State) Envelopes() []*message.Envelope {
	return s.envelopes
}

// DispatchEnvelopes flushes every queued envelope through the bot's
// message adapter, in queue order, stopping at the first error.
func (s *State) DispatchEnvelopes(ctx context.Context) error {
	for _, env := range s.envelopes {
		if err := s.Bot.Dispatch(ctx, env); err != nil {
			return err
		}
	}
	s.envelopes = nil
	return nil
}
