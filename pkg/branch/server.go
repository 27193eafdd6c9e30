package branch

import (
	"context"
	"reflect"

	"github.com/weavebot/weavebot/pkg/message"
	"github.com/weavebot/weavebot/pkg/state"
)

// ServerBranch matches a structured criteria bag against a
// ServerMessage's payload by deep key equality.
type ServerBranch struct {
	base
	criteria map[string]interface{}
}

// NewServer builds a ServerBranch.
func NewServer(criteria map[string]interface{}, cb Callback, opts ...Option) *ServerBranch {
	b := newBase("", false, false, cb, "", nil)
	applyOptions(&b, opts)
	return &ServerBranch{base: b, criteria: criteria}
}

func (s *ServerBranch) Matches(ctx context.Context, msg message.Message, st *state.State) MatchOutcome {
	if msg.Kind != message.KindServer {
		return MatchOutcome{}
	}
	if !payloadMatches(msg.Payload, s.criteria) {
		return MatchOutcome{}
	}
	outcome := MatchOutcome{Matched: true, Match: s.criteria}
	record(st, s.id, st.Stage, outcome)
	return outcome
}

func (s *ServerBranch) Execute(ctx context.Context, st *state.State) error {
	return s.base.Execute(ctx, st)
}

// payloadMatches reports whether every key/value in criteria is
// present and deep-equal in payload. Nested maps recurse; criteria may
// be a subset of payload's keys.
func payloadMatches(payload, criteria map[string]interface{}) bool {
	for k, want := range criteria {
		got, ok := payload[k]
		if !ok {
			return false
		}
		wantMap, wantIsMap := want.(map[string]interface{})
		gotMap, gotIsMap := got.(map[string]interface{})
		if wantIsMap && gotIsMap {
			if !payloadMatches(gotMap, wantMap) {
				return false
			}
			continue
		}
		if !reflect.DeepEqual(got, want) {
			return false
		}
	}
	return true
}
