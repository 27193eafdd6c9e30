package branch

import (
	"context"
	"regexp"
	"strings"

	"github.com/weavebot/weavebot/pkg/message"
	"github.com/weavebot/weavebot/pkg/state"
)

// Operator names one of the NLU criteria's comparison modes.
type Operator string

const (
	OpIs       Operator = "is"
	OpMatches  Operator = "matches"
	OpContains Operator = "contains"
)

// Criteria selects which intent/entity/sentiment/language a
// NaturalLanguageBranch requires, and how strictly.
type Criteria struct {
	Intent    string
	Operator  Operator // applies to Intent; default OpIs
	Threshold float64  // minimum intent score, default 0
	Entity    string   // entity key that must be present, if set
	Sentiment string   // exact sentiment match, if set
	Language  string   // exact language match, if set
}

// NaturalLanguageBranch matches against the cached NLUResult on State
// rather than the raw message text.
type NaturalLanguageBranch struct {
	base
	criteria Criteria
}

// NewNaturalLanguage builds a NaturalLanguageBranch.
func NewNaturalLanguage(c Criteria, cb Callback, opts ...Option) *NaturalLanguageBranch {
	b := newBase("", false, false, cb, "", nil)
	applyOptions(&b, opts)
	return &NaturalLanguageBranch{base: b, criteria: c}
}

func (n *NaturalLanguageBranch) Matches(ctx context.Context, msg message.Message, st *state.State) MatchOutcome {
	outcome := n.evaluate(st)
	if outcome.Matched {
		record(st, n.id, st.Stage, outcome)
	}
	return outcome
}

func (n *NaturalLanguageBranch) Execute(ctx context.Context, st *state.State) error {
	return n.base.Execute(ctx, st)
}

func (n *NaturalLanguageBranch) evaluate(st *state.State) MatchOutcome {
	if st.NLU == nil {
		return MatchOutcome{}
	}
	c := n.criteria

	if c.Sentiment != "" && !strings.EqualFold(st.NLU.Sentiment, c.Sentiment) {
		return MatchOutcome{}
	}
	if c.Language != "" && !strings.EqualFold(st.NLU.Language, c.Language) {
		return MatchOutcome{}
	}
	if c.Entity != "" {
		if _, ok := st.NLU.Entities[c.Entity]; !ok {
			return MatchOutcome{}
		}
	}
	if c.Intent == "" {
		return MatchOutcome{Matched: true, Match: true, Captured: ""}
	}

	op := c.Operator
	if op == "" {
		op = OpIs
	}
	for _, intent := range st.NLU.Intents {
		if intent.Score < c.Threshold {
			continue
		}
		if operatorMatches(op, intent.Name, c.Intent) {
			return MatchOutcome{Matched: true, Match: intent, Captured: intent.Name}
		}
	}
	return MatchOutcome{}
}

func operatorMatches(op Operator, actual, want string) bool {
	switch op {
	case OpIs:
		return strings.EqualFold(actual, want)
	case OpContains:
		return strings.Contains(strings.ToLower(actual), strings.ToLower(want))
	case OpMatches:
		re, err := regexp.Compile("(?i)" + want)
		if err != nil {
			return false
		}
		return re.MatchString(actual)
	default:
		return false
	}
}

// NaturalLanguageDirectBranch behaves like NaturalLanguageBranch but
// additionally requires the original message text to begin with the
// bot's name or alias.
type NaturalLanguageDirectBranch struct {
	base
	criteria Criteria
}

// NewNaturalLanguageDirect builds a NaturalLanguageDirectBranch.
func NewNaturalLanguageDirect(c Criteria, cb Callback, opts ...Option) *NaturalLanguageDirectBranch {
	b := newBase("", false, false, cb, "", nil)
	applyOptions(&b, opts)
	return &NaturalLanguageDirectBranch{base: b, criteria: c}
}

func (n *NaturalLanguageDirectBranch) Matches(ctx context.Context, msg message.Message, st *state.State) MatchOutcome {
	if _, ok := stripNamePrefix(msg.TextContent(), st.Bot.Name(), st.Bot.Alias()); !ok {
		return MatchOutcome{}
	}
	inner := NaturalLanguageBranch{base: n.base, criteria: n.criteria}
	outcome := inner.evaluate(st)
	if outcome.Matched {
		record(st, n.id, st.Stage, outcome)
	}
	return outcome
}

func (n *NaturalLanguageDirectBranch) Execute(ctx context.Context, st *state.State) error {
	return n.base.Execute(ctx, st)
}
