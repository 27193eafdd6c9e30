package branch

import (
	"context"
	"regexp"
	"strings"

	"github.com/weavebot/weavebot/pkg/condition"
	"github.com/weavebot/weavebot/pkg/message"
	"github.com/weavebot/weavebot/pkg/state"
)

// TextBranch matches a Conditions compiler against the message's text
// content.
type TextBranch struct {
	base
	conditions *condition.Conditions
}

// NewText compiles input (a string literal, *regexp.Regexp, Condition,
// []Condition, or map[string]Condition) and builds a TextBranch.
func NewText(input interface{}, cb Callback, opts ...Option) (*TextBranch, error) {
	c, err := condition.Compile(input)
	if err != nil {
		return nil, err
	}
	b := newBase("", false, false, cb, "", nil)
	applyOptions(&b, opts)
	return &TextBranch{base: b, conditions: c}, nil
}

func (t *TextBranch) Matches(ctx context.Context, msg message.Message, st *state.State) MatchOutcome {
	text := msg.TextContent()
	res := t.conditions.Exec(text)
	outcome := resultToOutcome(res)
	if outcome.Matched {
		record(st, t.id, st.Stage, outcome)
	}
	return outcome
}

func (t *TextBranch) Execute(ctx context.Context, st *state.State) error {
	return t.base.Execute(ctx, st)
}

// TextDirectBranch behaves like TextBranch but first requires the
// message text to begin with the bot's name or alias (case
// insensitive), which is stripped before the remaining conditions run.
type TextDirectBranch struct {
	base
	conditions *condition.Conditions
}

// NewTextDirect builds a TextDirectBranch. botName/botAlias are
// resolved per-message from state.Bot so one branch definition works
// across renamed bot instances in tests.
func NewTextDirect(input interface{}, cb Callback, opts ...Option) (*TextDirectBranch, error) {
	c, err := condition.Compile(input)
	if err != nil {
		return nil, err
	}
	b := newBase("", false, false, cb, "", nil)
	applyOptions(&b, opts)
	return &TextDirectBranch{base: b, conditions: c}, nil
}

func (t *TextDirectBranch) Matches(ctx context.Context, msg message.Message, st *state.State) MatchOutcome {
	text := msg.TextContent()
	stripped, ok := stripNamePrefix(text, st.Bot.Name(), st.Bot.Alias())
	if !ok {
		return MatchOutcome{}
	}
	res := t.conditions.Exec(stripped)
	outcome := resultToOutcome(res)
	if outcome.Matched {
		record(st, t.id, st.Stage, outcome)
	}
	return outcome
}

func (t *TextDirectBranch) Execute(ctx context.Context, st *state.State) error {
	return t.base.Execute(ctx, st)
}

// stripNamePrefix reports whether text begins with name or alias
// (word-boundary, case-insensitive) and returns the remainder with
// leading punctuation/whitespace trimmed.
func stripNamePrefix(text, name, alias string) (string, bool) {
	for _, candidate := range []string{name, alias} {
		if candidate == "" {
			continue
		}
		re := regexp.MustCompile(`(?i)^` + regexp.QuoteMeta(candidate) + `\b`)
		if loc := re.FindStringIndex(text); loc != nil {
			rest := text[loc[1]:]
			return strings.TrimLeft(rest, ", :\t"), true
		}
	}
	return "", false
}

func resultToOutcome(res condition.Result) MatchOutcome {
	captured, _ := res.Captured.(string)
	return MatchOutcome{Matched: res.Success, Match: res.Match, Captured: captured}
}
