package path

import (
	"github.com/weavebot/weavebot/pkg/branch"
	"github.com/weavebot/weavebot/pkg/state"
)

// Text compiles input and registers a TextBranch in listen.
func (p *Path) Text(input interface{}, cb branch.Callback, opts ...branch.Option) (string, error) {
	b, err := branch.NewText(input, cb, opts...)
	if err != nil {
		return "", err
	}
	return p.Add(b, state.StageListen), nil
}

// Direct compiles input and registers a TextDirectBranch in listen.
func (p *Path) Direct(input interface{}, cb branch.Callback, opts ...branch.Option) (string, error) {
	b, err := branch.NewTextDirect(input, cb, opts...)
	if err != nil {
		return "", err
	}
	return p.Add(b, state.StageListen), nil
}

// NaturalLanguage registers a NaturalLanguageBranch in understand.
func (p *Path) NaturalLanguage(c branch.Criteria, cb branch.Callback, opts ...branch.Option) string {
	b := branch.NewNaturalLanguage(c, cb, opts...)
	return p.Add(b, state.StageUnderstand)
}

// NaturalLanguageDirect registers a NaturalLanguageDirectBranch in understand.
func (p *Path) NaturalLanguageDirect(c branch.Criteria, cb branch.Callback, opts ...branch.Option) string {
	b := branch.NewNaturalLanguageDirect(c, cb, opts...)
	return p.Add(b, state.StageUnderstand)
}

// Server registers a ServerBranch in serve.
func (p *Path) Server(criteria map[string]interface{}, cb branch.Callback, opts ...branch.Option) string {
	b := branch.NewServer(criteria, cb, opts...)
	return p.Add(b, state.StageServe)
}

// Custom registers a CustomBranch in listen.
func (p *Path) Custom(predicate branch.Predicate, cb branch.Callback, opts ...branch.Option) string {
	b := branch.NewCustom(predicate, cb, opts...)
	return p.Add(b, state.StageListen)
}

// CatchAll registers a CatchAllBranch in act.
func (p *Path) CatchAll(cb branch.Callback, opts ...branch.Option) string {
	b := branch.NewCatchAll(cb, opts...)
	return p.Add(b, state.StageAct)
}
