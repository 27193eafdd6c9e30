// Package condition implements the declarative Condition/Expression
// compiler (C1): it turns `is/starts/ends/contains/excludes/after/before/
// range` criteria, or a list/named collection of them, into deterministic
// compiled regular expressions plus the aggregate match/capture reporting
// the thought process's branches consult.
//
// Condition is a fixed-field struct rather than a map, because Go has no
// notion of "declaration order" for map literals the way a JS object
// literal does; when several keys of one Condition are set, the compiler
// concatenates them into a single regex in the fixed order Starts,
// Before, Contains, After, Ends, Range. Is is compiled as a whole-string
// match only when none of those six is set, and Excludes is always a
// separate regex that must not match.
package condition

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// ErrInvalidExpression is returned when a string-form condition is not a
// well-formed "/pattern/flags" literal.
var ErrInvalidExpression = errors.New("condition: invalid expression")

// Condition is one key/value matcher. Any subset of fields may be set;
// when more than one is set, their patterns are concatenated in the fixed
// order described above into a single regex per §4.1 of SPEC_FULL.md.
type Condition struct {
	Is       []string
	Starts   []string
	Ends     []string
	Contains []string
	Excludes []string
	Before   []string
	After    []string
	Range    []string // "lo-hi", 0-999
}

// Options controls how a Conditions value compiles its regexes.
type Options struct {
	MatchWord         bool
	IgnoreCase        bool
	IgnorePunctuation bool
}

// DefaultOptions matches §4.1: word boundaries on, case-insensitive,
// punctuation significant.
func DefaultOptions() Options {
	return Options{MatchWord: true, IgnoreCase: true, IgnorePunctuation: false}
}

// Option mutates Options when compiling.
type Option func(*Options)

func WithMatchWord(v bool) Option         { return func(o *Options) { o.MatchWord = v } }
func WithIgnoreCase(v bool) Option        { return func(o *Options) { o.IgnoreCase = v } }
func WithIgnorePunctuation(v bool) Option { return func(o *Options) { o.IgnorePunctuation = v } }

// MatchResult is one compiled condition's outcome against a string.
type MatchResult struct {
	Raw      []string // regexp.FindStringSubmatch output, or nil when unmatched
	Captured string   // trimmed canonical capture ("" when there's nothing to capture)
}

// Matched reports whether this result represents a successful match.
func (m *MatchResult) Matched() bool { return m != nil }

// Result is the aggregate outcome of Conditions.Exec, per §4.1's
// success/match/matched/captured rules.
type Result struct {
	Success  bool
	Match    interface{} // *MatchResult if built from a single Condition; bool otherwise
	Matched  interface{} // map[string]*MatchResult if named/list; *MatchResult if single
	Captured interface{} // map[string]string if named/list; string if single
}

type compiledEntry struct {
	re          *regexp.Regexp // nil when this entry is exclude-only
	excludeRe   *regexp.Regexp // nil when there's nothing to exclude
	excludeOnly bool
}

// Conditions is a compiled, ready-to-execute matcher built from a string
// literal, a *regexp.Regexp, a single Condition, a list of Conditions, or
// a named collection of Conditions.
type Conditions struct {
	opts    Options
	single  bool
	order   []string
	entries map[string]*compiledEntry
}

// Compile builds a Conditions value from one of: a "/pattern/flags"
// string, a *regexp.Regexp, a Condition, a []Condition, or a
// map[string]Condition.
func Compile(input interface{}, opts ...Option) (*Conditions, error) {
	o := DefaultOptions()
	for _, fn := range opts {
		fn(&o)
	}

	c := &Conditions{opts: o, entries: map[string]*compiledEntry{}}

	switch v := input.(type) {
	case string:
		re, err := compileLiteral(v)
		if err != nil {
			return nil, err
		}
		c.single = true
		c.order = []string{""}
		c.entries[""] = &compiledEntry{re: re}

	case *regexp.Regexp:
		c.single = true
		c.order = []string{""}
		c.entries[""] = &compiledEntry{re: v}

	case Condition:
		entry, err := compileCondition(v, o)
		if err != nil {
			return nil, err
		}
		c.single = true
		c.order = []string{""}
		c.entries[""] = entry

	case []Condition:
		if len(v) == 1 {
			return Compile(v[0], opts...)
		}
		for i, cond := range v {
			name := strconv.Itoa(i)
			entry, err := compileCondition(cond, o)
			if err != nil {
				return nil, err
			}
			c.order = append(c.order, name)
			c.entries[name] = entry
		}

	case map[string]Condition:
		names := make([]string, 0, len(v))
		for name := range v {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			entry, err := compileCondition(v[name], o)
			if err != nil {
				return nil, err
			}
			c.order = append(c.order, name)
			c.entries[name] = entry
		}

	default:
		return nil, fmt.Errorf("%w: unsupported input type %T", ErrInvalidExpression, input)
	}

	return c, nil
}

// compileLiteral parses a "/pattern/flags" string into a *regexp.Regexp.
func compileLiteral(lit string) (*regexp.Regexp, error) {
	if len(lit) < 2 || lit[0] != '/' {
		return nil, fmt.Errorf("%w: %q", ErrInvalidExpression, lit)
	}
	last := strings.LastIndex(lit, "/")
	if last <= 0 {
		return nil, fmt.Errorf("%w: %q", ErrInvalidExpression, lit)
	}
	pattern := lit[1:last]
	flags := lit[last+1:]

	var prefix string
	if strings.Contains(flags, "i") {
		prefix = "(?i)"
	}
	re, err := regexp.Compile(prefix + pattern)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidExpression, err)
	}
	return re, nil
}

// Exec runs str against every compiled entry and aggregates the result
// per §4.1.
func (c *Conditions) Exec(str string) Result {
	results := make(map[string]*MatchResult, len(c.entries))
	success := true
	for name, entry := range c.entries {
		mr := entry.exec(str)
		results[name] = mr
		if mr == nil {
			success = false
		}
	}

	if c.single {
		mr := results[""]
		return Result{
			Success:  success,
			Match:    mr,
			Matched:  mr,
			Captured: capturedOf(mr),
		}
	}

	matched := make(map[string]*MatchResult, len(results))
	captured := make(map[string]string, len(results))
	for _, name := range c.order {
		matched[name] = results[name]
		captured[name] = capturedOf(results[name])
	}
	return Result{Success: success, Match: success, Matched: matched, Captured: captured}
}

func capturedOf(mr *MatchResult) string {
	if mr == nil {
		return ""
	}
	return mr.Captured
}

func (e *compiledEntry) exec(str string) *MatchResult {
	if e.excludeOnly {
		if e.excludeRe != nil && e.excludeRe.MatchString(str) {
			return nil
		}
		return &MatchResult{Raw: []string{str}, Captured: trimCapture(str)}
	}

	if e.re == nil {
		return nil
	}
	raw := e.re.FindStringSubmatch(str)
	if raw == nil {
		return nil
	}
	if e.excludeRe != nil && e.excludeRe.MatchString(str) {
		return nil
	}
	return &MatchResult{Raw: raw, Captured: trimCapture(lastCapture(raw))}
}

func lastCapture(raw []string) string {
	for i := len(raw) - 1; i >= 1; i-- {
		if raw[i] != "" {
			return raw[i]
		}
	}
	if len(raw) > 0 {
		return raw[0]
	}
	return ""
}

// trimCapture strips the leading/trailing punctuation-and-whitespace the
// spec calls out: ",-: \t".
func trimCapture(s string) string {
	return strings.Trim(s, ",-: \t")
}
