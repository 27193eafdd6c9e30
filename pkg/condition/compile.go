package condition

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode"
)

// fragment is one piece of a concatenated regex, tracking where (if
// anywhere) its own real capturing group starts so the compiler can
// demote every capturing group but the last to non-capturing, per the
// "duplicate capture groups at the join point are deduplicated" and
// "all but the last capture group are rewritten to non-capturing" rules
// in §4.1.
type fragment struct {
	text       string
	captureIdx int // index of the capturing "(" within text, or -1
}

// compileCondition builds one compiledEntry from a Condition's active
// keys: Excludes alone and Is (optionally with Excludes) are handled
// first; otherwise the keys are concatenated in the fixed order Starts,
// Before, Contains, After, Ends, Range, with Excludes kept as a separate
// regex.
func compileCondition(c Condition, o Options) (*compiledEntry, error) {
	if onlyExcludes(c) {
		excludeRe, err := buildAltRegex(c.Excludes, o)
		if err != nil {
			return nil, err
		}
		return &compiledEntry{excludeOnly: true, excludeRe: excludeRe}, nil
	}

	if onlyIs(c) {
		inner := altGroup(c.Is, o)
		re, err := finalize("^"+inner+"$", o)
		if err != nil {
			return nil, err
		}
		entry := &compiledEntry{re: re}
		if len(c.Excludes) > 0 {
			exRe, err := buildAltRegex(c.Excludes, o)
			if err != nil {
				return nil, err
			}
			entry.excludeRe = exRe
		}
		return entry, nil
	}

	var frags []fragment
	lastCapture := -1
	var anchored []string

	add := func(f fragment) {
		if f.captureIdx >= 0 && lastCapture >= 0 {
			prev := frags[lastCapture]
			prev.text = prev.text[:prev.captureIdx+1] + "?:" + prev.text[prev.captureIdx+1:]
			frags[lastCapture] = prev
		}
		frags = append(frags, f)
		if f.captureIdx >= 0 {
			lastCapture = len(frags) - 1
		}
	}

	if len(c.Starts) > 0 {
		text := "^" + altGroup(c.Starts, o)
		if o.MatchWord {
			text += `\b`
		}
		add(fragment{text: text, captureIdx: -1})
		anchored = append(anchored, lowerAll(c.Starts)...)
	}

	if len(c.Before) > 0 {
		prefix := ""
		if len(frags) == 0 {
			prefix = "^"
		}
		capText := prefix + "(.*?)"
		captureAt := len(prefix)
		add(fragment{text: capText, captureIdx: captureAt})

		boundary := ""
		if o.MatchWord {
			boundary = `\b`
		}
		add(fragment{text: boundary + altGroup(c.Before, o), captureIdx: -1})
		anchored = append(anchored, lowerAll(c.Before)...)
	}

	if len(c.Contains) > 0 {
		boundary := ""
		if o.MatchWord {
			boundary = `\b`
		}
		text := "(" + boundary + altGroup(c.Contains, o) + boundary + ")"
		add(fragment{text: text, captureIdx: 0})
	}

	if len(c.After) > 0 {
		var prefix string
		if !allAnchored(c.After, anchored) {
			boundary := ""
			if o.MatchWord {
				boundary = `\b`
			}
			prefix = altGroup(c.After, o) + boundary
		}
		text := prefix + `\s*(.*)`
		add(fragment{text: text, captureIdx: len(prefix) + len(`\s*`)})
	}

	if len(c.Ends) > 0 {
		boundary := ""
		if o.MatchWord {
			boundary = `\b`
		}
		text := boundary + altGroup(c.Ends, o) + "$"
		add(fragment{text: text, captureIdx: -1})
	}

	if len(c.Range) > 0 {
		inner, err := rangeAlternation(c.Range)
		if err != nil {
			return nil, err
		}
		text := `\b(` + inner + `)\b`
		add(fragment{text: text, captureIdx: strings.Index(text, "(")})
	}

	if len(frags) == 0 {
		return nil, fmt.Errorf("%w: condition has no recognized keys", ErrInvalidExpression)
	}

	var b strings.Builder
	for _, f := range frags {
		b.WriteString(f.text)
	}

	re, err := finalize(b.String(), o)
	if err != nil {
		return nil, err
	}

	entry := &compiledEntry{re: re}
	if len(c.Excludes) > 0 {
		exRe, err := buildAltRegex(c.Excludes, o)
		if err != nil {
			return nil, err
		}
		entry.excludeRe = exRe
	}
	return entry, nil
}

func onlyExcludes(c Condition) bool {
	return len(c.Excludes) > 0 && len(c.Is) == 0 && len(c.Starts) == 0 && len(c.Ends) == 0 &&
		len(c.Contains) == 0 && len(c.Before) == 0 && len(c.After) == 0 && len(c.Range) == 0
}

func onlyIs(c Condition) bool {
	return len(c.Is) > 0 && len(c.Starts) == 0 && len(c.Ends) == 0 && len(c.Contains) == 0 &&
		len(c.Before) == 0 && len(c.After) == 0 && len(c.Range) == 0
}

func allAnchored(values, anchored []string) bool {
	low := lowerAll(anchored)
	for _, v := range values {
		found := false
		lv := strings.ToLower(v)
		for _, a := range low {
			if a == lv {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func lowerAll(values []string) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = strings.ToLower(v)
	}
	return out
}

func finalize(pattern string, o Options) (*regexp.Regexp, error) {
	if o.IgnoreCase {
		pattern = "(?i)" + pattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidExpression, err)
	}
	return re, nil
}

func buildAltRegex(values []string, o Options) (*regexp.Regexp, error) {
	boundary := ""
	if o.MatchWord {
		boundary = `\b`
	}
	pattern := boundary + altGroup(values, o) + boundary
	return finalize(pattern, o)
}

// valuePattern escapes value for literal use in a regex; when
// IgnorePunctuation is set, punctuation runes become optional so e.g.
// "don't" also matches "dont".
func valuePattern(value string, o Options) string {
	var b strings.Builder
	for _, r := range value {
		esc := regexp.QuoteMeta(string(r))
		if o.IgnorePunctuation && unicode.IsPunct(r) {
			b.WriteString(esc)
			b.WriteString("?")
		} else {
			b.WriteString(esc)
		}
	}
	return b.String()
}

func altGroup(values []string, o Options) string {
	return "(?:" + altInner(values, o) + ")"
}

func altInner(values []string, o Options) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = valuePattern(v, o)
	}
	return strings.Join(parts, "|")
}

// rangeAlternation builds a non-capturing alternation matching every
// integer covered by values (each "lo-hi", 0-999), longest string first
// so e.g. "123" is tried before "12" and isn't shadowed by it.
func rangeAlternation(values []string) (string, error) {
	seen := map[int]bool{}
	var nums []int
	for _, v := range values {
		lo, hi, err := parseRange(v)
		if err != nil {
			return "", err
		}
		for n := lo; n <= hi; n++ {
			if !seen[n] {
				seen[n] = true
				nums = append(nums, n)
			}
		}
	}
	if len(nums) == 0 {
		return "", fmt.Errorf("%w: empty numeric range", ErrInvalidExpression)
	}
	strs := make([]string, len(nums))
	for i, n := range nums {
		strs[i] = strconv.Itoa(n)
	}
	sort.Slice(strs, func(i, j int) bool {
		if len(strs[i]) != len(strs[j]) {
			return len(strs[i]) > len(strs[j])
		}
		return strs[i] > strs[j]
	})
	return strings.Join(strs, "|"), nil
}

func parseRange(v string) (int, int, error) {
	parts := strings.SplitN(v, "-", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("%w: malformed range %q", ErrInvalidExpression, v)
	}
	lo, err1 := strconv.Atoi(strings.TrimSpace(parts[0]))
	hi, err2 := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err1 != nil || err2 != nil {
		return 0, 0, fmt.Errorf("%w: malformed range %q", ErrInvalidExpression, v)
	}
	if lo < 0 || hi > 999 || lo > hi {
		return 0, 0, fmt.Errorf("%w: range %q out of bounds 0-999", ErrInvalidExpression, v)
	}
	return lo, hi, nil
}
