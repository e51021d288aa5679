// Package template compiles wildcard templates into matchers over canonical
// IR text.
//
// A template is canonical text with two reserved tokens:
//
//	..  matches one token, value discarded
//	??  matches one token, value captured and parsed as a base-10 integer
//
// Every other character, parentheses included, is literal. Matching is an
// unanchored leftmost search, so a single-line template can match anywhere in
// a multi-line function body.
package template

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Reserved wildcard tokens.
const (
	Wildcard        = ".."
	CaptureWildcard = "??"
)

// A token runs up to the next structural delimiter, so signed constants
// such as CONST(-8) are one token.
const (
	tokenFragment = `[^(),\s]+`
	wildcardRegex = `(?:` + tokenFragment + `)`
	captureRegex  = `(` + tokenFragment + `)`
)

// Matcher is a compiled template. It is safe to reuse across functions.
type Matcher struct {
	pattern  string
	re       *regexp.Regexp
	captures int
}

// Result is a successful match.
type Result struct {
	// Pattern is the template that matched.
	Pattern string
	// Value is the first captured token, valid when HasCapture is set.
	Value uint64
	// HasCapture is false for templates without a capturing wildcard.
	HasCapture bool
}

// Compile turns a template into a Matcher.
func Compile(pattern string) (*Matcher, error) {
	if pattern == "" {
		return nil, &CompileError{Pattern: pattern, Reason: "empty template"}
	}
	if err := checkBalanced(pattern); err != nil {
		return nil, err
	}

	var b strings.Builder
	captures := 0
	for i := 0; i < len(pattern); {
		switch {
		case strings.HasPrefix(pattern[i:], Wildcard):
			b.WriteString(wildcardRegex)
			i += len(Wildcard)
		case strings.HasPrefix(pattern[i:], CaptureWildcard):
			b.WriteString(captureRegex)
			captures++
			i += len(CaptureWildcard)
		default:
			_, size := utf8.DecodeRuneInString(pattern[i:])
			b.WriteString(regexp.QuoteMeta(pattern[i : i+size]))
			i += size
		}
	}

	re, err := regexp.Compile(b.String())
	if err != nil {
		return nil, &CompileError{Pattern: pattern, Reason: "invalid expression", Err: err}
	}

	return &Matcher{pattern: pattern, re: re, captures: captures}, nil
}

// MustCompile is like Compile but panics on error.
func MustCompile(pattern string) *Matcher {
	m, err := Compile(pattern)
	if err != nil {
		panic(err)
	}
	return m
}

// Pattern returns the source template.
func (m *Matcher) Pattern() string {
	return m.pattern
}

// Captures returns the number of capturing wildcards in the template.
func (m *Matcher) Captures() int {
	return m.captures
}

// Find searches text for the template. ok is false when nothing matched;
// that is an expected outcome, not an error. An error is returned only when
// the captured token is not an integer.
func (m *Matcher) Find(text string) (res Result, ok bool, err error) {
	sub := m.re.FindStringSubmatch(text)
	if sub == nil {
		return Result{}, false, nil
	}

	res = Result{Pattern: m.pattern}
	if m.captures == 0 {
		return res, true, nil
	}

	value, err := strconv.ParseUint(sub[1], 10, 64)
	if err != nil {
		return Result{}, false, &CaptureParseError{Pattern: m.pattern, Token: sub[1], Err: err}
	}
	res.Value = value
	res.HasCapture = true
	return res, true, nil
}

// checkBalanced rejects templates whose literal parentheses do not nest.
func checkBalanced(pattern string) error {
	depth := 0
	for i := 0; i < len(pattern); i++ {
		switch pattern[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth < 0 {
				return &CompileError{Pattern: pattern, Reason: "unbalanced ')' at offset " + strconv.Itoa(i)}
			}
		}
	}
	if depth != 0 {
		return &CompileError{Pattern: pattern, Reason: strconv.Itoa(depth) + " unclosed '('"}
	}
	return nil
}
