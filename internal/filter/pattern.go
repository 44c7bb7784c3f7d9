// Package filter implements the continuous fuzzy filter over a directory tree:
// pattern compilation, bounded parallel matching, the incrementally updated
// filtered view, the coalescing pattern broker and the orchestrator that ties
// them together.
package filter

import (
	"regexp"
	"strings"
	"unicode"
)

const caseInsensitiveFlag = "(?i)"

// Pattern is a compiled fuzzy (subsequence) matcher. Patterns are immutable.
type Pattern struct {
	raw  string
	expr string
	re   *regexp.Regexp
}

// CompilePattern compiles raw into a subsequence matcher. The empty string
// compiles to a pattern matching everything. Every rune of raw is matched
// literally, so compilation cannot fail.
//
// Matching is case-insensitive unless raw contains an upper case letter.
func CompilePattern(raw string) *Pattern {
	if raw == "" {
		return &Pattern{}
	}

	var b strings.Builder
	if !hasUpper(raw) {
		b.WriteString(caseInsensitiveFlag)
	}
	for _, r := range raw {
		b.WriteString(".*")
		b.WriteString(regexp.QuoteMeta(string(r)))
	}
	b.WriteString(".*")

	expr := b.String()
	return &Pattern{
		raw:  raw,
		expr: expr,
		re:   regexp.MustCompile(expr),
	}
}

func hasUpper(s string) bool {
	for _, r := range s {
		if unicode.IsUpper(r) {
			return true
		}
	}
	return false
}

// Match reports whether s contains the pattern's characters in order.
func (p *Pattern) Match(s string) bool {
	if p.re == nil {
		return true
	}
	return p.re.MatchString(s)
}

// MatchesAll reports whether this is the match-all pattern.
func (p *Pattern) MatchesAll() bool {
	return p.re == nil
}

// Raw returns the string the pattern was compiled from.
func (p *Pattern) Raw() string {
	return p.raw
}

// CaseSensitive reports whether matching distinguishes letter case.
func (p *Pattern) CaseSensitive() bool {
	return p.re != nil && !strings.HasPrefix(p.expr, caseInsensitiveFlag)
}

// String returns the compiled textual form. The match-all pattern is "".
func (p *Pattern) String() string {
	return p.expr
}

// Refines reports whether p's compiled form extends prev's. When it does,
// every string matched by p is also matched by prev, so p can be applied to
// prev's matches instead of the whole tree.
//
// The compiled form is a sequence of ".*"-separated quoted runes behind an
// optional case flag, so a textual prefix is always a prefix of that sequence
// under the same case mode.
func (p *Pattern) Refines(prev *Pattern) bool {
	if prev == nil || prev.MatchesAll() {
		return false
	}
	return strings.HasPrefix(p.expr, prev.expr)
}
