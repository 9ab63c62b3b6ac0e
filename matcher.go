package framez

import (
	"strings"

	"github.com/ryanuber/go-glob"
)

// Matcher decides whether a conditional frame applies to a request.
// Implementations should be pure functions of the request.
type Matcher interface {
	Match(req Request) bool
}

// MatcherFunc adapts a function to the Matcher contract.
type MatcherFunc func(req Request) bool

// Match calls f(req).
func (f MatcherFunc) Match(req Request) bool {
	return f(req)
}

// PathMatcher matches the request path against a prefix on segment
// boundaries: "/admin" matches "/admin" and "/admin/users" but not
// "/administrator". A leading "!" inverts the result.
//
// PathMatcher is what plain strings become when used as conditions.
type PathMatcher struct {
	prefix string
	negate bool
}

// NewPathMatcher creates a PathMatcher from pattern.
func NewPathMatcher(pattern string) *PathMatcher {
	prefix, negate := splitNegation(pattern)
	return &PathMatcher{
		prefix: strings.TrimRight(prefix, "/"),
		negate: negate,
	}
}

// Match implements Matcher.
func (m *PathMatcher) Match(req Request) bool {
	path := req.Path()
	matched := m.prefix == "" || path == m.prefix || strings.HasPrefix(path, m.prefix+"/")
	return matched != m.negate
}

// PatternMatcher matches the request path against a glob where "*"
// matches any run of characters, including "/". A leading "!" inverts
// the result.
type PatternMatcher struct {
	pattern string
	negate  bool
}

// NewPatternMatcher creates a PatternMatcher from pattern.
func NewPatternMatcher(pattern string) *PatternMatcher {
	p, negate := splitNegation(pattern)
	return &PatternMatcher{pattern: p, negate: negate}
}

// Match implements Matcher.
func (m *PatternMatcher) Match(req Request) bool {
	return glob.Glob(m.pattern, req.Path()) != m.negate
}

// All matches when every matcher matches. An empty All matches everything.
func All(matchers ...Matcher) Matcher {
	return MatcherFunc(func(req Request) bool {
		for _, m := range matchers {
			if !m.Match(req) {
				return false
			}
		}
		return true
	})
}

// Any matches when at least one matcher matches.
func Any(matchers ...Matcher) Matcher {
	return MatcherFunc(func(req Request) bool {
		for _, m := range matchers {
			if m.Match(req) {
				return true
			}
		}
		return false
	})
}

// Not inverts a matcher.
func Not(m Matcher) Matcher {
	return MatcherFunc(func(req Request) bool {
		return !m.Match(req)
	})
}

func splitNegation(pattern string) (string, bool) {
	if strings.HasPrefix(pattern, "!") {
		return pattern[1:], true
	}
	return pattern, false
}
