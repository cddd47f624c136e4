// Package redact masks sensitive values before they are displayed.
//
// A Rule pairs a key-name pattern with a scope and a replacement. Patterns
// wrapped in slashes are regular expressions ("/pass(word)?/i"); anything
// else is an exact, case-insensitive key name.
package redact

import (
	"reflect"
	"regexp"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/oakwood-commons/dumpx/pkg/ordered"
)

// Scope limits where a rule applies.
type Scope string

const (
	ScopeAll       Scope = "all"
	ScopePayload   Scope = "payload"
	ScopeContext   Scope = "context"
	ScopeException Scope = "exception"
)

// DefaultReplacement is used when a rule has no replacement text.
const DefaultReplacement = "[redacted]"

// ParseScope validates a scope name. Empty means ScopeAll.
func ParseScope(s string) (Scope, error) {
	switch Scope(strings.ToLower(strings.TrimSpace(s))) {
	case "", ScopeAll:
		return ScopeAll, nil
	case ScopePayload:
		return ScopePayload, nil
	case ScopeContext:
		return ScopeContext, nil
	case ScopeException:
		return ScopeException, nil
	default:
		return "", errors.Newf("invalid redaction scope %q: valid values are all, payload, context, exception", s)
	}
}

// Spec is the declarative form of a rule, as found in config files and
// option maps.
type Spec struct {
	Pattern     string `yaml:"pattern" json:"pattern"`
	Replacement string `yaml:"replacement" json:"replacement"`
	Scope       string `yaml:"scope" json:"scope"`
}

// Rule is a compiled redaction rule. Rules are immutable.
type Rule struct {
	pattern     string
	keyword     string
	re          *regexp.Regexp
	exact       string
	replacement string
	scope       Scope
}

// NewRule compiles a rule. Malformed patterns fail here, never mid-render.
func NewRule(pattern, replacement string, scope Scope) (*Rule, error) {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" {
		return nil, errors.New("redaction pattern is empty")
	}
	if _, err := ParseScope(string(scope)); err != nil {
		return nil, err
	}
	if scope == "" {
		scope = ScopeAll
	}
	if replacement == "" {
		replacement = DefaultReplacement
	}
	r := &Rule{pattern: pattern, replacement: replacement, scope: scope}

	if body, flags, ok := splitDelimited(pattern); ok {
		expr := body
		if strings.Contains(flags, "i") {
			expr = "(?i)" + expr
		}
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid redaction pattern %q", pattern)
		}
		r.re = re
		r.keyword = body
		return r, nil
	}
	r.exact = strings.ToLower(pattern)
	r.keyword = regexp.QuoteMeta(pattern)
	return r, nil
}

// Compile builds rules from specs, failing on the first invalid one.
func Compile(specs []Spec) ([]*Rule, error) {
	rules := make([]*Rule, 0, len(specs))
	for i, s := range specs {
		scope, err := ParseScope(s.Scope)
		if err != nil {
			return nil, errors.Wrapf(err, "redaction rule %d", i)
		}
		r, err := NewRule(s.Pattern, s.Replacement, scope)
		if err != nil {
			return nil, errors.Wrapf(err, "redaction rule %d", i)
		}
		rules = append(rules, r)
	}
	return rules, nil
}

// splitDelimited recognizes "/body/flags".
func splitDelimited(p string) (body, flags string, ok bool) {
	if len(p) < 2 || p[0] != '/' {
		return "", "", false
	}
	end := strings.LastIndexByte(p, '/')
	if end <= 0 {
		return "", "", false
	}
	flags = p[end+1:]
	for _, f := range flags {
		if f != 'i' && f != 'm' && f != 's' && f != 'u' && f != 'x' {
			return "", "", false
		}
	}
	return p[1:end], flags, true
}

// Pattern returns the rule's source pattern.
func (r *Rule) Pattern() string { return r.pattern }

// Replacement returns the text substituted for matching values.
func (r *Rule) Replacement() string { return r.replacement }

// Scope returns the rule's scope.
func (r *Rule) Scope() Scope { return r.scope }

// Keyword returns the pattern without regex delimiters, as a regular
// expression fragment.
func (r *Rule) Keyword() string { return r.keyword }

// Matches reports whether key is covered by the rule in scope.
func (r *Rule) Matches(key string, scope Scope) bool {
	if r == nil {
		return false
	}
	if r.scope != ScopeAll && scope != ScopeAll && r.scope != scope {
		return false
	}
	if r.re != nil {
		return r.re.MatchString(key)
	}
	return strings.ToLower(key) == r.exact
}

// ApplyToMap returns a copy of m with matching keys replaced, recursing into
// nested maps and lists. Applying a rule twice yields the same result.
func (r *Rule) ApplyToMap(m map[string]any, scope Scope) map[string]any {
	return ApplyToMap([]*Rule{r}, m, scope)
}

// Match returns the first rule matching key in scope.
func Match(rules []*Rule, key string, scope Scope) (*Rule, bool) {
	for _, r := range rules {
		if r.Matches(key, scope) {
			return r, true
		}
	}
	return nil, false
}

// ApplyToMap applies every rule to m. The input is not modified.
func ApplyToMap(rules []*Rule, m map[string]any, scope Scope) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		if r, ok := Match(rules, k, scope); ok {
			out[k] = r.replacement
			continue
		}
		out[k] = applyValue(rules, v, scope)
	}
	return out
}

// ApplyToOrdered is ApplyToMap for ordered maps.
func ApplyToOrdered(rules []*Rule, m *ordered.Map, scope Scope) *ordered.Map {
	if m == nil {
		return nil
	}
	out := ordered.New(m.Len())
	m.Range(func(k string, v any) bool {
		if r, ok := Match(rules, k, scope); ok {
			out.Set(k, r.replacement)
		} else {
			out.Set(k, applyValue(rules, v, scope))
		}
		return true
	})
	return out
}

// Apply masks matching keys anywhere in v. Values other than maps and lists
// are returned unchanged.
func Apply(rules []*Rule, v any, scope Scope) any {
	if len(rules) == 0 {
		return v
	}
	return applyValue(rules, v, scope)
}

func applyValue(rules []*Rule, v any, scope Scope) any {
	switch t := v.(type) {
	case map[string]any:
		return ApplyToMap(rules, t, scope)
	case *ordered.Map:
		return ApplyToOrdered(rules, t, scope)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = applyValue(rules, e, scope)
		}
		return out
	case map[string]string:
		out := make(map[string]any, len(t))
		for k, s := range t {
			if r, ok := Match(rules, k, scope); ok {
				out[k] = r.replacement
			} else {
				out[k] = s
			}
		}
		return out
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Map && rv.Type().Key().Kind() == reflect.String {
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			k := iter.Key().String()
			if r, ok := Match(rules, k, scope); ok {
				out[k] = r.replacement
				continue
			}
			if iter.Value().CanInterface() {
				out[k] = applyValue(rules, iter.Value().Interface(), scope)
			}
		}
		return out
	}
	return v
}

// Message masks key=value fragments whose key matches a rule's keyword.
// Free text mentioning the keyword is left alone.
func Message(rules []*Rule, msg string) string {
	for _, r := range rules {
		if r.scope != ScopeAll && r.scope != ScopeException {
			continue
		}
		re, err := regexp.Compile(`(?i)\b(` + r.keyword + `)=("[^"]*"|'[^']*'|[^\s&,;]+)`)
		if err != nil {
			continue
		}
		msg = re.ReplaceAllString(msg, "${1}=***")
	}
	return msg
}
