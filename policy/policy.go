package policy

import (
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
)

// Method is the HTTP method a rule applies to.
type Method string

const (
	MethodAny    Method = "ANY"
	MethodGet    Method = "GET"
	MethodPost   Method = "POST"
	MethodPut    Method = "PUT"
	MethodDelete Method = "DELETE"
)

const subtreeSuffix = "/**"

// ParseMethod normalizes s. The empty string means ANY.
func ParseMethod(s string) (Method, error) {
	switch m := Method(strings.ToUpper(strings.TrimSpace(s))); m {
	case "":
		return MethodAny, nil
	case MethodAny, MethodGet, MethodPost, MethodPut, MethodDelete:
		return m, nil
	default:
		return "", fmt.Errorf("unsupported rule method %q", s)
	}
}

// Rule grants access to requests under Pattern.
//
// Pattern is either an exact path ("/api/employees") or a subtree
// ("/api/employees/**") that matches the prefix itself and everything below
// it. A Public rule needs no token. A non-public rule with no Roles admits
// any authenticated principal.
type Rule struct {
	Pattern  string   `yaml:"pattern" toml:"pattern" json:"pattern"`
	Method   Method   `yaml:"method" toml:"method" json:"method,omitempty"`
	Roles    []string `yaml:"roles" toml:"roles" json:"roles,omitempty"`
	Priority int      `yaml:"priority" toml:"priority" json:"priority,omitempty"`
	Public   bool     `yaml:"public" toml:"public" json:"public,omitempty"`
}

type compiledRule struct {
	rule    Rule
	literal string
	subtree bool
	index   int
}

func (c *compiledRule) matches(p string, m Method) bool {
	if c.rule.Method != MethodAny && c.rule.Method != m {
		return false
	}
	if !c.subtree {
		return p == c.literal
	}
	if c.literal == "" {
		return true
	}
	return p == c.literal || strings.HasPrefix(p, c.literal+"/")
}

// Requirement is the outcome of a policy lookup.
type Requirement struct {
	// Public requests need no principal.
	Public bool
	// Roles is empty when any authenticated principal is admitted. It is
	// shared with the table and must not be modified.
	Roles []string
	// Rule is the matched rule, nil when no rule matched.
	Rule *Rule
	// Index is the declaration position of Rule, or -1.
	Index int
}

// Allows reports whether a principal holding roles satisfies r. Only one
// of the required roles is needed.
func (r Requirement) Allows(roles []string) bool {
	if r.Public {
		return true
	}
	if len(r.Roles) == 0 {
		return len(roles) > 0
	}
	for _, want := range r.Roles {
		for _, have := range roles {
			if want == have {
				return true
			}
		}
	}
	return false
}

// Table is an immutable, ordered rule set. Lookups take no locks.
type Table struct {
	ordered []compiledRule
	rules   []Rule
}

// NewTable validates and compiles rules.
//
// Candidates are ordered by literal prefix length (longest first), then
// Priority (highest first), then declaration order (earliest first). The
// first candidate that matches the path and method wins.
func NewTable(rules []Rule) (*Table, error) {
	t := &Table{
		ordered: make([]compiledRule, 0, len(rules)),
		rules:   make([]Rule, 0, len(rules)),
	}

	for i, r := range rules {
		normalized, compiled, err := compile(r, i)
		if err != nil {
			return nil, fmt.Errorf("rule %d (%s): %w", i, r.Pattern, err)
		}
		t.rules = append(t.rules, normalized)
		t.ordered = append(t.ordered, compiled)
	}

	sort.SliceStable(t.ordered, func(a, b int) bool {
		ra, rb := t.ordered[a], t.ordered[b]
		if len(ra.literal) != len(rb.literal) {
			return len(ra.literal) > len(rb.literal)
		}
		if ra.rule.Priority != rb.rule.Priority {
			return ra.rule.Priority > rb.rule.Priority
		}
		return ra.index < rb.index
	})

	return t, nil
}

func compile(r Rule, index int) (Rule, compiledRule, error) {
	pattern := strings.TrimSpace(r.Pattern)
	if !strings.HasPrefix(pattern, "/") {
		return r, compiledRule{}, errors.New("pattern must start with /")
	}

	literal, subtree := pattern, false
	if strings.HasSuffix(pattern, subtreeSuffix) {
		literal, subtree = strings.TrimSuffix(pattern, subtreeSuffix), true
	}
	if strings.Contains(literal, "*") {
		return r, compiledRule{}, errors.New("wildcards are only supported as a trailing /**")
	}
	if literal != "" && path.Clean(literal) != literal {
		return r, compiledRule{}, errors.New("pattern must be a clean path")
	}

	method, err := ParseMethod(string(r.Method))
	if err != nil {
		return r, compiledRule{}, err
	}

	roles := make([]string, 0, len(r.Roles))
	for _, role := range r.Roles {
		role = strings.ToUpper(strings.TrimSpace(role))
		if role == "" {
			return r, compiledRule{}, errors.New("empty role name")
		}
		roles = append(roles, role)
	}
	if r.Public && len(roles) > 0 {
		return r, compiledRule{}, errors.New("public rule cannot require roles")
	}

	normalized := Rule{
		Pattern:  pattern,
		Method:   method,
		Roles:    roles,
		Priority: r.Priority,
		Public:   r.Public,
	}
	return normalized, compiledRule{rule: normalized, literal: literal, subtree: subtree, index: index}, nil
}

// RequiredRoles resolves the requirement for a request. Unmatched paths
// require an authenticated principal with any role.
func (t *Table) RequiredRoles(requestPath string, method Method) Requirement {
	p := CleanPath(requestPath)
	m := Method(strings.ToUpper(string(method)))

	for i := range t.ordered {
		c := &t.ordered[i]
		if !c.matches(p, m) {
			continue
		}
		rule := c.rule
		return Requirement{
			Public: rule.Public,
			Roles:  rule.Roles,
			Rule:   &rule,
			Index:  c.index,
		}
	}

	return Requirement{Index: -1}
}

// Rules returns the normalized rules in declaration order.
func (t *Table) Rules() []Rule {
	out := make([]Rule, len(t.rules))
	copy(out, t.rules)
	return out
}

// Len returns the number of rules.
func (t *Table) Len() int {
	return len(t.rules)
}

// CleanPath resolves dot segments and duplicate slashes so a request cannot
// step out of a matched prefix.
func CleanPath(p string) string {
	if p == "" {
		return "/"
	}
	if p[0] != '/' {
		p = "/" + p
	}
	return path.Clean(p)
}
