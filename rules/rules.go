// Package rules decides whether, and for how long, a query result is cached.
//
// A Ruleset is an ordered list of rules; the first rule matching a query
// supplies the TTL. A query that no rule matches is not cached.
package rules

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"
)

// ErrInvalidRule is returned for rules that cannot be built.
var ErrInvalidRule = errors.New("rules: invalid rule")

// Kind is the matching strategy of a rule.
type Kind int

const (
	Passthrough Kind = iota
	Tables
	TablesAny
	TablesAll
	Regex
	QueryIDs
)

var kindNames = map[Kind]string{
	Passthrough: "passthrough",
	Tables:      "tables",
	TablesAny:   "tablesAny",
	TablesAll:   "tablesAll",
	Regex:       "regex",
	QueryIDs:    "queryIds",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// ParseKind parses the document name of a kind, as returned by String.
func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if strings.EqualFold(name, s) {
			return k, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown match kind %q", ErrInvalidRule, s)
}

// Set is a set of lower-cased names.
type Set map[string]struct{}

// NewSet returns a set holding the lower-cased names.
func NewSet(names ...string) Set {
	s := make(Set, len(names))
	for _, n := range names {
		s[strings.ToLower(n)] = struct{}{}
	}
	return s
}

func (s Set) Has(name string) bool {
	_, ok := s[name]
	return ok
}

// Sorted returns the members in lexical order.
func (s Set) Sorted() []string {
	out := make([]string, 0, len(s))
	for n := range s {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Query is what a rule is evaluated against.
type Query struct {
	// ID is the query fingerprint.
	ID  string
	SQL string
	// Tables is empty when the statement could not be parsed.
	Tables Set
}

// Action is the outcome of evaluating a ruleset. A zero TTL means do not
// cache.
type Action struct {
	TTL time.Duration
}

// Cacheable reports whether the result should be cached.
func (a Action) Cacheable() bool {
	return a.TTL > 0
}

// Rule is one matching strategy plus a TTL. Rules are immutable.
type Rule struct {
	kind    Kind
	values  []string
	set     Set
	pattern *regexp.Regexp
	ttl     time.Duration
}

// New builds a rule of the given kind. Table and query id kinds take any
// number of values, regex takes exactly one pattern and passthrough none.
// Regex patterns must match the whole SQL text.
func New(kind Kind, values []string, ttl time.Duration) (Rule, error) {
	if ttl < 0 {
		return Rule{}, fmt.Errorf("%w: negative ttl %s", ErrInvalidRule, ttl)
	}
	r := Rule{kind: kind, ttl: ttl, values: append([]string(nil), values...)}
	switch kind {
	case Passthrough:
		if len(values) != 0 {
			return Rule{}, fmt.Errorf("%w: passthrough takes no match values", ErrInvalidRule)
		}
	case Tables, TablesAny, TablesAll:
		r.set = NewSet(values...)
	case QueryIDs:
		r.set = make(Set, len(values))
		for _, id := range values {
			r.set[id] = struct{}{}
		}
	case Regex:
		if len(values) != 1 {
			return Rule{}, fmt.Errorf("%w: regex takes exactly one pattern, got %d", ErrInvalidRule, len(values))
		}
		p, err := regexp.Compile(`^(?:` + values[0] + `)$`)
		if err != nil {
			return Rule{}, fmt.Errorf("%w: %v", ErrInvalidRule, err)
		}
		r.pattern = p
	default:
		return Rule{}, fmt.Errorf("%w: unknown kind %d", ErrInvalidRule, int(kind))
	}
	return r, nil
}

func must(r Rule, err error) Rule {
	if err != nil {
		panic(err)
	}
	return r
}

// MatchTables matches queries whose table set equals tables.
func MatchTables(ttl time.Duration, tables ...string) Rule {
	return must(New(Tables, tables, ttl))
}

// MatchTablesAny matches queries touching at least one of tables.
func MatchTablesAny(ttl time.Duration, tables ...string) Rule {
	return must(New(TablesAny, tables, ttl))
}

// MatchTablesAll matches queries touching every one of tables.
func MatchTablesAll(ttl time.Duration, tables ...string) Rule {
	return must(New(TablesAll, tables, ttl))
}

// MatchRegex matches queries whose whole SQL text matches pattern.
func MatchRegex(ttl time.Duration, pattern string) (Rule, error) {
	return New(Regex, []string{pattern}, ttl)
}

// MustMatchRegex is like MatchRegex but panics on a bad pattern.
func MustMatchRegex(ttl time.Duration, pattern string) Rule {
	return must(MatchRegex(ttl, pattern))
}

// MatchQueryIDs matches queries by fingerprint.
func MatchQueryIDs(ttl time.Duration, ids ...string) Rule {
	return must(New(QueryIDs, ids, ttl))
}

// MatchAll matches every query. With a zero TTL it disables caching for
// everything after it.
func MatchAll(ttl time.Duration) Rule {
	return must(New(Passthrough, nil, ttl))
}

func (r Rule) Kind() Kind { return r.kind }

func (r Rule) TTL() time.Duration { return r.ttl }

// Values returns the match values in the order they were given.
func (r Rule) Values() []string {
	return append([]string(nil), r.values...)
}

// Match reports whether the rule applies to q.
func (r Rule) Match(q Query) bool {
	switch r.kind {
	case Passthrough:
		return true
	case Tables:
		if len(q.Tables) == 0 || len(q.Tables) != len(r.set) {
			return false
		}
		for t := range q.Tables {
			if !r.set.Has(t) {
				return false
			}
		}
		return true
	case TablesAny:
		for t := range q.Tables {
			if r.set.Has(t) {
				return true
			}
		}
		return false
	case TablesAll:
		if len(q.Tables) == 0 {
			return false
		}
		for t := range r.set {
			if !q.Tables.Has(t) {
				return false
			}
		}
		return true
	case Regex:
		return r.pattern.MatchString(q.SQL)
	case QueryIDs:
		return r.set.Has(q.ID)
	}
	return false
}

func (r Rule) String() string {
	if r.kind == Passthrough {
		return fmt.Sprintf("%s ttl=%s", r.kind, r.ttl)
	}
	return fmt.Sprintf("%s %s ttl=%s", r.kind, strings.Join(r.values, ","), r.ttl)
}

// Ruleset is an ordered, immutable list of rules.
type Ruleset struct {
	rules []Rule
}

// NewRuleset returns a ruleset evaluating rules in the given order.
func NewRuleset(rules ...Rule) *Ruleset {
	return &Ruleset{rules: append([]Rule(nil), rules...)}
}

// Rules returns a copy of the rules in order.
func (rs *Ruleset) Rules() []Rule {
	if rs == nil {
		return nil
	}
	return append([]Rule(nil), rs.rules...)
}

func (rs *Ruleset) Len() int {
	if rs == nil {
		return 0
	}
	return len(rs.rules)
}

// Fire returns the action of the first rule matching q, or a zero action.
// It is safe for concurrent use.
func (rs *Ruleset) Fire(q Query) Action {
	if rs == nil {
		return Action{}
	}
	for _, r := range rs.rules {
		if r.Match(q) {
			return Action{TTL: r.ttl}
		}
	}
	return Action{}
}
