package rules

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// ruleDocument is the serialized form of a rule:
//
//	{"matchKind": "tablesAny", "matchValues": ["orders"], "ttl": "5m0s"}
type ruleDocument struct {
	MatchKind   string   `json:"matchKind"`
	MatchValues []string `json:"matchValues,omitempty"`
	TTL         TTL      `json:"ttl"`
}

// TTL is a duration that serializes as a Go duration string and also accepts
// an integer number of seconds.
type TTL time.Duration

func (t TTL) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(t).String())
}

func (t *TTL) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
			*t = TTL(time.Duration(secs) * time.Second)
			return nil
		}
		d, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("%w: ttl %q: %v", ErrInvalidRule, s, err)
		}
		*t = TTL(d)
		return nil
	}

	var secs int64
	if err := json.Unmarshal(b, &secs); err != nil {
		return fmt.Errorf("%w: ttl %s is neither a duration nor seconds", ErrInvalidRule, b)
	}
	*t = TTL(time.Duration(secs) * time.Second)
	return nil
}

func (r Rule) MarshalJSON() ([]byte, error) {
	return json.Marshal(ruleDocument{
		MatchKind:   r.kind.String(),
		MatchValues: r.values,
		TTL:         TTL(r.ttl),
	})
}

func (r *Rule) UnmarshalJSON(b []byte) error {
	var doc ruleDocument
	if err := json.Unmarshal(b, &doc); err != nil {
		return err
	}
	kind, err := ParseKind(doc.MatchKind)
	if err != nil {
		return err
	}
	rule, err := New(kind, doc.MatchValues, time.Duration(doc.TTL))
	if err != nil {
		return err
	}
	*r = rule
	return nil
}

// MarshalJSON writes the rules as a JSON array in evaluation order.
func (rs *Ruleset) MarshalJSON() ([]byte, error) {
	rules := rs.Rules()
	if rules == nil {
		rules = []Rule{}
	}
	return json.Marshal(rules)
}

func (rs *Ruleset) UnmarshalJSON(b []byte) error {
	var rules []Rule
	if err := json.Unmarshal(b, &rules); err != nil {
		return err
	}
	rs.rules = rules
	return nil
}
