// Package config publishes the live cache configuration: the ruleset and the
// encoding buffer capacity. A Manager loads the configuration document from a
// Source, keeps it fresh and swaps whole snapshots atomically.
package config

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/prashanthpai/smartcache/rules"
)

var (
	// ErrNotFound is returned by a Source whose document does not exist yet.
	ErrNotFound = errors.New("config: document not found")
	// ErrConfigTimeout is returned when no document shows up in time.
	ErrConfigTimeout = errors.New("config: timed out waiting for configuration")
)

// DefaultBufferCapacity is used when the document does not set one.
const DefaultBufferCapacity = 100 * 1024

// Snapshot is one immutable version of the configuration. Consumers must not
// modify it.
type Snapshot struct {
	// BufferCapacity bounds the encoded size of a cached result in bytes.
	BufferCapacity int
	Ruleset        *rules.Ruleset
}

// Default returns a snapshot with the default buffer capacity and no rules,
// under which nothing is cached.
func Default() *Snapshot {
	return &Snapshot{
		BufferCapacity: DefaultBufferCapacity,
		Ruleset:        rules.NewRuleset(),
	}
}

// Provider returns the snapshot in effect. Current must be cheap and safe for
// concurrent use.
type Provider interface {
	Current() *Snapshot
}

type static struct {
	s *Snapshot
}

func (s static) Current() *Snapshot { return s.s }

// Static returns a Provider that always returns s.
func Static(s *Snapshot) Provider {
	if s == nil {
		s = Default()
	}
	return static{s}
}

type document struct {
	BufferCapacity *int           `json:"bufferCapacity,omitempty"`
	Rules          *rules.Ruleset `json:"rules"`
}

// Parse decodes a configuration document:
//
//	{"bufferCapacity": 102400, "rules": [{"matchKind": "tables", "matchValues": ["orders"], "ttl": "1h"}]}
func Parse(b []byte) (*Snapshot, error) {
	var doc document
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	s := Default()
	if doc.BufferCapacity != nil {
		if *doc.BufferCapacity <= 0 {
			return nil, fmt.Errorf("config: bufferCapacity must be positive, got %d", *doc.BufferCapacity)
		}
		s.BufferCapacity = *doc.BufferCapacity
	}
	if doc.Rules != nil {
		s.Ruleset = doc.Rules
	}
	return s, nil
}

// Marshal encodes the snapshot as a configuration document.
func (s *Snapshot) Marshal() ([]byte, error) {
	capacity := s.BufferCapacity
	rs := s.Ruleset
	if rs == nil {
		rs = rules.NewRuleset()
	}
	return json.MarshalIndent(document{BufferCapacity: &capacity, Rules: rs}, "", "  ")
}
