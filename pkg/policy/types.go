// Package policy defines the document model shared by the validator,
// fixer, orchestrator and resolver: IAM permission and trust policy
// documents, violations, per-policy stats, and the formulation I/O
// envelope that carries them.
package policy

import (
	"encoding/json"
	"fmt"
)

// CanonicalVersion is the only accepted policy language version.
const CanonicalVersion = "2012-10-17"

// MaxPolicySizeBytes is the ceiling for a policy's canonical serialized
// form. AWS rejects inline role policies above 6,144 bytes, so anything
// larger must be split upstream; the validator only surfaces it.
const MaxPolicySizeBytes = 6144

// StringList is a []string that unmarshals from either a bare JSON
// string or an array of strings, the way AWS policy documents encode
// Resource and condition values.
type StringList []string

// UnmarshalJSON accepts "x" and ["x","y"].
func (s *StringList) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*s = StringList{single}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return fmt.Errorf("policy: value is neither string nor string array: %w", err)
	}
	*s = StringList(many)
	return nil
}

// MarshalJSON emits a bare string for single-element lists, matching
// the input convention so fixed documents diff cleanly against their
// sources.
func (s StringList) MarshalJSON() ([]byte, error) {
	if len(s) == 1 {
		return json.Marshal(s[0])
	}
	return json.Marshal([]string(s))
}

// Contains reports whether v is an element of the list.
func (s StringList) Contains(v string) bool {
	for _, e := range s {
		if e == v {
			return true
		}
	}
	return false
}

// Condition maps an operator ("StringEquals", "StringLike", ...) to its
// key/value entries.
type Condition map[string]map[string]StringList

// Statement is one clause of a permission policy document.
type Statement struct {
	Sid       string     `json:"Sid,omitempty"`
	Effect    string     `json:"Effect"`
	Action    []string   `json:"Action"`
	NotAction []string   `json:"NotAction,omitempty"`
	Resource  StringList `json:"Resource,omitempty"`
	Condition Condition  `json:"Condition,omitempty"`
}

// Document is a permission policy document.
type Document struct {
	Version   string       `json:"Version,omitempty"`
	Statement []*Statement `json:"Statement"`
}

// HasConditionKey reports whether any operator block carries the exact
// condition key.
func (s *Statement) HasConditionKey(key string) bool {
	for _, entries := range s.Condition {
		if _, ok := entries[key]; ok {
			return true
		}
	}
	return false
}

// HasConditionKeyPrefix reports whether any operator block carries a
// condition key starting with prefix (e.g. "aws:RequestTag").
func (s *Statement) HasConditionKeyPrefix(prefix string) bool {
	for _, entries := range s.Condition {
		for key := range entries {
			if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
				return true
			}
		}
	}
	return false
}

// Clone returns a deep copy of the statement.
func (s *Statement) Clone() *Statement {
	out := &Statement{
		Sid:    s.Sid,
		Effect: s.Effect,
	}
	if s.Action != nil {
		out.Action = append([]string(nil), s.Action...)
	}
	if s.NotAction != nil {
		out.NotAction = append([]string(nil), s.NotAction...)
	}
	if s.Resource != nil {
		out.Resource = append(StringList(nil), s.Resource...)
	}
	out.Condition = s.Condition.Clone()
	return out
}

// Clone returns a deep copy of the condition block. A nil condition
// clones to nil.
func (c Condition) Clone() Condition {
	if c == nil {
		return nil
	}
	out := make(Condition, len(c))
	for op, entries := range c {
		copied := make(map[string]StringList, len(entries))
		for key, values := range entries {
			copied[key] = append(StringList(nil), values...)
		}
		out[op] = copied
	}
	return out
}

// Clone returns a deep copy of the document. Fix passes operate on
// clones so callers can inspect every intermediate state.
func (d *Document) Clone() *Document {
	out := &Document{Version: d.Version}
	if d.Statement != nil {
		out.Statement = make([]*Statement, len(d.Statement))
		for i, s := range d.Statement {
			out.Statement[i] = s.Clone()
		}
	}
	return out
}
