// Package segments compiles and evaluates donor segment definitions: a
// recursive boolean tree of groups (and/or, optionally negated) over typed
// field rules. Definitions arrive as JSON from the segment builder, are
// validated against the field catalog at compile time, and evaluate against
// any record that can report its field values.
package segments

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// Combinator values for groups
const (
	CombinatorAnd = "and"
	CombinatorOr  = "or"
)

// Node is one element of a definition tree, either a *Rule or a *Group
type Node interface {
	isNode()
}

// Rule is a leaf: one field compared with one operator
type Rule struct {
	ID       string `json:"id,omitempty"`
	Field    string `json:"field"`
	Operator string `json:"operator"`
	Value    any    `json:"value,omitempty"`
}

func (*Rule) isNode() {}

// Group combines child nodes with a single combinator and an optional
// negation applied after combining
type Group struct {
	ID         string `json:"id,omitempty"`
	Combinator string `json:"combinator"`
	Not        bool   `json:"not,omitempty"`
	Rules      []Node `json:"rules"`
}

func (*Group) isNode() {}

// rawGroup mirrors Group with children left undecoded so each child can be
// dispatched on shape
type rawGroup struct {
	ID         string            `json:"id,omitempty"`
	Combinator string            `json:"combinator"`
	Not        bool              `json:"not,omitempty"`
	Rules      []json.RawMessage `json:"rules"`
}

// UnmarshalJSON decodes a group, dispatching each child on shape: objects
// with a "combinator" key are nested groups, objects with a "field" key are
// rules. Anything else is rejected.
func (g *Group) UnmarshalJSON(data []byte) error {
	var raw rawGroup
	if err := json.Unmarshal(data, &raw); err != nil {
		return errors.Wrap(err, "invalid group")
	}

	g.ID = raw.ID
	g.Combinator = raw.Combinator
	g.Not = raw.Not
	g.Rules = make([]Node, 0, len(raw.Rules))

	for i, child := range raw.Rules {
		node, err := unmarshalNode(child)
		if err != nil {
			return errors.Wrapf(err, "rules[%d]", i)
		}
		g.Rules = append(g.Rules, node)
	}
	return nil
}

// MarshalJSON keeps the wire shape symmetric with UnmarshalJSON
func (g *Group) MarshalJSON() ([]byte, error) {
	type alias struct {
		ID         string `json:"id,omitempty"`
		Combinator string `json:"combinator"`
		Not        bool   `json:"not,omitempty"`
		Rules      []Node `json:"rules"`
	}
	return json.Marshal(alias{ID: g.ID, Combinator: g.Combinator, Not: g.Not, Rules: g.Rules})
}

func unmarshalNode(data []byte) (Node, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, errors.Wrap(err, "node must be an object")
	}

	if _, ok := probe["combinator"]; ok {
		var group Group
		if err := json.Unmarshal(data, &group); err != nil {
			return nil, err
		}
		return &group, nil
	}
	if _, ok := probe["field"]; ok {
		var rule Rule
		if err := json.Unmarshal(data, &rule); err != nil {
			return nil, errors.Wrap(err, "invalid rule")
		}
		return &rule, nil
	}
	return nil, errors.New("node is neither a group (combinator) nor a rule (field)")
}

// Parse decodes a raw definition into a tree without validating it. Most
// callers want Compile instead.
func Parse(definition json.RawMessage) (*Group, error) {
	if len(definition) == 0 {
		return nil, errors.New("definition is empty")
	}
	var root Group
	if err := json.Unmarshal(definition, &root); err != nil {
		return nil, err
	}
	return &root, nil
}
