package segments

import (
	"time"

	"github.com/itaisigler-a11y/school-in-the-square-fundraising-sub002/pkg/schema"
)

// Record is anything that can report a field value. The second return is
// false when the field is absent, which drives the null operator semantics.
type Record interface {
	Value(field string) (any, bool)
}

// Evaluator runs compiled definition trees against records. The clock is
// injectable so relative date operators are testable.
type Evaluator struct {
	now func() time.Time
}

// NewEvaluator returns an evaluator on the wall clock
func NewEvaluator() *Evaluator {
	return &Evaluator{now: time.Now}
}

// NewEvaluatorAt pins the evaluator's clock
func NewEvaluatorAt(now func() time.Time) *Evaluator {
	return &Evaluator{now: now}
}

// Matches reports whether a record satisfies the definition tree
func (e *Evaluator) Matches(root *Group, record Record) bool {
	return e.evalGroup(root, record, e.now())
}

// Filter returns the records matching the definition, preserving order
func Filter[T Record](e *Evaluator, root *Group, records []T) []T {
	now := e.now()
	var out []T
	for _, r := range records {
		if e.evalGroup(root, r, now) {
			out = append(out, r)
		}
	}
	return out
}

// Count returns how many records match the definition
func Count[T Record](e *Evaluator, root *Group, records []T) int {
	now := e.now()
	count := 0
	for _, r := range records {
		if e.evalGroup(root, r, now) {
			count++
		}
	}
	return count
}

// evalGroup combines child results. An empty "and" group matches everything
// and an empty "or" group matches nothing; "not" inverts after combining.
func (e *Evaluator) evalGroup(g *Group, record Record, now time.Time) bool {
	var result bool
	switch g.Combinator {
	case CombinatorOr:
		result = false
		for _, node := range g.Rules {
			if e.evalNode(node, record, now) {
				result = true
				break
			}
		}
	default:
		result = true
		for _, node := range g.Rules {
			if !e.evalNode(node, record, now) {
				result = false
				break
			}
		}
	}
	if g.Not {
		return !result
	}
	return result
}

func (e *Evaluator) evalNode(node Node, record Record, now time.Time) bool {
	switch n := node.(type) {
	case *Group:
		return e.evalGroup(n, record, now)
	case *Rule:
		return e.evalRule(n, record, now)
	default:
		return false
	}
}

// evalRule resolves null semantics before operator dispatch: an absent
// value satisfies is_null and the negative operators (not_equals,
// not_contains, not_in) and fails everything else.
func (e *Evaluator) evalRule(r *Rule, record Record, now time.Time) bool {
	def, ok := schema.Lookup(r.Field)
	if !ok {
		return false
	}

	value, present := record.Value(r.Field)

	switch r.Operator {
	case schema.OpIsNull:
		return !present
	case schema.OpIsNotNull:
		return present
	}
	if !present {
		switch r.Operator {
		case schema.OpNotEquals, schema.OpNotContains, schema.OpNotIn:
			return true
		default:
			return false
		}
	}

	fn, ok := operatorRegistry[operatorKey{fieldType: def.Type, operator: r.Operator}]
	if !ok {
		return false
	}
	return fn(value, r.Value, now)
}
