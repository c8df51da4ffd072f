package segments

import (
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"

	"github.com/itaisigler-a11y/school-in-the-square-fundraising-sub002/pkg/models"
	"github.com/itaisigler-a11y/school-in-the-square-fundraising-sub002/pkg/schema"
)

// Compile parses and validates a definition in one step. The returned tree
// is safe to evaluate; between bounds have been normalized.
func Compile(definition json.RawMessage) (*Group, error) {
	root, err := Parse(definition)
	if err != nil {
		return nil, err
	}
	if verrs := Validate(root); len(verrs) > 0 {
		return nil, errors.Errorf("invalid definition: %s (%s)", verrs[0].Message, verrs[0].Path)
	}
	return root, nil
}

// Validate walks the tree and collects every problem instead of stopping at
// the first, so the segment builder can mark all offending rules at once.
// It normalizes between bounds in place (min > max gets swapped).
func Validate(root *Group) []models.SegmentValidationError {
	var errs []models.SegmentValidationError
	validateGroup(root, "", &errs)
	return errs
}

func validateGroup(g *Group, path string, errs *[]models.SegmentValidationError) {
	if path == "" {
		path = "$"
	}
	if g.Combinator != CombinatorAnd && g.Combinator != CombinatorOr {
		*errs = append(*errs, models.SegmentValidationError{
			Path:    path,
			Message: fmt.Sprintf("combinator must be %q or %q, got %q", CombinatorAnd, CombinatorOr, g.Combinator),
		})
	}
	for i, node := range g.Rules {
		childPath := fmt.Sprintf("%s.rules[%d]", path, i)
		switch n := node.(type) {
		case *Group:
			validateGroup(n, childPath, errs)
		case *Rule:
			validateRule(n, childPath, errs)
		}
	}
}

func validateRule(r *Rule, path string, errs *[]models.SegmentValidationError) {
	fail := func(msg string) {
		*errs = append(*errs, models.SegmentValidationError{Path: path, Field: r.Field, Message: msg})
	}

	def, ok := schema.Lookup(r.Field)
	if !ok {
		fail(fmt.Sprintf("unknown field %q", r.Field))
		return
	}
	if !def.OperatorLegal(r.Operator) {
		fail(fmt.Sprintf("operator %q is not valid for %s field %q", r.Operator, def.Type, r.Field))
		return
	}

	switch r.Operator {
	case schema.OpIsNull, schema.OpIsNotNull:
		// No value expected; a stray value is ignored, not rejected.
		return
	case schema.OpBetween:
		bounds, ok := r.Value.([]any)
		if !ok || len(bounds) != 2 {
			fail("between requires a two-element [min, max] array")
			return
		}
		min, okMin := toFloat64(bounds[0])
		max, okMax := toFloat64(bounds[1])
		if !okMin || !okMax {
			fail("between bounds must be numeric")
			return
		}
		if min > max {
			r.Value = []any{max, min}
		}
		return
	case schema.OpIn, schema.OpNotIn:
		values, ok := r.Value.([]any)
		if !ok || len(values) == 0 {
			fail(fmt.Sprintf("%s requires a non-empty array of values", r.Operator))
			return
		}
		for _, v := range values {
			s, ok := v.(string)
			if !ok {
				fail(fmt.Sprintf("%s values must be strings", r.Operator))
				return
			}
			if !def.OptionLegal(s) {
				fail(fmt.Sprintf("%q is not a valid option for field %q", s, r.Field))
				return
			}
		}
		return
	case schema.OpInLastDays, schema.OpNotInLastDays:
		days, ok := toFloat64(r.Value)
		if !ok || days <= 0 || days != float64(int(days)) {
			fail(fmt.Sprintf("%s requires a positive whole number of days", r.Operator))
		}
		return
	}

	if r.Value == nil {
		fail(fmt.Sprintf("operator %q requires a value", r.Operator))
		return
	}

	switch def.Type {
	case schema.FieldTypeNumber, schema.FieldTypeCurrency:
		if _, ok := toFloat64(r.Value); !ok {
			fail(fmt.Sprintf("field %q requires a numeric value", r.Field))
		}
	case schema.FieldTypeBoolean:
		if _, ok := r.Value.(bool); !ok {
			fail(fmt.Sprintf("field %q requires a boolean value", r.Field))
		}
	case schema.FieldTypeDate:
		s, ok := r.Value.(string)
		if !ok {
			fail(fmt.Sprintf("field %q requires a date string", r.Field))
			return
		}
		if _, ok := parseTime(s); !ok {
			fail(fmt.Sprintf("%q is not a valid date", s))
		}
	case schema.FieldTypeSelect:
		s, ok := r.Value.(string)
		if !ok {
			fail(fmt.Sprintf("field %q requires a string value", r.Field))
			return
		}
		if !def.OptionLegal(s) {
			fail(fmt.Sprintf("%q is not a valid option for field %q", s, r.Field))
		}
	case schema.FieldTypeString:
		if _, ok := r.Value.(string); !ok {
			fail(fmt.Sprintf("field %q requires a string value", r.Field))
		}
	}
}
