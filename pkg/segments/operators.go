package segments

import (
	"strconv"
	"strings"
	"time"

	"github.com/itaisigler-a11y/school-in-the-square-fundraising-sub002/pkg/schema"
)

// operatorFunc compares a present record value against a rule value. The
// clock is threaded through for the relative date operators.
type operatorFunc func(value, ruleValue any, now time.Time) bool

type operatorKey struct {
	fieldType schema.FieldType
	operator  string
}

var operatorRegistry = buildOperatorRegistry()

func buildOperatorRegistry() map[operatorKey]operatorFunc {
	registry := map[operatorKey]operatorFunc{}
	register := func(t schema.FieldType, op string, fn operatorFunc) {
		registry[operatorKey{fieldType: t, operator: op}] = fn
	}

	// String comparisons. Equality is case sensitive, containment is not.
	register(schema.FieldTypeString, schema.OpEquals, stringEquals)
	register(schema.FieldTypeString, schema.OpNotEquals, invert(stringEquals))
	register(schema.FieldTypeString, schema.OpContains, stringContains)
	register(schema.FieldTypeString, schema.OpNotContains, invert(stringContains))

	for _, t := range []schema.FieldType{schema.FieldTypeNumber, schema.FieldTypeCurrency} {
		register(t, schema.OpEquals, numericCompare(func(a, b float64) bool { return a == b }))
		register(t, schema.OpNotEquals, numericCompare(func(a, b float64) bool { return a != b }))
		register(t, schema.OpGreaterThan, numericCompare(func(a, b float64) bool { return a > b }))
		register(t, schema.OpLessThan, numericCompare(func(a, b float64) bool { return a < b }))
		register(t, schema.OpGreaterThanOrEqual, numericCompare(func(a, b float64) bool { return a >= b }))
		register(t, schema.OpLessThanOrEqual, numericCompare(func(a, b float64) bool { return a <= b }))
		register(t, schema.OpBetween, numericBetween)
	}

	register(schema.FieldTypeSelect, schema.OpEquals, stringEquals)
	register(schema.FieldTypeSelect, schema.OpNotEquals, invert(stringEquals))
	register(schema.FieldTypeSelect, schema.OpIn, selectIn)
	register(schema.FieldTypeSelect, schema.OpNotIn, invert(selectIn))

	register(schema.FieldTypeBoolean, schema.OpEquals, booleanEquals)

	register(schema.FieldTypeDate, schema.OpEquals, dateCompare(sameDay))
	register(schema.FieldTypeDate, schema.OpNotEquals, dateCompare(func(a, b time.Time) bool { return !sameDay(a, b) }))
	register(schema.FieldTypeDate, schema.OpGreaterThan, dateCompare(func(a, b time.Time) bool { return a.After(b) }))
	register(schema.FieldTypeDate, schema.OpLessThan, dateCompare(func(a, b time.Time) bool { return a.Before(b) }))
	register(schema.FieldTypeDate, schema.OpGreaterThanOrEqual, dateCompare(func(a, b time.Time) bool { return !a.Before(b) }))
	register(schema.FieldTypeDate, schema.OpLessThanOrEqual, dateCompare(func(a, b time.Time) bool { return !a.After(b) }))
	register(schema.FieldTypeDate, schema.OpInLastDays, dateInLastDays)
	register(schema.FieldTypeDate, schema.OpNotInLastDays, invert(dateInLastDays))

	return registry
}

func invert(fn operatorFunc) operatorFunc {
	return func(value, ruleValue any, now time.Time) bool {
		return !fn(value, ruleValue, now)
	}
}

func stringEquals(value, ruleValue any, _ time.Time) bool {
	a, okA := toString(value)
	b, okB := toString(ruleValue)
	return okA && okB && a == b
}

func stringContains(value, ruleValue any, _ time.Time) bool {
	a, okA := toString(value)
	b, okB := toString(ruleValue)
	return okA && okB && strings.Contains(strings.ToLower(a), strings.ToLower(b))
}

func numericCompare(cmp func(a, b float64) bool) operatorFunc {
	return func(value, ruleValue any, _ time.Time) bool {
		a, okA := toFloat64(value)
		b, okB := toFloat64(ruleValue)
		return okA && okB && cmp(a, b)
	}
}

// numericBetween is inclusive on both bounds. Validation normalizes the
// bounds but a raw tree may still arrive reversed, so swap here too.
func numericBetween(value, ruleValue any, _ time.Time) bool {
	v, ok := toFloat64(value)
	if !ok {
		return false
	}
	bounds, ok := ruleValue.([]any)
	if !ok || len(bounds) != 2 {
		return false
	}
	min, okMin := toFloat64(bounds[0])
	max, okMax := toFloat64(bounds[1])
	if !okMin || !okMax {
		return false
	}
	if min > max {
		min, max = max, min
	}
	return v >= min && v <= max
}

func selectIn(value, ruleValue any, _ time.Time) bool {
	v, ok := toString(value)
	if !ok {
		return false
	}
	values, ok := ruleValue.([]any)
	if !ok {
		return false
	}
	for _, item := range values {
		if s, ok := toString(item); ok && s == v {
			return true
		}
	}
	return false
}

func booleanEquals(value, ruleValue any, _ time.Time) bool {
	a, okA := toBool(value)
	b, okB := toBool(ruleValue)
	return okA && okB && a == b
}

func dateCompare(cmp func(a, b time.Time) bool) operatorFunc {
	return func(value, ruleValue any, _ time.Time) bool {
		a, okA := toTime(value)
		b, okB := toTime(ruleValue)
		return okA && okB && cmp(a, b)
	}
}

// dateInLastDays is inclusive at both ends: a value exactly N days ago
// matches, as does a value of this instant.
func dateInLastDays(value, ruleValue any, now time.Time) bool {
	v, ok := toTime(value)
	if !ok {
		return false
	}
	days, ok := toFloat64(ruleValue)
	if !ok || days <= 0 {
		return false
	}
	cutoff := now.AddDate(0, 0, -int(days))
	return !v.Before(cutoff) && !v.After(now)
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}

func toString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func toBool(v any) (bool, bool) {
	b, ok := v.(bool)
	return b, ok
}

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02",
}

func toTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		return parseTime(t)
	default:
		return time.Time{}, false
	}
}

func parseTime(s string) (time.Time, bool) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
