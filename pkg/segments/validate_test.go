package segments

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name       string
		definition string
		wantErrs   int
		wantPath   string
	}{
		{
			name: "valid definition",
			definition: `{
				"combinator": "and",
				"rules": [
					{"field": "email", "operator": "is_not_null"},
					{"field": "total_donated", "operator": "between", "value": [10, 20]}
				]
			}`,
		},
		{
			name:       "bad combinator",
			definition: `{"combinator": "xor", "rules": []}`,
			wantErrs:   1,
			wantPath:   "$",
		},
		{
			name:       "unknown field",
			definition: `{"combinator": "and", "rules": [{"field": "shoe_size", "operator": "equals", "value": "9"}]}`,
			wantErrs:   1,
			wantPath:   "$.rules[0]",
		},
		{
			name:       "operator illegal for type",
			definition: `{"combinator": "and", "rules": [{"field": "email", "operator": "greater_than", "value": "a"}]}`,
			wantErrs:   1,
		},
		{
			name:       "between needs two bounds",
			definition: `{"combinator": "and", "rules": [{"field": "total_donated", "operator": "between", "value": [10]}]}`,
			wantErrs:   1,
		},
		{
			name:       "in needs non-empty array",
			definition: `{"combinator": "and", "rules": [{"field": "donor_type", "operator": "in", "value": []}]}`,
			wantErrs:   1,
		},
		{
			name:       "in rejects unknown option",
			definition: `{"combinator": "and", "rules": [{"field": "donor_type", "operator": "in", "value": ["alumni", "wizard"]}]}`,
			wantErrs:   1,
		},
		{
			name:       "in_last_days rejects zero",
			definition: `{"combinator": "and", "rules": [{"field": "last_donation_date", "operator": "in_last_days", "value": 0}]}`,
			wantErrs:   1,
		},
		{
			name:       "in_last_days rejects fraction",
			definition: `{"combinator": "and", "rules": [{"field": "last_donation_date", "operator": "in_last_days", "value": 1.5}]}`,
			wantErrs:   1,
		},
		{
			name:       "missing value",
			definition: `{"combinator": "and", "rules": [{"field": "city", "operator": "equals"}]}`,
			wantErrs:   1,
		},
		{
			name:       "numeric field rejects string value",
			definition: `{"combinator": "and", "rules": [{"field": "donation_count", "operator": "equals", "value": "many"}]}`,
			wantErrs:   1,
		},
		{
			name:       "boolean field rejects string value",
			definition: `{"combinator": "and", "rules": [{"field": "is_recurring", "operator": "equals", "value": "yes"}]}`,
			wantErrs:   1,
		},
		{
			name:       "date field rejects garbage",
			definition: `{"combinator": "and", "rules": [{"field": "created_at", "operator": "greater_than", "value": "yesterday"}]}`,
			wantErrs:   1,
		},
		{
			name: "multiple errors collected",
			definition: `{
				"combinator": "nand",
				"rules": [
					{"field": "shoe_size", "operator": "equals", "value": "9"},
					{"field": "email", "operator": "between", "value": [1, 2]}
				]
			}`,
			wantErrs: 3,
		},
		{
			name: "nested group error carries the path",
			definition: `{
				"combinator": "and",
				"rules": [
					{"field": "email", "operator": "is_not_null"},
					{
						"combinator": "or",
						"rules": [{"field": "bogus", "operator": "equals", "value": "x"}]
					}
				]
			}`,
			wantErrs: 1,
			wantPath: "$.rules[1].rules[0]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root, err := Parse(json.RawMessage(tt.definition))
			require.NoError(t, err)

			errs := Validate(root)
			assert.Len(t, errs, tt.wantErrs)
			if tt.wantPath != "" && len(errs) > 0 {
				assert.Equal(t, tt.wantPath, errs[0].Path)
			}
		})
	}
}

func TestValidate_NormalizesBetweenBounds(t *testing.T) {
	root, err := Parse(json.RawMessage(`{
		"combinator": "and",
		"rules": [{"field": "total_donated", "operator": "between", "value": [500, 100]}]
	}`))
	require.NoError(t, err)

	errs := Validate(root)
	require.Empty(t, errs)

	rule, ok := root.Rules[0].(*Rule)
	require.True(t, ok)
	bounds, ok := rule.Value.([]any)
	require.True(t, ok)
	assert.Equal(t, []any{float64(100), float64(500)}, bounds)
}

func TestParse(t *testing.T) {
	t.Run("dispatches on shape", func(t *testing.T) {
		root, err := Parse(json.RawMessage(`{
			"combinator": "or",
			"rules": [
				{"field": "city", "operator": "equals", "value": "Queens"},
				{"combinator": "and", "rules": []}
			]
		}`))
		require.NoError(t, err)
		require.Len(t, root.Rules, 2)

		_, isRule := root.Rules[0].(*Rule)
		_, isGroup := root.Rules[1].(*Group)
		assert.True(t, isRule)
		assert.True(t, isGroup)
	})

	t.Run("rejects shapeless node", func(t *testing.T) {
		_, err := Parse(json.RawMessage(`{"combinator": "and", "rules": [{"value": 3}]}`))
		assert.Error(t, err)
	})

	t.Run("rejects empty input", func(t *testing.T) {
		_, err := Parse(nil)
		assert.Error(t, err)
	})

	t.Run("round trips through json", func(t *testing.T) {
		raw := `{"combinator":"and","not":true,"rules":[{"id":"r1","field":"zip","operator":"equals","value":"10001"}]}`
		root, err := Parse(json.RawMessage(raw))
		require.NoError(t, err)

		out, err := json.Marshal(root)
		require.NoError(t, err)
		assert.JSONEq(t, raw, string(out))
	})
}

func TestCompile(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		root, err := Compile(json.RawMessage(`{"combinator": "and", "rules": []}`))
		require.NoError(t, err)
		assert.NotNil(t, root)
	})

	t.Run("invalid surfaces first error", func(t *testing.T) {
		_, err := Compile(json.RawMessage(`{"combinator": "and", "rules": [{"field": "nope", "operator": "equals", "value": "x"}]}`))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown field")
	})
}
