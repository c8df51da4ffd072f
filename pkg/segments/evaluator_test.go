package segments

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itaisigler-a11y/school-in-the-square-fundraising-sub002/pkg/database"
	"github.com/itaisigler-a11y/school-in-the-square-fundraising-sub002/pkg/models"
)

var testNow = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

func testEvaluator() *Evaluator {
	return NewEvaluatorAt(func() time.Time { return testNow })
}

func mustCompile(t *testing.T, definition string) *Group {
	t.Helper()
	root, err := Compile(json.RawMessage(definition))
	require.NoError(t, err)
	return root
}

func floatPtr(v float64) *float64 { return &v }

func timePtr(v time.Time) *time.Time { return &v }

func TestMatches_AndGroup(t *testing.T) {
	root := mustCompile(t, `{
		"combinator": "and",
		"rules": [
			{"field": "donor_type", "operator": "equals", "value": "alumni"},
			{"field": "total_donated", "operator": "greater_than_or_equal", "value": 1000}
		]
	}`)
	evaluator := testEvaluator()

	alumni := &models.Donor{DonorType: models.DonorTypeAlumni, TotalDonated: floatPtr(1200)}
	assert.True(t, evaluator.Matches(root, alumni))

	parent := &models.Donor{DonorType: models.DonorTypeParent, TotalDonated: floatPtr(5000)}
	assert.False(t, evaluator.Matches(root, parent))
}

func TestMatches_NotGroup(t *testing.T) {
	root := mustCompile(t, `{
		"combinator": "and",
		"not": true,
		"rules": [
			{"field": "city", "operator": "contains", "value": "Bronx"}
		]
	}`)
	evaluator := testEvaluator()

	assert.True(t, evaluator.Matches(root, &models.Donor{City: "Manhattan"}))
	assert.False(t, evaluator.Matches(root, &models.Donor{City: "The Bronx"}))
}

func TestMatches_EmptyGroups(t *testing.T) {
	evaluator := testEvaluator()
	donor := &models.Donor{FirstName: "Any"}

	tests := []struct {
		name       string
		definition string
		want       bool
	}{
		{name: "empty and matches everything", definition: `{"combinator": "and", "rules": []}`, want: true},
		{name: "empty or matches nothing", definition: `{"combinator": "or", "rules": []}`, want: false},
		{name: "negated empty and", definition: `{"combinator": "and", "not": true, "rules": []}`, want: false},
		{name: "negated empty or", definition: `{"combinator": "or", "not": true, "rules": []}`, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, evaluator.Matches(mustCompile(t, tt.definition), donor))
		})
	}
}

func TestMatches_NestedGroups(t *testing.T) {
	// Alumni, or parents who gave at least 500.
	root := mustCompile(t, `{
		"combinator": "or",
		"rules": [
			{"field": "donor_type", "operator": "equals", "value": "alumni"},
			{
				"combinator": "and",
				"rules": [
					{"field": "donor_type", "operator": "equals", "value": "parent"},
					{"field": "total_donated", "operator": "greater_than_or_equal", "value": 500}
				]
			}
		]
	}`)
	evaluator := testEvaluator()

	assert.True(t, evaluator.Matches(root, &models.Donor{DonorType: models.DonorTypeAlumni}))
	assert.True(t, evaluator.Matches(root, &models.Donor{DonorType: models.DonorTypeParent, TotalDonated: floatPtr(500)}))
	assert.False(t, evaluator.Matches(root, &models.Donor{DonorType: models.DonorTypeParent, TotalDonated: floatPtr(499.99)}))
	assert.False(t, evaluator.Matches(root, &models.Donor{DonorType: models.DonorTypeStaff, TotalDonated: floatPtr(9000)}))
}

func TestMatches_NullSemantics(t *testing.T) {
	evaluator := testEvaluator()
	noEmail := &models.Donor{FirstName: "Ada"}
	withEmail := &models.Donor{FirstName: "Ada", Email: "ada@example.com"}

	tests := []struct {
		name       string
		definition string
		record     *models.Donor
		want       bool
	}{
		{
			name:       "is_null on absent",
			definition: `{"combinator": "and", "rules": [{"field": "email", "operator": "is_null"}]}`,
			record:     noEmail,
			want:       true,
		},
		{
			name:       "is_null on present",
			definition: `{"combinator": "and", "rules": [{"field": "email", "operator": "is_null"}]}`,
			record:     withEmail,
			want:       false,
		},
		{
			name:       "is_not_null on absent",
			definition: `{"combinator": "and", "rules": [{"field": "email", "operator": "is_not_null"}]}`,
			record:     noEmail,
			want:       false,
		},
		{
			name:       "not_equals is vacuously true on absent",
			definition: `{"combinator": "and", "rules": [{"field": "email", "operator": "not_equals", "value": "x@y.com"}]}`,
			record:     noEmail,
			want:       true,
		},
		{
			name:       "not_contains is vacuously true on absent",
			definition: `{"combinator": "and", "rules": [{"field": "email", "operator": "not_contains", "value": "example"}]}`,
			record:     noEmail,
			want:       true,
		},
		{
			name:       "equals is false on absent",
			definition: `{"combinator": "and", "rules": [{"field": "email", "operator": "equals", "value": "x@y.com"}]}`,
			record:     noEmail,
			want:       false,
		},
		{
			name:       "contains is false on absent",
			definition: `{"combinator": "and", "rules": [{"field": "email", "operator": "contains", "value": "a"}]}`,
			record:     noEmail,
			want:       false,
		},
		{
			name:       "not_in is vacuously true on absent",
			definition: `{"combinator": "and", "rules": [{"field": "donor_type", "operator": "not_in", "value": ["staff", "parent"]}]}`,
			record:     noEmail,
			want:       true,
		},
		{
			name:       "not_in_last_days is false on absent",
			definition: `{"combinator": "and", "rules": [{"field": "last_donation_date", "operator": "not_in_last_days", "value": 30}]}`,
			record:     noEmail,
			want:       false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, evaluator.Matches(mustCompile(t, tt.definition), tt.record))
		})
	}
}

func TestMatches_StringOperators(t *testing.T) {
	evaluator := testEvaluator()
	donor := &models.Donor{City: "New York", LastName: "O'Neill"}

	tests := []struct {
		name       string
		definition string
		want       bool
	}{
		{
			name:       "equals is case sensitive",
			definition: `{"combinator": "and", "rules": [{"field": "city", "operator": "equals", "value": "new york"}]}`,
			want:       false,
		},
		{
			name:       "equals exact",
			definition: `{"combinator": "and", "rules": [{"field": "city", "operator": "equals", "value": "New York"}]}`,
			want:       true,
		},
		{
			name:       "contains is case insensitive",
			definition: `{"combinator": "and", "rules": [{"field": "city", "operator": "contains", "value": "YORK"}]}`,
			want:       true,
		},
		{
			name:       "not_contains on present value",
			definition: `{"combinator": "and", "rules": [{"field": "last_name", "operator": "not_contains", "value": "neill"}]}`,
			want:       false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, evaluator.Matches(mustCompile(t, tt.definition), donor))
		})
	}
}

func TestMatches_BetweenInclusive(t *testing.T) {
	evaluator := testEvaluator()
	root := mustCompile(t, `{
		"combinator": "and",
		"rules": [{"field": "total_donated", "operator": "between", "value": [100, 500]}]
	}`)

	tests := []struct {
		name  string
		value float64
		want  bool
	}{
		{name: "below min", value: 99.99, want: false},
		{name: "at min", value: 100, want: true},
		{name: "inside", value: 250, want: true},
		{name: "at max", value: 500, want: true},
		{name: "above max", value: 500.01, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			donor := &models.Donor{TotalDonated: floatPtr(tt.value)}
			assert.Equal(t, tt.want, evaluator.Matches(root, donor))
		})
	}
}

func TestMatches_BetweenReversedBounds(t *testing.T) {
	evaluator := testEvaluator()
	// Validation swaps [500, 100] into [100, 500].
	root := mustCompile(t, `{
		"combinator": "and",
		"rules": [{"field": "total_donated", "operator": "between", "value": [500, 100]}]
	}`)

	assert.True(t, evaluator.Matches(root, &models.Donor{TotalDonated: floatPtr(250)}))
	assert.False(t, evaluator.Matches(root, &models.Donor{TotalDonated: floatPtr(50)}))
}

func TestMatches_InLastDays(t *testing.T) {
	evaluator := testEvaluator()
	inLast := mustCompile(t, `{
		"combinator": "and",
		"rules": [{"field": "last_donation_date", "operator": "in_last_days", "value": 30}]
	}`)
	notInLast := mustCompile(t, `{
		"combinator": "and",
		"rules": [{"field": "last_donation_date", "operator": "not_in_last_days", "value": 30}]
	}`)

	exactly30 := testNow.AddDate(0, 0, -30)
	within := testNow.AddDate(0, 0, -5)
	outside := testNow.AddDate(0, 0, -31)

	t.Run("exactly N days ago is inside", func(t *testing.T) {
		donor := &models.Donor{LastDonation: timePtr(exactly30)}
		assert.True(t, evaluator.Matches(inLast, donor))
		assert.False(t, evaluator.Matches(notInLast, donor))
	})

	t.Run("recent donation", func(t *testing.T) {
		donor := &models.Donor{LastDonation: timePtr(within)}
		assert.True(t, evaluator.Matches(inLast, donor))
	})

	t.Run("older donation", func(t *testing.T) {
		donor := &models.Donor{LastDonation: timePtr(outside)}
		assert.False(t, evaluator.Matches(inLast, donor))
		assert.True(t, evaluator.Matches(notInLast, donor))
	})
}

func TestMatches_DateEquals(t *testing.T) {
	evaluator := testEvaluator()
	root := mustCompile(t, `{
		"combinator": "and",
		"rules": [{"field": "last_donation_date", "operator": "equals", "value": "2024-03-01"}]
	}`)

	sameDayLater := time.Date(2024, 3, 1, 23, 30, 0, 0, time.UTC)
	nextDay := time.Date(2024, 3, 2, 0, 0, 1, 0, time.UTC)

	assert.True(t, evaluator.Matches(root, &models.Donor{LastDonation: timePtr(sameDayLater)}))
	assert.False(t, evaluator.Matches(root, &models.Donor{LastDonation: timePtr(nextDay)}))
}

func TestMatches_SelectAndBoolean(t *testing.T) {
	evaluator := testEvaluator()
	recurring := true
	donor := &models.Donor{DonorType: models.DonorTypeStaff, IsRecurring: &recurring}

	tests := []struct {
		name       string
		definition string
		want       bool
	}{
		{
			name:       "in matches membership",
			definition: `{"combinator": "and", "rules": [{"field": "donor_type", "operator": "in", "value": ["staff", "alumni"]}]}`,
			want:       true,
		},
		{
			name:       "not_in rejects membership",
			definition: `{"combinator": "and", "rules": [{"field": "donor_type", "operator": "not_in", "value": ["staff", "alumni"]}]}`,
			want:       false,
		},
		{
			name:       "boolean equals true",
			definition: `{"combinator": "and", "rules": [{"field": "is_recurring", "operator": "equals", "value": true}]}`,
			want:       true,
		},
		{
			name:       "boolean equals false",
			definition: `{"combinator": "and", "rules": [{"field": "is_recurring", "operator": "equals", "value": false}]}`,
			want:       false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, evaluator.Matches(mustCompile(t, tt.definition), donor))
		})
	}
}

func TestFilterAndCount(t *testing.T) {
	evaluator := testEvaluator()
	root := mustCompile(t, `{
		"combinator": "and",
		"rules": [{"field": "donor_type", "operator": "equals", "value": "alumni"}]
	}`)

	donors := []*models.Donor{
		{ID: "a", DonorType: models.DonorTypeAlumni},
		{ID: "b", DonorType: models.DonorTypeParent},
		{ID: "c", DonorType: models.DonorTypeAlumni},
	}

	matched := Filter(evaluator, root, donors)
	require.Len(t, matched, 2)
	assert.Equal(t, "a", matched[0].ID)
	assert.Equal(t, "c", matched[1].ID)

	assert.Equal(t, 2, Count(evaluator, root, donors))
}

func TestMatches_CustomFields(t *testing.T) {
	evaluator := testEvaluator()

	donor := &models.Donor{FirstName: "Quinn"}
	donor.CustomFields = database.NewJSONB(map[string]any{"chapter": "uptown"})

	// Unknown fields never match, even when present in custom data, because
	// they are outside the catalog.
	root := mustCompile(t, `{"combinator": "and", "rules": []}`)
	assert.True(t, evaluator.Matches(root, donor))

	_, err := Compile(json.RawMessage(`{
		"combinator": "and",
		"rules": [{"field": "chapter", "operator": "equals", "value": "uptown"}]
	}`))
	assert.Error(t, err)
}
