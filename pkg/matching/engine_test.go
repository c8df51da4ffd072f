package matching

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itaisigler-a11y/school-in-the-square-fundraising-sub002/pkg/models"
)

func newTestEngine() *Engine {
	return NewEngine(DefaultWeights(), DefaultThresholds())
}

func intPtr(v int) *int { return &v }

func TestFindDuplicates_ExactEmailWithFuzzyName(t *testing.T) {
	engine := newTestEngine()

	probe := &models.Donor{
		FirstName: "Jon",
		LastName:  "Smith",
		Email:     "JSMITH@example.com",
	}
	candidates := []models.Donor{
		{ID: "c1", FirstName: "John", LastName: "Smith", Email: "jsmith@example.com"},
	}

	matches := engine.FindDuplicates(probe, candidates, Options{})
	require.Len(t, matches, 1)

	match := matches[0]
	assert.Equal(t, models.ConfidenceHigh, match.Confidence)
	assert.Equal(t, StrategyExactEmail, match.MatchStrategy)
	assert.InDelta(t, 0.9667, match.Score, 0.001)
	assert.Contains(t, match.Reasons, "email addresses match exactly")
}

func TestFindDuplicates_IdenticalRecords(t *testing.T) {
	engine := newTestEngine()

	probe := &models.Donor{
		FirstName: "Maria",
		LastName:  "Lopez",
		Email:     "maria.lopez@example.com",
		Phone:     "(212) 555-0188",
		Address:   "123 Main St",
		City:      "New York",
		Zip:       "10001",
	}
	candidate := *probe
	candidate.ID = "c1"

	matches := engine.FindDuplicates(probe, []models.Donor{candidate}, Options{})
	require.Len(t, matches, 1)
	assert.Equal(t, models.ConfidenceHigh, matches[0].Confidence)
	assert.InDelta(t, 1.0, matches[0].Score, 0.0001)
}

func TestFindDuplicates_SkipsSelf(t *testing.T) {
	engine := newTestEngine()

	probe := &models.Donor{ID: "d1", FirstName: "Sam", LastName: "Rivera", Email: "sam@example.com"}
	candidates := []models.Donor{
		{ID: "d1", FirstName: "Sam", LastName: "Rivera", Email: "sam@example.com"},
		{ID: "d2", FirstName: "Sam", LastName: "Rivera", Email: "sam@example.com"},
	}

	matches := engine.FindDuplicates(probe, candidates, Options{})
	require.Len(t, matches, 1)
	assert.Equal(t, "d2", matches[0].Donor.ID)
}

func TestFindDuplicates_ZeroWeightDisablesStrategy(t *testing.T) {
	weights := DefaultWeights()
	weights[StrategyExactEmail] = 0
	engine := NewEngine(weights, DefaultThresholds())

	probe := &models.Donor{FirstName: "Ana", LastName: "Chen", Email: "ana@example.com"}
	candidates := []models.Donor{
		// Same email but a completely different name. With exact_email
		// disabled nothing else applies, so no match.
		{ID: "c1", FirstName: "Robert", LastName: "Wilkins", Email: "ana@example.com"},
	}

	matches := engine.FindDuplicates(probe, candidates, Options{})
	assert.Empty(t, matches)
}

func TestFindDuplicates_BelowLowThresholdDiscarded(t *testing.T) {
	engine := newTestEngine()

	probe := &models.Donor{FirstName: "Grace", LastName: "Okafor", Email: "grace@example.com", DonorType: models.DonorTypeParent}
	candidates := []models.Donor{
		// Matching donor type (0.6 at weight 1.5) against mismatched emails
		// (0 at weight 3.0) aggregates to 0.2, below the low band.
		{ID: "c1", FirstName: "Tom", LastName: "Yancey", Email: "tom@example.com", DonorType: models.DonorTypeParent},
	}

	matches := engine.FindDuplicates(probe, candidates, Options{})
	assert.Empty(t, matches)
}

func TestFindDuplicates_MismatchedEmailDilutes(t *testing.T) {
	engine := newTestEngine()

	probe := &models.Donor{FirstName: "John", LastName: "Smith", Email: "john@example.com"}

	// Identical name but a conflicting email: exact_email stays in the mean
	// at zero, pulling (0*3.0 + 1.0*1.5)/4.5 = 0.33 below the low band.
	conflicting := engine.FindDuplicates(probe, []models.Donor{
		{ID: "c1", FirstName: "John", LastName: "Smith", Email: "someone.else@example.org"},
	}, Options{})
	assert.Empty(t, conflicting)

	// The same name with no email at all leaves exact_email inapplicable,
	// so the name match stands on its own.
	absent := engine.FindDuplicates(probe, []models.Donor{
		{ID: "c2", FirstName: "John", LastName: "Smith"},
	}, Options{})
	require.Len(t, absent, 1)
	assert.Equal(t, models.ConfidenceHigh, absent[0].Confidence)
}

func TestFindDuplicates_EmptyNamesNeverFuzzyMatch(t *testing.T) {
	engine := newTestEngine()

	probe := &models.Donor{}
	candidates := []models.Donor{{ID: "c1"}}

	matches := engine.FindDuplicates(probe, candidates, Options{Strategies: []string{StrategyFuzzyName}})
	assert.Empty(t, matches)
}

func TestFindDuplicates_NamePhone(t *testing.T) {
	engine := newTestEngine()

	probe := &models.Donor{FirstName: "Michael", LastName: "Torres", Phone: "212-555-0147"}
	candidates := []models.Donor{
		{ID: "c1", FirstName: "Mike", LastName: "Torres", Phone: "(212) 555-0147"},
	}

	matches := engine.FindDuplicates(probe, candidates, Options{})
	require.Len(t, matches, 1)

	// exact_phone and name_phone both match; phone carries more weight.
	assert.Equal(t, StrategyExactPhone, matches[0].MatchStrategy)
	assert.GreaterOrEqual(t, matches[0].Score, 0.7)
}

func TestFindDuplicates_StudentName(t *testing.T) {
	engine := newTestEngine()

	probe := &models.Donor{FirstName: "Dana", LastName: "Kim", StudentName: "Ella Kim"}
	candidates := []models.Donor{
		{ID: "c1", FirstName: "Daniel", LastName: "Kim", StudentName: "Ella Kim"},
	}

	matches := engine.FindDuplicates(probe, candidates, Options{})
	require.Len(t, matches, 1)
	assert.Contains(t, matches[0].Reasons, "student names are 100% similar")
}

func TestFindDuplicates_RequireExactEmailGate(t *testing.T) {
	engine := newTestEngine()

	probe := &models.Donor{FirstName: "Lena", LastName: "Park", Email: "lena@example.com", Phone: "917-555-0101"}
	candidates := []models.Donor{
		// Phone matches, email differs. The gate must drop it even though
		// the aggregate score clears the low band.
		{ID: "c1", FirstName: "Lena", LastName: "Park", Email: "lpark@other.org", Phone: "917-555-0101"},
	}

	withoutGate := engine.FindDuplicates(probe, candidates, Options{})
	require.Len(t, withoutGate, 1)

	withGate := engine.FindDuplicates(probe, candidates, Options{RequireExactEmail: true})
	assert.Empty(t, withGate)
}

func TestFindDuplicates_StrategySubset(t *testing.T) {
	engine := newTestEngine()

	probe := &models.Donor{FirstName: "Omar", LastName: "Haddad", Email: "omar@example.com"}
	candidates := []models.Donor{
		{ID: "c1", FirstName: "Omar", LastName: "Haddad", Email: "different@example.com"},
	}

	// Restricted to exact_email only, a name-only match must not surface.
	matches := engine.FindDuplicates(probe, candidates, Options{Strategies: []string{StrategyExactEmail}})
	assert.Empty(t, matches)

	matches = engine.FindDuplicates(probe, candidates, Options{Strategies: []string{StrategyFuzzyName}})
	require.Len(t, matches, 1)
	assert.Equal(t, StrategyFuzzyName, matches[0].MatchStrategy)
}

func TestFindDuplicates_SortedAndCapped(t *testing.T) {
	engine := newTestEngine()

	probe := &models.Donor{FirstName: "Ava", LastName: "Nguyen", Email: "ava@example.com"}
	candidates := []models.Donor{
		{ID: "name-only", FirstName: "Eva", LastName: "Nguyen"},
		{ID: "email-too", FirstName: "Eva", LastName: "Nguyen", Email: "ava@example.com"},
		{ID: "name-only-2", FirstName: "Eva", LastName: "Nguyen"},
	}

	matches := engine.FindDuplicates(probe, candidates, Options{})
	require.Len(t, matches, 3)
	assert.Equal(t, "email-too", matches[0].Donor.ID)
	// Equal scores keep input order.
	assert.Equal(t, "name-only", matches[1].Donor.ID)
	assert.Equal(t, "name-only-2", matches[2].Donor.ID)

	for _, m := range matches {
		assert.GreaterOrEqual(t, m.Score, 0.0)
		assert.LessOrEqual(t, m.Score, 1.0)
	}

	capped := engine.FindDuplicates(probe, candidates, Options{MaxResults: 1})
	require.Len(t, capped, 1)
	assert.Equal(t, "email-too", capped[0].Donor.ID)
}

func TestFindDuplicates_Deterministic(t *testing.T) {
	engine := newTestEngine()

	probe := &models.Donor{FirstName: "Noah", LastName: "Baker", Email: "noah@example.com", Phone: "646-555-0123"}
	candidates := []models.Donor{
		{ID: "a", FirstName: "Noah", LastName: "Baker", Phone: "646-555-0123"},
		{ID: "b", FirstName: "Noa", LastName: "Baker", Email: "noah@example.com"},
	}

	first := engine.FindDuplicates(probe, candidates, Options{})
	for i := 0; i < 10; i++ {
		again := engine.FindDuplicates(probe, candidates, Options{})
		require.Equal(t, len(first), len(again))
		for j := range first {
			assert.Equal(t, first[j].Donor.ID, again[j].Donor.ID)
			assert.Equal(t, first[j].Score, again[j].Score)
			assert.Equal(t, first[j].Reasons, again[j].Reasons)
		}
	}
}

func TestBand(t *testing.T) {
	engine := newTestEngine()

	tests := []struct {
		name   string
		score  float64
		want   string
		banded bool
	}{
		{name: "high boundary", score: 0.9, want: models.ConfidenceHigh, banded: true},
		{name: "medium boundary", score: 0.7, want: models.ConfidenceMedium, banded: true},
		{name: "low boundary", score: 0.5, want: models.ConfidenceLow, banded: true},
		{name: "just below low", score: 0.4999, banded: false},
		{name: "perfect", score: 1.0, want: models.ConfidenceHigh, banded: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := engine.Band(tt.score)
			assert.Equal(t, tt.banded, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSchoolConnection(t *testing.T) {
	t.Run("alumni year and donor type both match", func(t *testing.T) {
		a := &models.Donor{DonorType: models.DonorTypeAlumni, AlumniYear: intPtr(2008)}
		b := &models.Donor{DonorType: models.DonorTypeAlumni, AlumniYear: intPtr(2008)}

		result := schoolConnection(a, b)
		require.True(t, result.Applicable)
		assert.InDelta(t, 0.7, result.Score, 0.0001)
	})

	t.Run("donor type matches with different alumni years", func(t *testing.T) {
		a := &models.Donor{DonorType: models.DonorTypeAlumni, AlumniYear: intPtr(2008)}
		b := &models.Donor{DonorType: models.DonorTypeAlumni, AlumniYear: intPtr(2012)}

		// Mean over matched components only; the unmatched alumni year does
		// not halve the donor type score.
		result := schoolConnection(a, b)
		require.True(t, result.Applicable)
		assert.InDelta(t, 0.6, result.Score, 0.0001)
	})

	t.Run("alumni year matches with different donor types", func(t *testing.T) {
		a := &models.Donor{DonorType: models.DonorTypeParent, AlumniYear: intPtr(2008)}
		b := &models.Donor{DonorType: models.DonorTypeStaff, AlumniYear: intPtr(2008)}

		result := schoolConnection(a, b)
		require.True(t, result.Applicable)
		assert.InDelta(t, 0.8, result.Score, 0.0001)
	})

	t.Run("only donor type present", func(t *testing.T) {
		a := &models.Donor{DonorType: models.DonorTypeStaff}
		b := &models.Donor{DonorType: models.DonorTypeStaff}

		result := schoolConnection(a, b)
		require.True(t, result.Applicable)
		assert.InDelta(t, 0.6, result.Score, 0.0001)
	})

	t.Run("nothing shared", func(t *testing.T) {
		a := &models.Donor{DonorType: models.DonorTypeStaff}
		b := &models.Donor{AlumniYear: intPtr(1999)}

		result := schoolConnection(a, b)
		assert.False(t, result.Applicable)
	})
}

func TestNameAddressGates(t *testing.T) {
	t.Run("address below gate", func(t *testing.T) {
		a := &models.Donor{FirstName: "Ivy", LastName: "Stone", Address: "1 Elm St", City: "Albany", Zip: "12207"}
		b := &models.Donor{FirstName: "Ivy", LastName: "Stone", Address: "99 Oak Blvd", City: "Buffalo", Zip: "14201"}

		result := nameAddress(a, b)
		assert.False(t, result.Applicable)
	})

	t.Run("zip only still counts", func(t *testing.T) {
		a := &models.Donor{FirstName: "Ivy", LastName: "Stone", Zip: "12207"}
		b := &models.Donor{FirstName: "Ivy", LastName: "Stone", Zip: "12207"}

		result := nameAddress(a, b)
		require.True(t, result.Applicable)
		assert.InDelta(t, 1.0, result.Score, 0.0001)
	})
}
