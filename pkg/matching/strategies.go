package matching

import (
	"fmt"

	"github.com/itaisigler-a11y/school-in-the-square-fundraising-sub002/pkg/models"
	"github.com/itaisigler-a11y/school-in-the-square-fundraising-sub002/pkg/normalizers"
	"github.com/itaisigler-a11y/school-in-the-square-fundraising-sub002/pkg/similarity"
)

// Strategy name constants
const (
	StrategyExactEmail       = "exact_email"
	StrategyExactPhone       = "exact_phone"
	StrategyNameAddress      = "name_address"
	StrategyNamePhone        = "name_phone"
	StrategyFuzzyName        = "fuzzy_name"
	StrategyStudentName      = "student_name"
	StrategySchoolConnection = "school_connection"
)

// StrategyResult is a single strategy's verdict on a pair. Applicable is
// false when the strategy has nothing to say (missing inputs or below its
// gate); inapplicable strategies are excluded from the weighted mean.
type StrategyResult struct {
	Score      float64
	Reasons    []string
	Applicable bool
}

// StrategyFunc scores one candidate against the probe record
type StrategyFunc func(probe, candidate *models.Donor) StrategyResult

var notApplicable = StrategyResult{}

// strategyOrder fixes evaluation order so reason lists and tie-breaks are
// deterministic across runs
var strategyOrder = []string{
	StrategyExactEmail,
	StrategyExactPhone,
	StrategyNameAddress,
	StrategyNamePhone,
	StrategyFuzzyName,
	StrategyStudentName,
	StrategySchoolConnection,
}

var strategies = map[string]StrategyFunc{
	StrategyExactEmail:       exactEmail,
	StrategyExactPhone:       exactPhone,
	StrategyNameAddress:      nameAddress,
	StrategyNamePhone:        namePhone,
	StrategyFuzzyName:        fuzzyName,
	StrategyStudentName:      studentName,
	StrategySchoolConnection: schoolConnection,
}

func exactEmail(a, b *models.Donor) StrategyResult {
	ea := normalizers.NormalizeEmail(a.Email)
	eb := normalizers.NormalizeEmail(b.Email)
	if ea == "" || eb == "" {
		return notApplicable
	}
	if ea != eb {
		// Both sides have an email that disagrees. The strategy stays in
		// the mean at zero so the mismatch dilutes whatever else matches.
		return StrategyResult{Applicable: true}
	}
	return StrategyResult{
		Score:      1.0,
		Reasons:    []string{"email addresses match exactly"},
		Applicable: true,
	}
}

func exactPhone(a, b *models.Donor) StrategyResult {
	pa := normalizers.NormalizePhone(a.Phone)
	pb := normalizers.NormalizePhone(b.Phone)
	if pa == "" || pb == "" {
		return notApplicable
	}
	if pa != pb {
		return StrategyResult{Applicable: true}
	}
	return StrategyResult{
		Score:      1.0,
		Reasons:    []string{"phone numbers match exactly"},
		Applicable: true,
	}
}

func nameAddress(a, b *models.Donor) StrategyResult {
	nameSim := nameSimilarity(a, b)
	if nameSim < 0.8 {
		return notApplicable
	}
	addrSim, ok := addressSimilarity(a, b)
	if !ok || addrSim < 0.7 {
		return notApplicable
	}
	return StrategyResult{
		Score:      0.6*nameSim + 0.4*addrSim,
		Reasons:    []string{fmt.Sprintf("similar name (%.0f%%) at matching address (%.0f%%)", nameSim*100, addrSim*100)},
		Applicable: true,
	}
}

func namePhone(a, b *models.Donor) StrategyResult {
	pa := normalizers.NormalizePhone(a.Phone)
	pb := normalizers.NormalizePhone(b.Phone)
	if pa == "" || pb == "" || pa != pb {
		return notApplicable
	}
	nameSim := nameSimilarity(a, b)
	if nameSim < 0.7 {
		return notApplicable
	}
	return StrategyResult{
		Score:      0.5*nameSim + 0.5,
		Reasons:    []string{fmt.Sprintf("similar name (%.0f%%) with matching phone", nameSim*100)},
		Applicable: true,
	}
}

func fuzzyName(a, b *models.Donor) StrategyResult {
	// Two blank names are trivially identical; require at least one name
	// part on each side before comparing.
	if a.FirstName == "" && a.LastName == "" {
		return notApplicable
	}
	if b.FirstName == "" && b.LastName == "" {
		return notApplicable
	}
	nameSim := nameSimilarity(a, b)
	if nameSim < 0.8 {
		return notApplicable
	}
	return StrategyResult{
		Score:      nameSim,
		Reasons:    []string{fmt.Sprintf("names are %.0f%% similar", nameSim*100)},
		Applicable: true,
	}
}

func studentName(a, b *models.Donor) StrategyResult {
	sa := normalizers.NormalizeName(a.StudentName)
	sb := normalizers.NormalizeName(b.StudentName)
	if sa == "" || sb == "" {
		return notApplicable
	}
	sim := similarity.Ratio(sa, sb)
	if sim < 0.9 {
		return notApplicable
	}
	return StrategyResult{
		Score:      sim,
		Reasons:    []string{fmt.Sprintf("student names are %.0f%% similar", sim*100)},
		Applicable: true,
	}
}

func schoolConnection(a, b *models.Donor) StrategyResult {
	var total float64
	var present, matched int
	var reasons []string

	if a.AlumniYear != nil && b.AlumniYear != nil {
		present++
		if *a.AlumniYear == *b.AlumniYear {
			matched++
			total += 0.8
			reasons = append(reasons, fmt.Sprintf("same alumni year (%d)", *a.AlumniYear))
		}
	}
	if a.DonorType != "" && b.DonorType != "" {
		present++
		if a.DonorType == b.DonorType {
			matched++
			total += 0.6
			reasons = append(reasons, fmt.Sprintf("same donor type (%s)", a.DonorType))
		}
	}
	if present == 0 || matched == 0 {
		return notApplicable
	}
	// Mean over the components that matched; a component that merely exists
	// on both sides does not drag the score down.
	return StrategyResult{
		Score:      total / float64(matched),
		Reasons:    reasons,
		Applicable: true,
	}
}
