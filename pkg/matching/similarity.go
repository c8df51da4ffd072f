// Package matching scores pairs of donor records for duplicate detection.
// A registry of weighted strategies each produce a score in [0,1]; the
// engine combines applicable strategies into a weighted mean and bands the
// result into high/medium/low confidence.
package matching

import (
	"github.com/itaisigler-a11y/school-in-the-square-fundraising-sub002/pkg/models"
	"github.com/itaisigler-a11y/school-in-the-square-fundraising-sub002/pkg/normalizers"
	"github.com/itaisigler-a11y/school-in-the-square-fundraising-sub002/pkg/similarity"
)

// nameSimilarity compares first and last names after name normalization.
// Last names carry more signal than first names.
func nameSimilarity(a, b *models.Donor) float64 {
	first := similarity.Ratio(normalizers.NormalizeName(a.FirstName), normalizers.NormalizeName(b.FirstName))
	last := similarity.Ratio(normalizers.NormalizeName(a.LastName), normalizers.NormalizeName(b.LastName))
	return 0.4*first + 0.6*last
}

// addressSimilarity compares street, city and zip. Street is fuzzy, city and
// zip are exact after normalization. Components missing on either side drop
// out and the remaining weights renormalize, so two records that only share
// a zip code can still score 1.0 on that component alone.
func addressSimilarity(a, b *models.Donor) (float64, bool) {
	type component struct {
		weight float64
		score  float64
		present bool
	}

	components := []component{
		{
			weight:  0.4,
			present: a.Address != "" && b.Address != "",
			score:   similarity.Ratio(normalizers.NormalizeAddress(a.Address), normalizers.NormalizeAddress(b.Address)),
		},
		{
			weight:  0.3,
			present: a.City != "" && b.City != "",
			score:   exactScore(normalizers.NormalizeName(a.City) == normalizers.NormalizeName(b.City)),
		},
		{
			weight:  0.3,
			present: a.Zip != "" && b.Zip != "",
			score:   exactScore(normalizers.NormalizeZipCode(a.Zip) == normalizers.NormalizeZipCode(b.Zip)),
		},
	}

	var weightSum, scoreSum float64
	for _, c := range components {
		if !c.present {
			continue
		}
		weightSum += c.weight
		scoreSum += c.weight * c.score
	}
	if weightSum == 0 {
		return 0, false
	}
	return scoreSum / weightSum, true
}

func exactScore(equal bool) float64 {
	if equal {
		return 1.0
	}
	return 0.0
}
