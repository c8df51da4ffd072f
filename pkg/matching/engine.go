package matching

import (
	"sort"

	"github.com/Gobusters/ectolinq"

	"github.com/itaisigler-a11y/school-in-the-square-fundraising-sub002/pkg/models"
)

// Thresholds band an aggregate score into confidence levels. Scores below
// Low are discarded entirely.
type Thresholds struct {
	High   float64
	Medium float64
	Low    float64
}

// DefaultThresholds returns the standard confidence bands
func DefaultThresholds() Thresholds {
	return Thresholds{High: 0.9, Medium: 0.7, Low: 0.5}
}

// DefaultWeights returns the standard strategy weights. A weight of zero
// disables the strategy.
func DefaultWeights() map[string]float64 {
	return map[string]float64{
		StrategyExactEmail:       3.0,
		StrategyExactPhone:       2.5,
		StrategyNameAddress:      2.0,
		StrategyNamePhone:        2.2,
		StrategyFuzzyName:        1.5,
		StrategyStudentName:      2.0,
		StrategySchoolConnection: 1.5,
	}
}

// Options narrows a single duplicate check
type Options struct {
	// Strategies restricts the check to a subset; empty means all
	Strategies []string
	// RequireExactEmail drops any match whose emails did not match exactly
	RequireExactEmail bool
	// RequireExactPhone drops any match whose phones did not match exactly
	RequireExactPhone bool
	// MaxResults caps the returned matches; zero means no cap
	MaxResults int
}

// Match is one scored duplicate candidate
type Match struct {
	Donor         *models.Donor
	Score         float64
	Confidence    string
	MatchStrategy string
	Reasons       []string
}

// Engine combines strategy verdicts into banded duplicate matches
type Engine struct {
	weights    map[string]float64
	thresholds Thresholds
}

// NewEngine builds an engine. Nil weights fall back to the defaults; weights
// for unknown strategies are ignored.
func NewEngine(weights map[string]float64, thresholds Thresholds) *Engine {
	if weights == nil {
		weights = DefaultWeights()
	}
	return &Engine{weights: weights, thresholds: thresholds}
}

// FindDuplicates scores the probe against every candidate and returns the
// matches at or above the low threshold, highest score first. Candidates
// sharing the probe's ID are skipped so a saved record never matches itself.
func (e *Engine) FindDuplicates(probe *models.Donor, candidates []models.Donor, opts Options) []Match {
	active := e.activeStrategies(opts.Strategies)

	matches := make([]Match, 0, len(candidates))
	for i := range candidates {
		candidate := &candidates[i]
		if probe.ID != "" && candidate.ID == probe.ID {
			continue
		}
		match, ok := e.scorePair(probe, candidate, active, opts)
		if !ok {
			continue
		}
		matches = append(matches, match)
	}

	// Stable sort keeps candidate input order for equal scores, which makes
	// results reproducible run to run.
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})

	if opts.MaxResults > 0 && len(matches) > opts.MaxResults {
		matches = matches[:opts.MaxResults]
	}
	return matches
}

// ScorePair scores a single pair with all configured strategies. Used by
// review tooling to explain a queued candidate.
func (e *Engine) ScorePair(probe, candidate *models.Donor, opts Options) (Match, bool) {
	return e.scorePair(probe, candidate, e.activeStrategies(opts.Strategies), opts)
}

func (e *Engine) scorePair(probe, candidate *models.Donor, active []string, opts Options) (Match, bool) {
	var (
		weightSum, scoreSum float64
		topContribution     float64
		topStrategy         string
		reasons             []string
		emailMatched        bool
		phoneMatched        bool
	)

	for _, name := range active {
		weight := e.weights[name]
		if weight <= 0 {
			continue
		}
		result := strategies[name](probe, candidate)
		if !result.Applicable {
			continue
		}

		scoreSum += result.Score * weight
		weightSum += weight
		reasons = append(reasons, result.Reasons...)

		if contribution := result.Score * weight; contribution > topContribution {
			topContribution = contribution
			topStrategy = name
		}
		// The require gates demand an actual match, not just both values
		// being present.
		switch name {
		case StrategyExactEmail:
			emailMatched = result.Score == 1.0
		case StrategyExactPhone:
			phoneMatched = result.Score == 1.0
		}
	}

	if weightSum == 0 {
		return Match{}, false
	}
	if opts.RequireExactEmail && !emailMatched {
		return Match{}, false
	}
	if opts.RequireExactPhone && !phoneMatched {
		return Match{}, false
	}

	score := scoreSum / weightSum
	confidence, ok := e.Band(score)
	if !ok {
		return Match{}, false
	}

	return Match{
		Donor:         candidate,
		Score:         score,
		Confidence:    confidence,
		MatchStrategy: topStrategy,
		Reasons:       reasons,
	}, true
}

// Band maps a score onto a confidence band. The second return is false for
// scores below the low threshold.
func (e *Engine) Band(score float64) (string, bool) {
	switch {
	case score >= e.thresholds.High:
		return models.ConfidenceHigh, true
	case score >= e.thresholds.Medium:
		return models.ConfidenceMedium, true
	case score >= e.thresholds.Low:
		return models.ConfidenceLow, true
	default:
		return "", false
	}
}

// activeStrategies resolves the requested subset against the registry,
// preserving canonical order
func (e *Engine) activeStrategies(requested []string) []string {
	if len(requested) == 0 {
		return strategyOrder
	}
	return ectolinq.Filter(strategyOrder, func(name string) bool {
		return ectolinq.Contains(requested, name)
	})
}
