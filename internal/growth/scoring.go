package growth

import (
	"errors"
	"sort"
	"strings"
)

// ErrNoCandidates is returned when a winner is requested from an empty list.
// Reaching it means an upstream stage broke its non-empty guarantee.
var ErrNoCandidates = errors.New("no scored experiments to select from")

// Default ICE values for names that match no keyword rule.
const (
	DefaultImpact     = 4
	DefaultConfidence = 3
)

// iceRule assigns impact and confidence when any keyword appears in a name.
type iceRule struct {
	keywords   []string
	impact     int
	confidence int
}

// iceRules is evaluated in order; the first matching rule wins.
var iceRules = []iceRule{
	{keywords: []string{"referral"}, impact: 5, confidence: 3},
	{keywords: []string{"loyalty", "punch card"}, impact: 4, confidence: 4},
	{keywords: []string{"win-back", "winback"}, impact: 4, confidence: 3},
	{keywords: []string{"onboarding", "nurture"}, impact: 5, confidence: 4},
	{keywords: []string{"demo", "live"}, impact: 4, confidence: 3},
	{keywords: []string{"lead magnet", "landing page"}, impact: 5, confidence: 4},
	{keywords: []string{"feedback", "survey"}, impact: 3, confidence: 5},
}

// impactConfidence looks up ICE impact and confidence for an experiment name.
func impactConfidence(name string) (int, int) {
	lower := strings.ToLower(name)
	for _, r := range iceRules {
		for _, kw := range r.keywords {
			if strings.Contains(lower, kw) {
				return r.impact, r.confidence
			}
		}
	}
	return DefaultImpact, DefaultConfidence
}

// effortFor maps a channel to effort: email < website/online < everything else.
func effortFor(channel string) int {
	switch strings.ToLower(channel) {
	case "email":
		return 2
	case "website", "online":
		return 3
	default:
		return 4
	}
}

// Score assigns ICE values to each experiment and ranks them by priority
// score, highest first. Equal scores keep their input order.
func Score(exps []GrowthExperiment) []ScoredExperiment {
	scored := make([]ScoredExperiment, 0, len(exps))
	for _, e := range exps {
		impact, confidence := impactConfidence(e.Name)
		effort := effortFor(e.Channel)
		scored = append(scored, ScoredExperiment{
			Experiment:    e,
			Impact:        impact,
			Confidence:    confidence,
			Effort:        effort,
			PriorityScore: float64(impact*confidence) / float64(effort),
		})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].PriorityScore > scored[j].PriorityScore
	})
	return scored
}

// SelectWinner returns the top of an already ranked list.
func SelectWinner(ranked []ScoredExperiment) (ScoredExperiment, error) {
	if len(ranked) == 0 {
		return ScoredExperiment{}, ErrNoCandidates
	}
	return ranked[0], nil
}
