package growth

// Catalog experiment names.
const (
	ExpLeadMagnetLandingPage = "Lead Magnet Landing Page"
	ExpReferralProgram       = "Referral Program"
	ExpOnboardingNurture     = "Onboarding Nurture Sequence"
	ExpLiveDemo              = "Live Demo / Taster Session"
	ExpLoyaltyPunchCard      = "Loyalty Punch Card"
	ExpWinBackCampaign       = "Win-Back Campaign"
	ExpFeedbackSurvey        = "Customer Feedback Survey"
)

// Propose maps a bottleneck to its rule-based candidate experiments.
//
// Matching is on the exact (from, to) pair. Anything other than the first two
// funnel transitions falls through to the retention set. The result is the
// same for identical inputs and is never empty.
func Propose(business BusinessProfile, goal GrowthGoal, insight FunnelInsight) []GrowthExperiment {
	var exps []GrowthExperiment

	switch {
	case insight.FromStep == StepVisits && insight.ToStep == StepLeads:
		exps = append(exps,
			GrowthExperiment{
				Name:    ExpLeadMagnetLandingPage,
				Channel: "website",
				Hypothesis: "A focused landing page with a clear lead magnet will " +
					"convert more visitors into captured leads.",
				Description: "Launch a simple landing page offering a freebie or " +
					"discount in exchange for email sign-up.",
			},
			GrowthExperiment{
				Name:    ExpReferralProgram,
				Channel: "email",
				Hypothesis: "Existing customers will refer similar customers when given " +
					"a clear, simple reward.",
				Description: "Introduce a 'Give $5, Get $5' referral link in receipts " +
					"and follow-up emails.",
			},
		)
	case insight.FromStep == StepLeads && insight.ToStep == StepSignups:
		exps = append(exps,
			GrowthExperiment{
				Name:    ExpOnboardingNurture,
				Channel: "email",
				Hypothesis: "A short, value-packed email sequence will turn more leads " +
					"into account signups.",
			},
			GrowthExperiment{
				Name:    ExpLiveDemo,
				Channel: "events",
				Hypothesis: "Low-friction live demos reduce uncertainty and increase " +
					"signup conversions.",
			},
		)
	default:
		exps = append(exps,
			GrowthExperiment{
				Name:    ExpLoyaltyPunchCard,
				Channel: "in-store",
				Hypothesis: "Rewarding repeat visits with a punch card will increase " +
					"purchase frequency.",
			},
			GrowthExperiment{
				Name:    ExpWinBackCampaign,
				Channel: "email",
				Hypothesis: "Targeted offers to lapsed customers will reactivate a " +
					"portion of them.",
			},
		)
	}

	if len(exps) == 0 {
		exps = append(exps, GrowthExperiment{
			Name:    ExpFeedbackSurvey,
			Channel: "email",
			Hypothesis: "Understanding customer friction points will reveal the " +
				"highest-leverage growth opportunities.",
		})
	}

	return exps
}

// FilterFailed removes experiments whose name exactly matches a failed name.
//
// If every candidate would be removed the unfiltered slice is returned and
// removed is 0, so callers never receive an empty candidate list from a
// non-empty input.
func FilterFailed(exps []GrowthExperiment, failed []string) (kept []GrowthExperiment, removed int) {
	if len(failed) == 0 || len(exps) == 0 {
		return exps, 0
	}

	blocked := make(map[string]struct{}, len(failed))
	for _, name := range failed {
		blocked[name] = struct{}{}
	}

	kept = make([]GrowthExperiment, 0, len(exps))
	for _, e := range exps {
		if _, ok := blocked[e.Name]; ok {
			continue
		}
		kept = append(kept, e)
	}

	if len(kept) == 0 {
		return exps, 0
	}
	return kept, len(exps) - len(kept)
}
