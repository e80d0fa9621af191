package growth

import (
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testBusiness() BusinessProfile {
	return BusinessProfile{
		BusinessID:   "coffee-001",
		Name:         "Test Coffee Hub",
		Industry:     "Food & Beverage",
		Region:       "Toronto",
		MainChannels: []string{"email", "in-store"},
	}
}

func testGoal() GrowthGoal {
	return GrowthGoal{Objective: "increase repeat purchases", HorizonWeeks: 6}
}

func TestDiagnose(t *testing.T) {
	tests := []struct {
		name     string
		kpis     KpiSnapshot
		wantFrom string
		wantTo   string
		wantDrop float64
	}{
		{
			name:     "visits to leads",
			kpis:     KpiSnapshot{Visits: 1000, Leads: 100, Signups: 80, Purchases: 60, Revenue: 6000},
			wantFrom: StepVisits,
			wantTo:   StepLeads,
			wantDrop: 0.9,
		},
		{
			name:     "leads to signups",
			kpis:     KpiSnapshot{Visits: 1000, Leads: 800, Signups: 100, Purchases: 80, Revenue: 8000},
			wantFrom: StepLeads,
			wantTo:   StepSignups,
			wantDrop: 0.875,
		},
		{
			name:     "all zero falls back to first transition",
			kpis:     KpiSnapshot{},
			wantFrom: StepVisits,
			wantTo:   StepLeads,
			wantDrop: 1.0,
		},
		{
			name:     "tie keeps funnel order",
			kpis:     KpiSnapshot{Visits: 100, Leads: 50, Signups: 25, Purchases: 20},
			wantFrom: StepVisits,
			wantTo:   StepLeads,
			wantDrop: 0.5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			insight := Diagnose(tt.kpis)
			assert.Equal(t, tt.wantFrom, insight.FromStep)
			assert.Equal(t, tt.wantTo, insight.ToStep)
			assert.Equal(t, tt.wantDrop, insight.DropRate)
		})
	}
}

func TestDiagnose_SignupsToPurchases(t *testing.T) {
	insight := Diagnose(KpiSnapshot{Visits: 1000, Leads: 800, Signups: 600, Purchases: 50, Revenue: 5000})

	assert.Equal(t, StepSignups, insight.FromStep)
	assert.Equal(t, StepPurchases, insight.ToStep)
	assert.InDelta(t, 0.9167, insight.DropRate, 0.0001)
	assert.Contains(t, strings.ToLower(insight.Comment), "signups to purchases")
}

func TestDiagnose_NegativeDenominator(t *testing.T) {
	insight := Diagnose(KpiSnapshot{Visits: -5, Leads: 10, Signups: 5, Purchases: 1})

	assert.Equal(t, StepVisits, insight.FromStep)
	assert.Equal(t, 1.0, insight.DropRate)
}

func TestRevenueOpportunity(t *testing.T) {
	kpis := KpiSnapshot{Visits: 2000, Leads: 350, Signups: 200, Purchases: 80, Revenue: 8400}
	insight := Diagnose(kpis)

	// 2000 * 0.825 lost visitors at $4.20 each
	assert.Equal(t, 6930.0, RevenueOpportunity(kpis, insight))
	assert.Equal(t, 0.0, RevenueOpportunity(KpiSnapshot{}, Diagnose(KpiSnapshot{})))
}

func TestPropose(t *testing.T) {
	tests := []struct {
		name      string
		from, to  string
		wantNames []string
	}{
		{"visits to leads", StepVisits, StepLeads, []string{ExpLeadMagnetLandingPage, ExpReferralProgram}},
		{"leads to signups", StepLeads, StepSignups, []string{ExpOnboardingNurture, ExpLiveDemo}},
		{"signups to purchases", StepSignups, StepPurchases, []string{ExpLoyaltyPunchCard, ExpWinBackCampaign}},
		{"unrecognised pair", "reviews", "visits", []string{ExpLoyaltyPunchCard, ExpWinBackCampaign}},
		{"reversed pair is not matched", StepLeads, StepVisits, []string{ExpLoyaltyPunchCard, ExpWinBackCampaign}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exps := Propose(testBusiness(), testGoal(), FunnelInsight{FromStep: tt.from, ToStep: tt.to})

			names := make([]string, 0, len(exps))
			for _, e := range exps {
				names = append(names, e.Name)
				assert.NotEmpty(t, e.Hypothesis)
				assert.NotEmpty(t, e.Channel)
			}
			assert.Equal(t, tt.wantNames, names)
		})
	}
}

func TestPropose_Deterministic(t *testing.T) {
	insight := FunnelInsight{FromStep: StepLeads, ToStep: StepSignups}
	first := Propose(testBusiness(), testGoal(), insight)
	second := Propose(testBusiness(), testGoal(), insight)
	assert.Equal(t, first, second)
}

func TestFilterFailed(t *testing.T) {
	exps := Propose(testBusiness(), testGoal(), FunnelInsight{FromStep: StepVisits, ToStep: StepLeads})

	t.Run("removes exact matches", func(t *testing.T) {
		kept, removed := FilterFailed(exps, []string{ExpReferralProgram})
		require.Len(t, kept, 1)
		assert.Equal(t, ExpLeadMagnetLandingPage, kept[0].Name)
		assert.Equal(t, 1, removed)
	})

	t.Run("ignores case-different names", func(t *testing.T) {
		kept, removed := FilterFailed(exps, []string{"referral program"})
		assert.Len(t, kept, 2)
		assert.Zero(t, removed)
	})

	t.Run("falls back to unfiltered when everything failed", func(t *testing.T) {
		kept, removed := FilterFailed(exps, []string{ExpReferralProgram, ExpLeadMagnetLandingPage})
		assert.Equal(t, exps, kept)
		assert.Zero(t, removed)
	})

	t.Run("single candidate that failed is kept", func(t *testing.T) {
		only := []GrowthExperiment{{Name: ExpReferralProgram, Channel: "email"}}
		kept, _ := FilterFailed(only, []string{ExpReferralProgram})
		require.NotEmpty(t, Score(kept))
	})

	t.Run("empty memory is a no-op", func(t *testing.T) {
		kept, removed := FilterFailed(exps, nil)
		assert.Equal(t, exps, kept)
		assert.Zero(t, removed)
	})
}

func TestScore_KeywordTable(t *testing.T) {
	tests := []struct {
		name           string
		exp            GrowthExperiment
		wantImpact     int
		wantConfidence int
		wantEffort     int
	}{
		{"referral by email", GrowthExperiment{Name: "Referral Program", Channel: "email"}, 5, 3, 2},
		{"punch card in store", GrowthExperiment{Name: "Loyalty Punch Card", Channel: "in-store"}, 4, 4, 4},
		{"winback spelling", GrowthExperiment{Name: "Winback Blast", Channel: "sms"}, 4, 3, 4},
		{"nurture", GrowthExperiment{Name: "Onboarding Nurture Sequence", Channel: "EMAIL"}, 5, 4, 2},
		{"live demo at events", GrowthExperiment{Name: "Live Demo / Taster Session", Channel: "events"}, 4, 3, 4},
		{"landing page on website", GrowthExperiment{Name: "Lead Magnet Landing Page", Channel: "website"}, 5, 4, 3},
		{"survey online", GrowthExperiment{Name: "Customer Feedback Survey", Channel: "online"}, 3, 5, 3},
		{"first match wins", GrowthExperiment{Name: "Referral Feedback Loop", Channel: "email"}, 5, 3, 2},
		{"defaults", GrowthExperiment{Name: "Billboard", Channel: "outdoor"}, DefaultImpact, DefaultConfidence, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scored := Score([]GrowthExperiment{tt.exp})
			require.Len(t, scored, 1)
			s := scored[0]
			assert.Equal(t, tt.wantImpact, s.Impact)
			assert.Equal(t, tt.wantConfidence, s.Confidence)
			assert.Equal(t, tt.wantEffort, s.Effort)
			assert.Equal(t, float64(s.Impact*s.Confidence)/float64(s.Effort), s.PriorityScore)
		})
	}
}

func TestScore_OrderingAndIdempotence(t *testing.T) {
	var all []GrowthExperiment
	for _, pair := range [][2]string{{StepVisits, StepLeads}, {StepLeads, StepSignups}, {StepSignups, StepPurchases}} {
		all = append(all, Propose(testBusiness(), testGoal(), FunnelInsight{FromStep: pair[0], ToStep: pair[1]})...)
	}

	first := Score(all)
	second := Score(all)
	assert.Equal(t, first, second)

	assert.True(t, sort.SliceIsSorted(first, func(i, j int) bool {
		return first[i].PriorityScore > first[j].PriorityScore
	}))
	for _, s := range first {
		assert.Contains(t, []int{2, 3, 4}, s.Effort)
	}
}

func TestScore_StableForEqualScores(t *testing.T) {
	exps := []GrowthExperiment{
		{Name: "Alpha", Channel: "print"},
		{Name: "Beta", Channel: "radio"},
		{Name: "Gamma", Channel: "tv"},
	}
	scored := Score(exps)
	require.Len(t, scored, 3)
	assert.Equal(t, "Alpha", scored[0].Experiment.Name)
	assert.Equal(t, "Beta", scored[1].Experiment.Name)
	assert.Equal(t, "Gamma", scored[2].Experiment.Name)
}

func TestSelectWinner(t *testing.T) {
	scored := Score(Propose(testBusiness(), testGoal(), FunnelInsight{FromStep: StepVisits, ToStep: StepLeads}))

	winner, err := SelectWinner(scored)
	require.NoError(t, err)
	assert.Equal(t, scored[0], winner)
	assert.Equal(t, ExpReferralProgram, winner.Experiment.Name)

	_, err = SelectWinner(nil)
	assert.ErrorIs(t, err, ErrNoCandidates)
}

func TestGenerateCopy(t *testing.T) {
	business := testBusiness()
	goal := testGoal()

	t.Run("email", func(t *testing.T) {
		chosen := ScoredExperiment{Experiment: GrowthExperiment{Name: "Win-Back Campaign", Channel: "email"}}
		text := GenerateCopy(business, goal, chosen)

		lines := strings.Split(text, "\n")
		assert.True(t, strings.HasPrefix(lines[0], "Subject:"))
		assert.Contains(t, text, business.Name)
		assert.Contains(t, text, "Win-Back Campaign")
		assert.Contains(t, text, goal.Objective)
	})

	t.Run("non-email", func(t *testing.T) {
		chosen := ScoredExperiment{Experiment: GrowthExperiment{Name: "Loyalty Punch Card", Channel: "in-store"}}
		text := GenerateCopy(business, goal, chosen)

		assert.NotContains(t, text, "Subject:")
		assert.Contains(t, text, business.Name)
		assert.Contains(t, text, "Loyalty Punch Card")
		assert.Contains(t, text, "in-store")
		assert.Equal(t, 1, len(strings.Split(text, "\n")))
	})
}

func TestQualityWarnings(t *testing.T) {
	t.Run("clean request", func(t *testing.T) {
		req := PlanRequest{
			KPIs: KpiSnapshot{Visits: 100, Leads: 50, Signups: 20, Purchases: 10},
			Goal: GrowthGoal{HorizonWeeks: 4},
		}
		assert.Empty(t, QualityWarnings(req))
	})

	t.Run("impossible ratios and negatives", func(t *testing.T) {
		bad := -0.5
		req := PlanRequest{
			KPIs: KpiSnapshot{Visits: 10, Leads: 20, Signups: 30, Purchases: 40, Revenue: -1, RetentionRate: &bad},
			Goal: GrowthGoal{HorizonWeeks: 0},
		}
		warnings := QualityWarnings(req)
		assert.Len(t, warnings, 6)
		assert.Contains(t, warnings, "Negative values detected in KPIs")
		assert.Contains(t, warnings, "Impossible: 40 purchases > 30 signups")
	})
}

func TestPlanRequest_Normalize(t *testing.T) {
	req := PlanRequest{}
	req.Normalize()

	assert.Equal(t, DefaultPeriod, req.KPIs.Period)
	assert.Equal(t, DefaultHorizonWeeks, req.Goal.HorizonWeeks)
	assert.NotNil(t, req.BusinessProfile.MainChannels)
}
