package http

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/CrillyPienaah/sme-growth-copilot/internal/growth"
	"github.com/CrillyPienaah/sme-growth-copilot/internal/memory"
	"github.com/CrillyPienaah/sme-growth-copilot/internal/store"
)

func TestSummarize(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		sum := Summarize("coffee-001", nil, nil)
		assert.Equal(t, 0, sum.Plans)
		assert.Empty(t, sum.LatestPlanID)
		assert.Equal(t, []string{}, sum.FailedExperiments)
		assert.Len(t, sum.Experiments, 6)
	})

	t.Run("latest plan and status counts", func(t *testing.T) {
		plan := func(id, chosen string, statuses ...string) *store.PlanRecord {
			p := &store.PlanRecord{ID: id}
			p.Plan.ChosenExperiment.Experiment.Name = chosen
			for _, s := range statuses {
				p.Experiments = append(p.Experiments, &store.ExperimentRecord{Status: s})
			}
			return p
		}
		plans := []*store.PlanRecord{
			plan("p1", growth.ExpReferralProgram, memory.StatusFailed, memory.StatusPlanned),
			plan("p2", growth.ExpLeadMagnetLandingPage, "running", memory.StatusPlanned),
		}
		mem := &memory.Record{BusinessID: "coffee-001", FailedExperiments: []string{growth.ExpReferralProgram}}

		sum := Summarize("coffee-001", plans, mem)

		assert.Equal(t, 2, sum.Plans)
		assert.Equal(t, "p2", sum.LatestPlanID)
		assert.Equal(t, growth.ExpLeadMagnetLandingPage, sum.LatestChosen)
		assert.Equal(t, 2, sum.Experiments[memory.StatusPlanned])
		assert.Equal(t, 1, sum.Experiments[memory.StatusRunning])
		assert.Equal(t, 1, sum.Experiments[memory.StatusFailed])
		assert.Equal(t, []string{growth.ExpReferralProgram}, sum.FailedExperiments)
	})
}
