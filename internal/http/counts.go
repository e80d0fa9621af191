package http

import (
	"github.com/CrillyPienaah/sme-growth-copilot/internal/memory"
	"github.com/CrillyPienaah/sme-growth-copilot/internal/store"
)

// Summarize counts a business's plans and its experiments by status.
//
// plans must be ordered oldest first, as store.Repository.ListPlans returns
// them. Every known status appears in the counts, zero or not.
func Summarize(businessID string, plans []*store.PlanRecord, mem *memory.Record) BusinessSummary {
	sum := BusinessSummary{
		BusinessID: businessID,
		Plans:      len(plans),
		Experiments: map[string]int{
			memory.StatusPlanned:           0,
			memory.StatusRunning:           0,
			memory.StatusSucceeded:         0,
			memory.StatusFailed:            0,
			memory.StatusCanceledLowImpact: 0,
			memory.StatusNoImpact:          0,
		},
		FailedExperiments: []string{},
	}

	for _, p := range plans {
		for _, e := range p.Experiments {
			sum.Experiments[memory.NormalizeStatus(e.Status)]++
		}
	}
	if n := len(plans); n > 0 {
		latest := plans[n-1]
		sum.LatestPlanID = latest.ID
		sum.LatestChosen = latest.Plan.ChosenExperiment.Experiment.Name
	}
	if mem != nil && mem.FailedExperiments != nil {
		sum.FailedExperiments = mem.FailedExperiments
	}
	return sum
}
