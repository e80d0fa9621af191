package store

import (
	"context"
	"errors"
	"time"

	"github.com/CrillyPienaah/sme-growth-copilot/internal/growth"
	"github.com/CrillyPienaah/sme-growth-copilot/internal/memory"
)

var (
	// ErrExperimentNotFound is returned for an unknown experiment id.
	ErrExperimentNotFound = errors.New("experiment not found")

	// ErrInvalidStatus is returned for an empty experiment status.
	ErrInvalidStatus = errors.New("experiment status is required")

	// ErrUnknownDriver is returned by Open for an unsupported driver.
	ErrUnknownDriver = errors.New("unknown storage driver")
)

// Repository persists plans, experiment outcomes and strategy memory.
type Repository interface {
	memory.Store

	// SavePlan stores a plan with its request and registers the business.
	// Every experiment of the plan receives an id and starts PLANNED.
	SavePlan(ctx context.Context, req growth.PlanRequest, plan growth.GrowthPlan) (*PlanRecord, error)

	// ListPlans returns a business's plans, oldest first.
	ListPlans(ctx context.Context, businessID string) ([]*PlanRecord, error)

	// Experiment returns one stored experiment.
	Experiment(ctx context.Context, id int64) (*ExperimentRecord, error)

	// RecordOutcome stores an experiment's outcome. A failure status also
	// adds the experiment to its business's strategy memory in the same
	// write; added reports whether memory gained the name. On error neither
	// change is kept.
	RecordOutcome(ctx context.Context, id int64, status string, observed *float64) (exp *ExperimentRecord, added bool, err error)

	// Close releases resources.
	Close() error
}

// PlanRecord is a stored plan.
type PlanRecord struct {
	ID          string              `json:"id"`
	BusinessID  string              `json:"business_id"`
	TraceID     string              `json:"trace_id"`
	CreatedAt   time.Time           `json:"created_at"`
	Request     growth.PlanRequest  `json:"request"`
	Plan        growth.GrowthPlan   `json:"plan"`
	Experiments []*ExperimentRecord `json:"experiments"`
}

// ExperimentRecord is one experiment of a stored plan and its outcome.
type ExperimentRecord struct {
	ID             int64     `json:"id"`
	PlanID         string    `json:"plan_id"`
	BusinessID     string    `json:"business_id"`
	Name           string    `json:"name"`
	Channel        string    `json:"channel"`
	PriorityScore  float64   `json:"priority_score"`
	Chosen         bool      `json:"chosen"`
	Status         string    `json:"status"`
	ObservedResult *float64  `json:"observed_result,omitempty"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// experimentRecords builds the initial experiment rows for a plan.
func experimentRecords(planID string, plan growth.GrowthPlan, now time.Time) []*ExperimentRecord {
	out := make([]*ExperimentRecord, 0, len(plan.Experiments))
	for _, se := range plan.Experiments {
		out = append(out, &ExperimentRecord{
			PlanID:        planID,
			BusinessID:    plan.BusinessProfile.BusinessID,
			Name:          se.Experiment.Name,
			Channel:       se.Experiment.Channel,
			PriorityScore: se.PriorityScore,
			Chosen:        se.Experiment.Name == plan.ChosenExperiment.Experiment.Name,
			Status:        memory.StatusPlanned,
			UpdatedAt:     now,
		})
	}
	return out
}

func validatePlan(plan growth.GrowthPlan) error {
	if plan.BusinessProfile.BusinessID == "" {
		return memory.ErrEmptyBusinessID
	}
	return nil
}
