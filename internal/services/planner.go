package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/CrillyPienaah/sme-growth-copilot/internal/events"
	"github.com/CrillyPienaah/sme-growth-copilot/internal/growth"
	"github.com/CrillyPienaah/sme-growth-copilot/internal/logging"
	"github.com/CrillyPienaah/sme-growth-copilot/internal/memory"
	"github.com/CrillyPienaah/sme-growth-copilot/internal/pipeline"
	"github.com/CrillyPienaah/sme-growth-copilot/internal/store"
)

// ErrInvalidRequest is returned for plan requests that cannot be stored.
var ErrInvalidRequest = errors.New("invalid plan request")

// PlanResult is a stored plan with its run record.
type PlanResult struct {
	PlanID      string                    `json:"plan_id"`
	Plan        growth.GrowthPlan         `json:"plan"`
	Experiments []*store.ExperimentRecord `json:"experiments"`
	Metadata    map[string]any            `json:"metadata"`
	Audit       []pipeline.AuditEntry     `json:"audit"`
}

// OutcomeResult reports an experiment update and whether strategy memory
// changed because of it.
type OutcomeResult struct {
	Experiment    *store.ExperimentRecord `json:"experiment"`
	MemoryUpdated bool                    `json:"memory_updated"`
}

// Planner runs the pipeline and keeps plans, outcomes and strategy memory in
// step.
type Planner struct {
	orch   *pipeline.Orchestrator
	repo   store.Repository
	memory memory.Service
	events events.Publisher
	logger *logging.Logger
}

// PlannerOptions configures a Planner. Repository, Memory and Orchestrator
// are required.
type PlannerOptions struct {
	Orchestrator *pipeline.Orchestrator
	Repository   store.Repository
	Memory       memory.Service
	Events       events.Publisher
	Logger       *logging.Logger
}

// NewPlanner creates a Planner.
func NewPlanner(opts PlannerOptions) (*Planner, error) {
	if opts.Orchestrator == nil {
		return nil, errors.New("orchestrator is required")
	}
	if opts.Repository == nil {
		return nil, errors.New("repository is required")
	}
	if opts.Memory == nil {
		return nil, errors.New("memory service is required")
	}
	if opts.Events == nil {
		opts.Events = events.Nop{}
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}
	return &Planner{
		orch:   opts.Orchestrator,
		repo:   opts.Repository,
		memory: opts.Memory,
		events: opts.Events,
		logger: opts.Logger,
	}, nil
}

// CreatePlan runs the pipeline for req, stores the plan and announces it.
//
// A pipeline failure is returned as is, alongside the partial run record so
// callers can show the audit trail. Event delivery failures are logged only.
func (p *Planner) CreatePlan(ctx context.Context, req growth.PlanRequest) (*PlanResult, error) {
	if strings.TrimSpace(req.BusinessProfile.BusinessID) == "" {
		return nil, fmt.Errorf("%w: business_profile.business_id is required", ErrInvalidRequest)
	}

	res, err := p.orch.Run(ctx, req)
	if err != nil {
		return runResult(res), err
	}

	ctx = logging.WithRunTrace(ctx, res.Plan.TraceID)
	ctx = logging.WithBusinessID(ctx, req.BusinessProfile.BusinessID)

	rec, err := p.repo.SavePlan(ctx, req, res.Plan)
	if err != nil {
		return runResult(res), fmt.Errorf("saving plan: %w", err)
	}

	err = p.events.PlanCreated(ctx, events.PlanCreated{
		PlanID:           rec.ID,
		BusinessID:       rec.BusinessID,
		TraceID:          rec.TraceID,
		ChosenExperiment: res.Plan.ChosenExperiment.Experiment.Name,
		PriorityScore:    res.Plan.ChosenExperiment.PriorityScore,
		Experiments:      len(res.Plan.Experiments),
		OccurredAt:       rec.CreatedAt,
	})
	if err != nil {
		p.logger.Warn(ctx, "plan event not delivered", zap.String("plan_id", rec.ID), zap.Error(err))
	}

	p.logger.Info(ctx, "plan created",
		zap.String("plan_id", rec.ID),
		zap.String("chosen", res.Plan.ChosenExperiment.Experiment.Name))

	out := runResult(res)
	out.PlanID = rec.ID
	out.Experiments = rec.Experiments
	return out, nil
}

// ListPlans returns the stored plans of a business, oldest first.
func (p *Planner) ListPlans(ctx context.Context, businessID string) ([]*store.PlanRecord, error) {
	if strings.TrimSpace(businessID) == "" {
		return nil, memory.ErrEmptyBusinessID
	}
	return p.repo.ListPlans(ctx, businessID)
}

// Memory returns a business's strategy memory.
func (p *Planner) Memory(ctx context.Context, businessID string) (*memory.Record, error) {
	return p.memory.Failures(ctx, businessID)
}

// RecordFailure marks an experiment as failed for a business.
func (p *Planner) RecordFailure(ctx context.Context, businessID, experiment string) (*memory.Record, error) {
	return p.memory.RecordFailure(ctx, businessID, experiment)
}

// UpdateExperimentResult stores an outcome for a stored experiment. Failure
// statuses also add the experiment to the business's strategy memory; both
// changes are written together or not at all.
func (p *Planner) UpdateExperimentResult(ctx context.Context, id int64, status string, observed *float64) (*OutcomeResult, error) {
	var exp *store.ExperimentRecord
	out, err := p.memory.RecordOutcome(ctx, func(ctx context.Context) (memory.Outcome, error) {
		rec, added, err := p.repo.RecordOutcome(ctx, id, status, observed)
		if err != nil {
			return memory.Outcome{}, err
		}
		exp = rec
		return memory.Outcome{
			BusinessID: rec.BusinessID,
			Experiment: rec.Name,
			Status:     rec.Status,
			Added:      added,
		}, nil
	})
	if err != nil {
		return nil, err
	}

	updated := memory.IsFailureStatus(out.Status)
	ctx = logging.WithBusinessID(ctx, out.BusinessID)
	p.logger.Info(ctx, "experiment outcome recorded",
		zap.Int64("experiment_id", exp.ID),
		zap.String("experiment", exp.Name),
		zap.String("status", exp.Status),
		zap.Bool("memory_updated", updated))

	return &OutcomeResult{Experiment: exp, MemoryUpdated: updated}, nil
}

func runResult(res *pipeline.Result) *PlanResult {
	if res == nil {
		return nil
	}
	return &PlanResult{
		Plan:     res.Plan,
		Metadata: res.Context.Metadata(),
		Audit:    res.Context.History(),
	}
}
