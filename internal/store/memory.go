package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/CrillyPienaah/sme-growth-copilot/internal/growth"
	"github.com/CrillyPienaah/sme-growth-copilot/internal/memory"
)

// Memory is an in-process Repository. Nothing survives a restart.
type Memory struct {
	*memory.MemStore

	mu          sync.RWMutex
	plans       map[string][]*PlanRecord
	experiments map[int64]*ExperimentRecord
	nextID      int64
	now         func() time.Time
}

// NewMemory returns an empty in-process repository.
func NewMemory() *Memory {
	return &Memory{
		MemStore:    memory.NewMemStore(),
		plans:       make(map[string][]*PlanRecord),
		experiments: make(map[int64]*ExperimentRecord),
		now:         time.Now,
	}
}

// SavePlan implements Repository.
func (m *Memory) SavePlan(ctx context.Context, req growth.PlanRequest, plan growth.GrowthPlan) (*PlanRecord, error) {
	if err := validatePlan(plan); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	now := m.now().UTC()
	rec := &PlanRecord{
		ID:         uuid.NewString(),
		BusinessID: plan.BusinessProfile.BusinessID,
		TraceID:    plan.TraceID,
		CreatedAt:  now,
		Request:    req,
		Plan:       plan,
	}
	rec.Experiments = experimentRecords(rec.ID, plan, now)

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range rec.Experiments {
		m.nextID++
		e.ID = m.nextID
		m.experiments[e.ID] = e
	}
	m.plans[rec.BusinessID] = append(m.plans[rec.BusinessID], rec)

	return clonePlan(rec), nil
}

// ListPlans implements Repository.
func (m *Memory) ListPlans(ctx context.Context, businessID string) ([]*PlanRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	recs := m.plans[businessID]
	out := make([]*PlanRecord, len(recs))
	for i, r := range recs {
		out[i] = clonePlan(r)
	}
	return out, nil
}

// Experiment implements Repository.
func (m *Memory) Experiment(ctx context.Context, id int64) (*ExperimentRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.experiments[id]
	if !ok {
		return nil, ErrExperimentNotFound
	}
	c := *e
	return &c, nil
}

// RecordOutcome implements Repository.
func (m *Memory) RecordOutcome(ctx context.Context, id int64, status string, observed *float64) (*ExperimentRecord, bool, error) {
	status = memory.NormalizeStatus(status)
	if status == "" {
		return nil, false, ErrInvalidStatus
	}
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.experiments[id]
	if !ok {
		return nil, false, ErrExperimentNotFound
	}

	// Memory first: it is the only write that can fail.
	var added bool
	if memory.IsFailureStatus(status) {
		var err error
		added, err = m.MemStore.RecordFailure(ctx, e.BusinessID, e.Name)
		if err != nil {
			return nil, false, fmt.Errorf("recording failure: %w", err)
		}
	}

	e.Status = status
	if observed != nil {
		v := *observed
		e.ObservedResult = &v
	}
	e.UpdatedAt = m.now().UTC()

	c := *e
	return &c, added, nil
}

// Close implements Repository.
func (m *Memory) Close() error {
	return nil
}

// clonePlan copies r and its experiments. Callers must hold the lock.
func clonePlan(r *PlanRecord) *PlanRecord {
	c := *r
	c.Experiments = make([]*ExperimentRecord, len(r.Experiments))
	for i, e := range r.Experiments {
		ec := *e
		c.Experiments[i] = &ec
	}
	return &c
}
