package events

import (
	"context"
	"time"
)

// Event types.
const (
	TypePlanCreated     = "plan.created"
	TypeFailureRecorded = "memory.failure_recorded"
)

// RunTraceHeader carries the pipeline run trace on published messages.
const RunTraceHeader = "Growth-Run-Trace"

// PlanCreated is published after a plan is stored.
type PlanCreated struct {
	Type             string    `json:"type"`
	PlanID           string    `json:"plan_id"`
	BusinessID       string    `json:"business_id"`
	TraceID          string    `json:"trace_id"`
	ChosenExperiment string    `json:"chosen_experiment"`
	PriorityScore    float64   `json:"priority_score"`
	Experiments      int       `json:"experiments"`
	OccurredAt       time.Time `json:"occurred_at"`
}

// FailureRecorded is published after an experiment enters strategy memory.
type FailureRecorded struct {
	Type       string    `json:"type"`
	BusinessID string    `json:"business_id"`
	Experiment string    `json:"experiment"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Publisher announces plan and memory changes.
//
// Publisher satisfies memory.Notifier.
type Publisher interface {
	PlanCreated(ctx context.Context, ev PlanCreated) error
	FailureRecorded(ctx context.Context, businessID, experiment string) error
	Close() error
}

// Nop discards all events.
type Nop struct{}

// PlanCreated implements Publisher.
func (Nop) PlanCreated(context.Context, PlanCreated) error { return nil }

// FailureRecorded implements Publisher.
func (Nop) FailureRecorded(context.Context, string, string) error { return nil }

// Close implements Publisher.
func (Nop) Close() error { return nil }
