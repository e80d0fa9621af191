package http

import (
	"github.com/CrillyPienaah/sme-growth-copilot/internal/pipeline"
)

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service,omitempty"`
}

// FailureRequest is the request body for
// POST /api/v1/businesses/:id/memory/failures.
type FailureRequest struct {
	Experiment string `json:"experiment"`
}

// OutcomeRequest is the request body for PATCH /api/v1/experiments/:id.
type OutcomeRequest struct {
	Status         string   `json:"status"`
	ObservedResult *float64 `json:"observed_result,omitempty"`
}

// ErrorResponse is returned for failed requests. A failed pipeline run also
// carries the stage that failed and the audit trail up to that point.
type ErrorResponse struct {
	Message string                `json:"message"`
	Stage   string                `json:"stage,omitempty"`
	Audit   []pipeline.AuditEntry `json:"audit,omitempty"`
}

// BusinessSummary is the response body for GET /api/v1/businesses/:id/summary.
type BusinessSummary struct {
	BusinessID        string         `json:"business_id"`
	Plans             int            `json:"plans"`
	Experiments       map[string]int `json:"experiments"`
	FailedExperiments []string       `json:"failed_experiments"`
	LatestPlanID      string         `json:"latest_plan_id,omitempty"`
	LatestChosen      string         `json:"latest_chosen,omitempty"`
}
