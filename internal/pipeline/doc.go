// Package pipeline turns a PlanRequest into a GrowthPlan.
//
// An Orchestrator runs a fixed sequence of stages:
//
//	Intake -> Analyst -> Strategy -> Scoring -> Judge -> Copywriter -> assemble -> Commentary
//
// Each stage implements Stage and shares one RunContext per run. The
// RunContext carries the 8-character trace id, an append-only audit trail
// and typed metadata such as MetaRevenueOpportunity or MetaFilteredByMemory.
//
// Data-quality problems never fail a run; they are recorded under
// MetaDataWarnings and echoed in the commentary. Strategy memory and
// commentary are advisory: a memory error disables filtering and commentary
// falls back to a template. Anything else aborts the run with a *StageError
// naming the stage.
//
// Context cancellation is checked before every stage:
//
//	res, err := orch.Run(ctx, req)
//	var stageErr *pipeline.StageError
//	if errors.As(err, &stageErr) {
//		log.Printf("aborted in %s, trail: %v", stageErr.Stage, res.Context.History())
//	}
package pipeline
