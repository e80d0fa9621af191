package pipeline

import (
	"context"
	"fmt"
)

// Stage is one step of the pipeline.
type Stage[In, Out any] interface {
	Name() string
	Run(ctx context.Context, in In, rc *RunContext) (Out, error)
}

// Stage names, also used as audit stage labels and span suffixes.
const (
	StageIntake       = "Intake"
	StageAnalyst      = "Analyst"
	StageStrategy     = "Strategy"
	StageScoring      = "Scoring"
	StageJudge        = "Judge"
	StageCopywriter   = "Copywriter"
	StageCommentary   = "Commentary"
	StageOrchestrator = "Orchestrator"
)

// StageError reports which stage aborted a run.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}
