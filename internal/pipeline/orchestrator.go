package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/CrillyPienaah/sme-growth-copilot/internal/commentary"
	"github.com/CrillyPienaah/sme-growth-copilot/internal/growth"
	"github.com/CrillyPienaah/sme-growth-copilot/internal/logging"
	"github.com/CrillyPienaah/sme-growth-copilot/internal/memory"
)

const instrumentationName = "github.com/CrillyPienaah/sme-growth-copilot/internal/pipeline"

// Result is the outcome of one run.
type Result struct {
	Plan    growth.GrowthPlan
	Context *RunContext
}

// Orchestrator runs the stages in order: intake, analyst, strategy, scoring,
// judge, copywriter, plan assembly, commentary.
//
// An Orchestrator holds no per-run state and is safe for concurrent use.
type Orchestrator struct {
	logger      *logging.Logger
	memory      memory.Store
	commentator Commentator
	tracer      trace.Tracer
	metrics     *Metrics
	newContext  func() *RunContext
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// WithMemory sets the strategy memory consulted by the strategy stage.
func WithMemory(m memory.Store) Option {
	return func(o *Orchestrator) { o.memory = m }
}

// WithCommentator sets the commentary generator. nil keeps the template.
func WithCommentator(c Commentator) Option {
	return func(o *Orchestrator) {
		if c != nil {
			o.commentator = c
		}
	}
}

// WithTracer sets the tracer used for stage spans.
func WithTracer(t trace.Tracer) Option {
	return func(o *Orchestrator) { o.tracer = t }
}

// WithMetrics enables Prometheus metrics.
func WithMetrics(m *Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// New creates an Orchestrator. Without options it logs nowhere, has an empty
// strategy memory and uses template commentary.
func New(opts ...Option) *Orchestrator {
	o := &Orchestrator{
		logger:      logging.NewNop(),
		memory:      memory.NewMemStore(),
		commentator: commentary.NewTemplate(),
		tracer:      otel.Tracer(instrumentationName),
		newContext:  NewRunContext,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run executes the pipeline for req.
//
// The returned Result is never nil, so callers can inspect the audit trail
// of a failed run. Errors are *StageError; cancellation of ctx surfaces as a
// StageError wrapping ctx.Err() for the stage that was about to start.
func (o *Orchestrator) Run(ctx context.Context, req growth.PlanRequest) (*Result, error) {
	rc := o.newContext()
	res := &Result{Context: rc}
	start := time.Now()

	ctx = logging.WithRunTrace(ctx, rc.TraceID)
	ctx = logging.WithBusinessID(ctx, req.BusinessProfile.BusinessID)

	ctx, span := o.tracer.Start(ctx, "pipeline.Run")
	defer span.End()
	span.SetAttributes(
		attribute.String("run.trace", rc.TraceID),
		attribute.String("business.id", req.BusinessProfile.BusinessID),
	)

	o.logger.Info(ctx, "pipeline run started")

	plan, err := o.run(ctx, req, rc)
	o.metrics.observeRun(rc, plan.ChosenExperiment.Experiment.Name, err, time.Since(start))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "pipeline failed")
		return res, err
	}

	res.Plan = plan
	span.SetAttributes(attribute.String("chosen", plan.ChosenExperiment.Experiment.Name))
	o.logger.Info(ctx, "pipeline run complete",
		zap.String("chosen", plan.ChosenExperiment.Experiment.Name),
		zap.Float64("priority_score", plan.ChosenExperiment.PriorityScore),
		zap.Duration("elapsed", time.Since(start)))
	return res, nil
}

func (o *Orchestrator) run(ctx context.Context, req growth.PlanRequest, rc *RunContext) (growth.GrowthPlan, error) {
	var plan growth.GrowthPlan

	validated, err := runStage(ctx, o, rc, IntakeStage{Logger: o.logger}, req)
	if err != nil {
		return plan, err
	}

	insight, err := runStage(ctx, o, rc, AnalystStage{}, validated.KPIs)
	if err != nil {
		return plan, err
	}

	candidates, err := runStage(ctx, o, rc, StrategyStage{Memory: o.memory, Logger: o.logger}, StrategyInput{
		Business: validated.BusinessProfile,
		Goal:     validated.Goal,
		Insight:  insight,
	})
	if err != nil {
		return plan, err
	}

	ranked, err := runStage(ctx, o, rc, ScoringStage{}, candidates)
	if err != nil {
		return plan, err
	}

	chosen, err := runStage(ctx, o, rc, JudgeStage{}, ranked)
	if err != nil {
		return plan, err
	}

	copyText, err := runStage(ctx, o, rc, CopywriterStage{}, CopyInput{
		Business: validated.BusinessProfile,
		Goal:     validated.Goal,
		Chosen:   chosen,
	})
	if err != nil {
		return plan, err
	}

	plan = growth.GrowthPlan{
		TraceID:          rc.TraceID,
		BusinessProfile:  validated.BusinessProfile,
		KPIs:             validated.KPIs,
		Goal:             validated.Goal,
		FunnelInsight:    insight,
		Experiments:      ranked,
		ChosenExperiment: chosen,
		CopySuggestion:   copyText,
	}
	rc.Log(StageOrchestrator, "plan assembled", chosen.Experiment.Name)

	commentaryText, err := runStage(ctx, o, rc, CommentaryStage{Commentator: o.commentator}, plan)
	if err != nil {
		return growth.GrowthPlan{}, err
	}
	plan.StrategyCommentary = commentaryText

	return plan, nil
}

// runStage runs one stage inside a span, checking for cancellation first.
// Failures are logged, recorded in the audit trail and wrapped in StageError.
func runStage[In, Out any](ctx context.Context, o *Orchestrator, rc *RunContext, s Stage[In, Out], in In) (Out, error) {
	var zero Out
	name := s.Name()

	if err := ctx.Err(); err != nil {
		return zero, o.stageFailed(ctx, rc, name, err)
	}

	ctx, span := o.tracer.Start(ctx, "pipeline."+name)
	defer span.End()

	start := time.Now()
	out, err := s.Run(ctx, in, rc)
	elapsed := time.Since(start)
	o.metrics.observeStage(name, err, elapsed)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return zero, o.stageFailed(ctx, rc, name, err)
	}

	o.logger.Debug(ctx, "stage complete", zap.String("stage", name), zap.Duration("elapsed", elapsed))
	return out, nil
}

func (o *Orchestrator) stageFailed(ctx context.Context, rc *RunContext, stage string, err error) error {
	o.logger.Error(ctx, "stage failed", zap.String("stage", stage), zap.Error(err))
	rc.Log(StageOrchestrator, "ERROR", fmt.Sprintf("%s: %v", stage, err))
	return &StageError{Stage: stage, Err: err}
}
