package pipeline

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/CrillyPienaah/sme-growth-copilot/internal/commentary"
	"github.com/CrillyPienaah/sme-growth-copilot/internal/growth"
	"github.com/CrillyPienaah/sme-growth-copilot/internal/logging"
	"github.com/CrillyPienaah/sme-growth-copilot/internal/memory"
)

// IntakeStage normalizes a request and records data-quality warnings.
// Warnings never fail the run.
type IntakeStage struct {
	Logger *logging.Logger
}

func (IntakeStage) Name() string { return StageIntake }

func (s IntakeStage) Run(ctx context.Context, req growth.PlanRequest, rc *RunContext) (growth.PlanRequest, error) {
	rc.Log(StageIntake, "validating request", req.BusinessProfile.BusinessID)

	warnings := growth.QualityWarnings(req)
	req.Normalize()

	if len(warnings) > 0 {
		Set(rc, MetaDataWarnings, warnings)
		s.Logger.Warn(ctx, "data quality issues", zap.Strings("warnings", warnings))
	}

	rc.Log(StageIntake, "validation complete", fmt.Sprintf("%d warnings", len(warnings)))
	return req, nil
}

// AnalystStage finds the funnel bottleneck and the revenue at stake.
type AnalystStage struct{}

func (AnalystStage) Name() string { return StageAnalyst }

func (AnalystStage) Run(_ context.Context, kpis growth.KpiSnapshot, rc *RunContext) (growth.FunnelInsight, error) {
	rc.Log(StageAnalyst, "analyzing funnel", fmt.Sprintf("%d visits", kpis.Visits))

	insight := growth.Diagnose(kpis)
	opportunity := growth.RevenueOpportunity(kpis, insight)
	Set(rc, MetaRevenueOpportunity, opportunity)

	rc.Log(StageAnalyst, "bottleneck identified",
		fmt.Sprintf("%s -> %s, drop=%.1f%%, opportunity=$%.2f",
			insight.FromStep, insight.ToStep, insight.DropRate*100, opportunity))
	return insight, nil
}

// StrategyInput is what the strategy stage proposes experiments from.
type StrategyInput struct {
	Business growth.BusinessProfile
	Goal     growth.GrowthGoal
	Insight  growth.FunnelInsight
}

// StrategyStage proposes experiments for the bottleneck and drops the ones
// strategy memory says already failed for this business.
type StrategyStage struct {
	Memory memory.Store
	Logger *logging.Logger
}

func (StrategyStage) Name() string { return StageStrategy }

func (s StrategyStage) Run(ctx context.Context, in StrategyInput, rc *RunContext) ([]growth.GrowthExperiment, error) {
	rc.Log(StageStrategy, "proposing experiments", in.Insight.FromStep+" -> "+in.Insight.ToStep)

	proposed := growth.Propose(in.Business, in.Goal, in.Insight)

	var failed []string
	if s.Memory != nil {
		names, err := s.Memory.FailedExperiments(ctx, in.Business.BusinessID)
		if err != nil {
			// Memory is advisory; a lookup failure means no filtering.
			s.Logger.Warn(ctx, "strategy memory unavailable", zap.Error(err))
		} else {
			failed = names
		}
	}

	kept, removed := growth.FilterFailed(proposed, failed)
	if removed == 0 && allBlocked(proposed, failed) {
		s.Logger.Info(ctx, "every candidate failed before; keeping unfiltered set")
		rc.Log(StageStrategy, "memory fallback", "all candidates previously failed")
	}

	Set(rc, MetaProposedExperiments, len(kept))
	Set(rc, MetaFilteredByMemory, removed)

	rc.Log(StageStrategy, "experiments proposed", experimentNames(kept))
	return kept, nil
}

func allBlocked(exps []growth.GrowthExperiment, failed []string) bool {
	for _, e := range exps {
		found := false
		for _, f := range failed {
			if e.Name == f {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return len(exps) > 0
}

func experimentNames(exps []growth.GrowthExperiment) string {
	names := make([]string, len(exps))
	for i, e := range exps {
		names[i] = e.Name
	}
	return strings.Join(names, ", ")
}

// ScoringStage applies ICE scoring and ranks the candidates.
type ScoringStage struct{}

func (ScoringStage) Name() string { return StageScoring }

func (ScoringStage) Run(_ context.Context, exps []growth.GrowthExperiment, rc *RunContext) ([]growth.ScoredExperiment, error) {
	rc.Log(StageScoring, "scoring experiments", fmt.Sprintf("%d candidates", len(exps)))

	ranked := growth.Score(exps)
	if len(ranked) > 0 {
		top := ranked[0]
		Set(rc, MetaTopPriorityScore, top.PriorityScore)
		rc.Log(StageScoring, "top candidate",
			fmt.Sprintf("%s (I=%d C=%d E=%d, score=%.2f)",
				top.Experiment.Name, top.Impact, top.Confidence, top.Effort, top.PriorityScore))
	}
	return ranked, nil
}

// JudgeStage picks the highest-ranked experiment.
type JudgeStage struct{}

func (JudgeStage) Name() string { return StageJudge }

func (JudgeStage) Run(_ context.Context, ranked []growth.ScoredExperiment, rc *RunContext) (growth.ScoredExperiment, error) {
	rc.Log(StageJudge, "selecting winner", fmt.Sprintf("%d candidates", len(ranked)))

	winner, err := growth.SelectWinner(ranked)
	if err != nil {
		return growth.ScoredExperiment{}, err
	}

	Set(rc, MetaTopExperiment, winner.Experiment.Name)
	Set(rc, MetaSelectionMethod, SelectionHighestICE)
	rc.Log(StageJudge, "winner selected",
		fmt.Sprintf("%s (score=%.2f)", winner.Experiment.Name, winner.PriorityScore))
	return winner, nil
}

// CopyInput is what the copywriter stage writes copy for.
type CopyInput struct {
	Business growth.BusinessProfile
	Goal     growth.GrowthGoal
	Chosen   growth.ScoredExperiment
}

// CopywriterStage renders template copy for the chosen experiment.
type CopywriterStage struct{}

func (CopywriterStage) Name() string { return StageCopywriter }

func (CopywriterStage) Run(_ context.Context, in CopyInput, rc *RunContext) (string, error) {
	rc.Log(StageCopywriter, "writing copy", in.Chosen.Experiment.Channel)

	text := growth.GenerateCopy(in.Business, in.Goal, in.Chosen)
	Set(rc, MetaCopyLength, len(text))

	rc.Log(StageCopywriter, "copy ready", fmt.Sprintf("%d chars", len(text)))
	return text, nil
}

// Commentator writes strategy commentary for an assembled plan. It must not
// fail: implementations fall back to a template.
type Commentator interface {
	Generate(ctx context.Context, plan growth.GrowthPlan) string
}

// modelNamer is implemented by commentators that can name their model.
type modelNamer interface {
	Model() string
}

// CommentaryStage produces the plan commentary and appends the revenue,
// data-quality, trace and model suffixes. A nil Commentator uses the
// template fallback.
type CommentaryStage struct {
	Commentator Commentator
}

func (CommentaryStage) Name() string { return StageCommentary }

func (s CommentaryStage) Run(ctx context.Context, plan growth.GrowthPlan, rc *RunContext) (string, error) {
	rc.Log(StageCommentary, "generating commentary", plan.ChosenExperiment.Experiment.Name)

	var b strings.Builder
	if s.Commentator != nil {
		b.WriteString(s.Commentator.Generate(ctx, plan))
	} else {
		b.WriteString(commentary.Fallback(plan))
	}

	if opp, ok := Get(rc, MetaRevenueOpportunity); ok && opp != 0 {
		fmt.Fprintf(&b, "\n\nRevenue Opportunity: $%s if bottleneck is fixed", formatMoney(opp))
	}
	if warnings, ok := Get(rc, MetaDataWarnings); ok && len(warnings) > 0 {
		b.WriteString("\n\nData Quality Notes: ")
		b.WriteString(strings.Join(warnings, "; "))
	}
	fmt.Fprintf(&b, "\n[Trace: %s]", rc.TraceID)

	if m, ok := s.Commentator.(modelNamer); ok {
		model := m.Model()
		Set(rc, MetaCommentaryModel, model)
		if model != "" && model != commentary.ModelTemplate {
			fmt.Fprintf(&b, " | Model: %s", model)
		}
	}

	rc.Log(StageCommentary, "commentary ready", fmt.Sprintf("%d chars", b.Len()))
	return b.String(), nil
}

// formatMoney renders v with two decimals and thousands separators.
func formatMoney(v float64) string {
	neg := v < 0
	if neg {
		v = -v
	}
	s := fmt.Sprintf("%.2f", v)
	intPart, frac := s[:len(s)-3], s[len(s)-3:]

	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if neg {
		return "-" + b.String() + frac
	}
	return b.String() + frac
}
