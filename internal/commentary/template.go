package commentary

import (
	"context"
	"fmt"

	"github.com/CrillyPienaah/sme-growth-copilot/internal/growth"
)

// ModelTemplate is the model name reported by template commentary.
const ModelTemplate = "template"

// Fallback renders the deterministic strategy brief for a plan.
func Fallback(plan growth.GrowthPlan) string {
	chosen := plan.ChosenExperiment.Experiment
	return fmt.Sprintf("## Strategic Recommendation\n\n"+
		"**Priority:** %s\n\n"+
		"**Channel:** %s\n\n"+
		"**Rationale:** This experiment best addresses the '%s → %s' bottleneck "+
		"while aligning with your goal: %s.\n\n"+
		"**Hypothesis:** %s\n\n"+
		"**Next Steps:** Implement this experiment within %d weeks to unlock "+
		"the identified revenue opportunity.",
		chosen.Name,
		chosen.Channel,
		plan.FunnelInsight.FromStep, plan.FunnelInsight.ToStep,
		plan.Goal.Objective,
		chosen.Hypothesis,
		plan.Goal.HorizonWeeks,
	)
}

// Template produces Fallback commentary. It has no external dependencies.
type Template struct{}

// NewTemplate returns a template generator.
func NewTemplate() *Template {
	return &Template{}
}

// Generate implements Generator.
func (*Template) Generate(_ context.Context, plan growth.GrowthPlan) string {
	return Fallback(plan)
}

// Model implements Generator.
func (*Template) Model() string {
	return ModelTemplate
}
