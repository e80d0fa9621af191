package commentary

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/CrillyPienaah/sme-growth-copilot/internal/growth"
)

// DefaultGeminiModel is used when no model is configured.
const DefaultGeminiModel = "gemini-2.0-flash"

// ErrMissingAPIKey is returned when a Gemini provider has no key.
var ErrMissingAPIKey = errors.New("gemini api key is required")

// Sampling parameters for strategy briefs.
const (
	geminiTemperature     = 0.7
	geminiTopP            = 0.9
	geminiMaxOutputTokens = 1024
	promptExperiments     = 5
)

// Benchmark conversions used to size the revenue at stake.
const (
	benchmarkLeadsPerVisit     = 0.25
	benchmarkSignupsPerLead    = 0.40
	benchmarkPurchasePerSignup = 0.10
)

const systemPrompt = `You are a growth strategist advising small and medium businesses.

Write a strategic brief the owner can act on this week. Use their numbers.
Structure the brief in three markdown sections:

## Diagnosis
Open with "Your growth is constrained by <bottleneck>." Explain the cause
using the funnel data and quantify the revenue at stake.

## Recommended Strategy
Open with "The highest-leverage intervention is <experiment>." Explain why it
targets the root cause and fits the stated constraints.

## 90-Day Plan
Days 1-30 setup actions, days 31-60 metrics and pivot criteria, days 61-90
scaling. Close with a conservative and an optimistic outcome.

Keep the brief between 400 and 500 words. Be direct and specific.`

// GeminiProvider generates commentary with the Gemini API.
type GeminiProvider struct {
	models *genai.Models
	model  string
}

// NewGemini creates a Gemini provider. An empty model selects
// DefaultGeminiModel.
func NewGemini(ctx context.Context, apiKey, model string) (*GeminiProvider, error) {
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	if model == "" {
		model = DefaultGeminiModel
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	return &GeminiProvider{models: client.Models, model: model}, nil
}

// Model implements Provider.
func (g *GeminiProvider) Model() string {
	return g.model
}

// Complete implements Provider.
func (g *GeminiProvider) Complete(ctx context.Context, plan growth.GrowthPlan) (string, error) {
	resp, err := g.models.GenerateContent(ctx, g.model, genai.Text(BuildPrompt(plan)), &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
		Temperature:       genai.Ptr[float32](geminiTemperature),
		TopP:              genai.Ptr[float32](geminiTopP),
		MaxOutputTokens:   geminiMaxOutputTokens,
	})
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

// BuildPrompt renders the user prompt for a plan: business context, funnel
// performance, the bottleneck with its benchmark-gap revenue, the goal and the
// top-ranked experiments.
func BuildPrompt(plan growth.GrowthPlan) string {
	k := plan.KPIs
	bp := plan.BusinessProfile
	chosen := plan.ChosenExperiment

	audience := bp.TargetAudience
	if audience == "" {
		audience = "General consumer market"
	}
	constraints := plan.Goal.Constraints
	if constraints == "" {
		constraints = "Standard operating budget and resources"
	}
	retention := 0.5
	if k.RetentionRate != nil {
		retention = *k.RetentionRate
	}

	var b strings.Builder
	b.WriteString("BUSINESS CONTEXT:\n")
	fmt.Fprintf(&b, "Company: %s\n", bp.Name)
	fmt.Fprintf(&b, "Industry: %s\n", bp.Industry)
	fmt.Fprintf(&b, "Location: %s\n", bp.Region)
	fmt.Fprintf(&b, "Primary Channels: %s\n", strings.Join(bp.MainChannels, ", "))
	fmt.Fprintf(&b, "Target Market: %s\n\n", audience)

	fmt.Fprintf(&b, "CURRENT PERFORMANCE (%s):\n", k.Period)
	fmt.Fprintf(&b, "- Visits: %d\n", k.Visits)
	fmt.Fprintf(&b, "- Leads: %d (%.1f%% of visits)\n", k.Leads, percent(k.Leads, k.Visits))
	fmt.Fprintf(&b, "- Signups: %d (%.1f%% of leads)\n", k.Signups, percent(k.Signups, k.Leads))
	fmt.Fprintf(&b, "- Purchases: %d (%.1f%% of signups)\n", k.Purchases, percent(k.Purchases, k.Signups))
	fmt.Fprintf(&b, "- Revenue: $%.2f\n", k.Revenue)
	fmt.Fprintf(&b, "- Average Order Value: $%.2f\n", averageOrderValue(k))
	fmt.Fprintf(&b, "- Retention: %.0f%%\n\n", retention*100)

	fmt.Fprintf(&b, "BOTTLENECK:\n")
	fmt.Fprintf(&b, "Stage: %s -> %s\n", plan.FunnelInsight.FromStep, plan.FunnelInsight.ToStep)
	fmt.Fprintf(&b, "Drop: %.1f%%\n", plan.FunnelInsight.DropRate*100)
	fmt.Fprintf(&b, "Revenue at stake vs. benchmark: $%.2f\n", BenchmarkGap(k, plan.FunnelInsight))
	fmt.Fprintf(&b, "Finding: %s\n\n", plan.FunnelInsight.Comment)

	b.WriteString("OBJECTIVE:\n")
	fmt.Fprintf(&b, "%s\n", plan.Goal.Objective)
	fmt.Fprintf(&b, "Timeline: %d weeks\n", plan.Goal.HorizonWeeks)
	fmt.Fprintf(&b, "Constraints: %s\n\n", constraints)

	b.WriteString("PRIORITIZED EXPERIMENTS (ICE):\n")
	for i, se := range plan.Experiments {
		if i == promptExperiments {
			break
		}
		fmt.Fprintf(&b, "%d. %s (%s) - score %.1f (I:%d, C:%d, E:%d)\n",
			i+1, se.Experiment.Name, se.Experiment.Channel, se.PriorityScore,
			se.Impact, se.Confidence, se.Effort)
	}

	b.WriteString("\nRECOMMENDED EXPERIMENT:\n")
	fmt.Fprintf(&b, "Name: %s\n", chosen.Experiment.Name)
	fmt.Fprintf(&b, "Channel: %s\n", chosen.Experiment.Channel)
	fmt.Fprintf(&b, "Hypothesis: %s\n", chosen.Experiment.Hypothesis)
	fmt.Fprintf(&b, "Priority Score: %.1f\n", chosen.PriorityScore)
	fmt.Fprintf(&b, "Impact %d/5, Confidence %d/5, Effort %d/5\n", chosen.Impact, chosen.Confidence, chosen.Effort)

	b.WriteString("\nWrite the brief now.")
	return b.String()
}

// BenchmarkGap is the revenue lost to the bottleneck relative to a benchmark
// conversion for that transition, valued at the average order value. It is
// never negative.
func BenchmarkGap(k growth.KpiSnapshot, insight growth.FunnelInsight) float64 {
	var lost float64
	switch {
	case insight.FromStep == growth.StepVisits && insight.ToStep == growth.StepLeads:
		lost = float64(k.Visits)*benchmarkLeadsPerVisit - float64(k.Leads)
	case insight.FromStep == growth.StepLeads && insight.ToStep == growth.StepSignups:
		lost = float64(k.Leads)*benchmarkSignupsPerLead - float64(k.Signups)
	case insight.FromStep == growth.StepSignups && insight.ToStep == growth.StepPurchases:
		lost = float64(k.Signups)*benchmarkPurchasePerSignup - float64(k.Purchases)
	}
	if lost < 0 {
		lost = 0
	}
	return lost * averageOrderValue(k)
}

func averageOrderValue(k growth.KpiSnapshot) float64 {
	if k.Purchases <= 0 {
		return 0
	}
	return k.Revenue / float64(k.Purchases)
}

func percent(num, den int) float64 {
	if den <= 0 {
		return 0
	}
	return float64(num) / float64(den) * 100
}
