package growth

// DefaultPeriod is the KPI period label used when none is supplied.
const DefaultPeriod = "last_30_days"

// DefaultHorizonWeeks is the goal horizon used when none is supplied.
const DefaultHorizonWeeks = 8

// BusinessProfile describes the business a plan is generated for.
type BusinessProfile struct {
	BusinessID     string   `json:"business_id" yaml:"business_id"`
	Name           string   `json:"name" yaml:"name"`
	Industry       string   `json:"industry" yaml:"industry"`
	Region         string   `json:"region" yaml:"region"`
	MainChannels   []string `json:"main_channels" yaml:"main_channels"`
	TargetAudience string   `json:"target_audience,omitempty" yaml:"target_audience,omitempty"`
	ToneOfVoice    string   `json:"tone_of_voice,omitempty" yaml:"tone_of_voice,omitempty"`
}

// GrowthGoal is the outcome the business wants within a horizon.
type GrowthGoal struct {
	Objective    string `json:"objective" yaml:"objective"`
	HorizonWeeks int    `json:"horizon_weeks" yaml:"horizon_weeks"`
	Constraints  string `json:"constraints,omitempty" yaml:"constraints,omitempty"`
}

// KpiSnapshot holds funnel counters for one reporting period.
//
// Counters are expected to satisfy purchases <= signups <= leads <= visits,
// but violations are reported as warnings by the intake stage, not rejected.
type KpiSnapshot struct {
	Period        string   `json:"period" yaml:"period"`
	Visits        int      `json:"visits" yaml:"visits"`
	Leads         int      `json:"leads" yaml:"leads"`
	Signups       int      `json:"signups" yaml:"signups"`
	Purchases     int      `json:"purchases" yaml:"purchases"`
	Revenue       float64  `json:"revenue" yaml:"revenue"`
	RetentionRate *float64 `json:"retention_rate,omitempty" yaml:"retention_rate,omitempty"`
}

// FunnelInsight identifies the weakest adjacent stage transition.
type FunnelInsight struct {
	FromStep string  `json:"from_step" yaml:"from_step"`
	ToStep   string  `json:"to_step" yaml:"to_step"`
	DropRate float64 `json:"drop_rate" yaml:"drop_rate"`
	Comment  string  `json:"comment" yaml:"comment"`
}

// GrowthExperiment is a candidate growth action.
type GrowthExperiment struct {
	Name        string `json:"name" yaml:"name"`
	Channel     string `json:"channel" yaml:"channel"`
	Hypothesis  string `json:"hypothesis" yaml:"hypothesis"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// ScoredExperiment wraps an experiment with its ICE values.
type ScoredExperiment struct {
	Experiment    GrowthExperiment `json:"experiment" yaml:"experiment"`
	Impact        int              `json:"impact" yaml:"impact"`
	Confidence    int              `json:"confidence" yaml:"confidence"`
	Effort        int              `json:"effort" yaml:"effort"`
	PriorityScore float64          `json:"priority_score" yaml:"priority_score"`
}

// GrowthPlan is the assembled output of one pipeline run.
type GrowthPlan struct {
	TraceID            string             `json:"trace_id" yaml:"trace_id"`
	BusinessProfile    BusinessProfile    `json:"business_profile" yaml:"business_profile"`
	KPIs               KpiSnapshot        `json:"kpis" yaml:"kpis"`
	Goal               GrowthGoal         `json:"goal" yaml:"goal"`
	FunnelInsight      FunnelInsight      `json:"funnel_insight" yaml:"funnel_insight"`
	Experiments        []ScoredExperiment `json:"experiments" yaml:"experiments"`
	ChosenExperiment   ScoredExperiment   `json:"chosen_experiment" yaml:"chosen_experiment"`
	CopySuggestion     string             `json:"copy_suggestion,omitempty" yaml:"copy_suggestion,omitempty"`
	StrategyCommentary string             `json:"llm_strategy_commentary,omitempty" yaml:"llm_strategy_commentary,omitempty"`
}

// PlanRequest is the inbound request for a plan.
type PlanRequest struct {
	BusinessProfile BusinessProfile `json:"business_profile" yaml:"business_profile"`
	KPIs            KpiSnapshot     `json:"kpis" yaml:"kpis"`
	Goal            GrowthGoal      `json:"goal" yaml:"goal"`
}

// Normalize fills defaults for optional fields.
func (r *PlanRequest) Normalize() {
	if r.KPIs.Period == "" {
		r.KPIs.Period = DefaultPeriod
	}
	if r.Goal.HorizonWeeks < 1 {
		r.Goal.HorizonWeeks = DefaultHorizonWeeks
	}
	if r.BusinessProfile.MainChannels == nil {
		r.BusinessProfile.MainChannels = []string{}
	}
}
