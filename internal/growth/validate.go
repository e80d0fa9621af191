package growth

import "fmt"

// QualityWarnings reports data-quality problems in a request.
//
// Nothing here is fatal: negative counters and impossible funnel ratios are
// described so they can travel with the plan, and the pipeline carries on.
func QualityWarnings(req PlanRequest) []string {
	k := req.KPIs
	var warnings []string

	if k.Visits < 0 || k.Leads < 0 || k.Signups < 0 || k.Purchases < 0 || k.Revenue < 0 {
		warnings = append(warnings, "Negative values detected in KPIs")
	}
	if k.Purchases > k.Signups {
		warnings = append(warnings, fmt.Sprintf("Impossible: %d purchases > %d signups", k.Purchases, k.Signups))
	}
	if k.Signups > k.Leads {
		warnings = append(warnings, fmt.Sprintf("Impossible: %d signups > %d leads", k.Signups, k.Leads))
	}
	if k.Leads > k.Visits {
		warnings = append(warnings, fmt.Sprintf("Impossible: %d leads > %d visits", k.Leads, k.Visits))
	}
	if k.RetentionRate != nil && (*k.RetentionRate < 0 || *k.RetentionRate > 1) {
		warnings = append(warnings, fmt.Sprintf("Retention rate %.2f outside [0, 1]", *k.RetentionRate))
	}
	if req.Goal.HorizonWeeks < 1 {
		warnings = append(warnings, fmt.Sprintf("Horizon of %d weeks is below 1; using %d",
			req.Goal.HorizonWeeks, DefaultHorizonWeeks))
	}

	return warnings
}
