package growth

import (
	"fmt"
	"math"
)

// Funnel step names.
const (
	StepVisits    = "visits"
	StepLeads     = "leads"
	StepSignups   = "signups"
	StepPurchases = "purchases"
)

// transition is one adjacent pair of funnel steps with its conversion.
type transition struct {
	from, to   string
	conversion float64
}

// conversion divides safely; a non-positive denominator yields 0.
func conversion(numerator, denominator int) float64 {
	if denominator <= 0 {
		return 0.0
	}
	return float64(numerator) / float64(denominator)
}

// Diagnose finds the biggest drop-off in the visits → leads → signups →
// purchases funnel.
//
// The transition with the lowest conversion wins. Ties go to the earliest
// transition in funnel order, so an all-zero snapshot reports visits → leads
// with a drop rate of 1.0.
func Diagnose(kpis KpiSnapshot) FunnelInsight {
	steps := []transition{
		{StepVisits, StepLeads, conversion(kpis.Leads, kpis.Visits)},
		{StepLeads, StepSignups, conversion(kpis.Signups, kpis.Leads)},
		{StepSignups, StepPurchases, conversion(kpis.Purchases, kpis.Signups)},
	}

	worst := steps[0]
	for _, s := range steps[1:] {
		if s.conversion < worst.conversion {
			worst = s
		}
	}

	drop := 1.0 - worst.conversion
	return FunnelInsight{
		FromStep: worst.from,
		ToStep:   worst.to,
		DropRate: drop,
		Comment: fmt.Sprintf("Biggest drop is from %s to %s: conversion=%.1f%%, drop=%.1f%%.",
			worst.from, worst.to, worst.conversion*100, drop*100),
	}
}

// RevenueOpportunity estimates revenue lost at the bottleneck: the visitors
// lost at the drop rate multiplied by revenue per visitor, rounded to cents.
func RevenueOpportunity(kpis KpiSnapshot, insight FunnelInsight) float64 {
	if kpis.Visits <= 0 {
		return 0.0
	}
	perVisitor := kpis.Revenue / float64(kpis.Visits)
	lost := float64(kpis.Visits) * insight.DropRate
	return math.Round(lost*perVisitor*100) / 100
}
