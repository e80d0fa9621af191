// Package growth holds the deterministic rules behind a growth plan.
//
// # Overview
//
// The functions here are pure and have no collaborators:
//
//	Diagnose      KPI snapshot  -> worst funnel transition
//	Propose       bottleneck    -> candidate experiments
//	FilterFailed  candidates    -> candidates minus known failures
//	Score         candidates    -> ICE-ranked experiments
//	SelectWinner  ranked list   -> top experiment
//	GenerateCopy  winner        -> campaign copy
//
// The pipeline package wraps each of them in a stage that adds logging,
// tracing and audit entries.
//
// # ICE Scoring
//
// Priority is (impact × confidence) / effort. Impact and confidence come from
// an ordered keyword table matched against the lower-cased experiment name;
// the first matching row wins. Effort comes from the channel and is never
// below 2.
package growth
