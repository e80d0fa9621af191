package memory

import "strings"

// Outcome statuses reported for a running or finished experiment.
const (
	StatusPlanned           = "PLANNED"
	StatusRunning           = "RUNNING"
	StatusSucceeded         = "SUCCEEDED"
	StatusFailed            = "FAILED"
	StatusCanceledLowImpact = "CANCELED_LOW_IMPACT"
	StatusNoImpact          = "NO_IMPACT"
)

// IsFailureStatus reports whether status means the experiment should not be
// proposed again. Matching is case-insensitive.
func IsFailureStatus(status string) bool {
	switch strings.ToUpper(strings.TrimSpace(status)) {
	case StatusFailed, StatusCanceledLowImpact, StatusNoImpact:
		return true
	}
	return false
}

// NormalizeStatus upper-cases status for storage.
func NormalizeStatus(status string) string {
	return strings.ToUpper(strings.TrimSpace(status))
}
