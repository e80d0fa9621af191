package pipeline

import (
	"fmt"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// maxAuditData is the longest data string kept in an audit entry.
const maxAuditData = 200

// AuditEntry is one step of a run's audit trail.
type AuditEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Stage     string    `json:"stage"`
	Action    string    `json:"action"`
	Data      string    `json:"data"`
}

// Key is a typed metadata key.
type Key[T any] struct{ name string }

// Name returns the key's metadata name.
func (k Key[T]) Name() string { return k.name }

// Metadata keys written by the stages.
var (
	MetaRevenueOpportunity  = Key[float64]{"revenue_opportunity"}
	MetaDataWarnings        = Key[[]string]{"data_warnings"}
	MetaProposedExperiments = Key[int]{"proposed_experiments"}
	MetaFilteredByMemory    = Key[int]{"experiments_filtered_by_memory"}
	MetaTopExperiment       = Key[string]{"top_experiment"}
	MetaTopPriorityScore    = Key[float64]{"top_priority_score"}
	MetaSelectionMethod     = Key[string]{"selection_method"}
	MetaCopyLength          = Key[int]{"copy_length"}
	MetaCommentaryModel     = Key[string]{"commentary_model"}
)

// SelectionHighestICE is the selection method the judge stage records.
const SelectionHighestICE = "highest_ice_score"

// RunContext is the per-run record shared by all stages: a trace id, an
// append-only audit trail and typed metadata.
//
// A RunContext belongs to one run. The mutex only guards readers such as
// HTTP handlers that inspect a finished run.
type RunContext struct {
	TraceID string

	mu      sync.Mutex
	history []AuditEntry
	meta    map[string]any
	now     func() time.Time
}

// NewRunContext creates a RunContext with a fresh 8-character trace id.
func NewRunContext() *RunContext {
	return newRunContext(uuid.NewString()[:8], time.Now)
}

func newRunContext(traceID string, now func() time.Time) *RunContext {
	return &RunContext{
		TraceID: traceID,
		meta:    make(map[string]any),
		now:     now,
	}
}

// Log appends an audit entry. data is rendered with %v and cut to 200
// characters.
func (rc *RunContext) Log(stage, action string, data any) {
	text := ""
	if data != nil {
		text = fmt.Sprintf("%v", data)
	}
	entry := AuditEntry{
		Timestamp: rc.now().UTC(),
		Stage:     stage,
		Action:    action,
		Data:      truncate(text, maxAuditData),
	}

	rc.mu.Lock()
	rc.history = append(rc.history, entry)
	rc.mu.Unlock()
}

// History returns a copy of the audit trail in append order.
func (rc *RunContext) History() []AuditEntry {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	out := make([]AuditEntry, len(rc.history))
	copy(out, rc.history)
	return out
}

// Metadata returns a snapshot of all metadata by name.
func (rc *RunContext) Metadata() map[string]any {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	out := make(map[string]any, len(rc.meta))
	for k, v := range rc.meta {
		out[k] = v
	}
	return out
}

// Set stores v under k.
func Set[T any](rc *RunContext, k Key[T], v T) {
	rc.mu.Lock()
	rc.meta[k.name] = v
	rc.mu.Unlock()
}

// Get returns the value under k and whether it was set.
func Get[T any](rc *RunContext, k Key[T]) (T, bool) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	v, ok := rc.meta[k.name].(T)
	return v, ok
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
