package memory

import (
	"context"
	"errors"
	"strings"
	"sync"
)

var (
	// ErrEmptyBusinessID is returned when a business id is blank.
	ErrEmptyBusinessID = errors.New("business id is required")

	// ErrEmptyExperiment is returned when an experiment name is blank.
	ErrEmptyExperiment = errors.New("experiment name is required")
)

// Store is the read/write contract for strategy memory.
type Store interface {
	// FailedExperiments returns the names of experiments that previously
	// failed for the business, in the order they were first recorded.
	// An unknown business yields an empty slice.
	FailedExperiments(ctx context.Context, businessID string) ([]string, error)

	// RecordFailure adds name to the business's failed set and reports
	// whether it was added. Recording the same name twice leaves the set
	// unchanged and reports false.
	RecordFailure(ctx context.Context, businessID, name string) (bool, error)
}

// Record is the strategy memory of one business.
type Record struct {
	BusinessID        string   `json:"business_id"`
	FailedExperiments []string `json:"failed_experiments"`
}

// MemStore is an in-process Store.
type MemStore struct {
	mu     sync.RWMutex
	failed map[string][]string
}

// NewMemStore returns an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{failed: make(map[string][]string)}
}

// FailedExperiments implements Store.
func (m *MemStore) FailedExperiments(ctx context.Context, businessID string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := m.failed[businessID]
	out := make([]string, len(names))
	copy(out, names)
	return out, nil
}

// RecordFailure implements Store.
func (m *MemStore) RecordFailure(ctx context.Context, businessID, name string) (bool, error) {
	if err := Validate(businessID, name); err != nil {
		return false, err
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	before := len(m.failed[businessID])
	m.failed[businessID] = AddUnique(m.failed[businessID], name)
	return len(m.failed[businessID]) > before, nil
}

// AddUnique appends name unless it is already present.
func AddUnique(names []string, name string) []string {
	for _, n := range names {
		if n == name {
			return names
		}
	}
	return append(names, name)
}

// Validate checks the arguments of RecordFailure.
func Validate(businessID, name string) error {
	if strings.TrimSpace(businessID) == "" {
		return ErrEmptyBusinessID
	}
	if strings.TrimSpace(name) == "" {
		return ErrEmptyExperiment
	}
	return nil
}
