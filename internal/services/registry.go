package services

import (
	"errors"

	"github.com/CrillyPienaah/sme-growth-copilot/internal/events"
	"github.com/CrillyPienaah/sme-growth-copilot/internal/memory"
	"github.com/CrillyPienaah/sme-growth-copilot/internal/pipeline"
	"github.com/CrillyPienaah/sme-growth-copilot/internal/store"
)

// Registry provides access to the growth co-pilot services.
type Registry interface {
	Planner() *Planner
	Orchestrator() *pipeline.Orchestrator
	Memory() memory.Service
	Store() store.Repository
	Events() events.Publisher

	// Close releases the memory service, publisher and store, in that order.
	Close() error
}

// Options configures the registry with service instances.
type Options struct {
	Planner      *Planner
	Orchestrator *pipeline.Orchestrator
	Memory       memory.Service
	Store        store.Repository
	Events       events.Publisher
}

type registry struct {
	planner      *Planner
	orchestrator *pipeline.Orchestrator
	memory       memory.Service
	store        store.Repository
	events       events.Publisher
}

// NewRegistry creates a new service registry.
func NewRegistry(opts Options) Registry {
	return &registry{
		planner:      opts.Planner,
		orchestrator: opts.Orchestrator,
		memory:       opts.Memory,
		store:        opts.Store,
		events:       opts.Events,
	}
}

func (r *registry) Planner() *Planner                    { return r.planner }
func (r *registry) Orchestrator() *pipeline.Orchestrator { return r.orchestrator }
func (r *registry) Memory() memory.Service               { return r.memory }
func (r *registry) Store() store.Repository              { return r.store }
func (r *registry) Events() events.Publisher             { return r.events }

func (r *registry) Close() error {
	var errs []error
	if r.memory != nil {
		errs = append(errs, r.memory.Close())
	}
	if r.events != nil {
		errs = append(errs, r.events.Close())
	}
	if r.store != nil {
		errs = append(errs, r.store.Close())
	}
	return errors.Join(errs...)
}
