package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const instrumentationName = "github.com/CrillyPienaah/sme-growth-copilot/internal/memory"

// ErrClosed is returned by a closed Service.
var ErrClosed = errors.New("memory service is closed")

// Notifier is told about newly recorded failures.
type Notifier interface {
	FailureRecorded(ctx context.Context, businessID, experiment string) error
}

// Outcome is a stored experiment outcome.
type Outcome struct {
	BusinessID string
	Experiment string
	Status     string

	// Added is set when the write put Experiment into strategy memory.
	Added bool
}

// OutcomeWriter stores an outcome in one atomic write.
type OutcomeWriter func(ctx context.Context) (Outcome, error)

// Service manages strategy memory on top of a Store.
type Service interface {
	// Failures returns the business's memory record.
	Failures(ctx context.Context, businessID string) (*Record, error)

	// RecordFailure adds experiment to the business's failed set.
	RecordFailure(ctx context.Context, businessID, experiment string) (*Record, error)

	// RecordOutcome persists an experiment outcome through write. The write
	// must store the outcome and any strategy memory change together, so a
	// failed write leaves both untouched.
	RecordOutcome(ctx context.Context, write OutcomeWriter) (Outcome, error)

	// Close closes the service.
	Close() error
}

type service struct {
	store    Store
	notifier Notifier
	logger   *zap.Logger

	tracer          trace.Tracer
	failureCounter  metric.Int64Counter
	outcomesCounter metric.Int64Counter

	mu     sync.RWMutex
	closed bool
}

// NewService creates a memory service. notifier may be nil.
func NewService(store Store, notifier Notifier, logger *zap.Logger) (Service, error) {
	if store == nil {
		return nil, errors.New("memory store is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &service{
		store:    store,
		notifier: notifier,
		logger:   logger,
		tracer:   otel.Tracer(instrumentationName),
	}
	s.initMetrics(otel.Meter(instrumentationName))
	return s, nil
}

func (s *service) initMetrics(meter metric.Meter) {
	var err error

	s.failureCounter, err = meter.Int64Counter(
		"growth.memory.failures_recorded_total",
		metric.WithDescription("Experiments recorded as failed in strategy memory"),
		metric.WithUnit("{experiment}"),
	)
	if err != nil {
		s.logger.Warn("failed to create failure counter", zap.Error(err))
	}

	s.outcomesCounter, err = meter.Int64Counter(
		"growth.memory.outcomes_total",
		metric.WithDescription("Experiment outcomes reported"),
		metric.WithUnit("{outcome}"),
	)
	if err != nil {
		s.logger.Warn("failed to create outcome counter", zap.Error(err))
	}
}

func (s *service) checkOpen() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	return nil
}

// Failures implements Service.
func (s *service) Failures(ctx context.Context, businessID string) (*Record, error) {
	ctx, span := s.tracer.Start(ctx, "memory.failures")
	defer span.End()
	span.SetAttributes(attribute.String("business_id", businessID))

	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	if businessID == "" {
		return nil, ErrEmptyBusinessID
	}

	names, err := s.store.FailedExperiments(ctx, businessID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "lookup failed")
		return nil, fmt.Errorf("reading strategy memory: %w", err)
	}
	if names == nil {
		names = []string{}
	}
	return &Record{BusinessID: businessID, FailedExperiments: names}, nil
}

// RecordFailure implements Service.
func (s *service) RecordFailure(ctx context.Context, businessID, experiment string) (*Record, error) {
	ctx, span := s.tracer.Start(ctx, "memory.record_failure")
	defer span.End()
	span.SetAttributes(
		attribute.String("business_id", businessID),
		attribute.String("experiment", experiment),
	)

	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	if err := Validate(businessID, experiment); err != nil {
		return nil, err
	}

	added, err := s.store.RecordFailure(ctx, businessID, experiment)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "write failed")
		return nil, fmt.Errorf("recording failure: %w", err)
	}
	if added {
		s.failureAdded(ctx, businessID, experiment)
	}

	return s.Failures(ctx, businessID)
}

// RecordOutcome implements Service.
func (s *service) RecordOutcome(ctx context.Context, write OutcomeWriter) (Outcome, error) {
	ctx, span := s.tracer.Start(ctx, "memory.record_outcome")
	defer span.End()

	if err := s.checkOpen(); err != nil {
		return Outcome{}, err
	}
	if write == nil {
		return Outcome{}, errors.New("outcome writer is required")
	}

	out, err := write(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "write failed")
		return Outcome{}, err
	}
	span.SetAttributes(
		attribute.String("business_id", out.BusinessID),
		attribute.String("status", out.Status),
	)

	if s.outcomesCounter != nil {
		s.outcomesCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("status", out.Status)))
	}
	if out.Added {
		s.failureAdded(ctx, out.BusinessID, out.Experiment)
	}
	return out, nil
}

// failureAdded counts, logs and announces an experiment that just entered
// strategy memory.
func (s *service) failureAdded(ctx context.Context, businessID, experiment string) {
	if s.failureCounter != nil {
		s.failureCounter.Add(ctx, 1)
	}

	s.logger.Info("experiment recorded as failed",
		zap.String("business_id", businessID),
		zap.String("experiment", experiment))

	if s.notifier != nil {
		if err := s.notifier.FailureRecorded(ctx, businessID, experiment); err != nil {
			s.logger.Warn("failure notification not delivered",
				zap.String("business_id", businessID),
				zap.Error(err))
		}
	}
}

// Close implements Service.
func (s *service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
