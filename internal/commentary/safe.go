package commentary

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/CrillyPienaah/sme-growth-copilot/internal/growth"
	"github.com/CrillyPienaah/sme-growth-copilot/internal/logging"
)

// DefaultTimeout bounds one provider call.
const DefaultTimeout = 30 * time.Second

// ErrEmptyResponse is returned by providers that produced no text.
var ErrEmptyResponse = errors.New("provider returned empty commentary")

// Generator writes strategy commentary and never fails.
type Generator interface {
	Generate(ctx context.Context, plan growth.GrowthPlan) string
	Model() string
}

// Provider is a fallible commentary source such as a hosted model.
type Provider interface {
	Complete(ctx context.Context, plan growth.GrowthPlan) (string, error)
	Model() string
}

// Safe adapts a Provider into a Generator. Provider errors, timeouts and
// blank responses are logged and answered with Fallback.
type Safe struct {
	provider Provider
	logger   *logging.Logger
	timeout  time.Duration
}

// SafeOption configures Safe.
type SafeOption func(*Safe)

// WithLogger sets the logger used for fallback warnings.
func WithLogger(l *logging.Logger) SafeOption {
	return func(s *Safe) { s.logger = l }
}

// WithTimeout bounds each provider call. Non-positive values are ignored.
func WithTimeout(d time.Duration) SafeOption {
	return func(s *Safe) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// NewSafe wraps p.
func NewSafe(p Provider, opts ...SafeOption) *Safe {
	initMetrics()
	s := &Safe{
		provider: p,
		logger:   logging.NewNop(),
		timeout:  DefaultTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Model reports the provider's model.
func (s *Safe) Model() string {
	return s.provider.Model()
}

// Generate implements Generator.
func (s *Safe) Generate(ctx context.Context, plan growth.GrowthPlan) string {
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	text, err := s.provider.Complete(callCtx, plan)
	if err == nil && strings.TrimSpace(text) == "" {
		err = ErrEmptyResponse
	}
	if err != nil {
		reason := reasonError
		switch {
		case errors.Is(err, ErrEmptyResponse):
			reason = reasonEmpty
		case errors.Is(err, context.DeadlineExceeded):
			reason = reasonTimeout
		}
		fallbacksTotal.WithLabelValues(s.provider.Model(), reason).Inc()
		s.logger.Warn(ctx, "commentary provider failed, using template",
			zap.String("model", s.provider.Model()),
			zap.String("reason", reason),
			zap.Error(err))
		return Fallback(plan)
	}

	generatedTotal.WithLabelValues(s.provider.Model()).Inc()
	s.logger.Debug(ctx, "commentary generated",
		zap.String("model", s.provider.Model()),
		zap.Int("chars", len(text)),
		zap.Duration("elapsed", time.Since(start)))
	return strings.TrimSpace(text)
}
