package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/CrillyPienaah/sme-growth-copilot/internal/logging"
)

// DefaultSubjectPrefix is the first subject token when none is configured.
const DefaultSubjectPrefix = "growth"

// ErrNoConnection is returned when a NATS publisher has no connection.
var ErrNoConnection = errors.New("nats connection is required")

// NATSPublisher publishes events as JSON to core NATS.
//
// Subjects:
//   - {prefix}.plans.{business_id}.created
//   - {prefix}.memory.{business_id}.failed
type NATSPublisher struct {
	nc     *nats.Conn
	prefix string
	owned  bool
	logger *zap.Logger
	now    func() time.Time
}

// Connect dials url and returns a publisher that owns the connection.
func Connect(url, prefix string, logger *zap.Logger) (*NATSPublisher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	nc, err := nats.Connect(url,
		nats.Name("sme-growth-copilot"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("nats reconnected", zap.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to nats: %w", err)
	}

	p, err := NewNATSPublisher(nc, prefix, logger)
	if err != nil {
		nc.Close()
		return nil, err
	}
	p.owned = true
	return p, nil
}

// NewNATSPublisher wraps an existing connection. Close does not close nc.
func NewNATSPublisher(nc *nats.Conn, prefix string, logger *zap.Logger) (*NATSPublisher, error) {
	if nc == nil {
		return nil, ErrNoConnection
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	return &NATSPublisher{nc: nc, prefix: prefix, logger: logger, now: time.Now}, nil
}

// PlanSubject is the subject PlanCreated events for businessID go to.
func (p *NATSPublisher) PlanSubject(businessID string) string {
	return fmt.Sprintf("%s.plans.%s.created", p.prefix, subjectToken(businessID))
}

// FailureSubject is the subject FailureRecorded events for businessID go to.
func (p *NATSPublisher) FailureSubject(businessID string) string {
	return fmt.Sprintf("%s.memory.%s.failed", p.prefix, subjectToken(businessID))
}

// PlanCreated implements Publisher.
func (p *NATSPublisher) PlanCreated(ctx context.Context, ev PlanCreated) error {
	ev.Type = TypePlanCreated
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = p.now().UTC()
	}
	return p.publish(ctx, p.PlanSubject(ev.BusinessID), ev)
}

// FailureRecorded implements Publisher and memory.Notifier.
func (p *NATSPublisher) FailureRecorded(ctx context.Context, businessID, experiment string) error {
	return p.publish(ctx, p.FailureSubject(businessID), FailureRecorded{
		Type:       TypeFailureRecorded,
		BusinessID: businessID,
		Experiment: experiment,
		OccurredAt: p.now().UTC(),
	})
}

// Close flushes pending messages and closes the connection if this
// publisher opened it.
func (p *NATSPublisher) Close() error {
	if !p.owned {
		return nil
	}
	err := p.nc.Drain()
	if err != nil {
		p.nc.Close()
	}
	return err
}

func (p *NATSPublisher) publish(ctx context.Context, subject string, payload any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	msg := nats.NewMsg(subject)
	msg.Data = data
	if trace := logging.RunTraceFromContext(ctx); trace != "" {
		msg.Header.Set(RunTraceHeader, trace)
	}

	if err := p.nc.PublishMsg(msg); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	p.logger.Debug("event published", zap.String("subject", subject), zap.Int("bytes", len(data)))
	return nil
}

// subjectToken makes s safe to use as one NATS subject token.
func subjectToken(s string) string {
	if s == "" {
		return "_"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\r', '\n':
			return '_'
		}
		return r
	}, s)
}
