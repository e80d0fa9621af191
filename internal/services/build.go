package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/CrillyPienaah/sme-growth-copilot/internal/commentary"
	"github.com/CrillyPienaah/sme-growth-copilot/internal/config"
	"github.com/CrillyPienaah/sme-growth-copilot/internal/events"
	"github.com/CrillyPienaah/sme-growth-copilot/internal/logging"
	"github.com/CrillyPienaah/sme-growth-copilot/internal/memory"
	"github.com/CrillyPienaah/sme-growth-copilot/internal/pipeline"
	"github.com/CrillyPienaah/sme-growth-copilot/internal/store"
	"github.com/CrillyPienaah/sme-growth-copilot/internal/telemetry"
)

// BuildOptions carries the process-wide collaborators for Build.
type BuildOptions struct {
	Logger    *logging.Logger
	Telemetry *telemetry.Telemetry

	// Metrics enables Prometheus pipeline metrics when set.
	Metrics *pipeline.Metrics
}

// Build wires a Registry from configuration: store, event publisher, memory
// service, commentary generator, orchestrator and planner.
//
// On error everything opened so far is closed.
func Build(ctx context.Context, cfg *config.Config, opts BuildOptions) (reg Registry, err error) {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	zl := logger.Underlying()

	repo, err := store.Open(cfg.Storage, zl.Named("store"))
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	defer func() {
		if err != nil {
			_ = repo.Close()
		}
	}()

	pub, err := NewPublisher(cfg.Events, zl.Named("events"))
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = pub.Close()
		}
	}()

	mem, err := memory.NewService(repo, pub, zl.Named("memory"))
	if err != nil {
		return nil, fmt.Errorf("creating memory service: %w", err)
	}

	gen, err := NewGenerator(ctx, cfg.Commentary, logger.Named("commentary"))
	if err != nil {
		return nil, err
	}

	orchOpts := []pipeline.Option{
		pipeline.WithLogger(logger.Named("pipeline")),
		pipeline.WithMemory(repo),
		pipeline.WithCommentator(gen),
		pipeline.WithTracer(opts.Telemetry.Tracer("github.com/CrillyPienaah/sme-growth-copilot/internal/pipeline")),
	}
	if opts.Metrics != nil {
		orchOpts = append(orchOpts, pipeline.WithMetrics(opts.Metrics))
	}
	orch := pipeline.New(orchOpts...)

	planner, err := NewPlanner(PlannerOptions{
		Orchestrator: orch,
		Repository:   repo,
		Memory:       mem,
		Events:       pub,
		Logger:       logger.Named("planner"),
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "services ready",
		zap.String("storage", cfg.Storage.Driver),
		zap.String("commentary", gen.Model()),
		zap.Bool("events", cfg.Events.NATSURL != ""))

	return NewRegistry(Options{
		Planner:      planner,
		Orchestrator: orch,
		Memory:       mem,
		Store:        repo,
		Events:       pub,
	}), nil
}

// NewPublisher connects to NATS when a URL is configured and otherwise
// returns events.Nop.
func NewPublisher(cfg config.EventsConfig, logger *zap.Logger) (events.Publisher, error) {
	if cfg.NATSURL == "" {
		return events.Nop{}, nil
	}
	pub, err := events.Connect(cfg.NATSURL, cfg.SubjectPrefix, logger)
	if err != nil {
		return nil, fmt.Errorf("connecting event publisher: %w", err)
	}
	return pub, nil
}

// NewGenerator returns the commentary generator selected by cfg.Provider.
func NewGenerator(ctx context.Context, cfg config.CommentaryConfig, logger *logging.Logger) (commentary.Generator, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	switch cfg.Provider {
	case config.CommentaryTemplate, "":
		return commentary.NewTemplate(), nil
	case config.CommentaryGemini:
		provider, err := commentary.NewGemini(ctx, cfg.APIKey.Value(), cfg.Model)
		if err != nil {
			return nil, fmt.Errorf("creating gemini provider: %w", err)
		}
		logger.Info(ctx, "gemini commentary enabled",
			zap.String("model", provider.Model()),
			logging.Secret("api_key", cfg.APIKey))
		return commentary.NewSafe(provider,
			commentary.WithLogger(logger),
			commentary.WithTimeout(cfg.Timeout),
		), nil
	default:
		return nil, fmt.Errorf("unknown commentary provider %q", cfg.Provider)
	}
}
