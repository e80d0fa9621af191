// Growthd serves the SME growth co-pilot HTTP API.
//
// Configuration is read from ~/.config/growth-copilot/config.yaml (or the
// file given with -config) and GROWTH_* environment variables. See
// internal/config for details.
//
// Usage:
//
//	# Start with defaults (in-memory store, template commentary)
//	growthd
//
//	# SQLite persistence and Gemini commentary
//	GROWTH_STORAGE_DRIVER=sqlite GROWTH_COMMENTARY_PROVIDER=gemini \
//	GROWTH_COMMENTARY_API_KEY=... growthd
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/CrillyPienaah/sme-growth-copilot/internal/config"
	httpapi "github.com/CrillyPienaah/sme-growth-copilot/internal/http"
	"github.com/CrillyPienaah/sme-growth-copilot/internal/logging"
	"github.com/CrillyPienaah/sme-growth-copilot/internal/pipeline"
	"github.com/CrillyPienaah/sme-growth-copilot/internal/services"
	"github.com/CrillyPienaah/sme-growth-copilot/internal/telemetry"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	if args := flag.Args(); len(args) > 0 {
		switch args[0] {
		case "version":
			printVersion()
			os.Exit(0)
		default:
			fmt.Fprintf(os.Stderr, "Unknown command: %s\n", args[0])
			fmt.Fprintf(os.Stderr, "\nUsage:\n")
			fmt.Fprintf(os.Stderr, "  growthd [-config path]   Start the API server\n")
			fmt.Fprintf(os.Stderr, "  growthd version          Show version information\n")
			os.Exit(1)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadWithFile(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "growthd: %v\n", err)
		os.Exit(1)
	}

	if err := run(ctx, cfg); err != nil && !errors.Is(err, http.ErrServerClosed) {
		fmt.Fprintf(os.Stderr, "growthd: %v\n", err)
		os.Exit(1)
	}
}

func printVersion() {
	fmt.Printf("growthd (SME Growth Co-Pilot)\n")
	fmt.Printf("Version:    %s\n", version)
	fmt.Printf("Commit:     %s\n", gitCommit)
	fmt.Printf("Build Date: %s\n", buildDate)
}

// run starts the server and blocks until ctx is canceled.
//
//  1. Initializes telemetry and the logger
//  2. Builds the service registry (store, events, memory, pipeline)
//  3. Serves HTTP until ctx is canceled, then shuts down gracefully
//
// Returns http.ErrServerClosed on graceful shutdown.
func run(ctx context.Context, cfg *config.Config) error {
	tel, err := telemetry.New(ctx, telemetryConfig(cfg))
	if err != nil {
		return fmt.Errorf("initializing telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		_ = tel.Shutdown(shutdownCtx)
	}()

	logCfg, err := logging.ConfigFor(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return fmt.Errorf("invalid log config: %w", err)
	}
	logger, err := logging.NewLogger(logCfg, tel.LoggerProvider())
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	logger.Info(ctx, "starting growthd",
		zap.String("version", version),
		zap.String("addr", fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)),
		zap.String("storage", cfg.Storage.Driver),
		zap.String("commentary", cfg.Commentary.Provider),
		zap.Bool("telemetry", tel.IsEnabled()))

	reg, err := services.Build(ctx, cfg, services.BuildOptions{
		Logger:    logger,
		Telemetry: tel,
		Metrics:   pipeline.NewMetrics(),
	})
	if err != nil {
		return fmt.Errorf("initializing services: %w", err)
	}
	defer func() {
		if err := reg.Close(); err != nil {
			logger.Warn(ctx, "closing services", zap.Error(err))
		}
	}()

	srv, err := httpapi.NewServer(reg.Planner(), logger.Named("http"), &httpapi.Config{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		RateLimit:       cfg.Server.RateLimit,
		Service:         cfg.Observability.ServiceName,
	})
	if err != nil {
		return fmt.Errorf("creating http server: %w", err)
	}

	err = srv.Start(ctx)
	logger.Info(context.WithoutCancel(ctx), "growthd stopped")
	return err
}

func telemetryConfig(cfg *config.Config) *telemetry.Config {
	tc := telemetry.NewDefaultConfig()
	tc.Enabled = cfg.Observability.EnableTelemetry
	tc.Endpoint = cfg.Observability.OTLPEndpoint
	tc.Protocol = cfg.Observability.OTLPProtocol
	tc.ServiceName = cfg.Observability.ServiceName
	tc.ServiceVersion = version
	tc.Insecure = cfg.Observability.Insecure
	return tc
}
