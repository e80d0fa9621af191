// Package logging provides structured logging with OpenTelemetry integration.
//
// # Overview
//
// Logging package wraps Zap with:
//   - Custom Trace level (-2, below Debug)
//   - Dual output (stdout + OpenTelemetry via the otelzap bridge)
//   - Automatic context field injection (trace_id, run.trace, business.id)
//   - Secret redaction at the encoder
//   - Sampling below error level
//
// # Usage
//
//	cfg, err := logging.ConfigFor("debug", "console")
//	logger, err := logging.NewLogger(cfg, nil)
//	defer logger.Sync()
//
//	ctx = logging.WithRunTrace(ctx, "3f2a9c1e")
//	ctx = logging.WithBusinessID(ctx, "coffee-hub")
//	logger.Info(ctx, "stage complete", zap.String("stage", "Analyst"))
//
// Output:
//
//	{
//	  "ts": "2026-03-02T10:15:30Z",
//	  "level": "info",
//	  "msg": "stage complete",
//	  "service": "sme-growth-copilot",
//	  "run.trace": "3f2a9c1e",
//	  "business.id": "coffee-hub",
//	  "stage": "Analyst"
//	}
//
// # Secret Redaction
//
// config.Secret values render as [REDACTED]. On top of that the encoder
// redacts fields named like credentials and values matching bearer/API key
// patterns. Use Secret for explicit fields; it logs only the length.
//
// # Testing
//
//	tl := logging.NewTestLogger()
//	tl.Info(ctx, "plan created")
//	tl.AssertLogged(t, zapcore.InfoLevel, "plan created")
//	tl.AssertNoSecrets(t)
package logging
