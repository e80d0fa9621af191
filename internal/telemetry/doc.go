// Package telemetry provides OpenTelemetry instrumentation for the growth co-pilot.
//
// # Overview
//
// Traces and metrics go to an OTLP collector over HTTP (default) or gRPC.
// Each pipeline stage runs inside a span named pipeline.<Stage>.
//
// # Usage
//
//	tel, err := telemetry.New(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(ctx)
//
//	tracer := tel.Tracer("growth.pipeline")
//	ctx, span := tracer.Start(ctx, "pipeline.Analyst")
//	defer span.End()
//
// # Graceful Degradation
//
// Exporter construction failures mark the instance degraded and fall back to
// the global no-op providers. Health reports the failures.
//
// # Testing
//
// NewTestTelemetry records spans in memory and reads metrics on demand:
//
//	tel := telemetry.NewTestTelemetry()
//	// ... exercise code with tel.Tracer / tel.Meter
//	tel.AssertSpanExists(t, "pipeline.Judge")
//	n := tel.CounterValue(t, "growth.plans.created")
package telemetry
