package logging

import (
	"context"
	"fmt"
	"regexp"
	"unicode/utf8"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const maxIDLen = 128

var idPattern = regexp.MustCompile(`^[a-zA-Z0-9_.:-]+$`)

type runTraceCtxKey struct{}
type businessCtxKey struct{}
type requestCtxKey struct{}
type loggerCtxKey struct{}

// ContextFields extracts correlation data from context.
func ContextFields(ctx context.Context) []zap.Field {
	fields := make([]zap.Field, 0, 6)

	if span := trace.SpanFromContext(ctx); span.SpanContext().IsValid() {
		sc := span.SpanContext()
		fields = append(fields,
			zap.String("trace_id", sc.TraceID().String()),
			zap.String("span_id", sc.SpanID().String()),
		)
		if sc.IsSampled() {
			fields = append(fields, zap.Bool("trace_sampled", true))
		}
	}

	if id := RunTraceFromContext(ctx); id != "" {
		fields = append(fields, zap.String("run.trace", id))
	}
	if id := BusinessIDFromContext(ctx); id != "" {
		fields = append(fields, zap.String("business.id", id))
	}
	if id := RequestIDFromContext(ctx); id != "" {
		fields = append(fields, zap.String("request.id", id))
	}

	return fields
}

// ValidID reports whether id can be used as a run trace or request id.
func ValidID(id string) bool {
	return validateID(id, "id") == nil
}

func validateID(id, name string) error {
	if id == "" {
		return fmt.Errorf("%s cannot be empty", name)
	}
	if !utf8.ValidString(id) {
		return fmt.Errorf("%s contains invalid UTF-8", name)
	}
	if len(id) > maxIDLen {
		return fmt.Errorf("%s exceeds max length %d", name, maxIDLen)
	}
	if !idPattern.MatchString(id) {
		return fmt.Errorf("%s contains invalid characters", name)
	}
	return nil
}

func stringFromContext(ctx context.Context, key any) string {
	if s, ok := ctx.Value(key).(string); ok {
		return s
	}
	return ""
}

// WithRunTrace tags ctx with a pipeline run's trace id.
// Panics if id is empty or contains invalid characters.
func WithRunTrace(ctx context.Context, id string) context.Context {
	if err := validateID(id, "run trace"); err != nil {
		panic(fmt.Sprintf("logging: %v", err))
	}
	return context.WithValue(ctx, runTraceCtxKey{}, id)
}

// RunTraceFromContext returns the run trace id, or "".
func RunTraceFromContext(ctx context.Context) string {
	return stringFromContext(ctx, runTraceCtxKey{})
}

// WithBusinessID tags ctx with the business a request is about.
// Invalid ids are ignored since business ids come from callers.
func WithBusinessID(ctx context.Context, id string) context.Context {
	if validateID(id, "business id") != nil {
		return ctx
	}
	return context.WithValue(ctx, businessCtxKey{}, id)
}

// BusinessIDFromContext returns the business id, or "".
func BusinessIDFromContext(ctx context.Context) string {
	return stringFromContext(ctx, businessCtxKey{})
}

// WithRequestID adds request ID to context.
// Panics if requestID is empty or contains invalid characters.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	if err := validateID(requestID, "requestID"); err != nil {
		panic(fmt.Sprintf("logging: %v", err))
	}
	return context.WithValue(ctx, requestCtxKey{}, requestID)
}

// RequestIDFromContext extracts request ID from context.
func RequestIDFromContext(ctx context.Context) string {
	return stringFromContext(ctx, requestCtxKey{})
}

// WithLogger stores logger in context.
func WithLogger(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, loggerCtxKey{}, logger)
}

// FromContext retrieves logger from context.
// Returns a nop logger if not found.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(loggerCtxKey{}).(*Logger); ok {
		return l
	}
	return NewNop()
}
