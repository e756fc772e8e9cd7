package observe

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// tracerName is the instrumentation scope name for the rebalance tracer.
const tracerName = "github.com/MrWong99/rebalance"

// Tracer returns the package-level [trace.Tracer] for rebalance. It uses the
// globally registered [trace.TracerProvider].
func Tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// StartSpan starts a new span and returns the updated context and span. The
// caller must call span.End() when done.
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	if id := SessionID(ctx); id != "" {
		opts = append(opts, trace.WithAttributes(attribute.String("session.id", id)))
	}
	return Tracer().Start(ctx, name, opts...)
}

// FailSpan records err on span and marks the span as failed. A nil err is a
// no-op.
func FailSpan(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

type sessionKey struct{}

// WithSessionID returns a context carrying a patch session identifier. Spans
// started by [StartSpan] from it get a session.id attribute and [Logger]
// adds session_id.
func WithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionKey{}, id)
}

// SessionID returns the session identifier set by [WithSessionID].
func SessionID(ctx context.Context) string {
	id, _ := ctx.Value(sessionKey{}).(string)
	return id
}

// CorrelationID extracts the trace ID from the OTel span context in ctx.
// Returns the empty string when no active span with a valid trace ID exists.
// The trace ID doubles as the request correlation identifier.
func CorrelationID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if sc.HasTraceID() {
		return sc.TraceID().String()
	}
	return ""
}

// Logger returns an [slog.Logger] enriched with trace_id and span_id from
// the OTel span context in ctx, and session_id when one is set. Without
// either, the default slog logger is returned unchanged.
func Logger(ctx context.Context) *slog.Logger {
	l := slog.Default()
	if id := SessionID(ctx); id != "" {
		l = l.With(slog.String("session_id", id))
	}
	sc := trace.SpanContextFromContext(ctx)
	if sc.HasTraceID() {
		l = l.With(
			slog.String("trace_id", sc.TraceID().String()),
			slog.String("span_id", sc.SpanID().String()),
		)
	}
	return l
}
