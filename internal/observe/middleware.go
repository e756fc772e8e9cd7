package observe

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// quietRoutes are polled by orchestrators and scrapers; their completions
// are logged at debug level.
var quietRoutes = map[string]bool{
	"GET /healthz": true,
	"GET /readyz":  true,
	"GET /metrics": true,
}

// statusRecorder captures the status code written by the downstream handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Unwrap lets [http.ResponseController] reach the underlying writer.
func (r *statusRecorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }

// statusClass maps 404 to "4xx".
func statusClass(code int) string {
	return fmt.Sprintf("%dxx", code/100)
}

// Middleware wraps the admin API. Each request gets a server span continuing
// any incoming W3C trace context, an X-Correlation-ID response header, a
// sample in [Metrics.HTTPRequestDuration] and one completion log line.
//
// Metric and span routes use the mux pattern that matched, so item lookups
// share one series. 5xx responses mark the span as failed.
func Middleware(m *Metrics) func(http.Handler) http.Handler {
	prop := propagation.TraceContext{}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			ctx := prop.Extract(r.Context(), propagation.HeaderCarrier(r.Header))
			ctx, span := StartSpan(ctx, "HTTP "+r.Method+" "+r.URL.Path,
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(
					semconv.HTTPRequestMethodKey.String(r.Method),
					semconv.URLPath(r.URL.Path),
				),
			)
			defer span.End()

			cid := CorrelationID(ctx)
			if cid != "" {
				w.Header().Set("X-Correlation-ID", cid)
			}
			prop.Inject(ctx, propagation.HeaderCarrier(w.Header()))

			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			r = r.WithContext(ctx)
			next.ServeHTTP(rec, r)

			// ServeMux sets Pattern on the request it was handed.
			route := r.Pattern
			if route == "" {
				route = r.URL.Path
			}
			elapsed := time.Since(start)
			m.HTTPRequestDuration.Record(ctx, elapsed.Seconds(),
				metric.WithAttributes(
					attribute.String("method", r.Method),
					attribute.String("path", route),
					attribute.String("status", statusClass(rec.status)),
				),
			)

			span.SetName("HTTP " + route)
			span.SetAttributes(
				semconv.HTTPResponseStatusCode(rec.status),
				semconv.HTTPRoute(route),
			)
			if rec.status >= http.StatusInternalServerError {
				span.SetStatus(codes.Error, http.StatusText(rec.status))
			}

			level := slog.LevelInfo
			switch {
			case rec.status >= http.StatusInternalServerError:
				level = slog.LevelError
			case rec.status >= http.StatusBadRequest:
				level = slog.LevelWarn
			case quietRoutes[route]:
				level = slog.LevelDebug
			}
			slog.LogAttrs(ctx, level, "request completed",
				slog.String("trace_id", cid),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("route", strings.TrimPrefix(route, r.Method+" ")),
				slog.Int("status", rec.status),
				slog.Duration("duration", elapsed),
			)
		})
	}
}
