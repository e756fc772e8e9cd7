// Package observe provides application-wide observability primitives for
// rebalance: OpenTelemetry metrics, distributed tracing, structured logging,
// and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can still be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all rebalance metrics.
const meterName = "github.com/MrWong99/rebalance"

// Status values used on counters.
const (
	StatusOK            = "ok"
	StatusError         = "error"
	StatusNotApplicable = "not_applicable"
	StatusRejected      = "rejected"
)

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use; the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms ---

	// ModifyDuration tracks how long a session takes to apply its patch set.
	ModifyDuration metric.Float64Histogram

	// RestoreDuration tracks how long a session takes to restore its image.
	RestoreDuration metric.Float64Histogram

	// PatchSetLoadDuration tracks patch set fetch and parse latency.
	PatchSetLoadDuration metric.Float64Histogram

	// --- Counters ---

	// Injections counts individual injector calls. Use with attributes:
	//   attribute.String("phase", ...), attribute.String("kind", ...), attribute.String("status", ...)
	Injections metric.Int64Counter

	// SessionOps counts modify/restore calls. Use with attributes:
	//   attribute.String("op", ...), attribute.String("status", ...)
	SessionOps metric.Int64Counter

	// PatchSetLoads counts patch set loads. Use with attributes:
	//   attribute.String("source", ...), attribute.String("status", ...)
	PatchSetLoads metric.Int64Counter

	// BreakerTransitions counts patch source circuit breaker state changes.
	// Use with attributes:
	//   attribute.String("source", ...), attribute.String("from", ...), attribute.String("to", ...)
	BreakerTransitions metric.Int64Counter

	// --- Gauges ---

	// ActiveSessions tracks the number of sessions currently in the
	// modified state.
	ActiveSessions metric.Int64UpDownCounter

	// ImageEntries tracks how many captured previous values are waiting to be
	// restored across all sessions.
	ImageEntries metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds). Patching
// an in-memory registry is fast; remote patch sources are not.
var latencyBuckets = []float64{
	0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.ModifyDuration, err = m.Float64Histogram("rebalance.session.modify.duration",
		metric.WithDescription("Latency of applying a patch set."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.RestoreDuration, err = m.Float64Histogram("rebalance.session.restore.duration",
		metric.WithDescription("Latency of restoring captured previous values."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.PatchSetLoadDuration, err = m.Float64Histogram("rebalance.patchset.load.duration",
		metric.WithDescription("Latency of fetching and parsing a patch set."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.Injections, err = m.Int64Counter("rebalance.injections",
		metric.WithDescription("Total injector calls by phase, transformer kind, and status."),
	); err != nil {
		return nil, err
	}
	if met.SessionOps, err = m.Int64Counter("rebalance.session.operations",
		metric.WithDescription("Total session modify/restore calls by status."),
	); err != nil {
		return nil, err
	}
	if met.PatchSetLoads, err = m.Int64Counter("rebalance.patchset.loads",
		metric.WithDescription("Total patch set loads by source and status."),
	); err != nil {
		return nil, err
	}

	if met.BreakerTransitions, err = m.Int64Counter("rebalance.source.breaker.transitions",
		metric.WithDescription("Patch source circuit breaker state changes."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveSessions, err = m.Int64UpDownCounter("rebalance.active_sessions",
		metric.WithDescription("Number of sessions currently holding modifications."),
	); err != nil {
		return nil, err
	}
	if met.ImageEntries, err = m.Int64UpDownCounter("rebalance.image_entries",
		metric.WithDescription("Number of captured previous values awaiting restoration."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("rebalance.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// StatusOf maps an error to [StatusOK] or [StatusError].
func StatusOf(err error) string {
	if err != nil {
		return StatusError
	}
	return StatusOK
}

// RecordInjection records one injector call.
func (m *Metrics) RecordInjection(ctx context.Context, phase, kind, status string) {
	m.Injections.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("phase", phase),
			attribute.String("kind", kind),
			attribute.String("status", status),
		),
	)
}

// RecordSessionOp records a modify or restore call and its duration.
// Rejected calls (illegal state) are counted but not timed.
func (m *Metrics) RecordSessionOp(ctx context.Context, op, status string, elapsed time.Duration) {
	m.SessionOps.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("op", op),
			attribute.String("status", status),
		),
	)
	if status == StatusRejected {
		return
	}
	attrs := metric.WithAttributes(attribute.String("status", status))
	switch op {
	case "modify":
		m.ModifyDuration.Record(ctx, elapsed.Seconds(), attrs)
	case "restore":
		m.RestoreDuration.Record(ctx, elapsed.Seconds(), attrs)
	}
}

// RecordPatchSetLoad records a patch set load attempt against source.
func (m *Metrics) RecordPatchSetLoad(ctx context.Context, source, status string, elapsed time.Duration) {
	m.PatchSetLoads.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("source", source),
			attribute.String("status", status),
		),
	)
	m.PatchSetLoadDuration.Record(ctx, elapsed.Seconds(),
		metric.WithAttributes(attribute.String("source", source)),
	)
}

// RecordBreakerTransition records a circuit breaker state change of source.
func (m *Metrics) RecordBreakerTransition(ctx context.Context, source, from, to string) {
	m.BreakerTransitions.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("source", source),
			attribute.String("from", from),
			attribute.String("to", to),
		),
	)
}
