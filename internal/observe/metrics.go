// Package observe provides application-wide observability primitives for
// voxgate: OpenTelemetry metrics, distributed tracing, structured logging,
// and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can still be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
//
// The detector itself never records metrics. All recording happens in the
// stream layer that wraps it, so the per-block processing path stays free of
// side effects.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all voxgate metrics.
const meterName = "github.com/MrWong99/voxgate"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use; the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Counters ---

	// BlocksProcessed counts audio blocks run through a detector. Use with
	// attribute: attribute.String("stream", ...)
	BlocksProcessed metric.Int64Counter

	// EventsEmitted counts detection events by transition direction. Use
	// with attributes:
	//   attribute.String("stream", ...), attribute.String("state", "speaking"|"silence")
	EventsEmitted metric.Int64Counter

	// EventsDropped counts events discarded because a subscriber fell
	// behind. Use with attribute: attribute.String("stream", ...)
	EventsDropped metric.Int64Counter

	// --- Histograms ---

	// SegmentDuration tracks the length of completed speech segments.
	SegmentDuration metric.Float64Histogram

	// --- Gauges ---

	// ActiveStreams tracks the number of open detection streams.
	ActiveStreams metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// segmentBuckets defines histogram bucket boundaries (in seconds) sized for
// human speech: single words land near the bottom, monologues at the top.
var segmentBuckets = []float64{
	0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Counters.
	if met.BlocksProcessed, err = m.Int64Counter("voxgate.blocks.processed",
		metric.WithDescription("Total audio blocks run through a detector, by stream."),
	); err != nil {
		return nil, err
	}
	if met.EventsEmitted, err = m.Int64Counter("voxgate.events.emitted",
		metric.WithDescription("Total detection events by stream and transition direction."),
	); err != nil {
		return nil, err
	}
	if met.EventsDropped, err = m.Int64Counter("voxgate.events.dropped",
		metric.WithDescription("Total detection events discarded because a subscriber fell behind."),
	); err != nil {
		return nil, err
	}

	// Histograms.
	if met.SegmentDuration, err = m.Float64Histogram("voxgate.segment.duration",
		metric.WithDescription("Duration of completed speech segments."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(segmentBuckets...),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveStreams, err = m.Int64UpDownCounter("voxgate.active_streams",
		metric.WithDescription("Number of currently open detection streams."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("voxgate.http.request.duration",
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

// RecordBlocks is a convenience method that adds n processed blocks for a
// stream. Call it with batched counts rather than per block; the ingest loop
// is the hot path.
func (m *Metrics) RecordBlocks(ctx context.Context, stream string, n int64) {
	m.BlocksProcessed.Add(ctx, n,
		metric.WithAttributes(attribute.String("stream", stream)),
	)
}

// RecordEvent is a convenience method that records one detection event with
// the standard attribute set.
func (m *Metrics) RecordEvent(ctx context.Context, stream string, speaking bool) {
	state := "silence"
	if speaking {
		state = "speaking"
	}
	m.EventsEmitted.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("stream", stream),
			attribute.String("state", state),
		),
	)
}

// RecordDroppedEvent is a convenience method that records one discarded
// event for a stream.
func (m *Metrics) RecordDroppedEvent(ctx context.Context, stream string) {
	m.EventsDropped.Add(ctx, 1,
		metric.WithAttributes(attribute.String("stream", stream)),
	)
}

// RecordSegment is a convenience method that records a completed speech
// segment's duration in seconds.
func (m *Metrics) RecordSegment(ctx context.Context, stream string, seconds float64) {
	m.SegmentDuration.Record(ctx, seconds,
		metric.WithAttributes(attribute.String("stream", stream)),
	)
}
