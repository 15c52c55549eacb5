// Package observe provides application-wide observability primitives for
// Vocalis: OpenTelemetry metrics, distributed tracing, structured logging,
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

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all Vocalis metrics.
const meterName = "github.com/MrWong99/vocalis"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms ---

	// IngestDuration tracks per-event transcript ingestion latency.
	IngestDuration metric.Float64Histogram

	// SummaryDuration tracks end-of-session recap generation latency.
	SummaryDuration metric.Float64Histogram

	// ArchiveWriteDuration tracks the latency of persisting a finished
	// session to Postgres.
	ArchiveWriteDuration metric.Float64Histogram

	// --- Counters ---

	// EventsIngested counts processed realtime events. Use with attribute:
	//   attribute.String("outcome", ...)
	EventsIngested metric.Int64Counter

	// SessionsStarted counts realtime model sessions opened (including
	// reconnects).
	SessionsStarted metric.Int64Counter

	// --- Error counters ---

	// StreamErrors counts errors surfaced by the realtime event stream.
	StreamErrors metric.Int64Counter

	// --- Gauges ---

	// TranscriptEntries tracks the number of entries in the live transcript.
	TranscriptEntries metric.Int64UpDownCounter

	// WSClients tracks the number of browsers subscribed to transcript
	// updates over WebSocket.
	WSClients metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) optimised
// for event-processing latencies.
var latencyBuckets = []float64{
	0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.IngestDuration, err = m.Float64Histogram("vocalis.ingest.duration",
		metric.WithDescription("Latency of a single transcript event ingestion."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.SummaryDuration, err = m.Float64Histogram("vocalis.summary.duration",
		metric.WithDescription("Latency of end-of-session recap generation."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ArchiveWriteDuration, err = m.Float64Histogram("vocalis.archive.write.duration",
		metric.WithDescription("Latency of archiving a finished session."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.EventsIngested, err = m.Int64Counter("vocalis.events.ingested",
		metric.WithDescription("Total realtime events processed by outcome."),
	); err != nil {
		return nil, err
	}
	if met.SessionsStarted, err = m.Int64Counter("vocalis.sessions.started",
		metric.WithDescription("Total realtime model sessions opened."),
	); err != nil {
		return nil, err
	}

	// Error counters.
	if met.StreamErrors, err = m.Int64Counter("vocalis.stream.errors",
		metric.WithDescription("Total errors surfaced by the realtime event stream."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.TranscriptEntries, err = m.Int64UpDownCounter("vocalis.transcript.entries",
		metric.WithDescription("Number of entries in the live transcript."),
	); err != nil {
		return nil, err
	}
	if met.WSClients, err = m.Int64UpDownCounter("vocalis.ws.clients",
		metric.WithDescription("Number of WebSocket subscribers to transcript updates."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("vocalis.http.request.duration",
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

// RecordIngest records one processed event with its outcome and latency.
func (m *Metrics) RecordIngest(ctx context.Context, outcome string, seconds float64) {
	m.EventsIngested.Add(ctx, 1,
		metric.WithAttributes(attribute.String("outcome", outcome)),
	)
	m.IngestDuration.Record(ctx, seconds)
}

// RecordStreamError records an error surfaced by the realtime event stream.
func (m *Metrics) RecordStreamError(ctx context.Context, kind string) {
	m.StreamErrors.Add(ctx, 1,
		metric.WithAttributes(attribute.String("kind", kind)),
	)
}

// SetTranscriptEntries moves the transcript size gauge from its previous
// value to n.
func (m *Metrics) SetTranscriptEntries(ctx context.Context, prev, n int) {
	if delta := int64(n - prev); delta != 0 {
		m.TranscriptEntries.Add(ctx, delta)
	}
}
