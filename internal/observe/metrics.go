// Package observe provides application-wide observability primitives for
// stomplog: OpenTelemetry metrics, tracing helpers, and structured-logging
// glue.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can be
// scraped from the standard /metrics endpoint. A package-level default
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

// meterName is the instrumentation scope name used for all stomplog metrics.
const meterName = "github.com/stomplog/stomplog"

// Metrics holds all OpenTelemetry metric instruments for the analysis
// pipeline. All fields are safe for concurrent use — the underlying OTel
// types handle their own synchronisation.
type Metrics struct {
	// BuffersProcessed counts audio buffers fed through the pipeline.
	BuffersProcessed metric.Int64Counter

	// CandidatesDetected counts buffers that passed the cheap gate.
	CandidatesDetected metric.Int64Counter

	// EventsClassified counts emitted classifications. Use with attribute:
	//   attribute.String("type", ...)
	EventsClassified metric.Int64Counter

	// EchoSuppressed counts candidates rejected as acoustic reflections.
	EchoSuppressed metric.Int64Counter

	// ClassifyDuration tracks the spectral+classification stage latency.
	ClassifyDuration metric.Float64Histogram

	// EventLevel tracks the decibel level of classified events.
	EventLevel metric.Float64Histogram

	// AmbientLevel records the current ambient noise-floor estimate.
	AmbientLevel metric.Float64Gauge

	// ActiveSessions tracks the number of live analysis sessions.
	ActiveSessions metric.Int64UpDownCounter

	// HTTPRequestDuration tracks API request latency by method and path.
	HTTPRequestDuration metric.Float64Histogram
}

// classifyBuckets defines histogram bucket boundaries (in seconds) sized
// for a per-buffer FFT+heuristic stage that must beat the ~90 ms capture
// cadence.
var classifyBuckets = []float64{
	0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.09, 0.25, 1,
}

// levelBuckets spans the plausible SPL range of indoor impact events.
var levelBuckets = []float64{
	30, 35, 40, 45, 50, 55, 60, 70, 80, 100,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.BuffersProcessed, err = m.Int64Counter("stomplog.buffers.processed",
		metric.WithDescription("Total audio buffers fed through the analysis pipeline."),
	); err != nil {
		return nil, err
	}
	if met.CandidatesDetected, err = m.Int64Counter("stomplog.candidates.detected",
		metric.WithDescription("Total buffers flagged as impact candidates by the gate."),
	); err != nil {
		return nil, err
	}
	if met.EventsClassified, err = m.Int64Counter("stomplog.events.classified",
		metric.WithDescription("Total classified events by impact type."),
	); err != nil {
		return nil, err
	}
	if met.EchoSuppressed, err = m.Int64Counter("stomplog.events.echo_suppressed",
		metric.WithDescription("Total candidates rejected as reflections of a recent loud event."),
	); err != nil {
		return nil, err
	}
	if met.ClassifyDuration, err = m.Float64Histogram("stomplog.classify.duration",
		metric.WithDescription("Latency of the spectral analysis + classification stage."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(classifyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.EventLevel, err = m.Float64Histogram("stomplog.events.level",
		metric.WithDescription("Decibel level of classified events."),
		metric.WithUnit("dB"),
		metric.WithExplicitBucketBoundaries(levelBuckets...),
	); err != nil {
		return nil, err
	}
	if met.AmbientLevel, err = m.Float64Gauge("stomplog.ambient.level",
		metric.WithDescription("Current ambient noise-floor estimate."),
		metric.WithUnit("dB"),
	); err != nil {
		return nil, err
	}
	if met.ActiveSessions, err = m.Int64UpDownCounter("stomplog.sessions.active",
		metric.WithDescription("Number of live analysis sessions."),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("stomplog.http.request.duration",
		metric.WithDescription("HTTP request duration."),
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

// DefaultMetrics returns the package-level [Metrics] instance, creating it
// on first call using [otel.GetMeterProvider]. Subsequent calls return the
// same pointer. Panics if instrument creation fails (should not happen
// with the global provider).
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

// RecordEvent records a classified event: the by-type counter and the
// level histogram in one call.
func (m *Metrics) RecordEvent(ctx context.Context, impactType string, levelDB float64) {
	m.EventsClassified.Add(ctx, 1,
		metric.WithAttributes(attribute.String("type", impactType)),
	)
	m.EventLevel.Record(ctx, levelDB)
}
