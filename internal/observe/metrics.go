// Package observe provides application-wide observability primitives for
// dialsift: OpenTelemetry metrics with a Prometheus exporter bridge, so the
// classification outcomes can be scraped via the standard /metrics endpoint.
//
// A package-level default [Metrics] instance ([DefaultMetrics]) is provided
// for convenience; tests should use [NewMetrics] with a custom
// [metric.MeterProvider] to avoid cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all dialsift metrics.
const meterName = "github.com/dialsift/dialsift"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// CallsClassified counts terminated analyses. Use with attributes:
	//   attribute.String("status", ...), attribute.String("rule", ...)
	CallsClassified metric.Int64Counter

	// AnalysisDuration tracks the audio time consumed per analysis, i.e.
	// the accumulated frame time at termination, not wall-clock time.
	AnalysisDuration metric.Float64Histogram

	// SetupFailures counts calls aborted before the loop started. Use with
	// attribute: attribute.String("reason", "format"|"detector").
	SetupFailures metric.Int64Counter

	// ActiveCalls tracks the number of analyses currently in flight.
	ActiveCalls metric.Int64UpDownCounter

	// ConfigReloads counts successful configuration hot reloads.
	ConfigReloads metric.Int64Counter
}

// analysisBuckets defines histogram bucket boundaries (in seconds) covering
// the usual total-analysis-time range.
var analysisBuckets = []float64{
	0.1, 0.25, 0.5, 1, 1.5, 2, 2.5, 3, 4, 5, 7.5, 10,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.CallsClassified, err = m.Int64Counter("dialsift.calls.classified",
		metric.WithDescription("Total terminated call analyses by status and firing rule."),
	); err != nil {
		return nil, err
	}
	if met.AnalysisDuration, err = m.Float64Histogram("dialsift.analysis.duration",
		metric.WithDescription("Audio time consumed per analysis."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(analysisBuckets...),
	); err != nil {
		return nil, err
	}
	if met.SetupFailures, err = m.Int64Counter("dialsift.setup.failures",
		metric.WithDescription("Calls aborted before analysis by failure reason."),
	); err != nil {
		return nil, err
	}
	if met.ActiveCalls, err = m.Int64UpDownCounter("dialsift.active_calls",
		metric.WithDescription("Number of analyses currently in flight."),
	); err != nil {
		return nil, err
	}
	if met.ConfigReloads, err = m.Int64Counter("dialsift.config.reloads",
		metric.WithDescription("Successful configuration hot reloads."),
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

// RecordClassification records a terminated analysis: the outcome counter and
// the consumed-audio histogram.
func (m *Metrics) RecordClassification(ctx context.Context, status, rule string, audioSeconds float64) {
	m.CallsClassified.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("status", status),
			attribute.String("rule", rule),
		),
	)
	m.AnalysisDuration.Record(ctx, audioSeconds)
}

// RecordSetupFailure records a call aborted before analysis began.
func (m *Metrics) RecordSetupFailure(ctx context.Context, reason string) {
	m.SetupFailures.Add(ctx, 1,
		metric.WithAttributes(attribute.String("reason", reason)),
	)
}
