// Package observability provides a pool extension that records lifecycle
// metrics via OpenTelemetry. Register it with provepool.WithExtensions to
// track submission rates, completion latency, failure counts, crashes,
// and replacements without touching the pool's hot path.
package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/xraph/provepool/hook"
	"github.com/xraph/provepool/id"
)

// meterName is the instrumentation scope name for provepool metrics.
const meterName = "github.com/xraph/provepool/observability"

// Compile-time interface checks.
var (
	_ hook.Extension       = (*MetricsExtension)(nil)
	_ hook.JobQueued       = (*MetricsExtension)(nil)
	_ hook.JobDispatched   = (*MetricsExtension)(nil)
	_ hook.JobCompleted    = (*MetricsExtension)(nil)
	_ hook.JobFailed       = (*MetricsExtension)(nil)
	_ hook.JobCancelled    = (*MetricsExtension)(nil)
	_ hook.ContextCrashed  = (*MetricsExtension)(nil)
	_ hook.ContextReplaced = (*MetricsExtension)(nil)
)

// MetricsExtension records pool lifecycle metrics.
//
// Instruments:
//   - provepool.job.queued (Int64Counter)
//   - provepool.job.dispatched (Int64Counter)
//   - provepool.job.completed (Int64Counter)
//   - provepool.job.failed (Int64Counter), attribute: reason
//   - provepool.job.cancelled (Int64Counter)
//   - provepool.job.latency (Float64Histogram): submission to resolution,
//     queue wait included, in seconds
//   - provepool.queue.depth (Int64Gauge): backlog at enqueue time
//   - provepool.context.crashes (Int64Counter)
//   - provepool.context.replacements (Int64Counter)
type MetricsExtension struct {
	queued       metric.Int64Counter
	dispatched   metric.Int64Counter
	completed    metric.Int64Counter
	failed       metric.Int64Counter
	cancelled    metric.Int64Counter
	latency      metric.Float64Histogram
	queueDepth   metric.Int64Gauge
	crashes      metric.Int64Counter
	replacements metric.Int64Counter
}

// NewMetricsExtension creates a MetricsExtension using the global OTel
// MeterProvider. With no provider configured the instruments are noops.
func NewMetricsExtension() *MetricsExtension {
	return NewMetricsExtensionWithMeter(otel.Meter(meterName))
}

// NewMetricsExtensionWithMeter creates a MetricsExtension with the
// provided meter. This variant allows injecting a specific MeterProvider
// for testing.
func NewMetricsExtensionWithMeter(meter metric.Meter) *MetricsExtension {
	m := &MetricsExtension{}

	// On instrument creation errors the OTel API returns noops, so the
	// extension degrades gracefully.
	m.queued, _ = meter.Int64Counter("provepool.job.queued",
		metric.WithDescription("Jobs accepted into the queue"),
		metric.WithUnit("{job}"))
	m.dispatched, _ = meter.Int64Counter("provepool.job.dispatched",
		metric.WithDescription("Jobs handed to an execution context"),
		metric.WithUnit("{job}"))
	m.completed, _ = meter.Int64Counter("provepool.job.completed",
		metric.WithDescription("Jobs resolved with a proof"),
		metric.WithUnit("{job}"))
	m.failed, _ = meter.Int64Counter("provepool.job.failed",
		metric.WithDescription("Jobs rejected, by reason"),
		metric.WithUnit("{job}"))
	m.cancelled, _ = meter.Int64Counter("provepool.job.cancelled",
		metric.WithDescription("Queued jobs withdrawn before dispatch"),
		metric.WithUnit("{job}"))
	m.latency, _ = meter.Float64Histogram("provepool.job.latency",
		metric.WithDescription("Submission-to-resolution latency in seconds, queue wait included"),
		metric.WithUnit("s"))
	m.queueDepth, _ = meter.Int64Gauge("provepool.queue.depth",
		metric.WithDescription("Queue backlog observed at enqueue time"),
		metric.WithUnit("{job}"))
	m.crashes, _ = meter.Int64Counter("provepool.context.crashes",
		metric.WithDescription("Execution context crashes"),
		metric.WithUnit("{crash}"))
	m.replacements, _ = meter.Int64Counter("provepool.context.replacements",
		metric.WithDescription("Crashed slots refilled with a fresh context"),
		metric.WithUnit("{replacement}"))

	return m
}

// Name implements hook.Extension.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// OnJobQueued implements hook.JobQueued.
func (m *MetricsExtension) OnJobQueued(ctx context.Context, _ id.JobID, depth int) error {
	m.queued.Add(ctx, 1)
	m.queueDepth.Record(ctx, int64(depth))
	return nil
}

// OnJobDispatched implements hook.JobDispatched.
func (m *MetricsExtension) OnJobDispatched(ctx context.Context, _ id.JobID, _ id.ProverID) error {
	m.dispatched.Add(ctx, 1)
	return nil
}

// OnJobCompleted implements hook.JobCompleted.
func (m *MetricsExtension) OnJobCompleted(ctx context.Context, _ id.JobID, elapsed time.Duration) error {
	m.completed.Add(ctx, 1)
	m.latency.Record(ctx, elapsed.Seconds())
	return nil
}

// OnJobFailed implements hook.JobFailed.
func (m *MetricsExtension) OnJobFailed(ctx context.Context, _ id.JobID, err error) error {
	m.failed.Add(ctx, 1, metric.WithAttributes(
		attribute.String("reason", failureReason(err)),
	))
	return nil
}

// OnJobCancelled implements hook.JobCancelled.
func (m *MetricsExtension) OnJobCancelled(ctx context.Context, _ id.JobID) error {
	m.cancelled.Add(ctx, 1)
	return nil
}

// OnContextCrashed implements hook.ContextCrashed.
func (m *MetricsExtension) OnContextCrashed(ctx context.Context, _ int, _ id.ProverID, _ id.JobID) error {
	m.crashes.Add(ctx, 1)
	return nil
}

// OnContextReplaced implements hook.ContextReplaced.
func (m *MetricsExtension) OnContextReplaced(ctx context.Context, _ int, _ id.ProverID) error {
	m.replacements.Add(ctx, 1)
	return nil
}
