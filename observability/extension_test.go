package observability_test

import (
	"context"
	"errors"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/xraph/provepool"
	"github.com/xraph/provepool/id"
	"github.com/xraph/provepool/observability"
	"github.com/xraph/provepool/prover"
)

func echoFactory(ctx context.Context) (prover.Prover, error) {
	return prover.Func(func(_ context.Context, payload []byte) ([]byte, error) {
		return payload, nil
	}), nil
}

func setupMeter(t *testing.T) (*observability.MetricsExtension, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })
	ext := observability.NewMetricsExtensionWithMeter(provider.Meter("test"))
	return ext, reader
}

// counterValue finds a counter by name and returns the sum of its data points.
func counterValue(t *testing.T, reader *sdkmetric.ManualReader, name string) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				t.Fatalf("metric %s is not an int64 sum: %T", name, m.Data)
			}
			var total int64
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
			return total
		}
	}
	return 0
}

func TestMetricsExtension_JobLifecycle(t *testing.T) {
	ext, reader := setupMeter(t)
	ctx := context.Background()
	jobID := id.NewJobID()

	if err := ext.OnJobQueued(ctx, jobID, 1); err != nil {
		t.Fatalf("OnJobQueued: %v", err)
	}
	if err := ext.OnJobDispatched(ctx, jobID, id.NewProverID()); err != nil {
		t.Fatalf("OnJobDispatched: %v", err)
	}
	if err := ext.OnJobCompleted(ctx, jobID, 250*time.Millisecond); err != nil {
		t.Fatalf("OnJobCompleted: %v", err)
	}

	if got := counterValue(t, reader, "provepool.job.queued"); got != 1 {
		t.Errorf("queued = %d, want 1", got)
	}
	if got := counterValue(t, reader, "provepool.job.dispatched"); got != 1 {
		t.Errorf("dispatched = %d, want 1", got)
	}
	if got := counterValue(t, reader, "provepool.job.completed"); got != 1 {
		t.Errorf("completed = %d, want 1", got)
	}
}

func TestMetricsExtension_FailuresByReason(t *testing.T) {
	ext, reader := setupMeter(t)
	ctx := context.Background()

	failures := []error{
		&provepool.ComputationError{Reason: "bad witness"},
		provepool.ErrContextCrashed,
		provepool.ErrTimeout,
		errors.New("something else"),
	}
	for _, err := range failures {
		if hookErr := ext.OnJobFailed(ctx, id.NewJobID(), err); hookErr != nil {
			t.Fatalf("OnJobFailed: %v", hookErr)
		}
	}

	if got := counterValue(t, reader, "provepool.job.failed"); got != int64(len(failures)) {
		t.Errorf("failed = %d, want %d", got, len(failures))
	}
}

func TestMetricsExtension_ContextEvents(t *testing.T) {
	ext, reader := setupMeter(t)
	ctx := context.Background()

	if err := ext.OnContextCrashed(ctx, 0, id.NewProverID(), id.Nil); err != nil {
		t.Fatalf("OnContextCrashed: %v", err)
	}
	if err := ext.OnContextReplaced(ctx, 0, id.NewProverID()); err != nil {
		t.Fatalf("OnContextReplaced: %v", err)
	}

	if got := counterValue(t, reader, "provepool.context.crashes"); got != 1 {
		t.Errorf("crashes = %d, want 1", got)
	}
	if got := counterValue(t, reader, "provepool.context.replacements"); got != 1 {
		t.Errorf("replacements = %d, want 1", got)
	}
}

func TestMetricsExtension_WiredIntoPool(t *testing.T) {
	ext, reader := setupMeter(t)

	p, err := provepool.New(echoFactory, provepool.WithExtensions(ext))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = p.Shutdown(ctx)
	}()

	j := p.Submit([]byte("input"))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := j.Wait(ctx); err != nil {
		t.Fatalf("Wait: %v", err)
	}

	// The completed hook fires just after the future resolves; poll.
	deadline := time.Now().Add(5 * time.Second)
	for {
		if counterValue(t, reader, "provepool.job.completed") == 1 {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("completed = %d, want 1",
				counterValue(t, reader, "provepool.job.completed"))
		}
		time.Sleep(5 * time.Millisecond)
	}
}
