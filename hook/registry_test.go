package hook_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/xraph/provepool/hook"
	"github.com/xraph/provepool/id"
)

// recordingExt implements a subset of the lifecycle hooks and records calls.
type recordingExt struct {
	queued    int
	completed int
	failed    int
	crashed   int
	shutdown  int
	hookErr   error
}

func (e *recordingExt) Name() string { return "recording" }

func (e *recordingExt) OnJobQueued(_ context.Context, _ id.JobID, _ int) error {
	e.queued++
	return e.hookErr
}

func (e *recordingExt) OnJobCompleted(_ context.Context, _ id.JobID, _ time.Duration) error {
	e.completed++
	return e.hookErr
}

func (e *recordingExt) OnJobFailed(_ context.Context, _ id.JobID, _ error) error {
	e.failed++
	return e.hookErr
}

func (e *recordingExt) OnContextCrashed(_ context.Context, _ int, _ id.ProverID, _ id.JobID) error {
	e.crashed++
	return e.hookErr
}

func (e *recordingExt) OnShutdown(_ context.Context) error {
	e.shutdown++
	return e.hookErr
}

func newTestRegistry() (*hook.Registry, *recordingExt) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	reg := hook.NewRegistry(logger)
	ext := &recordingExt{}
	reg.Register(ext)
	return reg, ext
}

func TestRegistry_DispatchesImplementedHooks(t *testing.T) {
	reg, ext := newTestRegistry()
	ctx := context.Background()
	jobID := id.NewJobID()

	reg.EmitJobQueued(ctx, jobID, 1)
	reg.EmitJobCompleted(ctx, jobID, time.Second)
	reg.EmitJobFailed(ctx, jobID, errors.New("boom"))
	reg.EmitContextCrashed(ctx, 0, id.NewProverID(), jobID)
	reg.EmitShutdown(ctx)

	if ext.queued != 1 || ext.completed != 1 || ext.failed != 1 || ext.crashed != 1 || ext.shutdown != 1 {
		t.Errorf("unexpected call counts: %+v", ext)
	}
}

func TestRegistry_SkipsUnimplementedHooks(t *testing.T) {
	reg, _ := newTestRegistry()

	// recordingExt does not implement JobDispatched, JobProgress,
	// JobCancelled, or ContextReplaced; emitting must be a no-op.
	ctx := context.Background()
	reg.EmitJobDispatched(ctx, id.NewJobID(), id.NewProverID())
	reg.EmitJobProgress(ctx, id.NewJobID(), "witness")
	reg.EmitJobCancelled(ctx, id.NewJobID())
	reg.EmitContextReplaced(ctx, 0, id.NewProverID())
}

func TestRegistry_SwallowsHookErrors(t *testing.T) {
	reg, ext := newTestRegistry()
	ext.hookErr = errors.New("hook failure")

	// Must not panic or propagate.
	reg.EmitJobQueued(context.Background(), id.NewJobID(), 1)
	if ext.queued != 1 {
		t.Errorf("queued = %d, want 1", ext.queued)
	}
}

func TestRegistry_MultipleExtensionsInOrder(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	reg := hook.NewRegistry(logger)

	first := &recordingExt{}
	second := &recordingExt{}
	reg.Register(first)
	reg.Register(second)

	reg.EmitJobQueued(context.Background(), id.NewJobID(), 1)

	if first.queued != 1 || second.queued != 1 {
		t.Errorf("both extensions should be notified: %d, %d", first.queued, second.queued)
	}
	if got := len(reg.Extensions()); got != 2 {
		t.Errorf("Extensions() = %d, want 2", got)
	}
}
