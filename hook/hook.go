// Package hook defines the extension system for provepool.
// Extensions are notified of lifecycle events (job queued, dispatched,
// completed, context crashed, etc.) and can react to them — logging,
// metrics, tracing, etc.
//
// Each lifecycle event is a separate interface so extensions opt in only
// to the events they care about. Hooks run synchronously on the pool's
// bookkeeping path and must be fast; a hook error is logged and swallowed,
// never propagated to the submitter. The pool fires hooks outside its
// internal lock, so an extension may call back into the pool (Stats,
// Submit, Cancel) from a hook.
package hook

import (
	"context"
	"time"

	"github.com/xraph/provepool/id"
)

// Extension is the base interface all extensions must implement.
type Extension interface {
	// Name returns a unique human-readable name for the extension.
	Name() string
}

// ──────────────────────────────────────────────────
// Job lifecycle hooks
// ──────────────────────────────────────────────────

// JobQueued is called after a job is appended to the queue.
// depth is the queue length including the new job.
type JobQueued interface {
	OnJobQueued(ctx context.Context, jobID id.JobID, depth int) error
}

// JobDispatched is called when a job is assigned to an execution context.
type JobDispatched interface {
	OnJobDispatched(ctx context.Context, jobID id.JobID, proverID id.ProverID) error
}

// JobProgress is called when a running job reports a phase transition.
type JobProgress interface {
	OnJobProgress(ctx context.Context, jobID id.JobID, phase string) error
}

// JobCompleted is called after a job resolves successfully.
// elapsed measures submission to resolution, queue wait included.
type JobCompleted interface {
	OnJobCompleted(ctx context.Context, jobID id.JobID, elapsed time.Duration) error
}

// JobFailed is called when a job's future is rejected, whatever the cause
// (reported failure, crash, timeout, shutdown).
type JobFailed interface {
	OnJobFailed(ctx context.Context, jobID id.JobID, err error) error
}

// JobCancelled is called when a queued job is withdrawn before dispatch.
type JobCancelled interface {
	OnJobCancelled(ctx context.Context, jobID id.JobID) error
}

// ──────────────────────────────────────────────────
// Execution context lifecycle hooks
// ──────────────────────────────────────────────────

// ContextCrashed is called when an execution context terminates abnormally.
// jobID is the in-flight job at crash time, or id.Nil if the context was idle.
type ContextCrashed interface {
	OnContextCrashed(ctx context.Context, slot int, proverID id.ProverID, jobID id.JobID) error
}

// ContextReplaced is called after a crashed context's slot has been
// refilled with a freshly initialized context.
type ContextReplaced interface {
	OnContextReplaced(ctx context.Context, slot int, proverID id.ProverID) error
}

// Shutdown is called during pool teardown, after all contexts terminated.
type Shutdown interface {
	OnShutdown(ctx context.Context) error
}
