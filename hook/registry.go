package hook

import (
	"context"
	"log/slog"
	"time"

	"github.com/xraph/provepool/id"
)

// Named entry types pair a hook implementation with the extension name
// captured at registration time. This avoids type-asserting back to
// Extension inside the emit methods.
type jobQueuedEntry struct {
	name string
	hook JobQueued
}

type jobDispatchedEntry struct {
	name string
	hook JobDispatched
}

type jobProgressEntry struct {
	name string
	hook JobProgress
}

type jobCompletedEntry struct {
	name string
	hook JobCompleted
}

type jobFailedEntry struct {
	name string
	hook JobFailed
}

type jobCancelledEntry struct {
	name string
	hook JobCancelled
}

type contextCrashedEntry struct {
	name string
	hook ContextCrashed
}

type contextReplacedEntry struct {
	name string
	hook ContextReplaced
}

type shutdownEntry struct {
	name string
	hook Shutdown
}

// Registry holds registered extensions and dispatches lifecycle events
// to them. It type-caches extensions at registration time so emit calls
// iterate only over extensions that implement the relevant hook.
type Registry struct {
	extensions []Extension
	logger     *slog.Logger

	// Type-cached slices for each lifecycle hook.
	jobQueued       []jobQueuedEntry
	jobDispatched   []jobDispatchedEntry
	jobProgress     []jobProgressEntry
	jobCompleted    []jobCompletedEntry
	jobFailed       []jobFailedEntry
	jobCancelled    []jobCancelledEntry
	contextCrashed  []contextCrashedEntry
	contextReplaced []contextReplacedEntry
	shutdown        []shutdownEntry
}

// NewRegistry creates an extension registry with the given logger.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{logger: logger}
}

// Register adds an extension and type-asserts it into all applicable
// hook caches. Extensions are notified in registration order.
func (r *Registry) Register(e Extension) {
	r.extensions = append(r.extensions, e)
	name := e.Name()

	if h, ok := e.(JobQueued); ok {
		r.jobQueued = append(r.jobQueued, jobQueuedEntry{name, h})
	}
	if h, ok := e.(JobDispatched); ok {
		r.jobDispatched = append(r.jobDispatched, jobDispatchedEntry{name, h})
	}
	if h, ok := e.(JobProgress); ok {
		r.jobProgress = append(r.jobProgress, jobProgressEntry{name, h})
	}
	if h, ok := e.(JobCompleted); ok {
		r.jobCompleted = append(r.jobCompleted, jobCompletedEntry{name, h})
	}
	if h, ok := e.(JobFailed); ok {
		r.jobFailed = append(r.jobFailed, jobFailedEntry{name, h})
	}
	if h, ok := e.(JobCancelled); ok {
		r.jobCancelled = append(r.jobCancelled, jobCancelledEntry{name, h})
	}
	if h, ok := e.(ContextCrashed); ok {
		r.contextCrashed = append(r.contextCrashed, contextCrashedEntry{name, h})
	}
	if h, ok := e.(ContextReplaced); ok {
		r.contextReplaced = append(r.contextReplaced, contextReplacedEntry{name, h})
	}
	if h, ok := e.(Shutdown); ok {
		r.shutdown = append(r.shutdown, shutdownEntry{name, h})
	}
}

// Extensions returns all registered extensions.
func (r *Registry) Extensions() []Extension { return r.extensions }

// ──────────────────────────────────────────────────
// Job event emitters
// ──────────────────────────────────────────────────

// EmitJobQueued notifies all extensions that implement JobQueued.
func (r *Registry) EmitJobQueued(ctx context.Context, jobID id.JobID, depth int) {
	for _, e := range r.jobQueued {
		if err := e.hook.OnJobQueued(ctx, jobID, depth); err != nil {
			r.logHookError("OnJobQueued", e.name, err)
		}
	}
}

// EmitJobDispatched notifies all extensions that implement JobDispatched.
func (r *Registry) EmitJobDispatched(ctx context.Context, jobID id.JobID, proverID id.ProverID) {
	for _, e := range r.jobDispatched {
		if err := e.hook.OnJobDispatched(ctx, jobID, proverID); err != nil {
			r.logHookError("OnJobDispatched", e.name, err)
		}
	}
}

// EmitJobProgress notifies all extensions that implement JobProgress.
func (r *Registry) EmitJobProgress(ctx context.Context, jobID id.JobID, phase string) {
	for _, e := range r.jobProgress {
		if err := e.hook.OnJobProgress(ctx, jobID, phase); err != nil {
			r.logHookError("OnJobProgress", e.name, err)
		}
	}
}

// EmitJobCompleted notifies all extensions that implement JobCompleted.
func (r *Registry) EmitJobCompleted(ctx context.Context, jobID id.JobID, elapsed time.Duration) {
	for _, e := range r.jobCompleted {
		if err := e.hook.OnJobCompleted(ctx, jobID, elapsed); err != nil {
			r.logHookError("OnJobCompleted", e.name, err)
		}
	}
}

// EmitJobFailed notifies all extensions that implement JobFailed.
func (r *Registry) EmitJobFailed(ctx context.Context, jobID id.JobID, jobErr error) {
	for _, e := range r.jobFailed {
		if err := e.hook.OnJobFailed(ctx, jobID, jobErr); err != nil {
			r.logHookError("OnJobFailed", e.name, err)
		}
	}
}

// EmitJobCancelled notifies all extensions that implement JobCancelled.
func (r *Registry) EmitJobCancelled(ctx context.Context, jobID id.JobID) {
	for _, e := range r.jobCancelled {
		if err := e.hook.OnJobCancelled(ctx, jobID); err != nil {
			r.logHookError("OnJobCancelled", e.name, err)
		}
	}
}

// ──────────────────────────────────────────────────
// Execution context event emitters
// ──────────────────────────────────────────────────

// EmitContextCrashed notifies all extensions that implement ContextCrashed.
func (r *Registry) EmitContextCrashed(ctx context.Context, slot int, proverID id.ProverID, jobID id.JobID) {
	for _, e := range r.contextCrashed {
		if err := e.hook.OnContextCrashed(ctx, slot, proverID, jobID); err != nil {
			r.logHookError("OnContextCrashed", e.name, err)
		}
	}
}

// EmitContextReplaced notifies all extensions that implement ContextReplaced.
func (r *Registry) EmitContextReplaced(ctx context.Context, slot int, proverID id.ProverID) {
	for _, e := range r.contextReplaced {
		if err := e.hook.OnContextReplaced(ctx, slot, proverID); err != nil {
			r.logHookError("OnContextReplaced", e.name, err)
		}
	}
}

// EmitShutdown notifies all extensions that implement Shutdown.
func (r *Registry) EmitShutdown(ctx context.Context) {
	for _, e := range r.shutdown {
		if err := e.hook.OnShutdown(ctx); err != nil {
			r.logHookError("OnShutdown", e.name, err)
		}
	}
}

func (r *Registry) logHookError(hookName, extName string, err error) {
	r.logger.Warn("extension hook error",
		slog.String("hook", hookName),
		slog.String("extension", extName),
		slog.String("error", err.Error()),
	)
}
