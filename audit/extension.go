// Package audit bridges pool lifecycle events to an audit trail backend.
// Register the Extension with provepool.WithExtensions; every lifecycle
// hook emits a structured audit event through a pluggable Recorder.
package audit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xraph/provepool/hook"
	"github.com/xraph/provepool/id"
)

// Compile-time interface checks.
var (
	_ hook.Extension       = (*Extension)(nil)
	_ hook.JobQueued       = (*Extension)(nil)
	_ hook.JobDispatched   = (*Extension)(nil)
	_ hook.JobCompleted    = (*Extension)(nil)
	_ hook.JobFailed       = (*Extension)(nil)
	_ hook.JobCancelled    = (*Extension)(nil)
	_ hook.ContextCrashed  = (*Extension)(nil)
	_ hook.ContextReplaced = (*Extension)(nil)
	_ hook.Shutdown        = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement. It is
// defined locally so this package does not depend on any particular
// audit system — callers inject their backend at wiring time.
type Recorder interface {
	// Record persists a fully-formed audit event.
	Record(ctx context.Context, event *Event) error
}

// Event is the audit record for one lifecycle action.
type Event struct {
	// What happened
	Action   string `json:"action"`
	Resource string `json:"resource"`
	Category string `json:"category"`

	// Details
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *Event) error

func (f RecorderFunc) Record(ctx context.Context, event *Event) error {
	return f(ctx, event)
}

// SlogRecorder writes audit events as structured log records, for
// deployments without a dedicated audit backend.
func SlogRecorder(logger *slog.Logger) Recorder {
	return RecorderFunc(func(ctx context.Context, event *Event) error {
		logger.LogAttrs(ctx, slog.LevelInfo, "audit",
			slog.String("action", event.Action),
			slog.String("resource", event.Resource),
			slog.String("resource_id", event.ResourceID),
			slog.String("outcome", event.Outcome),
			slog.String("severity", event.Severity),
			slog.Any("metadata", event.Metadata),
		)
		return nil
	})
}

// Severity constants.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// Outcome constants.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Extension emits an audit event for each pool lifecycle hook.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided
// Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements hook.Extension.
func (e *Extension) Name() string { return "audit" }

// ── Job lifecycle hooks ─────────────────────────────

// OnJobQueued implements hook.JobQueued.
func (e *Extension) OnJobQueued(ctx context.Context, jobID id.JobID, depth int) error {
	return e.record(ctx, ActionJobQueued, SeverityInfo, OutcomeSuccess,
		ResourceJob, jobID.String(), CategoryJob, nil,
		"queue_depth", depth,
	)
}

// OnJobDispatched implements hook.JobDispatched.
func (e *Extension) OnJobDispatched(ctx context.Context, jobID id.JobID, proverID id.ProverID) error {
	return e.record(ctx, ActionJobDispatched, SeverityInfo, OutcomeSuccess,
		ResourceJob, jobID.String(), CategoryJob, nil,
		"prover_id", proverID.String(),
	)
}

// OnJobCompleted implements hook.JobCompleted.
func (e *Extension) OnJobCompleted(ctx context.Context, jobID id.JobID, elapsed time.Duration) error {
	return e.record(ctx, ActionJobCompleted, SeverityInfo, OutcomeSuccess,
		ResourceJob, jobID.String(), CategoryJob, nil,
		"elapsed_ms", elapsed.Milliseconds(),
	)
}

// OnJobFailed implements hook.JobFailed.
func (e *Extension) OnJobFailed(ctx context.Context, jobID id.JobID, jobErr error) error {
	return e.record(ctx, ActionJobFailed, SeverityCritical, OutcomeFailure,
		ResourceJob, jobID.String(), CategoryJob, jobErr)
}

// OnJobCancelled implements hook.JobCancelled.
func (e *Extension) OnJobCancelled(ctx context.Context, jobID id.JobID) error {
	return e.record(ctx, ActionJobCancelled, SeverityInfo, OutcomeSuccess,
		ResourceJob, jobID.String(), CategoryJob, nil)
}

// ── Execution context lifecycle hooks ───────────────

// OnContextCrashed implements hook.ContextCrashed.
func (e *Extension) OnContextCrashed(ctx context.Context, slot int, proverID id.ProverID, jobID id.JobID) error {
	return e.record(ctx, ActionContextCrashed, SeverityCritical, OutcomeFailure,
		ResourceContext, proverID.String(), CategoryContext, nil,
		"slot", slot,
		"job_id", jobID.String(),
	)
}

// OnContextReplaced implements hook.ContextReplaced.
func (e *Extension) OnContextReplaced(ctx context.Context, slot int, proverID id.ProverID) error {
	return e.record(ctx, ActionContextReplaced, SeverityWarning, OutcomeSuccess,
		ResourceContext, proverID.String(), CategoryContext, nil,
		"slot", slot,
	)
}

// OnShutdown implements hook.Shutdown.
func (e *Extension) OnShutdown(ctx context.Context) error {
	return e.record(ctx, ActionPoolShutdown, SeverityInfo, OutcomeSuccess,
		ResourcePool, "", CategoryPool, nil)
}

// ── Internal helpers ────────────────────────────────

// record builds and sends an audit event if the action is enabled.
// The kvPairs argument is a list of key-value pairs added to Metadata.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &Event{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit: failed to record event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}
