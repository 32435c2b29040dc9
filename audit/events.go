package audit

// Audit event actions. Each constant corresponds to one lifecycle hook
// and becomes the Action field of the audit event.
const (
	ActionJobQueued       = "job.queued"
	ActionJobDispatched   = "job.dispatched"
	ActionJobCompleted    = "job.completed"
	ActionJobFailed       = "job.failed"
	ActionJobCancelled    = "job.cancelled"
	ActionContextCrashed  = "context.crashed"
	ActionContextReplaced = "context.replaced"
	ActionPoolShutdown    = "pool.shutdown"
)

// Audit event categories group related actions.
const (
	CategoryJob     = "provepool.job"
	CategoryContext = "provepool.context"
	CategoryPool    = "provepool.pool"
)

// Resource types used as the Resource field in audit events.
const (
	ResourceJob     = "job"
	ResourceContext = "execution_context"
	ResourcePool    = "pool"
)

// AllActions returns every action this extension can emit.
func AllActions() []string {
	return []string{
		ActionJobQueued,
		ActionJobDispatched,
		ActionJobCompleted,
		ActionJobFailed,
		ActionJobCancelled,
		ActionContextCrashed,
		ActionContextReplaced,
		ActionPoolShutdown,
	}
}
