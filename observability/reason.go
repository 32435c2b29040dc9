package observability

import (
	"errors"

	"github.com/xraph/provepool"
)

// failureReason maps a job rejection error to a low-cardinality metric
// attribute value.
func failureReason(err error) string {
	switch {
	case errors.Is(err, provepool.ErrComputationRejected):
		return "rejected"
	case errors.Is(err, provepool.ErrContextCrashed):
		return "crashed"
	case errors.Is(err, provepool.ErrTimeout):
		return "timeout"
	case errors.Is(err, provepool.ErrCancelled):
		return "cancelled"
	case errors.Is(err, provepool.ErrPoolShutDown):
		return "shutdown"
	default:
		return "other"
	}
}
