package middleware

import (
	"context"

	"github.com/xraph/provepool/id"
)

// Request describes the job being computed, as seen by middleware.
type Request struct {
	// JobID identifies the job.
	JobID id.JobID

	// Payload is the opaque compute input.
	Payload []byte
}

// Handler is the terminal function that runs the proof computation and
// returns the proof bytes.
type Handler func(ctx context.Context) ([]byte, error)

// Middleware wraps a Handler with cross-cutting logic. It receives the
// current context, the request being computed, and the next handler to
// call. Middleware MUST call next to continue the chain (unless
// short-circuiting, e.g. serving a cached proof).
type Middleware func(ctx context.Context, req *Request, next Handler) ([]byte, error)

// Chain composes multiple middleware into a single Middleware.
// Middleware are applied right-to-left: the first middleware in the
// list is the outermost wrapper.
//
// Example: Chain(logging, recover, cache) executes as:
//
//	logging → recover → cache → handler
func Chain(mws ...Middleware) Middleware {
	return func(ctx context.Context, req *Request, next Handler) ([]byte, error) {
		// Build the chain from the end backwards.
		h := next
		for i := len(mws) - 1; i >= 0; i-- {
			mw := mws[i]
			prev := h
			h = func(ctx context.Context) ([]byte, error) {
				return mw(ctx, req, prev)
			}
		}
		return h(ctx)
	}
}
