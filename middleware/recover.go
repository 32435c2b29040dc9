package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
)

// Recover returns middleware that recovers from panics in the compute
// chain. Panics are converted to reported failures and logged with a stack
// trace. Without this middleware a panic unwinds to the execution
// context's goroutine, which dies without a terminal message, and the
// pool treats it as a context crash.
func Recover(logger *slog.Logger) Middleware {
	return func(ctx context.Context, req *Request, next Handler) (value []byte, retErr error) {
		defer func() {
			if r := recover(); r != nil {
				stack := string(debug.Stack())
				logger.Error("prover panicked",
					slog.String("job_id", req.JobID.String()),
					slog.Any("panic", r),
					slog.String("stack", stack),
				)
				value = nil
				retErr = fmt.Errorf("panic in prover for job %s: %v", req.JobID.String(), r)
			}
		}()
		return next(ctx)
	}
}
