// Package middleware provides composable middleware around the proof
// computation inside an execution context.
//
// A [Middleware] is a function that wraps the compute call. Middleware are
// composed into a chain using [Chain] and applied right-to-left: the first
// middleware in the slice is the outermost wrapper.
//
//	// logging → recover → compute
//	chain := middleware.Chain(middleware.Logging(logger), middleware.Recover(logger))
//
// # Built-in Middleware
//
//   - [Logging] — logs job id, duration, and outcome for each computation
//   - [Recover] — catches panics and converts them to reported failures
//     (without it, a panicking prover crashes its execution context and the
//     pool replaces the context)
//   - [Tracing] — wraps the computation in an OpenTelemetry span
//   - [Metrics] — records per-computation duration and outcome counters
//
// # Writing Custom Middleware
//
//	func MyMiddleware() middleware.Middleware {
//	    return func(ctx context.Context, req *middleware.Request, next middleware.Handler) ([]byte, error) {
//	        // pre-processing
//	        value, err := next(ctx)
//	        // post-processing
//	        return value, err
//	    }
//	}
//
// Middleware MUST call next to continue the chain unless intentionally
// short-circuiting (e.g., serving a cached proof).
package middleware
