package prover

import "context"

// reporterKey is the context key for the progress reporter.
type reporterKey struct{}

// Reporter receives named phase transitions from a running computation.
type Reporter func(phase string)

// WithReporter returns a context carrying the given progress reporter.
// The execution context installs one before invoking Compute so that
// phase reports flow back to the submitter as progress messages.
func WithReporter(ctx context.Context, r Reporter) context.Context {
	return context.WithValue(ctx, reporterKey{}, r)
}

// Report announces a computation phase (e.g., "witness", "prove") to the
// reporter installed in ctx. It is a no-op when no reporter is present,
// so provers may call it unconditionally.
func Report(ctx context.Context, phase string) {
	if r, ok := ctx.Value(reporterKey{}).(Reporter); ok && r != nil {
		r(phase)
	}
}
