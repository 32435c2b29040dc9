// Package prover defines the opaque compute contract executed by the pool's
// execution contexts: witness generation plus proof creation, treated as a
// single operation from payload to proof bytes.
package prover

import "context"

// Prover runs the proof computation for one payload. Implementations must
// be safe for sequential reuse: a single execution context calls Compute
// for many jobs over its lifetime.
//
// A returned error means the computation rejected the input; it surfaces to
// the submitter as a reported failure. A panic is treated as a context
// crash unless the Recover middleware is installed.
type Prover interface {
	Compute(ctx context.Context, payload []byte) ([]byte, error)
}

// Func adapts an ordinary function to the Prover interface.
type Func func(ctx context.Context, payload []byte) ([]byte, error)

// Compute implements Prover.
func (f Func) Compute(ctx context.Context, payload []byte) ([]byte, error) {
	return f(ctx, payload)
}

// Factory builds the prover backing one execution context. The pool calls
// it once per slot at construction time and again whenever a crashed
// context is replaced. Initialization is expected to be expensive (loading
// circuit artifacts and proving keys), which is why contexts are created
// eagerly and reused rather than built per job.
type Factory func(ctx context.Context) (Prover, error)
