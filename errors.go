package provepool

import "errors"

var (
	// Construction errors.
	ErrInvalidPoolSize = errors.New("provepool: pool size must be at least 1")
	ErrNoFactory       = errors.New("provepool: no prover factory configured")

	// Job outcome errors, delivered through the job's future.
	ErrComputationRejected = errors.New("provepool: computation rejected")
	ErrContextCrashed      = errors.New("provepool: execution context crashed")
	ErrTimeout             = errors.New("provepool: no terminal message within the job timeout")
	ErrCancelled           = errors.New("provepool: job cancelled before dispatch")
	ErrPoolShutDown        = errors.New("provepool: pool shut down")

	// Lookup errors.
	ErrJobNotFound = errors.New("provepool: job not found")
	ErrJobInFlight = errors.New("provepool: job already dispatched")

	// State errors.
	ErrPending = errors.New("provepool: job not yet resolved")
)

// ComputationError is the outcome of a job whose computation legitimately
// rejected the input (an invalid witness, an unsatisfied constraint). It
// is a normal terminal outcome, not a crash: the execution context stays
// healthy and returns to idle.
//
// ComputationError unwraps to ErrComputationRejected so callers can match
// the category with errors.Is and recover the reason with errors.As.
type ComputationError struct {
	Reason string
}

// Error implements the error interface.
func (e *ComputationError) Error() string {
	return "provepool: computation rejected: " + e.Reason
}

// Unwrap makes errors.Is(err, ErrComputationRejected) work.
func (e *ComputationError) Unwrap() error { return ErrComputationRejected }
