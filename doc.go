// Package provepool provides a proof-generation job dispatcher for Go.
// It runs expensive, long-lived cryptographic computations (witness
// generation + proof creation) in a small, fixed pool of isolated
// execution contexts so the submitting side is never blocked.
//
// Provepool is designed as a library, not a service. Import it, supply a
// prover factory, and submit payloads:
//
//	p, err := provepool.New(factory,
//	    provepool.WithPoolSize(2),
//	    provepool.WithJobTimeout(2*time.Minute),
//	)
//	job := p.Submit(payload)
//	proof, err := job.Wait(ctx)
//
// # Architecture
//
// The pool owns an unbounded FIFO job queue and a fixed set of execution
// contexts (package worker), each an isolated goroutine holding one
// prover instance (package prover). Pool and context speak a small
// message protocol (package msg): one execute request yields zero or
// more progress messages followed by exactly one terminal result or
// failure — unless the context crashes, in which case the pool rejects
// the in-flight job and installs a fresh context in the same slot.
//
// Contexts are created eagerly at pool construction because prover
// initialization (loading circuit artifacts and proving keys) is
// expensive relative to per-job cost; they are reused across many jobs
// and released only at shutdown or after a crash.
//
// All entity IDs use TypeID — type-prefixed, K-sortable, UUIDv7-based,
// compile-time safe identifiers.
package provepool
