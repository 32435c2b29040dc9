// Package gnark provides a reference prover backed by the gnark zk-SNARK
// library (Groth16 over BN254). The constraint system is compiled and the
// proving key generated once at engine construction; that is the
// expensive initialization the pool amortizes by reusing execution
// contexts across many jobs.
//
// The compiled artifacts are immutable after construction, so a single
// Engine is shared by every execution context the factory feeds.
package gnark

import (
	"bytes"
	"context"
	"fmt"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"

	"github.com/xraph/provepool/prover"
)

// Compile-time interface check.
var _ prover.Prover = (*Engine)(nil)

// AssignmentFunc decodes a job payload into a full witness assignment
// for the engine's circuit.
type AssignmentFunc func(payload []byte) (frontend.Circuit, error)

// Engine is a Groth16/BN254 prover for one fixed circuit.
type Engine struct {
	ccs    constraint.ConstraintSystem
	pk     groth16.ProvingKey
	vk     groth16.VerifyingKey
	decode AssignmentFunc
}

// New compiles the circuit and runs the Groth16 setup. This is slow and
// memory-heavy; do it once and share the engine across contexts via
// Factory.
func New(circuit frontend.Circuit, decode AssignmentFunc) (*Engine, error) {
	if decode == nil {
		return nil, fmt.Errorf("gnark: assignment decoder is required")
	}

	ccs, err := frontend.Compile(ecc.BN254.ScalarField(), r1cs.NewBuilder, circuit)
	if err != nil {
		return nil, fmt.Errorf("gnark: compile circuit: %w", err)
	}

	pk, vk, err := groth16.Setup(ccs)
	if err != nil {
		return nil, fmt.Errorf("gnark: groth16 setup: %w", err)
	}

	return &Engine{ccs: ccs, pk: pk, vk: vk, decode: decode}, nil
}

// Factory returns a prover factory handing the shared engine to every
// execution context.
func (e *Engine) Factory() prover.Factory {
	return func(_ context.Context) (prover.Prover, error) {
		return e, nil
	}
}

// Compute implements prover.Prover: decode the payload, build the
// witness, and generate a proof. An assignment that does not satisfy the
// circuit's constraints fails at the prove step, which the pool surfaces
// as a reported failure.
func (e *Engine) Compute(ctx context.Context, payload []byte) ([]byte, error) {
	assignment, err := e.decode(payload)
	if err != nil {
		return nil, fmt.Errorf("gnark: decode payload: %w", err)
	}

	prover.Report(ctx, "witness")
	w, err := frontend.NewWitness(assignment, ecc.BN254.ScalarField())
	if err != nil {
		return nil, fmt.Errorf("gnark: build witness: %w", err)
	}

	prover.Report(ctx, "prove")
	proof, err := groth16.Prove(e.ccs, e.pk, w)
	if err != nil {
		return nil, fmt.Errorf("gnark: prove: %w", err)
	}

	var buf bytes.Buffer
	if _, err := proof.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("gnark: serialize proof: %w", err)
	}
	return buf.Bytes(), nil
}

// Verify checks a serialized proof against the public inputs of the
// given payload.
func (e *Engine) Verify(proofBytes, payload []byte) error {
	assignment, err := e.decode(payload)
	if err != nil {
		return fmt.Errorf("gnark: decode payload: %w", err)
	}

	w, err := frontend.NewWitness(assignment, ecc.BN254.ScalarField())
	if err != nil {
		return fmt.Errorf("gnark: build witness: %w", err)
	}
	public, err := w.Public()
	if err != nil {
		return fmt.Errorf("gnark: extract public witness: %w", err)
	}

	proof := groth16.NewProof(ecc.BN254)
	if _, err := proof.ReadFrom(bytes.NewReader(proofBytes)); err != nil {
		return fmt.Errorf("gnark: deserialize proof: %w", err)
	}

	if err := groth16.Verify(proof, e.vk, public); err != nil {
		return fmt.Errorf("gnark: verify: %w", err)
	}
	return nil
}

// VerifyingKey returns the verifying key for external verifiers.
func (e *Engine) VerifyingKey() groth16.VerifyingKey { return e.vk }

// ConstraintCount reports the size of the compiled constraint system.
func (e *Engine) ConstraintCount() int { return e.ccs.GetNbConstraints() }
