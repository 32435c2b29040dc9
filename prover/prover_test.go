package prover_test

import (
	"context"
	"testing"

	"github.com/xraph/provepool/prover"
)

func TestFuncAdapter(t *testing.T) {
	p := prover.Func(func(_ context.Context, payload []byte) ([]byte, error) {
		return append([]byte("proof:"), payload...), nil
	})

	out, err := p.Compute(context.Background(), []byte("in"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(out) != "proof:in" {
		t.Errorf("got %q", out)
	}
}

func TestReport(t *testing.T) {
	var phases []string
	ctx := prover.WithReporter(context.Background(), func(phase string) {
		phases = append(phases, phase)
	})

	prover.Report(ctx, "witness")
	prover.Report(ctx, "prove")

	if len(phases) != 2 || phases[0] != "witness" || phases[1] != "prove" {
		t.Errorf("phases = %v", phases)
	}
}

func TestReportWithoutReporter(t *testing.T) {
	// Must be a silent no-op.
	prover.Report(context.Background(), "witness")
}
