package gnark_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/consensys/gnark/frontend"

	"github.com/xraph/provepool"
	"github.com/xraph/provepool/engine/gnark"
	"github.com/xraph/provepool/prover"
)

// cubicCircuit proves knowledge of x such that x^3 + x + 5 == y.
type cubicCircuit struct {
	X frontend.Variable `gnark:"x"`
	Y frontend.Variable `gnark:",public"`
}

func (c *cubicCircuit) Define(api frontend.API) error {
	x3 := api.Mul(c.X, c.X, c.X)
	api.AssertIsEqual(c.Y, api.Add(x3, c.X, 5))
	return nil
}

type cubicPayload struct {
	X string `json:"x"`
	Y string `json:"y"`
}

func decodeCubic(payload []byte) (frontend.Circuit, error) {
	var p cubicPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, err
	}
	return &cubicCircuit{X: p.X, Y: p.Y}, nil
}

func cubicInput(t *testing.T, x, y string) []byte {
	t.Helper()
	data, err := json.Marshal(cubicPayload{X: x, Y: y})
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return data
}

// newEngine compiles the cubic circuit once per test binary.
func newEngine(t *testing.T) *gnark.Engine {
	t.Helper()
	e, err := gnark.New(&cubicCircuit{}, decodeCubic)
	if err != nil {
		t.Fatalf("New engine: %v", err)
	}
	return e
}

func TestEngine_ProveAndVerify(t *testing.T) {
	e := newEngine(t)
	payload := cubicInput(t, "3", "35") // 27 + 3 + 5 = 35

	proof, err := e.Compute(context.Background(), payload)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if len(proof) == 0 {
		t.Fatal("empty proof")
	}

	if err := e.Verify(proof, payload); err != nil {
		t.Errorf("Verify: %v", err)
	}
}

func TestEngine_UnsatisfiedConstraint(t *testing.T) {
	e := newEngine(t)

	if _, err := e.Compute(context.Background(), cubicInput(t, "3", "36")); err == nil {
		t.Fatal("expected prove failure for a bad witness")
	}
}

func TestEngine_MalformedPayload(t *testing.T) {
	e := newEngine(t)

	if _, err := e.Compute(context.Background(), []byte("{not json")); err == nil {
		t.Fatal("expected decode failure")
	}
}

func TestEngine_VerifyRejectsWrongPublicInput(t *testing.T) {
	e := newEngine(t)

	proof, err := e.Compute(context.Background(), cubicInput(t, "3", "35"))
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if err := e.Verify(proof, cubicInput(t, "2", "15")); err == nil {
		t.Error("proof verified against the wrong public input")
	}
}

func TestEngine_ReportsPhases(t *testing.T) {
	e := newEngine(t)

	var phases []string
	ctx := prover.WithReporter(context.Background(), func(phase string) {
		phases = append(phases, phase)
	})
	if _, err := e.Compute(ctx, cubicInput(t, "3", "35")); err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if len(phases) != 2 || phases[0] != "witness" || phases[1] != "prove" {
		t.Errorf("phases = %v", phases)
	}
}

func TestEngine_ThroughPool(t *testing.T) {
	e := newEngine(t)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	p, err := provepool.New(e.Factory(),
		provepool.WithPoolSize(2),
		provepool.WithLogger(logger),
	)
	if err != nil {
		t.Fatalf("New pool: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = p.Shutdown(ctx)
	}()

	payload := cubicInput(t, "3", "35")
	jobs := make([]*provepool.Job, 0, 4)
	for i := 0; i < 4; i++ {
		jobs = append(jobs, p.Submit(payload))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()
	for i, j := range jobs {
		proof, err := j.Wait(ctx)
		if err != nil {
			t.Fatalf("job %d: %v", i, err)
		}
		if verr := e.Verify(proof, payload); verr != nil {
			t.Errorf("job %d proof invalid: %v", i, verr)
		}
	}
}
