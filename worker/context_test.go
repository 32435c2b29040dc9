package worker_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/xraph/provepool/id"
	"github.com/xraph/provepool/middleware"
	"github.com/xraph/provepool/msg"
	"github.com/xraph/provepool/prover"
	"github.com/xraph/provepool/worker"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// collect reads messages from the outbox until a terminal message or the
// channel closes. Returns the messages seen and whether the channel closed
// without a terminal message (the crash signal).
func collect(t *testing.T, outbox <-chan msg.Message) (msgs []msg.Message, crashed bool) {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case m, ok := <-outbox:
			if !ok {
				return msgs, true
			}
			msgs = append(msgs, m)
			if m.Terminal() {
				return msgs, false
			}
		case <-deadline:
			t.Fatal("timed out waiting for terminal message")
		}
	}
}

func TestContext_ResultRoundTrip(t *testing.T) {
	p := prover.Func(func(_ context.Context, payload []byte) ([]byte, error) {
		return append([]byte("proof:"), payload...), nil
	})
	c := worker.New(0, p, worker.WithLogger(discardLogger()))
	c.Start()
	defer c.Terminate()

	jobID := id.NewJobID()
	c.Execute(msg.NewExecute(jobID, []byte("input")))

	msgs, crashed := collect(t, c.Outbox())
	if crashed {
		t.Fatal("unexpected crash")
	}
	last := msgs[len(msgs)-1]
	if last.Kind != msg.KindResult || last.JobID != jobID.String() {
		t.Errorf("unexpected terminal message: %+v", last)
	}
	if string(last.Value) != "proof:input" {
		t.Errorf("value = %q", last.Value)
	}
}

func TestContext_ReportedFailure(t *testing.T) {
	p := prover.Func(func(_ context.Context, _ []byte) ([]byte, error) {
		return nil, errors.New("unsatisfied constraint")
	})
	c := worker.New(0, p, worker.WithLogger(discardLogger()))
	c.Start()
	defer c.Terminate()

	jobID := id.NewJobID()
	c.Execute(msg.NewExecute(jobID, nil))

	msgs, crashed := collect(t, c.Outbox())
	if crashed {
		t.Fatal("a reported failure must not close the outbox")
	}
	last := msgs[len(msgs)-1]
	if last.Kind != msg.KindFailure || last.Reason != "unsatisfied constraint" {
		t.Errorf("unexpected terminal message: %+v", last)
	}
}

func TestContext_ProgressOrdering(t *testing.T) {
	p := prover.Func(func(ctx context.Context, _ []byte) ([]byte, error) {
		prover.Report(ctx, "witness")
		prover.Report(ctx, "prove")
		return []byte("proof"), nil
	})
	c := worker.New(0, p, worker.WithLogger(discardLogger()))
	c.Start()
	defer c.Terminate()

	c.Execute(msg.NewExecute(id.NewJobID(), nil))

	msgs, crashed := collect(t, c.Outbox())
	if crashed {
		t.Fatal("unexpected crash")
	}
	if len(msgs) != 3 {
		t.Fatalf("expected 3 messages, got %d: %+v", len(msgs), msgs)
	}
	if msgs[0].Phase != "witness" || msgs[1].Phase != "prove" {
		t.Errorf("progress out of order: %+v", msgs)
	}
	if !msgs[2].Terminal() {
		t.Error("last message must be terminal")
	}
}

func TestContext_PanicClosesOutboxWithoutTerminal(t *testing.T) {
	p := prover.Func(func(_ context.Context, _ []byte) ([]byte, error) {
		panic("segfault in proving backend")
	})
	c := worker.New(0, p, worker.WithLogger(discardLogger()))
	c.Start()

	c.Execute(msg.NewExecute(id.NewJobID(), nil))

	msgs, crashed := collect(t, c.Outbox())
	if !crashed {
		t.Fatalf("expected crash signal, got messages: %+v", msgs)
	}
	for _, m := range msgs {
		if m.Terminal() {
			t.Errorf("crash must not produce a terminal message, got %+v", m)
		}
	}

	// The panic must stay inside the crashed context: a fresh context in
	// the same process keeps working.
	replacement := worker.New(0, prover.Func(func(_ context.Context, payload []byte) ([]byte, error) {
		return payload, nil
	}), worker.WithLogger(discardLogger()))
	replacement.Start()
	defer replacement.Terminate()

	replacement.Execute(msg.NewExecute(id.NewJobID(), []byte("ok")))
	if _, replacementCrashed := collect(t, replacement.Outbox()); replacementCrashed {
		t.Fatal("replacement context crashed")
	}
}

func TestContext_RecoverMiddlewareConvertsPanic(t *testing.T) {
	p := prover.Func(func(_ context.Context, _ []byte) ([]byte, error) {
		panic("segfault in proving backend")
	})
	c := worker.New(0, p,
		worker.WithLogger(discardLogger()),
		worker.WithMiddleware(middleware.Recover(discardLogger())),
	)
	c.Start()
	defer c.Terminate()

	c.Execute(msg.NewExecute(id.NewJobID(), nil))

	msgs, crashed := collect(t, c.Outbox())
	if crashed {
		t.Fatal("Recover middleware should turn the panic into a reported failure")
	}
	last := msgs[len(msgs)-1]
	if last.Kind != msg.KindFailure {
		t.Errorf("expected failure message, got %+v", last)
	}
}

func TestContext_ReusedAcrossJobs(t *testing.T) {
	var calls int
	p := prover.Func(func(_ context.Context, payload []byte) ([]byte, error) {
		calls++
		return payload, nil
	})
	c := worker.New(0, p, worker.WithLogger(discardLogger()))
	c.Start()
	defer c.Terminate()

	for i := 0; i < 3; i++ {
		c.Execute(msg.NewExecute(id.NewJobID(), []byte{byte(i)}))
		if _, crashed := collect(t, c.Outbox()); crashed {
			t.Fatal("unexpected crash")
		}
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestContext_TerminateClosesOutbox(t *testing.T) {
	p := prover.Func(func(_ context.Context, payload []byte) ([]byte, error) {
		return payload, nil
	})
	c := worker.New(0, p, worker.WithLogger(discardLogger()))
	c.Start()
	c.Terminate()
	c.Terminate() // idempotent

	select {
	case _, ok := <-c.Outbox():
		if ok {
			t.Error("expected closed outbox, got message")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("outbox not closed after Terminate")
	}
}
