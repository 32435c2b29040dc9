// Package worker provides the execution context — an isolated goroutine
// that owns one prover instance, receives execute messages from the pool,
// and replies with progress and terminal messages.
//
// A Context knows nothing about the queue or its sibling contexts; the
// pool is its sole owner. Contexts are created eagerly (prover
// initialization is expensive relative to per-job cost), reused across
// many jobs, and terminated explicitly or replaced after a crash.
package worker

import (
	"context"
	"log/slog"
	"sync"

	"github.com/xraph/provepool/id"
	"github.com/xraph/provepool/middleware"
	"github.com/xraph/provepool/msg"
	"github.com/xraph/provepool/prover"
)

// Context is one isolated execution context. The pool sends execute
// messages through Execute and consumes replies from Outbox. Replies on
// one context's outbox are delivered in the order sent; no ordering holds
// across contexts.
//
// Crash model: a panic escaping the compute chain is recovered at the
// top of the context's goroutine, which then exits without emitting a
// terminal message. The deferred outbox close is the crash signal the
// pool acts on; the panic never reaches the rest of the process.
type Context struct {
	proverID id.ProverID
	slot     int
	prover   prover.Prover
	mw       middleware.Middleware
	logger   *slog.Logger

	inbox  chan msg.Message
	outbox chan msg.Message

	startOnce sync.Once
	termOnce  sync.Once
}

// Option configures a Context.
type Option func(*Context)

// WithMiddleware sets the middleware chain wrapped around each compute call.
func WithMiddleware(mws ...middleware.Middleware) Option {
	return func(c *Context) { c.mw = middleware.Chain(mws...) }
}

// WithLogger sets the structured logger for the context.
func WithLogger(l *slog.Logger) Option {
	return func(c *Context) { c.logger = l }
}

// New creates an execution context for the given pool slot. The context
// does not process messages until Start is called.
func New(slot int, p prover.Prover, opts ...Option) *Context {
	c := &Context{
		proverID: id.NewProverID(),
		slot:     slot,
		prover:   p,
		mw:       middleware.Chain(),
		logger:   slog.Default(),
		// Capacity 1: the pool dispatches at most one job to an idle
		// context, so sends never block.
		inbox:  make(chan msg.Message, 1),
		outbox: make(chan msg.Message, 16),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ID returns the context's unique identifier.
func (c *Context) ID() id.ProverID { return c.proverID }

// Slot returns the pool slot index this context occupies.
func (c *Context) Slot() int { return c.slot }

// Outbox returns the channel carrying progress and terminal messages.
// It is closed when the context terminates — or crashes.
func (c *Context) Outbox() <-chan msg.Message { return c.outbox }

// Start launches the context's goroutine. Idempotent.
func (c *Context) Start() {
	c.startOnce.Do(func() { go c.run() })
}

// Execute hands an execute message to the context. The caller must ensure
// the context is idle and not terminated; this is guaranteed by the pool's
// slot state machine.
func (c *Context) Execute(m msg.Message) {
	c.inbox <- m
}

// Terminate closes the inbox; the goroutine finishes any in-flight
// computation, then exits and closes the outbox. Idempotent.
func (c *Context) Terminate() {
	c.termOnce.Do(func() { close(c.inbox) })
}

// run is the context's goroutine: one message at a time, in order.
func (c *Context) run() {
	// A close with no preceding terminal message is the crash signal,
	// so it must also fire when a compute panic unwinds the goroutine.
	defer close(c.outbox)

	// The recover runs before the close above. Without it a prover panic
	// would take down the whole process instead of this one context.
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("prover panic in execution context",
				slog.String("prover_id", c.proverID.String()),
				slog.Any("panic", r),
			)
		}
	}()

	for m := range c.inbox {
		if m.Kind != msg.KindExecute {
			c.logger.Warn("execution context received unexpected message",
				slog.String("prover_id", c.proverID.String()),
				slog.String("kind", string(m.Kind)),
			)
			continue
		}
		c.serve(m)
	}
}

// serve runs one job through the middleware chain and the prover, then
// emits exactly one terminal message.
func (c *Context) serve(m msg.Message) {
	jobID, err := id.ParseJobID(m.JobID)
	if err != nil {
		c.outbox <- msg.Message{Kind: msg.KindFailure, JobID: m.JobID, Reason: "malformed job id"}
		return
	}

	ctx := prover.WithReporter(context.Background(), func(phase string) {
		c.outbox <- msg.NewProgress(jobID, phase)
	})

	req := &middleware.Request{JobID: jobID, Payload: m.Payload}
	value, computeErr := c.mw(ctx, req, func(ctx context.Context) ([]byte, error) {
		return c.prover.Compute(ctx, m.Payload)
	})

	if computeErr != nil {
		c.outbox <- msg.NewFailure(jobID, computeErr.Error())
		return
	}
	c.outbox <- msg.NewResult(jobID, value)
}
