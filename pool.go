package provepool

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/xraph/provepool/backoff"
	"github.com/xraph/provepool/hook"
	"github.com/xraph/provepool/id"
	"github.com/xraph/provepool/middleware"
	"github.com/xraph/provepool/msg"
	"github.com/xraph/provepool/prover"
	"github.com/xraph/provepool/worker"
)

type slotState int

const (
	slotIdle slotState = iota
	slotBusy
	slotRespawning
	slotTerminated
)

// slot is one position in the fixed pool. Its generation counter is
// bumped whenever the occupying context is replaced or terminated, so
// pump and timer events from a previous occupant are recognized as
// stale and ignored.
type slot struct {
	index int
	state slotState
	gen   uint64
	ctx   *worker.Context
	job   *Job
	timer *time.Timer
}

// Stats is a point-in-time snapshot of pool state.
type Stats struct {
	QueueDepth int `json:"queue_depth"`
	Busy       int `json:"busy"`
	Idle       int `json:"idle"`
	Respawning int `json:"respawning"`

	Submitted uint64 `json:"submitted"`
	Completed uint64 `json:"completed"`
	Failed    uint64 `json:"failed"`
	Crashes   uint64 `json:"crashes"`
}

// Pool dispatches proof-generation jobs to a fixed set of isolated
// execution contexts. Submit never blocks on capacity: jobs queue in
// FIFO order and are assigned as contexts become idle.
//
// All bookkeeping (queue, slot states, job resolution) is serialized
// under one mutex; prover computation itself runs in the contexts'
// goroutines and is never under the lock.
type Pool struct {
	cfg            Config
	logger         *slog.Logger
	factory        prover.Factory
	middleware     []middleware.Middleware
	pendingExts    []hook.Extension
	hooks          *hook.Registry
	replaceBackoff backoff.Strategy

	mu       sync.Mutex
	queue    []*Job
	jobs     map[string]*Job // queued + in-flight, keyed by job id
	slots    []*slot
	shutdown bool

	submitted uint64
	completed uint64
	failed    uint64
	crashes   uint64

	stopCh chan struct{} // closed on shutdown; aborts respawn waits
	wg     sync.WaitGroup
}

// New creates a pool and eagerly builds one execution context per slot.
// The factory runs once per context; because prover initialization is
// expensive, construction may take a while. A factory error tears down
// any contexts already built and fails construction.
func New(factory prover.Factory, opts ...Option) (*Pool, error) {
	if factory == nil {
		return nil, ErrNoFactory
	}

	p := &Pool{
		cfg:            DefaultConfig(),
		logger:         slog.Default(),
		factory:        factory,
		replaceBackoff: backoff.DefaultStrategy(),
		jobs:           make(map[string]*Job),
		stopCh:         make(chan struct{}),
	}
	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}
	if err := p.cfg.Validate(); err != nil {
		return nil, err
	}

	p.hooks = hook.NewRegistry(p.logger)
	for _, e := range p.pendingExts {
		p.hooks.Register(e)
	}
	p.pendingExts = nil

	p.slots = make([]*slot, p.cfg.PoolSize)
	for i := range p.slots {
		s := &slot{index: i, state: slotIdle}
		ctx, err := p.buildContext(context.Background(), i)
		if err != nil {
			// Staling each pump's generation makes the outbox close read
			// as teardown, not as a crash to respawn from.
			p.mu.Lock()
			for _, prev := range p.slots[:i] {
				prev.gen++
				prev.state = slotTerminated
				prev.ctx.Terminate()
			}
			p.mu.Unlock()
			return nil, err
		}
		s.ctx = ctx
		p.slots[i] = s
		p.startPump(s)
	}

	p.logger.Info("pool started",
		slog.Int("pool_size", p.cfg.PoolSize),
		slog.Duration("job_timeout", p.cfg.JobTimeout),
	)
	return p, nil
}

// buildContext runs the factory and wraps the prover in a started
// execution context for the given slot.
func (p *Pool) buildContext(ctx context.Context, slotIndex int) (*worker.Context, error) {
	pr, err := p.factory(ctx)
	if err != nil {
		return nil, err
	}
	wc := worker.New(slotIndex, pr,
		worker.WithLogger(p.logger),
		worker.WithMiddleware(p.middleware...),
	)
	wc.Start()
	return wc, nil
}

// startPump launches the goroutine that forwards one context's outbox
// into the pool's bookkeeping. The generation captured here lets the
// pool discard events from a context that has since been replaced.
func (p *Pool) startPump(s *slot) {
	ctx := s.ctx
	gen := s.gen
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		for m := range ctx.Outbox() {
			p.handleMessage(s, gen, m)
		}
		p.handleClosed(s, gen)
	}()
}

// Submit enqueues a payload and returns its future immediately. It never
// blocks on pool capacity; if the pool is shut down the returned job is
// already rejected with ErrPoolShutDown.
func (p *Pool) Submit(payload []byte) *Job {
	j := newJob(payload)

	p.mu.Lock()
	if p.shutdown {
		p.mu.Unlock()
		j.reject(ErrPoolShutDown)
		return j
	}
	p.submitted++
	p.queue = append(p.queue, j)
	p.jobs[j.id.String()] = j
	depth := len(p.queue)

	if p.cfg.QueueWarnDepth > 0 && depth >= p.cfg.QueueWarnDepth {
		p.logger.Warn("job queue backlog",
			slog.Int("depth", depth),
			slog.Int("warn_depth", p.cfg.QueueWarnDepth),
		)
	}
	dispatched := p.assignLocked()
	p.mu.Unlock()

	p.hooks.EmitJobQueued(context.Background(), j.id, depth)
	for _, emit := range dispatched {
		emit()
	}
	return j
}

// Cancel removes a queued job before dispatch and rejects its future
// with ErrCancelled. A job already handed to a context cannot be
// cancelled (ErrJobInFlight); an unknown or resolved job reports
// ErrJobNotFound.
func (p *Pool) Cancel(jobID id.JobID) error {
	p.mu.Lock()
	key := jobID.String()
	j, ok := p.jobs[key]
	if !ok {
		p.mu.Unlock()
		return ErrJobNotFound
	}
	for i, q := range p.queue {
		if q == j {
			p.queue = append(p.queue[:i], p.queue[i+1:]...)
			delete(p.jobs, key)
			p.failed++
			j.reject(ErrCancelled)
			p.mu.Unlock()
			p.hooks.EmitJobCancelled(context.Background(), jobID)
			return nil
		}
	}
	p.mu.Unlock()
	return ErrJobInFlight
}

// Stats returns a snapshot of queue depth, slot states, and counters.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	st := Stats{
		QueueDepth: len(p.queue),
		Submitted:  p.submitted,
		Completed:  p.completed,
		Failed:     p.failed,
		Crashes:    p.crashes,
	}
	for _, s := range p.slots {
		switch s.state {
		case slotBusy:
			st.Busy++
		case slotIdle:
			st.Idle++
		case slotRespawning:
			st.Respawning++
		}
	}
	return st
}

// Shutdown terminates the pool: every queued and in-flight job is
// rejected with ErrPoolShutDown and all execution contexts are
// terminated. Idempotent; subsequent calls return immediately. The
// ctx bounds the wait for context goroutines to drain.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if p.shutdown {
		p.mu.Unlock()
		return nil
	}
	p.shutdown = true
	close(p.stopCh)

	for _, j := range p.queue {
		if j.reject(ErrPoolShutDown) {
			p.failed++
		}
	}
	p.queue = nil

	for _, s := range p.slots {
		if s.timer != nil {
			s.timer.Stop()
			s.timer = nil
		}
		if s.job != nil {
			if s.job.reject(ErrPoolShutDown) {
				p.failed++
			}
			s.job = nil
		}
		// Bumping the generation makes the pump treat the coming outbox
		// close as stale rather than as a crash.
		s.gen++
		s.state = slotTerminated
		if s.ctx != nil {
			s.ctx.Terminate()
		}
	}
	p.jobs = make(map[string]*Job)
	p.mu.Unlock()

	p.hooks.EmitShutdown(ctx)

	drained := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(drained)
	}()
	select {
	case <-drained:
		p.logger.Info("pool shut down")
		return nil
	case <-ctx.Done():
		p.logger.Warn("pool shutdown timed out waiting for execution contexts")
		return ctx.Err()
	}
}

// assignLocked dispatches queued jobs to idle contexts, FIFO, until one
// side runs out. Caller holds p.mu. Hook notifications are returned as
// closures for the caller to run after releasing the lock, so an
// extension can call back into the pool without deadlocking.
func (p *Pool) assignLocked() []func() {
	var emits []func()
	for len(p.queue) > 0 {
		s := p.idleSlotLocked()
		if s == nil {
			break
		}
		j := p.queue[0]
		p.queue = p.queue[1:]

		s.state = slotBusy
		s.job = j
		if p.cfg.JobTimeout > 0 {
			gen := s.gen
			job := j
			s.timer = time.AfterFunc(p.cfg.JobTimeout, func() {
				p.handleTimeout(s, gen, job)
			})
		}

		// Execute never blocks: the context is idle, its inbox empty.
		s.ctx.Execute(msg.NewExecute(j.id, j.payload))
		jobID, proverID := j.id, s.ctx.ID()
		emits = append(emits, func() {
			p.hooks.EmitJobDispatched(context.Background(), jobID, proverID)
		})
		p.logger.Debug("job dispatched",
			slog.String("job_id", jobID.String()),
			slog.String("prover_id", proverID.String()),
			slog.Int("slot", s.index),
		)
	}
	return emits
}

func (p *Pool) idleSlotLocked() *slot {
	for _, s := range p.slots {
		if s.state == slotIdle {
			return s
		}
	}
	return nil
}

// handleMessage processes one progress or terminal message from a
// context. Stale generations (the context was replaced or the pool shut
// down since) are dropped. Hooks fire after the lock is released.
func (p *Pool) handleMessage(s *slot, gen uint64, m msg.Message) {
	p.mu.Lock()
	if s.gen != gen {
		p.mu.Unlock()
		return
	}

	j := s.job
	if j == nil || j.id.String() != m.JobID {
		p.mu.Unlock()
		p.logger.Warn("message for unknown job",
			slog.Int("slot", s.index),
			slog.String("job_id", m.JobID),
			slog.String("kind", string(m.Kind)),
		)
		return
	}

	var emits []func()
	switch m.Kind {
	case msg.KindProgress:
		j.notifyProgress(m.Phase)
		phase := m.Phase
		emits = append(emits, func() {
			p.hooks.EmitJobProgress(context.Background(), j.id, phase)
		})

	case msg.KindResult:
		p.finishLocked(s, j)
		if j.resolve(m.Value) {
			p.completed++
			elapsed := time.Since(j.submittedAt)
			emits = append(emits, func() {
				p.hooks.EmitJobCompleted(context.Background(), j.id, elapsed)
			})
		}
		emits = append(emits, p.assignLocked()...)

	case msg.KindFailure:
		p.finishLocked(s, j)
		compErr := &ComputationError{Reason: m.Reason}
		if j.reject(compErr) {
			p.failed++
			emits = append(emits, func() {
				p.hooks.EmitJobFailed(context.Background(), j.id, compErr)
			})
		}
		emits = append(emits, p.assignLocked()...)
	}
	p.mu.Unlock()

	for _, emit := range emits {
		emit()
	}
}

// finishLocked clears a slot's in-flight job and returns the slot to
// idle. Caller holds p.mu. Late terminal messages for a job whose
// future was already rejected by timeout land here too: the slot is
// reclaimed and the duplicate outcome is discarded by the job's
// resolve-once guard.
func (p *Pool) finishLocked(s *slot, j *Job) {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.job = nil
	s.state = slotIdle
	delete(p.jobs, j.id.String())
}

// handleClosed runs when a context's outbox closes. With a current
// generation that close means the goroutine died without a terminal
// message, so the in-flight job is rejected and a replacement context
// is spawned into the same slot.
func (p *Pool) handleClosed(s *slot, gen uint64) {
	p.mu.Lock()
	if s.gen != gen || p.shutdown {
		p.mu.Unlock()
		return
	}

	p.crashes++
	crashedID := s.ctx.ID()
	var jobID id.JobID
	var failed *Job
	if j := s.job; j != nil {
		jobID = j.id
		if s.timer != nil {
			s.timer.Stop()
			s.timer = nil
		}
		s.job = nil
		delete(p.jobs, j.id.String())
		if j.reject(ErrContextCrashed) {
			p.failed++
			failed = j
		}
	}

	s.gen++
	s.state = slotRespawning
	s.ctx = nil
	respawnGen := s.gen

	p.logger.Error("execution context crashed",
		slog.Int("slot", s.index),
		slog.String("prover_id", crashedID.String()),
		slog.String("job_id", jobID.String()),
	)
	p.mu.Unlock()

	if failed != nil {
		p.hooks.EmitJobFailed(context.Background(), failed.id, ErrContextCrashed)
	}
	p.hooks.EmitContextCrashed(context.Background(), s.index, crashedID, jobID)

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.respawn(s, respawnGen)
	}()
}

// handleTimeout fires when a dispatched job produces no terminal message
// within the configured timeout. The future is rejected with ErrTimeout,
// but the context is not presumed dead: the slot stays busy until the
// context replies, and only then returns to service.
func (p *Pool) handleTimeout(s *slot, gen uint64, j *Job) {
	p.mu.Lock()
	if s.gen != gen || s.job != j {
		p.mu.Unlock()
		return
	}
	s.timer = nil

	rejected := j.reject(ErrTimeout)
	if rejected {
		p.failed++
	}
	p.logger.Warn("job timed out awaiting terminal message",
		slog.String("job_id", j.id.String()),
		slog.Int("slot", s.index),
		slog.Duration("timeout", p.cfg.JobTimeout),
	)
	p.mu.Unlock()

	if rejected {
		p.hooks.EmitJobFailed(context.Background(), j.id, ErrTimeout)
	}
}

// respawn builds a replacement context for a crashed slot, retrying with
// backoff until the factory succeeds or the pool shuts down.
func (p *Pool) respawn(s *slot, gen uint64) {
	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(p.replaceBackoff.Delay(attempt)):
			case <-p.stopCh:
				return
			}
		}

		ctx, err := p.buildContext(context.Background(), s.index)
		if err != nil {
			p.logger.Error("replacement context construction failed",
				slog.Int("slot", s.index),
				slog.Int("attempt", attempt+1),
				slog.String("error", err.Error()),
			)
			continue
		}

		p.mu.Lock()
		if p.shutdown || s.gen != gen {
			p.mu.Unlock()
			ctx.Terminate()
			return
		}
		s.ctx = ctx
		s.state = slotIdle
		p.startPump(s)
		p.logger.Info("execution context replaced",
			slog.Int("slot", s.index),
			slog.String("prover_id", ctx.ID().String()),
		)
		dispatched := p.assignLocked()
		p.mu.Unlock()

		p.hooks.EmitContextReplaced(context.Background(), s.index, ctx.ID())
		for _, emit := range dispatched {
			emit()
		}
		return
	}
}
