package provepool

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/xraph/provepool/id"
)

// progressBuffer is the capacity of a job's progress channel. Progress
// reports beyond an unread buffer are dropped; terminal outcomes never are.
const progressBuffer = 8

// Job is the future handle returned by Submit. It resolves exactly once,
// with either the proof bytes or one of the failure-taxonomy errors
// (ComputationError, ErrContextCrashed, ErrTimeout, ErrCancelled,
// ErrPoolShutDown).
//
// The pool owns the job until resolution; afterwards the handle is inert
// and only carries the outcome.
type Job struct {
	id          id.JobID
	payload     []byte
	submittedAt time.Time

	done     chan struct{}
	once     sync.Once
	resolved atomic.Bool
	value    []byte
	err      error

	progress chan string
}

func newJob(payload []byte) *Job {
	return &Job{
		id:          id.NewJobID(),
		payload:     payload,
		submittedAt: time.Now().UTC(),
		done:        make(chan struct{}),
		progress:    make(chan string, progressBuffer),
	}
}

// ID returns the job's unique identifier.
func (j *Job) ID() id.JobID { return j.id }

// SubmittedAt returns when the job entered the pool.
func (j *Job) SubmittedAt() time.Time { return j.submittedAt }

// Done returns a channel closed when the job resolves, for use in select
// statements. Use Wait or Result to read the outcome.
func (j *Job) Done() <-chan struct{} { return j.done }

// Progress returns the channel carrying phase reports from the running
// computation (e.g. "witness", "prove"). The channel is buffered and
// reports are dropped if the reader falls behind; it is closed on
// resolution.
func (j *Job) Progress() <-chan string { return j.progress }

// Wait blocks until the job resolves or ctx is done. A ctx error abandons
// the wait only — the job itself stays queued or in flight.
func (j *Job) Wait(ctx context.Context) ([]byte, error) {
	select {
	case <-j.done:
		return j.value, j.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Result returns the outcome without blocking. Before resolution it
// returns ErrPending.
func (j *Job) Result() ([]byte, error) {
	if !j.resolved.Load() {
		return nil, ErrPending
	}
	return j.value, j.err
}

// Resolved reports whether the job has an outcome.
func (j *Job) Resolved() bool { return j.resolved.Load() }

// resolve fulfills the future with a value. Returns true on the first
// resolution, false if the outcome was already set.
func (j *Job) resolve(value []byte) bool {
	won := false
	j.once.Do(func() {
		j.value = value
		j.resolved.Store(true)
		close(j.done)
		close(j.progress)
		won = true
	})
	return won
}

// reject fulfills the future with an error. Returns true on the first
// resolution, false if the outcome was already set.
func (j *Job) reject(err error) bool {
	won := false
	j.once.Do(func() {
		j.err = err
		j.resolved.Store(true)
		close(j.done)
		close(j.progress)
		won = true
	})
	return won
}

// notifyProgress forwards a phase report to the progress channel,
// dropping it if the buffer is full or the job already resolved.
func (j *Job) notifyProgress(phase string) {
	if j.resolved.Load() {
		return
	}
	select {
	case j.progress <- phase:
	default:
	}
}
