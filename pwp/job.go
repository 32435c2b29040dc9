package pwp

import (
	"context"
	"errors"
	"sync"

	"github.com/xraph/provepool"
)

// RemoteJob is the client-side future for a job submitted over PWP. It
// mirrors provepool.Job: progress streams on a buffered channel and the
// outcome resolves exactly once.
type RemoteJob struct {
	id string

	done     chan struct{}
	once     sync.Once
	value    []byte
	err      error
	progress chan string
}

func newRemoteJob(id string) *RemoteJob {
	return &RemoteJob{
		id:       id,
		done:     make(chan struct{}),
		progress: make(chan string, 8),
	}
}

// ID returns the job ID assigned by the server.
func (j *RemoteJob) ID() string { return j.id }

// Done returns a channel closed when the job resolves.
func (j *RemoteJob) Done() <-chan struct{} { return j.done }

// Progress returns the channel carrying phase reports. Reports are
// dropped if the reader falls behind; the channel closes on resolution.
func (j *RemoteJob) Progress() <-chan string { return j.progress }

// Wait blocks until the job resolves or ctx is done.
func (j *RemoteJob) Wait(ctx context.Context) ([]byte, error) {
	select {
	case <-j.done:
		return j.value, j.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (j *RemoteJob) resolve(value []byte) {
	j.once.Do(func() {
		j.value = value
		close(j.done)
		close(j.progress)
	})
}

func (j *RemoteJob) reject(err error) {
	j.once.Do(func() {
		j.err = err
		close(j.done)
		close(j.progress)
	})
}

func (j *RemoteJob) notifyProgress(phase string) {
	select {
	case <-j.done:
	case j.progress <- phase:
	default:
	}
}

// categoryError maps a wire failure category back to the pool's error
// taxonomy, so remote submitters can match with errors.Is exactly like
// local ones.
func categoryError(category, reason string) error {
	switch category {
	case FailureCrashed:
		return provepool.ErrContextCrashed
	case FailureTimeout:
		return provepool.ErrTimeout
	case FailureShutdown:
		return provepool.ErrPoolShutDown
	case FailureRejected:
		return &provepool.ComputationError{Reason: reason}
	default:
		return errors.New("pwp: job failed: " + reason)
	}
}
