// Package msg defines the message protocol spoken between the pool and an
// execution context. Messages form a small tagged union: the pool sends
// "execute" requests, the context replies with zero or more "progress"
// messages followed by exactly one terminal "result" or "failure".
//
// The schema is transport-agnostic. In-process channels carry Message
// values directly; the pwp package carries them over WebSocket using the
// codecs defined here.
package msg

import (
	"fmt"

	"github.com/xraph/provepool/id"
)

// Kind categorizes a message.
type Kind string

const (
	// KindExecute asks a context to run the compute operation on a payload.
	KindExecute Kind = "execute"
	// KindProgress reports an intermediate phase of a running job.
	KindProgress Kind = "progress"
	// KindResult carries the successful outcome of a job. Terminal.
	KindResult Kind = "result"
	// KindFailure carries the reported failure of a job. Terminal.
	KindFailure Kind = "failure"
)

// Message is the envelope exchanged with an execution context. Exactly one
// of Payload, Phase, Value, or Reason is meaningful depending on Kind.
// JobID is carried as the TypeID string form so the envelope serializes
// identically under every codec.
type Message struct {
	Kind  Kind   `json:"kind" msgpack:"kind"`
	JobID string `json:"job_id" msgpack:"job_id"`

	// Payload is the opaque compute input (execute messages only).
	Payload []byte `json:"payload,omitempty" msgpack:"payload,omitempty"`

	// Phase names the current computation stage (progress messages only).
	Phase string `json:"phase,omitempty" msgpack:"phase,omitempty"`

	// Value is the opaque compute output (result messages only).
	Value []byte `json:"value,omitempty" msgpack:"value,omitempty"`

	// Reason describes why the computation was rejected (failure messages only).
	Reason string `json:"reason,omitempty" msgpack:"reason,omitempty"`
}

// NewExecute creates an execute request for the given job.
func NewExecute(jobID id.JobID, payload []byte) Message {
	return Message{Kind: KindExecute, JobID: jobID.String(), Payload: payload}
}

// NewProgress creates a progress report for the given job.
func NewProgress(jobID id.JobID, phase string) Message {
	return Message{Kind: KindProgress, JobID: jobID.String(), Phase: phase}
}

// NewResult creates the terminal success message for the given job.
func NewResult(jobID id.JobID, value []byte) Message {
	return Message{Kind: KindResult, JobID: jobID.String(), Value: value}
}

// NewFailure creates the terminal failure message for the given job.
func NewFailure(jobID id.JobID, reason string) Message {
	return Message{Kind: KindFailure, JobID: jobID.String(), Reason: reason}
}

// Terminal reports whether the message ends a job's lifecycle on a context.
func (m Message) Terminal() bool {
	return m.Kind == KindResult || m.Kind == KindFailure
}

// Validate checks structural invariants of the message.
func (m Message) Validate() error {
	switch m.Kind {
	case KindExecute, KindProgress, KindResult, KindFailure:
	default:
		return fmt.Errorf("msg: unknown kind %q", m.Kind)
	}

	if m.JobID == "" {
		return fmt.Errorf("msg: %s message missing job id", m.Kind)
	}

	if m.Kind == KindFailure && m.Reason == "" {
		return fmt.Errorf("msg: failure message missing reason")
	}

	return nil
}
