// Package pwp implements the Prove Wire Protocol (PWP) — a frame-based
// protocol for submitting proof jobs to a remote pool over WebSocket.
// Connections authenticate first, negotiate a codec (JSON or msgpack),
// then exchange request/response frames; progress and terminal outcomes
// stream back as event frames keyed by job ID.
package pwp

import (
	"encoding/json"
	"time"
)

// FrameType identifies the frame category.
type FrameType string

const (
	FrameRequest  FrameType = "request"
	FrameResponse FrameType = "response"
	FrameEvent    FrameType = "event"
	FrameErr      FrameType = "error"
	FramePing     FrameType = "ping"
	FramePong     FrameType = "pong"
)

// Frame is the PWP message envelope. Every message exchanged over the
// protocol is a Frame.
type Frame struct {
	// ID uniquely identifies this frame.
	ID string `json:"id" msgpack:"id"`

	// Type categorizes the frame.
	Type FrameType `json:"type" msgpack:"type"`

	// Method names the operation for request frames (e.g., "prove.submit").
	Method string `json:"method,omitempty" msgpack:"method,omitempty"`

	// CorrelID links a response to its originating request.
	CorrelID string `json:"correl_id,omitempty" msgpack:"correl_id,omitempty"`

	// Token carries auth credentials (only on the auth frame).
	Token string `json:"token,omitempty" msgpack:"token,omitempty"`

	// Data carries the method-specific payload.
	Data json.RawMessage `json:"data,omitempty" msgpack:"data,omitempty"`

	// Error carries error details for error frames.
	Error *ErrorDetail `json:"error,omitempty" msgpack:"error,omitempty"`

	// Channel identifies the job an event frame belongs to.
	Channel string `json:"channel,omitempty" msgpack:"channel,omitempty"`

	// Timestamp records when this frame was created.
	Timestamp time.Time `json:"ts" msgpack:"ts"`
}

// ErrorDetail describes an error in a response or error frame.
type ErrorDetail struct {
	Code    int    `json:"code" msgpack:"code"`
	Message string `json:"message" msgpack:"message"`
}

// ── Well-known methods ──────────────────────────────

const (
	MethodAuth = "auth"

	MethodProveSubmit = "prove.submit"
	MethodProveCancel = "prove.cancel"
	MethodPoolStats   = "pool.stats"
)

// ── Well-known error codes ──────────────────────────

const (
	ErrCodeBadRequest     = 400
	ErrCodeUnauthorized   = 401
	ErrCodeForbidden      = 403
	ErrCodeNotFound       = 404
	ErrCodeMethodNotFound = 405
	ErrCodeConflict       = 409
	ErrCodeRateLimited    = 429
	ErrCodeInternal       = 500
)

// ── Request/Response payloads ───────────────────────

// AuthRequest is sent by clients as the first frame.
type AuthRequest struct {
	Token  string `json:"token"`
	Format string `json:"format,omitempty"` // "json" (default) or "msgpack"
}

// AuthResponse is returned after successful authentication.
type AuthResponse struct {
	Format    string `json:"format"`
	SessionID string `json:"session_id"`
}

// SubmitRequest submits a payload for proof generation.
type SubmitRequest struct {
	Payload []byte `json:"payload"`
}

// SubmitResponse acknowledges a submission.
type SubmitResponse struct {
	JobID string `json:"job_id"`
}

// CancelRequest withdraws a queued job.
type CancelRequest struct {
	JobID string `json:"job_id"`
}

// CancelResponse confirms a cancellation.
type CancelResponse struct {
	JobID string `json:"job_id"`
}

// StatsResponse mirrors the pool's snapshot.
type StatsResponse struct {
	QueueDepth int    `json:"queue_depth"`
	Busy       int    `json:"busy"`
	Idle       int    `json:"idle"`
	Respawning int    `json:"respawning"`
	Submitted  uint64 `json:"submitted"`
	Completed  uint64 `json:"completed"`
	Failed     uint64 `json:"failed"`
	Crashes    uint64 `json:"crashes"`
}

// ── Event payloads ──────────────────────────────────

// Event kinds streamed for a submitted job.
const (
	EventProgress = "progress"
	EventResult   = "result"
	EventFailure  = "failure"
)

// Failure categories carried on failure events, mapping the pool's
// error taxonomy across the wire.
const (
	FailureRejected = "rejected"
	FailureCrashed  = "crashed"
	FailureTimeout  = "timeout"
	FailureShutdown = "shutdown"
)

// JobEvent is the payload of event frames for a submitted job. The frame
// Channel carries the job ID.
type JobEvent struct {
	JobID    string `json:"job_id"`
	Type     string `json:"type"`
	Phase    string `json:"phase,omitempty"`
	Proof    []byte `json:"proof,omitempty"`
	Category string `json:"category,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

// ── Frame constructors ──────────────────────────────

// NewRequestFrame creates a new request frame.
func NewRequestFrame(id, method string, data any) (*Frame, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return &Frame{
		ID:        id,
		Type:      FrameRequest,
		Method:    method,
		Data:      raw,
		Timestamp: time.Now().UTC(),
	}, nil
}

// NewResponseFrame creates a response to a request.
func NewResponseFrame(correlID string, data any) (*Frame, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return &Frame{
		ID:        GenerateFrameID(),
		Type:      FrameResponse,
		CorrelID:  correlID,
		Data:      raw,
		Timestamp: time.Now().UTC(),
	}, nil
}

// NewErrorFrame creates an error response to a request.
func NewErrorFrame(correlID string, code int, message string) *Frame {
	return &Frame{
		ID:       GenerateFrameID(),
		Type:     FrameErr,
		CorrelID: correlID,
		Error: &ErrorDetail{
			Code:    code,
			Message: message,
		},
		Timestamp: time.Now().UTC(),
	}
}

// NewEventFrame creates an event frame for a job channel.
func NewEventFrame(channel string, data any) (*Frame, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return &Frame{
		ID:        GenerateFrameID(),
		Type:      FrameEvent,
		Channel:   channel,
		Data:      raw,
		Timestamp: time.Now().UTC(),
	}, nil
}

// GenerateFrameID returns a new unique frame ID.
// Uses a simple timestamp approach for performance.
func GenerateFrameID() string {
	return time.Now().UTC().Format("20060102150405.000000000")
}
