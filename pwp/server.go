package pwp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"golang.org/x/time/rate"

	"github.com/xraph/provepool"
	"github.com/xraph/provepool/id"
)

// Option configures a PWP Server.
type Option func(*Server)

// WithAuth sets the authenticator for the server.
// If not set, NoopAuthenticator is used (development mode).
func WithAuth(auth Authenticator) Option {
	return func(s *Server) { s.auth = auth }
}

// WithCodec sets the default codec for the server.
// Clients can override via the auth frame's format field.
func WithCodec(codec Codec) Option {
	return func(s *Server) { s.defaultCodec = codec }
}

// WithLogger sets the logger for the server.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithSubmitRate limits prove.submit requests per connection. Submissions
// beyond the limit get an error frame with code 429; the pool's own queue
// stays unbounded. Zero r disables the limit.
func WithSubmitRate(r rate.Limit, burst int) Option {
	return func(s *Server) {
		s.submitRate = r
		s.submitBurst = burst
	}
}

// Server exposes a provepool.Pool over the Prove Wire Protocol. It is an
// http.Handler that upgrades requests to WebSocket, performs the
// auth-first handshake, then serves frames until the peer disconnects.
type Server struct {
	pool         *provepool.Pool
	auth         Authenticator
	defaultCodec Codec
	logger       *slog.Logger
	submitRate   rate.Limit
	submitBurst  int
}

// NewServer creates a PWP server fronting the given pool.
func NewServer(pool *provepool.Pool, opts ...Option) *Server {
	s := &Server{
		pool:         pool,
		defaultCodec: &JSONCodec{},
		logger:       slog.Default(),
		submitBurst:  1,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.auth == nil {
		s.auth = &NoopAuthenticator{}
	}
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, _, _, err := ws.UpgradeHTTP(r, w)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}
	go s.serveConn(conn)
}

// session holds per-connection state after a successful handshake.
type session struct {
	conn     net.Conn
	codec    Codec
	identity *Identity
	limiter  *rate.Limiter

	// writeMu serializes frame writes: event watchers and the request
	// loop share the connection.
	writeMu sync.Mutex
}

func (s *Server) serveConn(conn net.Conn) {
	defer conn.Close() //nolint:errcheck

	sess, err := s.handshake(conn)
	if err != nil {
		s.logger.Warn("pwp handshake failed", slog.String("error", err.Error()))
		return
	}
	s.logger.Info("pwp client authenticated",
		slog.String("subject", sess.identity.Subject),
		slog.String("codec", sess.codec.Name()),
	)

	for {
		data, op, readErr := wsutil.ReadClientData(conn)
		if readErr != nil {
			return // Connection closed.
		}
		if op != ws.OpText && op != ws.OpBinary {
			continue
		}

		frame, decErr := sess.codec.Decode(data)
		if decErr != nil {
			s.writeFrame(sess, NewErrorFrame("", ErrCodeBadRequest, "invalid frame: "+decErr.Error()))
			continue
		}

		if frame.Type == FramePing {
			s.writeFrame(sess, &Frame{
				ID:        GenerateFrameID(),
				Type:      FramePong,
				CorrelID:  frame.ID,
				Timestamp: frame.Timestamp,
			})
			continue
		}

		if reqScope := RequiredScope(frame.Method); reqScope != "" && !sess.identity.HasScope(reqScope) {
			s.writeFrame(sess, NewErrorFrame(frame.ID, ErrCodeForbidden, "insufficient permissions"))
			continue
		}

		if resp := s.handle(sess, frame); resp != nil {
			s.writeFrame(sess, resp)
		}
	}
}

// handshake performs the auth-first exchange. The auth frame is always
// JSON; the negotiated codec applies from the auth response onward.
func (s *Server) handshake(conn net.Conn) (*session, error) {
	data, _, err := wsutil.ReadClientData(conn)
	if err != nil {
		return nil, fmt.Errorf("read auth frame: %w", err)
	}

	var authFrame Frame
	if err := json.Unmarshal(data, &authFrame); err != nil {
		s.writeRaw(conn, &JSONCodec{}, NewErrorFrame("", ErrCodeBadRequest, "invalid auth frame"))
		return nil, fmt.Errorf("unmarshal auth frame: %w", err)
	}
	if authFrame.Method != MethodAuth {
		s.writeRaw(conn, &JSONCodec{}, NewErrorFrame(authFrame.ID, ErrCodeBadRequest, "first frame must be auth"))
		return nil, fmt.Errorf("expected auth frame, got %q", authFrame.Method)
	}

	var authReq AuthRequest
	if len(authFrame.Data) > 0 {
		if err := json.Unmarshal(authFrame.Data, &authReq); err != nil {
			s.writeRaw(conn, &JSONCodec{}, NewErrorFrame(authFrame.ID, ErrCodeBadRequest, "invalid auth data"))
			return nil, err
		}
	}

	token := authReq.Token
	if token == "" {
		token = authFrame.Token
	}
	identity, authErr := s.auth.Authenticate(context.Background(), token)
	if authErr != nil {
		s.writeRaw(conn, &JSONCodec{}, NewErrorFrame(authFrame.ID, ErrCodeUnauthorized, "authentication failed"))
		return nil, fmt.Errorf("auth failed: %w", authErr)
	}

	codec := s.defaultCodec
	if authReq.Format != "" {
		codec = GetCodec(authReq.Format)
	}

	var limiter *rate.Limiter
	if s.submitRate > 0 {
		limiter = rate.NewLimiter(s.submitRate, s.submitBurst)
	}

	sess := &session{
		conn:     conn,
		codec:    codec,
		identity: identity,
		limiter:  limiter,
	}

	resp, respErr := NewResponseFrame(authFrame.ID, AuthResponse{
		Format:    codec.Name(),
		SessionID: GenerateFrameID(),
	})
	if respErr != nil {
		return nil, fmt.Errorf("marshal auth response: %w", respErr)
	}
	// Auth response still goes out in JSON so the client can read the
	// negotiation result without guessing the format.
	if err := s.writeRaw(conn, &JSONCodec{}, resp); err != nil {
		return nil, err
	}
	return sess, nil
}

// handle dispatches one request frame to the pool.
func (s *Server) handle(sess *session, frame *Frame) *Frame {
	switch frame.Method {
	case MethodProveSubmit:
		return s.handleSubmit(sess, frame)
	case MethodProveCancel:
		return s.handleCancel(frame)
	case MethodPoolStats:
		return s.handleStats(frame)
	default:
		return NewErrorFrame(frame.ID, ErrCodeMethodNotFound, "unknown method: "+frame.Method)
	}
}

func (s *Server) handleSubmit(sess *session, frame *Frame) *Frame {
	if sess.limiter != nil && !sess.limiter.Allow() {
		return NewErrorFrame(frame.ID, ErrCodeRateLimited, "submit rate exceeded")
	}

	var req SubmitRequest
	if err := json.Unmarshal(frame.Data, &req); err != nil {
		return NewErrorFrame(frame.ID, ErrCodeBadRequest, "invalid request: "+err.Error())
	}

	job := s.pool.Submit(req.Payload)

	// The ack goes out before the watcher starts so no event frame can
	// precede the submit response on the wire.
	resp := mustResponseFrame(frame.ID, SubmitResponse{JobID: job.ID().String()})
	if err := s.writeFrame(sess, resp); err != nil {
		return nil
	}
	go s.watchJob(sess, job)
	return nil
}

func (s *Server) handleCancel(frame *Frame) *Frame {
	var req CancelRequest
	if err := json.Unmarshal(frame.Data, &req); err != nil {
		return NewErrorFrame(frame.ID, ErrCodeBadRequest, "invalid request: "+err.Error())
	}
	jobID, err := id.ParseJobID(req.JobID)
	if err != nil {
		return NewErrorFrame(frame.ID, ErrCodeBadRequest, "invalid job ID: "+err.Error())
	}

	switch cancelErr := s.pool.Cancel(jobID); {
	case cancelErr == nil:
		return mustResponseFrame(frame.ID, CancelResponse{JobID: req.JobID})
	case errors.Is(cancelErr, provepool.ErrJobInFlight):
		return NewErrorFrame(frame.ID, ErrCodeConflict, "job already dispatched")
	case errors.Is(cancelErr, provepool.ErrJobNotFound):
		return NewErrorFrame(frame.ID, ErrCodeNotFound, "job not found")
	default:
		return NewErrorFrame(frame.ID, ErrCodeInternal, cancelErr.Error())
	}
}

func (s *Server) handleStats(frame *Frame) *Frame {
	st := s.pool.Stats()
	return mustResponseFrame(frame.ID, StatsResponse{
		QueueDepth: st.QueueDepth,
		Busy:       st.Busy,
		Idle:       st.Idle,
		Respawning: st.Respawning,
		Submitted:  st.Submitted,
		Completed:  st.Completed,
		Failed:     st.Failed,
		Crashes:    st.Crashes,
	})
}

// watchJob streams a job's progress and terminal outcome to the client
// as event frames on the job's channel.
func (s *Server) watchJob(sess *session, job *provepool.Job) {
	channel := job.ID().String()

	for {
		select {
		case phase, ok := <-job.Progress():
			if !ok {
				// Progress closed means the job resolved; fall through
				// to the terminal event below.
				s.emitTerminal(sess, job, channel)
				return
			}
			s.emitEvent(sess, channel, JobEvent{
				JobID: channel,
				Type:  EventProgress,
				Phase: phase,
			})
		case <-job.Done():
			// Drain any buffered progress before the terminal event.
			for phase := range job.Progress() {
				s.emitEvent(sess, channel, JobEvent{
					JobID: channel,
					Type:  EventProgress,
					Phase: phase,
				})
			}
			s.emitTerminal(sess, job, channel)
			return
		}
	}
}

func (s *Server) emitTerminal(sess *session, job *provepool.Job, channel string) {
	proof, err := job.Result()
	if err == nil {
		s.emitEvent(sess, channel, JobEvent{
			JobID: channel,
			Type:  EventResult,
			Proof: proof,
		})
		return
	}
	s.emitEvent(sess, channel, JobEvent{
		JobID:    channel,
		Type:     EventFailure,
		Category: failureCategory(err),
		Reason:   err.Error(),
	})
}

func (s *Server) emitEvent(sess *session, channel string, evt JobEvent) {
	frame, err := NewEventFrame(channel, evt)
	if err != nil {
		s.logger.Warn("marshal job event", slog.String("error", err.Error()))
		return
	}
	if writeErr := s.writeFrame(sess, frame); writeErr != nil {
		s.logger.Debug("event write failed, connection gone",
			slog.String("channel", channel),
			slog.String("error", writeErr.Error()),
		)
	}
}

// failureCategory maps a pool error to its wire category.
func failureCategory(err error) string {
	switch {
	case errors.Is(err, provepool.ErrComputationRejected):
		return FailureRejected
	case errors.Is(err, provepool.ErrContextCrashed):
		return FailureCrashed
	case errors.Is(err, provepool.ErrTimeout):
		return FailureTimeout
	case errors.Is(err, provepool.ErrPoolShutDown):
		return FailureShutdown
	default:
		return FailureRejected
	}
}

// writeFrame encodes and writes a frame using the session's codec,
// serialized against concurrent watchers.
func (s *Server) writeFrame(sess *session, frame *Frame) error {
	sess.writeMu.Lock()
	defer sess.writeMu.Unlock()
	return s.writeRaw(sess.conn, sess.codec, frame)
}

// writeRaw encodes and writes a frame without session locking. Text
// frames for JSON, binary for everything else.
func (s *Server) writeRaw(conn net.Conn, codec Codec, frame *Frame) error {
	data, err := codec.Encode(frame)
	if err != nil {
		return err
	}
	if codec.Name() == CodecNameJSON {
		return wsutil.WriteServerText(conn, data)
	}
	return wsutil.WriteServerBinary(conn, data)
}

// mustResponseFrame creates a response frame, returning an error frame
// on marshal failure.
func mustResponseFrame(frameID string, data any) *Frame {
	resp, err := NewResponseFrame(frameID, data)
	if err != nil {
		return NewErrorFrame(frameID, ErrCodeInternal, "marshal response: "+err.Error())
	}
	return resp
}
