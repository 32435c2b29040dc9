package pwp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"

	"github.com/xraph/provepool/backoff"
)

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithToken sets the auth token sent in the handshake.
func WithToken(token string) ClientOption {
	return func(c *Client) { c.token = token }
}

// WithFormat requests a wire format ("json" or "msgpack").
func WithFormat(format string) ClientOption {
	return func(c *Client) { c.format = format }
}

// WithClientLogger sets the client's structured logger.
func WithClientLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) { c.logger = logger }
}

// WithReconnect enables automatic reconnection after a broken
// connection, pacing attempts with the given strategy. In-flight jobs
// and pending requests on the old connection fail with ErrConnClosed.
func WithReconnect(maxRetries int, strategy backoff.Strategy) ClientOption {
	return func(c *Client) {
		c.reconnect = true
		c.maxRetries = maxRetries
		c.backoff = strategy
	}
}

// ErrConnClosed indicates the connection went away before an outcome
// arrived.
var ErrConnClosed = fmt.Errorf("pwp: connection closed")

// ServerError is an error frame surfaced to the caller.
type ServerError struct {
	Code    int
	Message string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("pwp: server error %d: %s", e.Code, e.Message)
}

// Client connects to a PWP server, submits payloads, and resolves
// RemoteJob futures from streamed events.
type Client struct {
	url    string
	token  string
	format string
	logger *slog.Logger

	reconnect  bool
	maxRetries int
	backoff    backoff.Strategy

	conn      net.Conn
	codec     Codec
	writeMu   sync.Mutex
	closed    atomic.Bool
	sessionID string

	// Request-response correlation.
	pending sync.Map // frameID → chan *Frame

	// Submitted jobs awaiting events.
	jobs sync.Map // jobID → *RemoteJob

	// Events that arrived for a job not yet registered. The server acks
	// a submission before streaming events, but the read loop can still
	// process an event before Submit stores the RemoteJob.
	orphanMu sync.Mutex
	orphans  map[string][]JobEvent
}

// Dial connects to a PWP server and authenticates.
func Dial(url string, opts ...ClientOption) (*Client, error) {
	return DialContext(context.Background(), url, opts...)
}

// DialContext connects to a PWP server with a context.
func DialContext(ctx context.Context, url string, opts ...ClientOption) (*Client, error) {
	c := &Client{
		url:        url,
		format:     CodecNameJSON,
		logger:     slog.Default(),
		maxRetries: 5,
		backoff:    backoff.NewExponential(time.Second, 30*time.Second),
		orphans:    make(map[string][]JobEvent),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.codec = GetCodec(c.format)

	if err := c.connect(ctx); err != nil {
		return nil, fmt.Errorf("pwp: dial: %w", err)
	}

	go c.readLoop()

	return c, nil
}

// connect establishes the WebSocket connection and runs the auth
// handshake. The handshake is JSON in both directions; the negotiated
// codec applies afterwards.
func (c *Client) connect(ctx context.Context) error {
	conn, _, _, err := ws.Dial(ctx, c.url)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}

	authData, marshalErr := json.Marshal(AuthRequest{
		Token:  c.token,
		Format: c.format,
	})
	if marshalErr != nil {
		_ = conn.Close()
		return fmt.Errorf("marshal auth request: %w", marshalErr)
	}
	authFrame := &Frame{
		ID:        GenerateFrameID(),
		Type:      FrameRequest,
		Method:    MethodAuth,
		Token:     c.token,
		Data:      authData,
		Timestamp: time.Now().UTC(),
	}
	raw, marshalErr := json.Marshal(authFrame)
	if marshalErr != nil {
		_ = conn.Close()
		return fmt.Errorf("marshal auth frame: %w", marshalErr)
	}
	if writeErr := wsutil.WriteClientText(conn, raw); writeErr != nil {
		_ = conn.Close()
		return fmt.Errorf("write auth frame: %w", writeErr)
	}

	// Read the auth response directly; readLoop hasn't started yet.
	type readResult struct {
		resp *Frame
		err  error
	}
	resultCh := make(chan readResult, 1)
	go func() {
		data, readErr := wsutil.ReadServerText(conn)
		if readErr != nil {
			resultCh <- readResult{err: fmt.Errorf("read auth response: %w", readErr)}
			return
		}
		var frame Frame
		if unmarshalErr := json.Unmarshal(data, &frame); unmarshalErr != nil {
			resultCh <- readResult{err: fmt.Errorf("unmarshal auth response: %w", unmarshalErr)}
			return
		}
		resultCh <- readResult{resp: &frame}
	}()

	select {
	case result := <-resultCh:
		if result.err != nil {
			_ = conn.Close()
			return result.err
		}
		resp := result.resp
		if resp.Type == FrameErr {
			_ = conn.Close()
			msg := "unknown error"
			if resp.Error != nil {
				msg = resp.Error.Message
			}
			return fmt.Errorf("auth failed: %s", msg)
		}
		var authResp AuthResponse
		if len(resp.Data) > 0 {
			if unmarshalErr := json.Unmarshal(resp.Data, &authResp); unmarshalErr != nil {
				c.logger.Warn("failed to unmarshal auth response", slog.String("error", unmarshalErr.Error()))
			}
		}
		codec := GetCodec(authResp.Format)
		// The swap happens under writeMu: a reconnect must not replace the
		// connection out from under a concurrent writeFrame.
		c.writeMu.Lock()
		c.conn = conn
		c.codec = codec
		c.sessionID = authResp.SessionID
		c.writeMu.Unlock()
		c.logger.Info("pwp client connected",
			slog.String("session_id", authResp.SessionID),
			slog.String("format", codec.Name()),
		)
		return nil
	case <-ctx.Done():
		_ = conn.Close()
		return ctx.Err()
	case <-time.After(10 * time.Second):
		_ = conn.Close()
		return fmt.Errorf("auth timeout")
	}
}

// readLoop reads frames from the WebSocket and routes them.
func (c *Client) readLoop() {
	for {
		if c.closed.Load() {
			return
		}

		data, op, err := wsutil.ReadServerData(c.conn)
		if err != nil {
			if c.closed.Load() {
				return
			}
			c.logger.Warn("pwp client read error", slog.String("error", err.Error()))
			c.failInFlight()
			if c.reconnect {
				c.tryReconnect()
			}
			return
		}
		if op != ws.OpText && op != ws.OpBinary {
			continue
		}

		frame, decErr := c.codec.Decode(data)
		if decErr != nil {
			c.logger.Warn("pwp client: invalid frame", slog.String("error", decErr.Error()))
			continue
		}

		switch frame.Type {
		case FrameResponse, FrameErr:
			if val, ok := c.pending.Load(frame.CorrelID); ok {
				ch := val.(chan *Frame) //nolint:errcheck // pending map always stores chan *Frame
				select {
				case ch <- frame:
				default:
				}
			}
		case FrameEvent:
			c.routeEvent(frame)
		case FramePong:
			// Ignore pong frames.
		}
	}
}

// routeEvent resolves or advances the RemoteJob the event belongs to.
// Events for jobs not yet registered are parked until Submit catches up.
func (c *Client) routeEvent(frame *Frame) {
	var evt JobEvent
	if err := json.Unmarshal(frame.Data, &evt); err != nil {
		c.logger.Warn("pwp client: invalid job event", slog.String("error", err.Error()))
		return
	}

	val, ok := c.jobs.Load(frame.Channel)
	if !ok {
		c.orphanMu.Lock()
		c.orphans[frame.Channel] = append(c.orphans[frame.Channel], evt)
		c.orphanMu.Unlock()
		return
	}
	c.applyEvent(val.(*RemoteJob), frame.Channel, evt) //nolint:errcheck // jobs map always stores *RemoteJob
}

func (c *Client) applyEvent(job *RemoteJob, channel string, evt JobEvent) {
	switch evt.Type {
	case EventProgress:
		job.notifyProgress(evt.Phase)
	case EventResult:
		c.jobs.Delete(channel)
		job.resolve(evt.Proof)
	case EventFailure:
		c.jobs.Delete(channel)
		job.reject(categoryError(evt.Category, evt.Reason))
	}
}

// failInFlight rejects all watched jobs and pending requests after the
// connection broke. Their outcomes are unknowable on this connection.
func (c *Client) failInFlight() {
	c.jobs.Range(func(key, val any) bool {
		job := val.(*RemoteJob) //nolint:errcheck // jobs map always stores *RemoteJob
		job.reject(ErrConnClosed)
		c.jobs.Delete(key)
		return true
	})
}

// tryReconnect attempts to reconnect, pacing attempts with the backoff
// strategy.
func (c *Client) tryReconnect() {
	for i := 1; i <= c.maxRetries; i++ {
		delay := c.backoff.Delay(i)
		c.logger.Info("pwp client reconnecting",
			slog.Int("attempt", i),
			slog.Duration("delay", delay),
		)
		time.Sleep(delay)

		if err := c.connect(context.Background()); err != nil {
			c.logger.Warn("pwp client reconnect failed", slog.String("error", err.Error()))
			continue
		}

		c.logger.Info("pwp client reconnected")
		go c.readLoop()
		return
	}
	c.logger.Error("pwp client: max reconnection attempts reached")
}

// Submit sends a payload for proof generation and returns a RemoteJob
// that resolves from streamed events.
func (c *Client) Submit(ctx context.Context, payload []byte) (*RemoteJob, error) {
	resp, err := c.request(ctx, MethodProveSubmit, SubmitRequest{Payload: payload})
	if err != nil {
		return nil, err
	}

	var submitResp SubmitResponse
	if err := json.Unmarshal(resp.Data, &submitResp); err != nil {
		return nil, fmt.Errorf("pwp: unmarshal submit response: %w", err)
	}

	job := newRemoteJob(submitResp.JobID)
	c.jobs.Store(submitResp.JobID, job)

	// Replay events that beat the registration.
	c.orphanMu.Lock()
	parked := c.orphans[submitResp.JobID]
	delete(c.orphans, submitResp.JobID)
	c.orphanMu.Unlock()
	for _, evt := range parked {
		c.applyEvent(job, submitResp.JobID, evt)
	}

	return job, nil
}

// Cancel withdraws a queued job on the server.
func (c *Client) Cancel(ctx context.Context, jobID string) error {
	_, err := c.request(ctx, MethodProveCancel, CancelRequest{JobID: jobID})
	return err
}

// Stats fetches the server pool's snapshot.
func (c *Client) Stats(ctx context.Context) (*StatsResponse, error) {
	resp, err := c.request(ctx, MethodPoolStats, nil)
	if err != nil {
		return nil, err
	}
	var stats StatsResponse
	if err := json.Unmarshal(resp.Data, &stats); err != nil {
		return nil, fmt.Errorf("pwp: unmarshal stats response: %w", err)
	}
	return &stats, nil
}

// request sends a request frame and waits for the correlated response.
func (c *Client) request(ctx context.Context, method string, data any) (*Frame, error) {
	frame := &Frame{
		ID:        GenerateFrameID(),
		Type:      FrameRequest,
		Method:    method,
		Timestamp: time.Now().UTC(),
	}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("pwp: marshal request data: %w", err)
		}
		frame.Data = raw
	}

	respCh := make(chan *Frame, 1)
	c.pending.Store(frame.ID, respCh)
	defer c.pending.Delete(frame.ID)

	if err := c.writeFrame(frame); err != nil {
		return nil, err
	}

	select {
	case resp := <-respCh:
		if resp.Type == FrameErr {
			detail := &ServerError{Code: ErrCodeInternal, Message: "unknown error"}
			if resp.Error != nil {
				detail.Code = resp.Error.Code
				detail.Message = resp.Error.Message
			}
			return nil, detail
		}
		return resp, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// writeFrame encodes and sends a frame over the WebSocket.
func (c *Client) writeFrame(frame *Frame) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	data, err := c.codec.Encode(frame)
	if err != nil {
		return fmt.Errorf("pwp: marshal frame: %w", err)
	}
	if c.codec.Name() == CodecNameJSON {
		return wsutil.WriteClientText(c.conn, data)
	}
	return wsutil.WriteClientBinary(c.conn, data)
}

// SessionID returns the session ID assigned by the server. A reconnect
// replaces it.
func (c *Client) SessionID() string {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.sessionID
}

// Close closes the client connection. Unresolved jobs reject with
// ErrConnClosed.
func (c *Client) Close() error {
	if c.closed.Swap(true) {
		return nil // already closed
	}

	c.failInFlight()

	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
