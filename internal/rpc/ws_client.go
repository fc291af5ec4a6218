package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"nodemonitor/internal/entity"
	"nodemonitor/internal/pkg/apperrors"
)

// Compile-time check
var _ Client = (*WSClient)(nil)

const (
	defaultHandshakeTimeout = 10 * time.Second
	defaultCallTimeout      = 15 * time.Second
	redialBaseDelay         = time.Second
	redialMaxDelay          = 30 * time.Second
	ctlBuffer               = 8
)

// jsonRPCRequest is the outgoing JSON-RPC 2.0 envelope.
type jsonRPCRequest struct {
	Jsonrpc string      `json:"jsonrpc"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
	ID      uint64      `json:"id"`
}

// jsonRPCResponse defines the basic structure for a JSON-RPC response.
type jsonRPCResponse struct {
	ID      uint64          `json:"id"`
	Jsonrpc string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *jsonRPCError   `json:"error,omitempty"`
}

// jsonRPCError defines the structure for a JSON-RPC error.
type jsonRPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func (e *jsonRPCError) Error() string {
	return fmt.Sprintf("json-rpc error %d: %s", e.Code, e.Message)
}

// WSClient is a websocket JSON-RPC client with built-in session
// management. After the first Connect it redials dropped sessions on
// its own, surfacing transitions as Ctl events; Disconnect and
// TriggerAbort disarm redialing until the next Connect.
type WSClient struct {
	url         string
	dialer      websocket.Dialer
	logger      *zap.Logger
	callTimeout time.Duration

	nextID atomic.Uint64

	mu      sync.Mutex
	conn    *websocket.Conn
	pending map[uint64]chan *jsonRPCResponse
	manage  bool

	ctl chan Ctl
}

// NewWSClient creates a websocket JSON-RPC client for the given
// address. No connection is attempted until Connect is called.
func NewWSClient(url string, logger *zap.Logger) *WSClient {
	return &WSClient{
		url: url,
		dialer: websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: defaultHandshakeTimeout,
		},
		logger:      logger.Named("WSClient"),
		callTimeout: defaultCallTimeout,
		pending:     make(map[uint64]chan *jsonRPCResponse),
		ctl:         make(chan Ctl, ctlBuffer),
	}
}

// Connect establishes the websocket session and arms redial
// management.
func (c *WSClient) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.conn != nil {
		c.manage = true
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("%w: dial %s failed: %v", apperrors.ErrTransportConnect, c.url, err)
	}

	c.mu.Lock()
	c.manage = true
	c.mu.Unlock()

	c.adopt(conn)
	return nil
}

// Disconnect performs a closing handshake and disarms redial
// management.
func (c *WSClient) Disconnect(ctx context.Context) error {
	c.mu.Lock()
	c.manage = false
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		return nil
	}

	deadline := time.Now().Add(defaultHandshakeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	err := conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		deadline,
	)
	if cerr := conn.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("%w: graceful close of %s failed: %v", apperrors.ErrExternalServiceFailure, c.url, err)
	}
	return nil
}

// TriggerAbort drops the transport without a closing handshake.
func (c *WSClient) TriggerAbort() error {
	c.mu.Lock()
	c.manage = false
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		return nil
	}
	return conn.Close()
}

// Ping performs a minimal liveness round trip.
func (c *WSClient) Ping(ctx context.Context) error {
	return c.call(ctx, "ping", nil, nil)
}

// GetCaps queries the node's identity, version and limits.
func (c *WSClient) GetCaps(ctx context.Context) (*entity.Caps, error) {
	var caps entity.Caps
	if err := c.call(ctx, "getCapabilities", nil, &caps); err != nil {
		return nil, err
	}
	return &caps, nil
}

// GetSyncStatus reports whether the node considers itself synced.
func (c *WSClient) GetSyncStatus(ctx context.Context) (bool, error) {
	var result struct {
		Synced bool `json:"synced"`
	}
	if err := c.call(ctx, "getSyncStatus", nil, &result); err != nil {
		return false, err
	}
	return result.Synced, nil
}

// GetConnections queries the node's active client and peer counts.
func (c *WSClient) GetConnections(ctx context.Context) (entity.ActiveConnections, error) {
	var result entity.ActiveConnections
	if err := c.call(ctx, "getActiveConnections", nil, &result); err != nil {
		return entity.ActiveConnections{}, err
	}
	return result, nil
}

// Control returns the stream of connect/disconnect events.
func (c *WSClient) Control() <-chan Ctl {
	return c.ctl
}

// adopt installs a freshly dialed connection and starts its read loop.
func (c *WSClient) adopt(conn *websocket.Conn) {
	c.mu.Lock()
	if !c.manage || c.conn != nil {
		c.mu.Unlock()
		_ = conn.Close()
		return
	}
	c.conn = conn
	c.mu.Unlock()

	c.emit(CtlConnect)
	go c.readLoop(conn)
}

func (c *WSClient) readLoop(conn *websocket.Conn) {
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			c.sessionLost(conn, err)
			return
		}

		var resp jsonRPCResponse
		if err := json.Unmarshal(message, &resp); err != nil {
			c.logger.Debug("Discarding unparseable frame",
				zap.String("url", c.url), zap.Error(err))
			continue
		}
		c.dispatch(&resp)
	}
}

// sessionLost tears down session state after a read failure and, if
// management is still armed, schedules a redial.
func (c *WSClient) sessionLost(conn *websocket.Conn, err error) {
	c.mu.Lock()
	if c.conn != conn {
		// A stale read loop lost a race with abort/redial.
		c.mu.Unlock()
		return
	}
	c.conn = nil
	for id, ch := range c.pending {
		delete(c.pending, id)
		close(ch)
	}
	manage := c.manage
	c.mu.Unlock()

	c.logger.Debug("Session lost", zap.String("url", c.url), zap.Error(err))
	c.emit(CtlDisconnect)

	if manage {
		go c.redialLoop()
	}
}

func (c *WSClient) redialLoop() {
	delay := redialBaseDelay
	for {
		c.mu.Lock()
		stop := !c.manage || c.conn != nil
		c.mu.Unlock()
		if stop {
			return
		}

		conn, _, err := c.dialer.Dial(c.url, nil)
		if err == nil {
			c.adopt(conn)
			return
		}

		c.logger.Debug("Redial failed",
			zap.String("url", c.url),
			zap.Duration("retryIn", delay),
			zap.Error(err),
		)
		time.Sleep(delay)
		delay *= 2
		if delay > redialMaxDelay {
			delay = redialMaxDelay
		}
	}
}

func (c *WSClient) dispatch(resp *jsonRPCResponse) {
	c.mu.Lock()
	ch, ok := c.pending[resp.ID]
	if ok {
		delete(c.pending, resp.ID)
	}
	c.mu.Unlock()

	if ok {
		ch <- resp
	} else {
		c.logger.Debug("Dropping response with unknown id",
			zap.String("url", c.url), zap.Uint64("id", resp.ID))
	}
}

func (c *WSClient) dropPending(id uint64) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

func (c *WSClient) emit(ev Ctl) {
	select {
	case c.ctl <- ev:
	default:
		c.logger.Warn("Control event dropped, consumer is not keeping up",
			zap.String("url", c.url), zap.Stringer("event", ev))
	}
}

// call performs one JSON-RPC round trip over the active session. The
// round trip is always bounded: a node that keeps the session open but
// never answers must not wedge the caller, whose context typically has
// no deadline of its own.
func (c *WSClient) call(ctx context.Context, method string, params, result interface{}) error {
	id := c.nextID.Add(1)
	req := jsonRPCRequest{Jsonrpc: "2.0", Method: method, Params: params, ID: id}

	timeout := c.callTimeout
	if timeout <= 0 {
		timeout = defaultCallTimeout
	}
	deadline := time.Now().Add(timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	c.mu.Lock()
	conn := c.conn
	if conn == nil {
		c.mu.Unlock()
		return fmt.Errorf("%w: no active session to %s", apperrors.ErrExternalServiceFailure, c.url)
	}
	ch := make(chan *jsonRPCResponse, 1)
	c.pending[id] = ch
	_ = conn.SetWriteDeadline(deadline)
	err := conn.WriteJSON(req)
	c.mu.Unlock()

	if err != nil {
		c.dropPending(id)
		return fmt.Errorf("%w: write %s to %s failed: %v", apperrors.ErrExternalServiceFailure, method, c.url, err)
	}

	timer := time.NewTimer(time.Until(deadline))
	defer timer.Stop()

	select {
	case resp, ok := <-ch:
		if !ok {
			return fmt.Errorf("%w: session to %s closed mid-call", apperrors.ErrExternalServiceFailure, c.url)
		}
		if resp.Error != nil {
			return fmt.Errorf("%w: %s returned %v", apperrors.ErrExternalServiceFailure, c.url, resp.Error)
		}
		if resp.Jsonrpc != "2.0" || resp.Result == nil {
			return fmt.Errorf("%w: %s returned invalid JSON-RPC structure", apperrors.ErrExternalServiceFailure, c.url)
		}
		if result != nil {
			if err := json.Unmarshal(resp.Result, result); err != nil {
				return fmt.Errorf("%w: %s returned invalid JSON result: %v", apperrors.ErrExternalServiceFailure, c.url, err)
			}
		}
		return nil

	case <-timer.C:
		c.dropPending(id)
		return fmt.Errorf("%w: call %s on %s received no response within %v", apperrors.ErrTimeout, method, c.url, timeout)

	case <-ctx.Done():
		c.dropPending(id)
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%w: call %s on %s timed out: %v", apperrors.ErrTimeout, method, c.url, ctx.Err())
		}
		return fmt.Errorf("%w: call %s on %s canceled: %v", apperrors.ErrExternalServiceFailure, method, c.url, ctx.Err())
	}
}
