package solana

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// ErrClientClosed is returned by a closed LogsClient.
var ErrClientClosed = errors.New("websocket client closed")

// wsConfig configures LogsClient behavior.
type wsConfig struct {
	reconnectDelay    time.Duration
	maxReconnectDelay time.Duration
	pingInterval      time.Duration
	readTimeout       time.Duration
	writeTimeout      time.Duration
	subscribeTimeout  time.Duration
	bufferSize        int
	commitment        string
	logger            *zap.Logger
}

// WSOption configures a LogsClient.
type WSOption func(*wsConfig)

// WithReconnectDelay sets the initial and maximum reconnect backoff.
func WithReconnectDelay(initial, max time.Duration) WSOption {
	return func(c *wsConfig) {
		c.reconnectDelay = initial
		c.maxReconnectDelay = max
	}
}

// WithPingInterval sets the keepalive ping interval.
func WithPingInterval(d time.Duration) WSOption {
	return func(c *wsConfig) { c.pingInterval = d }
}

// WithReadTimeout sets how long a connection may stay silent.
func WithReadTimeout(d time.Duration) WSOption {
	return func(c *wsConfig) { c.readTimeout = d }
}

// WithSubscribeTimeout bounds the wait for a subscription id.
func WithSubscribeTimeout(d time.Duration) WSOption {
	return func(c *wsConfig) { c.subscribeTimeout = d }
}

// WithBufferSize sets each subscription's channel capacity.
func WithBufferSize(n int) WSOption {
	return func(c *wsConfig) { c.bufferSize = n }
}

// WithWSCommitment sets the commitment level notifications are sent at.
func WithWSCommitment(commitment string) WSOption {
	return func(c *wsConfig) { c.commitment = commitment }
}

// WithWSLogger sets the logger for connection diagnostics.
func WithWSLogger(logger *zap.Logger) WSOption {
	return func(c *wsConfig) { c.logger = logger }
}

// subscription is one logsSubscribe stream. Its id changes when the
// connection is re-established.
type subscription struct {
	filter LogsFilter
	ch     chan LogNotification
	done   chan struct{}
	once   sync.Once
	mu     sync.RWMutex // held by senders; ch is closed under the write lock
}

func (s *subscription) send(n LogNotification, stop <-chan struct{}) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	select {
	case <-s.done:
		return
	default:
	}
	// Block rather than drop; the buffer absorbs bursts.
	select {
	case s.ch <- n:
	case <-s.done:
	case <-stop:
	}
}

func (s *subscription) close() {
	s.once.Do(func() {
		close(s.done)
		s.mu.Lock()
		close(s.ch)
		s.mu.Unlock()
	})
}

type subscribeResult struct {
	id  int64
	err error
}

// LogsClient implements WSClient over a Solana websocket endpoint using
// gorilla/websocket. It reconnects with exponential backoff and
// resubscribes every live stream.
type LogsClient struct {
	endpoint string
	cfg      wsConfig
	logger   *zap.Logger

	conn      *websocket.Conn
	connMu    sync.Mutex
	closed    atomic.Bool
	requestID atomic.Uint64

	subs   map[int64]*subscription // by server subscription id
	subsMu sync.RWMutex

	pending   map[uint64]chan subscribeResult // by request id
	pendingMu sync.Mutex

	reconnecting atomic.Bool
	done         chan struct{}
	wg           sync.WaitGroup
}

var _ WSClient = (*LogsClient)(nil)

// NewLogsClient connects to endpoint.
func NewLogsClient(ctx context.Context, endpoint string, opts ...WSOption) (*LogsClient, error) {
	cfg := wsConfig{
		reconnectDelay:    1 * time.Second,
		maxReconnectDelay: 30 * time.Second,
		pingInterval:      30 * time.Second,
		readTimeout:       60 * time.Second,
		writeTimeout:      10 * time.Second,
		subscribeTimeout:  30 * time.Second,
		bufferSize:        10000,
		commitment:        DefaultCommitment,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	logger := cfg.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &LogsClient{
		endpoint: endpoint,
		cfg:      cfg,
		logger:   logger.Named("ws"),
		subs:     make(map[int64]*subscription),
		pending:  make(map[uint64]chan subscribeResult),
		done:     make(chan struct{}),
	}

	if err := c.connect(ctx); err != nil {
		return nil, err
	}

	c.wg.Add(2)
	go c.readLoop()
	go c.pingLoop()

	return c, nil
}

func (c *LogsClient) connect(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, c.endpoint, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}

	c.connMu.Lock()
	c.conn = conn
	c.connMu.Unlock()
	return nil
}

func (c *LogsClient) write(v interface{}) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	if c.conn == nil {
		return errors.New("not connected")
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.writeTimeout))
	return c.conn.WriteJSON(v)
}

// SubscribeLogs subscribes to the logs of transactions mentioning the
// filter's single address. The channel is closed when ctx is done or the
// client is closed.
func (c *LogsClient) SubscribeLogs(ctx context.Context, filter LogsFilter) (<-chan LogNotification, error) {
	if len(filter.Mentions) > 1 {
		return nil, fmt.Errorf("logsSubscribe accepts one mention, got %d", len(filter.Mentions))
	}

	id, err := c.subscribe(ctx, filter)
	if err != nil {
		return nil, err
	}

	sub := &subscription{
		filter: filter,
		ch:     make(chan LogNotification, c.cfg.bufferSize),
		done:   make(chan struct{}),
	}
	c.subsMu.Lock()
	c.subs[id] = sub
	c.subsMu.Unlock()
	c.logger.Debug("subscribed", zap.Int64("subscription", id), zap.Strings("mentions", filter.Mentions))

	go func() {
		select {
		case <-ctx.Done():
			c.unsubscribe(sub)
		case <-sub.done:
		}
	}()

	return sub.ch, nil
}

// subscribe sends logsSubscribe and waits for the server's subscription id.
func (c *LogsClient) subscribe(ctx context.Context, filter LogsFilter) (int64, error) {
	if c.closed.Load() {
		return 0, ErrClientClosed
	}

	var mentions interface{} = "all"
	if len(filter.Mentions) > 0 {
		mentions = map[string][]string{"mentions": filter.Mentions}
	}

	reqID := c.requestID.Add(1)
	result := make(chan subscribeResult, 1)
	c.pendingMu.Lock()
	c.pending[reqID] = result
	c.pendingMu.Unlock()
	defer func() {
		c.pendingMu.Lock()
		delete(c.pending, reqID)
		c.pendingMu.Unlock()
	}()

	err := c.write(wsRequest{
		JSONRPC: "2.0",
		ID:      reqID,
		Method:  "logsSubscribe",
		Params:  []interface{}{mentions, map[string]string{"commitment": c.cfg.commitment}},
	})
	if err != nil {
		return 0, fmt.Errorf("write subscribe: %w", err)
	}

	timer := time.NewTimer(c.cfg.subscribeTimeout)
	defer timer.Stop()

	select {
	case r := <-result:
		return r.id, r.err
	case <-timer.C:
		return 0, fmt.Errorf("subscription timeout after %s", c.cfg.subscribeTimeout)
	case <-c.done:
		return 0, ErrClientClosed
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// unsubscribe drops sub locally and tells the server.
func (c *LogsClient) unsubscribe(sub *subscription) {
	var id int64
	found := false
	c.subsMu.Lock()
	for k, s := range c.subs {
		if s == sub {
			id, found = k, true
			delete(c.subs, k)
			break
		}
	}
	c.subsMu.Unlock()
	sub.close()

	if !found || c.closed.Load() {
		return
	}
	err := c.write(wsRequest{
		JSONRPC: "2.0",
		ID:      c.requestID.Add(1),
		Method:  "logsUnsubscribe",
		Params:  []interface{}{id},
	})
	if err != nil {
		c.logger.Debug("unsubscribe", zap.Int64("subscription", id), zap.Error(err))
	}
}

// Close closes the connection and every subscription channel.
func (c *LogsClient) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	close(c.done)

	c.connMu.Lock()
	if c.conn != nil {
		_ = c.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		_ = c.conn.Close()
	}
	c.connMu.Unlock()

	c.wg.Wait()

	c.subsMu.Lock()
	for id, sub := range c.subs {
		sub.close()
		delete(c.subs, id)
	}
	c.subsMu.Unlock()
	return nil
}

// readLoop reads messages and dispatches them until the client closes.
func (c *LogsClient) readLoop() {
	defer c.wg.Done()

	delay := c.cfg.reconnectDelay
	for !c.closed.Load() {
		c.connMu.Lock()
		conn := c.conn
		c.connMu.Unlock()

		if conn == nil {
			if !c.sleep(100 * time.Millisecond) {
				return
			}
			continue
		}

		_ = conn.SetReadDeadline(time.Now().Add(c.cfg.readTimeout))
		_, message, err := conn.ReadMessage()
		if err != nil {
			if c.closed.Load() {
				return
			}
			c.logger.Warn("websocket read failed", zap.Error(err), zap.Duration("reconnect_in", delay))
			if !c.reconnecting.Swap(true) {
				go c.reconnect(conn, delay)
			}
			delay *= 2
			if delay > c.cfg.maxReconnectDelay {
				delay = c.cfg.maxReconnectDelay
			}
			if !c.sleep(100 * time.Millisecond) {
				return
			}
			continue
		}

		delay = c.cfg.reconnectDelay
		c.handleMessage(message)
	}
}

func (c *LogsClient) sleep(d time.Duration) bool {
	select {
	case <-c.done:
		return false
	case <-time.After(d):
		return true
	}
}

// reconnect replaces the broken connection and resubscribes every stream.
func (c *LogsClient) reconnect(broken *websocket.Conn, delay time.Duration) {
	defer c.reconnecting.Store(false)

	if !c.sleep(delay) {
		return
	}

	c.connMu.Lock()
	if c.conn == broken {
		_ = c.conn.Close()
		c.conn = nil
	}
	c.connMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := c.connect(ctx); err != nil {
		c.logger.Warn("reconnect failed", zap.Error(err))
		return
	}
	c.logger.Info("reconnected", zap.String("endpoint", c.endpoint))

	c.subsMu.RLock()
	old := make(map[int64]*subscription, len(c.subs))
	for id, sub := range c.subs {
		old[id] = sub
	}
	c.subsMu.RUnlock()

	for oldID, sub := range old {
		newID, err := c.subscribe(ctx, sub.filter)
		if err != nil {
			c.logger.Warn("resubscribe failed", zap.Int64("subscription", oldID), zap.Error(err))
			continue
		}
		c.subsMu.Lock()
		if c.subs[oldID] == sub {
			delete(c.subs, oldID)
			c.subs[newID] = sub
		}
		c.subsMu.Unlock()
	}
}

func (c *LogsClient) handleMessage(message []byte) {
	var msg wsMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		c.logger.Debug("unparseable message", zap.Error(err))
		return
	}

	switch {
	case msg.Method == "logsNotification" && msg.Params != nil:
		c.handleLogsNotification(msg.Params)
	case msg.ID != 0:
		c.pendingMu.Lock()
		ch, ok := c.pending[msg.ID]
		c.pendingMu.Unlock()
		if !ok {
			return // unsubscribe acknowledgements
		}
		var r subscribeResult
		if msg.Error != nil {
			r.err = &RPCError{Code: msg.Error.Code, Message: msg.Error.Message}
		} else if err := json.Unmarshal(msg.Result, &r.id); err != nil {
			r.err = fmt.Errorf("decode subscription id: %w", err)
		}
		select {
		case ch <- r:
		default:
		}
	}
}

func (c *LogsClient) handleLogsNotification(params *wsNotificationParams) {
	c.subsMu.RLock()
	sub, ok := c.subs[params.Subscription]
	c.subsMu.RUnlock()
	if !ok {
		return
	}

	value := params.Result.Value
	sub.send(LogNotification{
		Signature: value.Signature,
		Slot:      params.Result.Context.Slot,
		Logs:      value.Logs,
		Err:       value.Err,
	}, c.done)
}

// pingLoop keeps the connection alive.
func (c *LogsClient) pingLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.cfg.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.connMu.Lock()
			if c.conn != nil {
				_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.writeTimeout))
				if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					c.logger.Debug("ping failed", zap.Error(err))
				}
			}
			c.connMu.Unlock()
		}
	}
}

type wsRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params,omitempty"`
}

// wsMessage is any server frame: a response to a request or a notification.
type wsMessage struct {
	ID     uint64          `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	Method string                `json:"method"`
	Params *wsNotificationParams `json:"params"`
}

type wsNotificationParams struct {
	Subscription int64 `json:"subscription"`
	Result       struct {
		Context struct {
			Slot int64 `json:"slot"`
		} `json:"context"`
		Value struct {
			Signature string      `json:"signature"`
			Logs      []string    `json:"logs"`
			Err       interface{} `json:"err"`
		} `json:"value"`
	} `json:"result"`
}
