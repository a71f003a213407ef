package solana

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// fakeNode is a websocket endpoint answering logsSubscribe with sequential
// subscription ids. Each accepted connection is handed to conns.
type fakeNode struct {
	t        *testing.T
	server   *httptest.Server
	conns    chan *nodeConn
	rejectID bool
}

type nodeConn struct {
	conn     *websocket.Conn
	mu       sync.Mutex
	requests chan wsRequest
}

func (c *nodeConn) send(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(v)
}

func (c *nodeConn) notify(sub int64, slot int64, sig string, logs ...string) error {
	return c.send(map[string]interface{}{
		"jsonrpc": "2.0",
		"method":  "logsNotification",
		"params": map[string]interface{}{
			"subscription": sub,
			"result": map[string]interface{}{
				"context": map[string]interface{}{"slot": slot},
				"value":   map[string]interface{}{"signature": sig, "logs": logs, "err": nil},
			},
		},
	})
}

func newFakeNode(t *testing.T) *fakeNode {
	t.Helper()
	n := &fakeNode{t: t, conns: make(chan *nodeConn, 4)}
	var nextSub int64 = 100
	var subMu sync.Mutex

	n.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		nc := &nodeConn{conn: conn, requests: make(chan wsRequest, 16)}
		n.conns <- nc
		defer conn.Close()

		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var req wsRequest
			if err := json.Unmarshal(msg, &req); err != nil {
				t.Errorf("unmarshal request: %v", err)
				return
			}
			nc.requests <- req

			switch {
			case req.Method == "logsSubscribe" && n.rejectID:
				_ = nc.send(map[string]interface{}{
					"jsonrpc": "2.0", "id": req.ID,
					"error": map[string]interface{}{"code": -32602, "message": "Invalid params"},
				})
			case req.Method == "logsSubscribe":
				subMu.Lock()
				nextSub++
				id := nextSub
				subMu.Unlock()
				_ = nc.send(map[string]interface{}{"jsonrpc": "2.0", "id": req.ID, "result": id})
			case req.Method == "logsUnsubscribe":
				_ = nc.send(map[string]interface{}{"jsonrpc": "2.0", "id": req.ID, "result": true})
			}
		}
	}))
	t.Cleanup(n.server.Close)
	return n
}

func (n *fakeNode) url() string {
	return "ws" + strings.TrimPrefix(n.server.URL, "http")
}

func (n *fakeNode) nextConn(t *testing.T) *nodeConn {
	t.Helper()
	select {
	case c := <-n.conns:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("no connection")
		return nil
	}
}

func nextRequest(t *testing.T, c *nodeConn) wsRequest {
	t.Helper()
	select {
	case r := <-c.requests:
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("no request")
		return wsRequest{}
	}
}

func receive(t *testing.T, ch <-chan LogNotification) LogNotification {
	t.Helper()
	select {
	case n, ok := <-ch:
		if !ok {
			t.Fatal("channel closed")
		}
		return n
	case <-time.After(2 * time.Second):
		t.Fatal("no notification")
		return LogNotification{}
	}
}

func TestLogsClient_SubscribeLogs(t *testing.T) {
	node := newFakeNode(t)
	ctx := context.Background()

	client, err := NewLogsClient(ctx, node.url())
	if err != nil {
		t.Fatalf("NewLogsClient: %v", err)
	}
	defer client.Close()
	conn := node.nextConn(t)

	mention := BridgeProgramID.String()
	ch, err := client.SubscribeLogs(ctx, LogsFilter{Mentions: []string{mention}})
	if err != nil {
		t.Fatalf("SubscribeLogs: %v", err)
	}

	req := nextRequest(t, conn)
	if req.Method != "logsSubscribe" {
		t.Fatalf("expected logsSubscribe, got %s", req.Method)
	}
	params, _ := json.Marshal(req.Params)
	want := `[{"mentions":["` + mention + `"]},{"commitment":"confirmed"}]`
	if string(params) != want {
		t.Errorf("params = %s, want %s", params, want)
	}

	if err := conn.notify(101, 77, "sig-1", "Program log: hi"); err != nil {
		t.Fatalf("notify: %v", err)
	}
	n := receive(t, ch)
	if n.Signature != "sig-1" || n.Slot != 77 || len(n.Logs) != 1 || n.Err != nil {
		t.Errorf("unexpected notification %+v", n)
	}
}

func TestLogsClient_SubscribeRejected(t *testing.T) {
	node := newFakeNode(t)
	node.rejectID = true

	client, err := NewLogsClient(context.Background(), node.url())
	if err != nil {
		t.Fatalf("NewLogsClient: %v", err)
	}
	defer client.Close()

	_, err = client.SubscribeLogs(context.Background(), LogsFilter{})
	var rpcErr *RPCError
	if !errors.As(err, &rpcErr) || rpcErr.Code != -32602 {
		t.Fatalf("expected RPCError -32602, got %v", err)
	}
}

func TestLogsClient_SingleMention(t *testing.T) {
	node := newFakeNode(t)
	client, err := NewLogsClient(context.Background(), node.url())
	if err != nil {
		t.Fatalf("NewLogsClient: %v", err)
	}
	defer client.Close()

	_, err = client.SubscribeLogs(context.Background(), LogsFilter{Mentions: []string{"a", "b"}})
	if err == nil {
		t.Fatal("expected error for two mentions")
	}
}

func TestLogsClient_ContextCancelUnsubscribes(t *testing.T) {
	node := newFakeNode(t)
	client, err := NewLogsClient(context.Background(), node.url())
	if err != nil {
		t.Fatalf("NewLogsClient: %v", err)
	}
	defer client.Close()
	conn := node.nextConn(t)

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := client.SubscribeLogs(ctx, LogsFilter{})
	if err != nil {
		t.Fatalf("SubscribeLogs: %v", err)
	}
	nextRequest(t, conn)

	cancel()
	req := nextRequest(t, conn)
	if req.Method != "logsUnsubscribe" {
		t.Fatalf("expected logsUnsubscribe, got %s", req.Method)
	}

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected closed channel")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("channel not closed")
	}
}

func TestLogsClient_ReconnectResubscribes(t *testing.T) {
	node := newFakeNode(t)
	ctx := context.Background()

	client, err := NewLogsClient(ctx, node.url(), WithReconnectDelay(10*time.Millisecond, 50*time.Millisecond))
	if err != nil {
		t.Fatalf("NewLogsClient: %v", err)
	}
	defer client.Close()

	first := node.nextConn(t)
	ch, err := client.SubscribeLogs(ctx, LogsFilter{})
	if err != nil {
		t.Fatalf("SubscribeLogs: %v", err)
	}
	nextRequest(t, first)

	// Drop the connection; the client must dial again and resubscribe.
	first.conn.Close()

	second := node.nextConn(t)
	if req := nextRequest(t, second); req.Method != "logsSubscribe" {
		t.Fatalf("expected resubscribe, got %s", req.Method)
	}

	// The resubscription got id 102; the old stream keeps receiving.
	deadline := time.Now().Add(2 * time.Second)
	for {
		client.subsMu.RLock()
		_, ok := client.subs[102]
		client.subsMu.RUnlock()
		if ok {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("subscription not remapped")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if err := second.notify(102, 5, "sig-after"); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if n := receive(t, ch); n.Signature != "sig-after" {
		t.Errorf("got %s, want sig-after", n.Signature)
	}
}

func TestLogsClient_CloseClosesChannels(t *testing.T) {
	node := newFakeNode(t)
	client, err := NewLogsClient(context.Background(), node.url())
	if err != nil {
		t.Fatalf("NewLogsClient: %v", err)
	}

	ch, err := client.SubscribeLogs(context.Background(), LogsFilter{})
	if err != nil {
		t.Fatalf("SubscribeLogs: %v", err)
	}

	if err := client.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, ok := <-ch; ok {
		t.Fatal("expected closed channel")
	}

	if _, err := client.SubscribeLogs(context.Background(), LogsFilter{}); !errors.Is(err, ErrClientClosed) {
		t.Fatalf("expected ErrClientClosed, got %v", err)
	}
}
