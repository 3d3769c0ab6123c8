package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alfredjeanlab/synapse/internal/events"
)

// wsReply is the client-side view of a wsMessage.
type wsReply struct {
	Type   string          `json:"type"`
	ID     string          `json:"id"`
	Event  *hubEvent       `json:"event"`
	Result json.RawMessage `json:"result"`
	Error  *wsError        `json:"error"`
	Topics []string        `json:"topics"`
}

func dialWS(t *testing.T, env *testEnv, query string) *websocket.Conn {
	t.Helper()
	ts := httptest.NewServer(env.handler)
	t.Cleanup(ts.Close)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/ws" + query
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	if resp.StatusCode != http.StatusSwitchingProtocols {
		t.Fatalf("expected 101, got %d", resp.StatusCode)
	}
	t.Cleanup(func() { _ = conn.Close() })

	hello := readWS(t, conn)
	if hello.Type != "system" || !strings.Contains(string(hello.Result), "createTab") {
		t.Fatalf("expected system greeting listing methods, got %+v", hello)
	}
	return conn
}

func readWS(t *testing.T, conn *websocket.Conn) wsReply {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg wsReply
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	return msg
}

// readUntil skips messages until one has the wanted type.
func readUntil(t *testing.T, conn *websocket.Conn, typ string) wsReply {
	t.Helper()
	for range 50 {
		if msg := readWS(t, conn); msg.Type == typ {
			return msg
		}
	}
	t.Fatalf("no %q message received", typ)
	return wsReply{}
}

func TestWebSocket_Command(t *testing.T) {
	env := newTestServer(t)
	conn := dialWS(t, env, "?topics=none")

	err := conn.WriteJSON(map[string]any{
		"type":   "command",
		"id":     "1",
		"method": "createTab",
		"params": map[string]string{"url": "https://a.example"},
	})
	if err != nil {
		t.Fatalf("write: %v", err)
	}

	msg := readUntil(t, conn, "result")
	if msg.ID != "1" {
		t.Fatalf("expected reply to request 1, got %q", msg.ID)
	}
	var tab struct {
		ID     string `json:"id"`
		NodeID string `json:"nodeId"`
	}
	if err := json.Unmarshal(msg.Result, &tab); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	if tab.ID == "" || tab.NodeID == "" {
		t.Fatalf("expected a tab with a node, got %s", msg.Result)
	}
}

func TestWebSocket_CommandError(t *testing.T) {
	env := newTestServer(t)
	conn := dialWS(t, env, "?topics=none")

	_ = conn.WriteJSON(map[string]any{"type": "command", "id": "2", "method": "getNode", "params": map[string]string{"nodeId": "nope"}})
	msg := readUntil(t, conn, "error")
	if msg.ID != "2" || msg.Error == nil || msg.Error.Status != http.StatusNotFound {
		t.Fatalf("expected 404 error for request 2, got %+v", msg)
	}

	_ = conn.WriteJSON(map[string]any{"type": "bogus", "id": "3"})
	msg = readUntil(t, conn, "error")
	if msg.ID != "3" || msg.Error.Status != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown type, got %+v", msg)
	}
}

func TestWebSocket_EventsAndSubscribe(t *testing.T) {
	env := newTestServer(t)
	conn := dialWS(t, env, "")

	_ = conn.WriteJSON(map[string]any{"type": "subscribe", "id": "s", "topics": []string{"session.*"}})
	sub := readUntil(t, conn, "subscribed")
	if len(sub.Topics) != 1 || sub.Topics[0] != "session.*" {
		t.Fatalf("unexpected subscribe ack %+v", sub)
	}

	env.hub.broadcast(events.TopicNodeCreated, []byte(`{"id":"n-1"}`))
	env.hub.broadcast(events.TopicSessionCreated, []byte(`{"id":"s-1"}`))

	msg := readUntil(t, conn, "event")
	if msg.Event == nil || msg.Event.Topic != events.TopicSessionCreated {
		t.Fatalf("expected session event, got %+v", msg.Event)
	}
}

func TestWebSocket_Ping(t *testing.T) {
	env := newTestServer(t)
	conn := dialWS(t, env, "?topics=none")

	_ = conn.WriteJSON(map[string]any{"type": "ping", "id": "p"})
	if msg := readUntil(t, conn, "pong"); msg.ID != "p" {
		t.Fatalf("expected pong for p, got %+v", msg)
	}
}

func TestWebSocket_ClosesWithHub(t *testing.T) {
	env := newTestServer(t)
	conn := dialWS(t, env, "")
	_ = env.hub.Close()

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if ne, ok := err.(interface{ Timeout() bool }); ok && ne.Timeout() {
				t.Fatal("connection stayed open after hub closed")
			}
			return
		}
	}
}
