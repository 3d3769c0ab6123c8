package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = wsPongWait * 9 / 10
	wsMaxMessage = 8 << 20 // imports carry whole graphs
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// The UI is a local desktop shell; its origin is a file or app scheme.
	CheckOrigin: func(*http.Request) bool { return true },
}

// wsRequest is a message from a WebSocket client.
//
//	{"type":"subscribe","topics":["graph.>"]}
//	{"type":"command","id":"7","method":"createTab","params":{"url":"..."}}
//	{"type":"ping"}
type wsRequest struct {
	Type   string          `json:"type"`
	ID     string          `json:"id,omitempty"`
	Method string          `json:"method,omitempty"`
	Params json.RawMessage `json:"params,omitempty"`
	Topics []string        `json:"topics,omitempty"`
}

// wsMessage is a message to a WebSocket client: an event, a command result,
// or an error.
type wsMessage struct {
	Type   string    `json:"type"`
	ID     string    `json:"id,omitempty"`
	Event  *hubEvent `json:"event,omitempty"`
	Result any       `json:"result,omitempty"`
	Error  *wsError  `json:"error,omitempty"`
	Topics []string  `json:"topics,omitempty"`
}

type wsError struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
}

// wsConn serializes writes to one connection.
type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *wsConn) send(msg wsMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return c.conn.WriteJSON(msg)
}

func (c *wsConn) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait))
}

// handleWebSocket handles GET /v1/ws. The connection receives every event
// matching its topic filter and may issue any command by name.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	raw, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer raw.Close()
	conn := &wsConn{conn: raw}

	client := s.hub.subscribe(parseTopics(r.URL.Query().Get("topics")))
	defer s.hub.unsubscribe(client)

	raw.SetReadLimit(wsMaxMessage)
	_ = raw.SetReadDeadline(time.Now().Add(wsPongWait))
	raw.SetPongHandler(func(string) error {
		return raw.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	ctx := r.Context()
	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(wsPingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case evt, ok := <-client.ch:
				if !ok {
					_ = raw.Close()
					return
				}
				if err := conn.send(wsMessage{Type: "event", Event: evt}); err != nil {
					return
				}
			case <-ticker.C:
				if err := conn.ping(); err != nil {
					return
				}
			}
		}
	}()

	_ = conn.send(wsMessage{Type: "system", Result: map[string]any{"methods": s.Methods()}})

	for {
		var req wsRequest
		if err := raw.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Debug("websocket read failed", "error", err)
			}
			break
		}

		switch req.Type {
		case "subscribe":
			client.setTopics(req.Topics)
			_ = conn.send(wsMessage{Type: "subscribed", ID: req.ID, Topics: req.Topics})
		case "command":
			out, err := s.call(ctx, req.Method, req.Params)
			msg := wsMessage{Type: "result", ID: req.ID, Result: out}
			if err != nil {
				msg = wsMessage{Type: "error", ID: req.ID, Error: &wsError{Status: httpStatus(err), Message: err.Error()}}
			}
			if err := conn.send(msg); err != nil {
				s.logger.Debug("websocket write failed", "error", err)
			}
		case "ping":
			_ = conn.send(wsMessage{Type: "pong", ID: req.ID})
		default:
			_ = conn.send(wsMessage{Type: "error", ID: req.ID, Error: &wsError{Status: http.StatusBadRequest, Message: "unknown message type"}})
		}
	}

	close(stop)
	<-done
}
