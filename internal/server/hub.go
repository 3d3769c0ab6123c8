package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/alfredjeanlab/synapse/internal/events"
)

const (
	// hubRingSize is the number of recent events kept in memory for
	// Last-Event-ID reconnection support.
	hubRingSize = 1000

	// clientBuffer is the per-subscriber queue length; slow subscribers drop.
	clientBuffer = 64
)

// hubEvent is a single event stored in the ring buffer and sent to clients.
type hubEvent struct {
	ID    uint64          `json:"id"` // monotonically increasing sequence number
	Topic string          `json:"topic"`
	Data  json.RawMessage `json:"data"`
}

// Hub fans engine events out to connected SSE and WebSocket clients. It is an
// events.Publisher and keeps a ring buffer for Last-Event-ID replay.
type Hub struct {
	logger  *slog.Logger
	mu      sync.RWMutex
	clients map[*hubClient]struct{}
	nextID  atomic.Uint64
	closed  bool

	// Ring buffer for replay on reconnection.
	ringMu  sync.RWMutex
	ring    [hubRingSize]hubEvent
	ringPos int // next write position (wraps around)
	ringLen int // number of valid entries (up to hubRingSize)
}

var (
	_ events.Publisher  = (*Hub)(nil)
	_ events.Subscriber = (*Hub)(nil)
)

// hubClient represents a single connected consumer.
type hubClient struct {
	mu     sync.RWMutex
	topics []string       // topic patterns to match (empty = all)
	ch     chan *hubEvent // buffered channel for event delivery
}

// NewHub returns an empty hub.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		logger:  logger,
		clients: make(map[*hubClient]struct{}),
	}
}

// Publish implements events.Publisher.
func (h *Hub) Publish(_ context.Context, topic string, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	h.broadcast(topic, payload)
	return nil
}

// Close disconnects every client.
func (h *Hub) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true
	for c := range h.clients {
		close(c.ch)
		delete(h.clients, c)
	}
	return nil
}

// broadcast sends an event to all connected clients whose topic filters match.
func (h *Hub) broadcast(topic string, payload []byte) {
	evt := &hubEvent{
		ID:    h.nextID.Add(1),
		Topic: topic,
		Data:  payload,
	}

	h.ringMu.Lock()
	h.ring[h.ringPos] = *evt
	h.ringPos = (h.ringPos + 1) % hubRingSize
	if h.ringLen < hubRingSize {
		h.ringLen++
	}
	h.ringMu.Unlock()

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if c.matchesTopic(topic) {
			select {
			case c.ch <- evt:
			default:
				h.logger.Debug("dropping event for slow client", "topic", topic, "id", evt.ID)
			}
		}
	}
}

// subscribe registers a new client. Call unsubscribe when done. The channel
// is closed when the hub closes.
func (h *Hub) subscribe(topics []string) *hubClient {
	c := &hubClient{
		topics: topics,
		ch:     make(chan *hubEvent, clientBuffer),
	}
	h.mu.Lock()
	if h.closed {
		close(c.ch)
	} else {
		h.clients[c] = struct{}{}
	}
	h.mu.Unlock()
	return c
}

// Subscribe implements events.Subscriber for in-process consumers. topic
// may list several comma-separated patterns. The channel closes when cancel
// is called or the hub closes.
func (h *Hub) Subscribe(topic string) (<-chan events.Message, func(), error) {
	c := h.subscribe(parseTopics(topic))
	out := make(chan events.Message, clientBuffer)
	stop := make(chan struct{})
	var once sync.Once

	go func() {
		defer close(out)
		for {
			select {
			case evt, ok := <-c.ch:
				if !ok {
					return
				}
				select {
				case out <- events.Message{Topic: evt.Topic, Data: evt.Data}:
				case <-stop:
					return
				}
			case <-stop:
				return
			}
		}
	}()

	cancel := func() {
		once.Do(func() {
			close(stop)
			h.unsubscribe(c)
		})
	}
	return out, cancel, nil
}

// unsubscribe removes a client from the hub.
func (h *Hub) unsubscribe(c *hubClient) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
}

// clientCount returns the number of connected clients.
func (h *Hub) clientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// eventsSince returns buffered events with ID > lastID, in order.
func (h *Hub) eventsSince(lastID uint64) []*hubEvent {
	h.ringMu.RLock()
	defer h.ringMu.RUnlock()

	if h.ringLen == 0 {
		return nil
	}

	var result []*hubEvent
	start := h.ringPos - h.ringLen
	if start < 0 {
		start += hubRingSize
	}
	for i := range h.ringLen {
		evt := h.ring[(start+i)%hubRingSize]
		if evt.ID > lastID {
			result = append(result, &evt)
		}
	}
	return result
}

func (c *hubClient) setTopics(topics []string) {
	c.mu.Lock()
	c.topics = topics
	c.mu.Unlock()
}

// matchesTopic checks whether the client's topic filters match the given topic.
// An empty filter list matches all topics.
func (c *hubClient) matchesTopic(topic string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.topics) == 0 {
		return true
	}
	for _, pattern := range c.topics {
		if matchTopicPattern(pattern, topic) {
			return true
		}
	}
	return false
}

// matchTopicPattern matches a dot-separated topic against a pattern.
// Supports "*" as a single-segment wildcard and ">" as a multi-segment
// suffix wildcard (NATS-style).
func matchTopicPattern(pattern, topic string) bool {
	if pattern == topic {
		return true
	}

	patParts := strings.Split(pattern, ".")
	topParts := strings.Split(topic, ".")

	for i, pp := range patParts {
		if pp == ">" {
			// ">" matches one or more remaining segments.
			return i < len(topParts)
		}
		if i >= len(topParts) {
			return false
		}
		if pp != "*" && pp != topParts[i] {
			return false
		}
	}

	return len(patParts) == len(topParts)
}

// parseTopics splits a comma-separated topic filter.
func parseTopics(q string) []string {
	var topics []string
	for _, t := range strings.Split(q, ",") {
		if t = strings.TrimSpace(t); t != "" {
			topics = append(topics, t)
		}
	}
	return topics
}
