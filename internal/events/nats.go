package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"
)

// DefaultSubjectPrefix namespaces engine topics on a shared NATS server.
const DefaultSubjectPrefix = "synapse"

// subscriptionBuffer is the per-subscription channel capacity. Messages
// arriving while it is full are dropped and counted.
const subscriptionBuffer = 64

// subject joins prefix and topic into a NATS subject.
func subject(prefix, topic string) string {
	if prefix == "" {
		return topic
	}
	return prefix + "." + topic
}

func connect(url, name string, opts []nats.Option) (*nats.Conn, error) {
	nc, err := nats.Connect(url, append([]nats.Option{nats.Name(name)}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS at %s: %w", url, err)
	}
	return nc, nil
}

// NATSPublisher publishes JSON-encoded events to "<prefix>.<topic>" subjects.
type NATSPublisher struct {
	conn   *nats.Conn
	prefix string
}

// NewNATSPublisher connects to url. An empty prefix publishes bare topics.
func NewNATSPublisher(url, prefix string, opts ...nats.Option) (*NATSPublisher, error) {
	nc, err := connect(url, "synapse-publisher", opts)
	if err != nil {
		return nil, err
	}
	return &NATSPublisher{conn: nc, prefix: prefix}, nil
}

func (p *NATSPublisher) Publish(_ context.Context, topic string, event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshaling %s event: %w", topic, err)
	}
	return p.conn.Publish(subject(p.prefix, topic), data)
}

// Close flushes pending publishes before closing the connection.
func (p *NATSPublisher) Close() error {
	err := p.conn.Flush()
	p.conn.Close()
	if err != nil && err != nats.ErrConnectionClosed {
		return fmt.Errorf("flushing NATS publisher: %w", err)
	}
	return nil
}

// NATSSubscriber receives engine events from NATS. Topics on delivered
// messages have the subject prefix stripped.
type NATSSubscriber struct {
	conn    *nats.Conn
	prefix  string
	dropped atomic.Uint64
}

// NewNATSSubscriber connects with unlimited reconnects. opts are applied
// after the defaults, so callers can add disconnect and reconnect handlers.
func NewNATSSubscriber(url, prefix string, opts ...nats.Option) (*NATSSubscriber, error) {
	defaults := []nats.Option{
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
	}
	nc, err := connect(url, "synapse-subscriber", append(defaults, opts...))
	if err != nil {
		return nil, err
	}
	return &NATSSubscriber{conn: nc, prefix: prefix}, nil
}

// Dropped is the number of messages discarded because a subscriber's
// channel was full.
func (s *NATSSubscriber) Dropped() uint64 {
	return s.dropped.Load()
}

// natsSubscription guards its channel so the NATS callback never sends
// after cancel closed it.
type natsSubscription struct {
	sub    *nats.Subscription
	ch     chan Message
	mu     sync.Mutex
	closed bool
	once   sync.Once
}

func (ns *natsSubscription) deliver(m Message) bool {
	ns.mu.Lock()
	defer ns.mu.Unlock()
	if ns.closed {
		return true
	}
	select {
	case ns.ch <- m:
		return true
	default:
		return false
	}
}

func (ns *natsSubscription) cancel() {
	ns.once.Do(func() {
		if ns.sub != nil {
			_ = ns.sub.Unsubscribe()
		}
		ns.mu.Lock()
		ns.closed = true
		close(ns.ch)
		ns.mu.Unlock()
	})
}

// Subscribe delivers messages matching topic, which may use NATS wildcards
// ("graph.>", "session.*"). The returned cancel unsubscribes and closes the
// channel; it is safe to call more than once.
func (s *NATSSubscriber) Subscribe(topic string) (<-chan Message, func(), error) {
	ns := &natsSubscription{ch: make(chan Message, subscriptionBuffer)}

	trim := subject(s.prefix, "")
	sub, err := s.conn.Subscribe(subject(s.prefix, topic), func(msg *nats.Msg) {
		if !ns.deliver(Message{Topic: strings.TrimPrefix(msg.Subject, trim), Data: msg.Data}) {
			s.dropped.Add(1)
		}
	})
	if err != nil {
		ns.cancel()
		return nil, nil, fmt.Errorf("subscribing to %s: %w", topic, err)
	}
	ns.sub = sub

	// The subscription must reach the server before we return, or events
	// published right after on another connection are missed.
	if err := s.conn.Flush(); err != nil {
		ns.cancel()
		return nil, nil, fmt.Errorf("flushing subscription: %w", err)
	}
	return ns.ch, ns.cancel, nil
}

func (s *NATSSubscriber) Close() error {
	s.conn.Close()
	return nil
}
