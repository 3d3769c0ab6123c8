package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alfredjeanlab/synapse/internal/model"
	"github.com/nats-io/nats.go"
)

func TestNoopPublisher_Publish(t *testing.T) {
	pub := &NoopPublisher{}
	err := pub.Publish(context.Background(), TopicNodeCreated, NodeCreated{})
	if err != nil {
		t.Fatalf("NoopPublisher.Publish returned unexpected error: %v", err)
	}
	if err := pub.Close(); err != nil {
		t.Fatalf("NoopPublisher.Close returned unexpected error: %v", err)
	}
}

func TestPublishers_ImplementPublisher(t *testing.T) {
	var _ Publisher = (*NoopPublisher)(nil)
	var _ Publisher = (*NATSPublisher)(nil)
	var _ Publisher = (*MultiPublisher)(nil)
	var _ Publisher = (*RecordingPublisher)(nil)
}

func TestSubject(t *testing.T) {
	for _, tc := range []struct {
		prefix, topic, want string
	}{
		{"", "graph.node.created", "graph.node.created"},
		{"synapse", "graph.node.created", "synapse.graph.node.created"},
		{"synapse", ">", "synapse.>"},
	} {
		if got := subject(tc.prefix, tc.topic); got != tc.want {
			t.Errorf("subject(%q, %q) = %q, want %q", tc.prefix, tc.topic, got, tc.want)
		}
	}
}

func TestNATSPublisher_Publish(t *testing.T) {
	url := startTestNATS(t)

	pub, err := NewNATSPublisher(url, DefaultSubjectPrefix)
	if err != nil {
		t.Fatalf("creating publisher: %v", err)
	}
	defer pub.Close()

	// Subscribe to capture published messages.
	nc, err := nats.Connect(url)
	if err != nil {
		t.Fatalf("connecting subscriber: %v", err)
	}
	defer nc.Close()

	ch := make(chan *nats.Msg, 1)
	sub, err := nc.ChanSubscribe("synapse."+TopicNodeCreated, ch)
	if err != nil {
		t.Fatalf("subscribing: %v", err)
	}
	defer sub.Unsubscribe() //nolint:errcheck
	nc.Flush()

	event := NodeCreated{Node: &model.Node{ID: "node-pub1", Title: "Test"}}
	if err := pub.Publish(context.Background(), TopicNodeCreated, event); err != nil {
		t.Fatalf("Publish error: %v", err)
	}
	pub.conn.Flush()

	select {
	case msg := <-ch:
		var got NodeCreated
		if err := json.Unmarshal(msg.Data, &got); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if got.Node.ID != "node-pub1" {
			t.Errorf("got node ID=%q, want %q", got.Node.ID, "node-pub1")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for published message")
	}
}

func TestNATSPublisher_Close(t *testing.T) {
	url := startTestNATS(t)

	pub, err := NewNATSPublisher(url, "")
	if err != nil {
		t.Fatalf("creating publisher: %v", err)
	}
	if err := pub.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}

	// Publishing after close should fail.
	if err := pub.Publish(context.Background(), TopicNodeCreated, NodeCreated{}); err == nil {
		t.Error("expected error publishing after close")
	}
}

type failingPublisher struct{ closed bool }

func (f *failingPublisher) Publish(context.Context, string, any) error {
	return errors.New("broker down")
}

func (f *failingPublisher) Close() error {
	f.closed = true
	return nil
}

func TestMultiPublisher_DeliversDespiteFailure(t *testing.T) {
	bad := &failingPublisher{}
	rec := NewRecordingPublisher()
	m := NewMultiPublisher(bad, nil, rec)

	err := m.Publish(context.Background(), TopicEdgeCreated, EdgeCreated{Edge: &model.Edge{ID: "edge-1"}})
	if err == nil {
		t.Error("expected joined error from failing publisher")
	}
	if got := rec.Topics(); len(got) != 1 || got[0] != TopicEdgeCreated {
		t.Errorf("recorded topics = %v, want [%s]", got, TopicEdgeCreated)
	}

	if err := m.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
	if !bad.closed {
		t.Error("Close should reach every publisher")
	}
}
