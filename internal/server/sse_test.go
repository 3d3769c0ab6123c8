package server

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alfredjeanlab/synapse/internal/events"
)

// streamRequest runs GET path against the handler until cancel is called.
func streamRequest(env *testEnv, path, lastEventID string) (*httptest.ResponseRecorder, context.CancelFunc, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest("GET", path, nil)
	if lastEventID != "" {
		req.Header.Set("Last-Event-ID", lastEventID)
	}
	req = req.WithContext(ctx)
	rec := httptest.NewRecorder()
	done := make(chan struct{})
	go func() {
		defer close(done)
		env.handler.ServeHTTP(rec, req)
	}()
	return rec, cancel, done
}

func TestHandleEventStream_SSE(t *testing.T) {
	env := newTestServer(t)
	rec, cancel, done := streamRequest(env, "/v1/events/stream", "")
	defer cancel()

	// Give the handler time to register the subscription.
	time.Sleep(50 * time.Millisecond)
	env.hub.broadcast(events.TopicNodeCreated, []byte(`{"id":"n-sse1"}`))
	time.Sleep(50 * time.Millisecond)

	cancel()
	<-done

	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("expected Content-Type=text/event-stream, got %q", ct)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "event:graph.node.created") {
		t.Fatalf("expected event:graph.node.created in body, got:\n%s", body)
	}
	if !strings.Contains(body, `data:{"id":"n-sse1"}`) {
		t.Fatalf("expected data with n-sse1 in body, got:\n%s", body)
	}
}

func TestHandleEventStream_TopicFilter(t *testing.T) {
	env := newTestServer(t)
	rec, cancel, done := streamRequest(env, "/v1/events/stream?topics=session.*", "")
	defer cancel()

	time.Sleep(50 * time.Millisecond)
	env.hub.broadcast(events.TopicNodeCreated, []byte(`{"id":"n-1"}`))
	env.hub.broadcast(events.TopicSessionRenamed, []byte(`{"id":"s-1"}`))
	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done

	body := rec.Body.String()
	if strings.Contains(body, events.TopicNodeCreated) {
		t.Fatalf("expected node event to be filtered out, got:\n%s", body)
	}
	if !strings.Contains(body, events.TopicSessionRenamed) {
		t.Fatalf("expected session event in body, got:\n%s", body)
	}
}

func TestHandleEventStream_LastEventID(t *testing.T) {
	env := newTestServer(t)

	env.hub.broadcast(events.TopicNodeCreated, []byte(`{"n":1}`))
	env.hub.broadcast(events.TopicNodeUpdated, []byte(`{"n":2}`))
	env.hub.broadcast(events.TopicNodeDeleted, []byte(`{"n":3}`))

	// Replays events 2 and 3.
	rec, cancel, done := streamRequest(env, "/v1/events/stream", "1")
	defer cancel()
	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done

	body := rec.Body.String()
	if strings.Contains(body, `data:{"n":1}`) {
		t.Fatalf("expected event 1 to be skipped, got:\n%s", body)
	}
	if !strings.Contains(body, `data:{"n":2}`) || !strings.Contains(body, `data:{"n":3}`) {
		t.Fatalf("expected events 2 and 3 in body, got:\n%s", body)
	}
}

func TestHandleEventStream_EngineCommand(t *testing.T) {
	env := newTestServer(t)
	rec, cancel, done := streamRequest(env, "/v1/events/stream?topics=graph.>,tab.created", "")
	defer cancel()

	time.Sleep(50 * time.Millisecond)
	createTabHTTP(t, env, "https://a.example")
	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done

	body := rec.Body.String()
	for _, topic := range []string{events.TopicTabCreated, events.TopicNodeCreated} {
		if !strings.Contains(body, "event:"+topic) {
			t.Fatalf("expected %s from createTab, got:\n%s", topic, body)
		}
	}
	if strings.Contains(body, "event:"+events.TopicTabActivated) {
		t.Fatalf("tab.activated should be filtered, got:\n%s", body)
	}
}

func TestHandleEventStream_MultipleClients(t *testing.T) {
	env := newTestServer(t)
	rec1, cancel1, done1 := streamRequest(env, "/v1/events/stream", "")
	defer cancel1()
	rec2, cancel2, done2 := streamRequest(env, "/v1/events/stream", "")
	defer cancel2()

	time.Sleep(50 * time.Millisecond)
	env.hub.broadcast(events.TopicTreeSaved, []byte(`{"id":"t-multi"}`))
	time.Sleep(50 * time.Millisecond)
	cancel1()
	cancel2()
	<-done1
	<-done2

	for i, rec := range []*httptest.ResponseRecorder{rec1, rec2} {
		if !strings.Contains(rec.Body.String(), events.TopicTreeSaved) {
			t.Fatalf("client %d: expected tree event, got:\n%s", i+1, rec.Body.String())
		}
	}
}

func TestHandleEventStream_HubClosed(t *testing.T) {
	env := newTestServer(t)
	_, cancel, done := streamRequest(env, "/v1/events/stream", "")
	defer cancel()

	time.Sleep(50 * time.Millisecond)
	_ = env.hub.Close()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("stream did not end when the hub closed")
	}
}

func TestSSEEventFormat(t *testing.T) {
	env := newTestServer(t)
	rec, cancel, done := streamRequest(env, "/v1/events/stream", "")
	defer cancel()

	time.Sleep(50 * time.Millisecond)
	env.hub.broadcast(events.TopicSessionCreated, []byte(`{"id":"s-fmt"}`))
	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done

	scanner := bufio.NewScanner(strings.NewReader(rec.Body.String()))
	var id, event, data string
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "id:") {
			id = strings.TrimPrefix(line, "id:")
		} else if strings.HasPrefix(line, "event:") {
			event = strings.TrimPrefix(line, "event:")
		} else if strings.HasPrefix(line, "data:") {
			data = strings.TrimPrefix(line, "data:")
		}
	}

	if id == "" {
		t.Fatal("expected non-empty id field")
	}
	if event != events.TopicSessionCreated {
		t.Fatalf("expected event=%s, got %q", events.TopicSessionCreated, event)
	}
	if !json.Valid([]byte(data)) || data != `{"id":"s-fmt"}` {
		t.Fatalf("expected data=%q, got %q", `{"id":"s-fmt"}`, data)
	}
}
