package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/alfredjeanlab/synapse/internal/events"
	"github.com/alfredjeanlab/synapse/internal/model"
	"github.com/alfredjeanlab/synapse/internal/ui"
)

func TestPrintGraphTree(t *testing.T) {
	ui.ForceNoColor()
	now := time.Now()
	g := &model.GraphData{
		Nodes: []*model.Node{
			{ID: "c", Title: "Child", ParentID: "a", Status: model.NodeActive, CreatedAt: now.Add(2 * time.Second)},
			{ID: "a", Title: "Root", Status: model.NodeClosed, CreatedAt: now},
			{ID: "b", URL: "https://orphan.example", ParentID: "gone", Status: model.NodeActive, CreatedAt: now.Add(time.Second)},
		},
		Edges: []*model.Edge{
			{ID: "e1", Source: "a", Target: "c", Type: model.EdgeNavigation},
			{ID: "e2", Source: "b", Target: "c", Type: model.EdgeManual},
		},
	}
	var buf bytes.Buffer
	printGraphTree(&buf, g)
	lines := strings.Split(buf.String(), "\n")

	want := []string{
		"a Root [closed]",
		"  c Child [active]",
		"b https://orphan.example [active]",
	}
	for i, w := range want {
		if lines[i] != w {
			t.Errorf("line %d = %q, want %q", i, lines[i], w)
		}
	}
	if !strings.Contains(buf.String(), "b -> c (manual)") {
		t.Errorf("non-tree edge missing:\n%s", buf.String())
	}
	if strings.Contains(buf.String(), "a -> c") {
		t.Errorf("tree edge listed twice:\n%s", buf.String())
	}
	if !strings.Contains(buf.String(), "3 nodes, 2 edges") {
		t.Errorf("summary missing:\n%s", buf.String())
	}
}

func TestPrintGraphTree_Empty(t *testing.T) {
	var buf bytes.Buffer
	printGraphTree(&buf, &model.GraphData{})
	if strings.TrimSpace(buf.String()) != "empty graph" {
		t.Errorf("got %q", buf.String())
	}
}

func TestTimelineSubject(t *testing.T) {
	for _, tc := range []struct {
		name    string
		payload any
		want    string
	}{
		{"Node", map[string]any{"id": "n1", "url": "https://a.example"}, "https://a.example"},
		{"Edge", map[string]any{"id": "e1", "source": "n1", "target": "n2"}, "n1 -> n2"},
		{"Unknown", "text", ""},
	} {
		t.Run(tc.name, func(t *testing.T) {
			if got := timelineSubject(tc.payload); got != tc.want {
				t.Errorf("timelineSubject = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestEventSubject(t *testing.T) {
	for _, tc := range []struct {
		name string
		data string
		want string
	}{
		{"NodeCreated", `{"node":{"id":"n1","url":"https://a.example"}}`, "n1 https://a.example"},
		{"SessionRenamed", `{"session":{"id":"s1","name":"Reading"}}`, "s1 Reading"},
		{"NodeDeleted", `{"nodeId":"n1","sessionId":"s1"}`, "n1"},
		{"Switched", `{"from":"s1","to":"s2"}`, "s2"},
		{"NotJSON", `plain`, "plain"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			if got := eventSubject([]byte(tc.data)); got != tc.want {
				t.Errorf("eventSubject = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestPrintEvent_JSON(t *testing.T) {
	jsonOutput = true
	defer func() { jsonOutput = false }()
	var buf bytes.Buffer
	printEvent(&buf, events.Message{Topic: "tab.created", Data: []byte(`{"tab":{"id":"t1"}}`)})
	if got := strings.TrimSpace(buf.String()); got != `{"topic":"tab.created","data":{"tab":{"id":"t1"}}}` {
		t.Errorf("got %s", got)
	}
}

func TestColorizeHelpOutput(t *testing.T) {
	ui.SetColor(true)
	defer ui.ForceNoColor()
	in := "Graph:\n  graph       Show a session's browsing graph\n\nFlags:\n      --session string   session id\n"
	out := colorizeHelpOutput(in)
	if out == in {
		t.Fatal("expected styling")
	}
	if !strings.Contains(out, "graph") || !strings.Contains(out, "session id") {
		t.Errorf("text lost:\n%s", out)
	}
}
