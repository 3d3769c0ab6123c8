package events

import (
	"context"

	"github.com/alfredjeanlab/synapse/internal/model"
)

// Event topic constants
const (
	TopicNodeCreated = "graph.node.created"
	TopicNodeUpdated = "graph.node.updated"
	TopicNodeDeleted = "graph.node.deleted"
	TopicEdgeCreated = "graph.edge.created"
	TopicImported    = "graph.imported"
	TopicCleared     = "graph.cleared"
	TopicCleanup     = "graph.cleanup"

	TopicSessionCreated  = "session.created"
	TopicSessionSwitched = "session.switched"
	TopicSessionDeleted  = "session.deleted"
	TopicSessionRenamed  = "session.renamed"

	TopicTreeSaved   = "tree.saved"
	TopicTreeDeleted = "tree.deleted"

	// Live tab events; tabs are ephemeral so these carry the tab snapshot.
	TopicTabCreated   = "tab.created"
	TopicTabUpdated   = "tab.updated"
	TopicTabActivated = "tab.activated"
	TopicTabClosed    = "tab.closed"
)

// AllTopics matches every topic the engine publishes.
const AllTopics = ">"

// Event types

type NodeCreated struct {
	Node *model.Node `json:"node"`
}

type NodeUpdated struct {
	Node    *model.Node    `json:"node"`
	Changes map[string]any `json:"changes,omitempty"` // field name -> new value
}

type NodeDeleted struct {
	NodeID       string   `json:"nodeId"`
	SessionID    string   `json:"sessionId"`
	DeletedEdges []string `json:"deletedEdges,omitempty"`
}

type EdgeCreated struct {
	Edge *model.Edge `json:"edge"`
}

type GraphImported struct {
	SessionID string `json:"sessionId"`
	NodeCount int    `json:"nodeCount"`
	EdgeCount int    `json:"edgeCount"`
}

type GraphCleared struct {
	SessionID string `json:"sessionId"`
}

type CleanupCompleted struct {
	Deleted int    `json:"deleted"`
	Cutoff  string `json:"cutoff"`
}

type SessionCreated struct {
	Session *model.Session `json:"session"`
}

type SessionSwitched struct {
	From string `json:"from,omitempty"`
	To   string `json:"to"`
}

type SessionDeleted struct {
	SessionID string `json:"sessionId"`
}

type SessionRenamed struct {
	Session *model.Session `json:"session"`
}

type TreeSaved struct {
	Tree *model.TreeSummary `json:"tree"`
}

type TreeDeleted struct {
	TreeID string `json:"treeId"`
}

// TabInfo is the serializable view of a live tab carried by tab events.
type TabInfo struct {
	ID           string `json:"id"`
	NodeID       string `json:"nodeId,omitempty"`
	URL          string `json:"url"`
	Title        string `json:"title"`
	Favicon      string `json:"favicon,omitempty"`
	IsActive     bool   `json:"isActive"`
	Loading      bool   `json:"loading"`
	CanGoBack    bool   `json:"canGoBack"`
	CanGoForward bool   `json:"canGoForward"`
}

type TabEvent struct {
	Tab *TabInfo `json:"tab"`
}

// Publisher is the interface for emitting events.
type Publisher interface {
	Publish(ctx context.Context, topic string, event any) error
	Close() error
}

// NoopPublisher discards every event. Engines built without a publisher
// use it.
type NoopPublisher struct{}

func (*NoopPublisher) Publish(context.Context, string, any) error { return nil }

func (*NoopPublisher) Close() error { return nil }
