// Package client provides a transport-agnostic interface for the synapse
// engine and HTTP/JSON and gRPC implementations of it.
package client

import (
	"context"
	"time"

	"github.com/alfredjeanlab/synapse/internal/extract"
	"github.com/alfredjeanlab/synapse/internal/model"
	"github.com/alfredjeanlab/synapse/internal/presence"
	"github.com/alfredjeanlab/synapse/internal/tabs"
)

// GraphClient is the interface that all syn CLI commands use to talk to a
// running engine. It is implemented by HTTPClient (default) and GRPCClient.
type GraphClient interface {
	// Tabs
	CreateTab(ctx context.Context, url, nodeID string) (*tabs.LiveTab, error)
	SwitchTab(ctx context.Context, tabID string) (*tabs.LiveTab, error)
	CloseTab(ctx context.Context, tabID string) (bool, error)
	NavigateTab(ctx context.Context, tabID, url string) error
	GoBack(ctx context.Context, tabID string) error
	GoForward(ctx context.Context, tabID string) error
	Reload(ctx context.Context, tabID string) error
	Tabs(ctx context.Context) ([]*tabs.LiveTab, error)
	ActiveTab(ctx context.Context) (*tabs.LiveTab, error)

	// Nodes
	GetNode(ctx context.Context, id string) (*model.Node, error)
	DeleteNode(ctx context.Context, id string) error
	ReopenNode(ctx context.Context, id string) (*tabs.LiveTab, error)
	FocusNode(ctx context.Context, id string) (*tabs.LiveTab, error)
	UpdateNodePosition(ctx context.Context, id string, pos model.Position, userPositioned bool) error
	ExtractContent(ctx context.Context, id string) (*extract.Content, error)

	// Graph
	GraphData(ctx context.Context, sessionID string) (*model.GraphData, error)
	Timeline(ctx context.Context, sessionID string) (*model.Timeline, error)
	Snapshot(ctx context.Context) (*model.Snapshot, error)

	// Saved trees
	SaveTree(ctx context.Context, name string, nodeIDs []string) (*model.SavedTree, error)
	LoadTree(ctx context.Context, id string) (*model.SavedTree, error)
	DeleteTree(ctx context.Context, id string) error
	SavedTrees(ctx context.Context, sessionID string) ([]*model.TreeSummary, error)

	// Sessions
	Sessions(ctx context.Context) ([]*model.Session, error)
	CurrentSession(ctx context.Context) (*model.Session, error)
	CreateSession(ctx context.Context, name string) (*model.Session, error)
	SwitchSession(ctx context.Context, id string) (*model.Session, error)
	DeleteSession(ctx context.Context, id string) error
	RenameSession(ctx context.Context, id, name string) (*model.Session, error)
	ExportSession(ctx context.Context, sessionID string) (*model.Export, error)
	ImportSession(ctx context.Context, data *model.Export) (*model.Session, error)

	// Windows
	Windows(ctx context.Context) ([]presence.Entry, error)
	AttachWindow(ctx context.Context, windowID, sessionID string) (string, error)
	DetachWindow(ctx context.Context, windowID string) error

	// Data
	ClearAllData(ctx context.Context) error
	Cleanup(ctx context.Context, olderThan time.Duration) (int, error)

	// Health
	Health(ctx context.Context) (string, error)

	// Lifecycle
	Close() error
}

// Request bodies shared by both transports. Field names match the server's
// command params.

type tabRequest struct {
	TabID string `json:"tabId,omitempty"`
}

type createTabRequest struct {
	URL    string `json:"url"`
	NodeID string `json:"nodeId,omitempty"`
}

type navigateRequest struct {
	TabID string `json:"tabId,omitempty"`
	URL   string `json:"url"`
}

type nodeRequest struct {
	NodeID string `json:"nodeId,omitempty"`
}

type positionRequest struct {
	NodeID         string         `json:"nodeId,omitempty"`
	Position       model.Position `json:"position"`
	UserPositioned bool           `json:"userPositioned"`
}

type sessionRequest struct {
	SessionID string `json:"sessionId,omitempty"`
}

type nameRequest struct {
	SessionID string `json:"sessionId,omitempty"`
	Name      string `json:"name"`
}

type saveTreeRequest struct {
	Name    string   `json:"name"`
	NodeIDs []string `json:"nodeIds"`
}

type treeRequest struct {
	TreeID string `json:"treeId,omitempty"`
}

type windowRequest struct {
	WindowID  string `json:"windowId"`
	SessionID string `json:"sessionId,omitempty"`
}

type cleanupRequest struct {
	OlderThan string `json:"olderThan,omitempty"`
}

func newCleanupRequest(olderThan time.Duration) cleanupRequest {
	if olderThan <= 0 {
		return cleanupRequest{}
	}
	return cleanupRequest{OlderThan: olderThan.String()}
}

type closeTabResponse struct {
	Closed bool `json:"closed"`
}

type cleanupResponse struct {
	Deleted int `json:"deleted"`
}

type windowResponse struct {
	WindowID  string `json:"windowId"`
	SessionID string `json:"sessionId"`
}

type healthResponse struct {
	Status string `json:"status"`
}
