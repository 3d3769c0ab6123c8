package client

import (
	"context"
	"fmt"
	"time"

	"github.com/alfredjeanlab/synapse/internal/extract"
	"github.com/alfredjeanlab/synapse/internal/model"
	"github.com/alfredjeanlab/synapse/internal/presence"
	"github.com/alfredjeanlab/synapse/internal/server"
	"github.com/alfredjeanlab/synapse/internal/tabs"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// GRPCClient implements GraphClient over the engine's gRPC service. Messages
// travel as JSON through the codec the server registers.
type GRPCClient struct {
	conn *grpc.ClientConn
}

var _ GraphClient = (*GRPCClient)(nil)

// NewGRPCClient connects to the given gRPC address and returns a client.
func NewGRPCClient(addr string, opts ...grpc.DialOption) (*GRPCClient, error) {
	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(server.JSONCodec{}.Name())),
	}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("grpc dial: %w", err)
	}
	return &GRPCClient{conn: conn}, nil
}

func (c *GRPCClient) Close() error {
	return c.conn.Close()
}

// invoke calls one engine command. A nil out discards the reply.
func (c *GRPCClient) invoke(ctx context.Context, command string, params, out any) error {
	if params == nil {
		params = struct{}{}
	}
	if out == nil {
		var discard any
		out = &discard
	}
	return c.conn.Invoke(ctx, server.FullMethod(command), params, out)
}

// --- Tabs ---

func (c *GRPCClient) CreateTab(ctx context.Context, url, nodeID string) (*tabs.LiveTab, error) {
	var tab *tabs.LiveTab
	err := c.invoke(ctx, "createTab", createTabRequest{URL: url, NodeID: nodeID}, &tab)
	return tab, err
}

func (c *GRPCClient) SwitchTab(ctx context.Context, tabID string) (*tabs.LiveTab, error) {
	var tab *tabs.LiveTab
	err := c.invoke(ctx, "switchTab", tabRequest{TabID: tabID}, &tab)
	return tab, err
}

func (c *GRPCClient) CloseTab(ctx context.Context, tabID string) (bool, error) {
	var resp closeTabResponse
	err := c.invoke(ctx, "closeTab", tabRequest{TabID: tabID}, &resp)
	return resp.Closed, err
}

func (c *GRPCClient) NavigateTab(ctx context.Context, tabID, url string) error {
	return c.invoke(ctx, "navigateTab", navigateRequest{TabID: tabID, URL: url}, nil)
}

func (c *GRPCClient) GoBack(ctx context.Context, tabID string) error {
	return c.invoke(ctx, "goBack", tabRequest{TabID: tabID}, nil)
}

func (c *GRPCClient) GoForward(ctx context.Context, tabID string) error {
	return c.invoke(ctx, "goForward", tabRequest{TabID: tabID}, nil)
}

func (c *GRPCClient) Reload(ctx context.Context, tabID string) error {
	return c.invoke(ctx, "reload", tabRequest{TabID: tabID}, nil)
}

func (c *GRPCClient) Tabs(ctx context.Context) ([]*tabs.LiveTab, error) {
	var out []*tabs.LiveTab
	err := c.invoke(ctx, "getAllTabs", nil, &out)
	return out, err
}

func (c *GRPCClient) ActiveTab(ctx context.Context) (*tabs.LiveTab, error) {
	var tab *tabs.LiveTab
	err := c.invoke(ctx, "getActiveTab", nil, &tab)
	return tab, err
}

// --- Nodes ---

func (c *GRPCClient) GetNode(ctx context.Context, id string) (*model.Node, error) {
	var n *model.Node
	err := c.invoke(ctx, "getNode", nodeRequest{NodeID: id}, &n)
	return n, err
}

func (c *GRPCClient) DeleteNode(ctx context.Context, id string) error {
	return c.invoke(ctx, "deleteNode", nodeRequest{NodeID: id}, nil)
}

func (c *GRPCClient) ReopenNode(ctx context.Context, id string) (*tabs.LiveTab, error) {
	var tab *tabs.LiveTab
	err := c.invoke(ctx, "reopenNode", nodeRequest{NodeID: id}, &tab)
	return tab, err
}

func (c *GRPCClient) FocusNode(ctx context.Context, id string) (*tabs.LiveTab, error) {
	var tab *tabs.LiveTab
	err := c.invoke(ctx, "focusNode", nodeRequest{NodeID: id}, &tab)
	return tab, err
}

func (c *GRPCClient) UpdateNodePosition(ctx context.Context, id string, pos model.Position, userPositioned bool) error {
	return c.invoke(ctx, "updateNodePosition", positionRequest{NodeID: id, Position: pos, UserPositioned: userPositioned}, nil)
}

func (c *GRPCClient) ExtractContent(ctx context.Context, id string) (*extract.Content, error) {
	var content *extract.Content
	err := c.invoke(ctx, "extractContent", nodeRequest{NodeID: id}, &content)
	return content, err
}

// --- Graph ---

func (c *GRPCClient) GraphData(ctx context.Context, sessionID string) (*model.GraphData, error) {
	var data *model.GraphData
	err := c.invoke(ctx, "getGraphData", sessionRequest{SessionID: sessionID}, &data)
	return data, err
}

func (c *GRPCClient) Timeline(ctx context.Context, sessionID string) (*model.Timeline, error) {
	var tl *model.Timeline
	err := c.invoke(ctx, "getTimeline", sessionRequest{SessionID: sessionID}, &tl)
	return tl, err
}

func (c *GRPCClient) Snapshot(ctx context.Context) (*model.Snapshot, error) {
	var snap *model.Snapshot
	err := c.invoke(ctx, "getSnapshot", nil, &snap)
	return snap, err
}

// --- Saved trees ---

func (c *GRPCClient) SaveTree(ctx context.Context, name string, nodeIDs []string) (*model.SavedTree, error) {
	var tree *model.SavedTree
	err := c.invoke(ctx, "saveTree", saveTreeRequest{Name: name, NodeIDs: nodeIDs}, &tree)
	return tree, err
}

func (c *GRPCClient) LoadTree(ctx context.Context, id string) (*model.SavedTree, error) {
	var tree *model.SavedTree
	err := c.invoke(ctx, "loadTree", treeRequest{TreeID: id}, &tree)
	return tree, err
}

func (c *GRPCClient) DeleteTree(ctx context.Context, id string) error {
	return c.invoke(ctx, "deleteTree", treeRequest{TreeID: id}, nil)
}

func (c *GRPCClient) SavedTrees(ctx context.Context, sessionID string) ([]*model.TreeSummary, error) {
	var out []*model.TreeSummary
	err := c.invoke(ctx, "getSavedTrees", sessionRequest{SessionID: sessionID}, &out)
	return out, err
}

// --- Sessions ---

func (c *GRPCClient) Sessions(ctx context.Context) ([]*model.Session, error) {
	var out []*model.Session
	err := c.invoke(ctx, "getSessions", nil, &out)
	return out, err
}

func (c *GRPCClient) CurrentSession(ctx context.Context) (*model.Session, error) {
	var s *model.Session
	err := c.invoke(ctx, "getCurrentSession", nil, &s)
	return s, err
}

func (c *GRPCClient) CreateSession(ctx context.Context, name string) (*model.Session, error) {
	var s *model.Session
	err := c.invoke(ctx, "createSession", nameRequest{Name: name}, &s)
	return s, err
}

func (c *GRPCClient) SwitchSession(ctx context.Context, id string) (*model.Session, error) {
	var s *model.Session
	err := c.invoke(ctx, "switchSession", sessionRequest{SessionID: id}, &s)
	return s, err
}

func (c *GRPCClient) DeleteSession(ctx context.Context, id string) error {
	return c.invoke(ctx, "deleteSession", sessionRequest{SessionID: id}, nil)
}

func (c *GRPCClient) RenameSession(ctx context.Context, id, name string) (*model.Session, error) {
	var s *model.Session
	err := c.invoke(ctx, "renameSession", nameRequest{SessionID: id, Name: name}, &s)
	return s, err
}

func (c *GRPCClient) ExportSession(ctx context.Context, sessionID string) (*model.Export, error) {
	var x *model.Export
	err := c.invoke(ctx, "exportSession", sessionRequest{SessionID: sessionID}, &x)
	return x, err
}

func (c *GRPCClient) ImportSession(ctx context.Context, data *model.Export) (*model.Session, error) {
	var s *model.Session
	err := c.invoke(ctx, "importSession", data, &s)
	return s, err
}

// --- Windows ---

func (c *GRPCClient) Windows(ctx context.Context) ([]presence.Entry, error) {
	var out []presence.Entry
	err := c.invoke(ctx, "getWindows", nil, &out)
	return out, err
}

func (c *GRPCClient) AttachWindow(ctx context.Context, windowID, sessionID string) (string, error) {
	var resp windowResponse
	err := c.invoke(ctx, "attachWindow", windowRequest{WindowID: windowID, SessionID: sessionID}, &resp)
	return resp.SessionID, err
}

func (c *GRPCClient) DetachWindow(ctx context.Context, windowID string) error {
	return c.invoke(ctx, "detachWindow", windowRequest{WindowID: windowID}, nil)
}

// --- Data ---

func (c *GRPCClient) ClearAllData(ctx context.Context) error {
	return c.invoke(ctx, "clearAllData", nil, nil)
}

func (c *GRPCClient) Cleanup(ctx context.Context, olderThan time.Duration) (int, error) {
	var resp cleanupResponse
	err := c.invoke(ctx, "cleanup", newCleanupRequest(olderThan), &resp)
	return resp.Deleted, err
}

// --- Health ---

func (c *GRPCClient) Health(ctx context.Context) (string, error) {
	var resp healthResponse
	if err := c.invoke(ctx, "health", nil, &resp); err != nil {
		return "", err
	}
	return resp.Status, nil
}
