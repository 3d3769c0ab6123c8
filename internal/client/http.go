package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/alfredjeanlab/synapse/internal/extract"
	"github.com/alfredjeanlab/synapse/internal/model"
	"github.com/alfredjeanlab/synapse/internal/presence"
	"github.com/alfredjeanlab/synapse/internal/tabs"
)

// HTTPClient implements GraphClient using the synapse HTTP/JSON REST API.
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
}

var _ GraphClient = (*HTTPClient)(nil)

// NewHTTPClient creates a new HTTP client targeting the given base URL
// (e.g. "http://localhost:7420").
func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
	}
}

// Close is a no-op for the HTTP client.
func (c *HTTPClient) Close() error { return nil }

// --- Tabs ---

func (c *HTTPClient) CreateTab(ctx context.Context, rawURL, nodeID string) (*tabs.LiveTab, error) {
	var tab *tabs.LiveTab
	err := c.doJSON(ctx, http.MethodPost, "/v1/tabs", createTabRequest{URL: rawURL, NodeID: nodeID}, &tab)
	return tab, err
}

// SwitchTab returns nil when the server does not know the tab.
func (c *HTTPClient) SwitchTab(ctx context.Context, tabID string) (*tabs.LiveTab, error) {
	var tab *tabs.LiveTab
	err := c.doJSON(ctx, http.MethodPost, tabPath(tabID, "activate"), nil, &tab)
	return tab, err
}

func (c *HTTPClient) CloseTab(ctx context.Context, tabID string) (bool, error) {
	var resp closeTabResponse
	err := c.doJSON(ctx, http.MethodDelete, tabPath(tabID, ""), nil, &resp)
	return resp.Closed, err
}

func (c *HTTPClient) NavigateTab(ctx context.Context, tabID, rawURL string) error {
	return c.doJSON(ctx, http.MethodPost, tabPath(tabID, "navigate"), navigateRequest{URL: rawURL}, nil)
}

func (c *HTTPClient) GoBack(ctx context.Context, tabID string) error {
	return c.doJSON(ctx, http.MethodPost, tabPath(tabID, "back"), nil, nil)
}

func (c *HTTPClient) GoForward(ctx context.Context, tabID string) error {
	return c.doJSON(ctx, http.MethodPost, tabPath(tabID, "forward"), nil, nil)
}

func (c *HTTPClient) Reload(ctx context.Context, tabID string) error {
	return c.doJSON(ctx, http.MethodPost, tabPath(tabID, "reload"), nil, nil)
}

func (c *HTTPClient) Tabs(ctx context.Context) ([]*tabs.LiveTab, error) {
	var out []*tabs.LiveTab
	err := c.doJSON(ctx, http.MethodGet, "/v1/tabs", nil, &out)
	return out, err
}

func (c *HTTPClient) ActiveTab(ctx context.Context) (*tabs.LiveTab, error) {
	var tab *tabs.LiveTab
	err := c.doJSON(ctx, http.MethodGet, "/v1/tabs/active", nil, &tab)
	return tab, err
}

// --- Nodes ---

func (c *HTTPClient) GetNode(ctx context.Context, id string) (*model.Node, error) {
	var n model.Node
	if err := c.doJSON(ctx, http.MethodGet, nodePath(id, ""), nil, &n); err != nil {
		return nil, err
	}
	return &n, nil
}

func (c *HTTPClient) DeleteNode(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodDelete, nodePath(id, ""), nil, nil)
}

func (c *HTTPClient) ReopenNode(ctx context.Context, id string) (*tabs.LiveTab, error) {
	var tab *tabs.LiveTab
	err := c.doJSON(ctx, http.MethodPost, nodePath(id, "reopen"), nil, &tab)
	return tab, err
}

func (c *HTTPClient) FocusNode(ctx context.Context, id string) (*tabs.LiveTab, error) {
	var tab *tabs.LiveTab
	err := c.doJSON(ctx, http.MethodPost, nodePath(id, "focus"), nil, &tab)
	return tab, err
}

func (c *HTTPClient) UpdateNodePosition(ctx context.Context, id string, pos model.Position, userPositioned bool) error {
	body := positionRequest{Position: pos, UserPositioned: userPositioned}
	return c.doJSON(ctx, http.MethodPut, nodePath(id, "position"), body, nil)
}

func (c *HTTPClient) ExtractContent(ctx context.Context, id string) (*extract.Content, error) {
	var content extract.Content
	if err := c.doJSON(ctx, http.MethodGet, nodePath(id, "content"), nil, &content); err != nil {
		return nil, err
	}
	return &content, nil
}

// --- Graph ---

func (c *HTTPClient) GraphData(ctx context.Context, sessionID string) (*model.GraphData, error) {
	var data model.GraphData
	if err := c.doJSON(ctx, http.MethodGet, withSession("/v1/graph", sessionID), nil, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

func (c *HTTPClient) Timeline(ctx context.Context, sessionID string) (*model.Timeline, error) {
	var tl model.Timeline
	if err := c.doJSON(ctx, http.MethodGet, withSession("/v1/timeline", sessionID), nil, &tl); err != nil {
		return nil, err
	}
	return &tl, nil
}

func (c *HTTPClient) Snapshot(ctx context.Context) (*model.Snapshot, error) {
	var snap model.Snapshot
	if err := c.doJSON(ctx, http.MethodGet, "/v1/snapshot", nil, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// --- Saved trees ---

func (c *HTTPClient) SaveTree(ctx context.Context, name string, nodeIDs []string) (*model.SavedTree, error) {
	var tree model.SavedTree
	if err := c.doJSON(ctx, http.MethodPost, "/v1/trees", saveTreeRequest{Name: name, NodeIDs: nodeIDs}, &tree); err != nil {
		return nil, err
	}
	return &tree, nil
}

func (c *HTTPClient) LoadTree(ctx context.Context, id string) (*model.SavedTree, error) {
	var tree model.SavedTree
	if err := c.doJSON(ctx, http.MethodGet, "/v1/trees/"+url.PathEscape(id), nil, &tree); err != nil {
		return nil, err
	}
	return &tree, nil
}

func (c *HTTPClient) DeleteTree(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodDelete, "/v1/trees/"+url.PathEscape(id), nil, nil)
}

func (c *HTTPClient) SavedTrees(ctx context.Context, sessionID string) ([]*model.TreeSummary, error) {
	var out []*model.TreeSummary
	err := c.doJSON(ctx, http.MethodGet, withSession("/v1/trees", sessionID), nil, &out)
	return out, err
}

// --- Sessions ---

func (c *HTTPClient) Sessions(ctx context.Context) ([]*model.Session, error) {
	var out []*model.Session
	err := c.doJSON(ctx, http.MethodGet, "/v1/sessions", nil, &out)
	return out, err
}

func (c *HTTPClient) CurrentSession(ctx context.Context) (*model.Session, error) {
	return c.session(ctx, http.MethodGet, "/v1/sessions/current", nil)
}

func (c *HTTPClient) CreateSession(ctx context.Context, name string) (*model.Session, error) {
	return c.session(ctx, http.MethodPost, "/v1/sessions", nameRequest{Name: name})
}

func (c *HTTPClient) SwitchSession(ctx context.Context, id string) (*model.Session, error) {
	return c.session(ctx, http.MethodPost, "/v1/sessions/"+url.PathEscape(id)+"/switch", nil)
}

func (c *HTTPClient) DeleteSession(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodDelete, "/v1/sessions/"+url.PathEscape(id), nil, nil)
}

func (c *HTTPClient) RenameSession(ctx context.Context, id, name string) (*model.Session, error) {
	return c.session(ctx, http.MethodPatch, "/v1/sessions/"+url.PathEscape(id), nameRequest{Name: name})
}

func (c *HTTPClient) ExportSession(ctx context.Context, sessionID string) (*model.Export, error) {
	if sessionID == "" {
		cur, err := c.CurrentSession(ctx)
		if err != nil {
			return nil, err
		}
		sessionID = cur.ID
	}
	var x model.Export
	if err := c.doJSON(ctx, http.MethodGet, "/v1/sessions/"+url.PathEscape(sessionID)+"/export", nil, &x); err != nil {
		return nil, err
	}
	return &x, nil
}

func (c *HTTPClient) ImportSession(ctx context.Context, data *model.Export) (*model.Session, error) {
	return c.session(ctx, http.MethodPost, "/v1/sessions/import", data)
}

func (c *HTTPClient) session(ctx context.Context, method, path string, body any) (*model.Session, error) {
	var s model.Session
	if err := c.doJSON(ctx, method, path, body, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// --- Windows ---

func (c *HTTPClient) Windows(ctx context.Context) ([]presence.Entry, error) {
	var out []presence.Entry
	err := c.doJSON(ctx, http.MethodGet, "/v1/windows", nil, &out)
	return out, err
}

func (c *HTTPClient) AttachWindow(ctx context.Context, windowID, sessionID string) (string, error) {
	var resp windowResponse
	err := c.doJSON(ctx, http.MethodPost, "/v1/windows", windowRequest{WindowID: windowID, SessionID: sessionID}, &resp)
	return resp.SessionID, err
}

func (c *HTTPClient) DetachWindow(ctx context.Context, windowID string) error {
	return c.doJSON(ctx, http.MethodDelete, "/v1/windows/"+url.PathEscape(windowID), nil, nil)
}

// --- Data ---

func (c *HTTPClient) ClearAllData(ctx context.Context) error {
	return c.doJSON(ctx, http.MethodPost, "/v1/clear", nil, nil)
}

func (c *HTTPClient) Cleanup(ctx context.Context, olderThan time.Duration) (int, error) {
	var resp cleanupResponse
	err := c.doJSON(ctx, http.MethodPost, "/v1/cleanup", newCleanupRequest(olderThan), &resp)
	return resp.Deleted, err
}

// --- Health ---

func (c *HTTPClient) Health(ctx context.Context) (string, error) {
	var resp healthResponse
	if err := c.doJSON(ctx, http.MethodGet, "/v1/health", nil, &resp); err != nil {
		return "", err
	}
	return resp.Status, nil
}

// --- internal helpers ---

func tabPath(id, action string) string {
	p := "/v1/tabs/" + url.PathEscape(id)
	if action != "" {
		p += "/" + action
	}
	return p
}

func nodePath(id, action string) string {
	p := "/v1/nodes/" + url.PathEscape(id)
	if action != "" {
		p += "/" + action
	}
	return p
}

func withSession(path, sessionID string) string {
	if sessionID == "" {
		return path
	}
	return path + "?" + url.Values{"session": {sessionID}}.Encode()
}

// APIError represents an error response from the server.
type APIError struct {
	StatusCode int
	Message    string
	// Result is the in-memory outcome the server kept when saving failed.
	Result json.RawMessage
}

func (e *APIError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// Unavailable reports whether the server applied the change but could not
// persist it.
func (e *APIError) Unavailable() bool {
	return e.StatusCode == http.StatusServiceUnavailable
}

// doJSON performs an HTTP request with optional JSON body and decodes the JSON response.
// If result is nil, the response body is discarded.
func (c *HTTPClient) doJSON(ctx context.Context, method, path string, body any, result any) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("performing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var errResp struct {
			Error  string          `json:"error"`
			Result json.RawMessage `json:"result"`
		}
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Error != "" {
			return &APIError{StatusCode: resp.StatusCode, Message: errResp.Error, Result: errResp.Result}
		}
		return &APIError{StatusCode: resp.StatusCode, Message: string(respBody)}
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}

	return nil
}
