package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/alfredjeanlab/synapse/internal/events"
	"github.com/alfredjeanlab/synapse/internal/model"
	"github.com/alfredjeanlab/synapse/internal/tabs"
)

// CreateTab opens a tab on url. An existing node is attached to the tab and
// becomes active. Otherwise a new active node, with nodeID as its id when
// given, is created as a child of the foreground tab's node and joined to it
// by a navigation edge.
func (e *Engine) CreateTab(ctx context.Context, url, nodeID string) (*tabs.LiveTab, error) {
	return call(ctx, e, func(ctx context.Context) (*tabs.LiveTab, error) {
		return e.createTab(ctx, url, nodeID)
	})
}

func (e *Engine) createTab(ctx context.Context, url, nodeID string) (*tabs.LiveTab, error) {
	if nodeID != "" {
		_, err := e.graph.GetNode(nodeID)
		switch {
		case err == nil:
			return e.openNode(ctx, nodeID, url)
		case !errors.Is(err, model.ErrNotFound):
			return nil, err
		}
	}

	parentID := ""
	if fg := e.tabs.Active(); fg != nil {
		parentID = e.tabNode[fg.ID]
	}
	tab, err := e.tabs.CreateTab(ctx, url, "")
	if err != nil {
		return nil, err
	}

	now := e.opts.Now().UTC()
	node, err := e.graph.AddNode(ctx, &model.Node{
		ID:           nodeID,
		TabID:        tab.ID,
		URL:          tab.URL,
		ParentID:     parentID,
		Status:       model.NodeActive,
		LastActiveAt: &now,
	})
	if node == nil {
		// Nothing was inserted; the tab stays open without a node.
		return tab, fmt.Errorf("create node for tab %s: %w", tab.ID, err)
	}
	e.associate(tab.ID, node.ID)

	if node.ParentID != "" {
		_, eerr := e.graph.AddEdge(ctx, &model.Edge{
			Source:    node.ParentID,
			Target:    node.ID,
			Type:      model.EdgeNavigation,
			SessionID: node.SessionID,
		})
		err = errors.Join(err, eerr)
	}
	return e.tabs.Tab(tab.ID), err
}

// openNode opens a fresh tab for an existing node and points the node at it.
// Any older tab association of the node is dropped.
func (e *Engine) openNode(ctx context.Context, nodeID, url string) (*tabs.LiveTab, error) {
	node, err := e.graph.GetNode(nodeID)
	if err != nil {
		return nil, err
	}
	if url == "" {
		url = node.URL
	}
	tab, err := e.tabs.CreateTab(ctx, url, nodeID)
	if err != nil {
		return nil, err
	}
	e.associate(tab.ID, nodeID)

	now := e.opts.Now().UTC()
	active := model.NodeActive
	patch := model.NodePatch{
		TabID:         &tab.ID,
		Status:        &active,
		ReopenedAt:    &now,
		LastActiveAt:  &now,
		ClearClosedAt: true,
	}
	_, err = e.graph.UpdateNode(ctx, nodeID, patch)
	return e.tabs.Tab(tab.ID), err
}

// associate links tab and node, orphaning whatever either was linked to.
func (e *Engine) associate(tabID, nodeID string) {
	if old, ok := e.nodeTab[nodeID]; ok && old != tabID {
		delete(e.tabNode, old)
		e.tabs.SetNodeID(old, "")
	}
	if old, ok := e.tabNode[tabID]; ok && old != nodeID {
		delete(e.nodeTab, old)
	}
	e.tabNode[tabID] = nodeID
	e.nodeTab[nodeID] = tabID
	e.tabs.SetNodeID(tabID, nodeID)
}

func (e *Engine) dissociate(tabID string) string {
	nodeID, ok := e.tabNode[tabID]
	if !ok {
		return ""
	}
	delete(e.tabNode, tabID)
	if e.nodeTab[nodeID] == tabID {
		delete(e.nodeTab, nodeID)
	}
	return nodeID
}

// rebuildAssociations recomputes the table from the registry, dropping links
// to nodes that no longer exist.
func (e *Engine) rebuildAssociations() {
	clear(e.tabNode)
	clear(e.nodeTab)
	for _, t := range e.tabs.Tabs() {
		if t.NodeID == "" {
			continue
		}
		if _, err := e.graph.GetNode(t.NodeID); err != nil {
			e.tabs.SetNodeID(t.ID, "")
			continue
		}
		e.associate(t.ID, t.NodeID)
	}
}

// closeAllTabs closes every tab, marking their nodes closed.
func (e *Engine) closeAllTabs() {
	if n := e.tabs.CloseAll(); n > 0 {
		e.logger.Debug("closed all tabs", "count", n)
	}
	clear(e.tabNode)
	clear(e.nodeTab)
}

// SwitchTab brings a tab to the foreground. Unknown ids return nil.
func (e *Engine) SwitchTab(ctx context.Context, tabID string) (*tabs.LiveTab, error) {
	return call(ctx, e, func(ctx context.Context) (*tabs.LiveTab, error) {
		return e.tabs.SwitchTab(tabID), nil
	})
}

// CloseTab closes a tab. Its node is kept and marked closed.
func (e *Engine) CloseTab(ctx context.Context, tabID string) (bool, error) {
	return call(ctx, e, func(ctx context.Context) (bool, error) {
		return e.tabs.CloseTab(tabID), nil
	})
}

// NavigateTab loads url in an existing tab.
func (e *Engine) NavigateTab(ctx context.Context, tabID, url string) error {
	return e.do(ctx, func(ctx context.Context) error {
		return e.tabs.NavigateTab(ctx, tabID, url)
	})
}

func (e *Engine) GoBack(ctx context.Context, tabID string) error {
	return e.do(ctx, func(ctx context.Context) error { return e.tabs.GoBack(ctx, tabID) })
}

func (e *Engine) GoForward(ctx context.Context, tabID string) error {
	return e.do(ctx, func(ctx context.Context) error { return e.tabs.GoForward(ctx, tabID) })
}

func (e *Engine) Reload(ctx context.Context, tabID string) error {
	return e.do(ctx, func(ctx context.Context) error { return e.tabs.Reload(ctx, tabID) })
}

// Tabs returns every open tab in creation order.
func (e *Engine) Tabs(ctx context.Context) ([]*tabs.LiveTab, error) {
	return call(ctx, e, func(context.Context) ([]*tabs.LiveTab, error) {
		return e.tabs.Tabs(), nil
	})
}

// ActiveTab returns the foreground tab, or nil.
func (e *Engine) ActiveTab(ctx context.Context) (*tabs.LiveTab, error) {
	return call(ctx, e, func(context.Context) (*tabs.LiveTab, error) {
		return e.tabs.Active(), nil
	})
}

// SetWindowBounds records the host window bounds and resizes the foreground
// view.
func (e *Engine) SetWindowBounds(ctx context.Context, b tabs.Bounds) error {
	return e.do(ctx, func(context.Context) error {
		e.tabs.SetWindowBounds(b)
		return nil
	})
}

// ReopenNode opens a new tab on the node's url. The node becomes active and
// points at the new tab; calling it twice yields two tabs and the node keeps
// the latest.
func (e *Engine) ReopenNode(ctx context.Context, nodeID string) (*tabs.LiveTab, error) {
	return call(ctx, e, func(ctx context.Context) (*tabs.LiveTab, error) {
		return e.openNode(ctx, nodeID, "")
	})
}

// FocusNode brings the node's tab to the foreground, reopening the node when
// its tab is gone.
func (e *Engine) FocusNode(ctx context.Context, nodeID string) (*tabs.LiveTab, error) {
	return call(ctx, e, func(ctx context.Context) (*tabs.LiveTab, error) {
		if _, err := e.graph.GetNode(nodeID); err != nil {
			return nil, err
		}
		if tabID, ok := e.nodeTab[nodeID]; ok {
			if tab := e.tabs.SwitchTab(tabID); tab != nil {
				return tab, nil
			}
			e.logger.Info("healing tab association", "node_id", nodeID, "tab_id", tabID,
				"error", model.ErrStaleAssociation)
			e.dissociate(tabID)
		}
		return e.openNode(ctx, nodeID, "")
	})
}

func tabInfo(t *tabs.LiveTab) *events.TabInfo {
	return &events.TabInfo{
		ID:           t.ID,
		NodeID:       t.NodeID,
		URL:          t.URL,
		Title:        t.Title,
		Favicon:      t.Favicon,
		IsActive:     t.IsActive,
		Loading:      t.Loading,
		CanGoBack:    t.CanGoBack,
		CanGoForward: t.CanGoForward,
	}
}

// listener applies tab registry callbacks to the graph. It runs on the
// engine goroutine.
type listener struct{ e *Engine }

func (l listener) TabCreated(tab *tabs.LiveTab) {
	l.e.publish(events.TopicTabCreated, events.TabEvent{Tab: tabInfo(tab)})
}

func (l listener) TabUpdated(tab *tabs.LiveTab, ev tabs.ViewEvent) {
	e := l.e
	e.publish(events.TopicTabUpdated, events.TabEvent{Tab: tabInfo(tab)})

	nodeID, ok := e.tabNode[tab.ID]
	if !ok {
		return
	}
	var patch model.NodePatch
	switch ev.Kind {
	case tabs.ViewURLChanged:
		patch.URL = &tab.URL
	case tabs.ViewTitleChanged:
		patch.Title = &tab.Title
	case tabs.ViewFaviconChanged:
		patch.Favicon = &tab.Favicon
	case tabs.ViewLoadFinished:
		patch.URL = &tab.URL
		patch.Title = &tab.Title
		e.captureAsync(tab.ID, nodeID)
	default:
		return
	}
	_, err := e.graph.UpdateNode(e.ctx, nodeID, patch)
	e.note(err)
}

func (l listener) TabActivated(tab *tabs.LiveTab) {
	e := l.e
	e.publish(events.TopicTabActivated, events.TabEvent{Tab: tabInfo(tab)})

	nodeID, ok := e.tabNode[tab.ID]
	if !ok {
		return
	}
	now := e.opts.Now().UTC()
	active := model.NodeActive
	_, err := e.graph.UpdateNode(e.ctx, nodeID, model.NodePatch{Status: &active, LastActiveAt: &now})
	e.note(err)
}

func (l listener) TabClosed(tab *tabs.LiveTab) {
	e := l.e
	e.publish(events.TopicTabClosed, events.TabEvent{Tab: tabInfo(tab)})

	nodeID := e.dissociate(tab.ID)
	if nodeID == "" {
		return
	}
	now := e.opts.Now().UTC()
	closed := model.NodeClosed
	noTab := ""
	_, err := e.graph.UpdateNode(e.ctx, nodeID, model.NodePatch{Status: &closed, ClosedAt: &now, TabID: &noTab})
	e.note(err)
}

// OpenRequested turns a popup into a child tab of the foreground tab.
func (l listener) OpenRequested(opener *tabs.LiveTab, url string) {
	e := l.e
	e.logger.Debug("popup opened as tab", "opener", opener.ID, "url", url)
	_, err := e.createTab(e.ctx, url, "")
	e.note(err)
}
