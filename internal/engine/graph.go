package engine

import (
	"context"
	"time"

	"github.com/alfredjeanlab/synapse/internal/extract"
	"github.com/alfredjeanlab/synapse/internal/model"
)

// GetNode returns the node with id.
func (e *Engine) GetNode(ctx context.Context, id string) (*model.Node, error) {
	return call(ctx, e, func(context.Context) (*model.Node, error) {
		return e.graph.GetNode(id)
	})
}

// GraphData returns a session's nodes and edges; "" selects the current
// session.
func (e *Engine) GraphData(ctx context.Context, sessionID string) (*model.GraphData, error) {
	return call(ctx, e, func(context.Context) (*model.GraphData, error) {
		return e.graph.GraphData(sessionID), nil
	})
}

// Timeline returns a session's history events in order.
func (e *Engine) Timeline(ctx context.Context, sessionID string) (*model.Timeline, error) {
	return call(ctx, e, func(context.Context) (*model.Timeline, error) {
		return e.graph.Timeline(sessionID), nil
	})
}

// DeleteNode removes a node and its edges. A tab showing the node stays open
// but no longer feeds the graph.
func (e *Engine) DeleteNode(ctx context.Context, id string) error {
	return e.do(ctx, func(ctx context.Context) error {
		if tabID, ok := e.nodeTab[id]; ok {
			e.dissociate(tabID)
			e.tabs.SetNodeID(tabID, "")
		}
		if p, ok := e.positions[id]; ok {
			p.timer.Stop()
			delete(e.positions, id)
		}
		return e.graph.DeleteNode(ctx, id)
	})
}

func (e *Engine) SaveTree(ctx context.Context, name string, nodeIDs []string) (*model.SavedTree, error) {
	return call(ctx, e, func(ctx context.Context) (*model.SavedTree, error) {
		return e.graph.SaveTree(ctx, name, nodeIDs)
	})
}

func (e *Engine) LoadTree(ctx context.Context, id string) (*model.SavedTree, error) {
	return call(ctx, e, func(context.Context) (*model.SavedTree, error) {
		return e.graph.LoadTree(id)
	})
}

func (e *Engine) DeleteTree(ctx context.Context, id string) error {
	return e.do(ctx, func(ctx context.Context) error {
		return e.graph.DeleteTree(ctx, id)
	})
}

// SavedTrees lists tree summaries; "" lists every session's trees.
func (e *Engine) SavedTrees(ctx context.Context, sessionID string) ([]*model.TreeSummary, error) {
	return call(ctx, e, func(context.Context) ([]*model.TreeSummary, error) {
		return e.graph.SavedTrees(sessionID), nil
	})
}

// Sessions lists every session with fresh counts.
func (e *Engine) Sessions(ctx context.Context) ([]*model.Session, error) {
	return call(ctx, e, func(context.Context) ([]*model.Session, error) {
		return e.graph.Sessions().List(), nil
	})
}

// CurrentSession returns the current session.
func (e *Engine) CurrentSession(ctx context.Context) (*model.Session, error) {
	return call(ctx, e, func(context.Context) (*model.Session, error) {
		return e.graph.Sessions().Current(), nil
	})
}

// CreateSession adds a session without switching to it.
func (e *Engine) CreateSession(ctx context.Context, name string) (*model.Session, error) {
	return call(ctx, e, func(ctx context.Context) (*model.Session, error) {
		return e.graph.Sessions().Create(ctx, name)
	})
}

// SwitchSession closes every live tab, which closes their nodes in the old
// session, then makes id current.
func (e *Engine) SwitchSession(ctx context.Context, id string) error {
	return e.do(ctx, func(ctx context.Context) error {
		reg := e.graph.Sessions()
		if _, err := reg.Get(id); err != nil {
			return err
		}
		if reg.CurrentID() == id {
			return nil
		}
		e.closeAllTabs()
		err := reg.SwitchTo(ctx, id)
		e.rebuildAssociations()
		return err
	})
}

// DeleteSession removes a session and everything in it. Deleting the current
// session closes every live tab first.
func (e *Engine) DeleteSession(ctx context.Context, id string) error {
	return e.do(ctx, func(ctx context.Context) error {
		reg := e.graph.Sessions()
		if _, err := reg.Get(id); err != nil {
			return err
		}
		if reg.CurrentID() == id {
			e.closeAllTabs()
		}
		err := reg.Delete(ctx, id)
		e.rebuildAssociations()
		return err
	})
}

func (e *Engine) RenameSession(ctx context.Context, id, name string) (*model.Session, error) {
	return call(ctx, e, func(ctx context.Context) (*model.Session, error) {
		return e.graph.Sessions().Rename(ctx, id, name)
	})
}

// ExportSession builds the export envelope for a session.
func (e *Engine) ExportSession(ctx context.Context, sessionID string) (*model.Export, error) {
	return call(ctx, e, func(context.Context) (*model.Export, error) {
		return e.graph.ExportSession(sessionID)
	})
}

// ImportSession creates a new session holding the exported graph.
func (e *Engine) ImportSession(ctx context.Context, data *model.Export) (*model.Session, error) {
	return call(ctx, e, func(ctx context.Context) (*model.Session, error) {
		return e.graph.ImportSession(ctx, data)
	})
}

// Snapshot returns a copy of the whole persisted state.
func (e *Engine) Snapshot(ctx context.Context) (*model.Snapshot, error) {
	return call(ctx, e, func(context.Context) (*model.Snapshot, error) {
		return e.graph.Snapshot(), nil
	})
}

// ClearAllData closes every tab, then wipes the graph and recreates a default
// session.
func (e *Engine) ClearAllData(ctx context.Context) error {
	return e.do(ctx, func(ctx context.Context) error {
		e.closeAllTabs()
		e.dropPositions()
		return e.graph.ClearAll(ctx)
	})
}

// Cleanup deletes nodes closed longer than olderThan ago; zero uses the
// configured retention.
func (e *Engine) Cleanup(ctx context.Context, olderThan time.Duration) (int, error) {
	if olderThan <= 0 {
		olderThan = e.opts.Retention
	}
	return call(ctx, e, func(ctx context.Context) (int, error) {
		return e.graph.CleanupOldNodes(ctx, e.opts.Now().Add(-olderThan))
	})
}

// ExtractContent returns the readable content of the node's live page. The
// page read and extraction run off the engine goroutine.
func (e *Engine) ExtractContent(ctx context.Context, nodeID string) (*extract.Content, error) {
	type target struct {
		page extract.Page
		read func(context.Context) (string, error)
	}
	t, err := call(ctx, e, func(context.Context) (*target, error) {
		node, err := e.graph.GetNode(nodeID)
		if err != nil {
			return nil, err
		}
		tabID, ok := e.nodeTab[nodeID]
		if !ok {
			return nil, model.NotFoundf("live tab for node %s", nodeID)
		}
		reader, err := e.tabs.Reader(tabID)
		if err != nil {
			return nil, err
		}
		return &target{
			page: extract.Page{URL: node.URL, Title: node.Title},
			read: reader.HTML,
		}, nil
	})
	if err != nil {
		return nil, err
	}
	html, err := t.read(ctx)
	if err != nil {
		e.logger.Warn("failed to read page markup", "node_id", nodeID, "error", err)
	}
	t.page.HTML = html
	return extract.WithFallback(ctx, e.opts.Extractor, t.page), nil
}

// AttachWindow records that a UI window shows sessionID; "" or an unknown id
// maps to the current session. It returns the session the window shows.
func (e *Engine) AttachWindow(ctx context.Context, windowID, sessionID string) (string, error) {
	return call(ctx, e, func(context.Context) (string, error) {
		reg := e.graph.Sessions()
		reg.AddWindow(windowID, sessionID)
		id, _ := reg.WindowSession(windowID)
		return id, nil
	})
}

// DetachWindow forgets a UI window.
func (e *Engine) DetachWindow(ctx context.Context, windowID string) error {
	return e.do(ctx, func(context.Context) error {
		e.graph.Sessions().RemoveWindow(windowID)
		return nil
	})
}
