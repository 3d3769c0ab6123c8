package server

import (
	"context"
	"time"

	"github.com/alfredjeanlab/synapse/internal/model"
	"github.com/alfredjeanlab/synapse/internal/tabs"
)

// Params accepted by the commands. Field names match the JSON the UI sends.

type tabParams struct {
	TabID string `json:"tabId"`
}

type createTabParams struct {
	URL    string `json:"url"`
	NodeID string `json:"nodeId,omitempty"`
}

type navigateParams struct {
	TabID string `json:"tabId"`
	URL   string `json:"url"`
}

type nodeParams struct {
	NodeID string `json:"nodeId"`
}

type positionParams struct {
	NodeID         string         `json:"nodeId"`
	Position       model.Position `json:"position"`
	UserPositioned bool           `json:"userPositioned"`
}

type sessionParams struct {
	SessionID string `json:"sessionId,omitempty"`
}

type createSessionParams struct {
	Name string `json:"name"`
}

type renameSessionParams struct {
	SessionID string `json:"sessionId"`
	Name      string `json:"name"`
}

type saveTreeParams struct {
	Name    string   `json:"name"`
	NodeIDs []string `json:"nodeIds"`
}

type treeParams struct {
	TreeID string `json:"treeId"`
}

type cleanupParams struct {
	// OlderThan is a Go duration ("720h"); OlderThanDays wins when set.
	OlderThan     string `json:"olderThan,omitempty"`
	OlderThanDays int    `json:"olderThanDays,omitempty"`
}

type windowParams struct {
	WindowID  string `json:"windowId"`
	SessionID string `json:"sessionId,omitempty"`
}

type noParams struct{}

// Results that are not model types.

type closeTabResult struct {
	Closed bool `json:"closed"`
}

type cleanupResult struct {
	Deleted int `json:"deleted"`
}

type windowResult struct {
	WindowID  string `json:"windowId"`
	SessionID string `json:"sessionId"`
}

type okResult struct {
	OK bool `json:"ok"`
}

var okReply = okResult{OK: true}

func (s *Server) commandTable() map[string]commandFunc {
	return map[string]commandFunc{
		"health": bind(s.health),

		"createTab":       bind(s.createTab),
		"switchTab":       bind(s.switchTab),
		"closeTab":        bind(s.closeTab),
		"navigateTab":     bind(s.navigateTab),
		"goBack":          bind(s.goBack),
		"goForward":       bind(s.goForward),
		"reload":          bind(s.reload),
		"getAllTabs":      bind(s.getAllTabs),
		"getActiveTab":    bind(s.getActiveTab),
		"setWindowBounds": bind(s.setWindowBounds),

		"getNode":            bind(s.getNode),
		"deleteNode":         bind(s.deleteNode),
		"reopenNode":         bind(s.reopenNode),
		"focusNode":          bind(s.focusNode),
		"updateNodePosition": bind(s.updateNodePosition),
		"extractContent":     bind(s.extractContent),

		"getGraphData": bind(s.getGraphData),
		"getTimeline":  bind(s.getTimeline),
		"getSnapshot":  bind(s.getSnapshot),

		"saveTree":      bind(s.saveTree),
		"loadTree":      bind(s.loadTree),
		"deleteTree":    bind(s.deleteTree),
		"getSavedTrees": bind(s.getSavedTrees),

		"getSessions":       bind(s.getSessions),
		"getCurrentSession": bind(s.getCurrentSession),
		"createSession":     bind(s.createSession),
		"switchSession":     bind(s.switchSession),
		"deleteSession":     bind(s.deleteSession),
		"renameSession":     bind(s.renameSession),
		"exportSession":     bind(s.exportSession),
		"importSession":     bind(s.importSession),

		"attachWindow": bind(s.attachWindow),
		"detachWindow": bind(s.detachWindow),
		"getWindows":   bind(s.getWindows),

		"clearAllData": bind(s.clearAllData),
		"cleanup":      bind(s.cleanup),
	}
}

func (s *Server) health(context.Context, noParams) (any, error) {
	return map[string]string{"status": "ok"}, nil
}

func (s *Server) createTab(ctx context.Context, p createTabParams) (any, error) {
	return s.engine.CreateTab(ctx, p.URL, p.NodeID)
}

func (s *Server) switchTab(ctx context.Context, p tabParams) (any, error) {
	if err := required("tabId", p.TabID); err != nil {
		return nil, err
	}
	return s.engine.SwitchTab(ctx, p.TabID)
}

func (s *Server) closeTab(ctx context.Context, p tabParams) (any, error) {
	if err := required("tabId", p.TabID); err != nil {
		return nil, err
	}
	closed, err := s.engine.CloseTab(ctx, p.TabID)
	return closeTabResult{Closed: closed}, err
}

func (s *Server) navigateTab(ctx context.Context, p navigateParams) (any, error) {
	if err := required("tabId", p.TabID); err != nil {
		return nil, err
	}
	if err := required("url", p.URL); err != nil {
		return nil, err
	}
	return okReply, s.engine.NavigateTab(ctx, p.TabID, p.URL)
}

func (s *Server) goBack(ctx context.Context, p tabParams) (any, error) {
	return okReply, s.engine.GoBack(ctx, p.TabID)
}

func (s *Server) goForward(ctx context.Context, p tabParams) (any, error) {
	return okReply, s.engine.GoForward(ctx, p.TabID)
}

func (s *Server) reload(ctx context.Context, p tabParams) (any, error) {
	return okReply, s.engine.Reload(ctx, p.TabID)
}

func (s *Server) getAllTabs(ctx context.Context, _ noParams) (any, error) {
	return s.engine.Tabs(ctx)
}

func (s *Server) getActiveTab(ctx context.Context, _ noParams) (any, error) {
	return s.engine.ActiveTab(ctx)
}

func (s *Server) setWindowBounds(ctx context.Context, b tabs.Bounds) (any, error) {
	if b.Width < 0 || b.Height < 0 {
		return nil, inputError("bounds must not be negative")
	}
	return okReply, s.engine.SetWindowBounds(ctx, b)
}

func (s *Server) getNode(ctx context.Context, p nodeParams) (any, error) {
	if err := required("nodeId", p.NodeID); err != nil {
		return nil, err
	}
	return s.engine.GetNode(ctx, p.NodeID)
}

func (s *Server) deleteNode(ctx context.Context, p nodeParams) (any, error) {
	if err := required("nodeId", p.NodeID); err != nil {
		return nil, err
	}
	return okReply, s.engine.DeleteNode(ctx, p.NodeID)
}

func (s *Server) reopenNode(ctx context.Context, p nodeParams) (any, error) {
	if err := required("nodeId", p.NodeID); err != nil {
		return nil, err
	}
	return s.engine.ReopenNode(ctx, p.NodeID)
}

func (s *Server) focusNode(ctx context.Context, p nodeParams) (any, error) {
	if err := required("nodeId", p.NodeID); err != nil {
		return nil, err
	}
	return s.engine.FocusNode(ctx, p.NodeID)
}

func (s *Server) updateNodePosition(ctx context.Context, p positionParams) (any, error) {
	if err := required("nodeId", p.NodeID); err != nil {
		return nil, err
	}
	return okReply, s.engine.UpdateNodePosition(ctx, p.NodeID, p.Position, p.UserPositioned)
}

func (s *Server) extractContent(ctx context.Context, p nodeParams) (any, error) {
	if err := required("nodeId", p.NodeID); err != nil {
		return nil, err
	}
	return s.engine.ExtractContent(ctx, p.NodeID)
}

func (s *Server) getGraphData(ctx context.Context, p sessionParams) (any, error) {
	return s.engine.GraphData(ctx, p.SessionID)
}

func (s *Server) getTimeline(ctx context.Context, p sessionParams) (any, error) {
	return s.engine.Timeline(ctx, p.SessionID)
}

func (s *Server) getSnapshot(ctx context.Context, _ noParams) (any, error) {
	return s.engine.Snapshot(ctx)
}

func (s *Server) saveTree(ctx context.Context, p saveTreeParams) (any, error) {
	if len(p.NodeIDs) == 0 {
		return nil, inputError("nodeIds is required")
	}
	return s.engine.SaveTree(ctx, p.Name, p.NodeIDs)
}

func (s *Server) loadTree(ctx context.Context, p treeParams) (any, error) {
	if err := required("treeId", p.TreeID); err != nil {
		return nil, err
	}
	return s.engine.LoadTree(ctx, p.TreeID)
}

func (s *Server) deleteTree(ctx context.Context, p treeParams) (any, error) {
	if err := required("treeId", p.TreeID); err != nil {
		return nil, err
	}
	return okReply, s.engine.DeleteTree(ctx, p.TreeID)
}

func (s *Server) getSavedTrees(ctx context.Context, p sessionParams) (any, error) {
	return s.engine.SavedTrees(ctx, p.SessionID)
}

func (s *Server) getSessions(ctx context.Context, _ noParams) (any, error) {
	return s.engine.Sessions(ctx)
}

func (s *Server) getCurrentSession(ctx context.Context, _ noParams) (any, error) {
	return s.engine.CurrentSession(ctx)
}

func (s *Server) createSession(ctx context.Context, p createSessionParams) (any, error) {
	return s.engine.CreateSession(ctx, p.Name)
}

func (s *Server) switchSession(ctx context.Context, p sessionParams) (any, error) {
	if err := required("sessionId", p.SessionID); err != nil {
		return nil, err
	}
	if err := s.engine.SwitchSession(ctx, p.SessionID); err != nil {
		return nil, err
	}
	return s.engine.CurrentSession(ctx)
}

func (s *Server) deleteSession(ctx context.Context, p sessionParams) (any, error) {
	if err := required("sessionId", p.SessionID); err != nil {
		return nil, err
	}
	return okReply, s.engine.DeleteSession(ctx, p.SessionID)
}

func (s *Server) renameSession(ctx context.Context, p renameSessionParams) (any, error) {
	if err := required("sessionId", p.SessionID); err != nil {
		return nil, err
	}
	return s.engine.RenameSession(ctx, p.SessionID, p.Name)
}

func (s *Server) exportSession(ctx context.Context, p sessionParams) (any, error) {
	return s.engine.ExportSession(ctx, p.SessionID)
}

func (s *Server) importSession(ctx context.Context, p *model.Export) (any, error) {
	if p == nil {
		return nil, model.InvalidImportf("empty payload")
	}
	return s.engine.ImportSession(ctx, p)
}

func (s *Server) attachWindow(ctx context.Context, p windowParams) (any, error) {
	if err := required("windowId", p.WindowID); err != nil {
		return nil, err
	}
	sessionID, err := s.engine.AttachWindow(ctx, p.WindowID, p.SessionID)
	if err != nil {
		return nil, err
	}
	if s.presence != nil {
		s.presence.Touch(p.WindowID, sessionID)
	}
	return windowResult{WindowID: p.WindowID, SessionID: sessionID}, nil
}

func (s *Server) detachWindow(ctx context.Context, p windowParams) (any, error) {
	if err := required("windowId", p.WindowID); err != nil {
		return nil, err
	}
	if s.presence != nil {
		s.presence.Remove(p.WindowID)
	}
	return okReply, s.engine.DetachWindow(ctx, p.WindowID)
}

func (s *Server) getWindows(context.Context, noParams) (any, error) {
	if s.presence == nil {
		return []any{}, nil
	}
	return s.presence.Roster(0), nil
}

func (s *Server) clearAllData(ctx context.Context, _ noParams) (any, error) {
	return okReply, s.engine.ClearAllData(ctx)
}

func (s *Server) cleanup(ctx context.Context, p cleanupParams) (any, error) {
	var olderThan time.Duration
	switch {
	case p.OlderThanDays > 0:
		olderThan = time.Duration(p.OlderThanDays) * 24 * time.Hour
	case p.OlderThan != "":
		d, err := time.ParseDuration(p.OlderThan)
		if err != nil || d <= 0 {
			return nil, inputError("olderThan must be a positive duration")
		}
		olderThan = d
	}
	n, err := s.engine.Cleanup(ctx, olderThan)
	return cleanupResult{Deleted: n}, err
}
