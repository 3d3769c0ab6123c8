package graph

import (
	"context"
	"fmt"

	"github.com/alfredjeanlab/synapse/internal/events"
	"github.com/alfredjeanlab/synapse/internal/idgen"
	"github.com/alfredjeanlab/synapse/internal/model"
)

// AddNode inserts a node. Missing fields are defaulted: a generated id, the
// "New Tab" title, the current session, status active, and createdAt/updatedAt
// of now. A parent outside the node's session is dropped.
//
// On a PersistenceError the node is returned alongside the error; the insert
// stands in memory.
func (m *Manager) AddNode(ctx context.Context, in *model.Node) (*model.Node, error) {
	if in == nil {
		return nil, fmt.Errorf("node is required")
	}
	n := in.Clone()
	now := m.timestamp()

	if n.ID == "" {
		n.ID = idgen.New(idgen.Node)
	} else if _, existing := m.findNode(n.ID); existing != nil {
		return nil, &model.ValidationError{Errors: []model.FieldError{{Field: "id", Message: fmt.Sprintf("duplicate id %q", n.ID)}}}
	}
	if n.Title == "" {
		n.Title = model.DefaultNodeTitle
	}
	if n.SessionID == "" {
		n.SessionID = m.snap.CurrentSessionID
	}
	if n.Status == "" {
		n.Status = model.NodeActive
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = now
	}
	n.UpdatedAt = n.CreatedAt
	if err := model.ValidateNode(n); err != nil {
		return nil, err
	}
	if _, sess := m.findSession(n.SessionID); sess == nil {
		return nil, model.NotFoundf("session %s", n.SessionID)
	}
	if n.ParentID != "" {
		if _, parent := m.findNode(n.ParentID); parent == nil || parent.SessionID != n.SessionID {
			m.logger.Debug("dropping parent outside node session", "node_id", n.ID, "parent_id", n.ParentID)
			n.ParentID = ""
		}
	}

	m.snap.Nodes = append(m.snap.Nodes, n)

	out := n.Clone()
	if err := m.persist(ctx); err != nil {
		return out, err
	}
	m.publish(ctx, events.TopicNodeCreated, events.NodeCreated{Node: out})
	return out, nil
}

// UpdateNode merges patch into the node and bumps updatedAt. An unknown id is
// a logged no-op returning (nil, nil): tab events may race with deletion.
func (m *Manager) UpdateNode(ctx context.Context, id string, patch model.NodePatch) (*model.Node, error) {
	_, n := m.findNode(id)
	if n == nil {
		m.logger.Debug("update for unknown node ignored", "node_id", id)
		return nil, nil
	}
	if patch.Status != nil && !patch.Status.IsValid() {
		return nil, &model.ValidationError{Errors: []model.FieldError{{Field: "status", Message: fmt.Sprintf("invalid value %q", *patch.Status)}}}
	}
	patch.Apply(n)
	n.UpdatedAt = m.timestamp()

	out := n.Clone()
	if err := m.persist(ctx); err != nil {
		return out, err
	}
	m.publish(ctx, events.TopicNodeUpdated, events.NodeUpdated{Node: out, Changes: patchChanges(patch)})
	return out, nil
}

// DeleteNode removes the node and every edge that references it in one save.
// An unknown id is a logged no-op.
func (m *Manager) DeleteNode(ctx context.Context, id string) error {
	idx, n := m.findNode(id)
	if n == nil {
		m.logger.Debug("delete for unknown node ignored", "node_id", id)
		return nil
	}
	m.snap.Nodes = append(m.snap.Nodes[:idx], m.snap.Nodes[idx+1:]...)

	var removed []string
	m.snap.Edges = filter(m.snap.Edges, func(e *model.Edge) bool {
		if e.Touches(id) {
			removed = append(removed, e.ID)
			return false
		}
		return true
	})

	if err := m.persist(ctx); err != nil {
		return err
	}
	m.publish(ctx, events.TopicNodeDeleted, events.NodeDeleted{NodeID: id, SessionID: n.SessionID, DeletedEdges: removed})
	return nil
}

// GetNode returns a copy of the node with id.
func (m *Manager) GetNode(id string) (*model.Node, error) {
	_, n := m.findNode(id)
	if n == nil {
		return nil, model.NotFoundf("node %s", id)
	}
	return n.Clone(), nil
}

// Nodes returns copies of every node in the session ("" = current).
func (m *Manager) Nodes(sessionID string) []*model.Node {
	sessionID = m.resolveSession(sessionID)
	out := []*model.Node{}
	for _, n := range m.snap.Nodes {
		if n.SessionID == sessionID {
			out = append(out, n.Clone())
		}
	}
	return out
}

// AddEdge inserts a directed edge. Both endpoints must exist and share the
// edge's session; the session defaults to the source's and the type to
// navigation.
func (m *Manager) AddEdge(ctx context.Context, in *model.Edge) (*model.Edge, error) {
	if in == nil {
		return nil, fmt.Errorf("edge is required")
	}
	e := in.Clone()
	if e.ID == "" {
		e.ID = idgen.New(idgen.Edge)
	}
	if e.Type == "" {
		e.Type = model.EdgeNavigation
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = m.timestamp()
	}
	if err := model.ValidateEdge(e); err != nil {
		return nil, err
	}

	_, src := m.findNode(e.Source)
	if src == nil {
		return nil, model.NotFoundf("source node %s", e.Source)
	}
	_, dst := m.findNode(e.Target)
	if dst == nil {
		return nil, model.NotFoundf("target node %s", e.Target)
	}
	if e.SessionID == "" {
		e.SessionID = src.SessionID
	}
	if src.SessionID != e.SessionID || dst.SessionID != e.SessionID {
		return nil, &model.ValidationError{Errors: []model.FieldError{{Field: "sessionId", Message: "endpoints must belong to the edge's session"}}}
	}

	m.snap.Edges = append(m.snap.Edges, e)

	out := e.Clone()
	if err := m.persist(ctx); err != nil {
		return out, err
	}
	m.publish(ctx, events.TopicEdgeCreated, events.EdgeCreated{Edge: out})
	return out, nil
}

// patchChanges lists the fields a patch sets, for NodeUpdated events.
func patchChanges(p model.NodePatch) map[string]any {
	c := make(map[string]any)
	if p.TabID != nil {
		c["tabId"] = *p.TabID
	}
	if p.URL != nil {
		c["url"] = *p.URL
	}
	if p.Title != nil {
		c["title"] = *p.Title
	}
	if p.Favicon != nil {
		c["favicon"] = *p.Favicon
	}
	if p.Screenshot != nil {
		// Thumbnails are large; the node carries the value.
		c["screenshot"] = true
	}
	if p.Status != nil {
		c["status"] = *p.Status
	}
	if p.Position != nil {
		c["position"] = *p.Position
	}
	if p.UserPositioned != nil {
		c["userPositioned"] = *p.UserPositioned
	}
	if p.ClosedAt != nil {
		c["closedAt"] = *p.ClosedAt
	} else if p.ClearClosedAt {
		c["closedAt"] = nil
	}
	if p.ReopenedAt != nil {
		c["reopenedAt"] = *p.ReopenedAt
	}
	if p.LastActiveAt != nil {
		c["lastActiveAt"] = *p.LastActiveAt
	}
	return c
}
