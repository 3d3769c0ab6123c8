package graph

import (
	"context"
	"fmt"
	"strings"

	"github.com/alfredjeanlab/synapse/internal/events"
	"github.com/alfredjeanlab/synapse/internal/idgen"
	"github.com/alfredjeanlab/synapse/internal/model"
)

// SaveTree freezes a copy of the given nodes and of the edges whose endpoints
// are both members. Unknown ids are skipped. An empty name becomes
// "Tree <n>".
func (m *Manager) SaveTree(ctx context.Context, name string, nodeIDs []string) (*model.SavedTree, error) {
	members := make(map[string]bool, len(nodeIDs))
	tree := &model.SavedTree{
		ID:        idgen.New(idgen.Tree),
		Name:      strings.TrimSpace(name),
		SessionID: m.snap.CurrentSessionID,
		Nodes:     []*model.Node{},
		Edges:     []*model.Edge{},
		CreatedAt: m.timestamp(),
	}
	for _, id := range nodeIDs {
		if members[id] {
			continue
		}
		_, n := m.findNode(id)
		if n == nil {
			m.logger.Debug("skipping unknown node in tree", "node_id", id)
			continue
		}
		members[id] = true
		tree.Nodes = append(tree.Nodes, n.Clone())
	}
	if len(tree.Nodes) == 0 {
		return nil, &model.ValidationError{Errors: []model.FieldError{{Field: "nodeIds", Message: "no known nodes"}}}
	}
	tree.SessionID = tree.Nodes[0].SessionID
	for _, e := range m.snap.Edges {
		if members[e.Source] && members[e.Target] {
			tree.Edges = append(tree.Edges, e.Clone())
		}
	}
	if tree.Name == "" {
		tree.Name = fmt.Sprintf("Tree %d", len(m.snap.SavedTrees)+1)
	}

	m.snap.SavedTrees = append(m.snap.SavedTrees, tree)

	out := tree.Clone()
	if err := m.persist(ctx); err != nil {
		return out, err
	}
	m.publish(ctx, events.TopicTreeSaved, events.TreeSaved{Tree: summarize(out)})
	return out, nil
}

// LoadTree returns the frozen copy of a saved tree.
func (m *Manager) LoadTree(id string) (*model.SavedTree, error) {
	_, t := m.findTree(id)
	if t == nil {
		return nil, model.NotFoundf("tree %s", id)
	}
	return t.Clone(), nil
}

// DeleteTree removes a saved tree. An unknown id is a logged no-op.
func (m *Manager) DeleteTree(ctx context.Context, id string) error {
	idx, t := m.findTree(id)
	if t == nil {
		m.logger.Debug("delete for unknown tree ignored", "tree_id", id)
		return nil
	}
	m.snap.SavedTrees = append(m.snap.SavedTrees[:idx], m.snap.SavedTrees[idx+1:]...)
	if err := m.persist(ctx); err != nil {
		return err
	}
	m.publish(ctx, events.TopicTreeDeleted, events.TreeDeleted{TreeID: id})
	return nil
}

// SavedTrees lists the trees saved from a session ("" = current).
func (m *Manager) SavedTrees(sessionID string) []*model.TreeSummary {
	sessionID = m.resolveSession(sessionID)
	out := []*model.TreeSummary{}
	for _, t := range m.snap.SavedTrees {
		if t.SessionID == sessionID {
			out = append(out, summarize(t))
		}
	}
	return out
}

func summarize(t *model.SavedTree) *model.TreeSummary {
	return &model.TreeSummary{
		ID:        t.ID,
		Name:      t.Name,
		SessionID: t.SessionID,
		NodeCount: len(t.Nodes),
		EdgeCount: len(t.Edges),
		CreatedAt: t.CreatedAt,
	}
}
