package graph

import (
	"context"
	"time"

	"github.com/alfredjeanlab/synapse/internal/events"
	"github.com/alfredjeanlab/synapse/internal/model"
)

// CleanupOldNodes deletes closed nodes whose closedAt is before cutoff, in
// every session, cascading their edges. It returns the number removed.
func (m *Manager) CleanupOldNodes(ctx context.Context, cutoff time.Time) (int, error) {
	doomed := make(map[string]bool)
	for _, n := range m.snap.Nodes {
		if n.Status == model.NodeClosed && n.ClosedAt != nil && n.ClosedAt.Before(cutoff) {
			doomed[n.ID] = true
		}
	}
	if len(doomed) == 0 {
		return 0, nil
	}

	m.snap.Nodes = filter(m.snap.Nodes, func(n *model.Node) bool { return !doomed[n.ID] })
	m.snap.Edges = filter(m.snap.Edges, func(e *model.Edge) bool { return !doomed[e.Source] && !doomed[e.Target] })

	m.logger.Info("removed old closed nodes", "count", len(doomed), "cutoff", cutoff)
	if err := m.persist(ctx); err != nil {
		return len(doomed), err
	}
	m.publish(ctx, events.TopicCleanup, events.CleanupCompleted{Deleted: len(doomed), Cutoff: cutoff.UTC().Format(time.RFC3339)})
	return len(doomed), nil
}

// ClearAll wipes every collection and recreates a default session.
func (m *Manager) ClearAll(ctx context.Context) error {
	m.snap.Nodes = []*model.Node{}
	m.snap.Edges = []*model.Edge{}
	m.snap.SavedTrees = []*model.SavedTree{}
	m.snap.Sessions = []*model.Session{}
	for w := range m.sessions.windows {
		delete(m.sessions.windows, w)
	}
	sess := m.newDefaultSession()
	m.snap.CurrentSessionID = sess.ID

	if err := m.persist(ctx); err != nil {
		return err
	}
	m.publish(ctx, events.TopicCleared, events.GraphCleared{SessionID: sess.ID})
	return nil
}

// CloseOrphans marks every active node closed. It runs before any live tab
// exists, so such nodes lost their tab when the previous process ended.
// closedAt is set to the node's last update.
func (m *Manager) CloseOrphans(ctx context.Context) (int, error) {
	count := 0
	for _, n := range m.snap.Nodes {
		if n.Status != model.NodeActive {
			continue
		}
		closedAt := n.UpdatedAt
		n.Status = model.NodeClosed
		n.ClosedAt = &closedAt
		n.TabID = ""
		count++
	}
	if count == 0 {
		return 0, nil
	}
	m.logger.Info("closed nodes left active by a previous run", "count", count)
	return count, m.persist(ctx)
}
