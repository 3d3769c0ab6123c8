package graph

import (
	"sort"

	"github.com/alfredjeanlab/synapse/internal/model"
)

// GraphData returns the session's nodes and the edges whose endpoints are
// both among them ("" = current session). Dangling edges left by imports or
// cleanup are filtered here rather than treated as corruption.
func (m *Manager) GraphData(sessionID string) *model.GraphData {
	sessionID = m.resolveSession(sessionID)
	nodes := m.Nodes(sessionID)
	present := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		present[n.ID] = true
	}
	edges := []*model.Edge{}
	for _, e := range m.snap.Edges {
		if e.SessionID == sessionID && present[e.Source] && present[e.Target] {
			edges = append(edges, e.Clone())
		}
	}
	return &model.GraphData{Nodes: nodes, Edges: edges}
}

// Timeline projects the session onto creation and closure events sorted by
// timestamp. Ties keep insertion order, nodes before edges. An empty timeline
// has startTime = endTime = now.
func (m *Manager) Timeline(sessionID string) *model.Timeline {
	data := m.GraphData(sessionID)

	events := make([]model.TimelineEvent, 0, len(data.Nodes)+len(data.Edges))
	for _, n := range data.Nodes {
		events = append(events, model.TimelineEvent{Type: model.EventNodeCreated, Timestamp: n.CreatedAt, Payload: n})
		if n.Status == model.NodeClosed && n.ClosedAt != nil {
			events = append(events, model.TimelineEvent{Type: model.EventNodeClosed, Timestamp: *n.ClosedAt, Payload: n})
		}
	}
	for _, e := range data.Edges {
		events = append(events, model.TimelineEvent{Type: model.EventEdgeCreated, Timestamp: e.CreatedAt, Payload: e})
	}
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Timestamp.Before(events[j].Timestamp)
	})

	tl := &model.Timeline{Events: events}
	if len(events) == 0 {
		now := m.timestamp()
		tl.StartTime, tl.EndTime = now, now
		return tl
	}
	tl.StartTime = events[0].Timestamp
	tl.EndTime = events[len(events)-1].Timestamp
	return tl
}
