package model

import "time"

// GraphData is the node/edge view of one session.
type GraphData struct {
	Nodes []*Node `json:"nodes"`
	Edges []*Edge `json:"edges"`
}

// TimelineEventType identifies what happened at a point on the timeline.
type TimelineEventType string

const (
	EventNodeCreated TimelineEventType = "node_created"
	EventNodeClosed  TimelineEventType = "node_closed"
	EventEdgeCreated TimelineEventType = "edge_created"
)

// TimelineEvent is derived from nodes and edges at read time; it is never stored.
// Payload is a *Node for node events and an *Edge for edge events.
type TimelineEvent struct {
	Type      TimelineEventType `json:"type"`
	Timestamp time.Time         `json:"timestamp"`
	Payload   any               `json:"payload"`
}

// Timeline is the time-ordered projection of a session.
type Timeline struct {
	Events    []TimelineEvent `json:"events"`
	StartTime time.Time       `json:"startTime"`
	EndTime   time.Time       `json:"endTime"`
}

// Snapshot is the persisted layout: every collection plus the current session.
type Snapshot struct {
	Nodes            []*Node      `json:"nodes"`
	Edges            []*Edge      `json:"edges"`
	Sessions         []*Session   `json:"sessions"`
	SavedTrees       []*SavedTree `json:"savedTrees"`
	CurrentSessionID string       `json:"currentSessionId"`
}

// Clone returns a deep copy of the snapshot.
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}
	c := &Snapshot{
		Nodes:            CloneNodes(s.Nodes),
		Edges:            CloneEdges(s.Edges),
		Sessions:         make([]*Session, 0, len(s.Sessions)),
		SavedTrees:       make([]*SavedTree, 0, len(s.SavedTrees)),
		CurrentSessionID: s.CurrentSessionID,
	}
	for _, sess := range s.Sessions {
		c.Sessions = append(c.Sessions, sess.Clone())
	}
	for _, t := range s.SavedTrees {
		c.SavedTrees = append(c.SavedTrees, t.Clone())
	}
	return c
}

// CloneNodes deep-copies a node slice. The result is never nil.
func CloneNodes(nodes []*Node) []*Node {
	out := make([]*Node, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n.Clone())
	}
	return out
}

// CloneEdges copies an edge slice. The result is never nil.
func CloneEdges(edges []*Edge) []*Edge {
	out := make([]*Edge, 0, len(edges))
	for _, e := range edges {
		out = append(out, e.Clone())
	}
	return out
}
