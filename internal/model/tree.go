package model

import "time"

// SavedTree is a named, frozen copy of a node subset and the edges whose
// endpoints are both in that subset.
type SavedTree struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	SessionID string    `json:"sessionId,omitempty"`
	Nodes     []*Node   `json:"nodes"`
	Edges     []*Edge   `json:"edges"`
	CreatedAt time.Time `json:"createdAt"`
}

// Clone returns a deep copy of the tree.
func (t *SavedTree) Clone() *SavedTree {
	if t == nil {
		return nil
	}
	c := *t
	c.Nodes = CloneNodes(t.Nodes)
	c.Edges = CloneEdges(t.Edges)
	return &c
}

// TreeSummary is the list view of a saved tree.
type TreeSummary struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	SessionID string    `json:"sessionId,omitempty"`
	NodeCount int       `json:"nodeCount"`
	EdgeCount int       `json:"edgeCount"`
	CreatedAt time.Time `json:"createdAt"`
}
