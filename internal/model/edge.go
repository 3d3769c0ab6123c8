package model

import "time"

// EdgeType categorizes how one page led to another.
type EdgeType string

const (
	EdgeNavigation EdgeType = "navigation"
	EdgeReference  EdgeType = "reference"
	EdgeManual     EdgeType = "manual"
)

// IsValid checks whether the edge type is a known value.
func (t EdgeType) IsValid() bool {
	switch t {
	case EdgeNavigation, EdgeReference, EdgeManual:
		return true
	}
	return false
}

// Edge is a directed relationship from a parent node to a child node.
// Edges are never updated after creation, only deleted.
type Edge struct {
	ID        string    `json:"id"`
	Source    string    `json:"source"`
	Target    string    `json:"target"`
	Type      EdgeType  `json:"type"`
	SessionID string    `json:"sessionId"`
	CreatedAt time.Time `json:"createdAt"`
}

// Clone returns a copy of the edge.
func (e *Edge) Clone() *Edge {
	if e == nil {
		return nil
	}
	c := *e
	return &c
}

// Touches reports whether the edge has nodeID as source or target.
func (e *Edge) Touches(nodeID string) bool {
	return e.Source == nodeID || e.Target == nodeID
}
