package model

import "time"

// NodeStatus is the lifecycle state of a graph node.
type NodeStatus string

const (
	NodeActive   NodeStatus = "active"
	NodeClosed   NodeStatus = "closed"
	NodeImported NodeStatus = "imported"
)

// DefaultNodeTitle is the title a node carries until its page reports one.
const DefaultNodeTitle = "New Tab"

// String returns the string representation of the status.
func (s NodeStatus) String() string {
	return string(s)
}

// IsValid checks whether the status is a known value.
func (s NodeStatus) IsValid() bool {
	switch s {
	case NodeActive, NodeClosed, NodeImported:
		return true
	}
	return false
}

// Position is a 2D canvas coordinate.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Node is one observed page/tab instance.
type Node struct {
	ID             string     `json:"id"`
	TabID          string     `json:"tabId,omitempty"` // weak back-reference to a live tab
	URL            string     `json:"url"`
	Title          string     `json:"title"`
	Favicon        string     `json:"favicon,omitempty"`
	Screenshot     string     `json:"screenshot,omitempty"`
	SessionID      string     `json:"sessionId"`
	ParentID       string     `json:"parentId,omitempty"`
	Status         NodeStatus `json:"status"`
	Position       *Position  `json:"position,omitempty"`
	UserPositioned bool       `json:"userPositioned,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
	ClosedAt       *time.Time `json:"closedAt,omitempty"`
	ReopenedAt     *time.Time `json:"reopenedAt,omitempty"`
	LastActiveAt   *time.Time `json:"lastActiveAt,omitempty"`
}

// Clone returns a deep copy of the node.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	c := *n
	if n.Position != nil {
		p := *n.Position
		c.Position = &p
	}
	c.ClosedAt = cloneTime(n.ClosedAt)
	c.ReopenedAt = cloneTime(n.ReopenedAt)
	c.LastActiveAt = cloneTime(n.LastActiveAt)
	return &c
}

// NodePatch holds a partial node update. Nil fields are left untouched.
type NodePatch struct {
	TabID          *string     `json:"tabId,omitempty"`
	URL            *string     `json:"url,omitempty"`
	Title          *string     `json:"title,omitempty"`
	Favicon        *string     `json:"favicon,omitempty"`
	Screenshot     *string     `json:"screenshot,omitempty"`
	Status         *NodeStatus `json:"status,omitempty"`
	Position       *Position   `json:"position,omitempty"`
	UserPositioned *bool       `json:"userPositioned,omitempty"`
	ClosedAt       *time.Time  `json:"closedAt,omitempty"`
	ReopenedAt     *time.Time  `json:"reopenedAt,omitempty"`
	LastActiveAt   *time.Time  `json:"lastActiveAt,omitempty"`

	// ClearClosedAt removes closedAt, used when a closed node becomes active again.
	ClearClosedAt bool `json:"-"`
}

// IsEmpty reports whether the patch changes nothing.
func (p NodePatch) IsEmpty() bool {
	return p.TabID == nil && p.URL == nil && p.Title == nil && p.Favicon == nil &&
		p.Screenshot == nil && p.Status == nil && p.Position == nil &&
		p.UserPositioned == nil && p.ClosedAt == nil && p.ReopenedAt == nil &&
		p.LastActiveAt == nil && !p.ClearClosedAt
}

// Apply merges the patch into n. It does not touch UpdatedAt.
func (p NodePatch) Apply(n *Node) {
	if p.TabID != nil {
		n.TabID = *p.TabID
	}
	if p.URL != nil {
		n.URL = *p.URL
	}
	if p.Title != nil {
		n.Title = *p.Title
	}
	if p.Favicon != nil {
		n.Favicon = *p.Favicon
	}
	if p.Screenshot != nil {
		n.Screenshot = *p.Screenshot
	}
	if p.Status != nil {
		n.Status = *p.Status
	}
	if p.Position != nil {
		pos := *p.Position
		n.Position = &pos
	}
	if p.UserPositioned != nil {
		n.UserPositioned = *p.UserPositioned
	}
	if p.ClearClosedAt {
		n.ClosedAt = nil
	}
	if p.ClosedAt != nil {
		n.ClosedAt = cloneTime(p.ClosedAt)
	}
	if p.ReopenedAt != nil {
		n.ReopenedAt = cloneTime(p.ReopenedAt)
	}
	if p.LastActiveAt != nil {
		n.LastActiveAt = cloneTime(p.LastActiveAt)
	}
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
