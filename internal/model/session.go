package model

import "time"

// DefaultSessionName is used when a session has to be created implicitly.
const DefaultSessionName = "Default Session"

// Session is a named browsing context grouping a subset of nodes and edges.
type Session struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	NodeCount int       `json:"nodeCount"`
	EdgeCount int       `json:"edgeCount"`
	IsActive  bool      `json:"isActive"`
}

// Clone returns a copy of the session.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}
