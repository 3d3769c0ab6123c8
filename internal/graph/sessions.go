package graph

import (
	"context"
	"fmt"
	"strings"

	"github.com/alfredjeanlab/synapse/internal/events"
	"github.com/alfredjeanlab/synapse/internal/idgen"
	"github.com/alfredjeanlab/synapse/internal/model"
)

// SessionRegistry tracks the session set and the single current session. The
// set is never empty once Open returns.
type SessionRegistry struct {
	*state

	// windowID -> sessionID; ephemeral, never persisted.
	windows map[string]string
}

// withCounts returns a copy of sess with cached counts and isActive filled in.
func (r *SessionRegistry) withCounts(sess *model.Session) *model.Session {
	c := sess.Clone()
	c.NodeCount, c.EdgeCount = 0, 0
	for _, n := range r.snap.Nodes {
		if n.SessionID == sess.ID {
			c.NodeCount++
		}
	}
	for _, e := range r.snap.Edges {
		if e.SessionID == sess.ID {
			c.EdgeCount++
		}
	}
	c.IsActive = sess.ID == r.snap.CurrentSessionID
	return c
}

// Create adds a session. An empty name becomes "Session <n>". The current
// session does not change.
func (r *SessionRegistry) Create(ctx context.Context, name string) (*model.Session, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = fmt.Sprintf("Session %d", len(r.snap.Sessions)+1)
	}
	now := r.timestamp()
	sess := &model.Session{
		ID:        idgen.New(idgen.Session),
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}
	r.snap.Sessions = append(r.snap.Sessions, sess)

	out := r.withCounts(sess)
	if err := r.persist(ctx); err != nil {
		return out, err
	}
	r.publish(ctx, events.TopicSessionCreated, events.SessionCreated{Session: out})
	return out, nil
}

// Current returns the current session, or nil if the snapshot has none.
func (r *SessionRegistry) Current() *model.Session {
	_, sess := r.findSession(r.snap.CurrentSessionID)
	if sess == nil {
		return nil
	}
	return r.withCounts(sess)
}

// CurrentID returns the current session id.
func (r *SessionRegistry) CurrentID() string {
	return r.snap.CurrentSessionID
}

// Get returns the session with id.
func (r *SessionRegistry) Get(id string) (*model.Session, error) {
	_, sess := r.findSession(id)
	if sess == nil {
		return nil, model.NotFoundf("session %s", id)
	}
	return r.withCounts(sess), nil
}

// List returns every session with recomputed counts.
func (r *SessionRegistry) List() []*model.Session {
	out := make([]*model.Session, 0, len(r.snap.Sessions))
	for _, sess := range r.snap.Sessions {
		out = append(out, r.withCounts(sess))
	}
	return out
}

// SwitchTo makes id the current session.
func (r *SessionRegistry) SwitchTo(ctx context.Context, id string) error {
	_, sess := r.findSession(id)
	if sess == nil {
		return model.NotFoundf("session %s", id)
	}
	from := r.snap.CurrentSessionID
	if from == id {
		return nil
	}
	r.snap.CurrentSessionID = id
	sess.UpdatedAt = r.timestamp()

	if err := r.persist(ctx); err != nil {
		return err
	}
	r.publish(ctx, events.TopicSessionSwitched, events.SessionSwitched{From: from, To: id})
	return nil
}

// Delete removes a session together with its nodes, edges and saved trees.
// Deleting the current session selects the first remaining session, or
// creates a default one when none remain.
func (r *SessionRegistry) Delete(ctx context.Context, id string) error {
	idx, _ := r.findSession(id)
	if idx < 0 {
		return model.NotFoundf("session %s", id)
	}
	r.snap.Sessions = append(r.snap.Sessions[:idx], r.snap.Sessions[idx+1:]...)
	r.snap.Nodes = filter(r.snap.Nodes, func(n *model.Node) bool { return n.SessionID != id })
	r.snap.Edges = filter(r.snap.Edges, func(e *model.Edge) bool { return e.SessionID != id })
	r.snap.SavedTrees = filter(r.snap.SavedTrees, func(t *model.SavedTree) bool { return t.SessionID != id })
	for w, sid := range r.windows {
		if sid == id {
			delete(r.windows, w)
		}
	}

	var created *model.Session
	switched := false
	if r.snap.CurrentSessionID == id {
		if len(r.snap.Sessions) == 0 {
			created = r.newDefaultSession()
		}
		r.snap.CurrentSessionID = r.snap.Sessions[0].ID
		switched = true
	}

	if err := r.persist(ctx); err != nil {
		return err
	}
	r.publish(ctx, events.TopicSessionDeleted, events.SessionDeleted{SessionID: id})
	if created != nil {
		r.publish(ctx, events.TopicSessionCreated, events.SessionCreated{Session: r.withCounts(created)})
	}
	if switched {
		r.publish(ctx, events.TopicSessionSwitched, events.SessionSwitched{From: id, To: r.snap.CurrentSessionID})
	}
	return nil
}

// Rename changes a session's display name.
func (r *SessionRegistry) Rename(ctx context.Context, id, name string) (*model.Session, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, &model.ValidationError{Errors: []model.FieldError{{Field: "name", Message: "is required"}}}
	}
	_, sess := r.findSession(id)
	if sess == nil {
		return nil, model.NotFoundf("session %s", id)
	}
	sess.Name = name
	sess.UpdatedAt = r.timestamp()

	out := r.withCounts(sess)
	if err := r.persist(ctx); err != nil {
		return out, err
	}
	r.publish(ctx, events.TopicSessionRenamed, events.SessionRenamed{Session: out})
	return out, nil
}

// AddWindow records that windowID shows sessionID. Unknown sessions map to
// the current session.
func (r *SessionRegistry) AddWindow(windowID, sessionID string) {
	if _, sess := r.findSession(sessionID); sess == nil {
		sessionID = r.snap.CurrentSessionID
	}
	r.windows[windowID] = sessionID
}

// RemoveWindow forgets windowID.
func (r *SessionRegistry) RemoveWindow(windowID string) {
	delete(r.windows, windowID)
}

// WindowSession returns the session shown by windowID.
func (r *SessionRegistry) WindowSession(windowID string) (string, bool) {
	id, ok := r.windows[windowID]
	return id, ok
}

func filter[T any](items []T, keep func(T) bool) []T {
	out := items[:0]
	for _, it := range items {
		if keep(it) {
			out = append(out, it)
		}
	}
	// Clear the tail so dropped pointers can be collected.
	for i := len(out); i < len(items); i++ {
		var zero T
		items[i] = zero
	}
	return out
}
