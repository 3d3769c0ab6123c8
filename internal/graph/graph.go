// Package graph holds the durable browsing graph: nodes, edges, sessions and
// saved trees. Every mutation is applied in memory, then the whole snapshot is
// saved before the call returns.
//
// Manager and SessionRegistry share one in-memory snapshot and are not safe
// for concurrent use; engine.Engine serializes all access.
package graph

import (
	"context"
	"log/slog"
	"time"

	"github.com/alfredjeanlab/synapse/internal/events"
	"github.com/alfredjeanlab/synapse/internal/idgen"
	"github.com/alfredjeanlab/synapse/internal/model"
	"github.com/alfredjeanlab/synapse/internal/store"
)

// Options configures a Manager. Zero values select defaults.
type Options struct {
	Publisher events.Publisher
	Logger    *slog.Logger
	Now       func() time.Time
}

// state is the snapshot shared by Manager and SessionRegistry.
type state struct {
	snap   *model.Snapshot
	store  store.GraphStore
	pub    events.Publisher
	logger *slog.Logger
	now    func() time.Time
}

// persist saves the whole snapshot. The in-memory state is kept on failure.
func (s *state) persist(ctx context.Context) error {
	if err := s.store.Save(ctx, s.snap); err != nil {
		s.logger.Error("failed to save graph snapshot", "error", err)
		return &model.PersistenceError{Op: "save", Err: err}
	}
	return nil
}

// publish broadcasts a change. Broadcast failures never fail the mutation.
func (s *state) publish(ctx context.Context, topic string, event any) {
	if err := s.pub.Publish(ctx, topic, event); err != nil {
		s.logger.Warn("failed to publish event", "topic", topic, "error", err)
	}
}

func (s *state) timestamp() time.Time {
	return s.now().UTC()
}

func (s *state) findNode(id string) (int, *model.Node) {
	for i, n := range s.snap.Nodes {
		if n.ID == id {
			return i, n
		}
	}
	return -1, nil
}

func (s *state) findSession(id string) (int, *model.Session) {
	for i, sess := range s.snap.Sessions {
		if sess.ID == id {
			return i, sess
		}
	}
	return -1, nil
}

func (s *state) findTree(id string) (int, *model.SavedTree) {
	for i, t := range s.snap.SavedTrees {
		if t.ID == id {
			return i, t
		}
	}
	return -1, nil
}

// resolveSession maps "" to the current session id.
func (s *state) resolveSession(id string) string {
	if id == "" {
		return s.snap.CurrentSessionID
	}
	return id
}

// newDefaultSession appends a fresh default session and returns it.
func (s *state) newDefaultSession() *model.Session {
	now := s.timestamp()
	sess := &model.Session{
		ID:        idgen.New(idgen.Session),
		Name:      model.DefaultSessionName,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.snap.Sessions = append(s.snap.Sessions, sess)
	return sess
}

// Manager performs CRUD, query, timeline, tree, import/export and retention
// operations over the graph.
type Manager struct {
	*state
	sessions *SessionRegistry
}

// Open loads the snapshot from st and repairs the session invariants: an
// empty session set gets a default session, and an unknown current id falls
// back to the first session. A repaired snapshot is saved immediately.
func Open(ctx context.Context, st store.GraphStore, opts Options) (*Manager, error) {
	if opts.Publisher == nil {
		opts.Publisher = &events.NoopPublisher{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	snap, err := st.Load(ctx)
	if err != nil {
		return nil, &model.PersistenceError{Op: "load", Err: err}
	}

	s := &state{
		snap:   snap,
		store:  st,
		pub:    opts.Publisher,
		logger: opts.Logger,
		now:    opts.Now,
	}

	repaired := false
	if len(snap.Sessions) == 0 {
		sess := s.newDefaultSession()
		snap.CurrentSessionID = sess.ID
		repaired = true
		s.logger.Info("created default session", "session_id", sess.ID)
	} else if _, cur := s.findSession(snap.CurrentSessionID); cur == nil {
		s.logger.Warn("current session missing, selecting first session",
			"missing", snap.CurrentSessionID, "session_id", snap.Sessions[0].ID)
		snap.CurrentSessionID = snap.Sessions[0].ID
		repaired = true
	}
	if repaired {
		if err := s.persist(ctx); err != nil {
			return nil, err
		}
	}

	m := &Manager{state: s}
	m.sessions = &SessionRegistry{state: s, windows: make(map[string]string)}
	return m, nil
}

// Sessions returns the session registry sharing this manager's snapshot.
func (m *Manager) Sessions() *SessionRegistry {
	return m.sessions
}

// Snapshot returns a deep copy of the entire persisted state.
func (m *Manager) Snapshot() *model.Snapshot {
	return m.snap.Clone()
}
