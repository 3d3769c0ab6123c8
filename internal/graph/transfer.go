package graph

import (
	"context"
	"strings"

	"github.com/alfredjeanlab/synapse/internal/events"
	"github.com/alfredjeanlab/synapse/internal/idgen"
	"github.com/alfredjeanlab/synapse/internal/model"
)

// ExportSession wraps one session's graph in a versioned envelope
// ("" = current session).
func (m *Manager) ExportSession(sessionID string) (*model.Export, error) {
	sessionID = m.resolveSession(sessionID)
	sess, err := m.sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}
	return &model.Export{
		Version:    model.ExportVersion,
		ExportDate: m.timestamp(),
		Session:    sess,
		Graph:      m.GraphData(sessionID),
	}, nil
}

// ImportGraph copies data into an existing session. Every node and edge id is
// regenerated through a remap table, so re-importing the same payload yields
// an independent node set. Imported nodes have status imported and no tab;
// parents outside the payload are dropped, and edges are kept only if both
// remapped endpoints exist. The payload is validated before any mutation.
func (m *Manager) ImportGraph(ctx context.Context, data *model.GraphData, sessionID string) (*model.GraphData, error) {
	if err := model.ValidateExport(&model.Export{Version: model.ExportVersion, Graph: data}); err != nil {
		return nil, err
	}
	if _, sess := m.findSession(sessionID); sess == nil {
		return nil, model.NotFoundf("session %s", sessionID)
	}
	out := m.importInto(data, sessionID)

	if err := m.persist(ctx); err != nil {
		return out, err
	}
	m.publish(ctx, events.TopicImported, events.GraphImported{
		SessionID: sessionID,
		NodeCount: len(out.Nodes),
		EdgeCount: len(out.Edges),
	})
	return out, nil
}

func (m *Manager) importInto(data *model.GraphData, sessionID string) *model.GraphData {
	now := m.timestamp()
	remap := make(map[string]string, len(data.Nodes))
	for _, n := range data.Nodes {
		remap[n.ID] = idgen.New(idgen.Node)
	}

	out := &model.GraphData{Nodes: []*model.Node{}, Edges: []*model.Edge{}}
	for _, src := range data.Nodes {
		n := src.Clone()
		n.ID = remap[src.ID]
		n.ParentID = remap[src.ParentID]
		n.SessionID = sessionID
		n.TabID = ""
		n.Status = model.NodeImported
		if n.Title == "" {
			n.Title = model.DefaultNodeTitle
		}
		if n.CreatedAt.IsZero() {
			n.CreatedAt = now
		}
		n.UpdatedAt = now
		m.snap.Nodes = append(m.snap.Nodes, n)
		out.Nodes = append(out.Nodes, n.Clone())
	}
	for _, src := range data.Edges {
		source, okS := remap[src.Source]
		target, okT := remap[src.Target]
		if !okS || !okT || source == target {
			continue
		}
		e := src.Clone()
		e.ID = idgen.New(idgen.Edge)
		e.Source, e.Target = source, target
		e.SessionID = sessionID
		if !e.Type.IsValid() {
			e.Type = model.EdgeNavigation
		}
		if e.CreatedAt.IsZero() {
			e.CreatedAt = now
		}
		m.snap.Edges = append(m.snap.Edges, e)
		out.Edges = append(out.Edges, e.Clone())
	}
	return out
}

// ImportSession creates a session named "<name> (imported)" and imports the
// envelope's graph into it. The current session does not change.
func (m *Manager) ImportSession(ctx context.Context, data *model.Export) (*model.Session, error) {
	if err := model.ValidateExport(data); err != nil {
		return nil, err
	}
	name := "Imported Session"
	if data.Session != nil && strings.TrimSpace(data.Session.Name) != "" {
		name = strings.TrimSpace(data.Session.Name)
	}

	// Session creation and the import share one save.
	now := m.timestamp()
	sess := &model.Session{
		ID:        idgen.New(idgen.Session),
		Name:      name + " (imported)",
		CreatedAt: now,
		UpdatedAt: now,
	}
	m.snap.Sessions = append(m.snap.Sessions, sess)
	imported := m.importInto(data.Graph, sess.ID)

	out := m.sessions.withCounts(sess)
	if err := m.persist(ctx); err != nil {
		return out, err
	}
	m.publish(ctx, events.TopicSessionCreated, events.SessionCreated{Session: out})
	m.publish(ctx, events.TopicImported, events.GraphImported{
		SessionID: sess.ID,
		NodeCount: len(imported.Nodes),
		EdgeCount: len(imported.Edges),
	})
	return out, nil
}
