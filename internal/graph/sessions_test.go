package graph

import (
	"context"
	"errors"
	"testing"

	"github.com/alfredjeanlab/synapse/internal/events"
	"github.com/alfredjeanlab/synapse/internal/model"
)

func TestSessions_CreateDefaultsName(t *testing.T) {
	m, _, _ := newTestManager(t)
	sess, err := m.Sessions().Create(context.Background(), "  ")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if sess.Name != "Session 2" {
		t.Errorf("Name = %q, want %q", sess.Name, "Session 2")
	}
	if sess.IsActive {
		t.Error("Create should not switch sessions")
	}
}

func TestSessions_SwitchTo(t *testing.T) {
	m, _, rec := newTestManager(t)
	ctx := context.Background()
	reg := m.Sessions()
	first := reg.CurrentID()
	second, _ := reg.Create(ctx, "second")
	rec.Reset()

	if err := reg.SwitchTo(ctx, second.ID); err != nil {
		t.Fatalf("SwitchTo: %v", err)
	}
	if reg.CurrentID() != second.ID {
		t.Errorf("CurrentID = %q, want %q", reg.CurrentID(), second.ID)
	}
	evs := rec.Events()
	if len(evs) != 1 || evs[0].Event.(events.SessionSwitched).From != first {
		t.Errorf("events = %+v", evs)
	}

	if err := reg.SwitchTo(ctx, "sess-missing"); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestSessions_ListCounts(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()
	a := mustAddNode(t, m, &model.Node{})
	b := mustAddNode(t, m, &model.Node{})
	_, _ = m.AddEdge(ctx, &model.Edge{Source: a.ID, Target: b.ID})
	_, _ = m.Sessions().Create(ctx, "empty")

	list := m.Sessions().List()
	if len(list) != 2 {
		t.Fatalf("got %d sessions, want 2", len(list))
	}
	if list[0].NodeCount != 2 || list[0].EdgeCount != 1 || !list[0].IsActive {
		t.Errorf("first = %+v, want 2 nodes 1 edge active", list[0])
	}
	if list[1].NodeCount != 0 || list[1].IsActive {
		t.Errorf("second = %+v, want empty inactive", list[1])
	}
}

func TestSessions_NeverEmpty(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()
	reg := m.Sessions()

	ops := []string{"create", "delete-current", "delete-current", "create", "create", "delete-first", "delete-current", "delete-current", "delete-current"}
	for i, op := range ops {
		switch op {
		case "create":
			if _, err := reg.Create(ctx, ""); err != nil {
				t.Fatalf("op %d: %v", i, err)
			}
		case "delete-current":
			if err := reg.Delete(ctx, reg.CurrentID()); err != nil {
				t.Fatalf("op %d: %v", i, err)
			}
		case "delete-first":
			if err := reg.Delete(ctx, reg.List()[0].ID); err != nil {
				t.Fatalf("op %d: %v", i, err)
			}
		}
		if len(reg.List()) == 0 {
			t.Fatalf("session set empty after op %d (%s)", i, op)
		}
		if reg.Current() == nil {
			t.Fatalf("no current session after op %d (%s)", i, op)
		}
	}
}

func TestSessions_DeleteRemovesContent(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()
	reg := m.Sessions()
	keep := reg.CurrentID()
	kept := mustAddNode(t, m, &model.Node{})

	doomed, _ := reg.Create(ctx, "doomed")
	a := mustAddNode(t, m, &model.Node{SessionID: doomed.ID})
	b := mustAddNode(t, m, &model.Node{SessionID: doomed.ID})
	_, _ = m.AddEdge(ctx, &model.Edge{Source: a.ID, Target: b.ID})
	if err := reg.SwitchTo(ctx, doomed.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := m.SaveTree(ctx, "t", []string{a.ID, b.ID}); err != nil {
		t.Fatal(err)
	}
	reg.AddWindow("win-1", doomed.ID)

	if err := reg.Delete(ctx, doomed.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	snap := m.Snapshot()
	if len(snap.Nodes) != 1 || snap.Nodes[0].ID != kept.ID {
		t.Errorf("nodes = %d, want only the kept node", len(snap.Nodes))
	}
	if len(snap.Edges) != 0 || len(snap.SavedTrees) != 0 {
		t.Errorf("edges=%d trees=%d, want 0/0", len(snap.Edges), len(snap.SavedTrees))
	}
	if reg.CurrentID() != keep {
		t.Errorf("CurrentID = %q, want %q", reg.CurrentID(), keep)
	}
	if _, ok := reg.WindowSession("win-1"); ok {
		t.Error("window bound to deleted session should be forgotten")
	}
	if err := reg.Delete(ctx, doomed.ID); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("second delete err = %v, want ErrNotFound", err)
	}
}

func TestSessions_Rename(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()
	id := m.Sessions().CurrentID()

	got, err := m.Sessions().Rename(ctx, id, "Research")
	if err != nil {
		t.Fatalf("Rename: %v", err)
	}
	if got.Name != "Research" {
		t.Errorf("Name = %q, want Research", got.Name)
	}
	var ve *model.ValidationError
	if _, err := m.Sessions().Rename(ctx, id, ""); !errors.As(err, &ve) {
		t.Errorf("empty name err = %v, want ValidationError", err)
	}
	if _, err := m.Sessions().Rename(ctx, "sess-missing", "x"); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("unknown id err = %v, want ErrNotFound", err)
	}
}

func TestSessions_Windows(t *testing.T) {
	m, _, _ := newTestManager(t)
	reg := m.Sessions()

	reg.AddWindow("w1", "sess-unknown")
	got, ok := reg.WindowSession("w1")
	if !ok || got != reg.CurrentID() {
		t.Errorf("WindowSession = (%q, %v), want current session", got, ok)
	}
	reg.RemoveWindow("w1")
	if _, ok := reg.WindowSession("w1"); ok {
		t.Error("window should be removed")
	}
}
