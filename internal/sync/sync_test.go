package sync

import (
	"context"
	"errors"
	"io"
	"log/slog"
	gosync "sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alfredjeanlab/synapse/internal/model"
)

// fakeSource serves a fixed snapshot, or err when set.
type fakeSource struct {
	mu   gosync.Mutex
	snap *model.Snapshot
	err  error
}

func (f *fakeSource) Snapshot(context.Context) (*model.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.snap.Clone(), nil
}

func (f *fakeSource) set(snap *model.Snapshot) {
	f.mu.Lock()
	f.snap = snap
	f.mu.Unlock()
}

// mockDestination records calls to Write.
type mockDestination struct {
	writes atomic.Int64
	last   atomic.Value // []byte
	fail   atomic.Bool
}

func (d *mockDestination) Write(_ context.Context, data []byte) error {
	if d.fail.Load() {
		return errors.New("unreachable")
	}
	d.writes.Add(1)
	cp := make([]byte, len(data))
	copy(cp, data)
	d.last.Store(cp)
	return nil
}

func (d *mockDestination) String() string { return "mock" }

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testSnapshot() *model.Snapshot {
	now := time.Now().UTC()
	return &model.Snapshot{
		CurrentSessionID: "s-1",
		Sessions:         []*model.Session{{ID: "s-1", Name: "Main", CreatedAt: now, UpdatedAt: now}},
		Nodes: []*model.Node{
			{ID: "n-2", URL: "https://b.example", SessionID: "s-1", ParentID: "n-1", Status: model.NodeActive, CreatedAt: now, UpdatedAt: now},
			{ID: "n-1", URL: "https://a.example", SessionID: "s-1", Status: model.NodeClosed, CreatedAt: now, UpdatedAt: now},
		},
		Edges: []*model.Edge{{ID: "e-1", Source: "n-1", Target: "n-2", Type: model.EdgeNavigation, SessionID: "s-1", CreatedAt: now}},
	}
}

func TestSchedulerStartStop(t *testing.T) {
	src := &fakeSource{snap: testSnapshot()}
	dest := &mockDestination{}

	sched := NewScheduler(src, []Destination{dest}, 20*time.Millisecond, quietLogger())
	sched.Start()
	time.Sleep(50 * time.Millisecond)
	// A changed graph is written again on the next tick.
	next := testSnapshot()
	next.Nodes = next.Nodes[:1]
	src.set(next)
	time.Sleep(80 * time.Millisecond)
	sched.Stop()

	if writes := dest.writes.Load(); writes != 2 {
		t.Fatalf("expected 2 writes (initial + changed), got %d", writes)
	}

	data, ok := dest.last.Load().([]byte)
	if !ok || len(data) == 0 {
		t.Fatal("expected non-empty data")
	}
	// header + session + node + edge
	if lines := nonEmptyLines(string(data)); len(lines) != 4 {
		t.Fatalf("expected 4 lines, got %d", len(lines))
	}
}

func TestSchedulerStop_NoStart(t *testing.T) {
	sched := NewScheduler(&fakeSource{}, nil, time.Minute, quietLogger())
	// Stop without Start should not panic.
	sched.Stop()
}

func TestSchedulerMultipleDestinations(t *testing.T) {
	src := &fakeSource{snap: testSnapshot()}
	dest1 := &mockDestination{}
	dest2 := &mockDestination{}

	sched := NewScheduler(src, []Destination{dest1, dest2}, time.Second, quietLogger())
	sched.Start()
	time.Sleep(50 * time.Millisecond)
	sched.Stop()

	if dest1.writes.Load() != 1 {
		t.Fatalf("dest1 writes = %d, want 1", dest1.writes.Load())
	}
	if dest2.writes.Load() != 1 {
		t.Fatalf("dest2 writes = %d, want 1", dest2.writes.Load())
	}
}

func TestSyncNow_UnchangedSkipped(t *testing.T) {
	src := &fakeSource{snap: testSnapshot()}
	dest := &mockDestination{}
	sched := NewScheduler(src, []Destination{dest}, time.Minute, quietLogger())

	for i := 0; i < 3; i++ {
		if err := sched.SyncNow(context.Background()); err != nil {
			t.Fatalf("SyncNow #%d: %v", i, err)
		}
	}
	if got := dest.writes.Load(); got != 1 {
		t.Fatalf("writes = %d, want 1", got)
	}
}

func TestSyncNow_DestinationFailureRetried(t *testing.T) {
	src := &fakeSource{snap: testSnapshot()}
	good := &mockDestination{}
	bad := &mockDestination{}
	bad.fail.Store(true)
	sched := NewScheduler(src, []Destination{good, bad}, time.Minute, quietLogger())

	if err := sched.SyncNow(context.Background()); err == nil {
		t.Fatal("expected an error from the failing destination")
	}
	if good.writes.Load() != 1 {
		t.Fatalf("good writes = %d, want 1", good.writes.Load())
	}

	// The failed export is not remembered, so the next run writes again.
	bad.fail.Store(false)
	if err := sched.SyncNow(context.Background()); err != nil {
		t.Fatalf("second SyncNow: %v", err)
	}
	if bad.writes.Load() != 1 || good.writes.Load() != 2 {
		t.Fatalf("writes good=%d bad=%d, want 2/1", good.writes.Load(), bad.writes.Load())
	}
}

func TestSyncNow_SourceError(t *testing.T) {
	dest := &mockDestination{}
	sched := NewScheduler(&fakeSource{err: errors.New("engine stopped")}, []Destination{dest}, time.Minute, quietLogger())
	if err := sched.SyncNow(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if dest.writes.Load() != 0 {
		t.Fatal("nothing should be written when the export fails")
	}
}
