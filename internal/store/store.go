// Package store persists the browsing graph as a whole-collection snapshot on
// top of a key-value backend.
package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/alfredjeanlab/synapse/internal/model"
)

// Keys under which each collection of the snapshot is stored.
const (
	KeyNodes            = "nodes"
	KeyEdges            = "edges"
	KeySessions         = "sessions"
	KeySavedTrees       = "savedTrees"
	KeyCurrentSessionID = "currentSessionId"
)

// Keys lists every key read by Load, in write order.
var Keys = []string{KeyNodes, KeyEdges, KeySessions, KeySavedTrees, KeyCurrentSessionID}

// Backend is an asynchronous key-value persistence backend. Implementations
// may be in-process, file-backed, or remote. Get omits keys that were never set.
type Backend interface {
	Get(ctx context.Context, keys []string) (map[string][]byte, error)
	Set(ctx context.Context, values map[string][]byte) error
	Close() error
}

// GraphStore loads and saves the entire graph at once. Both operations are
// whole-collection read-modify-write; there are no per-record writes.
type GraphStore interface {
	Load(ctx context.Context) (*model.Snapshot, error)
	Save(ctx context.Context, snap *model.Snapshot) error
	Close() error
}

// KVStore implements GraphStore on a Backend.
type KVStore struct {
	backend Backend
}

// Compile-time check that KVStore implements GraphStore.
var _ GraphStore = (*KVStore)(nil)

// New returns a GraphStore backed by b.
func New(b Backend) *KVStore {
	return &KVStore{backend: b}
}

// Load reads every collection. Missing keys load as empty collections.
func (s *KVStore) Load(ctx context.Context) (*model.Snapshot, error) {
	raw, err := s.backend.Get(ctx, Keys)
	if err != nil {
		return nil, fmt.Errorf("get keys: %w", err)
	}

	snap := &model.Snapshot{
		Nodes:      []*model.Node{},
		Edges:      []*model.Edge{},
		Sessions:   []*model.Session{},
		SavedTrees: []*model.SavedTree{},
	}
	targets := map[string]any{
		KeyNodes:            &snap.Nodes,
		KeyEdges:            &snap.Edges,
		KeySessions:         &snap.Sessions,
		KeySavedTrees:       &snap.SavedTrees,
		KeyCurrentSessionID: &snap.CurrentSessionID,
	}
	for _, key := range Keys {
		data, ok := raw[key]
		if !ok || len(data) == 0 {
			continue
		}
		if err := json.Unmarshal(data, targets[key]); err != nil {
			return nil, fmt.Errorf("decode %s: %w", key, err)
		}
	}

	// A stored JSON null decodes to a nil slice.
	if snap.Nodes == nil {
		snap.Nodes = []*model.Node{}
	}
	if snap.Edges == nil {
		snap.Edges = []*model.Edge{}
	}
	if snap.Sessions == nil {
		snap.Sessions = []*model.Session{}
	}
	if snap.SavedTrees == nil {
		snap.SavedTrees = []*model.SavedTree{}
	}
	return snap, nil
}

// Save writes every collection in a single backend Set.
func (s *KVStore) Save(ctx context.Context, snap *model.Snapshot) error {
	if snap == nil {
		return fmt.Errorf("cannot save nil snapshot")
	}
	values := make(map[string][]byte, len(Keys))
	sources := map[string]any{
		KeyNodes:            nonNil(snap.Nodes),
		KeyEdges:            nonNil(snap.Edges),
		KeySessions:         nonNil(snap.Sessions),
		KeySavedTrees:       nonNil(snap.SavedTrees),
		KeyCurrentSessionID: snap.CurrentSessionID,
	}
	for _, key := range Keys {
		data, err := json.Marshal(sources[key])
		if err != nil {
			return fmt.Errorf("encode %s: %w", key, err)
		}
		values[key] = data
	}
	if err := s.backend.Set(ctx, values); err != nil {
		return fmt.Errorf("set keys: %w", err)
	}
	return nil
}

// Close closes the backend.
func (s *KVStore) Close() error {
	return s.backend.Close()
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
