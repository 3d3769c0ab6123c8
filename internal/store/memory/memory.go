// Package memory implements store.Backend with an in-process map.
package memory

import (
	"context"
	"sync"

	"github.com/alfredjeanlab/synapse/internal/store"
)

// Backend keeps values in memory. Values are copied on the way in and out so
// callers can never alias stored bytes.
type Backend struct {
	mu     sync.RWMutex
	values map[string][]byte
}

// Compile-time check that Backend implements store.Backend.
var _ store.Backend = (*Backend)(nil)

// New returns an empty in-memory backend.
func New() *Backend {
	return &Backend{values: make(map[string][]byte)}
}

// Get returns the values present for keys.
func (b *Backend) Get(_ context.Context, keys []string) (map[string][]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make(map[string][]byte, len(keys))
	for _, k := range keys {
		if v, ok := b.values[k]; ok {
			out[k] = append([]byte(nil), v...)
		}
	}
	return out, nil
}

// Set stores every value.
func (b *Backend) Set(_ context.Context, values map[string][]byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for k, v := range values {
		b.values[k] = append([]byte(nil), v...)
	}
	return nil
}

// Len returns the number of stored keys.
func (b *Backend) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.values)
}

// Close is a no-op for the in-memory backend.
func (b *Backend) Close() error {
	return nil
}
