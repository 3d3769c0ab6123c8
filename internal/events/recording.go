package events

import (
	"context"
	"sync"
)

// Recorded is one event captured by a RecordingPublisher.
type Recorded struct {
	Topic string
	Event any
}

// RecordingPublisher keeps every published event in memory. It backs tests
// and the in-process event log of embedded engines.
type RecordingPublisher struct {
	mu     sync.Mutex
	events []Recorded
}

func NewRecordingPublisher() *RecordingPublisher {
	return &RecordingPublisher{}
}

func (r *RecordingPublisher) Publish(_ context.Context, topic string, event any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, Recorded{Topic: topic, Event: event})
	return nil
}

func (r *RecordingPublisher) Close() error {
	return nil
}

// Events returns a copy of everything recorded so far.
func (r *RecordingPublisher) Events() []Recorded {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Recorded(nil), r.events...)
}

// Topics returns the recorded topics in publish order.
func (r *RecordingPublisher) Topics() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, e := range r.events {
		out[i] = e.Topic
	}
	return out
}

// Reset discards recorded events.
func (r *RecordingPublisher) Reset() {
	r.mu.Lock()
	r.events = nil
	r.mu.Unlock()
}
