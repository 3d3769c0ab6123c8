// Package sync periodically exports the browsing graph as JSONL to backup
// destinations such as an S3 bucket or a git repository.
package sync

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alfredjeanlab/synapse/internal/model"
)

// SnapshotSource yields the whole persisted graph. *engine.Engine and the
// CLI clients satisfy it.
type SnapshotSource interface {
	Snapshot(ctx context.Context) (*model.Snapshot, error)
}

// Destination is a sync target (S3, git, etc.).
type Destination interface {
	// Write sends the JSONL payload to the destination.
	Write(ctx context.Context, data []byte) error
	// String names the destination in logs.
	String() string
}

// Scheduler runs periodic syncs to one or more destinations.
type Scheduler struct {
	src          SnapshotSource
	destinations []Destination
	interval     time.Duration
	logger       *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	lastHash string
}

// NewScheduler creates a scheduler that exports src to the given
// destinations every interval.
func NewScheduler(src SnapshotSource, destinations []Destination, interval time.Duration, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		src:          src,
		destinations: destinations,
		interval:     interval,
		logger:       logger,
	}
}

// Start begins periodic sync. It runs an initial sync immediately, then
// on each tick.
func (s *Scheduler) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(ctx)
	}()
}

// Stop cancels the scheduler and waits for the current sync (if any) to finish.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *Scheduler) run(ctx context.Context) {
	if err := s.SyncNow(ctx); err != nil && ctx.Err() == nil {
		s.logger.Error("sync failed", "err", err)
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.SyncNow(ctx); err != nil && ctx.Err() == nil {
				s.logger.Error("sync failed", "err", err)
			}
		}
	}
}

// SyncNow exports once and writes to every destination. Identical exports
// in a row are written only once. Destination failures are joined.
func (s *Scheduler) SyncNow(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var buf bytes.Buffer
	hash, err := exportHashed(ctx, s.src, &buf)
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}
	if hash == s.lastHash {
		s.logger.Debug("sync skipped, graph unchanged")
		return nil
	}
	data := buf.Bytes()

	var errs []error
	for _, dest := range s.destinations {
		if err := dest.Write(ctx, data); err != nil {
			s.logger.Error("sync destination write failed", "destination", dest.String(), "err", err)
			errs = append(errs, fmt.Errorf("%s: %w", dest, err))
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	s.lastHash = hash

	s.logger.Info("sync completed", "destinations", len(s.destinations), "bytes", len(data))
	return nil
}
