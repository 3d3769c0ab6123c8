// Package engine keeps the live tab registry and the durable browsing graph
// consistent. A single goroutine owns the graph manager, the session
// registry, the tab registry and the tab-node association table; every
// public method and every view callback runs on it in FIFO order.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/alfredjeanlab/synapse/internal/events"
	"github.com/alfredjeanlab/synapse/internal/extract"
	"github.com/alfredjeanlab/synapse/internal/graph"
	"github.com/alfredjeanlab/synapse/internal/tabs"
)

// Defaults for Options.
const (
	DefaultPositionDebounce  = 400 * time.Millisecond
	DefaultRetentionInterval = 24 * time.Hour
	DefaultRetention         = 30 * 24 * time.Hour
	DefaultCaptureTimeout    = 5 * time.Second
)

// ErrStopped is returned by calls made after Stop.
var ErrStopped = errors.New("engine stopped")

// Options configures an Engine. Zero durations select the defaults; a
// negative Retention disables the retention loop.
type Options struct {
	Publisher events.Publisher
	Logger    *slog.Logger
	Now       func() time.Time

	// ChromeInset is the height of the host window chrome above views.
	ChromeInset int

	PositionDebounce  time.Duration
	RetentionInterval time.Duration
	Retention         time.Duration

	Capturer       Capturer
	CaptureTimeout time.Duration
	Extractor      extract.Extractor
}

// Engine is the tab-node synchronizer.
type Engine struct {
	opts   Options
	logger *slog.Logger
	pub    events.Publisher

	graph *graph.Manager
	tabs  *tabs.Registry

	// Association table, rebuilt from the registry when needed.
	tabNode map[string]string
	nodeTab map[string]string

	positions map[string]*pendingPosition

	// cmdErr collects persistence errors raised by listener callbacks while a
	// command runs, so the command can report them.
	cmdErr error

	mb       *mailbox
	ctx      context.Context // for engine-initiated writes
	bgCtx    context.Context
	bgCancel context.CancelFunc
	bg       sync.WaitGroup
	stopping bool
	started  bool
	done     chan struct{}
	mu       sync.Mutex
}

// New wires an engine over mgr, creating views through factory. Call Start
// before use.
func New(mgr *graph.Manager, factory tabs.ViewFactory, opts Options) *Engine {
	if opts.Publisher == nil {
		opts.Publisher = &events.NoopPublisher{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.PositionDebounce <= 0 {
		opts.PositionDebounce = DefaultPositionDebounce
	}
	if opts.RetentionInterval <= 0 {
		opts.RetentionInterval = DefaultRetentionInterval
	}
	if opts.Retention == 0 {
		opts.Retention = DefaultRetention
	}
	if opts.Capturer == nil {
		opts.Capturer = JPEGCapturer{}
	}
	if opts.CaptureTimeout <= 0 {
		opts.CaptureTimeout = DefaultCaptureTimeout
	}
	if opts.Extractor == nil {
		opts.Extractor = extract.New()
	}

	bgCtx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		opts:      opts,
		logger:    opts.Logger,
		pub:       opts.Publisher,
		graph:     mgr,
		tabNode:   make(map[string]string),
		nodeTab:   make(map[string]string),
		positions: make(map[string]*pendingPosition),
		mb:        newMailbox(),
		ctx:       context.Background(),
		bgCtx:     bgCtx,
		bgCancel:  cancel,
		done:      make(chan struct{}),
	}
	e.tabs = tabs.NewRegistry(factory, tabs.Options{
		Dispatch:    func(f func()) { e.post(f) },
		Listener:    listener{e},
		Logger:      opts.Logger,
		ChromeInset: opts.ChromeInset,
		Now:         opts.Now,
	})
	return e
}

// Start launches the engine goroutine, closes nodes left active by a
// previous run, and starts the retention loop.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.started {
		e.mu.Unlock()
		return errors.New("engine already started")
	}
	e.started = true
	e.mu.Unlock()

	go e.run()

	err := e.do(ctx, func(ctx context.Context) error {
		_, err := e.graph.CloseOrphans(ctx)
		return err
	})
	if err != nil && !errors.Is(err, ErrStopped) {
		// A failed save leaves the repair in memory; the next save carries it.
		e.logger.Warn("failed to close orphaned nodes", "error", err)
	}

	if e.opts.Retention > 0 {
		e.bg.Add(1)
		go func() {
			defer e.bg.Done()
			e.retentionLoop()
		}()
	}
	return nil
}

// Stop flushes debounced positions, closes every tab and stops the engine
// goroutine. Calls made afterwards return ErrStopped.
func (e *Engine) Stop(ctx context.Context) error {
	e.bgCancel()

	e.mu.Lock()
	started := e.started
	e.mu.Unlock()
	if !started {
		e.mb.close()
		return nil
	}

	ok := e.mb.push(func() {
		e.flushPositions(e.ctx)
		e.tabs.CloseAll()
		e.stopping = true
		e.mb.close()
	})
	if !ok {
		return nil
	}
	select {
	case <-e.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	// Screenshots still in flight find the mailbox closed and drop.
	e.bg.Wait()
	return nil
}

func (e *Engine) run() {
	defer close(e.done)
	for range e.mb.ready {
		for _, f := range e.mb.take() {
			f()
		}
		if e.stopping {
			// Anything accepted before the mailbox closed still runs.
			for _, f := range e.mb.take() {
				f()
			}
			e.logger.Info("engine stopped")
			return
		}
	}
}

// post enqueues fire-and-forget work.
func (e *Engine) post(f func()) {
	if !e.mb.push(f) {
		e.logger.Debug("engine stopped, dropping callback")
	}
}

// note records an error raised outside the current command's return path.
func (e *Engine) note(err error) {
	if err == nil {
		return
	}
	e.logger.Warn("graph write failed", "error", err)
	e.cmdErr = errors.Join(e.cmdErr, err)
}

type result[T any] struct {
	val T
	err error
}

// call runs f on the engine goroutine and waits for its result. The write
// itself is not cancelled with ctx; only the wait is.
func call[T any](ctx context.Context, e *Engine, f func(ctx context.Context) (T, error)) (T, error) {
	ch := make(chan result[T], 1)
	wctx := context.WithoutCancel(ctx)
	ok := e.mb.push(func() {
		e.cmdErr = nil
		v, err := f(wctx)
		if e.cmdErr != nil {
			err = errors.Join(err, e.cmdErr)
			e.cmdErr = nil
		}
		ch <- result[T]{v, err}
	})
	if !ok {
		var zero T
		return zero, ErrStopped
	}
	select {
	case r := <-ch:
		return r.val, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

func (e *Engine) do(ctx context.Context, f func(ctx context.Context) error) error {
	_, err := call(ctx, e, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, f(ctx)
	})
	return err
}

func (e *Engine) retentionLoop() {
	ticker := time.NewTicker(e.opts.RetentionInterval)
	defer ticker.Stop()

	e.post(e.cleanupExpired)
	for {
		select {
		case <-e.bgCtx.Done():
			return
		case <-ticker.C:
			e.post(e.cleanupExpired)
		}
	}
}

func (e *Engine) cleanupExpired() {
	cutoff := e.opts.Now().Add(-e.opts.Retention)
	n, err := e.graph.CleanupOldNodes(e.ctx, cutoff)
	if err != nil {
		e.logger.Error("retention cleanup failed", "error", err)
		return
	}
	if n > 0 {
		e.logger.Info("retention cleanup", "deleted", n, "cutoff", cutoff)
	}
}

func (e *Engine) publish(topic string, event any) {
	if err := e.pub.Publish(e.ctx, topic, event); err != nil {
		e.logger.Warn("failed to publish event", "topic", topic, "error", err)
	}
}
