package hooks

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alfredjeanlab/synapse/internal/events"
)

// Hook runs Command for every event whose topic matches Topic. Topic uses
// the event bus patterns ("session.*", "graph.>").
type Hook struct {
	Topic   string
	Command string
	Timeout time.Duration
	Dir     string
}

// Runner executes hooks for events delivered by a Subscriber.
type Runner struct {
	hooks  []Hook
	logger *slog.Logger
}

// NewRunner returns a runner over hooks. Hooks without a topic or command
// are ignored.
func NewRunner(hooks []Hook, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Runner{logger: logger}
	for _, h := range hooks {
		if h.Topic == "" || h.Command == "" {
			logger.Warn("hooks: skipping incomplete hook", "topic", h.Topic, "command", h.Command)
			continue
		}
		r.hooks = append(r.hooks, h)
	}
	return r
}

// Len is the number of usable hooks.
func (r *Runner) Len() int { return len(r.hooks) }

// Run subscribes every hook and blocks until ctx is cancelled or every
// subscription channel closes. Events for one hook run one at a time in
// arrival order.
func (r *Runner) Run(ctx context.Context, sub events.Subscriber) error {
	var wg sync.WaitGroup
	for _, h := range r.hooks {
		ch, cancel, err := sub.Subscribe(h.Topic)
		if err != nil {
			return fmt.Errorf("hooks: subscribe %s: %w", h.Topic, err)
		}
		defer cancel()

		wg.Add(1)
		go func() {
			defer wg.Done()
			r.loop(ctx, h, ch)
		}()
	}
	r.logger.Info("hooks: subscriber started", "hooks", len(r.hooks))

	wg.Wait()
	r.logger.Info("hooks: subscriber stopped")
	return nil
}

func (r *Runner) loop(ctx context.Context, h Hook, ch <-chan events.Message) {
	for {
		select {
		case <-ctx.Done():
			return
		case m, ok := <-ch:
			if !ok {
				return
			}
			r.fire(ctx, h, m)
		}
	}
}

func (r *Runner) fire(ctx context.Context, h Hook, m events.Message) Result {
	env := map[string]string{
		"SYNAPSE_TOPIC": m.Topic,
		"SYNAPSE_EVENT": string(m.Data),
	}
	result := Execute(ctx, h.Command, h.Timeout, h.Dir, env, m.Data)
	if result.Err != nil {
		r.logger.Warn("hooks: command failed",
			"topic", m.Topic, "command", h.Command, "error", result.Err, "output", result.Output)
		return result
	}
	r.logger.Debug("hooks: command ran", "topic", m.Topic, "command", h.Command)
	return result
}
