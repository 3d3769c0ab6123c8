package engine

import (
	"context"
	"time"

	"github.com/alfredjeanlab/synapse/internal/model"
)

// pendingPosition is the latest unsaved position for one node.
type pendingPosition struct {
	pos            model.Position
	userPositioned bool
	timer          *time.Timer
	gen            uint64
}

// UpdateNodePosition records a node's canvas position. Writes for the same
// node are debounced and the last one wins; userPositioned, once set within
// a window, stays set. Unknown nodes are ignored.
func (e *Engine) UpdateNodePosition(ctx context.Context, nodeID string, pos model.Position, userPositioned bool) error {
	return e.do(ctx, func(ctx context.Context) error {
		p, ok := e.positions[nodeID]
		if !ok {
			p = &pendingPosition{}
			e.positions[nodeID] = p
		} else if p.timer != nil {
			p.timer.Stop()
		}
		p.pos = pos
		p.userPositioned = p.userPositioned || userPositioned
		p.gen++
		gen := p.gen
		p.timer = time.AfterFunc(e.opts.PositionDebounce, func() {
			e.post(func() { e.flushPosition(e.ctx, nodeID, gen) })
		})
		return nil
	})
}

// FlushPositions writes every pending position now.
func (e *Engine) FlushPositions(ctx context.Context) error {
	return e.do(ctx, func(ctx context.Context) error {
		e.flushPositions(ctx)
		return nil
	})
}

// flushPosition writes the pending position for nodeID if it is still the
// generation the timer was armed for.
func (e *Engine) flushPosition(ctx context.Context, nodeID string, gen uint64) {
	p, ok := e.positions[nodeID]
	if !ok || p.gen != gen {
		return
	}
	e.writePosition(ctx, nodeID, p)
}

func (e *Engine) flushPositions(ctx context.Context) {
	for id, p := range e.positions {
		p.timer.Stop()
		e.writePosition(ctx, id, p)
	}
}

func (e *Engine) writePosition(ctx context.Context, nodeID string, p *pendingPosition) {
	delete(e.positions, nodeID)
	pos := p.pos
	patch := model.NodePatch{Position: &pos}
	if p.userPositioned {
		sticky := true
		patch.UserPositioned = &sticky
	}
	if _, err := e.graph.UpdateNode(ctx, nodeID, patch); err != nil {
		e.note(err)
	}
}

// dropPositions discards pending positions without writing them.
func (e *Engine) dropPositions() {
	for id, p := range e.positions {
		p.timer.Stop()
		delete(e.positions, id)
	}
}
