// -----------------------------------------------------------------------
// Render Slot Pool - fixed-size pool of browser rendering contexts
// -----------------------------------------------------------------------

package render

import (
	"context"
	"fmt"
	"sync"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/colligo/internal/common"
	"github.com/ternarybob/colligo/internal/interfaces"
)

const (
	minPoolSize = 1
	maxPoolSize = 10
)

// Pool implements interfaces.SlotPool over chromedp slots. The size is fixed
// at creation; Acquire blocks until a slot is idle or the context ends.
type Pool struct {
	logger arbor.ILogger
	slots  []interfaces.RenderSlot
	idle   chan interfaces.RenderSlot

	mu     sync.Mutex
	closed bool
}

// NewPool creates size slots up front. Every slot must start cleanly: a
// partially working pool would silently change the job's concurrency, so any
// failure tears down what was created and fails the pool.
func NewPool(size int, config common.RenderConfig, useIncognito bool, logger arbor.ILogger) (interfaces.SlotPool, error) {
	if size < minPoolSize || size > maxPoolSize {
		return nil, fmt.Errorf("pool size must be between %d and %d, got %d", minPoolSize, maxPoolSize, size)
	}

	p := &Pool{
		logger: logger,
		slots:  make([]interfaces.RenderSlot, 0, size),
		idle:   make(chan interfaces.RenderSlot, size),
	}

	for i := 0; i < size; i++ {
		slot, err := newChromedpSlot(i, config, useIncognito, logger)
		if err != nil {
			p.teardown()
			return nil, fmt.Errorf("failed to create render slot %d: %w", i, err)
		}
		p.slots = append(p.slots, slot)
		p.idle <- slot
	}

	logger.Info().
		Int("pool_size", size).
		Bool("incognito", useIncognito).
		Msg("Render slot pool initialized")

	return p, nil
}

// Acquire blocks until a slot is idle. Returns an error when the context is
// cancelled or the pool has been closed.
func (p *Pool) Acquire(ctx context.Context) (interfaces.RenderSlot, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, fmt.Errorf("render pool is closed")
	}
	p.mu.Unlock()

	select {
	case slot, ok := <-p.idle:
		if !ok {
			return nil, fmt.Errorf("render pool is closed")
		}
		return slot, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Release returns a slot to the idle set. Releasing into a closed pool is a
// no-op; the slot was already torn down by Close.
func (p *Pool) Release(slot interfaces.RenderSlot) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	select {
	case p.idle <- slot:
	default:
		// Double release; drop rather than block
		p.logger.Warn().Msg("Render slot released twice")
	}
}

// Size returns the fixed pool size
func (p *Pool) Size() int {
	return len(p.slots)
}

// Close tears down every slot, including ones currently rendering: closing a
// slot cancels its browser context, which aborts the in-flight call
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.idle)
	p.mu.Unlock()

	p.teardown()
	p.logger.Debug().Int("pool_size", len(p.slots)).Msg("Render slot pool closed")
	return nil
}

func (p *Pool) teardown() {
	for _, slot := range p.slots {
		if err := slot.Close(); err != nil {
			p.logger.Warn().Err(err).Msg("Render slot close reported an error")
		}
	}
}
