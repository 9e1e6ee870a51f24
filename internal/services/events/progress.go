// -----------------------------------------------------------------------
// Progress Bus - lossy fan-out of job snapshots to subscribers
// -----------------------------------------------------------------------

package events

import (
	"sync"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/colligo/internal/interfaces"
	"github.com/ternarybob/colligo/internal/models"
)

// subscriberBuffer bounds how many unread ticks a subscriber can hold before
// new ones are dropped
const subscriberBuffer = 64

// Bus implements interfaces.ProgressBus. Single writer, many readers; a slow
// subscriber loses ticks instead of slowing the job down.
type Bus struct {
	logger arbor.ILogger

	mu          sync.Mutex
	subscribers map[int]chan models.JobSnapshot
	nextID      int
	closed      bool
}

// NewBus creates the progress bus
func NewBus(logger arbor.ILogger) interfaces.ProgressBus {
	return &Bus{
		logger:      logger,
		subscribers: make(map[int]chan models.JobSnapshot),
	}
}

// Publish delivers a snapshot to every subscriber without ever blocking
func (b *Bus) Publish(snapshot models.JobSnapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	for _, ch := range b.subscribers {
		select {
		case ch <- snapshot:
		default:
			// Subscriber is full; drop this tick for it
		}
	}
}

// Subscribe returns a snapshot channel and an unsubscribe function. The
// channel closes on unsubscribe or bus close.
func (b *Bus) Subscribe() (<-chan models.JobSnapshot, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan models.JobSnapshot, subscriberBuffer)
	if b.closed {
		close(ch)
		return ch, func() {}
	}

	id := b.nextID
	b.nextID++
	b.subscribers[id] = ch

	b.logger.Debug().Int("subscriber_count", len(b.subscribers)).Msg("Progress subscriber added")

	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if sub, ok := b.subscribers[id]; ok {
			delete(b.subscribers, id)
			close(sub)
		}
	}
}

// Close shuts the bus down and closes every subscriber channel
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subscribers {
		delete(b.subscribers, id)
		close(ch)
	}
}
