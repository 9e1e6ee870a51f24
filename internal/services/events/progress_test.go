package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/colligo/internal/models"
)

func TestBusDeliversToAllSubscribers(t *testing.T) {
	bus := NewBus(arbor.NewLogger())
	defer bus.Close()

	first, unsubFirst := bus.Subscribe()
	defer unsubFirst()
	second, unsubSecond := bus.Subscribe()
	defer unsubSecond()

	bus.Publish(models.JobSnapshot{JobID: "job-1", PagesFound: 3})

	assert.Equal(t, "job-1", (<-first).JobID)
	assert.Equal(t, "job-1", (<-second).JobID)
}

func TestBusPublishNeverBlocks(t *testing.T) {
	bus := NewBus(arbor.NewLogger())
	defer bus.Close()

	ch, unsubscribe := bus.Subscribe()
	defer unsubscribe()

	// Overfill the subscriber; extra ticks are dropped, not queued
	for i := 0; i < subscriberBuffer*2; i++ {
		bus.Publish(models.JobSnapshot{PagesProcessed: i})
	}

	received := 0
	for {
		select {
		case <-ch:
			received++
		default:
			assert.Equal(t, subscriberBuffer, received)
			return
		}
	}
}

func TestBusUnsubscribeClosesChannel(t *testing.T) {
	bus := NewBus(arbor.NewLogger())
	defer bus.Close()

	ch, unsubscribe := bus.Subscribe()
	unsubscribe()

	_, open := <-ch
	assert.False(t, open)

	// A second call is harmless
	unsubscribe()

	// Publishing after unsubscribe must not panic
	bus.Publish(models.JobSnapshot{JobID: "late"})
}

func TestBusCloseClosesSubscribers(t *testing.T) {
	bus := NewBus(arbor.NewLogger())

	ch, _ := bus.Subscribe()
	bus.Close()

	_, open := <-ch
	assert.False(t, open)

	// Publish and Close after Close are no-ops
	bus.Publish(models.JobSnapshot{})
	bus.Close()
}

func TestBusSubscribeAfterClose(t *testing.T) {
	bus := NewBus(arbor.NewLogger())
	bus.Close()

	ch, unsubscribe := bus.Subscribe()
	require.NotNil(t, ch)
	_, open := <-ch
	assert.False(t, open)
	unsubscribe()
}
