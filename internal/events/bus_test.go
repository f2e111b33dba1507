package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishFansOut(t *testing.T) {
	bus := NewBus()

	ch1, cancel1 := bus.Subscribe()
	defer cancel1()
	ch2, cancel2 := bus.Subscribe()
	defer cancel2()

	bus.Publish(Event{Type: TypeStarted})

	evt := <-ch1
	assert.Equal(t, TypeStarted, evt.Type)
	evt = <-ch2
	assert.Equal(t, TypeStarted, evt.Type)
}

func TestCancelStopsDelivery(t *testing.T) {
	bus := NewBus()

	ch, cancel := bus.Subscribe()
	cancel()
	cancel() // cancelling twice is fine

	bus.Publish(Event{Type: TypeEnded})

	_, open := <-ch
	assert.False(t, open)
}

func TestPublishNeverBlocks(t *testing.T) {
	bus := NewBus()

	ch, cancel := bus.Subscribe()
	defer cancel()

	// Overfill the subscriber buffer; the overflow is dropped.
	for i := 0; i < 200; i++ {
		bus.Publish(Event{Type: TypeLoopIteration})
	}

	received := 0
	for {
		select {
		case <-ch:
			received++
			continue
		default:
		}
		break
	}
	require.Greater(t, received, 0)
	assert.LessOrEqual(t, received, 64)
}
