package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPublishDeliversToSubscriber(t *testing.T) {
	b := NewBroker()
	b.Start()
	defer b.Stop()

	sub := b.Subscribe()
	defer b.Unsubscribe(sub)

	b.Publish(&Event{Type: EventWorkerJoined, Message: "worker 1 joined"})

	select {
	case ev := <-sub:
		assert.Equal(t, EventWorkerJoined, ev.Type)
		assert.Equal(t, "worker 1 joined", ev.Message)
		assert.False(t, ev.Timestamp.IsZero())
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestPublishStampsTimestampWhenUnset(t *testing.T) {
	b := NewBroker()
	b.Start()
	defer b.Stop()

	sub := b.Subscribe()
	defer b.Unsubscribe(sub)

	before := time.Now()
	b.Publish(&Event{Type: EventSceneRegistered})

	ev := <-sub
	assert.False(t, ev.Timestamp.Before(before))
}

func TestPublishFanOutToAllSubscribers(t *testing.T) {
	b := NewBroker()
	b.Start()
	defer b.Stop()

	sub1 := b.Subscribe()
	sub2 := b.Subscribe()
	defer b.Unsubscribe(sub1)
	defer b.Unsubscribe(sub2)

	assert.Equal(t, 2, b.SubscriberCount())

	b.Publish(&Event{Type: EventOutputMerged})

	for _, sub := range []Subscriber{sub1, sub2} {
		select {
		case ev := <-sub:
			assert.Equal(t, EventOutputMerged, ev.Type)
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for fan-out event")
		}
	}
}

func TestUnsubscribeRemovesAndCloses(t *testing.T) {
	b := NewBroker()
	b.Start()
	defer b.Stop()

	sub := b.Subscribe()
	b.Unsubscribe(sub)

	assert.Equal(t, 0, b.SubscriberCount())

	_, open := <-sub
	assert.False(t, open)
}

func TestStopUnblocksPendingPublish(t *testing.T) {
	b := NewBroker()
	b.Start()

	// Publish as many events as the internal channel holds, stop the
	// broker, then confirm a further Publish returns instead of
	// hanging forever.
	for i := 0; i < 100; i++ {
		b.Publish(&Event{Type: EventWorkerDown})
	}
	b.Stop()

	done := make(chan struct{})
	go func() {
		b.Publish(&Event{Type: EventWorkerDown})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish did not return after Stop")
	}
}
