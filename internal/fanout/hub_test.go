package fanout

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestHub_PublishToSubscriber(t *testing.T) {
	hub := NewHub(4)

	ch := hub.Subscribe("event-1", "user-1")

	ok := hub.Publish(Notification{
		Type:      NotificationPositionUpdate,
		EventID:   "event-1",
		UserID:    "user-1",
		Position:  3,
		Timestamp: time.Now(),
	})
	assert.True(t, ok)

	select {
	case n := <-ch:
		assert.Equal(t, NotificationPositionUpdate, n.Type)
		assert.Equal(t, int64(3), n.Position)
	default:
		t.Fatal("expected a buffered notification")
	}
}

func TestHub_DropWhenNoSubscriber(t *testing.T) {
	hub := NewHub(4)

	ok := hub.Publish(Notification{
		Type:    NotificationQueueAdvanced,
		EventID: "event-1",
		UserID:  "nobody",
	})
	assert.False(t, ok)

	_, dropped := hub.Stats()
	assert.Equal(t, int64(1), dropped)
}

func TestHub_DropWhenBufferFull(t *testing.T) {
	hub := NewHub(1)

	hub.Subscribe("event-1", "user-1")

	first := hub.Publish(Notification{EventID: "event-1", UserID: "user-1"})
	second := hub.Publish(Notification{EventID: "event-1", UserID: "user-1"})

	assert.True(t, first)
	assert.False(t, second, "a full buffer drops instead of blocking")

	sent, dropped := hub.Stats()
	assert.Equal(t, int64(1), sent)
	assert.Equal(t, int64(1), dropped)
}

func TestHub_Unsubscribe(t *testing.T) {
	hub := NewHub(4)

	ch := hub.Subscribe("event-1", "user-1")
	hub.Unsubscribe("event-1", "user-1")

	_, open := <-ch
	assert.False(t, open, "unsubscribe closes the channel")

	ok := hub.Publish(Notification{EventID: "event-1", UserID: "user-1"})
	assert.False(t, ok)
	assert.Equal(t, 0, hub.SubscriberCount())
}

func TestHub_ResubscribeReplacesChannel(t *testing.T) {
	hub := NewHub(4)

	old := hub.Subscribe("event-1", "user-1")
	fresh := hub.Subscribe("event-1", "user-1")

	_, open := <-old
	assert.False(t, open, "old channel is closed on resubscribe")

	hub.Publish(Notification{EventID: "event-1", UserID: "user-1"})
	select {
	case <-fresh:
	default:
		t.Fatal("fresh channel should receive the notification")
	}
	assert.Equal(t, 1, hub.SubscriberCount())
}
