package fanout

import (
	"sync"
	"time"
)

// NotificationType identifies a queue notification
type NotificationType string

const (
	NotificationQueueAdvanced  NotificationType = "queue-advanced"
	NotificationPositionUpdate NotificationType = "position-update"
)

// Notification is a message pushed to a waiting user
type Notification struct {
	Type         NotificationType `json:"type"`
	EventID      string           `json:"event_id"`
	UserID       string           `json:"user_id"`
	Position     int64            `json:"position,omitempty"`
	UsersAhead   int64            `json:"users_ahead,omitempty"`
	WaitEstimate string           `json:"wait_estimate,omitempty"`
	QueuePass    string           `json:"queue_pass,omitempty"`
	Timestamp    time.Time        `json:"timestamp"`
}

type subscriberKey struct {
	eventID string
	userID  string
}

// Hub routes queue notifications to per-(event,user) subscriber channels.
// Delivery is best effort at-most-once: a full or absent subscriber buffer
// drops the notification rather than blocking the sender.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[subscriberKey]chan Notification
	bufferSize  int

	dropped int64
	sent    int64
}

// NewHub creates a new notification hub
func NewHub(bufferSize int) *Hub {
	if bufferSize <= 0 {
		bufferSize = 8
	}
	return &Hub{
		subscribers: make(map[subscriberKey]chan Notification),
		bufferSize:  bufferSize,
	}
}

// Subscribe registers a channel for one user's notifications on one event.
// Subscribing again for the same pair replaces the previous channel.
func (h *Hub) Subscribe(eventID, userID string) <-chan Notification {
	key := subscriberKey{eventID: eventID, userID: userID}
	ch := make(chan Notification, h.bufferSize)

	h.mu.Lock()
	if old, ok := h.subscribers[key]; ok {
		close(old)
	}
	h.subscribers[key] = ch
	h.mu.Unlock()

	return ch
}

// Unsubscribe removes the user's channel and closes it
func (h *Hub) Unsubscribe(eventID, userID string) {
	key := subscriberKey{eventID: eventID, userID: userID}

	h.mu.Lock()
	if ch, ok := h.subscribers[key]; ok {
		delete(h.subscribers, key)
		close(ch)
	}
	h.mu.Unlock()
}

// Publish delivers a notification to the matching subscriber without
// blocking. Returns true when the notification was buffered.
func (h *Hub) Publish(n Notification) bool {
	key := subscriberKey{eventID: n.EventID, userID: n.UserID}

	h.mu.RLock()
	ch, ok := h.subscribers[key]
	h.mu.RUnlock()

	if !ok {
		h.mu.Lock()
		h.dropped++
		h.mu.Unlock()
		return false
	}

	select {
	case ch <- n:
		h.mu.Lock()
		h.sent++
		h.mu.Unlock()
		return true
	default:
		h.mu.Lock()
		h.dropped++
		h.mu.Unlock()
		return false
	}
}

// SubscriberCount returns the number of active subscribers
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// Stats returns delivery counters
func (h *Hub) Stats() (sent, dropped int64) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.sent, h.dropped
}
