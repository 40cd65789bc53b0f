package domain

import (
	"fmt"
	"math"
	"time"
)

// QueueEntry represents a user's position in the virtual queue
type QueueEntry struct {
	UserID   string    `json:"user_id"`
	EventID  string    `json:"event_id"`
	Position int64     `json:"position"`
	JoinedAt time.Time `json:"joined_at"`
}

// Validate validates the queue entry
func (q *QueueEntry) Validate() error {
	if q.UserID == "" {
		return ErrInvalidUserID
	}
	if q.EventID == "" {
		return ErrInvalidEventID
	}
	return nil
}

// QueueStats describes the current state of an event queue
type QueueStats struct {
	EventID        string     `json:"event_id"`
	Size           int64      `json:"size"`
	OldestJoinedAt *time.Time `json:"oldest_joined_at,omitempty"`
	NewestJoinedAt *time.Time `json:"newest_joined_at,omitempty"`
}

// WaitEstimate is an estimated time until admission based on queue position
type WaitEstimate struct {
	Milliseconds int64  `json:"milliseconds"`
	Seconds      int64  `json:"seconds"`
	Minutes      int64  `json:"minutes"`
	Human        string `json:"human"`
}

// NewWaitEstimate computes the estimated wait for a 1-based position given
// the admission batch size and interval. Position determines how many full
// admission batches must run before the user is included.
func NewWaitEstimate(position int64, batchSize int64, batchInterval time.Duration) WaitEstimate {
	if position < 1 {
		position = 1
	}
	if batchSize < 1 {
		batchSize = 1
	}

	batches := int64(math.Ceil(float64(position) / float64(batchSize)))
	wait := time.Duration(batches) * batchInterval

	totalSeconds := int64(wait.Seconds())
	minutes := totalSeconds / 60
	seconds := totalSeconds % 60

	return WaitEstimate{
		Milliseconds: wait.Milliseconds(),
		Seconds:      totalSeconds,
		Minutes:      minutes,
		Human:        fmt.Sprintf("%dm%ds", minutes, seconds),
	}
}

// QueuePass is an admission token issued when a user leaves the front of
// the queue. Booking creation validates it against the requesting user
// and event.
type QueuePass struct {
	UserID    string    `json:"user_id"`
	EventID   string    `json:"event_id"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
	Token     string    `json:"token"`
}

// IsExpired checks if the queue pass has expired
func (p *QueuePass) IsExpired() bool {
	return time.Now().After(p.ExpiresAt)
}
