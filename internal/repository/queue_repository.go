package repository

import (
	"context"
	"time"

	"github.com/tixgate/tixgate/internal/domain"
)

// JoinQueueParams contains parameters for joining a queue
type JoinQueueParams struct {
	UserID     string
	EventID    string
	TTLSeconds int
}

// JoinQueueResult represents the result of joining a queue
type JoinQueueResult struct {
	Joined       bool // false when the user was already queued
	Position     int64
	TotalInQueue int64
	JoinedAt     time.Time
}

// QueuePositionResult represents the result of a position lookup
type QueuePositionResult struct {
	Position     int64
	TotalInQueue int64
	IsInQueue    bool
}

// QueueRepository defines Redis-backed queue operations
type QueueRepository interface {
	// Join atomically adds a user to the event queue, preserving arrival
	// order. Joining twice is a no-op that reports the existing position.
	Join(ctx context.Context, params JoinQueueParams) (*JoinQueueResult, error)

	// Position returns the user's 1-based rank and the queue size
	Position(ctx context.Context, eventID, userID string) (*QueuePositionResult, error)

	// Leave removes a user from the queue, reporting whether anything was removed
	Leave(ctx context.Context, eventID, userID string) (bool, error)

	// Size returns the number of users queued for an event
	Size(ctx context.Context, eventID string) (int64, error)

	// Stats returns queue size plus oldest and newest join times
	Stats(ctx context.Context, eventID string) (*domain.QueueStats, error)

	// Entries returns up to limit entries in rank order with 1-based positions
	Entries(ctx context.Context, eventID string, limit int64) ([]domain.QueueEntry, error)

	// AdmitBatch atomically removes up to count users from the front of the
	// queue and returns them in admission order
	AdmitBatch(ctx context.Context, eventID string, count int64) ([]string, error)

	// ActiveQueueEventIDs lists event ids that currently have queue state
	ActiveQueueEventIDs(ctx context.Context) ([]string, error)

	// StoreQueuePass stores an admission token for a user with TTL
	StoreQueuePass(ctx context.Context, eventID, userID, token string, ttl time.Duration) error

	// GetQueuePass returns the stored admission token, empty if absent
	GetQueuePass(ctx context.Context, eventID, userID string) (string, error)

	// DeleteQueuePass removes the admission token after use
	DeleteQueuePass(ctx context.Context, eventID, userID string) error
}
