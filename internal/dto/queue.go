package dto

import (
	"time"

	"github.com/tixgate/tixgate/internal/domain"
)

// JoinQueueRequest represents request to join the queue
type JoinQueueRequest struct {
	EventID string `json:"event_id" binding:"required"`
}

// JoinQueueResponse represents response after joining the queue
type JoinQueueResponse struct {
	Position     int64               `json:"position"`
	TotalInQueue int64               `json:"total_in_queue"`
	JoinedAt     time.Time           `json:"joined_at"`
	WaitEstimate domain.WaitEstimate `json:"wait_estimate"`
	Message      string              `json:"message,omitempty"`
}

// AlreadyQueuedResponse is the conflict body for a duplicate join,
// carrying the user's existing position
type AlreadyQueuedResponse struct {
	Error        string              `json:"error"`
	Code         string              `json:"code"`
	Position     int64               `json:"position"`
	TotalInQueue int64               `json:"total_in_queue"`
	WaitEstimate domain.WaitEstimate `json:"wait_estimate"`
}

// QueuePositionResponse represents current queue position
type QueuePositionResponse struct {
	Position     int64               `json:"position"`
	TotalInQueue int64               `json:"total_in_queue"`
	UsersAhead   int64               `json:"users_ahead"`
	WaitEstimate domain.WaitEstimate `json:"wait_estimate"`
}

// LeaveQueueRequest represents request to leave the queue
type LeaveQueueRequest struct {
	EventID string `json:"event_id" binding:"required"`
}

// LeaveQueueResponse represents response after leaving the queue
type LeaveQueueResponse struct {
	Removed bool   `json:"removed"`
	Message string `json:"message,omitempty"`
}

// QueueStatsResponse represents aggregate queue state for an event
type QueueStatsResponse struct {
	EventID        string     `json:"event_id"`
	Size           int64      `json:"size"`
	OldestJoinedAt *time.Time `json:"oldest_joined_at,omitempty"`
	NewestJoinedAt *time.Time `json:"newest_joined_at,omitempty"`
}
