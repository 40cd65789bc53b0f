package dto

import (
	"time"

	"github.com/tixgate/tixgate/internal/domain"
)

// LockSeatsRequest represents request to lock seats for a user
type LockSeatsRequest struct {
	EventID string   `json:"event_id" binding:"required"`
	SeatIDs []string `json:"seat_ids" binding:"required,min=1,max=10,unique"`
}

// LockSeatsResponse reports per-seat lock outcome
type LockSeatsResponse struct {
	Locked      []string  `json:"locked"`
	Failed      []string  `json:"failed"`
	LockedUntil time.Time `json:"locked_until"`
	AllLocked   bool      `json:"all_locked"`
}

// PartialLockResponse is the conflict body when only some requested
// seats could be locked
type PartialLockResponse struct {
	LockSeatsResponse
	Error string `json:"error"`
	Code  string `json:"code"`
}

// ReleaseSeatsRequest represents request to release held seats
type ReleaseSeatsRequest struct {
	EventID string   `json:"event_id" binding:"required"`
	SeatIDs []string `json:"seat_ids,omitempty"`
}

// ReleaseSeatsResponse reports how many seats were released
type ReleaseSeatsResponse struct {
	Released int64 `json:"released"`
}

// SeatResponse represents one seat in API responses
type SeatResponse struct {
	ID         string `json:"id"`
	SeatNumber string `json:"seat_number"`
	RowNumber  string `json:"row_number"`
	Section    string `json:"section"`
	CategoryID string `json:"category_id"`
	Status     string `json:"status"`
}

// SeatFromDomain converts a domain Seat to SeatResponse
func SeatFromDomain(s *domain.Seat) *SeatResponse {
	return &SeatResponse{
		ID:         s.ID,
		SeatNumber: s.SeatNumber,
		RowNumber:  s.RowNumber,
		Section:    s.Section,
		CategoryID: s.CategoryID,
		Status:     string(s.Status),
	}
}

// InventorySummaryResponse aggregates availability per category
type InventorySummaryResponse struct {
	EventID    string                   `json:"event_id"`
	Categories []domain.CategorySummary `json:"categories"`
}
