package domain

import "time"

// SeatStatus represents the lifecycle state of a seat
type SeatStatus string

const (
	SeatStatusAvailable SeatStatus = "available"
	SeatStatusLocked    SeatStatus = "locked"
	SeatStatusSold      SeatStatus = "sold"
)

// Seat represents a single sellable seat in an event's inventory
type Seat struct {
	ID           string     `json:"id"`
	EventID      string     `json:"event_id"`
	CategoryID   string     `json:"category_id"`
	SeatNumber   string     `json:"seat_number"`
	RowNumber    string     `json:"row_number"`
	Section      string     `json:"section"`
	Status       SeatStatus `json:"status"`
	LockedUntil  *time.Time `json:"locked_until,omitempty"`
	LockedByUser *string    `json:"locked_by_user,omitempty"`
}

// IsLockExpired reports whether the seat holds a lock that has lapsed
func (s *Seat) IsLockExpired(now time.Time) bool {
	return s.Status == SeatStatusLocked && s.LockedUntil != nil && s.LockedUntil.Before(now)
}

// IsLockedBy reports whether the seat is currently locked by the given user
func (s *Seat) IsLockedBy(userID string, now time.Time) bool {
	return s.Status == SeatStatusLocked &&
		s.LockedByUser != nil && *s.LockedByUser == userID &&
		s.LockedUntil != nil && !s.LockedUntil.Before(now)
}

// SeatCategory is a pricing tier within an event
type SeatCategory struct {
	ID           string  `json:"id"`
	EventID      string  `json:"event_id"`
	CategoryName string  `json:"category_name"`
	Price        float64 `json:"price"`
}

// LockResult reports per-seat outcome of a lock attempt. A partially
// successful attempt returns both slices non-empty; the caller decides
// whether to keep or release the granted seats.
type LockResult struct {
	Locked      []string  `json:"locked"`
	Failed      []string  `json:"failed"`
	LockedUntil time.Time `json:"locked_until"`
}

// AllLocked reports whether every requested seat was granted
func (r *LockResult) AllLocked() bool {
	return len(r.Failed) == 0 && len(r.Locked) > 0
}

// CategorySummary aggregates seat availability for one pricing tier
type CategorySummary struct {
	CategoryID   string  `json:"category_id"`
	CategoryName string  `json:"category_name"`
	Price        float64 `json:"price"`
	Total        int64   `json:"total"`
	Available    int64   `json:"available"`
	Locked       int64   `json:"locked"`
	Sold         int64   `json:"sold"`
}
