package repository

import (
	"context"
	"time"

	"github.com/tixgate/tixgate/internal/domain"
)

// LockSeatsParams contains parameters for locking seats
type LockSeatsParams struct {
	EventID     string
	UserID      string
	SeatIDs     []string
	LockedUntil time.Time
}

// ReleaseSeatsParams contains parameters for releasing seat locks.
// UserID empty means a system release that ignores lock ownership.
// SeatIDs empty means all seats the user holds for the event.
type ReleaseSeatsParams struct {
	EventID string
	UserID  string
	SeatIDs []string
}

// SeatRepository defines Postgres-backed seat inventory operations
type SeatRepository interface {
	// GetByIDs loads seats by id for an event
	GetByIDs(ctx context.Context, eventID string, seatIDs []string) ([]*domain.Seat, error)

	// LockSeats attempts to lock each requested seat with a guarded update.
	// The result reports granted and refused seats; partial success is
	// returned as-is and the caller decides what to do with granted seats.
	LockSeats(ctx context.Context, params LockSeatsParams) (*domain.LockResult, error)

	// ReleaseSeats returns locked seats to available, honoring ownership
	// scoping, and reports how many rows changed
	ReleaseSeats(ctx context.Context, params ReleaseSeatsParams) (int64, error)

	// ReconcileExpired returns every seat whose lock has lapsed to
	// available and reports how many were reclaimed
	ReconcileExpired(ctx context.Context, now time.Time) (int64, error)

	// AvailableSeats lists seats open for locking in an event, optionally
	// filtered by category
	AvailableSeats(ctx context.Context, eventID, categoryID string, limit int) ([]*domain.Seat, error)

	// Summary aggregates seat counts per category for an event
	Summary(ctx context.Context, eventID string) ([]domain.CategorySummary, error)
}
