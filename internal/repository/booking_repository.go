package repository

import (
	"context"
	"time"

	"github.com/tixgate/tixgate/internal/domain"
)

// CreateBookingParams contains parameters for creating a booking
type CreateBookingParams struct {
	BookingID string
	UserID    string
	EventID   string
	SeatIDs   []string
	Currency  string
	ExpiresAt time.Time
}

// CancelBookingParams contains parameters for cancelling a booking.
// UserID empty means a system cancellation that skips the ownership check.
type CancelBookingParams struct {
	BookingID string
	UserID    string
}

// BookingRepository defines Postgres-backed booking operations
type BookingRepository interface {
	// Create books the requested seats in a single transaction. Every seat
	// must be held by the caller or immediately lockable; otherwise nothing
	// is written. Granted seat locks are re-stamped to the booking expiry.
	Create(ctx context.Context, params CreateBookingParams) (*domain.Booking, error)

	// GetByID loads a booking with its items
	GetByID(ctx context.Context, id string) (*domain.Booking, error)

	// Confirm finalizes a pending unexpired booking, marking its seats sold
	Confirm(ctx context.Context, bookingID, paymentID string, now time.Time) (*domain.Booking, error)

	// Cancel voids a pending booking and releases its seats, reporting how
	// many seats were returned to the pool
	Cancel(ctx context.Context, params CancelBookingParams) (*domain.Booking, int64, error)

	// GetExpired lists pending bookings whose hold lapsed before now
	GetExpired(ctx context.Context, now time.Time, limit int) ([]*domain.Booking, error)
}
