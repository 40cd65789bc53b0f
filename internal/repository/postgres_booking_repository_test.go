package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/tixgate/tixgate/internal/domain"
)

func TestPostgresBookingRepository_Confirm_ExpiryBoundary(t *testing.T) {
	pool := getPostgresPool(t)
	defer pool.Close()

	repo := NewPostgresBookingRepository(pool)
	ctx := context.Background()
	eventID, _, seatIDs := seedTestSeats(t, pool, 1)

	bookingID := "test-booking-" + uuid.New().String()
	expiresAt := time.Now().Add(10 * time.Minute)

	t.Cleanup(func() {
		pool.Exec(ctx, `DELETE FROM booking_items WHERE booking_id = $1`, bookingID)
		pool.Exec(ctx, `DELETE FROM bookings WHERE id = $1`, bookingID)
	})

	booking, err := repo.Create(ctx, CreateBookingParams{
		BookingID: bookingID,
		UserID:    "test-user-001",
		EventID:   eventID,
		SeatIDs:   seatIDs,
		Currency:  "THB",
		ExpiresAt: expiresAt,
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if booking.Status != domain.BookingStatusPending {
		t.Fatalf("status = %s, want pending", booking.Status)
	}

	// The hold is gone at the exact expiry instant
	_, err = repo.Confirm(ctx, bookingID, "test-pay-001", expiresAt)
	if err != domain.ErrBookingExpired {
		t.Fatalf("Confirm at expiry = %v, want ErrBookingExpired", err)
	}

	// The failed confirm must leave the booking pending so a payment that
	// arrives in time can still land
	confirmed, err := repo.Confirm(ctx, bookingID, "test-pay-001", expiresAt.Add(-time.Second))
	if err != nil {
		t.Fatalf("Confirm before expiry failed: %v", err)
	}
	if confirmed.Status != domain.BookingStatusConfirmed {
		t.Errorf("status = %s, want confirmed", confirmed.Status)
	}
	if confirmed.PaymentID == nil || *confirmed.PaymentID != "test-pay-001" {
		t.Errorf("PaymentID = %v, want test-pay-001", confirmed.PaymentID)
	}
}
