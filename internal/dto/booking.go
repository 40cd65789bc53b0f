package dto

import (
	"time"

	"github.com/tixgate/tixgate/internal/domain"
)

// CreateBookingRequest represents request to create a booking
type CreateBookingRequest struct {
	EventID   string   `json:"event_id" binding:"required"`
	SeatIDs   []string `json:"seat_ids" binding:"required,min=1,max=10,unique"`
	QueuePass string   `json:"queue_pass,omitempty"`
}

// CreateBookingResponse represents response after creating a booking
type CreateBookingResponse struct {
	BookingID   string    `json:"booking_id"`
	Status      string    `json:"status"`
	TotalAmount float64   `json:"total_amount"`
	Currency    string    `json:"currency"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// ConfirmBookingRequest represents request to confirm a booking
type ConfirmBookingRequest struct {
	PaymentID string `json:"payment_id,omitempty"`
}

// CancelBookingResponse represents response after cancelling a booking
type CancelBookingResponse struct {
	BookingID     string `json:"booking_id"`
	Status        string `json:"status"`
	SeatsReleased int64  `json:"seats_released"`
}

// BookingItemResponse is one seat line within a booking response
type BookingItemResponse struct {
	SeatID     string  `json:"seat_id"`
	CategoryID string  `json:"category_id"`
	Price      float64 `json:"price"`
}

// BookingResponse represents a booking in API responses
type BookingResponse struct {
	ID            string                `json:"id"`
	UserID        string                `json:"user_id"`
	EventID       string                `json:"event_id"`
	Status        string                `json:"status"`
	PaymentStatus string                `json:"payment_status"`
	PaymentID     string                `json:"payment_id,omitempty"`
	TotalAmount   float64               `json:"total_amount"`
	Currency      string                `json:"currency"`
	Items         []BookingItemResponse `json:"items"`
	CreatedAt     time.Time             `json:"created_at"`
	ConfirmedAt   *time.Time            `json:"confirmed_at,omitempty"`
	ExpiresAt     time.Time             `json:"expires_at"`
	IsExpired     bool                  `json:"is_expired"`
	TimeRemaining int64                 `json:"time_remaining_seconds"`
}

// BookingFromDomain converts a domain Booking to BookingResponse
func BookingFromDomain(b *domain.Booking) *BookingResponse {
	now := time.Now()

	items := make([]BookingItemResponse, 0, len(b.Items))
	for _, item := range b.Items {
		items = append(items, BookingItemResponse{
			SeatID:     item.SeatID,
			CategoryID: item.CategoryID,
			Price:      item.Price,
		})
	}

	paymentID := ""
	if b.PaymentID != nil {
		paymentID = *b.PaymentID
	}

	return &BookingResponse{
		ID:            b.ID,
		UserID:        b.UserID,
		EventID:       b.EventID,
		Status:        string(b.Status),
		PaymentStatus: string(b.PaymentStatus),
		PaymentID:     paymentID,
		TotalAmount:   b.TotalAmount,
		Currency:      b.Currency,
		Items:         items,
		CreatedAt:     b.CreatedAt,
		ConfirmedAt:   b.ConfirmedAt,
		ExpiresAt:     b.ExpiresAt,
		IsExpired:     b.IsExpired(now),
		TimeRemaining: int64(b.TimeRemaining(now).Seconds()),
	}
}

// PaymentCallbackRequest is the payment collaborator's result callback
type PaymentCallbackRequest struct {
	BookingID string `json:"booking_id" binding:"required"`
	PaymentID string `json:"payment_id" binding:"required"`
	Status    string `json:"status" binding:"required,oneof=succeeded failed"`
}

// PaymentCallbackResponse acknowledges the callback outcome
type PaymentCallbackResponse struct {
	BookingID string `json:"booking_id"`
	Status    string `json:"status"`
}
