package domain

import (
	"fmt"
	"time"
)

// BookingStatus represents the lifecycle state of a booking
type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "pending"
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusCancelled BookingStatus = "cancelled"
)

// PaymentStatus represents the payment state of a booking
type PaymentStatus string

const (
	PaymentStatusUnpaid PaymentStatus = "unpaid"
	PaymentStatusPaid   PaymentStatus = "paid"
	PaymentStatusFailed PaymentStatus = "failed"
)

// Booking represents a pending or finalized seat purchase
type Booking struct {
	ID            string        `json:"id"`
	UserID        string        `json:"user_id"`
	EventID       string        `json:"event_id"`
	TotalAmount   float64       `json:"total_amount"`
	Currency      string        `json:"currency"`
	Status        BookingStatus `json:"status"`
	PaymentStatus PaymentStatus `json:"payment_status"`
	PaymentID     *string       `json:"payment_id,omitempty"`
	ExpiresAt     time.Time     `json:"expires_at"`
	CreatedAt     time.Time     `json:"created_at"`
	ConfirmedAt   *time.Time    `json:"confirmed_at,omitempty"`
	Items         []BookingItem `json:"items,omitempty"`
}

// BookingItem is one seat within a booking
type BookingItem struct {
	BookingID  string  `json:"booking_id"`
	SeatID     string  `json:"seat_id"`
	CategoryID string  `json:"category_id"`
	Price      float64 `json:"price"`
}

// IsExpired reports whether the booking hold has lapsed
func (b *Booking) IsExpired(now time.Time) bool {
	return b.Status == BookingStatusPending && now.After(b.ExpiresAt)
}

// TimeRemaining returns how long the booking hold is still valid, zero if lapsed
func (b *Booking) TimeRemaining(now time.Time) time.Duration {
	if b.Status != BookingStatusPending {
		return 0
	}
	remaining := b.ExpiresAt.Sub(now)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// SeatIDs returns the seat ids held by this booking
func (b *Booking) SeatIDs() []string {
	ids := make([]string, 0, len(b.Items))
	for _, item := range b.Items {
		ids = append(ids, item.SeatID)
	}
	return ids
}

// BookingSession is the Redis mirror of an in-flight booking. The Postgres
// row stays authoritative; the mirror only speeds up status polling.
type BookingSession struct {
	BookingID   string        `json:"booking_id"`
	UserID      string        `json:"user_id"`
	EventID     string        `json:"event_id"`
	SeatIDs     []string      `json:"seat_ids"`
	TotalAmount float64       `json:"total_amount"`
	Status      BookingStatus `json:"status"`
	ExpiresAt   time.Time     `json:"expires_at"`
	CreatedAt   time.Time     `json:"created_at"`
}

// BookingEventType identifies a booking lifecycle event
type BookingEventType string

const (
	BookingEventCreated   BookingEventType = "booking.created"
	BookingEventConfirmed BookingEventType = "booking.confirmed"
	BookingEventCancelled BookingEventType = "booking.cancelled"
	BookingEventExpired   BookingEventType = "booking.expired"
)

// BookingEvent is the message published on booking lifecycle transitions
type BookingEvent struct {
	EventID     string           `json:"event_id"`
	Type        BookingEventType `json:"type"`
	BookingID   string           `json:"booking_id"`
	UserID      string           `json:"user_id"`
	TicketEvent string           `json:"ticket_event_id"`
	TotalAmount float64          `json:"total_amount"`
	Status      BookingStatus    `json:"status"`
	SeatIDs     []string         `json:"seat_ids,omitempty"`
	OccurredAt  time.Time        `json:"occurred_at"`
}

// NewBookingEvent builds a lifecycle event for the given booking
func NewBookingEvent(eventType BookingEventType, booking *Booking, eventID string) *BookingEvent {
	return &BookingEvent{
		EventID:     eventID,
		Type:        eventType,
		BookingID:   booking.ID,
		UserID:      booking.UserID,
		TicketEvent: booking.EventID,
		TotalAmount: booking.TotalAmount,
		Status:      booking.Status,
		SeatIDs:     booking.SeatIDs(),
		OccurredAt:  time.Now(),
	}
}

// Key returns the Kafka partition key so all events for one booking stay ordered
func (e *BookingEvent) Key() string {
	return fmt.Sprintf("booking:%s", e.BookingID)
}
