package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tixgate/tixgate/internal/domain"
	"github.com/tixgate/tixgate/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// PostgresBookingRepository implements BookingRepository using PostgreSQL with pgxpool
type PostgresBookingRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresBookingRepository creates a new PostgresBookingRepository
func NewPostgresBookingRepository(pool *pgxpool.Pool) *PostgresBookingRepository {
	return &PostgresBookingRepository{pool: pool}
}

// lockedSeat is a seat row loaded under FOR UPDATE during booking creation
type lockedSeat struct {
	ID           string
	CategoryID   string
	Status       string
	LockedUntil  *time.Time
	LockedByUser *string
	Price        float64
}

// Create books the requested seats in a single transaction
func (r *PostgresBookingRepository) Create(ctx context.Context, params CreateBookingParams) (*domain.Booking, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.booking.create")
	defer span.End()

	span.SetAttributes(
		attribute.String("booking_id", params.BookingID),
		attribute.String("user_id", params.UserID),
		attribute.String("event_id", params.EventID),
		attribute.Int("seat_count", len(params.SeatIDs)),
	)

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// Lock the seat rows so concurrent creates serialize per seat
	seatQuery := `
		SELECT s.id, s.category_id, s.status, s.locked_until, s.locked_by_user, c.price
		FROM seats s
		JOIN seat_categories c ON c.id = s.category_id
		WHERE s.event_id = $1 AND s.id = ANY($2)
		FOR UPDATE OF s
	`

	rows, err := tx.Query(ctx, seatQuery, params.EventID, params.SeatIDs)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to load seats: %w", err)
	}

	seats := make(map[string]*lockedSeat, len(params.SeatIDs))
	for rows.Next() {
		s := &lockedSeat{}
		if err := rows.Scan(&s.ID, &s.CategoryID, &s.Status, &s.LockedUntil, &s.LockedByUser, &s.Price); err != nil {
			rows.Close()
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, fmt.Errorf("failed to scan seat: %w", err)
		}
		seats[s.ID] = s
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to read seats: %w", err)
	}

	// Every requested seat must exist and be bookable by this user:
	// held by them, free, or holding a lapsed lock. Anything else aborts
	// the whole booking.
	now := time.Now()
	var totalAmount float64
	items := make([]domain.BookingItem, 0, len(params.SeatIDs))
	seen := make(map[string]struct{}, len(params.SeatIDs))

	for _, seatID := range params.SeatIDs {
		// A repeated seat id must not price or insert the seat twice
		if _, dup := seen[seatID]; dup {
			continue
		}
		seen[seatID] = struct{}{}

		seat, ok := seats[seatID]
		if !ok {
			span.SetStatus(codes.Error, "seat not found")
			return nil, domain.ErrSeatUnavailable
		}

		switch {
		case seat.Status == "sold":
			span.SetStatus(codes.Error, "seat sold")
			return nil, domain.ErrSeatUnavailable
		case seat.Status == "available":
			// lockable right now
		case seat.Status == "locked" && seat.LockedUntil != nil && seat.LockedUntil.Before(now):
			// lapsed lock, reclaimable
		case seat.Status == "locked" && seat.LockedByUser != nil && *seat.LockedByUser == params.UserID:
			// caller's own live lock
		default:
			span.SetStatus(codes.Error, "seat held by another user")
			return nil, domain.ErrSeatUnavailable
		}

		totalAmount += seat.Price
		items = append(items, domain.BookingItem{
			BookingID:  params.BookingID,
			SeatID:     seatID,
			CategoryID: seat.CategoryID,
			Price:      seat.Price,
		})
	}

	booking := &domain.Booking{
		ID:            params.BookingID,
		UserID:        params.UserID,
		EventID:       params.EventID,
		TotalAmount:   totalAmount,
		Currency:      params.Currency,
		Status:        domain.BookingStatusPending,
		PaymentStatus: domain.PaymentStatusUnpaid,
		ExpiresAt:     params.ExpiresAt,
		CreatedAt:     now,
		Items:         items,
	}

	insertBooking := `
		INSERT INTO bookings (
			id, user_id, event_id, total_amount, currency,
			status, payment_status, booking_expires_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	if _, err := tx.Exec(ctx, insertBooking,
		booking.ID, booking.UserID, booking.EventID, booking.TotalAmount,
		booking.Currency, string(booking.Status), string(booking.PaymentStatus),
		booking.ExpiresAt, booking.CreatedAt,
	); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to insert booking: %w", err)
	}

	insertItem := `
		INSERT INTO booking_items (booking_id, seat_id, category_id, price)
		VALUES ($1, $2, $3, $4)
	`
	for _, item := range items {
		if _, err := tx.Exec(ctx, insertItem,
			item.BookingID, item.SeatID, item.CategoryID, item.Price); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, fmt.Errorf("failed to insert booking item: %w", err)
		}
	}

	// Re-stamp every seat lock to the booking expiry so the hold and the
	// booking lapse together
	restamp := `
		UPDATE seats
		SET status = 'locked', locked_by_user = $1, locked_until = $2
		WHERE event_id = $3 AND id = ANY($4)
	`
	if _, err := tx.Exec(ctx, restamp,
		params.UserID, params.ExpiresAt, params.EventID, params.SeatIDs); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to re-stamp seat locks: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to commit booking: %w", err)
	}

	span.SetAttributes(attribute.Float64("total_amount", totalAmount))
	span.SetStatus(codes.Ok, "")
	return booking, nil
}

const bookingColumns = `
	id, user_id, event_id, total_amount, currency, status,
	payment_status, payment_id, booking_expires_at, created_at, confirmed_at
`

func scanBooking(row pgx.Row) (*domain.Booking, error) {
	booking := &domain.Booking{}
	var status, paymentStatus string

	err := row.Scan(
		&booking.ID, &booking.UserID, &booking.EventID, &booking.TotalAmount,
		&booking.Currency, &status, &paymentStatus, &booking.PaymentID,
		&booking.ExpiresAt, &booking.CreatedAt, &booking.ConfirmedAt,
	)
	if err != nil {
		return nil, err
	}

	booking.Status = domain.BookingStatus(status)
	booking.PaymentStatus = domain.PaymentStatus(paymentStatus)
	return booking, nil
}

func (r *PostgresBookingRepository) loadItems(ctx context.Context, q interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}, bookingID string) ([]domain.BookingItem, error) {
	rows, err := q.Query(ctx,
		`SELECT booking_id, seat_id, category_id, price FROM booking_items WHERE booking_id = $1`,
		bookingID)
	if err != nil {
		return nil, fmt.Errorf("failed to load booking items: %w", err)
	}
	defer rows.Close()

	var items []domain.BookingItem
	for rows.Next() {
		var item domain.BookingItem
		if err := rows.Scan(&item.BookingID, &item.SeatID, &item.CategoryID, &item.Price); err != nil {
			return nil, fmt.Errorf("failed to scan booking item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read booking items: %w", err)
	}
	return items, nil
}

// GetByID loads a booking with its items
func (r *PostgresBookingRepository) GetByID(ctx context.Context, id string) (*domain.Booking, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.booking.get_by_id")
	defer span.End()

	span.SetAttributes(attribute.String("booking_id", id))

	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`
	booking, err := scanBooking(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			span.SetStatus(codes.Error, "not found")
			return nil, domain.ErrBookingNotFound
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}

	items, err := r.loadItems(ctx, r.pool, id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	booking.Items = items

	span.SetStatus(codes.Ok, "")
	return booking, nil
}

// Confirm finalizes a pending unexpired booking, marking its seats sold
func (r *PostgresBookingRepository) Confirm(ctx context.Context, bookingID, paymentID string, now time.Time) (*domain.Booking, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.booking.confirm")
	defer span.End()

	span.SetAttributes(attribute.String("booking_id", bookingID))

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1 FOR UPDATE`
	booking, err := scanBooking(tx.QueryRow(ctx, query, bookingID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			span.SetStatus(codes.Error, "not found")
			return nil, domain.ErrBookingNotFound
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}

	if booking.Status != domain.BookingStatusPending {
		span.SetStatus(codes.Error, "not pending")
		return nil, domain.ErrInvalidBookingStatus
	}
	// The hold is gone at the exact expiry instant, not one tick after
	if !now.Before(booking.ExpiresAt) {
		span.SetStatus(codes.Error, "expired")
		return nil, domain.ErrBookingExpired
	}

	update := `
		UPDATE bookings
		SET status = 'confirmed', payment_status = 'paid', payment_id = $2, confirmed_at = $3
		WHERE id = $1
	`
	if _, err := tx.Exec(ctx, update, bookingID, paymentID, now); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to confirm booking: %w", err)
	}

	sellSeats := `
		UPDATE seats
		SET status = 'sold', locked_until = NULL, locked_by_user = NULL
		WHERE id IN (SELECT seat_id FROM booking_items WHERE booking_id = $1)
	`
	if _, err := tx.Exec(ctx, sellSeats, bookingID); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to mark seats sold: %w", err)
	}

	items, err := r.loadItems(ctx, tx, bookingID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to commit confirmation: %w", err)
	}

	booking.Status = domain.BookingStatusConfirmed
	booking.PaymentStatus = domain.PaymentStatusPaid
	booking.PaymentID = &paymentID
	booking.ConfirmedAt = &now
	booking.Items = items

	span.SetStatus(codes.Ok, "")
	return booking, nil
}

// Cancel voids a pending booking and releases its seats
func (r *PostgresBookingRepository) Cancel(ctx context.Context, params CancelBookingParams) (*domain.Booking, int64, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.booking.cancel")
	defer span.End()

	span.SetAttributes(attribute.String("booking_id", params.BookingID))

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1 FOR UPDATE`
	booking, err := scanBooking(tx.QueryRow(ctx, query, params.BookingID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			span.SetStatus(codes.Error, "not found")
			return nil, 0, domain.ErrBookingNotFound
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, 0, fmt.Errorf("failed to get booking: %w", err)
	}

	if params.UserID != "" && booking.UserID != params.UserID {
		span.SetStatus(codes.Error, "not owned")
		return nil, 0, domain.ErrBookingNotOwned
	}
	if booking.Status != domain.BookingStatusPending {
		span.SetStatus(codes.Error, "not pending")
		return nil, 0, domain.ErrInvalidBookingStatus
	}

	update := `UPDATE bookings SET status = 'cancelled' WHERE id = $1`
	if _, err := tx.Exec(ctx, update, params.BookingID); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, 0, fmt.Errorf("failed to cancel booking: %w", err)
	}

	// Only release seats this booking still holds; a lapsed lock already
	// reclaimed by someone else stays theirs
	release := `
		UPDATE seats
		SET status = 'available', locked_until = NULL, locked_by_user = NULL
		WHERE id IN (SELECT seat_id FROM booking_items WHERE booking_id = $1)
		  AND status = 'locked' AND locked_by_user = $2
	`
	tag, err := tx.Exec(ctx, release, params.BookingID, booking.UserID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, 0, fmt.Errorf("failed to release seats: %w", err)
	}

	items, err := r.loadItems(ctx, tx, params.BookingID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, 0, fmt.Errorf("failed to commit cancellation: %w", err)
	}

	booking.Status = domain.BookingStatusCancelled
	booking.Items = items

	span.SetAttributes(attribute.Int64("seats_released", tag.RowsAffected()))
	span.SetStatus(codes.Ok, "")
	return booking, tag.RowsAffected(), nil
}

// GetExpired lists pending bookings whose hold lapsed before now
func (r *PostgresBookingRepository) GetExpired(ctx context.Context, now time.Time, limit int) ([]*domain.Booking, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.booking.get_expired")
	defer span.End()

	query := `SELECT ` + bookingColumns + `
		FROM bookings
		WHERE status = 'pending' AND booking_expires_at < $1
		ORDER BY booking_expires_at
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, now, limit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to get expired bookings: %w", err)
	}
	defer rows.Close()

	var bookings []*domain.Booking
	for rows.Next() {
		booking, err := scanBooking(rows)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		bookings = append(bookings, booking)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to read expired bookings: %w", err)
	}

	span.SetAttributes(attribute.Int("count", len(bookings)))
	span.SetStatus(codes.Ok, "")
	return bookings, nil
}

// Ensure PostgresBookingRepository implements BookingRepository
var _ BookingRepository = (*PostgresBookingRepository)(nil)
