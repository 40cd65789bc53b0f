package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tixgate/tixgate/internal/domain"
	"github.com/tixgate/tixgate/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// PostgresSeatRepository implements SeatRepository using PostgreSQL with pgxpool
type PostgresSeatRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresSeatRepository creates a new PostgresSeatRepository
func NewPostgresSeatRepository(pool *pgxpool.Pool) *PostgresSeatRepository {
	return &PostgresSeatRepository{pool: pool}
}

// lockSeatQuery grants a seat when it is free, when its previous lock has
// lapsed, or when the same user already holds a live lock (re-entrant).
// The status guard makes concurrent lockers first-committer-wins.
const lockSeatQuery = `
	UPDATE seats
	SET status = 'locked', locked_until = $1, locked_by_user = $2
	WHERE id = $3 AND event_id = $4
	  AND (
		status = 'available'
		OR (status = 'locked' AND (locked_until IS NULL OR locked_until < NOW()))
		OR (status = 'locked' AND locked_by_user = $2 AND locked_until >= NOW())
	  )
`

// GetByIDs loads seats by id for an event
func (r *PostgresSeatRepository) GetByIDs(ctx context.Context, eventID string, seatIDs []string) ([]*domain.Seat, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.seat.get_by_ids")
	defer span.End()

	span.SetAttributes(
		attribute.String("event_id", eventID),
		attribute.Int("seat_count", len(seatIDs)),
	)

	query := `
		SELECT id, event_id, category_id, seat_number, row_number, section,
		       status, locked_until, locked_by_user
		FROM seats
		WHERE event_id = $1 AND id = ANY($2)
	`

	rows, err := r.pool.Query(ctx, query, eventID, seatIDs)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to get seats: %w", err)
	}
	defer rows.Close()

	var seats []*domain.Seat
	for rows.Next() {
		seat := &domain.Seat{}
		var status string
		if err := rows.Scan(
			&seat.ID, &seat.EventID, &seat.CategoryID, &seat.SeatNumber,
			&seat.RowNumber, &seat.Section, &status, &seat.LockedUntil,
			&seat.LockedByUser,
		); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, fmt.Errorf("failed to scan seat: %w", err)
		}
		seat.Status = domain.SeatStatus(status)
		seats = append(seats, seat)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to read seats: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	return seats, nil
}

// LockSeats attempts to lock each requested seat with a guarded update
func (r *PostgresSeatRepository) LockSeats(ctx context.Context, params LockSeatsParams) (*domain.LockResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.seat.lock")
	defer span.End()

	span.SetAttributes(
		attribute.String("event_id", params.EventID),
		attribute.String("user_id", params.UserID),
		attribute.Int("seat_count", len(params.SeatIDs)),
	)

	result := &domain.LockResult{LockedUntil: params.LockedUntil}

	for _, seatID := range params.SeatIDs {
		tag, err := r.pool.Exec(ctx, lockSeatQuery,
			params.LockedUntil, params.UserID, seatID, params.EventID)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, fmt.Errorf("failed to lock seat %s: %w", seatID, err)
		}
		if tag.RowsAffected() == 1 {
			result.Locked = append(result.Locked, seatID)
		} else {
			result.Failed = append(result.Failed, seatID)
		}
	}

	span.SetAttributes(
		attribute.Int("locked", len(result.Locked)),
		attribute.Int("failed", len(result.Failed)),
	)
	span.SetStatus(codes.Ok, "")
	return result, nil
}

// ReleaseSeats returns locked seats to available
func (r *PostgresSeatRepository) ReleaseSeats(ctx context.Context, params ReleaseSeatsParams) (int64, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.seat.release")
	defer span.End()

	span.SetAttributes(
		attribute.String("event_id", params.EventID),
		attribute.String("user_id", params.UserID),
	)

	query := `
		UPDATE seats
		SET status = 'available', locked_until = NULL, locked_by_user = NULL
		WHERE event_id = $1 AND status = 'locked'
	`
	args := []interface{}{params.EventID}

	if params.UserID != "" {
		args = append(args, params.UserID)
		query += fmt.Sprintf(" AND locked_by_user = $%d", len(args))
	}
	if len(params.SeatIDs) > 0 {
		args = append(args, params.SeatIDs)
		query += fmt.Sprintf(" AND id = ANY($%d)", len(args))
	}

	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, fmt.Errorf("failed to release seats: %w", err)
	}

	span.SetAttributes(attribute.Int64("released", tag.RowsAffected()))
	span.SetStatus(codes.Ok, "")
	return tag.RowsAffected(), nil
}

// ReconcileExpired returns every seat whose lock has lapsed to available
func (r *PostgresSeatRepository) ReconcileExpired(ctx context.Context, now time.Time) (int64, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.seat.reconcile_expired")
	defer span.End()

	query := `
		UPDATE seats
		SET status = 'available', locked_until = NULL, locked_by_user = NULL
		WHERE status = 'locked' AND locked_until IS NOT NULL AND locked_until < $1
	`

	tag, err := r.pool.Exec(ctx, query, now)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, fmt.Errorf("failed to reconcile expired seat locks: %w", err)
	}

	span.SetAttributes(attribute.Int64("reclaimed", tag.RowsAffected()))
	span.SetStatus(codes.Ok, "")
	return tag.RowsAffected(), nil
}

// AvailableSeats lists seats open for locking in an event
func (r *PostgresSeatRepository) AvailableSeats(ctx context.Context, eventID, categoryID string, limit int) ([]*domain.Seat, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.seat.available")
	defer span.End()

	span.SetAttributes(attribute.String("event_id", eventID))

	query := `
		SELECT id, event_id, category_id, seat_number, row_number, section,
		       status, locked_until, locked_by_user
		FROM seats
		WHERE event_id = $1
		  AND (
			status = 'available'
			OR (status = 'locked' AND locked_until IS NOT NULL AND locked_until < NOW())
		  )
	`
	args := []interface{}{eventID}

	if categoryID != "" {
		args = append(args, categoryID)
		query += fmt.Sprintf(" AND category_id = $%d", len(args))
	}
	query += " ORDER BY section, row_number, seat_number"
	if limit > 0 {
		args = append(args, limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to list available seats: %w", err)
	}
	defer rows.Close()

	var seats []*domain.Seat
	for rows.Next() {
		seat := &domain.Seat{}
		var status string
		if err := rows.Scan(
			&seat.ID, &seat.EventID, &seat.CategoryID, &seat.SeatNumber,
			&seat.RowNumber, &seat.Section, &status, &seat.LockedUntil,
			&seat.LockedByUser,
		); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, fmt.Errorf("failed to scan seat: %w", err)
		}
		seat.Status = domain.SeatStatus(status)
		seats = append(seats, seat)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to read seats: %w", err)
	}

	span.SetAttributes(attribute.Int("count", len(seats)))
	span.SetStatus(codes.Ok, "")
	return seats, nil
}

// Summary aggregates seat counts per category for an event. A lapsed lock
// counts as available even before the sweeper reclaims it.
func (r *PostgresSeatRepository) Summary(ctx context.Context, eventID string) ([]domain.CategorySummary, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.seat.summary")
	defer span.End()

	span.SetAttributes(attribute.String("event_id", eventID))

	query := `
		SELECT
			c.id, c.category_name, c.price,
			COUNT(s.id) AS total,
			COUNT(s.id) FILTER (
				WHERE s.status = 'available'
				   OR (s.status = 'locked' AND s.locked_until IS NOT NULL AND s.locked_until < NOW())
			) AS available,
			COUNT(s.id) FILTER (
				WHERE s.status = 'locked' AND s.locked_until IS NOT NULL AND s.locked_until >= NOW()
			) AS locked,
			COUNT(s.id) FILTER (WHERE s.status = 'sold') AS sold
		FROM seat_categories c
		LEFT JOIN seats s ON s.category_id = c.id
		WHERE c.event_id = $1
		GROUP BY c.id, c.category_name, c.price
		ORDER BY c.price DESC
	`

	rows, err := r.pool.Query(ctx, query, eventID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to get inventory summary: %w", err)
	}
	defer rows.Close()

	var summaries []domain.CategorySummary
	for rows.Next() {
		var s domain.CategorySummary
		if err := rows.Scan(&s.CategoryID, &s.CategoryName, &s.Price,
			&s.Total, &s.Available, &s.Locked, &s.Sold); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, fmt.Errorf("failed to scan category summary: %w", err)
		}
		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to read inventory summary: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	return summaries, nil
}

// Ensure PostgresSeatRepository implements SeatRepository
var _ SeatRepository = (*PostgresSeatRepository)(nil)
