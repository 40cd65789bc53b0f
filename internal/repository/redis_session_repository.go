package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/tixgate/tixgate/internal/domain"
	pkgredis "github.com/tixgate/tixgate/pkg/redis"
	"github.com/tixgate/tixgate/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// SessionRepository defines Redis mirrors for in-flight bookings and seat
// locks. Mirrors are disposable caches; Postgres rows stay authoritative.
type SessionRepository interface {
	// SaveSession writes the booking session mirror with TTL
	SaveSession(ctx context.Context, session *domain.BookingSession, ttl time.Duration) error

	// GetSession reads the booking session mirror, nil when absent
	GetSession(ctx context.Context, bookingID string) (*domain.BookingSession, error)

	// DeleteSession removes the booking session mirror
	DeleteSession(ctx context.Context, bookingID string) error

	// MirrorSeatLocks writes per-seat lock owner mirrors with TTL
	MirrorSeatLocks(ctx context.Context, seatIDs []string, userID string, ttl time.Duration) error

	// ClearSeatLocks removes per-seat lock mirrors
	ClearSeatLocks(ctx context.Context, seatIDs []string) error

	// SeatLockOwner reads the mirrored lock owner, empty when absent
	SeatLockOwner(ctx context.Context, seatID string) (string, error)
}

// RedisSessionRepository implements SessionRepository using Redis
type RedisSessionRepository struct {
	client *pkgredis.Client
}

// NewRedisSessionRepository creates a new RedisSessionRepository
func NewRedisSessionRepository(client *pkgredis.Client) *RedisSessionRepository {
	return &RedisSessionRepository{client: client}
}

func sessionKey(bookingID string) string {
	return fmt.Sprintf("booking_session:%s", bookingID)
}

func seatLockKey(seatID string) string {
	return fmt.Sprintf("seat_lock:%s", seatID)
}

// SaveSession writes the booking session mirror with TTL
func (r *RedisSessionRepository) SaveSession(ctx context.Context, session *domain.BookingSession, ttl time.Duration) error {
	ctx, span := telemetry.StartSpan(ctx, "repo.redis.session.save")
	defer span.End()

	span.SetAttributes(attribute.String("booking_id", session.BookingID))

	data, err := json.Marshal(session)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to marshal booking session: %w", err)
	}

	if err := r.client.Set(ctx, sessionKey(session.BookingID), data, ttl).Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to save booking session: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// GetSession reads the booking session mirror, nil when absent
func (r *RedisSessionRepository) GetSession(ctx context.Context, bookingID string) (*domain.BookingSession, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.redis.session.get")
	defer span.End()

	span.SetAttributes(attribute.String("booking_id", bookingID))

	data, err := r.client.Get(ctx, sessionKey(bookingID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			span.SetStatus(codes.Ok, "miss")
			return nil, nil
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to get booking session: %w", err)
	}

	session := &domain.BookingSession{}
	if err := json.Unmarshal([]byte(data), session); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to unmarshal booking session: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	return session, nil
}

// DeleteSession removes the booking session mirror
func (r *RedisSessionRepository) DeleteSession(ctx context.Context, bookingID string) error {
	if err := r.client.Del(ctx, sessionKey(bookingID)).Err(); err != nil {
		return fmt.Errorf("failed to delete booking session: %w", err)
	}
	return nil
}

// MirrorSeatLocks writes per-seat lock owner mirrors with TTL
func (r *RedisSessionRepository) MirrorSeatLocks(ctx context.Context, seatIDs []string, userID string, ttl time.Duration) error {
	ctx, span := telemetry.StartSpan(ctx, "repo.redis.session.mirror_locks")
	defer span.End()

	span.SetAttributes(
		attribute.String("user_id", userID),
		attribute.Int("seat_count", len(seatIDs)),
	)

	pipe := r.client.Pipeline()
	for _, seatID := range seatIDs {
		pipe.Set(ctx, seatLockKey(seatID), userID, ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to mirror seat locks: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// ClearSeatLocks removes per-seat lock mirrors
func (r *RedisSessionRepository) ClearSeatLocks(ctx context.Context, seatIDs []string) error {
	if len(seatIDs) == 0 {
		return nil
	}

	keys := make([]string, 0, len(seatIDs))
	for _, seatID := range seatIDs {
		keys = append(keys, seatLockKey(seatID))
	}
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to clear seat locks: %w", err)
	}
	return nil
}

// SeatLockOwner reads the mirrored lock owner, empty when absent
func (r *RedisSessionRepository) SeatLockOwner(ctx context.Context, seatID string) (string, error) {
	owner, err := r.client.Get(ctx, seatLockKey(seatID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil
		}
		return "", fmt.Errorf("failed to get seat lock owner: %w", err)
	}
	return owner, nil
}

// Ensure RedisSessionRepository implements SessionRepository
var _ SessionRepository = (*RedisSessionRepository)(nil)
