package service

import (
	"context"
	"time"

	"github.com/tixgate/tixgate/internal/domain"
	"github.com/tixgate/tixgate/internal/dto"
	"github.com/tixgate/tixgate/internal/repository"
	"github.com/tixgate/tixgate/pkg/logger"
	"github.com/tixgate/tixgate/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// InventoryService defines the interface for seat inventory business logic
type InventoryService interface {
	// Lock attempts to lock the requested seats for a user. Partial grants
	// are returned as-is; the caller decides whether to keep or release them.
	Lock(ctx context.Context, userID string, req *dto.LockSeatsRequest) (*dto.LockSeatsResponse, error)

	// Release returns the user's locked seats to the pool
	Release(ctx context.Context, userID string, req *dto.ReleaseSeatsRequest) (*dto.ReleaseSeatsResponse, error)

	// AvailableSeats lists seats open for locking
	AvailableSeats(ctx context.Context, eventID, categoryID string, limit int) ([]*dto.SeatResponse, error)

	// Summary aggregates availability per category
	Summary(ctx context.Context, eventID string) (*dto.InventorySummaryResponse, error)

	// ReconcileExpired reclaims every lapsed seat lock, reporting the count
	ReconcileExpired(ctx context.Context) (int64, error)
}

// inventoryService implements InventoryService
type inventoryService struct {
	seatRepo    repository.SeatRepository
	sessionRepo repository.SessionRepository
	lockTTL     time.Duration
	maxSeats    int
}

// InventoryServiceConfig contains configuration for inventory service
type InventoryServiceConfig struct {
	LockTTL  time.Duration // seat lock validity (default: 10m)
	MaxSeats int           // seats per lock request (default: 10)
}

// NewInventoryService creates a new inventory service
func NewInventoryService(
	seatRepo repository.SeatRepository,
	sessionRepo repository.SessionRepository,
	cfg *InventoryServiceConfig,
) InventoryService {
	lockTTL := 10 * time.Minute
	maxSeats := 10

	if cfg != nil {
		if cfg.LockTTL > 0 {
			lockTTL = cfg.LockTTL
		}
		if cfg.MaxSeats > 0 {
			maxSeats = cfg.MaxSeats
		}
	}

	return &inventoryService{
		seatRepo:    seatRepo,
		sessionRepo: sessionRepo,
		lockTTL:     lockTTL,
		maxSeats:    maxSeats,
	}
}

// Lock attempts to lock the requested seats for a user
func (s *inventoryService) Lock(ctx context.Context, userID string, req *dto.LockSeatsRequest) (*dto.LockSeatsResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.inventory.lock")
	defer span.End()

	if req == nil || req.EventID == "" {
		span.SetStatus(codes.Error, "invalid event_id")
		return nil, domain.ErrInvalidEventID
	}
	if userID == "" {
		span.SetStatus(codes.Error, "invalid user_id")
		return nil, domain.ErrInvalidUserID
	}
	seatIDs := dedupeSeatIDs(req.SeatIDs)
	if len(seatIDs) == 0 {
		span.SetStatus(codes.Error, "no seats requested")
		return nil, domain.ErrNoSeatsRequested
	}
	if len(seatIDs) > s.maxSeats {
		span.SetStatus(codes.Error, "too many seats")
		return nil, domain.ErrTooManySeats
	}

	span.SetAttributes(
		attribute.String("user_id", userID),
		attribute.String("event_id", req.EventID),
		attribute.Int("seat_count", len(seatIDs)),
	)

	result, err := s.seatRepo.LockSeats(ctx, repository.LockSeatsParams{
		EventID:     req.EventID,
		UserID:      userID,
		SeatIDs:     seatIDs,
		LockedUntil: time.Now().Add(s.lockTTL),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	// Mirror granted locks in Redis; a mirror failure never undoes the
	// authoritative Postgres locks
	if len(result.Locked) > 0 {
		if err := s.sessionRepo.MirrorSeatLocks(ctx, result.Locked, userID, s.lockTTL); err != nil {
			logger.Get().Warn("failed to mirror seat locks",
				zap.String("event_id", req.EventID),
				zap.Error(err))
		}
	}

	span.SetAttributes(
		attribute.Int("locked", len(result.Locked)),
		attribute.Int("failed", len(result.Failed)),
	)
	span.SetStatus(codes.Ok, "")
	return &dto.LockSeatsResponse{
		Locked:      result.Locked,
		Failed:      result.Failed,
		LockedUntil: result.LockedUntil,
		AllLocked:   result.AllLocked(),
	}, nil
}

// Release returns the user's locked seats to the pool
func (s *inventoryService) Release(ctx context.Context, userID string, req *dto.ReleaseSeatsRequest) (*dto.ReleaseSeatsResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.inventory.release")
	defer span.End()

	if req == nil || req.EventID == "" {
		span.SetStatus(codes.Error, "invalid event_id")
		return nil, domain.ErrInvalidEventID
	}
	if userID == "" {
		span.SetStatus(codes.Error, "invalid user_id")
		return nil, domain.ErrInvalidUserID
	}

	span.SetAttributes(
		attribute.String("user_id", userID),
		attribute.String("event_id", req.EventID),
	)

	// Refuse to touch seats another user holds live; releasing by name is
	// only valid for the caller's own locks
	if len(req.SeatIDs) > 0 {
		seats, err := s.seatRepo.GetByIDs(ctx, req.EventID, req.SeatIDs)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		now := time.Now()
		for _, seat := range seats {
			if seat.Status == domain.SeatStatusLocked &&
				seat.LockedByUser != nil && *seat.LockedByUser != userID &&
				seat.LockedUntil != nil && !seat.LockedUntil.Before(now) {
				span.SetStatus(codes.Error, "lock ownership mismatch")
				return nil, domain.ErrLockOwnershipMismatch
			}
		}
	}

	released, err := s.seatRepo.ReleaseSeats(ctx, repository.ReleaseSeatsParams{
		EventID: req.EventID,
		UserID:  userID,
		SeatIDs: req.SeatIDs,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	if len(req.SeatIDs) > 0 {
		if err := s.sessionRepo.ClearSeatLocks(ctx, req.SeatIDs); err != nil {
			logger.Get().Warn("failed to clear seat lock mirrors",
				zap.String("event_id", req.EventID),
				zap.Error(err))
		}
	}

	span.SetAttributes(attribute.Int64("released", released))
	span.SetStatus(codes.Ok, "")
	return &dto.ReleaseSeatsResponse{Released: released}, nil
}

// AvailableSeats lists seats open for locking
func (s *inventoryService) AvailableSeats(ctx context.Context, eventID, categoryID string, limit int) ([]*dto.SeatResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.inventory.available_seats")
	defer span.End()

	if eventID == "" {
		span.SetStatus(codes.Error, "invalid event_id")
		return nil, domain.ErrInvalidEventID
	}

	span.SetAttributes(attribute.String("event_id", eventID))

	seats, err := s.seatRepo.AvailableSeats(ctx, eventID, categoryID, limit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	responses := make([]*dto.SeatResponse, 0, len(seats))
	for _, seat := range seats {
		responses = append(responses, dto.SeatFromDomain(seat))
	}

	span.SetAttributes(attribute.Int("count", len(responses)))
	span.SetStatus(codes.Ok, "")
	return responses, nil
}

// Summary aggregates availability per category
func (s *inventoryService) Summary(ctx context.Context, eventID string) (*dto.InventorySummaryResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.inventory.summary")
	defer span.End()

	if eventID == "" {
		span.SetStatus(codes.Error, "invalid event_id")
		return nil, domain.ErrInvalidEventID
	}

	span.SetAttributes(attribute.String("event_id", eventID))

	categories, err := s.seatRepo.Summary(ctx, eventID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetStatus(codes.Ok, "")
	return &dto.InventorySummaryResponse{
		EventID:    eventID,
		Categories: categories,
	}, nil
}

// ReconcileExpired reclaims every lapsed seat lock
func (s *inventoryService) ReconcileExpired(ctx context.Context) (int64, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.inventory.reconcile_expired")
	defer span.End()

	reclaimed, err := s.seatRepo.ReconcileExpired(ctx, time.Now())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, err
	}

	span.SetAttributes(attribute.Int64("reclaimed", reclaimed))
	span.SetStatus(codes.Ok, "")
	return reclaimed, nil
}

// Ensure inventoryService implements InventoryService
var _ InventoryService = (*inventoryService)(nil)
