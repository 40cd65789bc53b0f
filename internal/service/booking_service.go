package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/tixgate/tixgate/internal/domain"
	"github.com/tixgate/tixgate/internal/dto"
	"github.com/tixgate/tixgate/internal/metrics"
	"github.com/tixgate/tixgate/internal/repository"
	"github.com/tixgate/tixgate/pkg/logger"
	"github.com/tixgate/tixgate/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// BookingService defines the interface for booking orchestration
type BookingService interface {
	// Create books the requested seats for a user in one all-or-nothing step
	Create(ctx context.Context, userID string, req *dto.CreateBookingRequest) (*dto.CreateBookingResponse, error)

	// Get loads a booking with expiry information
	Get(ctx context.Context, bookingID string) (*dto.BookingResponse, error)

	// Confirm finalizes a pending unexpired booking after payment
	Confirm(ctx context.Context, userID, bookingID string, req *dto.ConfirmBookingRequest) (*dto.BookingResponse, error)

	// Cancel voids a pending booking and releases its seats. An empty
	// userID is a system cancellation that skips the ownership check.
	Cancel(ctx context.Context, userID, bookingID string) (*dto.CancelBookingResponse, error)

	// SweepExpired cancels every lapsed pending booking, reporting the count
	SweepExpired(ctx context.Context) (int64, error)

	// HandlePaymentResult applies the payment collaborator's outcome:
	// success confirms the booking, failure cancels it
	HandlePaymentResult(ctx context.Context, req *dto.PaymentCallbackRequest) (*dto.PaymentCallbackResponse, error)
}

// bookingService implements BookingService
type bookingService struct {
	bookingRepo      repository.BookingRepository
	sessionRepo      repository.SessionRepository
	queueService     QueueService
	publisher        EventPublisher
	sessionTTL       time.Duration
	currency         string
	maxSeats         int
	sweepBatch       int
	requireQueuePass bool
}

// BookingServiceConfig contains configuration for booking service
type BookingServiceConfig struct {
	SessionTTL       time.Duration // booking hold validity (default: 10m)
	Currency         string        // booking currency (default: USD)
	MaxSeats         int           // seats per booking (default: 10)
	SweepBatch       int           // expired bookings per sweep query (default: 100)
	RequireQueuePass bool          // enforce queue pass on create
}

// NewBookingService creates a new booking service
func NewBookingService(
	bookingRepo repository.BookingRepository,
	sessionRepo repository.SessionRepository,
	queueService QueueService,
	publisher EventPublisher,
	cfg *BookingServiceConfig,
) BookingService {
	sessionTTL := 10 * time.Minute
	currency := "USD"
	maxSeats := 10
	sweepBatch := 100
	requirePass := false

	if cfg != nil {
		if cfg.SessionTTL > 0 {
			sessionTTL = cfg.SessionTTL
		}
		if cfg.Currency != "" {
			currency = cfg.Currency
		}
		if cfg.MaxSeats > 0 {
			maxSeats = cfg.MaxSeats
		}
		if cfg.SweepBatch > 0 {
			sweepBatch = cfg.SweepBatch
		}
		requirePass = cfg.RequireQueuePass
	}

	return &bookingService{
		bookingRepo:      bookingRepo,
		sessionRepo:      sessionRepo,
		queueService:     queueService,
		publisher:        publisher,
		sessionTTL:       sessionTTL,
		currency:         currency,
		maxSeats:         maxSeats,
		sweepBatch:       sweepBatch,
		requireQueuePass: requirePass,
	}
}

// Create books the requested seats for a user
func (s *bookingService) Create(ctx context.Context, userID string, req *dto.CreateBookingRequest) (*dto.CreateBookingResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.booking.create")
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

	if s.requireQueuePass || req.QueuePass != "" {
		if err := s.queueService.ValidateQueuePass(ctx, userID, req.EventID, req.QueuePass); err != nil {
			span.SetStatus(codes.Error, "queue pass rejected")
			return nil, err
		}
	}

	expiresAt := time.Now().Add(s.sessionTTL)
	booking, err := s.bookingRepo.Create(ctx, repository.CreateBookingParams{
		BookingID: uuid.New().String(),
		UserID:    userID,
		EventID:   req.EventID,
		SeatIDs:   seatIDs,
		Currency:  s.currency,
		ExpiresAt: expiresAt,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		metrics.RecordBookingFailure(ctx, req.EventID, "create")
		return nil, err
	}

	s.mirrorBooking(ctx, booking)

	if req.QueuePass != "" {
		if err := s.queueService.ConsumeQueuePass(ctx, userID, req.EventID); err != nil {
			logger.Get().Warn("failed to consume queue pass",
				zap.String("booking_id", booking.ID),
				zap.Error(err))
		}
	}

	if err := s.publisher.PublishBookingCreated(ctx, booking); err != nil {
		logger.Get().Warn("failed to publish booking created event",
			zap.String("booking_id", booking.ID),
			zap.Error(err))
	}

	metrics.RecordBookingCreated(ctx, booking.EventID, len(booking.Items))

	span.SetAttributes(attribute.String("booking_id", booking.ID))
	span.SetStatus(codes.Ok, "")
	return &dto.CreateBookingResponse{
		BookingID:   booking.ID,
		Status:      string(booking.Status),
		TotalAmount: booking.TotalAmount,
		Currency:    booking.Currency,
		ExpiresAt:   booking.ExpiresAt,
	}, nil
}

// Get loads a booking with expiry information
func (s *bookingService) Get(ctx context.Context, bookingID string) (*dto.BookingResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.booking.get")
	defer span.End()

	if bookingID == "" {
		span.SetStatus(codes.Error, "invalid booking_id")
		return nil, domain.ErrInvalidBookingID
	}

	span.SetAttributes(attribute.String("booking_id", bookingID))

	booking, err := s.bookingRepo.GetByID(ctx, bookingID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetStatus(codes.Ok, "")
	return dto.BookingFromDomain(booking), nil
}

// Confirm finalizes a pending unexpired booking after payment
func (s *bookingService) Confirm(ctx context.Context, userID, bookingID string, req *dto.ConfirmBookingRequest) (*dto.BookingResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.booking.confirm")
	defer span.End()

	if bookingID == "" {
		span.SetStatus(codes.Error, "invalid booking_id")
		return nil, domain.ErrInvalidBookingID
	}

	span.SetAttributes(attribute.String("booking_id", bookingID))

	if userID != "" {
		existing, err := s.bookingRepo.GetByID(ctx, bookingID)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		if existing.UserID != userID {
			span.SetStatus(codes.Error, "not owned")
			return nil, domain.ErrBookingNotOwned
		}
	}

	paymentID := ""
	if req != nil {
		paymentID = req.PaymentID
	}

	booking, err := s.bookingRepo.Confirm(ctx, bookingID, paymentID, time.Now())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	s.dropMirrors(ctx, booking)

	if err := s.publisher.PublishBookingConfirmed(ctx, booking); err != nil {
		logger.Get().Warn("failed to publish booking confirmed event",
			zap.String("booking_id", booking.ID),
			zap.Error(err))
	}

	metrics.RecordBookingConfirmed(ctx, booking.EventID, time.Since(booking.CreatedAt).Seconds())

	span.SetStatus(codes.Ok, "")
	return dto.BookingFromDomain(booking), nil
}

// Cancel voids a pending booking and releases its seats
func (s *bookingService) Cancel(ctx context.Context, userID, bookingID string) (*dto.CancelBookingResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.booking.cancel")
	defer span.End()

	if bookingID == "" {
		span.SetStatus(codes.Error, "invalid booking_id")
		return nil, domain.ErrInvalidBookingID
	}

	span.SetAttributes(attribute.String("booking_id", bookingID))

	booking, released, err := s.bookingRepo.Cancel(ctx, repository.CancelBookingParams{
		BookingID: bookingID,
		UserID:    userID,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	s.dropMirrors(ctx, booking)

	if err := s.publisher.PublishBookingCancelled(ctx, booking); err != nil {
		logger.Get().Warn("failed to publish booking cancelled event",
			zap.String("booking_id", booking.ID),
			zap.Error(err))
	}

	metrics.RecordBookingCancelled(ctx, booking.EventID)

	span.SetAttributes(attribute.Int64("seats_released", released))
	span.SetStatus(codes.Ok, "")
	return &dto.CancelBookingResponse{
		BookingID:     booking.ID,
		Status:        string(booking.Status),
		SeatsReleased: released,
	}, nil
}

// SweepExpired cancels every lapsed pending booking
func (s *bookingService) SweepExpired(ctx context.Context) (int64, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.booking.sweep_expired")
	defer span.End()

	var swept int64
	for {
		expired, err := s.bookingRepo.GetExpired(ctx, time.Now(), s.sweepBatch)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return swept, err
		}
		if len(expired) == 0 {
			break
		}

		var sweptThisPass int64
		for _, stale := range expired {
			booking, _, err := s.bookingRepo.Cancel(ctx, repository.CancelBookingParams{
				BookingID: stale.ID,
			})
			if err != nil {
				// Another actor may have confirmed or cancelled it since the
				// query; skip and keep sweeping
				logger.Get().Warn("failed to sweep expired booking",
					zap.String("booking_id", stale.ID),
					zap.Error(err))
				continue
			}

			s.dropMirrors(ctx, booking)

			if err := s.publisher.PublishBookingExpired(ctx, booking); err != nil {
				logger.Get().Warn("failed to publish booking expired event",
					zap.String("booking_id", booking.ID),
					zap.Error(err))
			}
			sweptThisPass++
		}
		swept += sweptThisPass

		// A pass that cancelled nothing would refetch the same rows forever;
		// leave whatever remains to the next sweep
		if sweptThisPass == 0 || len(expired) < s.sweepBatch {
			break
		}
	}

	if swept > 0 {
		metrics.RecordBookingsExpired(ctx, swept)
	}

	span.SetAttributes(attribute.Int64("swept", swept))
	span.SetStatus(codes.Ok, "")
	return swept, nil
}

// HandlePaymentResult applies the payment collaborator's outcome
func (s *bookingService) HandlePaymentResult(ctx context.Context, req *dto.PaymentCallbackRequest) (*dto.PaymentCallbackResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.booking.payment_result")
	defer span.End()

	if req == nil || req.BookingID == "" {
		span.SetStatus(codes.Error, "invalid booking_id")
		return nil, domain.ErrInvalidBookingID
	}

	span.SetAttributes(
		attribute.String("booking_id", req.BookingID),
		attribute.String("payment_status", req.Status),
	)

	if req.Status == "succeeded" {
		confirmed, err := s.Confirm(ctx, "", req.BookingID, &dto.ConfirmBookingRequest{PaymentID: req.PaymentID})
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		span.SetStatus(codes.Ok, "")
		return &dto.PaymentCallbackResponse{
			BookingID: confirmed.ID,
			Status:    confirmed.Status,
		}, nil
	}

	// Payment failed: compensate by cancelling the hold system-side
	cancelled, err := s.Cancel(ctx, "", req.BookingID)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetStatus(codes.Ok, "")
	return &dto.PaymentCallbackResponse{
		BookingID: cancelled.BookingID,
		Status:    cancelled.Status,
	}, nil
}

// dedupeSeatIDs removes repeated seat ids, preserving request order, so a
// seat can never be priced or inserted twice within one booking
func dedupeSeatIDs(seatIDs []string) []string {
	seen := make(map[string]struct{}, len(seatIDs))
	unique := make([]string, 0, len(seatIDs))
	for _, id := range seatIDs {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}
	return unique
}

// mirrorBooking writes the Redis session and seat lock mirrors, best effort
func (s *bookingService) mirrorBooking(ctx context.Context, booking *domain.Booking) {
	ttl := time.Until(booking.ExpiresAt)
	if ttl <= 0 {
		return
	}

	session := &domain.BookingSession{
		BookingID:   booking.ID,
		UserID:      booking.UserID,
		EventID:     booking.EventID,
		SeatIDs:     booking.SeatIDs(),
		TotalAmount: booking.TotalAmount,
		Status:      booking.Status,
		ExpiresAt:   booking.ExpiresAt,
		CreatedAt:   booking.CreatedAt,
	}
	if err := s.sessionRepo.SaveSession(ctx, session, ttl); err != nil {
		logger.Get().Warn("failed to mirror booking session",
			zap.String("booking_id", booking.ID),
			zap.Error(err))
	}
	if err := s.sessionRepo.MirrorSeatLocks(ctx, booking.SeatIDs(), booking.UserID, ttl); err != nil {
		logger.Get().Warn("failed to mirror booking seat locks",
			zap.String("booking_id", booking.ID),
			zap.Error(err))
	}
}

// dropMirrors removes the Redis session and seat lock mirrors, best effort
func (s *bookingService) dropMirrors(ctx context.Context, booking *domain.Booking) {
	if err := s.sessionRepo.DeleteSession(ctx, booking.ID); err != nil {
		logger.Get().Warn("failed to delete booking session mirror",
			zap.String("booking_id", booking.ID),
			zap.Error(err))
	}
	if err := s.sessionRepo.ClearSeatLocks(ctx, booking.SeatIDs()); err != nil {
		logger.Get().Warn("failed to clear seat lock mirrors",
			zap.String("booking_id", booking.ID),
			zap.Error(err))
	}
}

// Ensure bookingService implements BookingService
var _ BookingService = (*bookingService)(nil)
