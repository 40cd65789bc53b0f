package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/tixgate/tixgate/internal/domain"
	"github.com/tixgate/tixgate/internal/dto"
	"github.com/tixgate/tixgate/internal/repository"
	"github.com/tixgate/tixgate/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// AdmittedUser is a user released from the queue with their admission pass
type AdmittedUser struct {
	UserID    string
	QueuePass string
	ExpiresAt time.Time
}

// QueueService defines the interface for virtual queue business logic
type QueueService interface {
	// Join adds a user to the virtual queue for an event
	Join(ctx context.Context, userID string, req *dto.JoinQueueRequest) (*dto.JoinQueueResponse, error)

	// Position gets the user's current position in queue
	Position(ctx context.Context, userID, eventID string) (*dto.QueuePositionResponse, error)

	// Leave removes a user from the queue; leaving twice is a no-op
	Leave(ctx context.Context, userID string, req *dto.LeaveQueueRequest) (*dto.LeaveQueueResponse, error)

	// Stats returns aggregate queue state for an event
	Stats(ctx context.Context, eventID string) (*dto.QueueStatsResponse, error)

	// Admit releases up to count users from the front of the queue and
	// issues each a signed queue pass
	Admit(ctx context.Context, eventID string, count int64) ([]AdmittedUser, error)

	// ActiveEvents lists event ids with live queues
	ActiveEvents(ctx context.Context) ([]string, error)

	// Entries lists queue entries in rank order for position broadcasts
	Entries(ctx context.Context, eventID string, limit int64) ([]domain.QueueEntry, error)

	// WaitEstimate computes the estimated wait for a queue position
	WaitEstimate(position int64) domain.WaitEstimate

	// ValidateQueuePass validates the queue pass JWT and its Redis mirror
	ValidateQueuePass(ctx context.Context, userID, eventID, queuePass string) error

	// ConsumeQueuePass removes the queue pass after a successful booking
	ConsumeQueuePass(ctx context.Context, userID, eventID string) error
}

// queueService implements QueueService
type queueService struct {
	queueRepo      repository.QueueRepository
	entryTTL       time.Duration
	admitBatchSize int64
	admitInterval  time.Duration
	queuePassTTL   time.Duration
	jwtSecret      string
}

// QueueServiceConfig contains configuration for queue service
type QueueServiceConfig struct {
	EntryTTL       time.Duration // queue metadata TTL (default: 24h)
	AdmitBatchSize int64         // users admitted per batch (default: 50)
	AdmitInterval  time.Duration // admission loop interval (default: 30s)
	QueuePassTTL   time.Duration // queue pass validity (default: 5m)
	JWTSecret      string        // secret for signing queue pass JWT
}

// NewQueueService creates a new queue service
func NewQueueService(queueRepo repository.QueueRepository, cfg *QueueServiceConfig) QueueService {
	entryTTL := 24 * time.Hour
	batchSize := int64(50)
	admitInterval := 30 * time.Second
	queuePassTTL := 5 * time.Minute
	jwtSecret := ""

	if cfg != nil {
		if cfg.EntryTTL > 0 {
			entryTTL = cfg.EntryTTL
		}
		if cfg.AdmitBatchSize > 0 {
			batchSize = cfg.AdmitBatchSize
		}
		if cfg.AdmitInterval > 0 {
			admitInterval = cfg.AdmitInterval
		}
		if cfg.QueuePassTTL > 0 {
			queuePassTTL = cfg.QueuePassTTL
		}
		jwtSecret = cfg.JWTSecret
	}

	if jwtSecret == "" {
		panic("QueueServiceConfig.JWTSecret is required")
	}

	return &queueService{
		queueRepo:      queueRepo,
		entryTTL:       entryTTL,
		admitBatchSize: batchSize,
		admitInterval:  admitInterval,
		queuePassTTL:   queuePassTTL,
		jwtSecret:      jwtSecret,
	}
}

// Join adds a user to the virtual queue for an event
func (s *queueService) Join(ctx context.Context, userID string, req *dto.JoinQueueRequest) (*dto.JoinQueueResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.queue.join")
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

	result, err := s.queueRepo.Join(ctx, repository.JoinQueueParams{
		UserID:     userID,
		EventID:    req.EventID,
		TTLSeconds: int(s.entryTTL.Seconds()),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	if !result.Joined {
		// Report the existing position alongside the sentinel so callers
		// can show where the user already stands
		span.SetStatus(codes.Error, "already in queue")
		return &dto.JoinQueueResponse{
			Position:     result.Position,
			TotalInQueue: result.TotalInQueue,
			JoinedAt:     result.JoinedAt,
			WaitEstimate: s.WaitEstimate(result.Position),
			Message:      "User is already in the queue",
		}, domain.ErrAlreadyInQueue
	}

	span.SetAttributes(attribute.Int64("position", result.Position))
	span.SetStatus(codes.Ok, "")
	return &dto.JoinQueueResponse{
		Position:     result.Position,
		TotalInQueue: result.TotalInQueue,
		JoinedAt:     result.JoinedAt,
		WaitEstimate: s.WaitEstimate(result.Position),
		Message:      "Successfully joined the queue",
	}, nil
}

// Position gets the user's current position in queue
func (s *queueService) Position(ctx context.Context, userID, eventID string) (*dto.QueuePositionResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.queue.position")
	defer span.End()

	if eventID == "" {
		span.SetStatus(codes.Error, "invalid event_id")
		return nil, domain.ErrInvalidEventID
	}
	if userID == "" {
		span.SetStatus(codes.Error, "invalid user_id")
		return nil, domain.ErrInvalidUserID
	}

	span.SetAttributes(
		attribute.String("user_id", userID),
		attribute.String("event_id", eventID),
	)

	result, err := s.queueRepo.Position(ctx, eventID, userID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	if !result.IsInQueue {
		span.SetStatus(codes.Error, "not in queue")
		return nil, domain.ErrNotInQueue
	}

	span.SetAttributes(attribute.Int64("position", result.Position))
	span.SetStatus(codes.Ok, "")
	return &dto.QueuePositionResponse{
		Position:     result.Position,
		TotalInQueue: result.TotalInQueue,
		UsersAhead:   result.Position - 1,
		WaitEstimate: s.WaitEstimate(result.Position),
	}, nil
}

// Leave removes a user from the queue
func (s *queueService) Leave(ctx context.Context, userID string, req *dto.LeaveQueueRequest) (*dto.LeaveQueueResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.queue.leave")
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

	removed, err := s.queueRepo.Leave(ctx, req.EventID, userID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	message := "Successfully left the queue"
	if !removed {
		message = "User was not in the queue"
	}

	span.SetAttributes(attribute.Bool("removed", removed))
	span.SetStatus(codes.Ok, "")
	return &dto.LeaveQueueResponse{Removed: removed, Message: message}, nil
}

// Stats returns aggregate queue state for an event
func (s *queueService) Stats(ctx context.Context, eventID string) (*dto.QueueStatsResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.queue.stats")
	defer span.End()

	if eventID == "" {
		span.SetStatus(codes.Error, "invalid event_id")
		return nil, domain.ErrInvalidEventID
	}

	span.SetAttributes(attribute.String("event_id", eventID))

	stats, err := s.queueRepo.Stats(ctx, eventID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(attribute.Int64("size", stats.Size))
	span.SetStatus(codes.Ok, "")
	return &dto.QueueStatsResponse{
		EventID:        stats.EventID,
		Size:           stats.Size,
		OldestJoinedAt: stats.OldestJoinedAt,
		NewestJoinedAt: stats.NewestJoinedAt,
	}, nil
}

// Admit releases up to count users from the front of the queue
func (s *queueService) Admit(ctx context.Context, eventID string, count int64) ([]AdmittedUser, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.queue.admit")
	defer span.End()

	if eventID == "" {
		span.SetStatus(codes.Error, "invalid event_id")
		return nil, domain.ErrInvalidEventID
	}
	if count <= 0 {
		count = s.admitBatchSize
	}

	span.SetAttributes(
		attribute.String("event_id", eventID),
		attribute.Int64("batch_size", count),
	)

	userIDs, err := s.queueRepo.AdmitBatch(ctx, eventID, count)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	admitted := make([]AdmittedUser, 0, len(userIDs))
	for _, userID := range userIDs {
		pass, expiresAt, err := s.generateQueuePass(userID, eventID)
		if err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("failed to issue queue pass for %s: %w", userID, err)
		}
		if err := s.queueRepo.StoreQueuePass(ctx, eventID, userID, pass, s.queuePassTTL); err != nil {
			span.RecordError(err)
			return nil, err
		}
		admitted = append(admitted, AdmittedUser{
			UserID:    userID,
			QueuePass: pass,
			ExpiresAt: expiresAt,
		})
	}

	span.SetAttributes(attribute.Int("admitted", len(admitted)))
	span.SetStatus(codes.Ok, "")
	return admitted, nil
}

// ActiveEvents lists event ids with live queues
func (s *queueService) ActiveEvents(ctx context.Context) ([]string, error) {
	return s.queueRepo.ActiveQueueEventIDs(ctx)
}

// Entries lists queue entries in rank order for position broadcasts
func (s *queueService) Entries(ctx context.Context, eventID string, limit int64) ([]domain.QueueEntry, error) {
	return s.queueRepo.Entries(ctx, eventID, limit)
}

// WaitEstimate computes the estimated wait for a queue position
func (s *queueService) WaitEstimate(position int64) domain.WaitEstimate {
	return domain.NewWaitEstimate(position, s.admitBatchSize, s.admitInterval)
}

// QueuePassClaims represents the claims for a queue pass JWT
type QueuePassClaims struct {
	UserID  string `json:"user_id"`
	EventID string `json:"event_id"`
	Purpose string `json:"purpose"`
	jwt.RegisteredClaims
}

// generateQueuePass generates a signed JWT queue pass token
func (s *queueService) generateQueuePass(userID, eventID string) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(s.queuePassTTL)

	claims := QueuePassClaims{
		UserID:  userID,
		EventID: eventID,
		Purpose: "queue_pass",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    "tixgate",
			Subject:   userID,
			ID:        randomTokenID(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString([]byte(s.jwtSecret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign queue pass: %w", err)
	}

	return signedToken, expiresAt, nil
}

// ValidateQueuePass validates the queue pass JWT and its Redis mirror
func (s *queueService) ValidateQueuePass(ctx context.Context, userID, eventID, queuePass string) error {
	ctx, span := telemetry.StartSpan(ctx, "service.queue.validate_pass")
	defer span.End()

	span.SetAttributes(
		attribute.String("user_id", userID),
		attribute.String("event_id", eventID),
	)

	if queuePass == "" {
		span.SetStatus(codes.Error, "queue pass required")
		return domain.ErrQueuePassRequired
	}

	token, err := jwt.ParseWithClaims(queuePass, &QueuePassClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.jwtSecret), nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid queue pass")
		return domain.ErrInvalidQueuePass
	}

	claims, ok := token.Claims.(*QueuePassClaims)
	if !ok || !token.Valid {
		span.SetStatus(codes.Error, "invalid queue pass claims")
		return domain.ErrInvalidQueuePass
	}

	if claims.UserID != userID {
		span.SetStatus(codes.Error, "queue pass user mismatch")
		return domain.ErrQueuePassUserMismatch
	}
	if claims.EventID != eventID {
		span.SetStatus(codes.Error, "queue pass event mismatch")
		return domain.ErrQueuePassEventMismatch
	}
	if claims.Purpose != "queue_pass" {
		span.SetStatus(codes.Error, "invalid queue pass purpose")
		return domain.ErrInvalidQueuePass
	}

	// The Redis mirror is the single-use check: deleted after booking
	stored, err := s.queueRepo.GetQueuePass(ctx, eventID, userID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to validate queue pass in redis")
		return fmt.Errorf("failed to validate queue pass: %w", err)
	}
	if stored == "" || stored != queuePass {
		span.SetStatus(codes.Error, "queue pass not found or expired")
		return domain.ErrQueuePassExpired
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// ConsumeQueuePass removes the queue pass after a successful booking
func (s *queueService) ConsumeQueuePass(ctx context.Context, userID, eventID string) error {
	ctx, span := telemetry.StartSpan(ctx, "service.queue.consume_pass")
	defer span.End()

	span.SetAttributes(
		attribute.String("user_id", userID),
		attribute.String("event_id", eventID),
	)

	if err := s.queueRepo.DeleteQueuePass(ctx, eventID, userID); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// randomTokenID generates a random hex token id
func randomTokenID() string {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		return hex.EncodeToString([]byte(time.Now().String()))[:32]
	}
	return hex.EncodeToString(bytes)
}
