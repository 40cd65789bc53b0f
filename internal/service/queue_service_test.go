package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/tixgate/tixgate/internal/domain"
	"github.com/tixgate/tixgate/internal/dto"
	"github.com/tixgate/tixgate/internal/repository"
)

// MockQueueRepository is a mock implementation of QueueRepository
type MockQueueRepository struct {
	mock.Mock
}

func (m *MockQueueRepository) Join(ctx context.Context, params repository.JoinQueueParams) (*repository.JoinQueueResult, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.JoinQueueResult), args.Error(1)
}

func (m *MockQueueRepository) Position(ctx context.Context, eventID, userID string) (*repository.QueuePositionResult, error) {
	args := m.Called(ctx, eventID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.QueuePositionResult), args.Error(1)
}

func (m *MockQueueRepository) Leave(ctx context.Context, eventID, userID string) (bool, error) {
	args := m.Called(ctx, eventID, userID)
	return args.Bool(0), args.Error(1)
}

func (m *MockQueueRepository) Size(ctx context.Context, eventID string) (int64, error) {
	args := m.Called(ctx, eventID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockQueueRepository) Stats(ctx context.Context, eventID string) (*domain.QueueStats, error) {
	args := m.Called(ctx, eventID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.QueueStats), args.Error(1)
}

func (m *MockQueueRepository) Entries(ctx context.Context, eventID string, limit int64) ([]domain.QueueEntry, error) {
	args := m.Called(ctx, eventID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.QueueEntry), args.Error(1)
}

func (m *MockQueueRepository) AdmitBatch(ctx context.Context, eventID string, count int64) ([]string, error) {
	args := m.Called(ctx, eventID, count)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockQueueRepository) ActiveQueueEventIDs(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockQueueRepository) StoreQueuePass(ctx context.Context, eventID, userID, token string, ttl time.Duration) error {
	args := m.Called(ctx, eventID, userID, token, ttl)
	return args.Error(0)
}

func (m *MockQueueRepository) GetQueuePass(ctx context.Context, eventID, userID string) (string, error) {
	args := m.Called(ctx, eventID, userID)
	return args.String(0), args.Error(1)
}

func (m *MockQueueRepository) DeleteQueuePass(ctx context.Context, eventID, userID string) error {
	args := m.Called(ctx, eventID, userID)
	return args.Error(0)
}

// testJWTSecret is a constant secret used for testing only
const testJWTSecret = "test-jwt-secret-for-unit-tests"

func newTestQueueService(repo repository.QueueRepository) QueueService {
	return NewQueueService(repo, &QueueServiceConfig{
		EntryTTL:       24 * time.Hour,
		AdmitBatchSize: 50,
		AdmitInterval:  30 * time.Second,
		QueuePassTTL:   5 * time.Minute,
		JWTSecret:      testJWTSecret,
	})
}

func TestQueueService_Join_Success(t *testing.T) {
	mockRepo := new(MockQueueRepository)
	svc := newTestQueueService(mockRepo)

	joinedAt := time.Now()
	mockRepo.On("Join", mock.Anything, mock.MatchedBy(func(params repository.JoinQueueParams) bool {
		return params.UserID == "user-123" && params.EventID == "event-123"
	})).Return(&repository.JoinQueueResult{
		Joined:       true,
		Position:     1,
		TotalInQueue: 1,
		JoinedAt:     joinedAt,
	}, nil)

	result, err := svc.Join(context.Background(), "user-123", &dto.JoinQueueRequest{EventID: "event-123"})

	assert.NoError(t, err)
	assert.NotNil(t, result)
	assert.Equal(t, int64(1), result.Position)
	assert.Equal(t, int64(1), result.TotalInQueue)
	mockRepo.AssertExpectations(t)
}

func TestQueueService_Join_AlreadyQueued(t *testing.T) {
	mockRepo := new(MockQueueRepository)
	svc := newTestQueueService(mockRepo)

	mockRepo.On("Join", mock.Anything, mock.Anything).Return(&repository.JoinQueueResult{
		Joined:       false,
		Position:     42,
		TotalInQueue: 100,
	}, nil)

	result, err := svc.Join(context.Background(), "user-123", &dto.JoinQueueRequest{EventID: "event-123"})

	assert.ErrorIs(t, err, domain.ErrAlreadyInQueue)
	// The existing position rides along with the sentinel
	assert.NotNil(t, result)
	assert.Equal(t, int64(42), result.Position)
	assert.Equal(t, int64(100), result.TotalInQueue)
	assert.NotEmpty(t, result.WaitEstimate.Human)
}

func TestQueueService_Join_Validation(t *testing.T) {
	mockRepo := new(MockQueueRepository)
	svc := newTestQueueService(mockRepo)

	_, err := svc.Join(context.Background(), "", &dto.JoinQueueRequest{EventID: "event-123"})
	assert.ErrorIs(t, err, domain.ErrInvalidUserID)

	_, err = svc.Join(context.Background(), "user-123", &dto.JoinQueueRequest{})
	assert.ErrorIs(t, err, domain.ErrInvalidEventID)

	_, err = svc.Join(context.Background(), "user-123", nil)
	assert.ErrorIs(t, err, domain.ErrInvalidEventID)

	mockRepo.AssertNotCalled(t, "Join")
}

func TestQueueService_Position(t *testing.T) {
	mockRepo := new(MockQueueRepository)
	svc := newTestQueueService(mockRepo)

	mockRepo.On("Position", mock.Anything, "event-123", "user-123").Return(&repository.QueuePositionResult{
		Position:     5,
		TotalInQueue: 20,
		IsInQueue:    true,
	}, nil)

	result, err := svc.Position(context.Background(), "user-123", "event-123")

	assert.NoError(t, err)
	assert.Equal(t, int64(5), result.Position)
	assert.Equal(t, int64(4), result.UsersAhead)
	assert.Equal(t, int64(20), result.TotalInQueue)
}

func TestQueueService_Position_NotInQueue(t *testing.T) {
	mockRepo := new(MockQueueRepository)
	svc := newTestQueueService(mockRepo)

	mockRepo.On("Position", mock.Anything, "event-123", "user-999").Return(&repository.QueuePositionResult{
		IsInQueue: false,
	}, nil)

	_, err := svc.Position(context.Background(), "user-999", "event-123")

	assert.ErrorIs(t, err, domain.ErrNotInQueue)
}

func TestQueueService_Leave_Idempotent(t *testing.T) {
	mockRepo := new(MockQueueRepository)
	svc := newTestQueueService(mockRepo)

	mockRepo.On("Leave", mock.Anything, "event-123", "user-123").Return(false, nil)

	result, err := svc.Leave(context.Background(), "user-123", &dto.LeaveQueueRequest{EventID: "event-123"})

	assert.NoError(t, err)
	assert.False(t, result.Removed)
}

func TestQueueService_Admit_IssuesPasses(t *testing.T) {
	mockRepo := new(MockQueueRepository)
	svc := newTestQueueService(mockRepo)

	mockRepo.On("AdmitBatch", mock.Anything, "event-123", int64(3)).
		Return([]string{"user-1", "user-2", "user-3"}, nil)
	mockRepo.On("StoreQueuePass", mock.Anything, "event-123", mock.Anything, mock.Anything, 5*time.Minute).
		Return(nil).Times(3)

	admitted, err := svc.Admit(context.Background(), "event-123", 3)

	assert.NoError(t, err)
	assert.Len(t, admitted, 3)
	assert.Equal(t, "user-1", admitted[0].UserID)
	assert.NotEmpty(t, admitted[0].QueuePass)
	assert.True(t, admitted[0].ExpiresAt.After(time.Now()))
	mockRepo.AssertExpectations(t)
}

func TestQueueService_Admit_EmptyQueue(t *testing.T) {
	mockRepo := new(MockQueueRepository)
	svc := newTestQueueService(mockRepo)

	mockRepo.On("AdmitBatch", mock.Anything, "event-123", int64(50)).Return([]string{}, nil)

	admitted, err := svc.Admit(context.Background(), "event-123", 0)

	assert.NoError(t, err)
	assert.Empty(t, admitted)
	mockRepo.AssertNotCalled(t, "StoreQueuePass")
}

func TestQueueService_QueuePass_RoundTrip(t *testing.T) {
	mockRepo := new(MockQueueRepository)
	svc := newTestQueueService(mockRepo)

	var issued string
	mockRepo.On("AdmitBatch", mock.Anything, "event-123", int64(1)).Return([]string{"user-1"}, nil)
	mockRepo.On("StoreQueuePass", mock.Anything, "event-123", "user-1", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			issued = args.String(3)
		}).Return(nil)

	admitted, err := svc.Admit(context.Background(), "event-123", 1)
	assert.NoError(t, err)
	assert.Len(t, admitted, 1)

	// Redis mirror holds the pass: validation succeeds
	mockRepo.On("GetQueuePass", mock.Anything, "event-123", "user-1").Return(issued, nil).Once()
	err = svc.ValidateQueuePass(context.Background(), "user-1", "event-123", issued)
	assert.NoError(t, err)

	// Mirror gone: the pass is single use
	mockRepo.On("GetQueuePass", mock.Anything, "event-123", "user-1").Return("", nil).Once()
	err = svc.ValidateQueuePass(context.Background(), "user-1", "event-123", issued)
	assert.ErrorIs(t, err, domain.ErrQueuePassExpired)
}

func TestQueueService_ValidateQueuePass_WrongUser(t *testing.T) {
	mockRepo := new(MockQueueRepository)
	svc := newTestQueueService(mockRepo)

	var issued string
	mockRepo.On("AdmitBatch", mock.Anything, "event-123", int64(1)).Return([]string{"user-1"}, nil)
	mockRepo.On("StoreQueuePass", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			issued = args.String(3)
		}).Return(nil)

	_, err := svc.Admit(context.Background(), "event-123", 1)
	assert.NoError(t, err)

	err = svc.ValidateQueuePass(context.Background(), "user-2", "event-123", issued)
	assert.ErrorIs(t, err, domain.ErrQueuePassUserMismatch)

	err = svc.ValidateQueuePass(context.Background(), "user-1", "event-999", issued)
	assert.ErrorIs(t, err, domain.ErrQueuePassEventMismatch)
}

func TestQueueService_ValidateQueuePass_Garbage(t *testing.T) {
	mockRepo := new(MockQueueRepository)
	svc := newTestQueueService(mockRepo)

	err := svc.ValidateQueuePass(context.Background(), "user-1", "event-123", "not-a-jwt")
	assert.ErrorIs(t, err, domain.ErrInvalidQueuePass)

	err = svc.ValidateQueuePass(context.Background(), "user-1", "event-123", "")
	assert.ErrorIs(t, err, domain.ErrQueuePassRequired)
}

func TestQueueService_WaitEstimate(t *testing.T) {
	mockRepo := new(MockQueueRepository)
	svc := newTestQueueService(mockRepo)

	// Position 1..50 is the first batch, one interval away
	est := svc.WaitEstimate(1)
	assert.Equal(t, int64(30), est.Seconds)

	est = svc.WaitEstimate(50)
	assert.Equal(t, int64(30), est.Seconds)

	// Position 51 waits two intervals
	est = svc.WaitEstimate(51)
	assert.Equal(t, int64(60), est.Seconds)
	assert.Equal(t, "1m0s", est.Human)
}
