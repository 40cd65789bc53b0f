package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/tixgate/tixgate/internal/domain"
	"github.com/tixgate/tixgate/internal/dto"
	"github.com/tixgate/tixgate/internal/fanout"
	"github.com/tixgate/tixgate/internal/service"
)

// MockQueueService is a mock implementation of QueueService
type MockQueueService struct {
	mock.Mock
}

func (m *MockQueueService) Join(ctx context.Context, userID string, req *dto.JoinQueueRequest) (*dto.JoinQueueResponse, error) {
	args := m.Called(ctx, userID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dto.JoinQueueResponse), args.Error(1)
}

func (m *MockQueueService) Position(ctx context.Context, userID, eventID string) (*dto.QueuePositionResponse, error) {
	args := m.Called(ctx, userID, eventID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dto.QueuePositionResponse), args.Error(1)
}

func (m *MockQueueService) Leave(ctx context.Context, userID string, req *dto.LeaveQueueRequest) (*dto.LeaveQueueResponse, error) {
	args := m.Called(ctx, userID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dto.LeaveQueueResponse), args.Error(1)
}

func (m *MockQueueService) Stats(ctx context.Context, eventID string) (*dto.QueueStatsResponse, error) {
	args := m.Called(ctx, eventID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dto.QueueStatsResponse), args.Error(1)
}

func (m *MockQueueService) Admit(ctx context.Context, eventID string, count int64) ([]service.AdmittedUser, error) {
	args := m.Called(ctx, eventID, count)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]service.AdmittedUser), args.Error(1)
}

func (m *MockQueueService) ActiveEvents(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockQueueService) Entries(ctx context.Context, eventID string, limit int64) ([]domain.QueueEntry, error) {
	args := m.Called(ctx, eventID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.QueueEntry), args.Error(1)
}

func (m *MockQueueService) WaitEstimate(position int64) domain.WaitEstimate {
	return domain.NewWaitEstimate(position, 50, 30*time.Second)
}

func (m *MockQueueService) ValidateQueuePass(ctx context.Context, userID, eventID, queuePass string) error {
	args := m.Called(ctx, userID, eventID, queuePass)
	return args.Error(0)
}

func (m *MockQueueService) ConsumeQueuePass(ctx context.Context, userID, eventID string) error {
	args := m.Called(ctx, userID, eventID)
	return args.Error(0)
}

func setupQueueTestRouter(queueService *MockQueueService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()

	router.Use(func(c *gin.Context) {
		userID := c.GetHeader("X-User-ID")
		if userID != "" {
			c.Set("user_id", userID)
		}
		c.Next()
	})

	handler := NewQueueHandler(queueService, fanout.NewHub(4))

	queue := router.Group("/api/v1/queue")
	{
		queue.POST("/join", handler.Join)
		queue.DELETE("/leave", handler.Leave)
		queue.GET("/position", handler.Position)
		queue.GET("/stats", handler.Stats)
	}

	return router
}

func TestQueueHandler_Join_Success(t *testing.T) {
	mockService := new(MockQueueService)
	router := setupQueueTestRouter(mockService)

	now := time.Now()
	mockService.On("Join", mock.Anything, "user-123", mock.AnythingOfType("*dto.JoinQueueRequest")).
		Return(&dto.JoinQueueResponse{
			Position:     1,
			TotalInQueue: 1,
			JoinedAt:     now,
			WaitEstimate: domain.NewWaitEstimate(1, 50, 30*time.Second),
			Message:      "Successfully joined the queue",
		}, nil)

	body, _ := json.Marshal(dto.JoinQueueRequest{EventID: "event-123"})
	req, _ := http.NewRequest("POST", "/api/v1/queue/join", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", "user-123")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)

	var response dto.JoinQueueResponse
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, int64(1), response.Position)
	mockService.AssertExpectations(t)
}

func TestQueueHandler_Join_Unauthorized(t *testing.T) {
	mockService := new(MockQueueService)
	router := setupQueueTestRouter(mockService)

	body, _ := json.Marshal(dto.JoinQueueRequest{EventID: "event-123"})
	req, _ := http.NewRequest("POST", "/api/v1/queue/join", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestQueueHandler_Join_AlreadyInQueue(t *testing.T) {
	mockService := new(MockQueueService)
	router := setupQueueTestRouter(mockService)

	mockService.On("Join", mock.Anything, "user-123", mock.AnythingOfType("*dto.JoinQueueRequest")).
		Return(&dto.JoinQueueResponse{
			Position:     7,
			TotalInQueue: 30,
			WaitEstimate: domain.NewWaitEstimate(7, 50, 30*time.Second),
			Message:      "User is already in the queue",
		}, domain.ErrAlreadyInQueue)

	body, _ := json.Marshal(dto.JoinQueueRequest{EventID: "event-123"})
	req, _ := http.NewRequest("POST", "/api/v1/queue/join", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", "user-123")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)

	var response dto.AlreadyQueuedResponse
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "ALREADY_IN_QUEUE", response.Code)
	assert.Equal(t, int64(7), response.Position)
	assert.Equal(t, int64(30), response.TotalInQueue)
}

func TestQueueHandler_Join_InvalidRequest(t *testing.T) {
	mockService := new(MockQueueService)
	router := setupQueueTestRouter(mockService)

	body, _ := json.Marshal(map[string]string{})
	req, _ := http.NewRequest("POST", "/api/v1/queue/join", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", "user-123")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestQueueHandler_Position_NotInQueue(t *testing.T) {
	mockService := new(MockQueueService)
	router := setupQueueTestRouter(mockService)

	mockService.On("Position", mock.Anything, "user-123", "event-123").
		Return(nil, domain.ErrNotInQueue)

	req, _ := http.NewRequest("GET", "/api/v1/queue/position?event_id=event-123", nil)
	req.Header.Set("X-User-ID", "user-123")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)

	var response dto.ErrorResponse
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "NOT_IN_QUEUE", response.Code)
}

func TestQueueHandler_Leave_Idempotent(t *testing.T) {
	mockService := new(MockQueueService)
	router := setupQueueTestRouter(mockService)

	mockService.On("Leave", mock.Anything, "user-123", mock.AnythingOfType("*dto.LeaveQueueRequest")).
		Return(&dto.LeaveQueueResponse{Removed: false, Message: "User was not in the queue"}, nil)

	body, _ := json.Marshal(dto.LeaveQueueRequest{EventID: "event-123"})
	req, _ := http.NewRequest("DELETE", "/api/v1/queue/leave", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", "user-123")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response dto.LeaveQueueResponse
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.False(t, response.Removed)
}

func TestQueueHandler_Stats(t *testing.T) {
	mockService := new(MockQueueService)
	router := setupQueueTestRouter(mockService)

	mockService.On("Stats", mock.Anything, "event-123").
		Return(&dto.QueueStatsResponse{EventID: "event-123", Size: 42}, nil)

	req, _ := http.NewRequest("GET", "/api/v1/queue/stats?event_id=event-123", nil)
	req.Header.Set("X-User-ID", "user-123")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response dto.QueueStatsResponse
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, int64(42), response.Size)
}
