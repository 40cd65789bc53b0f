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
)

// MockInventoryService is a mock implementation of InventoryService
type MockInventoryService struct {
	mock.Mock
}

func (m *MockInventoryService) Lock(ctx context.Context, userID string, req *dto.LockSeatsRequest) (*dto.LockSeatsResponse, error) {
	args := m.Called(ctx, userID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dto.LockSeatsResponse), args.Error(1)
}

func (m *MockInventoryService) Release(ctx context.Context, userID string, req *dto.ReleaseSeatsRequest) (*dto.ReleaseSeatsResponse, error) {
	args := m.Called(ctx, userID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dto.ReleaseSeatsResponse), args.Error(1)
}

func (m *MockInventoryService) AvailableSeats(ctx context.Context, eventID, categoryID string, limit int) ([]*dto.SeatResponse, error) {
	args := m.Called(ctx, eventID, categoryID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*dto.SeatResponse), args.Error(1)
}

func (m *MockInventoryService) Summary(ctx context.Context, eventID string) (*dto.InventorySummaryResponse, error) {
	args := m.Called(ctx, eventID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dto.InventorySummaryResponse), args.Error(1)
}

func (m *MockInventoryService) ReconcileExpired(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func setupInventoryTestRouter(inventoryService *MockInventoryService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()

	router.Use(func(c *gin.Context) {
		userID := c.GetHeader("X-User-ID")
		if userID != "" {
			c.Set("user_id", userID)
		}
		c.Next()
	})

	handler := NewInventoryHandler(inventoryService)

	inventory := router.Group("/api/v1/inventory")
	{
		inventory.POST("/lock", handler.Lock)
		inventory.POST("/release", handler.Release)
		inventory.GET("/seats", handler.Seats)
		inventory.GET("/summary", handler.Summary)
	}

	return router
}

func TestInventoryHandler_Lock_AllGranted(t *testing.T) {
	mockService := new(MockInventoryService)
	router := setupInventoryTestRouter(mockService)

	mockService.On("Lock", mock.Anything, "user-123", mock.AnythingOfType("*dto.LockSeatsRequest")).
		Return(&dto.LockSeatsResponse{
			Locked:      []string{"seat-1", "seat-2"},
			Failed:      []string{},
			LockedUntil: time.Now().Add(10 * time.Minute),
			AllLocked:   true,
		}, nil)

	body, _ := json.Marshal(dto.LockSeatsRequest{
		EventID: "event-123",
		SeatIDs: []string{"seat-1", "seat-2"},
	})
	req, _ := http.NewRequest("POST", "/api/v1/inventory/lock", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", "user-123")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response dto.LockSeatsResponse
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.True(t, response.AllLocked)
	assert.Len(t, response.Locked, 2)
}

func TestInventoryHandler_Lock_PartialGrant(t *testing.T) {
	mockService := new(MockInventoryService)
	router := setupInventoryTestRouter(mockService)

	mockService.On("Lock", mock.Anything, "user-123", mock.AnythingOfType("*dto.LockSeatsRequest")).
		Return(&dto.LockSeatsResponse{
			Locked:      []string{"seat-1"},
			Failed:      []string{"seat-2"},
			LockedUntil: time.Now().Add(10 * time.Minute),
			AllLocked:   false,
		}, nil)

	body, _ := json.Marshal(dto.LockSeatsRequest{
		EventID: "event-123",
		SeatIDs: []string{"seat-1", "seat-2"},
	})
	req, _ := http.NewRequest("POST", "/api/v1/inventory/lock", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", "user-123")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)

	var response dto.PartialLockResponse
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "PARTIAL_LOCK", response.Code)
	assert.Equal(t, []string{"seat-1"}, response.Locked)
	assert.Equal(t, []string{"seat-2"}, response.Failed)
}

func TestInventoryHandler_Lock_RejectsDuplicateSeatIDs(t *testing.T) {
	mockService := new(MockInventoryService)
	router := setupInventoryTestRouter(mockService)

	body, _ := json.Marshal(dto.LockSeatsRequest{
		EventID: "event-123",
		SeatIDs: []string{"seat-1", "seat-1"},
	})
	req, _ := http.NewRequest("POST", "/api/v1/inventory/lock", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", "user-123")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	mockService.AssertNotCalled(t, "Lock")
}

func TestInventoryHandler_Release_OwnershipMismatch(t *testing.T) {
	mockService := new(MockInventoryService)
	router := setupInventoryTestRouter(mockService)

	mockService.On("Release", mock.Anything, "user-123", mock.AnythingOfType("*dto.ReleaseSeatsRequest")).
		Return(nil, domain.ErrLockOwnershipMismatch)

	body, _ := json.Marshal(dto.ReleaseSeatsRequest{
		EventID: "event-123",
		SeatIDs: []string{"seat-1"},
	})
	req, _ := http.NewRequest("POST", "/api/v1/inventory/release", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", "user-123")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)

	var response dto.ErrorResponse
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "LOCK_OWNERSHIP_MISMATCH", response.Code)
}

func TestInventoryHandler_Summary(t *testing.T) {
	mockService := new(MockInventoryService)
	router := setupInventoryTestRouter(mockService)

	mockService.On("Summary", mock.Anything, "event-123").
		Return(&dto.InventorySummaryResponse{
			EventID: "event-123",
			Categories: []domain.CategorySummary{
				{CategoryID: "cat-1", Total: 100, Available: 97, Locked: 2, Sold: 1},
			},
		}, nil)

	req, _ := http.NewRequest("GET", "/api/v1/inventory/summary?event_id=event-123", nil)
	req.Header.Set("X-User-ID", "user-123")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response dto.InventorySummaryResponse
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Len(t, response.Categories, 1)
	assert.Equal(t, int64(97), response.Categories[0].Available)
}
