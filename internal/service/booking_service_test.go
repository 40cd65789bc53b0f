package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tixgate/tixgate/internal/domain"
	"github.com/tixgate/tixgate/internal/dto"
	"github.com/tixgate/tixgate/internal/repository"
)

// MockBookingRepository is a mock implementation of BookingRepository
type MockBookingRepository struct {
	CreateFunc     func(ctx context.Context, params repository.CreateBookingParams) (*domain.Booking, error)
	GetByIDFunc    func(ctx context.Context, id string) (*domain.Booking, error)
	ConfirmFunc    func(ctx context.Context, bookingID, paymentID string, now time.Time) (*domain.Booking, error)
	CancelFunc     func(ctx context.Context, params repository.CancelBookingParams) (*domain.Booking, int64, error)
	GetExpiredFunc func(ctx context.Context, now time.Time, limit int) ([]*domain.Booking, error)
}

func (m *MockBookingRepository) Create(ctx context.Context, params repository.CreateBookingParams) (*domain.Booking, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, params)
	}
	return &domain.Booking{
		ID:        params.BookingID,
		UserID:    params.UserID,
		EventID:   params.EventID,
		Status:    domain.BookingStatusPending,
		Currency:  params.Currency,
		ExpiresAt: params.ExpiresAt,
		CreatedAt: time.Now(),
	}, nil
}

func (m *MockBookingRepository) GetByID(ctx context.Context, id string) (*domain.Booking, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, domain.ErrBookingNotFound
}

func (m *MockBookingRepository) Confirm(ctx context.Context, bookingID, paymentID string, now time.Time) (*domain.Booking, error) {
	if m.ConfirmFunc != nil {
		return m.ConfirmFunc(ctx, bookingID, paymentID, now)
	}
	return nil, domain.ErrBookingNotFound
}

func (m *MockBookingRepository) Cancel(ctx context.Context, params repository.CancelBookingParams) (*domain.Booking, int64, error) {
	if m.CancelFunc != nil {
		return m.CancelFunc(ctx, params)
	}
	return nil, 0, domain.ErrBookingNotFound
}

func (m *MockBookingRepository) GetExpired(ctx context.Context, now time.Time, limit int) ([]*domain.Booking, error) {
	if m.GetExpiredFunc != nil {
		return m.GetExpiredFunc(ctx, now, limit)
	}
	return []*domain.Booking{}, nil
}

// MockSessionRepository is a mock implementation of SessionRepository
type MockSessionRepository struct {
	SaveSessionFunc     func(ctx context.Context, session *domain.BookingSession, ttl time.Duration) error
	GetSessionFunc      func(ctx context.Context, bookingID string) (*domain.BookingSession, error)
	DeleteSessionFunc   func(ctx context.Context, bookingID string) error
	MirrorSeatLocksFunc func(ctx context.Context, seatIDs []string, userID string, ttl time.Duration) error
	ClearSeatLocksFunc  func(ctx context.Context, seatIDs []string) error
	SeatLockOwnerFunc   func(ctx context.Context, seatID string) (string, error)
}

func (m *MockSessionRepository) SaveSession(ctx context.Context, session *domain.BookingSession, ttl time.Duration) error {
	if m.SaveSessionFunc != nil {
		return m.SaveSessionFunc(ctx, session, ttl)
	}
	return nil
}

func (m *MockSessionRepository) GetSession(ctx context.Context, bookingID string) (*domain.BookingSession, error) {
	if m.GetSessionFunc != nil {
		return m.GetSessionFunc(ctx, bookingID)
	}
	return nil, nil
}

func (m *MockSessionRepository) DeleteSession(ctx context.Context, bookingID string) error {
	if m.DeleteSessionFunc != nil {
		return m.DeleteSessionFunc(ctx, bookingID)
	}
	return nil
}

func (m *MockSessionRepository) MirrorSeatLocks(ctx context.Context, seatIDs []string, userID string, ttl time.Duration) error {
	if m.MirrorSeatLocksFunc != nil {
		return m.MirrorSeatLocksFunc(ctx, seatIDs, userID, ttl)
	}
	return nil
}

func (m *MockSessionRepository) ClearSeatLocks(ctx context.Context, seatIDs []string) error {
	if m.ClearSeatLocksFunc != nil {
		return m.ClearSeatLocksFunc(ctx, seatIDs)
	}
	return nil
}

func (m *MockSessionRepository) SeatLockOwner(ctx context.Context, seatID string) (string, error) {
	if m.SeatLockOwnerFunc != nil {
		return m.SeatLockOwnerFunc(ctx, seatID)
	}
	return "", nil
}

func newTestBookingService(br *MockBookingRepository, sr *MockSessionRepository, qs QueueService) BookingService {
	return NewBookingService(br, sr, qs, NewNoOpEventPublisher(), &BookingServiceConfig{
		SessionTTL: 10 * time.Minute,
		MaxSeats:   10,
	})
}

func TestBookingService_Create(t *testing.T) {
	tests := []struct {
		name       string
		userID     string
		req        *dto.CreateBookingRequest
		setupMocks func(*MockBookingRepository, *MockSessionRepository)
		wantErr    error
	}{
		{
			name:   "successful booking",
			userID: "user-001",
			req: &dto.CreateBookingRequest{
				EventID: "event-001",
				SeatIDs: []string{"seat-1", "seat-2"},
			},
			setupMocks: func(br *MockBookingRepository, sr *MockSessionRepository) {
				br.CreateFunc = func(ctx context.Context, params repository.CreateBookingParams) (*domain.Booking, error) {
					return &domain.Booking{
						ID:          params.BookingID,
						UserID:      params.UserID,
						EventID:     params.EventID,
						Status:      domain.BookingStatusPending,
						TotalAmount: 250.00,
						Currency:    params.Currency,
						ExpiresAt:   params.ExpiresAt,
						CreatedAt:   time.Now(),
						Items: []domain.BookingItem{
							{BookingID: params.BookingID, SeatID: "seat-1", Price: 100},
							{BookingID: params.BookingID, SeatID: "seat-2", Price: 150},
						},
					}, nil
				}
			},
		},
		{
			name:   "seat taken rolls back everything",
			userID: "user-001",
			req: &dto.CreateBookingRequest{
				EventID: "event-001",
				SeatIDs: []string{"seat-1", "seat-2"},
			},
			setupMocks: func(br *MockBookingRepository, sr *MockSessionRepository) {
				br.CreateFunc = func(ctx context.Context, params repository.CreateBookingParams) (*domain.Booking, error) {
					return nil, domain.ErrSeatUnavailable
				}
			},
			wantErr: domain.ErrSeatUnavailable,
		},
		{
			name:   "missing event ID",
			userID: "user-001",
			req: &dto.CreateBookingRequest{
				SeatIDs: []string{"seat-1"},
			},
			wantErr: domain.ErrInvalidEventID,
		},
		{
			name:   "missing user ID",
			userID: "",
			req: &dto.CreateBookingRequest{
				EventID: "event-001",
				SeatIDs: []string{"seat-1"},
			},
			wantErr: domain.ErrInvalidUserID,
		},
		{
			name:   "no seats requested",
			userID: "user-001",
			req: &dto.CreateBookingRequest{
				EventID: "event-001",
			},
			wantErr: domain.ErrNoSeatsRequested,
		},
		{
			name:   "too many seats",
			userID: "user-001",
			req: &dto.CreateBookingRequest{
				EventID: "event-001",
				SeatIDs: []string{"s1", "s2", "s3", "s4", "s5", "s6", "s7", "s8", "s9", "s10", "s11"},
			},
			wantErr: domain.ErrTooManySeats,
		},
		{
			name:    "nil request",
			userID:  "user-001",
			req:     nil,
			wantErr: domain.ErrInvalidEventID,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bookingRepo := &MockBookingRepository{}
			sessionRepo := &MockSessionRepository{}

			if tt.setupMocks != nil {
				tt.setupMocks(bookingRepo, sessionRepo)
			}

			svc := newTestBookingService(bookingRepo, sessionRepo, nil)

			resp, err := svc.Create(context.Background(), tt.userID, tt.req)

			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("Create() error = %v, wantErr %v", err, tt.wantErr)
				}
				return
			}

			if err != nil {
				t.Errorf("Create() unexpected error = %v", err)
				return
			}

			if resp.BookingID == "" {
				t.Error("Create() expected booking ID, got empty")
			}
			if resp.Status != string(domain.BookingStatusPending) {
				t.Errorf("Create() status = %s, want pending", resp.Status)
			}
		})
	}
}

func TestBookingService_Create_CollapsesDuplicateSeatIDs(t *testing.T) {
	var received []string
	br := &MockBookingRepository{
		CreateFunc: func(ctx context.Context, params repository.CreateBookingParams) (*domain.Booking, error) {
			received = params.SeatIDs
			return &domain.Booking{
				ID:        params.BookingID,
				UserID:    params.UserID,
				EventID:   params.EventID,
				Status:    domain.BookingStatusPending,
				ExpiresAt: params.ExpiresAt,
			}, nil
		},
	}

	svc := newTestBookingService(br, &MockSessionRepository{}, nil)

	_, err := svc.Create(context.Background(), "user-1", &dto.CreateBookingRequest{
		EventID: "event-1",
		SeatIDs: []string{"seat-1", "seat-1", "seat-2", "seat-1"},
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if len(received) != 2 {
		t.Fatalf("repository received %d seat ids, want 2 (deduped)", len(received))
	}
	if received[0] != "seat-1" || received[1] != "seat-2" {
		t.Errorf("repository received %v, want [seat-1 seat-2] in request order", received)
	}
}

func TestBookingService_Create_RejectsBadQueuePass(t *testing.T) {
	queueRepo := new(MockQueueRepository)
	queueSvc := newTestQueueService(queueRepo)

	bookingRepo := &MockBookingRepository{
		CreateFunc: func(ctx context.Context, params repository.CreateBookingParams) (*domain.Booking, error) {
			t.Fatal("Create must not reach the repository with an invalid queue pass")
			return nil, nil
		},
	}
	svc := newTestBookingService(bookingRepo, &MockSessionRepository{}, queueSvc)

	_, err := svc.Create(context.Background(), "user-001", &dto.CreateBookingRequest{
		EventID:   "event-001",
		SeatIDs:   []string{"seat-1"},
		QueuePass: "bogus-token",
	})

	if !errors.Is(err, domain.ErrInvalidQueuePass) {
		t.Errorf("Create() error = %v, want %v", err, domain.ErrInvalidQueuePass)
	}
}

func TestBookingService_Confirm(t *testing.T) {
	tests := []struct {
		name       string
		userID     string
		bookingID  string
		setupMocks func(*MockBookingRepository)
		wantErr    error
	}{
		{
			name:      "successful confirmation",
			userID:    "user-001",
			bookingID: "booking-123",
			setupMocks: func(br *MockBookingRepository) {
				br.GetByIDFunc = func(ctx context.Context, id string) (*domain.Booking, error) {
					return &domain.Booking{
						ID:        id,
						UserID:    "user-001",
						EventID:   "event-001",
						Status:    domain.BookingStatusPending,
						ExpiresAt: time.Now().Add(5 * time.Minute),
						CreatedAt: time.Now().Add(-time.Minute),
					}, nil
				}
				br.ConfirmFunc = func(ctx context.Context, bookingID, paymentID string, now time.Time) (*domain.Booking, error) {
					confirmedAt := now
					return &domain.Booking{
						ID:            bookingID,
						UserID:        "user-001",
						EventID:       "event-001",
						Status:        domain.BookingStatusConfirmed,
						PaymentStatus: domain.PaymentStatusPaid,
						ConfirmedAt:   &confirmedAt,
						ExpiresAt:     time.Now().Add(5 * time.Minute),
						CreatedAt:     time.Now().Add(-time.Minute),
					}, nil
				}
			},
		},
		{
			name:      "expired hold is rejected",
			userID:    "user-001",
			bookingID: "booking-123",
			setupMocks: func(br *MockBookingRepository) {
				br.GetByIDFunc = func(ctx context.Context, id string) (*domain.Booking, error) {
					return &domain.Booking{
						ID:        id,
						UserID:    "user-001",
						Status:    domain.BookingStatusPending,
						ExpiresAt: time.Now().Add(-time.Minute),
					}, nil
				}
				br.ConfirmFunc = func(ctx context.Context, bookingID, paymentID string, now time.Time) (*domain.Booking, error) {
					return nil, domain.ErrBookingExpired
				}
			},
			wantErr: domain.ErrBookingExpired,
		},
		{
			name:      "wrong owner",
			userID:    "user-002",
			bookingID: "booking-123",
			setupMocks: func(br *MockBookingRepository) {
				br.GetByIDFunc = func(ctx context.Context, id string) (*domain.Booking, error) {
					return &domain.Booking{
						ID:     id,
						UserID: "user-001",
						Status: domain.BookingStatusPending,
					}, nil
				}
			},
			wantErr: domain.ErrBookingNotOwned,
		},
		{
			name:      "already confirmed",
			userID:    "user-001",
			bookingID: "booking-123",
			setupMocks: func(br *MockBookingRepository) {
				br.GetByIDFunc = func(ctx context.Context, id string) (*domain.Booking, error) {
					return &domain.Booking{
						ID:     id,
						UserID: "user-001",
						Status: domain.BookingStatusConfirmed,
					}, nil
				}
				br.ConfirmFunc = func(ctx context.Context, bookingID, paymentID string, now time.Time) (*domain.Booking, error) {
					return nil, domain.ErrInvalidBookingStatus
				}
			},
			wantErr: domain.ErrInvalidBookingStatus,
		},
		{
			name:      "not found",
			userID:    "user-001",
			bookingID: "missing",
			wantErr:   domain.ErrBookingNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bookingRepo := &MockBookingRepository{}
			if tt.setupMocks != nil {
				tt.setupMocks(bookingRepo)
			}

			svc := newTestBookingService(bookingRepo, &MockSessionRepository{}, nil)

			resp, err := svc.Confirm(context.Background(), tt.userID, tt.bookingID, &dto.ConfirmBookingRequest{PaymentID: "pay-1"})

			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("Confirm() error = %v, wantErr %v", err, tt.wantErr)
				}
				return
			}

			if err != nil {
				t.Errorf("Confirm() unexpected error = %v", err)
				return
			}
			if resp.Status != string(domain.BookingStatusConfirmed) {
				t.Errorf("Confirm() status = %s, want confirmed", resp.Status)
			}
		})
	}
}

func TestBookingService_Cancel_ReleasesSeats(t *testing.T) {
	var clearedSeats []string
	bookingRepo := &MockBookingRepository{
		CancelFunc: func(ctx context.Context, params repository.CancelBookingParams) (*domain.Booking, int64, error) {
			if params.UserID != "user-001" {
				t.Errorf("Cancel() userID = %s, want user-001", params.UserID)
			}
			return &domain.Booking{
				ID:      params.BookingID,
				UserID:  "user-001",
				EventID: "event-001",
				Status:  domain.BookingStatusCancelled,
				Items: []domain.BookingItem{
					{SeatID: "seat-1"},
					{SeatID: "seat-2"},
				},
			}, 2, nil
		},
	}
	sessionRepo := &MockSessionRepository{
		ClearSeatLocksFunc: func(ctx context.Context, seatIDs []string) error {
			clearedSeats = seatIDs
			return nil
		},
	}

	svc := newTestBookingService(bookingRepo, sessionRepo, nil)

	resp, err := svc.Cancel(context.Background(), "user-001", "booking-123")
	if err != nil {
		t.Fatalf("Cancel() unexpected error = %v", err)
	}

	if resp.SeatsReleased != 2 {
		t.Errorf("Cancel() seats released = %d, want 2", resp.SeatsReleased)
	}
	if len(clearedSeats) != 2 {
		t.Errorf("Cancel() cleared %d seat mirrors, want 2", len(clearedSeats))
	}
}

func TestBookingService_SweepExpired(t *testing.T) {
	expired := []*domain.Booking{
		{ID: "b-1", EventID: "event-001", Status: domain.BookingStatusPending},
		{ID: "b-2", EventID: "event-001", Status: domain.BookingStatusPending},
		{ID: "b-3", EventID: "event-001", Status: domain.BookingStatusPending},
	}

	calls := 0
	cancelled := make(map[string]bool)
	bookingRepo := &MockBookingRepository{
		GetExpiredFunc: func(ctx context.Context, now time.Time, limit int) ([]*domain.Booking, error) {
			calls++
			if calls > 1 {
				return []*domain.Booking{}, nil
			}
			return expired, nil
		},
		CancelFunc: func(ctx context.Context, params repository.CancelBookingParams) (*domain.Booking, int64, error) {
			if params.UserID != "" {
				t.Errorf("sweep must cancel system-side, got userID %q", params.UserID)
			}
			if params.BookingID == "b-2" {
				// Raced with a concurrent confirm; the sweep skips it
				return nil, 0, domain.ErrInvalidBookingStatus
			}
			cancelled[params.BookingID] = true
			return &domain.Booking{
				ID:      params.BookingID,
				EventID: "event-001",
				Status:  domain.BookingStatusCancelled,
			}, 1, nil
		},
	}

	svc := newTestBookingService(bookingRepo, &MockSessionRepository{}, nil)

	swept, err := svc.SweepExpired(context.Background())
	if err != nil {
		t.Fatalf("SweepExpired() unexpected error = %v", err)
	}

	if swept != 2 {
		t.Errorf("SweepExpired() swept = %d, want 2", swept)
	}
	if !cancelled["b-1"] || !cancelled["b-3"] {
		t.Error("SweepExpired() should cancel b-1 and b-3")
	}
	if cancelled["b-2"] {
		t.Error("SweepExpired() should skip the raced booking")
	}
}

func TestBookingService_SweepExpired_StopsWhenNothingCancels(t *testing.T) {
	// A full batch where every cancel fails must not refetch the same rows
	stuck := []*domain.Booking{
		{ID: "b-1", EventID: "event-001", Status: domain.BookingStatusPending},
		{ID: "b-2", EventID: "event-001", Status: domain.BookingStatusPending},
	}

	fetches := 0
	bookingRepo := &MockBookingRepository{
		GetExpiredFunc: func(ctx context.Context, now time.Time, limit int) ([]*domain.Booking, error) {
			fetches++
			return stuck, nil
		},
		CancelFunc: func(ctx context.Context, params repository.CancelBookingParams) (*domain.Booking, int64, error) {
			return nil, 0, errors.New("connection reset")
		},
	}

	svc := NewBookingService(bookingRepo, &MockSessionRepository{}, nil, NewNoOpEventPublisher(), &BookingServiceConfig{
		SessionTTL: 10 * time.Minute,
		MaxSeats:   10,
		SweepBatch: 2,
	})

	swept, err := svc.SweepExpired(context.Background())
	if err != nil {
		t.Fatalf("SweepExpired() unexpected error = %v", err)
	}

	if swept != 0 {
		t.Errorf("SweepExpired() swept = %d, want 0", swept)
	}
	if fetches != 1 {
		t.Errorf("GetExpired called %d times, want 1", fetches)
	}
}

func TestBookingService_HandlePaymentResult(t *testing.T) {
	t.Run("success confirms", func(t *testing.T) {
		bookingRepo := &MockBookingRepository{
			ConfirmFunc: func(ctx context.Context, bookingID, paymentID string, now time.Time) (*domain.Booking, error) {
				if paymentID != "pay-1" {
					t.Errorf("Confirm() paymentID = %s, want pay-1", paymentID)
				}
				return &domain.Booking{
					ID:        bookingID,
					EventID:   "event-001",
					Status:    domain.BookingStatusConfirmed,
					CreatedAt: time.Now().Add(-time.Minute),
				}, nil
			},
		}
		svc := newTestBookingService(bookingRepo, &MockSessionRepository{}, nil)

		resp, err := svc.HandlePaymentResult(context.Background(), &dto.PaymentCallbackRequest{
			BookingID: "booking-123",
			PaymentID: "pay-1",
			Status:    "succeeded",
		})
		if err != nil {
			t.Fatalf("HandlePaymentResult() unexpected error = %v", err)
		}
		if resp.Status != string(domain.BookingStatusConfirmed) {
			t.Errorf("HandlePaymentResult() status = %s, want confirmed", resp.Status)
		}
	})

	t.Run("failure cancels", func(t *testing.T) {
		bookingRepo := &MockBookingRepository{
			CancelFunc: func(ctx context.Context, params repository.CancelBookingParams) (*domain.Booking, int64, error) {
				if params.UserID != "" {
					t.Errorf("payment failure must cancel system-side, got userID %q", params.UserID)
				}
				return &domain.Booking{
					ID:      params.BookingID,
					EventID: "event-001",
					Status:  domain.BookingStatusCancelled,
				}, 1, nil
			},
		}
		svc := newTestBookingService(bookingRepo, &MockSessionRepository{}, nil)

		resp, err := svc.HandlePaymentResult(context.Background(), &dto.PaymentCallbackRequest{
			BookingID: "booking-123",
			PaymentID: "pay-1",
			Status:    "failed",
		})
		if err != nil {
			t.Fatalf("HandlePaymentResult() unexpected error = %v", err)
		}
		if resp.Status != string(domain.BookingStatusCancelled) {
			t.Errorf("HandlePaymentResult() status = %s, want cancelled", resp.Status)
		}
	})
}
