package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tixgate/tixgate/internal/metrics"
	"github.com/tixgate/tixgate/internal/service"
	"github.com/tixgate/tixgate/pkg/logger"
	"github.com/tixgate/tixgate/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// SweeperConfig contains configuration for the reconciliation sweeper
type SweeperConfig struct {
	Interval   time.Duration // how often to sweep (default: 2m)
	RunTimeout time.Duration // timeout for a single sweep (default: 1m)
}

// DefaultSweeperConfig returns the default sweeper configuration
func DefaultSweeperConfig() *SweeperConfig {
	return &SweeperConfig{
		Interval:   2 * time.Minute,
		RunTimeout: 1 * time.Minute,
	}
}

// Sweeper periodically reclaims lapsed seat locks and cancels expired
// pending bookings. Postgres is authoritative, so a failed sweep only
// delays cleanup until the next tick.
type Sweeper struct {
	inventoryService service.InventoryService
	bookingService   service.BookingService
	config           *SweeperConfig

	stopCh chan struct{}
	wg     sync.WaitGroup

	mu      sync.Mutex
	running bool

	// stats
	totalSeatsReclaimed  int64
	totalBookingsSwept   int64
	totalRuns            int64
	lastRunTime          time.Time
	lastRunDuration      time.Duration
	lastRunError         string
	lastRunSeatsCount    int64
	lastRunBookingsCount int64
}

// SweeperStats contains runtime statistics for the sweeper
type SweeperStats struct {
	IsRunning            bool          `json:"is_running"`
	TotalSeatsReclaimed  int64         `json:"total_seats_reclaimed"`
	TotalBookingsSwept   int64         `json:"total_bookings_swept"`
	TotalRuns            int64         `json:"total_runs"`
	LastRunTime          time.Time     `json:"last_run_time"`
	LastRunDuration      time.Duration `json:"last_run_duration"`
	LastRunError         string        `json:"last_run_error,omitempty"`
	LastRunSeatsCount    int64         `json:"last_run_seats_count"`
	LastRunBookingsCount int64         `json:"last_run_bookings_count"`
}

// NewSweeper creates a new reconciliation sweeper
func NewSweeper(
	inventoryService service.InventoryService,
	bookingService service.BookingService,
	config *SweeperConfig,
) *Sweeper {
	if config == nil {
		config = DefaultSweeperConfig()
	}
	if config.Interval <= 0 {
		config.Interval = 2 * time.Minute
	}
	if config.RunTimeout <= 0 {
		config.RunTimeout = 1 * time.Minute
	}

	return &Sweeper{
		inventoryService: inventoryService,
		bookingService:   bookingService,
		config:           config,
		stopCh:           make(chan struct{}),
	}
}

// Start begins the sweep loop
func (s *Sweeper) Start() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("sweeper is already running")
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.mu.Unlock()

	logger.Get().Info("starting reconciliation sweeper",
		zap.Duration("interval", s.config.Interval))

	s.wg.Add(1)
	go s.run()

	return nil
}

// Stop gracefully stops the sweeper
func (s *Sweeper) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	logger.Get().Info("stopping reconciliation sweeper")
	close(s.stopCh)
	s.wg.Wait()
	logger.Get().Info("reconciliation sweeper stopped")
}

// IsRunning returns whether the sweeper is running
func (s *Sweeper) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// GetStats returns sweeper statistics
func (s *Sweeper) GetStats() SweeperStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SweeperStats{
		IsRunning:            s.running,
		TotalSeatsReclaimed:  s.totalSeatsReclaimed,
		TotalBookingsSwept:   s.totalBookingsSwept,
		TotalRuns:            s.totalRuns,
		LastRunTime:          s.lastRunTime,
		LastRunDuration:      s.lastRunDuration,
		LastRunError:         s.lastRunError,
		LastRunSeatsCount:    s.lastRunSeatsCount,
		LastRunBookingsCount: s.lastRunBookingsCount,
	}
}

func (s *Sweeper) run() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	// Run immediately on start
	s.sweep()

	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-s.stopCh:
			return
		}
	}
}

func (s *Sweeper) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.RunTimeout)
	defer cancel()

	start := time.Now()
	seats, bookings, err := s.RunOnce(ctx)
	duration := time.Since(start)

	s.mu.Lock()
	s.totalRuns++
	s.lastRunTime = start
	s.lastRunDuration = duration
	s.lastRunSeatsCount = seats
	s.lastRunBookingsCount = bookings
	if err != nil {
		s.lastRunError = err.Error()
	} else {
		s.lastRunError = ""
	}
	s.totalSeatsReclaimed += seats
	s.totalBookingsSwept += bookings
	s.mu.Unlock()

	if err != nil {
		logger.Get().Error("reconciliation sweep failed",
			zap.Duration("duration", duration),
			zap.Error(err))
		return
	}

	if seats > 0 || bookings > 0 {
		logger.Get().Info("reconciliation sweep completed",
			zap.Int64("seats_reclaimed", seats),
			zap.Int64("bookings_swept", bookings),
			zap.Duration("duration", duration))
	}
}

// RunOnce performs a single sweep. Expired bookings are cancelled first so
// their seats are already released when the lock reclaim runs. Returns the
// number of seats reclaimed and bookings swept.
func (s *Sweeper) RunOnce(ctx context.Context) (int64, int64, error) {
	ctx, span := telemetry.StartSpan(ctx, "worker.sweeper.run_once")
	defer span.End()

	bookings, bookingErr := s.bookingService.SweepExpired(ctx)
	if bookingErr != nil {
		span.RecordError(bookingErr)
		logger.Get().Error("failed to sweep expired bookings", zap.Error(bookingErr))
	}

	seats, seatErr := s.inventoryService.ReconcileExpired(ctx)
	if seatErr != nil {
		span.RecordError(seatErr)
		logger.Get().Error("failed to reconcile expired seat locks", zap.Error(seatErr))
	}

	if seats > 0 {
		metrics.RecordSeatsReclaimed(ctx, seats)
	}

	span.SetAttributes(
		attribute.Int64("seats_reclaimed", seats),
		attribute.Int64("bookings_swept", bookings),
	)

	if bookingErr != nil {
		span.SetStatus(codes.Error, bookingErr.Error())
		return seats, bookings, bookingErr
	}
	if seatErr != nil {
		span.SetStatus(codes.Error, seatErr.Error())
		return seats, bookings, seatErr
	}

	span.SetStatus(codes.Ok, "")
	return seats, bookings, nil
}
