package fanout

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

// NotifierConfig contains configuration for the queue notifier
type NotifierConfig struct {
	AdmitInterval    time.Duration // how often to admit a batch (default: 30s)
	PositionInterval time.Duration // how often to broadcast positions (default: 5s)
	AdmitBatchSize   int64         // users admitted per event per tick (default: 50)
	PositionLimit    int64         // entries per event per position tick (default: 1000)
	RunTimeout       time.Duration // timeout for a single tick (default: 30s)
}

// DefaultNotifierConfig returns the default notifier configuration
func DefaultNotifierConfig() *NotifierConfig {
	return &NotifierConfig{
		AdmitInterval:    30 * time.Second,
		PositionInterval: 5 * time.Second,
		AdmitBatchSize:   50,
		PositionLimit:    1000,
		RunTimeout:       30 * time.Second,
	}
}

// Notifier drives the queue admission and position broadcast loops and
// pushes the results to subscribers through the hub
type Notifier struct {
	queueService service.QueueService
	hub          *Hub
	config       *NotifierConfig

	stopCh chan struct{}
	wg     sync.WaitGroup

	mu      sync.Mutex
	running bool

	// stats
	totalAdmitted     int64
	totalNotified     int64
	lastAdmitRunTime  time.Time
	lastPositionTime  time.Time
	lastAdmitError    string
	lastPositionError string
}

// NotifierStats contains runtime statistics for the notifier
type NotifierStats struct {
	IsRunning         bool      `json:"is_running"`
	TotalAdmitted     int64     `json:"total_admitted"`
	TotalNotified     int64     `json:"total_notified"`
	LastAdmitRunTime  time.Time `json:"last_admit_run_time"`
	LastPositionTime  time.Time `json:"last_position_time"`
	LastAdmitError    string    `json:"last_admit_error,omitempty"`
	LastPositionError string    `json:"last_position_error,omitempty"`
}

// NewNotifier creates a new queue notifier
func NewNotifier(queueService service.QueueService, hub *Hub, config *NotifierConfig) *Notifier {
	if config == nil {
		config = DefaultNotifierConfig()
	}
	if config.AdmitInterval <= 0 {
		config.AdmitInterval = 30 * time.Second
	}
	if config.PositionInterval <= 0 {
		config.PositionInterval = 5 * time.Second
	}
	if config.AdmitBatchSize <= 0 {
		config.AdmitBatchSize = 50
	}
	if config.PositionLimit <= 0 {
		config.PositionLimit = 1000
	}
	if config.RunTimeout <= 0 {
		config.RunTimeout = 30 * time.Second
	}

	return &Notifier{
		queueService: queueService,
		hub:          hub,
		config:       config,
		stopCh:       make(chan struct{}),
	}
}

// Start begins the admission and position broadcast loops
func (n *Notifier) Start() error {
	n.mu.Lock()
	if n.running {
		n.mu.Unlock()
		return fmt.Errorf("notifier is already running")
	}
	n.running = true
	n.stopCh = make(chan struct{})
	n.mu.Unlock()

	logger.Get().Info("starting queue notifier",
		zap.Duration("admit_interval", n.config.AdmitInterval),
		zap.Duration("position_interval", n.config.PositionInterval),
		zap.Int64("admit_batch_size", n.config.AdmitBatchSize))

	n.wg.Add(2)
	go n.admitLoop()
	go n.positionLoop()

	return nil
}

// Stop gracefully stops the notifier
func (n *Notifier) Stop() {
	n.mu.Lock()
	if !n.running {
		n.mu.Unlock()
		return
	}
	n.running = false
	n.mu.Unlock()

	logger.Get().Info("stopping queue notifier")
	close(n.stopCh)
	n.wg.Wait()
	logger.Get().Info("queue notifier stopped")
}

// IsRunning returns whether the notifier is running
func (n *Notifier) IsRunning() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.running
}

// GetStats returns notifier statistics
func (n *Notifier) GetStats() NotifierStats {
	n.mu.Lock()
	defer n.mu.Unlock()
	return NotifierStats{
		IsRunning:         n.running,
		TotalAdmitted:     n.totalAdmitted,
		TotalNotified:     n.totalNotified,
		LastAdmitRunTime:  n.lastAdmitRunTime,
		LastPositionTime:  n.lastPositionTime,
		LastAdmitError:    n.lastAdmitError,
		LastPositionError: n.lastPositionError,
	}
}

func (n *Notifier) admitLoop() {
	defer n.wg.Done()

	ticker := time.NewTicker(n.config.AdmitInterval)
	defer ticker.Stop()

	// Run immediately on start
	n.runAdmitTick()

	for {
		select {
		case <-ticker.C:
			n.runAdmitTick()
		case <-n.stopCh:
			return
		}
	}
}

func (n *Notifier) positionLoop() {
	defer n.wg.Done()

	ticker := time.NewTicker(n.config.PositionInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			n.runPositionTick()
		case <-n.stopCh:
			return
		}
	}
}

func (n *Notifier) runAdmitTick() {
	ctx, cancel := context.WithTimeout(context.Background(), n.config.RunTimeout)
	defer cancel()

	admitted, err := n.RunAdmitOnce(ctx)

	n.mu.Lock()
	n.lastAdmitRunTime = time.Now()
	if err != nil {
		n.lastAdmitError = err.Error()
	} else {
		n.lastAdmitError = ""
		n.totalAdmitted += admitted
	}
	n.mu.Unlock()

	if err != nil {
		logger.Get().Error("admission tick failed", zap.Error(err))
	}
}

func (n *Notifier) runPositionTick() {
	ctx, cancel := context.WithTimeout(context.Background(), n.config.RunTimeout)
	defer cancel()

	notified, err := n.RunPositionOnce(ctx)

	n.mu.Lock()
	n.lastPositionTime = time.Now()
	if err != nil {
		n.lastPositionError = err.Error()
	} else {
		n.lastPositionError = ""
		n.totalNotified += notified
	}
	n.mu.Unlock()

	if err != nil {
		logger.Get().Error("position broadcast tick failed", zap.Error(err))
	}
}

// RunAdmitOnce admits one batch per active queue and notifies the admitted
// users. Returns the total number of admissions.
func (n *Notifier) RunAdmitOnce(ctx context.Context) (int64, error) {
	ctx, span := telemetry.StartSpan(ctx, "fanout.notifier.admit_once")
	defer span.End()

	eventIDs, err := n.queueService.ActiveEvents(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, fmt.Errorf("failed to list active queues: %w", err)
	}

	var total int64
	for _, eventID := range eventIDs {
		admitted, err := n.queueService.Admit(ctx, eventID, n.config.AdmitBatchSize)
		if err != nil {
			logger.Get().Error("failed to admit batch",
				zap.String("event_id", eventID),
				zap.Error(err))
			continue
		}
		if len(admitted) == 0 {
			continue
		}

		now := time.Now()
		for _, user := range admitted {
			n.hub.Publish(Notification{
				Type:      NotificationQueueAdvanced,
				EventID:   eventID,
				UserID:    user.UserID,
				QueuePass: user.QueuePass,
				Timestamp: now,
			})
		}

		total += int64(len(admitted))
		metrics.RecordAdmissions(ctx, eventID, int64(len(admitted)))

		logger.Get().Info("admitted queue batch",
			zap.String("event_id", eventID),
			zap.Int("admitted", len(admitted)))
	}

	span.SetAttributes(attribute.Int64("admitted", total))
	span.SetStatus(codes.Ok, "")
	return total, nil
}

// RunPositionOnce broadcasts a position update to every queued user on
// every active queue. Returns the number of notifications published.
func (n *Notifier) RunPositionOnce(ctx context.Context) (int64, error) {
	ctx, span := telemetry.StartSpan(ctx, "fanout.notifier.position_once")
	defer span.End()

	eventIDs, err := n.queueService.ActiveEvents(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, fmt.Errorf("failed to list active queues: %w", err)
	}

	var total int64
	for _, eventID := range eventIDs {
		entries, err := n.queueService.Entries(ctx, eventID, n.config.PositionLimit)
		if err != nil {
			logger.Get().Error("failed to list queue entries",
				zap.String("event_id", eventID),
				zap.Error(err))
			continue
		}

		now := time.Now()
		for _, entry := range entries {
			estimate := n.queueService.WaitEstimate(entry.Position)
			n.hub.Publish(Notification{
				Type:         NotificationPositionUpdate,
				EventID:      eventID,
				UserID:       entry.UserID,
				Position:     entry.Position,
				UsersAhead:   entry.Position - 1,
				WaitEstimate: estimate.Human,
				Timestamp:    now,
			})
			total++
		}
	}

	span.SetAttributes(attribute.Int64("notified", total))
	span.SetStatus(codes.Ok, "")
	return total, nil
}
