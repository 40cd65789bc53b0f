package metrics

import (
	"context"
	"sync"

	"github.com/tixgate/tixgate/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
)

var (
	// Booking counters
	BookingsCreated   *telemetry.Counter
	BookingsConfirmed *telemetry.Counter
	BookingsCancelled *telemetry.Counter
	BookingsExpired   *telemetry.Counter
	BookingsFailed    *telemetry.Counter

	// Queue counters
	QueueJoined   *telemetry.Counter
	QueueLeft     *telemetry.Counter
	QueueAdmitted *telemetry.Counter

	// Inventory counters
	SeatsReclaimed *telemetry.Counter

	// Histograms
	BookingHoldDuration *telemetry.Histogram
	RequestDuration     *telemetry.Histogram

	// Gauges
	ActiveBookings *telemetry.UpDownCounter
	QueueDepth     *telemetry.UpDownCounter

	initOnce sync.Once
	initErr  error
)

// Init initializes all metrics
func Init() error {
	initOnce.Do(func() {
		initErr = initMetrics()
	})
	return initErr
}

func initMetrics() error {
	var err error

	BookingsCreated, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "booking_creations_total",
		Description: "Total number of bookings created",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	BookingsConfirmed, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "booking_confirmations_total",
		Description: "Total number of bookings confirmed",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	BookingsCancelled, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "booking_cancellations_total",
		Description: "Total number of cancelled bookings",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	BookingsExpired, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "booking_expirations_total",
		Description: "Total number of expired bookings swept",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	BookingsFailed, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "booking_failures_total",
		Description: "Total number of failed booking operations",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	QueueJoined, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "queue_joins_total",
		Description: "Total number of users joined queue",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	QueueLeft, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "queue_leaves_total",
		Description: "Total number of users left queue",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	QueueAdmitted, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "queue_admissions_total",
		Description: "Total number of users admitted from queue",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	SeatsReclaimed, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "inventory_seats_reclaimed_total",
		Description: "Total number of lapsed seat locks reclaimed",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	BookingHoldDuration, err = telemetry.NewHistogramWithBuckets(telemetry.MetricOpts{
		Name:        "booking_hold_duration_seconds",
		Description: "Duration from booking creation to confirmation",
		Unit:        "s",
	}, []float64{1, 5, 10, 30, 60, 120, 300, 600, 900})
	if err != nil {
		return err
	}

	RequestDuration, err = telemetry.NewHistogramWithBuckets(telemetry.MetricOpts{
		Name:        "http_request_duration_seconds",
		Description: "HTTP request duration in seconds",
		Unit:        "s",
	}, []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10})
	if err != nil {
		return err
	}

	ActiveBookings, err = telemetry.NewUpDownCounter(telemetry.MetricOpts{
		Name:        "booking_active_holds",
		Description: "Current number of pending bookings",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	QueueDepth, err = telemetry.NewUpDownCounter(telemetry.MetricOpts{
		Name:        "queue_depth",
		Description: "Current number of users in queue",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	return nil
}

// RecordBookingCreated records a booking creation
func RecordBookingCreated(ctx context.Context, eventID string, seatCount int) {
	if BookingsCreated != nil {
		BookingsCreated.Inc(ctx,
			attribute.String("event_id", eventID),
			attribute.Int("seat_count", seatCount),
		)
	}
	if ActiveBookings != nil {
		ActiveBookings.Inc(ctx)
	}
}

// RecordBookingConfirmed records a booking confirmation
func RecordBookingConfirmed(ctx context.Context, eventID string, holdSeconds float64) {
	if BookingsConfirmed != nil {
		BookingsConfirmed.Inc(ctx, attribute.String("event_id", eventID))
	}
	if BookingHoldDuration != nil {
		BookingHoldDuration.Record(ctx, holdSeconds, attribute.String("event_id", eventID))
	}
	if ActiveBookings != nil {
		ActiveBookings.Dec(ctx)
	}
}

// RecordBookingCancelled records a booking cancellation
func RecordBookingCancelled(ctx context.Context, eventID string) {
	if BookingsCancelled != nil {
		BookingsCancelled.Inc(ctx, attribute.String("event_id", eventID))
	}
	if ActiveBookings != nil {
		ActiveBookings.Dec(ctx)
	}
}

// RecordBookingsExpired records swept expired bookings
func RecordBookingsExpired(ctx context.Context, count int64) {
	if BookingsExpired != nil {
		BookingsExpired.Add(ctx, count)
	}
	if ActiveBookings != nil {
		ActiveBookings.Add(ctx, -count)
	}
}

// RecordBookingFailure records a failed booking operation
func RecordBookingFailure(ctx context.Context, eventID, operation string) {
	if BookingsFailed != nil {
		BookingsFailed.Inc(ctx,
			attribute.String("event_id", eventID),
			attribute.String("operation", operation),
		)
	}
}

// RecordQueueJoin records a queue join
func RecordQueueJoin(ctx context.Context, eventID string) {
	if QueueJoined != nil {
		QueueJoined.Inc(ctx, attribute.String("event_id", eventID))
	}
	if QueueDepth != nil {
		QueueDepth.Inc(ctx)
	}
}

// RecordQueueLeave records a queue leave
func RecordQueueLeave(ctx context.Context, eventID string) {
	if QueueLeft != nil {
		QueueLeft.Inc(ctx, attribute.String("event_id", eventID))
	}
	if QueueDepth != nil {
		QueueDepth.Dec(ctx)
	}
}

// RecordAdmissions records a batch of queue admissions
func RecordAdmissions(ctx context.Context, eventID string, count int64) {
	if QueueAdmitted != nil {
		QueueAdmitted.Add(ctx, count, attribute.String("event_id", eventID))
	}
	if QueueDepth != nil {
		QueueDepth.Add(ctx, -count)
	}
}

// RecordSeatsReclaimed records reclaimed seat locks
func RecordSeatsReclaimed(ctx context.Context, count int64) {
	if SeatsReclaimed != nil {
		SeatsReclaimed.Add(ctx, count)
	}
}

// RecordRequestDuration records HTTP request duration
func RecordRequestDuration(ctx context.Context, operation string, seconds float64) {
	if RequestDuration != nil {
		RequestDuration.Record(ctx, seconds, attribute.String("operation", operation))
	}
}
