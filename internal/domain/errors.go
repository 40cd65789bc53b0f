package domain

import "errors"

// Domain errors
var (
	// Queue errors
	ErrAlreadyInQueue = errors.New("user is already in queue")
	ErrNotInQueue     = errors.New("user is not in queue")

	// Queue pass errors
	ErrQueuePassRequired      = errors.New("queue pass is required")
	ErrInvalidQueuePass       = errors.New("invalid queue pass")
	ErrQueuePassExpired       = errors.New("queue pass has expired")
	ErrQueuePassUserMismatch  = errors.New("queue pass does not belong to this user")
	ErrQueuePassEventMismatch = errors.New("queue pass is for a different event")

	// Inventory errors
	ErrSeatUnavailable       = errors.New("seat is unavailable")
	ErrSeatNotFound          = errors.New("seat not found")
	ErrLockOwnershipMismatch = errors.New("seat is locked by another user")

	// Booking errors
	ErrBookingNotFound      = errors.New("booking not found")
	ErrBookingExpired       = errors.New("booking has expired")
	ErrInvalidBookingStatus = errors.New("invalid booking status for this operation")
	ErrBookingNotOwned      = errors.New("booking does not belong to this user")

	// Validation errors
	ErrInvalidUserID    = errors.New("invalid user id")
	ErrInvalidEventID   = errors.New("invalid event id")
	ErrInvalidBookingID = errors.New("invalid booking id")
	ErrNoSeatsRequested = errors.New("at least one seat is required")
	ErrTooManySeats     = errors.New("too many seats requested")
)

// IsNotFoundError checks if the error is a not found error
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrBookingNotFound) ||
		errors.Is(err, ErrSeatNotFound) ||
		errors.Is(err, ErrNotInQueue)
}

// IsValidationError checks if the error is a validation error
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidUserID) ||
		errors.Is(err, ErrInvalidEventID) ||
		errors.Is(err, ErrInvalidBookingID) ||
		errors.Is(err, ErrNoSeatsRequested) ||
		errors.Is(err, ErrTooManySeats)
}

// IsConflictError checks if the error is a conflict error
func IsConflictError(err error) bool {
	return errors.Is(err, ErrAlreadyInQueue) ||
		errors.Is(err, ErrSeatUnavailable) ||
		errors.Is(err, ErrLockOwnershipMismatch) ||
		errors.Is(err, ErrInvalidBookingStatus)
}

// IsExpiredError checks if the error is an expiration error
func IsExpiredError(err error) bool {
	return errors.Is(err, ErrBookingExpired) ||
		errors.Is(err, ErrQueuePassExpired)
}

// IsQueuePassError checks if the error relates to queue pass validation
func IsQueuePassError(err error) bool {
	return errors.Is(err, ErrQueuePassRequired) ||
		errors.Is(err, ErrInvalidQueuePass) ||
		errors.Is(err, ErrQueuePassExpired) ||
		errors.Is(err, ErrQueuePassUserMismatch) ||
		errors.Is(err, ErrQueuePassEventMismatch)
}
