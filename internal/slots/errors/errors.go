package errors

import "errors"

var (
	ErrSlotNotFound = errors.New("slot not found")

	// ErrSlotFull means the capacity guard rejected the reservation.
	ErrSlotFull = errors.New("slot capacity exhausted")

	ErrReservationNotFound = errors.New("reservation not found")

	// ErrLockHeld means another request holds the advisory lock for the
	// same slot.
	ErrLockHeld = errors.New("slot lock already held")
)
