package domain

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

var (
	ErrSlotNotFound       = errors.New("slot not found")
	ErrScheduleNotFound   = errors.New("schedule not found")
	ErrBookingNotFound    = errors.New("booking not found")
	ErrMovieNotFound      = errors.New("movie not found")
	ErrInvalidRequest     = errors.New("invalid request")
	ErrPaymentUnavailable = errors.New("payment adapter unavailable")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrInvalidTransition  = errors.New("invalid payment state transition")
)

// SeatConflictError reports which requested seats were already occupied.
// The reservation that produced it changed nothing.
type SeatConflictError struct {
	Seats []string
}

func (e *SeatConflictError) Error() string {
	return fmt.Sprintf("seats unavailable: %v", e.Seats)
}
