package domain

import (
	"context"
	"time"
)

// ScheduleStore is the system of record for seat occupancy and price.
// Implementations must make ReserveSeats a single atomic conditional
// read-modify-write per slot: on any conflict nothing is written and a
// *SeatConflictError is returned.
type ScheduleStore interface {
	GetSlot(ctx context.Context, movieID, date, timeKey string) (Slot, error)
	// UpsertSlots is additive only: (date,time) pairs that already hold a
	// slot keep their price and occupancy untouched.
	UpsertSlots(ctx context.Context, movieID string, entries []SlotSpec) error
	ReserveSeats(ctx context.Context, movieID, date, timeKey string, seats []string, holderID string) error
	// ReleaseSeats removes only seats currently held by holderID; calling
	// it again, or for seats meanwhile claimed by someone else, is a no-op.
	ReleaseSeats(ctx context.Context, movieID, date, timeKey string, seats []string, holderID string) error
	DeleteSchedule(ctx context.Context, movieID string) error
	GetSchedule(ctx context.Context, movieID string) (Schedule, error)
	ListSchedules(ctx context.Context) ([]MovieSchedule, error)
}

// BookingLedger owns booking rows. Rows are immutable except for
// PaymentState transitions out of Pending.
type BookingLedger interface {
	Insert(ctx context.Context, b Booking) error
	Get(ctx context.Context, id string) (Booking, error)
	SetPaymentLink(ctx context.Context, id, link string) error
	// Transition applies a Pending -> next move. Repeating a transition a
	// row already completed returns no error and changes nothing.
	Transition(ctx context.Context, id string, next PaymentState) error
	ListByUser(ctx context.Context, userID string) ([]Booking, error)
	ListAll(ctx context.Context) ([]Booking, error)
	// ListReleasable returns every booking whose seat hold is due back:
	// Pending rows past their expiry, plus Expired or Cancelled rows
	// whose release has not completed. Paid rows keep their seats and
	// never appear.
	ListReleasable(ctx context.Context, now time.Time) ([]Booking, error)
	// MarkSeatsReleased records that the booking's hold was returned,
	// taking it out of the releasable scan.
	MarkSeatsReleased(ctx context.Context, id string) error
	DeleteByMovie(ctx context.Context, movieID string) error
}

// PaymentSession is the time-boxed checkout the provider hands back.
type PaymentSession struct {
	URL       string
	ExpiresAt time.Time
}

type PaymentRequest struct {
	Amount      float64
	Currency    string
	Description string
	SuccessURL  string
	CancelURL   string
	ExpiresAt   time.Time
	BookingID   string
}

type PaymentProvider interface {
	CreateSession(ctx context.Context, req PaymentRequest) (PaymentSession, error)
}

// MovieSource fetches movie metadata from the external catalog.
type MovieSource interface {
	FetchMovie(ctx context.Context, movieID string) (MovieRef, error)
}

// EventPublisher emits booking lifecycle events. Publishing is best
// effort; reservation outcomes never depend on it.
type EventPublisher interface {
	Publish(ctx context.Context, eventType string, payload any) error
}
