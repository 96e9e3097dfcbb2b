package domain

import (
	"time"

	"github.com/google/uuid"
)

type PaymentState string

const (
	PaymentPending   PaymentState = "PENDING"
	PaymentPaid      PaymentState = "PAID"
	PaymentExpired   PaymentState = "EXPIRED"
	PaymentCancelled PaymentState = "CANCELLED"
)

// CanTransitionTo enforces the booking lifecycle: only Pending moves, and
// only into one of the terminal states. Repeating a transition the row is
// already in is treated as a no-op by the ledger, not by this check.
func (s PaymentState) CanTransitionTo(next PaymentState) bool {
	if s != PaymentPending {
		return false
	}
	switch next {
	case PaymentPaid, PaymentExpired, PaymentCancelled:
		return true
	}
	return false
}

// Booking is the persisted record of a seat purchase. Everything except
// PaymentState, PaymentLink and SeatsReleased is frozen at commit time;
// Amount in particular is never recomputed if the slot price later
// changes. SeatsReleased records that an Expired or Cancelled booking's
// hold came back to availability; until it is set the booking stays in
// the releasable scan, so a failed release is always retried.
type Booking struct {
	ID            string       `bson:"_id" json:"id"`
	UserID        string       `bson:"userId" json:"userId"`
	MovieID       string       `bson:"movieId" json:"movieId"`
	Date          string       `bson:"date" json:"date"`
	Time          string       `bson:"time" json:"time"`
	Seats         []string     `bson:"seats" json:"seats"`
	Amount        float64      `bson:"amount" json:"amount"`
	PaymentState  PaymentState `bson:"paymentState" json:"paymentState"`
	PaymentLink   string       `bson:"paymentLink,omitempty" json:"paymentLink,omitempty"`
	SeatsReleased bool         `bson:"seatsReleased" json:"-"`
	CreatedAt     time.Time    `bson:"createdAt" json:"createdAt"`
	ExpiresAt     time.Time    `bson:"expiresAt" json:"expiresAt"`
}

func NewBooking(userID, movieID, date, timeKey string, seats []string, price float64, window time.Duration, now time.Time) Booking {
	frozen := make([]string, len(seats))
	copy(frozen, seats)
	return Booking{
		ID:           uuid.New().String(),
		UserID:       userID,
		MovieID:      movieID,
		Date:         date,
		Time:         timeKey,
		Seats:        frozen,
		Amount:       price * float64(len(frozen)),
		PaymentState: PaymentPending,
		CreatedAt:    now,
		ExpiresAt:    now.Add(window),
	}
}
