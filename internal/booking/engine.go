// Package booking drives the reservation flow: validate the request,
// check availability, commit the seats atomically, record the booking,
// then request a checkout session.
package booking

import (
	"context"
	"sort"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/robertarktes/show-schedules-and-bookings/internal/domain"
	"github.com/robertarktes/show-schedules-and-bookings/internal/observability"
)

const defaultPaymentWindow = 30 * time.Minute

// Titles resolves a movie id to a human-readable payment description.
type Titles interface {
	MovieTitle(ctx context.Context, movieID string) string
}

type Engine struct {
	store    domain.ScheduleStore
	ledger   domain.BookingLedger
	payments domain.PaymentProvider
	titles   Titles
	events   domain.EventPublisher
	logger   observability.Logger

	window     time.Duration
	currency   string
	successURL string
	cancelURL  string
	now        func() time.Time
}

type Option func(*Engine)

// WithPaymentWindow overrides how long a checkout session stays open.
func WithPaymentWindow(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.window = d
		}
	}
}

func WithCheckoutURLs(success, cancel string) Option {
	return func(e *Engine) {
		e.successURL = success
		e.cancelURL = cancel
	}
}

func WithCurrency(c string) Option {
	return func(e *Engine) { e.currency = c }
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func NewEngine(store domain.ScheduleStore, ledger domain.BookingLedger, payments domain.PaymentProvider, titles Titles, events domain.EventPublisher, logger observability.Logger, opts ...Option) *Engine {
	e := &Engine{
		store:    store,
		ledger:   ledger,
		payments: payments,
		titles:   titles,
		events:   events,
		logger:   logger,
		window:   defaultPaymentWindow,
		currency: "usd",
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

type ReserveInput struct {
	MovieID string
	Date    string
	Time    string
	Seats   []string
	UserID  string
}

type ReserveResult struct {
	BookingID  string
	PaymentURL string
	Amount     float64
}

// Reserve runs the full state machine. Seats are committed under the
// booking id, so a later release touches exactly this booking's hold and
// nothing a rebooking of the same seats created. If the checkout session
// cannot be issued the hold is rolled back immediately: seats released,
// booking marked Cancelled, ErrPaymentUnavailable returned.
func (e *Engine) Reserve(ctx context.Context, in ReserveInput) (ReserveResult, error) {
	start := e.now()
	if err := domain.ValidateSeats(in.Seats); err != nil {
		observability.ReservationsTotal.WithLabelValues("invalid").Inc()
		return ReserveResult{}, err
	}
	if err := domain.ValidateSlotKey(in.Date, in.Time); err != nil {
		observability.ReservationsTotal.WithLabelValues("invalid").Inc()
		return ReserveResult{}, err
	}

	slot, err := e.store.GetSlot(ctx, in.MovieID, in.Date, in.Time)
	if err != nil {
		observability.ReservationsTotal.WithLabelValues("not_found").Inc()
		return ReserveResult{}, err
	}

	b := domain.NewBooking(in.UserID, in.MovieID, in.Date, in.Time, in.Seats, slot.Price, e.window, start.UTC())

	if err := e.store.ReserveSeats(ctx, in.MovieID, in.Date, in.Time, b.Seats, b.ID); err != nil {
		var conflict *domain.SeatConflictError
		if errors.As(err, &conflict) {
			observability.SeatConflictsTotal.Inc()
			observability.ReservationsTotal.WithLabelValues("conflict").Inc()
		}
		return ReserveResult{}, err
	}

	if err := e.ledger.Insert(ctx, b); err != nil {
		e.rollback(ctx, b, false)
		return ReserveResult{}, errors.Wrap(err, "record booking")
	}

	session, err := e.payments.CreateSession(ctx, domain.PaymentRequest{
		Amount:      b.Amount,
		Currency:    e.currency,
		Description: e.titles.MovieTitle(ctx, in.MovieID),
		SuccessURL:  e.successURL,
		CancelURL:   e.cancelURL,
		ExpiresAt:   b.ExpiresAt,
		BookingID:   b.ID,
	})
	if err != nil {
		observability.PaymentFailuresTotal.Inc()
		observability.ReservationsTotal.WithLabelValues("payment_failed").Inc()
		e.rollback(ctx, b, true)
		if !errors.Is(err, domain.ErrPaymentUnavailable) {
			err = errors.CombineErrors(domain.ErrPaymentUnavailable, err)
		}
		return ReserveResult{}, err
	}

	if err := e.ledger.SetPaymentLink(ctx, b.ID, session.URL); err != nil {
		e.logger.WithError(err).WithField("booking_id", b.ID).Error("failed to store payment link")
	}
	e.publish(ctx, "booking.created", b)

	observability.ReservationsTotal.WithLabelValues("ok").Inc()
	observability.ReserveDuration.Observe(e.now().Sub(start).Seconds())
	return ReserveResult{BookingID: b.ID, PaymentURL: session.URL, Amount: b.Amount}, nil
}

// rollback undoes a committed hold. The booking row, when it exists, is
// left behind as a Cancelled record rather than deleted. If the release
// itself fails the Cancelled row is not marked released, which keeps it
// in the sweeper's releasable scan until the seats come back.
func (e *Engine) rollback(ctx context.Context, b domain.Booking, recorded bool) {
	releaseErr := e.store.ReleaseSeats(ctx, b.MovieID, b.Date, b.Time, b.Seats, b.ID)
	if releaseErr != nil {
		e.logger.WithError(releaseErr).WithField("booking_id", b.ID).Error("failed to release seats on rollback")
	}
	if !recorded {
		return
	}
	if err := e.ledger.Transition(ctx, b.ID, domain.PaymentCancelled); err != nil {
		e.logger.WithError(err).WithField("booking_id", b.ID).Error("failed to cancel booking on rollback")
	} else if releaseErr == nil {
		if err := e.ledger.MarkSeatsReleased(ctx, b.ID); err != nil {
			e.logger.WithError(err).WithField("booking_id", b.ID).Warn("failed to mark seats released")
		}
	}
	e.publish(ctx, "booking.cancelled", b)
}

// ConfirmPayment marks a booking Paid; the payment callback drives it.
func (e *Engine) ConfirmPayment(ctx context.Context, bookingID string) error {
	if err := e.ledger.Transition(ctx, bookingID, domain.PaymentPaid); err != nil {
		return err
	}
	b, err := e.ledger.Get(ctx, bookingID)
	if err == nil {
		e.publish(ctx, "booking.paid", b)
	}
	return nil
}

// Cancel releases a pending booking's seats back to availability.
// Release is explicit, never implicit; repeated cancels are no-ops.
func (e *Engine) Cancel(ctx context.Context, bookingID string) error {
	b, err := e.ledger.Get(ctx, bookingID)
	if err != nil {
		return err
	}
	if err := e.ledger.Transition(ctx, bookingID, domain.PaymentCancelled); err != nil {
		return err
	}
	if err := e.store.ReleaseSeats(ctx, b.MovieID, b.Date, b.Time, b.Seats, b.ID); err != nil {
		// The Cancelled row stays in the sweeper's releasable scan, so
		// the hold still comes back even if the caller never retries.
		return err
	}
	if err := e.ledger.MarkSeatsReleased(ctx, bookingID); err != nil {
		e.logger.WithError(err).WithField("booking_id", bookingID).Warn("failed to mark seats released")
	}
	e.publish(ctx, "booking.cancelled", b)
	return nil
}

// OccupiedSeats returns the sorted seat labels of a slot; a missing slot
// reads as empty, matching the public seat-map endpoint's contract.
func (e *Engine) OccupiedSeats(ctx context.Context, movieID, date, timeKey string) ([]string, error) {
	slot, err := e.store.GetSlot(ctx, movieID, date, timeKey)
	if errors.Is(err, domain.ErrSlotNotFound) {
		return []string{}, nil
	}
	if err != nil {
		return nil, err
	}
	seats := make([]string, 0, len(slot.OccupiedSeats))
	for seat := range slot.OccupiedSeats {
		seats = append(seats, seat)
	}
	sort.Strings(seats)
	return seats, nil
}

// Schedule applies an admin scheduling action; the movie is resolved
// through the catalog on first use so its display fields get cached.
func (e *Engine) Schedule(ctx context.Context, movieID string, entries []domain.SlotSpec) error {
	if len(entries) == 0 {
		return errors.Wrap(domain.ErrInvalidRequest, "no slots given")
	}
	e.titles.MovieTitle(ctx, movieID)
	return e.store.UpsertSlots(ctx, movieID, entries)
}

// DeleteSchedule removes the whole schedule and purges its bookings.
func (e *Engine) DeleteSchedule(ctx context.Context, movieID string) error {
	if err := e.store.DeleteSchedule(ctx, movieID); err != nil {
		return err
	}
	return e.ledger.DeleteByMovie(ctx, movieID)
}

func (e *Engine) publish(ctx context.Context, eventType string, b domain.Booking) {
	if e.events == nil {
		return
	}
	payload := map[string]any{
		"booking_id": b.ID,
		"movie_id":   b.MovieID,
		"date":       b.Date,
		"time":       b.Time,
		"seats":      b.Seats,
		"amount":     b.Amount,
	}
	if err := e.events.Publish(ctx, eventType, payload); err != nil {
		e.logger.WithError(err).WithField("event", eventType).Warn("event publish failed")
	}
}
