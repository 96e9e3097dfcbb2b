package booking

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/robertarktes/show-schedules-and-bookings/internal/domain"
	"github.com/robertarktes/show-schedules-and-bookings/internal/observability"
)

// Sweeper releases the seats of Pending bookings whose payment window
// lapsed. It is the bounded-grace half of the payment failure policy: a
// session that was issued but never paid cannot hold seats forever. A
// booking is only taken out of the scan once its release actually
// succeeded, so a store outage during one pass is retried on the next.
type Sweeper struct {
	store      domain.ScheduleStore
	ledger     domain.BookingLedger
	events     domain.EventPublisher
	logger     observability.Logger
	now        func() time.Time
	retryDelay time.Duration
}

func NewSweeper(store domain.ScheduleStore, ledger domain.BookingLedger, events domain.EventPublisher, logger observability.Logger) *Sweeper {
	return &Sweeper{store: store, ledger: ledger, events: events, logger: logger, now: time.Now, retryDelay: time.Second}
}

func (s *Sweeper) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Sweep(ctx, s.now()); err != nil {
				s.logger.WithError(err).Error("sweep failed")
			}
		}
	}
}

// Sweep expires every lapsed Pending booking, retries terminal bookings
// whose earlier release failed, and returns how many holds it returned.
// Seats are matched by booking id, so a repeated sweep, or one racing a
// rebooking of the same seats, releases nothing it should not.
func (s *Sweeper) Sweep(ctx context.Context, now time.Time) (int, error) {
	due, err := s.ledger.ListReleasable(ctx, now)
	if err != nil {
		return 0, errors.Wrap(err, "list releasable bookings")
	}

	released := 0
	for _, b := range due {
		ok, err := s.release(ctx, b)
		if err != nil {
			s.logger.WithError(err).WithField("booking_id", b.ID).Error("failed to release booking seats")
			continue
		}
		if ok {
			released++
			observability.SweepReleasedTotal.Inc()
		}
	}
	return released, nil
}

// release expires a lapsed Pending booking and returns its hold. The
// transition happens before the release so a payment callback racing the
// sweep can never lose seats it already paid for; if the release then
// fails, the Expired row stays in the releasable scan and a later pass
// retries it.
func (s *Sweeper) release(ctx context.Context, b domain.Booking) (bool, error) {
	expired := b.PaymentState == domain.PaymentExpired
	if b.PaymentState == domain.PaymentPending {
		err := s.ledger.Transition(ctx, b.ID, domain.PaymentExpired)
		if errors.Is(err, domain.ErrInvalidTransition) {
			// Paid or cancelled between the scan and now; those paths own
			// the seats.
			return false, nil
		}
		if err != nil {
			return false, err
		}
		expired = true
	}

	const maxRetries = 3
	for i := 0; ; i++ {
		err := s.store.ReleaseSeats(ctx, b.MovieID, b.Date, b.Time, b.Seats, b.ID)
		if err == nil {
			break
		}
		if i == maxRetries-1 {
			return false, errors.Wrapf(err, "release seats after %d attempts", maxRetries)
		}
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(time.Duration(1<<i) * s.retryDelay):
		}
	}

	if err := s.ledger.MarkSeatsReleased(ctx, b.ID); err != nil {
		// Next pass releases again, which is a holder-matched no-op.
		s.logger.WithError(err).WithField("booking_id", b.ID).Warn("failed to mark seats released")
	}

	if expired && s.events != nil {
		payload := map[string]any{"booking_id": b.ID, "movie_id": b.MovieID, "seats": b.Seats}
		if perr := s.events.Publish(ctx, "booking.expired", payload); perr != nil {
			s.logger.WithError(perr).Warn("event publish failed")
		}
	}
	return true, nil
}
