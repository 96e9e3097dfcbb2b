package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/robertarktes/show-schedules-and-bookings/internal/domain"
)

type BookingLedger struct {
	mu   sync.RWMutex
	rows map[string]domain.Booking
}

func NewBookingLedger() *BookingLedger {
	return &BookingLedger{rows: make(map[string]domain.Booking)}
}

func (l *BookingLedger) Insert(ctx context.Context, b domain.Booking) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rows[b.ID] = b
	return nil
}

func (l *BookingLedger) Get(ctx context.Context, id string) (domain.Booking, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	b, ok := l.rows[id]
	if !ok {
		return domain.Booking{}, domain.ErrBookingNotFound
	}
	return b, nil
}

func (l *BookingLedger) SetPaymentLink(ctx context.Context, id, link string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.rows[id]
	if !ok {
		return domain.ErrBookingNotFound
	}
	b.PaymentLink = link
	l.rows[id] = b
	return nil
}

func (l *BookingLedger) Transition(ctx context.Context, id string, next domain.PaymentState) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.rows[id]
	if !ok {
		return domain.ErrBookingNotFound
	}
	if b.PaymentState == next {
		return nil
	}
	if !b.PaymentState.CanTransitionTo(next) {
		return domain.ErrInvalidTransition
	}
	b.PaymentState = next
	l.rows[id] = b
	return nil
}

func (l *BookingLedger) ListByUser(ctx context.Context, userID string) ([]domain.Booking, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []domain.Booking
	for _, b := range l.rows {
		if b.UserID == userID {
			out = append(out, b)
		}
	}
	sortNewestFirst(out)
	return out, nil
}

func (l *BookingLedger) ListAll(ctx context.Context) ([]domain.Booking, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]domain.Booking, 0, len(l.rows))
	for _, b := range l.rows {
		out = append(out, b)
	}
	sortNewestFirst(out)
	return out, nil
}

func (l *BookingLedger) ListReleasable(ctx context.Context, now time.Time) ([]domain.Booking, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []domain.Booking
	for _, b := range l.rows {
		if releasable(b, now) {
			out = append(out, b)
		}
	}
	sortNewestFirst(out)
	return out, nil
}

func releasable(b domain.Booking, now time.Time) bool {
	switch b.PaymentState {
	case domain.PaymentPending:
		return !b.ExpiresAt.After(now)
	case domain.PaymentExpired, domain.PaymentCancelled:
		return !b.SeatsReleased
	}
	return false
}

func (l *BookingLedger) MarkSeatsReleased(ctx context.Context, id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.rows[id]
	if !ok {
		return domain.ErrBookingNotFound
	}
	b.SeatsReleased = true
	l.rows[id] = b
	return nil
}

func (l *BookingLedger) DeleteByMovie(ctx context.Context, movieID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for id, b := range l.rows {
		if b.MovieID == movieID {
			delete(l.rows, id)
		}
	}
	return nil
}

func sortNewestFirst(rows []domain.Booking) {
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].CreatedAt.Equal(rows[j].CreatedAt) {
			return rows[i].ID < rows[j].ID
		}
		return rows[i].CreatedAt.After(rows[j].CreatedAt)
	})
}
