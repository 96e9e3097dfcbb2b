// Package admin is the pure read side: every call re-derives its answer
// from the schedule store and the booking ledger, holding no state of
// its own, so it can run beside any number of concurrent writers.
package admin

import (
	"context"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/robertarktes/show-schedules-and-bookings/internal/domain"
)

// Movies is the slice of the catalog the aggregator needs: enough to
// tell whether a booking's movie still exists and to label dashboards.
type Movies interface {
	Get(ctx context.Context, movieID string) (domain.MovieRef, error)
}

type Aggregator struct {
	store  domain.ScheduleStore
	ledger domain.BookingLedger
	movies Movies
	now    func() time.Time
}

func NewAggregator(store domain.ScheduleStore, ledger domain.BookingLedger, movies Movies) *Aggregator {
	return &Aggregator{store: store, ledger: ledger, movies: movies, now: time.Now}
}

// WithClock fixes the reference-time source; tests use it.
func (a *Aggregator) WithClock(now func() time.Time) *Aggregator {
	a.now = now
	return a
}

// ShowInstance is one flattened slot. OccupiedCount is the size of the
// occupancy map; holder identities never leave the write side.
type ShowInstance struct {
	MovieID       string    `json:"movieId"`
	Date          string    `json:"date"`
	Time          string    `json:"time"`
	StartsAt      time.Time `json:"startsAt"`
	Price         float64   `json:"price"`
	OccupiedCount int       `json:"occupiedCount"`
}

type Dashboard struct {
	TotalBookings int            `json:"totalBookings"`
	TotalRevenue  float64        `json:"totalRevenue"`
	ActiveShows   []ShowInstance `json:"activeShows"`
}

func (a *Aggregator) flatten(ctx context.Context) ([]ShowInstance, error) {
	schedules, err := a.store.ListSchedules(ctx)
	if err != nil {
		return nil, err
	}

	var shows []ShowInstance
	for _, ms := range schedules {
		for date, times := range ms.Schedule {
			for timeKey, slot := range times {
				startsAt, err := domain.StartTime(date, timeKey)
				if err != nil {
					// Tolerate a malformed key rather than failing the scan.
					continue
				}
				shows = append(shows, ShowInstance{
					MovieID:       ms.MovieID,
					Date:          date,
					Time:          timeKey,
					StartsAt:      startsAt,
					Price:         slot.Price,
					OccupiedCount: len(slot.OccupiedSeats),
				})
			}
		}
	}
	sort.Slice(shows, func(i, j int) bool {
		if shows[i].StartsAt.Equal(shows[j].StartsAt) {
			return shows[i].MovieID < shows[j].MovieID
		}
		return shows[i].StartsAt.Before(shows[j].StartsAt)
	})
	return shows, nil
}

// AllShows lists every slot of every movie, ascending by start time.
func (a *Aggregator) AllShows(ctx context.Context) ([]ShowInstance, error) {
	return a.flatten(ctx)
}

// UpcomingShows filters against one reference-time snapshot taken at the
// start of the call and keeps the earliest upcoming instance per movie.
func (a *Aggregator) UpcomingShows(ctx context.Context) ([]ShowInstance, error) {
	ref := a.now().UTC()
	shows, err := a.flatten(ctx)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	var upcoming []ShowInstance
	for _, show := range shows {
		if show.StartsAt.Before(ref) {
			continue
		}
		if _, dup := seen[show.MovieID]; dup {
			continue
		}
		seen[show.MovieID] = struct{}{}
		upcoming = append(upcoming, show)
	}
	return upcoming, nil
}

// Dashboard scans schedules and the ledger concurrently. Revenue sums
// amounts over Paid rows only; a Pending booking contributes nothing.
func (a *Aggregator) Dashboard(ctx context.Context) (Dashboard, error) {
	var (
		bookings []domain.Booking
		active   []ShowInstance
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		bookings, err = a.ledger.ListAll(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		active, err = a.UpcomingShows(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return Dashboard{}, err
	}

	var revenue float64
	for _, b := range bookings {
		if b.PaymentState == domain.PaymentPaid {
			revenue += b.Amount
		}
	}
	return Dashboard{
		TotalBookings: len(bookings),
		TotalRevenue:  revenue,
		ActiveShows:   active,
	}, nil
}

// AllBookings lists the ledger for admin use, skipping rows whose movie
// has since been deleted instead of erroring on them.
func (a *Aggregator) AllBookings(ctx context.Context) ([]domain.Booking, error) {
	bookings, err := a.ledger.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	valid := bookings[:0]
	for _, b := range bookings {
		if _, err := a.movies.Get(ctx, b.MovieID); err != nil {
			continue
		}
		valid = append(valid, b)
	}
	return valid, nil
}
