// Package memory holds the in-process implementations of the schedule
// store and booking ledger. They back the unit tests and the embedded
// mode, and define the reference semantics the Mongo adapters mirror.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/robertarktes/show-schedules-and-bookings/internal/domain"
)

// slotEntry carries its own mutex so commits against different slots
// never contend. The outer map lock is only held to locate the entry.
// deleted is set under the entry lock when the schedule goes away, so a
// commit that resolved the entry before the delete cannot land on it.
type slotEntry struct {
	mu      sync.Mutex
	price   float64
	seats   map[string]string
	deleted bool
}

type ScheduleStore struct {
	mu        sync.RWMutex
	schedules map[string]map[string]map[string]*slotEntry
}

func NewScheduleStore() *ScheduleStore {
	return &ScheduleStore{schedules: make(map[string]map[string]map[string]*slotEntry)}
}

func (s *ScheduleStore) find(movieID, date, timeKey string) (*slotEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	dates, ok := s.schedules[movieID]
	if !ok {
		return nil, false
	}
	times, ok := dates[date]
	if !ok {
		return nil, false
	}
	entry, ok := times[timeKey]
	return entry, ok
}

func (s *ScheduleStore) GetSlot(ctx context.Context, movieID, date, timeKey string) (domain.Slot, error) {
	entry, ok := s.find(movieID, date, timeKey)
	if !ok {
		return domain.Slot{}, domain.ErrSlotNotFound
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	if entry.deleted {
		return domain.Slot{}, domain.ErrSlotNotFound
	}
	return snapshot(entry), nil
}

func (s *ScheduleStore) UpsertSlots(ctx context.Context, movieID string, entries []domain.SlotSpec) error {
	for _, e := range entries {
		if err := domain.ValidateSlotKey(e.Date, e.Time); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	dates, ok := s.schedules[movieID]
	if !ok {
		dates = make(map[string]map[string]*slotEntry)
		s.schedules[movieID] = dates
	}
	for _, e := range entries {
		times, ok := dates[e.Date]
		if !ok {
			times = make(map[string]*slotEntry)
			dates[e.Date] = times
		}
		// Existing slots keep their price and occupancy: re-running a
		// schedule action must never alter what buyers already paid.
		if _, exists := times[e.Time]; exists {
			continue
		}
		times[e.Time] = &slotEntry{price: e.Price, seats: make(map[string]string)}
	}
	return nil
}

func (s *ScheduleStore) ReserveSeats(ctx context.Context, movieID, date, timeKey string, seats []string, holderID string) error {
	if err := domain.ValidateSeats(seats); err != nil {
		return err
	}
	entry, ok := s.find(movieID, date, timeKey)
	if !ok {
		return domain.ErrSlotNotFound
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	if entry.deleted {
		return domain.ErrSlotNotFound
	}
	var taken []string
	for _, seat := range seats {
		if _, occupied := entry.seats[seat]; occupied {
			taken = append(taken, seat)
		}
	}
	if len(taken) > 0 {
		sort.Strings(taken)
		return &domain.SeatConflictError{Seats: taken}
	}
	for _, seat := range seats {
		entry.seats[seat] = holderID
	}
	return nil
}

func (s *ScheduleStore) ReleaseSeats(ctx context.Context, movieID, date, timeKey string, seats []string, holderID string) error {
	entry, ok := s.find(movieID, date, timeKey)
	if !ok {
		// Schedule already gone; nothing left to release.
		return nil
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	if entry.deleted {
		return nil
	}
	for _, seat := range seats {
		if entry.seats[seat] == holderID {
			delete(entry.seats, seat)
		}
	}
	return nil
}

func (s *ScheduleStore) DeleteSchedule(ctx context.Context, movieID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	// Invalidate the live entries too: a ReserveSeats that located one
	// before this delete must fail instead of writing to a detached slot.
	for _, times := range s.schedules[movieID] {
		for _, entry := range times {
			entry.mu.Lock()
			entry.deleted = true
			entry.mu.Unlock()
		}
	}
	delete(s.schedules, movieID)
	return nil
}

func (s *ScheduleStore) GetSchedule(ctx context.Context, movieID string) (domain.Schedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	dates, ok := s.schedules[movieID]
	if !ok {
		return nil, domain.ErrScheduleNotFound
	}
	sched := make(domain.Schedule, len(dates))
	for date, times := range dates {
		byTime := make(map[string]domain.Slot, len(times))
		for timeKey, entry := range times {
			entry.mu.Lock()
			byTime[timeKey] = snapshot(entry)
			entry.mu.Unlock()
		}
		sched[date] = byTime
	}
	return sched, nil
}

func (s *ScheduleStore) ListSchedules(ctx context.Context) ([]domain.MovieSchedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.MovieSchedule, 0, len(s.schedules))
	for movieID, dates := range s.schedules {
		sched := make(domain.Schedule, len(dates))
		for date, times := range dates {
			byTime := make(map[string]domain.Slot, len(times))
			for timeKey, entry := range times {
				entry.mu.Lock()
				byTime[timeKey] = snapshot(entry)
				entry.mu.Unlock()
			}
			sched[date] = byTime
		}
		out = append(out, domain.MovieSchedule{MovieID: movieID, Schedule: sched})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MovieID < out[j].MovieID })
	return out, nil
}

// snapshot copies the entry under its own lock, held by the caller.
func snapshot(entry *slotEntry) domain.Slot {
	seats := make(map[string]string, len(entry.seats))
	for k, v := range entry.seats {
		seats[k] = v
	}
	return domain.Slot{Price: entry.price, OccupiedSeats: seats}
}
