package domain

import (
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
)

// Slot is one bookable date/time instance of a movie. OccupiedSeats maps
// seat label to holder id; within a slot's lifetime seat additions are
// monotonic, removal happens only through an explicit release.
type Slot struct {
	Price         float64           `bson:"price" json:"price"`
	OccupiedSeats map[string]string `bson:"occupiedSeats" json:"occupiedSeats"`
}

// Clone returns a deep copy so callers can hand slots out of a store
// without exposing its internal maps.
func (s Slot) Clone() Slot {
	seats := make(map[string]string, len(s.OccupiedSeats))
	for k, v := range s.OccupiedSeats {
		seats[k] = v
	}
	return Slot{Price: s.Price, OccupiedSeats: seats}
}

// Conflicts returns the requested seats already present in OccupiedSeats,
// sorted for stable error payloads.
func (s Slot) Conflicts(seats []string) []string {
	var taken []string
	for _, seat := range seats {
		if _, ok := s.OccupiedSeats[seat]; ok {
			taken = append(taken, seat)
		}
	}
	sort.Strings(taken)
	return taken
}

// SlotSpec is one (date, time, price) triple of a scheduling request.
type SlotSpec struct {
	Date  string  `json:"date"`
	Time  string  `json:"time"`
	Price float64 `json:"price"`
}

// Schedule is the full set of slots for one movie, keyed date then time.
type Schedule map[string]map[string]Slot

// MovieSchedule pairs a movie id with its schedule on the read path.
type MovieSchedule struct {
	MovieID  string
	Schedule Schedule
}

var (
	dateKeyRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	timeKeyRe = regexp.MustCompile(`^\d{2}:\d{2}$`)
)

// ValidateSlotKey checks the shape of the date (YYYY-MM-DD) and time
// (HH:MM) keys. Keys double as document field names in the durable
// store, so malformed ones are rejected before any write.
func ValidateSlotKey(date, timeKey string) error {
	if !dateKeyRe.MatchString(date) {
		return errors.Wrapf(ErrInvalidRequest, "bad date key %q", date)
	}
	if !timeKeyRe.MatchString(timeKey) {
		return errors.Wrapf(ErrInvalidRequest, "bad time key %q", timeKey)
	}
	return nil
}

// ValidateSeats rejects empty seat lists and duplicate labels within one
// request. Labels double as document field names in the durable store,
// so characters Mongo gives path semantics (dots, a leading dollar sign,
// NUL) are rejected the same way malformed slot keys are.
func ValidateSeats(seats []string) error {
	if len(seats) == 0 {
		return errors.Wrap(ErrInvalidRequest, "empty seat list")
	}
	seen := make(map[string]struct{}, len(seats))
	for _, seat := range seats {
		if seat == "" {
			return errors.Wrap(ErrInvalidRequest, "empty seat label")
		}
		if strings.ContainsAny(seat, ".\x00") || strings.HasPrefix(seat, "$") {
			return errors.Wrapf(ErrInvalidRequest, "bad seat label %q", seat)
		}
		if _, dup := seen[seat]; dup {
			return errors.Wrapf(ErrInvalidRequest, "duplicate seat %q", seat)
		}
		seen[seat] = struct{}{}
	}
	return nil
}

// StartTime converts a (date, time) key pair into a UTC instant.
func StartTime(date, timeKey string) (time.Time, error) {
	t, err := time.Parse("2006-01-02T15:04", date+"T"+timeKey)
	if err != nil {
		return time.Time{}, errors.Wrapf(ErrInvalidRequest, "bad slot key %s %s", date, timeKey)
	}
	return t.UTC(), nil
}
