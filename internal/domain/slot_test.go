package domain

import (
	"errors"
	"reflect"
	"testing"
)

func TestValidateSeats(t *testing.T) {
	if err := ValidateSeats(nil); !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("empty list: got %v", err)
	}
	if err := ValidateSeats([]string{"A1", "A1"}); !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("duplicate: got %v", err)
	}
	// Labels become field names in the durable store, so path
	// characters are malformed input, not data.
	if err := ValidateSeats([]string{"A.1"}); !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("dotted label: got %v", err)
	}
	if err := ValidateSeats([]string{"$set"}); !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("dollar label: got %v", err)
	}
	if err := ValidateSeats([]string{"A1\x00"}); !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("NUL label: got %v", err)
	}
	if err := ValidateSeats([]string{"A1", ""}); !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("blank label: got %v", err)
	}
	if err := ValidateSeats([]string{"A1", "A2"}); err != nil {
		t.Errorf("valid list: got %v", err)
	}
}

func TestValidateSlotKey(t *testing.T) {
	if err := ValidateSlotKey("2024-01-01", "18:00"); err != nil {
		t.Errorf("valid key: got %v", err)
	}
	for _, bad := range [][2]string{
		{"2024-1-1", "18:00"},
		{"2024-01-01", "6pm"},
		{"", "18:00"},
		{"2024-01-01", ""},
	} {
		if err := ValidateSlotKey(bad[0], bad[1]); !errors.Is(err, ErrInvalidRequest) {
			t.Errorf("ValidateSlotKey(%q, %q): got %v", bad[0], bad[1], err)
		}
	}
}

func TestSlotConflicts(t *testing.T) {
	slot := Slot{Price: 10, OccupiedSeats: map[string]string{"A2": "b1", "B1": "b2"}}
	got := slot.Conflicts([]string{"A1", "B1", "A2"})
	if !reflect.DeepEqual(got, []string{"A2", "B1"}) {
		t.Errorf("conflicts = %v", got)
	}
	if got := slot.Conflicts([]string{"C1"}); got != nil {
		t.Errorf("expected no conflicts, got %v", got)
	}
}

func TestSlotCloneIsDeep(t *testing.T) {
	slot := Slot{Price: 10, OccupiedSeats: map[string]string{"A1": "b1"}}
	clone := slot.Clone()
	clone.OccupiedSeats["A2"] = "b2"
	if _, leaked := slot.OccupiedSeats["A2"]; leaked {
		t.Error("clone shares the seat map")
	}
}

func TestStartTime(t *testing.T) {
	got, err := StartTime("2024-01-01", "18:00")
	if err != nil {
		t.Fatal(err)
	}
	if got.Hour() != 18 || got.Day() != 1 {
		t.Errorf("start = %v", got)
	}
	if _, err := StartTime("2024-13-99", "18:00"); !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("bad date: got %v", err)
	}
}
