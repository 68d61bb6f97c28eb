package series

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"
)

func at(y int, m time.Month, d, h, min int) time.Time {
	return time.Date(y, m, d, h, min, 0, 0, time.UTC)
}

func testTemplate() SlotTemplate {
	return SlotTemplate{
		PatientID:       uuid.New(),
		PrescriptionID:  uuid.New(),
		PractitionerID:  uuid.New(),
		RoomID:          uuid.New(),
		TreatmentID:     uuid.New(),
		DurationMinutes: 30,
	}
}

func TestGenerate_WeeklyRounded(t *testing.T) {
	slots, err := Generate(testTemplate(), at(2024, 1, 1, 9, 10), 7, 3, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []time.Time{at(2024, 1, 1, 9, 0), at(2024, 1, 8, 9, 0), at(2024, 1, 15, 9, 0)}
	if len(slots) != len(want) {
		t.Fatalf("got %d slots, want %d", len(slots), len(want))
	}
	for i, s := range slots {
		if !s.StartsAt.Equal(want[i]) {
			t.Errorf("slot %d at %s, want %s", i, s.StartsAt, want[i])
		}
	}
}

func TestGenerate_SessionNumbering(t *testing.T) {
	for _, count := range []int{1, 2, 7, 20} {
		slots, err := Generate(testTemplate(), at(2024, 3, 4, 14, 45), 1, count, false)
		if err != nil {
			t.Fatalf("count %d: unexpected error: %v", count, err)
		}
		for i, s := range slots {
			if s.SessionNumber != i+1 {
				t.Errorf("count %d: slot %d has session %d", count, i, s.SessionNumber)
			}
			if s.TotalSessions != count {
				t.Errorf("count %d: slot %d has total %d", count, i, s.TotalSessions)
			}
			if s.Conflict.HasConflict() {
				t.Errorf("fresh slot %d should be clear", i)
			}
		}
	}
}

func TestGenerate_Deterministic(t *testing.T) {
	tmpl := testTemplate()
	anchor := at(2024, 2, 27, 16, 40)

	a, err := Generate(tmpl, anchor, 7, 6, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := Generate(tmpl, anchor, 7, 6, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(a, b) {
		t.Error("identical inputs produced different slots")
	}
}

func TestGenerate_KeepsWallClockWithoutRounding(t *testing.T) {
	slots, err := Generate(testTemplate(), at(2024, 1, 30, 8, 17), 1, 3, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []time.Time{at(2024, 1, 30, 8, 17), at(2024, 1, 31, 8, 17), at(2024, 2, 1, 8, 17)}
	for i, s := range slots {
		if !s.StartsAt.Equal(want[i]) {
			t.Errorf("slot %d at %s, want %s", i, s.StartsAt, want[i])
		}
	}
}

func TestGenerate_InvalidParameters(t *testing.T) {
	tests := []struct {
		name    string
		anchor  time.Time
		cadence int
		count   int
	}{
		{"zero count", at(2024, 1, 1, 9, 0), 7, 0},
		{"negative count", at(2024, 1, 1, 9, 0), 7, -2},
		{"zero cadence", at(2024, 1, 1, 9, 0), 0, 3},
		{"missing anchor", time.Time{}, 7, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Generate(testTemplate(), tt.anchor, tt.cadence, tt.count, false)
			if !errors.Is(err, ErrInvalidParameter) {
				t.Errorf("got %v, want ErrInvalidParameter", err)
			}
		})
	}
}

func TestRoundToHalfHour(t *testing.T) {
	tests := []struct {
		in   time.Time
		want time.Time
	}{
		{time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC), at(2024, 1, 1, 9, 0)},
		{time.Date(2024, 1, 1, 9, 29, 59, 999, time.UTC), at(2024, 1, 1, 9, 0)},
		{time.Date(2024, 1, 1, 9, 30, 0, 0, time.UTC), at(2024, 1, 1, 9, 30)},
		{time.Date(2024, 1, 1, 23, 59, 10, 0, time.UTC), at(2024, 1, 1, 23, 30)},
	}
	for _, tt := range tests {
		got := RoundToHalfHour(tt.in)
		if !got.Equal(tt.want) {
			t.Errorf("RoundToHalfHour(%s) = %s, want %s", tt.in, got, tt.want)
		}
		if again := RoundToHalfHour(got); !again.Equal(got) {
			t.Errorf("rounding %s twice gave %s", tt.in, again)
		}
	}
}

func TestCadenceDays(t *testing.T) {
	tests := map[string]int{"weekly": 7, " Weekly ": 7, "daily": 1, "1x daily": 1}
	for in, want := range tests {
		got, err := CadenceDays(in)
		if err != nil || got != want {
			t.Errorf("CadenceDays(%q) = %d, %v; want %d", in, got, err, want)
		}
	}

	if _, err := CadenceDays("2x monthly"); !errors.Is(err, ErrInvalidParameter) {
		t.Errorf("unsupported cadence: got %v, want ErrInvalidParameter", err)
	}
}

func TestSchedule_CrossesMonthAndYear(t *testing.T) {
	times, err := Schedule(at(2024, 12, 25, 10, 0), 7, 3, false)
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	want := []time.Time{at(2024, 12, 25, 10, 0), at(2025, 1, 1, 10, 0), at(2025, 1, 8, 10, 0)}
	for i := range want {
		if !times[i].Equal(want[i]) {
			t.Errorf("time %d = %s, want %s", i, times[i], want[i])
		}
	}
}
