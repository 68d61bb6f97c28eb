package series

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

func fullDay(practitionerID uuid.UUID, from, to time.Time) AbsenceRecord {
	return AbsenceRecord{
		ID:             uuid.New(),
		PractitionerID: practitionerID,
		StartDate:      from,
		EndDate:        to,
		FullDay:        true,
		Category:       AbsenceVacation,
	}
}

func partialDay(practitionerID uuid.UUID, day time.Time, start, end TimeOfDay) AbsenceRecord {
	return AbsenceRecord{
		ID:             uuid.New(),
		PractitionerID: practitionerID,
		StartDate:      day,
		EndDate:        day,
		StartTime:      start,
		EndTime:        end,
		Category:       AbsenceTraining,
	}
}

func TestFindConflict_FullDayInclusiveRange(t *testing.T) {
	pid := uuid.New()
	ix := NewAbsenceIndex()
	ix.Load(pid, []AbsenceRecord{fullDay(pid, at(2024, 1, 8, 0, 0), at(2024, 1, 10, 0, 0))})

	tests := []struct {
		at   time.Time
		want bool
	}{
		{at(2024, 1, 7, 23, 59), false},
		{at(2024, 1, 8, 0, 0), true},
		{at(2024, 1, 9, 12, 0), true},
		{at(2024, 1, 10, 23, 30), true},
		{at(2024, 1, 11, 0, 0), false},
	}
	for _, tt := range tests {
		if got := ix.FindConflict(pid, tt.at) != nil; got != tt.want {
			t.Errorf("FindConflict at %s = %v, want %v", tt.at, got, tt.want)
		}
	}
}

func TestFindConflict_PartialDayEndExclusive(t *testing.T) {
	pid := uuid.New()
	day := at(2024, 1, 8, 0, 0)
	ix := NewAbsenceIndex()
	ix.Load(pid, []AbsenceRecord{partialDay(pid, day, NewTimeOfDay(9, 0, 0), NewTimeOfDay(11, 0, 0))})

	tests := []struct {
		at   time.Time
		want bool
	}{
		{at(2024, 1, 8, 8, 59), false},
		{at(2024, 1, 8, 9, 0), true},
		{at(2024, 1, 8, 10, 59), true},
		{at(2024, 1, 8, 11, 0), false},
		{at(2024, 1, 9, 9, 30), false},
	}
	for _, tt := range tests {
		if got := ix.FindConflict(pid, tt.at) != nil; got != tt.want {
			t.Errorf("FindConflict at %s = %v, want %v", tt.at, got, tt.want)
		}
	}
}

func TestFindConflict_OtherPractitionerIgnored(t *testing.T) {
	pid, other := uuid.New(), uuid.New()
	ix := NewAbsenceIndex()
	ix.Load(other, []AbsenceRecord{fullDay(other, at(2024, 1, 8, 0, 0), at(2024, 1, 8, 0, 0))})
	ix.Load(pid, []AbsenceRecord{fullDay(other, at(2024, 1, 8, 0, 0), at(2024, 1, 8, 0, 0))})

	if got := ix.FindConflict(pid, at(2024, 1, 8, 9, 0)); got != nil {
		t.Errorf("expected no conflict, got absence %s", got.ID)
	}
	if !ix.Has(pid) {
		t.Error("practitioner with no own absences should still count as loaded")
	}
	if ix.Has(uuid.New()) {
		t.Error("unknown practitioner should not be loaded")
	}
}

func TestFindConflict_ReturnsMatchingRecord(t *testing.T) {
	pid := uuid.New()
	miss := fullDay(pid, at(2024, 2, 1, 0, 0), at(2024, 2, 2, 0, 0))
	hit := partialDay(pid, at(2024, 1, 8, 0, 0), NewTimeOfDay(8, 0, 0), NewTimeOfDay(12, 0, 0))
	ix := NewAbsenceIndex()
	ix.Load(pid, []AbsenceRecord{miss, hit})

	got := ix.FindConflict(pid, at(2024, 1, 8, 9, 0))
	if got == nil || got.ID != hit.ID {
		t.Fatalf("got %v, want absence %s", got, hit.ID)
	}
	if found, ok := ix.Find(hit.ID); !ok || found.ID != hit.ID {
		t.Errorf("Find(%s) = %v, %v", hit.ID, found.ID, ok)
	}
}

func TestAbsenceIndex_LoadReplacesSnapshot(t *testing.T) {
	pid := uuid.New()
	ix := NewAbsenceIndex()
	ix.Load(pid, []AbsenceRecord{fullDay(pid, at(2024, 1, 8, 0, 0), at(2024, 1, 8, 0, 0))})
	ix.Load(pid, nil)

	if ix.FindConflict(pid, at(2024, 1, 8, 9, 0)) != nil {
		t.Error("reloading with no records should clear the conflict")
	}
	if len(ix.Practitioners()) != 1 {
		t.Errorf("practitioner listed %d times", len(ix.Practitioners()))
	}
}

func TestAbsenceIndex_SurvivesJSON(t *testing.T) {
	pid := uuid.New()
	rec := partialDay(pid, at(2024, 1, 8, 0, 0), NewTimeOfDay(13, 30, 0), NewTimeOfDay(15, 0, 0))
	ix := NewAbsenceIndex()
	ix.Load(pid, []AbsenceRecord{rec})
	ix.Load(uuid.New(), nil)

	data, err := json.Marshal(ix)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	restored := NewAbsenceIndex()
	if err := json.Unmarshal(data, restored); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if len(restored.Practitioners()) != 2 {
		t.Errorf("restored %d practitioners, want 2", len(restored.Practitioners()))
	}
	got := restored.FindConflict(pid, at(2024, 1, 8, 14, 0))
	if got == nil || got.ID != rec.ID || got.StartTime != rec.StartTime || got.EndTime != rec.EndTime {
		t.Errorf("restored absence = %+v, want %+v", got, rec)
	}
}

func TestTimeOfDay(t *testing.T) {
	tod, err := ParseTimeOfDay("09:05")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tod != NewTimeOfDay(9, 5, 0) || tod.String() != "09:05" {
		t.Errorf("got %d (%s)", tod, tod)
	}

	tod, err = ParseTimeOfDay("17:45:30")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tod.String() != "17:45:30" {
		t.Errorf("got %s", tod)
	}

	if _, err := ParseTimeOfDay("quarter past nine"); err == nil {
		t.Error("expected parse error")
	}
}

func TestApplyAbsenceUpdate(t *testing.T) {
	pid := uuid.New()
	cur := fullDay(pid, at(2024, 1, 8, 0, 0), at(2024, 1, 10, 0, 0))

	full := false
	start, end := NewTimeOfDay(9, 0, 0), NewTimeOfDay(12, 0, 0)
	next := applyAbsenceUpdate(cur, AbsenceUpdate{FullDay: &full, StartTime: &start, EndTime: &end})
	if err := validateAbsence(next); err != nil {
		t.Fatalf("validateAbsence: %v", err)
	}
	if next.FullDay || next.StartTime != start || !next.StartDate.Equal(cur.StartDate) {
		t.Errorf("updated absence = %+v", next)
	}
	if !next.Covers(at(2024, 1, 9, 11, 59)) || next.Covers(at(2024, 1, 9, 12, 0)) {
		t.Error("partial-day window not applied")
	}

	early := at(2024, 1, 1, 0, 0)
	if err := validateAbsence(applyAbsenceUpdate(cur, AbsenceUpdate{EndDate: &early})); !errors.Is(err, ErrInvalidParameter) {
		t.Errorf("end before start: got %v", err)
	}
	if err := validateAbsence(applyAbsenceUpdate(next, AbsenceUpdate{EndTime: &start})); !errors.Is(err, ErrInvalidParameter) {
		t.Errorf("empty time window: got %v", err)
	}
}
