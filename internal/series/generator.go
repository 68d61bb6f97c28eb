package series

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// SlotTemplate holds the business fields shared by every slot of a batch.
type SlotTemplate struct {
	PatientID       uuid.UUID
	PrescriptionID  uuid.UUID
	PractitionerID  uuid.UUID
	RoomID          uuid.UUID
	TreatmentID     uuid.UUID
	DurationMinutes int
}

// CadenceDays maps a prescription cadence descriptor onto a fixed day step.
// Only constant-interval cadences can be generated.
func CadenceDays(cadence string) (int, error) {
	switch strings.ToLower(strings.TrimSpace(cadence)) {
	case "daily", "1x daily", "once daily":
		return 1, nil
	case "weekly", "1x weekly", "once weekly":
		return 7, nil
	}
	return 0, invalidParam("unsupported cadence %q", cadence)
}

// RoundToHalfHour floors the minute to :00 or :30 and zeroes seconds.
func RoundToHalfHour(t time.Time) time.Time {
	minute := 0
	if t.Minute() >= 30 {
		minute = 30
	}
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), minute, 0, 0, t.Location())
}

// Schedule returns count date/times stepping cadenceDays calendar days from
// anchor while keeping its wall-clock time.
func Schedule(anchor time.Time, cadenceDays, count int, roundToHalfHour bool) ([]time.Time, error) {
	if count < 1 {
		return nil, invalidParam("count must be >= 1, got %d", count)
	}
	if cadenceDays < 1 {
		return nil, invalidParam("cadence days must be >= 1, got %d", cadenceDays)
	}
	if anchor.IsZero() {
		return nil, invalidParam("anchor is required")
	}

	times := make([]time.Time, count)
	for i := range times {
		t := anchor.AddDate(0, 0, i*cadenceDays)
		if roundToHalfHour {
			t = RoundToHalfHour(t)
		}
		times[i] = t
	}
	return times, nil
}

// Generate builds a fresh batch numbered 1..count. Conflict state is Clear;
// evaluation against absences is a separate step.
func Generate(tmpl SlotTemplate, anchor time.Time, cadenceDays, count int, roundToHalfHour bool) ([]CandidateSlot, error) {
	return generateNumbered(tmpl, anchor, cadenceDays, count, roundToHalfHour, 1, count)
}

func generateNumbered(tmpl SlotTemplate, anchor time.Time, cadenceDays, count int, roundToHalfHour bool, firstSession, totalSessions int) ([]CandidateSlot, error) {
	times, err := Schedule(anchor, cadenceDays, count, roundToHalfHour)
	if err != nil {
		return nil, err
	}

	slots := make([]CandidateSlot, len(times))
	for i, t := range times {
		slots[i] = CandidateSlot{
			SessionNumber:   firstSession + i,
			TotalSessions:   totalSessions,
			StartsAt:        t,
			PractitionerID:  tmpl.PractitionerID,
			RoomID:          tmpl.RoomID,
			TreatmentID:     tmpl.TreatmentID,
			DurationMinutes: tmpl.DurationMinutes,
			PatientID:       tmpl.PatientID,
			PrescriptionID:  tmpl.PrescriptionID,
		}
	}
	return slots, nil
}
