package series

import (
	"time"

	"github.com/google/uuid"
)

// Preview is the mutable candidate list for one series before commit. It has
// no persisted identity in the appointment store; discarding it is free.
type Preview struct {
	ID             uuid.UUID       `json:"id"`
	PrescriptionID uuid.UUID       `json:"prescription_id"`
	SeriesID       string          `json:"series_id,omitempty"` // set when extending or after a partial commit
	Slots          []CandidateSlot `json:"slots"`
	Absences       *AbsenceIndex   `json:"absences"`
	CreatedAt      time.Time       `json:"created_at"`
}

// NewPreview evaluates slots against ix and takes ownership of both.
func NewPreview(id, prescriptionID uuid.UUID, slots []CandidateSlot, ix *AbsenceIndex) *Preview {
	if ix == nil {
		ix = NewAbsenceIndex()
	}
	EvaluateAll(slots, ix)
	return &Preview{
		ID:             id,
		PrescriptionID: prescriptionID,
		Slots:          slots,
		Absences:       ix,
		CreatedAt:      time.Now(),
	}
}

// SlotEdit changes the set fields of one slot. Nil fields are left as is.
type SlotEdit struct {
	StartsAt        *time.Time
	PractitionerID  *uuid.UUID
	RoomID          *uuid.UUID
	TreatmentID     *uuid.UUID
	DurationMinutes *int
}

func (e SlotEdit) needsEvaluation() bool {
	return e.StartsAt != nil || e.PractitionerID != nil
}

func (p *Preview) checkIndex(i int) error {
	if i < 0 || i >= len(p.Slots) {
		return ErrSlotIndex
	}
	return nil
}

func (p *Preview) Slot(i int) (CandidateSlot, error) {
	if err := p.checkIndex(i); err != nil {
		return CandidateSlot{}, err
	}
	return p.Slots[i], nil
}

// EditSlot applies the edit, then re-evaluates conflicts when the date/time
// or practitioner changed. The caller must have loaded the new practitioner's
// absences into p.Absences beforehand.
func (p *Preview) EditSlot(i int, edit SlotEdit) (CandidateSlot, error) {
	if err := p.checkIndex(i); err != nil {
		return CandidateSlot{}, err
	}
	if edit.DurationMinutes != nil && *edit.DurationMinutes < 1 {
		return CandidateSlot{}, invalidParam("duration must be >= 1 minute")
	}
	if edit.StartsAt != nil && edit.StartsAt.IsZero() {
		return CandidateSlot{}, invalidParam("starts_at must be set")
	}

	s := p.Slots[i]
	if edit.StartsAt != nil {
		s.StartsAt = *edit.StartsAt
	}
	if edit.PractitionerID != nil {
		s.PractitionerID = *edit.PractitionerID
	}
	if edit.RoomID != nil {
		s.RoomID = *edit.RoomID
	}
	if edit.TreatmentID != nil {
		s.TreatmentID = *edit.TreatmentID
	}
	if edit.DurationMinutes != nil {
		s.DurationMinutes = *edit.DurationMinutes
	}
	if edit.needsEvaluation() {
		s = Evaluate(s, p.Absences)
	}

	p.Slots[i] = s
	return s, nil
}

// IgnoreConflict overrides the conflict on slot i. Clear slots are rejected
// with ErrNotConflicted.
func (p *Preview) IgnoreConflict(i int) error {
	if err := p.checkIndex(i); err != nil {
		return err
	}
	next, err := p.Slots[i].Conflict.Override()
	if err != nil {
		return err
	}
	p.Slots[i].Conflict = next
	return nil
}

// DeleteSlot drops slot i. Remaining slots keep their session numbers.
func (p *Preview) DeleteSlot(i int) error {
	if err := p.checkIndex(i); err != nil {
		return err
	}
	p.Slots = append(p.Slots[:i:i], p.Slots[i+1:]...)
	return nil
}

// Reevaluate recomputes every slot, typically after the absence snapshot was
// refreshed.
func (p *Preview) Reevaluate() {
	EvaluateAll(p.Slots, p.Absences)
}

// UnresolvedCount is the number of slots that would block a commit.
func (p *Preview) UnresolvedCount() int {
	return countUnresolved(p.Slots)
}

func countUnresolved(slots []CandidateSlot) int {
	n := 0
	for _, s := range slots {
		if !s.Conflict.Committable() {
			n++
		}
	}
	return n
}
