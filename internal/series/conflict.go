package series

import (
	"encoding/json"
	"fmt"
)

type SlotState string

const (
	SlotClear      SlotState = "clear"
	SlotConflicted SlotState = "conflicted"
	SlotOverridden SlotState = "overridden"
)

// ConflictState is one of Clear, Conflicted(absence) or Overridden(absence).
// The zero value is Clear. Fields are unexported so an override can only be
// reached from a conflict.
type ConflictState struct {
	state   SlotState
	absence *AbsenceRecord
}

func Clear() ConflictState { return ConflictState{state: SlotClear} }

func Conflicted(a AbsenceRecord) ConflictState {
	return ConflictState{state: SlotConflicted, absence: &a}
}

func (c ConflictState) State() SlotState {
	if c.state == "" {
		return SlotClear
	}
	return c.state
}

// Absence is the conflicting absence, nil when Clear.
func (c ConflictState) Absence() *AbsenceRecord {
	if c.absence == nil {
		return nil
	}
	a := *c.absence
	return &a
}

func (c ConflictState) HasConflict() bool { return c.State() != SlotClear }

func (c ConflictState) Overridden() bool { return c.State() == SlotOverridden }

// Committable is true for Clear and Overridden slots.
func (c ConflictState) Committable() bool { return !c.HasConflict() || c.Overridden() }

// Override moves a Conflicted slot to Overridden. Overriding an already
// Overridden slot is a no-op.
func (c ConflictState) Override() (ConflictState, error) {
	switch c.State() {
	case SlotConflicted, SlotOverridden:
		return ConflictState{state: SlotOverridden, absence: c.absence}, nil
	default:
		return c, ErrNotConflicted
	}
}

// withAbsence recomputes the state after re-evaluation. An override survives
// as long as some absence still conflicts.
func (c ConflictState) withAbsence(a *AbsenceRecord) ConflictState {
	if a == nil {
		return Clear()
	}
	if c.Overridden() {
		found := *a
		return ConflictState{state: SlotOverridden, absence: &found}
	}
	return Conflicted(*a)
}

type conflictJSON struct {
	State              SlotState      `json:"state"`
	HasConflict        bool           `json:"has_conflict"`
	Overridden         bool           `json:"overridden"`
	ConflictingAbsence *AbsenceRecord `json:"conflicting_absence"`
}

func (c ConflictState) MarshalJSON() ([]byte, error) {
	return json.Marshal(conflictJSON{
		State:              c.State(),
		HasConflict:        c.HasConflict(),
		Overridden:         c.Overridden(),
		ConflictingAbsence: c.absence,
	})
}

func (c *ConflictState) UnmarshalJSON(b []byte) error {
	var raw conflictJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	switch raw.State {
	case "", SlotClear:
		*c = Clear()
	case SlotConflicted, SlotOverridden:
		if raw.ConflictingAbsence == nil {
			return fmt.Errorf("conflict state %q without absence", raw.State)
		}
		*c = ConflictState{state: raw.State, absence: raw.ConflictingAbsence}
	default:
		return fmt.Errorf("unknown conflict state %q", raw.State)
	}
	return nil
}

// Evaluate returns slot with its conflict state recomputed against ix.
func Evaluate(slot CandidateSlot, ix *AbsenceIndex) CandidateSlot {
	slot.Conflict = slot.Conflict.withAbsence(ix.FindConflict(slot.PractitionerID, slot.StartsAt))
	return slot
}

// EvaluateAll evaluates every slot in place.
func EvaluateAll(slots []CandidateSlot, ix *AbsenceIndex) {
	for i := range slots {
		slots[i] = Evaluate(slots[i], ix)
	}
}
