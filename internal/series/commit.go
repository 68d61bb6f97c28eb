package series

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// CommitResult is returned even when the commit fails partway. Pending holds
// the slots that were not persisted, failing slot first.
type CommitResult struct {
	SeriesID          string
	Created           []Appointment
	FirstFailureIndex *int
	Pending           []CandidateSlot
}

type CommitEngine struct {
	store AppointmentStore
	now   Clock
}

func NewCommitEngine(store AppointmentStore, now Clock) *CommitEngine {
	if now == nil {
		now = time.Now
	}
	return &CommitEngine{store: store, now: now}
}

// NewSeriesID returns an opaque identifier unique per generation batch.
func NewSeriesID(prescriptionID uuid.UUID, at time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("%d-%s-%s", at.UnixMilli(), prescriptionID, suffix)
}

// Commit persists slots one at a time in ascending session order. An empty
// seriesID starts a new series. Any unresolved conflict rejects the whole
// batch before the store is touched. On the first failed creation the engine
// stops; appointments already created stay persisted and are returned along
// with a *PersistenceError.
func (e *CommitEngine) Commit(ctx context.Context, seriesID string, slots []CandidateSlot) (*CommitResult, error) {
	if len(slots) == 0 {
		return nil, invalidParam("no slots to commit")
	}
	if n := countUnresolved(slots); n > 0 {
		return &CommitResult{SeriesID: seriesID}, &UnresolvedConflictsError{Count: n}
	}

	ordered := make([]CandidateSlot, len(slots))
	copy(ordered, slots)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].SessionNumber < ordered[j].SessionNumber
	})

	if seriesID == "" {
		seriesID = NewSeriesID(ordered[0].PrescriptionID, e.now())
	}

	result := &CommitResult{SeriesID: seriesID}
	for i, slot := range ordered {
		appt, err := e.store.CreateAppointment(ctx, payloadFor(seriesID, slot))
		if err != nil {
			idx := i
			result.FirstFailureIndex = &idx
			result.Pending = ordered[i:]
			return result, &PersistenceError{Index: i, SessionNumber: slot.SessionNumber, Err: err}
		}
		result.Created = append(result.Created, *appt)
	}
	return result, nil
}

func payloadFor(seriesID string, s CandidateSlot) AppointmentPayload {
	p := AppointmentPayload{
		SeriesID:        seriesID,
		PrescriptionID:  s.PrescriptionID,
		PatientID:       s.PatientID,
		PractitionerID:  s.PractitionerID,
		RoomID:          s.RoomID,
		TreatmentID:     s.TreatmentID,
		StartsAt:        s.StartsAt,
		DurationMinutes: s.DurationMinutes,
		SessionNumber:   s.SessionNumber,
		TotalSessions:   s.TotalSessions,
		Status:          StatusPlanned,
	}
	if s.Conflict.Overridden() {
		p.ConflictOverridden = true
		if a := s.Conflict.Absence(); a != nil {
			p.Notes = fmt.Sprintf("scheduled despite %s absence %s", a.Category, a.ID)
		}
	}
	return p
}
