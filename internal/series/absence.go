package series

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TimeOfDay is a local wall-clock time as seconds after midnight.
type TimeOfDay int

func NewTimeOfDay(hour, minute, second int) TimeOfDay {
	return TimeOfDay(hour*3600 + minute*60 + second)
}

// ClockOf extracts the wall-clock time of t.
func ClockOf(t time.Time) TimeOfDay {
	h, m, s := t.Clock()
	return NewTimeOfDay(h, m, s)
}

// ParseTimeOfDay accepts "15:04" or "15:04:05".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	for _, layout := range []string{"15:04", "15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return ClockOf(t), nil
		}
	}
	return 0, invalidParam("time of day %q must be HH:MM or HH:MM:SS", s)
}

func (t TimeOfDay) String() string {
	h, m, s := int(t)/3600, int(t)%3600/60, int(t)%60
	if s != 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", h, m)
}

func (t TimeOfDay) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *TimeOfDay) UnmarshalText(b []byte) error {
	v, err := ParseTimeOfDay(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

func dayKey(t time.Time) int {
	y, m, d := t.Date()
	return y*10000 + int(m)*100 + d
}

// Covers reports whether the absence blocks the given wall-clock moment.
func (a AbsenceRecord) Covers(at time.Time) bool {
	day := dayKey(at)
	if day < dayKey(a.StartDate) || day > dayKey(a.EndDate) {
		return false
	}
	if a.FullDay {
		return true
	}
	clock := ClockOf(at)
	return a.StartTime <= clock && clock < a.EndTime
}

// AbsenceIndex is a point-in-time snapshot of absences for the practitioners
// a preview has touched.
type AbsenceIndex struct {
	order          []uuid.UUID
	byPractitioner map[uuid.UUID][]AbsenceRecord
}

func NewAbsenceIndex() *AbsenceIndex {
	return &AbsenceIndex{byPractitioner: make(map[uuid.UUID][]AbsenceRecord)}
}

// Load replaces the snapshot for one practitioner. Records belonging to other
// practitioners are ignored.
func (ix *AbsenceIndex) Load(practitionerID uuid.UUID, records []AbsenceRecord) {
	if _, ok := ix.byPractitioner[practitionerID]; !ok {
		ix.order = append(ix.order, practitionerID)
	}
	own := make([]AbsenceRecord, 0, len(records))
	for _, r := range records {
		if r.PractitionerID == practitionerID {
			own = append(own, r)
		}
	}
	ix.byPractitioner[practitionerID] = own
}

// Has reports whether the practitioner's absences have been loaded, even if
// there were none.
func (ix *AbsenceIndex) Has(practitionerID uuid.UUID) bool {
	_, ok := ix.byPractitioner[practitionerID]
	return ok
}

func (ix *AbsenceIndex) Practitioners() []uuid.UUID {
	out := make([]uuid.UUID, len(ix.order))
	copy(out, ix.order)
	return out
}

// Find returns the absence with the given id, if present in the snapshot.
func (ix *AbsenceIndex) Find(id uuid.UUID) (AbsenceRecord, bool) {
	for _, pid := range ix.order {
		for _, r := range ix.byPractitioner[pid] {
			if r.ID == id {
				return r, true
			}
		}
	}
	return AbsenceRecord{}, false
}

// FindConflict returns the first absence of the practitioner covering at, in
// load order, or nil.
func (ix *AbsenceIndex) FindConflict(practitionerID uuid.UUID, at time.Time) *AbsenceRecord {
	if ix == nil {
		return nil
	}
	for _, r := range ix.byPractitioner[practitionerID] {
		if r.Covers(at) {
			found := r
			return &found
		}
	}
	return nil
}

type indexSnapshot struct {
	PractitionerID uuid.UUID       `json:"practitioner_id"`
	Absences       []AbsenceRecord `json:"absences"`
}

func (ix *AbsenceIndex) MarshalJSON() ([]byte, error) {
	snap := make([]indexSnapshot, 0, len(ix.order))
	for _, pid := range ix.order {
		snap = append(snap, indexSnapshot{PractitionerID: pid, Absences: ix.byPractitioner[pid]})
	}
	return json.Marshal(snap)
}

func (ix *AbsenceIndex) UnmarshalJSON(b []byte) error {
	var snap []indexSnapshot
	if err := json.Unmarshal(b, &snap); err != nil {
		return err
	}
	*ix = *NewAbsenceIndex()
	for _, s := range snap {
		ix.Load(s.PractitionerID, s.Absences)
	}
	return nil
}
