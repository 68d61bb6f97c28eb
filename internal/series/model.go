package series

import (
	"time"

	"github.com/google/uuid"
)

type AppointmentStatus string

const (
	StatusPlanned   AppointmentStatus = "planned"
	StatusCompleted AppointmentStatus = "completed"
	StatusCancelled AppointmentStatus = "cancelled"
	StatusNoShow    AppointmentStatus = "no_show"
)

// Prescription is a therapy order: how many sessions of which treatments a
// patient is entitled to, and at what cadence.
type Prescription struct {
	ID           uuid.UUID
	PatientID    uuid.UUID
	TreatmentIDs []uuid.UUID // 1 to 3 entries
	SessionCount int
	Cadence      string // e.g. "weekly", "daily", "2x weekly"
	Goals        string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Practitioner struct {
	ID   uuid.UUID
	Name string
}

type Room struct {
	ID   uuid.UUID
	Name string
}

type Treatment struct {
	ID              uuid.UUID
	Name            string
	DurationMinutes int
}

type AbsenceCategory string

const (
	AbsenceVacation AbsenceCategory = "vacation"
	AbsenceSick     AbsenceCategory = "sick_leave"
	AbsenceTraining AbsenceCategory = "training"
	AbsenceOther    AbsenceCategory = "other"
)

// AbsenceRecord is a practitioner's registered unavailability. StartDate and
// EndDate are inclusive and only their calendar date is significant. For
// partial-day absences StartTime is inclusive and EndTime exclusive.
type AbsenceRecord struct {
	ID             uuid.UUID       `json:"id"`
	PractitionerID uuid.UUID       `json:"practitioner_id"`
	StartDate      time.Time       `json:"start_date"`
	EndDate        time.Time       `json:"end_date"`
	FullDay        bool            `json:"is_full_day"`
	StartTime      TimeOfDay       `json:"start_time"`
	EndTime        TimeOfDay       `json:"end_time"`
	Category       AbsenceCategory `json:"category"`
	Notes          string          `json:"notes,omitempty"`
}

// AbsenceUpdate carries the fields changed when a conflict is resolved by
// editing the absence itself. Nil fields are left untouched.
type AbsenceUpdate struct {
	StartDate *time.Time
	EndDate   *time.Time
	FullDay   *bool
	StartTime *TimeOfDay
	EndTime   *TimeOfDay
	Category  *AbsenceCategory
	Notes     *string
}

// CandidateSlot is a not yet persisted appointment inside a preview.
type CandidateSlot struct {
	SessionNumber   int           `json:"session_number"`
	TotalSessions   int           `json:"total_sessions"`
	StartsAt        time.Time     `json:"starts_at"`
	PractitionerID  uuid.UUID     `json:"practitioner_id"`
	RoomID          uuid.UUID     `json:"room_id"`
	TreatmentID     uuid.UUID     `json:"treatment_id"`
	DurationMinutes int           `json:"duration_minutes"`
	PatientID       uuid.UUID     `json:"patient_id"`
	PrescriptionID  uuid.UUID     `json:"prescription_id"`
	Conflict        ConflictState `json:"conflict"`
}

// Appointment is the durable record created from a committed slot.
type Appointment struct {
	ID                 uuid.UUID
	SeriesID           string
	PrescriptionID     uuid.UUID
	PatientID          uuid.UUID
	PractitionerID     uuid.UUID
	RoomID             uuid.UUID
	TreatmentID        uuid.UUID
	StartsAt           time.Time
	DurationMinutes    int
	SessionNumber      int
	TotalSessions      int
	Status             AppointmentStatus
	ConflictOverridden bool
	Notes              string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// AppointmentPayload is what the commit engine hands to the store for one slot.
type AppointmentPayload struct {
	SeriesID           string
	PrescriptionID     uuid.UUID
	PatientID          uuid.UUID
	PractitionerID     uuid.UUID
	RoomID             uuid.UUID
	TreatmentID        uuid.UUID
	StartsAt           time.Time
	DurationMinutes    int
	SessionNumber      int
	TotalSessions      int
	Status             AppointmentStatus
	ConflictOverridden bool
	Notes              string
}

// AppointmentFilter selects appointments by exactly one of its fields.
type AppointmentFilter struct {
	PrescriptionID uuid.UUID
	SeriesID       string
}

// SeriesDescriptor is derived from persisted appointments and never stored.
type SeriesDescriptor struct {
	SeriesID           string        `json:"series_id"`
	Appointments       []Appointment `json:"-"`
	Total              int           `json:"total"`
	Completed          int           `json:"completed"`
	Cancelled          int           `json:"cancelled"`
	Remaining          int           `json:"remaining"`
	ProgressPercentage float64       `json:"progress_percentage"`
}

type EventLog struct {
	ID        int64
	EventType string
	SeriesID  string
	Payload   []byte
	CreatedAt time.Time
}
