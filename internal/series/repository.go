package series

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// AppointmentStore persists appointments. Filters match SeriesID exactly.
type AppointmentStore interface {
	CreateAppointment(ctx context.Context, p AppointmentPayload) (*Appointment, error)
	ListAppointments(ctx context.Context, f AppointmentFilter) ([]Appointment, error)
	BulkSetStatus(ctx context.Context, ids []uuid.UUID, status AppointmentStatus) error
}

// AbsenceStore is read by the absence index; update and delete are only used
// when a user resolves a conflict by editing the absence.
type AbsenceStore interface {
	ListAbsences(ctx context.Context, practitionerID uuid.UUID) ([]AbsenceRecord, error)
	UpdateAbsence(ctx context.Context, id uuid.UUID, upd AbsenceUpdate) (*AbsenceRecord, error)
	DeleteAbsence(ctx context.Context, id uuid.UUID) error
}

type PrescriptionStore interface {
	GetPrescription(ctx context.Context, id uuid.UUID) (*Prescription, error)
}

// Directory resolves the read-only reference data used to fill slot fields.
type Directory interface {
	GetPractitioner(ctx context.Context, id uuid.UUID) (*Practitioner, error)
	GetRoom(ctx context.Context, id uuid.UUID) (*Room, error)
	GetTreatment(ctx context.Context, id uuid.UUID) (*Treatment, error)
}

// Repository contains all DB interactions needed by the service.
type Repository interface {
	AppointmentStore
	AbsenceStore
	PrescriptionStore
	Directory

	InsertEvent(ctx context.Context, ev EventLog) error
}

// PreviewStore keeps preview sessions between requests.
type PreviewStore interface {
	SavePreview(ctx context.Context, p *Preview) error
	LoadPreview(ctx context.Context, id uuid.UUID) (*Preview, error)
	DeletePreview(ctx context.Context, id uuid.UUID) error
}

// Locker serializes commits and cancellations per series.
type Locker interface {
	WithSeriesLock(ctx context.Context, key string, fn func(ctx context.Context) error) error
}

// Clock is swapped in tests.
type Clock func() time.Time
