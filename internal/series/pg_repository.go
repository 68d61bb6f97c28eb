package series

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

const appointmentColumns = `id, series_id, prescription_id, patient_id, practitioner_id, room_id, treatment_id,
	starts_at, duration_minutes, session_number, total_sessions, status, conflict_overridden, notes,
	created_at, updated_at`

const absenceColumns = `id, practitioner_id, start_date, end_date, is_full_day, start_time, end_time, category, notes`

// Helpers

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var seriesID, notes *string

	err := row.Scan(
		&a.ID,
		&seriesID,
		&a.PrescriptionID,
		&a.PatientID,
		&a.PractitionerID,
		&a.RoomID,
		&a.TreatmentID,
		&a.StartsAt,
		&a.DurationMinutes,
		&a.SessionNumber,
		&a.TotalSessions,
		&a.Status,
		&a.ConflictOverridden,
		&notes,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if seriesID != nil {
		a.SeriesID = *seriesID
	}
	if notes != nil {
		a.Notes = *notes
	}
	return &a, nil
}

func scanAbsence(row pgx.Row) (*AbsenceRecord, error) {
	var r AbsenceRecord
	var start, end pgtype.Time
	var notes *string

	err := row.Scan(
		&r.ID,
		&r.PractitionerID,
		&r.StartDate,
		&r.EndDate,
		&r.FullDay,
		&start,
		&end,
		&r.Category,
		&notes,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAbsenceNotFound
		}
		return nil, err
	}

	if start.Valid {
		r.StartTime = TimeOfDay(start.Microseconds / int64(time.Second/time.Microsecond))
	}
	if end.Valid {
		r.EndTime = TimeOfDay(end.Microseconds / int64(time.Second/time.Microsecond))
	}
	if notes != nil {
		r.Notes = *notes
	}
	return &r, nil
}

func pgTimeOf(t TimeOfDay, valid bool) pgtype.Time {
	return pgtype.Time{Microseconds: int64(t) * int64(time.Second/time.Microsecond), Valid: valid}
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Interface methods

func (r *PgRepository) CreateAppointment(ctx context.Context, p AppointmentPayload) (*Appointment, error) {
	id := uuid.New()

	row := r.pool.QueryRow(ctx, `
		INSERT INTO appointments (`+appointmentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, now(), now())
		RETURNING `+appointmentColumns,
		id, nullableString(p.SeriesID), p.PrescriptionID, p.PatientID, p.PractitionerID, p.RoomID, p.TreatmentID,
		p.StartsAt, p.DurationMinutes, p.SessionNumber, p.TotalSessions, p.Status, p.ConflictOverridden,
		nullableString(p.Notes))

	a, err := scanAppointment(row)
	if err != nil {
		return nil, fmt.Errorf("insert appointment: %w", err)
	}
	return a, nil
}

func (r *PgRepository) ListAppointments(ctx context.Context, f AppointmentFilter) ([]Appointment, error) {
	var (
		where string
		arg   any
	)
	switch {
	case f.SeriesID != "":
		where, arg = "series_id = $1", f.SeriesID
	case f.PrescriptionID != uuid.Nil:
		where, arg = "prescription_id = $1", f.PrescriptionID
	default:
		return nil, invalidParam("appointment filter needs a prescription or series id")
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE `+where+`
		ORDER BY starts_at, session_number
	`, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) BulkSetStatus(ctx context.Context, ids []uuid.UUID, status AppointmentStatus) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := r.pool.Exec(ctx, `
		UPDATE appointments
		SET status = $2,
		    updated_at = now()
		WHERE id = ANY($1)
	`, ids, status)
	if err != nil {
		return fmt.Errorf("bulk set status: %w", err)
	}
	return nil
}

func (r *PgRepository) ListAbsences(ctx context.Context, practitionerID uuid.UUID) ([]AbsenceRecord, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+absenceColumns+`
		FROM practitioner_absences
		WHERE practitioner_id = $1
		ORDER BY start_date, id
	`, practitionerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []AbsenceRecord
	for rows.Next() {
		a, err := scanAbsence(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) getAbsence(ctx context.Context, q pgx.Tx, id uuid.UUID) (*AbsenceRecord, error) {
	row := q.QueryRow(ctx, `
		SELECT `+absenceColumns+`
		FROM practitioner_absences
		WHERE id = $1
		FOR UPDATE
	`, id)
	return scanAbsence(row)
}

func (r *PgRepository) UpdateAbsence(ctx context.Context, id uuid.UUID, upd AbsenceUpdate) (*AbsenceRecord, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	cur, err := r.getAbsence(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	next := applyAbsenceUpdate(*cur, upd)
	if err := validateAbsence(next); err != nil {
		return nil, err
	}

	row := tx.QueryRow(ctx, `
		UPDATE practitioner_absences
		SET start_date = $2,
		    end_date = $3,
		    is_full_day = $4,
		    start_time = $5,
		    end_time = $6,
		    category = $7,
		    notes = $8,
		    updated_at = now()
		WHERE id = $1
		RETURNING `+absenceColumns,
		id, next.StartDate, next.EndDate, next.FullDay,
		pgTimeOf(next.StartTime, !next.FullDay), pgTimeOf(next.EndTime, !next.FullDay),
		next.Category, nullableString(next.Notes))

	updated, err := scanAbsence(row)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return updated, nil
}

func (r *PgRepository) DeleteAbsence(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM practitioner_absences WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete absence: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAbsenceNotFound
	}
	return nil
}

func (r *PgRepository) GetPrescription(ctx context.Context, id uuid.UUID) (*Prescription, error) {
	var p Prescription
	var goals *string

	err := r.pool.QueryRow(ctx, `
		SELECT id, patient_id, treatment_ids, session_count, cadence, goals, created_at, updated_at
		FROM prescriptions
		WHERE id = $1
	`, id).Scan(
		&p.ID,
		&p.PatientID,
		&p.TreatmentIDs,
		&p.SessionCount,
		&p.Cadence,
		&goals,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPrescriptionNotFound
		}
		return nil, err
	}

	if goals != nil {
		p.Goals = *goals
	}
	return &p, nil
}

func (r *PgRepository) GetPractitioner(ctx context.Context, id uuid.UUID) (*Practitioner, error) {
	var p Practitioner
	err := r.pool.QueryRow(ctx, `SELECT id, name FROM practitioners WHERE id = $1`, id).Scan(&p.ID, &p.Name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPractitionerNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *PgRepository) GetRoom(ctx context.Context, id uuid.UUID) (*Room, error) {
	var rm Room
	err := r.pool.QueryRow(ctx, `SELECT id, name FROM rooms WHERE id = $1`, id).Scan(&rm.ID, &rm.Name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRoomNotFound
		}
		return nil, err
	}
	return &rm, nil
}

func (r *PgRepository) GetTreatment(ctx context.Context, id uuid.UUID) (*Treatment, error) {
	var t Treatment
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, duration_minutes FROM treatments WHERE id = $1
	`, id).Scan(&t.ID, &t.Name, &t.DurationMinutes)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTreatmentNotFound
		}
		return nil, err
	}
	return &t, nil
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO event_logs (event_type, series_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, nullableString(ev.SeriesID), ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}

	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func applyAbsenceUpdate(a AbsenceRecord, upd AbsenceUpdate) AbsenceRecord {
	if upd.StartDate != nil {
		a.StartDate = *upd.StartDate
	}
	if upd.EndDate != nil {
		a.EndDate = *upd.EndDate
	}
	if upd.FullDay != nil {
		a.FullDay = *upd.FullDay
	}
	if upd.StartTime != nil {
		a.StartTime = *upd.StartTime
	}
	if upd.EndTime != nil {
		a.EndTime = *upd.EndTime
	}
	if upd.Category != nil {
		a.Category = *upd.Category
	}
	if upd.Notes != nil {
		a.Notes = *upd.Notes
	}
	return a
}

func validateAbsence(a AbsenceRecord) error {
	if dayKey(a.EndDate) < dayKey(a.StartDate) {
		return invalidParam("absence end date is before start date")
	}
	if !a.FullDay && a.EndTime <= a.StartTime {
		return invalidParam("absence end time must be after start time")
	}
	return nil
}
