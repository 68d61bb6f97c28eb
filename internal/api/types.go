package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/therapy-series-scheduling/internal/series"
)

// Times on the wire are local wall-clock values without an offset.
const (
	wallClockLayout = "2006-01-02T15:04:05"
	dateLayout      = "2006-01-02"
)

var errBadTime = errors.New("time must be YYYY-MM-DDTHH:MM[:SS]")

func parseWallClock(s string) (time.Time, error) {
	for _, layout := range []string{wallClockLayout, "2006-01-02T15:04", time.RFC3339} {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errBadTime
}

func formatWallClock(t time.Time) string {
	return t.Format(wallClockLayout)
}

type CreatePreviewRequest struct {
	PrescriptionID  string `json:"prescription_id"`
	Anchor          string `json:"anchor"`
	CadenceDays     int    `json:"cadence_days,omitempty"`
	Count           int    `json:"count,omitempty"`
	RoundToHalfHour *bool  `json:"round_to_half_hour,omitempty"`
	PractitionerID  string `json:"practitioner_id"`
	RoomID          string `json:"room_id"`
	TreatmentID     string `json:"treatment_id,omitempty"`
	DurationMinutes int    `json:"duration_minutes,omitempty"`
}

type EditSlotRequest struct {
	StartsAt        *string `json:"starts_at,omitempty"`
	PractitionerID  *string `json:"practitioner_id,omitempty"`
	RoomID          *string `json:"room_id,omitempty"`
	TreatmentID     *string `json:"treatment_id,omitempty"`
	DurationMinutes *int    `json:"duration_minutes,omitempty"`
}

type UpdateAbsenceRequest struct {
	StartDate *string `json:"start_date,omitempty"`
	EndDate   *string `json:"end_date,omitempty"`
	FullDay   *bool   `json:"is_full_day,omitempty"`
	StartTime *string `json:"start_time,omitempty"`
	EndTime   *string `json:"end_time,omitempty"`
	Category  *string `json:"category,omitempty"`
	Notes     *string `json:"notes,omitempty"`
}

type ExtendSeriesRequest struct {
	AdditionalCount int    `json:"additional_count"`
	CadenceDays     int    `json:"cadence_days,omitempty"`
	RoundToHalfHour *bool  `json:"round_to_half_hour,omitempty"`
	PractitionerID  string `json:"practitioner_id,omitempty"`
	RoomID          string `json:"room_id,omitempty"`
	DurationMinutes int    `json:"duration_minutes,omitempty"`
}

type AbsenceResponse struct {
	ID             uuid.UUID `json:"id"`
	PractitionerID uuid.UUID `json:"practitioner_id"`
	StartDate      string    `json:"start_date"`
	EndDate        string    `json:"end_date"`
	FullDay        bool      `json:"is_full_day"`
	StartTime      string    `json:"start_time,omitempty"`
	EndTime        string    `json:"end_time,omitempty"`
	Category       string    `json:"category"`
	Notes          string    `json:"notes,omitempty"`
}

type SlotResponse struct {
	Index              int              `json:"index"`
	SessionNumber      int              `json:"session_number"`
	TotalSessions      int              `json:"total_sessions"`
	StartsAt           string           `json:"starts_at"`
	PractitionerID     uuid.UUID        `json:"practitioner_id"`
	RoomID             uuid.UUID        `json:"room_id"`
	TreatmentID        uuid.UUID        `json:"treatment_id"`
	DurationMinutes    int              `json:"duration_minutes"`
	PatientID          uuid.UUID        `json:"patient_id"`
	PrescriptionID     uuid.UUID        `json:"prescription_id"`
	State              string           `json:"state"`
	HasConflict        bool             `json:"has_conflict"`
	Overridden         bool             `json:"overridden"`
	ConflictingAbsence *AbsenceResponse `json:"conflicting_absence,omitempty"`
}

type PreviewResponse struct {
	ID             uuid.UUID      `json:"id"`
	PrescriptionID uuid.UUID      `json:"prescription_id"`
	SeriesID       string         `json:"series_id,omitempty"`
	Slots          []SlotResponse `json:"slots"`
	Conflicts      int            `json:"conflicts"`
	Unresolved     int            `json:"unresolved"`
}

type AppointmentResponse struct {
	ID                 uuid.UUID `json:"id"`
	SeriesID           string    `json:"series_id,omitempty"`
	PrescriptionID     uuid.UUID `json:"prescription_id"`
	PatientID          uuid.UUID `json:"patient_id"`
	PractitionerID     uuid.UUID `json:"practitioner_id"`
	RoomID             uuid.UUID `json:"room_id"`
	TreatmentID        uuid.UUID `json:"treatment_id"`
	StartsAt           string    `json:"starts_at"`
	DurationMinutes    int       `json:"duration_minutes"`
	SessionNumber      int       `json:"session_number"`
	TotalSessions      int       `json:"total_sessions"`
	Status             string    `json:"status"`
	ConflictOverridden bool      `json:"conflict_overridden"`
	Notes              string    `json:"notes,omitempty"`
}

type CommitResponse struct {
	SeriesID          string                `json:"series_id"`
	Created           []AppointmentResponse `json:"created"`
	FirstFailureIndex *int                  `json:"first_failure_index"`
	Pending           int                   `json:"pending"`
	Error             string                `json:"error,omitempty"`
	Details           string                `json:"details,omitempty"`
}

type SeriesResponse struct {
	series.SeriesDescriptor
	Appointments []AppointmentResponse `json:"appointments"`
}

type CancelResponse struct {
	SeriesID  string `json:"series_id"`
	Cancelled int    `json:"cancelled"`
}

type ErrorResponse struct {
	Error     string `json:"error"`
	Details   string `json:"details,omitempty"`
	Conflicts *int   `json:"conflicts,omitempty"`
}

func toAbsenceResponse(a *series.AbsenceRecord) *AbsenceResponse {
	if a == nil {
		return nil
	}
	resp := &AbsenceResponse{
		ID:             a.ID,
		PractitionerID: a.PractitionerID,
		StartDate:      a.StartDate.Format(dateLayout),
		EndDate:        a.EndDate.Format(dateLayout),
		FullDay:        a.FullDay,
		Category:       string(a.Category),
		Notes:          a.Notes,
	}
	if !a.FullDay {
		resp.StartTime = a.StartTime.String()
		resp.EndTime = a.EndTime.String()
	}
	return resp
}

func toPreviewResponse(p *series.Preview) PreviewResponse {
	resp := PreviewResponse{
		ID:             p.ID,
		PrescriptionID: p.PrescriptionID,
		SeriesID:       p.SeriesID,
		Slots:          make([]SlotResponse, 0, len(p.Slots)),
		Unresolved:     p.UnresolvedCount(),
	}
	for i, s := range p.Slots {
		if s.Conflict.HasConflict() {
			resp.Conflicts++
		}
		resp.Slots = append(resp.Slots, SlotResponse{
			Index:              i,
			SessionNumber:      s.SessionNumber,
			TotalSessions:      s.TotalSessions,
			StartsAt:           formatWallClock(s.StartsAt),
			PractitionerID:     s.PractitionerID,
			RoomID:             s.RoomID,
			TreatmentID:        s.TreatmentID,
			DurationMinutes:    s.DurationMinutes,
			PatientID:          s.PatientID,
			PrescriptionID:     s.PrescriptionID,
			State:              string(s.Conflict.State()),
			HasConflict:        s.Conflict.HasConflict(),
			Overridden:         s.Conflict.Overridden(),
			ConflictingAbsence: toAbsenceResponse(s.Conflict.Absence()),
		})
	}
	return resp
}

func toAppointmentResponses(appts []series.Appointment) []AppointmentResponse {
	out := make([]AppointmentResponse, 0, len(appts))
	for _, a := range appts {
		out = append(out, AppointmentResponse{
			ID:                 a.ID,
			SeriesID:           a.SeriesID,
			PrescriptionID:     a.PrescriptionID,
			PatientID:          a.PatientID,
			PractitionerID:     a.PractitionerID,
			RoomID:             a.RoomID,
			TreatmentID:        a.TreatmentID,
			StartsAt:           formatWallClock(a.StartsAt),
			DurationMinutes:    a.DurationMinutes,
			SessionNumber:      a.SessionNumber,
			TotalSessions:      a.TotalSessions,
			Status:             string(a.Status),
			ConflictOverridden: a.ConflictOverridden,
			Notes:              a.Notes,
		})
	}
	return out
}

func toCommitResponse(r *series.CommitResult) CommitResponse {
	return CommitResponse{
		SeriesID:          r.SeriesID,
		Created:           toAppointmentResponses(r.Created),
		FirstFailureIndex: r.FirstFailureIndex,
		Pending:           len(r.Pending),
	}
}

func toSeriesResponse(d series.SeriesDescriptor) SeriesResponse {
	return SeriesResponse{SeriesDescriptor: d, Appointments: toAppointmentResponses(d.Appointments)}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}
