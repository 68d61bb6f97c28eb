package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hackgods/therapy-series-scheduling/internal/series"
)

func createPreviewHandler(svc SeriesService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreatePreviewRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		prescriptionID, err := uuid.Parse(req.PrescriptionID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_prescription_id", "prescription_id must be a valid UUID")
			return
		}
		practitionerID, err := uuid.Parse(req.PractitionerID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_practitioner_id", "practitioner_id must be a valid UUID")
			return
		}
		roomID, err := uuid.Parse(req.RoomID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_room_id", "room_id must be a valid UUID")
			return
		}
		var treatmentID uuid.UUID
		if req.TreatmentID != "" {
			if treatmentID, err = uuid.Parse(req.TreatmentID); err != nil {
				writeError(w, http.StatusBadRequest, "invalid_treatment_id", "treatment_id must be a valid UUID")
				return
			}
		}
		anchor, err := parseWallClock(req.Anchor)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_anchor", err.Error())
			return
		}

		p, err := svc.StartPreview(r.Context(), series.PreviewRequest{
			PrescriptionID:  prescriptionID,
			Anchor:          anchor,
			CadenceDays:     req.CadenceDays,
			Count:           req.Count,
			RoundToHalfHour: req.RoundToHalfHour,
			PractitionerID:  practitionerID,
			RoomID:          roomID,
			TreatmentID:     treatmentID,
			DurationMinutes: req.DurationMinutes,
		})
		if err != nil {
			handleSeriesError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toPreviewResponse(p))
	}
}

func getPreviewHandler(svc SeriesService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := previewIDParam(w, r)
		if !ok {
			return
		}
		p, err := svc.GetPreview(r.Context(), id)
		if err != nil {
			handleSeriesError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toPreviewResponse(p))
	}
}

func discardPreviewHandler(svc SeriesService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := previewIDParam(w, r)
		if !ok {
			return
		}
		if err := svc.DiscardPreview(r.Context(), id); err != nil {
			handleSeriesError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func editSlotHandler(svc SeriesService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := previewIDParam(w, r)
		if !ok {
			return
		}
		index, ok := slotIndexParam(w, r)
		if !ok {
			return
		}

		var req EditSlotRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		edit, err := req.toSlotEdit()
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_slot_edit", err.Error())
			return
		}

		p, err := svc.EditSlot(r.Context(), id, index, edit)
		if err != nil {
			handleSeriesError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toPreviewResponse(p))
	}
}

func (req EditSlotRequest) toSlotEdit() (series.SlotEdit, error) {
	var edit series.SlotEdit
	if req.StartsAt != nil {
		t, err := parseWallClock(*req.StartsAt)
		if err != nil {
			return edit, fmt.Errorf("starts_at: %w", err)
		}
		edit.StartsAt = &t
	}
	ids := []struct {
		name string
		raw  *string
		dst  **uuid.UUID
	}{
		{"practitioner_id", req.PractitionerID, &edit.PractitionerID},
		{"room_id", req.RoomID, &edit.RoomID},
		{"treatment_id", req.TreatmentID, &edit.TreatmentID},
	}
	for _, f := range ids {
		if f.raw == nil {
			continue
		}
		id, err := uuid.Parse(*f.raw)
		if err != nil {
			return edit, fmt.Errorf("%s must be a valid UUID", f.name)
		}
		*f.dst = &id
	}
	edit.DurationMinutes = req.DurationMinutes
	return edit, nil
}

func ignoreConflictHandler(svc SeriesService) http.HandlerFunc {
	return slotActionHandler(svc.IgnoreConflict)
}

func deleteSlotHandler(svc SeriesService) http.HandlerFunc {
	return slotActionHandler(svc.DeleteSlot)
}

func slotActionHandler(action func(ctx context.Context, previewID uuid.UUID, index int) (*series.Preview, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := previewIDParam(w, r)
		if !ok {
			return
		}
		index, ok := slotIndexParam(w, r)
		if !ok {
			return
		}
		p, err := action(r.Context(), id, index)
		if err != nil {
			handleSeriesError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toPreviewResponse(p))
	}
}

func refreshPreviewHandler(svc SeriesService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := previewIDParam(w, r)
		if !ok {
			return
		}
		p, err := svc.RefreshAbsences(r.Context(), id)
		if err != nil {
			handleSeriesError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toPreviewResponse(p))
	}
}

func updateAbsenceHandler(svc SeriesService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := previewIDParam(w, r)
		if !ok {
			return
		}
		absenceID, err := uuid.Parse(chi.URLParam(r, "absenceID"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_absence_id", "absence id must be a valid UUID")
			return
		}

		var req UpdateAbsenceRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		upd, err := req.toAbsenceUpdate()
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_absence_update", err.Error())
			return
		}

		p, err := svc.UpdateAbsence(r.Context(), id, absenceID, upd)
		if err != nil {
			handleSeriesError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toPreviewResponse(p))
	}
}

func (req UpdateAbsenceRequest) toAbsenceUpdate() (series.AbsenceUpdate, error) {
	upd := series.AbsenceUpdate{FullDay: req.FullDay, Notes: req.Notes}
	for _, d := range []struct {
		name string
		raw  *string
		dst  **time.Time
	}{
		{"start_date", req.StartDate, &upd.StartDate},
		{"end_date", req.EndDate, &upd.EndDate},
	} {
		if d.raw == nil {
			continue
		}
		t, err := time.ParseInLocation(dateLayout, *d.raw, time.Local)
		if err != nil {
			return upd, fmt.Errorf("%s must be YYYY-MM-DD", d.name)
		}
		*d.dst = &t
	}
	for _, c := range []struct {
		raw *string
		dst **series.TimeOfDay
	}{
		{req.StartTime, &upd.StartTime},
		{req.EndTime, &upd.EndTime},
	} {
		if c.raw == nil {
			continue
		}
		tod, err := series.ParseTimeOfDay(*c.raw)
		if err != nil {
			return upd, err
		}
		*c.dst = &tod
	}
	if req.Category != nil {
		cat := series.AbsenceCategory(*req.Category)
		upd.Category = &cat
	}
	return upd, nil
}

func deleteAbsenceHandler(svc SeriesService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := previewIDParam(w, r)
		if !ok {
			return
		}
		absenceID, err := uuid.Parse(chi.URLParam(r, "absenceID"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_absence_id", "absence id must be a valid UUID")
			return
		}
		p, err := svc.DeleteAbsence(r.Context(), id, absenceID)
		if err != nil {
			handleSeriesError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toPreviewResponse(p))
	}
}

func commitPreviewHandler(svc SeriesService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := previewIDParam(w, r)
		if !ok {
			return
		}

		result, err := svc.CommitPreview(r.Context(), id)
		if err != nil {
			var persistErr *series.PersistenceError
			if errors.As(err, &persistErr) && result != nil {
				resp := toCommitResponse(result)
				resp.Error = "persistence_failure"
				resp.Details = err.Error()
				writeJSON(w, http.StatusBadGateway, resp)
				return
			}
			handleSeriesError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toCommitResponse(result))
	}
}

func previewIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_preview_id", "id must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

func slotIndexParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil || index < 0 {
		writeError(w, http.StatusBadRequest, "invalid_slot_index", "index must be a non-negative integer")
		return 0, false
	}
	return index, true
}

func handleSeriesError(w http.ResponseWriter, err error) {
	var unresolved *series.UnresolvedConflictsError
	switch {
	case errors.As(err, &unresolved):
		count := unresolved.Count
		writeJSON(w, http.StatusConflict, ErrorResponse{
			Error:     "unresolved_conflicts",
			Details:   err.Error(),
			Conflicts: &count,
		})
	case errors.Is(err, series.ErrInvalidParameter):
		writeError(w, http.StatusBadRequest, "invalid_parameter", err.Error())
	case errors.Is(err, series.ErrSlotIndex):
		writeError(w, http.StatusNotFound, "slot_not_found", err.Error())
	case errors.Is(err, series.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, series.ErrNotConflicted):
		writeError(w, http.StatusConflict, "slot_not_conflicted", err.Error())
	case errors.Is(err, series.ErrSeriesBusy):
		writeError(w, http.StatusConflict, "series_busy", "series is currently being modified, please retry shortly")
	case errors.Is(err, series.ErrPersistenceFailure):
		writeError(w, http.StatusBadGateway, "persistence_failure", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
