package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hackgods/therapy-series-scheduling/internal/series"
)

func getSeriesHandler(svc SeriesService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		d, err := svc.DescribeSeries(r.Context(), chi.URLParam(r, "seriesID"))
		if err != nil {
			handleSeriesError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toSeriesResponse(d))
	}
}

func listPrescriptionSeriesHandler(svc SeriesService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_prescription_id", "id must be a valid UUID")
			return
		}
		groups, err := svc.ListPrescriptionSeries(r.Context(), id)
		if err != nil {
			handleSeriesError(w, err)
			return
		}
		resp := make([]SeriesResponse, 0, len(groups))
		for _, g := range groups {
			resp = append(resp, toSeriesResponse(g))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func extendSeriesHandler(svc SeriesService, defaultRound bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ExtendSeriesRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		ext := series.ExtendRequest{
			AdditionalCount: req.AdditionalCount,
			CadenceDays:     req.CadenceDays,
			RoundToHalfHour: defaultRound,
			DurationMinutes: req.DurationMinutes,
		}
		if req.RoundToHalfHour != nil {
			ext.RoundToHalfHour = *req.RoundToHalfHour
		}
		if req.PractitionerID != "" {
			id, err := uuid.Parse(req.PractitionerID)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_practitioner_id", "practitioner_id must be a valid UUID")
				return
			}
			ext.PractitionerID = id
		}
		if req.RoomID != "" {
			id, err := uuid.Parse(req.RoomID)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_room_id", "room_id must be a valid UUID")
				return
			}
			ext.RoomID = id
		}

		p, err := svc.ExtendSeries(r.Context(), chi.URLParam(r, "seriesID"), ext)
		if err != nil {
			handleSeriesError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toPreviewResponse(p))
	}
}

func cancelSeriesHandler(svc SeriesService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		seriesID := chi.URLParam(r, "seriesID")
		n, err := svc.CancelSeries(r.Context(), seriesID)
		if err != nil {
			handleSeriesError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, CancelResponse{SeriesID: seriesID, Cancelled: n})
	}
}
