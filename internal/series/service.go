package series

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/therapy-series-scheduling/internal/config"
)

const (
	EventSeriesCommitted       = "SERIES_COMMITTED"
	EventSeriesCommitFailed    = "SERIES_COMMIT_FAILED"
	EventSeriesExtendPreviewed = "SERIES_EXTEND_PREVIEWED"
	EventSeriesCancelled       = "SERIES_CANCELLED"
)

type Service struct {
	repo      Repository
	previews  PreviewStore
	locker    Locker
	commits   *CommitEngine
	lifecycle *Lifecycle
	cfg       config.Config
	log       zerolog.Logger
	now       Clock
}

func NewService(repo Repository, previews PreviewStore, locker Locker, cfg config.Config, log zerolog.Logger) *Service {
	return &Service{
		repo:      repo,
		previews:  previews,
		locker:    locker,
		commits:   NewCommitEngine(repo, time.Now),
		lifecycle: NewLifecycle(repo),
		cfg:       cfg,
		log:       log.With().Str("component", "series").Logger(),
		now:       time.Now,
	}
}

// PreviewRequest starts a fresh series from a prescription. Zero values pick
// defaults: cadence from the prescription, count from its remaining
// entitlement, first treatment, treatment or configured duration.
type PreviewRequest struct {
	PrescriptionID  uuid.UUID
	Anchor          time.Time
	CadenceDays     int
	Count           int
	RoundToHalfHour *bool
	PractitionerID  uuid.UUID
	RoomID          uuid.UUID
	TreatmentID     uuid.UUID
	DurationMinutes int
}

// StartPreview generates candidate slots, evaluates them against the
// practitioner's absences and stores the preview session.
func (s *Service) StartPreview(ctx context.Context, req PreviewRequest) (*Preview, error) {
	rx, err := s.repo.GetPrescription(ctx, req.PrescriptionID)
	if err != nil {
		return nil, fmt.Errorf("load prescription: %w", err)
	}
	if err := s.checkResources(ctx, req.PractitionerID, req.RoomID); err != nil {
		return nil, err
	}

	treatmentID := req.TreatmentID
	if treatmentID == uuid.Nil {
		if len(rx.TreatmentIDs) == 0 {
			return nil, invalidParam("prescription %s has no treatments", rx.ID)
		}
		treatmentID = rx.TreatmentIDs[0]
	} else if !containsID(rx.TreatmentIDs, treatmentID) {
		return nil, invalidParam("treatment %s is not part of prescription %s", treatmentID, rx.ID)
	}
	treatment, err := s.repo.GetTreatment(ctx, treatmentID)
	if err != nil {
		return nil, fmt.Errorf("load treatment: %w", err)
	}

	cadence := req.CadenceDays
	if cadence == 0 {
		if cadence, err = CadenceDays(rx.Cadence); err != nil {
			return nil, err
		}
	}

	count := req.Count
	if count == 0 {
		if count, err = s.remainingSessions(ctx, rx); err != nil {
			return nil, err
		}
	}
	if count > s.cfg.SeriesMaxSessions {
		return nil, invalidParam("count %d exceeds the maximum of %d sessions", count, s.cfg.SeriesMaxSessions)
	}

	duration := req.DurationMinutes
	if duration == 0 {
		duration = treatment.DurationMinutes
	}
	if duration <= 0 {
		duration = s.cfg.DefaultDurationMinutes
	}

	round := s.cfg.RoundToHalfHour
	if req.RoundToHalfHour != nil {
		round = *req.RoundToHalfHour
	}

	slots, err := Generate(SlotTemplate{
		PatientID:       rx.PatientID,
		PrescriptionID:  rx.ID,
		PractitionerID:  req.PractitionerID,
		RoomID:          req.RoomID,
		TreatmentID:     treatmentID,
		DurationMinutes: duration,
	}, req.Anchor, cadence, count, round)
	if err != nil {
		return nil, err
	}

	ix := NewAbsenceIndex()
	if err := s.loadAbsences(ctx, ix, req.PractitionerID); err != nil {
		return nil, err
	}

	p := NewPreview(uuid.New(), rx.ID, slots, ix)
	p.CreatedAt = s.now()
	if err := s.previews.SavePreview(ctx, p); err != nil {
		return nil, fmt.Errorf("save preview: %w", err)
	}

	s.log.Info().
		Str("preview_id", p.ID.String()).
		Str("prescription_id", rx.ID.String()).
		Int("slots", len(p.Slots)).
		Int("conflicts", p.UnresolvedCount()).
		Msg("preview generated")

	return p, nil
}

// remainingSessions is the prescription's entitlement minus its appointments
// that are not cancelled.
func (s *Service) remainingSessions(ctx context.Context, rx *Prescription) (int, error) {
	appts, err := s.repo.ListAppointments(ctx, AppointmentFilter{PrescriptionID: rx.ID})
	if err != nil {
		return 0, fmt.Errorf("list prescription appointments: %w", err)
	}
	used := 0
	for _, a := range appts {
		if a.Status != StatusCancelled {
			used++
		}
	}
	remaining := rx.SessionCount - used
	if remaining < 1 {
		return 0, invalidParam("prescription %s has no remaining sessions", rx.ID)
	}
	return remaining, nil
}

func (s *Service) checkResources(ctx context.Context, practitionerID, roomID uuid.UUID) error {
	if _, err := s.repo.GetPractitioner(ctx, practitionerID); err != nil {
		return fmt.Errorf("load practitioner: %w", err)
	}
	if _, err := s.repo.GetRoom(ctx, roomID); err != nil {
		return fmt.Errorf("load room: %w", err)
	}
	return nil
}

func (s *Service) loadAbsences(ctx context.Context, ix *AbsenceIndex, practitionerID uuid.UUID) error {
	records, err := s.repo.ListAbsences(ctx, practitionerID)
	if err != nil {
		return fmt.Errorf("list absences: %w", err)
	}
	ix.Load(practitionerID, records)
	return nil
}

func (s *Service) GetPreview(ctx context.Context, id uuid.UUID) (*Preview, error) {
	p, err := s.previews.LoadPreview(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Absences == nil {
		p.Absences = NewAbsenceIndex()
	}
	return p, nil
}

// DiscardPreview drops the session without touching the appointment store.
func (s *Service) DiscardPreview(ctx context.Context, id uuid.UUID) error {
	return s.previews.DeletePreview(ctx, id)
}

// mutate loads a preview, applies fn and saves the result.
func (s *Service) mutate(ctx context.Context, id uuid.UUID, fn func(p *Preview) error) (*Preview, error) {
	p, err := s.GetPreview(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := fn(p); err != nil {
		return nil, err
	}
	if err := s.previews.SavePreview(ctx, p); err != nil {
		return nil, fmt.Errorf("save preview: %w", err)
	}
	return p, nil
}

func (s *Service) EditSlot(ctx context.Context, previewID uuid.UUID, index int, edit SlotEdit) (*Preview, error) {
	return s.mutate(ctx, previewID, func(p *Preview) error {
		if edit.PractitionerID != nil {
			if _, err := s.repo.GetPractitioner(ctx, *edit.PractitionerID); err != nil {
				return fmt.Errorf("load practitioner: %w", err)
			}
			if !p.Absences.Has(*edit.PractitionerID) {
				if err := s.loadAbsences(ctx, p.Absences, *edit.PractitionerID); err != nil {
					return err
				}
			}
		}
		if edit.RoomID != nil {
			if _, err := s.repo.GetRoom(ctx, *edit.RoomID); err != nil {
				return fmt.Errorf("load room: %w", err)
			}
		}
		if edit.TreatmentID != nil {
			if _, err := s.repo.GetTreatment(ctx, *edit.TreatmentID); err != nil {
				return fmt.Errorf("load treatment: %w", err)
			}
		}
		_, err := p.EditSlot(index, edit)
		return err
	})
}

func (s *Service) IgnoreConflict(ctx context.Context, previewID uuid.UUID, index int) (*Preview, error) {
	return s.mutate(ctx, previewID, func(p *Preview) error {
		return p.IgnoreConflict(index)
	})
}

func (s *Service) DeleteSlot(ctx context.Context, previewID uuid.UUID, index int) (*Preview, error) {
	return s.mutate(ctx, previewID, func(p *Preview) error {
		return p.DeleteSlot(index)
	})
}

// RefreshAbsences reloads the snapshot for every practitioner the preview has
// seen and re-evaluates all slots.
func (s *Service) RefreshAbsences(ctx context.Context, previewID uuid.UUID) (*Preview, error) {
	return s.mutate(ctx, previewID, func(p *Preview) error {
		return s.refresh(ctx, p)
	})
}

func (s *Service) refresh(ctx context.Context, p *Preview) error {
	for _, pid := range p.Absences.Practitioners() {
		if err := s.loadAbsences(ctx, p.Absences, pid); err != nil {
			return err
		}
	}
	p.Reevaluate()
	return nil
}

// UpdateAbsence resolves a conflict by editing the absence itself, then
// refreshes the preview.
func (s *Service) UpdateAbsence(ctx context.Context, previewID, absenceID uuid.UUID, upd AbsenceUpdate) (*Preview, error) {
	return s.mutate(ctx, previewID, func(p *Preview) error {
		if _, ok := p.Absences.Find(absenceID); !ok {
			return ErrAbsenceNotFound
		}
		if _, err := s.repo.UpdateAbsence(ctx, absenceID, upd); err != nil {
			return fmt.Errorf("update absence: %w", err)
		}
		return s.refresh(ctx, p)
	})
}

// DeleteAbsence resolves a conflict by removing the absence, then refreshes
// the preview.
func (s *Service) DeleteAbsence(ctx context.Context, previewID, absenceID uuid.UUID) (*Preview, error) {
	return s.mutate(ctx, previewID, func(p *Preview) error {
		if _, ok := p.Absences.Find(absenceID); !ok {
			return ErrAbsenceNotFound
		}
		if err := s.repo.DeleteAbsence(ctx, absenceID); err != nil {
			return fmt.Errorf("delete absence: %w", err)
		}
		return s.refresh(ctx, p)
	})
}

// CommitPreview persists the preview. The preview is reloaded under its own
// lock so a concurrent commit of the same preview cannot persist its slots a
// second time; previews bound to a series also hold the series lock. A full
// commit deletes the preview. A partial commit keeps only the unsent slots,
// pinned to the new series identifier, so the caller can retry the remainder.
func (s *Service) CommitPreview(ctx context.Context, previewID uuid.UUID) (*CommitResult, error) {
	var result *CommitResult
	err := s.locker.WithSeriesLock(ctx, "preview:"+previewID.String(), func(lockCtx context.Context) error {
		p, err := s.GetPreview(lockCtx, previewID)
		if err != nil {
			return err
		}
		if p.SeriesID == "" {
			result, err = s.commitLocked(lockCtx, p)
			return err
		}
		return s.locker.WithSeriesLock(lockCtx, "series:"+p.SeriesID, func(seriesCtx context.Context) error {
			if err := s.checkContinuation(seriesCtx, p); err != nil {
				return err
			}
			result, err = s.commitLocked(seriesCtx, p)
			return err
		})
	})

	var persistErr *PersistenceError
	switch {
	case err == nil:
		s.logEvent(ctx, result.SeriesID, EventSeriesCommitted, map[string]any{
			"preview_id": previewID.String(),
			"created":    len(result.Created),
		})
		s.log.Info().Str("series_id", result.SeriesID).Int("created", len(result.Created)).Msg("series committed")
		return result, nil

	case errors.As(err, &persistErr):
		s.logEvent(ctx, result.SeriesID, EventSeriesCommitFailed, map[string]any{
			"preview_id":          previewID.String(),
			"created":             len(result.Created),
			"first_failure_index": persistErr.Index,
			"session_number":      persistErr.SessionNumber,
			"error":               persistErr.Err.Error(),
		})
		s.log.Error().Err(persistErr.Err).
			Str("series_id", result.SeriesID).
			Int("created", len(result.Created)).
			Int("first_failure_index", persistErr.Index).
			Msg("series commit stopped at first failure")
		return result, err

	default:
		return result, err
	}
}

// commitLocked runs the commit and updates the stored preview before the
// lock is released.
func (s *Service) commitLocked(ctx context.Context, p *Preview) (*CommitResult, error) {
	result, err := s.commits.Commit(ctx, p.SeriesID, p.Slots)

	var persistErr *PersistenceError
	switch {
	case err == nil:
		if delErr := s.previews.DeletePreview(ctx, p.ID); delErr != nil {
			s.log.Warn().Err(delErr).Str("preview_id", p.ID.String()).Msg("failed to delete committed preview")
		}
	case errors.As(err, &persistErr):
		p.SeriesID = result.SeriesID
		p.Slots = result.Pending
		if saveErr := s.previews.SavePreview(ctx, p); saveErr != nil {
			s.log.Error().Err(saveErr).Str("preview_id", p.ID.String()).Msg("failed to save remaining slots after partial commit")
		}
	}
	return result, err
}

// checkContinuation rejects a preview whose session numbers no longer
// continue the series, e.g. when another extension was committed after this
// preview was built.
func (s *Service) checkContinuation(ctx context.Context, p *Preview) error {
	if len(p.Slots) == 0 {
		return nil
	}
	appts, err := s.repo.ListAppointments(ctx, AppointmentFilter{SeriesID: p.SeriesID})
	if err != nil {
		return fmt.Errorf("list series appointments: %w", err)
	}
	maxSession := 0
	for _, a := range appts {
		maxSession = max(maxSession, a.SessionNumber)
	}
	first := p.Slots[0].SessionNumber
	for _, slot := range p.Slots {
		first = min(first, slot.SessionNumber)
	}
	if first <= maxSession {
		return invalidParam("series %s already holds session %d, extend the series again", p.SeriesID, maxSession)
	}
	return nil
}

func (s *Service) DescribeSeries(ctx context.Context, seriesID string) (SeriesDescriptor, error) {
	return s.lifecycle.Describe(ctx, seriesID)
}

// ListPrescriptionSeries groups every appointment of a prescription by series.
func (s *Service) ListPrescriptionSeries(ctx context.Context, prescriptionID uuid.UUID) ([]SeriesDescriptor, error) {
	if _, err := s.repo.GetPrescription(ctx, prescriptionID); err != nil {
		return nil, fmt.Errorf("load prescription: %w", err)
	}
	appts, err := s.repo.ListAppointments(ctx, AppointmentFilter{PrescriptionID: prescriptionID})
	if err != nil {
		return nil, fmt.Errorf("list prescription appointments: %w", err)
	}
	return GroupSeries(appts), nil
}

// ExtendSeries creates a preview continuing the series. It flows through
// conflict evaluation and commit like a fresh preview.
func (s *Service) ExtendSeries(ctx context.Context, seriesID string, req ExtendRequest) (*Preview, error) {
	if req.AdditionalCount > s.cfg.SeriesMaxSessions {
		return nil, invalidParam("additional count %d exceeds the maximum of %d sessions", req.AdditionalCount, s.cfg.SeriesMaxSessions)
	}
	if req.PractitionerID != uuid.Nil {
		if _, err := s.repo.GetPractitioner(ctx, req.PractitionerID); err != nil {
			return nil, fmt.Errorf("load practitioner: %w", err)
		}
	}
	if req.RoomID != uuid.Nil {
		if _, err := s.repo.GetRoom(ctx, req.RoomID); err != nil {
			return nil, fmt.Errorf("load room: %w", err)
		}
	}

	if req.CadenceDays == 0 {
		cadence, err := s.seriesCadence(ctx, seriesID)
		if err != nil {
			return nil, err
		}
		req.CadenceDays = cadence
	}

	slots, err := s.lifecycle.Extend(ctx, seriesID, req)
	if err != nil {
		return nil, err
	}

	ix := NewAbsenceIndex()
	for _, pid := range uniquePractitioners(slots) {
		if err := s.loadAbsences(ctx, ix, pid); err != nil {
			return nil, err
		}
	}

	p := NewPreview(uuid.New(), slots[0].PrescriptionID, slots, ix)
	p.SeriesID = seriesID
	p.CreatedAt = s.now()
	if err := s.previews.SavePreview(ctx, p); err != nil {
		return nil, fmt.Errorf("save preview: %w", err)
	}

	s.logEvent(ctx, seriesID, EventSeriesExtendPreviewed, map[string]any{
		"preview_id":     p.ID.String(),
		"first_session":  slots[0].SessionNumber,
		"additional":     len(slots),
		"total_sessions": slots[0].TotalSessions,
	})
	return p, nil
}

// seriesCadence derives the cadence from the prescription the series belongs to.
func (s *Service) seriesCadence(ctx context.Context, seriesID string) (int, error) {
	if seriesID == "" {
		return 0, ErrSeriesNotFound
	}
	appts, err := s.repo.ListAppointments(ctx, AppointmentFilter{SeriesID: seriesID})
	if err != nil {
		return 0, fmt.Errorf("list series appointments: %w", err)
	}
	if len(appts) == 0 {
		return 0, ErrSeriesNotFound
	}
	rx, err := s.repo.GetPrescription(ctx, appts[0].PrescriptionID)
	if err != nil {
		return 0, fmt.Errorf("load prescription: %w", err)
	}
	return CadenceDays(rx.Cadence)
}

// CancelSeries bulk-cancels the planned appointments of a series.
func (s *Service) CancelSeries(ctx context.Context, seriesID string) (int, error) {
	var cancelled int
	err := s.locker.WithSeriesLock(ctx, "series:"+seriesID, func(lockCtx context.Context) error {
		n, err := s.lifecycle.Cancel(lockCtx, seriesID)
		cancelled = n
		return err
	})
	if err != nil {
		return 0, err
	}

	s.logEvent(ctx, seriesID, EventSeriesCancelled, map[string]any{"cancelled": cancelled})
	s.log.Info().Str("series_id", seriesID).Int("cancelled", cancelled).Msg("series cancelled")
	return cancelled, nil
}

func (s *Service) logEvent(ctx context.Context, seriesID, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.log.Warn().Err(err).Str("event", eventType).Msg("failed to marshal event payload")
		data = nil
	}

	ev := EventLog{
		EventType: eventType,
		SeriesID:  seriesID,
		Payload:   data,
		CreatedAt: s.now(),
	}

	if err := s.repo.InsertEvent(ctx, ev); err != nil {
		s.log.Warn().Err(err).Str("event", eventType).Str("series_id", seriesID).Msg("failed to insert event log")
	}
}

func containsID(ids []uuid.UUID, id uuid.UUID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func uniquePractitioners(slots []CandidateSlot) []uuid.UUID {
	seen := make(map[uuid.UUID]bool)
	var out []uuid.UUID
	for _, s := range slots {
		if !seen[s.PractitionerID] {
			seen[s.PractitionerID] = true
			out = append(out, s.PractitionerID)
		}
	}
	return out
}
