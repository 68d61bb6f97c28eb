package series

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// DescribeAppointments computes the descriptor of seriesID from appts,
// ignoring appointments of other series.
func DescribeAppointments(seriesID string, appts []Appointment) SeriesDescriptor {
	var members []Appointment
	for _, a := range appts {
		if a.SeriesID == seriesID {
			members = append(members, a)
		}
	}
	return describe(seriesID, members)
}

func describe(seriesID string, members []Appointment) SeriesDescriptor {
	d := SeriesDescriptor{SeriesID: seriesID, Appointments: members, Total: len(members)}
	for _, a := range members {
		switch a.Status {
		case StatusCompleted:
			d.Completed++
		case StatusCancelled:
			d.Cancelled++
		}
	}
	d.Remaining = d.Total - d.Completed - d.Cancelled
	if d.Total > 0 {
		d.ProgressPercentage = float64(d.Completed) / float64(d.Total) * 100
	}
	return d
}

// GroupSeries partitions appts by series identifier in order of first
// appearance. Appointments without an identifier each form their own group.
func GroupSeries(appts []Appointment) []SeriesDescriptor {
	type group struct {
		id      string
		members []Appointment
	}
	var groups []*group
	byID := make(map[string]*group)

	for _, a := range appts {
		if a.SeriesID == "" {
			groups = append(groups, &group{members: []Appointment{a}})
			continue
		}
		g, ok := byID[a.SeriesID]
		if !ok {
			g = &group{id: a.SeriesID}
			byID[a.SeriesID] = g
			groups = append(groups, g)
		}
		g.members = append(g.members, a)
	}

	out := make([]SeriesDescriptor, 0, len(groups))
	for _, g := range groups {
		out = append(out, describe(g.id, g.members))
	}
	return out
}

// ExtendRequest describes how many slots to append to a series and with which
// resources. Zero-valued resources fall back to the latest appointment's.
type ExtendRequest struct {
	AdditionalCount int
	CadenceDays     int
	RoundToHalfHour bool
	PractitionerID  uuid.UUID
	RoomID          uuid.UUID
	DurationMinutes int
}

// ExtendSlots generates the continuation of an existing series. The anchor is
// the latest start plus one cadence step, numbering continues after the
// highest session number, and total_sessions never shrinks.
func ExtendSlots(existing []Appointment, req ExtendRequest) ([]CandidateSlot, error) {
	if len(existing) == 0 {
		return nil, ErrSeriesNotFound
	}
	if req.AdditionalCount < 1 {
		return nil, invalidParam("additional count must be >= 1, got %d", req.AdditionalCount)
	}
	if req.CadenceDays < 1 {
		return nil, invalidParam("cadence days must be >= 1, got %d", req.CadenceDays)
	}

	latest := existing[0]
	maxSession, maxTotal := 0, 0
	for _, a := range existing {
		if a.StartsAt.After(latest.StartsAt) {
			latest = a
		}
		maxSession = max(maxSession, a.SessionNumber)
		maxTotal = max(maxTotal, a.TotalSessions)
	}

	tmpl := SlotTemplate{
		PatientID:       latest.PatientID,
		PrescriptionID:  latest.PrescriptionID,
		PractitionerID:  latest.PractitionerID,
		RoomID:          latest.RoomID,
		TreatmentID:     latest.TreatmentID,
		DurationMinutes: latest.DurationMinutes,
	}
	if req.PractitionerID != uuid.Nil {
		tmpl.PractitionerID = req.PractitionerID
	}
	if req.RoomID != uuid.Nil {
		tmpl.RoomID = req.RoomID
	}
	if req.DurationMinutes > 0 {
		tmpl.DurationMinutes = req.DurationMinutes
	}

	anchor := latest.StartsAt.AddDate(0, 0, req.CadenceDays)
	total := max(maxTotal, maxSession+req.AdditionalCount)
	return generateNumbered(tmpl, anchor, req.CadenceDays, req.AdditionalCount, req.RoundToHalfHour, maxSession+1, total)
}

// Lifecycle reads back, extends and cancels persisted series.
type Lifecycle struct {
	store AppointmentStore
}

func NewLifecycle(store AppointmentStore) *Lifecycle {
	return &Lifecycle{store: store}
}

func (l *Lifecycle) load(ctx context.Context, seriesID string) ([]Appointment, error) {
	if seriesID == "" {
		return nil, ErrSeriesNotFound
	}
	appts, err := l.store.ListAppointments(ctx, AppointmentFilter{SeriesID: seriesID})
	if err != nil {
		return nil, fmt.Errorf("list series appointments: %w", err)
	}
	if len(appts) == 0 {
		return nil, ErrSeriesNotFound
	}
	return appts, nil
}

func (l *Lifecycle) Describe(ctx context.Context, seriesID string) (SeriesDescriptor, error) {
	appts, err := l.load(ctx, seriesID)
	if err != nil {
		return SeriesDescriptor{}, err
	}
	return DescribeAppointments(seriesID, appts), nil
}

// Extend returns unevaluated candidate slots continuing the series.
func (l *Lifecycle) Extend(ctx context.Context, seriesID string, req ExtendRequest) ([]CandidateSlot, error) {
	appts, err := l.load(ctx, seriesID)
	if err != nil {
		return nil, err
	}
	return ExtendSlots(appts, req)
}

// Cancel moves every planned appointment of the series to cancelled and
// returns how many were targeted. Other statuses are left untouched. The
// store call is not atomic across appointments.
func (l *Lifecycle) Cancel(ctx context.Context, seriesID string) (int, error) {
	appts, err := l.load(ctx, seriesID)
	if err != nil {
		return 0, err
	}

	var ids []uuid.UUID
	for _, a := range appts {
		if a.Status == StatusPlanned {
			ids = append(ids, a.ID)
		}
	}
	if len(ids) == 0 {
		return 0, nil
	}
	if err := l.store.BulkSetStatus(ctx, ids, StatusCancelled); err != nil {
		return 0, fmt.Errorf("cancel series appointments: %w", err)
	}
	return len(ids), nil
}
