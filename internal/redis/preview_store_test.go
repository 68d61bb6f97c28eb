package redisclient

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/hackgods/therapy-series-scheduling/internal/config"
	"github.com/hackgods/therapy-series-scheduling/internal/series"
)

func newTestClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := NewRedisClient(context.Background(), config.Config{RedisAddr: mr.Addr()})
	if err != nil {
		t.Fatalf("NewRedisClient: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func day(y int, m time.Month, d, h, min int) time.Time {
	return time.Date(y, m, d, h, min, 0, 0, time.UTC)
}

// conflictedPreview covers weeks two and three with absences and overrides
// the second one.
func conflictedPreview(t *testing.T) (*series.Preview, series.AbsenceRecord, series.AbsenceRecord) {
	t.Helper()
	pid := uuid.New()
	vacation := series.AbsenceRecord{
		ID:             uuid.New(),
		PractitionerID: pid,
		StartDate:      day(2024, 1, 8, 0, 0),
		EndDate:        day(2024, 1, 8, 0, 0),
		FullDay:        true,
		Category:       series.AbsenceVacation,
	}
	training := series.AbsenceRecord{
		ID:             uuid.New(),
		PractitionerID: pid,
		StartDate:      day(2024, 1, 15, 0, 0),
		EndDate:        day(2024, 1, 15, 0, 0),
		StartTime:      series.NewTimeOfDay(8, 30, 0),
		EndTime:        series.NewTimeOfDay(10, 0, 0),
		Category:       series.AbsenceTraining,
	}
	ix := series.NewAbsenceIndex()
	ix.Load(pid, []series.AbsenceRecord{vacation, training})

	rx := uuid.New()
	slots, err := series.Generate(series.SlotTemplate{
		PatientID:       uuid.New(),
		PrescriptionID:  rx,
		PractitionerID:  pid,
		RoomID:          uuid.New(),
		TreatmentID:     uuid.New(),
		DurationMinutes: 30,
	}, day(2024, 1, 1, 9, 0), 7, 4, true)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	p := series.NewPreview(uuid.New(), rx, slots, ix)
	if err := p.IgnoreConflict(2); err != nil {
		t.Fatalf("IgnoreConflict: %v", err)
	}
	return p, vacation, training
}

func TestPreviewStore_RoundTrip(t *testing.T) {
	mr, client := newTestClient(t)
	store := NewPreviewStore(client, time.Hour)
	p, vacation, training := conflictedPreview(t)
	p.SeriesID = "1704096000000-rx-0a1b2c3d"

	if err := store.SavePreview(context.Background(), p); err != nil {
		t.Fatalf("SavePreview: %v", err)
	}
	if ttl := mr.TTL(previewKey(p.ID)); ttl != time.Hour {
		t.Errorf("ttl = %s, want 1h", ttl)
	}

	got, err := store.LoadPreview(context.Background(), p.ID)
	if err != nil {
		t.Fatalf("LoadPreview: %v", err)
	}
	if got.ID != p.ID || got.SeriesID != p.SeriesID || got.PrescriptionID != p.PrescriptionID {
		t.Errorf("loaded preview %s / %q / %s", got.ID, got.SeriesID, got.PrescriptionID)
	}
	if len(got.Slots) != 4 {
		t.Fatalf("loaded %d slots, want 4", len(got.Slots))
	}

	wantStates := []series.SlotState{series.SlotClear, series.SlotConflicted, series.SlotOverridden, series.SlotClear}
	wantAbsence := []uuid.UUID{uuid.Nil, vacation.ID, training.ID, uuid.Nil}
	for i, s := range got.Slots {
		if s.Conflict.State() != wantStates[i] {
			t.Errorf("slot %d state = %s, want %s", i, s.Conflict.State(), wantStates[i])
		}
		var id uuid.UUID
		if a := s.Conflict.Absence(); a != nil {
			id = a.ID
		}
		if id != wantAbsence[i] {
			t.Errorf("slot %d absence = %s, want %s", i, id, wantAbsence[i])
		}
		if !s.StartsAt.Equal(p.Slots[i].StartsAt) || s.SessionNumber != i+1 {
			t.Errorf("slot %d = session %d at %s", i, s.SessionNumber, s.StartsAt)
		}
	}
	if got.UnresolvedCount() != 1 {
		t.Errorf("unresolved = %d, want 1", got.UnresolvedCount())
	}

	a := got.Absences.FindConflict(training.PractitionerID, day(2024, 1, 15, 9, 30))
	if a == nil || a.ID != training.ID || a.StartTime != training.StartTime || a.EndTime != training.EndTime {
		t.Errorf("restored absence = %+v, want %+v", a, training)
	}
	if got.Absences.FindConflict(training.PractitionerID, day(2024, 1, 15, 10, 0)) != nil {
		t.Error("partial-day absence lost its end time")
	}
}

func TestPreviewStore_ExpiresAndDeletes(t *testing.T) {
	mr, client := newTestClient(t)
	store := NewPreviewStore(client, time.Minute)
	p, _, _ := conflictedPreview(t)
	ctx := context.Background()

	if err := store.SavePreview(ctx, p); err != nil {
		t.Fatalf("SavePreview: %v", err)
	}
	mr.FastForward(2 * time.Minute)
	if _, err := store.LoadPreview(ctx, p.ID); !errors.Is(err, series.ErrPreviewNotFound) {
		t.Errorf("expired preview: got %v, want ErrPreviewNotFound", err)
	}

	if err := store.SavePreview(ctx, p); err != nil {
		t.Fatalf("SavePreview: %v", err)
	}
	if err := store.DeletePreview(ctx, p.ID); err != nil {
		t.Fatalf("DeletePreview: %v", err)
	}
	if err := store.DeletePreview(ctx, p.ID); !errors.Is(err, series.ErrPreviewNotFound) {
		t.Errorf("second delete: got %v, want ErrPreviewNotFound", err)
	}
}

func TestPreviewStore_CorruptDocument(t *testing.T) {
	mr, client := newTestClient(t)
	store := NewPreviewStore(client, time.Minute)
	id := uuid.New()
	if err := mr.Set(previewKey(id), `{"slots":[{"conflict":{"state":"conflicted"}}]}`); err != nil {
		t.Fatalf("seed: %v", err)
	}

	_, err := store.LoadPreview(context.Background(), id)
	if err == nil || errors.Is(err, series.ErrPreviewNotFound) {
		t.Errorf("got %v, want a decode error", err)
	}
}
