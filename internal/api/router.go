package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/therapy-series-scheduling/internal/series"
)

// SeriesService is the part of *series.Service the HTTP layer drives.
type SeriesService interface {
	StartPreview(ctx context.Context, req series.PreviewRequest) (*series.Preview, error)
	GetPreview(ctx context.Context, id uuid.UUID) (*series.Preview, error)
	DiscardPreview(ctx context.Context, id uuid.UUID) error
	EditSlot(ctx context.Context, previewID uuid.UUID, index int, edit series.SlotEdit) (*series.Preview, error)
	IgnoreConflict(ctx context.Context, previewID uuid.UUID, index int) (*series.Preview, error)
	DeleteSlot(ctx context.Context, previewID uuid.UUID, index int) (*series.Preview, error)
	RefreshAbsences(ctx context.Context, previewID uuid.UUID) (*series.Preview, error)
	UpdateAbsence(ctx context.Context, previewID, absenceID uuid.UUID, upd series.AbsenceUpdate) (*series.Preview, error)
	DeleteAbsence(ctx context.Context, previewID, absenceID uuid.UUID) (*series.Preview, error)
	CommitPreview(ctx context.Context, previewID uuid.UUID) (*series.CommitResult, error)
	DescribeSeries(ctx context.Context, seriesID string) (series.SeriesDescriptor, error)
	ListPrescriptionSeries(ctx context.Context, prescriptionID uuid.UUID) ([]series.SeriesDescriptor, error)
	ExtendSeries(ctx context.Context, seriesID string, req series.ExtendRequest) (*series.Preview, error)
	CancelSeries(ctx context.Context, seriesID string) (int, error)
}

var _ SeriesService = (*series.Service)(nil)

type RouterConfig struct {
	Service         SeriesService
	Health          *HealthHandler
	Logger          zerolog.Logger
	RoundToHalfHour bool
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))

	if cfg.Health != nil {
		r.Get("/health/live", cfg.Health.Liveness)
		r.Get("/health/ready", cfg.Health.Readiness)
	}

	svc := cfg.Service

	r.Route("/previews", func(r chi.Router) {
		r.Post("/", createPreviewHandler(svc))
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", getPreviewHandler(svc))
			r.Delete("/", discardPreviewHandler(svc))
			r.Post("/refresh", refreshPreviewHandler(svc))
			r.Post("/commit", commitPreviewHandler(svc))
			r.Patch("/slots/{index}", editSlotHandler(svc))
			r.Delete("/slots/{index}", deleteSlotHandler(svc))
			r.Post("/slots/{index}/ignore-conflict", ignoreConflictHandler(svc))
			r.Patch("/absences/{absenceID}", updateAbsenceHandler(svc))
			r.Delete("/absences/{absenceID}", deleteAbsenceHandler(svc))
		})
	})

	r.Route("/series/{seriesID}", func(r chi.Router) {
		r.Get("/", getSeriesHandler(svc))
		r.Post("/extend", extendSeriesHandler(svc, cfg.RoundToHalfHour))
		r.Post("/cancel", cancelSeriesHandler(svc))
	})

	r.Get("/prescriptions/{id}/series", listPrescriptionSeriesHandler(svc))

	return r
}
