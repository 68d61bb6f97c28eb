package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/hackgods/therapy-series-scheduling/internal/db"
	"github.com/hackgods/therapy-series-scheduling/internal/logging"
)

var treatments = []struct {
	name     string
	duration int
}{
	{"Manual therapy", 30},
	{"Physiotherapy", 30},
	{"Lymphatic drainage", 45},
	{"Occupational therapy", 45},
	{"Speech therapy", 45},
	{"Massage", 30},
	{"Hydrotherapy", 60},
}

var cadences = []string{"weekly", "weekly", "weekly", "daily"}

var goals = []string{
	"Restore full range of motion",
	"Reduce chronic lower back pain",
	"Improve gait stability after surgery",
	"Regain fine motor control",
	"Reduce swelling and improve circulation",
}

var absenceCategories = []string{"vacation", "sick_leave", "training", "other"}

func main() {
	logger := logging.New(true, os.Getenv("LOG_LEVEL"))
	logger.Info().Msg("seed starting")

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		logger.Fatal().Msg("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect postgres")
	}
	defer pool.Close()

	faker := gofakeit.New(time.Now().UnixNano())
	s := &seeder{pool: pool, faker: faker, log: logger}

	if err := s.run(ctx, 12, 6, 400); err != nil {
		logger.Fatal().Err(err).Msg("seed failed")
	}

	logger.Info().Msg("seed complete")
}

type seeder struct {
	pool  *pgxpool.Pool
	faker *gofakeit.Faker
	log   zerolog.Logger
}

func (s *seeder) run(ctx context.Context, practitioners, rooms, patients int) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	practitionerIDs, err := s.seedNamed(ctx, tx, "practitioners", practitioners, s.faker.Name)
	if err != nil {
		return fmt.Errorf("seed practitioners: %w", err)
	}
	roomIDs, err := s.seedNamed(ctx, tx, "rooms", rooms, func() string {
		return fmt.Sprintf("Room %d", s.faker.Number(1, 40))
	})
	if err != nil {
		return fmt.Errorf("seed rooms: %w", err)
	}
	treatmentIDs, err := s.seedTreatments(ctx, tx)
	if err != nil {
		return fmt.Errorf("seed treatments: %w", err)
	}
	if err := s.seedPatients(ctx, tx, patients, treatmentIDs); err != nil {
		return fmt.Errorf("seed patients: %w", err)
	}
	if err := s.seedAbsences(ctx, tx, practitionerIDs); err != nil {
		return fmt.Errorf("seed absences: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	s.log.Info().
		Int("practitioners", len(practitionerIDs)).
		Int("rooms", len(roomIDs)).
		Int("treatments", len(treatmentIDs)).
		Int("patients", patients).
		Msg("reference data seeded")
	return nil
}

func (s *seeder) seedNamed(ctx context.Context, tx pgx.Tx, table string, count int, name func() string) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, count)
	for i := 0; i < count; i++ {
		id := uuid.New()
		_, err := tx.Exec(ctx, `
			INSERT INTO `+table+` (id, name, created_at, updated_at)
			VALUES ($1, $2, now(), now())
		`, id, name())
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *seeder) seedTreatments(ctx context.Context, tx pgx.Tx) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(treatments))
	for _, t := range treatments {
		id := uuid.New()
		_, err := tx.Exec(ctx, `
			INSERT INTO treatments (id, name, duration_minutes, created_at, updated_at)
			VALUES ($1, $2, $3, now(), now())
		`, id, t.name, t.duration)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// seedPatients creates each patient with one prescription of 1 to 3
// treatments.
func (s *seeder) seedPatients(ctx context.Context, tx pgx.Tx, count int, treatmentIDs []uuid.UUID) error {
	for i := 0; i < count; i++ {
		patientID := uuid.New()
		_, err := tx.Exec(ctx, `
			INSERT INTO patients (id, name, email, created_at, updated_at)
			VALUES ($1, $2, $3, now(), now())
		`, patientID, s.faker.Name(), s.faker.Email())
		if err != nil {
			return err
		}

		n := s.faker.Number(1, 3)
		picked := make([]uuid.UUID, 0, n)
		order := make([]int, len(treatmentIDs))
		for k := range order {
			order[k] = k
		}
		s.faker.ShuffleInts(order)
		for _, idx := range order[:n] {
			picked = append(picked, treatmentIDs[idx])
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO prescriptions (id, patient_id, treatment_ids, session_count, cadence, goals, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, now(), now())
		`, uuid.New(), patientID, picked,
			s.faker.RandomInt([]int{6, 10, 12, 20}),
			s.faker.RandomString(cadences),
			s.faker.RandomString(goals))
		if err != nil {
			return err
		}
	}
	return nil
}

// seedAbsences gives every practitioner a couple of full-day absences and one
// partial-day block over the next three months.
func (s *seeder) seedAbsences(ctx context.Context, tx pgx.Tx, practitionerIDs []uuid.UUID) error {
	today := time.Now().Truncate(24 * time.Hour)
	for _, pid := range practitionerIDs {
		for j := 0; j < 2; j++ {
			start := today.AddDate(0, 0, s.faker.Number(1, 90))
			end := start.AddDate(0, 0, s.faker.Number(0, 6))
			_, err := tx.Exec(ctx, `
				INSERT INTO practitioner_absences (id, practitioner_id, start_date, end_date, is_full_day, category, notes)
				VALUES ($1, $2, $3, $4, true, $5, $6)
			`, uuid.New(), pid, start, end, s.faker.RandomString(absenceCategories), s.faker.Word())
			if err != nil {
				return err
			}
		}

		day := today.AddDate(0, 0, s.faker.Number(1, 90))
		startHour := s.faker.Number(8, 15)
		_, err := tx.Exec(ctx, `
			INSERT INTO practitioner_absences (id, practitioner_id, start_date, end_date, is_full_day, start_time, end_time, category)
			VALUES ($1, $2, $3, $3, false, make_time($4, 0, 0), make_time($5, 0, 0), 'training')
		`, uuid.New(), pid, day, startHour, startHour+2)
		if err != nil {
			return err
		}
	}
	return nil
}
