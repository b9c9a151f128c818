package main

import (
	"context"
	"log"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/hackgods/practitioner-scheduling/internal/app"
	"github.com/hackgods/practitioner-scheduling/internal/calendar"
	"github.com/hackgods/practitioner-scheduling/internal/config"
	"github.com/hackgods/practitioner-scheduling/internal/directory"
	"github.com/hackgods/practitioner-scheduling/internal/logger"
	"github.com/hackgods/practitioner-scheduling/internal/scheduling"
)

const (
	practitionerCount = 20
	patientCount      = 2000
	seedWeeks         = 4
)

var specialties = []string{
	"Dermatology",
	"Cardiology",
	"General Practice",
	"Orthopedics",
	"Endocrinology",
	"Neurology",
	"Pediatrics",
	"Psychiatry",
	"Ophthalmology",
	"ENT",
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}
	if cfg.Store != config.StorePostgres {
		log.Fatalf("seed requires STORE=%s", config.StorePostgres)
	}
	// Seeding never contends with itself.
	cfg.LockBackend = config.LockLocal

	zl := logger.Must(cfg.Env)
	defer func() { _ = zl.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	rt, err := app.Open(ctx, cfg, zl)
	if err != nil {
		zl.Fatal("startup failed", zap.Error(err))
	}
	defer rt.Close()

	faker := gofakeit.New(uint64(time.Now().UnixNano()))

	practitioners, err := seedPractitioners(ctx, rt.Pool, rt.Directory, faker, practitionerCount)
	if err != nil {
		zl.Fatal("seed practitioners", zap.Error(err))
	}
	if err := seedPatients(ctx, rt.Pool, rt.Directory, faker, patientCount); err != nil {
		zl.Fatal("seed patients", zap.Error(err))
	}
	if err := seedAvailability(ctx, rt.Core, practitioners, cfg.Location, zl); err != nil {
		zl.Fatal("seed availability", zap.Error(err))
	}

	zl.Info("seed complete")
}

func seedPractitioners(ctx context.Context, pool *pgxpool.Pool, dir *directory.PgDirectory, faker *gofakeit.Faker, count int) ([]uuid.UUID, error) {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	ids := make([]uuid.UUID, 0, count)
	for i := 0; i < count; i++ {
		specialty := specialties[faker.Number(0, len(specialties)-1)]
		p := directory.Practitioner{
			ID:        uuid.New(),
			Name:      "Dr. " + faker.Name(),
			Specialty: &specialty,
		}
		if err := dir.InsertPractitioner(ctx, tx, p); err != nil {
			return nil, err
		}
		ids = append(ids, p.ID)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return ids, nil
}

func seedPatients(ctx context.Context, pool *pgxpool.Pool, dir *directory.PgDirectory, faker *gofakeit.Faker, count int) error {
	const batchSize = 500

	for offset := 0; offset < count; offset += batchSize {
		end := min(offset+batchSize, count)

		tx, err := pool.Begin(ctx)
		if err != nil {
			return err
		}
		for i := offset; i < end; i++ {
			email := faker.Email()
			p := directory.Patient{
				ID:    uuid.New(),
				Name:  faker.Name(),
				Email: &email,
			}
			if err := dir.InsertPatient(ctx, tx, p); err != nil {
				_ = tx.Rollback(ctx)
				return err
			}
		}
		if err := tx.Commit(ctx); err != nil {
			return err
		}
	}
	return nil
}

// seedAvailability gives every practitioner 08:00-17:00 on weekdays for the
// next few weeks.
func seedAvailability(ctx context.Context, core *scheduling.Core, practitioners []uuid.UUID, loc *time.Location, zl *zap.Logger) error {
	from := calendar.DateOf(time.Now().In(loc))
	to := from.AddDays(7*seedWeeks - 1)
	hours := calendar.Window{Start: calendar.ClockAt(8, 0), End: calendar.ClockAt(17, 0)}

	total := 0
	for _, id := range practitioners {
		blocks, err := core.GenerateAutomaticAvailability(ctx, id, from, to, hours)
		if err != nil {
			return err
		}
		total += len(blocks)
	}
	zl.Info("availability seeded",
		zap.Int("practitioners", len(practitioners)),
		zap.Int("blocks", total),
		zap.Stringer("from", from),
		zap.Stringer("to", to),
	)
	return nil
}
