package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/rs/zerolog"

	"github.com/hackgods/dental-practice-booking/internal/apperr"
	"github.com/hackgods/dental-practice-booking/internal/appointment"
	"github.com/hackgods/dental-practice-booking/internal/catalog"
	"github.com/hackgods/dental-practice-booking/internal/config"
	"github.com/hackgods/dental-practice-booking/internal/db"
	"github.com/hackgods/dental-practice-booking/internal/jsonfile"
	"github.com/hackgods/dental-practice-booking/internal/observability"
	"github.com/hackgods/dental-practice-booking/internal/practice"
	"github.com/hackgods/dental-practice-booking/internal/schedule"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLogger := observability.InitLogger("seed", "dev", "info")
		bootLogger.Fatal().Err(err).Msg("config load error")
	}
	logger := observability.InitLogger("seed", cfg.Env, cfg.LogLevel)
	logger.Info().Str("data_dir", cfg.DataDir).Msg("seed starting")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	gofakeit.Seed(time.Now().UnixNano())

	if err := seedCatalog(cfg.DataDir); err != nil {
		logger.Fatal().Err(err).Msg("seed materials")
	}
	if err := resetLedger(ctx, cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("reset ledger")
	}

	svc := practice.NewService(practice.NewJSONRepository(cfg.DataDir), nil, catalog.DefaultTreatments(), logger)
	if err := seedDentists(ctx, svc, getInt("SEED_DENTISTS", 5), logger); err != nil {
		logger.Fatal().Err(err).Msg("seed dentists")
	}
	if err := seedPatients(ctx, svc, getInt("SEED_PATIENTS", 50), logger); err != nil {
		logger.Fatal().Err(err).Msg("seed patients")
	}

	logger.Info().Msg("seed complete")
}

func seedCatalog(dataDir string) error {
	return catalog.DefaultMaterials().Save(filepath.Join(dataDir, catalog.MaterialsFile))
}

// resetLedger leaves the configured appointment store empty.
func resetLedger(ctx context.Context, cfg config.Config, logger zerolog.Logger) error {
	if cfg.LedgerBackend != config.BackendPostgres {
		return jsonfile.Write(filepath.Join(cfg.DataDir, appointment.LedgerFile), appointment.Ledger{})
	}

	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := db.EnsureSchema(ctx, pool); err != nil {
		return err
	}
	if _, err := pool.Exec(ctx, `TRUNCATE appointments`); err != nil {
		return fmt.Errorf("truncate appointments: %w", err)
	}
	logger.Info().Msg("postgres ledger truncated")
	return nil
}

var windows = [][]string{
	{"08:00-12:00"},
	{"09:00-12:00", "13:00-17:00"},
	{"10:00-14:00"},
	{"13:00-18:00"},
}

func seedDentists(ctx context.Context, svc *practice.Service, count int, logger zerolog.Logger) error {
	logger.Info().Int("count", count).Msg("seeding dentists")

	classes := catalog.InsuranceClasses()
	days := []string{"Mo", "Di", "Mi", "Do", "Fr"}

	for created := 0; created < count; {
		hours := schedule.WeeklyAvailability{}
		for _, day := range days {
			if gofakeit.Number(0, 4) == 0 {
				continue
			}
			hours[day] = windows[gofakeit.Number(0, len(windows)-1)]
		}
		if len(hours) == 0 {
			hours["Mo"] = windows[0]
		}

		var accepts []catalog.InsuranceClass
		for _, c := range classes {
			if gofakeit.Bool() {
				accepts = append(accepts, c)
			}
		}
		if len(accepts) == 0 {
			accepts = classes[:1]
		}

		_, err := svc.RegisterDentist(ctx, practice.DentistRegistration{
			Name:     "Dr. " + gofakeit.LastName(),
			Password: gofakeit.Password(true, true, true, false, false, 12),
			Accepts:  accepts,
			Hours:    hours,
		})
		if apperr.KindOf(err) == apperr.KindValidation {
			// name already taken, draw another
			continue
		}
		if err != nil {
			return err
		}
		created++
	}

	logger.Info().Msg("dentists seeded")
	return nil
}

func seedPatients(ctx context.Context, svc *practice.Service, count int, logger zerolog.Logger) error {
	logger.Info().Int("count", count).Msg("seeding patients")

	classes := catalog.InsuranceClasses()
	kinds := catalog.DefaultTreatments().Kinds()

	for created := 0; created < count; {
		p, err := svc.RegisterPatient(ctx, practice.PatientRegistration{
			Name:      gofakeit.Name(),
			Password:  gofakeit.Password(true, true, true, false, false, 10),
			Insurance: classes[gofakeit.Number(0, len(classes)-1)],
			Problem:   string(kinds[gofakeit.Number(0, len(kinds)-1)]),
			Units:     gofakeit.Number(1, 4),
		})
		if apperr.KindOf(err) == apperr.KindValidation {
			continue
		}
		if err != nil {
			return err
		}

		if gofakeit.Bool() {
			extra := kinds[gofakeit.Number(0, len(kinds)-1)]
			if _, err := svc.AddProblem(ctx, p.Name, string(extra), gofakeit.Number(1, 3)); err != nil {
				return err
			}
		}
		created++

		if created%25 == 0 {
			logger.Info().Int("done", created).Int("total", count).Msg("patients seeded")
		}
	}

	logger.Info().Msg("patients seeded")
	return nil
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
