package main

import (
	"context"
	"errors"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/hackgods/dental-practice-booking/internal/api"
	"github.com/hackgods/dental-practice-booking/internal/appointment"
	"github.com/hackgods/dental-practice-booking/internal/catalog"
	"github.com/hackgods/dental-practice-booking/internal/config"
	"github.com/hackgods/dental-practice-booking/internal/db"
	"github.com/hackgods/dental-practice-booking/internal/observability"
	"github.com/hackgods/dental-practice-booking/internal/practice"
	redisclient "github.com/hackgods/dental-practice-booking/internal/redis"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLogger := observability.InitLogger("api-server", "dev", "info")
		bootLogger.Fatal().Err(err).Msg("config load error")
	}

	logger := observability.InitLogger("api-server", cfg.Env, cfg.LogLevel)
	logger.Info().
		Str("env", cfg.Env).
		Str("http_port", cfg.HTTPPort).
		Str("ledger", cfg.LedgerBackend).
		Str("lock", cfg.LockBackend).
		Str("collision_mode", string(cfg.CollisionMode)).
		Msg("api-server starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	checks := map[string]api.Check{
		"data_dir": func(ctx context.Context) error {
			_, err := os.Stat(cfg.DataDir)
			return err
		},
	}

	cat := appointment.Catalog{
		Treatments:    catalog.DefaultTreatments(),
		Reimbursement: catalog.DefaultReimbursement(),
		Materials:     loadMaterials(cfg.DataDir, logger),
	}

	// Ledger
	var (
		ledger interface {
			appointment.Repository
			practice.DentistRenamer
		}
		events []appointment.EventPublisher
	)
	switch cfg.LedgerBackend {
	case config.BackendPostgres:
		pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
		pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
		if err == nil {
			err = db.EnsureSchema(pgCtx, pgPool)
		}
		cancelPg()
		if err != nil {
			logger.Fatal().Err(err).Msg("postgres connection error")
		}
		defer pgPool.Close()
		logger.Info().Msg("connected to Postgres")

		pg := appointment.NewPgRepository(pgPool)
		ledger = pg
		events = append(events, pg)
		checks["postgres"] = pgPool.Ping
	default:
		ledger = appointment.NewJSONRepository(cfg.DataDir)
	}

	// Redis
	var rdb *redis.Client
	if cfg.NeedsRedis() {
		redisCtx, cancelRedis := context.WithTimeout(rootCtx, 5*time.Second)
		rdb, err = redisclient.NewRedisClient(redisCtx, redisclient.Options{
			Addr:     cfg.RedisAddr,
			Username: cfg.RedisUsername,
			Password: cfg.RedisPassword,
		})
		cancelRedis()
		if err != nil {
			logger.Fatal().Err(err).Msg("redis connection error")
		}
		defer func() {
			if err := rdb.Close(); err != nil {
				logger.Error().Err(err).Msg("error closing redis")
			}
		}()
		logger.Info().Str("addr", cfg.RedisAddr).Msg("connected to Redis")
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}

	var locker redisclient.Locker = redisclient.NewLocalLocker()
	if cfg.LockBackend == config.LockRedis {
		locker = redisclient.NewRedisSlotLocker(rdb, cfg.LockTTL)
	}
	if cfg.EventsEnabled {
		events = append(events, redisclient.NewEventBus(rdb, cfg.EventsChannel, logger))
	}

	records := practice.NewJSONRepository(cfg.DataDir)
	renames := &practice.RenameGuard{}
	practiceSvc := practice.NewService(records, ledger, cat.Treatments, logger)
	practiceSvc.UseRenameGuard(renames)
	bookingSvc := appointment.NewService(ledger, records, locker, cat, appointment.Options{
		StepMinutes:   cfg.SlotStepMinutes,
		CollisionMode: cfg.CollisionMode,
		Today:         cfg.Today,
		Events:        events,
		Metrics:       observability.NewBookingMetrics(prometheus.DefaultRegisterer),
		Renames:       renames,
		Logger:        logger,
	})

	router := api.NewRouter(api.RouterConfig{
		Bookings:    bookingSvc,
		Practice:    practiceSvc,
		Health:      api.NewHealthHandler(cfg.Env, version, checks),
		Metrics:     promhttp.Handler(),
		RateLimiter: api.NewRateLimiter(cfg.BookingRate, cfg.BookingBurst),
		CORSOrigins: cfg.CORSOrigins,
		Logger:      logger,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server error")
		}
	}()

	<-rootCtx.Done()
	logger.Info().Msg("shutting down api-server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
}

// loadMaterials reads materialien.json from the data directory and falls
// back to the built-in table when the file does not exist.
func loadMaterials(dataDir string, logger zerolog.Logger) *catalog.Materials {
	path := filepath.Join(dataDir, catalog.MaterialsFile)
	materials, err := catalog.LoadMaterials(path)
	switch {
	case err == nil:
		return materials
	case errors.Is(err, fs.ErrNotExist):
		logger.Warn().Str("path", path).Msg("materials file missing, using defaults")
	default:
		logger.Fatal().Err(err).Str("path", path).Msg("load materials")
	}
	return catalog.DefaultMaterials()
}
