package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/clinicqueue/booking-service/internal/booking"
	"github.com/clinicqueue/booking-service/internal/config"
	"github.com/clinicqueue/booking-service/internal/db"
)

// The API server already sweeps stale bookings at the start of read
// paths, so this worker is optional: run it when you want expiry to
// happen even while nobody is looking.
func main() {
	cfg, err := config.Load()
	if err != nil {
		errLogger := zerolog.New(os.Stderr)
		errLogger.Fatal().Err(err).Msg("config load error")
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	logger.Info().
		Str("env", cfg.Env).
		Dur("interval", cfg.WorkerInterval).
		Dur("staleness", cfg.BookingStaleness).
		Msg("expiry-worker starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres connection error")
	}
	defer pgPool.Close()
	logger.Info().Msg("connected to Postgres")

	svc := booking.NewService(booking.NewPgRepository(pgPool), booking.Config{
		Staleness:   cfg.BookingStaleness,
		TokenAmount: cfg.TokenAmount,
	}, logger)

	// Run once at startup
	runOnce(rootCtx, svc, logger)

	ticker := time.NewTicker(cfg.WorkerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			logger.Info().Msg("shutdown signal received, stopping expiry worker")
			return
		case <-ticker.C:
			runOnce(rootCtx, svc, logger)
		}
	}
}

func runOnce(ctx context.Context, svc *booking.Service, logger zerolog.Logger) {
	runCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	start := time.Now()
	n, err := svc.SweepExpired(runCtx)
	if err != nil {
		logger.Error().Err(err).Msg("expiry run error")
		return
	}
	logger.Info().Int64("expired", n).Dur("took", time.Since(start)).Msg("expiry run complete")
}
