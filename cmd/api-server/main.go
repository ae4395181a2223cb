package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/clinicqueue/booking-service/internal/api"
	"github.com/clinicqueue/booking-service/internal/auth"
	"github.com/clinicqueue/booking-service/internal/booking"
	"github.com/clinicqueue/booking-service/internal/cache"
	"github.com/clinicqueue/booking-service/internal/config"
	"github.com/clinicqueue/booking-service/internal/db"
)

const version = "0.1.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		errLogger := zerolog.New(os.Stderr)
		errLogger.Fatal().Err(err).Msg("config load error")
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if cfg.Env == "dev" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	logger.Info().Str("env", cfg.Env).Str("http_port", cfg.HTTPPort).Msg("api-server starting up")

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

	rdb, err := cache.NewRedisClient(cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connection error")
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			logger.Error().Err(err).Msg("error closing redis")
		}
	}()
	logger.Info().Msg("connected to Redis")

	bookingRepo := booking.NewPgRepository(pgPool)
	bookingSvc := booking.NewService(bookingRepo, booking.Config{
		Staleness:   cfg.BookingStaleness,
		TokenAmount: cfg.TokenAmount,
	}, logger)

	issuer := auth.NewTokenIssuer(cfg.JWTSecret, cfg.JWTTTL)
	authSvc := auth.NewService(auth.NewPgRepository(pgPool), issuer, logger)

	doctorCache := cache.NewDoctorCache(rdb, cfg.DoctorCacheTTL, logger)

	handlers := api.NewHandlers(bookingSvc, authSvc, doctorCache, logger)
	router := api.NewRouter(api.RouterConfig{
		Handlers: handlers,
		Issuer:   issuer,
		PgPool:   pgPool,
		Redis:    rdb,
		Logger:   logger,
		Env:      cfg.Env,
		Version:  version,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	<-rootCtx.Done()
	logger.Info().Msg("shutting down api-server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
	}
}
