package main

import (
	"context"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/clinicqueue/booking-service/internal/db"
)

const demoPassword = "password123"

var logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()

func main() {
	logger.Info().Msg("seed starting")

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		logger.Fatal().Msg("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect postgres")
	}
	defer pool.Close()

	gofakeit.Seed(time.Now().UnixNano())

	if err := seedUsers(context.Background(), pool, 50); err != nil {
		logger.Fatal().Err(err).Msg("seed users")
	}
	if err := seedDoctorsWithSlots(context.Background(), pool, 20); err != nil {
		logger.Fatal().Err(err).Msg("seed doctors")
	}

	logger.Info().Msg("seed complete")
}

func seedUsers(ctx context.Context, pool *pgxpool.Pool, count int) error {
	logger.Info().Int("count", count).Msg("seeding users")

	hash, err := bcrypt.GenerateFromPassword([]byte(demoPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO users (id, name, email, phone, password_hash, role, created_at, updated_at)
		VALUES ($1, $2, $3, NULL, $4, 'ADMIN', now(), now())
		ON CONFLICT (email) DO NOTHING
	`, uuid.New(), "Clinic Admin", "admin@clinic.local", string(hash))
	if err != nil {
		return err
	}

	for i := 0; i < count; i++ {
		phone := gofakeit.Phone()
		_, err := tx.Exec(ctx, `
			INSERT INTO users (id, name, email, phone, password_hash, role, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, 'PATIENT', now(), now())
			ON CONFLICT (email) DO NOTHING
		`, uuid.New(), gofakeit.Name(), gofakeit.Email(), phone, string(hash))
		if err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	logger.Info().Msg("users seeded")
	return nil
}

func seedDoctorsWithSlots(ctx context.Context, pool *pgxpool.Pool, count int) error {
	logger.Info().Int("count", count).Msg("seeding doctors and slots")

	specializations := []string{
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
	consultationTypes := []string{"IN_PERSON", "ONLINE"}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for i := 0; i < count; i++ {
		doctorID := uuid.New()
		spec := specializations[gofakeit.Number(0, len(specializations)-1)]
		ctype := consultationTypes[gofakeit.Number(0, 1)]
		fee := float64(gofakeit.Number(300, 1500))
		rating := float64(gofakeit.Number(30, 50)) / 10

		_, err := tx.Exec(ctx, `
			INSERT INTO doctors (id, name, specialization, city, consultation_type, consultation_fee, rating, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, now(), now())
		`, doctorID, "Dr. "+gofakeit.Name(), spec, gofakeit.City(), ctype, fee, rating)
		if err != nil {
			return err
		}

		// 15-minute slots, 09:00-12:00 UTC, for the next three days.
		day := time.Now().UTC().Truncate(24 * time.Hour)
		for d := 1; d <= 3; d++ {
			start := day.AddDate(0, 0, d).Add(9 * time.Hour)
			for s := 0; s < 12; s++ {
				slotStart := start.Add(time.Duration(s) * 15 * time.Minute)
				_, err := tx.Exec(ctx, `
					INSERT INTO slots (id, doctor_id, start_time, end_time, status, created_at, updated_at)
					VALUES ($1, $2, $3, $4, 'AVAILABLE', now(), now())
				`, uuid.New(), doctorID, slotStart, slotStart.Add(15*time.Minute))
				if err != nil {
					return err
				}
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	logger.Info().Msg("doctors and slots seeded")
	return nil
}
