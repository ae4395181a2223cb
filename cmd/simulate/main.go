package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/clinicqueue/booking-service/internal/config"
	"github.com/clinicqueue/booking-service/internal/db"
)

// simulate hammers one AVAILABLE slot per round with many concurrent
// booking attempts and checks the contended-slot property empirically:
// exactly one attempt per round should come back 201, the rest 409.

type SimConfig struct {
	APIBaseURL  string
	Workers     int
	Rounds      int
	PostgresDSN string
}

type contendedSlot struct {
	SlotID   uuid.UUID
	DoctorID uuid.UUID
}

type roundResult struct {
	Created  int64
	Conflict int64
	Other    int64
}

var logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()

func main() {
	logger.Info().Msg("simulator starting")

	cfg := loadSimConfig()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pgPool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect postgres")
	}
	defer pgPool.Close()

	slots, err := loadAvailableSlots(ctx, pgPool, cfg.Rounds)
	if err != nil {
		logger.Fatal().Err(err).Msg("load slots")
	}
	if len(slots) == 0 {
		logger.Fatal().Msg("no AVAILABLE slots in the database; run cmd/seed first")
	}

	client := &http.Client{Timeout: 10 * time.Second}

	token, err := acquireToken(client, cfg.APIBaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("acquire token")
	}

	var clean, dirty int
	for i, slot := range slots {
		res := runRound(client, cfg, token, slot)
		ok := res.Created == 1 && res.Other == 0
		if ok {
			clean++
		} else {
			dirty++
		}
		logger.Info().
			Int("round", i+1).
			Str("slot_id", slot.SlotID.String()).
			Int64("created", res.Created).
			Int64("conflict", res.Conflict).
			Int64("other", res.Other).
			Bool("exactly_one_winner", ok).
			Msg("round complete")
	}

	logger.Info().Int("clean_rounds", clean).Int("dirty_rounds", dirty).Msg("simulation complete")
	if dirty > 0 {
		os.Exit(1)
	}
}

func loadSimConfig() SimConfig {
	baseCfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load base config")
	}

	cfg := SimConfig{
		APIBaseURL:  getEnv("SIM_API_BASE_URL", "http://localhost:8080"),
		Workers:     getInt("SIM_WORKERS", 20),
		Rounds:      getInt("SIM_ROUNDS", 10),
		PostgresDSN: baseCfg.PostgresDSN,
	}
	if cfg.Workers <= 0 || cfg.Rounds <= 0 {
		logger.Fatal().Msg("SIM_WORKERS and SIM_ROUNDS must be > 0")
	}
	return cfg
}

func loadAvailableSlots(ctx context.Context, pool *pgxpool.Pool, limit int) ([]contendedSlot, error) {
	rows, err := pool.Query(ctx, `
		SELECT id, doctor_id
		FROM slots
		WHERE status = 'AVAILABLE'
		ORDER BY start_time
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []contendedSlot
	for rows.Next() {
		var s contendedSlot
		if err := rows.Scan(&s.SlotID, &s.DoctorID); err != nil {
			return nil, err
		}
		result = append(result, s)
	}
	return result, rows.Err()
}

// acquireToken registers a throwaway patient and logs in, so booking
// requests carry a real bearer token.
func acquireToken(client *http.Client, baseURL string) (string, error) {
	email := fmt.Sprintf("sim-%s@load.test", uuid.NewString()[:8])

	regBody, _ := json.Marshal(map[string]string{
		"name":     "Load Tester",
		"email":    email,
		"password": "sim-password",
	})
	resp, err := client.Post(baseURL+"/api/auth/register", "application/json", bytes.NewReader(regBody))
	if err != nil {
		return "", err
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("register returned %d", resp.StatusCode)
	}

	loginBody, _ := json.Marshal(map[string]string{
		"email":    email,
		"password": "sim-password",
	})
	resp, err = client.Post(baseURL+"/api/auth/login", "application/json", bytes.NewReader(loginBody))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("login returned %d", resp.StatusCode)
	}

	var out struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	return out.Token, nil
}

func runRound(client *http.Client, cfg SimConfig, token string, slot contendedSlot) roundResult {
	var res roundResult
	var wg sync.WaitGroup
	start := make(chan struct{})

	url := fmt.Sprintf("%s/api/doctors/%s/slots/%s/bookings", cfg.APIBaseURL, slot.DoctorID, slot.SlotID)

	for w := 0; w < cfg.Workers; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			<-start

			body, _ := json.Marshal(map[string]string{
				"patient_name":  fmt.Sprintf("Sim Patient %d", worker),
				"patient_email": fmt.Sprintf("sim-%d@load.test", worker),
				"reason":        "load test",
			})
			req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
			if err != nil {
				atomic.AddInt64(&res.Other, 1)
				return
			}
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("Authorization", "Bearer "+token)

			resp, err := client.Do(req)
			if err != nil {
				atomic.AddInt64(&res.Other, 1)
				return
			}
			resp.Body.Close()

			switch resp.StatusCode {
			case http.StatusCreated:
				atomic.AddInt64(&res.Created, 1)
			case http.StatusConflict:
				atomic.AddInt64(&res.Conflict, 1)
			default:
				atomic.AddInt64(&res.Other, 1)
			}
		}(w)
	}

	close(start)
	wg.Wait()
	return res
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
