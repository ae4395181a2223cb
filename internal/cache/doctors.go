package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/clinicqueue/booking-service/internal/booking"
)

const doctorsKey = "cache:doctors"

// DoctorCache keeps the doctor list in redis for a short TTL. It is a
// read-through layer: any cache failure falls back to the store and is
// logged, never surfaced to the caller.
type DoctorCache struct {
	client *redis.Client
	ttl    time.Duration
	log    zerolog.Logger
}

func NewDoctorCache(client *redis.Client, ttl time.Duration, log zerolog.Logger) *DoctorCache {
	return &DoctorCache{client: client, ttl: ttl, log: log}
}

// Get returns the cached doctor list, or ok=false on miss or error.
func (c *DoctorCache) Get(ctx context.Context) ([]booking.Doctor, bool) {
	raw, err := c.client.Get(ctx, doctorsKey).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.Warn().Err(err).Msg("doctor cache read failed")
		}
		return nil, false
	}

	var docs []booking.Doctor
	if err := json.Unmarshal(raw, &docs); err != nil {
		c.log.Warn().Err(err).Msg("doctor cache entry corrupt, dropping")
		_ = c.client.Del(ctx, doctorsKey).Err()
		return nil, false
	}
	return docs, true
}

func (c *DoctorCache) Set(ctx context.Context, docs []booking.Doctor) {
	raw, err := json.Marshal(docs)
	if err != nil {
		c.log.Warn().Err(err).Msg("doctor cache marshal failed")
		return
	}
	if err := c.client.Set(ctx, doctorsKey, raw, c.ttl).Err(); err != nil {
		c.log.Warn().Err(err).Msg("doctor cache write failed")
	}
}

// Invalidate drops the cached list; called after a doctor is created.
func (c *DoctorCache) Invalidate(ctx context.Context) {
	if err := c.client.Del(ctx, doctorsKey).Err(); err != nil {
		c.log.Warn().Err(err).Msg("doctor cache invalidate failed")
	}
}
