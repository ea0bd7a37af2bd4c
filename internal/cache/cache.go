// Package cache provides an optional Redis read-through cache for resolved
// effective hours. All operations are best-effort: a cache failure degrades
// to a store read, never to a caller-visible error.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"orderslot/internal/models"
)

const versionKey = "orderslot:effective:version"

// EffectiveHoursCache caches resolved effective hours per calendar date.
//
// Keys carry a namespace version; Flush bumps the version so every existing
// entry becomes unreachable without scanning the keyspace.
type EffectiveHoursCache struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *zerolog.Logger
}

// New creates a cache over an existing Redis client.
func New(rdb *redis.Client, ttl time.Duration, logger *zerolog.Logger) *EffectiveHoursCache {
	return &EffectiveHoursCache{rdb: rdb, ttl: ttl, logger: logger}
}

// GetEffectiveHours returns the cached entry for a date, if any.
func (c *EffectiveHoursCache) GetEffectiveHours(ctx context.Context, date string) (*models.EffectiveHours, bool) {
	key, ok := c.key(ctx, date)
	if !ok {
		return nil, false
	}
	val, err := c.rdb.Get(ctx, key).Result()
	if err != nil {
		return nil, false
	}
	var eh models.EffectiveHours
	if err := json.Unmarshal([]byte(val), &eh); err != nil {
		return nil, false
	}
	return &eh, true
}

// SetEffectiveHours stores a resolved entry with the configured TTL.
func (c *EffectiveHoursCache) SetEffectiveHours(ctx context.Context, eh *models.EffectiveHours) {
	key, ok := c.key(ctx, eh.Date)
	if !ok {
		return
	}
	data, err := json.Marshal(eh)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.logger.Debug().Err(err).Str("date", eh.Date).Msg("cache write failed")
	}
}

// InvalidateDate drops the entry for one date.
func (c *EffectiveHoursCache) InvalidateDate(ctx context.Context, date string) {
	key, ok := c.key(ctx, date)
	if !ok {
		return
	}
	if err := c.rdb.Del(ctx, key).Err(); err != nil {
		c.logger.Debug().Err(err).Str("date", date).Msg("cache invalidate failed")
	}
}

// Flush makes every cached entry unreachable.
func (c *EffectiveHoursCache) Flush(ctx context.Context) {
	if c.rdb == nil {
		return
	}
	if err := c.rdb.Incr(ctx, versionKey).Err(); err != nil {
		c.logger.Debug().Err(err).Msg("cache flush failed")
	}
}

func (c *EffectiveHoursCache) key(ctx context.Context, date string) (string, bool) {
	if c.rdb == nil || c.ttl <= 0 {
		return "", false
	}
	version, err := c.rdb.Get(ctx, versionKey).Int64()
	if err != nil && err != redis.Nil {
		return "", false
	}
	return fmt.Sprintf("orderslot:effective:%d:%s", version, date), true
}
