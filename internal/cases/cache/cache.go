// Package cache provides a Redis read-through accelerator for case lookups.
// The store stays authoritative; every cache failure degrades to a miss.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"credence/internal/cases/models"
	id "credence/pkg/domain"
)

const keyPrefix = "credence:case:"

// RedisCache caches serialized cases with a TTL.
type RedisCache struct {
	client *redis.Client
	logger *slog.Logger
}

// NewRedisCache creates a cache over an existing client.
func NewRedisCache(client *redis.Client, logger *slog.Logger) (*RedisCache, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisCache{client: client, logger: logger}, nil
}

// GetCase returns the cached case, or (nil, nil) on a miss. Decode failures
// are treated as misses so one poisoned entry cannot wedge a case.
func (c *RedisCache) GetCase(ctx context.Context, caseID id.CaseID) (*models.Case, error) {
	raw, err := c.client.Get(ctx, key(caseID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var cached models.Case
	if err := json.Unmarshal(raw, &cached); err != nil {
		c.logger.Warn("dropping undecodable cached case", "case_id", caseID, "error", err)
		c.client.Del(ctx, key(caseID))
		return nil, nil
	}
	return &cached, nil
}

// SetCase caches a case for ttl.
func (c *RedisCache) SetCase(ctx context.Context, cs *models.Case, ttl time.Duration) error {
	raw, err := json.Marshal(cs)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key(cs.ID), raw, ttl).Err()
}

// InvalidateCase drops a cached case.
func (c *RedisCache) InvalidateCase(ctx context.Context, caseID id.CaseID) error {
	return c.client.Del(ctx, key(caseID)).Err()
}

func key(caseID id.CaseID) string {
	return fmt.Sprintf("%s%s", keyPrefix, caseID)
}
