// internal/catalog/cache.go
package catalog

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"visabuddy-engine/internal/common/database"
	"visabuddy-engine/internal/common/logger"
	"visabuddy-engine/internal/common/metrics"
	"visabuddy-engine/internal/models"

	"github.com/redis/go-redis/v9"
)

// Resolver is the read interface workers depend on.
type Resolver interface {
	LatestApproved(ctx context.Context, countryCode, visaType string) (*models.RuleSet, error)
}

// CachedStore is a read-through Redis cache in front of the Postgres store.
// Cache failures degrade to the database; they never fail a lookup.
type CachedStore struct {
	store  Resolver
	redis  *database.RedisClient
	logger logger.Logger
	ttl    time.Duration
}

func NewCachedStore(store Resolver, redisClient *database.RedisClient, log logger.Logger, ttl time.Duration) *CachedStore {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CachedStore{
		store:  store,
		redis:  redisClient,
		logger: log,
		ttl:    ttl,
	}
}

func cacheKey(countryCode, visaType string) string {
	return fmt.Sprintf("ruleset:%s:%s", countryCode, visaType)
}

// LatestApproved serves from Redis when possible and falls back to the store.
// Negative results (no approved rule set) are not cached so a freshly
// approved version becomes visible immediately.
func (c *CachedStore) LatestApproved(ctx context.Context, countryCode, visaType string) (*models.RuleSet, error) {
	key := cacheKey(countryCode, visaType)

	cached, err := c.redis.Get(ctx, key)
	switch {
	case err == nil:
		var rs models.RuleSet
		if unmarshalErr := json.Unmarshal([]byte(cached), &rs); unmarshalErr == nil {
			metrics.CatalogCacheHits.WithLabelValues("hit").Inc()
			return &rs, nil
		}
		// Corrupt entry: drop it and fall through to the database.
		_ = c.redis.Del(ctx, key)
		metrics.CatalogCacheHits.WithLabelValues("error").Inc()
	case stderrors.Is(err, redis.Nil):
		metrics.CatalogCacheHits.WithLabelValues("miss").Inc()
	default:
		metrics.CatalogCacheHits.WithLabelValues("error").Inc()
		c.logger.Warn("rule set cache read failed, falling back to database", map[string]interface{}{
			"key":   key,
			"error": err.Error(),
		})
	}

	rs, err := c.store.LatestApproved(ctx, countryCode, visaType)
	if err != nil {
		return nil, err
	}

	if payload, marshalErr := json.Marshal(rs); marshalErr == nil {
		if setErr := c.redis.Set(ctx, key, payload, c.ttl); setErr != nil {
			c.logger.Warn("rule set cache write failed", map[string]interface{}{
				"key":   key,
				"error": setErr.Error(),
			})
		}
	}

	return rs, nil
}

// Invalidate removes the cached entry after a new version is approved.
func (c *CachedStore) Invalidate(ctx context.Context, countryCode, visaType string) error {
	return c.redis.Del(ctx, cacheKey(countryCode, visaType))
}
