// AngelaMos | 2026
// cache.go

package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sorser/backend/internal/core"
	"github.com/sorser/backend/internal/metrics"
)

const defaultCachePrefix = "sorser:analytics"

// Cache keeps one Redis hash per user, one field per history window. The
// TTL only bounds staleness; listeners invalidate on every progress event.
type Cache struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

func NewCache(rdb *redis.Client, prefix string, ttl time.Duration) *Cache {
	if prefix == "" {
		prefix = defaultCachePrefix
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Cache{rdb: rdb, prefix: prefix, ttl: ttl}
}

func (c *Cache) key(userID string) string {
	return core.Key(c.prefix, "user", userID)
}

func (c *Cache) Get(ctx context.Context, userID string, days int) (*Summary, bool, error) {
	raw, err := c.rdb.HGet(ctx, c.key(userID), strconv.Itoa(days)).Bytes()
	if errors.Is(err, redis.Nil) {
		metrics.AnalyticsCacheTotal.WithLabelValues("miss").Inc()
		return nil, false, nil
	}
	if err != nil {
		metrics.AnalyticsCacheTotal.WithLabelValues("error").Inc()
		return nil, false, fmt.Errorf("analytics cache get: %w", err)
	}

	var s Summary
	if err := json.Unmarshal(raw, &s); err != nil {
		metrics.AnalyticsCacheTotal.WithLabelValues("error").Inc()
		return nil, false, fmt.Errorf("analytics cache decode: %w", err)
	}

	metrics.AnalyticsCacheTotal.WithLabelValues("hit").Inc()
	return &s, true, nil
}

func (c *Cache) Set(ctx context.Context, s *Summary) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("analytics cache encode: %w", err)
	}

	key := c.key(s.UserID)
	pipe := c.rdb.TxPipeline()
	pipe.HSet(ctx, key, strconv.Itoa(s.HistoryDays), raw)
	pipe.Expire(ctx, key, c.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("analytics cache set: %w", err)
	}
	return nil
}

// Invalidate drops every cached window for the user.
func (c *Cache) Invalidate(ctx context.Context, userID string) error {
	if err := c.rdb.Del(ctx, c.key(userID)).Err(); err != nil {
		return fmt.Errorf("analytics cache invalidate: %w", err)
	}
	metrics.AnalyticsCacheTotal.WithLabelValues("invalidate").Inc()
	return nil
}
