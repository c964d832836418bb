package travel

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fieldworks-io/dispatch/internal/scheduling/domain"
	"github.com/fieldworks-io/dispatch/pkg/observability"
)

const (
	travelKeyPrefix = "dispatch:travel:"

	// unroutableSentinel caches "no route exists" so dead pairs do not get
	// re-estimated every cycle.
	unroutableSentinel int64 = -1
)

// RedisCache decorates a travel provider with a shared Redis cache. Cache
// failures are never fatal: reads and writes degrade to the inner provider
// with a debug log.
type RedisCache struct {
	client  *redis.Client
	inner   domain.TravelProvider
	ttl     time.Duration
	metrics observability.Metrics
	logger  *slog.Logger
}

// NewRedisCache wraps inner with a Redis lookaside cache.
func NewRedisCache(client *redis.Client, inner domain.TravelProvider, ttl time.Duration, metrics observability.Metrics, logger *slog.Logger) *RedisCache {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = observability.NoopMetrics{}
	}
	return &RedisCache{
		client:  client,
		inner:   inner,
		ttl:     ttl,
		metrics: metrics,
		logger:  logger,
	}
}

// TravelSeconds implements domain.TravelProvider.
func (c *RedisCache) TravelSeconds(ctx context.Context, from, to domain.Address) (int64, bool) {
	key := travelKeyPrefix + from.ID.String() + ":" + to.ID.String()

	val, err := c.client.Get(ctx, key).Result()
	if err == nil {
		if seconds, parseErr := strconv.ParseInt(val, 10, 64); parseErr == nil {
			c.metrics.Counter(observability.MetricTravelCacheHits, 1)
			if seconds < 0 {
				return 0, false
			}
			return seconds, true
		}
	} else if !errors.Is(err, redis.Nil) {
		c.logger.Debug("travel cache read failed",
			slog.String("key", key),
			slog.String("error", err.Error()))
	}

	c.metrics.Counter(observability.MetricTravelCacheMisses, 1)
	seconds, ok := c.inner.TravelSeconds(ctx, from, to)

	stored := seconds
	if !ok {
		stored = unroutableSentinel
	}
	if err := c.client.Set(ctx, key, strconv.FormatInt(stored, 10), c.ttl).Err(); err != nil {
		c.logger.Debug("travel cache write failed",
			slog.String("key", key),
			slog.String("error", err.Error()))
	}
	return seconds, ok
}
