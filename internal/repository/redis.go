package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/GoPolymarket/fundgate/internal/config"
	"github.com/GoPolymarket/fundgate/internal/model"
	"github.com/GoPolymarket/fundgate/internal/pkg/logger"
	"github.com/GoPolymarket/fundgate/internal/pkg/metrics"
	"github.com/GoPolymarket/fundgate/internal/service"
	"github.com/redis/go-redis/v9"
)

var _ service.FundCache = (*RedisFundCache)(nil)

type RedisClient struct {
	Client *redis.Client
}

func NewRedisClient(cfg *config.Config) (*RedisClient, error) {
	if cfg.Redis.Addr == "" {
		return nil, fmt.Errorf("redis address is empty")
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisClient{Client: rdb}, nil
}

func (r *RedisClient) Close() error {
	return r.Client.Close()
}

const fundCachePrefix = "fund:"

// RedisFundCache is a read-through cache of fund records. Failures are
// logged and treated as misses; the store stays authoritative.
type RedisFundCache struct {
	client *RedisClient
	ttl    time.Duration
}

func NewRedisFundCache(client *RedisClient, ttl time.Duration) *RedisFundCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &RedisFundCache{client: client, ttl: ttl}
}

func fundCacheKey(fundAddress string) string {
	return fundCachePrefix + model.AddressKey(fundAddress)
}

func (c *RedisFundCache) Get(ctx context.Context, fundAddress string) (*model.FundRecord, bool) {
	data, err := c.client.Client.Get(ctx, fundCacheKey(fundAddress)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			metrics.CacheRequests.WithLabelValues("miss").Inc()
		} else {
			metrics.CacheRequests.WithLabelValues("error").Inc()
			logger.Warn("fund cache read failed", "fund", fundAddress, "error", err)
		}
		return nil, false
	}
	var rec model.FundRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		metrics.CacheRequests.WithLabelValues("error").Inc()
		c.Invalidate(ctx, fundAddress)
		return nil, false
	}
	metrics.CacheRequests.WithLabelValues("hit").Inc()
	return &rec, true
}

func (c *RedisFundCache) Set(ctx context.Context, rec *model.FundRecord) {
	if rec == nil {
		return
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return
	}
	if err := c.client.Client.Set(ctx, fundCacheKey(rec.Key()), data, c.ttl).Err(); err != nil {
		logger.Warn("fund cache write failed", "fund", rec.Key(), "error", err)
	}
}

func (c *RedisFundCache) Invalidate(ctx context.Context, fundAddress string) {
	if err := c.client.Client.Del(ctx, fundCacheKey(fundAddress)).Err(); err != nil {
		logger.Warn("fund cache invalidate failed", "fund", fundAddress, "error", err)
	}
}
